package domain

type MatchKind string

const (
	MatchExact MatchKind = "exact"
	MatchFuzzy MatchKind = "fuzzy"
)

// FieldFilter is one extracted structured constraint, e.g.
// {Field: "mpn_id", Value: "WP8544771", Match: exact}.
type FieldFilter struct {
	Field string    `json:"field"`
	Value string    `json:"value"`
	Match MatchKind `json:"match"`
}

// QueryIntent is the classifier output for one user turn. Immutable once
// produced; both retrieval paths read it.
type QueryIntent struct {
	RawText         string        `json:"raw_text"`
	ResolvedText    string        `json:"resolved_text"`
	Filters         []FieldFilter `json:"filters,omitempty"`
	CategoryHint    string        `json:"category_hint,omitempty"`
	NeedsStructured bool          `json:"needs_structured"`
	NeedsSemantic   bool          `json:"needs_semantic"`
	InScope         bool          `json:"in_scope"`
	Confidence      float64       `json:"confidence"`
	Entities        []Entity      `json:"entities,omitempty"`
}

// StructuredQuery is a validated, parameterizable query against one
// allow-listed table. Only the store turns it into SQL; user text never
// reaches query text directly.
type StructuredQuery struct {
	Table   string        `json:"table"`
	Filters []FieldFilter `json:"filters"`
	Limit   int           `json:"limit"`
}
