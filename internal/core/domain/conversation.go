package domain

import "time"

type TurnRole string

const (
	RoleUser      TurnRole = "user"
	RoleAssistant TurnRole = "assistant"
)

type EntityKind string

const (
	EntityPart      EntityKind = "part_number"
	EntityModel     EntityKind = "model_number"
	EntityBrand     EntityKind = "brand"
	EntityAppliance EntityKind = "appliance"
)

// Entity is a concrete thing mentioned in a turn. Entities from recent turns
// are the candidates for resolving references like "that part".
type Entity struct {
	Kind  EntityKind `json:"kind"`
	Value string     `json:"value"`
}

// Turn is one message in a session. Turn indexes are strictly increasing and
// gapless within a session; turns are never rewritten once appended.
type Turn struct {
	SessionID string    `json:"session_id"`
	Index     int       `json:"index"`
	Role      TurnRole  `json:"role"`
	Text      string    `json:"text"`
	Entities  []Entity  `json:"entities,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Session struct {
	ID        string    `json:"id"`
	TurnCount int       `json:"turn_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type TurnResult struct {
	SessionID  string   `json:"session_id"`
	Answer     string   `json:"answer"`
	Grounded   bool     `json:"grounded"`
	Truncated  bool     `json:"truncated"`
	OutOfScope bool     `json:"out_of_scope,omitempty"`
	Sources    []Source `json:"sources,omitempty"`

	// ContextChars is observability detail, not API payload.
	ContextChars int `json:"-"`
}

// Source is a user-facing citation for one fused context entry.
type Source struct {
	Kind  ContextKind `json:"kind"`
	Label string      `json:"label"`
	URL   string      `json:"url,omitempty"`
}
