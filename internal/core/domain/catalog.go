package domain

import "fmt"

type ColumnKind string

const (
	// ColumnKey columns hold identifiers and numbers; filtered with exact match.
	ColumnKey ColumnKind = "key"
	// ColumnText columns hold free text; filtered with fuzzy match.
	ColumnText ColumnKind = "text"
)

type Column struct {
	Name string     `yaml:"name"`
	Kind ColumnKind `yaml:"kind"`
}

type Table struct {
	Name       string   `yaml:"name"`
	PrimaryKey string   `yaml:"primary_key"`
	Columns    []Column `yaml:"columns"`
}

type Collection struct {
	Name     string `yaml:"name"`
	Category string `yaml:"category"`
}

// Catalog is the static allow-list of queryable tables/columns and document
// collections. The classifier and the structured query builder consult it;
// nothing outside the catalog is ever queried.
type Catalog struct {
	Tables      []Table      `yaml:"tables"`
	Collections []Collection `yaml:"collections"`
}

func (c Catalog) Table(name string) (Table, bool) {
	for _, t := range c.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

func (t Table) Column(name string) (Column, bool) {
	for _, col := range t.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return Column{}, false
}

// Validate rejects catalogs that could not be queried safely.
func (c Catalog) Validate() error {
	if len(c.Tables) == 0 {
		return fmt.Errorf("catalog has no tables")
	}
	for _, t := range c.Tables {
		if t.Name == "" {
			return fmt.Errorf("catalog table without a name")
		}
		if t.PrimaryKey == "" {
			return fmt.Errorf("table %s has no primary key", t.Name)
		}
		if _, ok := t.Column(t.PrimaryKey); !ok {
			return fmt.Errorf("table %s primary key %s is not a declared column", t.Name, t.PrimaryKey)
		}
		for _, col := range t.Columns {
			if col.Kind != ColumnKey && col.Kind != ColumnText {
				return fmt.Errorf("table %s column %s has unknown kind %q", t.Name, col.Name, col.Kind)
			}
		}
	}
	return nil
}
