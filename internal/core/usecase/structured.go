package usecase

import (
	"fmt"

	"github.com/partwise/parts-assistant/internal/core/domain"
)

// QueryBuilder translates intent filters into validated StructuredQuery
// values. It never emits anything outside the catalog allow-list, and the
// match kind always follows the catalog column kind regardless of what the
// classifier suggested.
type QueryBuilder struct {
	catalog    domain.Catalog
	maxResults int
}

func NewQueryBuilder(catalog domain.Catalog, maxResults int) *QueryBuilder {
	if maxResults <= 0 {
		maxResults = 20
	}
	return &QueryBuilder{
		catalog:    catalog,
		maxResults: maxResults,
	}
}

// Build groups the intent's filters by owning table and produces one query
// per table. A filter naming a field outside the allow-list fails the whole
// build with SchemaViolation.
func (b *QueryBuilder) Build(intent domain.QueryIntent) ([]domain.StructuredQuery, error) {
	if len(intent.Filters) == 0 {
		return nil, nil
	}

	grouped := make(map[string][]domain.FieldFilter)
	order := make([]string, 0, len(b.catalog.Tables))

	for _, filter := range intent.Filters {
		table, column, ok := b.owningColumn(filter.Field)
		if !ok {
			return nil, domain.WrapError(domain.ErrSchemaViolation, "build structured query",
				fmt.Errorf("field %q is not allow-listed", filter.Field))
		}

		match := domain.MatchFuzzy
		if column.Kind == domain.ColumnKey {
			match = domain.MatchExact
		}

		if _, seen := grouped[table.Name]; !seen {
			order = append(order, table.Name)
		}
		grouped[table.Name] = append(grouped[table.Name], domain.FieldFilter{
			Field: filter.Field,
			Value: filter.Value,
			Match: match,
		})
	}

	queries := make([]domain.StructuredQuery, 0, len(order))
	for _, name := range order {
		queries = append(queries, domain.StructuredQuery{
			Table:   name,
			Filters: grouped[name],
			Limit:   b.maxResults,
		})
	}
	return queries, nil
}

// owningColumn finds the first catalog table declaring the field. Catalog
// order is the resolution order, so parts wins for shared column names.
func (b *QueryBuilder) owningColumn(field string) (domain.Table, domain.Column, bool) {
	for _, table := range b.catalog.Tables {
		if column, ok := table.Column(field); ok {
			return table, column, true
		}
	}
	return domain.Table{}, domain.Column{}, false
}
