package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/partwise/parts-assistant/internal/core/domain"
)

// PartsRepository runs validated structured queries against the catalog
// tables. SQL is assembled only from catalog-declared table and column names;
// user-provided values travel exclusively as bind parameters.
type PartsRepository struct {
	db      *sql.DB
	catalog domain.Catalog
}

func NewPartsRepository(db *sql.DB, catalog domain.Catalog) *PartsRepository {
	return &PartsRepository{db: db, catalog: catalog}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// Search executes one allow-listed query. Rows come back ordered by match
// quality: exact hits before prefix hits before substring hits.
func (r *PartsRepository) Search(ctx context.Context, query domain.StructuredQuery) ([]domain.StructuredRecord, error) {
	table, ok := r.catalog.Table(query.Table)
	if !ok {
		return nil, domain.WrapError(domain.ErrSchemaViolation, "structured search",
			fmt.Errorf("table %q is not allow-listed", query.Table))
	}
	if len(query.Filters) == 0 {
		return nil, nil
	}
	limit := query.Limit
	if limit <= 0 {
		limit = 20
	}

	var (
		conditions []string
		relevances []string
		args       []any
	)
	for _, filter := range query.Filters {
		column, ok := table.Column(filter.Field)
		if !ok {
			return nil, domain.WrapError(domain.ErrSchemaViolation, "structured search",
				fmt.Errorf("column %q is not allow-listed on %s", filter.Field, table.Name))
		}

		args = append(args, filter.Value)
		arg := fmt.Sprintf("$%d", len(args))

		if filter.Match == domain.MatchExact || column.Kind == domain.ColumnKey {
			conditions = append(conditions, fmt.Sprintf("%s = %s", column.Name, arg))
			relevances = append(relevances, "1.0")
			continue
		}
		conditions = append(conditions,
			fmt.Sprintf("%s ILIKE '%%' || %s || '%%'", column.Name, arg))
		relevances = append(relevances, fmt.Sprintf(
			"CASE WHEN %[1]s ILIKE %[2]s THEN 1.0 WHEN %[1]s ILIKE %[2]s || '%%' THEN 0.85 ELSE 0.7 END",
			column.Name, arg))
	}

	columns := make([]string, 0, len(table.Columns))
	for _, col := range table.Columns {
		columns = append(columns, col.Name)
	}

	relevance := relevances[0]
	if len(relevances) > 1 {
		relevance = "GREATEST(" + strings.Join(relevances, ", ") + ")"
	}

	args = append(args, limit)
	sqlText := fmt.Sprintf(
		"SELECT %s, %s AS relevance FROM %s WHERE %s ORDER BY relevance DESC, %s ASC LIMIT $%d",
		strings.Join(columns, ", "),
		relevance,
		table.Name,
		strings.Join(conditions, " AND "),
		table.PrimaryKey,
		len(args),
	)

	rows, err := r.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("structured search query: %w", err)
	}
	defer rows.Close()

	out := make([]domain.StructuredRecord, 0, limit)
	for rows.Next() {
		values := make([]sql.NullString, len(columns))
		dest := make([]any, 0, len(columns)+1)
		for i := range values {
			dest = append(dest, &values[i])
		}
		var relevanceValue float64
		dest = append(dest, &relevanceValue)

		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan structured row: %w", err)
		}

		record := domain.StructuredRecord{
			SourceTable: table.Name,
			Fields:      make(map[string]string, len(columns)),
			Relevance:   relevanceValue,
		}
		for i, col := range columns {
			if !values[i].Valid {
				continue
			}
			record.Fields[col] = values[i].String
			if col == table.PrimaryKey {
				record.PrimaryKey = values[i].String
			}
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate structured rows: %w", err)
	}
	return out, nil
}
