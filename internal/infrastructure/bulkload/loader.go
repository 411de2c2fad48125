// Package bulkload imports tabular part/repair/blog exports into the
// allow-listed Postgres tables. It accepts xlsx workbooks and csv files with
// a header row naming catalog columns.
package bulkload

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/partwise/parts-assistant/internal/core/domain"
)

type Loader struct {
	db      *sql.DB
	catalog domain.Catalog
}

func New(db *sql.DB, catalog domain.Catalog) *Loader {
	return &Loader{db: db, catalog: catalog}
}

// LoadFile imports one file into table and returns the number of rows
// written. Existing rows with the same primary key are updated in place.
func (l *Loader) LoadFile(ctx context.Context, table, path string) (int, error) {
	var (
		header []string
		rows   [][]string
		err    error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		header, rows, err = readWorkbook(path)
	case ".csv":
		header, rows, err = readCSV(path)
	default:
		return 0, domain.WrapError(domain.ErrInvalidInput, "load file",
			fmt.Errorf("unsupported file type %q", filepath.Ext(path)))
	}
	if err != nil {
		return 0, err
	}
	return l.loadRows(ctx, table, header, rows)
}

// loadRows validates the header against the catalog and upserts every row in
// one transaction. Only catalog-declared identifiers reach the SQL text; cell
// values always bind as parameters.
func (l *Loader) loadRows(ctx context.Context, table string, header []string, rows [][]string) (int, error) {
	spec, ok := l.catalog.Table(table)
	if !ok {
		return 0, domain.WrapError(domain.ErrSchemaViolation, "bulk load",
			fmt.Errorf("table %q is not allow-listed", table))
	}
	if len(header) == 0 {
		return 0, domain.WrapError(domain.ErrInvalidInput, "bulk load", fmt.Errorf("missing header row"))
	}

	pkIndex := -1
	for i, name := range header {
		header[i] = strings.TrimSpace(strings.ToLower(name))
		if _, ok := spec.Column(header[i]); !ok {
			return 0, domain.WrapError(domain.ErrSchemaViolation, "bulk load",
				fmt.Errorf("column %q is not allow-listed on table %q", header[i], table))
		}
		if header[i] == spec.PrimaryKey {
			pkIndex = i
		}
	}
	if pkIndex < 0 {
		return 0, domain.WrapError(domain.ErrSchemaViolation, "bulk load",
			fmt.Errorf("header lacks primary key column %q", spec.PrimaryKey))
	}

	statement := upsertStatement(table, spec.PrimaryKey, header)

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin bulk load: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	written := 0
	for i, row := range rows {
		if len(row) != len(header) {
			return 0, domain.WrapError(domain.ErrInvalidInput, "bulk load",
				fmt.Errorf("row %d has %d cells, header has %d", i+2, len(row), len(header)))
		}
		if strings.TrimSpace(row[pkIndex]) == "" {
			continue
		}

		args := make([]any, len(row))
		for j, cell := range row {
			args[j] = strings.TrimSpace(cell)
		}
		if _, err := tx.ExecContext(ctx, statement, args...); err != nil {
			return 0, fmt.Errorf("upsert row %d into %s: %w", i+2, table, err)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit bulk load: %w", err)
	}
	return written, nil
}

func upsertStatement(table, primaryKey string, columns []string) string {
	placeholders := make([]string, len(columns))
	updates := make([]string, 0, len(columns))
	for i, col := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		if col != primaryKey {
			updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
		}
	}

	statement := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO",
		table,
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
		primaryKey,
	)
	if len(updates) == 0 {
		return statement + " NOTHING"
	}
	return statement + " UPDATE SET " + strings.Join(updates, ", ")
}

func readWorkbook(path string) ([]string, [][]string, error) {
	file, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open workbook: %w", err)
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := file.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("sheet %q is empty", sheets[0])
	}
	return padRows(rows[0], rows[1:])
}

func readCSV(path string) ([]string, [][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open csv: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("csv file is empty")
	}
	return records[0], records[1:], nil
}

// padRows right-pads short xlsx rows; excelize drops trailing empty cells.
func padRows(header []string, rows [][]string) ([]string, [][]string, error) {
	padded := make([][]string, len(rows))
	for i, row := range rows {
		if len(row) < len(header) {
			filled := make([]string, len(header))
			copy(filled, row)
			row = filled
		}
		padded[i] = row
	}
	return header, padded, nil
}
