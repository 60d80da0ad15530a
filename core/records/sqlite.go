package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"

	_ "modernc.org/sqlite"
)

var tableName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// SQLiteStore persists records of one stream to a SQLite table.
type SQLiteStore[T Record] struct {
	db    *sql.DB
	table string
}

// NewSQLiteStore opens or creates the database at path and ensures the
// stream table exists.
func NewSQLiteStore[T Record](path, table string) (*SQLiteStore[T], error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        ts INTEGER,
        entity TEXT,
        record TEXT
    );`, table)
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore[T]{db: db, table: table}, nil
}

// Append writes the record to the table.
func (s *SQLiteStore[T]) Append(ctx context.Context, rec T) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (ts, entity, record) VALUES (?, ?, ?)`, s.table),
		rec.RecordTime().UnixNano(), rec.RecordEntity(), string(b))
	return err
}

// Query returns records matching q in insertion order.
func (s *SQLiteStore[T]) Query(ctx context.Context, q Query) ([]T, error) {
	var args []any
	query := fmt.Sprintf(`SELECT record FROM %s WHERE 1=1`, s.table)
	if !q.Start.IsZero() {
		query += ` AND ts >= ?`
		args = append(args, q.Start.UnixNano())
	}
	if !q.End.IsZero() {
		query += ` AND ts <= ?`
		args = append(args, q.End.UnixNano())
	}
	if q.EntityID != "" {
		query += ` AND entity = ?`
		args = append(args, q.EntityID)
	}
	query += ` ORDER BY id`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []T
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var r T
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		res = append(res, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return newest(res, q.Limit), nil
}

// Close closes the underlying database.
func (s *SQLiteStore[T]) Close() error { return s.db.Close() }
