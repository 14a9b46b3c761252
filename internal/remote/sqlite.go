package remote

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Store over a local SQLite database. Rows are
// stored as JSON documents in a single table keyed by (logical table,
// rowid), which keeps the store schemaless the way the hosted backend
// is. Server ids are the decimal rowid.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite creates or opens a SQLite-backed table store at path.
// Applies the same pragmas as the kv store: WAL, NORMAL synchronous,
// 5s busy timeout, single writer.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	const schema = `
		CREATE TABLE IF NOT EXISTS rows (
			id   INTEGER PRIMARY KEY AUTOINCREMENT,
			tbl  TEXT NOT NULL,
			data TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_rows_tbl ON rows(tbl)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Insert implements Store. Each row is returned with its
// server-assigned id set, in request order.
func (s *SQLiteStore) Insert(ctx context.Context, table string, rows []Row) ([]Row, error) {
	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		data, err := json.Marshal(row)
		if err != nil {
			return nil, &Error{Op: "insert", Table: table, Message: err.Error()}
		}
		res, err := s.db.ExecContext(ctx,
			"INSERT INTO rows (tbl, data) VALUES (?, ?)", table, string(data))
		if err != nil {
			return nil, &Error{Op: "insert", Table: table, Message: err.Error()}
		}
		rowid, err := res.LastInsertId()
		if err != nil {
			return nil, &Error{Op: "insert", Table: table, Message: err.Error()}
		}
		stored := cloneRow(row)
		stored["id"] = strconv.FormatInt(rowid, 10)
		if err := s.rewrite(ctx, rowid, stored); err != nil {
			return nil, err
		}
		out = append(out, stored)
	}
	return out, nil
}

// Update implements Store.
func (s *SQLiteStore) Update(ctx context.Context, table string, patch, where Row) error {
	matches, err := s.matching(ctx, table, where)
	if err != nil {
		return err
	}
	for _, rowid := range matches.order {
		row := matches.rows[rowid]
		for k, v := range patch {
			row[k] = v
		}
		if err := s.rewrite(ctx, rowid, row); err != nil {
			return err
		}
	}
	return nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, table string, where Row) error {
	matches, err := s.matching(ctx, table, where)
	if err != nil {
		return err
	}
	for _, rowid := range matches.order {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM rows WHERE id = ?", rowid); err != nil {
			return &Error{Op: "delete", Table: table, Message: err.Error()}
		}
	}
	return nil
}

// Select implements Store. Rows come back in insertion order.
func (s *SQLiteStore) Select(ctx context.Context, table string, filter Row) ([]Row, error) {
	matches, err := s.matching(ctx, table, filter)
	if err != nil {
		return nil, err
	}
	ordered := make([]Row, 0, len(matches.order))
	for _, rowid := range matches.order {
		ordered = append(ordered, matches.rows[rowid])
	}
	return ordered, nil
}

// rowSet keeps matched rows alongside their scan order so Select
// returns deterministic results.
type rowSet struct {
	rows  map[int64]Row
	order []int64
}

// matching loads every row of table whose decoded document equals
// filter on all filter keys. Filter comparison goes through JSON so
// int and float64 forms of the same number compare equal.
func (s *SQLiteStore) matching(ctx context.Context, table string, filter Row) (rowSet, error) {
	set := rowSet{rows: make(map[int64]Row)}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, data FROM rows WHERE tbl = ? ORDER BY id", table)
	if err != nil {
		return set, &Error{Op: "select", Table: table, Message: err.Error()}
	}
	defer rows.Close()

	for rows.Next() {
		var rowid int64
		var data string
		if err := rows.Scan(&rowid, &data); err != nil {
			return set, &Error{Op: "select", Table: table, Message: err.Error()}
		}
		var doc Row
		if err := json.Unmarshal([]byte(data), &doc); err != nil {
			return set, &Error{Op: "select", Table: table, Message: err.Error()}
		}
		if !rowMatches(doc, filter) {
			continue
		}
		set.rows[rowid] = doc
		set.order = append(set.order, rowid)
	}
	if err := rows.Err(); err != nil {
		return set, &Error{Op: "select", Table: table, Message: err.Error()}
	}
	return set, nil
}

func (s *SQLiteStore) rewrite(ctx context.Context, rowid int64, row Row) error {
	data, err := json.Marshal(row)
	if err != nil {
		return &Error{Op: "update", Message: err.Error()}
	}
	if _, err := s.db.ExecContext(ctx,
		"UPDATE rows SET data = ? WHERE id = ?", string(data), rowid); err != nil {
		return &Error{Op: "update", Message: err.Error()}
	}
	return nil
}

func rowMatches(doc, filter Row) bool {
	for k, want := range filter {
		got, ok := doc[k]
		if !ok || !jsonEqual(got, want) {
			return false
		}
	}
	return true
}

// jsonEqual compares two values through their JSON encoding, which
// normalizes int/float64 and time representations from callers.
func jsonEqual(a, b any) bool {
	aj, errA := json.Marshal(a)
	bj, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(aj) == string(bj)
}

func cloneRow(row Row) Row {
	out := make(Row, len(row)+1)
	for k, v := range row {
		out[k] = v
	}
	return out
}
