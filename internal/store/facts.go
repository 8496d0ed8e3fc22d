// Package store persists extracted facts in SQLite, one row per fact, keyed
// by the source file that produced them, plus the content hash each file was
// extracted from.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"switchfacts/internal/logging"
	"switchfacts/internal/types"
)

// FactStore implements mangle.Persistence on SQLite.
type FactStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// NewFactStore opens (or creates) the database at path.
func NewFactStore(path string) (*FactStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &FactStore{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	logging.Store("fact store opened at %s", path)
	return s, nil
}

func (s *FactStore) initialize() error {
	schema := `
	PRAGMA journal_mode = WAL;
	PRAGMA busy_timeout = 5000;

	CREATE TABLE IF NOT EXISTS source_files (
		path TEXT PRIMARY KEY,
		hash TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS facts (
		path TEXT NOT NULL,
		seq INTEGER NOT NULL,
		predicate TEXT NOT NULL,
		args TEXT NOT NULL,
		PRIMARY KEY (path, seq)
	);
	CREATE INDEX IF NOT EXISTS idx_facts_predicate ON facts(predicate);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return RunMigrations(s.db)
}

// Path returns the database file path.
func (s *FactStore) Path() string { return s.dbPath }

// Close closes the database.
func (s *FactStore) Close() error {
	return s.db.Close()
}

// ReplaceFactsForFile atomically swaps the stored facts of file. An empty
// fact list forgets the file entirely.
func (s *FactStore) ReplaceFactsForFile(ctx context.Context, file string, facts []types.Fact, contentHash string) error {
	timer := logging.StartTimer(logging.CategoryStore, "ReplaceFactsForFile")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM facts WHERE path = ?", file); err != nil {
		return err
	}
	if len(facts) == 0 {
		if _, err := tx.ExecContext(ctx, "DELETE FROM source_files WHERE path = ?", file); err != nil {
			return err
		}
		return tx.Commit()
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO facts (path, seq, predicate, args) VALUES (?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, f := range facts {
		args, err := encodeArgs(f.Args)
		if err != nil {
			return fmt.Errorf("%s: %w", f.Predicate, err)
		}
		if _, err := stmt.ExecContext(ctx, file, i, f.Predicate, args); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO source_files (path, hash, fact_count, updated_at)
		 VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(path) DO UPDATE SET
		   hash = excluded.hash,
		   fact_count = excluded.fact_count,
		   updated_at = CURRENT_TIMESTAMP`,
		file, contentHash, len(facts),
	); err != nil {
		return err
	}
	return tx.Commit()
}

// LoadFacts returns every stored fact grouped by file, in insertion order.
func (s *FactStore) LoadFacts(ctx context.Context) (map[string][]types.Fact, error) {
	timer := logging.StartTimer(logging.CategoryStore, "LoadFacts")
	defer timer.Stop()

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT path, predicate, args FROM facts ORDER BY path, seq")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]types.Fact)
	for rows.Next() {
		var path, pred, argsJSON string
		if err := rows.Scan(&path, &pred, &argsJSON); err != nil {
			return nil, err
		}
		args, err := decodeArgs(argsJSON)
		if err != nil {
			return nil, fmt.Errorf("%s fact %s: %w", path, pred, err)
		}
		out[path] = append(out[path], types.Fact{Predicate: pred, Args: args})
	}
	return out, rows.Err()
}

// GetFileStates returns the content hash recorded for every stored file.
func (s *FactStore) GetFileStates(ctx context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT path, hash FROM source_files")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	states := make(map[string]string)
	for rows.Next() {
		var path, hash string
		if err := rows.Scan(&path, &hash); err != nil {
			return nil, err
		}
		states[path] = hash
	}
	return states, rows.Err()
}

// CountFacts returns the number of stored facts.
func (s *FactStore) CountFacts(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM facts").Scan(&n)
	return n, err
}

// arg is the JSON form of one fact argument. T is "s" (string), "a" (name
// constant) or "n" (number).
type arg struct {
	T string      `json:"t"`
	V interface{} `json:"v"`
}

func encodeArgs(args []interface{}) (string, error) {
	enc := make([]arg, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case types.MangleAtom:
			enc[i] = arg{T: "a", V: string(v)}
		case string:
			enc[i] = arg{T: "s", V: v}
		case int:
			enc[i] = arg{T: "n", V: int64(v)}
		case int64:
			enc[i] = arg{T: "n", V: v}
		case bool:
			enc[i] = arg{T: "a", V: string(types.Bool(v))}
		default:
			return "", fmt.Errorf("arg %d: unsupported type %T", i, a)
		}
	}
	data, err := json.Marshal(enc)
	return string(data), err
}

func decodeArgs(data string) ([]interface{}, error) {
	var raw []struct {
		T string          `json:"t"`
		V json.RawMessage `json:"v"`
	}
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return nil, err
	}
	out := make([]interface{}, len(raw))
	for i, r := range raw {
		switch r.T {
		case "a", "s":
			var s string
			if err := json.Unmarshal(r.V, &s); err != nil {
				return nil, fmt.Errorf("arg %d: %w", i, err)
			}
			if r.T == "a" {
				out[i] = types.MangleAtom(s)
			} else {
				out[i] = s
			}
		case "n":
			var n int64
			if err := json.Unmarshal(r.V, &n); err != nil {
				return nil, fmt.Errorf("arg %d: %w", i, err)
			}
			out[i] = n
		default:
			return nil, fmt.Errorf("arg %d: unknown tag %q", i, r.T)
		}
	}
	return out, nil
}
