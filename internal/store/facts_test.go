package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"switchfacts/internal/types"
)

func newTestStore(t *testing.T) *FactStore {
	t.Helper()
	s, err := NewFactStore(filepath.Join(t.TempDir(), "nested", "facts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestReplaceAndLoad(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	facts := []types.Fact{
		types.NewFact(types.PredSourceFile, "a.cs"),
		types.NewFact(types.PredStmt, "c1", types.StmtCase, "s1", 3, "loc"),
		types.NewFact(types.PredLocalVarDecl, "e1", "v1", true, "loc"),
	}
	require.NoError(t, s.ReplaceFactsForFile(ctx, "a.cs", facts, "hash-1"))

	loaded, err := s.LoadFacts(ctx)
	require.NoError(t, err)
	want := []types.Fact{
		types.NewFact(types.PredSourceFile, "a.cs"),
		types.NewFact(types.PredStmt, "c1", types.StmtCase, "s1", int64(3), "loc"),
		types.NewFact(types.PredLocalVarDecl, "e1", "v1", types.MangleAtom("/true"), "loc"),
	}
	if diff := cmp.Diff(want, loaded["a.cs"]); diff != "" {
		t.Fatalf("loaded facts mismatch (-want +got):\n%s", diff)
	}

	states, err := s.GetFileStates(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"a.cs": "hash-1"}, states)
}

func TestReplaceOverwritesAndForgets(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.ReplaceFactsForFile(ctx, "a.cs", []types.Fact{
		types.NewFact(types.PredSourceFile, "a.cs"),
		types.NewFact(types.PredCaseShape, "c1", types.ShapeDefault),
	}, "h1"))
	require.NoError(t, s.ReplaceFactsForFile(ctx, "b.cs", []types.Fact{
		types.NewFact(types.PredSourceFile, "b.cs"),
	}, "h2"))
	require.NoError(t, s.ReplaceFactsForFile(ctx, "a.cs", []types.Fact{
		types.NewFact(types.PredSourceFile, "a.cs"),
	}, "h3"))

	n, err := s.CountFacts(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	require.NoError(t, s.ReplaceFactsForFile(ctx, "b.cs", nil, ""))
	states, err := s.GetFileStates(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"a.cs": "h3"}, states)
}

func TestRejectsUnsupportedArgs(t *testing.T) {
	s := newTestStore(t)
	err := s.ReplaceFactsForFile(context.Background(), "a.cs", []types.Fact{
		types.NewFact("weird", 1.5),
	}, "h")
	require.Error(t, err)

	states, err := s.GetFileStates(context.Background())
	require.NoError(t, err)
	require.Empty(t, states, "failed replace must roll back")
}

func TestReopenKeepsFacts(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "facts.db")

	s, err := NewFactStore(path)
	require.NoError(t, err)
	require.NoError(t, s.ReplaceFactsForFile(ctx, "a.cs", []types.Fact{types.NewFact(types.PredSourceFile, "a.cs")}, "h"))
	require.NoError(t, s.Close())

	again, err := NewFactStore(path)
	require.NoError(t, err)
	defer again.Close()
	loaded, err := again.LoadFacts(ctx)
	require.NoError(t, err)
	require.Len(t, loaded["a.cs"], 1)
}

func TestMigratesVersionOneDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`
	CREATE TABLE source_files (path TEXT PRIMARY KEY, hash TEXT NOT NULL, updated_at DATETIME);
	CREATE TABLE facts (path TEXT NOT NULL, seq INTEGER NOT NULL, predicate TEXT NOT NULL, args TEXT NOT NULL, PRIMARY KEY (path, seq));
	INSERT INTO source_files (path, hash) VALUES ('a.cs', 'h1');
	INSERT INTO facts VALUES ('a.cs', 0, 'source_file', '["a.cs"]'), ('a.cs', 1, 'source_file', '["a.cs"]');
	`)
	require.NoError(t, err)
	require.Equal(t, 1, GetSchemaVersion(db))
	require.NoError(t, db.Close())

	s, err := NewFactStore(path)
	require.NoError(t, err)
	defer s.Close()

	require.Equal(t, CurrentSchemaVersion, GetSchemaVersion(s.db))
	var count int
	require.NoError(t, s.db.QueryRow("SELECT fact_count FROM source_files WHERE path = 'a.cs'").Scan(&count))
	require.Equal(t, 2, count)

	// Re-running is a no-op.
	require.NoError(t, RunMigrations(s.db))
}
