package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "rules.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestSQLiteStore_SaveAndLatest(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	first, err := s.SaveRuleset(ctx, RulesetRecord{Version: "2024.1", Source: "file:a.json", Document: []byte(`{"versao":"2024.1"}`)})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, Checksum([]byte(`{"versao":"2024.1"}`)), first.Checksum)

	time.Sleep(10 * time.Millisecond)
	second, err := s.SaveRuleset(ctx, RulesetRecord{Version: "2024.2", Document: []byte(`{"versao":"2024.2"}`)})
	require.NoError(t, err)

	latest, err := s.LatestRuleset(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
	assert.Equal(t, `{"versao":"2024.2"}`, string(latest.Document))

	got, err := s.GetRuleset(ctx, "2024.1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, "file:a.json", got.Source)

	got, err = s.GetRuleset(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024.2", got.Version)
}

func TestSQLiteStore_DuplicateChecksumReturnsExisting(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	doc := []byte("{\"versao\":\"x\"}\n")
	a, err := s.SaveRuleset(ctx, RulesetRecord{Version: "x", Document: doc})
	require.NoError(t, err)
	b, err := s.SaveRuleset(ctx, RulesetRecord{Version: "x-again", Document: []byte(`  {"versao":"x"}  `)})
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, "x", b.Version)

	list, err := s.ListRulesets(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Nil(t, list[0].Document)
}

func TestSQLiteStore_NotFound(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	_, err := s.LatestRuleset(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetRuleset(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_RejectsEmptyDocument(t *testing.T) {
	s := newTestSQLite(t)
	_, err := s.SaveRuleset(context.Background(), RulesetRecord{Version: "empty", Document: []byte("   ")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty ruleset document")
}

func TestSQLiteStore_ListNewestFirst(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	for _, v := range []string{"a", "b", "c"} {
		_, err := s.SaveRuleset(ctx, RulesetRecord{Version: v, Document: []byte(`{"versao":"` + v + `"}`)})
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
	}

	list, err := s.ListRulesets(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c", list[0].Version)
	assert.Equal(t, "b", list[1].Version)
}

func TestOpen(t *testing.T) {
	s, err := Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "open.db"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Open(context.Background(), "mongo", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown driver")
}
