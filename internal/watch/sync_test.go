package watch

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"

	"github.com/matsen/papergraph/internal/config"
	"github.com/matsen/papergraph/internal/graphcache"
	"github.com/matsen/papergraph/internal/note"
	"github.com/matsen/papergraph/internal/reference"
	"github.com/matsen/papergraph/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupRepo creates a repository with the given sources and an open cache DB.
func setupRepo(t *testing.T, papers []reference.Paper, notes []note.Note) (string, *storage.DB) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(config.CachePath(root), 0755))
	require.NoError(t, storage.WriteAll(config.PapersPath(root), papers))
	require.NoError(t, storage.WriteAllNotes(config.NotesPath(root), notes))

	db, err := storage.OpenDB(config.DBPath(root))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return root, db
}

func TestSyncer(t *testing.T) {
	ctx := context.Background()
	papers := []reference.Paper{
		paper("A", "sa", 2000),
		paper("B", "sb", 2001, "sa"),
	}
	notes := []note.Note{{PaperID: "B", Ops: []note.Op{note.MentionOp("A")}}}
	root, db := setupRepo(t, papers, notes)

	cache := graphcache.New(db)
	s := NewSyncer(root, db, cache, nil)
	require.NoError(t, s.Prime(ctx))

	assert.Equal(t, []string{"A"}, cache.Get(graphcache.References).Edges("B"))
	assert.Equal(t, []string{"A"}, cache.Get(graphcache.Mentions).Edges("B"))

	// Nothing changed on disk.
	events, err := s.Sync(ctx)
	require.NoError(t, err)
	assert.Empty(t, events)

	papers = append(papers, paper("C", "sc", 2002, "sa", "sb"))
	require.NoError(t, storage.WriteAll(config.PapersPath(root), papers))
	require.NoError(t, storage.WriteAllNotes(config.NotesPath(root), nil))

	events, err = s.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, []graphcache.Event{
		{Entity: graphcache.EntityPaper, Op: graphcache.OpCreate, ID: "C"},
		{Entity: graphcache.EntityNote, Op: graphcache.OpDelete, ID: "B"},
	}, events)

	assert.Equal(t, []string{"B"}, cache.Get(graphcache.ReducedReferences).Edges("C"))
	assert.False(t, cache.Get(graphcache.Mentions).Has("B"))

	n, err := db.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	n, err = db.CountNotes()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSyncerKeepsStateOnBadSource(t *testing.T) {
	ctx := context.Background()
	root, db := setupRepo(t, []reference.Paper{paper("A", "sa", 2000)}, nil)
	cache := graphcache.New(db)
	s := NewSyncer(root, db, cache, nil)
	require.NoError(t, s.Prime(ctx))

	require.NoError(t, os.WriteFile(config.PapersPath(root), []byte(`{"id":"A"`), 0644))
	_, err := s.Sync(ctx)
	assert.Error(t, err)

	assert.True(t, cache.Get(graphcache.References).Has("A"))
	n, err := db.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// flakySource wraps a Source and fails ListPapers while failing is set.
type flakySource struct {
	graphcache.Source
	failing atomic.Bool
}

func (f *flakySource) ListPapers(ctx context.Context) ([]reference.Paper, error) {
	if f.failing.Load() {
		return nil, errors.New("database is locked")
	}
	return f.Source.ListPapers(ctx)
}

func TestSyncerRetriesAfterHandlerFailure(t *testing.T) {
	ctx := context.Background()
	papers := []reference.Paper{paper("A", "sa", 2000)}
	root, db := setupRepo(t, papers, nil)

	src := &flakySource{Source: db}
	cache := graphcache.New(src)
	s := NewSyncer(root, db, cache, nil)
	require.NoError(t, s.Prime(ctx))

	papers = append(papers, paper("B", "sb", 2001, "sa"))
	require.NoError(t, storage.WriteAll(config.PapersPath(root), papers))

	src.failing.Store(true)
	_, err := s.Sync(ctx)
	require.Error(t, err)
	assert.Equal(t, []string{"A"}, cache.Get(graphcache.References).Nodes(), "previous graph kept")

	// The source recovers without any further edit; the next sync redoes the work.
	src.failing.Store(false)
	events, err := s.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, []graphcache.Event{
		{Entity: graphcache.EntityPaper, Op: graphcache.OpCreate, ID: "B"},
	}, events)
	assert.Equal(t, []string{"A"}, cache.Get(graphcache.References).Edges("B"))

	events, err = s.Sync(ctx)
	require.NoError(t, err)
	assert.Empty(t, events)
}
