package graphcache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/matsen/papergraph/internal/note"
	"github.com/matsen/papergraph/internal/reference"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource is an in-memory Source. listHook, when set, runs at the start of
// every ListPapers call with the call number (from 1). noteHook runs at the
// start of ListNotes (with "") and GetNote (with the paper ID).
type fakeSource struct {
	mu       sync.Mutex
	papers   []reference.Paper
	notes    []note.Note
	err      error
	calls    int
	listHook func(call int)
	noteHook func(paperID string)
}

func (s *fakeSource) runNoteHook(paperID string) {
	s.mu.Lock()
	hook := s.noteHook
	s.mu.Unlock()
	if hook != nil {
		hook(paperID)
	}
}

func (s *fakeSource) ListPapers(ctx context.Context) ([]reference.Paper, error) {
	s.mu.Lock()
	s.calls++
	call, hook := s.calls, s.listHook
	s.mu.Unlock()

	if hook != nil {
		hook(call)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return append([]reference.Paper(nil), s.papers...), nil
}

func (s *fakeSource) ListNotes(ctx context.Context) ([]note.Note, error) {
	s.runNoteHook("")
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return append([]note.Note(nil), s.notes...), nil
}

func (s *fakeSource) GetNote(ctx context.Context, paperID string) (*note.Note, error) {
	s.runNoteHook(paperID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	for _, n := range s.notes {
		if n.PaperID == paperID {
			found := n
			return &found, nil
		}
	}
	return nil, nil
}

func (s *fakeSource) setPapers(papers []reference.Paper) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.papers = papers
}

func (s *fakeSource) setNotes(notes []note.Note) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes = notes
}

func (s *fakeSource) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func year(y int) reference.PublicationDate {
	return reference.PublicationDate{Year: y}
}

func threePapers() []reference.Paper {
	return []reference.Paper{
		{ID: "P1", S2ID: "s1", Published: year(1980)},
		{ID: "P2", S2ID: "s2", Published: year(1990), References: []string{"s1"}},
		{ID: "P3", S2ID: "s3", Published: year(2000), References: []string{"s1", "s2"}},
	}
}

func TestCache_EmptyBeforeFirstRebuild(t *testing.T) {
	c := New(&fakeSource{})
	for _, k := range Kinds() {
		g := c.Get(k)
		require.NotNil(t, g)
		assert.Equal(t, 0, g.Len(), k.String())
	}
	assert.Equal(t, 0, c.Get(Kind(42)).Len())
}

func TestCache_RebuildReferences(t *testing.T) {
	src := &fakeSource{papers: threePapers()}
	c := New(src)

	require.NoError(t, c.RebuildReferences(context.Background()))

	refs := c.Get(References)
	assert.Equal(t, map[string][]string{"P1": {}, "P2": {"P1"}, "P3": {"P1", "P2"}}, refs.Map())

	reduced := c.Get(ReducedReferences)
	assert.Equal(t, map[string][]string{"P1": {}, "P2": {"P1"}, "P3": {"P2"}}, reduced.Map())

	assert.Equal(t, 0, c.Get(Mentions).Len(), "mentions untouched")
}

func TestCache_GetReturnsCopy(t *testing.T) {
	c := New(&fakeSource{papers: threePapers()})
	require.NoError(t, c.RebuildReferences(context.Background()))

	g := c.Get(References)
	g.AddEdge("P1", "P3")
	g.AddNode("bogus")

	fresh := c.Get(References)
	assert.Empty(t, fresh.Edges("P1"))
	assert.False(t, fresh.Has("bogus"))
}

func TestCache_RebuildIdempotent(t *testing.T) {
	src := &fakeSource{
		papers: threePapers(),
		notes:  []note.Note{{PaperID: "P3", Ops: []note.Op{note.MentionOp("P1")}}},
	}
	c := New(src)
	ctx := context.Background()

	require.NoError(t, c.RebuildAll(ctx))
	first := map[Kind]map[string][]string{}
	firstOrder := map[Kind][]string{}
	for _, k := range Kinds() {
		first[k] = c.Get(k).Map()
		firstOrder[k] = c.Get(k).Nodes()
	}

	require.NoError(t, c.RebuildAll(ctx))
	for _, k := range Kinds() {
		assert.Equal(t, first[k], c.Get(k).Map(), k.String())
		assert.Equal(t, firstOrder[k], c.Get(k).Nodes(), k.String())
	}
}

func TestCache_FetchFailureKeepsPrevious(t *testing.T) {
	src := &fakeSource{
		papers: threePapers(),
		notes:  []note.Note{{PaperID: "P2", Ops: []note.Op{note.MentionOp("P1")}}},
	}
	c := New(src)
	ctx := context.Background()
	require.NoError(t, c.RebuildAll(ctx))

	boom := errors.New("store offline")
	src.setErr(boom)
	src.setPapers(nil)

	err := c.RebuildReferences(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	err = c.RebuildMentions(ctx)
	assert.ErrorIs(t, err, boom)

	err = c.RebuildNote(ctx, "P2")
	assert.ErrorIs(t, err, boom)

	err = c.RebuildAll(ctx)
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, 3, c.Get(References).Len())
	assert.Equal(t, []string{"P2"}, c.Get(ReducedReferences).Edges("P3"))
	assert.Equal(t, []string{"P1"}, c.Get(Mentions).Edges("P2"))
}

func TestCache_FirstFetchFailureLeavesEmpty(t *testing.T) {
	src := &fakeSource{err: errors.New("nope")}
	c := New(src)
	assert.Error(t, c.RebuildAll(context.Background()))
	for _, k := range Kinds() {
		assert.Equal(t, 0, c.Get(k).Len())
	}
}

func TestCache_StaleRebuildDiscarded(t *testing.T) {
	src := &fakeSource{papers: threePapers()}
	entered := make(chan struct{})
	release := make(chan struct{})
	src.listHook = func(call int) {
		if call == 1 {
			close(entered)
			<-release
		}
	}
	c := New(src)
	ctx := context.Background()

	// The first rebuild takes its sequence number, then stalls inside the
	// fetch. It will read the new snapshot once released, but it started
	// first, so its result must lose to the second rebuild.
	slowDone := make(chan error, 1)
	go func() { slowDone <- c.RebuildReferences(ctx) }()
	<-entered

	fresh := []reference.Paper{
		{ID: "A", S2ID: "sa", Published: year(2000)},
		{ID: "B", S2ID: "sb", Published: year(2010), References: []string{"sa"}},
	}
	src.setPapers(fresh)
	require.NoError(t, c.RebuildReferences(ctx))
	assert.Equal(t, []string{"A", "B"}, c.Get(References).Nodes())
	freshSeq := c.Stats()[0].Seq

	// Swap the snapshot again; the stalled rebuild sees this one but is
	// older, so it is dropped.
	src.setPapers(threePapers())
	close(release)
	require.NoError(t, <-slowDone)

	assert.Equal(t, []string{"A", "B"}, c.Get(References).Nodes())
	assert.Equal(t, []string{"A"}, c.Get(ReducedReferences).Edges("B"))
	assert.Equal(t, freshSeq, c.Stats()[0].Seq)
}

func TestCache_ConcurrentRebuildsAndReads(t *testing.T) {
	src := &fakeSource{papers: threePapers()}
	c := New(src)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.RebuildAll(ctx))
		}()
		go func() {
			defer wg.Done()
			g := c.Get(ReducedReferences)
			// Either empty or complete, never partial.
			if g.Len() != 0 {
				assert.Equal(t, 3, g.Len())
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, []string{"P2"}, c.Get(ReducedReferences).Edges("P3"))
}

func TestCache_RebuildNote(t *testing.T) {
	src := &fakeSource{notes: []note.Note{
		{PaperID: "A", Ops: []note.Op{note.MentionOp("X")}},
		{PaperID: "B", Ops: []note.Op{note.TextOp("plain\n")}},
	}}
	c := New(src)
	ctx := context.Background()
	require.NoError(t, c.RebuildMentions(ctx))

	src.setNotes([]note.Note{
		{PaperID: "A", Ops: []note.Op{note.MentionOp("X")}},
		{PaperID: "B", Ops: []note.Op{note.MentionOp("Y"), note.MentionOp("Y")}},
		{PaperID: "C", Ops: []note.Op{note.MentionOp("A")}},
	})
	require.NoError(t, c.RebuildNote(ctx, "B"))

	g := c.Get(Mentions)
	assert.Equal(t, []string{"A", "B"}, g.Nodes(), "only B recomputed")
	assert.Equal(t, []string{"Y", "Y"}, g.Edges("B"))

	require.NoError(t, c.RebuildNote(ctx, "C"))
	assert.Equal(t, []string{"A"}, c.Get(Mentions).Edges("C"))

	// Incremental and full rebuilds agree.
	incremental := c.Get(Mentions).Map()
	require.NoError(t, c.RebuildMentions(ctx))
	assert.Equal(t, incremental, c.Get(Mentions).Map())
}

func TestCache_RebuildNoteMissingRemovesKey(t *testing.T) {
	src := &fakeSource{notes: []note.Note{{PaperID: "A"}}}
	c := New(src)
	ctx := context.Background()
	require.NoError(t, c.RebuildMentions(ctx))
	require.True(t, c.Get(Mentions).Has("A"))

	src.setNotes(nil)
	require.NoError(t, c.RebuildNote(ctx, "A"))
	assert.False(t, c.Get(Mentions).Has("A"))
}

// holdNote makes the first read of paperID ("" for a full notes listing)
// block until release is closed. entered is closed once the read is held.
func holdNote(src *fakeSource, paperID string) (entered, release chan struct{}) {
	entered = make(chan struct{})
	release = make(chan struct{})
	var once sync.Once
	src.noteHook = func(id string) {
		if id != paperID {
			return
		}
		held := false
		once.Do(func() { held = true })
		if held {
			close(entered)
			<-release
		}
	}
	return entered, release
}

func TestCache_NoteUpdatesOnDifferentPapersBothLand(t *testing.T) {
	src := &fakeSource{notes: []note.Note{
		{PaperID: "A", Ops: []note.Op{note.MentionOp("X")}},
		{PaperID: "B", Ops: []note.Op{note.MentionOp("Y")}},
	}}
	entered, release := holdNote(src, "A")
	c := New(src)
	ctx := context.Background()

	// A's update starts first and stalls; B's starts later and lands first.
	slowDone := make(chan error, 1)
	go func() { slowDone <- c.RebuildNote(ctx, "A") }()
	<-entered
	require.NoError(t, c.RebuildNote(ctx, "B"))

	close(release)
	require.NoError(t, <-slowDone)

	assert.Equal(t, map[string][]string{"A": {"X"}, "B": {"Y"}}, c.Get(Mentions).Map())
}

func TestCache_OlderUpdateOfSameNoteDiscarded(t *testing.T) {
	src := &fakeSource{notes: []note.Note{{PaperID: "A", Ops: []note.Op{note.MentionOp("old")}}}}
	entered, release := holdNote(src, "A")
	c := New(src)
	ctx := context.Background()

	slowDone := make(chan error, 1)
	go func() { slowDone <- c.RebuildNote(ctx, "A") }()
	<-entered

	src.setNotes([]note.Note{{PaperID: "A", Ops: []note.Op{note.MentionOp("new")}}})
	require.NoError(t, c.RebuildNote(ctx, "A"))

	// The stalled update now reads "new" too, so restore "old" to see which
	// result wins: the later update must.
	src.setNotes([]note.Note{{PaperID: "A", Ops: []note.Op{note.MentionOp("old")}}})
	close(release)
	require.NoError(t, <-slowDone)

	assert.Equal(t, []string{"new"}, c.Get(Mentions).Edges("A"))
}

func TestCache_NoteUpdateDuringFullRebuild(t *testing.T) {
	src := &fakeSource{notes: []note.Note{
		{PaperID: "A", Ops: []note.Op{note.MentionOp("X")}},
		{PaperID: "B", Ops: []note.Op{note.TextOp("draft\n")}},
		{PaperID: "C"},
	}}
	entered, release := holdNote(src, "")
	c := New(src)
	ctx := context.Background()

	// The full rebuild takes its sequence number, then stalls inside
	// ListNotes. It reads the snapshot only after release.
	fullDone := make(chan error, 1)
	go func() { fullDone <- c.RebuildMentions(ctx) }()
	<-entered

	require.NoError(t, c.RebuildNote(ctx, "B"))
	assert.Equal(t, []string{"B"}, c.Get(Mentions).Nodes())

	// Hand the stalled rebuild a snapshot that predates B's update.
	src.setNotes([]note.Note{
		{PaperID: "A", Ops: []note.Op{note.MentionOp("X")}},
		{PaperID: "B", Ops: []note.Op{note.MentionOp("stale")}},
		{PaperID: "C"},
	})
	close(release)
	require.NoError(t, <-fullDone)

	g := c.Get(Mentions)
	assert.Equal(t, []string{"A", "B", "C"}, g.Nodes())
	assert.Equal(t, []string{"X"}, g.Edges("A"))
	assert.Empty(t, g.Edges("B"), "B's newer update is reapplied over the full rebuild")
	assert.Empty(t, g.Edges("C"))
}

func TestCache_NoteRemovalSurvivesOlderFullRebuild(t *testing.T) {
	src := &fakeSource{notes: []note.Note{
		{PaperID: "A", Ops: []note.Op{note.MentionOp("X")}},
		{PaperID: "B", Ops: []note.Op{note.MentionOp("Y")}},
	}}
	entered, release := holdNote(src, "")
	c := New(src)
	ctx := context.Background()

	fullDone := make(chan error, 1)
	go func() { fullDone <- c.RebuildMentions(ctx) }()
	<-entered

	c.RemoveNote("B")
	close(release)
	require.NoError(t, <-fullDone)

	assert.Equal(t, []string{"A"}, c.Get(Mentions).Nodes())

	// A later full rebuild is authoritative again.
	require.NoError(t, c.RebuildMentions(ctx))
	assert.Equal(t, []string{"A", "B"}, c.Get(Mentions).Nodes())
}

func TestCache_NewerFullRebuildSupersedesNoteUpdate(t *testing.T) {
	src := &fakeSource{notes: []note.Note{{PaperID: "A", Ops: []note.Op{note.MentionOp("old")}}}}
	entered, release := holdNote(src, "A")
	c := New(src)
	ctx := context.Background()

	slowDone := make(chan error, 1)
	go func() { slowDone <- c.RebuildNote(ctx, "A") }()
	<-entered

	src.setNotes([]note.Note{{PaperID: "A", Ops: []note.Op{note.MentionOp("new")}}})
	require.NoError(t, c.RebuildMentions(ctx))

	src.setNotes([]note.Note{{PaperID: "A", Ops: []note.Op{note.MentionOp("old")}}})
	close(release)
	require.NoError(t, <-slowDone)

	assert.Equal(t, []string{"new"}, c.Get(Mentions).Edges("A"))
}

func TestCache_Handle(t *testing.T) {
	src := &fakeSource{
		papers: threePapers(),
		notes:  []note.Note{{PaperID: "P1", Ops: []note.Op{note.MentionOp("P2")}}},
	}
	c := New(src)
	ctx := context.Background()

	require.NoError(t, c.Handle(ctx, Event{Entity: EntityPaper, Op: OpCreate, ID: "P3"}))
	assert.Equal(t, 3, c.Get(References).Len())

	// A cosmetic update doesn't touch the graphs even if the store changed.
	src.setPapers(threePapers()[:2])
	require.NoError(t, c.Handle(ctx, Event{Entity: EntityPaper, Op: OpUpdate, ID: "P2"}))
	assert.Equal(t, 3, c.Get(References).Len())

	require.NoError(t, c.Handle(ctx, Event{Entity: EntityPaper, Op: OpUpdate, ID: "P2", Structural: true}))
	assert.Equal(t, 2, c.Get(References).Len())

	src.setPapers(threePapers()[:1])
	require.NoError(t, c.Handle(ctx, Event{Entity: EntityPaper, Op: OpDelete, ID: "P2"}))
	assert.Equal(t, 1, c.Get(References).Len())

	require.NoError(t, c.Handle(ctx, Event{Entity: EntityNote, Op: OpCreate, ID: "P1"}))
	assert.Equal(t, []string{"P2"}, c.Get(Mentions).Edges("P1"))

	require.NoError(t, c.Handle(ctx, Event{Entity: EntityNote, Op: OpDelete, ID: "P1"}))
	assert.False(t, c.Get(Mentions).Has("P1"))

	require.NoError(t, c.Handle(ctx, Event{Entity: "tag", Op: OpCreate, ID: "x"}))
}

func TestCache_StatsAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	src := &fakeSource{
		papers: threePapers(),
		notes:  []note.Note{{PaperID: "P1", Ops: []note.Op{note.MentionOp("P2"), note.MentionOp("P3")}}},
	}
	c := New(src, WithMetrics(reg), WithClock(func() time.Time { return at }))
	require.NoError(t, c.RebuildAll(context.Background()))

	stats := c.Stats()
	require.Len(t, stats, 3)
	assert.Equal(t, "references", stats[0].Graph)
	assert.Equal(t, 3, stats[0].Edges)
	assert.Equal(t, 2, stats[1].Edges)
	assert.Equal(t, 2, stats[2].Edges)
	assert.Equal(t, at, stats[2].BuiltAt)
	assert.Equal(t, stats[0].Seq, stats[1].Seq)

	m := c.metrics
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rebuilds.WithLabelValues("references", resultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rebuilds.WithLabelValues("mentions", resultOK)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.edges.WithLabelValues("reduced")))

	src.setErr(errors.New("offline"))
	assert.Error(t, c.RebuildReferences(context.Background()))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rebuilds.WithLabelValues("references", resultError)))
}
