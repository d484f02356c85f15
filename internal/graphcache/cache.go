// Package graphcache holds the derived citation and mention graphs in memory
// and rebuilds them when the paper/notes store changes.
//
// Every rebuild draws a sequence number before it reads its snapshot. A full
// rebuild is installed only if no newer full rebuild of that graph has been
// installed, so a slow rebuild that finishes late can never replace a fresher
// one. Single-note updates to the mentions graph only compete with updates to
// the same note and with full rebuilds; a note update newer than the installed
// full rebuild is reapplied on top of it. Rebuilds may overlap; installs are
// serialized and readers never see a graph mid-update.
package graphcache

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/matsen/papergraph/internal/graph"
	"github.com/matsen/papergraph/internal/logger"
	"github.com/matsen/papergraph/internal/note"
	"github.com/matsen/papergraph/internal/reference"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

// Source is the paper/notes store the cache reads snapshots from.
type Source interface {
	ListPapers(ctx context.Context) ([]reference.Paper, error)
	ListNotes(ctx context.Context) ([]note.Note, error)
	// GetNote returns nil, nil when paperID has no note.
	GetNote(ctx context.Context, paperID string) (*note.Note, error)
}

// Stats describes one cached graph.
type Stats struct {
	Graph   string    `json:"graph"`
	Nodes   int       `json:"nodes"`
	Edges   int       `json:"edges"`
	Seq     uint64    `json:"seq"`
	BuiltAt time.Time `json:"built_at,omitempty"`
}

// Cache owns the three derived graphs.
type Cache struct {
	source  Source
	log     *logger.Logger
	metrics *metrics
	now     func() time.Time

	seq atomic.Uint64

	mu        sync.RWMutex
	graphs    [numKinds]*graph.Graph
	installed [numKinds]uint64 // newest change applied, for Stats
	builtAt   [numKinds]time.Time

	// fullSeq is the sequence of the installed full rebuild per kind.
	fullSeq [numKinds]uint64
	// patches holds the newest single-note update per paper that is newer
	// than fullSeq[Mentions].
	patches map[string]notePatch
}

// notePatch is one note's mentions as of seq. A nil note means it was removed.
type notePatch struct {
	seq  uint64
	note *note.Note
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *logger.Logger) Option {
	return func(c *Cache) {
		c.log = l
	}
}

// WithMetrics registers rebuild metrics with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *Cache) {
		c.metrics = newMetrics(reg)
	}
}

// WithClock sets the time source used for BuiltAt (for testing).
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// New creates a cache with all graphs empty. Nothing is read from source
// until a rebuild is requested.
func New(source Source, opts ...Option) *Cache {
	c := &Cache{
		source: source,
		log:     logger.Nop(),
		now:     time.Now,
		patches: make(map[string]notePatch),
	}
	for _, opt := range opts {
		opt(c)
	}
	for k := range c.graphs {
		c.graphs[k] = graph.New()
	}
	return c
}

// Get returns a copy of the current graph of the given kind. Before the first
// successful rebuild the graph is empty. Unknown kinds yield an empty graph.
func (c *Cache) Get(k Kind) *graph.Graph {
	if !k.valid() {
		return graph.New()
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.graphs[k].Clone()
}

// Stats reports the size and freshness of every graph.
func (c *Cache) Stats() []Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := make([]Stats, 0, numKinds)
	for _, k := range Kinds() {
		stats = append(stats, Stats{
			Graph:   k.String(),
			Nodes:   c.graphs[k].Len(),
			Edges:   c.graphs[k].EdgeCount(),
			Seq:     c.installed[k],
			BuiltAt: c.builtAt[k],
		})
	}
	return stats
}

// RebuildAll rebuilds the reference graphs and the mentions graph in
// parallel. It returns the first error; the other rebuild still completes.
func (c *Cache) RebuildAll(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error { return c.RebuildReferences(ctx) })
	g.Go(func() error { return c.RebuildMentions(ctx) })
	return g.Wait()
}

// RebuildReferences recomputes the reference graph and its transitive
// reduction from a fresh paper snapshot. If the snapshot can't be read the
// cached graphs are kept and the error is returned.
func (c *Cache) RebuildReferences(ctx context.Context) error {
	seq := c.seq.Add(1)
	start := c.now()
	log := c.log.With("graph", References.String(), "seq", seq)
	log.Debug("rebuilding reference graphs")

	papers, err := c.source.ListPapers(ctx)
	if err != nil {
		c.metrics.observe(References, resultError, 0)
		log.Error("reference rebuild abandoned", "error", err)
		return fmt.Errorf("listing papers: %w", err)
	}

	refs := graph.BuildReferences(papers)
	reduced := graph.TransitiveReduction(refs, refs.Nodes())

	c.mu.Lock()
	if seq < c.fullSeq[References] {
		installed := c.fullSeq[References]
		c.mu.Unlock()
		c.metrics.observe(References, resultStale, 0)
		log.Info("discarding stale reference rebuild", "installed", installed)
		return nil
	}
	builtAt := c.now()
	c.fullSeq[References] = seq
	c.fullSeq[ReducedReferences] = seq
	c.install(References, refs, seq, builtAt)
	c.install(ReducedReferences, reduced, seq, builtAt)
	c.mu.Unlock()

	elapsed := builtAt.Sub(start)
	c.metrics.observe(References, resultOK, elapsed)
	c.metrics.size(References, refs.Len(), refs.EdgeCount())
	c.metrics.size(ReducedReferences, reduced.Len(), reduced.EdgeCount())
	log.Info("rebuilt reference graphs",
		"papers", len(papers),
		"edges", refs.EdgeCount(),
		"reduced_edges", reduced.EdgeCount(),
		"elapsed", elapsed,
	)
	return nil
}

// RebuildMentions recomputes the mentions graph from a fresh notes snapshot.
func (c *Cache) RebuildMentions(ctx context.Context) error {
	seq := c.seq.Add(1)
	start := c.now()
	log := c.log.With("graph", Mentions.String(), "seq", seq)
	log.Debug("rebuilding mentions graph")

	notes, err := c.source.ListNotes(ctx)
	if err != nil {
		c.metrics.observe(Mentions, resultError, 0)
		log.Error("mentions rebuild abandoned", "error", err)
		return fmt.Errorf("listing notes: %w", err)
	}

	mentions := graph.BuildMentions(notes)

	c.mu.Lock()
	if seq < c.fullSeq[Mentions] {
		installed := c.fullSeq[Mentions]
		c.mu.Unlock()
		c.metrics.observe(Mentions, resultStale, 0)
		log.Info("discarding stale mentions rebuild", "installed", installed)
		return nil
	}
	reapplied := c.reapplyPatches(mentions, seq)
	builtAt := c.now()
	c.fullSeq[Mentions] = seq
	c.install(Mentions, mentions, max(seq, c.installed[Mentions]), builtAt)
	c.mu.Unlock()

	c.metrics.observe(Mentions, resultOK, builtAt.Sub(start))
	c.metrics.size(Mentions, mentions.Len(), mentions.EdgeCount())
	log.Info("rebuilt mentions graph",
		"notes", len(notes),
		"edges", mentions.EdgeCount(),
		"reapplied_notes", reapplied,
	)
	return nil
}

// reapplyPatches applies, in sequence order, the note updates newer than a
// full rebuild drawn at seq, and forgets the older ones. Callers hold c.mu.
func (c *Cache) reapplyPatches(g *graph.Graph, seq uint64) int {
	newer := make([]string, 0, len(c.patches))
	for id, p := range c.patches {
		if p.seq > seq {
			newer = append(newer, id)
		} else {
			delete(c.patches, id)
		}
	}
	sort.Slice(newer, func(i, j int) bool {
		return c.patches[newer[i]].seq < c.patches[newer[j]].seq
	})
	for _, id := range newer {
		applyPatch(g, id, c.patches[id].note)
	}
	return len(newer)
}

func applyPatch(g *graph.Graph, paperID string, n *note.Note) {
	if n == nil {
		g.RemoveNode(paperID)
		return
	}
	g.SetEdges(paperID, n.Mentions())
}

// RebuildNote recomputes the mentions of a single note in place. If the note
// no longer exists its key is removed.
func (c *Cache) RebuildNote(ctx context.Context, paperID string) error {
	seq := c.seq.Add(1)
	log := c.log.With("graph", Mentions.String(), "seq", seq, "paper", paperID)

	n, err := c.source.GetNote(ctx, paperID)
	if err != nil {
		c.metrics.observe(Mentions, resultError, 0)
		log.Error("note rebuild abandoned", "error", err)
		return fmt.Errorf("getting note %s: %w", paperID, err)
	}

	if !c.patchNote(paperID, n, seq) {
		log.Info("discarding stale note update")
		return nil
	}
	log.Debug("updated note mentions", "deleted", n == nil)
	return nil
}

// RemoveNote drops a deleted note's entry from the mentions graph.
func (c *Cache) RemoveNote(paperID string) {
	seq := c.seq.Add(1)
	if c.patchNote(paperID, nil, seq) {
		c.log.Debug("removed note mentions", "paper", paperID, "seq", seq)
	}
}

// patchNote installs one note's mentions as of seq. It reports false when a
// newer update of the same note, or a full rebuild that started later, has
// already been installed.
func (c *Cache) patchNote(paperID string, n *note.Note, seq uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if seq < c.fullSeq[Mentions] {
		c.metrics.observe(Mentions, resultStale, 0)
		return false
	}
	if prev, ok := c.patches[paperID]; ok && seq < prev.seq {
		c.metrics.observe(Mentions, resultStale, 0)
		return false
	}

	// Copy on write: the stored graph only changes as a whole under the lock.
	updated := c.graphs[Mentions].Clone()
	applyPatch(updated, paperID, n)
	c.patches[paperID] = notePatch{seq: seq, note: n}
	c.install(Mentions, updated, max(seq, c.installed[Mentions]), c.now())
	c.metrics.observe(Mentions, resultOK, 0)
	c.metrics.size(Mentions, updated.Len(), updated.EdgeCount())
	return true
}

// install stores g as the current graph of kind k. Callers hold c.mu.
func (c *Cache) install(k Kind, g *graph.Graph, seq uint64, at time.Time) {
	c.graphs[k] = g
	c.installed[k] = seq
	c.builtAt[k] = at
}
