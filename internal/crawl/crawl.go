// Package crawl builds a citation graph by breadth-first expansion from a
// seed document, following references and citations level by level.
package crawl

import (
	"context"
	"encoding/json"

	"github.com/matsen/papernet/internal/cache"
	"github.com/matsen/papernet/internal/crossref"
	"github.com/matsen/papernet/internal/docid"
	"github.com/matsen/papernet/internal/graph"
	"github.com/matsen/papernet/internal/metrics"
	"github.com/matsen/papernet/internal/reference"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// MetadataSource fetches raw metadata records. A false result means no
// value could be obtained.
type MetadataSource interface {
	FetchMetadata(ctx context.Context, id string) (json.RawMessage, bool)
}

// CitationSource fetches the ids of documents citing id, at most maxCount.
type CitationSource interface {
	FetchCitingDocuments(ctx context.Context, id string, maxCount int) ([]string, bool)
}

// Crawler runs one crawl. Create it with New.
type Crawler struct {
	opts      Options
	metaSrc   MetadataSource
	citeSrc   CitationSource
	metaCache *cache.Cache[json.RawMessage]
	citeCache *cache.Cache[[]string]
	graph     *graph.Graph
	logger    *zap.Logger
	metrics   *metrics.Collector
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithCaches sets the metadata and citation caches.
func WithCaches(meta *cache.Cache[json.RawMessage], cites *cache.Cache[[]string]) Option {
	return func(c *Crawler) {
		c.metaCache = meta
		c.citeCache = cites
	}
}

// WithGraph starts the crawl from an existing graph.
func WithGraph(g *graph.Graph) Option {
	return func(c *Crawler) {
		c.graph = g
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Crawler) {
		c.logger = l
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Crawler) {
		c.metrics = m
	}
}

// New validates opts and creates a crawler.
func New(opts Options, metaSrc MetadataSource, citeSrc CitationSource, options ...Option) (*Crawler, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	c := &Crawler{
		opts:    opts,
		metaSrc: metaSrc,
		citeSrc: citeSrc,
		logger:  zap.NewNop(),
	}
	for _, opt := range options {
		opt(c)
	}
	if c.metaCache == nil {
		c.metaCache = cache.New[json.RawMessage](cache.NameMetadata, c.metrics)
	}
	if c.citeCache == nil {
		c.citeCache = cache.New[[]string](cache.NameCitations, c.metrics)
	}
	if c.graph == nil {
		c.graph = graph.New()
	}
	return c, nil
}

// Result summarizes a finished crawl.
type Result struct {
	Graph         *graph.Graph
	Batches       int
	Dropped       int  // New documents not added because the node budget was full
	Pending       int  // Frontier entries left unprocessed
	BudgetReached bool // The graph holds MaxTotalNodes nodes
}

// entry is a frontier item: a document to process and how it was reached.
type entry struct {
	id    string
	depth int
	from  string
	role  reference.Role
}

// fetchResult is one entry's metadata or citation fetch.
type fetchResult[V any] struct {
	value V
	ok    bool
}

// crawlState is the mutable state of one Run.
type crawlState struct {
	frontier []entry
	seen     map[string]bool
	dropped  int
}

// Run crawls until the frontier is empty or the node budget is full.
// Unreachable documents appear as Unknown nodes; fetch failures never
// fail the run. A cancelled ctx stops the crawl between batches and
// returns the partial graph with ctx's error; a batch interrupted while
// fetching metadata is not applied and counts as pending.
func (c *Crawler) Run(ctx context.Context) (*Result, error) {
	start := docid.Canonicalize(c.opts.StartID)
	st := &crawlState{
		frontier: []entry{{id: start, depth: 0, role: reference.RoleInput}},
		seen:     map[string]bool{start: true},
	}
	res := &Result{Graph: c.graph}

	c.logger.Info("starting crawl",
		zap.String("start", start),
		zap.Int("max_depth", c.opts.MaxDepth),
		zap.Int("max_nodes", c.opts.MaxTotalNodes))

	for len(st.frontier) > 0 && c.nodeCount() < c.opts.MaxTotalNodes {
		if err := ctx.Err(); err != nil {
			c.finish(res, st)
			return res, err
		}

		n := min(len(st.frontier), c.opts.BatchSize())
		batch := st.frontier[:n]
		st.frontier = st.frontier[n:]

		c.logger.Debug("processing batch",
			zap.Int("batch", res.Batches+1),
			zap.Int("size", len(batch)),
			zap.Int("frontier", len(st.frontier)),
			zap.Int("nodes", c.nodeCount()))

		metas := c.fetchMetadata(ctx, batch)
		if err := ctx.Err(); err != nil {
			// Interrupted fetches are not failures; the batch stays pending.
			st.frontier = append(append([]entry(nil), batch...), st.frontier...)
			c.finish(res, st)
			return res, err
		}
		res.Batches++
		c.metrics.IncBatch()

		works := make([]*crossref.Work, len(batch))
		expand := make([]bool, len(batch))
		for i, e := range batch {
			works[i], expand[i] = c.place(st, e, metas[i])
		}
		citing := c.fetchCitations(ctx, batch, expand)
		for i, e := range batch {
			if expand[i] {
				c.expand(st, e, works[i], citing[i])
			}
		}

		nodes, edges := c.graph.Size()
		c.metrics.SetGraphSize(nodes, edges)
	}

	c.finish(res, st)
	return res, nil
}

func (c *Crawler) finish(res *Result, st *crawlState) {
	res.Dropped = st.dropped
	res.Pending = len(st.frontier)
	res.BudgetReached = c.nodeCount() >= c.opts.MaxTotalNodes
	nodes, edges := c.graph.Size()
	c.metrics.SetGraphSize(nodes, edges)

	if res.BudgetReached {
		c.logger.Info("node budget reached",
			zap.Int("max_nodes", c.opts.MaxTotalNodes),
			zap.Int("dropped", res.Dropped),
			zap.Int("pending", res.Pending))
	}
	c.logger.Info("crawl finished",
		zap.Int("nodes", nodes),
		zap.Int("edges", edges),
		zap.Int("batches", res.Batches),
		zap.Int(c.metaCache.Name()+"_cached", c.metaCache.Len()),
		zap.Int(c.citeCache.Name()+"_cached", c.citeCache.Len()))
}

// fetchMetadata fetches every entry's metadata concurrently and returns
// the results in batch order. Placeholder ids are never sent to a source.
func (c *Crawler) fetchMetadata(ctx context.Context, batch []entry) []fetchResult[json.RawMessage] {
	results := make([]fetchResult[json.RawMessage], len(batch))
	var g errgroup.Group
	g.SetLimit(c.opts.BatchSize())
	for i, e := range batch {
		if docid.IsPlaceholder(e.id) {
			continue
		}
		g.Go(func() error {
			r := &results[i]
			r.value, r.ok = c.metaCache.GetOrFetch(ctx, e.id, func(ctx context.Context) (json.RawMessage, bool) {
				return c.metaSrc.FetchMetadata(ctx, e.id)
			})
			return nil
		})
	}
	// Fetches report failure through their results, never as errors.
	_ = g.Wait()
	return results
}

// fetchCitations fetches the citing lists of the entries selected by
// expand, concurrently, in batch order.
func (c *Crawler) fetchCitations(ctx context.Context, batch []entry, expand []bool) []fetchResult[[]string] {
	results := make([]fetchResult[[]string], len(batch))
	if c.opts.MaxPerNodeCites == 0 {
		return results
	}
	var g errgroup.Group
	g.SetLimit(c.opts.BatchSize())
	for i, e := range batch {
		if !expand[i] || docid.IsPlaceholder(e.id) {
			continue
		}
		g.Go(func() error {
			r := &results[i]
			r.value, r.ok = c.citeCache.GetOrFetch(ctx, e.id, func(ctx context.Context) ([]string, bool) {
				return c.citeSrc.FetchCitingDocuments(ctx, e.id, c.opts.MaxPerNodeCites)
			})
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// place merges one entry into the graph. It returns the entry's parsed
// metadata and whether its neighbours should be queued: the entry is
// within depth and the node budget still has room.
func (c *Crawler) place(st *crawlState, e entry, r fetchResult[json.RawMessage]) (*crossref.Work, bool) {
	var work *crossref.Work
	if r.ok {
		work = crossref.ParseWork(r.value)
	}
	if work == nil {
		// Placeholders and failed fetches fall back to whatever the cache holds.
		if cached, ok := c.metaCache.Get(e.id); ok {
			work = crossref.ParseWork(cached)
		}
	}

	var md *reference.Metadata
	if work != nil {
		m := work.Metadata()
		md = &m
	}

	if !c.graph.Has(e.id) && c.nodeCount() >= c.opts.MaxTotalNodes {
		st.dropped++
		c.logger.Debug("node budget full, dropping document", zap.String("id", e.id))
		return nil, false
	}
	c.graph.UpsertNode(e.id, e.role, e.from, md)
	c.graph.Link(e.role, e.from, e.id)

	return work, c.expandable(e) && c.nodeCount() < c.opts.MaxTotalNodes
}

// expand queues an entry's references, then its citing documents.
// Entries are expanded in frontier order.
func (c *Crawler) expand(st *crawlState, e entry, work *crossref.Work, citing fetchResult[[]string]) {
	if work != nil {
		c.expandReferences(st, e, work.References)
	}
	if citing.ok {
		c.expandCitations(st, e, citing.value)
	}
}

// expandable reports whether entries discovered from e are within depth.
func (c *Crawler) expandable(e entry) bool {
	return e.depth+1 <= c.opts.MaxDepth
}

func (c *Crawler) expandReferences(st *crawlState, e entry, refs []reference.RawReference) {
	if len(refs) > c.opts.MaxPerNodeRefs {
		refs = refs[:c.opts.MaxPerNodeRefs]
	}
	for _, ref := range refs {
		var child string
		if ref.HasDOI() {
			child = docid.Canonicalize(ref.DOI.String())
		} else {
			title, authors, year := docid.ExtractReferenceFields(ref)
			if title == "" {
				continue
			}
			child = docid.SynthesizePlaceholder(title, authors, year)
			c.metaCache.PutIfAbsent(child, crossref.PlaceholderResponse(title, authors, year))
		}
		c.enqueue(st, entry{id: child, depth: e.depth + 1, from: e.id, role: reference.RoleReference})
	}
}

func (c *Crawler) expandCitations(st *crawlState, e entry, citing []string) {
	if len(citing) > c.opts.MaxPerNodeCites {
		citing = citing[:c.opts.MaxPerNodeCites]
	}
	for _, id := range citing {
		child := docid.Canonicalize(id)
		if child == "" {
			continue
		}
		c.enqueue(st, entry{id: child, depth: e.depth + 1, from: e.id, role: reference.RoleCitation})
	}
}

func (c *Crawler) enqueue(st *crawlState, e entry) {
	if st.seen[e.id] {
		return
	}
	st.seen[e.id] = true
	st.frontier = append(st.frontier, e)
}

func (c *Crawler) nodeCount() int {
	nodes, _ := c.graph.Size()
	return nodes
}

// Graph returns the graph being built.
func (c *Crawler) Graph() *graph.Graph {
	return c.graph
}

// Caches returns the metadata and citation caches.
func (c *Crawler) Caches() (*cache.Cache[json.RawMessage], *cache.Cache[[]string]) {
	return c.metaCache, c.citeCache
}
