package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/matsen/papernet/internal/config"
	"github.com/matsen/papernet/internal/crawl"
	"github.com/matsen/papernet/internal/docid"
	"github.com/matsen/papernet/internal/graph"
	"github.com/matsen/papernet/internal/metrics"
	"github.com/matsen/papernet/internal/pdf"
	"github.com/matsen/papernet/internal/remote"
)

var (
	crawlDepth       int
	crawlConcurrency int
	crawlMaxRefs     int
	crawlMaxCites    int
	crawlMaxDeg      int
	crawlMaxNodes    int
	crawlTimeout     time.Duration
	crawlRetries     int
	crawlRPS         float64
	crawlBreaker     uint32
	crawlCacheDir    string
	crawlBackend     string
	crawlResume      string
	crawlPDF         string
	crawlMetricsFile string
	crawlOutputs     = newOutputFlags()
)

func init() {
	defaults := crawl.DefaultOptions("")
	policy := remote.DefaultPolicy()

	f := crawlCmd.Flags()
	f.IntVarP(&crawlDepth, "depth", "d", defaults.MaxDepth, "Maximum BFS depth from the seed")
	f.IntVarP(&crawlConcurrency, "concurrency", "c", defaults.ConcurrencyLimit, "Maximum simultaneous remote requests")
	f.IntVar(&crawlMaxRefs, "max-refs", defaults.MaxPerNodeRefs, "References followed per document")
	f.IntVar(&crawlMaxCites, "max-cites", defaults.MaxPerNodeCites, "Citing documents followed per document (0 disables)")
	f.IntVar(&crawlMaxDeg, "max-deg", 0, "Set both --max-refs and --max-cites")
	f.IntVar(&crawlMaxNodes, "max-nodes", defaults.MaxTotalNodes, "Maximum number of nodes in the graph")
	f.DurationVar(&crawlTimeout, "timeout", policy.Timeout, "Per-request timeout")
	f.IntVar(&crawlRetries, "retries", policy.MaxRetries, "Retries after a failed request")
	f.Float64Var(&crawlRPS, "rps", 0, "Maximum requests per second (0 = unlimited)")
	f.Uint32Var(&crawlBreaker, "breaker", 0, "Consecutive failures that open a source's circuit breaker (0 disables)")
	f.StringVar(&crawlCacheDir, "cache-dir", "", "Cache directory (default: ./.papernet)")
	f.StringVar(&crawlBackend, "backend", "", "Cache backend: json or sqlite")
	f.StringVar(&crawlResume, "resume", "", "Node-link JSON graph to continue from")
	f.StringVar(&crawlPDF, "pdf", "", "Take the seed DOI from this PDF")
	f.StringVar(&crawlMetricsFile, "metrics-file", "", "Write Prometheus metrics to this file after the crawl")
	crawlOutputs.register(crawlCmd, map[string]string{
		OutputJSON: "graph.json",
		OutputHTML: "graph.html",
	})
	rootCmd.AddCommand(crawlCmd)
}

var crawlCmd = &cobra.Command{
	Use:   "crawl [doi]",
	Short: "Crawl the citation network around a paper",
	Long: `Crawl the citation network around a seed paper.

The seed's references and citing papers are fetched breadth-first up to
--depth levels, following at most --max-refs references and --max-cites
citing papers per document, until --max-nodes documents are in the graph.
References without a DOI become placeholder nodes named after their title.

Flags override ~/.config/pnet/config.yml; unset flags keep the configured
value.

Examples:
  # Crawl one level around a paper
  pnet crawl 10.1093/molbev/msy096

  # Two levels, references only, with a YAML copy
  pnet crawl 10.1093/molbev/msy096 --depth 2 --max-cites 0 --yaml graph.yaml

  # Seed from a PDF and continue an earlier crawl
  pnet crawl --pdf paper.pdf --resume graph.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCrawl,
}

func runCrawl(cmd *cobra.Command, args []string) error {
	logger := mustLogger()
	defer logger.Sync()

	cfg, err := config.LoadGlobalConfig()
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}

	seed, err := crawlSeed(args)
	if err != nil {
		exitWithError(ExitDataError, "%v", err)
	}

	opts := cfg.CrawlOptions(seed)
	applyCrawlFlags(cmd, &opts)
	if err := opts.Validate(); err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}

	collector := metrics.NewCollector()
	gateway := newGateway(cmd, cfg, opts, logger, collector)

	paths, backend, err := cacheLocation(cfg, crawlCacheDir, crawlBackend)
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
	store, err := openStore(paths, backend)
	if err != nil {
		exitWithError(ExitDataError, "opening cache: %v", err)
	}
	defer store.Close()

	caches := newCaches(collector)
	if err := store.Load(caches); err != nil {
		exitWithError(ExitDataError, "loading cache: %v", err)
	}
	logger.Info("cache loaded",
		zap.String("dir", paths.Dir),
		zap.String("backend", backend),
		zap.Int("metadata", caches.Metadata.Len()),
		zap.Int("citations", caches.Citations.Len()))

	crawlOpts := []crawl.Option{
		crawl.WithCaches(caches.Metadata, caches.Citations),
		crawl.WithLogger(logger),
		crawl.WithMetrics(collector),
	}
	if crawlResume != "" {
		g, err := graph.Load(crawlResume)
		if err != nil {
			exitWithError(ExitDataError, "loading graph to resume: %v", err)
		}
		nodes, edges := g.Size()
		logger.Info("resuming", zap.String("path", crawlResume), zap.Int("nodes", nodes), zap.Int("edges", edges))
		crawlOpts = append(crawlOpts, crawl.WithGraph(g))
	}

	crawler, err := crawl.New(opts, gateway, gateway, crawlOpts...)
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, runErr := crawler.Run(ctx)
	interrupted := errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded)
	if runErr != nil && !interrupted {
		return fmt.Errorf("crawl: %w", runErr)
	}
	if interrupted {
		logger.Warn("crawl interrupted, writing partial graph", zap.Int("pending", result.Pending))
	}

	// The cache is saved even for an interrupted crawl.
	if err := store.Save(caches); err != nil {
		exitWithError(ExitError, "saving cache: %v", err)
	}
	logger.Info("cache saved",
		zap.Int("metadata", caches.Metadata.Len()),
		zap.Int("citations", caches.Citations.Len()))

	runID := uuid.NewString()
	attrs := map[string]string{
		"run_id":    runID,
		"seed":      docid.Canonicalize(seed),
		"created":   time.Now().UTC().Format(time.RFC3339),
		"generator": config.UserAgent(Version, ""),
	}
	written, err := writeOutputs(result.Graph, attrs, crawlOutputs)
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}

	if crawlMetricsFile != "" {
		if err := collector.WriteTextfile(crawlMetricsFile); err != nil {
			exitWithError(ExitError, "%v", err)
		}
		written["metrics"] = crawlMetricsFile
	}

	nodes, edges := result.Graph.Size()
	resp := CrawlResponse{
		RunID:         runID,
		Seed:          docid.Canonicalize(seed),
		Nodes:         nodes,
		Edges:         edges,
		Batches:       result.Batches,
		Dropped:       result.Dropped,
		Pending:       result.Pending,
		BudgetReached: result.BudgetReached,
		Interrupted:   interrupted,
		Outputs:       written,
	}
	if humanOutput {
		printCrawlHuman(resp)
		return nil
	}
	return outputJSON(resp)
}

// crawlSeed returns the seed DOI from the argument or from --pdf.
func crawlSeed(args []string) (string, error) {
	switch {
	case crawlPDF != "" && len(args) > 0:
		return "", fmt.Errorf("give either a DOI or --pdf, not both")
	case crawlPDF != "":
		doi, err := pdf.ExtractDOI(crawlPDF, pdf.DefaultMaxPages)
		if err != nil {
			return "", fmt.Errorf("%s: %w", crawlPDF, err)
		}
		return docid.StripDOIPrefix(doi), nil
	case len(args) == 1:
		seed := docid.StripDOIPrefix(args[0])
		if seed == "" {
			return "", fmt.Errorf("empty DOI")
		}
		return seed, nil
	}
	return "", fmt.Errorf("a DOI argument or --pdf is required")
}

// applyCrawlFlags overrides configured budgets with explicitly set flags.
func applyCrawlFlags(cmd *cobra.Command, opts *crawl.Options) {
	f := cmd.Flags()
	if f.Changed("depth") {
		opts.MaxDepth = crawlDepth
	}
	if f.Changed("concurrency") {
		opts.ConcurrencyLimit = crawlConcurrency
	}
	if f.Changed("max-deg") {
		opts.MaxPerNodeRefs = crawlMaxDeg
		opts.MaxPerNodeCites = crawlMaxDeg
	}
	if f.Changed("max-refs") {
		opts.MaxPerNodeRefs = crawlMaxRefs
	}
	if f.Changed("max-cites") {
		opts.MaxPerNodeCites = crawlMaxCites
	}
	if f.Changed("max-nodes") {
		opts.MaxTotalNodes = crawlMaxNodes
	}
}

// newGateway builds the remote gateway from config and flags. The limiter
// ceiling is the crawl's concurrency limit.
func newGateway(cmd *cobra.Command, cfg *config.GlobalConfig, opts crawl.Options, logger *zap.Logger, m *metrics.Collector) *remote.Gateway {
	f := cmd.Flags()

	policy := cfg.Policy()
	if f.Changed("timeout") {
		policy.Timeout = crawlTimeout
	}
	if f.Changed("retries") {
		policy.MaxRetries = crawlRetries
	}
	rps := cfg.RequestsPerSecond
	if f.Changed("rps") {
		rps = crawlRPS
	}
	breaker := cfg.BreakerThreshold
	if f.Changed("breaker") {
		breaker = crawlBreaker
	}

	gwOpts := []remote.Option{
		remote.WithLimiter(remote.NewLimiter(opts.ConcurrencyLimit, rps)),
		remote.WithPolicy(policy),
		remote.WithUserAgent(config.UserAgent(Version, cfg.Mailto)),
		remote.WithBreaker(breaker),
		remote.WithLogger(logger),
		remote.WithMetrics(m),
	}
	if cfg.CrossrefURL != "" {
		gwOpts = append(gwOpts, remote.WithCrossrefURL(cfg.CrossrefURL))
	}
	if cfg.OpenCitationsURL != "" {
		gwOpts = append(gwOpts, remote.WithOpenCitationsURL(cfg.OpenCitationsURL))
	}
	if cfg.OpenCitationsToken != "" {
		gwOpts = append(gwOpts, remote.WithOpenCitationsToken(cfg.OpenCitationsToken))
	}
	return remote.NewGateway(gwOpts...)
}
