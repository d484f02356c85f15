package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/matsen/papergraph/internal/config"
	"github.com/matsen/papergraph/internal/graphcache"
	"github.com/matsen/papergraph/internal/watch"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var (
	watchMetricsAddr string
	watchDebounce    time.Duration
	watchRate        float64
)

func init() {
	watchCmd.Flags().StringVar(&watchMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9464)")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 0, "Quiet period before rebuilding (default from global config, 250ms)")
	watchCmd.Flags().Float64Var(&watchRate, "rate", 0, "Max rebuilds per second (default from global config, 1)")
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep the graphs up to date as papers and notes change",
	Long: `Watch papers.jsonl and notes.jsonl and update the query database and the
graphs whenever they change. Runs until interrupted.

Paper changes that only touch metadata (title, tags, authors) don't trigger a
reference rebuild. Note changes only recompute that note's mentions.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	repoRoot := mustFindRepository()
	global := mustLoadGlobalConfig()

	debounce := watchDebounce
	if debounce == 0 {
		d, err := global.Debounce()
		if err != nil {
			exitWithError(ExitConfigError, "%v", err)
		}
		debounce = d
	}
	rate := watchRate
	if rate == 0 {
		rate = global.Rate()
	}

	db := mustOpenDatabase(repoRoot)
	defer db.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []graphcache.Option{graphcache.WithLogger(log)}
	if watchMetricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		opts = append(opts, graphcache.WithMetrics(reg))
		go serveMetrics(ctx, watchMetricsAddr, reg)
	}
	cache := graphcache.New(db, opts...)

	syncer := watch.NewSyncer(repoRoot, db, cache, log)
	if err := syncer.Prime(ctx); err != nil {
		exitWithError(ExitDataError, "loading library: %v", err)
	}
	logStats(cache)

	w := watch.New(config.PapergraphPath(repoRoot),
		[]string{config.PapersFile, config.NotesFile},
		func(ctx context.Context) error {
			events, err := syncer.Sync(ctx)
			if err != nil {
				return err
			}
			if len(events) > 0 {
				logStats(cache)
			}
			return nil
		},
		watch.Options{Debounce: debounce, Rate: rate, Logger: log},
	)
	if err := w.Run(ctx); err != nil {
		exitWithError(ExitError, "watching: %v", err)
	}
	log.Info("stopped")
	return nil
}

func logStats(cache *graphcache.Cache) {
	for _, s := range cache.Stats() {
		log.Info("graph", "name", s.Graph, "nodes", s.Nodes, "edges", s.Edges, "seq", s.Seq)
	}
}

// serveMetrics serves reg on addr until ctx is done.
func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info("serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("metrics server", "error", err)
	}
}
