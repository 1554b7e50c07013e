package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/haukened/rr-filter/internal/filter/common/clock"
	"github.com/haukened/rr-filter/internal/filter/common/log"
	"github.com/haukened/rr-filter/internal/filter/config"
	"github.com/haukened/rr-filter/internal/filter/domain"
	"github.com/haukened/rr-filter/internal/filter/metrics"
	"github.com/haukened/rr-filter/internal/filter/repos/lists"
	"github.com/haukened/rr-filter/internal/filter/repos/lists/bloom"
	"github.com/haukened/rr-filter/internal/filter/repos/lists/bolt"
	"github.com/haukened/rr-filter/internal/filter/repos/lists/index"
	"github.com/haukened/rr-filter/internal/filter/repos/lists/lru"
	"github.com/haukened/rr-filter/internal/filter/services/matcher"
)

const (
	// Version information
	version = "0.1.0-dev"
	appName = "rr-filterd"

	defaultShutdownTimeout = 10 * time.Second

	// Exit codes for one-shot checks.
	exitAllowed = 0
	exitError   = 1
	exitBlocked = 2
)

// Application holds all the components of the filter daemon
type Application struct {
	config   *config.AppConfig
	metrics  *metrics.Metrics
	compiler *lists.Compiler
	registry *matcher.Registry
	checker  *matcher.Checker
	server   *http.Server
}

func main() {
	checkURL := flag.String("check-url", "", "decide a single URL against the loaded lists and exit")
	checkFile := flag.String("check-file", "", "scan a document against the phrase lists and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(exitError)
	}

	err = log.Configure(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logging configuration error: %v\n", err)
		os.Exit(exitError)
	}

	log.Info(map[string]any{
		"app":          appName,
		"version":      version,
		"env":          cfg.Env,
		"log_level":    cfg.LogLevel,
		"group_file":   cfg.GroupFile,
		"cache_dir":    cfg.CacheDir,
		"weight_mode":  cfg.WeightMode,
		"metrics_addr": cfg.MetricsAddr,
	}, "Starting RR-Filter")

	app, err := buildApplication(cfg)
	if err != nil {
		log.Fatal(map[string]any{"error": err}, "Failed to build application")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := app.registry.Load(ctx); err != nil {
		log.Fatal(map[string]any{"error": err}, "Failed to load lists")
	}

	if *checkURL != "" || *checkFile != "" {
		os.Exit(app.runChecks(os.Stdout, *checkURL, *checkFile))
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	reload := make(chan struct{}, 1)

	go func() {
		for sig := range sigChan {
			if sig == syscall.SIGHUP {
				select {
				case reload <- struct{}{}:
				default:
				}
				continue
			}
			log.Info(map[string]any{"signal": sig.String()}, "Shutdown signal received")
			cancel()
			return
		}
	}()

	if err := app.Run(ctx, reload); err != nil {
		log.Fatal(map[string]any{"error": err}, "Server failed")
	}

	log.Info(nil, "RR-Filter stopped gracefully")
}

// buildApplication constructs all components and wires them together
func buildApplication(cfg *config.AppConfig) (*Application, error) {
	clk := &clock.RealClock{}
	logger := log.GetLogger()
	m := metrics.New()

	weightMode, err := matcher.ParseWeightMode(cfg.WeightMode)
	if err != nil {
		return nil, err
	}

	var store lists.CacheStore
	if cfg.CacheDir != "" {
		store = bolt.New()
		log.Info(map[string]any{"cache_dir": cfg.CacheDir}, "List cache configured")
	} else {
		log.Info(map[string]any{"disabled": true}, "List caching disabled")
	}
	compiler := lists.NewCompiler(lists.CompilerOptions{
		CacheDir: cfg.CacheDir,
		Store:    store,
		Logger:   logger,
		Metrics:  m,
	})

	registry := matcher.NewRegistry(matcher.RegistryOptions{
		Compiler: compiler,
		Specs:    specSource(cfg),
		Phrase: matcher.PhraseOptions{
			HexDecode:    cfg.HexDecode,
			PreserveCase: cfg.PreserveCase,
			WeightMode:   weightMode,
		},
		Item: matcher.ItemOptions{
			BloomFactory: bloom.NewFactory(),
			BloomFPRate:  cfg.BloomFPRate,
			PreserveCase: cfg.PreserveCase,
		},
		NewLookupCache: func() (lists.LookupCache, error) {
			return lru.New(cfg.LookupCacheSize)
		},
		Workers: cfg.Workers,
		Clock:   clk,
		Logger:  logger,
		Metrics: m,
	})

	checker := matcher.NewChecker(registry, matcher.CheckerOptions{
		NaughtinessLimit: cfg.NaughtinessLimit,
		Logger:           logger,
		Metrics:          m,
	})

	app := &Application{
		config:   cfg,
		metrics:  m,
		compiler: compiler,
		registry: registry,
		checker:  checker,
	}
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		app.server = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}
	return app, nil
}

// specSource re-reads the group file on every load so a reload picks up
// added or removed list files.
func specSource(cfg *config.AppConfig) matcher.SpecSource {
	policy := index.Policy{ForceQuick: cfg.ForceQuick, QuickThreshold: cfg.QuickThreshold}
	return func() (matcher.SetSpec, error) {
		g, err := config.LoadGroup(cfg.GroupFile)
		if err != nil {
			return matcher.SetSpec{}, err
		}
		spec := func(name string, t domain.ListType, sources []domain.Source) *lists.Spec {
			if len(sources) == 0 {
				return nil
			}
			return &lists.Spec{
				Name:         name,
				Type:         t,
				Sources:      sources,
				PreserveCase: cfg.PreserveCase,
				Policy:       policy,
			}
		}
		return matcher.SetSpec{
			Phrases:        spec("phrases", domain.PhraseList, g.Phrases),
			BannedSites:    spec("banned_sites", domain.SiteList, g.BannedSites),
			ExceptionSites: spec("exception_sites", domain.SiteList, g.ExceptionSites),
			BannedURLs:     spec("banned_urls", domain.URLList, g.BannedURLs),
			ExceptionURLs:  spec("exception_urls", domain.URLList, g.ExceptionURLs),
		}, nil
	}
}

// runChecks prints a decision for each requested check and returns the exit
// code: exitBlocked if any check blocked, exitError if a document could not
// be read.
func (app *Application) runChecks(w io.Writer, rawURL, docPath string) int {
	code := exitAllowed
	report := func(subject string, d domain.Decision) {
		verdict := "allow"
		if d.IsBlocked() {
			verdict = "block"
			code = exitBlocked
		}
		fmt.Fprintf(w, "%s\t%s\treason=%s matched=%q category=%q weight=%d\n",
			verdict, subject, d.Reason, d.Matched, d.Category, d.Weight)
	}
	if rawURL != "" {
		report(rawURL, app.checker.CheckURL(rawURL))
	}
	if docPath != "" {
		doc, err := os.ReadFile(docPath)
		if err != nil {
			fmt.Fprintf(w, "error\t%s\t%v\n", docPath, err)
			return exitError
		}
		report(docPath, app.checker.CheckContent(doc))
	}
	return code
}

// Run serves metrics (when configured) and reloads the lists on every value
// from reload until ctx is cancelled. Lists must already be loaded.
func (app *Application) Run(ctx context.Context, reload <-chan struct{}) error {
	serveErr := make(chan error, 1)
	if app.server != nil {
		ln, err := net.Listen("tcp", app.server.Addr)
		if err != nil {
			return fmt.Errorf("failed to listen for metrics: %w", err)
		}
		go func() {
			if err := app.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
		}()
		log.Info(map[string]any{"address": ln.Addr().String()}, "Metrics endpoint started")
	}

	for {
		select {
		case <-ctx.Done():
			return app.shutdown()
		case err := <-serveErr:
			return fmt.Errorf("metrics server: %w", err)
		case <-reload:
			log.Info(map[string]any{"group_file": app.config.GroupFile}, "Reloading lists")
			if err := app.registry.Reload(ctx); err != nil {
				log.Warn(map[string]any{"error": err}, "Reload failed, keeping previous lists")
				continue
			}
			stats := app.compiler.Stats()
			log.Info(map[string]any{
				"generation":   app.registry.Current().Generation,
				"builds":       stats.Builds,
				"cache_loads":  stats.CacheLoads,
				"cache_errors": stats.CacheErrors,
			}, "Lists reloaded")
		}
	}
}

func (app *Application) shutdown() error {
	log.Info(nil, "Shutdown initiated")
	if app.server == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := app.server.Shutdown(shutdownCtx); err != nil {
		log.Warn(map[string]any{"timeout": defaultShutdownTimeout, "error": err}, "Shutdown timeout exceeded")
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info(nil, "Graceful shutdown completed")
	return nil
}
