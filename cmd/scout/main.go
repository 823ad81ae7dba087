package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/KieranMcFarlane/panther-scout/internal/audit"
	"github.com/KieranMcFarlane/panther-scout/internal/config"
	"github.com/KieranMcFarlane/panther-scout/internal/evidence"
	"github.com/KieranMcFarlane/panther-scout/internal/governor"
	"github.com/KieranMcFarlane/panther-scout/internal/registry"
	"github.com/KieranMcFarlane/panther-scout/internal/runner"
	"github.com/KieranMcFarlane/panther-scout/internal/store"
)

// #region main
func main() {
	configPath := flag.String("config", "scout.yaml", "run configuration file")
	seed := flag.Bool("seed", false, "seed the registry with the config's entity list before running")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.APIKey == "" {
		log.Fatalf("OPENAI_API_KEY is required")
	}

	sqlStore, err := store.Open(cfg.Storage.DBPath)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer sqlStore.Close()

	auditLog, err := audit.NewSQLiteLog(sqlStore.DB())
	if err != nil {
		log.Fatalf("open audit log: %v", err)
	}
	reg, err := registry.NewSQLiteRegistry(sqlStore.DB())
	if err != nil {
		log.Fatalf("open registry: %v", err)
	}

	if *seed {
		if len(cfg.Entities) == 0 {
			log.Fatalf("seed requested but config lists no entities")
		}
		seeded, err := reg.Seed(context.Background(), cfg.Entities)
		if err != nil {
			log.Fatalf("seed registry: %v", err)
		}
		log.Printf("[SCOUT] seeded %d entities", len(seeded))
	}

	entities, err := reg.List(context.Background())
	if err != nil {
		log.Fatalf("list entities: %v", err)
	}
	if len(entities) == 0 {
		log.Fatalf("registry is empty; run with -seed and an entity list in %s", *configPath)
	}

	var hypStore store.Store = sqlStore
	if cfg.Cache.Enabled {
		cached := store.NewCachedStore(sqlStore, cfg.CacheStoreConfig())
		defer cached.Close()
		hypStore = cached
	}

	var metrics *runner.Metrics
	if cfg.MetricsAddr != "" {
		promReg := prometheus.NewRegistry()
		metrics = runner.NewMetrics(promReg)
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				log.Printf("[SCOUT] metrics server: %v", err)
			}
		}()
	}

	gov := governor.New(governor.Config{
		Ledger:     cfg.LedgerConfig(),
		Saturation: cfg.SaturationConfig(),
		Selector:   cfg.SelectorConfig(),
		Categories: cfg.CategoryList(),
	},
		evidence.NewWebSource(cfg.Search),
		evidence.NewOpenAIEvaluator(cfg.APIKey, cfg.Evaluator),
		hypStore, auditLog, nil,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID := uuid.NewString()
	log.Printf("[SCOUT] run=%s entities=%d workers=%d", runID, len(entities), cfg.Workers)

	results, err := runner.New(gov, auditLog, cfg.Budget, cfg.Workers, metrics).Run(ctx, entities)
	if err != nil {
		log.Fatalf("run: %v", err)
	}

	lockedIn := 0
	for _, res := range results {
		if res.LockedIn {
			lockedIn++
		}
		fmt.Printf("[%s] reason=%s iterations=%d cost=%.4f locked_in=%t\n",
			res.EntityID, res.StoppingReason, res.Iterations, res.TotalCost, res.LockedIn)
	}
	fmt.Printf("run %s complete: %d entities, %d locked in\n", runID, len(results), lockedIn)
}

// #endregion main
