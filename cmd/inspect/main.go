package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/KieranMcFarlane/panther-scout/internal/audit"
	"github.com/KieranMcFarlane/panther-scout/internal/config"
	"github.com/KieranMcFarlane/panther-scout/internal/registry"
	"github.com/KieranMcFarlane/panther-scout/internal/store"
)

// #region main
func main() {
	dbPath := flag.String("db", envOr("SCOUT_DB", "scout.db"), "scout database path")
	tailLen := flag.Int("tail", 10, "audit entries to show")
	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatalf("usage: inspect [-db path] [-tail n] <entity-id>")
	}
	entityID := flag.Arg(0)

	sqlStore, err := store.Open(*dbPath)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer sqlStore.Close()

	ctx := context.Background()

	reg, err := registry.NewSQLiteRegistry(sqlStore.DB())
	if err != nil {
		log.Fatalf("open registry: %v", err)
	}
	entity, err := reg.Lookup(ctx, entityID)
	if err != nil {
		log.Fatalf("lookup %s: %v", entityID, err)
	}
	fmt.Printf("=== %s (%s) cluster=%s ===\n", entity.Name, entity.ID, entity.ClusterID)

	hyps, err := sqlStore.GetBatch(ctx, entityID, config.Default().CategoryList())
	if err != nil {
		log.Fatalf("load hypotheses: %v", err)
	}
	fmt.Println("\nHypotheses:")
	for _, cat := range config.Default().CategoryList() {
		h, ok := hyps[cat]
		if !ok {
			fmt.Printf("  %-24s (never explored)\n", cat)
			continue
		}
		fmt.Printf("  %-24s confidence=%.2f accepts=%d status=%s iterations=%d\n",
			cat, h.Confidence, h.AcceptedSignals, h.Status, len(h.History))
	}

	auditLog, err := audit.NewSQLiteLog(sqlStore.DB())
	if err != nil {
		log.Fatalf("open audit log: %v", err)
	}
	entries, err := auditLog.Entries(ctx, entityID)
	if err != nil {
		log.Fatalf("read audit partition: %v", err)
	}

	result := audit.Verify(entries)
	fmt.Printf("\nAudit trail: %d entries, chain ", len(entries))
	if result.OK {
		fmt.Println("ok")
	} else {
		fmt.Printf("CORRUPT at seq %d\n", result.FirstInvalid)
	}

	start := len(entries) - *tailLen
	if start < 0 {
		start = 0
	}
	for _, e := range entries[start:] {
		switch e.Event {
		case audit.EventIteration:
			fmt.Printf("  #%d %s %s %s confidence=%.2f cost=%.4f\n",
				e.Seq, e.Event, e.Category, e.Decision, e.Confidence, e.Cost)
		case audit.EventStop:
			fmt.Printf("  #%d %s reason=%s confidence=%.2f cost=%.4f\n",
				e.Seq, e.Event, e.StoppingReason, e.Confidence, e.Cost)
		default:
			fmt.Printf("  #%d %s %s reason=%s\n", e.Seq, e.Event, e.Category, e.StoppingReason)
		}
	}
}

// #endregion main

// #region helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers
