package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	_ "modernc.org/sqlite"

	"github.com/KieranMcFarlane/panther-scout/internal/audit"
)

// #region main
func main() {
	dbPath := flag.String("db", envOr("SCOUT_DB", "scout.db"), "scout database path")
	flag.Parse()

	db, err := sql.Open("sqlite", *dbPath)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	auditLog, err := audit.NewSQLiteLog(db)
	if err != nil {
		log.Fatalf("open audit log: %v", err)
	}

	ctx := context.Background()
	partitions := flag.Args()
	if len(partitions) == 0 {
		partitions, err = auditLog.Partitions(ctx)
		if err != nil {
			log.Fatalf("list partitions: %v", err)
		}
	}
	if len(partitions) == 0 {
		fmt.Println("no audit partitions found")
		return
	}

	corrupt := 0
	for _, entityID := range partitions {
		entries, err := auditLog.Entries(ctx, entityID)
		if err != nil {
			log.Fatalf("read partition %s: %v", entityID, err)
		}
		result := audit.Verify(entries)
		if result.OK {
			fmt.Printf("[%s] ok entries=%d\n", entityID, len(entries))
			continue
		}
		corrupt++
		fmt.Printf("[%s] CORRUPT first_invalid=%d entries=%d\n", entityID, result.FirstInvalid, len(entries))
	}

	if corrupt > 0 {
		os.Exit(1)
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
