package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/KieranMcFarlane/panther-scout/internal/replay"
)

// #region main
func main() {
	if len(os.Args) < 2 {
		log.Fatalf("usage: replay <fixture.json> [more fixtures...]")
	}

	failed := 0
	for _, path := range os.Args[1:] {
		fixture, err := replay.LoadFixture(path)
		if err != nil {
			log.Fatalf("load %s: %v", path, err)
		}

		out, err := replay.Run(context.Background(), fixture)
		if err != nil {
			log.Fatalf("replay %s: %v", fixture.Name, err)
		}

		if out.OK() {
			fmt.Printf("[%s] ok reason=%s iterations=%d head=%s\n",
				fixture.Name, out.Result.StoppingReason, out.Result.Iterations, out.ChainHead[:12])
			continue
		}
		failed++
		fmt.Printf("[%s] DIVERGED\n", fixture.Name)
		for _, m := range out.Mismatches {
			fmt.Printf("  %s\n", m)
		}
	}

	if failed > 0 {
		os.Exit(1)
	}
}

// #endregion main
