package replay

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/KieranMcFarlane/panther-scout/internal/budget"
	"github.com/KieranMcFarlane/panther-scout/internal/registry"
)

func saturationFixture() Fixture {
	return Fixture{
		Name:   "accept-accept-three-rejects",
		Entity: registry.Entity{ID: "entity-1", Name: "Example FC"},
		Budget: budget.Budget{
			MaxIterationsPerCategory: 10,
			MaxTotalCost:             100,
			MaxDuration:              time.Hour,
			ConfidenceThreshold:      0.80,
			HighConfidenceStreak:     3,
			MinEvidenceCount:         100,
		},
		Categories: []FixtureCategory{{Name: "digital_infrastructure", InfoValue: 1.0}},
		Steps: []FixtureStep{
			{Decision: "accept", Cost: 0.02},
			{Decision: "accept", Cost: 0.02},
			{Decision: "reject"},
			{Decision: "reject"},
			{Decision: "reject"},
		},
		Expect: FixtureExpectation{
			StoppingReason:  "all_categories_exhausted",
			Iterations:      5,
			FinalConfidence: map[string]float64{"digital_infrastructure": 0.29},
		},
	}
}

func TestReplayMatchesExpectation(t *testing.T) {
	out, err := Run(context.Background(), saturationFixture())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !out.OK() {
		t.Fatalf("replay diverged: %v", out.Mismatches)
	}
	if out.ChainHead == "" {
		t.Fatal("replay must produce a chain head")
	}
}

func TestReplayIsReproducible(t *testing.T) {
	first, err := Run(context.Background(), saturationFixture())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	for i := 0; i < 3; i++ {
		again, err := Run(context.Background(), saturationFixture())
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		if again.ChainHead != first.ChainHead {
			t.Fatalf("run %d: chain head diverged", i)
		}
	}

	// A fixture pinned to the observed head keeps matching.
	f := saturationFixture()
	f.Expect.ChainHead = first.ChainHead
	pinned, err := Run(context.Background(), f)
	if err != nil {
		t.Fatalf("pinned run: %v", err)
	}
	if !pinned.OK() {
		t.Fatalf("pinned replay diverged: %v", pinned.Mismatches)
	}
}

func TestReplayReportsDivergence(t *testing.T) {
	f := saturationFixture()
	f.Expect.Iterations = 4
	f.Expect.FinalConfidence["digital_infrastructure"] = 0.35

	out, err := Run(context.Background(), f)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.OK() || len(out.Mismatches) != 2 {
		t.Fatalf("expected 2 mismatches, got %v", out.Mismatches)
	}
}

func TestLoadFixtureRoundTrip(t *testing.T) {
	f := saturationFixture()
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	path := filepath.Join(t.TempDir(), "fixture.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	loaded, err := LoadFixture(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Name != f.Name || len(loaded.Steps) != len(f.Steps) {
		t.Fatalf("fixture did not survive the round trip: %+v", loaded)
	}

	out, err := Run(context.Background(), loaded)
	if err != nil {
		t.Fatalf("Run loaded: %v", err)
	}
	if !out.OK() {
		t.Fatalf("loaded replay diverged: %v", out.Mismatches)
	}
}

func TestLoadFixtureRejectsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")
	if err := os.WriteFile(path, []byte(`{"name":"empty"}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadFixture(path); err == nil {
		t.Fatal("fixture without steps must be rejected")
	}
}
