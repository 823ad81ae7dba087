package audit

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func tempLog(t *testing.T) *SQLiteLog {
	t.Helper()
	dir := t.TempDir()
	db, err := sql.Open("sqlite", filepath.Join(dir, "audit.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	l, err := NewSQLiteLog(db)
	if err != nil {
		t.Fatalf("NewSQLiteLog: %v", err)
	}
	return l
}

func entryAt(entityID string, n int) Entry {
	return Entry{
		EntityID:   entityID,
		Timestamp:  time.Date(2026, 3, 1, 10, 0, n, 0, time.UTC),
		Event:      EventIteration,
		Category:   "digital_infrastructure",
		Decision:   "accept",
		Confidence: 0.26,
		Cost:       0.01,
	}
}

func TestAppendChainsEntries(t *testing.T) {
	l := tempLog(t)
	ctx := context.Background()

	var prev string
	for i := 0; i < 5; i++ {
		e, err := l.Append(ctx, entryAt("ent-1", i))
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		if e.Seq != i {
			t.Fatalf("expected seq %d, got %d", i, e.Seq)
		}
		if e.PrevHash != prev {
			t.Fatalf("entry %d prev hash mismatch", i)
		}
		if e.Hash == "" || e.Hash == prev {
			t.Fatalf("entry %d has bad hash %q", i, e.Hash)
		}
		prev = e.Hash
	}

	entries, err := l.Entries(ctx, "ent-1")
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(entries))
	}
	res := Verify(entries)
	if !res.OK {
		t.Fatalf("fresh chain should verify, first invalid %d", res.FirstInvalid)
	}
}

func TestVerifyDetectsTampering(t *testing.T) {
	l := NewMemoryLog()
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		if _, err := l.Append(ctx, entryAt("ent-1", i)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	entries, _ := l.Entries(ctx, "ent-1")

	// Flip one field in the middle of the chain.
	entries[3].Confidence = 0.90

	res := Verify(entries)
	if res.OK {
		t.Fatal("tampered chain must not verify")
	}
	if res.FirstInvalid != 3 {
		t.Fatalf("expected first invalid at 3, got %d", res.FirstInvalid)
	}

	// Entries strictly before the corruption still verify on their own.
	if pre := Verify(entries[:3]); !pre.OK {
		t.Fatal("prefix before the corruption should verify")
	}
}

func TestVerifyDetectsResequencing(t *testing.T) {
	l := NewMemoryLog()
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		l.Append(ctx, entryAt("ent-1", i))
	}
	entries, _ := l.Entries(ctx, "ent-1")

	// Drop an entry from the middle; the hole must be detected.
	cut := append([]Entry{}, entries[:2]...)
	cut = append(cut, entries[3])
	res := Verify(cut)
	if res.OK || res.FirstInvalid != 2 {
		t.Fatalf("expected invalid at 2 after a dropped entry, got %+v", res)
	}
}

func TestPartitionsAreIndependent(t *testing.T) {
	l := tempLog(t)
	ctx := context.Background()

	l.Append(ctx, entryAt("ent-a", 0))
	l.Append(ctx, entryAt("ent-b", 0))
	l.Append(ctx, entryAt("ent-a", 1))

	a, _ := l.Entries(ctx, "ent-a")
	b, _ := l.Entries(ctx, "ent-b")
	if len(a) != 2 || len(b) != 1 {
		t.Fatalf("partition sizes wrong: a=%d b=%d", len(a), len(b))
	}
	if !Verify(a).OK || !Verify(b).OK {
		t.Fatal("both partitions must verify independently")
	}

	parts, err := l.Partitions(ctx)
	if err != nil {
		t.Fatalf("Partitions: %v", err)
	}
	if len(parts) != 2 || parts[0] != "ent-a" || parts[1] != "ent-b" {
		t.Fatalf("unexpected partitions %v", parts)
	}
}

func TestConcurrentAppendsToSeparatePartitions(t *testing.T) {
	l := tempLog(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, id := range []string{"ent-a", "ent-b", "ent-c", "ent-d"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				if _, err := l.Append(ctx, entryAt(id, i)); err != nil {
					t.Errorf("append %s/%d: %v", id, i, err)
					return
				}
			}
		}(id)
	}
	wg.Wait()

	for _, id := range []string{"ent-a", "ent-b", "ent-c", "ent-d"} {
		entries, err := l.Entries(ctx, id)
		if err != nil {
			t.Fatalf("Entries %s: %v", id, err)
		}
		if len(entries) != 20 {
			t.Fatalf("%s: expected 20 entries, got %d", id, len(entries))
		}
		if res := Verify(entries); !res.OK {
			t.Fatalf("%s: chain broken at %d", id, res.FirstInvalid)
		}
	}
}

func TestTailSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.db")

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	l, err := NewSQLiteLog(db)
	if err != nil {
		t.Fatalf("NewSQLiteLog: %v", err)
	}
	ctx := context.Background()
	l.Append(ctx, entryAt("ent-1", 0))
	l.Append(ctx, entryAt("ent-1", 1))
	db.Close()

	db2, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("reopen db: %v", err)
	}
	t.Cleanup(func() { db2.Close() })
	l2, err := NewSQLiteLog(db2)
	if err != nil {
		t.Fatalf("NewSQLiteLog reopen: %v", err)
	}
	l2.Append(ctx, entryAt("ent-1", 2))

	entries, _ := l2.Entries(ctx, "ent-1")
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries after reopen, got %d", len(entries))
	}
	if res := Verify(entries); !res.OK {
		t.Fatalf("chain must continue across reopen, broken at %d", res.FirstInvalid)
	}
}
