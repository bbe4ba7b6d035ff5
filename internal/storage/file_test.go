package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	logx "trackrelay/pkg/logx"
)

func openTestStore(t *testing.T, dir string) Store {
	t.Helper()
	st, err := Open(Config{Driver: "file", Path: filepath.Join(dir, "store")}, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return st
}

func TestFileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	st := openTestStore(t, dir)

	now := time.Now()
	recs := []PostRecord{
		{At: now.Add(-48 * time.Hour), Seq: 1, FileID: "a", MessageID: 10, Predicted: 10},
		{At: now.Add(-2 * time.Hour), Seq: 2, FileID: "b", MessageID: 11, Predicted: 11},
		{At: now.Add(-time.Hour), Seq: 3, FileID: "c", MessageID: 15, Predicted: 12, Corrected: true},
	}
	for _, r := range recs {
		if err := st.AppendPost(ctx, r); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	recent, err := st.RecentPosts(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 2 || recent[0].FileID != "b" || recent[1].FileID != "c" {
		t.Fatalf("recent wrong: %+v", recent)
	}

	day, err := st.Stats(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if day.Total != 2 || day.Corrected != 1 {
		t.Fatalf("day stats = %+v", day)
	}

	if err := st.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Reopen: history replays from disk.
	st2 := openTestStore(t, dir)
	defer st2.Close()
	all, err := st2.Stats(context.Background(), time.Time{})
	if err != nil {
		t.Fatalf("stats after reopen: %v", err)
	}
	if all.Total != 3 {
		t.Fatalf("expected 3 records after reopen, got %d", all.Total)
	}
}

func TestFileStorePrune(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	st := openTestStore(t, dir)
	defer st.Close()

	now := time.Now()
	for i, age := range []time.Duration{72 * time.Hour, 48 * time.Hour, time.Hour} {
		r := PostRecord{At: now.Add(-age), Seq: i + 1, FileID: "f", MessageID: i + 1, Predicted: i + 1}
		if err := st.AppendPost(ctx, r); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	removed, err := st.PruneBefore(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}

	// Appends after prune land in the rewritten file.
	if err := st.AppendPost(ctx, PostRecord{At: now, Seq: 9, FileID: "g", MessageID: 9, Predicted: 9}); err != nil {
		t.Fatalf("append after prune: %v", err)
	}
	all, err := st.Stats(ctx, time.Time{})
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if all.Total != 2 {
		t.Fatalf("expected 2 surviving records, got %d", all.Total)
	}

	// Idempotent when nothing is old enough.
	removed, err = st.PruneBefore(ctx, now.Add(-24*time.Hour))
	if err != nil || removed != 0 {
		t.Fatalf("second prune = (%d, %v), want (0, nil)", removed, err)
	}
}
