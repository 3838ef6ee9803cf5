package records_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"videotext/internal/records"
	"videotext/internal/testsupport"
)

func TestOpenCreatesSchemaAndReopens(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.MustInsert(t, store, records.Record{AwemeID: "1001"})
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := testsupport.MustOpenStore(t, cfg)
	stats, err := reopened.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 1 {
		t.Fatalf("expected record to survive reopen, got %+v", stats)
	}
}

func TestOpenPathRejectsEmptyPath(t *testing.T) {
	if _, err := records.OpenPath(" "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestUpsertDeduplicatesByAwemeID(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	first, created, err := store.Upsert(ctx, records.Record{AwemeID: "1001", Nickname: "alpha", Duration: testsupport.Float(12.5)})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if !created {
		t.Fatal("expected first upsert to insert")
	}
	if !strings.HasPrefix(first.RecordID, "rec") {
		t.Fatalf("unexpected record id %q", first.RecordID)
	}

	second, created, err := store.Upsert(ctx, records.Record{AwemeID: "1001", PlayAddr: "https://cdn/v.mp4"})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if created {
		t.Fatal("expected second upsert to update")
	}
	if second.RecordID != first.RecordID {
		t.Fatalf("expected same record id, got %q and %q", first.RecordID, second.RecordID)
	}
	if second.Nickname != "alpha" || second.PlayAddr != "https://cdn/v.mp4" {
		t.Fatalf("expected merged metadata, got %+v", second)
	}
	if second.Duration == nil || *second.Duration != 12.5 {
		t.Fatalf("expected duration preserved, got %v", second.Duration)
	}
}

func TestPendingTextSelectsEmptyTextWithID(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	testsupport.MustInsert(t, store,
		records.Record{AwemeID: "1001"},
		records.Record{AwemeID: "1002", Text: "already done"},
		records.Record{AwemeID: ""},
		records.Record{AwemeID: "1003"},
	)

	pending, err := store.PendingText(ctx)
	if err != nil {
		t.Fatalf("PendingText: %v", err)
	}
	got := map[string]bool{}
	for _, rec := range pending {
		got[rec.AwemeID] = true
		if !rec.Pending() {
			t.Fatalf("record %+v should report pending", rec)
		}
	}
	if len(pending) != 2 || !got["1001"] || !got["1003"] {
		t.Fatalf("unexpected pending set: %+v", pending)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	want := records.Stats{Total: 4, Pending: 2, WithText: 1, MissingID: 1}
	if stats != want {
		t.Fatalf("unexpected stats: got %+v want %+v", stats, want)
	}
}

func TestBatchUpdateTextIsAtomic(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	recs := testsupport.MustInsert(t, store, records.Record{AwemeID: "1001"}, records.Record{AwemeID: "1002"})

	err := store.BatchUpdateText(ctx, []records.TextUpdate{
		{RecordID: recs[0].RecordID, Text: "first"},
		{RecordID: "rec-missing", Text: "lost"},
	})
	if !errors.Is(err, records.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	got, err := store.Get(ctx, recs[0].RecordID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Text != "" {
		t.Fatalf("expected rollback to leave text empty, got %q", got.Text)
	}

	if err := store.BatchUpdateText(ctx, []records.TextUpdate{
		{RecordID: recs[0].RecordID, Text: "first"},
		{RecordID: recs[1].RecordID, Text: "second"},
	}); err != nil {
		t.Fatalf("BatchUpdateText: %v", err)
	}
	pending, err := store.PendingText(ctx)
	if err != nil {
		t.Fatalf("PendingText: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending records, got %+v", pending)
	}
}

func TestUpdateTextMissingRecord(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	if err := store.UpdateText(context.Background(), "rec-missing", "x"); !errors.Is(err, records.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	rec, err := store.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec != nil {
		t.Fatalf("expected nil, got %+v", rec)
	}
}

func TestListLimit(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	testsupport.MustInsert(t, store, records.Record{AwemeID: "1"}, records.Record{AwemeID: "2"}, records.Record{AwemeID: "3"})
	list, err := store.List(context.Background(), records.ListOptions{Limit: 2})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 records, got %d", len(list))
	}
}

func TestStorePath(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	if filepath.Clean(store.Path()) != filepath.Clean(cfg.Storage.Path) {
		t.Fatalf("unexpected path %q", store.Path())
	}
}
