package testsupport

import (
	"context"
	"testing"

	"videotext/internal/config"
	"videotext/internal/records"
)

// MustOpenStore opens the record store for cfg and closes it on cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *records.Store {
	t.Helper()

	store, err := records.Open(cfg)
	if err != nil {
		t.Fatalf("records.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// MustInsert upserts recs and returns the stored rows in input order.
func MustInsert(t testing.TB, store *records.Store, recs ...records.Record) []records.Record {
	t.Helper()

	out := make([]records.Record, 0, len(recs))
	for _, rec := range recs {
		stored, _, err := store.Upsert(context.Background(), rec)
		if err != nil {
			t.Fatalf("Upsert %q: %v", rec.AwemeID, err)
		}
		out = append(out, stored)
	}
	return out
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}
