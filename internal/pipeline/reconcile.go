package pipeline

import (
	"context"

	"videotext/internal/records"
)

// Writer persists final text. BatchUpdateText is all-or-nothing.
type Writer interface {
	BatchUpdateText(ctx context.Context, updates []records.TextUpdate) error
	UpdateText(ctx context.Context, recordID, text string) error
}

// WriteMode reports how Reconcile persisted its updates.
type WriteMode string

const (
	WriteModeNone       WriteMode = "none"
	WriteModeBatch      WriteMode = "batch"
	WriteModeIndividual WriteMode = "individual"
)

// WriteReport summarizes a reconcile pass.
type WriteReport struct {
	Mode      WriteMode
	Succeeded int
	Failed    int
	// BatchErr is the batch write failure that triggered per-record writes.
	BatchErr error
	// Errors holds the per-record failure keyed by record id.
	Errors map[string]error
}

// Reconcile writes updates in one batch. When the batch write fails every
// update is retried on its own, so one bad record cannot block the rest.
func Reconcile(ctx context.Context, writer Writer, updates []records.TextUpdate) WriteReport {
	report := WriteReport{Mode: WriteModeNone, Errors: map[string]error{}}
	if len(updates) == 0 {
		return report
	}

	err := writer.BatchUpdateText(ctx, updates)
	if err == nil {
		report.Mode = WriteModeBatch
		report.Succeeded = len(updates)
		return report
	}

	report.Mode = WriteModeIndividual
	report.BatchErr = err
	for _, update := range updates {
		if err := writer.UpdateText(ctx, update.RecordID, update.Text); err != nil {
			report.Failed++
			report.Errors[update.RecordID] = err
			continue
		}
		report.Succeeded++
	}
	return report
}
