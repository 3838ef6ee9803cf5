// Package services defines shared utilities consumed by the pipeline stages
// and the remote transcription client.
//
// Key responsibilities:
//   - Context helpers that stamp item IDs, stage names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper, so per-item failures can
//     be classified (submit, poll timeout, unknown status, persistence) without
//     string matching.
//
// Use these helpers when wiring new stage logic so failure reporting and
// observability stay uniform across the pipeline.
package services
