// Package pipeline drives a batch of items through transcription (ASR) and
// normalization (LLM) on the remote service and writes the resulting text
// back to storage.
//
// A run has five stages, each a barrier for the whole batch:
//
//	submitASR -> pollASR -> submitLLM -> pollLLM -> reconcile
//
// Submissions fan out through a bounded dispatcher. Polling repeats at a
// fixed interval over a shrinking working set until every item settles or
// the attempt limit is reached. Failures are recorded on the item and never
// abort the batch. Reconcile writes every non-empty final text in one batch
// and falls back to per-record writes when the batch write fails.
//
// Items are an arena indexed by position. During a stage each item is
// touched by exactly one goroutine, so Item needs no locking.
package pipeline
