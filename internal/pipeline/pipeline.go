package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"videotext/internal/logging"
	"videotext/internal/records"
	"videotext/internal/services"
	"videotext/internal/services/videotext"
	"videotext/internal/textutil"
)

// TaskClient is the remote API surface the pipeline drives.
type TaskClient interface {
	SubmitASR(ctx context.Context, creds videotext.Credentials, awemeID string, src videotext.Source) (videotext.ASRSubmission, error)
	FetchASR(ctx context.Context, creds videotext.Credentials, awemeID, taskID string) (videotext.PollResult, error)
	SubmitLLM(ctx context.Context, creds videotext.Credentials, awemeID string) (videotext.LLMSubmission, error)
	FetchLLM(ctx context.Context, creds videotext.Credentials, awemeID string, tasks []videotext.LLMTask) (videotext.PollResult, error)
}

// Observer receives pipeline events. Implementations must be safe for
// concurrent use.
type Observer interface {
	StageFailed(stage, kind string)
	PollRounds(stage string, rounds int)
	Persisted(mode string, succeeded, failed int)
}

type nopObserver struct{}

func (nopObserver) StageFailed(string, string) {}
func (nopObserver) PollRounds(string, int)     {}
func (nopObserver) Persisted(string, int, int) {}

// Defaults for zero-valued Options fields.
const (
	DefaultPollInterval    = 5 * time.Second
	DefaultPollMaxAttempts = 12
	DefaultDurationCeiling = 300.0
)

// Options tunes a pipeline.
type Options struct {
	Concurrency     int
	PollInterval    time.Duration
	PollMaxAttempts int
	// DurationCeiling is the longest item, in seconds, sent for transcription.
	DurationCeiling float64
	// Normalize enables the LLM stages.
	Normalize bool
	Observer  Observer
}

func (o Options) withDefaults() Options {
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.PollMaxAttempts <= 0 {
		o.PollMaxAttempts = DefaultPollMaxAttempts
	}
	if o.DurationCeiling <= 0 {
		o.DurationCeiling = DefaultDurationCeiling
	}
	if o.Observer == nil {
		o.Observer = nopObserver{}
	}
	return o
}

// Progress is reported as units finish within a stage.
type Progress struct {
	Stage string
	Done  int
	Total int
	// Round is the poll round for poll stages and zero otherwise.
	Round int
}

// ProgressFunc receives progress reports. Calls are never concurrent.
type ProgressFunc func(Progress)

// Result is the outcome of one batch.
type Result struct {
	Items []*Item
	// SuccessCount is the number of records written. It includes RawOnly
	// items, which are failed but still had their raw transcript stored.
	SuccessCount int
	// FailCount is the number of items with no final text plus failed writes.
	FailCount int
	Write     WriteReport
	// Balance is the last points balance the service reported, if any.
	Balance  *float64
	Duration time.Duration
}

// Pipeline runs batches against one remote client and one writer.
type Pipeline struct {
	client TaskClient
	writer Writer
	opts   Options
	logger *slog.Logger
}

// New constructs a pipeline.
func New(client TaskClient, writer Writer, opts Options, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		client: client,
		writer: writer,
		opts:   opts.withDefaults(),
		logger: logging.NewComponentLogger(logger, "pipeline"),
	}
}

type run struct {
	client   TaskClient
	writer   Writer
	opts     Options
	logger   *slog.Logger
	observer Observer
	creds    videotext.Credentials
	items    []*Item

	progressMu sync.Mutex
	progress   ProgressFunc

	balanceMu sync.Mutex
	balance   *float64
}

// Run drives items through every stage and persists the final text. Item
// failures are recorded on the items and never returned. Canceling ctx
// stops polling after the round in progress; the remaining items fail with
// the context error and everything already fetched is still written. Run returns an
// error only for an invalid batch or an unexpected panic; in the latter case
// the result carries the items in their last state.
func (p *Pipeline) Run(ctx context.Context, items []*Item, creds videotext.Credentials, progress ProgressFunc) (result Result, err error) {
	result.Items = items
	if p == nil || p.client == nil {
		return result, fmt.Errorf("%w: pipeline has no task client", services.ErrConfiguration)
	}
	if p.writer == nil {
		return result, fmt.Errorf("%w: pipeline has no writer", services.ErrConfiguration)
	}
	if err := validateBatch(items); err != nil {
		return result, err
	}

	start := time.Now()
	r := &run{
		client:   p.client,
		writer:   p.writer,
		opts:     p.opts,
		logger:   p.logger,
		observer: p.opts.Observer,
		creds:    creds,
		items:    items,
		progress: progress,
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("pipeline panicked: %v\n%s", rec, debug.Stack())
			result.Items = items
			result.Duration = time.Since(start)
		}
	}()

	r.logger.Info("batch started",
		logging.String(logging.FieldEventType, "batch_started"),
		logging.Int("items", len(items)),
		logging.Bool("normalize", p.opts.Normalize),
	)

	// Cancellation is only observed between poll rounds. Submissions and the
	// final write run to completion so text the service already returned is
	// stored.
	work := context.WithoutCancel(ctx)
	r.submitASR(work)
	r.pollASR(ctx)
	r.submitLLM(work)
	r.pollLLM(ctx)
	result = r.reconcile(work)
	result.Duration = time.Since(start)

	r.logger.Info("batch finished",
		logging.String(logging.FieldEventType, "batch_finished"),
		logging.Int("succeeded", result.SuccessCount),
		logging.Int("failed", result.FailCount),
		logging.String("write_mode", string(result.Write.Mode)),
		logging.Duration("duration", result.Duration),
	)
	return result, nil
}

func validateBatch(items []*Item) error {
	seen := make(map[string]struct{}, len(items))
	seenRecords := make(map[string]string, len(items))
	for i, item := range items {
		if item == nil {
			return fmt.Errorf("%w: item %d is nil", services.ErrValidation, i)
		}
		item.ID = strings.TrimSpace(item.ID)
		if item.ID == "" {
			return fmt.Errorf("%w: item %d has no id", services.ErrValidation, i)
		}
		if _, dup := seen[item.ID]; dup {
			return fmt.Errorf("%w: duplicate item id %q", services.ErrValidation, item.ID)
		}
		seen[item.ID] = struct{}{}
		item.RecordID = strings.TrimSpace(item.RecordID)
		if item.RecordID == "" {
			item.RecordID = item.ID
		}
		if other, dup := seenRecords[item.RecordID]; dup {
			return fmt.Errorf("%w: items %q and %q share record id %q", services.ErrValidation, other, item.ID, item.RecordID)
		}
		seenRecords[item.RecordID] = item.ID
		if item.State == "" {
			item.State = StatePending
		}
	}
	return nil
}

func (r *run) reconcile(ctx context.Context) Result {
	result := Result{Items: r.items, Balance: r.lastBalance()}

	var updates []records.TextUpdate
	byRecord := make(map[string]*Item, len(r.items))
	for _, item := range r.items {
		text := textutil.NormalizeText(item.FinalText())
		if text == "" {
			result.FailCount++
			continue
		}
		updates = append(updates, records.TextUpdate{RecordID: item.RecordID, Text: text})
		byRecord[item.RecordID] = item
	}

	report := Reconcile(ctx, r.writer, updates)
	result.Write = report
	result.SuccessCount = report.Succeeded
	result.FailCount += report.Failed

	stageCtx := services.WithStage(ctx, StageReconcile)
	if report.BatchErr != nil {
		logging.WarnWithContext(logging.WithContext(stageCtx, r.logger), "batch write failed; writing records individually", "batch_write_fallback",
			logging.Int("updates", len(updates)),
			logging.Error(report.BatchErr),
			logging.String(logging.FieldErrorHint, "check the record database; individual writes follow"),
		)
	}
	for recordID, err := range report.Errors {
		item := byRecord[recordID]
		if item == nil {
			continue
		}
		r.failItem(stageCtx, item, services.Wrap(services.ErrPersistence, StageReconcile, "UpdateText", "write final text", err))
	}
	if len(updates) > 0 {
		r.observer.Persisted(string(report.Mode), report.Succeeded, report.Failed)
	}
	r.report(Progress{Stage: StageReconcile, Done: len(updates), Total: len(updates)})
	return result
}

func (r *run) report(p Progress) {
	if r.progress == nil {
		return
	}
	r.progressMu.Lock()
	defer r.progressMu.Unlock()
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("progress callback panicked", logging.Any("panic", rec))
		}
	}()
	r.progress(p)
}

func (r *run) noteBalance(balance *float64) {
	if balance == nil {
		return
	}
	value := *balance
	r.balanceMu.Lock()
	r.balance = &value
	r.balanceMu.Unlock()
}

func (r *run) lastBalance() *float64 {
	r.balanceMu.Lock()
	defer r.balanceMu.Unlock()
	return r.balance
}

// Summary counts items by outcome.
type Summary struct {
	Completed int
	RawOnly   int
	Skipped   int
	Failed    int
	Empty     int
}

// Summarize tallies items after a run, each in exactly one bucket. An item
// is completed when it holds final text and did not fail; a RawOnly item is
// counted as raw-only, not as failed.
func Summarize(items []*Item) Summary {
	var s Summary
	for _, item := range items {
		switch {
		case item.RawOnly():
			s.RawOnly++
		case item.Failed():
			s.Failed++
		case item.Skipped:
			s.Skipped++
		case item.FinalText() == "":
			s.Empty++
		default:
			s.Completed++
		}
	}
	return s
}
