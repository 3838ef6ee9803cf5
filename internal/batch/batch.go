// Package batch selects records that still need text, runs them through the
// pipeline, and records the outcome.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"videotext/internal/config"
	"videotext/internal/logging"
	"videotext/internal/metrics"
	"videotext/internal/pipeline"
	"videotext/internal/records"
	"videotext/internal/services"
	"videotext/internal/services/videotext"
)

// Store is the record storage the job reads from and writes to.
type Store interface {
	PendingText(ctx context.Context) ([]records.Record, error)
	pipeline.Writer
}

// Job runs batches for one configuration.
type Job struct {
	cfg     *config.Config
	store   Store
	client  pipeline.TaskClient
	metrics *metrics.Metrics
	logger  *slog.Logger

	pollInterval time.Duration
}

// Option customizes a Job.
type Option func(*Job)

// WithPollInterval overrides the configured poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(j *Job) {
		j.pollInterval = d
	}
}

// RunOptions adjusts a single run.
type RunOptions struct {
	// Limit caps the number of records selected; zero means no limit.
	Limit    int
	Progress pipeline.ProgressFunc
}

// Report is the outcome of one run.
type Report struct {
	RunID    string
	Selected int
	Result   pipeline.Result
	Summary  pipeline.Summary
}

// NewRemoteClient builds a service client from configuration.
func NewRemoteClient(cfg *config.Config) *videotext.Client {
	return videotext.NewClient(videotext.Config{
		BaseURL:           cfg.Remote.BaseURL,
		UserAgent:         cfg.Remote.UserAgent,
		TimeoutSeconds:    cfg.Remote.TimeoutSeconds,
		ProcessingMarkers: cfg.Remote.ProcessingMarkers,
	})
}

// Credentials returns the configured service credentials.
func Credentials(cfg *config.Config) videotext.Credentials {
	return videotext.Credentials{Username: cfg.Remote.Username, Password: cfg.Remote.Password}
}

// PipelineOptions maps configuration onto pipeline options.
func PipelineOptions(cfg *config.Config) pipeline.Options {
	return pipeline.Options{
		Concurrency:     cfg.Pipeline.Concurrency,
		PollInterval:    cfg.PollInterval(),
		PollMaxAttempts: cfg.Pipeline.PollMaxAttempts,
		DurationCeiling: cfg.Pipeline.DurationCeiling,
		Normalize:       cfg.Pipeline.Normalize,
	}
}

// NewJob constructs a job. m may be nil.
func NewJob(cfg *config.Config, store Store, client pipeline.TaskClient, m *metrics.Metrics, logger *slog.Logger, opts ...Option) (*Job, error) {
	if cfg == nil || store == nil || client == nil {
		return nil, fmt.Errorf("%w: batch job requires config, store, and client", services.ErrConfiguration)
	}
	job := &Job{
		cfg:     cfg,
		store:   store,
		client:  client,
		metrics: m,
		logger:  logging.NewComponentLogger(logger, "batch"),
	}
	for _, opt := range opts {
		opt(job)
	}
	return job, nil
}

// ItemsFromRecords converts pending records into pipeline items. Records
// without an aweme_id are skipped.
func ItemsFromRecords(recs []records.Record, limit int) []*pipeline.Item {
	items := make([]*pipeline.Item, 0, len(recs))
	for _, rec := range recs {
		if strings.TrimSpace(rec.AwemeID) == "" {
			continue
		}
		if limit > 0 && len(items) >= limit {
			break
		}
		item := pipeline.NewItem(rec.AwemeID, rec.RecordID, videotext.Source{
			PlayAddr:  rec.PlayAddr,
			AudioAddr: rec.AudioAddr,
		}, rec.Duration)
		item.RawText = rec.Text
		items = append(items, item)
	}
	return items
}

// RunOnce runs one batch; it satisfies scheduler.Runner.
func (j *Job) RunOnce(ctx context.Context, runID string) error {
	_, err := j.Run(ctx, runID, RunOptions{})
	return err
}

// Run selects pending records and drives them through the pipeline.
func (j *Job) Run(ctx context.Context, runID string, opts RunOptions) (Report, error) {
	report := Report{RunID: runID}
	if err := j.cfg.RequireCredentials(); err != nil {
		return report, err
	}
	ctx = services.WithRequestID(ctx, runID)
	logger := logging.WithContext(ctx, j.logger)
	start := time.Now()

	pending, err := j.store.PendingText(ctx)
	if err != nil {
		j.metrics.BatchFinished("error", metrics.Outcomes{}, time.Since(start))
		return report, fmt.Errorf("%w: load pending records: %w", services.ErrPersistence, err)
	}
	items := ItemsFromRecords(pending, opts.Limit)
	report.Selected = len(items)
	if len(items) == 0 {
		logger.Info("no pending records", logging.String(logging.FieldEventType, "batch_empty"))
		j.metrics.BatchFinished("empty", metrics.Outcomes{}, time.Since(start))
		return report, nil
	}

	pipelineOpts := PipelineOptions(j.cfg)
	if j.pollInterval > 0 {
		pipelineOpts.PollInterval = j.pollInterval
	}
	if j.metrics != nil {
		pipelineOpts.Observer = j.metrics
	}
	p := pipeline.New(j.client, j.store, pipelineOpts, logger)
	result, err := p.Run(ctx, items, Credentials(j.cfg), opts.Progress)
	report.Result = result
	report.Summary = pipeline.Summarize(result.Items)
	outcomes := metrics.Outcomes(report.Summary)
	if err != nil {
		j.metrics.BatchFinished("error", outcomes, time.Since(start))
		return report, err
	}
	if result.Balance != nil {
		j.metrics.SetBalance(*result.Balance)
	}
	j.metrics.BatchFinished("ok", outcomes, result.Duration)

	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "batch_summary"),
		logging.Int("selected", report.Selected),
		logging.Int("succeeded", result.SuccessCount),
		logging.Int("failed", result.FailCount),
		logging.Int("raw_only", report.Summary.RawOnly),
		logging.Int("skipped", report.Summary.Skipped),
		logging.String("write_mode", string(result.Write.Mode)),
	}
	if result.Balance != nil {
		attrs = append(attrs, logging.Float64("points_balance", *result.Balance))
	}
	logger.Info("batch summary", logging.Args(attrs...)...)
	return report, nil
}

// Failures returns the item id and error text of every item that ended
// without text or failed.
func (r Report) Failures() []Failure {
	var out []Failure
	for _, item := range r.Result.Items {
		switch {
		case item.Failed():
			out = append(out, Failure{ItemID: item.ID, Kind: services.Kind(item.Err), Reason: item.ErrorMessage()})
		case item.Skipped && item.FinalText() == "":
			out = append(out, Failure{ItemID: item.ID, Kind: "skipped", Reason: item.SkipReason})
		case item.FinalText() == "":
			out = append(out, Failure{ItemID: item.ID, Kind: "empty", Reason: "no text returned"})
		}
	}
	return out
}

// Failure describes one item that produced no stored text.
type Failure struct {
	ItemID string
	Kind   string
	Reason string
}
