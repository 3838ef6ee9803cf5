package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"videotext/internal/logging"
	"videotext/internal/services"
	"videotext/internal/services/videotext"
)

// Stage names used in progress reports, logs, and metrics.
const (
	StageASRSubmit = "asr_submit"
	StageASRPoll   = "asr_poll"
	StageLLMSubmit = "llm_submit"
	StageLLMPoll   = "llm_poll"
	StageReconcile = "reconcile"
)

// classify applies the duration ceiling and the pending-input shortcut and
// returns the items that need an ASR submission.
func (r *run) classify() []*Item {
	var submit []*Item
	for _, item := range r.items {
		if item.State != StatePending {
			continue
		}
		if item.DurationHint != nil && *item.DurationHint > r.opts.DurationCeiling {
			item.Skipped = true
			item.SkipReason = fmt.Sprintf("duration %.1fs exceeds ceiling %.1fs", *item.DurationHint, r.opts.DurationCeiling)
			r.logger.Info("item skipped",
				logging.String(logging.FieldItemID, item.ID),
				logging.String(logging.FieldEventType, "item_skipped"),
				logging.String("reason", item.SkipReason),
			)
			continue
		}
		if strings.TrimSpace(item.RawText) != "" {
			_ = item.transition(StateASRDone)
			continue
		}
		submit = append(submit, item)
	}
	return submit
}

func (r *run) submitASR(ctx context.Context) {
	items := r.classify()
	r.dispatch(ctx, StageASRSubmit, items, func(ctx context.Context, item *Item) {
		if err := item.transition(StateASRSubmitting); err != nil {
			r.failItem(ctx, item, err)
			return
		}
		sub, err := r.client.SubmitASR(ctx, r.creds, item.ID, item.Source)
		if err != nil {
			r.failItem(ctx, item, services.Wrap(services.ErrSubmit, StageASRSubmit, "SubmitASR", "asr submission rejected", err))
			return
		}
		r.noteBalance(sub.Balance)
		r.noteMessage(ctx, "SubmitASR", sub.Message)
		switch sub.Kind {
		case videotext.AlreadyComplete:
			item.ASRExisting = true
			item.RawText = sub.Text
			_ = item.transition(StateASRDone)
		default:
			item.ASRTaskID = sub.TaskID
			_ = item.transition(StateASRPolling)
		}
	})
}

func (r *run) pollASR(ctx context.Context) {
	working := r.inState(StateASRPolling)
	r.poll(ctx, StageASRPoll, working, func(ctx context.Context, item *Item) bool {
		item.ASRPollRounds++
		res, err := r.client.FetchASR(ctx, r.creds, item.ID, item.ASRTaskID)
		if err != nil {
			r.failItem(ctx, item, pollError(StageASRPoll, "FetchASR", err))
			return true
		}
		if res.Status != videotext.Ready {
			return false
		}
		item.RawText = res.Text
		_ = item.transition(StateASRDone)
		return true
	})
}

func (r *run) submitLLM(ctx context.Context) {
	if !r.opts.Normalize {
		return
	}
	var items []*Item
	for _, item := range r.inState(StateASRDone) {
		if strings.TrimSpace(item.RawText) != "" {
			items = append(items, item)
		}
	}
	r.dispatch(ctx, StageLLMSubmit, items, func(ctx context.Context, item *Item) {
		if err := item.transition(StateLLMSubmitting); err != nil {
			r.failItem(ctx, item, err)
			return
		}
		sub, err := r.client.SubmitLLM(ctx, r.creds, item.ID)
		if err != nil {
			r.failItem(ctx, item, services.Wrap(services.ErrSubmit, StageLLMSubmit, "SubmitLLM", "llm submission rejected", err))
			return
		}
		r.noteMessage(ctx, "SubmitLLM", sub.Message)
		switch sub.Kind {
		case videotext.AlreadyComplete:
			item.LLMExisting = true
			item.NormalizedText = sub.Text
			_ = item.transition(StateLLMDone)
		default:
			item.LLMTasks = sub.Tasks
			_ = item.transition(StateLLMPolling)
		}
	})
}

func (r *run) pollLLM(ctx context.Context) {
	working := r.inState(StateLLMPolling)
	r.poll(ctx, StageLLMPoll, working, func(ctx context.Context, item *Item) bool {
		item.LLMPollRounds++
		res, err := r.client.FetchLLM(ctx, r.creds, item.ID, item.LLMTasks)
		if err != nil {
			r.failItem(ctx, item, pollError(StageLLMPoll, "FetchLLM", err))
			return true
		}
		if res.Status != videotext.Ready {
			return false
		}
		item.NormalizedText = res.Text
		_ = item.transition(StateLLMDone)
		return true
	})
}

// noteMessage logs an accepted submission whose message is not the usual
// acknowledgement.
func (r *run) noteMessage(ctx context.Context, op, message string) {
	if videotext.IsSuccessMessage(message) {
		return
	}
	logging.WithContext(ctx, r.logger).Debug("submission accepted with unexpected message",
		logging.String(logging.FieldEventType, "submit_message"),
		logging.String("operation", op),
		logging.String("message", message),
	)
}

func pollError(stage, op string, err error) error {
	marker := services.ErrTransport
	if errors.Is(err, services.ErrUnknownStatus) {
		marker = services.ErrUnknownStatus
	}
	return services.Wrap(marker, stage, op, "poll failed", err)
}

func (r *run) dispatch(ctx context.Context, stage string, items []*Item, unit func(context.Context, *Item)) {
	if len(items) == 0 {
		return
	}
	stageCtx := services.WithStage(ctx, stage)
	errs := Dispatch(stageCtx, r.opts.Concurrency, items, func(ctx context.Context, _ int, item *Item) error {
		unit(services.WithItemID(ctx, item.ID), item)
		return nil
	}, func(done, total int) {
		r.report(Progress{Stage: stage, Done: done, Total: total})
	})
	for i, err := range errs {
		if err != nil {
			r.failItem(stageCtx, items[i], fmt.Errorf("%s: %w", stage, err))
		}
	}
}

func (r *run) poll(ctx context.Context, stage string, working []*Item, probe func(context.Context, *Item) bool) {
	if len(working) == 0 {
		return
	}
	stageCtx := services.WithStage(ctx, stage)
	total := len(working)
	rounds := Poll(stageCtx, PollConfig{
		Interval:    r.opts.PollInterval,
		MaxAttempts: r.opts.PollMaxAttempts,
		Concurrency: r.opts.Concurrency,
		OnRound: func(round, remaining int) {
			r.report(Progress{Stage: stage, Done: total - remaining, Total: total, Round: round})
		},
	}, working, func(ctx context.Context, item *Item) (done bool) {
		defer func() {
			if rec := recover(); rec != nil {
				r.failItem(ctx, item, fmt.Errorf("%s: probe panicked: %v", stage, rec))
				done = true
			}
		}()
		return probe(services.WithItemID(ctx, item.ID), item)
	}, func(item *Item, cause error) {
		if cause != nil {
			r.failItem(stageCtx, item, fmt.Errorf("%s: polling stopped: %w", stage, cause))
			return
		}
		r.failItem(stageCtx, item, services.Wrap(services.ErrPollTimeout, stage, "poll",
			fmt.Sprintf("no result after %d rounds", r.opts.PollMaxAttempts), nil))
	})
	r.observer.PollRounds(stage, rounds)
	r.logger.Debug("poll stage finished",
		logging.String(logging.FieldStage, stage),
		logging.String(logging.FieldEventType, "poll_finished"),
		logging.Int("rounds", rounds),
		logging.Int("items", total),
	)
}

func (r *run) inState(state State) []*Item {
	var out []*Item
	for _, item := range r.items {
		if item.State == state {
			out = append(out, item)
		}
	}
	return out
}

func (r *run) failItem(ctx context.Context, item *Item, err error) {
	item.fail(err)
	ctx = services.WithItemID(ctx, item.ID)
	stage, _ := services.StageFromContext(ctx)
	kind := services.Kind(err)
	r.observer.StageFailed(stage, kind)
	logging.WarnWithContext(logging.WithContext(ctx, r.logger), "item failed", "item_failed",
		logging.String(logging.FieldErrorKind, kind),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, hintFor(kind)),
	)
}

func hintFor(kind string) string {
	switch kind {
	case services.KindSubmit:
		return "check credentials, points balance, and media addresses"
	case services.KindPollTimeout:
		return "the remote task may still finish; the next batch will retry"
	case services.KindUnknownStatus:
		return "add the message to remote.processing_markers if it means still processing"
	case services.KindPersistence:
		return "check the record database is writable"
	default:
		return "check logs for details"
	}
}
