package pipeline_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"videotext/internal/logging"
	"videotext/internal/pipeline"
	"videotext/internal/records"
	"videotext/internal/services/videotext"
	"videotext/internal/testsupport"
)

func TestRunStoresFetchedTextWhenCanceledMidPoll(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	recs := testsupport.MustInsert(t, store, records.Record{AwemeID: "done"}, records.Record{AwemeID: "slow"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := newFakeClient(map[string]*script{
		"done": {
			asr:      assignedASR("task-done"),
			asrPolls: []pollAnswer{ready("paid transcript")},
			llm:      existingLLM("normalized transcript"),
		},
		"slow": {asr: assignedASR("task-slow"), asrPolls: []pollAnswer{processing()}},
	})
	client.onFetch = func(op, id string) {
		if op == "asr_fetch" && id == "done" {
			cancel()
		}
	}

	opts := fastOptions()
	opts.PollInterval = time.Hour
	done := pipeline.NewItem("done", recs[0].RecordID, videotext.Source{}, nil)
	slow := pipeline.NewItem("slow", recs[1].RecordID, videotext.Source{}, nil)

	p := pipeline.New(client, store, opts, logging.NewNop())
	result, err := p.Run(ctx, []*pipeline.Item{done, slow}, testCreds, nil)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if done.State != pipeline.StateLLMDone {
		t.Fatalf("expected done to finish, got state=%s err=%v", done.State, done.Err)
	}
	if client.count("llm_submit", "done") != 1 {
		t.Fatal("expected the normalization submit to run after cancellation")
	}
	if slow.State != pipeline.StateFailed || !errors.Is(slow.Err, context.Canceled) {
		t.Fatalf("expected slow to fail with context.Canceled, got state=%s err=%v", slow.State, slow.Err)
	}
	if client.count("asr_fetch", "slow") != 1 {
		t.Fatalf("expected one poll round for slow, got %d", client.count("asr_fetch", "slow"))
	}
	if result.Write.Mode != pipeline.WriteModeBatch || result.SuccessCount != 1 || result.FailCount != 1 {
		t.Fatalf("unexpected result: mode=%s success=%d fail=%d", result.Write.Mode, result.SuccessCount, result.FailCount)
	}

	stored, err := store.Get(context.Background(), recs[0].RecordID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored == nil || stored.Text != "normalized transcript" {
		t.Fatalf("expected fetched text stored, got %+v", stored)
	}
}

func TestRunPollsOnceWhenAlreadyCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := newFakeClient(map[string]*script{
		"A": {asr: assignedASR("task-A"), asrPolls: []pollAnswer{ready("raw A")}, llm: existingLLM("normalized A")},
	})
	writer := newFakeWriter()
	item := newItem("A", nil)

	p := pipeline.New(client, writer, fastOptions(), logging.NewNop())
	result, err := p.Run(ctx, []*pipeline.Item{item}, testCreds, nil)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if item.State != pipeline.StateLLMDone || writer.stored["rec-A"] != "normalized A" {
		t.Fatalf("expected A completed and stored, got state=%s stored=%q", item.State, writer.stored["rec-A"])
	}
	if result.SuccessCount != 1 {
		t.Fatalf("expected one write, got %d", result.SuccessCount)
	}
}
