package pipeline

import (
	"errors"
	"testing"

	"videotext/internal/services/videotext"
)

func TestItemRejectsIllegalTransition(t *testing.T) {
	it := NewItem("1", "rec1", sourceFixture(), nil)
	if err := it.transition(StateLLMPolling); err == nil {
		t.Fatal("expected pending -> llm_polling to be rejected")
	}
	if it.State != StatePending {
		t.Fatalf("rejected transition must leave state unchanged, got %s", it.State)
	}
	for _, next := range []State{StateASRSubmitting, StateASRPolling, StateASRDone, StateLLMSubmitting, StateLLMPolling, StateLLMDone} {
		if err := it.transition(next); err != nil {
			t.Fatalf("transition to %s returned error: %v", next, err)
		}
	}
	if err := it.transition(StatePending); err == nil {
		t.Fatal("expected llm_done -> pending to be rejected")
	}
}

func TestItemFailClearsNormalizedText(t *testing.T) {
	it := NewItem("1", "rec1", sourceFixture(), nil)
	it.RawText = "raw"
	it.NormalizedText = "normalized"
	it.fail(errors.New("write failed"))
	if it.NormalizedText != "" || it.RawText != "raw" {
		t.Fatalf("unexpected texts after fail: %+v", it)
	}
	if it.FinalText() != "raw" || !it.Failed() || it.ErrorMessage() != "write failed" {
		t.Fatalf("unexpected failed item: %+v", it)
	}
}

func TestItemTerminal(t *testing.T) {
	it := &Item{State: StateASRDone, RawText: "x"}
	if it.Terminal(true) {
		t.Fatal("asr_done with text is not terminal when normalizing")
	}
	if !it.Terminal(false) {
		t.Fatal("asr_done is terminal without normalization")
	}
	it.RawText = " "
	if !it.Terminal(true) {
		t.Fatal("asr_done without text is terminal")
	}
	if (&Item{State: StatePending}).Terminal(true) {
		t.Fatal("an unskipped pending item is not terminal")
	}
}

func sourceFixture() videotext.Source {
	return videotext.Source{PlayAddr: "https://cdn.example/v.mp4"}
}
