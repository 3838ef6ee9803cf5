package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"videotext/internal/services"
	"videotext/internal/services/videotext"
)

// State is an item's position in the ASR/LLM lifecycle.
type State string

const (
	StatePending       State = "pending"
	StateASRSubmitting State = "asr_submitting"
	StateASRPolling    State = "asr_polling"
	StateASRDone       State = "asr_done"
	StateLLMSubmitting State = "llm_submitting"
	StateLLMPolling    State = "llm_polling"
	StateLLMDone       State = "llm_done"
	StateFailed        State = "failed"
)

var transitions = map[State][]State{
	StatePending:       {StateASRSubmitting, StateASRDone},
	StateASRSubmitting: {StateASRPolling, StateASRDone, StateFailed},
	StateASRPolling:    {StateASRDone, StateFailed},
	StateASRDone:       {StateLLMSubmitting, StateFailed},
	StateLLMSubmitting: {StateLLMPolling, StateLLMDone, StateFailed},
	StateLLMPolling:    {StateLLMDone, StateFailed},
	StateLLMDone:       {StateFailed},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Item is one unit of work in a batch.
type Item struct {
	// ID is the external identifier (aweme_id); unique within a batch.
	ID string
	// RecordID is the storage row the final text is written to.
	RecordID string
	Source   videotext.Source
	// DurationHint is nil when the duration is unknown.
	DurationHint *float64

	ASRTaskID      string
	RawText        string
	LLMTasks       []videotext.LLMTask
	NormalizedText string

	State State
	Err   error

	// Skipped marks an item whose duration exceeded the ceiling. It stays
	// pending and bypasses both remote stages.
	Skipped    bool
	SkipReason string

	// ASRExisting and LLMExisting record that the service returned an
	// existing result instead of a task handle.
	ASRExisting bool
	LLMExisting bool

	ASRPollRounds int
	LLMPollRounds int
}

// NewItem returns a pending item.
func NewItem(id, recordID string, src videotext.Source, duration *float64) *Item {
	return &Item{
		ID:           strings.TrimSpace(id),
		RecordID:     strings.TrimSpace(recordID),
		Source:       src,
		DurationHint: duration,
		State:        StatePending,
	}
}

// FinalText is the normalized text, else the raw text, else empty.
func (it *Item) FinalText() string {
	if it.NormalizedText != "" {
		return it.NormalizedText
	}
	return it.RawText
}

// Failed reports whether the item ended in the failed state.
func (it *Item) Failed() bool {
	return it.State == StateFailed
}

// RawOnly reports a failed item whose raw transcript is still written. A
// failed write replaces the item error, so it never counts here.
func (it *Item) RawOnly() bool {
	return it.Failed() && !errors.Is(it.Err, services.ErrPersistence) && strings.TrimSpace(it.RawText) != ""
}

// Terminal reports whether no further stage will act on the item given the
// normalization setting.
func (it *Item) Terminal(normalize bool) bool {
	switch it.State {
	case StateFailed, StateLLMDone:
		return true
	case StateASRDone:
		return !normalize || strings.TrimSpace(it.RawText) == ""
	case StatePending:
		return it.Skipped
	default:
		return false
	}
}

func (it *Item) transition(to State) error {
	if !CanTransition(it.State, to) {
		return fmt.Errorf("item %s: illegal transition %s -> %s", it.ID, it.State, to)
	}
	it.State = to
	return nil
}

// fail moves the item to failed. Normalized text never survives a failure;
// raw text does, so a later stage failure still leaves ASR output to persist.
func (it *Item) fail(err error) {
	it.State = StateFailed
	it.Err = err
	it.NormalizedText = ""
}

// ErrorMessage returns the failure text or "".
func (it *Item) ErrorMessage() string {
	if it.Err == nil {
		return ""
	}
	return it.Err.Error()
}
