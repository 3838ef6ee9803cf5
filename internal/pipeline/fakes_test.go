package pipeline_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"videotext/internal/records"
	"videotext/internal/services/videotext"
)

// script describes how the fake service answers for one item. Poll slices
// are consumed in order and the last entry repeats.
type script struct {
	asr      videotext.ASRSubmission
	asrErr   error
	asrPolls []pollAnswer
	llm      videotext.LLMSubmission
	llmErr   error
	llmPolls []pollAnswer
}

type pollAnswer struct {
	res videotext.PollResult
	err error
}

func processing() pollAnswer {
	return pollAnswer{res: videotext.PollResult{Status: videotext.Processing, Message: "处理中"}}
}

func ready(text string) pollAnswer {
	return pollAnswer{res: videotext.PollResult{Status: videotext.Ready, Text: text}}
}

func assignedASR(taskID string) videotext.ASRSubmission {
	return videotext.ASRSubmission{Kind: videotext.Assigned, TaskID: taskID}
}

func existingASR(text string) videotext.ASRSubmission {
	return videotext.ASRSubmission{Kind: videotext.AlreadyComplete, Text: text}
}

func assignedLLM(ids ...string) videotext.LLMSubmission {
	tasks := make([]videotext.LLMTask, 0, len(ids))
	for _, id := range ids {
		tasks = append(tasks, videotext.LLMTask{ConversationID: id, ChatID: "chat-" + id})
	}
	return videotext.LLMSubmission{Kind: videotext.Assigned, Tasks: tasks}
}

func existingLLM(text string) videotext.LLMSubmission {
	return videotext.LLMSubmission{Kind: videotext.AlreadyComplete, Text: text}
}

type fakeClient struct {
	mu      sync.Mutex
	scripts map[string]*script
	calls   map[string]int
	delay   time.Duration
	// onFetch runs inside every poll call before the scripted answer.
	onFetch func(op, id string)

	inFlight int
	peak     int
}

func newFakeClient(scripts map[string]*script) *fakeClient {
	return &fakeClient{scripts: scripts, calls: map[string]int{}}
}

func (f *fakeClient) enter(op, id string) (*script, int) {
	f.mu.Lock()
	f.calls[op+"/"+id]++
	n := f.calls[op+"/"+id]
	f.inFlight++
	if f.inFlight > f.peak {
		f.peak = f.inFlight
	}
	s := f.scripts[id]
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return s, n
}

func (f *fakeClient) leave() {
	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()
}

func (f *fakeClient) count(op, id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op+"/"+id]
}

func (f *fakeClient) peakInFlight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.peak
}

func (f *fakeClient) SubmitASR(_ context.Context, _ videotext.Credentials, id string, _ videotext.Source) (videotext.ASRSubmission, error) {
	s, _ := f.enter("asr_submit", id)
	defer f.leave()
	if s == nil {
		return videotext.ASRSubmission{}, errors.New("no script for " + id)
	}
	return s.asr, s.asrErr
}

func (f *fakeClient) FetchASR(_ context.Context, _ videotext.Credentials, id, _ string) (videotext.PollResult, error) {
	s, n := f.enter("asr_fetch", id)
	defer f.leave()
	if f.onFetch != nil {
		f.onFetch("asr_fetch", id)
	}
	return answer(s.asrPolls, n)
}

func (f *fakeClient) SubmitLLM(_ context.Context, _ videotext.Credentials, id string) (videotext.LLMSubmission, error) {
	s, _ := f.enter("llm_submit", id)
	defer f.leave()
	return s.llm, s.llmErr
}

func (f *fakeClient) FetchLLM(_ context.Context, _ videotext.Credentials, id string, _ []videotext.LLMTask) (videotext.PollResult, error) {
	s, n := f.enter("llm_fetch", id)
	defer f.leave()
	if f.onFetch != nil {
		f.onFetch("llm_fetch", id)
	}
	return answer(s.llmPolls, n)
}

func answer(answers []pollAnswer, call int) (videotext.PollResult, error) {
	if len(answers) == 0 {
		return videotext.PollResult{}, errors.New("no poll answers scripted")
	}
	if call > len(answers) {
		call = len(answers)
	}
	a := answers[call-1]
	return a.res, a.err
}

type fakeWriter struct {
	mu         sync.Mutex
	batchErr   error
	failIDs    map[string]error
	batches    [][]records.TextUpdate
	individual []records.TextUpdate
	stored     map[string]string
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{failIDs: map[string]error{}, stored: map[string]string{}}
}

func (w *fakeWriter) BatchUpdateText(_ context.Context, updates []records.TextUpdate) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.batches = append(w.batches, append([]records.TextUpdate(nil), updates...))
	if w.batchErr != nil {
		return w.batchErr
	}
	for _, u := range updates {
		w.stored[u.RecordID] = u.Text
	}
	return nil
}

func (w *fakeWriter) UpdateText(_ context.Context, recordID, text string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.individual = append(w.individual, records.TextUpdate{RecordID: recordID, Text: text})
	if err := w.failIDs[recordID]; err != nil {
		return err
	}
	w.stored[recordID] = text
	return nil
}

type recordingObserver struct {
	mu        sync.Mutex
	failures  map[string]int
	rounds    map[string]int
	persisted []string
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{failures: map[string]int{}, rounds: map[string]int{}}
}

func (o *recordingObserver) StageFailed(stage, kind string) {
	o.mu.Lock()
	o.failures[stage+"/"+kind]++
	o.mu.Unlock()
}

func (o *recordingObserver) PollRounds(stage string, rounds int) {
	o.mu.Lock()
	o.rounds[stage] += rounds
	o.mu.Unlock()
}

func (o *recordingObserver) Persisted(mode string, _, _ int) {
	o.mu.Lock()
	o.persisted = append(o.persisted, mode)
	o.mu.Unlock()
}
