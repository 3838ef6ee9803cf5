package testsupport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// RemoteBehavior selects how FakeRemote answers for one aweme_id.
type RemoteBehavior int

const (
	// RemoteExisting answers both submissions with the EXIST sentinel.
	RemoteExisting RemoteBehavior = iota
	// RemoteQueued assigns tasks; the first ASR poll reports processing.
	RemoteQueued
	// RemoteRejected rejects the ASR submission.
	RemoteRejected
)

// FakeRemote is an in-process stand-in for the transcription service.
type FakeRemote struct {
	Server *httptest.Server

	mu        sync.Mutex
	behaviors map[string]RemoteBehavior
	calls     map[string]int
	Balance   float64
}

// NewFakeRemote starts a fake service. Unknown aweme ids behave as
// RemoteExisting.
func NewFakeRemote(t testing.TB) *FakeRemote {
	t.Helper()
	f := &FakeRemote{behaviors: map[string]RemoteBehavior{}, calls: map[string]int{}, Balance: 100}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Server.Close)
	return f
}

// BaseURL is the API root to configure clients with.
func (f *FakeRemote) BaseURL() string {
	return f.Server.URL + "/api"
}

// Set assigns the behavior for awemeID.
func (f *FakeRemote) Set(awemeID string, behavior RemoteBehavior) {
	f.mu.Lock()
	f.behaviors[awemeID] = behavior
	f.mu.Unlock()
}

// Calls returns how often path was called for awemeID.
func (f *FakeRemote) Calls(path, awemeID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path+"/"+awemeID]
}

func (f *FakeRemote) serve(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	id, _ := body["aweme_id"].(string)
	path := strings.TrimPrefix(r.URL.Path, "/api/")

	f.mu.Lock()
	f.calls[path+"/"+id]++
	n := f.calls[path+"/"+id]
	behavior := f.behaviors[id]
	balance := f.Balance
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if body["username"] == "" || body["password"] == "" {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{"message": "认证失败"})
		return
	}

	var resp map[string]any
	switch path {
	case "user/getUserInfo":
		resp = map[string]any{"message": "处理成功", "bonus_points_balance": balance, "recent_deducted_points": 3}
	case "videotext/update-ori-post":
		switch behavior {
		case RemoteRejected:
			resp = map[string]any{"message": "积分不足", "videotext": map[string]any{}}
		case RemoteQueued:
			resp = map[string]any{"message": "处理成功", "videotext": map[string]any{"asr_task_id": "asr-" + id}, "bonus_points_balance": balance}
		default:
			resp = map[string]any{"message": "处理成功", "videotext": map[string]any{"asr_task_id": "EXIST", "video_text_ori": "raw " + id}, "bonus_points_balance": balance}
		}
	case "videotext/update-ori-get":
		if n == 1 {
			resp = map[string]any{"message": "处理中"}
		} else {
			resp = map[string]any{"message": "处理成功", "videotext": map[string]any{"video_text_ori": "raw " + id}}
		}
	case "videotext/update-arr-post":
		if behavior == RemoteQueued {
			resp = map[string]any{"message": "处理成功", "videotext": map[string]any{
				"llm_task_id_list": []map[string]string{{"conversation_id": "conv-" + id, "chat_id": "chat-" + id}},
			}}
		} else {
			resp = map[string]any{"message": "处理成功", "videotext": map[string]any{
				"llm_task_id_list": []map[string]string{{"conversation_id": "EXIST"}},
				"video_text_arr":   "text " + id,
			}}
		}
	case "videotext/update-arr-get":
		resp = map[string]any{"message": "处理成功", "videotext": map[string]any{"video_text_arr": "text " + id}}
	default:
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{"message": "not found"})
		return
	}
	_ = json.NewEncoder(w).Encode(resp)
}
