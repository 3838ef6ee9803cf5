package videotext

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Credentials are forwarded verbatim in every request body.
type Credentials struct {
	Username string
	Password string
}

// Source locates the media for an ASR submission. Both fields are optional.
type Source struct {
	PlayAddr  string
	AudioAddr string
}

// LLMTask identifies one normalization task on the remote service.
type LLMTask struct {
	ConversationID string `json:"conversation_id"`
	ChatID         string `json:"chat_id"`
}

// SubmissionKind distinguishes a freshly assigned task from a result the
// service already holds.
type SubmissionKind int

const (
	// Assigned means a task handle was issued and must be polled.
	Assigned SubmissionKind = iota + 1
	// AlreadyComplete means the result text was returned directly.
	AlreadyComplete
)

func (k SubmissionKind) String() string {
	switch k {
	case Assigned:
		return "assigned"
	case AlreadyComplete:
		return "already_complete"
	default:
		return "unknown"
	}
}

// ASRSubmission is the outcome of SubmitASR. TaskID is set for Assigned,
// Text for AlreadyComplete.
type ASRSubmission struct {
	Kind    SubmissionKind
	TaskID  string
	Text    string
	Message string
	// Balance is the account's remaining points when the service reports it.
	Balance *float64
}

// LLMSubmission is the outcome of SubmitLLM. Tasks is set for Assigned, Text
// for AlreadyComplete.
type LLMSubmission struct {
	Kind    SubmissionKind
	Tasks   []LLMTask
	Text    string
	Message string
}

// PollStatus is the settled state of one fetch call.
type PollStatus int

const (
	// Processing means the task is still running.
	Processing PollStatus = iota + 1
	// Ready means Text holds the result.
	Ready
)

func (s PollStatus) String() string {
	switch s {
	case Processing:
		return "processing"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

// PollResult is the outcome of FetchASR and FetchLLM.
type PollResult struct {
	Status  PollStatus
	Text    string
	Message string
}

// Points reports the account's balance.
type Points struct {
	Balance        float64
	RecentDeducted float64
}

const (
	existSentinel  = "EXIST"
	successMessage = "处理成功"
)

type taskRequest struct {
	Username  string    `json:"username"`
	Password  string    `json:"password"`
	AwemeID   string    `json:"aweme_id,omitempty"`
	PlayAddr  string    `json:"play_addr,omitempty"`
	AudioAddr string    `json:"audio_addr,omitempty"`
	ASRTaskID string    `json:"asr_task_id,omitempty"`
	LLMTasks  []LLMTask `json:"llm_task_id_list,omitempty"`
}

type taskResponse struct {
	Message            string           `json:"message"`
	Videotext          *videotextFields `json:"videotext"`
	BonusPointsBalance *flexNumber      `json:"bonus_points_balance"`
}

type videotextFields struct {
	ASRTaskID    string    `json:"asr_task_id"`
	VideoTextOri string    `json:"video_text_ori"`
	LLMTasks     []LLMTask `json:"llm_task_id_list"`
	VideoTextArr string    `json:"video_text_arr"`
}

type userInfoResponse struct {
	Message              string     `json:"message"`
	BonusPointsBalance   flexNumber `json:"bonus_points_balance"`
	RecentDeductedPoints flexNumber `json:"recent_deducted_points"`
}

// flexNumber accepts a JSON number, a numeric string, or null.
type flexNumber float64

func (n *flexNumber) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == `""` {
		*n = 0
		return nil
	}
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = strings.TrimSpace(unquoted)
	}
	var value float64
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return err
	}
	*n = flexNumber(value)
	return nil
}
