package videotext

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"videotext/internal/services"
)

const (
	defaultHTTPTimeout = 30 * time.Second

	pathSubmitASR = "videotext/update-ori-post"
	pathFetchASR  = "videotext/update-ori-get"
	pathSubmitLLM = "videotext/update-arr-post"
	pathFetchLLM  = "videotext/update-arr-get"
	pathUserInfo  = "user/getUserInfo"
)

// Config captures the runtime settings required to talk to the service.
type Config struct {
	BaseURL           string
	UserAgent         string
	TimeoutSeconds    int
	ProcessingMarkers []string
}

// Client issues submit and fetch calls against the remote service.
type Client struct {
	cfg        Config
	markers    []string
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			UserAgent:      strings.TrimSpace(cfg.UserAgent),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, marker := range cfg.ProcessingMarkers {
		if trimmed := strings.ToLower(strings.TrimSpace(marker)); trimmed != "" {
			client.markers = append(client.markers, trimmed)
		}
	}
	if len(client.markers) == 0 {
		client.markers = []string{"处理中", "processing"}
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Error reports a failed call. Err carries one of the services markers
// (ErrSubmit, ErrUnknownStatus, ErrTransport, ErrValidation).
type Error struct {
	Op         string
	ItemID     string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("videotext ")
	b.WriteString(e.Op)
	if e.ItemID != "" {
		b.WriteString(" ")
		b.WriteString(e.ItemID)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": http %d", e.StatusCode)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": message=%q", e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// SubmitASR requests transcription of one item. A response carrying the
// EXIST sentinel yields an AlreadyComplete submission with the stored text.
func (c *Client) SubmitASR(ctx context.Context, creds Credentials, awemeID string, src Source) (ASRSubmission, error) {
	const op = "asr submit"
	var empty ASRSubmission
	if err := requireItemID(op, awemeID); err != nil {
		return empty, err
	}
	resp, err := c.post(ctx, op, awemeID, pathSubmitASR, taskRequest{
		Username:  creds.Username,
		Password:  creds.Password,
		AwemeID:   awemeID,
		PlayAddr:  strings.TrimSpace(src.PlayAddr),
		AudioAddr: strings.TrimSpace(src.AudioAddr),
	})
	if err != nil {
		return empty, err
	}
	submission := ASRSubmission{Message: resp.Message}
	if resp.BonusPointsBalance != nil {
		balance := float64(*resp.BonusPointsBalance)
		submission.Balance = &balance
	}
	fields := resp.Videotext
	if fields == nil {
		return empty, &Error{Op: op, ItemID: awemeID, Message: resp.Message, Err: fmt.Errorf("%w: response missing videotext", services.ErrSubmit)}
	}
	taskID := strings.TrimSpace(fields.ASRTaskID)
	switch {
	case taskID == existSentinel:
		submission.Kind = AlreadyComplete
		submission.Text = fields.VideoTextOri
	case taskID != "":
		submission.Kind = Assigned
		submission.TaskID = taskID
	default:
		return empty, &Error{Op: op, ItemID: awemeID, Message: resp.Message, Err: fmt.Errorf("%w: no task id assigned", services.ErrSubmit)}
	}
	return submission, nil
}

// FetchASR probes an ASR task.
func (c *Client) FetchASR(ctx context.Context, creds Credentials, awemeID, taskID string) (PollResult, error) {
	const op = "asr fetch"
	if err := requireItemID(op, awemeID); err != nil {
		return PollResult{}, err
	}
	resp, err := c.post(ctx, op, awemeID, pathFetchASR, taskRequest{
		Username:  creds.Username,
		Password:  creds.Password,
		AwemeID:   awemeID,
		ASRTaskID: taskID,
	})
	if err != nil {
		return PollResult{}, err
	}
	var text string
	if resp.Videotext != nil {
		text = resp.Videotext.VideoTextOri
	}
	return c.pollResult(op, awemeID, resp.Message, text)
}

// SubmitLLM requests normalization of the item's stored raw text. A task
// list whose first entry carries the EXIST sentinel yields an
// AlreadyComplete submission.
func (c *Client) SubmitLLM(ctx context.Context, creds Credentials, awemeID string) (LLMSubmission, error) {
	const op = "llm submit"
	var empty LLMSubmission
	if err := requireItemID(op, awemeID); err != nil {
		return empty, err
	}
	resp, err := c.post(ctx, op, awemeID, pathSubmitLLM, taskRequest{
		Username: creds.Username,
		Password: creds.Password,
		AwemeID:  awemeID,
	})
	if err != nil {
		return empty, err
	}
	fields := resp.Videotext
	if fields == nil {
		return empty, &Error{Op: op, ItemID: awemeID, Message: resp.Message, Err: fmt.Errorf("%w: response missing videotext", services.ErrSubmit)}
	}
	tasks := make([]LLMTask, 0, len(fields.LLMTasks))
	for _, task := range fields.LLMTasks {
		task.ConversationID = strings.TrimSpace(task.ConversationID)
		task.ChatID = strings.TrimSpace(task.ChatID)
		if task.ConversationID == "" && task.ChatID == "" {
			continue
		}
		tasks = append(tasks, task)
	}
	switch {
	case len(tasks) > 0 && tasks[0].ConversationID == existSentinel:
		return LLMSubmission{Kind: AlreadyComplete, Text: fields.VideoTextArr, Message: resp.Message}, nil
	case len(tasks) > 0:
		return LLMSubmission{Kind: Assigned, Tasks: tasks, Message: resp.Message}, nil
	default:
		return empty, &Error{Op: op, ItemID: awemeID, Message: resp.Message, Err: fmt.Errorf("%w: no llm tasks assigned", services.ErrSubmit)}
	}
}

// FetchLLM probes the normalization tasks of one item.
func (c *Client) FetchLLM(ctx context.Context, creds Credentials, awemeID string, tasks []LLMTask) (PollResult, error) {
	const op = "llm fetch"
	if err := requireItemID(op, awemeID); err != nil {
		return PollResult{}, err
	}
	resp, err := c.post(ctx, op, awemeID, pathFetchLLM, taskRequest{
		Username: creds.Username,
		Password: creds.Password,
		AwemeID:  awemeID,
		LLMTasks: tasks,
	})
	if err != nil {
		return PollResult{}, err
	}
	var text string
	if resp.Videotext != nil {
		text = resp.Videotext.VideoTextArr
	}
	return c.pollResult(op, awemeID, resp.Message, text)
}

// UserInfo returns the account's points balance.
func (c *Client) UserInfo(ctx context.Context, creds Credentials) (Points, error) {
	const op = "user info"
	body, err := c.do(ctx, op, "", pathUserInfo, taskRequest{Username: creds.Username, Password: creds.Password})
	if err != nil {
		return Points{}, err
	}
	var resp userInfoResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Points{}, &Error{Op: op, Err: fmt.Errorf("%w: decode response: %w (body=%s)", services.ErrTransport, err, summarizeBody(body))}
	}
	return Points{
		Balance:        float64(resp.BonusPointsBalance),
		RecentDeducted: float64(resp.RecentDeductedPoints),
	}, nil
}

// IsProcessing reports whether message contains one of the configured
// processing markers.
func (c *Client) IsProcessing(message string) bool {
	lowered := strings.ToLower(message)
	for _, marker := range c.markers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}

func (c *Client) pollResult(op, awemeID, message, text string) (PollResult, error) {
	if strings.TrimSpace(text) != "" {
		return PollResult{Status: Ready, Text: text, Message: message}, nil
	}
	if c.IsProcessing(message) {
		return PollResult{Status: Processing, Message: message}, nil
	}
	return PollResult{}, &Error{Op: op, ItemID: awemeID, Message: message, Err: services.ErrUnknownStatus}
}

func (c *Client) post(ctx context.Context, op, awemeID, path string, payload taskRequest) (taskResponse, error) {
	var resp taskResponse
	body, err := c.do(ctx, op, awemeID, path, payload)
	if err != nil {
		return resp, err
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return resp, &Error{Op: op, ItemID: awemeID, Err: fmt.Errorf("%w: decode response: %w (body=%s)", services.ErrTransport, err, summarizeBody(body))}
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, op, awemeID, path string, payload taskRequest) ([]byte, error) {
	endpoint, err := url.JoinPath(c.cfg.BaseURL, path)
	if err != nil {
		return nil, &Error{Op: op, ItemID: awemeID, Err: fmt.Errorf("%w: build url: %w", services.ErrConfiguration, err)}
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, &Error{Op: op, ItemID: awemeID, Err: fmt.Errorf("encode body: %w", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, &Error{Op: op, ItemID: awemeID, Err: fmt.Errorf("%w: new request: %w", services.ErrConfiguration, err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Op: op, ItemID: awemeID, Err: fmt.Errorf("%w: %w", services.ErrTransport, err)}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Op: op, ItemID: awemeID, StatusCode: resp.StatusCode, Err: fmt.Errorf("%w: read body: %w", services.ErrTransport, err)}
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &Error{
			Op:         op,
			ItemID:     awemeID,
			StatusCode: resp.StatusCode,
			Message:    summarizeBody(body),
			Err:        services.ErrTransport,
		}
	}
	return body, nil
}

func requireItemID(op, awemeID string) error {
	if strings.TrimSpace(awemeID) == "" {
		return &Error{Op: op, Err: fmt.Errorf("%w: aweme_id required", services.ErrValidation)}
	}
	return nil
}

// IsSuccessMessage reports whether message is the service's literal success
// acknowledgement. Submissions are judged by their payload, so this is only
// used for diagnostics.
func IsSuccessMessage(message string) bool {
	return strings.TrimSpace(message) == successMessage
}

// ItemID extracts the item id from a client error.
func ItemID(err error) (string, bool) {
	var clientErr *Error
	if errors.As(err, &clientErr) && clientErr.ItemID != "" {
		return clientErr.ItemID, true
	}
	return "", false
}

func summarizeBody(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return "<empty>"
	}
	clean := strings.Join(strings.Fields(trimmed), " ")
	const limit = 160
	runes := []rune(clean)
	if len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	return clean
}
