package records

import (
	"errors"
	"strings"
	"time"
)

// ErrNotFound reports that a record id does not exist.
var ErrNotFound = errors.New("record not found")

// Record is one row of the record table.
type Record struct {
	RecordID    string `json:"record_id"`
	AwemeID     string `json:"aweme_id"`
	Nickname    string `json:"nickname,omitempty"`
	Description string `json:"desc,omitempty"`
	ShareURL    string `json:"share_url,omitempty"`
	PlayAddr    string `json:"play_addr,omitempty"`
	AudioAddr   string `json:"audio_addr,omitempty"`
	// Duration is nil when the source did not report one.
	Duration  *float64  `json:"duration,omitempty"`
	Text      string    `json:"video_text"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Pending reports whether the record still needs text.
func (r Record) Pending() bool {
	return strings.TrimSpace(r.Text) == "" && strings.TrimSpace(r.AwemeID) != ""
}

// TextUpdate pairs a record id with the text to store.
type TextUpdate struct {
	RecordID string
	Text     string
}

// Stats summarizes the record table.
type Stats struct {
	Total     int
	Pending   int
	WithText  int
	MissingID int
}

// ListOptions filters List results.
type ListOptions struct {
	PendingOnly bool
	Limit       int
}
