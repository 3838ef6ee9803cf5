package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"

	"videotext/internal/services"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ImportRecord is the JSON shape accepted by Import.
type ImportRecord struct {
	RecordID    string   `json:"record_id" validate:"omitempty,max=64"`
	AwemeID     string   `json:"aweme_id" validate:"required,max=64"`
	Nickname    string   `json:"nickname"`
	Description string   `json:"desc"`
	ShareURL    string   `json:"share_url" validate:"omitempty,url"`
	PlayAddr    string   `json:"play_addr" validate:"omitempty,url"`
	AudioAddr   string   `json:"audio_addr" validate:"omitempty,url"`
	Duration    *float64 `json:"duration" validate:"omitempty,gte=0"`
	Text        string   `json:"video_text"`
}

// ImportReport summarizes an Import call.
type ImportReport struct {
	Created int
	Updated int
	Invalid []ImportIssue
}

// ImportIssue describes one rejected input entry.
type ImportIssue struct {
	Index   int
	AwemeID string
	Reason  string
}

// DecodeImport reads a JSON array of records.
func DecodeImport(r io.Reader) ([]ImportRecord, error) {
	var entries []ImportRecord
	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&entries); err != nil {
		return nil, fmt.Errorf("%w: decode records: %w", services.ErrValidation, err)
	}
	return entries, nil
}

// Import validates entries and upserts the valid ones by aweme_id. Invalid
// entries are reported and skipped; repeated aweme_ids within one import
// collapse into the first entry.
func (s *Store) Import(ctx context.Context, entries []ImportRecord) (ImportReport, error) {
	var report ImportReport
	seen := make(map[string]struct{}, len(entries))
	for idx, entry := range entries {
		entry.AwemeID = strings.TrimSpace(entry.AwemeID)
		if err := validate.Struct(entry); err != nil {
			report.Invalid = append(report.Invalid, ImportIssue{Index: idx, AwemeID: entry.AwemeID, Reason: describeValidation(err)})
			continue
		}
		if _, dup := seen[entry.AwemeID]; dup {
			report.Invalid = append(report.Invalid, ImportIssue{Index: idx, AwemeID: entry.AwemeID, Reason: "duplicate aweme_id in input"})
			continue
		}
		seen[entry.AwemeID] = struct{}{}

		_, created, err := s.Upsert(ctx, Record{
			RecordID:    entry.RecordID,
			AwemeID:     entry.AwemeID,
			Nickname:    strings.TrimSpace(entry.Nickname),
			Description: strings.TrimSpace(entry.Description),
			ShareURL:    strings.TrimSpace(entry.ShareURL),
			PlayAddr:    strings.TrimSpace(entry.PlayAddr),
			AudioAddr:   strings.TrimSpace(entry.AudioAddr),
			Duration:    entry.Duration,
			Text:        entry.Text,
		})
		if err != nil {
			return report, fmt.Errorf("import %s: %w", entry.AwemeID, err)
		}
		if created {
			report.Created++
		} else {
			report.Updated++
		}
	}
	return report, nil
}

func describeValidation(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
