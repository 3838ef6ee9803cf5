package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const recordColumns = "record_id, aweme_id, nickname, description, share_url, play_addr, audio_addr, duration, video_text, created_at, updated_at"

// NewRecordID returns a fresh record identifier.
func NewRecordID() string {
	return "rec" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Upsert inserts rec or refreshes the metadata of the existing record with
// the same record id or aweme_id. Stored text is only replaced when rec
// carries non-empty text. The returned bool is true when a row was inserted.
func (s *Store) Upsert(ctx context.Context, rec Record) (Record, bool, error) {
	rec.AwemeID = strings.TrimSpace(rec.AwemeID)
	rec.RecordID = strings.TrimSpace(rec.RecordID)

	var (
		created  bool
		recordID string
	)
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		created = false
		existing, err := findExisting(ctx, tx, rec)
		if err != nil {
			return err
		}
		now := s.timestamp()
		if existing == "" {
			recordID = rec.RecordID
			if recordID == "" {
				recordID = NewRecordID()
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO records (`+recordColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				recordID,
				rec.AwemeID,
				nullableString(rec.Nickname),
				nullableString(rec.Description),
				nullableString(rec.ShareURL),
				nullableString(rec.PlayAddr),
				nullableString(rec.AudioAddr),
				nullableFloat(rec.Duration),
				rec.Text,
				now,
				now,
			)
			if err != nil {
				return fmt.Errorf("insert record: %w", err)
			}
			created = true
			return nil
		}
		recordID = existing
		_, err = tx.ExecContext(ctx,
			`UPDATE records SET
                aweme_id = CASE WHEN ? <> '' THEN ? ELSE aweme_id END,
                nickname = COALESCE(?, nickname),
                description = COALESCE(?, description),
                share_url = COALESCE(?, share_url),
                play_addr = COALESCE(?, play_addr),
                audio_addr = COALESCE(?, audio_addr),
                duration = COALESCE(?, duration),
                video_text = CASE WHEN ? <> '' THEN ? ELSE video_text END,
                updated_at = ?
            WHERE record_id = ?`,
			rec.AwemeID, rec.AwemeID,
			nullableString(rec.Nickname),
			nullableString(rec.Description),
			nullableString(rec.ShareURL),
			nullableString(rec.PlayAddr),
			nullableString(rec.AudioAddr),
			nullableFloat(rec.Duration),
			rec.Text, rec.Text,
			now,
			existing,
		)
		if err != nil {
			return fmt.Errorf("update record: %w", err)
		}
		return nil
	})
	if err != nil {
		return Record{}, false, err
	}
	stored, err := s.Get(ctx, recordID)
	if err != nil {
		return Record{}, false, err
	}
	if stored == nil {
		return Record{}, false, fmt.Errorf("upsert record %s: %w", recordID, ErrNotFound)
	}
	return *stored, created, nil
}

func findExisting(ctx context.Context, tx *sql.Tx, rec Record) (string, error) {
	var id string
	if rec.RecordID != "" {
		err := tx.QueryRowContext(ctx, `SELECT record_id FROM records WHERE record_id = ?`, rec.RecordID).Scan(&id)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("lookup record id: %w", err)
		}
	}
	if rec.AwemeID != "" {
		err := tx.QueryRowContext(ctx, `SELECT record_id FROM records WHERE aweme_id = ?`, rec.AwemeID).Scan(&id)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("lookup aweme id: %w", err)
		}
	}
	return "", nil
}

// Get fetches a record by id. It returns nil, nil when the record is absent.
func (s *Store) Get(ctx context.Context, recordID string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM records WHERE record_id = ?`, recordID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

// PendingText returns records whose text is empty and whose aweme_id is set,
// oldest first.
func (s *Store) PendingText(ctx context.Context) ([]Record, error) {
	return s.List(ctx, ListOptions{PendingOnly: true})
}

// List returns records ordered by creation time.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records`
	if opts.PendingOnly {
		query += ` WHERE video_text = '' AND aweme_id <> ''`
	}
	query += ` ORDER BY created_at, record_id`
	var args []any
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

// UpdateText stores text on a single record.
func (s *Store) UpdateText(ctx context.Context, recordID, text string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return updateTextTx(ctx, tx, recordID, text, s.timestamp())
	})
}

// BatchUpdateText stores every update in one transaction. Any failure,
// including a missing record id, rolls the whole batch back.
func (s *Store) BatchUpdateText(ctx context.Context, updates []TextUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		now := s.timestamp()
		for _, update := range updates {
			if err := updateTextTx(ctx, tx, update.RecordID, update.Text, now); err != nil {
				return err
			}
		}
		return nil
	})
}

func updateTextTx(ctx context.Context, tx *sql.Tx, recordID, text, now string) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE records SET video_text = ?, updated_at = ? WHERE record_id = ?`,
		text, now, recordID,
	)
	if err != nil {
		return fmt.Errorf("update text %s: %w", recordID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update text %s: rows affected: %w", recordID, err)
	}
	if affected == 0 {
		return fmt.Errorf("update text %s: %w", recordID, ErrNotFound)
	}
	return nil
}

// Stats summarizes the record table.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := s.db.QueryRowContext(ctx, `SELECT
            COUNT(1),
            COALESCE(SUM(CASE WHEN video_text = '' AND aweme_id <> '' THEN 1 ELSE 0 END), 0),
            COALESCE(SUM(CASE WHEN video_text <> '' THEN 1 ELSE 0 END), 0),
            COALESCE(SUM(CASE WHEN aweme_id = '' THEN 1 ELSE 0 END), 0)
        FROM records`).Scan(&stats.Total, &stats.Pending, &stats.WithText, &stats.MissingID)
	if err != nil {
		return Stats{}, fmt.Errorf("record stats: %w", err)
	}
	return stats, nil
}
