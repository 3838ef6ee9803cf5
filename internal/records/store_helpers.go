package records

import (
	"database/sql"
	"errors"
	"time"
)

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*Record, error) {
	var (
		rec         Record
		nickname    sql.NullString
		description sql.NullString
		shareURL    sql.NullString
		playAddr    sql.NullString
		audioAddr   sql.NullString
		duration    sql.NullFloat64
		createdRaw  string
		updatedRaw  string
	)
	if err := scanner.Scan(
		&rec.RecordID,
		&rec.AwemeID,
		&nickname,
		&description,
		&shareURL,
		&playAddr,
		&audioAddr,
		&duration,
		&rec.Text,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	rec.Nickname = nickname.String
	rec.Description = description.String
	rec.ShareURL = shareURL.String
	rec.PlayAddr = playAddr.String
	rec.AudioAddr = audioAddr.String
	if duration.Valid {
		value := duration.Float64
		rec.Duration = &value
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		rec.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		rec.UpdatedAt = updated
	}
	return &rec, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableFloat(value *float64) any {
	if value == nil {
		return nil
	}
	return *value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}
