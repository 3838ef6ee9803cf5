package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSubmit marks a rejected or malformed task submission.
	ErrSubmit = errors.New("submit failed")
	// ErrPollTimeout marks an item still unfinished after the last poll round.
	ErrPollTimeout = errors.New("poll timeout")
	// ErrUnknownStatus marks a poll response that is neither a result nor a
	// processing marker.
	ErrUnknownStatus = errors.New("unknown status")
	// ErrPersistence marks a failed write of final text to the record store.
	ErrPersistence = errors.New("persistence error")

	ErrTransport     = errors.New("transport error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
)

// Kind labels used in logs and metrics.
const (
	KindSubmit        = "submit"
	KindPollTimeout   = "poll_timeout"
	KindUnknownStatus = "unknown_status"
	KindPersistence   = "persistence"
	KindTransport     = "transport"
	KindValidation    = "validation"
	KindConfiguration = "configuration"
	KindCanceled      = "canceled"
	KindOther         = "other"
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransport
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind classifies err by the first matching marker. The pipeline markers are
// checked before the transport marker so a submit failure caused by a network
// error still reports as a submit failure.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSubmit):
		return KindSubmit
	case errors.Is(err, ErrPollTimeout):
		return KindPollTimeout
	case errors.Is(err, ErrUnknownStatus):
		return KindUnknownStatus
	case errors.Is(err, ErrPersistence):
		return KindPersistence
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrTransport):
		return KindTransport
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindOther
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
