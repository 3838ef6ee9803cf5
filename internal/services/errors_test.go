package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"videotext/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrSubmit, "asr_submit", "update-ori-post", "rejected", base)
	if !errors.Is(err, services.ErrSubmit) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"asr_submit", "update-ori-post", "rejected", "boom"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapWithoutCause(t *testing.T) {
	err := services.Wrap(services.ErrPollTimeout, "asr_poll", "", "", nil)
	if got := err.Error(); got != "poll timeout: asr_poll" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestKindPrefersPipelineMarkers(t *testing.T) {
	transport := services.Wrap(services.ErrTransport, "", "post", "", errors.New("dial"))
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"submit over transport", services.Wrap(services.ErrSubmit, "asr_submit", "", "", transport), services.KindSubmit},
		{"timeout", services.Wrap(services.ErrPollTimeout, "llm_poll", "", "", nil), services.KindPollTimeout},
		{"unknown", fmt.Errorf("probe: %w", services.ErrUnknownStatus), services.KindUnknownStatus},
		{"persistence", services.Wrap(services.ErrPersistence, "reconcile", "", "", nil), services.KindPersistence},
		{"transport", transport, services.KindTransport},
		{"canceled", fmt.Errorf("wait: %w", context.Canceled), services.KindCanceled},
		{"other", errors.New("plain"), services.KindOther},
	}
	for _, tt := range tests {
		if got := services.Kind(tt.err); got != tt.want {
			t.Fatalf("%s: Kind = %q, want %q", tt.name, got, tt.want)
		}
	}
}
