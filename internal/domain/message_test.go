package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func newQueuedMessage() *Message {
	return NewOutboundMessage(uuid.New(), uuid.New(), MessageTypeText, "+10000000000", "+19999999999", map[string]any{"text": "hi"}, "")
}

func TestMessage_RegisterRetry_StaysQueued(t *testing.T) {
	m := newQueuedMessage()
	m.RegisterRetry("rate_limited")

	if m.Status != MessageStatusQueued {
		t.Errorf("status = %s, want queued (transient failures must not change status)", m.Status)
	}
	if m.RetryCount != 1 {
		t.Errorf("retry_count = %d, want 1", m.RetryCount)
	}
	if m.ErrorCode != "rate_limited" {
		t.Errorf("error_code = %q, want %q", m.ErrorCode, "rate_limited")
	}
}

func TestMessage_MarkFailed_TransitionsToTerminal(t *testing.T) {
	m := newQueuedMessage()
	now := time.Now().UTC()

	if err := m.MarkFailed("provider_error", now); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	if m.Status != MessageStatusFailed {
		t.Errorf("status = %s, want failed", m.Status)
	}
	if !m.Status.IsTerminal() {
		t.Error("failed must be a terminal status")
	}

	if err := m.TransitionTo(MessageStatusSent, now); err == nil {
		t.Error("expected transitioning out of failed to be rejected")
	}
}

func TestMessage_RegisterRetryThenMarkFailed_AccumulatesRetryCount(t *testing.T) {
	m := newQueuedMessage()
	m.RegisterRetry("timeout")
	m.RegisterRetry("timeout")

	if err := m.MarkFailed("timeout", time.Now().UTC()); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	if m.RetryCount != 3 {
		t.Errorf("retry_count = %d, want 3 (2 retries + the final failing attempt)", m.RetryCount)
	}
	if m.Status != MessageStatusFailed {
		t.Errorf("status = %s, want failed", m.Status)
	}
}
