package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CustomerServiceWindow is the 24h period after the latest inbound message
// during which free-form outbound sends are permitted, per spec §4.10/GLOSSARY.
const CustomerServiceWindow = 24 * time.Hour

// Message is the outbound/inbound WhatsApp-style message aggregate.
type Message struct {
	Aggregate

	ID                uuid.UUID
	OrganizationID    uuid.UUID
	ChannelID         uuid.UUID
	Direction         MessageDirection
	Type              MessageType
	FromPhone         string
	ToPhone           string
	Content           map[string]any
	ContentHash       string
	Status            MessageStatus
	WhatsAppMessageID string
	RetryCount        int
	ErrorCode         string
	IdempotencyKey    string
	CreatedAt         time.Time
	StatusUpdatedAt   time.Time
	DeliveredAt       *time.Time
}

// HashContent derives the idempotency content hash for dedup, combining
// channel, recipient, and a caller-supplied idempotency key or raw content.
func HashContent(channelID uuid.UUID, toPhone, idempotencyKeyOrContent string) string {
	sum := sha256.Sum256([]byte(channelID.String() + "|" + toPhone + "|" + idempotencyKeyOrContent))
	return hex.EncodeToString(sum[:])
}

// NewOutboundMessage constructs a queued outbound message.
func NewOutboundMessage(orgID, channelID uuid.UUID, msgType MessageType, fromPhone, toPhone string, content map[string]any, idempotencyKey string) *Message {
	now := time.Now().UTC()
	dedupKey := idempotencyKey
	if dedupKey == "" {
		dedupKey = fmt.Sprintf("%v", content)
	}
	m := &Message{
		ID:              uuid.New(),
		OrganizationID:  orgID,
		ChannelID:       channelID,
		Direction:       DirectionOutbound,
		Type:            msgType,
		FromPhone:       fromPhone,
		ToPhone:         toPhone,
		Content:         content,
		ContentHash:     HashContent(channelID, toPhone, dedupKey),
		Status:          MessageStatusQueued,
		IdempotencyKey:  idempotencyKey,
		CreatedAt:       now,
		StatusUpdatedAt: now,
	}
	m.Raise(NewMessageSendRequested(m.ID, orgID, channelID, toPhone))
	return m
}

// TransitionTo moves the message to a new status, enforcing the legal FSM
// transitions from spec §4.10/§8 at the domain layer. The storage layer
// does not re-check them: MessageRepository.UpdateStatus writes whatever
// status the message holds.
func (m *Message) TransitionTo(next MessageStatus, now time.Time) error {
	if !m.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: illegal message transition %s -> %s", ErrValidation, m.Status, next)
	}
	from := m.Status
	m.Status = next
	m.StatusUpdatedAt = now
	if next == MessageStatusDelivered {
		m.DeliveredAt = &now
	}
	m.Raise(NewMessageStatusChanged(m.ID, m.OrganizationID, string(from), string(next)))
	return nil
}

// MarkSent records the provider's message id on successful submission.
func (m *Message) MarkSent(whatsappMessageID string, now time.Time) error {
	if err := m.TransitionTo(MessageStatusSent, now); err != nil {
		return err
	}
	m.WhatsAppMessageID = whatsappMessageID
	return nil
}

// MarkFailed records a provider error and transitions the message to its
// terminal failed state, once the outbox worker has exhausted retries.
func (m *Message) MarkFailed(errorCode string, now time.Time) error {
	m.ErrorCode = errorCode
	m.RetryCount++
	return m.TransitionTo(MessageStatusFailed, now)
}

// RegisterRetry records a transient provider failure without transitioning
// status (spec §4.10 step 7): the message stays queued so the outbox
// worker's next backed-off attempt can retry the same row.
func (m *Message) RegisterRetry(errorCode string) {
	m.ErrorCode = errorCode
	m.RetryCount++
}

// NewInboundMessage records a customer-originated message, used both to
// persist the row and to refresh the customer-service window marker.
func NewInboundMessage(orgID, channelID uuid.UUID, whatsappMessageID, fromPhone, toPhone string, content map[string]any) *Message {
	now := time.Now().UTC()
	return &Message{
		ID:                uuid.New(),
		OrganizationID:    orgID,
		ChannelID:         channelID,
		Direction:         DirectionInbound,
		Type:              MessageTypeText,
		FromPhone:         fromPhone,
		ToPhone:           toPhone,
		Content:           content,
		ContentHash:       HashContent(channelID, fromPhone, whatsappMessageID),
		Status:            MessageStatusDelivered,
		WhatsAppMessageID: whatsappMessageID,
		CreatedAt:         now,
		StatusUpdatedAt:   now,
	}
}

// WindowOpen reports whether the customer-service window is open given the
// timestamp of the latest inbound message from this customer.
func WindowOpen(lastInboundAt *time.Time, now time.Time) bool {
	if lastInboundAt == nil {
		return false
	}
	return !lastInboundAt.Before(now.Add(-CustomerServiceWindow))
}
