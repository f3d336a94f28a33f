package messaging

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/Jeffreasy/tenantcore/internal/auth"
	"github.com/Jeffreasy/tenantcore/internal/domain"
	"github.com/Jeffreasy/tenantcore/internal/storage"
	"github.com/Jeffreasy/tenantcore/internal/tenant"
	"github.com/google/uuid"
)

// VerifySignature checks the provider's X-Hub-Signature-256-style header
// against body using the channel's decrypted webhook secret, constant-time
// per spec §4.11. Grounded on the teacher's secure_compare.go pattern.
func VerifySignature(secret, signatureHeader string, body []byte) bool {
	const prefix = "sha256="
	if len(signatureHeader) <= len(prefix) || signatureHeader[:len(prefix)] != prefix {
		return false
	}
	expected := signatureHeader[len(prefix):]

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	computed := hex.EncodeToString(mac.Sum(nil))

	return auth.SecureCompareBytes([]byte(computed), []byte(expected))
}

// InboundEvent is the normalized shape of a single webhook payload entry,
// after provider-specific JSON parsing (out of narrative scope — see
// ProviderClient) has already run.
type InboundEvent struct {
	PhoneNumberID     string
	WhatsAppMessageID string
	FromPhone         string
	ToPhone           string
	Content           map[string]any

	// StatusUpdate fields; zero value means this event is an inbound
	// message rather than a delivery-status callback.
	StatusMessageID string
	Status          domain.MessageStatus
	ErrorCode       string
}

// HandleWebhookEvent dispatches a single normalized event to either
// RecordInbound or ApplyDeliveryStatus, resolving phone_number_id to a
// channel/tenant first since webhooks arrive with no tenant context of
// their own (spec §4.11).
func (s *Service) HandleWebhookEvent(ctx context.Context, event InboundEvent) error {
	channel, orgID, err := s.resolveChannelByPhoneNumberID(ctx, event.PhoneNumberID)
	if err != nil {
		return err
	}

	if event.StatusMessageID != "" {
		return s.ApplyDeliveryStatus(ctx, orgID, event.StatusMessageID, event.Status, event.ErrorCode)
	}

	_, err = s.RecordInbound(ctx, orgID, channel.ID, event.WhatsAppMessageID, event.FromPhone, event.ToPhone, event.Content)
	return err
}

// resolveChannelByPhoneNumberID looks a channel up across every tenant —
// webhooks authenticate via the per-channel secret, not a tenant-scoped
// session, so this runs in an admin-scoped UoW like auth.resolveOrganization.
func (s *Service) resolveChannelByPhoneNumberID(ctx context.Context, phoneNumberID string) (*domain.Channel, uuid.UUID, error) {
	uow, err := storage.Begin(ctx, s.pool, tenant.Admin("webhook-resolve-channel"))
	if err != nil {
		return nil, uuid.Nil, err
	}
	defer uow.Rollback()

	channel, err := s.channels.GetByPhoneNumberID(ctx, uow, phoneNumberID)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%w: unknown channel for phone_number_id", domain.ErrNotFound)
	}
	return channel, channel.OrganizationID, nil
}
