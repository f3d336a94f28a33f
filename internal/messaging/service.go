// Package messaging implements the WhatsApp-style outbound/inbound pipeline:
// channel provisioning, template lifecycle, idempotent message queueing,
// customer-service-window gating, and webhook ingestion. Grounded on
// 133a3f82_xkayo32-pytake's whatsapp Service (Config/Message CRUD shape,
// AES-encrypted provider credentials), generalized to the tenant-scoped
// UnitOfWork/RLS/outbox idiom instead of gorm.
package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/Jeffreasy/tenantcore/internal/audit"
	"github.com/Jeffreasy/tenantcore/internal/crypto"
	"github.com/Jeffreasy/tenantcore/internal/domain"
	"github.com/Jeffreasy/tenantcore/internal/ratelimit"
	"github.com/Jeffreasy/tenantcore/internal/storage"
	"github.com/Jeffreasy/tenantcore/internal/tenant"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// webhookDedupTTL is the cache-set-if-absent window for inbound provider
// message ids, per spec §4.11.
const webhookDedupTTL = time.Hour

// ProviderClient is the outbound transport port. Its concrete HTTP
// implementation (request/response shapes for the provider's Graph-style
// API) is explicitly out of narrative scope per spec §1/§6 — this
// interface is the contract the pipeline codes against.
type ProviderClient interface {
	SendText(ctx context.Context, accessToken, phoneNumberID, toPhone, body string) (providerMessageID string, err error)
	SendTemplate(ctx context.Context, accessToken, phoneNumberID, toPhone, templateName, language string, values []string) (providerMessageID string, err error)
}

// Service orchestrates channel/template/message commands.
type Service struct {
	pool *pgxpool.Pool

	channels  *storage.ChannelRepository
	templates *storage.TemplateRepository
	messages  *storage.MessageRepository

	encryptor *crypto.Encryptor
	limiter   *ratelimit.Limiter
	cache     *redis.Client
	provider  ProviderClient
	audit     audit.Service
}

func NewService(
	pool *pgxpool.Pool,
	encryptor *crypto.Encryptor,
	limiter *ratelimit.Limiter,
	cacheClient *redis.Client,
	provider ProviderClient,
	auditSvc audit.Service,
) *Service {
	return &Service{
		pool:      pool,
		channels:  storage.NewChannelRepository(),
		templates: storage.NewTemplateRepository(),
		messages:  storage.NewMessageRepository(),
		encryptor: encryptor,
		limiter:   limiter,
		cache:     cacheClient,
		provider:  provider,
		audit:     auditSvc,
	}
}

// CreateChannel provisions a new channel, encrypting the provider access
// and webhook verify tokens at rest per spec §3.
func (s *Service) CreateChannel(ctx context.Context, orgID uuid.UUID, phoneNumberID, businessPhone, accessToken, webhookToken string) (*domain.Channel, error) {
	encAccess, err := s.encryptor.Encrypt(accessToken)
	if err != nil {
		return nil, fmt.Errorf("messaging: encrypt access token: %w", err)
	}
	encWebhook, err := s.encryptor.Encrypt(webhookToken)
	if err != nil {
		return nil, fmt.Errorf("messaging: encrypt webhook token: %w", err)
	}

	channel := domain.NewChannel(orgID, phoneNumberID, businessPhone, encAccess, encWebhook)
	err = storage.WithUnitOfWork(ctx, s.pool, tenant.Context{TenantID: orgID}, func(uow *storage.UnitOfWork) error {
		return s.channels.Add(ctx, uow, channel)
	})
	if err != nil {
		return nil, err
	}

	s.audit.Log(ctx, domain.AuditChannelCreated, &orgID, nil, map[string]any{"phone_number_id": phoneNumberID})
	return channel, nil
}

// DeactivateChannel flips a channel to inactive, e.g. on operator request
// or a provider-reported permanent failure.
func (s *Service) DeactivateChannel(ctx context.Context, orgID, channelID uuid.UUID) error {
	return storage.WithUnitOfWork(ctx, s.pool, tenant.Context{TenantID: orgID}, func(uow *storage.UnitOfWork) error {
		channel, err := s.channels.GetByID(ctx, uow, channelID)
		if err != nil {
			return err
		}
		channel.Deactivate()
		return s.channels.UpdateUsage(ctx, uow, channel)
	})
}

// SendMessageInput describes an outbound send request.
type SendMessageInput struct {
	ChannelID      uuid.UUID
	ToPhone        string
	Type           domain.MessageType
	TemplateName   string
	TemplateLang   string
	TemplateValues []string
	Text           string
	IdempotencyKey string
}

// SendMessage runs the queueing half of the outbound pipeline from spec
// §4.10 steps 1-6: idempotent dedup by content hash, channel status/quota
// checks, customer-service-window gating for free-form text, and
// persisting the message in `queued` status alongside the
// MessageSendRequested event. The provider call itself (step 7) happens
// later, out of this request, when the outbox worker dispatches that
// event to DispatchQueuedMessage — so a slow or failing provider never
// holds up the caller or a Postgres transaction.
func (s *Service) SendMessage(ctx context.Context, orgID uuid.UUID, input SendMessageInput) (*domain.Message, error) {
	now := time.Now().UTC()
	content := map[string]any{"type": string(input.Type), "text": input.Text,
		"template_name": input.TemplateName, "template_language": input.TemplateLang,
		"template_values": input.TemplateValues}
	// Same key derivation as domain.NewOutboundMessage, so the lookup hash
	// matches the content_hash stored for a keyless send.
	dedupKey := input.IdempotencyKey
	if dedupKey == "" {
		dedupKey = fmt.Sprintf("%v", content)
	}
	contentHash := domain.HashContent(input.ChannelID, input.ToPhone, dedupKey)

	var message *domain.Message

	err := storage.WithUnitOfWork(ctx, s.pool, tenant.Context{TenantID: orgID}, func(uow *storage.UnitOfWork) error {
		if existing, err := s.messages.GetByContentHash(ctx, uow, contentHash); err == nil {
			message = existing
			return nil
		}

		channel, err := s.channels.GetByID(ctx, uow, input.ChannelID)
		if err != nil {
			return err
		}
		if err := channel.CanSend(); err != nil {
			return err
		}
		if channel.QuotaExceeded() {
			return fmt.Errorf("%w: monthly message quota exceeded", domain.ErrRateLimited)
		}

		if input.Type == domain.MessageTypeText {
			lastInbound, err := s.messages.LatestInboundFrom(ctx, uow, input.ChannelID, input.ToPhone)
			if err != nil {
				return err
			}
			if !domain.WindowOpen(lastInbound, now) {
				return fmt.Errorf("%w: customer service window closed, use a template", domain.ErrValidation)
			}
		}

		message = domain.NewOutboundMessage(orgID, input.ChannelID, input.Type, channel.BusinessPhone, input.ToPhone, content, input.IdempotencyKey)
		if err := s.messages.Add(ctx, uow, message); err != nil {
			return err
		}
		uow.Track(message)

		channel.RegisterSend(now)
		return s.channels.UpdateUsage(ctx, uow, channel)
	})
	if err != nil {
		return nil, err
	}
	return message, nil
}

// DispatchQueuedMessage is the outbox worker's handler for a
// MessageSendRequested event (spec §4.10 step 7): it loads the still-queued
// message and its channel, applies the per-channel rate limit, and calls
// the provider. finalAttempt tells it whether the outbox row is about to be
// parked after this try — only then does a provider failure transition the
// message to its terminal `failed` state; otherwise the message stays
// queued and the error is returned unchanged so the worker's exponential
// backoff reschedules the event.
func (s *Service) DispatchQueuedMessage(ctx context.Context, orgID, messageID uuid.UUID, finalAttempt bool) error {
	var channel *domain.Channel
	var message *domain.Message
	err := storage.WithUnitOfWork(ctx, s.pool, tenant.Context{TenantID: orgID}, func(uow *storage.UnitOfWork) error {
		var err error
		message, err = s.messages.GetByID(ctx, uow, messageID)
		if err != nil {
			return err
		}
		channel, err = s.channels.GetByID(ctx, uow, message.ChannelID)
		return err
	})
	if err != nil {
		return err
	}
	if message.Status != domain.MessageStatusQueued {
		return nil // already dispatched by a prior attempt
	}

	rateKey := channel.OrganizationID.String() + ":" + channel.PhoneNumberID
	res, err := s.limiter.Allow(ctx, rateKey, channel.RateLimitPerSecond, time.Second)
	if err != nil {
		return fmt.Errorf("messaging: rate limit check: %w", err)
	}
	if !res.Allowed {
		return fmt.Errorf("%w: channel %s over its per-second limit, retry after %s", domain.ErrRateLimited, channel.PhoneNumberID, res.RetryAfter)
	}

	return s.dispatch(ctx, orgID, channel, message, sendInputFromMessage(message), finalAttempt)
}

// sendInputFromMessage reconstructs the provider-call parameters from the
// persisted message row, since DispatchQueuedMessage runs independently of
// the SendMessage request that originally queued the message.
func sendInputFromMessage(m *domain.Message) SendMessageInput {
	text, _ := m.Content["text"].(string)
	templateName, _ := m.Content["template_name"].(string)
	templateLang, _ := m.Content["template_language"].(string)
	rawValues, _ := m.Content["template_values"].([]any)
	values := make([]string, 0, len(rawValues))
	for _, v := range rawValues {
		if s, ok := v.(string); ok {
			values = append(values, s)
		}
	}
	return SendMessageInput{
		ChannelID:      m.ChannelID,
		ToPhone:        m.ToPhone,
		Type:           m.Type,
		TemplateName:   templateName,
		TemplateLang:   templateLang,
		TemplateValues: values,
		Text:           text,
		IdempotencyKey: m.IdempotencyKey,
	}
}

// dispatch calls the provider and records the outcome, separate from the
// queueing transaction so a slow/failing HTTP call never holds a Postgres
// transaction open.
func (s *Service) dispatch(ctx context.Context, orgID uuid.UUID, channel *domain.Channel, message *domain.Message, input SendMessageInput, finalAttempt bool) (err error) {
	accessToken, err := s.encryptor.Decrypt(channel.EncryptedAccessToken)
	if err != nil {
		return fmt.Errorf("messaging: decrypt access token: %w", err)
	}

	var providerMessageID string
	var sendErr error
	switch input.Type {
	case domain.MessageTypeTemplate:
		providerMessageID, sendErr = s.provider.SendTemplate(ctx, accessToken, channel.PhoneNumberID, input.ToPhone, input.TemplateName, input.TemplateLang, input.TemplateValues)
	default:
		providerMessageID, sendErr = s.provider.SendText(ctx, accessToken, channel.PhoneNumberID, input.ToPhone, input.Text)
	}

	now := time.Now().UTC()

	if sendErr != nil && !finalAttempt {
		message.RegisterRetry(providerErrorCode(sendErr))
		if err := storage.WithUnitOfWork(ctx, s.pool, tenant.Context{TenantID: orgID}, func(uow *storage.UnitOfWork) error {
			return s.messages.UpdateStatus(ctx, uow, message)
		}); err != nil {
			return err
		}
		s.audit.Log(ctx, domain.AuditWebhookRejected, &orgID, nil, map[string]any{"reason": "provider_send_failed_retrying", "error": sendErr.Error(), "retry_count": message.RetryCount})
		return fmt.Errorf("%w: %s", domain.ErrProviderError, sendErr)
	}

	err = storage.WithUnitOfWork(ctx, s.pool, tenant.Context{TenantID: orgID}, func(uow *storage.UnitOfWork) error {
		if sendErr != nil {
			if merr := message.MarkFailed(providerErrorCode(sendErr), now); merr != nil {
				return merr
			}
		} else if merr := message.MarkSent(providerMessageID, now); merr != nil {
			return merr
		}
		if err := s.messages.UpdateStatus(ctx, uow, message); err != nil {
			return err
		}
		uow.Track(message)
		return nil
	})
	if err != nil {
		return err
	}

	if sendErr != nil {
		s.audit.Log(ctx, domain.AuditWebhookRejected, &orgID, nil, map[string]any{"reason": "provider_send_failed_exhausted", "error": sendErr.Error()})
		return fmt.Errorf("%w: %s", domain.ErrProviderError, sendErr)
	}

	s.audit.Log(ctx, domain.AuditMessageSent, &orgID, nil, map[string]any{"message_id": message.ID, "channel_id": channel.ID})
	return nil
}

func providerErrorCode(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// RecordInbound persists a customer-originated message, refreshing the
// customer-service window for that phone number (spec §4.10/§4.11).
//
// Dedup by provider message id happens two ways: a fast cache-set-if-absent
// with a 1-hour TTL (spec §4.11's explicit requirement), which also stops a
// replay that arrives before the first delivery's row has committed, and
// the DB `content_hash` lookup, which runs on every call and catches a
// replay whose row is already committed, whether or not the cache entry
// is still present.
func (s *Service) RecordInbound(ctx context.Context, orgID, channelID uuid.UUID, whatsappMessageID, fromPhone, toPhone string, content map[string]any) (*domain.Message, error) {
	first, err := s.cache.SetNX(ctx, inboundDedupKey(whatsappMessageID), "1", webhookDedupTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("messaging: webhook dedup check: %w", err)
	}

	message := domain.NewInboundMessage(orgID, channelID, whatsappMessageID, fromPhone, toPhone, content)
	err = storage.WithUnitOfWork(ctx, s.pool, tenant.Context{TenantID: orgID}, func(uow *storage.UnitOfWork) error {
		if existing, err := s.messages.GetByContentHash(ctx, uow, message.ContentHash); err == nil {
			message = existing
			return nil
		}
		if !first {
			// Cache says this provider message id was already processed
			// within the last hour, but no matching row turned up by
			// content hash (e.g. a replica restart lost the race) — skip
			// the insert rather than risk a duplicate Message row.
			return nil
		}
		return s.messages.Add(ctx, uow, message)
	})
	return message, err
}

func inboundDedupKey(whatsappMessageID string) string {
	return "messaging:webhook:dedup:" + whatsappMessageID
}

// ApplyDeliveryStatus reconciles a provider status callback (sent,
// delivered, read, failed) against the message's FSM, per spec §4.10.
// Unknown provider message ids are silently ignored rather than erroring
// the webhook request — the teacher's ProcessIncomingMessage precedent for
// tolerating out-of-order/duplicate callbacks.
func (s *Service) ApplyDeliveryStatus(ctx context.Context, orgID uuid.UUID, whatsappMessageID string, status domain.MessageStatus, errorCode string) error {
	now := time.Now().UTC()
	return storage.WithUnitOfWork(ctx, s.pool, tenant.Context{TenantID: orgID}, func(uow *storage.UnitOfWork) error {
		message, err := s.messages.FindOne(ctx, uow, "whatsapp_message_id = $1", whatsappMessageID)
		if err != nil {
			return nil
		}
		if !message.Status.CanTransitionTo(status) {
			return nil
		}
		message.ErrorCode = errorCode
		if err := message.TransitionTo(status, now); err != nil {
			return nil
		}
		if err := s.messages.UpdateStatus(ctx, uow, message); err != nil {
			return err
		}
		uow.Track(message)
		return nil
	})
}
