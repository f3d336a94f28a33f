package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Jeffreasy/tenantcore/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type channelRow struct {
	ID                     pgtype.UUID
	OrganizationID         pgtype.UUID
	PhoneNumberID          string
	BusinessPhone          string
	EncryptedAccessToken   string
	EncryptedWebhookToken  string
	RateLimitPerSecond     int
	MonthlyMessageLimit    int
	Status                 string
	MessagesSentThisWindow int
	UsageWindowStartedAt   pgtype.Timestamptz
	CreatedAt              pgtype.Timestamptz
}

// ChannelRepository persists domain.Channel.
type ChannelRepository struct {
	*Repository[*domain.Channel, channelRow]
}

func NewChannelRepository() *ChannelRepository {
	return &ChannelRepository{NewRepository(
		"channels",
		channelToRow,
		channelFromRow,
		scanChannelRow,
		[]string{"id", "organization_id", "phone_number_id", "business_phone", "encrypted_access_token",
			"encrypted_webhook_token", "rate_limit_per_second", "monthly_message_limit", "status",
			"messages_sent_this_window", "usage_window_started_at", "created_at"},
		func(r channelRow) []any {
			return []any{r.ID, r.OrganizationID, r.PhoneNumberID, r.BusinessPhone, r.EncryptedAccessToken,
				r.EncryptedWebhookToken, r.RateLimitPerSecond, r.MonthlyMessageLimit, r.Status,
				r.MessagesSentThisWindow, r.UsageWindowStartedAt, r.CreatedAt}
		},
		true,
	)}
}

func channelToRow(c *domain.Channel) channelRow {
	return channelRow{
		ID: pgUUID(c.ID), OrganizationID: pgUUID(c.OrganizationID), PhoneNumberID: c.PhoneNumberID,
		BusinessPhone: c.BusinessPhone, EncryptedAccessToken: c.EncryptedAccessToken,
		EncryptedWebhookToken: c.EncryptedWebhookToken, RateLimitPerSecond: c.RateLimitPerSecond,
		MonthlyMessageLimit: c.MonthlyMessageLimit, Status: string(c.Status),
		MessagesSentThisWindow: c.MessagesSentThisWindow, UsageWindowStartedAt: pgTime(c.UsageWindowStartedAt),
		CreatedAt: pgTime(c.CreatedAt),
	}
}

func channelFromRow(r channelRow) *domain.Channel {
	return &domain.Channel{
		ID: fromPgUUID(r.ID), OrganizationID: fromPgUUID(r.OrganizationID), PhoneNumberID: r.PhoneNumberID,
		BusinessPhone: r.BusinessPhone, EncryptedAccessToken: r.EncryptedAccessToken,
		EncryptedWebhookToken: r.EncryptedWebhookToken, RateLimitPerSecond: r.RateLimitPerSecond,
		MonthlyMessageLimit: r.MonthlyMessageLimit, Status: domain.ChannelStatus(r.Status),
		MessagesSentThisWindow: r.MessagesSentThisWindow, UsageWindowStartedAt: fromPgTime(r.UsageWindowStartedAt),
		CreatedAt: fromPgTime(r.CreatedAt),
	}
}

func scanChannelRow(row pgx.Row) (channelRow, error) {
	var r channelRow
	err := row.Scan(&r.ID, &r.OrganizationID, &r.PhoneNumberID, &r.BusinessPhone, &r.EncryptedAccessToken,
		&r.EncryptedWebhookToken, &r.RateLimitPerSecond, &r.MonthlyMessageLimit, &r.Status,
		&r.MessagesSentThisWindow, &r.UsageWindowStartedAt, &r.CreatedAt)
	return r, err
}

// GetByPhoneNumberID looks a channel up by the provider's phone_number_id,
// the key inbound webhooks arrive keyed on.
func (r *ChannelRepository) GetByPhoneNumberID(ctx context.Context, uow *UnitOfWork, phoneNumberID string) (*domain.Channel, error) {
	return r.FindOne(ctx, uow, "phone_number_id = $1", phoneNumberID)
}

// UpdateUsage persists Channel.RegisterSend's counters.
func (r *ChannelRepository) UpdateUsage(ctx context.Context, uow *UnitOfWork, c *domain.Channel) error {
	return r.Update(ctx, uow, c.ID, "messages_sent_this_window = $2, usage_window_started_at = $3, status = $4",
		c.MessagesSentThisWindow, pgTime(c.UsageWindowStartedAt), string(c.Status))
}

type templateRow struct {
	ID             pgtype.UUID
	OrganizationID pgtype.UUID
	Name           string
	Language       string
	Category       string
	Status         string
	BodyText       string
	Variables      []string
	CreatedAt      pgtype.Timestamptz
	UpdatedAt      pgtype.Timestamptz
}

// TemplateRepository persists domain.Template.
type TemplateRepository struct {
	*Repository[*domain.Template, templateRow]
}

func NewTemplateRepository() *TemplateRepository {
	return &TemplateRepository{NewRepository(
		"templates",
		templateToRow,
		templateFromRow,
		scanTemplateRow,
		[]string{"id", "organization_id", "name", "language", "category", "status", "body_text", "variables", "created_at", "updated_at"},
		func(r templateRow) []any {
			return []any{r.ID, r.OrganizationID, r.Name, r.Language, r.Category, r.Status, r.BodyText, r.Variables, r.CreatedAt, r.UpdatedAt}
		},
		true,
	)}
}

func templateToRow(t *domain.Template) templateRow {
	return templateRow{
		ID: pgUUID(t.ID), OrganizationID: pgUUID(t.OrganizationID), Name: t.Name, Language: t.Language,
		Category: string(t.Category), Status: string(t.Status), BodyText: t.BodyText, Variables: t.Variables,
		CreatedAt: pgTime(t.CreatedAt), UpdatedAt: pgTime(t.UpdatedAt),
	}
}

func templateFromRow(r templateRow) *domain.Template {
	return &domain.Template{
		ID: fromPgUUID(r.ID), OrganizationID: fromPgUUID(r.OrganizationID), Name: r.Name, Language: r.Language,
		Category: domain.TemplateCategory(r.Category), Status: domain.TemplateStatus(r.Status),
		BodyText: r.BodyText, Variables: r.Variables, CreatedAt: fromPgTime(r.CreatedAt), UpdatedAt: fromPgTime(r.UpdatedAt),
	}
}

func scanTemplateRow(row pgx.Row) (templateRow, error) {
	var r templateRow
	err := row.Scan(&r.ID, &r.OrganizationID, &r.Name, &r.Language, &r.Category, &r.Status, &r.BodyText, &r.Variables, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

// GetByNameAndLanguage looks a template up by its provider-facing identity.
func (r *TemplateRepository) GetByNameAndLanguage(ctx context.Context, uow *UnitOfWork, name, language string) (*domain.Template, error) {
	return r.FindOne(ctx, uow, "name = $1 AND language = $2", name, language)
}

type messageRow struct {
	ID                pgtype.UUID
	OrganizationID    pgtype.UUID
	ChannelID         pgtype.UUID
	Direction         string
	Type              string
	FromPhone         string
	ToPhone           string
	Content           json.RawMessage
	ContentHash       string
	Status            string
	WhatsAppMessageID string
	RetryCount        int
	ErrorCode         string
	IdempotencyKey    string
	CreatedAt         pgtype.Timestamptz
	StatusUpdatedAt   pgtype.Timestamptz
	DeliveredAt       pgtype.Timestamptz
}

// MessageRepository persists domain.Message.
type MessageRepository struct {
	*Repository[*domain.Message, messageRow]
}

func NewMessageRepository() *MessageRepository {
	return &MessageRepository{NewRepository(
		"messages",
		messageToRow,
		messageFromRow,
		scanMessageRow,
		[]string{"id", "organization_id", "channel_id", "direction", "type", "from_phone", "to_phone",
			"content", "content_hash", "status", "whatsapp_message_id", "retry_count", "error_code",
			"idempotency_key", "created_at", "status_updated_at"},
		func(r messageRow) []any {
			return []any{r.ID, r.OrganizationID, r.ChannelID, r.Direction, r.Type, r.FromPhone, r.ToPhone,
				r.Content, r.ContentHash, r.Status, r.WhatsAppMessageID, r.RetryCount, r.ErrorCode,
				r.IdempotencyKey, r.CreatedAt, r.StatusUpdatedAt}
		},
		true,
	)}
}

func messageToRow(m *domain.Message) messageRow {
	content, _ := json.Marshal(m.Content)
	return messageRow{
		ID: pgUUID(m.ID), OrganizationID: pgUUID(m.OrganizationID), ChannelID: pgUUID(m.ChannelID),
		Direction: string(m.Direction), Type: string(m.Type), FromPhone: m.FromPhone, ToPhone: m.ToPhone,
		Content: content, ContentHash: m.ContentHash, Status: string(m.Status),
		WhatsAppMessageID: m.WhatsAppMessageID, RetryCount: m.RetryCount, ErrorCode: m.ErrorCode,
		IdempotencyKey: m.IdempotencyKey, CreatedAt: pgTime(m.CreatedAt),
		StatusUpdatedAt: pgTime(m.StatusUpdatedAt), DeliveredAt: pgTimePtr(m.DeliveredAt),
	}
}

func messageFromRow(r messageRow) *domain.Message {
	var content map[string]any
	_ = json.Unmarshal(r.Content, &content)
	return &domain.Message{
		ID: fromPgUUID(r.ID), OrganizationID: fromPgUUID(r.OrganizationID), ChannelID: fromPgUUID(r.ChannelID),
		Direction: domain.MessageDirection(r.Direction), Type: domain.MessageType(r.Type),
		FromPhone: r.FromPhone, ToPhone: r.ToPhone, Content: content, ContentHash: r.ContentHash,
		Status: domain.MessageStatus(r.Status), WhatsAppMessageID: r.WhatsAppMessageID, RetryCount: r.RetryCount,
		ErrorCode: r.ErrorCode, IdempotencyKey: r.IdempotencyKey, CreatedAt: fromPgTime(r.CreatedAt),
		StatusUpdatedAt: fromPgTime(r.StatusUpdatedAt), DeliveredAt: fromPgTimePtr(r.DeliveredAt),
	}
}

func scanMessageRow(row pgx.Row) (messageRow, error) {
	var r messageRow
	err := row.Scan(&r.ID, &r.OrganizationID, &r.ChannelID, &r.Direction, &r.Type, &r.FromPhone, &r.ToPhone,
		&r.Content, &r.ContentHash, &r.Status, &r.WhatsAppMessageID, &r.RetryCount, &r.ErrorCode,
		&r.IdempotencyKey, &r.CreatedAt, &r.StatusUpdatedAt, &r.DeliveredAt)
	return r, err
}

// GetByContentHash supports the idempotent-send check in spec §4.10: a
// repeat send with the same channel/recipient/idempotency key returns the
// existing message instead of creating a duplicate.
func (r *MessageRepository) GetByContentHash(ctx context.Context, uow *UnitOfWork, hash string) (*domain.Message, error) {
	return r.FindOne(ctx, uow, "content_hash = $1", hash)
}

// LatestInboundFrom returns the timestamp of the most recent inbound
// message from a given phone number, used to evaluate the customer
// service window.
func (r *MessageRepository) LatestInboundFrom(ctx context.Context, uow *UnitOfWork, channelID uuid.UUID, fromPhone string) (*time.Time, error) {
	var t time.Time
	err := uow.Tx().QueryRow(ctx, `
		SELECT created_at FROM messages
		WHERE channel_id = $1 AND from_phone = $2 AND direction = 'inbound'
		ORDER BY created_at DESC LIMIT 1`, channelID, fromPhone).Scan(&t)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, NewStorageError("LatestInboundFrom:messages", err)
	}
	return &t, nil
}

// UpdateStatus persists Message.TransitionTo's effect.
func (r *MessageRepository) UpdateStatus(ctx context.Context, uow *UnitOfWork, m *domain.Message) error {
	return r.Update(ctx, uow, m.ID,
		"status = $2, status_updated_at = $3, whatsapp_message_id = $4, retry_count = $5, error_code = $6, delivered_at = $7",
		string(m.Status), pgTime(m.StatusUpdatedAt), m.WhatsAppMessageID, m.RetryCount, m.ErrorCode, pgTimePtr(m.DeliveredAt))
}
