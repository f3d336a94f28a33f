package messaging

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// NoopProviderClient logs outbound sends instead of calling a real
// WhatsApp Business API endpoint, the same role notify.DevMailer plays for
// email — safe to wire in development, never in production (see
// ProviderClient for the real contract an HTTP-backed implementation must
// satisfy).
type NoopProviderClient struct {
	Logger *slog.Logger
}

func (p NoopProviderClient) SendText(ctx context.Context, accessToken, phoneNumberID, toPhone, body string) (string, error) {
	id := uuid.New().String()
	p.Logger.Info("messaging provider send (noop)", "phone_number_id", phoneNumberID, "to", toPhone, "provider_message_id", id)
	return id, nil
}

func (p NoopProviderClient) SendTemplate(ctx context.Context, accessToken, phoneNumberID, toPhone, templateName, language string, values []string) (string, error) {
	id := uuid.New().String()
	p.Logger.Info("messaging provider send template (noop)", "phone_number_id", phoneNumberID, "to", toPhone, "template", templateName, "provider_message_id", id)
	return id, nil
}
