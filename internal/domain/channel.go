package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultRateLimitPerSecond and DefaultMonthlyMessageLimit are the channel
// defaults referenced in spec §4.9 ("default 80/80").
const (
	DefaultRateLimitPerSecond = 80
	DefaultMonthlyMessageLimit = 80
)

// ChannelStatus tracks whether a channel may currently send.
type ChannelStatus string

const (
	ChannelStatusActive    ChannelStatus = "active"
	ChannelStatusInactive  ChannelStatus = "inactive"
	ChannelStatusSuspended ChannelStatus = "suspended"
)

// Channel is a WhatsApp-style business phone number configuration. Access
// and webhook tokens are stored encrypted at rest via the crypto.Encryptor
// port; this struct only ever holds ciphertext.
type Channel struct {
	Aggregate

	ID                     uuid.UUID
	OrganizationID         uuid.UUID
	PhoneNumberID          string
	BusinessPhone          string
	EncryptedAccessToken   string
	EncryptedWebhookToken  string
	RateLimitPerSecond     int
	MonthlyMessageLimit    int
	Status                 ChannelStatus
	MessagesSentThisWindow int
	UsageWindowStartedAt   time.Time
	CreatedAt              time.Time
}

// NewChannel constructs a new active channel with default rate/quota.
func NewChannel(orgID uuid.UUID, phoneNumberID, businessPhone, encryptedAccessToken, encryptedWebhookToken string) *Channel {
	now := time.Now().UTC()
	return &Channel{
		ID:                    uuid.New(),
		OrganizationID:        orgID,
		PhoneNumberID:         phoneNumberID,
		BusinessPhone:         businessPhone,
		EncryptedAccessToken:  encryptedAccessToken,
		EncryptedWebhookToken: encryptedWebhookToken,
		RateLimitPerSecond:    DefaultRateLimitPerSecond,
		MonthlyMessageLimit:   DefaultMonthlyMessageLimit,
		Status:                ChannelStatusActive,
		UsageWindowStartedAt:  now,
		CreatedAt:             now,
	}
}

// CanSend reports whether the channel accepts outbound sends.
func (c *Channel) CanSend() error {
	switch c.Status {
	case ChannelStatusInactive:
		return fmt.Errorf("%w: channel is inactive", ErrValidation)
	case ChannelStatusSuspended:
		return fmt.Errorf("%w: channel is suspended", ErrValidation)
	}
	return nil
}

// Deactivate marks the channel inactive, so CanSend rejects further sends.
// Service.DeactivateChannel calls it; delivery-status callbacks do not map
// provider error codes to a deactivation.
func (c *Channel) Deactivate() { c.Status = ChannelStatusInactive }

// Suspend marks the channel suspended, so CanSend rejects further sends.
// Nothing in the messaging pipeline calls it; delivery-status callbacks do
// not map provider error codes to a suspension.
func (c *Channel) Suspend() { c.Status = ChannelStatusSuspended }

// RegisterSend increments the monthly usage counter, lazily rolling the
// window forward once 30 days have elapsed since it started. This
// avoids depending on a cron tick to reset the counter (see DESIGN.md Open
// Question 4).
func (c *Channel) RegisterSend(now time.Time) {
	if now.Sub(c.UsageWindowStartedAt) >= 30*24*time.Hour {
		c.UsageWindowStartedAt = now
		c.MessagesSentThisWindow = 0
	}
	c.MessagesSentThisWindow++
}

// QuotaExceeded reports whether the channel has hit its monthly limit for
// the current usage window.
func (c *Channel) QuotaExceeded() bool {
	return c.MessagesSentThisWindow >= c.MonthlyMessageLimit
}
