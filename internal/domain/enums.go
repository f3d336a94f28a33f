package domain

// RoleName is a closed sum of the system role hierarchy used for
// management decisions ("can A manage B?"). Custom tenant role names fall
// outside this set and have no hierarchy weight; the hierarchy only applies
// to these five.
type RoleName string

const (
	RoleOwnerAdmin    RoleName = "OwnerAdmin"
	RoleResellerAdmin RoleName = "ResellerAdmin"
	RoleTenantAdmin   RoleName = "TenantAdmin"
	RoleAgent         RoleName = "Agent"
	RoleReadOnly      RoleName = "ReadOnly"
)

// roleWeight orders the management hierarchy; higher manages lower. The
// five names here must match SystemRoleNames in role.go exactly — they
// name the same five system roles from two angles (membership set vs.
// ranked hierarchy).
var roleWeight = map[RoleName]int{
	RoleOwnerAdmin:    5,
	RoleResellerAdmin: 4,
	RoleTenantAdmin:   3,
	RoleAgent:         2,
	RoleReadOnly:      1,
}

// CanManage reports whether role `a` may manage a user holding role `b`.
// OwnerAdmin crosses tenant boundaries; all other roles only manage
// strictly lower roles within the same tenant (tenant equality is the
// caller's responsibility to check before calling CanManage).
func CanManage(a, b RoleName) bool {
	wa, aOk := roleWeight[a]
	wb, bOk := roleWeight[b]
	if !aOk || !bOk {
		return false
	}
	return wa > wb
}

// MessageDirection is a closed sum for Message.Direction.
type MessageDirection string

const (
	DirectionInbound  MessageDirection = "inbound"
	DirectionOutbound MessageDirection = "outbound"
)

// MessageType is a closed sum for Message.Type.
type MessageType string

const (
	MessageTypeText        MessageType = "text"
	MessageTypeTemplate    MessageType = "template"
	MessageTypeMedia       MessageType = "media"
	MessageTypeInteractive MessageType = "interactive"
)

// MessageStatus is a closed sum for Message.Status, with legal transitions
// enforced by Message.TransitionTo.
type MessageStatus string

const (
	MessageStatusQueued    MessageStatus = "queued"
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
	MessageStatusFailed    MessageStatus = "failed"
)

// legalMessageTransitions enumerates every transition allowed by spec §4.10.
var legalMessageTransitions = map[MessageStatus]map[MessageStatus]bool{
	MessageStatusQueued:    {MessageStatusSent: true, MessageStatusFailed: true},
	MessageStatusSent:      {MessageStatusDelivered: true, MessageStatusFailed: true},
	MessageStatusDelivered: {MessageStatusRead: true},
	MessageStatusRead:      {},
	MessageStatusFailed:    {},
}

// IsTerminal reports whether the status accepts no further transitions.
func (s MessageStatus) IsTerminal() bool {
	next, ok := legalMessageTransitions[s]
	return !ok || len(next) == 0
}

// CanTransitionTo reports whether moving from s to next is legal.
func (s MessageStatus) CanTransitionTo(next MessageStatus) bool {
	allowed, ok := legalMessageTransitions[s]
	if !ok {
		return false
	}
	return allowed[next]
}

// TemplateCategory is a closed sum for Template.Category.
type TemplateCategory string

const (
	TemplateCategoryMarketing     TemplateCategory = "marketing"
	TemplateCategoryUtility       TemplateCategory = "utility"
	TemplateCategoryAuthentication TemplateCategory = "authentication"
)

// TemplateStatus is a closed sum for Template.Status.
type TemplateStatus string

const (
	TemplateStatusDraft    TemplateStatus = "draft"
	TemplateStatusPending  TemplateStatus = "pending"
	TemplateStatusApproved TemplateStatus = "approved"
	TemplateStatusRejected TemplateStatus = "rejected"
	TemplateStatusPaused   TemplateStatus = "paused"
)

// AuditAction is a closed sum of machine-readable security action codes.
type AuditAction string

const (
	AuditLoginSuccess         AuditAction = "auth.login.success"
	AuditLoginFailed          AuditAction = "auth.login.failed"
	AuditUserLocked           AuditAction = "auth.user.locked"
	AuditTokenRefreshed       AuditAction = "auth.token.refreshed"
	AuditUnauthorizedAccess   AuditAction = "auth.unauthorized_access"
	AuditPasswordChanged      AuditAction = "user.password_changed"
	AuditPasswordResetRequest AuditAction = "user.password_reset_requested"
	AuditPasswordResetConfirm AuditAction = "user.password_reset_confirmed"
	AuditEmailVerifyRequest   AuditAction = "user.email_verify_requested"
	AuditEmailVerifyConfirm   AuditAction = "user.email_verify_confirmed"
	AuditRoleAssigned         AuditAction = "rbac.role.assigned"
	AuditRoleRevoked          AuditAction = "rbac.role.revoked"
	AuditRoleModifyDenied     AuditAction = "rbac.role.modify_denied"
	AuditChannelCreated       AuditAction = "messaging.channel.created"
	AuditMessageSent          AuditAction = "messaging.message.sent"
	AuditWebhookRejected      AuditAction = "messaging.webhook.rejected"
)
