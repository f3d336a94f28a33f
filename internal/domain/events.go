package domain

import (
	"time"

	"github.com/google/uuid"
)

// Event is a domain event raised by an aggregate during a business
// operation. EventType is used verbatim as the outbox row's event_type;
// AggregateType identifies the owning aggregate kind for routing.
type Event interface {
	AggregateID() uuid.UUID
	AggregateType() string
	EventType() string
	OccurredAt() time.Time
}

// BaseEvent supplies the common fields/methods most concrete events embed.
type BaseEvent struct {
	ID_        uuid.UUID
	Type_      string
	Occurred   time.Time
}

func NewBaseEvent(aggregateID uuid.UUID, eventType string) BaseEvent {
	return BaseEvent{ID_: aggregateID, Type_: eventType, Occurred: time.Now().UTC()}
}

func (e BaseEvent) AggregateID() uuid.UUID { return e.ID_ }
func (e BaseEvent) EventType() string      { return e.Type_ }
func (e BaseEvent) OccurredAt() time.Time  { return e.Occurred }

// Aggregate is embedded by domain roots that raise events. Events
// accumulate until DrainEvents clears them atomically — external code
// cannot otherwise observe or mutate the pending list, per the design
// note forbidding external mutation of aggregate event lists.
type Aggregate struct {
	pending []Event
}

// Raise appends an event to the aggregate's pending list.
func (a *Aggregate) Raise(e Event) {
	a.pending = append(a.pending, e)
}

// DrainEvents returns and clears the pending event list. Safe to call
// multiple times — subsequent calls return nil until Raise is called
// again, so a UoW that tracks the same aggregate twice never double-drains.
func (a *Aggregate) DrainEvents() []Event {
	if len(a.pending) == 0 {
		return nil
	}
	out := a.pending
	a.pending = nil
	return out
}

// HasPendingEvents reports whether the aggregate has events awaiting drain.
func (a *Aggregate) HasPendingEvents() bool {
	return len(a.pending) > 0
}

// TrackedAggregate is implemented by any aggregate root the UnitOfWork can
// track for event drainage at commit time.
type TrackedAggregate interface {
	DrainEvents() []Event
}

// ---- Concrete events ----

type OrganizationCreated struct {
	BaseEvent
	Slug string
}

func NewOrganizationCreated(orgID uuid.UUID, slug string) OrganizationCreated {
	return OrganizationCreated{BaseEvent: NewBaseEvent(orgID, "organization.created"), Slug: slug}
}
func (OrganizationCreated) AggregateType() string { return "Organization" }

type UserRegistered struct {
	BaseEvent
	OrganizationID uuid.UUID
	Email          string
}

func NewUserRegistered(userID, orgID uuid.UUID, email string) UserRegistered {
	return UserRegistered{BaseEvent: NewBaseEvent(userID, "user.registered"), OrganizationID: orgID, Email: email}
}
func (UserRegistered) AggregateType() string { return "User" }

type UserLoggedIn struct {
	BaseEvent
	OrganizationID uuid.UUID
}

func NewUserLoggedIn(userID, orgID uuid.UUID) UserLoggedIn {
	return UserLoggedIn{BaseEvent: NewBaseEvent(userID, "user.logged_in"), OrganizationID: orgID}
}
func (UserLoggedIn) AggregateType() string { return "User" }

type UserLocked struct {
	BaseEvent
	OrganizationID uuid.UUID
	UnlockAt       time.Time
}

func NewUserLocked(userID, orgID uuid.UUID, unlockAt time.Time) UserLocked {
	return UserLocked{BaseEvent: NewBaseEvent(userID, "user.locked"), OrganizationID: orgID, UnlockAt: unlockAt}
}
func (UserLocked) AggregateType() string { return "User" }

type PasswordChanged struct {
	BaseEvent
	OrganizationID uuid.UUID
}

func NewPasswordChanged(userID, orgID uuid.UUID) PasswordChanged {
	return PasswordChanged{BaseEvent: NewBaseEvent(userID, "user.password_changed"), OrganizationID: orgID}
}
func (PasswordChanged) AggregateType() string { return "User" }

type RefreshTokenFamilyRevoked struct {
	BaseEvent
	OrganizationID uuid.UUID
	Reason         string
}

func NewRefreshTokenFamilyRevoked(userID, orgID uuid.UUID, reason string) RefreshTokenFamilyRevoked {
	return RefreshTokenFamilyRevoked{BaseEvent: NewBaseEvent(userID, "auth.refresh_token_family_revoked"), OrganizationID: orgID, Reason: reason}
}
func (RefreshTokenFamilyRevoked) AggregateType() string { return "User" }

type RoleAssigned struct {
	BaseEvent
	OrganizationID uuid.UUID
	RoleID         uuid.UUID
	GrantedBy      uuid.UUID
}

func NewRoleAssigned(userID, orgID, roleID, grantedBy uuid.UUID) RoleAssigned {
	return RoleAssigned{BaseEvent: NewBaseEvent(userID, "user.role_assigned"), OrganizationID: orgID, RoleID: roleID, GrantedBy: grantedBy}
}
func (RoleAssigned) AggregateType() string { return "User" }

type RoleRevoked struct {
	BaseEvent
	OrganizationID uuid.UUID
	RoleID         uuid.UUID
	RevokedBy      uuid.UUID
}

func NewRoleRevoked(userID, orgID, roleID, revokedBy uuid.UUID) RoleRevoked {
	return RoleRevoked{BaseEvent: NewBaseEvent(userID, "user.role_revoked"), OrganizationID: orgID, RoleID: roleID, RevokedBy: revokedBy}
}
func (RoleRevoked) AggregateType() string { return "User" }

type MessageSendRequested struct {
	BaseEvent
	OrganizationID uuid.UUID
	ChannelID      uuid.UUID
	ToPhone        string
}

func NewMessageSendRequested(messageID, orgID, channelID uuid.UUID, toPhone string) MessageSendRequested {
	return MessageSendRequested{BaseEvent: NewBaseEvent(messageID, "messaging.message_send_requested"), OrganizationID: orgID, ChannelID: channelID, ToPhone: toPhone}
}
func (MessageSendRequested) AggregateType() string { return "Message" }

type MessageStatusChanged struct {
	BaseEvent
	OrganizationID uuid.UUID
	FromStatus     string
	ToStatus       string
}

func NewMessageStatusChanged(messageID, orgID uuid.UUID, from, to string) MessageStatusChanged {
	return MessageStatusChanged{BaseEvent: NewBaseEvent(messageID, "messaging.message_status_changed"), OrganizationID: orgID, FromStatus: from, ToStatus: to}
}
func (MessageStatusChanged) AggregateType() string { return "Message" }
