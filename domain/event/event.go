// Package event defines the domain events pushed to connected clients.
package event

import (
	"chat-relay/domain"
	"time"

	"github.com/google/uuid"
)

// DomainEvent is anything the relay can push to a live connection.
type DomainEvent interface {
	EventName() string
}

const (
	DirectMessageReceivedName = "newDirectMessage"
	GroupMessagePostedName    = "newGroupMessage"
	GroupMessageEditedName    = "groupMessageUpdated"
	GroupMessageDeletedName   = "groupMessageDeleted"
	SessionReplacedName       = "sessionReplaced"
)

// DirectMessageReceived carries the full persisted message, including the
// server-assigned id and timestamp.
type DirectMessageReceived struct {
	Message domain.DirectMessage
}

func (e DirectMessageReceived) EventName() string { return DirectMessageReceivedName }

type GroupMessagePosted struct {
	Message domain.GroupMessage
}

func (e GroupMessagePosted) EventName() string { return GroupMessagePostedName }

type GroupMessageEdited struct {
	MessageID uuid.UUID
	Group     domain.GroupID
	Body      string
	EditedAt  time.Time
}

func (e GroupMessageEdited) EventName() string { return GroupMessageEditedName }

// GroupMessageDeleted carries only the id of the removed record.
type GroupMessageDeleted struct {
	MessageID uuid.UUID
	Group     domain.GroupID
}

func (e GroupMessageDeleted) EventName() string { return GroupMessageDeletedName }

// SessionReplaced notifies a superseded connection that a newer login
// took over its presence entry. The old transport is left open.
type SessionReplaced struct {
	User domain.UserID
}

func (e SessionReplaced) EventName() string { return SessionReplacedName }
