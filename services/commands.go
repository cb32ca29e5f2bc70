package services

import (
	"chat-relay/domain"

	"github.com/google/uuid"
)

// Commands are the transport-agnostic form of inbound events. The sender
// field is always filled from the authenticated session identity, never
// from the payload.

type SendDirectMessageCommand struct {
	Sender   domain.UserID `validate:"required"`
	Receiver domain.UserID `validate:"required"`
	Body     string        `validate:"required"`
}

type SendGroupMessageCommand struct {
	Sender domain.UserID  `validate:"required"`
	Group  domain.GroupID `validate:"required"`
	Body   string         `validate:"required"`
}

type EditGroupMessageCommand struct {
	Sender    domain.UserID `validate:"required"`
	MessageID uuid.UUID     `validate:"required"`
	Body      string        `validate:"required"`
}

type DeleteGroupMessageCommand struct {
	Sender    domain.UserID `validate:"required"`
	MessageID uuid.UUID     `validate:"required"`
}

type DirectHistoryCommand struct {
	User   domain.UserID `validate:"required"`
	Peer   domain.UserID `validate:"required"`
	Cursor *string
}

type GroupHistoryCommand struct {
	User   domain.UserID  `validate:"required"`
	Group  domain.GroupID `validate:"required"`
	Cursor *string
}
