// Package domain contains core concepts of the relay system.
// This file defines Message records and related rules.
// Messages are persisted before any delivery is attempted.
package domain

import (
	"github.com/google/uuid"
	"time"
)

// DirectMessage is an immutable record of a one-to-one message.
type DirectMessage struct {
	ID       uuid.UUID // unique identifier
	Sender   UserID
	Receiver UserID
	Body     string
	SentAt   time.Time
}

// GroupMessage is a record of a message posted to a group.
// It is immutable except through author-issued edit and delete.
type GroupMessage struct {
	ID     uuid.UUID // unique identifier
	Sender UserID
	Group  GroupID
	Body   string
	SentAt time.Time
}
