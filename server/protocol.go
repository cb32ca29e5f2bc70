package server

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	errs "chat-relay/errors"
	"encoding/json"
	"fmt"
	"time"

	"github.com/samber/lo"
)

// Envelope is the wire frame for every inbound and outbound event.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Inbound event names.
const (
	eventJoin               = "join"
	eventSendDirectMessage  = "sendDirectMessage"
	eventSendGroupMessage   = "sendGroupMessage"
	eventEditGroupMessage   = "editGroupMessage"
	eventDeleteGroupMessage = "deleteGroupMessage"
	eventGetDirectHistory   = "getDirectHistory"
	eventGetGroupHistory    = "getGroupHistory"
)

// Outbound event names not covered by domain events.
const (
	eventJoined        = "joined"
	eventDirectHistory = "directHistory"
	eventGroupHistory  = "groupHistory"
	eventError         = "error"
)

type joinPayload struct {
	UserID string `json:"userId"`
}

type sendDirectPayload struct {
	Receiver string `json:"receiver"`
	Body     string `json:"body"`
}

type sendGroupPayload struct {
	GroupID string `json:"groupId"`
	Body    string `json:"body"`
}

type editGroupPayload struct {
	MessageID string `json:"messageId"`
	Body      string `json:"body"`
}

type deleteGroupPayload struct {
	MessageID string `json:"messageId"`
}

type directHistoryPayload struct {
	Peer   string  `json:"peer"`
	Cursor *string `json:"cursor,omitempty"`
}

type groupHistoryPayload struct {
	GroupID string  `json:"groupId"`
	Cursor  *string `json:"cursor,omitempty"`
}

type joinedPayload struct {
	UserID string `json:"userId"`
}

type directMessagePayload struct {
	MessageID string    `json:"messageId"`
	Sender    string    `json:"sender"`
	Receiver  string    `json:"receiver"`
	Body      string    `json:"body"`
	SentAt    time.Time `json:"sentAt"`
}

type groupMessagePayload struct {
	MessageID string    `json:"messageId"`
	Sender    string    `json:"sender"`
	GroupID   string    `json:"groupId"`
	Body      string    `json:"body"`
	SentAt    time.Time `json:"sentAt"`
}

type groupMessageUpdatedPayload struct {
	MessageID string    `json:"messageId"`
	GroupID   string    `json:"groupId"`
	NewBody   string    `json:"newBody"`
	EditedAt  time.Time `json:"editedAt"`
}

type groupMessageDeletedPayload struct {
	MessageID string `json:"messageId"`
	GroupID   string `json:"groupId"`
}

type sessionReplacedPayload struct {
	UserID string `json:"userId"`
}

type directHistoryResponse struct {
	Messages []directMessagePayload `json:"messages"`
	Cursor   *string                `json:"cursor,omitempty"`
}

type groupHistoryResponse struct {
	Messages []groupMessagePayload `json:"messages"`
	Cursor   *string               `json:"cursor,omitempty"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newEnvelope(name string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: name, Data: data}, nil
}

// encodeEvent maps a domain event to its wire frame.
func encodeEvent(e event.DomainEvent) (Envelope, error) {
	switch evt := e.(type) {
	case event.DirectMessageReceived:
		return newEnvelope(e.EventName(), toDirectMessagePayload(evt.Message))
	case event.GroupMessagePosted:
		return newEnvelope(e.EventName(), toGroupMessagePayload(evt.Message))
	case event.GroupMessageEdited:
		return newEnvelope(e.EventName(), groupMessageUpdatedPayload{
			MessageID: evt.MessageID.String(),
			GroupID:   string(evt.Group),
			NewBody:   evt.Body,
			EditedAt:  evt.EditedAt,
		})
	case event.GroupMessageDeleted:
		return newEnvelope(e.EventName(), groupMessageDeletedPayload{
			MessageID: evt.MessageID.String(),
			GroupID:   string(evt.Group),
		})
	case event.SessionReplaced:
		return newEnvelope(e.EventName(), sessionReplacedPayload{UserID: string(evt.User)})
	default:
		return Envelope{}, fmt.Errorf("unencodable event %q", e.EventName())
	}
}

// errorEnvelope reports a failed operation to the originating connection
// only. Internal details never leak past the error code.
func errorEnvelope(err error) Envelope {
	code := errs.Code(err)
	message := err.Error()
	// Storage and unclassified failures wrap backend detail; clients get
	// the taxonomy-level message only, the rest stays in the logs.
	switch code {
	case "PERSISTENCE":
		message = "operation could not be persisted"
	case "INTERNAL":
		message = "internal error"
	}
	env, encodeErr := newEnvelope(eventError, errorPayload{
		Code:    code,
		Message: message,
	})
	if encodeErr != nil {
		return Envelope{Event: eventError}
	}
	return env
}

func toDirectMessagePayload(m domain.DirectMessage) directMessagePayload {
	return directMessagePayload{
		MessageID: m.ID.String(),
		Sender:    string(m.Sender),
		Receiver:  string(m.Receiver),
		Body:      m.Body,
		SentAt:    m.SentAt,
	}
}

func toGroupMessagePayload(m domain.GroupMessage) groupMessagePayload {
	return groupMessagePayload{
		MessageID: m.ID.String(),
		Sender:    string(m.Sender),
		GroupID:   string(m.Group),
		Body:      m.Body,
		SentAt:    m.SentAt,
	}
}

func toDirectHistoryResponse(messages []domain.DirectMessage, cursor *string) directHistoryResponse {
	return directHistoryResponse{
		Messages: lo.Map(messages, func(item domain.DirectMessage, _ int) directMessagePayload {
			return toDirectMessagePayload(item)
		}),
		Cursor: cursor,
	}
}

func toGroupHistoryResponse(messages []domain.GroupMessage, cursor *string) groupHistoryResponse {
	return groupHistoryResponse{
		Messages: lo.Map(messages, func(item domain.GroupMessage, _ int) groupMessagePayload {
			return toGroupMessagePayload(item)
		}),
		Cursor: cursor,
	}
}
