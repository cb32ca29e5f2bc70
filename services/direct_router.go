//go:generate go run go.uber.org/mock/mockgen -source=direct_router.go -destination=../mocks/mock_direct_router.go -package=mocks
package services

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	errs "chat-relay/errors"
	"chat-relay/observability"
	"chat-relay/repositories"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type IDirectRouter interface {
	Send(ctx context.Context, cmd SendDirectMessageCommand) (domain.DirectMessage, error)
}

// DirectRouter persists a direct message, then forwards it to the
// recipient's live connection when there is one. Durability always comes
// before delivery: a crash after the store is recoverable via history, a
// failed push is not an error.
type DirectRouter struct {
	log              *slog.Logger
	messages         repositories.IDirectMessageRepository
	presence         contract.IPresence
	monitoring       *observability.MonitoringManager
	validate         *validator.Validate
	maxContentLength int
}

func NewDirectRouter(log *slog.Logger, messages repositories.IDirectMessageRepository,
	presence contract.IPresence, monitoring *observability.MonitoringManager,
	maxContentLength int) *DirectRouter {
	return &DirectRouter{
		log:              log,
		messages:         messages,
		presence:         presence,
		monitoring:       monitoring,
		validate:         validator.New(),
		maxContentLength: maxContentLength,
	}
}

// Send validates, persists, then attempts live delivery. The receiver's
// existence as an account is not verified here; identity checks happened
// upstream. An offline receiver is a success: the message waits in history.
func (r *DirectRouter) Send(ctx context.Context, cmd SendDirectMessageCommand) (domain.DirectMessage, error) {
	if err := r.validate.Struct(cmd); err != nil {
		return domain.DirectMessage{}, errs.Validation("%v", err)
	}
	if len(cmd.Body) > r.maxContentLength {
		return domain.DirectMessage{}, errs.Validation("body exceeds %d characters", r.maxContentLength)
	}

	message := domain.DirectMessage{
		ID:       uuid.New(),
		Sender:   cmd.Sender,
		Receiver: cmd.Receiver,
		Body:     cmd.Body,
		SentAt:   time.Now().UTC(),
	}
	if err := r.messages.Store(message); err != nil {
		return domain.DirectMessage{}, fmt.Errorf("%w: %v", errs.ErrPersistence, err)
	}
	r.monitoring.IncrDirectRouted()

	if conn, ok := r.presence.Lookup(cmd.Receiver); ok {
		deliver(ctx, r.log, r.monitoring, conn, event.DirectMessageReceived{Message: message},
			"receiver", cmd.Receiver)
	}
	return message, nil
}
