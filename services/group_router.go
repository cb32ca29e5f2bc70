//go:generate go run go.uber.org/mock/mockgen -source=group_router.go -destination=../mocks/mock_group_router.go -package=mocks
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

type IGroupRouter interface {
	Send(ctx context.Context, cmd SendGroupMessageCommand) (domain.GroupMessage, error)
	Edit(ctx context.Context, cmd EditGroupMessageCommand) (domain.GroupMessage, error)
	Delete(ctx context.Context, cmd DeleteGroupMessageCommand) error
}

// GroupRouter validates membership, persists group operations, and fans the
// resulting event out to every currently-connected member.
//
// Membership is loaded fresh on every operation instead of being cached in
// per-group channels: a user removed mid-session stops sending and stops
// receiving on the very next operation. This costs an O(members) presence
// lookup per message, a deliberate trade for expected group sizes.
type GroupRouter struct {
	log              *slog.Logger
	messages         repositories.IGroupMessageRepository
	groups           repositories.IGroupRepository
	presence         contract.IPresence
	monitoring       *observability.MonitoringManager
	validate         *validator.Validate
	maxContentLength int
}

func NewGroupRouter(log *slog.Logger, messages repositories.IGroupMessageRepository,
	groups repositories.IGroupRepository, presence contract.IPresence,
	monitoring *observability.MonitoringManager, maxContentLength int) *GroupRouter {
	return &GroupRouter{
		log:              log,
		messages:         messages,
		groups:           groups,
		presence:         presence,
		monitoring:       monitoring,
		validate:         validator.New(),
		maxContentLength: maxContentLength,
	}
}

// Send persists the message and fans it out to all connected members,
// sender included: the sender's UI converges from the event stream rather
// than from optimistic local state.
func (r *GroupRouter) Send(ctx context.Context, cmd SendGroupMessageCommand) (domain.GroupMessage, error) {
	if err := r.validate.Struct(cmd); err != nil {
		return domain.GroupMessage{}, errs.Validation("%v", err)
	}
	if len(cmd.Body) > r.maxContentLength {
		return domain.GroupMessage{}, errs.Validation("body exceeds %d characters", r.maxContentLength)
	}

	group, err := r.groups.GetGroup(cmd.Group)
	if err != nil {
		return domain.GroupMessage{}, err
	}
	if !group.HasMember(cmd.Sender) {
		return domain.GroupMessage{}, fmt.Errorf("%w: %s is not a member of group %s", errs.ErrForbidden, cmd.Sender, cmd.Group)
	}

	message := domain.GroupMessage{
		ID:     uuid.New(),
		Sender: cmd.Sender,
		Group:  cmd.Group,
		Body:   cmd.Body,
		SentAt: time.Now().UTC(),
	}
	if err = r.messages.Store(message); err != nil {
		return domain.GroupMessage{}, fmt.Errorf("%w: %v", errs.ErrPersistence, err)
	}
	r.monitoring.IncrGroupRouted()

	r.fanout(ctx, group, event.GroupMessagePosted{Message: message})
	return message, nil
}

// Edit mutates the body in place. Only the original author may edit; the
// fan-out set is the group's membership at edit time, which may differ from
// the membership at send time.
func (r *GroupRouter) Edit(ctx context.Context, cmd EditGroupMessageCommand) (domain.GroupMessage, error) {
	if err := r.validate.Struct(cmd); err != nil {
		return domain.GroupMessage{}, errs.Validation("%v", err)
	}
	if len(cmd.Body) > r.maxContentLength {
		return domain.GroupMessage{}, errs.Validation("body exceeds %d characters", r.maxContentLength)
	}

	message, err := r.messages.GetByID(cmd.MessageID)
	if err != nil {
		return domain.GroupMessage{}, err
	}
	if message.Sender != cmd.Sender {
		return domain.GroupMessage{}, fmt.Errorf("%w: only the author may edit message %s", errs.ErrForbidden, cmd.MessageID)
	}

	updated, err := r.messages.UpdateBody(cmd.MessageID, cmd.Body)
	if err != nil {
		return domain.GroupMessage{}, fmt.Errorf("%w: %v", errs.ErrPersistence, err)
	}
	r.monitoring.IncrGroupRouted()

	group, err := r.groups.GetGroup(message.Group)
	if err != nil {
		// The edit committed; a vanished group only silences the broadcast.
		r.log.Warn("Group missing at edit broadcast time", "group", message.Group, "error", err)
		return updated, nil
	}
	r.fanout(ctx, group, event.GroupMessageEdited{
		MessageID: updated.ID,
		Group:     updated.Group,
		Body:      updated.Body,
		EditedAt:  time.Now().UTC(),
	})
	return updated, nil
}

// Delete removes the record and broadcasts only the message id.
// Same author-only rule as Edit.
func (r *GroupRouter) Delete(ctx context.Context, cmd DeleteGroupMessageCommand) error {
	if err := r.validate.Struct(cmd); err != nil {
		return errs.Validation("%v", err)
	}

	message, err := r.messages.GetByID(cmd.MessageID)
	if err != nil {
		return err
	}
	if message.Sender != cmd.Sender {
		return fmt.Errorf("%w: only the author may delete message %s", errs.ErrForbidden, cmd.MessageID)
	}

	if err = r.messages.Delete(cmd.MessageID); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrPersistence, err)
	}
	r.monitoring.IncrGroupRouted()

	group, err := r.groups.GetGroup(message.Group)
	if err != nil {
		r.log.Warn("Group missing at delete broadcast time", "group", message.Group, "error", err)
		return nil
	}
	r.fanout(ctx, group, event.GroupMessageDeleted{MessageID: message.ID, Group: message.Group})
	return nil
}

// fanout pushes one event to every connected member. Offline members are
// skipped; they catch up via history fetch.
func (r *GroupRouter) fanout(ctx context.Context, group domain.Group, e event.DomainEvent) {
	for member := range group.Members {
		conn, ok := r.presence.Lookup(member)
		if !ok {
			r.monitoring.IncrFanoutSkips()
			continue
		}
		deliver(ctx, r.log, r.monitoring, conn, e, "group", group.ID, "member", member)
	}
}
