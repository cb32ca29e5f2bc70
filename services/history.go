//go:generate go run go.uber.org/mock/mockgen -source=history.go -destination=../mocks/mock_history_service.go -package=mocks
package services

import (
	"chat-relay/domain"
	errs "chat-relay/errors"
	"chat-relay/repositories"
	"fmt"

	"github.com/go-playground/validator/v10"
)

type IHistoryService interface {
	Direct(cmd DirectHistoryCommand) ([]domain.DirectMessage, *string, error)
	Group(cmd GroupHistoryCommand) ([]domain.GroupMessage, *string, error)
}

// HistoryService is the pull side of delivery: recipients that were offline
// when a message was routed find it here on reconnect.
type HistoryService struct {
	directMessages repositories.IDirectMessageRepository
	groupMessages  repositories.IGroupMessageRepository
	groups         repositories.IGroupRepository
	validate       *validator.Validate
}

func NewHistoryService(directMessages repositories.IDirectMessageRepository,
	groupMessages repositories.IGroupMessageRepository,
	groups repositories.IGroupRepository) *HistoryService {
	return &HistoryService{
		directMessages: directMessages,
		groupMessages:  groupMessages,
		groups:         groups,
		validate:       validator.New(),
	}
}

// Direct returns the conversation between the session user and a peer,
// newest first, cursor-paged.
func (s *HistoryService) Direct(cmd DirectHistoryCommand) ([]domain.DirectMessage, *string, error) {
	if err := s.validate.Struct(cmd); err != nil {
		return nil, nil, errs.Validation("%v", err)
	}
	return s.directMessages.Conversation(cmd.User, cmd.Peer, cmd.Cursor)
}

// Group returns a group's history to current members only. Membership is
// checked at fetch time, like every other group operation.
func (s *HistoryService) Group(cmd GroupHistoryCommand) ([]domain.GroupMessage, *string, error) {
	if err := s.validate.Struct(cmd); err != nil {
		return nil, nil, errs.Validation("%v", err)
	}
	group, err := s.groups.GetGroup(cmd.Group)
	if err != nil {
		return nil, nil, err
	}
	if !group.HasMember(cmd.User) {
		return nil, nil, fmt.Errorf("%w: %s is not a member of group %s", errs.ErrForbidden, cmd.User, cmd.Group)
	}
	return s.groupMessages.History(cmd.Group, cmd.Cursor)
}
