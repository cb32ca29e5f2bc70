//go:generate go run go.uber.org/mock/mockgen -source=group.go -destination=../mocks/mock_group_repository.go -package=mocks
package repositories

import (
	"chat-relay/domain"
	errs "chat-relay/errors"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
)

// IGroupRepository is the read side of the external group store.
// Membership CRUD lives in another service; the relay loads groups fresh on
// every operation so fan-out always reflects current membership.
type IGroupRepository interface {
	GetGroup(id domain.GroupID) (domain.Group, error)
	SaveGroup(group domain.Group) error
}

type GroupRepository struct {
	db *badger.DB
}

func NewGroupRepository(db *badger.DB) GroupRepository {
	return GroupRepository{db: db}
}

type diskGroup struct {
	ID      string   `json:"id"`
	Admin   string   `json:"admin"`
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

func groupKey(id domain.GroupID) []byte {
	return []byte(fmt.Sprintf("grp:%s", id))
}

func (r GroupRepository) GetGroup(id domain.GroupID) (domain.Group, error) {
	var disk diskGroup
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(groupKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return json.Unmarshal(value, &disk)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Group{}, fmt.Errorf("%w: group %s", errs.ErrNotFound, id)
	}
	if err != nil {
		return domain.Group{}, err
	}
	return toGroup(disk), nil
}

// SaveGroup exists for seeding and tests; the relay itself never writes
// membership.
func (r GroupRepository) SaveGroup(group domain.Group) error {
	bytes, err := json.Marshal(fromGroup(group))
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(groupKey(group.ID), bytes)
	})
}

func fromGroup(group domain.Group) diskGroup {
	return diskGroup{
		ID:    string(group.ID),
		Admin: string(group.Admin),
		Name:  group.Name,
		Members: lo.Map(lo.Keys(group.Members), func(item domain.UserID, _ int) string {
			return string(item)
		}),
	}
}

func toGroup(disk diskGroup) domain.Group {
	members := make(domain.Set, len(disk.Members))
	for _, m := range disk.Members {
		members[domain.UserID(m)] = struct{}{}
	}
	return domain.Group{
		ID:      domain.GroupID(disk.ID),
		Admin:   domain.UserID(disk.Admin),
		Name:    disk.Name,
		Members: members,
	}
}
