//go:generate go run go.uber.org/mock/mockgen -source=group_message.go -destination=../mocks/mock_group_message_repository.go -package=mocks
package repositories

import (
	"chat-relay/domain"
	errs "chat-relay/errors"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

type IGroupMessageRepository interface {
	Store(message domain.GroupMessage) error
	GetByID(id uuid.UUID) (domain.GroupMessage, error)
	History(group domain.GroupID, cursor *string) ([]domain.GroupMessage, *string, error)
	UpdateBody(id uuid.UUID, body string) (domain.GroupMessage, error)
	Delete(id uuid.UUID) error
}

// GroupMessageRepository stores group messages under
// "gm:{group}:{timestamp_padded}:{uuid}" for chronological prefix scans,
// plus a secondary "idx:gm:{uuid}" entry pointing at the primary key so
// edit/delete can resolve a message id without knowing its group or time.
type GroupMessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewGroupMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) GroupMessageRepository {
	return GroupMessageRepository{db: db, log: log, limitMessages: limitMessages}
}

type diskGroupMessage struct {
	ID     string `json:"id"`
	Sender string `json:"sender"`
	Group  string `json:"group"`
	Body   string `json:"body"`
	At     int64  `json:"at"`
}

// groupPrefix escapes the group id so a group named "g:x" cannot land
// inside the scan range of a group named "g".
func groupPrefix(group domain.GroupID) string {
	return fmt.Sprintf("gm:%s:", keySegment(string(group)))
}

func indexKey(id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("idx:gm:%s", id))
}

func (m GroupMessageRepository) Store(message domain.GroupMessage) error {
	key := fmt.Sprintf("%s%019d:%s",
		groupPrefix(message.Group),
		message.SentAt.UnixNano(),
		message.ID,
	)
	bytes, err := json.Marshal(fromGroupMessage(message))
	if err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(key), bytes); err != nil {
			return err
		}
		return txn.Set(indexKey(message.ID), []byte(key))
	})
}

func (m GroupMessageRepository) GetByID(id uuid.UUID) (domain.GroupMessage, error) {
	var message domain.GroupMessage
	err := m.db.View(func(txn *badger.Txn) error {
		value, err := m.resolveAndRead(txn, id)
		if err != nil {
			return err
		}
		message, err = DecodeGroupMessage(value)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.GroupMessage{}, fmt.Errorf("%w: message %s", errs.ErrNotFound, id)
	}
	return message, err
}

// History retrieves messages for a group, newest first, using the same
// reverse cursor scan as direct conversations.
func (m GroupMessageRepository) History(group domain.GroupID, cursor *string) ([]domain.GroupMessage, *string, error) {
	var rawMessages [][]byte
	var lastKey string
	err := m.db.View(func(txn *badger.Txn) error {
		prefixStr := groupPrefix(group)
		prefix := []byte(prefixStr)
		prefixLen := len(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			seekKey = append(prefix, []byte("9999999999999999999")...)
		default:
			seekKey = append(prefix, []byte(*cursor)...)
		}

		it.Seek(seekKey)

		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(rawMessages) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d messages reached", *m.limitMessages))
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[prefixLen:])
			err := item.Value(func(value []byte) error {
				rawMessages = append(rawMessages, append([]byte(nil), value...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	messages := make([]domain.GroupMessage, 0, len(rawMessages))
	for _, raw := range rawMessages {
		message, err := DecodeGroupMessage(raw)
		if err != nil {
			return nil, nil, err
		}
		messages = append(messages, message)
	}
	if lastKey == "" {
		// Nothing was read; a nil cursor tells callers history is exhausted.
		return messages, nil, nil
	}
	return messages, lo.ToPtr(lastKey), nil
}

// UpdateBody mutates the stored body in place, keeping the original key so
// the message retains its position in the timeline.
func (m GroupMessageRepository) UpdateBody(id uuid.UUID, body string) (domain.GroupMessage, error) {
	var updated domain.GroupMessage
	err := m.db.Update(func(txn *badger.Txn) error {
		primaryKey, err := m.resolveKey(txn, id)
		if err != nil {
			return err
		}
		item, err := txn.Get(primaryKey)
		if err != nil {
			return err
		}
		var disk diskGroupMessage
		err = item.Value(func(value []byte) error {
			return json.Unmarshal(value, &disk)
		})
		if err != nil {
			return err
		}
		disk.Body = body
		bytes, err := json.Marshal(disk)
		if err != nil {
			return err
		}
		if err = txn.Set(primaryKey, bytes); err != nil {
			return err
		}
		updated, err = toGroupMessage(disk)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.GroupMessage{}, fmt.Errorf("%w: message %s", errs.ErrNotFound, id)
	}
	return updated, err
}

// Delete removes the record and its index entry.
func (m GroupMessageRepository) Delete(id uuid.UUID) error {
	err := m.db.Update(func(txn *badger.Txn) error {
		primaryKey, err := m.resolveKey(txn, id)
		if err != nil {
			return err
		}
		if err = txn.Delete(primaryKey); err != nil {
			return err
		}
		return txn.Delete(indexKey(id))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: message %s", errs.ErrNotFound, id)
	}
	return err
}

func (m GroupMessageRepository) resolveKey(txn *badger.Txn, id uuid.UUID) ([]byte, error) {
	item, err := txn.Get(indexKey(id))
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (m GroupMessageRepository) resolveAndRead(txn *badger.Txn, id uuid.UUID) ([]byte, error) {
	primaryKey, err := m.resolveKey(txn, id)
	if err != nil {
		return nil, err
	}
	item, err := txn.Get(primaryKey)
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func fromGroupMessage(message domain.GroupMessage) diskGroupMessage {
	return diskGroupMessage{
		ID:     message.ID.String(),
		Sender: string(message.Sender),
		Group:  string(message.Group),
		Body:   message.Body,
		At:     message.SentAt.UnixNano(),
	}
}

func toGroupMessage(disk diskGroupMessage) (domain.GroupMessage, error) {
	parsedID, err := uuid.Parse(disk.ID)
	if err != nil {
		return domain.GroupMessage{}, err
	}
	return domain.GroupMessage{
		ID:     parsedID,
		Sender: domain.UserID(disk.Sender),
		Group:  domain.GroupID(disk.Group),
		Body:   disk.Body,
		SentAt: time.Unix(0, disk.At).UTC(),
	}, nil
}

// DecodeGroupMessage turns a stored value back into its domain form.
// Exported for read-only tooling (cmd/viewer) scanning the store directly.
func DecodeGroupMessage(value []byte) (domain.GroupMessage, error) {
	var disk diskGroupMessage
	if err := json.Unmarshal(value, &disk); err != nil {
		return domain.GroupMessage{}, err
	}
	return toGroupMessage(disk)
}
