//go:generate go run go.uber.org/mock/mockgen -source=direct_message.go -destination=../mocks/mock_direct_message_repository.go -package=mocks
package repositories

import (
	"chat-relay/domain"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

type IDirectMessageRepository interface {
	Store(message domain.DirectMessage) error
	Conversation(a, b domain.UserID, cursor *string) ([]domain.DirectMessage, *string, error)
}

type DirectMessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewDirectMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) DirectMessageRepository {
	return DirectMessageRepository{db: db, log: log, limitMessages: limitMessages}
}

type diskDirectMessage struct {
	ID       string `json:"id"`
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
	Body     string `json:"body"`
	At       int64  `json:"at"`
}

// conversationPrefix orders the user pair so that both directions of a
// conversation land under the same key range. Each id is escaped so a
// delimiter inside an id cannot make two different pairs share a prefix.
func conversationPrefix(a, b domain.UserID) string {
	if b < a {
		a, b = b, a
	}
	return fmt.Sprintf("dm:%s|%s:", keySegment(string(a)), keySegment(string(b)))
}

// Store persists a direct message in BadgerDB.
// The key is formatted as "dm:{pair}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Prevent data loss by using UUID as a collision disconnector if two messages
//     arrive at the same nanosecond.
func (m DirectMessageRepository) Store(message domain.DirectMessage) error {
	key := fmt.Sprintf("%s%019d:%s",
		conversationPrefix(message.Sender, message.Receiver),
		message.SentAt.UnixNano(),
		message.ID,
	)
	bytes, err := json.Marshal(fromDirectMessage(message))
	if err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), bytes)
	})
}

// Conversation retrieves the message history between two users using a
// prefix scan. Thanks to the padded timestamp in the key, messages are
// naturally sorted by time; the reverse iterator yields newest first.
// It stops collecting messages once the configured limitMessages is reached.
func (m DirectMessageRepository) Conversation(a, b domain.UserID, cursor *string) ([]domain.DirectMessage, *string, error) {
	var rawMessages [][]byte
	var lastKey string
	err := m.db.View(func(txn *badger.Txn) error {
		prefixStr := conversationPrefix(a, b)
		prefix := []byte(prefixStr)
		prefixLen := len(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Seek past the newest possible timestamp, then walk backwards
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
			// Memorize cursor part of the actual key
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

	messages := make([]domain.DirectMessage, 0, len(rawMessages))
	for _, raw := range rawMessages {
		message, err := DecodeDirectMessage(raw)
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

func fromDirectMessage(message domain.DirectMessage) diskDirectMessage {
	return diskDirectMessage{
		ID:       message.ID.String(),
		Sender:   string(message.Sender),
		Receiver: string(message.Receiver),
		Body:     message.Body,
		At:       message.SentAt.UnixNano(),
	}
}

// DecodeDirectMessage turns a stored value back into its domain form.
// Exported for read-only tooling (cmd/viewer) scanning the store directly.
func DecodeDirectMessage(value []byte) (domain.DirectMessage, error) {
	var disk diskDirectMessage
	if err := json.Unmarshal(value, &disk); err != nil {
		return domain.DirectMessage{}, err
	}
	parsedID, err := uuid.Parse(disk.ID)
	if err != nil {
		return domain.DirectMessage{}, err
	}
	return domain.DirectMessage{
		ID:       parsedID,
		Sender:   domain.UserID(disk.Sender),
		Receiver: domain.UserID(disk.Receiver),
		Body:     disk.Body,
		SentAt:   time.Unix(0, disk.At).UTC(),
	}, nil
}
