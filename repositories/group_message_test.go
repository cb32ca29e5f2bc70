package repositories

import (
	"chat-relay/domain"
	errs "chat-relay/errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func Test_Store_And_Get_Group_Message_By_ID(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	repository := NewGroupMessageRepository(db, slog.Default(), nil)
	message := domain.GroupMessage{
		ID: uuid.New(), Sender: "alice", Group: "g1",
		Body: "hello group", SentAt: time.Now().UTC(),
	}
	req.NoError(repository.Store(message))

	fetched, err := repository.GetByID(message.ID)
	req.NoError(err)
	req.Equal(message.ID, fetched.ID)
	req.Equal(message.Body, fetched.Body)
	req.Equal(domain.GroupID("g1"), fetched.Group)
}

func Test_Get_Missing_Group_Message_Returns_NotFound(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	repository := NewGroupMessageRepository(db, slog.Default(), nil)
	_, err := repository.GetByID(uuid.New())
	req.ErrorIs(err, errs.ErrNotFound)
}

func Test_Group_History_Is_Newest_First(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	repository := NewGroupMessageRepository(db, slog.Default(), nil)
	at := time.Now().UTC()
	bodies := []string{"first", "second", "third"}
	for i, body := range bodies {
		req.NoError(repository.Store(domain.GroupMessage{
			ID: uuid.New(), Sender: "alice", Group: "g1", Body: body,
			SentAt: at.Add(time.Duration(i) * time.Minute),
		}))
	}
	// Another group's history must not bleed in
	req.NoError(repository.Store(domain.GroupMessage{
		ID: uuid.New(), Sender: "bob", Group: "g2", Body: "elsewhere", SentAt: at,
	}))

	fetched, cursor, err := repository.History("g1", nil)
	req.NoError(err)
	req.NotNil(cursor)
	req.Len(fetched, 3)
	req.Equal("third", fetched[0].Body)
	req.Equal("second", fetched[1].Body)
	req.Equal("first", fetched[2].Body)
}

func Test_UpdateBody_Mutates_In_Place(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	repository := NewGroupMessageRepository(db, slog.Default(), nil)
	message := domain.GroupMessage{
		ID: uuid.New(), Sender: "alice", Group: "g1",
		Body: "typo", SentAt: time.Now().UTC(),
	}
	req.NoError(repository.Store(message))

	updated, err := repository.UpdateBody(message.ID, "fixed")
	req.NoError(err)
	req.Equal("fixed", updated.Body)
	req.Equal(message.ID, updated.ID)

	// The record keeps its timeline position and identity
	fetched, err := repository.GetByID(message.ID)
	req.NoError(err)
	req.Equal("fixed", fetched.Body)
	req.Equal(message.SentAt.UnixNano(), fetched.SentAt.UnixNano())

	history, _, err := repository.History("g1", nil)
	req.NoError(err)
	req.Len(history, 1)
	req.Equal("fixed", history[0].Body)
}

func Test_Update_Missing_Message_Returns_NotFound(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	repository := NewGroupMessageRepository(db, slog.Default(), nil)
	_, err := repository.UpdateBody(uuid.New(), "whatever")
	req.ErrorIs(err, errs.ErrNotFound)
}

func Test_Delete_Removes_Record_And_Index(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	repository := NewGroupMessageRepository(db, slog.Default(), nil)
	message := domain.GroupMessage{
		ID: uuid.New(), Sender: "alice", Group: "g1",
		Body: "to be removed", SentAt: time.Now().UTC(),
	}
	req.NoError(repository.Store(message))
	req.NoError(repository.Delete(message.ID))

	_, err := repository.GetByID(message.ID)
	req.ErrorIs(err, errs.ErrNotFound)

	history, _, err := repository.History("g1", nil)
	req.NoError(err)
	req.Empty(history)

	// Deleting twice reports the absence
	req.ErrorIs(repository.Delete(message.ID), errs.ErrNotFound)
}

func Test_Group_History_Ids_Containing_Delimiters_Do_Not_Collide(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	repository := NewGroupMessageRepository(db, slog.Default(), nil)
	// Without escaping, keys of group "g:x" would sort inside the scan
	// prefix of group "g".
	req.NoError(repository.Store(domain.GroupMessage{
		ID: uuid.New(), Sender: "alice", Group: "g:x", Body: "private", SentAt: time.Now().UTC(),
	}))

	leaked, _, err := repository.History("g", nil)
	req.NoError(err)
	req.Empty(leaked)

	owned, _, err := repository.History("g:x", nil)
	req.NoError(err)
	req.Len(owned, 1)
	req.Equal("private", owned[0].Body)
}

func Test_Empty_Group_History_Returns_Nil_Cursor(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	repository := NewGroupMessageRepository(db, slog.Default(), nil)
	messages, cursor, err := repository.History("nobody-posted", nil)
	req.NoError(err)
	req.Empty(messages)
	req.Nil(cursor)
}
