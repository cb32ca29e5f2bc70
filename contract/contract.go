//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// Connection is the live handle bound to one connected client instance.
// The relay server owns its lifetime; the presence registry only holds a
// non-owning reference to it.
type Connection interface {
	EventSink
}

// IPresence is the single source of truth for "is this user reachable".
type IPresence interface {
	// Register installs or replaces the entry for user and returns the
	// superseded connection, if any (last writer wins).
	Register(user domain.UserID, conn Connection) Connection
	// Unregister removes the entry currently held by conn. It is a no-op
	// when the entry was already removed or replaced.
	Unregister(conn Connection)
	// Lookup never blocks.
	Lookup(user domain.UserID) (Connection, bool)
}
