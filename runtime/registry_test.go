package runtime

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeConn is the smallest possible delivery handle.
type fakeConn struct {
	name string
}

func (f *fakeConn) Consume(_ context.Context, _ event.DomainEvent) error { return nil }

func Test_Register_Then_Lookup(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	conn := &fakeConn{name: "c1"}

	replaced := registry.Register("alice", conn)
	req.Nil(replaced)

	got, ok := registry.Lookup("alice")
	req.True(ok)
	req.Same(conn, got.(*fakeConn))

	_, ok = registry.Lookup("bob")
	req.False(ok)
}

func Test_Register_Last_Writer_Wins(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	c1 := &fakeConn{name: "c1"}
	c2 := &fakeConn{name: "c2"}

	req.Nil(registry.Register("alice", c1))

	// Duplicate login: the new connection silently becomes authoritative
	replaced := registry.Register("alice", c2)
	req.Same(c1, replaced.(*fakeConn))

	got, ok := registry.Lookup("alice")
	req.True(ok)
	req.Same(c2, got.(*fakeConn))
	req.Equal(1, registry.Size())
}

func Test_Unregister_Superseded_Connection_Is_Noop(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	c1 := &fakeConn{name: "c1"}
	c2 := &fakeConn{name: "c2"}

	registry.Register("alice", c1)
	registry.Register("alice", c2)

	// The old connection's teardown races with the replacing register:
	// it must not remove the newer mapping
	registry.Unregister(c1)

	got, ok := registry.Lookup("alice")
	req.True(ok)
	req.Same(c2, got.(*fakeConn))
}

func Test_Unregister_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	conn := &fakeConn{name: "c1"}

	registry.Register("alice", conn)
	registry.Unregister(conn)
	req.NotPanics(func() {
		registry.Unregister(conn)
	})

	_, ok := registry.Lookup("alice")
	req.False(ok)
	req.Equal(0, registry.Size())
}

func Test_Concurrent_Joins_Keep_One_Entry_Per_User(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	const users = 10
	const connsPerUser = 20
	var wg sync.WaitGroup
	for u := 0; u < users; u++ {
		user := fmt.Sprintf("user-%d", u)
		for c := 0; c < connsPerUser; c++ {
			wg.Add(1)
			go func(name string) {
				defer wg.Done()
				registry.Register(domain.UserID(name), &fakeConn{name: name})
			}(user)
		}
	}
	wg.Wait()

	// At most one presence entry per user, whatever the interleaving
	req.Equal(users, registry.Size())
	for u := 0; u < users; u++ {
		_, ok := registry.Lookup(domain.UserID(fmt.Sprintf("user-%d", u)))
		req.True(ok)
	}
}

func Test_Register_Same_Connection_Twice_Returns_Nothing(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	conn := &fakeConn{name: "c1"}

	registry.Register("alice", conn)
	req.Nil(registry.Register("alice", conn))
	req.Equal(1, registry.Size())
}

func Test_Register_Rebinding_Connection_Releases_Old_Identity(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	conn := &fakeConn{name: "shared"}

	registry.Register("alice", conn)
	req.Nil(registry.Register("bob", conn))

	_, ok := registry.Lookup("alice")
	req.False(ok)
	bound, ok := registry.Lookup("bob")
	req.True(ok)
	req.Same(conn, bound)
	req.Equal(1, registry.Size())
}
