package runtime

import (
	"hire-chat/domain/chat"
	"hire-chat/sink"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newConn() *sink.ConnectionSink {
	return sink.NewConnectionSink("", 8, 10*time.Millisecond)
}

func TestRegistry_Register_One_User_One_Connection(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	conn := newConn()

	// Given no user is connected
	users, conns := registry.Len()
	req.Zero(users)
	req.Zero(conns)

	// When a user registers a connection
	registry.Register("alice", conn)

	// Then
	req.Len(registry.ConnectionsOf("alice"), 1)
	req.Contains(registry.ConnectionsOf("alice"), conn)
	users, conns = registry.Len()
	req.Equal(1, users)
	req.Equal(1, conns)
}

func TestRegistry_Register_Multiple_Devices(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	phone := newConn()
	laptop := newConn()

	// When the same user connects twice
	registry.Register("alice", phone)
	registry.Register("alice", laptop)
	registry.Register("alice", laptop)

	// Then both connections are kept once
	req.ElementsMatch(registry.ConnectionsOf("alice"), []*sink.ConnectionSink{phone, laptop})
	users, conns := registry.Len()
	req.Equal(1, users)
	req.Equal(2, conns)
}

func TestRegistry_Unregister_Removes_Empty_User(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	phone := newConn()
	laptop := newConn()
	registry.Register("alice", phone)
	registry.Register("alice", laptop)

	// When one device leaves
	registry.Unregister("alice", phone)

	// Then the other one is still reachable
	req.Len(registry.ConnectionsOf("alice"), 1)
	req.Contains(registry.ConnectionsOf("alice"), laptop)

	// When the last device leaves
	registry.Unregister("alice", laptop)
	registry.Unregister("alice", laptop)

	// Then the user doesn't exist anymore
	req.Nil(registry.ConnectionsOf("alice"))
	users, _ := registry.Len()
	req.Zero(users)
}

func TestRegistry_ConnectionsOf_Returns_A_Copy(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	registry.Register("alice", newConn())

	conns := registry.ConnectionsOf("alice")
	conns[0] = nil

	req.NotNil(registry.ConnectionsOf("alice")[0])
}

func TestRegistry_Snapshot(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	alice := newConn()
	bob := newConn()
	registry.Register("alice", alice)
	registry.Register("bob", bob)

	snapshot := registry.Snapshot()

	req.Len(snapshot, 2)
	req.Contains(snapshot, alice)
	req.Contains(snapshot, bob)
}

func TestRegistry_Concurrent_Access(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	var wg sync.WaitGroup
	users := []chat.UserID{"alice", "bob", "carol", "dave"}

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := users[i%len(users)]
			conn := newConn()
			registry.Register(user, conn)
			_ = registry.ConnectionsOf(user)
			_ = registry.Snapshot()
			registry.Unregister(user, conn)
		}(i)
	}
	wg.Wait()

	users2, conns := registry.Len()
	req.Zero(users2)
	req.Zero(conns)
}
