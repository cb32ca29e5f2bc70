package server

import (
	"chat-relay/auth"
	"chat-relay/domain"
	"chat-relay/observability"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/services"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("relay-test-secret")

type relayFixture struct {
	server *httptest.Server
	groups repositories.GroupRepository
	direct repositories.DirectMessageRepository
}

func newRelayFixture(t *testing.T) *relayFixture {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := slog.Default()
	registry := runtime.NewRegistry()
	monitoring := observability.NewMonitoringManager(log)
	directMessages := repositories.NewDirectMessageRepository(db, log, nil)
	groupMessages := repositories.NewGroupMessageRepository(db, log, nil)
	groups := repositories.NewGroupRepository(db)

	relay := NewRelayServer(log, registry,
		services.NewDirectRouter(log, directMessages, registry, monitoring, 4096),
		services.NewGroupRouter(log, groupMessages, groups, registry, monitoring, 4096),
		services.NewHistoryService(directMessages, groupMessages, groups),
		Options{
			JWTSecret:            testSecret,
			ConnectionBufferSize: 16,
			WriteTimeout:         time.Second,
			PongTimeout:          5 * time.Second,
			ReadLimit:            64 * 1024,
		})

	srv := httptest.NewServer(relay.Handler())
	t.Cleanup(srv.Close)
	return &relayFixture{server: srv, groups: groups, direct: directMessages}
}

func (f *relayFixture) wsURL() string {
	return strings.Replace(f.server.URL, "http://", "ws://", 1) + "/ws"
}

func dialAs(t *testing.T, f *relayFixture, user string) *websocket.Conn {
	t.Helper()
	token, err := auth.GenerateToken(testSecret, user, time.Hour)
	require.NoError(t, err)

	conn, resp, err := websocket.DefaultDialer.Dial(f.wsURL()+"?token="+token, nil)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, eventName string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(Envelope{Event: eventName, Data: data}))
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env Envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func joinAs(t *testing.T, f *relayFixture, user string) *websocket.Conn {
	t.Helper()
	conn := dialAs(t, f, user)
	send(t, conn, eventJoin, joinPayload{UserID: user})
	env := readEnvelope(t, conn)
	require.Equal(t, eventJoined, env.Event)
	return conn
}

func Test_Handshake_Without_Token_Is_Rejected(t *testing.T) {
	req := require.New(t)
	f := newRelayFixture(t)

	_, resp, err := websocket.DefaultDialer.Dial(f.wsURL(), nil)
	req.Error(err)
	req.NotNil(resp)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
	_ = resp.Body.Close()
}

func Test_Handshake_With_Bad_Token_Is_Rejected(t *testing.T) {
	req := require.New(t)
	f := newRelayFixture(t)

	_, resp, err := websocket.DefaultDialer.Dial(f.wsURL()+"?token=not-a-jwt", nil)
	req.Error(err)
	req.NotNil(resp)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
	_ = resp.Body.Close()
}

func Test_Join_Acknowledges_Session(t *testing.T) {
	req := require.New(t)
	f := newRelayFixture(t)

	conn := dialAs(t, f, "alice")
	send(t, conn, eventJoin, joinPayload{UserID: "alice"})

	env := readEnvelope(t, conn)
	req.Equal(eventJoined, env.Event)
	var ack joinedPayload
	req.NoError(json.Unmarshal(env.Data, &ack))
	req.Equal("alice", ack.UserID)
}

func Test_Join_With_Foreign_Identity_Is_Rejected(t *testing.T) {
	req := require.New(t)
	f := newRelayFixture(t)

	conn := dialAs(t, f, "alice")
	send(t, conn, eventJoin, joinPayload{UserID: "mallory"})

	env := readEnvelope(t, conn)
	req.Equal(eventError, env.Event)
	var e errorPayload
	req.NoError(json.Unmarshal(env.Data, &e))
	req.Equal("VALIDATION", e.Code)
}

func Test_Send_Before_Join_Is_Rejected(t *testing.T) {
	req := require.New(t)
	f := newRelayFixture(t)

	conn := dialAs(t, f, "alice")
	send(t, conn, eventSendDirectMessage, sendDirectPayload{Receiver: "bob", Body: "hi"})

	env := readEnvelope(t, conn)
	req.Equal(eventError, env.Event)
	var e errorPayload
	req.NoError(json.Unmarshal(env.Data, &e))
	req.Equal("VALIDATION", e.Code)
}

func Test_Direct_Message_Reaches_Online_Receiver(t *testing.T) {
	req := require.New(t)
	f := newRelayFixture(t)

	alice := joinAs(t, f, "alice")
	bob := joinAs(t, f, "bob")

	send(t, alice, eventSendDirectMessage, sendDirectPayload{Receiver: "bob", Body: "hello bob"})

	env := readEnvelope(t, bob)
	req.Equal("newDirectMessage", env.Event)
	var msg directMessagePayload
	req.NoError(json.Unmarshal(env.Data, &msg))
	req.Equal("alice", msg.Sender)
	req.Equal("bob", msg.Receiver)
	req.Equal("hello bob", msg.Body)
	req.NotEmpty(msg.MessageID)
}

func Test_Direct_Message_To_Offline_Receiver_Is_Persisted(t *testing.T) {
	req := require.New(t)
	f := newRelayFixture(t)

	alice := joinAs(t, f, "alice")
	send(t, alice, eventSendDirectMessage, sendDirectPayload{Receiver: "bob", Body: "catch up later"})

	// Offline delivery leaves no wire trace; the message shows up when the
	// receiver pulls history.
	req.Eventually(func() bool {
		messages, _, err := f.direct.Conversation("alice", "bob", nil)
		return err == nil && len(messages) == 1
	}, 2*time.Second, 20*time.Millisecond)

	bob := joinAs(t, f, "bob")
	send(t, bob, eventGetDirectHistory, directHistoryPayload{Peer: "alice"})

	env := readEnvelope(t, bob)
	req.Equal(eventDirectHistory, env.Event)
	var history directHistoryResponse
	req.NoError(json.Unmarshal(env.Data, &history))
	req.Len(history.Messages, 1)
	req.Equal("catch up later", history.Messages[0].Body)
}

func Test_Group_Message_Fans_Out_To_Members_Including_Sender(t *testing.T) {
	req := require.New(t)
	f := newRelayFixture(t)
	req.NoError(f.groups.SaveGroup(domain.NewGroup("g1", "alice", "club", "bob")))

	alice := joinAs(t, f, "alice")
	bob := joinAs(t, f, "bob")

	send(t, alice, eventSendGroupMessage, sendGroupPayload{GroupID: "g1", Body: "meeting at 5"})

	for _, conn := range []*websocket.Conn{alice, bob} {
		env := readEnvelope(t, conn)
		req.Equal("newGroupMessage", env.Event)
		var msg groupMessagePayload
		req.NoError(json.Unmarshal(env.Data, &msg))
		req.Equal("g1", msg.GroupID)
		req.Equal("meeting at 5", msg.Body)
	}
}

func Test_Group_Message_From_Non_Member_Returns_Forbidden(t *testing.T) {
	req := require.New(t)
	f := newRelayFixture(t)
	req.NoError(f.groups.SaveGroup(domain.NewGroup("g1", "alice", "club")))

	mallory := joinAs(t, f, "mallory")
	send(t, mallory, eventSendGroupMessage, sendGroupPayload{GroupID: "g1", Body: "let me in"})

	env := readEnvelope(t, mallory)
	req.Equal(eventError, env.Event)
	var e errorPayload
	req.NoError(json.Unmarshal(env.Data, &e))
	req.Equal("FORBIDDEN", e.Code)
}

func Test_Second_Session_Replaces_First(t *testing.T) {
	req := require.New(t)
	f := newRelayFixture(t)

	first := joinAs(t, f, "alice")
	second := joinAs(t, f, "alice")

	env := readEnvelope(t, first)
	req.Equal("sessionReplaced", env.Event)

	// Messages now land on the second session only.
	bob := joinAs(t, f, "bob")
	send(t, bob, eventSendDirectMessage, sendDirectPayload{Receiver: "alice", Body: "which device?"})

	got := readEnvelope(t, second)
	req.Equal("newDirectMessage", got.Event)
}
