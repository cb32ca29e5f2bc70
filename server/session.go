package server

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	errs "chat-relay/errors"
	"chat-relay/services"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type sessionState int

const (
	stateConnecting sessionState = iota
	stateJoined
	stateDisconnected
)

// Session represents one live client connection. The relay server owns it
// for its whole lifetime; the presence registry only ever sees it as a
// non-owning delivery handle.
//
// All inbound events of a connection are handled sequentially by the read
// loop, which preserves the client-intended persistence order for
// back-to-back sends. Events from different connections run concurrently.
type Session struct {
	log   *slog.Logger
	conn  *websocket.Conn
	relay *RelayServer

	// tokenUser is the identity resolved from the handshake token; user is
	// bound at join time and must match it. Both are only written by the
	// read loop.
	tokenUser domain.UserID
	user      domain.UserID
	state     sessionState

	outbound chan Envelope
	done     chan struct{}
}

func newSession(log *slog.Logger, conn *websocket.Conn, relay *RelayServer, tokenUser domain.UserID) *Session {
	return &Session{
		log:       log.With("remote", conn.RemoteAddr().String()),
		conn:      conn,
		relay:     relay,
		tokenUser: tokenUser,
		state:     stateConnecting,
		outbound:  make(chan Envelope, relay.connectionBufferSize),
		done:      make(chan struct{}),
	}
}

// Consume is called by the routers during fan-out. It never blocks: a full
// buffer or a closed session yields an error the caller swallows, so a dead
// connection cannot stall or fail a routing operation.
func (s *Session) Consume(ctx context.Context, e event.DomainEvent) error {
	env, err := encodeEvent(e)
	if err != nil {
		return err
	}
	select {
	case <-s.done:
		return fmt.Errorf("session closed")
	case <-ctx.Done():
		return ctx.Err()
	case s.outbound <- env:
		return nil
	default:
		return fmt.Errorf("outbound buffer full")
	}
}

// enqueue pushes a frame produced by the session itself (acks, errors,
// history responses) onto the single writer channel.
func (s *Session) enqueue(env Envelope) {
	select {
	case <-s.done:
	case s.outbound <- env:
	default:
		s.log.Warn("Outbound buffer full, dropping frame", "event", env.Event)
	}
}

func (s *Session) sendError(err error) {
	s.log.Debug("Rejecting operation", "error", err)
	s.enqueue(errorEnvelope(err))
}

// readLoop processes inbound frames until the transport closes, then
// promptly unregisters the session so stale presence entries stay bounded
// to the disconnect detection window.
func (s *Session) readLoop(ctx context.Context) {
	defer func() {
		s.state = stateDisconnected
		s.relay.registry.Unregister(s)
		close(s.done)
		_ = s.conn.Close()
		s.log.Info("Session closed", "user", s.user)
	}()

	s.conn.SetReadLimit(s.relay.readLimit)
	_ = s.conn.SetReadDeadline(time.Now().Add(s.relay.pongTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.relay.pongTimeout))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Warn("Unexpected close", "error", err)
			}
			return
		}
		var env Envelope
		if err = json.Unmarshal(data, &env); err != nil {
			s.sendError(errs.Validation("malformed frame: %v", err))
			continue
		}
		s.handle(ctx, env)
	}
}

// writeLoop is the only goroutine writing to the websocket. Frames come
// from the outbound channel, pings keep the peer's read deadline alive.
func (s *Session) writeLoop() {
	pingInterval := s.relay.pongTimeout * 9 / 10
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case env := <-s.outbound:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.relay.writeTimeout))
			if err := s.conn.WriteJSON(env); err != nil {
				s.log.Warn("Failed to push frame, closing transport", "event", env.Event, "error", err)
				_ = s.conn.Close()
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.relay.writeTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = s.conn.Close()
				return
			}
		}
	}
}

func (s *Session) handle(ctx context.Context, env Envelope) {
	if env.Event == eventJoin {
		s.handleJoin(ctx, env.Data)
		return
	}
	if s.state != stateJoined {
		s.sendError(errs.Validation("join required before %q", env.Event))
		return
	}

	switch env.Event {
	case eventSendDirectMessage:
		var p sendDirectPayload
		if !s.decode(env.Data, &p) {
			return
		}
		if _, err := s.relay.direct.Send(ctx, services.SendDirectMessageCommand{
			Sender:   s.user,
			Receiver: domain.UserID(p.Receiver),
			Body:     p.Body,
		}); err != nil {
			s.sendError(err)
		}
	case eventSendGroupMessage:
		var p sendGroupPayload
		if !s.decode(env.Data, &p) {
			return
		}
		if _, err := s.relay.group.Send(ctx, services.SendGroupMessageCommand{
			Sender: s.user,
			Group:  domain.GroupID(p.GroupID),
			Body:   p.Body,
		}); err != nil {
			s.sendError(err)
		}
	case eventEditGroupMessage:
		var p editGroupPayload
		if !s.decode(env.Data, &p) {
			return
		}
		id, ok := s.parseMessageID(p.MessageID)
		if !ok {
			return
		}
		if _, err := s.relay.group.Edit(ctx, services.EditGroupMessageCommand{
			Sender:    s.user,
			MessageID: id,
			Body:      p.Body,
		}); err != nil {
			s.sendError(err)
		}
	case eventDeleteGroupMessage:
		var p deleteGroupPayload
		if !s.decode(env.Data, &p) {
			return
		}
		id, ok := s.parseMessageID(p.MessageID)
		if !ok {
			return
		}
		if err := s.relay.group.Delete(ctx, services.DeleteGroupMessageCommand{
			Sender:    s.user,
			MessageID: id,
		}); err != nil {
			s.sendError(err)
		}
	case eventGetDirectHistory:
		var p directHistoryPayload
		if !s.decode(env.Data, &p) {
			return
		}
		messages, cursor, err := s.relay.history.Direct(services.DirectHistoryCommand{
			User:   s.user,
			Peer:   domain.UserID(p.Peer),
			Cursor: p.Cursor,
		})
		if err != nil {
			s.sendError(err)
			return
		}
		s.respond(eventDirectHistory, toDirectHistoryResponse(messages, cursor))
	case eventGetGroupHistory:
		var p groupHistoryPayload
		if !s.decode(env.Data, &p) {
			return
		}
		messages, cursor, err := s.relay.history.Group(services.GroupHistoryCommand{
			User:   s.user,
			Group:  domain.GroupID(p.GroupID),
			Cursor: p.Cursor,
		})
		if err != nil {
			s.sendError(err)
			return
		}
		s.respond(eventGroupHistory, toGroupHistoryResponse(messages, cursor))
	default:
		s.sendError(errs.Validation("unknown event %q", env.Event))
	}
}

// handleJoin binds the session to its user identity and installs it in the
// presence registry. Before join, the session cannot be a delivery target.
// Re-asserting the same identity is a no-op ack; switching identity
// mid-session is rejected so no dangling registry entry can appear under
// the old identity.
func (s *Session) handleJoin(ctx context.Context, data json.RawMessage) {
	var p joinPayload
	if len(data) > 0 && !s.decode(data, &p) {
		return
	}
	identity := domain.UserID(p.UserID)
	if identity == "" {
		identity = s.tokenUser
	}
	if identity != s.tokenUser {
		s.sendError(errs.Validation("join identity %q does not match token identity", identity))
		return
	}

	switch s.state {
	case stateJoined:
		// Re-assert: acknowledge again, change nothing.
		s.respond(eventJoined, joinedPayload{UserID: string(s.user)})
		return
	case stateDisconnected:
		return
	}

	s.user = identity
	s.state = stateJoined
	replaced := s.relay.registry.Register(s.user, s)
	if replaced != nil {
		// Last writer wins. The superseded connection is told, not closed.
		if err := replaced.Consume(ctx, event.SessionReplaced{User: s.user}); err != nil {
			s.log.Debug("Superseded connection unreachable", "user", s.user, "error", err)
		}
	}
	s.log.Info("Session joined", "user", s.user)
	s.respond(eventJoined, joinedPayload{UserID: string(s.user)})
}

func (s *Session) decode(data json.RawMessage, target any) bool {
	if err := json.Unmarshal(data, target); err != nil {
		s.sendError(errs.Validation("malformed payload: %v", err))
		return false
	}
	return true
}

func (s *Session) parseMessageID(raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		s.sendError(errs.Validation("invalid message id %q", raw))
		return uuid.UUID{}, false
	}
	return id, true
}

func (s *Session) respond(name string, payload any) {
	env, err := newEnvelope(name, payload)
	if err != nil {
		s.log.Error("Failed to encode response", "event", name, "error", err)
		return
	}
	s.enqueue(env)
}
