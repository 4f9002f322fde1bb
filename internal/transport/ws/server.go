package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/loft-algerie/messaging/internal/domain"
	"github.com/loft-algerie/messaging/internal/metrics"
	httpmw "github.com/loft-algerie/messaging/internal/transport/http/middleware"
	"github.com/loft-algerie/messaging/pkg/logger"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

type MemberSvc interface {
	IsParticipant(ctx context.Context, conversationID, userID string) (bool, error)
}

type ChatSvc interface {
	Send(ctx context.Context, conversationID, senderID, content string, typ domain.MessageType) (*domain.Message, error)
}

type ReadSvc interface {
	MarkRead(ctx context.Context, conversationID, userID string) (time.Time, error)
}

type Options struct {
	PingEvery      time.Duration
	WriteTimeout   time.Duration
	AllowedOrigins []string
	// SendBuffer is the per-connection outbound queue. A client that falls this far
	// behind is disconnected.
	SendBuffer int
}

type Server struct {
	upgrader  websocket.Upgrader
	hub       *Hub
	memberSvc MemberSvc
	chatSvc   ChatSvc
	readSvc   ReadSvc

	pingEvery    time.Duration
	writeTimeout time.Duration
	sendBuffer   int
}

func NewServer(hub *Hub, member MemberSvc, chat ChatSvc, read ReadSvc, opts Options) *Server {
	if opts.PingEvery <= 0 {
		opts.PingEvery = 15 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 64
	}
	return &Server{
		hub:       hub,
		memberSvc: member,
		chatSvc:   chat,
		readSvc:   read,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(opts.AllowedOrigins),
		},
		pingEvery:    opts.PingEvery,
		writeTimeout: opts.WriteTimeout,
		sendBuffer:   opts.SendBuffer,
	}
}

// originChecker allows requests without Origin, "*" and exact matches.
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}

// HandleWS serves GET /ws/conversations/{id}. The auth middleware runs first.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	userID := httpmw.UserIDFromCtx(ctx)
	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	convID := chi.URLParam(r, "id")
	if convID == "" {
		http.Error(w, "missing conversation id", http.StatusBadRequest)
		return
	}

	ok, err := s.memberSvc.IsParticipant(ctx, convID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			http.Error(w, "invalid conversation id", http.StatusBadRequest)
			return
		}
		log.Error("ws membership check failed", slog.String("conversation_id", convID), slog.Any("err", err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		log.Warn("ws upgrade failed", slog.Any("err", err))
		return
	}

	// The request context is not canceled on hijacked connections; tie the socket to
	// its own lifetime instead.
	connCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()

	c := newWsConn(conn, convID, userID, s.writeTimeout, s.sendBuffer)
	s.hub.Add(c)
	metrics.RealtimeConnections.Inc()

	go s.writeLoop(connCtx, c)
	s.readLoop(connCtx, c)

	s.hub.Remove(c)
	metrics.RealtimeConnections.Dec()
	if err := c.Close(); err != nil {
		log.Debug("ws close failed", slog.String("conversation_id", convID), slog.Any("err", err))
	}
}

func (s *Server) readLoop(ctx context.Context, c *wsConn) {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(64 << 10)
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))

		var in struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := json.Unmarshal(data, &in); err != nil {
			_ = c.Send(Message{Type: TypeError, Payload: ErrorPayload{Error: "invalid frame"}})
			continue
		}

		switch in.Type {
		case TypeMessage:
			s.handleSend(ctx, c, in.Payload)
		case TypeRead:
			if _, err := s.readSvc.MarkRead(ctx, c.convID, c.userID); err != nil {
				s.replyError(ctx, c, "", err)
			}
		case TypePing:
			_ = c.Send(Message{Type: TypePong})
		default:
			// ignore
		}
	}
}

// handleSend stores the message; the service publishes it to every subscriber,
// sender included, so only the ack is written here.
func (s *Server) handleSend(ctx context.Context, c *wsConn, raw json.RawMessage) {
	var p SendPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		_ = c.Send(Message{Type: TypeError, Payload: ErrorPayload{Error: "invalid payload"}})
		return
	}

	msg, err := s.chatSvc.Send(ctx, c.convID, c.userID, p.Content, domain.MessageType(p.MessageType))
	if err != nil {
		s.replyError(ctx, c, p.ClientID, err)
		return
	}
	_ = c.Send(Message{Type: TypeMessageAck, Payload: AckPayload{ClientID: p.ClientID, ID: msg.ID}})
}

func (s *Server) replyError(ctx context.Context, c *wsConn, clientID string, err error) {
	short := "internal error"
	switch {
	case errors.Is(err, domain.ErrNotParticipant):
		short = "not a participant"
	case errors.Is(err, domain.ErrEmptyMessage),
		errors.Is(err, domain.ErrMessageTooLong),
		errors.Is(err, domain.ErrInvalidInput):
		short = err.Error()
	default:
		logger.FromContext(ctx).Error("ws operation failed",
			slog.String("conversation_id", c.convID),
			slog.String("user_id", c.userID),
			slog.Any("err", err),
		)
	}
	_ = c.Send(Message{Type: TypeError, Payload: ErrorPayload{Error: short, ClientID: clientID}})
}

// writeLoop is the only writer of the socket: it drains the outbound queue and sends
// keepalive pings.
func (s *Server) writeLoop(ctx context.Context, c *wsConn) {
	ticker := time.NewTicker(s.pingEvery)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.out:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.conn.WriteJSON(msg); err != nil {
				_ = c.Close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout)); err != nil {
				_ = c.Close()
				return
			}
		case <-ctx.Done():
			return
		case <-c.closed:
			return
		}
	}
}

var (
	errConnClosed   = errors.New("ws: connection closed")
	errSlowConsumer = errors.New("ws: send buffer full")
)

type wsConn struct {
	conn         *websocket.Conn
	convID       string
	userID       string
	writeTimeout time.Duration

	out       chan Message
	closed    chan struct{}
	closeOnce sync.Once
}

func newWsConn(c *websocket.Conn, convID, userID string, writeTimeout time.Duration, buffer int) *wsConn {
	return &wsConn{
		conn:         c,
		convID:       convID,
		userID:       userID,
		writeTimeout: writeTimeout,
		out:          make(chan Message, buffer),
		closed:       make(chan struct{}),
	}
}

// Send queues msg without blocking. When the queue is full the client is too slow to
// keep up and the connection is closed.
func (c *wsConn) Send(msg Message) error {
	select {
	case <-c.closed:
		return errConnClosed
	default:
	}
	select {
	case c.out <- msg:
		return nil
	default:
		_ = c.Close()
		return errSlowConsumer
	}
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}

func (c *wsConn) UserID() string         { return c.userID }
func (c *wsConn) ConversationID() string { return c.convID }
