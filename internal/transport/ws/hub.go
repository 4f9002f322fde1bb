package ws

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/loft-algerie/messaging/internal/domain"
	"github.com/loft-algerie/messaging/pkg/logger"
)

// Conn is one subscriber. Send must not block.
type Conn interface {
	Send(msg Message) error
	Close() error
	UserID() string
	ConversationID() string
}

// Fanout carries events to every instance of the service. The hub of each instance
// receives them back through Broadcast.
type Fanout interface {
	Publish(ctx context.Context, conversationID string, msg Message) error
}

type Hub struct {
	mu    sync.RWMutex
	convs map[string]map[Conn]struct{} // conversationID -> set of connections

	fanout Fanout
}

func NewHub() *Hub {
	return &Hub{convs: make(map[string]map[Conn]struct{})}
}

// SetFanout routes published events through f instead of delivering them locally.
func (h *Hub) SetFanout(f Fanout) {
	h.mu.Lock()
	h.fanout = f
	h.mu.Unlock()
}

func (h *Hub) Add(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	cs, ok := h.convs[c.ConversationID()]
	if !ok {
		cs = make(map[Conn]struct{})
		h.convs[c.ConversationID()] = cs
	}
	cs[c] = struct{}{}
}

func (h *Hub) Remove(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if cs, ok := h.convs[c.ConversationID()]; ok {
		delete(cs, c)
		if len(cs) == 0 {
			delete(h.convs, c.ConversationID())
		}
	}
}

// Broadcast delivers msg to the local subscribers of a conversation. Conn.Send only
// queues, so a stalled client never holds up the caller.
func (h *Hub) Broadcast(conversationID string, msg Message) {
	h.mu.RLock()
	targets := make([]Conn, 0, len(h.convs[conversationID]))
	for c := range h.convs[conversationID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.Send(msg); errors.Is(err, errSlowConsumer) {
			logger.L().Warn("ws client too slow, disconnected",
				slog.String("conversation_id", conversationID),
				slog.String("user_id", c.UserID()),
			)
		}
	}
}

func (h *Hub) Subscribers(conversationID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.convs[conversationID])
}

func (h *Hub) PublishMessage(ctx context.Context, m domain.Message) {
	h.publish(ctx, m.ConversationID, Message{Type: TypeMessage, Payload: messagePayload(m)})
}

func (h *Hub) PublishRead(ctx context.Context, conversationID, userID string, at time.Time) {
	h.publish(ctx, conversationID, Message{
		Type:    TypeRead,
		Payload: ReadPayload{ConversationID: conversationID, UserID: userID, ReadAt: at},
	})
}

func (h *Hub) publish(ctx context.Context, conversationID string, msg Message) {
	h.mu.RLock()
	f := h.fanout
	h.mu.RUnlock()

	if f != nil {
		err := f.Publish(ctx, conversationID, msg)
		if err == nil {
			return
		}
		logger.FromContext(ctx).Warn("realtime fanout failed, delivering locally",
			slog.String("conversation_id", conversationID),
			slog.Any("err", err),
		)
	}
	h.Broadcast(conversationID, msg)
}
