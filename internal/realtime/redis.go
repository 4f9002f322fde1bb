// Package realtime bridges conversation events between service instances over Redis
// pub/sub.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/loft-algerie/messaging/internal/transport/ws"
	"github.com/loft-algerie/messaging/pkg/logger"

	redis "github.com/redis/go-redis/v9"
)

// Broadcaster delivers an event to local subscribers.
type Broadcaster interface {
	Broadcast(conversationID string, msg ws.Message)
}

type envelope struct {
	ConversationID string          `json:"conversation_id"`
	Type           string          `json:"type"`
	Payload        json.RawMessage `json:"payload,omitempty"`
}

type RedisBridge struct {
	client  *redis.Client
	channel string
}

// NewRedisBridge connects to url and verifies the connection with PING.
func NewRedisBridge(ctx context.Context, url, channel string) (*RedisBridge, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	c := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := c.Ping(pingCtx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return &RedisBridge{client: c, channel: channel}, nil
}

func (b *RedisBridge) Publish(ctx context.Context, conversationID string, msg ws.Message) error {
	data, err := encode(conversationID, msg)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, data).Err()
}

// Run forwards every event received on the channel to dst until ctx is done.
func (b *RedisBridge) Run(ctx context.Context, dst Broadcaster) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer func() { _ = sub.Close() }()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis: subscribe %s: %w", b.channel, err)
	}

	log := logger.FromContext(ctx)
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return errors.New("redis: subscription closed")
			}
			convID, msg, err := decode(m.Payload)
			if err != nil {
				log.Warn("redis: drop malformed event", slog.Any("err", err))
				continue
			}
			dst.Broadcast(convID, msg)
		}
	}
}

func (b *RedisBridge) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *RedisBridge) Close() error {
	return b.client.Close()
}

func encode(conversationID string, msg ws.Message) (string, error) {
	payload, err := json.Marshal(msg.Payload)
	if err != nil {
		return "", fmt.Errorf("encode event: %w", err)
	}
	data, err := json.Marshal(envelope{ConversationID: conversationID, Type: msg.Type, Payload: payload})
	if err != nil {
		return "", fmt.Errorf("encode event: %w", err)
	}
	return string(data), nil
}

func decode(s string) (string, ws.Message, error) {
	var env envelope
	if err := json.Unmarshal([]byte(s), &env); err != nil {
		return "", ws.Message{}, err
	}
	if env.ConversationID == "" || env.Type == "" {
		return "", ws.Message{}, errors.New("missing conversation id or type")
	}
	msg := ws.Message{Type: env.Type}
	if len(env.Payload) > 0 && string(env.Payload) != "null" {
		msg.Payload = env.Payload
	}
	return env.ConversationID, msg, nil
}
