// Package broker wraps redis pub/sub for the gateway's cross-process
// broadcasts: theme changes between tabs and worker messages fanned out to
// page clients.
package broker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/goccy/go-json"

	"eventhub-gateway/internal/theme"
)

// Broadcast channels.
const (
	ThemeChannel  = "eventhub:theme"
	WorkerChannel = "eventhub:worker"
)

// Message types on the theme channel.
const TypeThemeChanged = "THEME_CHANGED"

// Envelope is the wire format of every broadcast message.
type Envelope struct {
	Type      string          `json:"type"`
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Client is a thin pub/sub wrapper around redis.
type Client struct {
	rdb    *redis.Client
	logger *slog.Logger
}

// NewClient connects to redis and verifies the connection.
func NewClient(ctx context.Context, redisURL string, logger *slog.Logger) (*Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("connected to redis")
	return &Client{rdb: rdb, logger: logger}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Redis returns the underlying client for components that need direct
// key-value access (the worker cache and sync queue).
func (c *Client) Redis() *redis.Client {
	return c.rdb
}

// Publish broadcasts a typed message on a channel.
func (c *Client) Publish(ctx context.Context, channel, typ string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", typ, err)
	}
	payload, err := json.Marshal(Envelope{Type: typ, Timestamp: time.Now().Unix(), Data: raw})
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", typ, err)
	}
	if err := c.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		c.logger.Error("[BROKER] publish failed", "type", typ, "channel", channel, "error", err)
		return err
	}
	return nil
}

// Subscribe listens on a channel and invokes handler per message until ctx
// is done. It blocks; run it on its own goroutine.
func (c *Client) Subscribe(ctx context.Context, channel string, handler func(Envelope)) {
	pubsub := c.rdb.Subscribe(ctx, channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		c.logger.Error("[BROKER] subscription failed", "channel", channel, "error", err)
		return
	}
	c.logger.Info("[BROKER] subscribed", "channel", channel)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				c.logger.Info("[BROKER] channel closed", "channel", channel)
				return
			}
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				c.logger.Error("[BROKER] bad message", "channel", channel, "error", err)
				continue
			}
			handler(env)
		}
	}
}

// themePayload is the body of a THEME_CHANGED broadcast.
type themePayload struct {
	Theme string `json:"theme"`
}

// PublishThemeChanged implements theme.Publisher.
func (c *Client) PublishThemeChanged(t theme.Theme) error {
	return c.Publish(context.Background(), ThemeChannel, TypeThemeChanged, themePayload{Theme: string(t)})
}

// SubscribeThemeChanges feeds cross-tab theme updates into the manager.
// It blocks until ctx is done.
func (c *Client) SubscribeThemeChanges(ctx context.Context, mgr *theme.Manager) {
	c.Subscribe(ctx, ThemeChannel, func(env Envelope) {
		if env.Type != TypeThemeChanged {
			return
		}
		var p themePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			c.logger.Error("[BROKER] bad theme payload", "error", err)
			return
		}
		mgr.ApplyExternal(theme.Theme(p.Theme))
	})
}
