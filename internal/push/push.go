// Package push manages the push-notification subscription lifecycle: the
// worker registration, the permission prompt, the browser-issued
// subscription and its mirror on the upstream server.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"eventhub-gateway/internal/model"
)

// State is the subscription lifecycle state.
type State string

const (
	// StateUnsupported means the platform offers no push capability.
	StateUnsupported State = "unsupported"
	// StateUnregistered means no worker registration exists yet.
	StateUnregistered State = "unregistered"
	// StateRegistered means the worker is registered but no subscription
	// exists.
	StateRegistered State = "registered-unsubscribed"
	// StateSubscribed means an active subscription is mirrored upstream.
	StateSubscribed State = "subscribed"
)

// Subscription sync actions mirrored to the server.
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
)

// Permission is the user's notification permission.
type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

var (
	// ErrUnsupported is returned when push is not available.
	ErrUnsupported = errors.New("push notifications are not supported")
	// ErrPermissionDenied is returned when the user declines the prompt.
	ErrPermissionDenied = errors.New("permission not granted for notifications")
	// ErrNotSubscribed is returned when no subscription exists to tear down.
	ErrNotSubscribed = errors.New("no active push subscription")
)

// PermissionProvider runs the user permission prompt.
type PermissionProvider interface {
	RequestPermission(ctx context.Context) (Permission, error)
}

// Service is the browser-side push service issuing subscriptions.
type Service interface {
	// Existing returns the current subscription, if one survives from an
	// earlier session.
	Existing(ctx context.Context) (model.PushSubscription, bool, error)
	// Subscribe registers with the push service using the VAPID public key.
	Subscribe(ctx context.Context, applicationServerKey string) (model.PushSubscription, error)
	// Unsubscribe tears down the subscription with the given endpoint.
	Unsubscribe(ctx context.Context, endpoint string) error
}

// Mirror relays subscription changes to the upstream server.
type Mirror interface {
	SyncSubscription(ctx context.Context, sub model.PushSubscription, action string) error
}

// Store keeps the local copy of the device's subscription. May be nil.
type Store interface {
	Save(ctx context.Context, sub model.PushSubscription) error
	Delete(ctx context.Context, endpoint string) error
}

// Manager drives the subscription state machine. At most one subscription
// exists per device.
type Manager struct {
	mu           sync.Mutex
	state        State
	subscription *model.PushSubscription

	service     Service
	permissions PermissionProvider
	mirror      Mirror
	store       Store
	vapidKey    string
	logger      *slog.Logger
}

// NewManager builds a Manager. A nil service marks the platform
// unsupported.
func NewManager(service Service, permissions PermissionProvider, mirror Mirror, store Store, vapidKey string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	state := StateUnregistered
	if service == nil {
		state = StateUnsupported
	}
	return &Manager{
		state:       state,
		service:     service,
		permissions: permissions,
		mirror:      mirror,
		store:       store,
		vapidKey:    vapidKey,
		logger:      logger,
	}
}

// Register performs the worker registration step and resumes an existing
// subscription when the push service still holds one.
func (m *Manager) Register(ctx context.Context) error {
	m.mu.Lock()
	if m.state == StateUnsupported {
		m.mu.Unlock()
		m.logger.Info("push notifications are not supported")
		return ErrUnsupported
	}
	m.mu.Unlock()

	sub, ok, err := m.service.Existing(ctx)
	if err != nil {
		return fmt.Errorf("check existing subscription: %w", err)
	}

	m.mu.Lock()
	m.state = StateRegistered
	m.mu.Unlock()

	if !ok {
		return nil
	}
	// Resume: re-mirror the surviving subscription so the server copy is
	// fresh.
	if err := m.mirror.SyncSubscription(ctx, sub, ActionSubscribe); err != nil {
		return fmt.Errorf("mirror existing subscription: %w", err)
	}
	m.adopt(sub)
	return nil
}

// Subscribe runs the subscription handshake: permission prompt, push
// service registration, server mirror. Declining the prompt yields
// ErrPermissionDenied.
func (m *Manager) Subscribe(ctx context.Context) (model.PushSubscription, error) {
	m.mu.Lock()
	switch m.state {
	case StateUnsupported:
		m.mu.Unlock()
		return model.PushSubscription{}, ErrUnsupported
	case StateSubscribed:
		sub := *m.subscription
		m.mu.Unlock()
		return sub, nil
	}
	m.mu.Unlock()

	perm, err := m.permissions.RequestPermission(ctx)
	if err != nil {
		return model.PushSubscription{}, fmt.Errorf("request permission: %w", err)
	}
	if perm != PermissionGranted {
		return model.PushSubscription{}, ErrPermissionDenied
	}

	sub, err := m.service.Subscribe(ctx, m.vapidKey)
	if err != nil {
		return model.PushSubscription{}, fmt.Errorf("subscribe with push service: %w", err)
	}
	if err := m.mirror.SyncSubscription(ctx, sub, ActionSubscribe); err != nil {
		return model.PushSubscription{}, fmt.Errorf("mirror subscription: %w", err)
	}
	m.adopt(sub)
	return sub, nil
}

// Unsubscribe tears down the remote subscription and mirrors the removal.
func (m *Manager) Unsubscribe(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateSubscribed || m.subscription == nil {
		m.mu.Unlock()
		return ErrNotSubscribed
	}
	sub := *m.subscription
	m.mu.Unlock()

	if err := m.service.Unsubscribe(ctx, sub.Endpoint); err != nil {
		return fmt.Errorf("unsubscribe from push service: %w", err)
	}
	if err := m.mirror.SyncSubscription(ctx, sub, ActionUnsubscribe); err != nil {
		return fmt.Errorf("mirror unsubscribe: %w", err)
	}
	if m.store != nil {
		if err := m.store.Delete(ctx, sub.Endpoint); err != nil {
			m.logger.Warn("deleting local subscription copy failed", "error", err)
		}
	}

	m.mu.Lock()
	m.subscription = nil
	m.state = StateRegistered
	m.mu.Unlock()
	return nil
}

func (m *Manager) adopt(sub model.PushSubscription) {
	if m.store != nil {
		if err := m.store.Save(context.Background(), sub); err != nil {
			m.logger.Warn("saving local subscription copy failed", "error", err)
		}
	}
	m.mu.Lock()
	m.subscription = &sub
	m.state = StateSubscribed
	m.mu.Unlock()
}

// Status reports the current lifecycle state and subscription, if any.
func (m *Manager) Status() (State, *model.PushSubscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subscription == nil {
		return m.state, nil
	}
	sub := *m.subscription
	return m.state, &sub
}

// Worker message type tags.
const (
	TypeNotificationClick = "NOTIFICATION_CLICK"
	TypeBackgroundSync    = "BACKGROUND_SYNC"
)

// WorkerMessage is a message relayed from the worker context.
type WorkerMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// clickData is the payload of a NOTIFICATION_CLICK message.
type clickData struct {
	URL string `json:"url"`
}

// HandleWorkerMessage dispatches a worker message by its type tag:
// notification clicks navigate, background-sync reports are logged.
// navigate may be nil.
func (m *Manager) HandleWorkerMessage(msg WorkerMessage, navigate func(url string)) {
	switch msg.Type {
	case TypeNotificationClick:
		var d clickData
		if err := json.Unmarshal(msg.Data, &d); err != nil {
			m.logger.Warn("bad notification click payload", "error", err)
			return
		}
		if d.URL != "" && navigate != nil {
			navigate(d.URL)
		}
	case TypeBackgroundSync:
		m.logger.Info("background sync completed", "data", string(msg.Data))
	default:
		m.logger.Warn("unknown worker message", "type", msg.Type)
	}
}
