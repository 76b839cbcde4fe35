package push

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"eventhub-gateway/internal/model"
)

// StaticPermission is a PermissionProvider with a fixed answer, configured
// per deployment.
type StaticPermission Permission

// RequestPermission returns the configured answer without prompting.
func (p StaticPermission) RequestPermission(context.Context) (Permission, error) {
	return Permission(p), nil
}

// EndpointService issues subscriptions against a push endpoint base URL.
// Each subscription gets a unique endpoint and a fresh key pair, and the
// active one survives for the life of the process so a later Register can
// resume it.
type EndpointService struct {
	mu     sync.Mutex
	base   string
	active *model.PushSubscription
}

// NewEndpointService constructs an EndpointService rooted at base.
func NewEndpointService(base string) *EndpointService {
	return &EndpointService{base: base}
}

// Existing returns the surviving subscription, if any.
func (s *EndpointService) Existing(context.Context) (model.PushSubscription, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return model.PushSubscription{}, false, nil
	}
	return *s.active, true, nil
}

// Subscribe mints a new subscription. The application server key is
// required, matching the push service contract.
func (s *EndpointService) Subscribe(_ context.Context, applicationServerKey string) (model.PushSubscription, error) {
	if applicationServerKey == "" {
		return model.PushSubscription{}, fmt.Errorf("application server key is required")
	}

	p256dh, err := randomKey(65)
	if err != nil {
		return model.PushSubscription{}, fmt.Errorf("generate p256dh key: %w", err)
	}
	auth, err := randomKey(16)
	if err != nil {
		return model.PushSubscription{}, fmt.Errorf("generate auth secret: %w", err)
	}

	sub := model.PushSubscription{
		Endpoint: fmt.Sprintf("%s/%s", s.base, uuid.New().String()),
	}
	sub.Keys.P256dh = p256dh
	sub.Keys.Auth = auth

	s.mu.Lock()
	s.active = &sub
	s.mu.Unlock()
	return sub, nil
}

// Unsubscribe drops the subscription with the given endpoint.
func (s *EndpointService) Unsubscribe(_ context.Context, endpoint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil || s.active.Endpoint != endpoint {
		return ErrNotSubscribed
	}
	s.active = nil
	return nil
}

func randomKey(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
