package push

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"eventhub-gateway/internal/model"
)

type stubService struct {
	existing    *model.PushSubscription
	existingErr error
	issued      model.PushSubscription
	subscribeErr error
	unsubscribed []string
}

func (s *stubService) Existing(context.Context) (model.PushSubscription, bool, error) {
	if s.existingErr != nil {
		return model.PushSubscription{}, false, s.existingErr
	}
	if s.existing == nil {
		return model.PushSubscription{}, false, nil
	}
	return *s.existing, true, nil
}

func (s *stubService) Subscribe(_ context.Context, key string) (model.PushSubscription, error) {
	if s.subscribeErr != nil {
		return model.PushSubscription{}, s.subscribeErr
	}
	return s.issued, nil
}

func (s *stubService) Unsubscribe(_ context.Context, endpoint string) error {
	s.unsubscribed = append(s.unsubscribed, endpoint)
	return nil
}

type recordingMirror struct {
	synced []string // "action endpoint"
	err    error
}

func (m *recordingMirror) SyncSubscription(_ context.Context, sub model.PushSubscription, action string) error {
	if m.err != nil {
		return m.err
	}
	m.synced = append(m.synced, action+" "+sub.Endpoint)
	return nil
}

func testSub(endpoint string) model.PushSubscription {
	sub := model.PushSubscription{Endpoint: endpoint}
	sub.Keys.P256dh = "key"
	sub.Keys.Auth = "auth"
	return sub
}

func TestNilServiceMeansUnsupported(t *testing.T) {
	m := NewManager(nil, StaticPermission(PermissionGranted), &recordingMirror{}, nil, "vapid", nil)

	state, _ := m.Status()
	if state != StateUnsupported {
		t.Errorf("expected unsupported, got %s", state)
	}
	if err := m.Register(context.Background()); !errors.Is(err, ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
	if _, err := m.Subscribe(context.Background()); !errors.Is(err, ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
}

func TestRegisterWithoutExistingSubscription(t *testing.T) {
	m := NewManager(&stubService{}, StaticPermission(PermissionGranted), &recordingMirror{}, nil, "vapid", nil)

	if err := m.Register(context.Background()); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	state, sub := m.Status()
	if state != StateRegistered || sub != nil {
		t.Errorf("expected registered-unsubscribed, got %s %+v", state, sub)
	}
}

func TestRegisterResumesExistingSubscription(t *testing.T) {
	existing := testSub("https://push.example/abc")
	mirror := &recordingMirror{}
	m := NewManager(&stubService{existing: &existing}, StaticPermission(PermissionGranted), mirror, nil, "vapid", nil)

	if err := m.Register(context.Background()); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	state, sub := m.Status()
	if state != StateSubscribed || sub == nil || sub.Endpoint != existing.Endpoint {
		t.Errorf("expected resumed subscription, got %s %+v", state, sub)
	}
	if len(mirror.synced) != 1 || mirror.synced[0] != "subscribe https://push.example/abc" {
		t.Errorf("resumed subscription should be re-mirrored, got %v", mirror.synced)
	}
}

func TestSubscribeHappyPath(t *testing.T) {
	issued := testSub("https://push.example/new")
	mirror := &recordingMirror{}
	m := NewManager(&stubService{issued: issued}, StaticPermission(PermissionGranted), mirror, nil, "vapid", nil)

	sub, err := m.Subscribe(context.Background())
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	if sub.Endpoint != issued.Endpoint {
		t.Errorf("unexpected subscription: %+v", sub)
	}
	state, _ := m.Status()
	if state != StateSubscribed {
		t.Errorf("expected subscribed, got %s", state)
	}
	if len(mirror.synced) != 1 {
		t.Errorf("subscription should be mirrored once, got %v", mirror.synced)
	}

	// Subscribing again returns the existing subscription without a second
	// mirror call.
	again, err := m.Subscribe(context.Background())
	if err != nil || again.Endpoint != issued.Endpoint {
		t.Errorf("repeat subscribe should return the active subscription: %+v %v", again, err)
	}
	if len(mirror.synced) != 1 {
		t.Errorf("repeat subscribe must not re-mirror, got %v", mirror.synced)
	}
}

func TestSubscribePermissionDenied(t *testing.T) {
	mirror := &recordingMirror{}
	m := NewManager(&stubService{issued: testSub("x")}, StaticPermission(PermissionDenied), mirror, nil, "vapid", nil)

	if _, err := m.Subscribe(context.Background()); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	state, _ := m.Status()
	if state == StateSubscribed {
		t.Error("denied permission must not produce a subscription")
	}
	if len(mirror.synced) != 0 {
		t.Error("nothing should be mirrored on denial")
	}
}

func TestSubscribeMirrorFailure(t *testing.T) {
	mirror := &recordingMirror{err: errors.New("upstream down")}
	m := NewManager(&stubService{issued: testSub("x")}, StaticPermission(PermissionGranted), mirror, nil, "vapid", nil)

	if _, err := m.Subscribe(context.Background()); err == nil {
		t.Fatal("mirror failure should surface")
	}
	state, _ := m.Status()
	if state == StateSubscribed {
		t.Error("a subscription that never reached the server must not be adopted")
	}
}

func TestUnsubscribe(t *testing.T) {
	issued := testSub("https://push.example/one")
	svc := &stubService{issued: issued}
	mirror := &recordingMirror{}
	m := NewManager(svc, StaticPermission(PermissionGranted), mirror, nil, "vapid", nil)

	if _, err := m.Subscribe(context.Background()); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	if err := m.Unsubscribe(context.Background()); err != nil {
		t.Fatalf("unsubscribe failed: %v", err)
	}

	state, sub := m.Status()
	if state != StateRegistered || sub != nil {
		t.Errorf("expected registered-unsubscribed, got %s %+v", state, sub)
	}
	if len(svc.unsubscribed) != 1 || svc.unsubscribed[0] != issued.Endpoint {
		t.Errorf("push service should be torn down, got %v", svc.unsubscribed)
	}
	if len(mirror.synced) != 2 || mirror.synced[1] != "unsubscribe https://push.example/one" {
		t.Errorf("removal should be mirrored, got %v", mirror.synced)
	}

	if err := m.Unsubscribe(context.Background()); !errors.Is(err, ErrNotSubscribed) {
		t.Errorf("second unsubscribe should report ErrNotSubscribed, got %v", err)
	}
}

func TestEndpointService(t *testing.T) {
	svc := NewEndpointService("https://push.example")

	if _, ok, _ := svc.Existing(context.Background()); ok {
		t.Fatal("fresh service should hold no subscription")
	}

	if _, err := svc.Subscribe(context.Background(), ""); err == nil {
		t.Error("subscribe without a server key should fail")
	}

	sub, err := svc.Subscribe(context.Background(), "vapid")
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	if sub.Endpoint == "https://push.example" || sub.Keys.P256dh == "" || sub.Keys.Auth == "" {
		t.Errorf("subscription should carry a unique endpoint and keys: %+v", sub)
	}

	got, ok, _ := svc.Existing(context.Background())
	if !ok || got.Endpoint != sub.Endpoint {
		t.Error("active subscription should survive for Existing")
	}

	if err := svc.Unsubscribe(context.Background(), "wrong"); !errors.Is(err, ErrNotSubscribed) {
		t.Errorf("unknown endpoint should report ErrNotSubscribed, got %v", err)
	}
	if err := svc.Unsubscribe(context.Background(), sub.Endpoint); err != nil {
		t.Errorf("unsubscribe failed: %v", err)
	}
}

func TestHandleWorkerMessageNotificationClick(t *testing.T) {
	m := NewManager(&stubService{}, StaticPermission(PermissionGranted), &recordingMirror{}, nil, "vapid", nil)

	var navigated []string
	payload, _ := json.Marshal(map[string]string{"url": "/event/5/"})
	m.HandleWorkerMessage(WorkerMessage{Type: TypeNotificationClick, Data: payload}, func(url string) {
		navigated = append(navigated, url)
	})

	if len(navigated) != 1 || navigated[0] != "/event/5/" {
		t.Errorf("click should navigate to the notification URL, got %v", navigated)
	}

	// Unknown types and empty URLs never navigate.
	m.HandleWorkerMessage(WorkerMessage{Type: "NOISE", Data: payload}, func(string) {
		t.Error("unknown message types must not navigate")
	})
	empty, _ := json.Marshal(map[string]string{})
	m.HandleWorkerMessage(WorkerMessage{Type: TypeNotificationClick, Data: empty}, func(string) {
		t.Error("clicks without a URL must not navigate")
	})
}
