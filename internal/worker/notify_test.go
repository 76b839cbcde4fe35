package worker

import (
	"errors"
	"testing"
)

func TestParsePushPayload(t *testing.T) {
	p, err := ParsePushPayload([]byte(`{"title":"Новое мероприятие","body":"Концерт в парке","url":"/event/5/"}`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if p.Title != "Новое мероприятие" || p.URL != "/event/5/" {
		t.Errorf("unexpected payload: %+v", p)
	}
}

func TestParsePushPayloadErrors(t *testing.T) {
	if _, err := ParsePushPayload(nil); !errors.Is(err, ErrEmptyPush) {
		t.Errorf("empty payload should report ErrEmptyPush, got %v", err)
	}
	if _, err := ParsePushPayload([]byte(`{broken`)); err == nil {
		t.Error("malformed JSON should fail")
	}
	if _, err := ParsePushPayload([]byte(`{"body":"no title"}`)); err == nil {
		t.Error("payload without a title should fail")
	}
}

func TestBuildNotification(t *testing.T) {
	n := BuildNotification(PushPayload{Title: "Событие", Body: "Описание", URL: "/event/7/"})

	if n.Icon != "/static/images/logo-192.png" || n.Badge != "/static/images/badge-72.png" {
		t.Errorf("unexpected artwork: %s %s", n.Icon, n.Badge)
	}
	if n.Tag != DefaultTag {
		t.Errorf("missing tag should fall back to the default, got %s", n.Tag)
	}
	if !n.RequireInteraction {
		t.Error("notifications should require interaction")
	}
	if len(n.Actions) != 2 || n.Actions[0].Action != "open" || n.Actions[1].Action != "dismiss" {
		t.Errorf("unexpected actions: %+v", n.Actions)
	}

	custom := BuildNotification(PushPayload{Title: "x", Tag: "event-7"})
	if custom.Tag != "event-7" {
		t.Errorf("explicit tag should win, got %s", custom.Tag)
	}
}

func TestResolveClickFocusesMatchingWindow(t *testing.T) {
	windows := []ClientWindow{
		{ID: "a", URL: "/", CanFocus: true},
		{ID: "b", URL: "/event/5/", CanFocus: true},
	}

	res := ResolveClick("open", "/event/5/", windows)
	if res.FocusID != "b" || res.OpenURL != "" {
		t.Errorf("expected focus on the matching window, got %+v", res)
	}
}

func TestResolveClickOpensNewWindow(t *testing.T) {
	res := ResolveClick("open", "/event/5/", []ClientWindow{{ID: "a", URL: "/", CanFocus: true}})
	if res.OpenURL != "/event/5/" || res.FocusID != "" {
		t.Errorf("expected a new window, got %+v", res)
	}

	// Unfocusable windows do not count as matches.
	res = ResolveClick("open", "/event/5/", []ClientWindow{{ID: "a", URL: "/event/5/", CanFocus: false}})
	if res.OpenURL != "/event/5/" {
		t.Errorf("unfocusable match should open a new window, got %+v", res)
	}
}

func TestResolveClickDefaults(t *testing.T) {
	if res := ResolveClick("dismiss", "/event/5/", nil); res != (ClickResolution{}) {
		t.Errorf("dismiss should do nothing, got %+v", res)
	}
	if res := ResolveClick("open", "", nil); res.OpenURL != "/" {
		t.Errorf("open without a URL should fall back to the root, got %+v", res)
	}
}
