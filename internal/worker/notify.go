package worker

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

// Fixed notification artwork and tag.
const (
	NotificationIcon  = "/static/images/logo-192.png"
	NotificationBadge = "/static/images/badge-72.png"
	DefaultTag        = "eventhub-notification"
)

// ErrEmptyPush is returned for a push event without a payload.
var ErrEmptyPush = errors.New("push event carries no payload")

// PushPayload is the JSON body of an incoming push message.
type PushPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Image string `json:"image,omitempty"`
	URL   string `json:"url,omitempty"`
	Tag   string `json:"tag,omitempty"`
}

// ParsePushPayload decodes a push event payload.
func ParsePushPayload(data []byte) (PushPayload, error) {
	if len(data) == 0 {
		return PushPayload{}, ErrEmptyPush
	}
	var p PushPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return PushPayload{}, fmt.Errorf("decode push payload: %w", err)
	}
	if p.Title == "" {
		return PushPayload{}, errors.New("push payload missing title")
	}
	return p, nil
}

// NotificationAction is one button on a displayed notification.
type NotificationAction struct {
	Action string `json:"action"`
	Title  string `json:"title"`
}

// Notification is the displayable form of a push payload.
type Notification struct {
	Title              string               `json:"title"`
	Body               string               `json:"body"`
	Icon               string               `json:"icon"`
	Badge              string               `json:"badge"`
	Image              string               `json:"image,omitempty"`
	Tag                string               `json:"tag"`
	URL                string               `json:"url"`
	RequireInteraction bool                 `json:"require_interaction"`
	Actions            []NotificationAction `json:"actions"`
}

// BuildNotification turns a push payload into the notification shown to
// the user, with the fixed artwork and the Open/Dismiss actions.
func BuildNotification(p PushPayload) Notification {
	tag := p.Tag
	if tag == "" {
		tag = DefaultTag
	}
	return Notification{
		Title:              p.Title,
		Body:               p.Body,
		Icon:               NotificationIcon,
		Badge:              NotificationBadge,
		Image:              p.Image,
		Tag:                tag,
		URL:                p.URL,
		RequireInteraction: true,
		Actions: []NotificationAction{
			{Action: "open", Title: "Open Event"},
			{Action: "dismiss", Title: "Dismiss"},
		},
	}
}

// ClientWindow is an open page the notification click can target.
type ClientWindow struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	CanFocus bool   `json:"can_focus"`
}

// ClickResolution says what a notification click should do.
type ClickResolution struct {
	// FocusID is the window to focus, when one matches.
	FocusID string `json:"focus_id,omitempty"`
	// OpenURL is the URL to open in a new window otherwise.
	OpenURL string `json:"open_url,omitempty"`
}

// ResolveClick handles a notification click: the "open" action focuses an
// existing window showing the target URL, else opens a new one. Any other
// action only dismisses.
func ResolveClick(action, url string, windows []ClientWindow) ClickResolution {
	if action != "open" {
		return ClickResolution{}
	}
	if url == "" {
		url = "/"
	}
	for _, w := range windows {
		if w.URL == url && w.CanFocus {
			return ClickResolution{FocusID: w.ID}
		}
	}
	return ClickResolution{OpenURL: url}
}
