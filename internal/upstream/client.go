// Package upstream implements the HTTP JSON client for the EventHub API.
// All business logic lives behind that API; this client only fetches event
// data and relays interaction and subscription updates. Requests carry no
// retries and no backoff.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"eventhub-gateway/internal/model"
)

// csrfCookieName is the cookie the upstream issues its CSRF token in.
const csrfCookieName = "csrftoken"

// csrfHeader carries the token on every mutating request.
const csrfHeader = "X-CSRFToken"

// Client talks to the upstream EventHub API.
type Client struct {
	base *url.URL
	http *http.Client

	mu        sync.RWMutex
	csrfToken string
}

// New constructs a Client for the given base URL. An empty csrfToken means
// the token is read from the csrftoken cookie of each response instead.
func New(baseURL, csrfToken string) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream url: %w", err)
	}
	return &Client{
		base:      base,
		http:      &http.Client{Timeout: 30 * time.Second},
		csrfToken: csrfToken,
	}, nil
}

// MapEvents fetches the full event list for map rendering.
func (c *Client) MapEvents(ctx context.Context) ([]model.Event, error) {
	var events []model.Event
	if err := c.getJSON(ctx, "/api/events/?format=json&map=true", &events); err != nil {
		return nil, fmt.Errorf("load map events: %w", err)
	}
	return events, nil
}

// CalendarEvents fetches the event list backing the calendar widget.
func (c *Client) CalendarEvents(ctx context.Context) ([]model.Event, error) {
	var events []model.Event
	if err := c.getJSON(ctx, "/api/events/calendar/", &events); err != nil {
		return nil, fmt.Errorf("load calendar events: %w", err)
	}
	return events, nil
}

// NearbyEvents fetches events within radius kilometres of a position.
func (c *Client) NearbyEvents(ctx context.Context, lat, lon, radiusKm float64) ([]model.Event, error) {
	path := fmt.Sprintf("/api/events/nearby/?lat=%g&lon=%g&radius=%g", lat, lon, radiusKm)
	var events []model.Event
	if err := c.getJSON(ctx, path, &events); err != nil {
		return nil, fmt.Errorf("load nearby events: %w", err)
	}
	return events, nil
}

// TrackView reports a balloon open for an event.
func (c *Client) TrackView(ctx context.Context, eventID int) error {
	return c.postJSON(ctx, fmt.Sprintf("/api/events/%d/track_view/", eventID), nil, nil)
}

// TrackClick reports a marker click for an event.
func (c *Client) TrackClick(ctx context.Context, eventID int) error {
	return c.postJSON(ctx, fmt.Sprintf("/api/events/%d/track_click/", eventID), nil, nil)
}

// favoriteResponse is the upstream toggle result.
type favoriteResponse struct {
	Status string `json:"status"`
}

// ToggleFavorite flips the favorite flag for an event and returns the
// resulting status, "added" or "removed".
func (c *Client) ToggleFavorite(ctx context.Context, eventID int) (string, error) {
	var resp favoriteResponse
	if err := c.postJSON(ctx, fmt.Sprintf("/event/%d/favorite/", eventID), nil, &resp); err != nil {
		return "", fmt.Errorf("toggle favorite: %w", err)
	}
	return resp.Status, nil
}

// subscriptionRequest is the body of a push-subscription sync.
type subscriptionRequest struct {
	Subscription model.PushSubscription `json:"subscription"`
	Action       string                 `json:"action"`
}

// SyncSubscription mirrors a push subscription to the server. action is
// "subscribe" or "unsubscribe".
func (c *Client) SyncSubscription(ctx context.Context, sub model.PushSubscription, action string) error {
	body := subscriptionRequest{Subscription: sub, Action: action}
	if err := c.postJSON(ctx, "/api/notifications/subscription/", body, nil); err != nil {
		return fmt.Errorf("sync subscription (%s): %w", action, err)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, dst any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return c.do(req, dst)
}

func (c *Client) postJSON(ctx context.Context, path string, body, dst any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, reader)
	if err != nil {
		return err
	}
	req.Header.Set(csrfHeader, c.csrf())
	return c.do(req, dst)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("build request url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.ResolveReference(ref).String(), body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request, dst any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	c.captureCSRF(resp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: unexpected status %d", req.Method, req.URL.Path, resp.StatusCode)
	}
	if dst == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) csrf() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.csrfToken
}

// captureCSRF remembers the token the upstream sets via cookie so later
// mutating requests can echo it back.
func (c *Client) captureCSRF(resp *http.Response) {
	for _, cookie := range resp.Cookies() {
		if cookie.Name == csrfCookieName && cookie.Value != "" {
			c.mu.Lock()
			c.csrfToken = cookie.Value
			c.mu.Unlock()
			return
		}
	}
}
