package mapview

import (
	"fmt"

	"eventhub-gateway/internal/geo"
	"eventhub-gateway/internal/model"
)

// Marker is the rendering handle wrapping one event. It owns the visibility
// flag toggled by the filter pass and the icon preset derived from the
// event type. Markers are destroyed and recreated on every full render.
type Marker struct {
	Event   model.Event `json:"event"`
	Coords  geo.Point   `json:"coords"`
	Preset  string      `json:"preset"`
	Hint    string      `json:"hint"`
	Visible bool        `json:"visible"`
}

func newMarker(e model.Event) *Marker {
	return &Marker{
		Event:   e,
		Coords:  geo.Point{Lat: e.Latitude, Lon: e.Longitude},
		Preset:  PresetFor(&e),
		Hint:    e.Title,
		Visible: true,
	}
}

// HighlightPreset is applied temporarily when a marker is highlighted, e.g.
// after a nearby-events lookup.
const HighlightPreset = "islands#redIcon"

// UserPreset marks the located user position.
const UserPreset = "islands#blueCircleIcon"

var defaultPreset = "islands#blueEventIcon"

var presetByType = map[string]string{
	"concert":     "islands#redMusicIcon",
	"conference":  "islands#blueConferenceIcon",
	"workshop":    "islands#greenWorkshopIcon",
	"sport_event": "islands#orangeSportIcon",
	"exhibition":  "islands#violetExhibitionIcon",
	"party":       "islands#pinkPartyIcon",
}

// PresetFor returns the icon preset for an event's type.
func PresetFor(e *model.Event) string {
	if p, ok := presetByType[e.EventType]; ok {
		return p
	}
	return defaultPreset
}

// Badge pairs a badge tag with its display text.
type Badge struct {
	Tag  string `json:"tag"`
	Text string `json:"text"`
}

var badgeTexts = map[string]string{
	"trending":    "🔥 Популярное",
	"new":         "🆕 Новое",
	"featured":    "⭐ Рекомендуем",
	"early_bird":  "🐦 Ранняя пташка",
	"last_chance": "⏰ Последний шанс",
	"sold_out":    "🔴 Продано",
	"exclusive":   "👑 Эксклюзив",
	"discount":    "💸 Скидка",
	"online":      "💻 Онлайн",
	"free":        "🎫 Бесплатно",
}

// BadgeText returns the display text for a badge tag, falling back to the
// tag itself.
func BadgeText(tag string) string {
	if t, ok := badgeTexts[tag]; ok {
		return t
	}
	return tag
}

func badgeViews(e *model.Event) []Badge {
	if len(e.Badges) == 0 {
		return nil
	}
	out := make([]Badge, 0, len(e.Badges))
	for _, tag := range e.Badges {
		out = append(out, Badge{Tag: tag, Text: BadgeText(tag)})
	}
	return out
}

// BalloonView is the content model of the popup shown on marker interaction.
type BalloonView struct {
	Title          string  `json:"title"`
	Badges         []Badge `json:"badges,omitempty"`
	Date           string  `json:"date"`
	Location       string  `json:"location"`
	Price          string  `json:"price"`
	Rating         string  `json:"rating,omitempty"`
	Participants   int     `json:"participants,omitempty"`
	Organizer      string  `json:"organizer"`
	AvailableSpots int     `json:"available_spots,omitempty"`
	DetailURL      string  `json:"detail_url"`
}

// NewBalloonView builds the balloon content for an event.
func NewBalloonView(e *model.Event) BalloonView {
	v := BalloonView{
		Title:          e.Title,
		Badges:         badgeViews(e),
		Date:           formatRuDate(e.StartsAt()),
		Location:       e.Location,
		Price:          formatPrice(e.Price),
		Participants:   e.RegistrationsCount,
		Organizer:      e.OrganizerName,
		AvailableSpots: e.AvailableSpots,
		DetailURL:      e.DetailURL(),
	}
	if e.AverageRating > 0 {
		v.Rating = fmt.Sprintf("%.1f", e.AverageRating)
	}
	return v
}

// SidebarView is the content model of the detail side panel opened on
// marker click.
type SidebarView struct {
	Title            string `json:"title"`
	CategoryName     string `json:"category_name"`
	EventTypeName    string `json:"event_type_name"`
	ShortDescription string `json:"short_description"`
	DetailURL        string `json:"detail_url"`
	RegisterURL      string `json:"register_url"`
}

// NewSidebarView builds the sidebar content for an event.
func NewSidebarView(e *model.Event) SidebarView {
	return SidebarView{
		Title:            e.Title,
		CategoryName:     e.CategoryName,
		EventTypeName:    e.EventTypeName,
		ShortDescription: e.ShortDescription,
		DetailURL:        e.DetailURL(),
		RegisterURL:      fmt.Sprintf("/event/%d/register/", e.ID),
	}
}

func formatPrice(price float64) string {
	if price > 0 {
		return fmt.Sprintf("%.0f₽", price)
	}
	return "Бесплатно"
}
