package events

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("event not found")

// Host is the person presenting the event.
type Host struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// Attendees summarizes who is coming, for the invitation page.
type Attendees struct {
	Count   int      `json:"count"`
	Avatars []string `json:"avatars"`
}

// Event is one invitation-page record.
type Event struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Subtitle       string    `json:"subtitle"`
	Date           string    `json:"date"`
	Time           string    `json:"time"`
	Location       string    `json:"location"`
	Host           Host      `json:"host"`
	Attendees      Attendees `json:"attendees"`
	Description    string    `json:"description"`
	Highlights     []string  `json:"highlights"`
	AvatarURL      string    `json:"avatarUrl"`
	CoverImage     string    `json:"coverImage"`
	PromoImage     string    `json:"promoImage,omitempty"`
	KnowledgeFiles []string  `json:"avatarKnowledgeFiles,omitempty"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Patch is a partial update; nil fields are left untouched.
type Patch struct {
	Title          *string   `json:"title,omitempty"`
	Subtitle       *string   `json:"subtitle,omitempty"`
	Date           *string   `json:"date,omitempty"`
	Time           *string   `json:"time,omitempty"`
	Location       *string   `json:"location,omitempty"`
	Description    *string   `json:"description,omitempty"`
	Highlights     *[]string `json:"highlights,omitempty"`
	PromoImage     *string   `json:"promoImage,omitempty"`
	KnowledgeFiles *[]string `json:"avatarKnowledgeFiles,omitempty"`
}

// Store reads and updates event records.
type Store interface {
	Get(ctx context.Context, id string) (Event, error)
	Update(ctx context.Context, id string, patch Patch) (Event, error)
	Close() error
}

func (p Patch) apply(ev *Event) {
	if p.Title != nil {
		ev.Title = *p.Title
	}
	if p.Subtitle != nil {
		ev.Subtitle = *p.Subtitle
	}
	if p.Date != nil {
		ev.Date = *p.Date
	}
	if p.Time != nil {
		ev.Time = *p.Time
	}
	if p.Location != nil {
		ev.Location = *p.Location
	}
	if p.Description != nil {
		ev.Description = *p.Description
	}
	if p.Highlights != nil {
		ev.Highlights = append([]string(nil), (*p.Highlights)...)
	}
	if p.PromoImage != nil {
		ev.PromoImage = *p.PromoImage
	}
	if p.KnowledgeFiles != nil {
		ev.KnowledgeFiles = append([]string(nil), (*p.KnowledgeFiles)...)
	}
	ev.UpdatedAt = time.Now().UTC()
}
