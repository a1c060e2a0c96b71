package storage

import (
	"errors"
	"math/rand"
	"strings"
	"time"
)

var (
	// ErrTitleRequired is returned when a card is created or updated without
	// a title. Validation happens before any backend is invoked.
	ErrTitleRequired = errors.New("card title is required")

	// ErrNotFound is the engine-agnostic not-found sentinel used inside
	// adapters before translating into the result envelope.
	ErrNotFound = errors.New("card not found")
)

// Card is the single persisted entity: one note/bookmark.
//
// CoverURL, Link, and Content are optional; the empty string means unset and
// maps to SQL NULL at the relational boundary. Tags are an ordered sequence;
// the type does not dedup, application semantics treat them as a set.
type Card struct {
	ID        int64     `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	CoverURL  string    `json:"coverUrl,omitempty" db:"cover_url"`
	Link      string    `json:"link,omitempty" db:"link"`
	Content   string    `json:"content,omitempty" db:"content"`
	Tags      []string  `json:"tags" db:"-"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// CardInput is the caller-supplied shape for card creation. The store
// assigns ID and both timestamps.
type CardInput struct {
	Title    string   `json:"title"`
	CoverURL string   `json:"coverUrl,omitempty"`
	Link     string   `json:"link,omitempty"`
	Content  string   `json:"content,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// Validate rejects inputs that must never reach a backend.
func (in CardInput) Validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return ErrTitleRequired
	}
	return nil
}

// CardPatch is a sparse partial for updates. Nil pointer fields are left
// unchanged; a pointer to "" clears the field. Nil Tags leaves tags
// unchanged. ID and CreatedAt are immutable and have no patch slot.
type CardPatch struct {
	Title    *string  `json:"title,omitempty"`
	CoverURL *string  `json:"coverUrl,omitempty"`
	Link     *string  `json:"link,omitempty"`
	Content  *string  `json:"content,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// Validate rejects patches that would leave a card without a title.
func (p CardPatch) Validate() error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return ErrTitleRequired
	}
	return nil
}

// apply merges the patch onto c. It does not touch ID, CreatedAt, or
// UpdatedAt; timestamp authority is per-adapter.
func (p CardPatch) apply(c *Card) {
	if p.Title != nil {
		c.Title = *p.Title
	}
	if p.CoverURL != nil {
		c.CoverURL = *p.CoverURL
	}
	if p.Link != nil {
		c.Link = *p.Link
	}
	if p.Content != nil {
		c.Content = *p.Content
	}
	if p.Tags != nil {
		c.Tags = p.Tags
	}
}

// newCard builds a Card from an input with store-assigned ID and timestamps.
// CreatedAt equals UpdatedAt at creation.
func newCard(in CardInput, id int64, now time.Time) Card {
	return Card{
		ID:        id,
		Title:     in.Title,
		CoverURL:  in.CoverURL,
		Link:      in.Link,
		Content:   in.Content,
		Tags:      in.Tags,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// newLocalID generates a card ID from the current time in milliseconds plus
// a small random offset. Monotonic enough to avoid collisions within the
// same millisecond without a central counter.
func newLocalID(now time.Time) int64 {
	return now.UnixMilli()*1000 + rand.Int63n(1000)
}
