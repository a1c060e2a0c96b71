package storage

import (
	"errors"
	"testing"
	"time"
)

func TestCardInput_Validate(t *testing.T) {
	if err := (CardInput{Title: "ok"}).Validate(); err != nil {
		t.Errorf("Validate = %v, want nil", err)
	}
	if err := (CardInput{}).Validate(); !errors.Is(err, ErrTitleRequired) {
		t.Errorf("Validate = %v, want ErrTitleRequired", err)
	}
	if err := (CardInput{Title: "   "}).Validate(); !errors.Is(err, ErrTitleRequired) {
		t.Errorf("Validate(whitespace) = %v, want ErrTitleRequired", err)
	}
}

func TestCardPatch_Validate(t *testing.T) {
	empty := ""
	if err := (CardPatch{Title: &empty}).Validate(); !errors.Is(err, ErrTitleRequired) {
		t.Errorf("Validate(empty title) = %v, want ErrTitleRequired", err)
	}
	if err := (CardPatch{}).Validate(); err != nil {
		t.Errorf("Validate(no title) = %v, want nil", err)
	}
}

func TestCardPatch_Apply(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	card := Card{
		ID:        42,
		Title:     "A",
		Content:   "old",
		Tags:      []string{"x"},
		CreatedAt: created,
		UpdatedAt: created,
	}

	title := "B"
	clear := ""
	patch := CardPatch{Title: &title, Content: &clear, Tags: []string{"y", "z"}}
	patch.apply(&card)

	if card.ID != 42 {
		t.Errorf("ID = %d, want 42", card.ID)
	}
	if !card.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt changed to %v", card.CreatedAt)
	}
	if card.Title != "B" {
		t.Errorf("Title = %q, want %q", card.Title, "B")
	}
	if card.Content != "" {
		t.Errorf("Content = %q, want cleared", card.Content)
	}
	if len(card.Tags) != 2 || card.Tags[0] != "y" {
		t.Errorf("Tags = %v, want [y z]", card.Tags)
	}
}

func TestCardPatch_Apply_NilFieldsUnchanged(t *testing.T) {
	card := Card{Title: "A", CoverURL: "cover", Tags: []string{"x"}}
	CardPatch{}.apply(&card)
	if card.Title != "A" || card.CoverURL != "cover" || len(card.Tags) != 1 {
		t.Errorf("empty patch changed the card: %+v", card)
	}
}

func TestNewCard_TimestampsEqualAtCreation(t *testing.T) {
	now := time.Now().UTC()
	c := newCard(CardInput{Title: "A"}, 1, now)
	if !c.CreatedAt.Equal(c.UpdatedAt) {
		t.Errorf("CreatedAt %v != UpdatedAt %v", c.CreatedAt, c.UpdatedAt)
	}
}

func TestNewLocalID(t *testing.T) {
	now := time.Now()
	id := newLocalID(now)
	if id <= 0 {
		t.Fatalf("id = %d, want > 0", id)
	}
	base := now.UnixMilli() * 1000
	if id < base || id >= base+1000 {
		t.Errorf("id = %d outside [%d, %d)", id, base, base+1000)
	}
}
