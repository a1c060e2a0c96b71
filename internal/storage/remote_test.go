package storage

import (
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/lib/pq"
)

func TestRemoteSortColumn(t *testing.T) {
	cases := map[string]string{
		SortByID:        "id",
		SortByTitle:     "title",
		SortByCreatedAt: "created_at",
		SortByUpdatedAt: "updated_at",
		"coverUrl":      "cover_url",
		"":              "updated_at",
		"bogus; DROP":   "updated_at", // unknown fields fall back, never pass through
	}
	for field, want := range cases {
		if got := remoteSortColumn(field); got != want {
			t.Errorf("remoteSortColumn(%q) = %q, want %q", field, got, want)
		}
	}
}

func TestBuildListQuery_Defaults(t *testing.T) {
	q, args := buildListQuery(nil)
	if q != `SELECT * FROM cards ORDER BY updated_at DESC` {
		t.Errorf("query = %q", q)
	}
	if len(args) != 0 {
		t.Errorf("args = %v, want none", args)
	}
}

func TestBuildListQuery_AllPredicates(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	q, args := buildListQuery(&QueryOptions{
		Limit:     10,
		Offset:    20,
		SortBy:    SortByCreatedAt,
		SortOrder: SortAsc,
		Filters: &Filters{
			Tags:       []string{"work", "go"},
			SearchTerm: "sql",
			DateRange:  &DateRange{From: from, To: to},
		},
	})

	for _, want := range []string{
		"tags && $1",
		"(title ILIKE $2 OR content ILIKE $2)",
		"created_at >= $3",
		"created_at <= $4",
		"ORDER BY created_at ASC",
		"LIMIT $5",
		"OFFSET $6",
	} {
		if !strings.Contains(q, want) {
			t.Errorf("query %q missing %q", q, want)
		}
	}
	if len(args) != 6 {
		t.Fatalf("len(args) = %d, want 6", len(args))
	}
	if args[1] != "%sql%" {
		t.Errorf("search arg = %v, want %%sql%%", args[1])
	}
}

func TestBuildListQuery_SearchOnly(t *testing.T) {
	q, args := buildListQuery(&QueryOptions{Filters: &Filters{SearchTerm: "x"}})
	if strings.Contains(q, "tags &&") {
		t.Errorf("unexpected tag predicate in %q", q)
	}
	if len(args) != 1 {
		t.Errorf("args = %v, want 1", args)
	}
}

func TestRemoteRow_Card(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	r := remoteRow{
		ID:        7,
		Title:     "T",
		CoverURL:  sql.NullString{},
		Link:      sql.NullString{String: "https://example.com", Valid: true},
		Tags:      pq.StringArray{"a", "b"},
		CreatedAt: now,
		UpdatedAt: now.Add(time.Minute),
	}
	c := r.card()
	if c.CoverURL != "" {
		t.Errorf("CoverURL = %q, want unset", c.CoverURL)
	}
	if c.Link != "https://example.com" {
		t.Errorf("Link = %q", c.Link)
	}
	if len(c.Tags) != 2 {
		t.Errorf("Tags = %v", c.Tags)
	}
	if !c.UpdatedAt.After(c.CreatedAt) {
		t.Errorf("UpdatedAt %v not after CreatedAt %v", c.UpdatedAt, c.CreatedAt)
	}
}

func TestTagsArray_NilBecomesEmpty(t *testing.T) {
	if got := tagsArray(nil); got == nil || len(got) != 0 {
		t.Errorf("tagsArray(nil) = %#v, want empty array", got)
	}
}

func TestBootstrapDDL_Contract(t *testing.T) {
	// Column names and the bookkeeping table are part of the wire contract.
	for _, want := range []string{
		"schema_migrations",
		"cover_url",
		"tags       TEXT[]",
		"cards_touch_updated_at",
	} {
		if !strings.Contains(BootstrapDDL, want) {
			t.Errorf("BootstrapDDL missing %q", want)
		}
	}
}
