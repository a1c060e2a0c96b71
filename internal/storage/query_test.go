package storage

import (
	"testing"
	"time"
)

func testSet() []Card {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	mk := func(id int64, title, content string, tags []string, age time.Duration) Card {
		return Card{
			ID:        id,
			Title:     title,
			Content:   content,
			Tags:      tags,
			CreatedAt: base.Add(age),
			UpdatedAt: base.Add(age),
		}
	}
	return []Card{
		mk(1, "Go generics", "notes on type params", []string{"go", "work"}, 0),
		mk(2, "Sourdough", "starter feeding schedule", []string{"baking"}, time.Hour),
		mk(3, "SQLite WAL", "journal modes", []string{"go", "db"}, 2*time.Hour),
		mk(4, "Reading list", "", []string{"books"}, 3*time.Hour),
		mk(5, "gophers", "GO conference talk", nil, 4*time.Hour),
	}
}

func ids(cards []Card) []int64 {
	out := make([]int64, len(cards))
	for i, c := range cards {
		out[i] = c.ID
	}
	return out
}

func TestApplyQuery_DefaultSort(t *testing.T) {
	got := applyQuery(testSet(), nil)
	want := []int64{5, 4, 3, 2, 1} // updatedAt descending
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("order = %v, want %v", ids(got), want)
		}
	}
}

func TestApplyQuery_TagFilterIsOrMatch(t *testing.T) {
	got := applyQuery(testSet(), &QueryOptions{
		Filters: &Filters{Tags: []string{"db", "baking"}},
	})
	if len(got) != 2 {
		t.Fatalf("len = %d (%v), want 2", len(got), ids(got))
	}
	for _, c := range got {
		if c.ID != 2 && c.ID != 3 {
			t.Errorf("unexpected card %d", c.ID)
		}
	}
}

func TestApplyQuery_SearchTerm(t *testing.T) {
	// Case-insensitive, matches title, content, and tags.
	cases := []struct {
		term string
		want []int64
	}{
		{"go", []int64{5, 3, 1}},   // titles, tag, content
		{"SCHEDULE", []int64{2}},   // content, case-insensitive
		{"books", []int64{4}},      // tag
		{"nonexistent", []int64{}},
	}
	for _, tc := range cases {
		got := applyQuery(testSet(), &QueryOptions{Filters: &Filters{SearchTerm: tc.term}})
		if len(got) != len(tc.want) {
			t.Errorf("search %q = %v, want %v", tc.term, ids(got), tc.want)
			continue
		}
		for i, id := range tc.want {
			if got[i].ID != id {
				t.Errorf("search %q = %v, want %v", tc.term, ids(got), tc.want)
				break
			}
		}
	}
}

func TestApplyQuery_DateRangeInclusive(t *testing.T) {
	set := testSet()
	from := set[1].CreatedAt // card 2
	to := set[3].CreatedAt   // card 4
	got := applyQuery(set, &QueryOptions{
		SortBy:    SortByCreatedAt,
		SortOrder: SortAsc,
		Filters:   &Filters{DateRange: &DateRange{From: from, To: to}},
	})
	want := []int64{2, 3, 4}
	if len(got) != 3 || got[0].ID != 2 || got[2].ID != 4 {
		t.Errorf("range = %v, want %v", ids(got), want)
	}
}

func TestApplyQuery_SortByTitleAsc(t *testing.T) {
	got := applyQuery(testSet(), &QueryOptions{SortBy: SortByTitle, SortOrder: SortAsc})
	if got[0].Title != "Go generics" {
		t.Errorf("first = %q", got[0].Title)
	}
	if got[len(got)-1].Title != "gophers" {
		t.Errorf("last = %q", got[len(got)-1].Title)
	}
}

func TestApplyQuery_PaginationAfterSort(t *testing.T) {
	got := applyQuery(testSet(), &QueryOptions{
		SortBy:    SortByCreatedAt,
		SortOrder: SortAsc,
		Limit:     2,
		Offset:    1,
	})
	// 2nd and 3rd oldest.
	if len(got) != 2 || got[0].ID != 2 || got[1].ID != 3 {
		t.Errorf("page = %v, want [2 3]", ids(got))
	}
}

func TestApplyQuery_OffsetPastEnd(t *testing.T) {
	got := applyQuery(testSet(), &QueryOptions{Offset: 10})
	if len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
}

func TestDistinctTags(t *testing.T) {
	got := distinctTags(testSet())
	want := []string{"baking", "books", "db", "go", "work"}
	if len(got) != len(want) {
		t.Fatalf("tags = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tags = %v, want %v", got, want)
		}
	}
}
