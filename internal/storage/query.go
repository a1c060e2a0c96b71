package storage

import (
	"sort"
	"strings"
)

// applyQuery filters, sorts, and paginates a loaded card set in-process.
// The local adapter reads the full object set for every query and leans on
// this instead of engine-side predicates; a simplicity-over-scale tradeoff
// that fits a personal store.
func applyQuery(cards []Card, opts *QueryOptions) []Card {
	out := make([]Card, 0, len(cards))
	f := opts.filters()
	for _, c := range cards {
		if matchesFilters(c, f) {
			out = append(out, c)
		}
	}

	sortCards(out, opts)

	return paginate(out, opts)
}

func matchesFilters(c Card, f *Filters) bool {
	if f == nil {
		return true
	}
	if len(f.Tags) > 0 && !hasAnyTag(c, f.Tags) {
		return false
	}
	if f.SearchTerm != "" && !matchesSearch(c, f.SearchTerm) {
		return false
	}
	if r := f.DateRange; r != nil {
		if !r.From.IsZero() && c.CreatedAt.Before(r.From) {
			return false
		}
		if !r.To.IsZero() && c.CreatedAt.After(r.To) {
			return false
		}
	}
	return true
}

// hasAnyTag reports whether at least one of want is present on the card.
func hasAnyTag(c Card, want []string) bool {
	for _, w := range want {
		for _, t := range c.Tags {
			if t == w {
				return true
			}
		}
	}
	return false
}

// matchesSearch does a case-insensitive substring match against title,
// content, and tags.
func matchesSearch(c Card, term string) bool {
	term = strings.ToLower(term)
	if strings.Contains(strings.ToLower(c.Title), term) {
		return true
	}
	if strings.Contains(strings.ToLower(c.Content), term) {
		return true
	}
	for _, t := range c.Tags {
		if strings.Contains(strings.ToLower(t), term) {
			return true
		}
	}
	return false
}

func sortCards(cards []Card, opts *QueryOptions) {
	field, order := opts.sortKey()
	sort.SliceStable(cards, func(i, j int) bool {
		less := lessByField(cards[i], cards[j], field)
		if order == SortDesc {
			return lessByField(cards[j], cards[i], field)
		}
		return less
	})
}

func lessByField(a, b Card, field string) bool {
	switch field {
	case SortByID:
		return a.ID < b.ID
	case SortByTitle:
		return a.Title < b.Title
	case SortByCreatedAt:
		return a.CreatedAt.Before(b.CreatedAt)
	case "coverUrl":
		return a.CoverURL < b.CoverURL
	case "link":
		return a.Link < b.Link
	case "content":
		return a.Content < b.Content
	default: // updatedAt
		return a.UpdatedAt.Before(b.UpdatedAt)
	}
}

func paginate(cards []Card, opts *QueryOptions) []Card {
	if opts == nil {
		return cards
	}
	if opts.Offset > 0 {
		if opts.Offset >= len(cards) {
			return []Card{}
		}
		cards = cards[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(cards) {
		cards = cards[:opts.Limit]
	}
	return cards
}

// distinctTags returns the sorted union of all cards' tags.
func distinctTags(cards []Card) []string {
	seen := make(map[string]struct{})
	tags := make([]string, 0)
	for _, c := range cards {
		for _, t := range c.Tags {
			if _, ok := seen[t]; !ok {
				seen[t] = struct{}{}
				tags = append(tags, t)
			}
		}
	}
	sort.Strings(tags)
	return tags
}
