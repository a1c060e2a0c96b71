// Package storage is the persistence core of cardbox: one contract over
// interchangeable backends, adapters for an embedded local store (SQLite)
// and a remote relational store (PostgreSQL), and a factory that memoizes a
// single adapter per process.
package storage

import "context"

// CardStorage is the contract every backend implements. All operations
// return a result envelope; failures are captured there, never raised.
//
// Callers do not need to sequence Initialize before other operations: every
// operation on an uninitialized adapter transparently establishes the
// connection first. Initialize is idempotent.
type CardStorage interface {
	// Initialize establishes the connection and schema. A second call on an
	// already-initialized instance returns success without side effects.
	Initialize(ctx context.Context) Status

	// GetCards returns cards matching opts (nil means all cards, sorted by
	// updatedAt descending).
	GetCards(ctx context.Context, opts *QueryOptions) Result[[]Card]

	// GetCard returns the card with the given id, or nil data with
	// Success=true if no such card exists.
	GetCard(ctx context.Context, id int64) Result[*Card]

	// CreateCard persists a new card, assigning its ID and timestamps.
	CreateCard(ctx context.Context, input CardInput) Result[*Card]

	// UpdateCard merges patch onto the existing card. ID and CreatedAt are
	// immutable; UpdatedAt is refreshed on every call. Fails if id does not
	// exist.
	UpdateCard(ctx context.Context, id int64, patch CardPatch) Result[*Card]

	// DeleteCard removes the card with the given id. Deleting a nonexistent
	// id is not an error.
	DeleteCard(ctx context.Context, id int64) Status

	// BulkCreateCards creates items best-effort: individual failures are
	// summarized in the envelope while the remaining items still commit.
	// Data carries the cards that were created.
	BulkCreateCards(ctx context.Context, inputs []CardInput) Result[[]Card]

	// BulkDeleteCards deletes ids best-effort, same failure accounting as
	// BulkCreateCards.
	BulkDeleteCards(ctx context.Context, ids []int64) Status

	// SearchCards is sugar for GetCards with a search-term filter.
	SearchCards(ctx context.Context, query string) Result[[]Card]

	// GetCardsByTag is sugar for GetCards with a single-tag filter.
	GetCardsByTag(ctx context.Context, tag string) Result[[]Card]

	// GetAllTags returns the distinct tags across all cards, sorted
	// lexicographically.
	GetAllTags(ctx context.Context) Result[[]string]

	// ClearAll deletes every card.
	ClearAll(ctx context.Context) Status

	// ExportData returns a full snapshot of all cards.
	ExportData(ctx context.Context) Result[[]Card]

	// ImportData replaces the entire data set: existing cards are cleared,
	// then the supplied records are inserted with their original ids and
	// timestamps.
	ImportData(ctx context.Context, cards []Card) Status

	// Close releases the underlying engine handle.
	Close() error
}
