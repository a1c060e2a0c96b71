package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/cardbox/cardbox/internal/db"
	"github.com/cardbox/cardbox/internal/logbuf"
	"github.com/cardbox/cardbox/internal/metrics"
)

const remoteBackend = "remote"

// RemoteConfig configures the hosted PostgreSQL backend.
type RemoteConfig struct {
	// DSN is the connection string (endpoint plus access credentials).
	DSN string
}

// RemoteStore implements CardStorage against a hosted PostgreSQL database.
//
// This adapter is the single place that knows the mapping between the
// app-level camelCase card shape and the snake_case row shape. Unlike
// LocalStore it does not stamp updated_at: a server-side trigger refreshes
// it on every update, so the server clock is the timestamp authority for
// this backend. That asymmetry is intentional and must not be unified.
type RemoteStore struct {
	cfg RemoteConfig
	log *logbuf.Scoped

	mu          sync.Mutex
	conn        *sqlx.DB
	initialized bool
}

// NewRemoteStore creates the adapter without connecting.
func NewRemoteStore(cfg RemoteConfig, log *logbuf.Log) *RemoteStore {
	return &RemoteStore{cfg: cfg, log: log.For("RemoteStore")}
}

// ensureReady connects and runs the advisory migration protocol once. A
// failed attempt leaves the adapter uninitialized so the next call retries.
func (s *RemoteStore) ensureReady(ctx context.Context) (*sqlx.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return s.conn, nil
	}

	if s.conn == nil {
		conn, err := db.Open("postgres", s.cfg.DSN)
		if err != nil {
			return nil, err
		}
		s.conn = conn
	}
	if err := runRemoteMigrations(ctx, s.conn); err != nil {
		return nil, err
	}

	s.initialized = true
	s.log.Info("remote store ready", nil)
	return s.conn, nil
}

// Initialize connects and verifies the schema. A second call on an
// initialized instance returns success immediately.
func (s *RemoteStore) Initialize(ctx context.Context) Status {
	start := time.Now()
	if _, err := s.ensureReady(ctx); err != nil {
		metrics.ObserveOp(remoteBackend, "initialize", start, false)
		s.log.Error("initialize failed", err, nil)
		return failStatus("initialize remote store: %v", err)
	}
	metrics.ObserveOp(remoteBackend, "initialize", start, true)
	return done()
}

// remoteRow is the engine-native (snake_case) row shape.
type remoteRow struct {
	ID        int64          `db:"id"`
	Title     string         `db:"title"`
	CoverURL  sql.NullString `db:"cover_url"`
	Link      sql.NullString `db:"link"`
	Content   sql.NullString `db:"content"`
	Tags      pq.StringArray `db:"tags"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

func (r remoteRow) card() Card {
	return Card{
		ID:        r.ID,
		Title:     r.Title,
		CoverURL:  r.CoverURL.String,
		Link:      r.Link.String,
		Content:   r.Content.String,
		Tags:      []string(r.Tags),
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func tagsArray(tags []string) pq.StringArray {
	if tags == nil {
		return pq.StringArray{}
	}
	return pq.StringArray(tags)
}

// remoteSortColumn translates an app-level sort field to its column. The
// translation doubles as an allowlist so caller input never reaches the SQL
// string unchecked.
func remoteSortColumn(field string) string {
	switch field {
	case SortByID:
		return "id"
	case SortByTitle:
		return "title"
	case SortByCreatedAt:
		return "created_at"
	case "coverUrl":
		return "cover_url"
	case "link":
		return "link"
	case "content":
		return "content"
	default:
		return "updated_at"
	}
}

// buildListQuery translates QueryOptions into engine-native predicates: tag
// filter becomes an array-overlap, search an ILIKE across title and
// content, date range inclusive bounds on created_at, plus ORDER BY and
// LIMIT/OFFSET.
func buildListQuery(opts *QueryOptions) (string, []any) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f := opts.filters(); f != nil {
		if len(f.Tags) > 0 {
			where = append(where, fmt.Sprintf("tags && %s", arg(tagsArray(f.Tags))))
		}
		if f.SearchTerm != "" {
			pattern := "%" + f.SearchTerm + "%"
			p := arg(pattern)
			where = append(where, fmt.Sprintf("(title ILIKE %s OR content ILIKE %s)", p, p))
		}
		if r := f.DateRange; r != nil {
			if !r.From.IsZero() {
				where = append(where, fmt.Sprintf("created_at >= %s", arg(r.From)))
			}
			if !r.To.IsZero() {
				where = append(where, fmt.Sprintf("created_at <= %s", arg(r.To)))
			}
		}
	}

	q := `SELECT * FROM cards`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}

	field, order := opts.sortKey()
	dir := "DESC"
	if order == SortAsc {
		dir = "ASC"
	}
	q += fmt.Sprintf(" ORDER BY %s %s", remoteSortColumn(field), dir)

	if opts != nil && opts.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %s", arg(opts.Limit))
	}
	if opts != nil && opts.Offset > 0 {
		q += fmt.Sprintf(" OFFSET %s", arg(opts.Offset))
	}
	return q, args
}

// GetCards pushes filtering, sorting, and pagination down to the engine.
func (s *RemoteStore) GetCards(ctx context.Context, opts *QueryOptions) Result[[]Card] {
	start := time.Now()
	conn, err := s.ensureReady(ctx)
	if err != nil {
		metrics.ObserveOp(remoteBackend, "getCards", start, false)
		return fail[[]Card]("get cards: %v", err)
	}

	q, args := buildListQuery(opts)
	var rows []remoteRow
	if err := conn.SelectContext(ctx, &rows, q, args...); err != nil {
		metrics.ObserveOp(remoteBackend, "getCards", start, false)
		s.log.Error("get cards failed", err, nil)
		return fail[[]Card]("get cards: %v", err)
	}

	cards := make([]Card, 0, len(rows))
	for _, r := range rows {
		cards = append(cards, r.card())
	}
	metrics.ObserveOp(remoteBackend, "getCards", start, true)
	return ok(cards)
}

// GetCard returns nil data with success when the id does not exist.
func (s *RemoteStore) GetCard(ctx context.Context, id int64) Result[*Card] {
	start := time.Now()
	conn, err := s.ensureReady(ctx)
	if err != nil {
		metrics.ObserveOp(remoteBackend, "getCard", start, false)
		return fail[*Card]("get card %d: %v", id, err)
	}
	var row remoteRow
	err = conn.GetContext(ctx, &row, `SELECT * FROM cards WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		metrics.ObserveOp(remoteBackend, "getCard", start, true)
		return ok[*Card](nil)
	}
	if err != nil {
		metrics.ObserveOp(remoteBackend, "getCard", start, false)
		s.log.Error("get card failed", err, map[string]any{"id": id})
		return fail[*Card]("get card %d: %v", id, err)
	}
	card := row.card()
	metrics.ObserveOp(remoteBackend, "getCard", start, true)
	return ok(&card)
}

func (s *RemoteStore) insertCard(ctx context.Context, conn *sqlx.DB, input CardInput) (Card, error) {
	var row remoteRow
	err := conn.GetContext(ctx, &row, `
		INSERT INTO cards (title, cover_url, link, content, tags)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), $5)
		RETURNING *
	`, input.Title, input.CoverURL, input.Link, input.Content, tagsArray(input.Tags))
	if err != nil {
		return Card{}, err
	}
	return row.card(), nil
}

// CreateCard lets the engine assign the id and both timestamps (column
// defaults), then returns the stored row.
func (s *RemoteStore) CreateCard(ctx context.Context, input CardInput) Result[*Card] {
	start := time.Now()
	if err := input.Validate(); err != nil {
		metrics.ObserveOp(remoteBackend, "createCard", start, false)
		return fail[*Card]("create card: %v", err)
	}
	conn, err := s.ensureReady(ctx)
	if err != nil {
		metrics.ObserveOp(remoteBackend, "createCard", start, false)
		return fail[*Card]("create card: %v", err)
	}

	card, err := s.insertCard(ctx, conn, input)
	if err != nil {
		metrics.ObserveOp(remoteBackend, "createCard", start, false)
		s.log.Error("create card failed", err, map[string]any{"title": input.Title})
		return fail[*Card]("create card: %v", err)
	}
	metrics.ObserveOp(remoteBackend, "createCard", start, true)
	s.log.Debug("card created", map[string]any{"id": card.ID})
	return ok(&card)
}

// UpdateCard writes only the patched columns. id and created_at are never
// part of the payload; updated_at is left to the engine-side trigger.
func (s *RemoteStore) UpdateCard(ctx context.Context, id int64, patch CardPatch) Result[*Card] {
	start := time.Now()
	if err := patch.Validate(); err != nil {
		metrics.ObserveOp(remoteBackend, "updateCard", start, false)
		return fail[*Card]("update card %d: %v", id, err)
	}
	conn, err := s.ensureReady(ctx)
	if err != nil {
		metrics.ObserveOp(remoteBackend, "updateCard", start, false)
		return fail[*Card]("update card %d: %v", id, err)
	}

	var (
		sets []string
		args []any
	)
	set := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if patch.Title != nil {
		set("title", *patch.Title)
	}
	if patch.CoverURL != nil {
		set("cover_url", nullable(*patch.CoverURL))
	}
	if patch.Link != nil {
		set("link", nullable(*patch.Link))
	}
	if patch.Content != nil {
		set("content", nullable(*patch.Content))
	}
	if patch.Tags != nil {
		set("tags", tagsArray(patch.Tags))
	}
	// An empty patch still refreshes updated_at; the trigger fires on any
	// UPDATE, so touch a column with its own value.
	if len(sets) == 0 {
		sets = append(sets, "title = title")
	}

	args = append(args, id)
	q := fmt.Sprintf(`UPDATE cards SET %s WHERE id = $%d RETURNING *`,
		strings.Join(sets, ", "), len(args))

	var row remoteRow
	err = conn.GetContext(ctx, &row, q, args...)
	if errors.Is(err, sql.ErrNoRows) {
		metrics.ObserveOp(remoteBackend, "updateCard", start, false)
		return fail[*Card]("update card %d: %v", id, ErrNotFound)
	}
	if err != nil {
		metrics.ObserveOp(remoteBackend, "updateCard", start, false)
		s.log.Error("update card failed", err, map[string]any{"id": id})
		return fail[*Card]("update card %d: %v", id, err)
	}

	card := row.card()
	metrics.ObserveOp(remoteBackend, "updateCard", start, true)
	return ok(&card)
}

// DeleteCard removes the row; a missing id is not an error.
func (s *RemoteStore) DeleteCard(ctx context.Context, id int64) Status {
	start := time.Now()
	conn, err := s.ensureReady(ctx)
	if err != nil {
		metrics.ObserveOp(remoteBackend, "deleteCard", start, false)
		return failStatus("delete card %d: %v", id, err)
	}
	if _, err := conn.ExecContext(ctx, `DELETE FROM cards WHERE id = $1`, id); err != nil {
		metrics.ObserveOp(remoteBackend, "deleteCard", start, false)
		s.log.Error("delete card failed", err, map[string]any{"id": id})
		return failStatus("delete card %d: %v", id, err)
	}
	metrics.ObserveOp(remoteBackend, "deleteCard", start, true)
	return done()
}

// BulkCreateCards inserts each item independently; failures are summarized
// while the remaining items stay committed.
func (s *RemoteStore) BulkCreateCards(ctx context.Context, inputs []CardInput) Result[[]Card] {
	start := time.Now()
	conn, err := s.ensureReady(ctx)
	if err != nil {
		metrics.ObserveOp(remoteBackend, "bulkCreateCards", start, false)
		return fail[[]Card]("bulk create: %v", err)
	}

	batch := uuid.NewString()
	created := make([]Card, 0, len(inputs))
	var failures []string

	for i, input := range inputs {
		if err := input.Validate(); err != nil {
			failures = append(failures, fmt.Sprintf("item %d: %v", i, err))
			continue
		}
		card, err := s.insertCard(ctx, conn, input)
		if err != nil {
			failures = append(failures, fmt.Sprintf("item %d: %v", i, err))
			continue
		}
		created = append(created, card)
	}

	s.log.Info("bulk create finished", map[string]any{
		"batch":   batch,
		"created": len(created),
		"failed":  len(failures),
	})
	if len(failures) > 0 {
		metrics.ObserveOp(remoteBackend, "bulkCreateCards", start, false)
		return failWith(created, "bulk create: %d of %d items failed: %s",
			len(failures), len(inputs), strings.Join(failures, "; "))
	}
	metrics.ObserveOp(remoteBackend, "bulkCreateCards", start, true)
	return ok(created)
}

// BulkDeleteCards deletes each id independently with the same accounting.
func (s *RemoteStore) BulkDeleteCards(ctx context.Context, ids []int64) Status {
	start := time.Now()
	conn, err := s.ensureReady(ctx)
	if err != nil {
		metrics.ObserveOp(remoteBackend, "bulkDeleteCards", start, false)
		return failStatus("bulk delete: %v", err)
	}

	batch := uuid.NewString()
	var failures []string
	for _, id := range ids {
		if _, err := conn.ExecContext(ctx, `DELETE FROM cards WHERE id = $1`, id); err != nil {
			failures = append(failures, fmt.Sprintf("id %d: %v", id, err))
		}
	}

	s.log.Info("bulk delete finished", map[string]any{
		"batch":  batch,
		"ids":    len(ids),
		"failed": len(failures),
	})
	if len(failures) > 0 {
		metrics.ObserveOp(remoteBackend, "bulkDeleteCards", start, false)
		return failStatus("bulk delete: %d of %d items failed: %s",
			len(failures), len(ids), strings.Join(failures, "; "))
	}
	metrics.ObserveOp(remoteBackend, "bulkDeleteCards", start, true)
	return done()
}

// SearchCards is sugar for a search-term query.
func (s *RemoteStore) SearchCards(ctx context.Context, query string) Result[[]Card] {
	return s.GetCards(ctx, &QueryOptions{Filters: &Filters{SearchTerm: query}})
}

// GetCardsByTag is sugar for a single-tag query.
func (s *RemoteStore) GetCardsByTag(ctx context.Context, tag string) Result[[]Card] {
	return s.GetCards(ctx, &QueryOptions{Filters: &Filters{Tags: []string{tag}}})
}

// GetAllTags unnests the tags arrays engine-side.
func (s *RemoteStore) GetAllTags(ctx context.Context) Result[[]string] {
	start := time.Now()
	conn, err := s.ensureReady(ctx)
	if err != nil {
		metrics.ObserveOp(remoteBackend, "getAllTags", start, false)
		return fail[[]string]("get tags: %v", err)
	}
	tags := []string{}
	err = conn.SelectContext(ctx, &tags,
		`SELECT DISTINCT unnest(tags) AS tag FROM cards ORDER BY tag`)
	if err != nil {
		metrics.ObserveOp(remoteBackend, "getAllTags", start, false)
		s.log.Error("get tags failed", err, nil)
		return fail[[]string]("get tags: %v", err)
	}
	metrics.ObserveOp(remoteBackend, "getAllTags", start, true)
	return ok(tags)
}

// ClearAll deletes every row through an always-true predicate; the adapter
// has row-level privileges only, so TRUNCATE is not available to it.
func (s *RemoteStore) ClearAll(ctx context.Context) Status {
	start := time.Now()
	conn, err := s.ensureReady(ctx)
	if err != nil {
		metrics.ObserveOp(remoteBackend, "clearAll", start, false)
		return failStatus("clear all: %v", err)
	}
	if _, err := conn.ExecContext(ctx, `DELETE FROM cards WHERE id <> -1`); err != nil {
		metrics.ObserveOp(remoteBackend, "clearAll", start, false)
		s.log.Error("clear all failed", err, nil)
		return failStatus("clear all: %v", err)
	}
	metrics.ObserveOp(remoteBackend, "clearAll", start, true)
	s.log.Warn("all cards cleared", nil)
	return done()
}

// ExportData returns the full snapshot.
func (s *RemoteStore) ExportData(ctx context.Context) Result[[]Card] {
	start := time.Now()
	conn, err := s.ensureReady(ctx)
	if err != nil {
		metrics.ObserveOp(remoteBackend, "exportData", start, false)
		return fail[[]Card]("export: %v", err)
	}
	var rows []remoteRow
	if err := conn.SelectContext(ctx, &rows, `SELECT * FROM cards`); err != nil {
		metrics.ObserveOp(remoteBackend, "exportData", start, false)
		return fail[[]Card]("export: %v", err)
	}
	cards := make([]Card, 0, len(rows))
	for _, r := range rows {
		cards = append(cards, r.card())
	}
	metrics.ObserveOp(remoteBackend, "exportData", start, true)
	return ok(cards)
}

// ImportData replaces the data set, inserting the supplied records with
// their original ids and timestamps (the identity column accepts explicit
// ids).
func (s *RemoteStore) ImportData(ctx context.Context, cards []Card) Status {
	start := time.Now()
	conn, err := s.ensureReady(ctx)
	if err != nil {
		metrics.ObserveOp(remoteBackend, "importData", start, false)
		return failStatus("import: %v", err)
	}

	if _, err := conn.ExecContext(ctx, `DELETE FROM cards WHERE id <> -1`); err != nil {
		metrics.ObserveOp(remoteBackend, "importData", start, false)
		return failStatus("import: %v", err)
	}

	for _, card := range cards {
		_, err := conn.ExecContext(ctx, `
			INSERT INTO cards (id, title, cover_url, link, content, tags, created_at, updated_at)
			VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), $6, $7, $8)
		`, card.ID, card.Title, card.CoverURL, card.Link, card.Content,
			tagsArray(card.Tags), card.CreatedAt, card.UpdatedAt)
		if err != nil {
			metrics.ObserveOp(remoteBackend, "importData", start, false)
			s.log.Error("import failed", err, map[string]any{"id": card.ID})
			return failStatus("import card %d: %v", card.ID, err)
		}
	}

	metrics.ObserveOp(remoteBackend, "importData", start, true)
	s.log.Info("import finished", map[string]any{"cards": len(cards)})
	return done()
}

// Close releases the connection and clears the initialized flag.
func (s *RemoteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = false
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}
