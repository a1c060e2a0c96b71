package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/cardbox/cardbox/internal/db"
	"github.com/cardbox/cardbox/internal/logbuf"
	"github.com/cardbox/cardbox/internal/metrics"
)

const localBackend = "local"

// LocalConfig configures the embedded store.
type LocalConfig struct {
	// Path is the SQLite file path, or a full DSN (file:...) for tests.
	Path string
	// Version pins the schema version to open at; 0 means latest. Upgrades
	// are additive, existing data survives version bumps. Versions below the
	// adapter's minimum supported schema are rejected on open.
	Version int64
}

// minLocalSchemaVersion is the oldest schema this adapter can operate on:
// version 2 introduced the card_tags mirror that every write maintains
// unconditionally.
const minLocalSchemaVersion = 2

// LocalStore implements CardStorage against an embedded SQLite database.
//
// The connection is opened lazily on first use and cached for the store's
// lifetime; any operation arriving before that transparently establishes it.
// Timestamps are stamped client-side by this adapter (unlike RemoteStore,
// where the server owns updated_at).
//
// Reads load the full card set and filter/sort/paginate in-process rather
// than pushing predicates into the engine.
type LocalStore struct {
	cfg LocalConfig
	log *logbuf.Scoped

	mu   sync.Mutex
	conn *sqlx.DB
}

// NewLocalStore creates the adapter without touching the database.
func NewLocalStore(cfg LocalConfig, log *logbuf.Log) *LocalStore {
	if cfg.Path == "" {
		cfg.Path = "cardbox.db"
	}
	return &LocalStore{cfg: cfg, log: log.For("LocalStore")}
}

// ensureReady opens and migrates the database on first use.
func (s *LocalStore) ensureReady(ctx context.Context) (*sqlx.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return s.conn, nil
	}

	if s.cfg.Version > 0 && s.cfg.Version < minLocalSchemaVersion {
		return nil, fmt.Errorf("schema version %d is below the minimum supported %d",
			s.cfg.Version, minLocalSchemaVersion)
	}

	conn, err := db.Open("sqlite3", s.cfg.Path)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(conn, s.cfg.Version); err != nil {
		_ = conn.Close()
		return nil, err
	}

	s.conn = conn
	s.log.Info("embedded store ready", map[string]any{
		"path":    s.cfg.Path,
		"version": s.cfg.Version,
	})
	return conn, nil
}

// Initialize opens the connection and applies the schema. Idempotent; a
// failed attempt is retried transparently by the next operation.
func (s *LocalStore) Initialize(ctx context.Context) Status {
	start := time.Now()
	if _, err := s.ensureReady(ctx); err != nil {
		metrics.ObserveOp(localBackend, "initialize", start, false)
		s.log.Error("initialize failed", err, nil)
		return failStatus("initialize local store: %v", err)
	}
	metrics.ObserveOp(localBackend, "initialize", start, true)
	return done()
}

// localRow is the engine-native row shape.
type localRow struct {
	ID        int64          `db:"id"`
	Title     string         `db:"title"`
	CoverURL  sql.NullString `db:"cover_url"`
	Link      sql.NullString `db:"link"`
	Content   sql.NullString `db:"content"`
	Tags      string         `db:"tags"`
	CreatedAt string         `db:"created_at"`
	UpdatedAt string         `db:"updated_at"`
}

func localRowFromCard(c Card) (localRow, error) {
	tags := c.Tags
	if tags == nil {
		tags = []string{}
	}
	encoded, err := json.Marshal(tags)
	if err != nil {
		return localRow{}, fmt.Errorf("encode tags: %w", err)
	}
	return localRow{
		ID:        c.ID,
		Title:     c.Title,
		CoverURL:  nullable(c.CoverURL),
		Link:      nullable(c.Link),
		Content:   nullable(c.Content),
		Tags:      string(encoded),
		CreatedAt: c.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt: c.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}, nil
}

func (r localRow) card() (Card, error) {
	var tags []string
	if err := json.Unmarshal([]byte(r.Tags), &tags); err != nil {
		return Card{}, fmt.Errorf("decode tags for card %d: %w", r.ID, err)
	}
	created, err := time.Parse(time.RFC3339Nano, r.CreatedAt)
	if err != nil {
		return Card{}, fmt.Errorf("parse created_at for card %d: %w", r.ID, err)
	}
	updated, err := time.Parse(time.RFC3339Nano, r.UpdatedAt)
	if err != nil {
		return Card{}, fmt.Errorf("parse updated_at for card %d: %w", r.ID, err)
	}
	return Card{
		ID:        r.ID,
		Title:     r.Title,
		CoverURL:  r.CoverURL.String,
		Link:      r.Link.String,
		Content:   r.Content.String,
		Tags:      tags,
		CreatedAt: created,
		UpdatedAt: updated,
	}, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (s *LocalStore) loadAll(ctx context.Context, conn *sqlx.DB) ([]Card, error) {
	var rows []localRow
	if err := conn.SelectContext(ctx, &rows, `SELECT * FROM cards`); err != nil {
		return nil, err
	}
	cards := make([]Card, 0, len(rows))
	for _, r := range rows {
		c, err := r.card()
		if err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	metrics.CardsTotal.Set(float64(len(cards)))
	return cards, nil
}

// GetCards loads the full set and applies filters, sort, and pagination
// in-process.
func (s *LocalStore) GetCards(ctx context.Context, opts *QueryOptions) Result[[]Card] {
	start := time.Now()
	conn, err := s.ensureReady(ctx)
	if err != nil {
		metrics.ObserveOp(localBackend, "getCards", start, false)
		return fail[[]Card]("get cards: %v", err)
	}
	cards, err := s.loadAll(ctx, conn)
	if err != nil {
		metrics.ObserveOp(localBackend, "getCards", start, false)
		s.log.Error("get cards failed", err, nil)
		return fail[[]Card]("get cards: %v", err)
	}
	metrics.ObserveOp(localBackend, "getCards", start, true)
	return ok(applyQuery(cards, opts))
}

// GetCard returns nil data with success when the id does not exist.
func (s *LocalStore) GetCard(ctx context.Context, id int64) Result[*Card] {
	start := time.Now()
	conn, err := s.ensureReady(ctx)
	if err != nil {
		metrics.ObserveOp(localBackend, "getCard", start, false)
		return fail[*Card]("get card %d: %v", id, err)
	}
	var row localRow
	err = conn.GetContext(ctx, &row, `SELECT * FROM cards WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		metrics.ObserveOp(localBackend, "getCard", start, true)
		return ok[*Card](nil)
	}
	if err != nil {
		metrics.ObserveOp(localBackend, "getCard", start, false)
		s.log.Error("get card failed", err, map[string]any{"id": id})
		return fail[*Card]("get card %d: %v", id, err)
	}
	card, err := row.card()
	if err != nil {
		metrics.ObserveOp(localBackend, "getCard", start, false)
		return fail[*Card]("get card %d: %v", id, err)
	}
	metrics.ObserveOp(localBackend, "getCard", start, true)
	return ok(&card)
}

// CreateCard assigns the id and both timestamps client-side.
func (s *LocalStore) CreateCard(ctx context.Context, input CardInput) Result[*Card] {
	start := time.Now()
	if err := input.Validate(); err != nil {
		metrics.ObserveOp(localBackend, "createCard", start, false)
		return fail[*Card]("create card: %v", err)
	}
	conn, err := s.ensureReady(ctx)
	if err != nil {
		metrics.ObserveOp(localBackend, "createCard", start, false)
		return fail[*Card]("create card: %v", err)
	}

	now := time.Now().UTC()
	card := newCard(input, newLocalID(now), now)

	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		metrics.ObserveOp(localBackend, "createCard", start, false)
		return fail[*Card]("create card: %v", err)
	}
	defer tx.Rollback()

	if err := insertCardTx(ctx, tx, card); err != nil {
		metrics.ObserveOp(localBackend, "createCard", start, false)
		s.log.Error("create card failed", err, map[string]any{"title": card.Title})
		return fail[*Card]("create card: %v", err)
	}
	if err := tx.Commit(); err != nil {
		metrics.ObserveOp(localBackend, "createCard", start, false)
		return fail[*Card]("create card: %v", err)
	}

	metrics.ObserveOp(localBackend, "createCard", start, true)
	s.log.Debug("card created", map[string]any{"id": card.ID})
	return ok(&card)
}

// insertCardTx writes the cards row and its card_tags mirror.
func insertCardTx(ctx context.Context, tx *sqlx.Tx, card Card) error {
	row, err := localRowFromCard(card)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO cards (id, title, cover_url, link, content, tags, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, row.ID, row.Title, row.CoverURL, row.Link, row.Content, row.Tags, row.CreatedAt, row.UpdatedAt)
	if err != nil {
		return err
	}
	for _, tag := range card.Tags {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO card_tags (card_id, tag) VALUES (?, ?)`, card.ID, tag); err != nil {
			return err
		}
	}
	return nil
}

// UpdateCard merges the patch onto the stored card. The id is immutable and
// updatedAt always advances, strictly, even within one wall-clock tick.
func (s *LocalStore) UpdateCard(ctx context.Context, id int64, patch CardPatch) Result[*Card] {
	start := time.Now()
	if err := patch.Validate(); err != nil {
		metrics.ObserveOp(localBackend, "updateCard", start, false)
		return fail[*Card]("update card %d: %v", id, err)
	}
	conn, err := s.ensureReady(ctx)
	if err != nil {
		metrics.ObserveOp(localBackend, "updateCard", start, false)
		return fail[*Card]("update card %d: %v", id, err)
	}

	var row localRow
	err = conn.GetContext(ctx, &row, `SELECT * FROM cards WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		metrics.ObserveOp(localBackend, "updateCard", start, false)
		return fail[*Card]("update card %d: %v", id, ErrNotFound)
	}
	if err != nil {
		metrics.ObserveOp(localBackend, "updateCard", start, false)
		return fail[*Card]("update card %d: %v", id, err)
	}
	card, err := row.card()
	if err != nil {
		metrics.ObserveOp(localBackend, "updateCard", start, false)
		return fail[*Card]("update card %d: %v", id, err)
	}

	patch.apply(&card)
	now := time.Now().UTC()
	if !now.After(card.UpdatedAt) {
		now = card.UpdatedAt.Add(time.Millisecond)
	}
	card.UpdatedAt = now

	updated, err := localRowFromCard(card)
	if err != nil {
		metrics.ObserveOp(localBackend, "updateCard", start, false)
		return fail[*Card]("update card %d: %v", id, err)
	}

	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		metrics.ObserveOp(localBackend, "updateCard", start, false)
		return fail[*Card]("update card %d: %v", id, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE cards SET title = ?, cover_url = ?, link = ?, content = ?, tags = ?, updated_at = ?
		WHERE id = ?
	`, updated.Title, updated.CoverURL, updated.Link, updated.Content, updated.Tags, updated.UpdatedAt, id)
	if err == nil {
		_, err = tx.ExecContext(ctx, `DELETE FROM card_tags WHERE card_id = ?`, id)
	}
	if err == nil {
		for _, tag := range card.Tags {
			if _, err = tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO card_tags (card_id, tag) VALUES (?, ?)`, id, tag); err != nil {
				break
			}
		}
	}
	if err == nil {
		err = tx.Commit()
	}
	if err != nil {
		metrics.ObserveOp(localBackend, "updateCard", start, false)
		s.log.Error("update card failed", err, map[string]any{"id": id})
		return fail[*Card]("update card %d: %v", id, err)
	}

	metrics.ObserveOp(localBackend, "updateCard", start, true)
	return ok(&card)
}

// DeleteCard is idempotent in effect; a missing id is not an error.
func (s *LocalStore) DeleteCard(ctx context.Context, id int64) Status {
	start := time.Now()
	conn, err := s.ensureReady(ctx)
	if err != nil {
		metrics.ObserveOp(localBackend, "deleteCard", start, false)
		return failStatus("delete card %d: %v", id, err)
	}
	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		metrics.ObserveOp(localBackend, "deleteCard", start, false)
		return failStatus("delete card %d: %v", id, err)
	}
	defer tx.Rollback()

	if _, err = tx.ExecContext(ctx, `DELETE FROM card_tags WHERE card_id = ?`, id); err == nil {
		_, err = tx.ExecContext(ctx, `DELETE FROM cards WHERE id = ?`, id)
	}
	if err == nil {
		err = tx.Commit()
	}
	if err != nil {
		metrics.ObserveOp(localBackend, "deleteCard", start, false)
		s.log.Error("delete card failed", err, map[string]any{"id": id})
		return failStatus("delete card %d: %v", id, err)
	}
	metrics.ObserveOp(localBackend, "deleteCard", start, true)
	return done()
}

// BulkCreateCards writes each item inside one transaction scope but tracks
// per-item failures; valid items commit even when others fail.
func (s *LocalStore) BulkCreateCards(ctx context.Context, inputs []CardInput) Result[[]Card] {
	start := time.Now()
	conn, err := s.ensureReady(ctx)
	if err != nil {
		metrics.ObserveOp(localBackend, "bulkCreateCards", start, false)
		return fail[[]Card]("bulk create: %v", err)
	}

	batch := uuid.NewString()
	created := make([]Card, 0, len(inputs))
	var failures []string

	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		metrics.ObserveOp(localBackend, "bulkCreateCards", start, false)
		return fail[[]Card]("bulk create: %v", err)
	}
	defer tx.Rollback()

	for i, input := range inputs {
		if err := input.Validate(); err != nil {
			failures = append(failures, fmt.Sprintf("item %d: %v", i, err))
			continue
		}
		now := time.Now().UTC()
		card := newCard(input, newLocalID(now), now)
		if err := insertCardTx(ctx, tx, card); err != nil {
			failures = append(failures, fmt.Sprintf("item %d: %v", i, err))
			continue
		}
		created = append(created, card)
	}

	if err := tx.Commit(); err != nil {
		metrics.ObserveOp(localBackend, "bulkCreateCards", start, false)
		return fail[[]Card]("bulk create: %v", err)
	}

	s.log.Info("bulk create finished", map[string]any{
		"batch":   batch,
		"created": len(created),
		"failed":  len(failures),
	})
	if len(failures) > 0 {
		metrics.ObserveOp(localBackend, "bulkCreateCards", start, false)
		return failWith(created, "bulk create: %d of %d items failed: %s",
			len(failures), len(inputs), strings.Join(failures, "; "))
	}
	metrics.ObserveOp(localBackend, "bulkCreateCards", start, true)
	return ok(created)
}

// BulkDeleteCards deletes each id with the same per-item accounting as
// BulkCreateCards.
func (s *LocalStore) BulkDeleteCards(ctx context.Context, ids []int64) Status {
	start := time.Now()
	conn, err := s.ensureReady(ctx)
	if err != nil {
		metrics.ObserveOp(localBackend, "bulkDeleteCards", start, false)
		return failStatus("bulk delete: %v", err)
	}

	batch := uuid.NewString()
	var failures []string

	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		metrics.ObserveOp(localBackend, "bulkDeleteCards", start, false)
		return failStatus("bulk delete: %v", err)
	}
	defer tx.Rollback()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM card_tags WHERE card_id = ?`, id); err != nil {
			failures = append(failures, fmt.Sprintf("id %d: %v", id, err))
			continue
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM cards WHERE id = ?`, id); err != nil {
			failures = append(failures, fmt.Sprintf("id %d: %v", id, err))
		}
	}

	if err := tx.Commit(); err != nil {
		metrics.ObserveOp(localBackend, "bulkDeleteCards", start, false)
		return failStatus("bulk delete: %v", err)
	}

	s.log.Info("bulk delete finished", map[string]any{
		"batch":  batch,
		"ids":    len(ids),
		"failed": len(failures),
	})
	if len(failures) > 0 {
		metrics.ObserveOp(localBackend, "bulkDeleteCards", start, false)
		return failStatus("bulk delete: %d of %d items failed: %s",
			len(failures), len(ids), strings.Join(failures, "; "))
	}
	metrics.ObserveOp(localBackend, "bulkDeleteCards", start, true)
	return done()
}

// SearchCards is sugar for a search-term query.
func (s *LocalStore) SearchCards(ctx context.Context, query string) Result[[]Card] {
	return s.GetCards(ctx, &QueryOptions{Filters: &Filters{SearchTerm: query}})
}

// GetCardsByTag is sugar for a single-tag query.
func (s *LocalStore) GetCardsByTag(ctx context.Context, tag string) Result[[]Card] {
	return s.GetCards(ctx, &QueryOptions{Filters: &Filters{Tags: []string{tag}}})
}

// GetAllTags reads the card_tags mirror, which is already distinct per card.
func (s *LocalStore) GetAllTags(ctx context.Context) Result[[]string] {
	start := time.Now()
	conn, err := s.ensureReady(ctx)
	if err != nil {
		metrics.ObserveOp(localBackend, "getAllTags", start, false)
		return fail[[]string]("get tags: %v", err)
	}
	tags := []string{}
	if err := conn.SelectContext(ctx, &tags, `SELECT DISTINCT tag FROM card_tags ORDER BY tag`); err != nil {
		metrics.ObserveOp(localBackend, "getAllTags", start, false)
		s.log.Error("get tags failed", err, nil)
		return fail[[]string]("get tags: %v", err)
	}
	metrics.ObserveOp(localBackend, "getAllTags", start, true)
	return ok(tags)
}

// ClearAll removes every card.
func (s *LocalStore) ClearAll(ctx context.Context) Status {
	start := time.Now()
	conn, err := s.ensureReady(ctx)
	if err != nil {
		metrics.ObserveOp(localBackend, "clearAll", start, false)
		return failStatus("clear all: %v", err)
	}
	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		metrics.ObserveOp(localBackend, "clearAll", start, false)
		return failStatus("clear all: %v", err)
	}
	defer tx.Rollback()

	if _, err = tx.ExecContext(ctx, `DELETE FROM card_tags`); err == nil {
		_, err = tx.ExecContext(ctx, `DELETE FROM cards`)
	}
	if err == nil {
		err = tx.Commit()
	}
	if err != nil {
		metrics.ObserveOp(localBackend, "clearAll", start, false)
		s.log.Error("clear all failed", err, nil)
		return failStatus("clear all: %v", err)
	}
	metrics.ObserveOp(localBackend, "clearAll", start, true)
	s.log.Warn("all cards cleared", nil)
	return done()
}

// ExportData returns the full unfiltered snapshot.
func (s *LocalStore) ExportData(ctx context.Context) Result[[]Card] {
	start := time.Now()
	conn, err := s.ensureReady(ctx)
	if err != nil {
		metrics.ObserveOp(localBackend, "exportData", start, false)
		return fail[[]Card]("export: %v", err)
	}
	cards, err := s.loadAll(ctx, conn)
	if err != nil {
		metrics.ObserveOp(localBackend, "exportData", start, false)
		return fail[[]Card]("export: %v", err)
	}
	metrics.ObserveOp(localBackend, "exportData", start, true)
	return ok(cards)
}

// ImportData replaces the whole data set, keeping the supplied ids and
// timestamps.
func (s *LocalStore) ImportData(ctx context.Context, cards []Card) Status {
	start := time.Now()
	conn, err := s.ensureReady(ctx)
	if err != nil {
		metrics.ObserveOp(localBackend, "importData", start, false)
		return failStatus("import: %v", err)
	}

	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		metrics.ObserveOp(localBackend, "importData", start, false)
		return failStatus("import: %v", err)
	}
	defer tx.Rollback()

	if _, err = tx.ExecContext(ctx, `DELETE FROM card_tags`); err == nil {
		_, err = tx.ExecContext(ctx, `DELETE FROM cards`)
	}
	if err != nil {
		metrics.ObserveOp(localBackend, "importData", start, false)
		return failStatus("import: %v", err)
	}

	for _, card := range cards {
		if err := insertCardTx(ctx, tx, card); err != nil {
			metrics.ObserveOp(localBackend, "importData", start, false)
			s.log.Error("import failed", err, map[string]any{"id": card.ID})
			return failStatus("import card %d: %v", card.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		metrics.ObserveOp(localBackend, "importData", start, false)
		return failStatus("import: %v", err)
	}
	metrics.ObserveOp(localBackend, "importData", start, true)
	s.log.Info("import finished", map[string]any{"cards": len(cards)})
	return done()
}

// Close releases the cached connection.
func (s *LocalStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}
