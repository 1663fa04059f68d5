// Package markers persists body markers and their observation entries in a
// local SQLite database and exposes variant-scoped live queries over them.
package markers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"trackamole/internal/models"
	"trackamole/internal/utils"
)

var (
	ErrNotFound = errors.New("markers: not found")
	ErrInvalid  = errors.New("markers: invalid marker")
)

const schema = `
CREATE TABLE IF NOT EXISTS moles (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	gender     TEXT NOT NULL,
	x          REAL NOT NULL,
	y          REAL NOT NULL,
	z          REAL NOT NULL,
	category   TEXT NOT NULL,
	label      TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS moles_gender ON moles(gender);
CREATE TABLE IF NOT EXISTS entries (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	mole_id INTEGER NOT NULL,
	date    TEXT NOT NULL,
	notes   TEXT NOT NULL DEFAULT '',
	size_mm REAL NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS entries_mole ON entries(mole_id);
`

// Store is the observable marker database. Subscribers registered through
// Changes are notified after every committed write touching their variant.
type Store struct {
	db   *sql.DB
	path string
	log  *utils.Logger

	mu      sync.Mutex
	subs    map[int]subscription
	nextSub int
}

type subscription struct {
	variant models.BodyVariant
	ch      chan struct{}
}

// Open opens (creating if needed) the database at path.
func Open(path string, log *utils.Logger) (*Store, error) {
	if path == "" {
		path = filepath.Join(utils.GetDataDir(), "trackamole.db")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db, path: path, log: log, subs: make(map[int]subscription)}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

// Changes returns a channel that receives a signal whenever markers of
// variant change. Bursts coalesce into one pending signal. Call cancel to
// unsubscribe.
func (s *Store) Changes(variant models.BodyVariant) (<-chan struct{}, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan struct{}, 1)
	s.subs[id] = subscription{variant: variant, ch: ch}
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) notify(variants ...models.BodyVariant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		for _, v := range variants {
			if sub.variant != v {
				continue
			}
			select {
			case sub.ch <- struct{}{}:
			default:
				// a signal is already pending
			}
			break
		}
	}
}

func validate(m models.Marker) error {
	if !m.Variant.Valid() {
		return fmt.Errorf("%w: body variant %q", ErrInvalid, m.Variant)
	}
	if !m.Category.Valid() {
		return fmt.Errorf("%w: category %q", ErrInvalid, m.Category)
	}
	return nil
}

// CreateMarker inserts m and returns it with its assigned ID.
func (s *Store) CreateMarker(ctx context.Context, m models.Marker) (models.Marker, error) {
	if err := validate(m); err != nil {
		return models.Marker{}, err
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO moles(gender,x,y,z,category,label,created_at) VALUES(?,?,?,?,?,?,?)`,
		string(m.Variant), m.Position.X, m.Position.Y, m.Position.Z, string(m.Category), m.Label, formatTime(m.CreatedAt))
	if err != nil {
		return models.Marker{}, fmt.Errorf("insert marker: %w", err)
	}
	if m.ID, err = res.LastInsertId(); err != nil {
		return models.Marker{}, err
	}
	s.notify(m.Variant)
	return m, nil
}

// UpdateMarker overwrites the stored marker with m.ID.
func (s *Store) UpdateMarker(ctx context.Context, m models.Marker) error {
	if err := validate(m); err != nil {
		return err
	}
	prev, err := s.GetMarker(ctx, m.ID)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE moles SET gender=?, x=?, y=?, z=?, category=?, label=? WHERE id=?`,
		string(m.Variant), m.Position.X, m.Position.Y, m.Position.Z, string(m.Category), m.Label, m.ID); err != nil {
		return fmt.Errorf("update marker %d: %w", m.ID, err)
	}
	s.notify(prev.Variant, m.Variant)
	return nil
}

// DeleteMarker removes a marker and its entries.
func (s *Store) DeleteMarker(ctx context.Context, id int64) (retErr error) {
	m, err := s.GetMarker(ctx, id)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE mole_id=?`, id); err != nil {
		return fmt.Errorf("delete entries of %d: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM moles WHERE id=?`, id); err != nil {
		return fmt.Errorf("delete marker %d: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.notify(m.Variant)
	return nil
}

// GetMarker returns the marker with id or ErrNotFound.
func (s *Store) GetMarker(ctx context.Context, id int64) (models.Marker, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,gender,x,y,z,category,label,created_at FROM moles WHERE id=?`, id)
	m, err := scanMarker(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Marker{}, fmt.Errorf("%w: marker %d", ErrNotFound, id)
	}
	return m, err
}

// ListMarkers returns the markers of variant ordered by ID. An empty
// category selects every category.
func (s *Store) ListMarkers(ctx context.Context, variant models.BodyVariant, category models.Category) ([]models.Marker, error) {
	q := `SELECT id,gender,x,y,z,category,label,created_at FROM moles WHERE gender=?`
	args := []any{string(variant)}
	if category != "" {
		q += ` AND category=?`
		args = append(args, string(category))
	}
	q += ` ORDER BY id`
	return s.queryMarkers(ctx, q, args...)
}

func (s *Store) allMarkers(ctx context.Context) ([]models.Marker, error) {
	return s.queryMarkers(ctx, `SELECT id,gender,x,y,z,category,label,created_at FROM moles ORDER BY id`)
}

func (s *Store) queryMarkers(ctx context.Context, q string, args ...any) ([]models.Marker, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("select markers: %w", err)
	}
	defer func() { _ = rows.Close() }()
	out := []models.Marker{}
	for rows.Next() {
		m, err := scanMarker(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMarker(sc scanner) (models.Marker, error) {
	var (
		m                  models.Marker
		variant, cat, when string
	)
	if err := sc.Scan(&m.ID, &variant, &m.Position.X, &m.Position.Y, &m.Position.Z, &cat, &m.Label, &when); err != nil {
		return models.Marker{}, err
	}
	m.Variant = models.BodyVariant(variant)
	m.Category = models.Category(cat)
	t, err := parseTime(when)
	if err != nil {
		return models.Marker{}, fmt.Errorf("marker %d created_at: %w", m.ID, err)
	}
	m.CreatedAt = t
	return m, nil
}

// AddEntry records an observation for an existing marker.
func (s *Store) AddEntry(ctx context.Context, e models.Entry) (models.Entry, error) {
	if _, err := s.GetMarker(ctx, e.MarkerID); err != nil {
		return models.Entry{}, err
	}
	if e.Date.IsZero() {
		e.Date = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO entries(mole_id,date,notes,size_mm) VALUES(?,?,?,?)`,
		e.MarkerID, formatTime(e.Date), e.Notes, e.SizeMM)
	if err != nil {
		return models.Entry{}, fmt.Errorf("insert entry: %w", err)
	}
	if e.ID, err = res.LastInsertId(); err != nil {
		return models.Entry{}, err
	}
	return e, nil
}

// ListEntries returns the entries of one marker, oldest first.
func (s *Store) ListEntries(ctx context.Context, markerID int64) ([]models.Entry, error) {
	return s.queryEntries(ctx, `SELECT id,mole_id,date,notes,size_mm FROM entries WHERE mole_id=? ORDER BY date, id`, markerID)
}

func (s *Store) queryEntries(ctx context.Context, q string, args ...any) ([]models.Entry, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("select entries: %w", err)
	}
	defer func() { _ = rows.Close() }()
	out := []models.Entry{}
	for rows.Next() {
		var (
			e    models.Entry
			when string
		)
		if err := rows.Scan(&e.ID, &e.MarkerID, &when, &e.Notes, &e.SizeMM); err != nil {
			return nil, err
		}
		if e.Date, err = parseTime(when); err != nil {
			return nil, fmt.Errorf("entry %d date: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Snapshot returns every marker and entry, ordered by ID.
func (s *Store) Snapshot(ctx context.Context) ([]models.Marker, []models.Entry, error) {
	ms, err := s.allMarkers(ctx)
	if err != nil {
		return nil, nil, err
	}
	es, err := s.queryEntries(ctx, `SELECT id,mole_id,date,notes,size_mm FROM entries ORDER BY id`)
	if err != nil {
		return nil, nil, err
	}
	return ms, es, nil
}

// Replace clears both tables and bulk-inserts the given rows, keeping their
// IDs, in one transaction. On error nothing changes.
func (s *Store) Replace(ctx context.Context, markers []models.Marker, entries []models.Entry) (retErr error) {
	for _, m := range markers {
		if err := validate(m); err != nil {
			return fmt.Errorf("marker %d: %w", m.ID, err)
		}
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, q := range []string{`DELETE FROM entries`, `DELETE FROM moles`} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("clear: %w", err)
		}
	}
	for _, m := range markers {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO moles(id,gender,x,y,z,category,label,created_at) VALUES(?,?,?,?,?,?,?,?)`,
			m.ID, string(m.Variant), m.Position.X, m.Position.Y, m.Position.Z, string(m.Category), m.Label, formatTime(m.CreatedAt)); err != nil {
			return fmt.Errorf("insert marker %d: %w", m.ID, err)
		}
	}
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO entries(id,mole_id,date,notes,size_mm) VALUES(?,?,?,?,?)`,
			e.ID, e.MarkerID, formatTime(e.Date), e.Notes, e.SizeMM); err != nil {
			return fmt.Errorf("insert entry %d: %w", e.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.log.Infof("replaced store contents: %d markers, %d entries", len(markers), len(entries))
	s.notify(models.Variants...)
	return nil
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) (time.Time, error) { return time.Parse(time.RFC3339Nano, s) }
