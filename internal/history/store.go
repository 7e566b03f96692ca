package history

import (
	"bytes"
	"fmt"
	"image/png"
	"sync"
	"time"

	"github.com/banshee-data/mushmap/internal/mapimg"
	"github.com/banshee-data/mushmap/internal/monitoring"
)

// Store maintains the fixed-capacity, insertion-ordered window of the most
// recent raw maps. Appends trim the window in the same transaction, so a
// reader never observes more than the bound or a half-updated window.
type Store struct {
	mu     sync.RWMutex
	db     *DB
	window int
}

// NewStore creates a Store over db keeping at most window maps.
func NewStore(db *DB, window int) (*Store, error) {
	if window < 1 {
		return nil, fmt.Errorf("window must be at least 1, got %d", window)
	}
	return &Store{db: db, window: window}, nil
}

// WindowSize returns the configured window bound.
func (s *Store) WindowSize() int {
	return s.window
}

// Append inserts m at the newest end of the window and evicts anything
// beyond the bound, atomically.
func (s *Store) Append(m *mapimg.RawMap) error {
	blob, err := encodeMap(m)
	if err != nil {
		return fmt.Errorf("failed to encode raw map: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin append transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO raw_maps (captured_at, width, height, png) VALUES (?, ?, ?, ?)`,
		m.CapturedAt.UTC().UnixNano(), m.Width, m.Height, blob,
	); err != nil {
		return fmt.Errorf("failed to insert raw map: %w", err)
	}

	if _, err := tx.Exec(
		`DELETE FROM raw_maps WHERE id NOT IN (
			SELECT id FROM raw_maps ORDER BY captured_at DESC, id DESC LIMIT ?
		)`, s.window,
	); err != nil {
		return fmt.Errorf("failed to trim window: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit append: %w", err)
	}

	monitoring.Logf("[HistoryStore] Appended raw map captured_at=%s size=%dx%d",
		m.CapturedAt.UTC().Format(time.RFC3339), m.Width, m.Height)
	return nil
}

// Window returns the stored maps ordered oldest to newest, length 0..N.
func (s *Store) Window() ([]*mapimg.RawMap, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT captured_at, width, height, png FROM raw_maps
		 ORDER BY captured_at ASC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query window: %w", err)
	}
	defer rows.Close()

	var maps []*mapimg.RawMap
	for rows.Next() {
		m, err := scanMap(rows)
		if err != nil {
			return nil, err
		}
		maps = append(maps, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read window rows: %w", err)
	}
	return maps, nil
}

// Newest returns the most recent map, or nil if the window is empty.
func (s *Store) Newest() (*mapimg.RawMap, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT captured_at, width, height, png FROM raw_maps
		 ORDER BY captured_at DESC, id DESC LIMIT 1`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query newest map: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanMap(rows)
}

// Len returns the current window length.
func (s *Store) Len() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM raw_maps`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count window: %w", err)
	}
	return n, nil
}

// rowScanner matches both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanMap(r rowScanner) (*mapimg.RawMap, error) {
	var capturedNanos int64
	var width, height int
	var blob []byte
	if err := r.Scan(&capturedNanos, &width, &height, &blob); err != nil {
		return nil, fmt.Errorf("failed to scan raw map row: %w", err)
	}
	return decodeMap(capturedNanos, width, height, blob)
}

// encodeMap serializes the raw map's pixel grid as a PNG blob. PNG is
// lossless, so the stored grid round-trips bit-identically.
func encodeMap(m *mapimg.RawMap) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, m.Image()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeMap(capturedNanos int64, width, height int, blob []byte) (*mapimg.RawMap, error) {
	img, err := png.Decode(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("failed to decode stored map: %w", err)
	}
	b := img.Bounds()
	if b.Dx() != width || b.Dy() != height {
		return nil, fmt.Errorf("stored map is %dx%d, row says %dx%d", b.Dx(), b.Dy(), width, height)
	}
	return mapimg.NewRawMap(img, time.Unix(0, capturedNanos).UTC()), nil
}
