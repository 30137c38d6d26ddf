package librarydb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	_ "modernc.org/sqlite"
)

// Store wraps one instance's library.db: the media catalog
// (TypedBaseItems) and per-user playback state (UserDatas).
type Store struct {
	db   *sql.DB
	path string
}

// ErrAmbiguousPath indicates the catalog holds more than one entry with an
// identical path. The destination store's own uniqueness expectations make
// this unreachable in a healthy database, so it is surfaced as an error
// rather than silently picking either row.
var ErrAmbiguousPath = errors.New("multiple catalog entries share one path")

// Open connects to a library database for reading and writing. The file
// must already exist: this tool never creates server databases.
func Open(path string) (*Store, error) {
	return open(path, false)
}

// OpenReadOnly connects to a library database without write capability.
// Source databases are always opened this way.
func OpenReadOnly(path string) (*Store, error) {
	return open(path, true)
}

func open(path string, readOnly bool) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("library database unavailable: %w", err)
	}

	dsn := path
	if readOnly {
		dsn = "file:" + path + "?mode=ro"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open library db: %w", err)
	}

	// busy_timeout only: the journal mode belongs to the server that owns
	// this database and must not be rewritten by a migration tool.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragma: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("library database unavailable: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path the store was opened with.
func (s *Store) Path() string {
	return s.path
}

// CatalogItem is one media entry the catalog knows a file path for.
type CatalogItem struct {
	Name        string
	Path        string
	Fingerprint string
}

// CatalogItems returns every catalog entry with a resolvable file path.
// Entries without a path are not migratable items and are excluded here,
// matching the extraction join's own filter.
func (s *Store) CatalogItems(ctx context.Context) ([]CatalogItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT Name, Path, PresentationUniqueKey
         FROM TypedBaseItems
         WHERE Path IS NOT NULL AND Path <> ''`)
	if err != nil {
		return nil, fmt.Errorf("query catalog items: %w", err)
	}
	defer rows.Close()

	var items []CatalogItem
	for rows.Next() {
		var (
			name        sql.NullString
			path        string
			fingerprint sql.NullString
		)
		if err := rows.Scan(&name, &path, &fingerprint); err != nil {
			return nil, fmt.Errorf("scan catalog item: %w", err)
		}
		items = append(items, CatalogItem{
			Name:        name.String,
			Path:        path,
			Fingerprint: fingerprint.String,
		})
	}
	return items, rows.Err()
}

// WatchState is one per-user playback state row as recorded by the source.
type WatchState struct {
	Key                   string
	PlaybackPositionTicks int64
	LastPlayedDate        string
	UserID                int64
}

// WatchStates returns every per-user playback state row.
func (s *Store) WatchStates(ctx context.Context) ([]WatchState, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT Key, PlaybackPositionTicks, LastPlayedDate, UserId FROM UserDatas`)
	if err != nil {
		return nil, fmt.Errorf("query watch states: %w", err)
	}
	defer rows.Close()

	var states []WatchState
	for rows.Next() {
		var (
			key        string
			position   sql.NullInt64
			lastPlayed sql.NullString
			userID     int64
		)
		if err := rows.Scan(&key, &position, &lastPlayed, &userID); err != nil {
			return nil, fmt.Errorf("scan watch state: %w", err)
		}
		states = append(states, WatchState{
			Key:                   key,
			PlaybackPositionTicks: position.Int64,
			LastPlayedDate:        lastPlayed.String,
			UserID:                userID,
		})
	}
	return states, rows.Err()
}

// FingerprintByPath looks up the catalog entry whose recorded path equals
// the given path byte for byte. No fuzzy or case-insensitive matching: the
// translated path is the only identity bridge between the two catalogs.
// Returns found=false for zero matches and ErrAmbiguousPath for more than
// one.
func (s *Store) FingerprintByPath(ctx context.Context, path string) (fingerprint string, found bool, err error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT PresentationUniqueKey FROM TypedBaseItems WHERE Path = ? LIMIT 2`, path)
	if err != nil {
		return "", false, fmt.Errorf("query catalog by path: %w", err)
	}
	defer rows.Close()

	var fingerprints []string
	for rows.Next() {
		var fp sql.NullString
		if err := rows.Scan(&fp); err != nil {
			return "", false, fmt.Errorf("scan catalog fingerprint: %w", err)
		}
		fingerprints = append(fingerprints, fp.String)
	}
	if err := rows.Err(); err != nil {
		return "", false, err
	}

	switch len(fingerprints) {
	case 0:
		return "", false, nil
	case 1:
		return fingerprints[0], true, nil
	default:
		return "", false, fmt.Errorf("%w: %q", ErrAmbiguousPath, path)
	}
}

// WatchRow is the destination rendering of one migrated playback state.
// Key carries the dashed fingerprint formatting the state table expects.
type WatchRow struct {
	Key                   string
	UserID                string
	Played                bool
	PlayCount             int
	IsFavorite            bool
	PlaybackPositionTicks int64
	LastPlayedDate        string
	AudioStreamIndex      int
	SubtitleStreamIndex   int
}

// ReplaceWatchStates upserts every row in one transaction. The write is
// all or nothing: any failure rolls the whole batch back and leaves the
// destination exactly as it was. INSERT OR REPLACE keyed on (Key, UserId)
// makes reruns idempotent.
func (s *Store) ReplaceWatchStates(ctx context.Context, watchRows []WatchRow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin watch state tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO UserDatas
            (Key, UserId, Played, PlayCount, IsFavorite,
             PlaybackPositionTicks, LastPlayedDate, AudioStreamIndex, SubtitleStreamIndex)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare watch state upsert: %w", err)
	}
	defer stmt.Close()

	for _, row := range watchRows {
		if _, err := stmt.ExecContext(ctx,
			row.Key,
			row.UserID,
			boolToInt(row.Played),
			row.PlayCount,
			boolToInt(row.IsFavorite),
			row.PlaybackPositionTicks,
			nullableString(row.LastPlayedDate),
			row.AudioStreamIndex,
			row.SubtitleStreamIndex,
		); err != nil {
			return fmt.Errorf("upsert watch state for key %s: %w", row.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit watch states: %w", err)
	}
	return nil
}

// CountWatchStates returns the total number of playback state rows.
func (s *Store) CountWatchStates(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM UserDatas`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count watch states: %w", err)
	}
	return count, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
