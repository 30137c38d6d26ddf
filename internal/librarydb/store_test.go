package librarydb

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"jellybridge/internal/testsupport"
)

func newLibraryDB(t *testing.T, statements ...string) string {
	t.Helper()
	return testsupport.NewLibraryDB(t, statements...)
}

func TestOpenMissingDatabase(t *testing.T) {
	_, err := OpenReadOnly(filepath.Join(t.TempDir(), "absent.db"))
	if err == nil {
		t.Fatal("expected error for missing database file")
	}
}

func TestCatalogItemsExcludesPathlessEntries(t *testing.T) {
	path := newLibraryDB(t,
		`INSERT INTO TypedBaseItems (Name, Path, PresentationUniqueKey)
         VALUES ('The Matrix', '/media/movies/matrix.mkv', 'abc123'),
                ('Movies Folder', NULL, 'folder1'),
                ('Empty Path', '', 'folder2')`,
	)

	store, err := OpenReadOnly(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	items, err := store.CatalogItems(context.Background())
	if err != nil {
		t.Fatalf("catalog items: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].Name != "The Matrix" || items[0].Fingerprint != "abc123" {
		t.Fatalf("unexpected item: %+v", items[0])
	}
}

func TestWatchStatesHandlesNullColumns(t *testing.T) {
	path := newLibraryDB(t,
		`INSERT INTO UserDatas (Key, UserId, Played, PlaybackPositionTicks, LastPlayedDate)
         VALUES ('key1', 7, 1, NULL, NULL)`,
	)

	store, err := OpenReadOnly(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	states, err := store.WatchStates(context.Background())
	if err != nil {
		t.Fatalf("watch states: %v", err)
	}
	if len(states) != 1 {
		t.Fatalf("expected 1 state, got %d", len(states))
	}
	if states[0].PlaybackPositionTicks != 0 || states[0].LastPlayedDate != "" {
		t.Fatalf("null columns not zeroed: %+v", states[0])
	}
	if states[0].UserID != 7 {
		t.Fatalf("unexpected user id: %d", states[0].UserID)
	}
}

func TestFingerprintByPath(t *testing.T) {
	path := newLibraryDB(t,
		`INSERT INTO TypedBaseItems (Name, Path, PresentationUniqueKey)
         VALUES ('One', '/media/one.mkv', 'fp-one'),
                ('Dup A', '/media/dup.mkv', 'fp-a'),
                ('Dup B', '/media/dup.mkv', 'fp-b')`,
	)

	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	fp, found, err := store.FingerprintByPath(ctx, "/media/one.mkv")
	if err != nil || !found || fp != "fp-one" {
		t.Fatalf("unique lookup: fp=%q found=%v err=%v", fp, found, err)
	}

	_, found, err = store.FingerprintByPath(ctx, "/media/missing.mkv")
	if err != nil || found {
		t.Fatalf("missing lookup: found=%v err=%v", found, err)
	}

	// Path equality is exact: a case-flipped path must not match.
	_, found, err = store.FingerprintByPath(ctx, "/media/ONE.mkv")
	if err != nil || found {
		t.Fatalf("case-flipped lookup: found=%v err=%v", found, err)
	}

	_, _, err = store.FingerprintByPath(ctx, "/media/dup.mkv")
	if !errors.Is(err, ErrAmbiguousPath) {
		t.Fatalf("expected ErrAmbiguousPath, got %v", err)
	}
}

func TestReplaceWatchStatesIsIdempotent(t *testing.T) {
	path := newLibraryDB(t)

	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	batch := []WatchRow{
		{
			Key:                   "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee",
			UserID:                "user-guid-1",
			Played:                true,
			PlayCount:             1,
			PlaybackPositionTicks: 1234,
			LastPlayedDate:        "2023-01-02 03:04:05",
			AudioStreamIndex:      -1,
			SubtitleStreamIndex:   -1,
		},
		{
			Key:                 "11111111-2222-3333-4444-555555555555",
			UserID:              "user-guid-1",
			Played:              true,
			PlayCount:           1,
			AudioStreamIndex:    -1,
			SubtitleStreamIndex: -1,
		},
	}

	if err := store.ReplaceWatchStates(ctx, batch); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := store.ReplaceWatchStates(ctx, batch); err != nil {
		t.Fatalf("second write: %v", err)
	}

	count, err := store.CountWatchStates(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 rows after rerun, got %d", count)
	}
}

func TestReplaceWatchStatesRollsBackWholeBatch(t *testing.T) {
	// A trigger stands in for any mid-batch write failure.
	path := newLibraryDB(t,
		`INSERT INTO UserDatas
            (Key, UserId, Played, PlayCount, IsFavorite, PlaybackPositionTicks, AudioStreamIndex, SubtitleStreamIndex)
         VALUES ('aaaaaaaa-0000-0000-0000-000000000000', 7, 1, 1, 0, 0, -1, -1)`,
		`CREATE TRIGGER reject_marked_key BEFORE INSERT ON UserDatas
         WHEN NEW.Key = 'rejected-key' BEGIN
             SELECT RAISE(ABORT, 'rejected');
         END`,
	)

	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	batch := []WatchRow{
		{
			Key:                 "bbbbbbbb-0000-0000-0000-000000000000",
			UserID:              "user-guid-1",
			Played:              true,
			PlayCount:           1,
			AudioStreamIndex:    -1,
			SubtitleStreamIndex: -1,
		},
		{
			Key:                 "rejected-key",
			UserID:              "user-guid-1",
			Played:              true,
			PlayCount:           1,
			AudioStreamIndex:    -1,
			SubtitleStreamIndex: -1,
		},
	}

	if err := store.ReplaceWatchStates(ctx, batch); err == nil {
		t.Fatal("expected the second row's failure to fail the batch")
	}

	// Nothing from the batch may survive, and the pre-existing row must.
	count, err := store.CountWatchStates(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("failed batch must leave the table as it was, got %d rows", count)
	}
	states, err := store.WatchStates(ctx)
	if err != nil {
		t.Fatalf("watch states: %v", err)
	}
	if states[0].Key != "aaaaaaaa-0000-0000-0000-000000000000" {
		t.Fatalf("pre-existing row lost: %+v", states[0])
	}
}
