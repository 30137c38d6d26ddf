package testsupport

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

// LibrarySchema mirrors the library.db tables the migration touches.
const LibrarySchema = `
CREATE TABLE TypedBaseItems (
    Name TEXT,
    Path TEXT,
    PresentationUniqueKey TEXT
);
CREATE TABLE UserDatas (
    Key TEXT NOT NULL,
    UserId TEXT NOT NULL,
    Played INTEGER,
    PlayCount INTEGER,
    IsFavorite INTEGER,
    PlaybackPositionTicks INTEGER,
    LastPlayedDate TEXT,
    AudioStreamIndex INTEGER,
    SubtitleStreamIndex INTEGER,
    PRIMARY KEY (Key, UserId)
);
`

// ServerSchema mirrors the jellyfin.db tables the migration touches.
const ServerSchema = `
CREATE TABLE Users (
    InternalId INTEGER PRIMARY KEY,
    Id TEXT NOT NULL,
    Username TEXT NOT NULL,
    Password TEXT
);
CREATE TABLE Devices (
    AccessToken TEXT NOT NULL,
    AppName TEXT,
    AppVersion TEXT,
    DeviceName TEXT,
    DeviceId TEXT NOT NULL,
    IsActive INTEGER,
    DateCreated TEXT,
    DateModified TEXT,
    DateLastActivity TEXT,
    UserId TEXT NOT NULL
);
`

// NewLibraryDB creates a library.db fixture and applies the seed
// statements. Returns the database file path.
func NewLibraryDB(t testing.TB, statements ...string) string {
	t.Helper()
	return newFixture(t, "library.db", LibrarySchema, statements)
}

// NewServerDB creates a jellyfin.db fixture and applies the seed
// statements. Returns the database file path.
func NewServerDB(t testing.TB, statements ...string) string {
	t.Helper()
	return newFixture(t, "jellyfin.db", ServerSchema, statements)
}

func newFixture(t testing.TB, name, schema string, statements []string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open fixture db: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("create fixture schema: %v", err)
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("seed fixture: %v", err)
		}
	}
	return path
}
