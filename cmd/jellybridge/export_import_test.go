package main

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"jellybridge/internal/testsupport"
)

func TestExportImportWatchedRoundTrip(t *testing.T) {
	sourceLibrary := testsupport.NewLibraryDB(t,
		`INSERT INTO TypedBaseItems (Name, Path, PresentationUniqueKey)
         VALUES ('The Matrix', '/media/movies/matrix.mkv', 'aabbccddeeff00112233445566778899'),
                ('Unwatched', '/media/movies/unwatched.mkv', 'ffffffffffffffffffffffffffffffff')`,
		`INSERT INTO UserDatas (Key, UserId, Played, PlaybackPositionTicks, LastPlayedDate)
         VALUES ('aabbccdd-eeff-0011-2233-445566778899', 1, 1, 7200, '2023-06-01 20:00:00'),
                ('aabbccdd-eeff-0011-2233-445566778899', 2, 1, 0, NULL)`,
	)
	sourceServer := testsupport.NewServerDB(t,
		`INSERT INTO Users (InternalId, Id, Username)
         VALUES (1, 'src-alice', 'alice'), (2, 'src-system', 'jellyfin')`,
	)

	destinationLibrary := testsupport.NewLibraryDB(t,
		`INSERT INTO TypedBaseItems (Name, Path, PresentationUniqueKey)
         VALUES ('The Matrix', '/srv/movies/matrix.mkv', '99887766554433221100ffeeddccbbaa')`,
	)
	destinationServer := testsupport.NewServerDB(t,
		`INSERT INTO Users (InternalId, Id, Username)
         VALUES (1, 'dst-alice', 'alice')`,
	)

	cfg := testsupport.NewConfig(t,
		testsupport.WithSourceStores(sourceLibrary, sourceServer),
		testsupport.WithDestinationStores(destinationLibrary, destinationServer),
		testsupport.WithPathRule("/media", "/srv"),
	)
	configPath := testsupport.WriteConfig(t, cfg)

	out, _, err := runCLI(t, []string{"export", "watched"}, configPath)
	if err != nil {
		t.Fatalf("export watched: %v", err)
	}
	// The system account's row is excluded at export time.
	requireContains(t, out, "Exported 1 watched records")

	// Every log line of a run carries its run id, and artifact writes are
	// logged with the artifact path.
	logData, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "jellybridge.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	requireContains(t, string(logData), "run_id=")
	requireContains(t, string(logData), "artifact="+cfg.ArtifactPath("watched.json"))

	out, _, err = runCLI(t, []string{"import", "watched"}, configPath)
	if err != nil {
		t.Fatalf("import watched: %v", err)
	}
	requireContains(t, out, "Watch state import")

	db, err := sql.Open("sqlite", destinationLibrary)
	if err != nil {
		t.Fatalf("open destination library: %v", err)
	}
	defer db.Close()

	var (
		key      string
		userID   string
		played   int
		position int64
	)
	err = db.QueryRow(`SELECT Key, UserId, Played, PlaybackPositionTicks FROM UserDatas`).
		Scan(&key, &userID, &played, &position)
	if err != nil {
		t.Fatalf("query destination state: %v", err)
	}
	if key != "99887766-5544-3322-1100-ffeeddccbbaa" {
		t.Fatalf("key must be the destination fingerprint, dashed: %q", key)
	}
	if userID != "dst-alice" || played != 1 || position != 7200 {
		t.Fatalf("unexpected row: user=%q played=%d position=%d", userID, played, position)
	}

	// A rerun must not duplicate or error.
	if _, _, err := runCLI(t, []string{"import", "watched"}, configPath); err != nil {
		t.Fatalf("rerun import watched: %v", err)
	}
	var count int
	if err := db.QueryRow(`SELECT COUNT(1) FROM UserDatas`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("rerun duplicated state rows: %d", count)
	}
}

func TestImportWatchedRequiresArtifact(t *testing.T) {
	destinationLibrary := testsupport.NewLibraryDB(t)
	destinationServer := testsupport.NewServerDB(t)

	cfg := testsupport.NewConfig(t,
		testsupport.WithDestinationStores(destinationLibrary, destinationServer),
	)
	configPath := testsupport.WriteConfig(t, cfg)

	_, _, err := runCLI(t, []string{"import", "watched"}, configPath)
	if err == nil {
		t.Fatal("import without an export artifact should fail")
	}
}
