package devices

import (
	"context"
	"testing"

	"jellybridge/internal/logging"
	"jellybridge/internal/serverdb"
	"jellybridge/internal/testsupport"
)

func newServerDB(t *testing.T, statements ...string) *serverdb.Store {
	t.Helper()

	path := testsupport.NewServerDB(t, statements...)
	store, err := serverdb.Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestExportAndImportRoundTrip(t *testing.T) {
	ctx := context.Background()

	source := newServerDB(t,
		`INSERT INTO Users (InternalId, Id, Username)
         VALUES (1, 'src-alice', 'alice'), (2, 'src-gone', 'gone')`,
		`INSERT INTO Devices
            (AccessToken, AppName, AppVersion, DeviceName, DeviceId, IsActive, UserId)
         VALUES ('tok-web', 'Jellyfin Web', '10.8', 'Firefox', 'dev-web', 1, 'src-alice'),
                ('tok-tv', 'Jellyfin TV', '1.0', 'Shield', 'dev-tv', 1, 'src-gone')`,
	)
	destination := newServerDB(t,
		`INSERT INTO Users (InternalId, Id, Username)
         VALUES (1, 'dst-alice', 'alice')`,
	)

	records, err := Export(ctx, source)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	summary, err := Import(ctx, destination, records, logging.NewNop())
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if summary.Imported != 1 || summary.SkippedUnknownUser != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	pairs, err := destination.ExistingDevicePairs(ctx)
	if err != nil {
		t.Fatalf("pairs: %v", err)
	}
	if _, ok := pairs[serverdb.DevicePair{DeviceID: "dev-web", UserID: "dst-alice"}]; !ok {
		t.Fatalf("device not re-keyed onto destination user: %v", pairs)
	}

	// Rerun: the device now exists and must be skipped, not duplicated.
	summary, err = Import(ctx, destination, records, logging.NewNop())
	if err != nil {
		t.Fatalf("rerun import: %v", err)
	}
	if summary.Imported != 0 || summary.SkippedExisting != 1 {
		t.Fatalf("rerun should skip existing device: %+v", summary)
	}
}
