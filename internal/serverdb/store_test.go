package serverdb

import (
	"context"
	"testing"

	"jellybridge/internal/testsupport"
)

func newServerDB(t *testing.T, statements ...string) string {
	t.Helper()
	return testsupport.NewServerDB(t, statements...)
}

func TestAccountsAndUserIDs(t *testing.T) {
	path := newServerDB(t,
		`INSERT INTO Users (InternalId, Id, Username, Password)
         VALUES (1, 'guid-alice', 'alice', '$PBKDF2-SHA512$hash1'),
                (2, 'guid-bob', 'bob', NULL)`,
	)

	store, err := OpenReadOnly(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	accounts, err := store.Accounts(ctx)
	if err != nil {
		t.Fatalf("accounts: %v", err)
	}
	if len(accounts) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(accounts))
	}
	if accounts[0].InternalID != 1 || accounts[0].Username != "alice" {
		t.Fatalf("unexpected account: %+v", accounts[0])
	}

	ids, err := store.UserIDsByName(ctx)
	if err != nil {
		t.Fatalf("user ids: %v", err)
	}
	if ids["alice"] != "guid-alice" || ids["bob"] != "guid-bob" {
		t.Fatalf("unexpected id map: %v", ids)
	}
}

func TestPasswordHashRoundTrip(t *testing.T) {
	path := newServerDB(t,
		`INSERT INTO Users (InternalId, Id, Username, Password)
         VALUES (1, 'guid-alice', 'alice', NULL)`,
	)

	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	hash := "$PBKDF2-SHA512$iterations=210000$salt$digest"

	if err := store.ApplyPasswordHashes(ctx, []Credential{{Username: "alice", Hash: hash}}); err != nil {
		t.Fatalf("apply hashes: %v", err)
	}

	credentials, err := store.PasswordHashes(ctx)
	if err != nil {
		t.Fatalf("password hashes: %v", err)
	}
	if len(credentials) != 1 || credentials[0].Hash != hash {
		t.Fatalf("hash not carried verbatim: %+v", credentials)
	}
}

func TestDevicesJoinAndInsert(t *testing.T) {
	path := newServerDB(t,
		`INSERT INTO Users (InternalId, Id, Username)
         VALUES (1, 'guid-alice', 'alice')`,
		`INSERT INTO Devices
            (AccessToken, AppName, AppVersion, DeviceName, DeviceId,
             IsActive, DateCreated, DateModified, DateLastActivity, UserId)
         VALUES ('tok1', 'Jellyfin Web', '10.8.0', 'Firefox', 'dev-1',
                 1, '2023-01-01', '2023-01-02', '2023-01-03', 'guid-alice'),
                ('orphan', 'App', '1.0', 'Ghost', 'dev-2',
                 1, NULL, NULL, NULL, 'guid-gone')`,
	)

	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	devices, err := store.Devices(ctx)
	if err != nil {
		t.Fatalf("devices: %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("orphaned device should be dropped by join, got %d rows", len(devices))
	}
	if devices[0].Username != "alice" || devices[0].DeviceID != "dev-1" || !devices[0].IsActive {
		t.Fatalf("unexpected device: %+v", devices[0])
	}

	pairs, err := store.ExistingDevicePairs(ctx)
	if err != nil {
		t.Fatalf("existing pairs: %v", err)
	}
	if _, ok := pairs[DevicePair{DeviceID: "dev-1", UserID: "guid-alice"}]; !ok {
		t.Fatalf("expected pair present, got %v", pairs)
	}

	err = store.InsertDevices(ctx, []DeviceRow{{
		UserID: "guid-alice",
		Device: Device{
			AccessToken: "tok3",
			AppName:     "Jellyfin Android",
			DeviceID:    "dev-3",
			IsActive:    true,
		},
	}})
	if err != nil {
		t.Fatalf("insert devices: %v", err)
	}

	pairs, err = store.ExistingDevicePairs(ctx)
	if err != nil {
		t.Fatalf("existing pairs after insert: %v", err)
	}
	if len(pairs) != 3 {
		t.Fatalf("expected 3 pairs, got %d", len(pairs))
	}
}

func TestInsertDevicesRollsBackWholeBatch(t *testing.T) {
	path := newServerDB(t,
		`CREATE TRIGGER reject_marked_device BEFORE INSERT ON Devices
         WHEN NEW.DeviceId = 'rejected-device' BEGIN
             SELECT RAISE(ABORT, 'rejected');
         END`,
	)

	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	err = store.InsertDevices(ctx, []DeviceRow{
		{UserID: "guid-alice", Device: Device{AccessToken: "tok1", DeviceID: "dev-1"}},
		{UserID: "guid-alice", Device: Device{AccessToken: "tok2", DeviceID: "rejected-device"}},
	})
	if err == nil {
		t.Fatal("expected the second row's failure to fail the batch")
	}

	pairs, err := store.ExistingDevicePairs(ctx)
	if err != nil {
		t.Fatalf("existing pairs: %v", err)
	}
	if len(pairs) != 0 {
		t.Fatalf("failed batch must leave the table empty, got %v", pairs)
	}
}

func TestApplyPasswordHashesRollsBackWholeBatch(t *testing.T) {
	path := newServerDB(t,
		`INSERT INTO Users (InternalId, Id, Username, Password)
         VALUES (1, 'guid-alice', 'alice', '$PBKDF2-SHA512$original-a'),
                (2, 'guid-bob', 'bob', '$PBKDF2-SHA512$original-b')`,
		`CREATE TRIGGER reject_marked_hash BEFORE UPDATE OF Password ON Users
         WHEN NEW.Password = 'rejected-hash' BEGIN
             SELECT RAISE(ABORT, 'rejected');
         END`,
	)

	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	err = store.ApplyPasswordHashes(ctx, []Credential{
		{Username: "alice", Hash: "$PBKDF2-SHA512$replacement-a"},
		{Username: "bob", Hash: "rejected-hash"},
	})
	if err == nil {
		t.Fatal("expected the second row's failure to fail the batch")
	}

	credentials, err := store.PasswordHashes(ctx)
	if err != nil {
		t.Fatalf("password hashes: %v", err)
	}
	for _, credential := range credentials {
		switch credential.Username {
		case "alice":
			if credential.Hash != "$PBKDF2-SHA512$original-a" {
				t.Fatalf("alice's hash must be untouched after rollback: %q", credential.Hash)
			}
		case "bob":
			if credential.Hash != "$PBKDF2-SHA512$original-b" {
				t.Fatalf("bob's hash must be untouched after rollback: %q", credential.Hash)
			}
		}
	}
}
