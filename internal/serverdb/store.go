package serverdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "modernc.org/sqlite"
)

// Store wraps one instance's jellyfin.db: user accounts, their password
// hashes, and the devices table holding per-device access tokens.
type Store struct {
	db   *sql.DB
	path string
}

// Open connects to a server database for reading and writing. The file
// must already exist.
func Open(path string) (*Store, error) {
	return open(path, false)
}

// OpenReadOnly connects to a server database without write capability.
func OpenReadOnly(path string) (*Store, error) {
	return open(path, true)
}

func open(path string, readOnly bool) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("server database unavailable: %w", err)
	}

	dsn := path
	if readOnly {
		dsn = "file:" + path + "?mode=ro"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open server db: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragma: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("server database unavailable: %w", err)
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

// Account is one user row as the watch state join needs it: the numeric
// row id playback states reference, plus the display name.
type Account struct {
	InternalID int64
	Username   string
}

// Accounts returns every user account.
func (s *Store) Accounts(ctx context.Context) ([]Account, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT InternalId, Username FROM Users`)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		var account Account
		if err := rows.Scan(&account.InternalID, &account.Username); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

// UserIDsByName returns the username to external user id mapping. The
// external id is what the devices table and the playback state writes key
// on.
func (s *Store) UserIDsByName(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT Username, Id FROM Users`)
	if err != nil {
		return nil, fmt.Errorf("query user ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]string)
	for rows.Next() {
		var username, id string
		if err := rows.Scan(&username, &id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids[username] = id
	}
	return ids, rows.Err()
}

// Credential is one account's password hash in the server's own PBKDF2
// encoding. The hash is carried verbatim; this tool never interprets it.
type Credential struct {
	Username string
	Hash     string
}

// PasswordHashes returns every account's stored password hash. Accounts
// without a password come back with an empty hash.
func (s *Store) PasswordHashes(ctx context.Context) ([]Credential, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT Username, Password FROM Users`)
	if err != nil {
		return nil, fmt.Errorf("query password hashes: %w", err)
	}
	defer rows.Close()

	var credentials []Credential
	for rows.Next() {
		var (
			username string
			hash     sql.NullString
		)
		if err := rows.Scan(&username, &hash); err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		credentials = append(credentials, Credential{Username: username, Hash: hash.String})
	}
	return credentials, rows.Err()
}

// ApplyPasswordHashes writes the given hashes onto matching usernames in
// one transaction. Usernames absent from this database are the caller's
// responsibility to filter out beforehand.
func (s *Store) ApplyPasswordHashes(ctx context.Context, credentials []Credential) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin credential tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `UPDATE Users SET Password = ? WHERE Username = ?`)
	if err != nil {
		return fmt.Errorf("prepare credential update: %w", err)
	}
	defer stmt.Close()

	for _, credential := range credentials {
		if _, err := stmt.ExecContext(ctx, credential.Hash, credential.Username); err != nil {
			return fmt.Errorf("update password for %s: %w", credential.Username, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit credentials: %w", err)
	}
	return nil
}

// Device is one registered device row, joined to the owning account's
// username so it can be re-keyed onto the destination's user ids.
type Device struct {
	Username         string
	AccessToken      string
	AppName          string
	AppVersion       string
	DeviceName       string
	DeviceID         string
	IsActive         bool
	DateCreated      string
	DateModified     string
	DateLastActivity string
}

// Devices returns every device row whose owning account still exists.
func (s *Store) Devices(ctx context.Context) ([]Device, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT u.Username, d.AccessToken, d.AppName, d.AppVersion, d.DeviceName,
                d.DeviceId, d.IsActive, d.DateCreated, d.DateModified, d.DateLastActivity
         FROM Devices d
         JOIN Users u ON d.UserId = u.Id`)
	if err != nil {
		return nil, fmt.Errorf("query devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		var (
			device       Device
			appName      sql.NullString
			appVersion   sql.NullString
			deviceName   sql.NullString
			isActive     sql.NullInt64
			created      sql.NullString
			modified     sql.NullString
			lastActivity sql.NullString
		)
		if err := rows.Scan(
			&device.Username,
			&device.AccessToken,
			&appName,
			&appVersion,
			&deviceName,
			&device.DeviceID,
			&isActive,
			&created,
			&modified,
			&lastActivity,
		); err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		device.AppName = appName.String
		device.AppVersion = appVersion.String
		device.DeviceName = deviceName.String
		device.IsActive = isActive.Int64 != 0
		device.DateCreated = created.String
		device.DateModified = modified.String
		device.DateLastActivity = lastActivity.String
		devices = append(devices, device)
	}
	return devices, rows.Err()
}

// ExistingDevicePairs returns the set of (DeviceId, UserId) pairs already
// present, so an import can skip duplicates before writing.
func (s *Store) ExistingDevicePairs(ctx context.Context) (map[DevicePair]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DeviceId, UserId FROM Devices`)
	if err != nil {
		return nil, fmt.Errorf("query device pairs: %w", err)
	}
	defer rows.Close()

	pairs := make(map[DevicePair]struct{})
	for rows.Next() {
		var pair DevicePair
		if err := rows.Scan(&pair.DeviceID, &pair.UserID); err != nil {
			return nil, fmt.Errorf("scan device pair: %w", err)
		}
		pairs[pair] = struct{}{}
	}
	return pairs, rows.Err()
}

// DevicePair identifies a device registration by device id and user id.
type DevicePair struct {
	DeviceID string
	UserID   string
}

// DeviceRow is one device registration ready to insert, with the user id
// already mapped to this database's accounts.
type DeviceRow struct {
	UserID string
	Device
}

// InsertDevices writes the given device registrations in one transaction.
func (s *Store) InsertDevices(ctx context.Context, deviceRows []DeviceRow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin device tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO Devices
            (AccessToken, AppName, AppVersion, DeviceName, DeviceId,
             IsActive, DateCreated, DateModified, DateLastActivity, UserId)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare device insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range deviceRows {
		if _, err := stmt.ExecContext(ctx,
			row.AccessToken,
			nullableString(row.AppName),
			nullableString(row.AppVersion),
			nullableString(row.DeviceName),
			row.DeviceID,
			boolToInt(row.IsActive),
			nullableString(row.DateCreated),
			nullableString(row.DateModified),
			nullableString(row.DateLastActivity),
			row.UserID,
		); err != nil {
			return fmt.Errorf("insert device %s: %w", row.DeviceID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit devices: %w", err)
	}
	return nil
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
