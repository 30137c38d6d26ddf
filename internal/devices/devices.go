// Package devices migrates device registrations and their access tokens
// between server databases, so clients stay signed in after the move.
package devices

import (
	"context"
	"log/slog"

	"jellybridge/internal/logging"
	"jellybridge/internal/serverdb"
)

// ArtifactKind tags the export artifact carrying device records.
const ArtifactKind = "devices"

// ArtifactName is the default file name for the device artifact.
const ArtifactName = "devices.json"

// Record is one exported device registration, keyed to its owner by
// username rather than by instance-local user id.
type Record struct {
	Username         string `json:"Username"`
	AccessToken      string `json:"AccessToken"`
	AppName          string `json:"AppName"`
	AppVersion       string `json:"AppVersion"`
	DeviceName       string `json:"DeviceName"`
	DeviceID         string `json:"DeviceId"`
	IsActive         bool   `json:"IsActive"`
	DateCreated      string `json:"DateCreated"`
	DateModified     string `json:"DateModified"`
	DateLastActivity string `json:"DateLastActivity"`
}

// Export reads every device registration from the source server database.
// Devices whose owning account no longer exists are dropped by the join.
func Export(ctx context.Context, source *serverdb.Store) ([]Record, error) {
	devices, err := source.Devices(ctx)
	if err != nil {
		return nil, err
	}
	records := make([]Record, 0, len(devices))
	for _, device := range devices {
		records = append(records, Record{
			Username:         device.Username,
			AccessToken:      device.AccessToken,
			AppName:          device.AppName,
			AppVersion:       device.AppVersion,
			DeviceName:       device.DeviceName,
			DeviceID:         device.DeviceID,
			IsActive:         device.IsActive,
			DateCreated:      device.DateCreated,
			DateModified:     device.DateModified,
			DateLastActivity: device.DateLastActivity,
		})
	}
	return records, nil
}

// ImportSummary reports what a device import did.
type ImportSummary struct {
	Total              int
	Imported           int
	SkippedExisting    int
	SkippedUnknownUser int
}

// Import re-keys exported devices onto destination user ids and inserts
// the ones not already registered, in one transaction. A device already
// present as the same (DeviceId, UserId) pair is skipped, so reruns are
// harmless.
func Import(ctx context.Context, destination *serverdb.Store, records []Record, logger *slog.Logger) (ImportSummary, error) {
	log := logging.NewComponentLogger(logger, "devices")
	summary := ImportSummary{Total: len(records)}

	users, err := destination.UserIDsByName(ctx)
	if err != nil {
		return summary, err
	}
	existing, err := destination.ExistingDevicePairs(ctx)
	if err != nil {
		return summary, err
	}

	staged := make([]serverdb.DeviceRow, 0, len(records))
	for _, record := range records {
		userID, ok := users[record.Username]
		if !ok {
			summary.SkippedUnknownUser++
			log.Warn("no destination account for device",
				logging.String("username", record.Username),
				logging.String("device_id", record.DeviceID))
			continue
		}
		if _, ok := existing[serverdb.DevicePair{DeviceID: record.DeviceID, UserID: userID}]; ok {
			summary.SkippedExisting++
			continue
		}
		staged = append(staged, serverdb.DeviceRow{
			UserID: userID,
			Device: serverdb.Device{
				AccessToken:      record.AccessToken,
				AppName:          record.AppName,
				AppVersion:       record.AppVersion,
				DeviceName:       record.DeviceName,
				DeviceID:         record.DeviceID,
				IsActive:         record.IsActive,
				DateCreated:      record.DateCreated,
				DateModified:     record.DateModified,
				DateLastActivity: record.DateLastActivity,
			},
		})
	}

	if len(staged) > 0 {
		if err := destination.InsertDevices(ctx, staged); err != nil {
			return summary, err
		}
	}
	summary.Imported = len(staged)

	log.Info("device import complete",
		logging.Int("imported", summary.Imported),
		logging.Int("skipped_existing", summary.SkippedExisting),
		logging.Int("skipped_unknown_user", summary.SkippedUnknownUser))
	return summary, nil
}
