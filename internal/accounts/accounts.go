// Package accounts migrates user accounts between instances: exporting
// the source's user list, recreating missing users over the API, and
// carrying password hashes directly between server databases.
package accounts

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"jellybridge/internal/jellyfin"
	"jellybridge/internal/logging"
	"jellybridge/internal/serverdb"
)

// ArtifactKind tags the export artifact carrying account records.
const ArtifactKind = "accounts"

// ArtifactName is the default file name for the account artifact.
const ArtifactName = "users.json"

// Record is one exported user account. Only the name travels: ids are
// instance-local and passwords move through the database path.
type Record struct {
	Name string `json:"Name"`
}

// Export lists the source's users as portable records. The system account
// belongs to the server, not the deployment, and is never exported.
func Export(ctx context.Context, client *jellyfin.Client, systemAccount string) ([]Record, error) {
	users, err := client.Users(ctx)
	if err != nil {
		return nil, fmt.Errorf("list source users: %w", err)
	}
	records := make([]Record, 0, len(users))
	for _, user := range users {
		if strings.EqualFold(user.Name, systemAccount) {
			continue
		}
		records = append(records, Record{Name: user.Name})
	}
	return records, nil
}

// ImportSummary reports what a user import did.
type ImportSummary struct {
	Total    int
	Created  int
	Existing int
	Failed   int
}

// Import creates every exported user that the destination does not have
// yet. Existing users are left untouched; the server assigns new ids.
// Each new account gets a throwaway random password, to be overwritten by
// TransferPasswords. A failed creation is counted and the loop continues,
// so one bad account does not strand the rest.
func Import(ctx context.Context, client *jellyfin.Client, records []Record, logger *slog.Logger) (ImportSummary, error) {
	log := logging.NewComponentLogger(logger, "accounts")
	summary := ImportSummary{Total: len(records)}

	existing, err := client.Users(ctx)
	if err != nil {
		return summary, fmt.Errorf("list destination users: %w", err)
	}
	present := make(map[string]struct{}, len(existing))
	for _, user := range existing {
		present[user.Name] = struct{}{}
	}

	for _, record := range records {
		if _, ok := present[record.Name]; ok {
			summary.Existing++
			continue
		}
		password, err := randomPassword()
		if err != nil {
			return summary, err
		}
		if _, err := client.CreateUser(ctx, record.Name, password); err != nil {
			summary.Failed++
			log.Warn("failed to create user",
				logging.String("username", record.Name),
				logging.Error(err))
			continue
		}
		summary.Created++
		log.Info("created user", logging.String("username", record.Name))
	}

	log.Info("user import complete",
		logging.Int("created", summary.Created),
		logging.Int("existing", summary.Existing),
		logging.Int("failed", summary.Failed))
	return summary, nil
}

func randomPassword() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate password: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// PasswordSummary reports what a password transfer did.
type PasswordSummary struct {
	Applied              int
	SkippedMissingUser   int
	SkippedNoPassword    int
	SkippedSystemAccount int
}

// TransferPasswords copies password hashes from the source server
// database onto matching destination accounts in one transaction. The
// hashes are opaque to this tool; the system account, accounts missing on
// the destination, and accounts without a password on the source are
// skipped and counted. Run this after Import so recreated accounts are
// present to receive their hash.
func TransferPasswords(ctx context.Context, source, destination *serverdb.Store, systemAccount string, logger *slog.Logger) (PasswordSummary, error) {
	log := logging.NewComponentLogger(logger, "accounts")
	var summary PasswordSummary

	credentials, err := source.PasswordHashes(ctx)
	if err != nil {
		return summary, err
	}
	destinationUsers, err := destination.UserIDsByName(ctx)
	if err != nil {
		return summary, err
	}

	applicable := make([]serverdb.Credential, 0, len(credentials))
	for _, credential := range credentials {
		if strings.EqualFold(credential.Username, systemAccount) {
			summary.SkippedSystemAccount++
			continue
		}
		if credential.Hash == "" {
			summary.SkippedNoPassword++
			continue
		}
		if _, ok := destinationUsers[credential.Username]; !ok {
			summary.SkippedMissingUser++
			log.Warn("no destination account for password transfer",
				logging.String("username", credential.Username))
			continue
		}
		applicable = append(applicable, credential)
	}

	if len(applicable) > 0 {
		if err := destination.ApplyPasswordHashes(ctx, applicable); err != nil {
			return summary, err
		}
	}
	summary.Applied = len(applicable)

	log.Info("password transfer complete",
		logging.Int("applied", summary.Applied),
		logging.Int("skipped_missing_user", summary.SkippedMissingUser),
		logging.Int("skipped_no_password", summary.SkippedNoPassword),
		logging.Int("skipped_system_account", summary.SkippedSystemAccount))
	return summary, nil
}
