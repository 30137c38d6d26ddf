package libraries

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"jellybridge/internal/jellyfin"
	"jellybridge/internal/logging"
)

// PolicySummary reports what a policy sync did.
type PolicySummary struct {
	Updated            int
	SkippedAllFolders  int
	SkippedUnknownUser int
}

// SyncUserPolicies re-applies per-user library restrictions on the
// destination. Library access is stored as folder item ids, which differ
// between instances, so each source policy's EnabledFolders is mapped
// id -> library name on the source and name -> id on the destination.
// Users with access to all folders need no restriction and are skipped;
// libraries the destination does not have are silently dropped from the
// enabled set. The destination policy document is fetched, edited, and
// sent back whole so unrelated settings survive.
func SyncUserPolicies(ctx context.Context, source, destination *jellyfin.Client, logger *slog.Logger) (PolicySummary, error) {
	log := logging.NewComponentLogger(logger, "libraries")
	var summary PolicySummary

	sourceUsers, err := source.Users(ctx)
	if err != nil {
		return summary, fmt.Errorf("list source users: %w", err)
	}
	sourceFolders, err := source.CollectionFolders(ctx)
	if err != nil {
		return summary, fmt.Errorf("list source folders: %w", err)
	}
	destinationUsers, err := destination.Users(ctx)
	if err != nil {
		return summary, fmt.Errorf("list destination users: %w", err)
	}
	destinationFolders, err := destination.CollectionFolders(ctx)
	if err != nil {
		return summary, fmt.Errorf("list destination folders: %w", err)
	}

	sourceNamesByID := make(map[string]string, len(sourceFolders))
	for _, folder := range sourceFolders {
		sourceNamesByID[folder.ID] = folder.Name
	}
	destinationIDsByName := make(map[string]string, len(destinationFolders))
	for _, folder := range destinationFolders {
		destinationIDsByName[folder.Name] = folder.ID
	}
	destinationByName := make(map[string]jellyfin.User, len(destinationUsers))
	for _, user := range destinationUsers {
		destinationByName[user.Name] = user
	}

	for _, sourceUser := range sourceUsers {
		var sourcePolicy struct {
			EnableAllFolders bool     `json:"EnableAllFolders"`
			EnabledFolders   []string `json:"EnabledFolders"`
		}
		if len(sourceUser.Policy) > 0 {
			if err := json.Unmarshal(sourceUser.Policy, &sourcePolicy); err != nil {
				return summary, fmt.Errorf("decode policy for %s: %w", sourceUser.Name, err)
			}
		}
		if sourcePolicy.EnableAllFolders {
			summary.SkippedAllFolders++
			continue
		}

		destinationUser, ok := destinationByName[sourceUser.Name]
		if !ok {
			summary.SkippedUnknownUser++
			log.Warn("no destination account for policy sync",
				logging.String("username", sourceUser.Name))
			continue
		}

		enabled := make([]string, 0, len(sourcePolicy.EnabledFolders))
		for _, folderID := range sourcePolicy.EnabledFolders {
			name, ok := sourceNamesByID[folderID]
			if !ok {
				continue
			}
			if destinationID, ok := destinationIDsByName[name]; ok {
				enabled = append(enabled, destinationID)
			}
		}

		policy := map[string]any{}
		if len(destinationUser.Policy) > 0 {
			if err := json.Unmarshal(destinationUser.Policy, &policy); err != nil {
				return summary, fmt.Errorf("decode destination policy for %s: %w", sourceUser.Name, err)
			}
		}
		policy["EnableAllFolders"] = false
		policy["EnabledFolders"] = enabled

		if err := destination.UpdateUserPolicy(ctx, destinationUser.ID, policy); err != nil {
			return summary, fmt.Errorf("update policy for %s: %w", sourceUser.Name, err)
		}
		summary.Updated++
		log.Info("applied library policy",
			logging.String("username", sourceUser.Name),
			logging.Int("enabled_folders", len(enabled)))
	}

	log.Info("policy sync complete",
		logging.Int("updated", summary.Updated),
		logging.Int("skipped_all_folders", summary.SkippedAllFolders),
		logging.Int("skipped_unknown_user", summary.SkippedUnknownUser))
	return summary, nil
}
