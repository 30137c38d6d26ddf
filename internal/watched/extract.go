package watched

import (
	"strings"

	"jellybridge/internal/fingerprint"
	"jellybridge/internal/librarydb"
	"jellybridge/internal/serverdb"
)

// ExtractStats counts what the extraction join saw and what it produced.
type ExtractStats struct {
	CatalogItems  int
	WatchStates   int
	Accounts      int
	Records       int
	UnmatchedKeys int
	UnknownUsers  int
	SystemRows    int
}

// Extract joins catalog items, watch states, and accounts into portable
// records. The join runs in memory: both side tables fit comfortably for
// any home-sized library, and it keeps the source database strictly
// read-only for the whole run.
//
// States are matched to catalog items on the canonicalized fingerprint,
// so a dashed state key still finds its undashed catalog entry. Rows
// belonging to systemAccount (compared case-insensitively) are service
// bookkeeping, not a person's history, and are dropped.
func Extract(
	catalog []librarydb.CatalogItem,
	states []librarydb.WatchState,
	accounts []serverdb.Account,
	systemAccount string,
) ([]Record, ExtractStats) {
	stats := ExtractStats{
		CatalogItems: len(catalog),
		WatchStates:  len(states),
		Accounts:     len(accounts),
	}

	itemsByKey := make(map[string]librarydb.CatalogItem, len(catalog))
	for _, item := range catalog {
		itemsByKey[fingerprint.Canonicalize(item.Fingerprint)] = item
	}

	usersByID := make(map[int64]string, len(accounts))
	for _, account := range accounts {
		usersByID[account.InternalID] = account.Username
	}

	var records []Record
	for _, state := range states {
		item, ok := itemsByKey[fingerprint.Canonicalize(state.Key)]
		if !ok {
			stats.UnmatchedKeys++
			continue
		}
		username, ok := usersByID[state.UserID]
		if !ok {
			stats.UnknownUsers++
			continue
		}
		if strings.EqualFold(username, systemAccount) {
			stats.SystemRows++
			continue
		}
		records = append(records, Record{
			ItemName:              item.Name,
			Path:                  item.Path,
			PlaybackPositionTicks: state.PlaybackPositionTicks,
			LastPlayedDate:        state.LastPlayedDate,
			Username:              username,
			PresentationUniqueKey: fingerprint.Canonicalize(item.Fingerprint),
		})
	}
	stats.Records = len(records)
	return records, stats
}
