// Package libraries migrates library definitions between instances:
// recreating missing libraries with translated folder paths, waiting out
// the scan the server starts for them, and re-applying per-user library
// access policies.
package libraries

import (
	"context"
	"fmt"
	"log/slog"

	"jellybridge/internal/jellyfin"
	"jellybridge/internal/logging"
	"jellybridge/internal/pathmap"
)

// ArtifactKind tags the export artifact carrying library records.
const ArtifactKind = "libraries"

// ArtifactName is the default file name for the library artifact.
const ArtifactName = "libraries.json"

// Record is one exported library definition. Locations carry the
// source's paths; the import translates them through the path rules.
type Record struct {
	Name           string   `json:"Name"`
	CollectionType string   `json:"CollectionType"`
	Locations      []string `json:"Locations"`
}

// Export lists the source's configured libraries as portable records.
func Export(ctx context.Context, client *jellyfin.Client) ([]Record, error) {
	folders, err := client.VirtualFolders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list source libraries: %w", err)
	}
	records := make([]Record, 0, len(folders))
	for _, folder := range folders {
		records = append(records, Record{
			Name:           folder.Name,
			CollectionType: folder.CollectionType,
			Locations:      folder.Locations,
		})
	}
	return records, nil
}

// ImportSummary reports what a library import did.
type ImportSummary struct {
	Total    int
	Created  int
	Existing int
	Failed   int
}

// Import creates every exported library the destination lacks, matching
// by name. Folder locations are translated through the path rules before
// creation. A failed creation is counted and the loop moves on to the
// next library. The server starts a media scan for each new library;
// callers that need the catalog populated should follow up with
// WaitForScan.
func Import(ctx context.Context, client *jellyfin.Client, records []Record, rules pathmap.Rules, logger *slog.Logger) (ImportSummary, error) {
	log := logging.NewComponentLogger(logger, "libraries")
	summary := ImportSummary{Total: len(records)}

	existing, err := client.VirtualFolders(ctx)
	if err != nil {
		return summary, fmt.Errorf("list destination libraries: %w", err)
	}
	present := make(map[string]struct{}, len(existing))
	for _, folder := range existing {
		present[folder.Name] = struct{}{}
	}

	for _, record := range records {
		if _, ok := present[record.Name]; ok {
			summary.Existing++
			continue
		}
		locations := make([]string, 0, len(record.Locations))
		for _, location := range record.Locations {
			translated, _ := rules.Translate(location)
			locations = append(locations, translated)
		}
		if err := client.CreateVirtualFolder(ctx, record.Name, record.CollectionType, locations); err != nil {
			summary.Failed++
			log.Warn("failed to create library",
				logging.String("name", record.Name),
				logging.Error(err))
			continue
		}
		summary.Created++
		log.Info("created library",
			logging.String("name", record.Name),
			logging.String("collection_type", record.CollectionType),
			logging.Int("locations", len(locations)))
	}

	log.Info("library import complete",
		logging.Int("created", summary.Created),
		logging.Int("existing", summary.Existing),
		logging.Int("failed", summary.Failed))
	return summary, nil
}
