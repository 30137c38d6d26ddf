package watched

import (
	"context"
	"fmt"
	"log/slog"

	"jellybridge/internal/librarydb"
	"jellybridge/internal/logging"
)

// StateWriter is the destination-side write the loader needs. Implemented
// by librarydb.Store.
type StateWriter interface {
	ReplaceWatchStates(ctx context.Context, rows []librarydb.WatchRow) error
}

// LoadSummary reports what a load run did with each record.
type LoadSummary struct {
	Total                int
	Imported             int
	SkippedUnknownUser   int
	SkippedUnmatchedPath int
	UnmatchedPrefix      int
}

// Loader stages watch records against the destination and commits them in
// one transaction.
type Loader struct {
	writer   StateWriter
	resolver *Resolver
	users    map[string]string
	logger   *slog.Logger
}

// NewLoader builds a loader. users maps source usernames to destination
// user ids; records for usernames outside the map are skipped, never
// guessed.
func NewLoader(writer StateWriter, resolver *Resolver, users map[string]string, logger *slog.Logger) *Loader {
	return &Loader{
		writer:   writer,
		resolver: resolver,
		users:    users,
		logger:   logging.NewComponentLogger(logger, "watched-load"),
	}
}

// Load processes every record and writes the survivors in a single
// atomic batch. Per record the username mapping is checked first and the
// path resolved second, so an unmapped user never costs a catalog lookup
// and never surfaces a path problem that doesn't matter for that record.
// Any resolver error aborts the run before anything is written.
func (l *Loader) Load(ctx context.Context, records []Record) (LoadSummary, error) {
	summary := LoadSummary{Total: len(records)}

	staged := make([]librarydb.WatchRow, 0, len(records))
	for _, record := range records {
		userID, ok := l.users[record.Username]
		if !ok {
			summary.SkippedUnknownUser++
			l.logger.Debug("skipping record for unmapped user",
				logging.String("username", record.Username),
				logging.String("item", record.ItemName))
			continue
		}

		resolution, err := l.resolver.Resolve(ctx, record.Path)
		if err != nil {
			return summary, fmt.Errorf("resolve %q: %w", record.Path, err)
		}
		if !resolution.PrefixMatched {
			// Not a skip: the path still goes through with separator
			// normalization only, but the degradation is reported.
			summary.UnmatchedPrefix++
			l.logger.Debug("no path rule matched",
				logging.String("item", record.ItemName),
				logging.String("path", record.Path))
		}
		if !resolution.Found {
			summary.SkippedUnmatchedPath++
			l.logger.Debug("skipping record with no destination match",
				logging.String("item", record.ItemName),
				logging.String("path", resolution.TranslatedPath))
			continue
		}

		// Played/PlayCount are fixed: only fully watched items are
		// migrated, and play counts do not survive the trip. Stream
		// indexes reset to the server's "no selection" sentinel.
		staged = append(staged, librarydb.WatchRow{
			Key:                   resolution.Key,
			UserID:                userID,
			Played:                true,
			PlayCount:             1,
			IsFavorite:            false,
			PlaybackPositionTicks: record.PlaybackPositionTicks,
			LastPlayedDate:        record.LastPlayedDate,
			AudioStreamIndex:      -1,
			SubtitleStreamIndex:   -1,
		})
	}

	if len(staged) > 0 {
		if err := l.writer.ReplaceWatchStates(ctx, staged); err != nil {
			return summary, err
		}
	}
	summary.Imported = len(staged)

	l.logger.Info("watch state load complete",
		logging.Int("total", summary.Total),
		logging.Int("imported", summary.Imported),
		logging.Int("skipped_unknown_user", summary.SkippedUnknownUser),
		logging.Int("skipped_unmatched_path", summary.SkippedUnmatchedPath),
		logging.Int("unmatched_prefix", summary.UnmatchedPrefix))
	return summary, nil
}
