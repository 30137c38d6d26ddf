package main

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"jellybridge/internal/accounts"
	"jellybridge/internal/artifact"
	"jellybridge/internal/config"
	"jellybridge/internal/devices"
	"jellybridge/internal/jellyfin"
	"jellybridge/internal/libraries"
	"jellybridge/internal/librarydb"
	"jellybridge/internal/logging"
	"jellybridge/internal/runlock"
	"jellybridge/internal/serverdb"
	"jellybridge/internal/watched"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Import exported data into the destination instance",
	}

	importCmd.AddCommand(
		newImportUsersCommand(ctx),
		newImportPasswordsCommand(ctx),
		newImportLibrariesCommand(ctx),
		newImportPoliciesCommand(ctx),
		newImportDevicesCommand(ctx),
		newImportWatchedCommand(ctx),
		newImportAllCommand(ctx),
	)
	return importCmd
}

func newImportUsersCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "Create exported users on the destination instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImportUsers(cmd, ctx)
		},
	}
}

func newImportPasswordsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "passwords",
		Short: "Copy password hashes from the source to the destination database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImportPasswords(cmd, ctx)
		},
	}
}

func newImportLibrariesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "libraries",
		Short: "Create exported libraries and wait for the resulting scan",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImportLibraries(cmd, ctx)
		},
	}
}

func newImportPoliciesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "policies",
		Short: "Re-apply per-user library access policies on the destination",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImportPolicies(cmd, ctx)
		},
	}
}

func newImportDevicesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "Insert exported device registrations into the destination database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImportDevices(cmd, ctx)
		},
	}
}

func newImportWatchedCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watched",
		Short: "Load exported watch state into the destination database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImportWatched(cmd, ctx)
		},
	}
}

func newImportAllCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Run every import in dependency order",
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := []func(*cobra.Command, *commandContext) error{
				runImportUsers,
				runImportPasswords,
				runImportLibraries,
				runImportPolicies,
				runImportDevices,
				runImportWatched,
			}
			for _, step := range steps {
				if err := step(cmd, ctx); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// withRunLock guards destination database writes against concurrent runs.
// The lock file lives next to the destination library database.
func withRunLock(cfg *config.Config, fn func() error) error {
	if cfg.Destination.LibraryDB == "" {
		return errors.New("destination.library_db must be set")
	}
	lock := runlock.New(cfg.Destination.LibraryDB)
	if err := lock.Acquire(); err != nil {
		return err
	}
	defer func() {
		_ = lock.Release()
	}()
	return fn()
}

func runImportUsers(cmd *cobra.Command, ctx *commandContext) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	if err := cfg.RequireDestinationAPI(); err != nil {
		return err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}

	records, _, err := artifact.Read[accounts.Record](cfg.ArtifactPath(accounts.ArtifactName), accounts.ArtifactKind)
	if err != nil {
		return err
	}

	client := jellyfin.NewClient(cfg.Destination.URL, cfg.Destination.APIKey, http.DefaultClient)
	summary, err := accounts.Import(cmd.Context(), client, records, logger)
	if err != nil {
		return err
	}

	printSummaryTable(cmd.OutOrStdout(), "User import", [][]string{
		{"Created", strconv.Itoa(summary.Created)},
		{"Already present", strconv.Itoa(summary.Existing)},
		{"Failed", strconv.Itoa(summary.Failed)},
	})
	return nil
}

func runImportPasswords(cmd *cobra.Command, ctx *commandContext) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	if cfg.Source.ServerDB == "" {
		return errors.New("source.server_db must be set")
	}
	if cfg.Destination.ServerDB == "" {
		return errors.New("destination.server_db must be set")
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}

	source, err := serverdb.OpenReadOnly(cfg.Source.ServerDB)
	if err != nil {
		return err
	}
	defer source.Close()

	return withRunLock(cfg, func() error {
		destination, err := serverdb.Open(cfg.Destination.ServerDB)
		if err != nil {
			return err
		}
		defer destination.Close()

		summary, err := accounts.TransferPasswords(cmd.Context(), source, destination, cfg.Migration.SystemAccount, logger)
		if err != nil {
			return err
		}

		printSummaryTable(cmd.OutOrStdout(), "Password transfer", [][]string{
			{"Applied", strconv.Itoa(summary.Applied)},
			{"Skipped (no destination user)", strconv.Itoa(summary.SkippedMissingUser)},
			{"Skipped (no password)", strconv.Itoa(summary.SkippedNoPassword)},
			{"Skipped (system account)", strconv.Itoa(summary.SkippedSystemAccount)},
		})
		return nil
	})
}

func runImportLibraries(cmd *cobra.Command, ctx *commandContext) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	if err := cfg.RequireDestinationAPI(); err != nil {
		return err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}

	records, _, err := artifact.Read[libraries.Record](cfg.ArtifactPath(libraries.ArtifactName), libraries.ArtifactKind)
	if err != nil {
		return err
	}

	client := jellyfin.NewClient(cfg.Destination.URL, cfg.Destination.APIKey, http.DefaultClient)
	summary, err := libraries.Import(cmd.Context(), client, records, cfg.PathRules(), logger)
	if err != nil {
		return err
	}

	if summary.Created > 0 {
		interval := time.Duration(cfg.Migration.ScanPollSeconds) * time.Second
		fmt.Fprintln(cmd.OutOrStdout(), "Waiting for the destination library scan to finish...")
		if err := libraries.WaitForScan(cmd.Context(), client, interval, logger); err != nil {
			return err
		}
	}

	printSummaryTable(cmd.OutOrStdout(), "Library import", [][]string{
		{"Created", strconv.Itoa(summary.Created)},
		{"Already present", strconv.Itoa(summary.Existing)},
		{"Failed", strconv.Itoa(summary.Failed)},
	})
	return nil
}

func runImportPolicies(cmd *cobra.Command, ctx *commandContext) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	if err := cfg.RequireSourceAPI(); err != nil {
		return err
	}
	if err := cfg.RequireDestinationAPI(); err != nil {
		return err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}

	source := jellyfin.NewClient(cfg.Source.URL, cfg.Source.APIKey, http.DefaultClient)
	destination := jellyfin.NewClient(cfg.Destination.URL, cfg.Destination.APIKey, http.DefaultClient)

	summary, err := libraries.SyncUserPolicies(cmd.Context(), source, destination, logger)
	if err != nil {
		return err
	}

	printSummaryTable(cmd.OutOrStdout(), "Policy sync", [][]string{
		{"Updated", strconv.Itoa(summary.Updated)},
		{"Skipped (all folders)", strconv.Itoa(summary.SkippedAllFolders)},
		{"Skipped (no destination user)", strconv.Itoa(summary.SkippedUnknownUser)},
	})
	return nil
}

func runImportDevices(cmd *cobra.Command, ctx *commandContext) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	if cfg.Destination.ServerDB == "" {
		return errors.New("destination.server_db must be set")
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}

	records, _, err := artifact.Read[devices.Record](cfg.ArtifactPath(devices.ArtifactName), devices.ArtifactKind)
	if err != nil {
		return err
	}

	return withRunLock(cfg, func() error {
		destination, err := serverdb.Open(cfg.Destination.ServerDB)
		if err != nil {
			return err
		}
		defer destination.Close()

		summary, err := devices.Import(cmd.Context(), destination, records, logger)
		if err != nil {
			return err
		}

		printSummaryTable(cmd.OutOrStdout(), "Device import", [][]string{
			{"Imported", strconv.Itoa(summary.Imported)},
			{"Skipped (already registered)", strconv.Itoa(summary.SkippedExisting)},
			{"Skipped (no destination user)", strconv.Itoa(summary.SkippedUnknownUser)},
		})
		return nil
	})
}

func runImportWatched(cmd *cobra.Command, ctx *commandContext) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	if err := cfg.RequireDestinationStores(); err != nil {
		return err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}

	artifactPath := cfg.ArtifactPath(watched.ArtifactName)
	records, meta, err := artifact.Read[watched.Record](artifactPath, watched.ArtifactKind)
	if err != nil {
		return err
	}
	logger.Info("watch state artifact read",
		logging.String(logging.FieldArtifact, artifactPath),
		logging.String("artifact_run_id", meta.RunID),
		logging.Int("records", meta.RecordCount))

	return withRunLock(cfg, func() error {
		library, err := librarydb.Open(cfg.Destination.LibraryDB)
		if err != nil {
			return err
		}
		defer library.Close()

		server, err := serverdb.OpenReadOnly(cfg.Destination.ServerDB)
		if err != nil {
			return err
		}
		defer server.Close()

		users, err := server.UserIDsByName(cmd.Context())
		if err != nil {
			return err
		}

		resolver := watched.NewResolver(cfg.PathRules(), library)
		loader := watched.NewLoader(library, resolver, users, logger)

		summary, err := loader.Load(cmd.Context(), records)
		if err != nil {
			return err
		}

		printSummaryTable(cmd.OutOrStdout(), "Watch state import", [][]string{
			{"Exported records", strconv.Itoa(summary.Total)},
			{"Imported", strconv.Itoa(summary.Imported)},
			{"Skipped (no destination user)", strconv.Itoa(summary.SkippedUnknownUser)},
			{"Skipped (no destination match)", strconv.Itoa(summary.SkippedUnmatchedPath)},
			{"Paths with no prefix rule", strconv.Itoa(summary.UnmatchedPrefix)},
		})
		return nil
	})
}
