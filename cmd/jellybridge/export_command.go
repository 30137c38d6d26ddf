package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"

	"jellybridge/internal/accounts"
	"jellybridge/internal/artifact"
	"jellybridge/internal/devices"
	"jellybridge/internal/jellyfin"
	"jellybridge/internal/libraries"
	"jellybridge/internal/librarydb"
	"jellybridge/internal/logging"
	"jellybridge/internal/serverdb"
	"jellybridge/internal/watched"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export users, libraries, devices, and watch state from the source instance",
	}

	exportCmd.AddCommand(
		newExportUsersCommand(ctx),
		newExportLibrariesCommand(ctx),
		newExportDevicesCommand(ctx),
		newExportWatchedCommand(ctx),
		newExportAllCommand(ctx),
	)
	return exportCmd
}

func newExportUsersCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "Export the source instance's user accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExportUsers(cmd, ctx)
		},
	}
}

func newExportLibrariesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "libraries",
		Short: "Export the source instance's library definitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExportLibraries(cmd, ctx)
		},
	}
}

func newExportDevicesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "Export the source instance's device registrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExportDevices(cmd, ctx)
		},
	}
}

func newExportWatchedCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watched",
		Short: "Export per-user watch state from the source databases",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExportWatched(cmd, ctx)
		},
	}
}

func newExportAllCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Run every export in order",
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := []func(*cobra.Command, *commandContext) error{
				runExportUsers,
				runExportLibraries,
				runExportDevices,
				runExportWatched,
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

func runExportUsers(cmd *cobra.Command, ctx *commandContext) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	if err := cfg.RequireSourceAPI(); err != nil {
		return err
	}

	client := jellyfin.NewClient(cfg.Source.URL, cfg.Source.APIKey, http.DefaultClient)
	records, err := accounts.Export(cmd.Context(), client, cfg.Migration.SystemAccount)
	if err != nil {
		return err
	}

	path := cfg.ArtifactPath(accounts.ArtifactName)
	meta, err := artifact.Write(path, accounts.ArtifactKind, records)
	if err != nil {
		return err
	}
	printArtifactWritten(cmd.OutOrStdout(), "users", path, meta.RecordCount)
	return nil
}

func runExportLibraries(cmd *cobra.Command, ctx *commandContext) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	if err := cfg.RequireSourceAPI(); err != nil {
		return err
	}

	client := jellyfin.NewClient(cfg.Source.URL, cfg.Source.APIKey, http.DefaultClient)
	records, err := libraries.Export(cmd.Context(), client)
	if err != nil {
		return err
	}

	path := cfg.ArtifactPath(libraries.ArtifactName)
	meta, err := artifact.Write(path, libraries.ArtifactKind, records)
	if err != nil {
		return err
	}
	printArtifactWritten(cmd.OutOrStdout(), "libraries", path, meta.RecordCount)
	return nil
}

func runExportDevices(cmd *cobra.Command, ctx *commandContext) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	if cfg.Source.ServerDB == "" {
		return errors.New("source.server_db must be set")
	}

	store, err := serverdb.OpenReadOnly(cfg.Source.ServerDB)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := devices.Export(cmd.Context(), store)
	if err != nil {
		return err
	}

	path := cfg.ArtifactPath(devices.ArtifactName)
	meta, err := artifact.Write(path, devices.ArtifactKind, records)
	if err != nil {
		return err
	}
	printArtifactWritten(cmd.OutOrStdout(), "devices", path, meta.RecordCount)
	return nil
}

func runExportWatched(cmd *cobra.Command, ctx *commandContext) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	if err := cfg.RequireSourceStores(); err != nil {
		return err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}

	library, err := librarydb.OpenReadOnly(cfg.Source.LibraryDB)
	if err != nil {
		return err
	}
	defer library.Close()

	server, err := serverdb.OpenReadOnly(cfg.Source.ServerDB)
	if err != nil {
		return err
	}
	defer server.Close()

	runCtx := cmd.Context()
	catalog, err := library.CatalogItems(runCtx)
	if err != nil {
		return err
	}
	states, err := library.WatchStates(runCtx)
	if err != nil {
		return err
	}
	userAccounts, err := server.Accounts(runCtx)
	if err != nil {
		return err
	}

	records, stats := watched.Extract(catalog, states, userAccounts, cfg.Migration.SystemAccount)
	logger.Info("watch state extracted",
		logging.Int("catalog_items", stats.CatalogItems),
		logging.Int("watch_states", stats.WatchStates),
		logging.Int("records", stats.Records),
		logging.Int("unmatched_keys", stats.UnmatchedKeys),
		logging.Int("system_rows", stats.SystemRows))

	path := cfg.ArtifactPath(watched.ArtifactName)
	meta, err := artifact.Write(path, watched.ArtifactKind, records)
	if err != nil {
		return err
	}
	logger.Info("watch state artifact written",
		logging.String(logging.FieldArtifact, path),
		logging.Int("records", meta.RecordCount))
	printArtifactWritten(cmd.OutOrStdout(), "watched", path, meta.RecordCount)
	return nil
}

func printArtifactWritten(out io.Writer, label, path string, count int) {
	fmt.Fprintf(out, "Exported %d %s records to %s\n", count, label, path)
}
