package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"jellybridge/internal/accounts"
	"jellybridge/internal/artifact"
	"jellybridge/internal/devices"
	"jellybridge/internal/libraries"
	"jellybridge/internal/watched"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configured instances and exported artifacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			printSummaryTable(out, "Instances", [][]string{
				{"Source library db", orUnset(cfg.Source.LibraryDB)},
				{"Source server db", orUnset(cfg.Source.ServerDB)},
				{"Source API", orUnset(cfg.Source.URL)},
				{"Destination library db", orUnset(cfg.Destination.LibraryDB)},
				{"Destination server db", orUnset(cfg.Destination.ServerDB)},
				{"Destination API", orUnset(cfg.Destination.URL)},
				{"Path rules", strconv.Itoa(len(cfg.Migration.PathRules))},
			})

			rows := make([][]string, 0, 4)
			for _, entry := range []struct {
				label string
				name  string
			}{
				{"users", accounts.ArtifactName},
				{"libraries", libraries.ArtifactName},
				{"devices", devices.ArtifactName},
				{"watched", watched.ArtifactName},
			} {
				path := cfg.ArtifactPath(entry.name)
				meta, err := artifact.ReadMeta(path)
				switch {
				case errors.Is(err, artifact.ErrMissing):
					rows = append(rows, []string{entry.label, "not exported"})
				case err != nil:
					rows = append(rows, []string{entry.label, "unreadable"})
				default:
					rows = append(rows, []string{
						entry.label,
						fmt.Sprintf("%d records (%s)", meta.RecordCount, meta.GeneratedAt),
					})
				}
			}
			printSummaryTable(out, "Artifacts", rows)
			return nil
		},
	}
}

func orUnset(value string) string {
	if value == "" {
		return "(unset)"
	}
	return value
}
