package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/capstone/vsl/internal/database"
	"github.com/capstone/vsl/internal/dictionary"
	"github.com/capstone/vsl/internal/indexsync"
	"github.com/capstone/vsl/internal/search/elasticsearch"
	"github.com/capstone/vsl/schemas"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded SQL migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := openDatabase()
			if err != nil {
				return err
			}
			defer closeQuietly("database", db.Close)

			applied, err := database.Migrate(cmd.Context(), db, schemas.Migrations)
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migrations\n", len(applied))
			return nil
		},
	}
}

func newIndexCommand() *cobra.Command {
	indexCmd := &cobra.Command{
		Use:   "index",
		Short: "Search index commands",
	}
	indexCmd.AddCommand(&cobra.Command{
		Use:   "create",
		Short: "Create the search index with its analyzer and mapping",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			index := elasticsearch.NewFromConfig(cfg.Search)
			defer closeQuietly("search index", index.Close)

			if err := index.EnsureIndex(cmd.Context()); err != nil {
				return fmt.Errorf("ensure index %s: %w", cfg.Search.Index, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Index %s is ready\n", cfg.Search.Index)
			return nil
		},
	})
	return indexCmd
}

func newSeedCommand() *cobra.Command {
	var file string
	var force bool

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load dictionary entries from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := dictionary.ReadSeedFile(file)
			if err != nil {
				return fmt.Errorf("read seed file: %w", err)
			}

			_, db, err := openDatabase()
			if err != nil {
				return err
			}
			defer closeQuietly("database", db.Close)

			saved, err := dictionary.Seed(cmd.Context(), dictionary.NewDBRepository(db), entries, force)
			if err != nil {
				return fmt.Errorf("seed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d of %d entries. Run `vsl sync` to index them.\n", saved, len(entries))
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "YAML seed file")
	cmd.Flags().BoolVar(&force, "force", false, "Seed even if the dictionary already has entries")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newSyncCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Push every unsynced dictionary entry to the search index once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := openDatabase()
			if err != nil {
				return err
			}
			defer closeQuietly("database", db.Close)

			index := elasticsearch.NewFromConfig(cfg.Search)
			defer closeQuietly("search index", index.Close)

			synchronizer := indexsync.New(dictionary.NewDBRepository(db), index, indexsync.OptionsFromConfig(cfg.Sync))
			report, err := synchronizer.SyncPending(cmd.Context())
			printSyncReport(cmd.OutOrStdout(), report)
			if err != nil {
				return fmt.Errorf("sync: %w", err)
			}
			if len(report.Failed) > 0 {
				return fmt.Errorf("%d entries failed to sync", len(report.Failed))
			}
			return nil
		},
	}
}

func printSyncReport(w io.Writer, report indexsync.SyncReport) {
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)

	fmt.Fprintln(w, "Sync Summary:")
	_, _ = green.Fprintf(w, "  Synced:     %d\n", report.Synced)
	_, _ = green.Fprintf(w, "  Already:    %d\n", report.AlreadySynced)
	_, _ = yellow.Fprintf(w, "  Superseded: %d\n", report.Superseded)
	_, _ = yellow.Fprintf(w, "  Stale:      %d\n", report.Stale)
	_, _ = yellow.Fprintf(w, "  Missing:    %d\n", report.Missing)
	if len(report.Failed) > 0 {
		_, _ = red.Fprintf(w, "  Failed:     %d %v\n", len(report.Failed), report.Failed)
		return
	}
	_, _ = green.Fprintf(w, "  Failed:     0\n")
}
