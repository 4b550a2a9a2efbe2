package commands

import (
	"context"
	"errors"
	"io"
	"matrusp-crawler/internal/output"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var historyLimit int

func init() {
	historyCmd.Flags().StringVar(&flags.database, "db", "", "sqlite file written by crawl --db")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to show, 0 shows all")
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Lists the runs recorded in the sqlite store, most recent first.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if config.Database == "" {
			return errors.New("no database configured, pass --db")
		}
		return history(cmd.Context(), cmd.OutOrStdout(), config.Database, historyLimit)
	},
}

func history(ctx context.Context, w io.Writer, path string, limit int) error {
	store, err := output.OpenStoreReadOnly(ctx, path)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.Runs(ctx)
	if err != nil {
		return err
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"Run", "Started", "Finished", "Units", "Discovered", "Processed"})
	shown := 0
	for _, run := range runs {
		if limit > 0 && shown >= limit {
			break
		}
		finished := "-"
		if run.FinishedAt != nil {
			finished = run.FinishedAt.Local().Format(time.DateTime)
		}
		t.AppendRow(table.Row{
			run.Id.String(),
			run.StartedAt.Local().Format(time.DateTime),
			finished,
			run.Units,
			run.Discovered,
			run.Processed,
		})
		shown++
	}
	t.Render()
	return nil
}
