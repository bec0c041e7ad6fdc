package commands

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/spherical/redact-edge/cmd/redact-edge/ui"
	"github.com/spherical/redact-edge/internal/journal"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List recorded batch runs, or the events of one run",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to list")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	if j == nil {
		return fmt.Errorf("the journal is disabled")
	}
	defer j.Close()

	ctx := cmd.Context()
	if len(args) == 0 {
		runs, err := j.Runs(ctx, historyLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			ui.Info("No runs recorded in %s", appCfg.Journal.Path)
			return nil
		}
		rows := make([][]string, len(runs))
		for i, r := range runs {
			rows[i] = []string{
				r.ID,
				r.StartedAt.Local().Format(time.DateTime),
				r.Status,
				fmt.Sprintf("%d/%d", r.Processed, r.Total),
				fmt.Sprintf("%d", r.Failed),
			}
		}
		ui.Table([]string{"Run", "Started", "Status", "Processed", "Failed"}, rows)
		return nil
	}

	run, err := j.Run(ctx, args[0])
	if errors.Is(err, journal.ErrNotFound) {
		return fmt.Errorf("no run %s", args[0])
	}
	if err != nil {
		return err
	}
	events, err := j.Events(ctx, run.ID)
	if err != nil {
		return err
	}

	ui.Section("Run " + run.ID)
	ui.KeyValue("Status", run.Status)
	ui.KeyValue("Processed", fmt.Sprintf("%d/%d", run.Processed, run.Total))
	if run.Summary != "" {
		ui.KeyValue("Summary", run.Summary)
	}
	ui.Newline()

	rows := make([][]string, len(events))
	for i, e := range events {
		doc := ""
		if e.Document != "" {
			doc = filepath.Base(e.Document)
		}
		rows[i] = []string{e.CreatedAt.Local().Format(time.TimeOnly), string(e.Type), doc, e.Step, e.Payload}
	}
	ui.Table([]string{"Time", "Event", "Document", "Step", "Detail"}, rows)
	return nil
}
