package main

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/banshee-data/seedline/internal/reco/monitor"
	"github.com/banshee-data/seedline/internal/reco/storage/sqlite"
)

func newReportCmd() *cobra.Command {
	var dbPath, runID, out string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarise a recorded run",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				return errors.New("--db is required")
			}
			db, err := sqlite.Open(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := cmd.Context()
			if runID == "" {
				runs, err := db.ListRuns(ctx)
				if err != nil {
					return err
				}
				if len(runs) == 0 {
					return fmt.Errorf("no runs recorded in %s", dbPath)
				}
				runID = runs[0].RunID
			}
			run, err := db.GetRun(ctx, runID)
			if err != nil {
				return err
			}
			summaries, err := db.Summarise(ctx, runID)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "run %s (%s): %d reports, %d failed\n",
				run.RunID, run.Created().Format("2006-01-02 15:04:05"), run.Events, run.FailedEvents)
			printSummaries(w, summaries)

			if out != "" {
				if err := monitor.WriteReport(out, "run "+run.RunID, summaries); err != nil {
					return err
				}
				logrus.Infof("wrote report %s", out)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database holding the runs")
	cmd.Flags().StringVar(&runID, "run", "", "Run id (defaults to the latest run)")
	cmd.Flags().StringVar(&out, "out", "", "Also write an HTML report to this file")
	return cmd
}
