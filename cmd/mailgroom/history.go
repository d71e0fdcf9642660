package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mailgroom/mailgroom/internal/report"
)

func newHistoryCmd() *cobra.Command {
	var flagLimit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent organizer runs from the report database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Report.Database == "" {
				return fmt.Errorf("no report database configured (report.database)")
			}

			recorder, err := report.Open(cfg.Report.Database)
			if err != nil {
				return err
			}
			defer recorder.Close()

			runs, err := recorder.RecentRuns(flagLimit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("no runs recorded yet")
				return nil
			}

			fmt.Printf("%-20s %-12s %9s %6s %6s %9s\n",
				"STARTED", "FOLDER", "ACCEPTED", "SPAM", "MOVED", "TOOK")
			for _, r := range runs {
				fmt.Printf("%-20s %-12s %9d %6d %6d %9s\n",
					r.Started.Local().Format("2006-01-02 15:04:05"),
					r.Folder, r.Accepted, r.SpamMoved, r.Moved,
					r.Duration.Round(time.Millisecond))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&flagLimit, "limit", "l", 20, "max runs to show")
	return cmd
}
