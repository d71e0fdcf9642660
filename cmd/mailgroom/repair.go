package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mailgroom/mailgroom/internal/repair"
	"github.com/mailgroom/mailgroom/internal/report"
)

func newRepairCmd() *cobra.Command {
	var (
		flagForce  bool
		flagDryRun bool
	)

	cmd := &cobra.Command{
		Use:   "repair [folder]",
		Short: "Rebuild a corrupted mailbox by draining it through a temporary folder",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			folderName := "INBOX"
			if len(args) == 1 {
				folderName = args[0]
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger, closer, err := setupLogger(cfg)
			if err != nil {
				return err
			}
			defer closer.Close()

			// Repair drives STORE and EXPUNGE itself; the dry-run
			// short-circuit lives in the repairer, not the session.
			sess, cleanup, err := connect(cfg, logger, false)
			if err != nil {
				return err
			}
			defer cleanup()

			r := repair.NewRepairer(sess, logger)
			r.Force = flagForce
			r.DryRun = flagDryRun
			r.Confirm = func() bool {
				return confirmPrompt(fmt.Sprintf("Repair will rewrite every message in %q. Continue?", folderName))
			}

			started := time.Now()
			res, runErr := r.Run(folderName)
			if res != nil {
				recorder, openErr := report.Open(cfg.Report.Database)
				if openErr != nil {
					logger.Warn("report database unavailable", "error", openErr)
				}
				defer recorder.Close()
				if recErr := recorder.RecordRepair(report.RepairRecord{
					Started:         started,
					Folder:          res.Folder,
					TempFolder:      res.TempFolder,
					CorruptionRatio: res.CorruptionRatio,
					MovedOut:        res.MovedOut,
					MovedBack:       res.MovedBack,
					VerifyRatio:     res.VerifyRatio,
					Repaired:        res.Repaired,
					Partial:         res.Partial,
					Skipped:         res.Skipped,
				}); recErr != nil {
					logger.Warn("recording repair failed", "error", recErr)
				}
				printRepair(res)
			}
			return runErr
		},
	}

	cmd.Flags().BoolVar(&flagForce, "force", false, "skip the confirmation prompt")
	cmd.Flags().BoolVarP(&flagDryRun, "dry-run", "n", false, "diagnose and report without touching the mailbox")
	return cmd
}

func printRepair(r *repair.Result) {
	switch {
	case r.Skipped:
		fmt.Printf("%s: corruption %.0f%%, below repair threshold, nothing to do\n",
			r.Folder, r.CorruptionRatio*100)
	case r.Cancelled:
		fmt.Printf("%s: repair cancelled\n", r.Folder)
	case r.Partial:
		fmt.Printf("%s: repair INCOMPLETE, %d messages remain in %s\n",
			r.Folder, r.MovedOut-r.MovedBack, r.TempFolder)
	case r.Repaired:
		fmt.Printf("%s: repaired, %d messages rewritten (verified %.0f%% readable)\n",
			r.Folder, r.MovedBack, r.VerifyRatio*100)
	default:
		fmt.Printf("%s: repair finished but verification shows %.0f%% readable\n",
			r.Folder, r.VerifyRatio*100)
	}
}
