package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mailgroom/mailgroom/internal/folder"
	"github.com/mailgroom/mailgroom/internal/organize"
	"github.com/mailgroom/mailgroom/internal/report"
)

func newCleanCmd() *cobra.Command {
	var (
		flagFolder    string
		flagLimit     int
		flagSinceDays int
		flagSinceDate string
		flagDryRun    bool
	)

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Organize a mailbox: file spam, cluster the rest into category folders",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger, closer, err := setupLogger(cfg)
			if err != nil {
				return err
			}
			defer closer.Close()

			opts := organize.Options{
				Folder:    flagFolder,
				SinceDays: flagSinceDays,
				Limit:     flagLimit,
			}
			if flagSinceDate != "" {
				date, err := time.Parse("2006-01-02", flagSinceDate)
				if err != nil {
					return fmt.Errorf("invalid --since-date %q (want YYYY-MM-DD): %w", flagSinceDate, err)
				}
				opts.SinceDate = date
			}

			sess, cleanup, err := connect(cfg, logger, flagDryRun)
			if err != nil {
				return err
			}
			defer cleanup()

			recorder, err := report.Open(cfg.Report.Database)
			if err != nil {
				logger.Warn("report database unavailable", "error", err)
			}
			defer recorder.Close()

			pipeline := organize.New(sess, folder.NewManager(sess, logger), cfg.Organize, logger)
			stats, err := pipeline.Run(opts)
			if stats != nil {
				if recordErr := recorder.RecordRun(stats); recordErr != nil {
					logger.Warn("recording run failed", "error", recordErr)
				}
				printStats(stats, flagDryRun)
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&flagFolder, "folder", "f", "INBOX", "folder to organize")
	cmd.Flags().IntVarP(&flagLimit, "limit", "l", 0, "max messages to process (0 = config default)")
	cmd.Flags().IntVar(&flagSinceDays, "since-days", 0, "only messages from the last N days")
	cmd.Flags().StringVar(&flagSinceDate, "since-date", "", "only messages since YYYY-MM-DD")
	cmd.Flags().BoolVarP(&flagDryRun, "dry-run", "n", false, "log intended changes without applying them")
	return cmd
}

func printStats(s *organize.Stats, dryRun bool) {
	prefix := ""
	if dryRun {
		prefix = "[dry-run] "
	}
	fmt.Printf("%s%s: %d candidates (corruption %s, strategy %s)\n",
		prefix, s.Folder, s.Candidates, s.CorruptionLevel, s.Strategy)
	fmt.Printf("  spam filed: %d (+%d cross-matched)\n", s.SpamMoved, s.CrossSpamMoved)
	fmt.Printf("  skipped: %d short, %d active conversations\n", s.SkippedShort, s.SkippedConversation)
	fmt.Printf("  categorized: %d messages into %d clusters (%d matched, %d created)\n",
		s.Moved, s.Categories, s.CategoriesMatched, s.CategoriesCreated)
	fmt.Printf("  took %s\n", s.Duration.Round(time.Millisecond))
}
