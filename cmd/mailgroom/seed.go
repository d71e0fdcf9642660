package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mailgroom/mailgroom/internal/config"
	"github.com/mailgroom/mailgroom/internal/seedmail"
)

func newSeedCmd() *cobra.Command {
	var (
		flagCount     int
		flagSpamRatio float64
		flagDelay     time.Duration
		flagSeed      int64
		flagTo        string
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Populate a test mailbox with generated ham and spam over SMTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.FindConfig(flagConfig)
			if err != nil {
				return err
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			if err := cfg.ValidateSMTP(); err != nil {
				return fmt.Errorf("invalid config %s: %w", path, err)
			}
			logger, closer, err := setupLogger(cfg)
			if err != nil {
				return err
			}
			defer closer.Close()

			recipient := flagTo
			if recipient == "" {
				recipient = cfg.IMAP.Username
			}
			if recipient == "" {
				return fmt.Errorf("no recipient: set --to or imap.username")
			}

			gen := seedmail.NewGenerator(recipient, flagSeed)
			batch := gen.Batch(flagCount, flagSpamRatio)
			logger.Info("generated batch", "count", len(batch), "spamRatio", flagSpamRatio)

			sender := seedmail.NewSender(cfg.SMTP, logger)
			sent, failed := sender.SendBatch(cmd.Context(), batch, flagDelay)
			fmt.Printf("sent %d, failed %d\n", sent, failed)
			if failed > 0 {
				return fmt.Errorf("%d of %d messages failed to send", failed, len(batch))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&flagCount, "count", 50, "number of emails to generate")
	cmd.Flags().Float64Var(&flagSpamRatio, "spam-ratio", 0.2, "fraction of the batch that is spam (0-1)")
	cmd.Flags().DurationVar(&flagDelay, "delay", 100*time.Millisecond, "pause between messages")
	cmd.Flags().Int64Var(&flagSeed, "seed", 0, "random seed (0 = time-based)")
	cmd.Flags().StringVar(&flagTo, "to", "", "recipient address (default: imap.username)")
	return cmd
}
