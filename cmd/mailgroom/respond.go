package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mailgroom/mailgroom/internal/folder"
	"github.com/mailgroom/mailgroom/internal/respond"
)

func newRespondCmd() *cobra.Command {
	var (
		flagFolder string
		flagLimit  int
		flagFrom   string
	)

	cmd := &cobra.Command{
		Use:   "respond",
		Short: "Draft replies to recent unanswered messages into the Drafts folder",
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

			from := flagFrom
			if from == "" {
				from = cfg.SMTP.From
			}
			if from == "" {
				from = cfg.IMAP.Username
			}
			if from == "" {
				return fmt.Errorf("no sender identity: set --from or smtp.from")
			}

			sess, cleanup, err := connect(cfg, logger, false)
			if err != nil {
				return err
			}
			defer cleanup()

			r := respond.New(sess, folder.NewManager(sess, logger), respond.CannedGenerator{}, logger)
			res, err := r.Run(cmd.Context(), respond.Options{
				Folder:            flagFolder,
				From:              from,
				Limit:             flagLimit,
				ConversationDays:  cfg.Organize.ConversationDays,
				ConversationLimit: cfg.Organize.ConversationLimit,
			})
			if res != nil {
				fmt.Printf("scanned %d messages, %d already answered, %d drafts saved to %s\n",
					res.Scanned, res.AlreadyAnswered, res.Drafted, res.DraftsFolder)
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&flagFolder, "folder", "f", "INBOX", "folder to scan")
	cmd.Flags().IntVarP(&flagLimit, "limit", "l", 10, "max drafts per run")
	cmd.Flags().StringVar(&flagFrom, "from", "", "sender identity for drafts (default: smtp.from)")
	return cmd
}
