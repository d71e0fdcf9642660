// Command mailgroom organizes a cluttered IMAP mailbox: it files spam,
// clusters the rest into category folders, repairs corrupted mailboxes,
// and can seed a test account or draft replies.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mailgroom/mailgroom/internal/buildinfo"
)

var (
	flagConfig  string
	flagVerbose bool
	flagTrace   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "mailgroom",
		Short:        "Resilient IMAP mailbox organizer",
		Version:      buildinfo.String(),
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagTrace, "trace", false, "wire-level IMAP protocol logging")

	rootCmd.AddCommand(newCleanCmd())
	rootCmd.AddCommand(newRepairCmd())
	rootCmd.AddCommand(newSeedCmd())
	rootCmd.AddCommand(newRespondCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newInitCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// confirmPrompt asks the user a yes/no question on the terminal.
func confirmPrompt(question string) bool {
	fmt.Printf("%s [y/N]: ", question)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
