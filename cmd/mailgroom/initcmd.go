package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mailgroom/mailgroom/internal/defaults"
)

func newInitCmd() *cobra.Command {
	var flagDir string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := flagDir
			if dir == "" {
				home, err := os.UserHomeDir()
				if err != nil {
					return fmt.Errorf("resolve home directory: %w", err)
				}
				dir = filepath.Join(home, ".config", "mailgroom")
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create %s: %w", dir, err)
			}

			path := filepath.Join(dir, "config.yaml")
			if _, err := os.Stat(path); err == nil {
				fmt.Printf("%s already exists, leaving it alone\n", path)
				return nil
			}
			if err := os.WriteFile(path, defaults.ConfigYAML, 0o600); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			fmt.Printf("wrote %s\nEdit it and set your IMAP credentials.\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&flagDir, "dir", "", "target directory (default: ~/.config/mailgroom)")
	return cmd
}
