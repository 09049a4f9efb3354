package main

import (
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/davsync/davsync/internal/config"
	"github.com/davsync/davsync/internal/sync"
)

func init() {
	rootCmd.AddCommand(newStoreCmd())
}

func newStoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Inspect the fingerprint store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			cmd.SilenceUsage = true

			store := sync.NewStore(cfg.StorePath)
			if err := store.Load(); err != nil {
				return err
			}

			entries := store.Entries()
			if len(entries) == 0 {
				cmd.Printf("no fingerprints recorded in %s\n", cfg.StorePath)
				return nil
			}

			keys := make([]string, 0, len(entries))
			for key := range entries {
				keys = append(keys, key)
			}
			sort.Strings(keys)

			bold := color.New(color.Bold).SprintFunc()
			cmd.Printf("%s (%s)\n", bold(cfg.StorePath), pluralize(len(keys), "record"))
			for _, key := range keys {
				fp := entries[key]
				cmd.Printf("  %-12s  %s  %s\n", fp.Hash[:min(12, len(fp.Hash))],
					humanize.Time(fp.SyncedAt), key)
			}
			return nil
		},
	}
	return cmd
}

func pluralize(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
