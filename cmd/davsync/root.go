package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/davsync/davsync/internal/config"
	"github.com/davsync/davsync/internal/sync"
	"github.com/davsync/davsync/internal/version"
	"github.com/davsync/davsync/internal/webdav"
)

var (
	configPath string
	dryRun     bool
	verbose    bool
)

var (
	green  = color.New(color.FgHiGreen).SprintFunc()
	yellow = color.New(color.FgHiYellow).SprintFunc()
	red    = color.New(color.FgHiRed, color.Bold).SprintFunc()
)

var rootCmd = &cobra.Command{
	Use:     "davsync",
	Short:   "Sync local folders to a WebDAV endpoint",
	Long:    "davsync uploads content-changed files from configured local folders\nto a WebDAV endpoint, tracked through a local fingerprint store.",
	Version: version.Detailed(),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cmd.SilenceUsage = true

		slog.Info("davsync", "version", version.Short(), "config", cfg.Path, "roots", len(cfg.Roots), "dry_run", dryRun)

		client := webdav.New(&webdav.Options{
			BaseURL:    cfg.WebDAVURL,
			Username:   cfg.Username,
			Password:   cfg.Password,
			Timeout:    cfg.Timeout,
			RetryCount: 2,
		})

		engine := sync.NewEngine(cfg, client, &sync.Options{DryRun: dryRun})
		res, err := engine.Run(cmd.Context())
		printSummary(cmd, res)

		switch {
		case err != nil && errors.Is(err, context.Canceled):
			return fmt.Errorf("sync interrupted")
		case err != nil:
			return err
		case !res.Ok():
			return fmt.Errorf("%d file(s) failed to sync", res.Failed)
		default:
			return nil
		}
	},
}

func init() {
	rootCmd.SilenceErrors = false
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the davsync config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Classify and report without uploading or persisting")
}

func printSummary(cmd *cobra.Command, res *sync.Result) {
	if res == nil {
		return
	}

	if dryRun {
		cmd.Printf("%s %d file(s) would be uploaded, %d unchanged\n",
			yellow("dry-run:"), res.Planned, res.Unchanged)
		return
	}

	cmd.Printf("%s %d uploaded (%s), %d unchanged, %d failed\n",
		green("sync:"),
		res.Uploaded, humanize.Bytes(uint64(res.UploadedBytes)),
		res.Unchanged, res.Failed)

	if res.ScanWarnings > 0 {
		cmd.Printf("%s %d entr(ies) skipped during scan, see log\n", yellow("warning:"), res.ScanWarnings)
	}

	for _, o := range res.Outcomes {
		if o.Status == sync.StatusFailed {
			cmd.Printf("%s %s: %v\n", red("failed:"), sync.Key(o.RootID, o.RelPath), o.Err)
		}
	}
}
