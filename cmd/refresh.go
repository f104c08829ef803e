/*
Copyright © 2025 Katie Mulliken <katie@mulliken.net>
*/

// The refresh command fetches each site's page and stores its text content.
//
// Features:
//   - Refresh a single site by specifying its ID.
//   - Refresh every site, or only those not refreshed in the last day.
//   - Render JS-heavy pages in headless (or headful) Chrome.
//   - Wait for a CSS selector before capturing rendered pages.
//
// Example usage:
//
//	sitesd refresh --id=0b6f... --render-js --wait-selector="main"
//	sitesd refresh --only-stale --timeout=20s
package cmd

import (
	"fmt"
	"runtime"

	"github.com/seckatie/sitesd/internal/core"
	"github.com/spf13/cobra"
)

// refreshCmd represents the refresh command
var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Fetch sites and store their text content",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRefresh(cmd)
	},
}

func runRefresh(cmd *cobra.Command) error {
	log := initLogger(cmd)

	database, err := initDB(cmd, log)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() {
		if err := database.Close(); err != nil {
			log.Warn("failed to close database", "error", err)
		}
	}()

	id, err := cmd.Flags().GetString("id")
	if err != nil {
		return fmt.Errorf("failed to read --id: %w", err)
	}
	onlyStale, err := cmd.Flags().GetBool("only-stale")
	if err != nil {
		return fmt.Errorf("failed to read --only-stale: %w", err)
	}
	opts, err := refreshOptions(cmd)
	if err != nil {
		return err
	}

	res, err := core.RunRefresh(cmd.Context(), database, log, core.RefreshRunOptions{
		ID:        id,
		OnlyStale: onlyStale,
		Options:   opts,
	})
	if err != nil {
		return err
	}
	if res.Attempted == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No sites to refresh.")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Refreshed %d site(s), skipped %d.\n", res.Succeeded, res.Skipped)
	return nil
}

// refreshOptions reads the fetch flags shared by the server and refresh
// commands.
func refreshOptions(cmd *cobra.Command) (core.RefreshOptions, error) {
	flags := cmd.Flags()
	timeout, err := flags.GetDuration(timeoutFlag(cmd))
	if err != nil {
		return core.RefreshOptions{}, fmt.Errorf("failed to read timeout: %w", err)
	}
	renderJS, err := flags.GetBool("render-js")
	if err != nil {
		return core.RefreshOptions{}, fmt.Errorf("failed to read --render-js: %w", err)
	}
	chromePath, err := flags.GetString("chrome-path")
	if err != nil {
		return core.RefreshOptions{}, fmt.Errorf("failed to read --chrome-path: %w", err)
	}
	headful, err := flags.GetBool("headful")
	if err != nil {
		return core.RefreshOptions{}, fmt.Errorf("failed to read --headful: %w", err)
	}
	// Only the refresh command has --wait-selector.
	waitSelector, _ := flags.GetString("wait-selector")

	if renderJS && chromePath == "" && runtime.GOOS == "darwin" {
		// Best-effort default for macOS.
		chromePath = "/Applications/Google Chrome.app/Contents/MacOS/Google Chrome"
	}

	return core.RefreshOptions{
		RenderJS:     renderJS,
		ChromePath:   chromePath,
		Headful:      headful,
		WaitSelector: waitSelector,
		Timeout:      timeout,
	}, nil
}

func timeoutFlag(cmd *cobra.Command) string {
	if cmd.Flags().Lookup("timeout") != nil {
		return "timeout"
	}
	return "refresh-timeout"
}

func init() {
	rootCmd.AddCommand(refreshCmd)

	refreshCmd.Flags().String("id", "", "Refresh a specific site id")
	refreshCmd.Flags().Bool("only-stale", false, "Skip sites refreshed within the last day")
	refreshCmd.Flags().Duration("timeout", core.DefaultRefreshTimeout, "Per-site refresh timeout")
	refreshCmd.Flags().String("wait-selector", "", "Optional CSS selector to wait for (useful for JS-heavy pages)")
	refreshCmd.Flags().Bool("render-js", false, "Render pages in headless Chrome before extracting text")
	refreshCmd.Flags().String("chrome-path", "", "Path to Chrome/Chromium executable")
	refreshCmd.Flags().Bool("headful", false, "Run Chrome with a visible window (not headless)")
}
