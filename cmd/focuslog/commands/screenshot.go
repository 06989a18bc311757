package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/FocusLog/internal/capture"
	"github.com/bryanchriswhite/FocusLog/internal/logger"
)

var screenshotCmd = &cobra.Command{
	Use:   "screenshot",
	Short: "Capture the screen once",
	Long: `Capture the screen through the same pipeline serve uses for dwells.

Without --output the JPEG is printed to stdout as a data URI.`,
	Example: `  # Print a data URI
  focuslog screenshot

  # Write a JPEG file at half size
  focuslog config set screenshot.scale 0.5
  focuslog screenshot --output shot.jpg`,
	Args: cobra.NoArgs,
	RunE: runScreenshot,
}

var screenshotOutput string

func init() {
	rootCmd.AddCommand(screenshotCmd)

	screenshotCmd.Flags().StringVarP(&screenshotOutput, "output", "o", "", "write the JPEG to this file instead of stdout")
}

func runScreenshot(cmd *cobra.Command, args []string) error {
	configMgr, err := loadConfig()
	if err != nil {
		return err
	}

	capturer, err := capture.Open()
	if err != nil {
		return err
	}
	defer capturer.Stop()

	shots := capture.NewScreenshotter(capturer, screenshotOptions(configMgr.Get()))
	data, err := shots.Capture(context.Background())
	if err != nil {
		return fmt.Errorf("screenshot failed: %w", err)
	}

	if screenshotOutput == "" {
		fmt.Fprintln(cmd.OutOrStdout(), capture.DataURI(data))
		return nil
	}

	if err := os.WriteFile(screenshotOutput, data, 0644); err != nil {
		return fmt.Errorf("failed to write screenshot: %w", err)
	}
	logger.WithComponent("screenshot").Info().
		Str("path", screenshotOutput).
		Int("bytes", len(data)).
		Msg("Screenshot saved")
	return nil
}
