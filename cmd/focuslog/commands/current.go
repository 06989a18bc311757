package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/FocusLog/internal/window"
)

var currentCmd = &cobra.Command{
	Use:   "current",
	Short: "Show the focused window",
	Long: `Query the window backend once and print the focused window.

This uses the same backend selection as serve (x11, gnome or auto).`,
	Example: `  # Show the focused window as text (default)
  focuslog current

  # Show the focused window as JSON
  focuslog current --format json`,
	Args: cobra.NoArgs,
	RunE: runCurrent,
}

var currentFormat string

func init() {
	rootCmd.AddCommand(currentCmd)

	currentCmd.Flags().StringVarP(&currentFormat, "format", "f", "text", "output format (text or json)")
}

func runCurrent(cmd *cobra.Command, args []string) error {
	if currentFormat != "text" && currentFormat != "json" {
		return fmt.Errorf("unsupported format: %s (use 'text' or 'json')", currentFormat)
	}

	configMgr, err := loadConfig()
	if err != nil {
		return err
	}

	backend, err := window.NewBackend(configMgr.Get().Backend)
	if err != nil {
		return fmt.Errorf("failed to initialize window backend: %w", err)
	}
	defer backend.Close()

	info, err := backend.GetFocusedWindow()
	if err != nil {
		return fmt.Errorf("failed to get focused window: %w", err)
	}

	return printWindow(cmd.OutOrStdout(), info, currentFormat)
}

func printWindow(out io.Writer, info *window.Info, format string) error {
	if format == "json" {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(info)
	}

	if info == nil {
		fmt.Fprintln(out, "No window is currently focused")
		return nil
	}

	fmt.Fprintf(out, "App:   %s\n", info.OwnerName)
	fmt.Fprintf(out, "Title: %s\n", info.Title)
	fmt.Fprintf(out, "PID:   %d\n", info.PID)
	fmt.Fprintf(out, "ID:    0x%x\n", info.ID)
	return nil
}
