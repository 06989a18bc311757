package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bryanchriswhite/FocusLog/internal/logger"
)

// Version is set at build time with -ldflags "-X .../commands.Version=..."
var Version = "0.1.0"

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "focuslog",
		Short: "FocusLog - Track how long each window keeps your focus",
		Long: `FocusLog watches the focused window every two seconds and records how
long you stayed on it before switching away.

Features:
  • Detect the focused window via X11 or GNOME Shell
  • Log each dwell to <Documents>/FocusLog/activity.log
  • Attach a screenshot of the screen to every dwell
  • Live web view of dwells over a websocket
  • Persistent configuration`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Console output goes to stderr so commands can print results on stdout
			logger.InitWithWriter(os.Stderr, viper.GetString("log_level"), true)
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/focuslog/config.yaml)")
	rootCmd.PersistentFlags().Int("port", 0, "server port (default is 8080)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")

	// Bind flags to viper
	viper.BindPFlag("server_port", rootCmd.PersistentFlags().Lookup("port"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}
