package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bryanchriswhite/FocusLog/internal/activitylog"
	"github.com/bryanchriswhite/FocusLog/internal/api"
	"github.com/bryanchriswhite/FocusLog/internal/capture"
	"github.com/bryanchriswhite/FocusLog/internal/config"
	"github.com/bryanchriswhite/FocusLog/internal/logger"
	"github.com/bryanchriswhite/FocusLog/internal/output"
	"github.com/bryanchriswhite/FocusLog/internal/tracker"
	"github.com/bryanchriswhite/FocusLog/internal/window"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start tracking the focused window",
	Long: `Start polling the focused window and serving the live dwell view.

Every switch between windows appends a line to the activity log, captures a
screenshot and pushes a tab-duration message to connected browsers.`,
	Example: `  # Start on the default port (8080)
  focuslog serve

  # Start on a custom port
  focuslog serve --port 9090

  # Start with a specific config file
  focuslog serve --config /path/to/config.yaml

  # Start with debug logging
  focuslog serve --log-level debug`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func loadConfig() (*config.Manager, error) {
	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Override port from flag if provided
	if viper.IsSet("server_port") {
		if port := viper.GetInt("server_port"); port > 0 {
			configMgr.SetPort(port)
		}
	}

	// Override log level from flag if provided
	if viper.IsSet("log_level") {
		if level := viper.GetString("log_level"); level != "" {
			configMgr.SetLogLevel(level)
		}
	}

	return configMgr, nil
}

func screenshotOptions(cfg *config.Config) capture.Options {
	return capture.Options{
		Quality: cfg.Screenshot.Quality,
		Scale:   cfg.Screenshot.Scale,
		Timeout: cfg.Screenshot.Timeout,
		Caption: cfg.Screenshot.Caption,
	}
}

func runServe(cmd *cobra.Command, args []string) (err error) {
	log := logger.WithComponent("serve")

	configMgr, err := loadConfig()
	if err != nil {
		return err
	}
	cfg := configMgr.Get()
	logger.SetLevel(cfg.LogLevel)

	log.Info().
		Str("config", configMgr.GetConfigPath()).
		Str("log_level", cfg.LogLevel).
		Msg("Configuration loaded")

	actLog, err := activitylog.Open(activitylog.DefaultDir())
	if err != nil {
		// The tracker still runs; dwells only reach the console and browsers
		log.Error().Err(err).Msg("Activity log unavailable")
	}
	defer actLog.Close()

	defer func() {
		if r := recover(); r != nil {
			perr := errors.Errorf("%v", r)
			actLog.Error("Uncaught Exception", perr)
			err = perr
		}
	}()

	actLog.Info("App started", "")
	log.Info().Str("path", actLog.Path()).Msg("Activity log ready")

	backend, err := window.NewBackend(cfg.Backend)
	if err != nil {
		actLog.Error("Active window tracking failed", err)
		return fmt.Errorf("failed to initialize window backend: %w", err)
	}
	defer backend.Close()
	if err := backend.Connect(); err != nil {
		return fmt.Errorf("failed to connect window backend: %w", err)
	}
	log.Info().Str("backend", backend.Name()).Str("display", window.DetectDisplayServer()).Msg("Window backend ready")

	capturer, err := capture.Open()
	if err != nil {
		// Dwells are still recorded, just without a screenshot
		log.Warn().Err(err).Msg("Screenshots disabled")
	} else {
		defer capturer.Stop()
	}
	shots := capture.NewScreenshotter(capturer, screenshotOptions(cfg))
	log.Info().Str("options", shots.Options().String()).Msg("Screenshot pipeline ready")

	hub := output.NewWebSocketOutput()
	if err := hub.Start(); err != nil {
		return fmt.Errorf("failed to start output: %w", err)
	}
	defer hub.Stop()

	session := tracker.NewSession(backend, shots, hub, actLog)

	configMgr.Watch(func(c *config.Config) {
		logger.SetLevel(c.LogLevel)
		shots.SetOptions(screenshotOptions(c))
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := api.NewServer(session, hub, configMgr, Version)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start(cfg.ServerPort)
	}()

	log.Info().
		Str("web_ui", fmt.Sprintf("http://localhost:%d", cfg.ServerPort)).
		Str("stream", fmt.Sprintf("ws://localhost:%d/api/events/stream", cfg.ServerPort)).
		Msg("FocusLog is running, press Ctrl+C to stop")

	go func() {
		if err := <-serverErr; err != nil {
			actLog.Error("HTTP server failed", err)
		}
		stop()
	}()

	if err := session.Run(ctx); err != nil {
		return err
	}

	log.Info().Msg("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("HTTP server shutdown")
	}

	return nil
}
