package window

import (
	"fmt"
	"os"
	"strings"

	"github.com/bryanchriswhite/FocusLog/internal/logger"
)

// Info is what a backend knows about the focused window
type Info struct {
	ID        uint32 `json:"id"`
	Title     string `json:"title"`
	OwnerName string `json:"owner_name"`
	PID       int    `json:"pid"`
}

// Backend defines the interface for active window providers (X11, GNOME Shell, etc.)
type Backend interface {
	// Connect establishes connection to the display server
	Connect() error

	// Close closes the connection to the display server
	Close() error

	// GetFocusedWindow returns the currently focused window.
	// It returns (nil, nil) when nothing has focus.
	GetFocusedWindow() (*Info, error)

	// Name returns the backend name (e.g., "x11", "gnome")
	Name() string
}

// DetectDisplayServer reports "wayland", "x11" or "unknown" for this session
func DetectDisplayServer() string {
	sessionType := os.Getenv("XDG_SESSION_TYPE")
	waylandDisplay := os.Getenv("WAYLAND_DISPLAY")
	x11Display := os.Getenv("DISPLAY")

	if sessionType == "wayland" || waylandDisplay != "" {
		return "wayland"
	}

	if sessionType == "x11" || x11Display != "" {
		return "x11"
	}

	return "unknown"
}

func isGnomeDesktop() bool {
	desktop := strings.ToLower(os.Getenv("XDG_CURRENT_DESKTOP"))
	return strings.Contains(desktop, "gnome") || strings.Contains(desktop, "ubuntu")
}

// NewBackend opens the named backend. "auto" prefers GNOME Shell on a GNOME
// Wayland session and falls back to X11 (XWayland included).
func NewBackend(name string) (Backend, error) {
	log := logger.WithComponent("window")

	switch name {
	case "x11":
		return NewX11Backend()
	case "gnome":
		return NewGnomeBackend()
	case "auto", "":
	default:
		return nil, fmt.Errorf("unknown window backend: %s", name)
	}

	if DetectDisplayServer() == "wayland" && isGnomeDesktop() {
		b, err := NewGnomeBackend()
		if err == nil {
			log.Info().Msg("Using GNOME Shell window backend")
			return b, nil
		}
		log.Warn().Err(err).Msg("GNOME Shell backend unavailable, falling back to X11")
	}

	b, err := NewX11Backend()
	if err != nil {
		return nil, fmt.Errorf("no window backend available: %w", err)
	}
	log.Info().Msg("Using X11 window backend")
	return b, nil
}
