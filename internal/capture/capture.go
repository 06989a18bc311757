package capture

import (
	"errors"
	"fmt"
	"image"

	"github.com/bryanchriswhite/FocusLog/internal/logger"
)

var (
	// ErrNoCapturer is returned when no capture backend could be started
	ErrNoCapturer = errors.New("no capture backend available")

	// ErrInvalidImage is returned when the encoded screenshot is not a JPEG
	ErrInvalidImage = errors.New("screenshot is not a valid JPEG")

	// ErrCaptureTimeout is returned when a capture does not finish in time
	ErrCaptureTimeout = errors.New("screenshot capture timed out")
)

// Capturer defines the interface for screen capture backends
type Capturer interface {
	// Start initializes the capturer and any required resources
	Start() error

	// Stop releases resources and stops any background processes
	Stop() error

	// CaptureScreen captures the whole default screen as an RGBA image
	CaptureScreen() (*image.RGBA, error)

	// Name returns a human-readable name for this capturer
	Name() string

	// IsAvailable checks if this capturer can be used in the current environment
	IsAvailable() bool
}

// Open starts the first capture backend that works in this session
func Open() (Capturer, error) {
	log := logger.WithComponent("capture")

	x11, err := NewX11Capturer()
	if err != nil {
		log.Warn().Err(err).Msg("X11 capturer not available")
		return nil, fmt.Errorf("%w: %v", ErrNoCapturer, err)
	}
	if err := x11.Start(); err != nil {
		x11.Stop()
		return nil, fmt.Errorf("%w: %v", ErrNoCapturer, err)
	}

	log.Info().Str("capturer", x11.Name()).Msg("Capture backend initialized")
	return x11, nil
}
