package capture

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/image/draw"

	"github.com/bryanchriswhite/FocusLog/internal/logger"
	"github.com/bryanchriswhite/FocusLog/internal/overlay"
)

const dataURIPrefix = "data:image/jpeg;base64,"

// Options control how a screenshot is encoded
type Options struct {
	Quality int
	Scale   float64
	Timeout time.Duration
	Caption bool
}

// DefaultOptions matches the default config
func DefaultOptions() Options {
	return Options{
		Quality: 80,
		Scale:   1.0,
		Timeout: 5 * time.Second,
	}
}

// Screenshotter turns raw captures into JPEG bytes
type Screenshotter struct {
	capturer Capturer

	mu   sync.RWMutex
	opts Options
}

// NewScreenshotter wraps a capturer. A nil capturer makes every Capture
// fail with ErrNoCapturer.
func NewScreenshotter(capturer Capturer, opts Options) *Screenshotter {
	return &Screenshotter{
		capturer: capturer,
		opts:     opts,
	}
}

// SetOptions replaces the encoding options for subsequent captures
func (s *Screenshotter) SetOptions(opts Options) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts = opts
}

// Options returns the current encoding options
func (s *Screenshotter) Options() Options {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.opts
}

type captureResult struct {
	img *image.RGBA
	err error
}

// Capture grabs the screen and returns it as JPEG bytes
func (s *Screenshotter) Capture(ctx context.Context) ([]byte, error) {
	return s.CaptureCaptioned(ctx, "")
}

// CaptureCaptioned is Capture with a text banner along the bottom edge.
// The caption is only drawn when Options.Caption is set.
func (s *Screenshotter) CaptureCaptioned(ctx context.Context, caption string) ([]byte, error) {
	if s == nil || s.capturer == nil {
		return nil, ErrNoCapturer
	}

	opts := s.Options()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	// Buffered so a late capture never blocks its goroutine
	results := make(chan captureResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				results <- captureResult{err: errors.Errorf("capture panicked: %v", r)}
			}
		}()
		img, err := s.capturer.CaptureScreen()
		results <- captureResult{img: img, err: err}
	}()

	var res captureResult
	select {
	case res = <-results:
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, errors.WithStack(ErrCaptureTimeout)
		}
		return nil, ctx.Err()
	}

	if res.err != nil {
		return nil, errors.Wrapf(res.err, "%s capture failed", s.capturer.Name())
	}
	if res.img == nil {
		return nil, errors.Errorf("%s capture returned no image", s.capturer.Name())
	}

	img := Downscale(res.img, opts.Scale)
	if opts.Caption && caption != "" {
		img = annotate(img, caption)
	}

	data, err := Encode(img, opts.Quality)
	if err != nil {
		return nil, err
	}

	logger.WithComponent("screenshot").Debug().
		Int("bytes", len(data)).
		Int("quality", opts.Quality).
		Float64("scale", opts.Scale).
		Msg("Encoded screenshot")

	return data, nil
}

// Encode JPEG-encodes an image and checks the result
func Encode(img image.Image, quality int) ([]byte, error) {
	if quality <= 0 || quality > 100 {
		quality = jpeg.DefaultQuality
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, errors.Wrap(err, "failed to encode JPEG")
	}

	data := buf.Bytes()
	if err := ValidateJPEG(data); err != nil {
		return nil, err
	}
	return data, nil
}

// Downscale shrinks img by scale. Scales outside (0,1) return img unchanged.
func Downscale(img image.Image, scale float64) image.Image {
	if scale <= 0 || scale >= 1 {
		return img
	}

	b := img.Bounds()
	w := int(float64(b.Dx()) * scale)
	h := int(float64(b.Dy()) * scale)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

func annotate(img image.Image, caption string) image.Image {
	rgba, ok := img.(*image.RGBA)
	if !ok {
		b := img.Bounds()
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	}

	if err := overlay.NewCaption(caption).Render(rgba); err != nil {
		logger.WithComponent("screenshot").Warn().Err(err).Msg("Failed to draw caption")
	}
	return rgba
}

// ValidateJPEG checks for the JPEG start-of-image marker
func ValidateJPEG(data []byte) error {
	if len(data) < 2 || data[0] != 0xFF || data[1] != 0xD8 {
		return errors.WithStack(ErrInvalidImage)
	}
	return nil
}

// DataURI wraps JPEG bytes as a data URI
func DataURI(data []byte) string {
	return dataURIPrefix + base64.StdEncoding.EncodeToString(data)
}

// String describes the options for log lines
func (o Options) String() string {
	return fmt.Sprintf("quality=%d scale=%.2f timeout=%s caption=%t", o.Quality, o.Scale, o.Timeout, o.Caption)
}
