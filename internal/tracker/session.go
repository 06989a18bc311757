package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/bryanchriswhite/FocusLog/internal/capture"
	"github.com/bryanchriswhite/FocusLog/internal/logger"
	"github.com/bryanchriswhite/FocusLog/internal/output"
	"github.com/bryanchriswhite/FocusLog/internal/window"
)

// PollInterval is how often the focused window is checked
const PollInterval = 2 * time.Second

// WindowProvider reports the focused window, or nil when nothing has focus
type WindowProvider interface {
	GetFocusedWindow() (*window.Info, error)
}

// Screenshotter returns the screen as JPEG bytes
type Screenshotter interface {
	Capture(ctx context.Context) ([]byte, error)
}

// CaptionedScreenshotter can label a screenshot with the dwell it belongs to
type CaptionedScreenshotter interface {
	CaptureCaptioned(ctx context.Context, caption string) ([]byte, error)
}

// Publisher delivers messages to the display surface
type Publisher interface {
	Send(msg output.Message) error
}

// Sink receives activity log lines. Implementations must not panic.
type Sink interface {
	Info(msg, data string)
	Error(msg string, err error)
}

// Snapshot is the tracked window as seen from outside the loop
type Snapshot struct {
	Window       Descriptor `json:"window"`
	Since        time.Time  `json:"since"`
	DwellSeconds int64      `json:"dwell_seconds"`
	Events       uint64     `json:"events"`
}

// Session owns the tracked state and drives one tick at a time
type Session struct {
	provider WindowProvider
	shots    Screenshotter
	out      Publisher
	sink     Sink

	now      func() time.Time
	interval time.Duration

	mu     sync.RWMutex
	state  State
	events uint64
}

// Option configures a Session
type Option func(*Session)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// WithInterval overrides PollInterval
func WithInterval(d time.Duration) Option {
	return func(s *Session) {
		s.interval = d
	}
}

// NewSession creates a session. shots and out may be nil: dwells are then
// logged without a screenshot or without being published.
func NewSession(provider WindowProvider, shots Screenshotter, out Publisher, sink Sink, opts ...Option) *Session {
	s := &Session{
		provider: provider,
		shots:    shots,
		out:      out,
		sink:     sink,
		now:      time.Now,
		interval: PollInterval,
	}
	if s.sink == nil {
		s.sink = nopSink{}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type nopSink struct{}

func (nopSink) Info(string, string) {}
func (nopSink) Error(string, error) {}

// Run ticks every interval until ctx is cancelled. A tick always completes
// before the next one starts; ticks that fire meanwhile are dropped.
func (s *Session) Run(ctx context.Context) error {
	log := logger.WithComponent("tracker")
	log.Info().Dur("interval", s.interval).Msg("Tracking started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Tracking stopped")
			return nil
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one poll-and-detect cycle and returns the dwell it finalized, if any.
// Panics are recovered and logged.
func (s *Session) Tick(ctx context.Context) (ev *DwellEvent) {
	defer func() {
		if r := recover(); r != nil {
			err, ok := r.(error)
			if !ok {
				err = fmt.Errorf("%v", r)
			}
			s.sink.Error("Uncaught Exception", errors.WithStack(err))
			ev = nil
		}
	}()

	info, err := s.provider.GetFocusedWindow()
	if err != nil {
		s.sink.Error("Active window tracking failed", err)
		return nil
	}
	if info == nil {
		logger.WithComponent("tracker").Debug().Msg("No focused window")
		return nil
	}

	polled := Descriptor{Title: info.Title, OwnerName: info.OwnerName}

	s.mu.RLock()
	prev := s.state
	s.mu.RUnlock()

	next, ev := DetectSwitch(prev, polled, s.now())
	if ev != nil {
		s.emit(ctx, ev)
	}

	if prev.Current == nil || ev != nil {
		s.sink.Info("Switched window", fmt.Sprintf("App=%s, Title=%s", polled.OwnerName, polled.Title))

		s.mu.Lock()
		s.state = next
		if ev != nil {
			s.events++
		}
		s.mu.Unlock()
	}

	return ev
}

func (s *Session) emit(ctx context.Context, ev *DwellEvent) {
	data, err := s.screenshot(ctx, fmt.Sprintf("%s - %s (%ds)", ev.OwnerName, ev.Title, ev.DurationSeconds))
	if err != nil {
		s.sink.Error("Screenshot failed", err)
	} else {
		ev.Screenshot = capture.DataURI(data)
	}

	if s.out != nil {
		msg := output.NewDwellMessage(ev.OwnerName, ev.Title, ev.DurationSeconds, ev.Screenshot)
		if err := s.out.Send(msg); err != nil {
			logger.WithComponent("tracker").Warn().Err(err).Msg("Failed to publish dwell")
		}
	}

	details := fmt.Sprintf("App=%s, Title=%s, Duration=%ds", ev.OwnerName, ev.Title, ev.DurationSeconds)
	if ev.Screenshot != "" {
		s.sink.Info("Captured screenshot", details)
	} else {
		s.sink.Info("Dwell finalized", details)
	}
}

func (s *Session) screenshot(ctx context.Context, caption string) ([]byte, error) {
	if s.shots == nil {
		return nil, capture.ErrNoCapturer
	}

	var (
		data []byte
		err  error
	)
	if captioned, ok := s.shots.(CaptionedScreenshotter); ok {
		data, err = captioned.CaptureCaptioned(ctx, caption)
	} else {
		data, err = s.shots.Capture(ctx)
	}
	if err != nil {
		return nil, err
	}
	if err := capture.ValidateJPEG(data); err != nil {
		return nil, err
	}
	return data, nil
}

// Snapshot returns the tracked window and its dwell so far
func (s *Session) Snapshot() (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state.Current == nil {
		return Snapshot{Events: s.events}, false
	}

	return Snapshot{
		Window:       *s.state.Current,
		Since:        s.state.Since,
		DwellSeconds: DwellSeconds(s.state.Since, s.now()),
		Events:       s.events,
	}, true
}
