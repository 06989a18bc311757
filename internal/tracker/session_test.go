package tracker

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanchriswhite/FocusLog/internal/activitylog"
	"github.com/bryanchriswhite/FocusLog/internal/output"
	"github.com/bryanchriswhite/FocusLog/internal/window"
)

var jpegBytes = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 0xFF, 0xD9}

type poll struct {
	info  *window.Info
	err   error
	panic bool
}

type scriptedProvider struct {
	mu    sync.Mutex
	polls []poll
	next  int
}

func (p *scriptedProvider) GetFocusedWindow() (*window.Info, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.next >= len(p.polls) {
		return nil, nil
	}
	cur := p.polls[p.next]
	p.next++
	if cur.panic {
		panic("provider exploded")
	}
	return cur.info, cur.err
}

func focus(owner, title string) poll {
	return poll{info: &window.Info{OwnerName: owner, Title: title}}
}

type fakeShots struct {
	data  []byte
	err   error
	calls int
}

func (f *fakeShots) Capture(ctx context.Context) ([]byte, error) {
	f.calls++
	return f.data, f.err
}

type line struct {
	level string
	msg   string
	data  string
}

type recordingSink struct {
	mu    sync.Mutex
	lines []line
}

func (r *recordingSink) Info(msg, data string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line{"INFO", msg, data})
}

func (r *recordingSink) Error(msg string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line{"ERROR", msg, err.Error()})
}

func (r *recordingSink) messages(level string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, l := range r.lines {
		if l.level == level {
			out = append(out, l.msg)
		}
	}
	return out
}

type recordingPublisher struct {
	mu   sync.Mutex
	sent []output.Message
	err  error
}

func (r *recordingPublisher) Send(msg output.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return r.err
}

func (r *recordingPublisher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func runTicks(s *Session, clock *fakeClock, n int) []*DwellEvent {
	var events []*DwellEvent
	for i := 0; i < n; i++ {
		if i > 0 {
			clock.Advance(PollInterval)
		}
		if ev := s.Tick(context.Background()); ev != nil {
			events = append(events, ev)
		}
	}
	return events
}

func TestSessionScenario(t *testing.T) {
	provider := &scriptedProvider{polls: []poll{
		focus("firefox", "A"),
		focus("firefox", "A"),
		focus("kitty", "B"),
		focus("kitty", "B"),
		focus("code", "C"),
	}}
	shots := &fakeShots{data: jpegBytes}
	pub := &recordingPublisher{}
	sink := &recordingSink{}
	clock := &fakeClock{now: t0}

	s := NewSession(provider, shots, pub, sink, WithClock(clock.Now))
	events := runTicks(s, clock, 5)

	require.Len(t, events, 2)
	assert.Equal(t, "firefox", events[0].OwnerName)
	assert.Equal(t, "A", events[0].Title)
	assert.Equal(t, int64(4), events[0].DurationSeconds)
	assert.Equal(t, "kitty", events[1].OwnerName)
	assert.Equal(t, int64(4), events[1].DurationSeconds)
	assert.True(t, strings.HasPrefix(events[0].Screenshot, "data:image/jpeg;base64,"))

	require.Len(t, pub.sent, 2)
	assert.Equal(t, output.EventTabDuration, pub.sent[0].Event)
	assert.Equal(t, "A", pub.sent[0].Payload.Title)
	assert.Equal(t, int64(4), pub.sent[0].Payload.Duration)
	assert.Equal(t, events[0].Screenshot, pub.sent[0].Payload.Screenshot)

	assert.Equal(t, 2, shots.calls)
	assert.Equal(t, []string{
		"Switched window",
		"Captured screenshot",
		"Switched window",
		"Captured screenshot",
		"Switched window",
	}, sink.messages("INFO"))
	assert.Empty(t, sink.messages("ERROR"))

	snap, ok := s.Snapshot()
	require.True(t, ok)
	assert.Equal(t, Descriptor{Title: "C", OwnerName: "code"}, snap.Window)
	assert.Equal(t, uint64(2), snap.Events)
	assert.Equal(t, int64(0), snap.DwellSeconds)
}

func TestSessionFirstPollEmitsNothing(t *testing.T) {
	provider := &scriptedProvider{polls: []poll{focus("kitty", "vim")}}
	shots := &fakeShots{data: jpegBytes}
	pub := &recordingPublisher{}
	sink := &recordingSink{}

	s := NewSession(provider, shots, pub, sink)
	assert.Nil(t, s.Tick(context.Background()))

	assert.Zero(t, shots.calls)
	assert.Zero(t, pub.count())
	require.Len(t, sink.lines, 1)
	assert.Equal(t, line{"INFO", "Switched window", "App=kitty, Title=vim"}, sink.lines[0])
}

func TestSessionUnavailablePolls(t *testing.T) {
	provider := &scriptedProvider{polls: []poll{
		focus("firefox", "A"),
		{err: errors.New("permission denied")},
		{err: errors.New("permission denied")},
		{},
		{err: errors.New("BadWindow")},
		focus("firefox", "A"),
	}}
	pub := &recordingPublisher{}
	sink := &recordingSink{}
	clock := &fakeClock{now: t0}

	s := NewSession(provider, &fakeShots{data: jpegBytes}, pub, sink, WithClock(clock.Now))
	events := runTicks(s, clock, 6)

	assert.Empty(t, events)
	assert.Zero(t, pub.count())
	assert.Equal(t, []string{
		"Active window tracking failed",
		"Active window tracking failed",
		"Active window tracking failed",
	}, sink.messages("ERROR"))

	snap, ok := s.Snapshot()
	require.True(t, ok)
	assert.Equal(t, t0, snap.Since)
	assert.Equal(t, int64(10), snap.DwellSeconds)
}

func TestSessionScreenshotFailureStillEmits(t *testing.T) {
	tests := []struct {
		name  string
		shots Screenshotter
	}{
		{"provider error", &fakeShots{err: errors.New("no display")}},
		{"not a jpeg", &fakeShots{data: []byte("\x89PNG\r\n")}},
		{"empty bytes", &fakeShots{data: []byte{}}},
		{"no screenshotter", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &scriptedProvider{polls: []poll{focus("a", "1"), focus("b", "2")}}
			pub := &recordingPublisher{}
			sink := &recordingSink{}
			clock := &fakeClock{now: t0}

			s := NewSession(provider, tt.shots, pub, sink, WithClock(clock.Now))
			events := runTicks(s, clock, 2)

			require.Len(t, events, 1)
			assert.Empty(t, events[0].Screenshot)
			require.Len(t, pub.sent, 1)
			assert.Empty(t, pub.sent[0].Payload.Screenshot)
			assert.Equal(t, []string{"Screenshot failed"}, sink.messages("ERROR"))
			assert.Contains(t, sink.messages("INFO"), "Dwell finalized")
			assert.NotContains(t, sink.messages("INFO"), "Captured screenshot")
		})
	}
}

func TestSessionPublishFailureIsNotFatal(t *testing.T) {
	provider := &scriptedProvider{polls: []poll{focus("a", "1"), focus("b", "2")}}
	pub := &recordingPublisher{err: errors.New("output not running")}
	sink := &recordingSink{}
	clock := &fakeClock{now: t0}

	s := NewSession(provider, &fakeShots{data: jpegBytes}, pub, sink, WithClock(clock.Now))
	events := runTicks(s, clock, 2)

	require.Len(t, events, 1)
	assert.Contains(t, sink.messages("INFO"), "Captured screenshot")
}

func TestSessionRecoversPanics(t *testing.T) {
	provider := &scriptedProvider{polls: []poll{
		focus("a", "1"),
		{panic: true},
		focus("b", "2"),
	}}
	sink := &recordingSink{}
	clock := &fakeClock{now: t0}

	s := NewSession(provider, &fakeShots{data: jpegBytes}, nil, sink, WithClock(clock.Now))

	var events []*DwellEvent
	assert.NotPanics(t, func() { events = runTicks(s, clock, 3) })

	require.Len(t, events, 1)
	assert.Equal(t, int64(4), events[0].DurationSeconds)
	assert.Equal(t, []string{"Uncaught Exception"}, sink.messages("ERROR"))
	assert.Contains(t, sink.lines[1].data, "provider exploded")
}

func TestSessionNilSink(t *testing.T) {
	provider := &scriptedProvider{polls: []poll{focus("a", "1"), {err: errors.New("boom")}, focus("b", "2")}}
	s := NewSession(provider, nil, nil, nil)

	assert.NotPanics(t, func() {
		for i := 0; i < 3; i++ {
			s.Tick(context.Background())
		}
	})
}

func TestSnapshotEmpty(t *testing.T) {
	s := NewSession(&scriptedProvider{}, nil, nil, nil)
	snap, ok := s.Snapshot()
	assert.False(t, ok)
	assert.Equal(t, Snapshot{}, snap)
}

func TestRunStopsOnCancel(t *testing.T) {
	provider := &scriptedProvider{polls: []poll{focus("a", "1"), focus("b", "2"), focus("c", "3")}}
	pub := &recordingPublisher{}

	s := NewSession(provider, &fakeShots{data: jpegBytes}, pub, nil, WithInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return pub.count() == 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestSessionWritesActivityLog(t *testing.T) {
	dir := t.TempDir()
	log, err := activitylog.Open(dir)
	require.NoError(t, err)

	provider := &scriptedProvider{polls: []poll{
		focus("firefox", "A"),
		focus("firefox", "A"),
		focus("kitty", "B"),
	}}
	clock := &fakeClock{now: t0}

	s := NewSession(provider, &fakeShots{err: errors.New("capture unavailable")}, nil, log, WithClock(clock.Now))
	runTicks(s, clock, 3)
	require.NoError(t, log.Close())

	data, err := os.ReadFile(log.Path())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")

	require.Len(t, lines, 5)
	assert.Contains(t, lines[0], "[INFO] Log initialized")
	assert.Contains(t, lines[1], "[INFO] Switched window App=firefox, Title=A")
	assert.Contains(t, lines[2], "[ERROR] Screenshot failed")
	assert.Contains(t, lines[2], "capture unavailable")
	assert.Contains(t, lines[3], "[INFO] Dwell finalized App=firefox, Title=A, Duration=4s")
	assert.Contains(t, lines[4], "[INFO] Switched window App=kitty, Title=B")
}

type captioningShots struct {
	fakeShots
	captions []string
}

func (c *captioningShots) CaptureCaptioned(ctx context.Context, caption string) ([]byte, error) {
	c.captions = append(c.captions, caption)
	return c.Capture(ctx)
}

func TestSessionCaptionsScreenshots(t *testing.T) {
	provider := &scriptedProvider{polls: []poll{focus("kitty", "vim"), focus("kitty", "vim"), focus("firefox", "Docs")}}
	shots := &captioningShots{fakeShots: fakeShots{data: jpegBytes}}
	clock := &fakeClock{now: t0}

	s := NewSession(provider, shots, nil, nil, WithClock(clock.Now))
	runTicks(s, clock, 3)

	assert.Equal(t, []string{"kitty - vim (4s)"}, shots.captions)
	assert.Equal(t, 1, shots.calls)
}
