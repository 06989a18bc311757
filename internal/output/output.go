package output

// EventTabDuration is the event name carried by dwell messages
const EventTabDuration = "tab-duration"

// DwellPayload describes how long one window held focus
type DwellPayload struct {
	App        string `json:"app"`
	Title      string `json:"title"`
	Duration   int64  `json:"duration"`
	Screenshot string `json:"screenshot,omitempty"`
}

// Message is one push to the display surface
type Message struct {
	Event   string       `json:"event"`
	Payload DwellPayload `json:"payload"`
}

// NewDwellMessage builds a tab-duration message
func NewDwellMessage(app, title string, duration int64, screenshot string) Message {
	return Message{
		Event: EventTabDuration,
		Payload: DwellPayload{
			App:        app,
			Title:      title,
			Duration:   duration,
			Screenshot: screenshot,
		},
	}
}

// Output defines the interface for display surfaces.
// This allows us to swap between different delivery methods:
// - WebSocket push to browser clients
// - in-memory recording for tests
// - etc.
type Output interface {
	// Start initializes the output mechanism
	Start() error

	// Stop cleanly shuts down the output
	Stop() error

	// Send delivers a message to the output. Delivery is fire-and-forget.
	Send(msg Message) error

	// Name returns a human-readable name for this output type
	Name() string

	// IsRunning returns true if the output is currently active
	IsRunning() bool
}
