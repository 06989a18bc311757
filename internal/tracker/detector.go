package tracker

import "time"

// Descriptor identifies a focused window at one poll
type Descriptor struct {
	Title     string `json:"title"`
	OwnerName string `json:"owner_name"`
}

// Same reports whether both descriptors name the same window. Comparison is
// byte-exact on both fields.
func (d Descriptor) Same(other Descriptor) bool {
	return d.Title == other.Title && d.OwnerName == other.OwnerName
}

// State is the single tracked slot. Since is when Current was last set.
type State struct {
	Current *Descriptor
	Since   time.Time
}

// DwellEvent is emitted once when focus leaves a window
type DwellEvent struct {
	OwnerName       string
	Title           string
	DurationSeconds int64
	Screenshot      string
}

// DetectSwitch compares polled against state. The first poll only adopts the
// window; later changes finalize the previous window's dwell.
func DetectSwitch(state State, polled Descriptor, now time.Time) (State, *DwellEvent) {
	next := State{Current: &polled, Since: now}

	if state.Current == nil {
		return next, nil
	}
	if state.Current.Same(polled) {
		return state, nil
	}

	return next, &DwellEvent{
		OwnerName:       state.Current.OwnerName,
		Title:           state.Current.Title,
		DurationSeconds: DwellSeconds(state.Since, now),
	}
}

// DwellSeconds is the whole number of seconds between since and now, never negative
func DwellSeconds(since, now time.Time) int64 {
	d := now.Sub(since)
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}
