package sampler

import (
	"net/url"
	"strings"
)

// State is the tracking state of the sampler.
type State int

const (
	StateIdle State = iota
	StateTracking
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateTracking:
		return "tracking"
	case StatePaused:
		return "paused"
	default:
		return "idle"
	}
}

// SystemState mirrors the host's idle detector.
type SystemState string

const (
	SystemActive SystemState = "active"
	SystemIdle   SystemState = "idle"
	SystemLocked SystemState = "locked"
)

// EventKind names a browser or host callback delivered to the sampler loop.
type EventKind int

const (
	// EventTabActivated: a different tab became the foreground tab.
	EventTabActivated EventKind = iota + 1
	// EventURLUpdated: the foreground tab navigated.
	EventURLUpdated
	// EventTabClosed: the foreground tab went away and no other tab took focus.
	EventTabClosed
	// EventSystemState: the host went active, idle or locked.
	EventSystemState
	// EventEnabledChanged: the user toggled tracking.
	EventEnabledChanged
)

func (k EventKind) String() string {
	switch k {
	case EventTabActivated:
		return "tab_activated"
	case EventURLUpdated:
		return "url_updated"
	case EventTabClosed:
		return "tab_closed"
	case EventSystemState:
		return "system_state"
	case EventEnabledChanged:
		return "enabled_changed"
	}
	return "unknown"
}

// Page identifies the foreground tab.
type Page struct {
	TargetID string
	URL      string
	Title    string
	Loaded   bool
}

// Host returns the page hostname, or "" when the URL does not parse.
func (p Page) Host() string {
	u, err := url.Parse(p.URL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// Event is one state-machine input. Only the fields relevant to Kind are read.
type Event struct {
	Kind    EventKind
	Page    Page
	System  SystemState
	Enabled bool
}

// Trackable reports whether rawURL is an http(s) page rather than a browser-internal one.
func Trackable(rawURL string) bool {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// machine is the pure transition core of the sampler. It is owned by the Run loop.
type machine struct {
	state   State
	page    Page
	enabled bool
	active  bool
}

func newMachine() machine {
	return machine{state: StateIdle, enabled: true, active: true}
}

// apply folds ev into the machine and reports whether the sampling timer must be (re)started.
func (m *machine) apply(ev Event) (restart bool) {
	prev := m.state
	urlChanged := false

	switch ev.Kind {
	case EventTabActivated, EventURLUpdated:
		urlChanged = ev.Page.URL != m.page.URL || ev.Kind == EventTabActivated
		m.page = ev.Page
	case EventTabClosed:
		m.page = Page{}
	case EventSystemState:
		m.active = ev.System == SystemActive
	case EventEnabledChanged:
		m.enabled = ev.Enabled
	}

	m.state = m.target()
	if m.state != StateTracking {
		return false
	}
	return prev != StateTracking || urlChanged
}

func (m *machine) target() State {
	switch {
	case !m.enabled:
		return StateIdle
	case !m.active:
		return StatePaused
	case Trackable(m.page.URL):
		return StateTracking
	}
	return StateIdle
}
