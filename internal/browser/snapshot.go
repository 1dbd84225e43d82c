package browser

import "example.com/focusforge/internal/sampler"

type pageState struct {
	Page    sampler.Page
	Visible bool
	Focused bool
}

// Snapshot is the browser state observed by one poll.
type Snapshot struct {
	// Foreground is the focused visible page, else the first visible one. Zero when none.
	Foreground sampler.Page
	// Focused reports whether any page holds input focus.
	Focused bool
}

func snapshotOf(states []pageState) Snapshot {
	var snap Snapshot
	var visible *sampler.Page
	for i := range states {
		st := &states[i]
		if st.Focused {
			snap.Focused = true
		}
		if !st.Visible {
			continue
		}
		if st.Focused && snap.Foreground.TargetID == "" {
			snap.Foreground = st.Page
		}
		if visible == nil {
			visible = &st.Page
		}
	}
	if snap.Foreground.TargetID == "" && visible != nil {
		snap.Foreground = *visible
	}
	return snap
}

// diff derives the sampler events that lead from prev to next. Activity changes come first
// so a tab activated while returning from idle starts tracking immediately.
func diff(prev, next Snapshot) []sampler.Event {
	var events []sampler.Event
	if prev.Focused != next.Focused {
		state := sampler.SystemIdle
		if next.Focused {
			state = sampler.SystemActive
		}
		events = append(events, sampler.Event{Kind: sampler.EventSystemState, System: state})
	}

	prevID, nextID := prev.Foreground.TargetID, next.Foreground.TargetID
	switch {
	case nextID == "" && prevID != "":
		events = append(events, sampler.Event{Kind: sampler.EventTabClosed})
	case nextID != prevID:
		events = append(events, sampler.Event{Kind: sampler.EventTabActivated, Page: next.Foreground})
	case nextID != "" && next.Foreground.URL != prev.Foreground.URL:
		events = append(events, sampler.Event{Kind: sampler.EventURLUpdated, Page: next.Foreground})
	}
	return events
}
