package model

import (
	"errors"
	"time"
)

// DisplayTimeLayout is how report times are shown to people.
const DisplayTimeLayout = "2006-01-02 15:04:05"

// ErrInvalidWindow is returned when a query window has Until at or before From.
var ErrInvalidWindow = errors.New("invalid time window")

// ClockEvent is a single clock record: one clock-in and, once the user has
// left, one clock-out.
type ClockEvent struct {
	ID         int64       `json:"id"`
	UserRef    string      `json:"userRef"`
	Attributes []Attribute `json:"attributes"`
}

// Window bounds an epoch-seconds range. From is inclusive, Until is
// exclusive and zero means unbounded.
type Window struct {
	From  int64
	Until int64
}

// Validate checks that the window is not empty.
func (w Window) Validate() error {
	if w.Until != 0 && w.Until <= w.From {
		return ErrInvalidWindow
	}
	return nil
}

// Contains reports whether ts falls inside the window.
func (w Window) Contains(ts int64) bool {
	if ts < w.From {
		return false
	}
	return w.Until == 0 || ts < w.Until
}

// ClockIn returns the event's clock-in attribute. When there are several the
// one with the smallest key wins.
func (e ClockEvent) ClockIn() (Attribute, bool) {
	return e.first(KindIn)
}

// ClockOut returns the event's clock-out attribute, chosen like ClockIn.
func (e ClockEvent) ClockOut() (Attribute, bool) {
	return e.first(KindOut)
}

// IsOpen reports whether the user is still clocked in on this record.
func (e ClockEvent) IsOpen() bool {
	_, in := e.ClockIn()
	_, out := e.ClockOut()
	return in && !out
}

func (e ClockEvent) first(kind Kind) (Attribute, bool) {
	var (
		found Attribute
		ok    bool
	)
	for _, a := range e.Attributes {
		if a.Kind != kind {
			continue
		}
		if !ok || a.Key < found.Key {
			found, ok = a, true
		}
	}
	return found, ok
}

// ReportEntry is one line of a report before presentation.
type ReportEntry struct {
	EventID     int64  `json:"eventId"`
	UserRef     string `json:"userRef"`
	DisplayName string `json:"displayName,omitempty"`
	// Timestamp is epoch seconds and only meaningful when HasTimestamp is set.
	Timestamp    int64  `json:"timestamp"`
	HasTimestamp bool   `json:"hasTimestamp"`
	Extra        string `json:"extra,omitempty"`
}

// Time returns the entry timestamp as a time.Time in UTC.
func (r ReportEntry) Time() (time.Time, bool) {
	if !r.HasTimestamp {
		return time.Time{}, false
	}
	return time.Unix(r.Timestamp, 0).UTC(), true
}

// SectionKey identifies one of the report sections.
type SectionKey string

const (
	SectionCurrent SectionKey = "current"
	SectionStale   SectionKey = "stale"
	SectionRecent  SectionKey = "recent"
)

// Row is a presentation-ready table row.
type Row struct {
	DisplayName string `json:"displayName"`
	Timestamp   string `json:"timestamp"`
	EditLink    string `json:"editLink"`
}

// Section is one named table of the report. Err is set when the section's
// query failed; the other sections are unaffected.
type Section struct {
	Key          SectionKey    `json:"key"`
	Title        string        `json:"title"`
	TimeHeading  string        `json:"timeHeading"`
	EmptyMessage string        `json:"emptyMessage"`
	Entries      []ReportEntry `json:"-"`
	Rows         []Row         `json:"rows"`
	Err          error         `json:"-"`
}

// Failed reports whether the section could not be loaded.
func (s Section) Failed() bool {
	return s.Err != nil
}

// Report is the full panel: current, stale and recent sections in that order.
type Report struct {
	GeneratedAt time.Time `json:"generatedAt"`
	Sections    []Section `json:"sections"`
}

// Section returns the section with the given key.
func (r Report) Section(key SectionKey) (Section, bool) {
	for _, s := range r.Sections {
		if s.Key == key {
			return s, true
		}
	}
	return Section{}, false
}
