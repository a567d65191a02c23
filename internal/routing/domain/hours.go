package domain

import "time"

// BusinessHours is the process-wide opening window in local hours.
type BusinessHours struct {
	StartHour int
	EndHour   int
	Timezone  string
}

// AlwaysOpen is the fallback used when no configuration exists.
var AlwaysOpen = BusinessHours{StartHour: 0, EndHour: 24, Timezone: "UTC"}

// IsZero reports whether the configuration is unset.
func (b BusinessHours) IsZero() bool {
	return b.StartHour == 0 && b.EndHour == 0 && b.Timezone == ""
}

// Location resolves the timezone, falling back to UTC for unknown names.
func (b BusinessHours) Location() *time.Location {
	if b.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsOpen decides whether routing may proceed at now. When closed, nextOpen is
// the absolute instant the window next opens.
//
// start == end means always open. start > end is a window that wraps past
// midnight (e.g. 22 to 6).
func IsOpen(now time.Time, cfg BusinessHours) (open bool, nextOpen time.Time) {
	if cfg.IsZero() {
		cfg = AlwaysOpen
	}
	start, end := clampHour(cfg.StartHour), clampHour(cfg.EndHour)
	if start == end || (start == 0 && end == 24) {
		return true, time.Time{}
	}

	local := now.In(cfg.Location())
	hour := local.Hour()

	if start < end {
		if hour >= start && hour < end {
			return true, time.Time{}
		}
		if hour >= end {
			return false, openingAt(local, 1, start)
		}
		return false, openingAt(local, 0, start)
	}

	// Wrapping window: closed only between end and start on the same day.
	if hour >= start || hour < end {
		return true, time.Time{}
	}
	return false, openingAt(local, 0, start)
}

func openingAt(local time.Time, dayOffset, hour int) time.Time {
	y, m, d := local.Date()
	return time.Date(y, m, d+dayOffset, hour, 0, 0, 0, local.Location()).UTC()
}

func clampHour(h int) int {
	switch {
	case h < 0:
		return 0
	case h > 24:
		return 24
	default:
		return h
	}
}
