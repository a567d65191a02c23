package domain

import (
	"testing"
	"time"
)

func TestIsOpen(t *testing.T) {
	madrid := BusinessHours{StartHour: 9, EndHour: 21, Timezone: "Europe/Madrid"}
	loc, err := time.LoadLocation("Europe/Madrid")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	cases := []struct {
		name     string
		now      time.Time
		cfg      BusinessHours
		wantOpen bool
		wantNext time.Time
	}{
		{
			name:     "inside window",
			now:      time.Date(2026, 3, 10, 12, 30, 0, 0, loc),
			cfg:      madrid,
			wantOpen: true,
		},
		{
			name:     "opening hour is inclusive",
			now:      time.Date(2026, 3, 10, 9, 0, 0, 0, loc),
			cfg:      madrid,
			wantOpen: true,
		},
		{
			name:     "closing hour is exclusive, next opening tomorrow",
			now:      time.Date(2026, 3, 10, 21, 0, 0, 0, loc),
			cfg:      madrid,
			wantNext: time.Date(2026, 3, 11, 9, 0, 0, 0, loc),
		},
		{
			name:     "early morning opens later today",
			now:      time.Date(2026, 3, 10, 3, 15, 0, 0, loc),
			cfg:      madrid,
			wantNext: time.Date(2026, 3, 10, 9, 0, 0, 0, loc),
		},
		{
			name:     "now expressed in UTC is converted first",
			now:      time.Date(2026, 3, 10, 20, 30, 0, 0, time.UTC), // 21:30 in Madrid
			cfg:      madrid,
			wantNext: time.Date(2026, 3, 11, 9, 0, 0, 0, loc),
		},
		{
			name:     "missing configuration is always open",
			now:      time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC),
			cfg:      BusinessHours{},
			wantOpen: true,
		},
		{
			name:     "wrapping window open after start",
			now:      time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC),
			cfg:      BusinessHours{StartHour: 22, EndHour: 6, Timezone: "UTC"},
			wantOpen: true,
		},
		{
			name:     "wrapping window closed midday",
			now:      time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
			cfg:      BusinessHours{StartHour: 22, EndHour: 6, Timezone: "UTC"},
			wantNext: time.Date(2026, 3, 10, 22, 0, 0, 0, time.UTC),
		},
		{
			name:     "unknown timezone falls back to UTC",
			now:      time.Date(2026, 3, 10, 7, 0, 0, 0, time.UTC),
			cfg:      BusinessHours{StartHour: 8, EndHour: 18, Timezone: "Mars/Olympus"},
			wantNext: time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			open, next := IsOpen(tc.now, tc.cfg)
			if open != tc.wantOpen {
				t.Fatalf("open = %v, want %v", open, tc.wantOpen)
			}
			if tc.wantOpen {
				if !next.IsZero() {
					t.Fatalf("open window returned next = %v", next)
				}
				return
			}
			if !next.Equal(tc.wantNext) {
				t.Fatalf("next = %v, want %v", next, tc.wantNext)
			}
			if !next.After(tc.now) {
				t.Fatalf("next opening %v is not after now %v", next, tc.now)
			}
		})
	}
}

func TestIsOpenAcrossDSTChange(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Madrid")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// 2026-03-29 is the spring-forward day in Europe.
	now := time.Date(2026, 3, 28, 22, 0, 0, 0, loc)
	_, next := IsOpen(now, BusinessHours{StartHour: 9, EndHour: 21, Timezone: "Europe/Madrid"})

	want := time.Date(2026, 3, 29, 9, 0, 0, 0, loc)
	if !next.Equal(want) {
		t.Fatalf("next = %v, want %v", next.In(loc), want)
	}
}
