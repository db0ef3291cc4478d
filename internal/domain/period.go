package domain

import (
	"fmt"
	"time"
)

const (
	minRentalDuration = 30 * time.Minute
	maxRentalDuration = 90 * 24 * time.Hour

	shortTermLimit = 24 * time.Hour
	longTermStart  = 30 * 24 * time.Hour
)

// RentalPeriod is an immutable booking window. End is always strictly after
// start, at least 30 minutes and at most 90 days apart.
type RentalPeriod struct {
	start time.Time
	end   time.Time
}

// NewRentalPeriod validates and builds a rental period.
func NewRentalPeriod(start, end time.Time) (RentalPeriod, error) {
	if !end.After(start) {
		return RentalPeriod{}, fmt.Errorf("%w: end must be after start", ErrInvalidPeriod)
	}
	d := end.Sub(start)
	if d < minRentalDuration {
		return RentalPeriod{}, fmt.Errorf("%w: duration must be at least %s", ErrInvalidPeriod, minRentalDuration)
	}
	if d > maxRentalDuration {
		return RentalPeriod{}, fmt.Errorf("%w: duration must not exceed 90 days", ErrInvalidPeriod)
	}
	return RentalPeriod{start: start, end: end}, nil
}

func (p RentalPeriod) Start() time.Time        { return p.start }
func (p RentalPeriod) End() time.Time          { return p.end }
func (p RentalPeriod) Duration() time.Duration { return p.end.Sub(p.start) }

// DurationMinutes returns the window length in whole minutes.
func (p RentalPeriod) DurationMinutes() int64 {
	return int64(p.Duration() / time.Minute)
}

// DurationHours returns the window length in whole hours.
func (p RentalPeriod) DurationHours() int64 {
	return int64(p.Duration() / time.Hour)
}

// DurationDays returns the number of billable days: any started day counts
// as a full day, with a minimum of one.
func (p RentalPeriod) DurationDays() int64 {
	days := int64(p.Duration() / (24 * time.Hour))
	if p.Duration()%(24*time.Hour) != 0 {
		days++
	}
	if days < 1 {
		days = 1
	}
	return days
}

// Overlaps reports whether two periods share at least one instant. Intervals
// are closed on both ends: periods that merely touch at an endpoint overlap.
// Handovers are modeled as instantaneous, so back-to-back bookings are
// intentionally rejected by this definition.
func (p RentalPeriod) Overlaps(other RentalPeriod) bool {
	return !p.end.Before(other.start) && !p.start.After(other.end)
}

// Contains reports whether t falls within the period, endpoints included.
func (p RentalPeriod) Contains(t time.Time) bool {
	return !t.Before(p.start) && !t.After(p.end)
}

func (p RentalPeriod) HasStarted(now time.Time) bool { return now.After(p.start) }
func (p RentalPeriod) HasEnded(now time.Time) bool   { return now.After(p.end) }

// IsActive reports whether now falls within the period.
func (p RentalPeriod) IsActive(now time.Time) bool { return p.Contains(now) }

// IsShortTerm reports an hourly-scale rental, under one day.
func (p RentalPeriod) IsShortTerm() bool { return p.Duration() < shortTermLimit }

// IsLongTerm reports a rental of 30 days or more.
func (p RentalPeriod) IsLongTerm() bool { return p.Duration() >= longTermStart }
