// Package models contains the domain models for the application.
package models

import (
	"fmt"
	"time"
)

// StartSource records how a watering run was initiated.
type StartSource string

const (
	StartedByManual    StartSource = "manual"
	StartedByScheduled StartSource = "scheduled"
)

// Schedule is the weekly watering schedule for a single zone.
type Schedule struct {
	// Days holds weekday numbers, 0 = Monday through 6 = Sunday.
	// An empty set never triggers automatically.
	Days            []int  `json:"days"`
	StartTime       string `json:"start_time"` // "15:04", 24-hour
	DurationMinutes int    `json:"duration_minutes"`
	Enabled         bool   `json:"enabled"`
}

// Duration limits for a single watering run, in minutes.
const (
	MinDurationMinutes = 1
	MaxDurationMinutes = 180
)

// Validate checks the schedule fields against their allowed ranges.
func (s Schedule) Validate() error {
	if s.DurationMinutes < MinDurationMinutes || s.DurationMinutes > MaxDurationMinutes {
		return fmt.Errorf("duration_minutes must be between %d and %d, got %d",
			MinDurationMinutes, MaxDurationMinutes, s.DurationMinutes)
	}
	for _, d := range s.Days {
		if d < 0 || d > 6 {
			return fmt.Errorf("day %d out of range 0-6", d)
		}
	}
	if _, err := time.Parse("15:04", s.StartTime); err != nil {
		return fmt.Errorf("start_time %q is not HH:MM", s.StartTime)
	}
	return nil
}

// RunsOn reports whether the schedule includes the given weekday.
func (s Schedule) RunsOn(day time.Weekday) bool {
	for _, d := range s.Days {
		if d == mondayIndexed(day) {
			return true
		}
	}
	return false
}

// MatchesAt reports whether t falls inside the schedule's trigger window:
// the weekday is in the day set and the minute-of-day equals the start
// minute. The Enabled flag is deliberately not consulted here.
func (s Schedule) MatchesAt(t time.Time) bool {
	if !s.RunsOn(t.Weekday()) {
		return false
	}
	start, err := time.Parse("15:04", s.StartTime)
	if err != nil {
		return false
	}
	return t.Hour()*60+t.Minute() == start.Hour()*60+start.Minute()
}

// mondayIndexed converts time.Weekday (Sunday=0) to the stored
// Monday=0..Sunday=6 numbering.
func mondayIndexed(day time.Weekday) int {
	return (int(day) + 6) % 7
}

// Zone represents one watering circuit: a relay output plus its schedule.
type Zone struct {
	Name     string   `json:"name"`
	GPIOPin  int      `json:"gpio_pin"` // BCM numbering
	Schedule Schedule `json:"schedule"`

	// Runtime state, owned by the execution controller. Never persisted.
	Active      bool        `json:"active"`
	ActiveUntil *time.Time  `json:"active_until,omitempty"`
	StartedBy   StartSource `json:"started_by,omitempty"`
	RunID       string      `json:"run_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Zone name length limits, matching the API contract.
const (
	MinZoneNameLen = 1
	MaxZoneNameLen = 50
)

// GPIO pin range for the Raspberry Pi header (BCM numbering).
const (
	MinGPIOPin = 0
	MaxGPIOPin = 27
)

// ValidateDefinition checks the zone's immutable fields on creation.
func (z Zone) ValidateDefinition() error {
	if len(z.Name) < MinZoneNameLen || len(z.Name) > MaxZoneNameLen {
		return fmt.Errorf("zone name must be %d-%d characters", MinZoneNameLen, MaxZoneNameLen)
	}
	if z.GPIOPin < MinGPIOPin || z.GPIOPin > MaxGPIOPin {
		return fmt.Errorf("gpio_pin must be between %d and %d, got %d", MinGPIOPin, MaxGPIOPin, z.GPIOPin)
	}
	return nil
}

// ZoneSummary is a minimal zone representation for status views.
type ZoneSummary struct {
	Name   string `json:"name"`
	Active bool   `json:"active"`
}
