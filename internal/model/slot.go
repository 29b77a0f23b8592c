package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SlotStatus is the server-side status of a slot.
type SlotStatus string

const (
	StatusAvailable SlotStatus = "AVAILABLE"
	StatusBooked    SlotStatus = "BOOKED"
)

// DateLayout is the calendar date format used on the wire.
const DateLayout = "2006-01-02"

// ScheduleSlot is one bookable interval for one resource on one date.
type ScheduleSlot struct {
	ResourceID    string     `json:"courtId"`
	Date          time.Time  `json:"date"`
	StartTime     string     `json:"startTime"` // "09:00"
	EndTime       string     `json:"endTime"`   // "10:00"
	Status        SlotStatus `json:"status"`
	Price         float64    `json:"price"`
	OriginalPrice float64    `json:"originalPrice"`
	PromotionName string     `json:"promotionName,omitempty"`
	IsPastSlot    bool       `json:"isPastSlot"`
	IsAvailable   bool       `json:"isAvailable"`
	DisplayTime   string     `json:"displayTime"`
}

// SlotKey identifies a slot within a selection.
type SlotKey struct {
	ResourceID string
	StartTime  string
	EndTime    string
}

// Key returns the (resource, start, end) identity of the slot.
func (s *ScheduleSlot) Key() SlotKey {
	return SlotKey{ResourceID: s.ResourceID, StartTime: s.StartTime, EndTime: s.EndTime}
}

// StartMinutes returns minutes since midnight of the start time, or -1 when unparsable.
func (s *ScheduleSlot) StartMinutes() int {
	m, err := ClockMinutes(s.StartTime)
	if err != nil {
		return -1
	}
	return m
}

// ClockMinutes parses "HH:MM" (seconds are ignored) into minutes since midnight.
func ClockMinutes(clock string) (int, error) {
	parts := strings.Split(strings.TrimSpace(clock), ":")
	if len(parts) < 2 {
		return 0, fmt.Errorf("invalid time format: %s", clock)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 24 {
		return 0, fmt.Errorf("invalid hour: %s", clock)
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute: %s", clock)
	}

	return hour*60 + minute, nil
}

// FormatClock renders a "15:04" string; values that parse are normalised to HH:MM.
func FormatClock(clock string) string {
	m, err := ClockMinutes(clock)
	if err != nil {
		return clock
	}
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// SameDay reports whether a and b fall on the same calendar day in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.Local
	}
	a, b = a.In(loc), b.In(loc)
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// StartOfDay returns midnight of t in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// EndOfDay returns the last representable instant of t's day in loc.
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	return StartOfDay(t, loc).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// Selection maps a resource id to its selected slots ordered by start time.
// A resource key never maps to an empty list.
type Selection map[string][]ScheduleSlot

// Clone returns a deep copy of the selection.
func (s Selection) Clone() Selection {
	out := make(Selection, len(s))
	for id, slots := range s {
		out[id] = append([]ScheduleSlot(nil), slots...)
	}
	return out
}

// Len returns the total number of selected slots.
func (s Selection) Len() int {
	n := 0
	for _, slots := range s {
		n += len(slots)
	}
	return n
}

// IsEmpty reports whether no slot is selected.
func (s Selection) IsEmpty() bool {
	return s.Len() == 0
}
