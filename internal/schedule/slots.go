package schedule

import (
	"sort"
	"time"
)

type Reason string

const (
	ReasonPastDate       Reason = "past_date"
	ReasonDayOff         Reason = "day_off"
	ReasonNoWorkingHours Reason = "no_working_hours"
	ReasonFullyBooked    Reason = "fully_booked"
)

type Slot struct {
	Time            TimeOfDay `json:"time"`
	DurationMinutes int       `json:"durationMinutes"`
}

// Booking is the part of an existing appointment that matters for availability.
type Booking struct {
	Time      TimeOfDay
	Cancelled bool
}

type Availability struct {
	Date    Date   `json:"date"`
	Slots   []Slot `json:"slots"`
	Reason  Reason `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}

// Has reports whether a slot starting at t is in the result.
func (a Availability) Has(t TimeOfDay) bool {
	for _, s := range a.Slots {
		if s.Time == t {
			return true
		}
	}
	return false
}

// ComputeSlots lists the bookable slot start times on date. It never reads a
// clock: now must be supplied by the caller, already in the provider's zone.
func ComputeSlots(cfg Config, date Date, booked []Booking, now time.Time) Availability {
	result := Availability{Date: date, Slots: []Slot{}}
	today := DateOf(now)

	if date.Before(today) {
		result.Reason = ReasonPastDate
		result.Message = "The selected date is in the past"
		return result
	}

	day, ok := cfg.DayFor(date.Weekday())
	if !ok || !day.Enabled {
		result.Reason = ReasonDayOff
		result.Message = "The provider does not work on this day"
		return result
	}

	duration := cfg.SlotDurationMinutes
	if duration <= 0 {
		result.Reason = ReasonNoWorkingHours
		result.Message = "No working hours are configured for this day"
		return result
	}

	var candidates []TimeOfDay
	for t := day.Start; t.Add(duration) <= day.End; t = t.Add(duration) {
		if day.HasBreak() && t < *day.BreakEnd && t.Add(duration) > *day.BreakStart {
			continue
		}
		candidates = append(candidates, t)
	}
	if len(candidates) == 0 {
		result.Reason = ReasonNoWorkingHours
		result.Message = "No working hours are configured for this day"
		return result
	}

	taken := make(map[TimeOfDay]struct{}, len(booked))
	for _, b := range booked {
		if !b.Cancelled {
			taken[b.Time] = struct{}{}
		}
	}

	isToday := date == today
	nowMinute := TimeOfDayOf(now)
	for _, t := range candidates {
		if _, ok := taken[t]; ok {
			continue
		}
		if isToday && t <= nowMinute {
			continue
		}
		result.Slots = append(result.Slots, Slot{Time: t, DurationMinutes: duration})
	}

	sort.Slice(result.Slots, func(i, j int) bool {
		return result.Slots[i].Time < result.Slots[j].Time
	})

	if len(result.Slots) == 0 {
		result.Reason = ReasonFullyBooked
		if isToday {
			result.Message = "No remaining slots today"
		} else {
			result.Message = "All slots are booked for this date"
		}
	}
	return result
}
