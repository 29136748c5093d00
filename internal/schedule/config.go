package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrScheduleNotFound = errors.New("schedule not found")
	ErrInvalidSchedule  = errors.New("invalid schedule")
)

// Day is the working-hours entry for a single weekday.
type Day struct {
	Enabled    bool       `json:"enabled"`
	Start      TimeOfDay  `json:"start"`
	End        TimeOfDay  `json:"end"`
	BreakStart *TimeOfDay `json:"breakStart,omitempty"`
	BreakEnd   *TimeOfDay `json:"breakEnd,omitempty"`
}

func (d Day) HasBreak() bool {
	return d.BreakStart != nil && d.BreakEnd != nil
}

// Config is a provider's weekly working-hours template. DaysOfWeek is keyed by
// lowercase English weekday name ("monday" ... "sunday").
type Config struct {
	ProviderID          uuid.UUID      `json:"providerId"`
	DaysOfWeek          map[string]Day `json:"daysOfWeek"`
	SlotDurationMinutes int            `json:"slotDurationMinutes"`
	UpdatedAt           time.Time      `json:"updatedAt"`
}

func weekdayKey(wd time.Weekday) string {
	return strings.ToLower(wd.String())
}

// DayFor returns the entry configured for wd. A missing entry is a day off.
func (c Config) DayFor(wd time.Weekday) (Day, bool) {
	d, ok := c.DaysOfWeek[weekdayKey(wd)]
	return d, ok
}

func (c *Config) SetDay(wd time.Weekday, d Day) {
	if c.DaysOfWeek == nil {
		c.DaysOfWeek = make(map[string]Day, 7)
	}
	c.DaysOfWeek[weekdayKey(wd)] = d
}

var validWeekdays = func() map[string]struct{} {
	m := make(map[string]struct{}, 7)
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		m[weekdayKey(wd)] = struct{}{}
	}
	return m
}()

// Validate enforces the write-time invariants. Schedules that fail here are
// never stored, so slot generation can trust what it reads.
func (c Config) Validate() error {
	if c.ProviderID == uuid.Nil {
		return fmt.Errorf("%w: provider id is required", ErrInvalidSchedule)
	}
	if c.SlotDurationMinutes <= 0 {
		return fmt.Errorf("%w: slotDurationMinutes must be positive", ErrInvalidSchedule)
	}
	for key, d := range c.DaysOfWeek {
		if _, ok := validWeekdays[key]; !ok {
			return fmt.Errorf("%w: unknown weekday %q", ErrInvalidSchedule, key)
		}
		if err := d.validate(c.SlotDurationMinutes); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidSchedule, key, err)
		}
	}
	return nil
}

func (d Day) validate(slotMinutes int) error {
	if (d.BreakStart == nil) != (d.BreakEnd == nil) {
		return errors.New("breakStart and breakEnd must be set together")
	}
	if !d.Enabled {
		return nil
	}
	if !d.Start.Valid() || !d.End.Valid() {
		return errors.New("start and end must be within the day")
	}
	if d.Start >= d.End {
		return errors.New("start must be before end")
	}
	if int(d.End-d.Start) < slotMinutes {
		return errors.New("working window is shorter than one slot")
	}
	if d.HasBreak() {
		bs, be := *d.BreakStart, *d.BreakEnd
		if bs < d.Start || be > d.End {
			return errors.New("break must lie within working hours")
		}
		if bs >= be {
			return errors.New("breakStart must be before breakEnd")
		}
	}
	return nil
}
