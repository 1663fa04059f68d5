// Package reminder computes when the next skin-check reminder is due and
// registers it with a notification backend.
package reminder

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidSchedule = errors.New("reminder: invalid schedule")

type Unit string

const (
	Days   Unit = "days"
	Weeks  Unit = "weeks"
	Months Unit = "months"
)

// Occurrence picks the day within a month for monthly reminders.
type Occurrence int

const (
	ByDay  Occurrence = iota // Target is a day of the month
	First                    // Target is a weekday, first in the month
	Second
	Third
	Fourth
	Last
)

// Schedule is the user's reminder preference.
type Schedule struct {
	Enabled    bool       `json:"enabled"`
	Interval   int        `json:"interval"`
	Unit       Unit       `json:"unit"`
	Target     int        `json:"target"`
	Occurrence Occurrence `json:"occurrence"`
	Time       string     `json:"time"` // HH:MM, local
}

// Default is a monthly reminder on the 1st at 09:00, disabled.
func Default() Schedule {
	return Schedule{Interval: 1, Unit: Months, Target: 1, Occurrence: ByDay, Time: "09:00"}
}

func (s Schedule) clock() (hour, minute int, err error) {
	t, err := time.Parse("15:04", s.Time)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: time %q", ErrInvalidSchedule, s.Time)
	}
	return t.Hour(), t.Minute(), nil
}

// Validate checks ranges for the schedule's unit.
func (s Schedule) Validate() error {
	if s.Interval < 1 {
		return fmt.Errorf("%w: interval %d", ErrInvalidSchedule, s.Interval)
	}
	if _, _, err := s.clock(); err != nil {
		return err
	}
	weekday := func() error {
		if s.Target < 0 || s.Target > 6 {
			return fmt.Errorf("%w: weekday %d", ErrInvalidSchedule, s.Target)
		}
		return nil
	}
	switch s.Unit {
	case Days:
		return nil
	case Weeks:
		return weekday()
	case Months:
		if s.Occurrence < ByDay || s.Occurrence > Last {
			return fmt.Errorf("%w: occurrence %d", ErrInvalidSchedule, s.Occurrence)
		}
		if s.Occurrence != ByDay {
			return weekday()
		}
		if s.Target < 1 || s.Target > 31 {
			return fmt.Errorf("%w: day of month %d", ErrInvalidSchedule, s.Target)
		}
		return nil
	default:
		return fmt.Errorf("%w: unit %q", ErrInvalidSchedule, s.Unit)
	}
}

// Next returns the first fire time strictly after now, in now's location.
func (s Schedule) Next(now time.Time) (time.Time, error) {
	if err := s.Validate(); err != nil {
		return time.Time{}, err
	}
	hour, minute, _ := s.clock()
	loc := now.Location()
	at := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, hour, minute, 0, 0, loc)
	}
	y, m, d := now.Date()

	switch s.Unit {
	case Days:
		next := at(y, m, d)
		if !next.After(now) {
			next = at(y, m, d+s.Interval)
		}
		return next, nil

	case Weeks:
		until := (s.Target - int(now.Weekday()) + 7) % 7
		next := at(y, m, d+until)
		if until == 0 && !next.After(now) {
			next = at(y, m, d+7*s.Interval)
		}
		return next, nil

	default:
		next := s.inMonth(y, m, at)
		if !next.After(now) {
			next = s.inMonth(y, m+time.Month(s.Interval), at)
		}
		return next, nil
	}
}

// inMonth returns the fire time within month m of year y. Months overflow
// into following years.
func (s Schedule) inMonth(y int, m time.Month, at func(int, time.Month, int) time.Time) time.Time {
	first := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	y, m = first.Year(), first.Month()
	days := daysIn(y, m)

	if s.Occurrence == ByDay {
		return at(y, m, min(s.Target, days))
	}
	want := time.Weekday(s.Target)
	if s.Occurrence == Last {
		lastDay := time.Date(y, m, days, 0, 0, 0, 0, time.UTC)
		back := (int(lastDay.Weekday()) - int(want) + 7) % 7
		return at(y, m, days-back)
	}
	offset := (int(want) - int(first.Weekday()) + 7) % 7
	return at(y, m, 1+offset+7*int(s.Occurrence-First))
}

func daysIn(y int, m time.Month) int {
	return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
