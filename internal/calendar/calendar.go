// Package calendar decides which dates are US trading days: weekdays that
// are not a US federal holiday.
package calendar

import (
	"sync"
	"time"
)

// Holiday is a federal holiday as observed in a given year
type Holiday struct {
	Name string
	Date time.Time
}

// USFederal is the US federal holiday calendar. Fixed-date holidays that fall
// on a Saturday are observed the Friday before, on a Sunday the Monday after.
// The zero value is ready to use and safe for concurrent use.
type USFederal struct {
	mu    sync.Mutex
	cache map[int]map[string]string
}

// New returns a US federal calendar
func New() *USFederal {
	return &USFederal{}
}

// Holidays lists the holidays whose rule belongs to year, in date order.
// New Year's Day of year may be observed on December 31 of year-1.
func (c *USFederal) Holidays(year int) []Holiday {
	fixed := func(name string, month time.Month, day int) Holiday {
		return Holiday{Name: name, Date: nearestWorkday(date(year, month, day))}
	}

	holidays := []Holiday{
		fixed("New Year's Day", time.January, 1),
	}
	if year >= 1986 {
		holidays = append(holidays, Holiday{"Martin Luther King Jr. Day", nthWeekday(year, time.January, time.Monday, 3)})
	}
	holidays = append(holidays,
		Holiday{"Presidents' Day", nthWeekday(year, time.February, time.Monday, 3)},
		Holiday{"Memorial Day", lastWeekday(year, time.May, time.Monday)},
	)
	if year >= 2021 {
		holidays = append(holidays, fixed("Juneteenth", time.June, 19))
	}
	holidays = append(holidays,
		fixed("Independence Day", time.July, 4),
		Holiday{"Labor Day", nthWeekday(year, time.September, time.Monday, 1)},
		Holiday{"Columbus Day", nthWeekday(year, time.October, time.Monday, 2)},
		fixed("Veterans Day", time.November, 11),
		Holiday{"Thanksgiving Day", nthWeekday(year, time.November, time.Thursday, 4)},
		fixed("Christmas Day", time.December, 25),
	)
	return holidays
}

// IsHoliday reports whether t's calendar date is an observed federal holiday
func (c *USFederal) IsHoliday(t time.Time) bool {
	_, ok := c.HolidayName(t)
	return ok
}

// HolidayName returns the holiday observed on t's calendar date
func (c *USFederal) HolidayName(t time.Time) (string, bool) {
	key := t.Format(time.DateOnly)
	// observed dates can spill into the neighbouring year
	for _, year := range []int{t.Year(), t.Year() + 1} {
		if name, ok := c.year(year)[key]; ok {
			return name, true
		}
	}
	return "", false
}

// IsTradingDay reports whether t's calendar date is a weekday and not a holiday
func (c *USFederal) IsTradingDay(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !c.IsHoliday(t)
}

// TradingDays lists the trading days between start and end, both inclusive,
// as midnight UTC dates
func (c *USFederal) TradingDays(start, end time.Time) []time.Time {
	var days []time.Time
	for d := Truncate(start); !d.After(Truncate(end)); d = d.AddDate(0, 0, 1) {
		if c.IsTradingDay(d) {
			days = append(days, d)
		}
	}
	return days
}

func (c *USFederal) year(year int) map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cache == nil {
		c.cache = make(map[int]map[string]string)
	}
	if m, ok := c.cache[year]; ok {
		return m
	}
	m := make(map[string]string)
	for _, h := range c.Holidays(year) {
		m[h.Date.Format(time.DateOnly)] = h.Name
	}
	c.cache[year] = m
	return m
}

// Truncate returns t's calendar date at midnight UTC
func Truncate(t time.Time) time.Time {
	t = t.UTC()
	return date(t.Year(), t.Month(), t.Day())
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func nearestWorkday(d time.Time) time.Time {
	switch d.Weekday() {
	case time.Saturday:
		return d.AddDate(0, 0, -1)
	case time.Sunday:
		return d.AddDate(0, 0, 1)
	}
	return d
}

func nthWeekday(year int, month time.Month, weekday time.Weekday, n int) time.Time {
	first := date(year, month, 1)
	offset := (int(weekday) - int(first.Weekday()) + 7) % 7
	return first.AddDate(0, 0, offset+7*(n-1))
}

func lastWeekday(year int, month time.Month, weekday time.Weekday) time.Time {
	last := date(year, month+1, 0)
	offset := (int(last.Weekday()) - int(weekday) + 7) % 7
	return last.AddDate(0, 0, -offset)
}
