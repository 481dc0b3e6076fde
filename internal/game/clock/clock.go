// Package clock implements the logical world calendar driven by the tick loop.
//
// One tick is one unit of world time. Thirty ticks make an hour, so the
// displayed minute advances by two per tick.
package clock

import (
	"fmt"
)

const (
	// TicksPerHour is the number of ticks in one world hour.
	TicksPerHour uint64 = 30
	// HoursPerDay is the number of hours in one world day.
	HoursPerDay uint64 = 24
	// DaysPerMonth is the number of days in one world month.
	DaysPerMonth uint64 = 28
	// MonthsPerYear is the number of months in one world year.
	MonthsPerYear uint64 = 12

	ticksPerDay   = TicksPerHour * HoursPerDay
	ticksPerMonth = ticksPerDay * DaysPerMonth
	ticksPerYear  = ticksPerMonth * MonthsPerYear

	// DefaultStartTick is the tick a fresh world starts at.
	DefaultStartTick uint64 = 1_000_000_000
)

// Period subdivides a day phase or a season.
type Period string

const (
	Early Period = "Early"
	Mid   Period = "Mid"
	Late  Period = "Late"
)

// DayPhase is a coarse part of the day.
type DayPhase string

const (
	Morning DayPhase = "Morning"
	Day     DayPhase = "Day"
	Evening DayPhase = "Evening"
	Night   DayPhase = "Night"
)

// Season is a coarse part of the year.
type Season string

const (
	Winter Season = "Winter"
	Spring Season = "Spring"
	Summer Season = "Summer"
	Autumn Season = "Autumn"
)

// PhaseOfDay pairs a day phase with its period.
type PhaseOfDay struct {
	Phase  DayPhase `json:"phase"`
	Period Period   `json:"period"`
}

// SeasonOfYear pairs a season with its period.
type SeasonOfYear struct {
	Season Season `json:"season"`
	Period Period `json:"period"`
}

// Twelve equal buckets starting at midnight.
var dayPhases = [12]PhaseOfDay{
	{Night, Mid}, {Night, Late},
	{Morning, Early}, {Morning, Mid}, {Morning, Late},
	{Day, Early}, {Day, Mid}, {Day, Late},
	{Evening, Early}, {Evening, Mid}, {Evening, Late},
	{Night, Early},
}

// Indexed by month.
var seasons = [12]SeasonOfYear{
	{Winter, Mid}, {Winter, Late},
	{Spring, Early}, {Spring, Mid}, {Spring, Late},
	{Summer, Early}, {Summer, Mid}, {Summer, Late},
	{Autumn, Early}, {Autumn, Mid}, {Autumn, Late},
	{Winter, Early},
}

// Clock is a value type holding the current tick.
type Clock struct {
	Tick uint64
}

// New returns a clock positioned at tick.
func New(tick uint64) Clock { return Clock{Tick: tick} }

// Advance returns the clock one tick later.
func (c Clock) Advance() Clock { return Clock{Tick: c.Tick + 1} }

// Year returns the zero-based year.
func (c Clock) Year() uint64 { return c.Tick / ticksPerYear }

func (c Clock) tickOfYear() uint64 { return c.Tick % ticksPerYear }
func (c Clock) tickOfDay() uint64  { return c.Tick % ticksPerDay }
func (c Clock) dayOfYear() uint64  { return c.tickOfYear() / ticksPerDay }

func (c Clock) minuteOfDay() uint64 { return c.tickOfDay() * (60 / TicksPerHour) }

// Month returns the zero-based month of the year.
func (c Clock) Month() uint64 { return c.dayOfYear() / DaysPerMonth }

// Day returns the zero-based day of the month.
func (c Clock) Day() uint64 { return c.dayOfYear() % DaysPerMonth }

// Hour returns the hour of the day in [0, 23].
func (c Clock) Hour() uint64 { return c.minuteOfDay() / 60 }

// Minute returns the minute of the hour in [0, 59].
func (c Clock) Minute() uint64 { return c.minuteOfDay() % 60 }

// PhaseOfDay returns the part of the day.
func (c Clock) PhaseOfDay() PhaseOfDay {
	return dayPhases[c.tickOfDay()/(ticksPerDay/uint64(len(dayPhases)))]
}

// Season returns the part of the year.
func (c Clock) Season() SeasonOfYear {
	return seasons[c.Month()]
}

// DateTime snapshots the calendar fields of the clock.
func (c Clock) DateTime() DateTime {
	return DateTime{
		Year:     c.Year(),
		Month:    c.Month(),
		Day:      c.Day(),
		Hour:     c.Hour(),
		Minute:   c.Minute(),
		DayPhase: c.PhaseOfDay(),
		Season:   c.Season(),
	}
}

// Dump renders the clock for operational logs.
func (c Clock) Dump() string {
	p := c.PhaseOfDay()
	s := c.Season()
	return fmt.Sprintf("%02d:%02d %s %s (month: %d, year: %d, season: %s %s)",
		c.Hour(), c.Minute(), p.Period, p.Phase, c.Month(), c.Year(), s.Period, s.Season)
}

// DateTime is the calendar view of a Clock sent to clients.
type DateTime struct {
	Year     uint64       `json:"year"`
	Month    uint64       `json:"month"`
	Day      uint64       `json:"day"`
	Hour     uint64       `json:"hour"`
	Minute   uint64       `json:"minute"`
	DayPhase PhaseOfDay   `json:"dayPhase"`
	Season   SeasonOfYear `json:"season"`
}

// String renders the date and time as a short sentence.
func (d DateTime) String() string {
	return fmt.Sprintf("It is %02d:%02d, %s %s, on day %d of month %d in year %d (%s %s).",
		d.Hour, d.Minute, lower(d.DayPhase.Period), lower(d.DayPhase.Phase),
		d.Day+1, d.Month+1, d.Year, lower(d.Season.Period), lower(d.Season.Season))
}
