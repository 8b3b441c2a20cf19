package schedule

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Parse failures are distinct so callers can re-prompt with targeted
// guidance. The messages are user-facing.
var (
	ErrNoMatch      = errors.New(`Invalid format. Please use format: "Book 10am Monday" or "Book 2:30pm Tuesday"`)
	ErrBadTime      = errors.New(`Invalid time format. Please use format: "10am" or "2:30pm"`)
	ErrOutsideHours = errors.New("Business hours are 8am - 6pm. Please choose a time within these hours.")
)

// Slot is a bookable (weekday, time) pair. Canonical is the single
// normalized representation used as the conflict-detection identity:
// "<Weekday> <h>:<mm><am|pm>" with a capitalized weekday and zero-padded
// minutes. Two input spellings that canonicalize identically are the same
// slot.
type Slot struct {
	Day       string
	Time      string
	Canonical string
}

// DayAvailability groups one business day's slots into time-of-day bands
// for presentation.
type DayAvailability struct {
	Day       string
	Date      string
	Morning   []string // 8am - 12pm
	Afternoon []string // 12pm - 4pm
	Evening   []string // 4pm - close
}

// Engine enumerates bookable slots and parses free-text booking requests.
// It is a pure function of "now"; nothing is persisted.
type Engine struct {
	openHour   int // 24h, inclusive
	closeHour  int // 24h, inclusive
	windowDays int
	excluded   map[time.Weekday]struct{}
	now        func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source. Tests use this to pin "today".
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithWindowDays overrides the rolling window length.
func WithWindowDays(days int) Option {
	return func(e *Engine) { e.windowDays = days }
}

// NewEngine creates an availability engine for the given business-hour
// window (24h clock, both ends inclusive) and excluded weekdays.
func NewEngine(openHour, closeHour int, excluded []time.Weekday, opts ...Option) *Engine {
	e := &Engine{
		openHour:   openHour,
		closeHour:  closeHour,
		windowDays: 7,
		excluded:   make(map[time.Weekday]struct{}, len(excluded)),
		now:        time.Now,
	}
	for _, day := range excluded {
		e.excluded[day] = struct{}{}
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Slots returns every bookable slot in the rolling window starting today:
// one slot per whole hour from opening to closing hour inclusive, skipping
// excluded weekdays. The snapshot is regenerated on each call.
func (e *Engine) Slots() []Slot {
	start := startOfDay(e.now())

	var slots []Slot
	for i := 0; i < e.windowDays; i++ {
		day := start.AddDate(0, 0, i)
		if _, skip := e.excluded[day.Weekday()]; skip {
			continue
		}
		dayName := day.Weekday().String()
		for hour := e.openHour; hour <= e.closeHour; hour++ {
			label := formatClock(hour, 0)
			slots = append(slots, Slot{
				Day:       dayName,
				Time:      label,
				Canonical: dayName + " " + label,
			})
		}
	}
	return slots
}

// WeeklyAvailability returns the window's business days with their slots
// grouped into morning (before 12pm), afternoon (12pm-4pm), and evening
// (4pm onward) bands.
func (e *Engine) WeeklyAvailability() []DayAvailability {
	start := startOfDay(e.now())

	var days []DayAvailability
	for i := 0; i < e.windowDays; i++ {
		day := start.AddDate(0, 0, i)
		if _, skip := e.excluded[day.Weekday()]; skip {
			continue
		}
		entry := DayAvailability{
			Day:  day.Weekday().String(),
			Date: day.Format("Jan 2"),
		}
		for hour := e.openHour; hour <= e.closeHour; hour++ {
			label := formatClock(hour, 0)
			switch {
			case hour < 12:
				entry.Morning = append(entry.Morning, label)
			case hour < 16:
				entry.Afternoon = append(entry.Afternoon, label)
			default:
				entry.Evening = append(entry.Evening, label)
			}
		}
		days = append(days, entry)
	}
	return days
}

var (
	slotPattern = regexp.MustCompile(`(?i)(\d{1,2}(:\d{2})?\s*(am|pm))\s+(monday|tuesday|wednesday|thursday|friday|saturday|sunday)`)
	timePattern = regexp.MustCompile(`(?i)^(\d{1,2})(:(\d{2}))?\s*(am|pm)$`)
)

// ParseBookingRequest extracts a slot from free-form text of the shape
// "<time><am|pm> <weekday>", e.g. "Book 10am Monday" or "2:30pm tuesday".
// The hour is converted to 24h form only for the business-hour bounds
// check; the canonical string keeps the 12-hour spelling.
func (e *Engine) ParseBookingRequest(text string) (Slot, error) {
	m := slotPattern.FindStringSubmatch(text)
	if m == nil {
		return Slot{}, ErrNoMatch
	}

	timeStr := strings.TrimSpace(m[1])
	day := strings.ToLower(m[4])

	tm := timePattern.FindStringSubmatch(timeStr)
	if tm == nil {
		return Slot{}, ErrBadTime
	}

	hour, err := strconv.Atoi(tm[1])
	if err != nil || hour < 1 || hour > 12 {
		return Slot{}, ErrBadTime
	}
	minute := 0
	if tm[3] != "" {
		minute, err = strconv.Atoi(tm[3])
		if err != nil || minute > 59 {
			return Slot{}, ErrBadTime
		}
	}
	period := strings.ToLower(tm[4])

	hour24 := hour
	if period == "pm" && hour != 12 {
		hour24 += 12
	}
	if period == "am" && hour == 12 {
		hour24 = 0
	}
	if hour24 < e.openHour || hour24 > e.closeHour {
		return Slot{}, ErrOutsideHours
	}

	dayFormatted := strings.ToUpper(day[:1]) + day[1:]
	timeFormatted := fmt.Sprintf("%d:%02d%s", hour, minute, period)

	return Slot{
		Day:       dayFormatted,
		Time:      timeFormatted,
		Canonical: dayFormatted + " " + timeFormatted,
	}, nil
}

// formatClock renders a 24h hour/minute as the canonical 12-hour label.
func formatClock(hour24, minute int) string {
	period := "am"
	hour := hour24
	switch {
	case hour24 == 0:
		hour = 12
	case hour24 == 12:
		period = "pm"
	case hour24 > 12:
		hour = hour24 - 12
		period = "pm"
	}
	return fmt.Sprintf("%d:%02d%s", hour, minute, period)
}

func startOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}
