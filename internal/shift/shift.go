// Package shift converts timestamps into the fixed 12-hour shift windows
// incidents are bucketed by. Day shift runs 08:00-20:00, night shift
// 20:00-08:00, both in the plant's operating timezone.
package shift

import "time"

// Boundary hours of the two daily shifts.
const (
	DayStartHour   = 8
	NightStartHour = 20
)

// Window is a half-open interval [Start, End) covering exactly one shift.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Kind selects which window Relative resolves.
type Kind string

const (
	KindCurrent  Kind = "current"
	KindPrevious Kind = "previous"
)

// Valid reports whether the kind is one Relative understands.
func (k Kind) Valid() bool {
	return k == KindCurrent || k == KindPrevious
}

// Calculator resolves shift windows in a fixed operating timezone. It never
// consults the wall clock; callers pass the instant they care about, which
// makes it usable both for live reporting and for backfilled incidents.
type Calculator struct {
	loc *time.Location
}

// NewCalculator creates a calculator for the given operating timezone.
func NewCalculator(loc *time.Location) *Calculator {
	return &Calculator{loc: loc}
}

// Location returns the operating timezone.
func (c *Calculator) Location() *time.Location {
	return c.loc
}

// Enclosing returns the shift window containing t.
func (c *Calculator) Enclosing(t time.Time) Window {
	lt := t.In(c.loc)
	y, m, d := lt.Date()

	dayStart := time.Date(y, m, d, DayStartHour, 0, 0, 0, c.loc)
	nightStart := time.Date(y, m, d, NightStartHour, 0, 0, 0, c.loc)

	switch {
	case lt.Before(dayStart):
		// Tail of the night shift that started yesterday.
		return Window{
			Start: time.Date(y, m, d-1, NightStartHour, 0, 0, 0, c.loc),
			End:   dayStart,
		}
	case lt.Before(nightStart):
		return Window{Start: dayStart, End: nightStart}
	default:
		return Window{
			Start: nightStart,
			End:   time.Date(y, m, d+1, DayStartHour, 0, 0, 0, c.loc),
		}
	}
}

// Relative returns the current or the immediately preceding window for t.
func (c *Calculator) Relative(t time.Time, kind Kind) Window {
	current := c.Enclosing(t)
	if kind == KindCurrent {
		return current
	}
	// The previous window ends exactly where the current one starts.
	prev := c.Enclosing(current.Start.Add(-time.Second))
	prev.End = current.Start
	return prev
}
