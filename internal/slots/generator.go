// Package slots expands a weekly availability definition into concrete
// bookable one-to-one slots.
package slots

import (
	"fmt"
	"sort"
	"time"
	_ "time/tzdata"

	"github.com/cohere/backend/internal/domain"
)

const minutesPerDay = 24 * 60

// Interval is a half-open [Start, End) time range.
type Interval struct {
	Start time.Time
	End   time.Time
}

func (i Interval) overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// Slot is a bookable interval inside one occurrence of a weekly window.
type Slot struct {
	Interval
	Window Interval
}

// Request describes the range and rules to generate slots for. From and To
// select calendar days in Location, both inclusive.
type Request struct {
	From            time.Time
	To              time.Time
	SessionDuration time.Duration
	Windows         []domain.WeeklyWindow
	Location        *time.Location
	NotBefore       time.Time
	Booked          []Interval
}

// Generate lays out back-to-back sessions inside every window occurrence in
// the range. Slots are computed on the local wall clock, so each one spans
// exactly SessionDuration of wall-clock time; slots whose start or end does
// not exist locally (DST gaps) are skipped.
func Generate(req Request) []Slot {
	step := int(req.SessionDuration / time.Minute)
	if step <= 0 || req.To.Before(req.From) {
		return nil
	}
	loc := req.Location
	if loc == nil {
		loc = time.UTC
	}

	first := noon(req.From.In(loc))
	last := noon(req.To.In(loc))

	var out []Slot
	seen := make(map[int64]struct{})
	for day := 0; ; day++ {
		d := time.Date(first.Year(), first.Month(), first.Day()+day, 12, 0, 0, 0, loc)
		if d.After(last) {
			break
		}
		for _, w := range req.Windows {
			if w.Weekday != d.Weekday() {
				continue
			}
			for m := w.StartMinute; m+step <= w.EndMinute; m += step {
				start, ok := wallClock(d, m, loc)
				if !ok {
					continue
				}
				end, ok := wallClock(d, m+step, loc)
				if !ok {
					continue
				}
				s := Slot{
					Interval: Interval{Start: start, End: end},
					Window: Interval{
						Start: time.Date(d.Year(), d.Month(), d.Day(), 0, w.StartMinute, 0, 0, loc),
						End:   time.Date(d.Year(), d.Month(), d.Day(), 0, w.EndMinute, 0, 0, loc),
					},
				}
				if !req.NotBefore.IsZero() && s.Start.Before(req.NotBefore) {
					continue
				}
				if isBooked(s, req.Booked) {
					continue
				}
				if _, dup := seen[s.Start.UnixNano()]; dup {
					continue
				}
				seen[s.Start.UnixNano()] = struct{}{}
				out = append(out, s)
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// Contains reports whether a slot starting at start is offered by req.
func Contains(req Request, start time.Time) (Slot, bool) {
	for _, s := range Generate(req) {
		if s.Start.Equal(start) {
			return s, true
		}
	}
	return Slot{}, false
}

// Location resolves the schedule's zone, falling back to its fixed offset.
func Location(s *domain.Schedule) *time.Location {
	if s.TimeZone != "" {
		if loc, err := time.LoadLocation(s.TimeZone); err == nil {
			return loc
		}
	}
	off := s.UTCOffsetMinutes
	sign := '+'
	if off < 0 {
		sign = '-'
		off = -off
	}
	return time.FixedZone(fmt.Sprintf("UTC%c%02d:%02d", sign, off/60, off%60), s.UTCOffsetMinutes*60)
}

// wallClock returns minute m of day d's local calendar date, and whether that
// wall-clock time actually exists in loc.
func wallClock(d time.Time, m int, loc *time.Location) (time.Time, bool) {
	t := time.Date(d.Year(), d.Month(), d.Day(), 0, m, 0, 0, loc)
	want := time.Date(d.Year(), d.Month(), d.Day()+m/minutesPerDay, 0, 0, 0, 0, time.UTC)
	if t.Year() != want.Year() || t.YearDay() != want.YearDay() {
		return t, false
	}
	return t, t.Hour()*60+t.Minute() == m%minutesPerDay
}

func noon(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 12, 0, 0, 0, t.Location())
}

func isBooked(s Slot, booked []Interval) bool {
	for _, b := range booked {
		if s.overlaps(b) {
			return true
		}
	}
	return false
}
