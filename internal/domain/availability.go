package domain

import "time"

// Slot is a candidate bookable interval of fixed duration. Slots are computed
// per request and never persisted.
type Slot struct {
	Start time.Time
	End   time.Time
}

// WorkingHours is the daily UTC window during which slots may be offered.
// The window covers [StartHour:00, EndHour:00) on every day.
type WorkingHours struct {
	StartHour int
	EndHour   int
}

var DefaultWorkingHours = WorkingHours{StartHour: 9, EndHour: 17}

func (h WorkingHours) dayWindow(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return day.Add(time.Duration(h.StartHour) * time.Hour), day.Add(time.Duration(h.EndHour) * time.Hour)
}

// Overlaps reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) intersect. The single comparison covers all three shapes:
// a starts inside b, a ends inside b, and one interval containing the other.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// ComputeFreeSlots walks the window [windowStart, windowEnd) at a fixed
// slotMinutes stride and returns, in order, every candidate slot that lies
// inside working hours and overlaps none of the active appointments in
// existing. Cancelled appointments are ignored. The result is deterministic
// for fixed inputs; a window too small for a single slot yields an empty
// sequence, not an error.
//
// A cursor that lands outside working hours does not advance linearly: it
// snaps to the window start of the current day when it falls before it, and
// to the next day's window start otherwise. Night and early-morning spans
// are skipped in one jump instead of one stride at a time.
func ComputeFreeSlots(existing []Appointment, windowStart, windowEnd time.Time, slotMinutes int, hours WorkingHours) []Slot {
	if slotMinutes <= 0 {
		return nil
	}
	stride := time.Duration(slotMinutes) * time.Minute
	cursor := windowStart.UTC()
	end := windowEnd.UTC()

	var out []Slot
	for {
		slotEnd := cursor.Add(stride)
		if slotEnd.After(end) {
			return out
		}

		dayStart, dayEnd := hours.dayWindow(cursor)
		if cursor.Before(dayStart) {
			cursor = dayStart
			continue
		}
		if slotEnd.After(dayEnd) {
			cursor = dayStart.AddDate(0, 0, 1)
			continue
		}

		if !overlapsAny(existing, cursor, slotEnd) {
			out = append(out, Slot{Start: cursor, End: slotEnd})
		}
		cursor = cursor.Add(stride)
	}
}

func overlapsAny(existing []Appointment, start, end time.Time) bool {
	for _, a := range existing {
		if !a.Status.Active() {
			continue
		}
		if Overlaps(start, end, a.StartTime.UTC(), a.EndTime.UTC()) {
			return true
		}
	}
	return false
}
