package schedule

import (
	"fmt"
	"strings"
	"time"
)

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func Validate(s Schedule) error {
	switch s.Kind {
	case KindMonthly:
		if s.DayOfMonth < 1 || s.DayOfMonth > 31 {
			return fmt.Errorf("%w: dayOfMonth must be 1..31", ErrInvalidSchedule)
		}
	case KindSemiMonthly:
		if s.FirstCutoffDay < 1 || s.FirstCutoffDay > 15 {
			return fmt.Errorf("%w: firstCutoffDay must be 1..15", ErrInvalidSchedule)
		}
		if s.LastCutoffDay < 16 || s.LastCutoffDay > 28 {
			return fmt.Errorf("%w: lastCutoffDay must be 16..28", ErrInvalidSchedule)
		}
	case KindWeekly:
		if _, ok := weekdays[strings.ToLower(s.CutoffWeekday)]; !ok {
			return fmt.Errorf("%w: unknown weekday %q", ErrInvalidSchedule, s.CutoffWeekday)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidSchedule, s.Kind)
	}
	if s.ReleaseOffsetDays < 0 {
		return fmt.Errorf("%w: releaseOffsetDays must not be negative", ErrInvalidSchedule)
	}
	return nil
}

// GeneratePeriods computes count consecutive cutoff windows, newest first,
// starting from the window that contains referenceDate. It is pure: the same
// schedule and reference date always produce the same periods.
func GeneratePeriods(s Schedule, referenceDate time.Time, count int) ([]Period, error) {
	if err := Validate(s); err != nil {
		return nil, err
	}
	if count <= 0 {
		count = DefaultGenerateCount
	}
	ref := dateOnly(referenceDate)

	var periods []Period
	switch s.Kind {
	case KindMonthly:
		periods = monthlyPeriods(s, ref, count)
	case KindSemiMonthly:
		periods = semiMonthlyPeriods(s, ref, count)
	case KindWeekly:
		periods = weeklyPeriods(s, ref, count)
	}

	for i := range periods {
		periods[i].ID = PeriodID(s.ID, periods[i].StartDate, periods[i].EndDate)
		periods[i].ScheduleID = s.ID
		periods[i].ReleaseDate = periods[i].EndDate.AddDate(0, 0, s.ReleaseOffsetDays)
		periods[i].Status = StatusTimekeeping
	}
	return periods, nil
}

// PeriodID derives the deterministic period identifier from the schedule and
// the inclusive window bounds.
func PeriodID(scheduleID string, start, end time.Time) string {
	return scheduleID + "-" + start.Format("20060102") + "-" + end.Format("20060102")
}

func monthlyPeriods(s Schedule, ref time.Time, count int) []Period {
	end := anchorInMonth(ref.Year(), ref.Month(), s.DayOfMonth)
	if end.Before(ref) {
		end = anchorInMonth(ref.Year(), ref.Month()+1, s.DayOfMonth)
	}

	periods := make([]Period, 0, count)
	for i := 0; i < count; i++ {
		// Step months through anchorInMonth rather than AddDate: on a
		// clamped anchor like Mar 31, AddDate(0, -1, 0) normalizes Feb 31
		// back into March and the walk would stall.
		prevAnchor := anchorInMonth(end.Year(), end.Month()-1, s.DayOfMonth)
		periods = append(periods, Period{
			StartDate:  prevAnchor.AddDate(0, 0, 1),
			EndDate:    end,
			PeriodType: PeriodLast,
		})
		end = prevAnchor
	}
	return periods
}

func semiMonthlyPeriods(s Schedule, ref time.Time, count int) []Period {
	end := nextSemiMonthlyAnchor(s, ref)
	periods := make([]Period, 0, count)
	for i := 0; i < count; i++ {
		prevAnchor := prevSemiMonthlyAnchor(s, end)
		periods = append(periods, Period{
			StartDate:  prevAnchor.AddDate(0, 0, 1),
			EndDate:    end,
			PeriodType: ClassifySemiMonthly(end.Day(), s.FirstCutoffDay, s.LastCutoffDay),
		})
		end = prevAnchor
	}
	return periods
}

// ClassifySemiMonthly reports which half of the cutoff month a day belongs
// to. Days in (firstCutoffDay, lastCutoffDay] open the cutoff month and are
// the first period; everything else trails into the last period.
func ClassifySemiMonthly(day, firstCutoffDay, lastCutoffDay int) string {
	if day > firstCutoffDay && day <= lastCutoffDay {
		return PeriodFirst
	}
	return PeriodLast
}

func nextSemiMonthlyAnchor(s Schedule, ref time.Time) time.Time {
	first := anchorInMonth(ref.Year(), ref.Month(), s.FirstCutoffDay)
	if !first.Before(ref) {
		return first
	}
	last := anchorInMonth(ref.Year(), ref.Month(), s.LastCutoffDay)
	if !last.Before(ref) {
		return last
	}
	return anchorInMonth(ref.Year(), ref.Month()+1, s.FirstCutoffDay)
}

func prevSemiMonthlyAnchor(s Schedule, end time.Time) time.Time {
	first := anchorInMonth(end.Year(), end.Month(), s.FirstCutoffDay)
	if end.After(first) {
		return first
	}
	return anchorInMonth(end.Year(), end.Month()-1, s.LastCutoffDay)
}

func weeklyPeriods(s Schedule, ref time.Time, count int) []Period {
	weekday := weekdays[strings.ToLower(s.CutoffWeekday)]
	anchor := ref
	for anchor.Weekday() != weekday {
		anchor = anchor.AddDate(0, 0, -1)
	}

	periods := make([]Period, 0, count)
	for i := 0; i < count; i++ {
		periods = append(periods, Period{
			StartDate:  anchor.AddDate(0, 0, -6),
			EndDate:    anchor,
			PeriodType: weeklyPeriodType(anchor),
		})
		anchor = anchor.AddDate(0, 0, -7)
	}
	return periods
}

func weeklyPeriodType(anchor time.Time) string {
	firstOfMonth := time.Date(anchor.Year(), anchor.Month(), 1, 0, 0, 0, 0, time.UTC)
	firstOccurrence := firstOfMonth
	for firstOccurrence.Weekday() != anchor.Weekday() {
		firstOccurrence = firstOccurrence.AddDate(0, 0, 1)
	}
	if anchor.Equal(firstOccurrence) {
		return PeriodFirst
	}
	lastOccurrence := firstOccurrence
	for {
		next := lastOccurrence.AddDate(0, 0, 7)
		if next.Month() != anchor.Month() {
			break
		}
		lastOccurrence = next
	}
	if anchor.Equal(lastOccurrence) {
		return PeriodLast
	}
	return PeriodMiddle
}

// anchorInMonth resolves a configured day within a month, clamping past the
// month's last day (a dayOfMonth of 31 ends February on the 28th/29th).
// The month may be out of range; time.Date normalizes it, so callers can
// pass month±1 to step across year boundaries.
func anchorInMonth(year int, month time.Month, day int) time.Time {
	lastDay := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
