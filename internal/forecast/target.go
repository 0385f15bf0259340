package forecast

import (
	"fmt"
	"time"
)

// DateLayout is the accepted format of a target date.
const DateLayout = "2006-01-02"

// ResolveTargetTime builds a target hour from an optional date and hour,
// interpreted in tz. A missing date means today; a missing hour means the
// current hour. Both missing yields the zero time, which the orchestrator
// treats as now.
func ResolveTargetTime(date string, hour *int, now time.Time, tz *time.Location) (time.Time, error) {
	if date == "" && hour == nil {
		return time.Time{}, nil
	}
	if tz == nil {
		tz = time.UTC
	}
	now = now.In(tz)

	day := now
	if date != "" {
		d, err := time.ParseInLocation(DateLayout, date, tz)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD, got %q", ErrInvalidRequest, date)
		}
		day = d
	}

	h := now.Hour()
	if hour != nil {
		if *hour < 0 || *hour > 23 {
			return time.Time{}, fmt.Errorf("%w: hour must be between 0 and 23, got %d", ErrInvalidRequest, *hour)
		}
		h = *hour
	}
	return time.Date(day.Year(), day.Month(), day.Day(), h, 0, 0, 0, tz), nil
}
