package domain

import (
	"fmt"
	"time"
)

// DayKeyLayout is the layout of DailyStats keys.
const DayKeyLayout = "2006-01-02"

// DayBucket identifies the DailyStats record an instant belongs to.
// Key and Start are always derived in the same location.
type DayBucket struct {
	Key   string
	Start time.Time
}

// NewDayBucket returns the bucket containing t as observed in loc.
func NewDayBucket(t time.Time, loc *time.Location) DayBucket {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	y, m, d := local.Date()
	return DayBucket{
		Key:   local.Format(DayKeyLayout),
		Start: time.Date(y, m, d, 0, 0, 0, 0, loc),
	}
}

// ParseDayKey validates a YYYY-MM-DD key.
func ParseDayKey(key string) (time.Time, error) {
	t, err := time.Parse(DayKeyLayout, key)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, key)
	}
	return t, nil
}
