package clinic

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Clock is a wall-clock time of day in seconds since midnight.
type Clock int

const secondsPerDay = 24 * 60 * 60

// ParseClock accepts HH:MM or HH:MM:SS. 24:00 and 24:00:00 denote end of day,
// as returned by Postgres TIME columns.
func ParseClock(s string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("%w: invalid clock time %q", ErrValidation, s)
	}

	limits := []int{24, 59, 59}
	var vals [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > limits[i] {
			return 0, fmt.Errorf("%w: invalid clock time %q", ErrValidation, s)
		}
		vals[i] = n
	}

	if vals[0] == 24 {
		if vals[1] != 0 || vals[2] != 0 {
			return 0, fmt.Errorf("%w: invalid clock time %q", ErrValidation, s)
		}
		return secondsPerDay, nil
	}

	return Clock(vals[0]*3600 + vals[1]*60 + vals[2]), nil
}

// ClockOf returns the wall-clock time of t in t's location.
func ClockOf(t time.Time) Clock {
	h, m, s := t.Clock()
	return Clock(h*3600 + m*60 + s)
}

func ClockFromMinutes(m int) Clock {
	return Clock(m * 60)
}

// Minutes truncates to whole minutes since midnight.
func (c Clock) Minutes() int {
	return int(c) / 60
}

// CeilMinutes rounds up to whole minutes since midnight.
func (c Clock) CeilMinutes() int {
	return (int(c) + 59) / 60
}

func (c Clock) String() string {
	v := int(c)
	if v < 0 {
		v = 0
	}
	if v > secondsPerDay {
		v = secondsPerDay
	}
	return fmt.Sprintf("%02d:%02d:%02d", v/3600, (v%3600)/60, v%60)
}

func (c Clock) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Clock) UnmarshalText(b []byte) error {
	v, err := ParseClock(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}
