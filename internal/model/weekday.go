package model

import (
	"encoding/json"
	"time"
)

// WeekdayNames is indexed by time.Weekday (0 = Sunday). The client keys
// checkbox state by these names.
var WeekdayNames = [7]string{"일", "월", "화", "수", "목", "금", "토"}

func WeekdayName(d time.Weekday) string {
	return WeekdayNames[d]
}

func IsWeekdayName(s string) bool {
	for _, n := range WeekdayNames {
		if n == s {
			return true
		}
	}
	return false
}

// CheckedDays maps a weekday name to its checkbox state.
// Every weekday key is always present.
type CheckedDays map[string]bool

func NewCheckedDays() CheckedDays {
	d := make(CheckedDays, len(WeekdayNames))
	for _, n := range WeekdayNames {
		d[n] = false
	}
	return d
}

// Normalize fills missing keys and drops unknown ones.
func (d CheckedDays) Normalize() CheckedDays {
	out := NewCheckedDays()
	for k, v := range d {
		if _, ok := out[k]; ok {
			out[k] = v
		}
	}
	return out
}

func (d *CheckedDays) UnmarshalJSON(b []byte) error {
	raw := map[string]bool{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*d = CheckedDays(raw).Normalize()
	return nil
}

// ResetSummary describes one weekday check reset sweep.
type ResetSummary struct {
	Day     string
	Scanned int
	Reset   int
	Failed  int
}
