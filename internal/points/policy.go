// Package points turns a study session duration into earned points.
//
// Two formulas have been used by the product and they are not interchangeable:
// the same duration yields different balances. A deployment picks exactly one
// by name; balances are never recomputed when the policy changes.
package points

import "fmt"

type Policy interface {
	Name() string
	// Earned returns the points for a session of the given length in seconds.
	// Negative durations earn nothing.
	Earned(seconds int64) int64
}

const (
	LinearName    = "linear"
	ThresholdName = "threshold"
)

// Linear credits one point per full minute.
type Linear struct{}

func (Linear) Name() string { return LinearName }

func (Linear) Earned(seconds int64) int64 {
	if seconds <= 0 {
		return 0
	}
	return seconds / 60
}

// Threshold credits nothing below MinSeconds, then Base plus one point per
// full BlockSeconds.
type Threshold struct {
	MinSeconds   int64
	Base         int64
	BlockSeconds int64
}

// DefaultThreshold: nothing under 10 minutes, then 3 + one per 10 minutes.
var DefaultThreshold = Threshold{MinSeconds: 600, Base: 3, BlockSeconds: 600}

func (Threshold) Name() string { return ThresholdName }

func (t Threshold) Earned(seconds int64) int64 {
	if seconds < t.MinSeconds || t.BlockSeconds <= 0 {
		return 0
	}
	return t.Base + seconds/t.BlockSeconds
}

func ByName(name string) (Policy, error) {
	switch name {
	case LinearName:
		return Linear{}, nil
	case ThresholdName, "":
		return DefaultThreshold, nil
	default:
		return nil, fmt.Errorf("unknown points policy %q", name)
	}
}
