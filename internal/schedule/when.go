package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Parsing errors.
var (
	ErrInvalidWhen     = errors.New("invalid schedule time")
	ErrInvalidDuration = errors.New("invalid duration format")
	ErrUnknownUnit     = errors.New("unknown duration unit")
)

// Absolute time layouts accepted by ParseWhen, interpreted in the
// scheduler's location.
var absoluteLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

var specParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Trigger says when a job fires: either a cron spec (recurring) or a single
// absolute time.
type Trigger struct {
	Spec string    `json:"spec,omitempty"`
	At   time.Time `json:"at,omitempty"`
}

// Recurring reports whether the trigger is a cron spec.
func (t Trigger) Recurring() bool {
	return t.Spec != ""
}

func (t Trigger) String() string {
	if t.Recurring() {
		return t.Spec
	}
	return t.At.Format("2006-01-02 15:04")
}

// ParseWhen converts user input into a Trigger. It accepts a relative delay
// ("in 2h", "in 30m"), an absolute time ("2026-05-01 18:00") or a five-field
// cron spec ("0 18 * * 1").
func ParseWhen(s string, now time.Time, loc *time.Location) (Trigger, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Trigger{}, fmt.Errorf("%w: empty", ErrInvalidWhen)
	}
	if loc == nil {
		loc = time.Local
	}

	if rest, ok := strings.CutPrefix(strings.ToLower(s), "in "); ok {
		d, err := ParseDuration(strings.TrimSpace(rest))
		if err != nil {
			return Trigger{}, fmt.Errorf("%w: %q: %w", ErrInvalidWhen, s, err)
		}
		return Trigger{At: now.Add(d)}, nil
	}

	for _, layout := range absoluteLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return Trigger{At: t}, nil
		}
	}

	if _, err := specParser.Parse(s); err != nil {
		return Trigger{}, fmt.Errorf("%w: %q", ErrInvalidWhen, s)
	}
	return Trigger{Spec: s}, nil
}

// ParseDuration parses a duration string like "30m", "12h", "2d", "1w".
func ParseDuration(s string) (time.Duration, error) {
	if len(s) < 2 {
		return 0, ErrInvalidDuration
	}

	unit := s[len(s)-1]
	value, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || value <= 0 {
		return 0, ErrInvalidDuration
	}

	switch unit {
	case 'm':
		return time.Duration(value) * time.Minute, nil
	case 'h':
		return time.Duration(value) * time.Hour, nil
	case 'd':
		return time.Duration(value) * 24 * time.Hour, nil
	case 'w':
		return time.Duration(value) * 7 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("%w: %c", ErrUnknownUnit, unit)
	}
}
