// Package standing derives member standing from attendance and keeps the
// published directory of results.
package standing

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/matsen/rollcall/internal/attendance"
)

// DefaultThreshold is the score at or above which a member is in good standing.
const DefaultThreshold = 2.0

// NoReasons is shown in chat for a member with nothing recorded.
const NoReasons = "None added"

// Standing is a member's good/bad status.
type Standing int

const (
	Unknown Standing = iota
	Good
	Bad
)

func (s Standing) String() string {
	switch s {
	case Good:
		return "good"
	case Bad:
		return "bad"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Standing) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Record is the evaluated standing of one member.
type Record struct {
	Name      string   `json:"name"`
	Reasons   []string `json:"reasons"`
	ScoreText string   `json:"score"`
	Score     float64  `json:"-"`
	Standing  Standing `json:"standing"`
}

// Note returns the text written to the member's cell note.
// It is empty when there are no reasons, which clears any old note.
func (r Record) Note() string {
	return strings.Join(r.Reasons, "")
}

// Summary returns the reasons for a chat reply.
func (r Record) Summary() string {
	if len(r.Reasons) == 0 {
		return NoReasons
	}
	return strings.TrimRight(r.Note(), "\n")
}

// clone returns a copy that shares no memory with r.
func (r Record) clone() Record {
	r.Reasons = slices.Clone(r.Reasons)
	return r
}

// Evaluator turns attendance rows into standing records.
type Evaluator struct {
	Threshold float64
}

// NewEvaluator returns an Evaluator that treats scores at or above threshold
// as good standing.
func NewEvaluator(threshold float64) *Evaluator {
	return &Evaluator{Threshold: threshold}
}

// Evaluate computes the standing record of one member.
//
// A score that does not parse yields a usable record with Unknown standing
// and an explanatory reason, together with an *InvalidScoreError.
func (e *Evaluator) Evaluate(titles []string, m attendance.Member) (Record, error) {
	rec := Record{
		Name:      m.Name,
		ScoreText: m.Score,
	}

	for i, mark := range m.Marks {
		switch mark {
		case attendance.MarkAbsent:
			rec.Reasons = append(rec.Reasons, fmt.Sprintf("-missed %s (+1)\n", eventTitle(titles, i)))
		case attendance.MarkTardy:
			rec.Reasons = append(rec.Reasons, fmt.Sprintf("-late to %s (+0.5)\n", eventTitle(titles, i)))
		}
	}

	score, err := parseScore(m.Score)
	if err != nil {
		rec.Standing = Unknown
		rec.Reasons = append(rec.Reasons, fmt.Sprintf("-score %q is not a number\n", m.Score))
		return rec, &InvalidScoreError{Name: m.Name, Score: m.Score, Err: err}
	}

	rec.Score = score
	if score >= e.Threshold {
		rec.Standing = Good
	} else {
		rec.Standing = Bad
	}
	return rec, nil
}

func eventTitle(titles []string, i int) string {
	if i < len(titles) && titles[i] != "" {
		return titles[i]
	}
	return fmt.Sprintf("event %d", i+1)
}

func parseScore(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) {
		return 0, fmt.Errorf("score is NaN")
	}
	return v, nil
}
