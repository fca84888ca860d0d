// Package attendance parses the attendance grid read from the spreadsheet.
package attendance

import (
	"errors"
	"fmt"
	"strings"
)

// Mark codes recognized in the attendance grid.
const (
	MarkAbsent = "x"
	MarkTardy  = "t"
)

// ErrEmptyGrid is returned when the grid has no header row.
var ErrEmptyGrid = errors.New("attendance grid is empty (no header row)")

// Grid is one snapshot of the attendance range.
type Grid struct {
	EventTitles []string
	Members     []Member
}

// Member is one member's row of the grid.
type Member struct {
	Name  string
	Marks []string // aligned with Grid.EventTitles
	Score string   // raw score text from the roster range
}

// Parse converts raw spreadsheet rows into a Grid.
// The first row holds event titles; every later row is one member.
// Marks are kept exactly as stored. Rows shorter than the header are padded
// with empty (present) marks and longer rows are cut to the header width.
func Parse(rawRows [][]string) (*Grid, error) {
	if len(rawRows) == 0 {
		return nil, ErrEmptyGrid
	}

	titles := make([]string, len(rawRows[0]))
	for i, t := range rawRows[0] {
		titles[i] = strings.TrimSpace(t)
	}

	g := &Grid{
		EventTitles: titles,
		Members:     make([]Member, 0, len(rawRows)-1),
	}
	for _, row := range rawRows[1:] {
		marks := make([]string, len(titles))
		for i := range marks {
			if i < len(row) {
				marks[i] = row[i]
			}
		}
		g.Members = append(g.Members, Member{Marks: marks})
	}

	return g, nil
}

// AttachRoster fills in member names and scores from the roster range.
// Roster row k belongs to member k; column 0 is the name and column 1 the
// score. baseRow is the sheet row of the first member and only used to name
// members that have no roster row.
func (g *Grid) AttachRoster(rows [][]string, baseRow int) {
	for k := range g.Members {
		m := &g.Members[k]
		var row []string
		if k < len(rows) {
			row = rows[k]
		}
		if len(row) > 0 {
			m.Name = strings.TrimSpace(row[0])
		}
		if len(row) > 1 {
			m.Score = strings.TrimSpace(row[1])
		}
		if m.Name == "" {
			m.Name = fmt.Sprintf("row %d", baseRow+k+1)
		}
	}
}

// Len returns the number of members in the grid.
func (g *Grid) Len() int { return len(g.Members) }
