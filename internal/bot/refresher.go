// Package bot wires the standing directory, scheduler and calendar to chat
// commands.
package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/matsen/rollcall/internal/attendance"
	"github.com/matsen/rollcall/internal/standing"
	"go.uber.org/zap"
)

// TabularStore is the spreadsheet backend: the Google Sheets client or the
// local SQLite store.
type TabularStore interface {
	ReadRange(ctx context.Context, rangeSpec string) ([][]string, error)
	BatchWrite(ctx context.Context, muts []standing.CellMutation) error
}

// RefresherConfig says where the attendance data lives.
type RefresherConfig struct {
	AttendanceRange string
	RosterRange     string // optional; parallel to the member rows
	NoteBase        standing.CellAddress
	WriteTimeout    time.Duration
}

// Report summarizes one refresh.
type Report struct {
	Seq         uint64    `json:"seq"`
	RefreshedAt time.Time `json:"refreshed_at"`
	Members     int       `json:"members"`
	Mutations   int       `json:"mutations"`
	BadStanding int       `json:"bad_standing"`
	Problems    []string  `json:"problems,omitempty"`
	SubmitError string    `json:"submit_error,omitempty"`
}

// Refresher reads the attendance sheet and rebuilds the standing directory.
type Refresher struct {
	store  TabularStore
	dir    *standing.Directory
	cfg    RefresherConfig
	logger *zap.Logger
}

// NewRefresher creates a Refresher over store that publishes into dir.
func NewRefresher(store TabularStore, dir *standing.Directory, cfg RefresherConfig, logger *zap.Logger) *Refresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refresher{store: store, dir: dir, cfg: cfg, logger: logger}
}

// Directory returns the directory the refresher publishes into.
func (r *Refresher) Directory() *standing.Directory {
	return r.dir
}

// Refresh reads the sheet, evaluates every member and writes their notes.
//
// Read and parse failures return a nil report and leave the directory
// untouched. Otherwise the report is always returned; a *standing.RefreshError
// alongside it describes bad rows or a failed note write.
func (r *Refresher) Refresh(ctx context.Context) (*Report, error) {
	raw, err := r.store.ReadRange(ctx, r.cfg.AttendanceRange)
	if err != nil {
		return nil, fmt.Errorf("reading attendance range %s: %w", r.cfg.AttendanceRange, err)
	}
	grid, err := attendance.Parse(raw)
	if err != nil {
		return nil, err
	}

	var roster [][]string
	if r.cfg.RosterRange != "" {
		if roster, err = r.store.ReadRange(ctx, r.cfg.RosterRange); err != nil {
			return nil, fmt.Errorf("reading roster range %s: %w", r.cfg.RosterRange, err)
		}
	}
	grid.AttachRoster(roster, r.cfg.NoteBase.Row)

	gen, err := r.dir.Refresh(ctx, grid, r.submit)
	if gen == nil {
		return nil, err
	}

	rep := &Report{
		Seq:         gen.Seq,
		RefreshedAt: gen.RefreshedAt,
		Members:     len(gen.Records),
		Mutations:   len(gen.Mutations),
	}
	for _, rec := range gen.Records {
		if rec.Standing != standing.Good {
			rep.BadStanding++
		}
	}

	var rerr *standing.RefreshError
	if errors.As(err, &rerr) {
		for _, p := range rerr.Members {
			rep.Problems = append(rep.Problems, p.Error())
		}
		if rerr.Submit != nil {
			rep.SubmitError = rerr.Submit.Error()
		}
	}
	return rep, err
}

func (r *Refresher) submit(ctx context.Context, muts []standing.CellMutation) error {
	if r.cfg.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.WriteTimeout)
		defer cancel()
	}
	return r.store.BatchWrite(ctx, muts)
}
