package standing

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/matsen/rollcall/internal/attendance"
	"go.uber.org/zap"
)

// Submitter writes a mutation batch to the backing store.
type Submitter func(ctx context.Context, batch []CellMutation) error

// Generation is one complete snapshot of the directory.
type Generation struct {
	Seq         uint64         `json:"seq"`
	RefreshedAt time.Time      `json:"refreshed_at"`
	Records     []Record       `json:"records"`
	Mutations   []CellMutation `json:"-"`

	index map[string]int
}

// Lookup returns a copy of the record for name in this generation.
func (g *Generation) Lookup(name string) (Record, bool) {
	i, ok := g.index[nameKey(name)]
	if !ok {
		return Record{}, false
	}
	return g.Records[i].clone(), true
}

// DirectoryConfig configures a Directory.
type DirectoryConfig struct {
	Evaluator *Evaluator
	Base      CellAddress // sheet cell of the first member's note
	SheetID   int64
	Logger    *zap.Logger
}

// Directory maps member names to their latest standing record.
//
// Refresh builds a new generation off to the side and publishes it with one
// atomic swap, so Lookup always sees either the old or the new generation in
// full. Refreshes are serialized; lookups never block.
type Directory struct {
	mu      sync.Mutex
	current atomic.Pointer[Generation]
	seq     uint64

	eval    *Evaluator
	base    CellAddress
	sheetID int64
	logger  *zap.Logger
	now     func() time.Time
}

// NewDirectory returns an empty directory.
func NewDirectory(cfg DirectoryConfig) *Directory {
	d := &Directory{
		eval:    cfg.Evaluator,
		base:    cfg.Base,
		sheetID: cfg.SheetID,
		logger:  cfg.Logger,
		now:     time.Now,
	}
	if d.eval == nil {
		d.eval = NewEvaluator(DefaultThreshold)
	}
	if d.logger == nil {
		d.logger = zap.NewNop()
	}
	return d
}

// Refresh evaluates every member of grid, submits the note batch and then
// publishes the new generation.
//
// A nil grid aborts with attendance.ErrEmptyGrid and keeps the previous
// generation. Otherwise the generation is always published; invalid scores
// and a failed submission come back inside a *RefreshError.
func (d *Directory) Refresh(ctx context.Context, grid *attendance.Grid, submit Submitter) (*Generation, error) {
	if grid == nil {
		return nil, attendance.ErrEmptyGrid
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	gen := &Generation{
		Records: make([]Record, 0, grid.Len()),
		index:   make(map[string]int, grid.Len()),
	}

	var problems []error
	for _, m := range grid.Members {
		rec, err := d.eval.Evaluate(grid.EventTitles, m)
		if err != nil {
			d.logger.Warn("evaluating member", zap.String("name", m.Name), zap.Error(err))
			problems = append(problems, err)
		}
		key := nameKey(rec.Name)
		if _, dup := gen.index[key]; dup {
			d.logger.Warn("duplicate member name, later row wins", zap.String("name", rec.Name))
		}
		gen.index[key] = len(gen.Records)
		gen.Records = append(gen.Records, rec)
	}

	var submitErr error
	muts, err := BuildMutations(gen.Records, d.base, d.sheetID)
	switch {
	case errors.Is(err, ErrNoMutations):
		d.logger.Info("no members in grid, nothing to write")
	case submit != nil:
		if err := submit(ctx, muts); err != nil {
			if errors.Is(err, ErrNoMutations) {
				d.logger.Info("store reported nothing to write")
			} else {
				submitErr = &StoreSubmissionError{Mutations: len(muts), Err: err}
				d.logger.Error("submitting cell notes", zap.Int("mutations", len(muts)), zap.Error(err))
			}
		}
	}
	gen.Mutations = muts

	d.seq++
	gen.Seq = d.seq
	gen.RefreshedAt = d.now()
	d.current.Store(gen)

	d.logger.Info("standing directory refreshed",
		zap.Uint64("seq", gen.Seq),
		zap.Int("members", len(gen.Records)),
		zap.Int("problems", len(problems)),
	)

	if len(problems) > 0 || submitErr != nil {
		return gen, &RefreshError{Members: problems, Submit: submitErr}
	}
	return gen, nil
}

// Lookup returns the record for name in the current generation.
func (d *Directory) Lookup(name string) (Record, error) {
	gen := d.current.Load()
	if gen == nil {
		return Record{}, ErrNotRefreshed
	}
	rec, ok := gen.Lookup(name)
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

// BadStanding returns every record that is not in good standing, in grid order.
func (d *Directory) BadStanding() ([]Record, error) {
	gen := d.current.Load()
	if gen == nil {
		return nil, ErrNotRefreshed
	}
	var out []Record
	for _, rec := range gen.Records {
		if rec.Standing != Good {
			out = append(out, rec.clone())
		}
	}
	return out, nil
}

// Current returns the published generation, or nil before the first refresh.
func (d *Directory) Current() *Generation {
	return d.current.Load()
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
