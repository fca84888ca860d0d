// Package schedule runs announcements and refreshes at cron or one-shot
// times.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduling errors.
var (
	ErrPastTime    = errors.New("schedule time is in the past")
	ErrInvalidTask = errors.New("invalid task")
)

// Kind is what a task does when it fires.
type Kind string

// Task kinds.
const (
	KindMessage Kind = "message" // post Text to the Target channel
	KindDM      Kind = "dm"      // DM Text to the Target user, or every member of Role
	KindRefresh Kind = "refresh" // run a refresh, reporting to Target if set
)

// Task is plain data describing the work a job does. It is resolved against
// live clients only when the job fires.
type Task struct {
	Kind   Kind   `json:"kind"`
	Target string `json:"target,omitempty"`
	Role   string `json:"role,omitempty"`
	Text   string `json:"text,omitempty"`
}

// Validate checks that the task has what its kind needs.
func (t Task) Validate() error {
	switch t.Kind {
	case KindMessage:
		if t.Target == "" || t.Text == "" {
			return fmt.Errorf("%w: message needs a channel and text", ErrInvalidTask)
		}
	case KindDM:
		if (t.Target == "" && t.Role == "") || t.Text == "" {
			return fmt.Errorf("%w: dm needs a user or group and text", ErrInvalidTask)
		}
	case KindRefresh:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidTask, t.Kind)
	}
	return nil
}

// Runner executes tasks when their jobs fire.
type Runner interface {
	Run(ctx context.Context, task Task) error
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, task Task) error

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, task Task) error {
	return f(ctx, task)
}

// JobID identifies a scheduled job.
type JobID string

// Job describes a scheduled job.
type Job struct {
	ID      JobID     `json:"id"`
	Trigger Trigger   `json:"trigger"`
	Task    Task      `json:"task"`
	Next    time.Time `json:"next"`
}

type entry struct {
	id      cron.EntryID
	sched   cron.Schedule
	trigger Trigger
	task    Task
}

// Scheduler owns a cron instance and the jobs registered on it.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	logger *zap.Logger
	loc    *time.Location
	now    func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	jobs map[JobID]entry
}

// New creates a stopped scheduler. Times are interpreted in loc (local time
// when nil).
func New(runner Runner, loc *time.Location, logger *zap.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cl := cronLogger{logger.Sugar()}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithParser(specParser),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl)),
		),
		runner: runner,
		logger: logger,
		loc:    loc,
		now:    time.Now,
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(map[JobID]entry),
	}
}

// Location returns the scheduler's time zone.
func (s *Scheduler) Location() *time.Location {
	return s.loc
}

// Start runs the scheduler in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler, cancels running tasks and waits for them to return.
func (s *Scheduler) Stop() {
	done := s.cron.Stop()
	s.cancel()
	<-done.Done()
}

// Schedule registers task to run at trigger.
func (s *Scheduler) Schedule(trigger Trigger, task Task) (JobID, error) {
	if err := task.Validate(); err != nil {
		return "", err
	}

	var sched cron.Schedule
	if trigger.Recurring() {
		parsed, err := specParser.Parse(trigger.Spec)
		if err != nil {
			return "", fmt.Errorf("%w: %q", ErrInvalidWhen, trigger.Spec)
		}
		sched = parsed
	} else {
		if !trigger.At.After(s.now()) {
			return "", ErrPastTime
		}
		sched = &onceSchedule{at: trigger.At}
	}

	id := JobID(uuid.NewString())

	s.mu.Lock()
	defer s.mu.Unlock()
	eid := s.cron.Schedule(sched, cron.FuncJob(func() { s.fire(id) }))
	s.jobs[id] = entry{id: eid, sched: sched, trigger: trigger, task: task}

	s.logger.Info("scheduled job",
		zap.String("job", string(id)),
		zap.String("kind", string(task.Kind)),
		zap.Stringer("when", trigger))
	return id, nil
}

// CancelAll removes every job and returns how many were removed.
func (s *Scheduler) CancelAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.jobs)
	for id, e := range s.jobs {
		s.cron.Remove(e.id)
		delete(s.jobs, id)
	}
	return n
}

// Jobs lists the scheduled jobs, soonest first.
func (s *Scheduler) Jobs() []Job {
	s.mu.Lock()
	out := make([]Job, 0, len(s.jobs))
	for id, e := range s.jobs {
		j := Job{ID: id, Trigger: e.trigger, Task: e.task, Next: s.cron.Entry(e.id).Next}
		if j.Next.IsZero() {
			// cron only computes Next once started.
			j.Next = e.sched.Next(s.now().In(s.loc))
		}
		out = append(out, j)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, k int) bool {
		if !out[i].Next.Equal(out[k].Next) {
			return out[i].Next.Before(out[k].Next)
		}
		return out[i].ID < out[k].ID
	})
	return out
}

func (s *Scheduler) fire(id JobID) {
	s.mu.Lock()
	e, ok := s.jobs[id]
	if ok && !e.trigger.Recurring() {
		s.cron.Remove(e.id)
		delete(s.jobs, id)
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	if err := s.runner.Run(s.ctx, e.task); err != nil {
		s.logger.Error("scheduled job failed",
			zap.String("job", string(id)),
			zap.String("kind", string(e.task.Kind)),
			zap.Error(err))
		return
	}
	s.logger.Debug("scheduled job ran", zap.String("job", string(id)))
}

// onceSchedule fires a single time at a fixed instant.
type onceSchedule struct {
	at time.Time
}

// Next implements cron.Schedule. The zero time tells cron the job never runs
// again.
func (o *onceSchedule) Next(t time.Time) time.Time {
	if t.Before(o.at) {
		return o.at
	}
	return time.Time{}
}

// cronLogger routes cron's internal logging to zap.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
