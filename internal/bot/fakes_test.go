package bot

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/matsen/rollcall/internal/calendar"
	"github.com/matsen/rollcall/internal/messenger"
	"github.com/matsen/rollcall/internal/responses"
	"github.com/matsen/rollcall/internal/schedule"
	"github.com/matsen/rollcall/internal/standing"
)

type fakeStore struct {
	mu       sync.Mutex
	ranges   map[string][][]string
	readErr  error
	writeErr error
	block    bool // BatchWrite waits for ctx
	written  [][]standing.CellMutation
}

func (f *fakeStore) ReadRange(ctx context.Context, rangeSpec string) ([][]string, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.ranges[rangeSpec], nil
}

func (f *fakeStore) BatchWrite(ctx context.Context, muts []standing.CellMutation) error {
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	f.mu.Lock()
	f.written = append(f.written, muts)
	f.mu.Unlock()
	return f.writeErr
}

type sentReply struct {
	to   messenger.Target
	text string
	opts messenger.ReplyOptions
}

type fakeMessenger struct {
	mu      sync.Mutex
	replies []sentReply
	sent    map[string][]string // channel -> texts
	dms     map[string][]string // user -> texts
	groups  map[string][]string
	names   map[string]string
	failDM  map[string]bool
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{
		sent:   make(map[string][]string),
		dms:    make(map[string][]string),
		groups: make(map[string][]string),
		names:  make(map[string]string),
		failDM: make(map[string]bool),
	}
}

func (f *fakeMessenger) Reply(ctx context.Context, to messenger.Target, text string, opts messenger.ReplyOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, sentReply{to: to, text: text, opts: opts})
	return nil
}

func (f *fakeMessenger) Send(ctx context.Context, channelID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent[channelID] = append(f.sent[channelID], text)
	return nil
}

func (f *fakeMessenger) DirectMessage(ctx context.Context, userID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDM[userID] {
		return errors.New("cannot_dm_bot")
	}
	f.dms[userID] = append(f.dms[userID], text)
	return nil
}

func (f *fakeMessenger) GroupMembers(ctx context.Context, groupID string) ([]string, error) {
	members, ok := f.groups[groupID]
	if !ok {
		return nil, errors.New("no_such_subteam")
	}
	return members, nil
}

func (f *fakeMessenger) UserName(ctx context.Context, userID string) (string, error) {
	name, ok := f.names[userID]
	if !ok {
		return "", errors.New("user_not_found")
	}
	return name, nil
}

func (f *fakeMessenger) lastReply() sentReply {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.replies) == 0 {
		return sentReply{}
	}
	return f.replies[len(f.replies)-1]
}

type fakeCalendar struct {
	events   []calendar.Event
	inserted []calendar.Event
	gotMax   int
}

func (f *fakeCalendar) Upcoming(ctx context.Context, limit int) ([]calendar.Event, error) {
	f.gotMax = limit
	if len(f.events) > limit {
		return f.events[:limit], nil
	}
	return f.events, nil
}

func (f *fakeCalendar) Insert(ctx context.Context, ev calendar.Event) (calendar.Event, error) {
	ev.ID = "ev1"
	f.inserted = append(f.inserted, ev)
	return ev, nil
}

type fakeScheduler struct {
	jobs []schedule.Job
}

func (f *fakeScheduler) Schedule(trigger schedule.Trigger, task schedule.Task) (schedule.JobID, error) {
	if err := task.Validate(); err != nil {
		return "", err
	}
	if !trigger.Recurring() && trigger.At.Before(time.Now()) {
		return "", schedule.ErrPastTime
	}
	id := schedule.JobID("0123456789abcdef")
	f.jobs = append(f.jobs, schedule.Job{ID: id, Trigger: trigger, Task: task, Next: trigger.At})
	return id, nil
}

func (f *fakeScheduler) CancelAll() int {
	n := len(f.jobs)
	f.jobs = nil
	return n
}

func (f *fakeScheduler) Jobs() []schedule.Job { return f.jobs }

func (f *fakeScheduler) Location() *time.Location { return time.UTC }

// attendanceSheet is the sheet used across bot tests: Bob is in bad standing
// and Carol has a broken score.
func attendanceSheet() map[string][][]string {
	return map[string][][]string{
		"Attendance!C1:E4": {
			{"Meeting 1", "Meeting 2", "Social"},
			{"", "", ""},
			{"x", "t", ""},
			{"", "", "x"},
		},
		"Roster!A2:B4": {
			{"Alice", "3.00"},
			{"Bob", "1.5"},
			{"Carol", "abc"},
		},
	}
}

type testEnv struct {
	store *fakeStore
	msgr  *fakeMessenger
	cal   *fakeCalendar
	sched *fakeScheduler
	bot   *Bot
}

func newTestEnv() *testEnv {
	env := &testEnv{
		store: &fakeStore{ranges: attendanceSheet()},
		msgr:  newFakeMessenger(),
		cal:   &fakeCalendar{},
		sched: &fakeScheduler{},
	}
	dir := standing.NewDirectory(standing.DirectoryConfig{Base: standing.CellAddress{Row: 1, Column: 1}})
	ref := NewRefresher(env.store, dir, RefresherConfig{
		AttendanceRange: "Attendance!C1:E4",
		RosterRange:     "Roster!A2:B4",
		NoteBase:        standing.CellAddress{Row: 1, Column: 1},
		WriteTimeout:    time.Second,
	}, nil)
	env.bot = New(Config{
		Refresher:   ref,
		Messenger:   env.msgr,
		Calendar:    env.cal,
		Scheduler:   env.sched,
		Responder:   responses.New(),
		ReplyExpire: time.Minute,
	})
	return env
}
