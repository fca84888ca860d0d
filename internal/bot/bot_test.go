package bot

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/matsen/rollcall/internal/calendar"
	"github.com/matsen/rollcall/internal/messenger"
	"github.com/matsen/rollcall/internal/schedule"
)

func (env *testEnv) command(t *testing.T, name, text string) sentReply {
	t.Helper()
	err := env.bot.HandleCommand(context.Background(), Command{Name: name, Text: text, UserID: "U1", ChannelID: "C1"})
	if err != nil {
		t.Fatalf("HandleCommand(/%s %s) error = %v", name, text, err)
	}
	return env.msgr.lastReply()
}

func TestNote(t *testing.T) {
	env := newTestEnv()

	r := env.command(t, "note", "")
	if !strings.HasPrefix(r.text, MsgNotesAdded) || !strings.Contains(r.text, `Carol ("abc")`) {
		t.Errorf("reply = %q", r.text)
	}
	if r.opts != (messenger.ReplyOptions{Visibility: messenger.Public, AutoExpire: time.Minute}) {
		t.Errorf("refresh reply opts = %+v, want public expiring after 1m", r.opts)
	}
	if r.to != (messenger.Target{ChannelID: "C1", UserID: "U1"}) {
		t.Errorf("reply target = %+v", r.to)
	}
}

func TestNote_CleanSheet(t *testing.T) {
	env := newTestEnv()
	env.store.ranges["Roster!A2:B4"][2][1] = "2"

	if r := env.command(t, "refresh", ""); r.text != MsgNotesAdded {
		t.Errorf("reply = %q, want %q", r.text, MsgNotesAdded)
	}
}

func TestNote_Failures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(env *testEnv)
		want  string
	}{
		{"empty sheet", func(env *testEnv) { env.store.ranges = map[string][][]string{} }, MsgEmptySheet},
		{"read error", func(env *testEnv) { env.store.readErr = errors.New("503") }, MsgReadFailed},
		{"write error", func(env *testEnv) { env.store.writeErr = errors.New("403") }, MsgWriteFailed},
		{"write timeout", func(env *testEnv) {
			env.store.block = true
			env.bot.refresher.cfg.WriteTimeout = time.Millisecond
		}, MsgWriteTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			tt.setup(env)
			r := env.command(t, "note", "")
			if !strings.HasPrefix(r.text, tt.want) {
				t.Errorf("reply = %q, want prefix %q", r.text, tt.want)
			}
			if strings.Contains(r.text, "503") || strings.Contains(r.text, "403") {
				t.Errorf("reply leaks backend error: %q", r.text)
			}
		})
	}
}

func TestStanding(t *testing.T) {
	env := newTestEnv()
	env.msgr.names["U1"] = "alice"

	if r := env.command(t, "standing", "bob"); r.text != MsgNotRefreshed {
		t.Errorf("before refresh reply = %q", r.text)
	}

	env.command(t, "note", "")

	tests := []struct {
		text string
		want string
	}{
		{"bob", "*Bob*: score 1.5, bad standing\n-missed Meeting 1 (+1)\n-late to Meeting 2 (+0.5)"},
		{"  BOB ", "*Bob*: score 1.5, bad standing\n-missed Meeting 1 (+1)\n-late to Meeting 2 (+0.5)"},
		{"", "*Alice*: score 3.00, good standing\nNone added"},
		{"Carol", "*Carol*: score \"abc\", unknown standing\n-missed Social (+1)\n-score \"abc\" is not a number"},
		{"nobody", `No member named "nobody".`},
	}
	for _, tt := range tests {
		r := env.command(t, "standing", tt.text)
		if r.text != tt.want {
			t.Errorf("/standing %q reply = %q, want %q", tt.text, r.text, tt.want)
		}
		if r.opts != (messenger.ReplyOptions{Visibility: messenger.Private}) {
			t.Errorf("/standing %q opts = %+v, want private", tt.text, r.opts)
		}
	}
}

func TestBadStanding(t *testing.T) {
	env := newTestEnv()
	env.command(t, "note", "")

	r := env.command(t, "badstanding", "")
	want := "2 member(s) not in good standing:\n- Bob (score 1.5, bad)\n- Carol (score \"abc\", unknown)"
	if r.text != want {
		t.Errorf("reply = %q, want %q", r.text, want)
	}
}

func TestScheduleCommands(t *testing.T) {
	env := newTestEnv()

	if r := env.command(t, "jobs", ""); r.text != MsgNoJobs {
		t.Errorf("/jobs reply = %q", r.text)
	}

	r := env.command(t, "schedule", "in 2h | <#C9|general> | meeting at 6")
	if !strings.HasPrefix(r.text, "Scheduled job 01234567") {
		t.Errorf("/schedule reply = %q", r.text)
	}
	want := schedule.Task{Kind: schedule.KindMessage, Target: "C9", Text: "meeting at 6"}
	if diff := cmp.Diff(want, env.sched.jobs[0].Task); diff != "" {
		t.Errorf("scheduled task mismatch (-want +got):\n%s", diff)
	}

	r = env.command(t, "jobs", "")
	if !strings.Contains(r.text, "message to <#C9>: meeting at 6") {
		t.Errorf("/jobs reply = %q", r.text)
	}

	for _, bad := range []string{"", "in 2h | #C9", "whenever | #C9 | x", "in 2h | C9 | x", "2001-01-01 00:00 | #C9 | x"} {
		r := env.command(t, "schedule", bad)
		if strings.HasPrefix(r.text, "Scheduled") {
			t.Errorf("/schedule %q was accepted", bad)
		}
	}

	if r := env.command(t, "cancelall", ""); r.text != "Cancelled 1 job(s)." {
		t.Errorf("/cancelall reply = %q", r.text)
	}
}

func TestEventsCommands(t *testing.T) {
	env := newTestEnv()

	if r := env.command(t, "events", ""); r.text != MsgNoEvents {
		t.Errorf("/events reply = %q", r.text)
	}
	if env.cal.gotMax != 10 {
		t.Errorf("default max = %d, want 10", env.cal.gotMax)
	}

	start := time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)
	env.cal.events = []calendar.Event{
		{Summary: "General meeting", Start: start, End: start.Add(time.Hour)},
		{Summary: "Social", Start: start.Add(48 * time.Hour), End: start.Add(50 * time.Hour)},
	}
	r := env.command(t, "events", "1")
	if r.text != "Mon Mar 2 18:00-19:00  General meeting" {
		t.Errorf("/events 1 reply = %q", r.text)
	}

	r = env.command(t, "addevent", "2026-03-02 18:00 | 2026-03-02 19:00 | General meeting")
	if !strings.HasPrefix(r.text, "Added Mon Mar 2 18:00-19:00") {
		t.Errorf("/addevent reply = %q", r.text)
	}
	if len(env.cal.inserted) != 1 || !env.cal.inserted[0].Start.Equal(start) {
		t.Errorf("inserted = %+v", env.cal.inserted)
	}

	if r := env.command(t, "addevent", "tomorrow | later | x"); r.text != MsgAddEventUsage {
		t.Errorf("/addevent bad reply = %q", r.text)
	}
}

func TestOptionalServices(t *testing.T) {
	env := newTestEnv()
	env.bot.cal = nil
	env.bot.sched = nil

	for name, want := range map[string]string{
		"events":    MsgNoCalendar,
		"addevent":  MsgNoCalendar,
		"schedule":  MsgNoScheduler,
		"jobs":      MsgNoScheduler,
		"cancelall": MsgNoScheduler,
	} {
		if r := env.command(t, name, ""); r.text != want {
			t.Errorf("/%s reply = %q, want %q", name, r.text, want)
		}
	}
}

func TestUnknownCommand(t *testing.T) {
	env := newTestEnv()
	if r := env.command(t, "dance", ""); r.text != "Unknown command /dance." {
		t.Errorf("reply = %q", r.text)
	}
}

func TestHandleMessage(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	if err := env.bot.HandleMessage(ctx, Message{Text: "hello!", UserID: "U1", ChannelID: "C1"}); err != nil {
		t.Fatal(err)
	}
	if err := env.bot.HandleMessage(ctx, Message{Text: "!how are you", UserID: "U1", ChannelID: "C1"}); err != nil {
		t.Fatal(err)
	}
	if err := env.bot.HandleMessage(ctx, Message{Text: "", UserID: "U1", ChannelID: "C1"}); err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(map[string][]string{"C1": {"hello there!"}}, env.msgr.sent); diff != "" {
		t.Errorf("channel messages mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string][]string{"U1": {"Good, thanks!"}}, env.msgr.dms); diff != "" {
		t.Errorf("DMs mismatch (-want +got):\n%s", diff)
	}
}
