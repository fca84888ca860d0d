package bot

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/matsen/rollcall/internal/calendar"
	"github.com/matsen/rollcall/internal/config"
	"github.com/matsen/rollcall/internal/schedule"
)

func TestParseTarget(t *testing.T) {
	tests := []struct {
		input string
		want  schedule.Task
	}{
		{"#C123", schedule.Task{Kind: schedule.KindMessage, Target: "C123"}},
		{"<#C123|general>", schedule.Task{Kind: schedule.KindMessage, Target: "C123"}},
		{"@U1", schedule.Task{Kind: schedule.KindDM, Target: "U1"}},
		{"<@U1>", schedule.Task{Kind: schedule.KindDM, Target: "U1"}},
		{"&S9", schedule.Task{Kind: schedule.KindDM, Role: "S9"}},
		{"<!subteam^S9|@officers>", schedule.Task{Kind: schedule.KindDM, Role: "S9"}},
	}
	for _, tt := range tests {
		got, err := ParseTarget(tt.input)
		if err != nil {
			t.Errorf("ParseTarget(%q) error = %v", tt.input, err)
			continue
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("ParseTarget(%q) mismatch (-want +got):\n%s", tt.input, diff)
		}
	}

	for _, bad := range []string{"", "#", "C123", "<>"} {
		if _, err := ParseTarget(bad); !errors.Is(err, ErrBadTarget) {
			t.Errorf("ParseTarget(%q) error = %v, want ErrBadTarget", bad, err)
		}
	}
}

func TestSplitArgs(t *testing.T) {
	got, ok := splitArgs(" in 2h |<#C1|gen>| hi | there ", 3)
	if !ok {
		t.Fatal("splitArgs() rejected valid input")
	}
	if diff := cmp.Diff([]string{"in 2h", "<#C1|gen>", "hi | there"}, got); diff != "" {
		t.Errorf("splitArgs() mismatch (-want +got):\n%s", diff)
	}
	if _, ok := splitArgs("a | | c", 3); ok {
		t.Error("splitArgs() accepted an empty field")
	}
}

func TestParseEvent(t *testing.T) {
	ev, err := ParseEvent("2026-03-07", "2026-03-08", "Retreat", time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	if !ev.AllDay || !ev.End.Equal(time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("ParseEvent(all-day) = %+v, want exclusive end on Mar 9", ev)
	}

	if _, err := ParseEvent("2026-03-07", "2026-03-07 18:00", "Mixed", time.UTC); !errors.Is(err, calendar.ErrInvalidEvent) {
		t.Errorf("ParseEvent(mixed) error = %v, want ErrInvalidEvent", err)
	}
}

func TestRun(t *testing.T) {
	env := newTestEnv()
	env.msgr.groups["S1"] = []string{"U1", "U2", "U3"}
	env.msgr.failDM["U2"] = true
	ctx := context.Background()

	if err := env.bot.Run(ctx, schedule.Task{Kind: schedule.KindMessage, Target: "C1", Text: "meeting"}); err != nil {
		t.Fatal(err)
	}
	if err := env.bot.Run(ctx, schedule.Task{Kind: schedule.KindDM, Target: "U7", Text: "psst"}); err != nil {
		t.Fatal(err)
	}
	if err := env.bot.Run(ctx, schedule.Task{Kind: schedule.KindDM, Role: "S1", Text: "officers"}); err == nil {
		t.Error("Run(group dm) error = nil, want the failed member reported")
	}
	if err := env.bot.Run(ctx, schedule.Task{Kind: schedule.KindDM, Role: "nope", Text: "x"}); err == nil {
		t.Error("Run(unknown group) error = nil")
	}

	wantDMs := map[string][]string{
		"U7": {"psst"},
		"U1": {"officers"},
		"U3": {"officers"},
	}
	if diff := cmp.Diff(wantDMs, env.msgr.dms); diff != "" {
		t.Errorf("DMs mismatch (-want +got):\n%s", diff)
	}

	err := env.bot.Run(ctx, schedule.Task{Kind: schedule.KindRefresh, Target: "C2"})
	if err == nil {
		t.Error("Run(refresh) error = nil, want the invalid score reported")
	}
	if got := env.msgr.sent["C2"]; len(got) != 1 || !strings.HasPrefix(got[0], MsgNotesAdded) {
		t.Errorf("refresh report = %q", got)
	}
	if env.bot.refresher.Directory().Current() == nil {
		t.Error("scheduled refresh did not publish")
	}
}

func TestScheduleConfigJobs(t *testing.T) {
	sched := &fakeScheduler{}
	jobs := []config.JobConfig{
		{When: "0 18 * * 1", Kind: "message", Target: "C1", Text: "meeting tonight"},
		{When: "0 9 * * *", Kind: "refresh"},
		{When: "someday", Kind: "message", Target: "C1", Text: "x"},
		{When: "in 1h", Kind: "fax", Target: "C1", Text: "x"},
	}

	n, err := ScheduleConfigJobs(sched, jobs, nil)
	if n != 2 {
		t.Errorf("ScheduleConfigJobs() = %d, want 2", n)
	}
	if !errors.Is(err, schedule.ErrInvalidWhen) || !errors.Is(err, schedule.ErrInvalidTask) {
		t.Errorf("ScheduleConfigJobs() error = %v, want both bad entries reported", err)
	}
	if sched.jobs[0].Trigger.Spec != "0 18 * * 1" || sched.jobs[1].Task.Kind != schedule.KindRefresh {
		t.Errorf("scheduled = %+v", sched.jobs)
	}
}
