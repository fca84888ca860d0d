package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/matsen/rollcall/internal/config"
	"github.com/matsen/rollcall/internal/schedule"
	"go.uber.org/zap"
)

// ErrBadTarget is returned for a schedule target that is not a channel,
// user or group.
var ErrBadTarget = errors.New("unrecognized target")

// ParseTarget turns a schedule target into the task that delivers to it.
// "#C123" (or a <#C123|name> link) is a channel, "@U123" (or <@U123>) a user
// and "&S123" (or <!subteam^S123>) every member of a user group.
func ParseTarget(s string) (schedule.Task, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "<") && strings.HasSuffix(s, ">") {
		s = strings.TrimSuffix(strings.TrimPrefix(s, "<"), ">")
		if i := strings.IndexByte(s, '|'); i >= 0 {
			s = s[:i]
		}
		if rest, ok := strings.CutPrefix(s, "!subteam^"); ok {
			s = "&" + rest
		}
	}
	if len(s) < 2 {
		return schedule.Task{}, fmt.Errorf("%w: %q", ErrBadTarget, s)
	}

	id := s[1:]
	switch s[0] {
	case '#':
		return schedule.Task{Kind: schedule.KindMessage, Target: id}, nil
	case '@':
		return schedule.Task{Kind: schedule.KindDM, Target: id}, nil
	case '&':
		return schedule.Task{Kind: schedule.KindDM, Role: id}, nil
	}
	return schedule.Task{}, fmt.Errorf("%w: %q", ErrBadTarget, s)
}

// splitArgs splits text into exactly n "|"-separated fields, ignoring pipes
// inside <...> Slack links.
func splitArgs(text string, n int) ([]string, bool) {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(text) && len(parts) < n-1; i++ {
		switch text[i] {
		case '<':
			depth++
		case '>':
			if depth > 0 {
				depth--
			}
		case '|':
			if depth == 0 {
				parts = append(parts, text[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, text[start:])
	if len(parts) != n {
		return nil, false
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
		if parts[i] == "" {
			return nil, false
		}
	}
	return parts, true
}

func (b *Bot) cmdSchedule(cmd Command, log *zap.Logger) reply {
	if b.sched == nil {
		return reply{text: MsgNoScheduler, private: true}
	}
	args, ok := splitArgs(cmd.Text, 3)
	if !ok {
		return reply{text: MsgScheduleUsage, private: true}
	}

	trigger, err := schedule.ParseWhen(args[0], time.Now(), b.sched.Location())
	if err != nil {
		return reply{text: fmt.Sprintf("Could not understand the time %q. Use \"in 2h\", \"2006-01-02 15:04\" or a cron spec.", args[0]), private: true}
	}
	task, err := ParseTarget(args[1])
	if err != nil {
		return reply{text: MsgScheduleUsage, private: true}
	}
	task.Text = args[2]

	id, err := b.sched.Schedule(trigger, task)
	switch {
	case errors.Is(err, schedule.ErrPastTime):
		return reply{text: "That time is in the past.", private: true}
	case err != nil:
		log.Warn("scheduling job", zap.Error(err))
		return reply{text: MsgScheduleUsage, private: true}
	}
	return reply{text: fmt.Sprintf("Scheduled job %s (%s).", shortID(id), trigger), private: true}
}

func (b *Bot) cmdCancelAll() reply {
	if b.sched == nil {
		return reply{text: MsgNoScheduler, private: true}
	}
	return reply{text: fmt.Sprintf("Cancelled %d job(s).", b.sched.CancelAll()), private: true}
}

func (b *Bot) cmdJobs() reply {
	if b.sched == nil {
		return reply{text: MsgNoScheduler, private: true}
	}
	jobs := b.sched.Jobs()
	if len(jobs) == 0 {
		return reply{text: MsgNoJobs, private: true}
	}
	var sb strings.Builder
	for i, j := range jobs {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "%s  %s  %s", shortID(j.ID), j.Next.Format("Mon Jan 2 15:04"), describeTask(j.Task))
	}
	return reply{text: sb.String(), private: true}
}

func describeTask(t schedule.Task) string {
	switch {
	case t.Kind == schedule.KindRefresh:
		return "refresh"
	case t.Kind == schedule.KindMessage:
		return fmt.Sprintf("message to <#%s>: %s", t.Target, t.Text)
	case t.Role != "":
		return fmt.Sprintf("DM to <!subteam^%s>: %s", t.Role, t.Text)
	default:
		return fmt.Sprintf("DM to <@%s>: %s", t.Target, t.Text)
	}
}

func shortID(id schedule.JobID) string {
	if len(id) > 8 {
		return string(id[:8])
	}
	return string(id)
}

// Run executes a scheduled task.
func (b *Bot) Run(ctx context.Context, task schedule.Task) error {
	switch task.Kind {
	case schedule.KindMessage:
		return b.msgr.Send(ctx, task.Target, task.Text)
	case schedule.KindDM:
		if task.Role == "" {
			return b.msgr.DirectMessage(ctx, task.Target, task.Text)
		}
		members, err := b.msgr.GroupMembers(ctx, task.Role)
		if err != nil {
			return err
		}
		var errs []error
		for _, userID := range members {
			if err := b.msgr.DirectMessage(ctx, userID, task.Text); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	case schedule.KindRefresh:
		rep, err := b.refresher.Refresh(ctx)
		if task.Target == "" {
			return err
		}
		text := MsgNotesAdded
		if err != nil {
			text = refreshFailureText(rep, err)
		}
		if sendErr := b.msgr.Send(ctx, task.Target, text); sendErr != nil {
			return errors.Join(err, sendErr)
		}
		return err
	}
	return fmt.Errorf("%w: unknown kind %q", schedule.ErrInvalidTask, task.Kind)
}

// ScheduleConfigJobs registers the jobs declared in the config file and
// returns how many were scheduled. Invalid entries are skipped and reported.
func ScheduleConfigJobs(s Scheduler, jobs []config.JobConfig, logger *zap.Logger) (int, error) {
	var errs []error
	n := 0
	for i, jc := range jobs {
		trigger, err := schedule.ParseWhen(jc.When, time.Now(), s.Location())
		if err != nil {
			errs = append(errs, fmt.Errorf("job %d: %w", i, err))
			continue
		}
		task := schedule.Task{Kind: schedule.Kind(jc.Kind), Target: jc.Target, Role: jc.Role, Text: jc.Text}
		if _, err := s.Schedule(trigger, task); err != nil {
			errs = append(errs, fmt.Errorf("job %d: %w", i, err))
			continue
		}
		n++
	}
	if logger != nil {
		logger.Info("loaded configured jobs", zap.Int("scheduled", n), zap.Int("skipped", len(errs)))
	}
	return n, errors.Join(errs...)
}
