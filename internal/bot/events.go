package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/matsen/rollcall/internal/calendar"
	"go.uber.org/zap"
)

const (
	eventTimeLayout = "2006-01-02 15:04"
	eventDateLayout = "2006-01-02"
)

func (b *Bot) cmdEvents(ctx context.Context, cmd Command, log *zap.Logger) reply {
	if b.cal == nil {
		return reply{text: MsgNoCalendar, private: true}
	}
	limit := b.maxEvents
	if arg := strings.TrimSpace(cmd.Text); arg != "" {
		n, err := strconv.Atoi(arg)
		if err != nil || n <= 0 {
			return reply{text: "Usage: /events [count]", private: true}
		}
		limit = n
	}

	events, err := b.cal.Upcoming(ctx, limit)
	if err != nil {
		log.Error("listing events", zap.Error(err))
		return reply{text: MsgSomethingWrong, private: true}
	}
	if len(events) == 0 {
		return reply{text: MsgNoEvents, private: true}
	}
	lines := make([]string, len(events))
	for i, ev := range events {
		lines[i] = ev.String()
	}
	return reply{text: strings.Join(lines, "\n"), private: true}
}

func (b *Bot) cmdAddEvent(ctx context.Context, cmd Command, log *zap.Logger) reply {
	if b.cal == nil {
		return reply{text: MsgNoCalendar, private: true}
	}
	args, ok := splitArgs(cmd.Text, 3)
	if !ok {
		return reply{text: MsgAddEventUsage, private: true}
	}
	loc := time.Local
	if b.sched != nil {
		loc = b.sched.Location()
	}
	ev, err := ParseEvent(args[0], args[1], args[2], loc)
	if err != nil {
		return reply{text: MsgAddEventUsage, private: true}
	}

	created, err := b.cal.Insert(ctx, ev)
	switch {
	case errors.Is(err, calendar.ErrInvalidEvent):
		return reply{text: MsgAddEventUsage, private: true}
	case err != nil:
		log.Error("inserting event", zap.Error(err))
		return reply{text: MsgSomethingWrong, private: true}
	}
	return reply{text: "Added " + created.String()}
}

// ParseEvent builds an event from user-entered start and end. Two dates make
// an all-day event whose end date is inclusive.
func ParseEvent(start, end, summary string, loc *time.Location) (calendar.Event, error) {
	ev := calendar.Event{Summary: summary}

	s, sErr := time.ParseInLocation(eventTimeLayout, start, loc)
	e, eErr := time.ParseInLocation(eventTimeLayout, end, loc)
	if sErr == nil && eErr == nil {
		ev.Start, ev.End = s, e
		return ev, nil
	}

	s, sErr = time.ParseInLocation(eventDateLayout, start, loc)
	e, eErr = time.ParseInLocation(eventDateLayout, end, loc)
	if sErr == nil && eErr == nil {
		ev.Start, ev.End, ev.AllDay = s, e.AddDate(0, 0, 1), true
		return ev, nil
	}
	return calendar.Event{}, fmt.Errorf("%w: times must both be %q or both be %q", calendar.ErrInvalidEvent, eventTimeLayout, eventDateLayout)
}
