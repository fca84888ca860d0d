package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/matsen/rollcall/internal/attendance"
	"github.com/matsen/rollcall/internal/calendar"
	"github.com/matsen/rollcall/internal/messenger"
	"github.com/matsen/rollcall/internal/responses"
	"github.com/matsen/rollcall/internal/schedule"
	"github.com/matsen/rollcall/internal/standing"
	"go.uber.org/zap"
)

// Messenger delivers replies and announcements.
type Messenger interface {
	Reply(ctx context.Context, to messenger.Target, text string, opts messenger.ReplyOptions) error
	Send(ctx context.Context, channelID, text string) error
	DirectMessage(ctx context.Context, userID, text string) error
	GroupMembers(ctx context.Context, groupID string) ([]string, error)
	UserName(ctx context.Context, userID string) (string, error)
}

// CalendarStore lists and creates calendar events.
type CalendarStore interface {
	Upcoming(ctx context.Context, limit int) ([]calendar.Event, error)
	Insert(ctx context.Context, ev calendar.Event) (calendar.Event, error)
}

// Scheduler registers and lists scheduled jobs.
type Scheduler interface {
	Schedule(trigger schedule.Trigger, task schedule.Task) (schedule.JobID, error)
	CancelAll() int
	Jobs() []schedule.Job
	Location() *time.Location
}

// Replies shown to users.
const (
	MsgNotesAdded     = "Notes added to cells successfully."
	MsgNotRefreshed   = "Standings have not been loaded yet. Run /note first."
	MsgEmptySheet     = "The attendance sheet is empty."
	MsgReadFailed     = "Could not read the attendance sheet. Try again later."
	MsgWriteTimeout   = "Standings were updated, but writing the notes to the sheet timed out."
	MsgWriteFailed    = "Standings were updated, but the notes could not be written to the sheet."
	MsgAllGood        = "Everyone is in good standing."
	MsgNoJobs         = "No jobs scheduled."
	MsgNoEvents       = "No upcoming events."
	MsgNoCalendar     = "No calendar is configured."
	MsgNoScheduler    = "Scheduling is not available."
	MsgScheduleUsage  = "Usage: /schedule <when> | <#channel, @user or &group> | <text>"
	MsgAddEventUsage  = "Usage: /addevent <start> | <end> | <summary> (times as 2006-01-02 15:04, or dates for all-day events)"
	MsgSomethingWrong = "Something went wrong. Try again later."
)

// Command is a slash command invocation.
type Command struct {
	Name      string // without the leading slash
	Text      string
	UserID    string
	ChannelID string
}

// Message is a plain chat message addressed to the bot.
type Message struct {
	Text      string
	UserID    string
	ChannelID string
}

// Config configures a Bot.
type Config struct {
	Refresher   *Refresher
	Messenger   Messenger
	Calendar    CalendarStore // optional
	Scheduler   Scheduler     // optional
	Responder   *responses.Responder
	ReplyExpire time.Duration
	MaxEvents   int
	Logger      *zap.Logger
}

// Bot answers slash commands and messages and runs scheduled tasks.
type Bot struct {
	refresher   *Refresher
	msgr        Messenger
	cal         CalendarStore
	sched       Scheduler
	responder   *responses.Responder
	replyExpire time.Duration
	maxEvents   int
	logger      *zap.Logger
}

// New creates a Bot.
func New(cfg Config) *Bot {
	b := &Bot{
		refresher:   cfg.Refresher,
		msgr:        cfg.Messenger,
		cal:         cfg.Calendar,
		sched:       cfg.Scheduler,
		responder:   cfg.Responder,
		replyExpire: cfg.ReplyExpire,
		maxEvents:   cfg.MaxEvents,
		logger:      cfg.Logger,
	}
	if b.responder == nil {
		b.responder = responses.New()
	}
	if b.maxEvents <= 0 {
		b.maxEvents = 10
	}
	if b.logger == nil {
		b.logger = zap.NewNop()
	}
	return b
}

type reply struct {
	text    string
	private bool
}

// HandleCommand runs a slash command and posts the reply.
func (b *Bot) HandleCommand(ctx context.Context, cmd Command) error {
	log := b.logger.With(zap.String("command", cmd.Name), zap.String("user", cmd.UserID))
	log.Debug("handling command", zap.String("text", cmd.Text))

	var r reply
	switch cmd.Name {
	case "note", "refresh":
		r = b.cmdRefresh(ctx, log)
	case "standing":
		r = b.cmdStanding(ctx, cmd, log)
	case "badstanding":
		r = b.cmdBadStanding()
	case "schedule":
		r = b.cmdSchedule(cmd, log)
	case "cancelall":
		r = b.cmdCancelAll()
	case "jobs":
		r = b.cmdJobs()
	case "events":
		r = b.cmdEvents(ctx, cmd, log)
	case "addevent":
		r = b.cmdAddEvent(ctx, cmd, log)
	default:
		r = reply{text: fmt.Sprintf("Unknown command /%s.", cmd.Name), private: true}
	}

	// Ephemeral replies cannot be deleted; public ones are removed after
	// replyExpire.
	opts := messenger.ReplyOptions{AutoExpire: b.replyExpire}
	if r.private {
		opts = messenger.ReplyOptions{Visibility: messenger.Private}
	}
	to := messenger.Target{ChannelID: cmd.ChannelID, UserID: cmd.UserID}
	if err := b.msgr.Reply(ctx, to, r.text, opts); err != nil {
		return fmt.Errorf("replying to /%s: %w", cmd.Name, err)
	}
	return nil
}

// HandleMessage answers a plain message with a canned reply. A leading "!"
// sends the reply by DM instead of to the channel.
func (b *Bot) HandleMessage(ctx context.Context, msg Message) error {
	if msg.Text == "" {
		b.logger.Debug("ignoring empty message", zap.String("user", msg.UserID))
		return nil
	}

	text, private := responses.SplitPrivate(msg.Text)
	answer := b.responder.Reply(text)
	if private {
		return b.msgr.DirectMessage(ctx, msg.UserID, answer)
	}
	return b.msgr.Send(ctx, msg.ChannelID, answer)
}

func (b *Bot) cmdRefresh(ctx context.Context, log *zap.Logger) reply {
	rep, err := b.refresher.Refresh(ctx)
	if err == nil {
		return reply{text: MsgNotesAdded}
	}
	log.Error("refresh failed", zap.Error(err))
	return reply{text: refreshFailureText(rep, err)}
}

// refreshFailureText explains a refresh failure without exposing backend
// errors.
func refreshFailureText(rep *Report, err error) string {
	var rerr *standing.RefreshError
	switch {
	case errors.Is(err, attendance.ErrEmptyGrid):
		return MsgEmptySheet
	case errors.As(err, &rerr):
		var b strings.Builder
		var subErr *standing.StoreSubmissionError
		switch {
		case rerr.Submit == nil:
			b.WriteString(MsgNotesAdded)
		case errors.As(rerr.Submit, &subErr) && subErr.Timeout():
			b.WriteString(MsgWriteTimeout)
		default:
			b.WriteString(MsgWriteFailed)
		}
		if n := len(rerr.Members); n > 0 {
			fmt.Fprintf(&b, " %d row(s) have a score that is not a number:", n)
			for _, merr := range rerr.Members {
				var se *standing.InvalidScoreError
				if errors.As(merr, &se) {
					fmt.Fprintf(&b, "\n- %s (%q)", se.Name, se.Score)
				}
			}
		}
		return b.String()
	case rep == nil:
		return MsgReadFailed
	default:
		return MsgSomethingWrong
	}
}

func (b *Bot) cmdStanding(ctx context.Context, cmd Command, log *zap.Logger) reply {
	name := strings.TrimSpace(cmd.Text)
	if name == "" {
		var err error
		if name, err = b.msgr.UserName(ctx, cmd.UserID); err != nil {
			log.Error("resolving caller name", zap.Error(err))
			return reply{text: MsgSomethingWrong, private: true}
		}
	}

	rec, err := b.refresher.Directory().Lookup(name)
	switch {
	case errors.Is(err, standing.ErrNotRefreshed):
		return reply{text: MsgNotRefreshed, private: true}
	case errors.Is(err, standing.ErrNotFound):
		return reply{text: fmt.Sprintf("No member named %q.", name), private: true}
	case err != nil:
		log.Error("looking up standing", zap.Error(err))
		return reply{text: MsgSomethingWrong, private: true}
	}
	return reply{text: formatRecord(rec), private: true}
}

func formatRecord(rec standing.Record) string {
	return fmt.Sprintf("*%s*: score %s, %s standing\n%s", rec.Name, scoreText(rec), rec.Standing, rec.Summary())
}

func scoreText(rec standing.Record) string {
	if rec.Standing == standing.Unknown {
		return fmt.Sprintf("%q", rec.ScoreText)
	}
	return rec.ScoreText
}

func (b *Bot) cmdBadStanding() reply {
	recs, err := b.refresher.Directory().BadStanding()
	if errors.Is(err, standing.ErrNotRefreshed) {
		return reply{text: MsgNotRefreshed, private: true}
	}
	if len(recs) == 0 {
		return reply{text: MsgAllGood, private: true}
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d member(s) not in good standing:", len(recs))
	for _, rec := range recs {
		fmt.Fprintf(&sb, "\n- %s (score %s, %s)", rec.Name, scoreText(rec), rec.Standing)
	}
	return reply{text: sb.String(), private: true}
}
