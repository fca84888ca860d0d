package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/matsen/rollcall/internal/bot"
	"github.com/matsen/rollcall/internal/messenger"
	"github.com/matsen/rollcall/internal/responses"
	"github.com/matsen/rollcall/internal/schedule"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveNoRefresh bool

func init() {
	serveCmd.Flags().BoolVar(&serveNoRefresh, "no-initial-refresh", false, "Skip the refresh at startup")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Slack bot",
	Long: `Connect to Slack over Socket Mode and answer slash commands until
interrupted. Jobs declared in the config file are scheduled at startup.

Requires SLACK_BOT_TOKEN (xoxb-) and SLACK_APP_TOKEN (xapp-).

Slash commands:
  /note, /refresh        recompute standings and write cell notes
  /standing [name]       show a member's standing (default: yourself)
  /badstanding           list members not in good standing
  /schedule when | target | text
                         schedule a message (#channel), DM (@user) or group DM (&group)
  /jobs, /cancelall      list or cancel scheduled jobs
  /events [n]            list upcoming calendar events
  /addevent start | end | summary`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()
	mustValidate(cfg.ValidateSlack())
	mustValidate(cfg.ValidateSheets())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := mustOpenStore(ctx, cfg)
	defer store.Close()
	ref := newRefresher(cfg, store)

	api := slack.New(cfg.Slack.BotToken,
		slack.OptionAppLevelToken(cfg.Slack.AppToken),
		slack.OptionDebug(cfg.Slack.Debug))
	client := socketmode.New(api, socketmode.OptionDebug(cfg.Slack.Debug))

	msgr := messenger.NewSlack(api, logger.Named("slack"))
	defer msgr.Close()

	var b *bot.Bot
	sched := schedule.New(schedule.RunnerFunc(func(ctx context.Context, t schedule.Task) error {
		return b.Run(ctx, t)
	}), nil, logger.Named("schedule"))

	bcfg := bot.Config{
		Refresher:   ref,
		Messenger:   msgr,
		Scheduler:   sched,
		Responder:   responses.New(),
		ReplyExpire: cfg.Slack.ReplyExpire,
		MaxEvents:   cfg.Calendar.MaxEvents,
		Logger:      logger.Named("bot"),
	}
	if cfg.ValidateCalendar() == nil {
		bcfg.Calendar = mustOpenCalendar(ctx, cfg)
	} else {
		logger.Info("calendar not configured, /events disabled")
	}
	b = bot.New(bcfg)

	if _, err := bot.ScheduleConfigJobs(sched, cfg.Jobs, logger); err != nil {
		logger.Warn("some configured jobs were skipped", zap.Error(err))
	}
	sched.Start()
	defer sched.Stop()

	if !serveNoRefresh {
		if rep, err := ref.Refresh(ctx); err != nil {
			logger.Warn("initial refresh incomplete", zap.Error(err))
		} else {
			logger.Info("initial refresh", zap.Int("members", rep.Members), zap.Int("bad_standing", rep.BadStanding))
		}
	}

	logger.Info("rollcall bot running", zap.String("store", cfg.Store))
	if err := b.Listen(ctx, client); err != nil && !errors.Is(err, context.Canceled) {
		exitWithError(ExitError, "slack connection: %v", err)
	}
	logger.Info("shutting down")
	return nil
}
