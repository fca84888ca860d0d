package main

import (
	"context"
	"fmt"
	"time"

	"github.com/matsen/rollcall/internal/bot"
	"github.com/matsen/rollcall/internal/calendar"
	"github.com/matsen/rollcall/internal/config"
	"github.com/spf13/cobra"
)

var (
	eventsMax     int
	eventStart    string
	eventEnd      string
	eventSummary  string
	eventLocation string
	eventDescribe string
)

func init() {
	eventsCmd.Flags().IntVar(&eventsMax, "max", 0, "Maximum number of events (default from config)")

	eventsAddCmd.Flags().StringVar(&eventStart, "start", "", "Start time (2006-01-02 15:04) or date (2006-01-02)")
	eventsAddCmd.Flags().StringVar(&eventEnd, "end", "", "End time or date (inclusive for dates)")
	eventsAddCmd.Flags().StringVar(&eventSummary, "summary", "", "Event title")
	eventsAddCmd.Flags().StringVar(&eventLocation, "location", "", "Event location")
	eventsAddCmd.Flags().StringVar(&eventDescribe, "description", "", "Event description")
	eventsAddCmd.MarkFlagRequired("start")
	eventsAddCmd.MarkFlagRequired("end")
	eventsAddCmd.MarkFlagRequired("summary")

	eventsCmd.AddCommand(eventsAddCmd)
	rootCmd.AddCommand(eventsCmd)
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List upcoming calendar events",
	Long: `List upcoming events from the configured Google calendar.

Examples:
  rollcall events
  rollcall events --max 3 --human`,
	Args: cobra.NoArgs,
	RunE: runEvents,
}

var eventsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a calendar event",
	Long: `Add an event to the configured Google calendar.

Examples:
  rollcall events add --start "2026-03-02 18:00" --end "2026-03-02 19:00" --summary "General meeting"
  rollcall events add --start 2026-03-07 --end 2026-03-08 --summary Retreat`,
	Args: cobra.NoArgs,
	RunE: runEventsAdd,
}

// mustOpenCalendar creates the calendar client, exits on error.
func mustOpenCalendar(ctx context.Context, cfg *config.Config) *calendar.Client {
	mustValidate(cfg.ValidateCalendar())
	client, err := calendar.NewClient(ctx, cfg.Calendar.ID,
		calendar.WithCredentialsFile(cfg.Calendar.Credentials),
		calendar.WithLogger(logger.Named("calendar")))
	if err != nil {
		exitWithError(ExitConfigError, "creating calendar client: %v", err)
	}
	return client
}

func runEvents(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()
	client := mustOpenCalendar(cmd.Context(), cfg)

	limit := eventsMax
	if limit <= 0 {
		limit = cfg.Calendar.MaxEvents
	}
	events, err := client.Upcoming(cmd.Context(), limit)
	if err != nil {
		exitWithError(ExitError, "listing events: %v", err)
	}

	if !humanOutput {
		if events == nil {
			events = []calendar.Event{}
		}
		return outputJSON(events)
	}
	if len(events) == 0 {
		fmt.Println("No upcoming events.")
		return nil
	}
	for _, ev := range events {
		fmt.Println(ev.String())
	}
	return nil
}

func runEventsAdd(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()
	client := mustOpenCalendar(cmd.Context(), cfg)

	ev, err := bot.ParseEvent(eventStart, eventEnd, eventSummary, time.Local)
	if err != nil {
		exitWithError(ExitDataError, "%v", err)
	}
	ev.Location = eventLocation
	ev.Description = eventDescribe

	created, err := client.Insert(cmd.Context(), ev)
	if err != nil {
		exitWithError(ExitError, "adding event: %v", err)
	}

	if humanOutput {
		outputHuman("Added %s\n", created.String())
		if created.Link != "" {
			outputHuman("  %s\n", created.Link)
		}
		return nil
	}
	return outputJSON(created)
}
