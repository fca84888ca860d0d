// Package calendar lists and inserts events on a Google calendar.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// ErrInvalidEvent is returned for events missing a summary or times.
var ErrInvalidEvent = errors.New("invalid event")

// Event is a calendar event as shown to users.
type Event struct {
	ID          string    `json:"id,omitempty"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	AllDay      bool      `json:"all_day,omitempty"`
	Link        string    `json:"link,omitempty"`
}

// String formats the event on one line.
func (e Event) String() string {
	var b strings.Builder
	if e.AllDay {
		b.WriteString(e.Start.Format("Mon Jan 2"))
	} else {
		b.WriteString(e.Start.Format("Mon Jan 2 15:04"))
		b.WriteString("-")
		b.WriteString(e.End.Format("15:04"))
	}
	b.WriteString("  ")
	b.WriteString(e.Summary)
	if e.Location != "" {
		b.WriteString(" @ ")
		b.WriteString(e.Location)
	}
	return b.String()
}

// Client is a Google Calendar client bound to one calendar.
type Client struct {
	svc        *gcal.Service
	calendarID string
	logger     *zap.Logger
	now        func() time.Time
}

// ClientOption configures a Client.
type ClientOption func(*clientConfig)

type clientConfig struct {
	apiOpts []option.ClientOption
	logger  *zap.Logger
}

// WithCredentialsFile authenticates with a service account JSON key file.
func WithCredentialsFile(path string) ClientOption {
	return func(c *clientConfig) {
		c.apiOpts = append(c.apiOpts, option.WithCredentialsFile(path), option.WithScopes(gcal.CalendarEventsScope))
	}
}

// WithEndpoint points the client at a different API endpoint using hc as the
// transport (for testing).
func WithEndpoint(url string, hc *http.Client) ClientOption {
	return func(c *clientConfig) {
		c.apiOpts = append(c.apiOpts, option.WithEndpoint(url), option.WithHTTPClient(hc))
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *clientConfig) {
		c.logger = l
	}
}

// NewClient creates a client for calendarID ("primary" for the account's own).
func NewClient(ctx context.Context, calendarID string, opts ...ClientOption) (*Client, error) {
	cfg := clientConfig{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}

	svc, err := gcal.NewService(ctx, cfg.apiOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating calendar service: %w", err)
	}

	return &Client{
		svc:        svc,
		calendarID: calendarID,
		logger:     cfg.logger,
		now:        time.Now,
	}, nil
}

// Upcoming returns up to limit events starting from now, in start order.
func (c *Client) Upcoming(ctx context.Context, limit int) ([]Event, error) {
	resp, err := c.svc.Events.List(c.calendarID).
		Context(ctx).
		TimeMin(c.now().Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(int64(limit)).
		Do()
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}

	events := make([]Event, 0, len(resp.Items))
	for _, item := range resp.Items {
		ev, err := fromAPI(item)
		if err != nil {
			c.logger.Warn("skipping event", zap.String("id", item.Id), zap.Error(err))
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// Insert creates an event and returns it as stored.
func (c *Client) Insert(ctx context.Context, ev Event) (Event, error) {
	if strings.TrimSpace(ev.Summary) == "" {
		return Event{}, fmt.Errorf("%w: summary is empty", ErrInvalidEvent)
	}
	if ev.Start.IsZero() || ev.End.IsZero() || ev.End.Before(ev.Start) {
		return Event{}, fmt.Errorf("%w: end must not be before start", ErrInvalidEvent)
	}

	created, err := c.svc.Events.Insert(c.calendarID, toAPI(ev)).Context(ctx).Do()
	if err != nil {
		return Event{}, fmt.Errorf("inserting event: %w", err)
	}
	c.logger.Info("inserted calendar event", zap.String("id", created.Id), zap.String("summary", created.Summary))
	return fromAPI(created)
}

func toAPI(ev Event) *gcal.Event {
	out := &gcal.Event{
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
	}
	if ev.AllDay {
		out.Start = &gcal.EventDateTime{Date: ev.Start.Format("2006-01-02")}
		out.End = &gcal.EventDateTime{Date: ev.End.Format("2006-01-02")}
	} else {
		out.Start = &gcal.EventDateTime{DateTime: ev.Start.Format(time.RFC3339)}
		out.End = &gcal.EventDateTime{DateTime: ev.End.Format(time.RFC3339)}
	}
	return out
}

func fromAPI(item *gcal.Event) (Event, error) {
	ev := Event{
		ID:          item.Id,
		Summary:     item.Summary,
		Description: item.Description,
		Location:    item.Location,
		Link:        item.HtmlLink,
	}
	var err error
	if ev.Start, ev.AllDay, err = parseEventTime(item.Start); err != nil {
		return Event{}, fmt.Errorf("start: %w", err)
	}
	if ev.End, _, err = parseEventTime(item.End); err != nil {
		return Event{}, fmt.Errorf("end: %w", err)
	}
	return ev, nil
}

func parseEventTime(t *gcal.EventDateTime) (time.Time, bool, error) {
	if t == nil {
		return time.Time{}, false, fmt.Errorf("missing time")
	}
	if t.DateTime != "" {
		v, err := time.Parse(time.RFC3339, t.DateTime)
		return v, false, err
	}
	v, err := time.Parse("2006-01-02", t.Date)
	return v, true, err
}
