package bot

import (
	"context"
	"strings"
	"sync"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
	"go.uber.org/zap"
)

// Listen serves Socket Mode events until ctx is cancelled and every started
// handler has returned.
func (b *Bot) Listen(ctx context.Context, client *socketmode.Client) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-client.Events:
				if !ok {
					return
				}
				b.handleEvent(ctx, &wg, func(req socketmode.Request) { client.Ack(req) }, evt)
			}
		}
	}()

	err := client.RunContext(ctx)
	cancel()
	<-done
	wg.Wait()
	return err
}

// handleEvent acknowledges evt and runs its handler in the background.
// Slack requires the acknowledgement within three seconds.
func (b *Bot) handleEvent(ctx context.Context, wg *sync.WaitGroup, ack func(socketmode.Request), evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeConnecting:
		b.logger.Info("connecting to Slack")
	case socketmode.EventTypeConnected:
		b.logger.Info("connected to Slack")
	case socketmode.EventTypeConnectionError:
		b.logger.Warn("Slack connection failed, retrying")

	case socketmode.EventTypeSlashCommand:
		sc, ok := evt.Data.(slack.SlashCommand)
		if !ok || evt.Request == nil {
			return
		}
		ack(*evt.Request)
		cmd := Command{
			Name:      strings.TrimPrefix(sc.Command, "/"),
			Text:      sc.Text,
			UserID:    sc.UserID,
			ChannelID: sc.ChannelID,
		}
		b.spawn(wg, func() {
			if err := b.HandleCommand(ctx, cmd); err != nil {
				b.logger.Error("handling command", zap.String("command", cmd.Name), zap.Error(err))
			}
		})

	case socketmode.EventTypeEventsAPI:
		ev, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok || evt.Request == nil {
			return
		}
		ack(*evt.Request)
		if ev.Type != slackevents.CallbackEvent {
			return
		}

		var msg Message
		switch inner := ev.InnerEvent.Data.(type) {
		case *slackevents.MessageEvent:
			if inner.BotID != "" || inner.SubType != "" {
				return
			}
			msg = Message{Text: inner.Text, UserID: inner.User, ChannelID: inner.Channel}
		case *slackevents.AppMentionEvent:
			msg = Message{Text: stripMention(inner.Text), UserID: inner.User, ChannelID: inner.Channel}
		default:
			return
		}
		b.spawn(wg, func() {
			if err := b.HandleMessage(ctx, msg); err != nil {
				b.logger.Error("handling message", zap.String("user", msg.UserID), zap.Error(err))
			}
		})
	}
}

func (b *Bot) spawn(wg *sync.WaitGroup, f func()) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		f()
	}()
}

// stripMention removes a leading <@BOT> mention.
func stripMention(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "<@") {
		if i := strings.IndexByte(text, '>'); i >= 0 {
			return strings.TrimSpace(text[i+1:])
		}
	}
	return text
}
