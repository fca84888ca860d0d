// Package messenger delivers bot replies, messages and DMs through Slack.
package messenger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/slack-go/slack"
	"go.uber.org/zap"
)

// Visibility selects who sees a reply.
type Visibility int

const (
	// Public replies are posted to the channel.
	Public Visibility = iota
	// Private replies are ephemeral and only visible to the requesting user.
	Private
)

// Target identifies where a reply goes.
type Target struct {
	ChannelID string
	UserID    string
}

// ReplyOptions controls reply delivery.
type ReplyOptions struct {
	Visibility Visibility
	// AutoExpire deletes a public reply after the delay. Ephemeral replies
	// expire on the client side and ignore it.
	AutoExpire time.Duration
}

// Slack implements message delivery on a Slack workspace.
type Slack struct {
	api    *slack.Client
	logger *zap.Logger

	mu        sync.Mutex
	userCache map[string]string
	timers    map[*time.Timer]struct{}
	closed    bool
}

// NewSlack wraps a Slack API client.
func NewSlack(api *slack.Client, logger *zap.Logger) *Slack {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Slack{
		api:       api,
		logger:    logger,
		userCache: make(map[string]string),
		timers:    make(map[*time.Timer]struct{}),
	}
}

// Reply answers a user in the channel they wrote from.
func (s *Slack) Reply(ctx context.Context, to Target, text string, opts ReplyOptions) error {
	if opts.Visibility == Private {
		if _, err := s.api.PostEphemeralContext(ctx, to.ChannelID, to.UserID, slack.MsgOptionText(text, false)); err != nil {
			return fmt.Errorf("posting ephemeral reply: %w", err)
		}
		return nil
	}

	channel, ts, err := s.api.PostMessageContext(ctx, to.ChannelID, slack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("posting reply: %w", err)
	}
	if opts.AutoExpire > 0 {
		s.expireAfter(channel, ts, opts.AutoExpire)
	}
	return nil
}

// Send posts text to a channel.
func (s *Slack) Send(ctx context.Context, channelID, text string) error {
	if _, _, err := s.api.PostMessageContext(ctx, channelID, slack.MsgOptionText(text, false)); err != nil {
		return fmt.Errorf("posting to %s: %w", channelID, err)
	}
	return nil
}

// DirectMessage opens (or reuses) a DM with userID and posts text.
func (s *Slack) DirectMessage(ctx context.Context, userID, text string) error {
	ch, _, _, err := s.api.OpenConversationContext(ctx, &slack.OpenConversationParameters{
		Users:    []string{userID},
		ReturnIM: true,
	})
	if err != nil {
		return fmt.Errorf("opening DM with %s: %w", userID, err)
	}
	return s.Send(ctx, ch.ID, text)
}

// GroupMembers returns the user IDs of a user group.
func (s *Slack) GroupMembers(ctx context.Context, groupID string) ([]string, error) {
	members, err := s.api.GetUserGroupMembersContext(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("listing members of %s: %w", groupID, err)
	}
	return members, nil
}

// UserName resolves a user ID to a display name, preferring the profile
// display name, then the real name, then the username.
func (s *Slack) UserName(ctx context.Context, userID string) (string, error) {
	s.mu.Lock()
	name, ok := s.userCache[userID]
	s.mu.Unlock()
	if ok {
		return name, nil
	}

	user, err := s.api.GetUserInfoContext(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("looking up user %s: %w", userID, err)
	}

	name = user.Profile.DisplayName
	if name == "" {
		name = user.Profile.RealName
	}
	if name == "" {
		name = user.RealName
	}
	if name == "" {
		name = user.Name
	}

	s.mu.Lock()
	s.userCache[userID] = name
	s.mu.Unlock()
	return name, nil
}

// Close cancels pending reply deletions.
func (s *Slack) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for t := range s.timers {
		t.Stop()
	}
	clear(s.timers)
}

func (s *Slack) expireAfter(channel, ts string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	var t *time.Timer
	t = time.AfterFunc(d, func() {
		s.mu.Lock()
		delete(s.timers, t)
		s.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, _, err := s.api.DeleteMessageContext(ctx, channel, ts); err != nil {
			s.logger.Warn("deleting expired reply", zap.String("channel", channel), zap.String("ts", ts), zap.Error(err))
		}
	})
	s.timers[t] = struct{}{}
}
