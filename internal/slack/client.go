// Package slack wraps the Slack web and RTM APIs behind the small surface
// the rest of the bot consumes: an event source, a roster, and a notifier.
// No slack-go types leak out of this package.
package slack

import (
	"context"
	"errors"
	"fmt"

	api "github.com/slack-go/slack"
	"go.uber.org/zap"
)

// RawEvent is one platform event, reduced to the fields classification needs.
type RawEvent struct {
	Type      string
	SubType   string
	UserID    string
	ChannelID string
	Text      string
}

// Member is one roster entry as reported by the platform, before any
// validation or eligibility filtering.
type Member struct {
	ID       string
	Email    string
	FullName string
	PrefName string
	Phone    string
	PhotoURL string
	Deleted  bool
	IsBot    bool
}

// Client talks to Slack. It implements the poller's event source, the
// directory's roster source and the game's notifier.
type Client struct {
	api   *api.Client
	rtm   *api.RTM
	log   *zap.Logger
	botID string
}

// NewClient creates a client for the given bot token.
func NewClient(token string, log *zap.Logger) *Client {
	return &Client{
		api: api.New(token),
		log: log,
	}
}

// Connect verifies the token, learns the bot's own user ID and starts the
// real-time session. Must be called once before ReadEvents.
func (c *Client) Connect(ctx context.Context) error {
	resp, err := c.api.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("auth test: %w", err)
	}
	if resp.UserID == "" {
		return errors.New("auth test returned no user id")
	}
	c.botID = resp.UserID
	c.log.Debug("authenticated", zap.String("bot_id", c.botID))

	c.rtm = c.api.NewRTM()
	go c.rtm.ManageConnection()
	return nil
}

// Disconnect closes the real-time session.
func (c *Client) Disconnect() error {
	if c.rtm == nil {
		return nil
	}
	return c.rtm.Disconnect()
}

// BotID returns the bot's own Slack user ID. Valid after Connect.
func (c *Client) BotID() string {
	return c.botID
}

// ReadEvents drains whatever the real-time session has buffered and returns
// it as a batch. It never waits for more events: an empty batch just means a
// quiet interval. Auth failures surface as errors so the poller can log them.
func (c *Client) ReadEvents(ctx context.Context) ([]RawEvent, error) {
	var batch []RawEvent
	for {
		select {
		case <-ctx.Done():
			return batch, ctx.Err()
		case ev, ok := <-c.rtm.IncomingEvents:
			if !ok {
				return batch, errors.New("rtm: event stream closed")
			}
			switch data := ev.Data.(type) {
			case *api.MessageEvent:
				batch = append(batch, RawEvent{
					Type:      data.Type,
					SubType:   data.SubType,
					UserID:    data.User,
					ChannelID: data.Channel,
					Text:      data.Text,
				})
			case *api.RTMError:
				return batch, fmt.Errorf("rtm: %w", data)
			case *api.InvalidAuthEvent:
				return batch, errors.New("rtm: invalid auth")
			default:
				// Presence, typing, acks: not messages, not our problem.
			}
		default:
			return batch, nil
		}
	}
}

// ListUsers fetches the full workspace roster.
func (c *Client) ListUsers(ctx context.Context) ([]Member, error) {
	users, err := c.api.GetUsersContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("users.list: %w", err)
	}

	members := make([]Member, 0, len(users))
	for _, u := range users {
		members = append(members, Member{
			ID:       u.ID,
			Email:    u.Profile.Email,
			FullName: u.Profile.RealNameNormalized,
			PrefName: u.Profile.DisplayNameNormalized,
			Phone:    u.Profile.Phone,
			PhotoURL: u.Profile.Image192,
			Deleted:  u.Deleted,
			IsBot:    u.IsBot,
		})
	}
	return members, nil
}

// ListDirectChannels pages through the bot's IM conversations and returns a
// user ID to channel ID mapping.
func (c *Client) ListDirectChannels(ctx context.Context) (map[string]string, error) {
	channels := make(map[string]string)
	params := &api.GetConversationsParameters{
		Types: []string{"im"},
		Limit: 200,
	}
	for {
		page, cursor, err := c.api.GetConversationsContext(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("conversations.list: %w", err)
		}
		for _, ch := range page {
			if ch.User != "" {
				channels[ch.User] = ch.ID
			}
		}
		if cursor == "" {
			return channels, nil
		}
		params.Cursor = cursor
	}
}

// Notify sends a plain text message to a channel.
func (c *Client) Notify(ctx context.Context, channelID, text string) error {
	_, _, err := c.api.PostMessageContext(ctx, channelID, api.MsgOptionText(text, false))
	return err
}

// NotifyPhoto sends an image attachment with a caption to a channel.
func (c *Client) NotifyPhoto(ctx context.Context, channelID, caption, imageURL string) error {
	att := api.Attachment{Text: caption, ImageURL: imageURL}
	_, _, err := c.api.PostMessageContext(ctx, channelID, api.MsgOptionAttachments(att))
	return err
}
