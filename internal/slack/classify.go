package slack

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/ebdekock/StaffSlackBot/internal/domain"
)

// Direct mention at the start of a message: <@U...> or <@W...>, optionally
// followed by free text.
var mentionRx = regexp.MustCompile(`(?i)^<@([WU][A-Z0-9]+)>(.*)`)

// ChannelDirectory answers whether a channel is a known direct channel
// between the bot and a user.
type ChannelDirectory interface {
	IsDirectChannel(ctx context.Context, channelID string) bool
}

// Classifier turns raw platform events into incoming messages. An event is
// kept when it is a plain user message that either mentions the bot at the
// start of its text or arrives on a registered direct channel; everything
// else is dropped.
type Classifier struct {
	botID    string
	channels ChannelDirectory
	log      *zap.Logger
}

// NewClassifier creates a classifier for the given bot identity.
func NewClassifier(botID string, channels ChannelDirectory, log *zap.Logger) *Classifier {
	return &Classifier{botID: botID, channels: channels, log: log}
}

// parseDirectMention extracts a leading mention from message text.
func parseDirectMention(text string) (userID, rest string, ok bool) {
	m := mentionRx.FindStringSubmatch(text)
	if m == nil {
		return "", "", false
	}
	return m[1], strings.TrimSpace(m[2]), true
}

// Classify returns the normalized message for an event addressed to the bot,
// or false when the event should be ignored.
func (c *Classifier) Classify(ctx context.Context, ev RawEvent) (domain.IncomingMessage, bool) {
	if ev.Type != "message" || ev.SubType != "" {
		return domain.IncomingMessage{}, false
	}

	if id, rest, ok := parseDirectMention(ev.Text); ok && strings.EqualFold(id, c.botID) {
		// A bare mention with no text would only earn a confused reply;
		// drop it silently.
		if rest == "" {
			return domain.IncomingMessage{}, false
		}
		msg, err := domain.NewIncomingMessage(ev.UserID, rest)
		if err != nil {
			c.log.Warn("dropping malformed mention event", zap.Error(err))
			return domain.IncomingMessage{}, false
		}
		return msg, true
	}

	if c.channels.IsDirectChannel(ctx, ev.ChannelID) {
		msg, err := domain.NewIncomingMessage(ev.UserID, ev.Text)
		if err != nil {
			c.log.Warn("dropping malformed direct message event", zap.Error(err))
			return domain.IncomingMessage{}, false
		}
		return msg, true
	}

	return domain.IncomingMessage{}, false
}
