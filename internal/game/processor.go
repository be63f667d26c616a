// Package game drives the guess-who state machine: issuing photo challenges,
// resolving guesses and expiring rounds that ran out of time.
package game

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ebdekock/StaffSlackBot/internal/directory"
	"github.com/ebdekock/StaffSlackBot/internal/domain"
	"github.com/ebdekock/StaffSlackBot/internal/queue"
	"github.com/ebdekock/StaffSlackBot/internal/store"
)

// ErrChallengeActive is returned when a challenge is issued to a user who
// already has one in flight. The message path can never reach this: a user
// with an active challenge always lands in the resolve branch first.
var ErrChallengeActive = errors.New("user already has an active challenge")

// Notifier delivers outbound replies to a user's direct channel. The bot has
// exactly one outbound capability regardless of transport.
type Notifier interface {
	Notify(ctx context.Context, channelID, text string) error
	NotifyPhoto(ctx context.Context, channelID, caption, imageURL string) error
}

// Options tunes the processor loop.
type Options struct {
	// PlayCommand starts a new game when a message begins with it.
	PlayCommand string
	// QueueTimeout bounds each dequeue wait so the loop can observe
	// cancellation even with no traffic.
	QueueTimeout time.Duration
	// ChallengeTimeout is how long a user has to answer before the expiry
	// sweep reveals the target.
	ChallengeTimeout time.Duration
}

// Processor consumes the event queue one message at a time and drives each
// sender's challenge state machine. Being the single consumer is what
// serializes per-user state transitions: two guesses from the same user can
// never race on the same row.
type Processor struct {
	dir      *directory.Directory
	repo     store.Repo
	notifier Notifier
	q        *queue.Queue
	log      *zap.Logger
	opts     Options
}

// NewProcessor creates a processor over the given queue.
func NewProcessor(dir *directory.Directory, repo store.Repo, notifier Notifier, q *queue.Queue, log *zap.Logger, opts Options) *Processor {
	return &Processor{
		dir:      dir,
		repo:     repo,
		notifier: notifier,
		q:        q,
		log:      log,
		opts:     opts,
	}
}

// Run consumes messages until ctx is canceled. An empty-queue timeout is a
// normal tick, not an error.
func (p *Processor) Run(ctx context.Context) {
	for {
		msg, ok := p.q.DequeueTimeout(ctx, p.opts.QueueTimeout)
		if ctx.Err() != nil {
			p.log.Info("processor stopping")
			return
		}
		if !ok {
			continue
		}
		p.Handle(ctx, msg)
	}
}

// Handle applies one message to the sender's state machine.
func (p *Processor) Handle(ctx context.Context, msg domain.IncomingMessage) {
	user, err := p.dir.Lookup(ctx, msg.SenderID)
	if err != nil {
		// Platform account with no directory row: nothing to reply to.
		p.log.Error("message from unprovisioned sender",
			zap.String("sender", msg.SenderID), zap.Error(err))
		return
	}

	if user.HasChallenge() {
		p.resolveChallenge(ctx, user, msg)
		return
	}

	if strings.HasPrefix(strings.TrimSpace(msg.Text), p.opts.PlayCommand) {
		if err := p.IssueChallenge(ctx, user); err != nil {
			p.log.Error("issue challenge failed",
				zap.String("user", user.SlackID), zap.Error(err))
		}
		return
	}

	p.log.Info("unknown command",
		zap.String("user", user.SlackID), zap.String("text", msg.Text))
	p.notify(ctx, user, fmt.Sprintf(textUnknownFmt, p.opts.PlayCommand))
}

// IssueChallenge starts a new round for an idle user: pick the next unseen
// target, persist the challenge pair and send the target's photo. Callers
// outside the message path get ErrChallengeActive if one is already running.
func (p *Processor) IssueChallenge(ctx context.Context, user *domain.User) error {
	if user.HasChallenge() {
		return ErrChallengeActive
	}

	target, err := p.dir.NextTarget(ctx, user.SlackID)
	if err != nil {
		if errors.Is(err, directory.ErrNoEligibleTargets) {
			p.notify(ctx, user, textNoTargets)
			return nil
		}
		return err
	}

	// History can reference a user deleted since the round began; the pick
	// is already recorded, so on retry the rotation moves past it.
	targetUser, err := p.dir.Lookup(ctx, target)
	if err != nil {
		p.notify(ctx, user, textSystemError)
		return fmt.Errorf("target %s unavailable: %w", target, err)
	}

	if err := p.repo.SetChallenge(ctx, user.SlackID, target, time.Now().UTC()); err != nil {
		return fmt.Errorf("persist challenge: %w", err)
	}

	p.log.Info("challenge issued",
		zap.String("user", user.SlackID), zap.String("target", target))
	if user.SlackChannel == "" {
		p.log.Warn("no direct channel for user", zap.String("user", user.SlackID))
		return nil
	}
	if err := p.notifier.NotifyPhoto(ctx, user.SlackChannel, photoCaption, targetUser.PhotoURL); err != nil {
		p.log.Error("send photo prompt failed",
			zap.String("user", user.SlackID), zap.Error(err))
	}
	return nil
}

// resolveChallenge ends the user's round with whatever answer they gave.
// The challenge pair is always cleared, even when the target row has gone
// missing, so a round can never dangle.
func (p *Processor) resolveChallenge(ctx context.Context, user *domain.User, msg domain.IncomingMessage) {
	target, err := p.dir.Lookup(ctx, user.Challenge)
	if err != nil {
		p.log.Error("challenge target missing",
			zap.String("user", user.SlackID),
			zap.String("target", user.Challenge),
			zap.Error(err))
		_ = p.clearChallenge(ctx, user)
		p.notify(ctx, user, textSystemError)
		return
	}

	var reply string
	if target.MatchesName(msg.Text) {
		reply = textCorrect
		p.log.Info("guessed correctly",
			zap.String("user", user.SlackID), zap.String("target", target.SlackID))
	} else {
		reply = fmt.Sprintf(textWrongFmt, target.FirstName())
		p.log.Info("guessed incorrectly",
			zap.String("user", user.SlackID),
			zap.String("target", target.SlackID),
			zap.String("guess", msg.Text))
	}

	_ = p.clearChallenge(ctx, user)
	p.notify(ctx, user, reply)
}

// clearChallenge persists an Idle transition.
func (p *Processor) clearChallenge(ctx context.Context, user *domain.User) error {
	if err := p.repo.ClearChallenge(ctx, user.SlackID); err != nil {
		p.log.Error("clear challenge failed",
			zap.String("user", user.SlackID), zap.Error(err))
		return err
	}
	user.ClearChallenge()
	return nil
}

// notify sends a reply where a direct channel is known.
func (p *Processor) notify(ctx context.Context, user *domain.User, text string) {
	if user.SlackChannel == "" {
		p.log.Warn("no direct channel for user", zap.String("user", user.SlackID))
		return
	}
	if err := p.notifier.Notify(ctx, user.SlackChannel, text); err != nil {
		p.log.Error("send reply failed",
			zap.String("user", user.SlackID), zap.Error(err))
	}
}
