package game

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ExpireStale ends every challenge whose deadline has passed: the target's
// name is revealed, the pair is cleared and the user notified exactly once.
// Runs as a periodic scheduler task; shares the processor's clear and notify
// sequence with the resolve path.
func (p *Processor) ExpireStale(ctx context.Context) {
	users, err := p.repo.ListActiveChallenges(ctx)
	if err != nil {
		p.log.Error("list active challenges failed", zap.Error(err))
		return
	}

	now := time.Now().UTC()
	for i := range users {
		user := &users[i]
		if user.ChallengeAt == nil {
			// Half a pair should be unreachable; reset it rather than
			// let the row dangle forever.
			p.log.Error("challenge without start time",
				zap.String("user", user.SlackID))
			_ = p.clearChallenge(ctx, user)
			continue
		}
		if now.Sub(*user.ChallengeAt) < p.opts.ChallengeTimeout {
			continue
		}

		target, err := p.dir.Lookup(ctx, user.Challenge)
		if err != nil {
			p.log.Error("expiry target missing",
				zap.String("user", user.SlackID),
				zap.String("target", user.Challenge),
				zap.Error(err))
			continue
		}

		p.log.Info("challenge expired",
			zap.String("user", user.SlackID),
			zap.String("target", target.SlackID))

		// Clear before notifying so a failed send cannot cause a second
		// timeout message on the next sweep.
		if p.clearChallenge(ctx, user) != nil {
			continue
		}
		p.notify(ctx, user, fmt.Sprintf(textTimeoutFmt, target.FirstName()))
	}
}
