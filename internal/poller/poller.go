// Package poller is the producer loop: it reads raw events from the platform,
// classifies them and feeds the event queue.
package poller

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ebdekock/StaffSlackBot/internal/domain"
	"github.com/ebdekock/StaffSlackBot/internal/queue"
	"github.com/ebdekock/StaffSlackBot/internal/slack"
)

// EventSource yields batches of raw platform events. An empty batch means a
// quiet interval, not an error.
type EventSource interface {
	ReadEvents(ctx context.Context) ([]slack.RawEvent, error)
}

// Classifier decides which raw events are messages for the bot.
type Classifier interface {
	Classify(ctx context.Context, ev slack.RawEvent) (domain.IncomingMessage, bool)
}

// Poller reads, classifies and enqueues in its own goroutine.
type Poller struct {
	source     EventSource
	classifier Classifier
	q          *queue.Queue
	interval   time.Duration
	log        *zap.Logger
}

// New creates a poller that sleeps interval between reads.
func New(source EventSource, classifier Classifier, q *queue.Queue, interval time.Duration, log *zap.Logger) *Poller {
	return &Poller{
		source:     source,
		classifier: classifier,
		q:          q,
		interval:   interval,
		log:        log,
	}
}

// Run loops until ctx is canceled. Read failures are logged and the loop
// carries on at the next interval; one bad call never kills the poller.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.pollOnce(ctx)

		select {
		case <-ctx.Done():
			p.log.Info("poller stopping")
			return
		case <-ticker.C:
		}
	}
}

// pollOnce reads one batch and enqueues everything addressed to the bot.
func (p *Poller) pollOnce(ctx context.Context) {
	events, err := p.source.ReadEvents(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.log.Error("read events failed", zap.Error(err))
	}
	for _, ev := range events {
		msg, ok := p.classifier.Classify(ctx, ev)
		if !ok {
			continue
		}
		if !p.q.Enqueue(msg) {
			p.log.Warn("queue closed, dropping message",
				zap.String("sender", msg.SenderID))
			return
		}
	}
}
