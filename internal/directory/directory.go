// Package directory is the domain model over the user store: it owns roster
// synchronisation and the challenge rotation algorithm.
package directory

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ebdekock/StaffSlackBot/internal/domain"
	"github.com/ebdekock/StaffSlackBot/internal/slack"
	"github.com/ebdekock/StaffSlackBot/internal/store"
)

// ErrNoEligibleTargets is returned when a user has nobody left to guess:
// the directory holds no eligible user other than themselves.
var ErrNoEligibleTargets = errors.New("no eligible challenge targets")

// Roster is the platform-side view of the workforce the directory syncs from.
type Roster interface {
	ListUsers(ctx context.Context) ([]slack.Member, error)
	ListDirectChannels(ctx context.Context) (map[string]string, error)
}

// Directory exposes user lookups, the rotation algorithm and roster sync.
// It holds no state of its own; the store is the single source of truth.
type Directory struct {
	repo        store.Repo
	roster      Roster
	log         *zap.Logger
	emailDomain string
	rng         *rand.Rand
}

// New creates a directory. emailDomain, when non-empty, restricts sync to
// roster members whose email contains it.
func New(repo store.Repo, roster Roster, emailDomain string, log *zap.Logger) *Directory {
	return &Directory{
		repo:        repo,
		roster:      roster,
		log:         log,
		emailDomain: emailDomain,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Lookup returns a user by slack ID.
func (d *Directory) Lookup(ctx context.Context, slackID string) (*domain.User, error) {
	return d.repo.GetUser(ctx, slackID)
}

// IsDirectChannel reports whether the channel belongs to a known user's IM
// with the bot. Lookup failures count as unknown.
func (d *Directory) IsDirectChannel(ctx context.Context, channelID string) bool {
	_, err := d.repo.GetUserByChannel(ctx, channelID)
	return err == nil
}

// NextTarget runs one step of the rotation algorithm for a user: pick an
// eligible other user they have not been shown this round, resetting the
// round first if everyone has been used. The pick is recorded in history
// before it is returned, so a failure later in the issue path cannot cause
// the same target to be handed out twice within the round.
func (d *Directory) NextTarget(ctx context.Context, slackID string) (string, error) {
	eligible, err := d.repo.ListEligibleOthers(ctx, slackID)
	if err != nil {
		return "", fmt.Errorf("list eligible: %w", err)
	}
	if len(eligible) == 0 {
		return "", ErrNoEligibleTargets
	}

	history, err := d.repo.ChallengeHistory(ctx, slackID)
	if err != nil {
		return "", fmt.Errorf("load history: %w", err)
	}

	seen := make(map[string]struct{}, len(history))
	for _, id := range history {
		seen[id] = struct{}{}
	}
	available := make([]string, 0, len(eligible))
	for _, id := range eligible {
		if _, ok := seen[id]; !ok {
			available = append(available, id)
		}
	}

	if len(available) == 0 {
		// Round exhausted: everyone eligible has been shown once.
		if err := d.repo.ResetChallengeHistory(ctx, slackID); err != nil {
			return "", fmt.Errorf("reset round: %w", err)
		}
		available = eligible
	}

	target := available[d.rng.Intn(len(available))]
	if err := d.repo.AddChallengeHistory(ctx, slackID, target); err != nil {
		return "", fmt.Errorf("record pick: %w", err)
	}
	return target, nil
}

// Sync reconciles the store with the platform roster: active members inside
// the email filter are upserted, everyone else is removed. Afterwards the
// direct-channel mapping is refreshed. Challenge state is never touched.
func (d *Directory) Sync(ctx context.Context) error {
	members, err := d.roster.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	var kept, removed int
	for _, m := range members {
		u, err := parseMember(m)
		if err != nil {
			d.log.Warn("skipping invalid roster member", zap.Error(err))
			continue
		}
		if !d.isActive(m) {
			if err := d.repo.DeleteUser(ctx, u.SlackID); err != nil {
				return fmt.Errorf("delete %s: %w", u.SlackID, err)
			}
			removed++
			continue
		}
		if err := d.repo.UpsertRosterUser(ctx, u); err != nil {
			return fmt.Errorf("upsert %s: %w", u.SlackID, err)
		}
		kept++
	}

	channels, err := d.roster.ListDirectChannels(ctx)
	if err != nil {
		return fmt.Errorf("list direct channels: %w", err)
	}
	for userID, channelID := range channels {
		id, err := domain.NormalizeID("slack_id", userID)
		if err != nil {
			continue
		}
		if err := d.repo.SetChannel(ctx, id, channelID); err != nil {
			return fmt.Errorf("set channel for %s: %w", id, err)
		}
	}

	d.log.Info("directory sync complete",
		zap.Int("active", kept),
		zap.Int("removed", removed),
		zap.Int("channels", len(channels)),
	)
	return nil
}

// isActive reports whether a roster member belongs in the directory:
// not deleted, not a bot, and inside the email-domain filter when one is set.
func (d *Directory) isActive(m slack.Member) bool {
	if m.Deleted || m.IsBot {
		return false
	}
	if d.emailDomain == "" {
		return true
	}
	return m.Email != "" && strings.Contains(m.Email, d.emailDomain)
}

// parseMember validates and normalizes one roster entry. Members without an
// avatar stay in the directory but are not eligible as challenge targets:
// there is nothing to show.
func parseMember(m slack.Member) (*domain.User, error) {
	u, err := domain.NewUser(m.ID)
	if err != nil {
		return nil, err
	}
	u.SetEmail(m.Email)
	u.FullName = m.FullName
	u.PrefName = m.PrefName
	u.Phone = m.Phone
	u.PhotoURL = m.PhotoURL
	u.Eligible = m.PhotoURL != ""
	return u, nil
}
