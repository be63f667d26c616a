package store

import (
	"context"
	"errors"
	"time"

	"github.com/ebdekock/StaffSlackBot/internal/domain"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Repo defines storage operations for users and challenge history.
//
// Roster fields and the challenge pair are written through separate
// operations: directory sync must never clobber an in-flight game.
type Repo interface {
	// UpsertRosterUser inserts a user or updates their roster fields
	// (email, names, phone, photo, eligibility), leaving the direct
	// channel and challenge pair untouched on update.
	UpsertRosterUser(ctx context.Context, u *domain.User) error
	GetUser(ctx context.Context, slackID string) (*domain.User, error)
	GetUserByChannel(ctx context.Context, channel string) (*domain.User, error)
	DeleteUser(ctx context.Context, slackID string) error
	SetChannel(ctx context.Context, slackID, channel string) error

	// ListEligibleOthers returns the slack IDs of every eligible user
	// except the given one.
	ListEligibleOthers(ctx context.Context, slackID string) ([]string, error)
	// ListActiveChallenges returns every user with a non-null challenge.
	ListActiveChallenges(ctx context.Context) ([]domain.User, error)

	// SetChallenge and ClearChallenge write the challenge pair atomically.
	SetChallenge(ctx context.Context, slackID, targetID string, at time.Time) error
	ClearChallenge(ctx context.Context, slackID string) error

	// Challenge history for round rotation: append-only per user, bulk
	// deleted on round reset.
	ChallengeHistory(ctx context.Context, slackID string) ([]string, error)
	AddChallengeHistory(ctx context.Context, slackID, targetID string) error
	ResetChallengeHistory(ctx context.Context, slackID string) error

	Close() error
}
