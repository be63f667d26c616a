package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"

	"github.com/ebdekock/StaffSlackBot/internal/domain"
)

// SQLiteRepo implements Repo using an embedded SQLite database.
type SQLiteRepo struct{ db *sql.DB }

// OpenSQLite opens (or creates) the SQLite database at the given path,
// applies recommended PRAGMAs, runs SQL migrations, and returns a repository.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepo, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Reasonable pooling for SQLite; it's a single-writer engine.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Apply PRAGMAs and run migrations.
	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return &SQLiteRepo{db: db}, nil
}

// applyPragmas configures the SQLite connection for durability and concurrency.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying database resources.
func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

const userColumns = `slack_id, slack_channel, email, full_name, pref_name,
       phone, photo_url, eligible, challenge, challenge_datetime`

// scanUser reads one users row from any row-shaped scanner.
func scanUser(row interface{ Scan(...any) error }) (*domain.User, error) {
	var (
		slackID     string
		channelNS   sql.NullString
		emailNS     sql.NullString
		fullNameNS  sql.NullString
		prefNameNS  sql.NullString
		phoneNS     sql.NullString
		photoNS     sql.NullString
		eligibleInt int
		challengeNS sql.NullString
		startedNS   sql.NullInt64
	)

	if err := row.Scan(
		&slackID, &channelNS, &emailNS, &fullNameNS, &prefNameNS,
		&phoneNS, &photoNS, &eligibleInt, &challengeNS, &startedNS,
	); err != nil {
		return nil, err
	}

	return &domain.User{
		SlackID:      slackID,
		SlackChannel: fromNullString(channelNS),
		Email:        fromNullString(emailNS),
		FullName:     fromNullString(fullNameNS),
		PrefName:     fromNullString(prefNameNS),
		Phone:        fromNullString(phoneNS),
		PhotoURL:     fromNullString(photoNS),
		Eligible:     eligibleInt != 0,
		Challenge:    fromNullString(challengeNS),
		ChallengeAt:  fromNullInt64(startedNS),
	}, nil
}

// UpsertRosterUser inserts a user or refreshes their roster fields. On
// update, the direct channel and challenge pair are deliberately left alone:
// the channel is maintained by a separate sweep and the pair belongs to the
// processor and the expiry task.
func (r *SQLiteRepo) UpsertRosterUser(ctx context.Context, u *domain.User) error {
	if u == nil {
		return errors.New("nil user")
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (
			slack_id, slack_channel, email, full_name, pref_name,
			phone, photo_url, eligible, challenge, challenge_datetime
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL, NULL)
		ON CONFLICT(slack_id) DO UPDATE SET
			email     = excluded.email,
			full_name = excluded.full_name,
			pref_name = excluded.pref_name,
			phone     = excluded.phone,
			photo_url = excluded.photo_url,
			eligible  = excluded.eligible`,
		u.SlackID, toNullString(u.SlackChannel), toNullString(u.Email),
		toNullString(u.FullName), toNullString(u.PrefName),
		toNullString(u.Phone), toNullString(u.PhotoURL), boolToInt(u.Eligible),
	)
	return err
}

// GetUser returns a user by slack ID or ErrNotFound.
func (r *SQLiteRepo) GetUser(ctx context.Context, slackID string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE slack_id = ?`, slackID)

	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", slackID, ErrNotFound)
	}
	return u, err
}

// GetUserByChannel returns the user owning the given direct channel or ErrNotFound.
func (r *SQLiteRepo) GetUserByChannel(ctx context.Context, channel string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE slack_channel = ?`, channel)

	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("channel %s: %w", channel, ErrNotFound)
	}
	return u, err
}

// DeleteUser removes a user and their challenge history.
func (r *SQLiteRepo) DeleteUser(ctx context.Context, slackID string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM challenges WHERE slack_id = ?`, slackID); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM users WHERE slack_id = ?`, slackID)
	return err
}

// SetChannel records the direct channel shared with a user.
func (r *SQLiteRepo) SetChannel(ctx context.Context, slackID, channel string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET slack_channel = ?
		WHERE slack_id = ?`,
		toNullString(channel), slackID,
	)
	return err
}

// ListEligibleOthers returns the slack IDs of all eligible users except slackID.
func (r *SQLiteRepo) ListEligibleOthers(ctx context.Context, slackID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT slack_id FROM users
		WHERE eligible = 1 AND slack_id <> ?
		ORDER BY slack_id`,
		slackID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListActiveChallenges returns every user currently holding a challenge.
func (r *SQLiteRepo) ListActiveChallenges(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE challenge IS NOT NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *u)
	}
	return res, rows.Err()
}

// SetChallenge writes the challenge pair in one statement.
func (r *SQLiteRepo) SetChallenge(ctx context.Context, slackID, targetID string, at time.Time) error {
	ts := at.UTC()
	_, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET challenge = ?, challenge_datetime = ?
		WHERE slack_id = ?`,
		targetID, toNullInt64(&ts), slackID,
	)
	return err
}

// ClearChallenge nulls the challenge pair in one statement.
func (r *SQLiteRepo) ClearChallenge(ctx context.Context, slackID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET challenge = NULL, challenge_datetime = NULL
		WHERE slack_id = ?`,
		slackID,
	)
	return err
}

// ChallengeHistory returns the targets already issued to a user this round.
func (r *SQLiteRepo) ChallengeHistory(ctx context.Context, slackID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT challenge FROM challenges WHERE slack_id = ?`, slackID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AddChallengeHistory appends one history row.
func (r *SQLiteRepo) AddChallengeHistory(ctx context.Context, slackID, targetID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO challenges (slack_id, challenge) VALUES (?, ?)`,
		slackID, targetID,
	)
	return err
}

// ResetChallengeHistory starts a new round for a user.
func (r *SQLiteRepo) ResetChallengeHistory(ctx context.Context, slackID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM challenges WHERE slack_id = ?`, slackID)
	return err
}
