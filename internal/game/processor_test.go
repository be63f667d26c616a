package game

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ebdekock/StaffSlackBot/internal/directory"
	"github.com/ebdekock/StaffSlackBot/internal/domain"
	"github.com/ebdekock/StaffSlackBot/internal/queue"
	"github.com/ebdekock/StaffSlackBot/internal/slack"
	"github.com/ebdekock/StaffSlackBot/internal/store"
)

type stubRoster struct{}

func (stubRoster) ListUsers(context.Context) ([]slack.Member, error) { return nil, nil }
func (stubRoster) ListDirectChannels(context.Context) (map[string]string, error) {
	return nil, nil
}

type sentText struct {
	channel string
	text    string
}

type sentPhoto struct {
	channel  string
	caption  string
	imageURL string
}

type fakeNotifier struct {
	mu     sync.Mutex
	texts  []sentText
	photos []sentPhoto
}

func (f *fakeNotifier) Notify(_ context.Context, channelID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, sentText{channel: channelID, text: text})
	return nil
}

func (f *fakeNotifier) NotifyPhoto(_ context.Context, channelID, caption, imageURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.photos = append(f.photos, sentPhoto{channel: channelID, caption: caption, imageURL: imageURL})
	return nil
}

func (f *fakeNotifier) sentTexts() []sentText {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentText(nil), f.texts...)
}

func (f *fakeNotifier) sentPhotos() []sentPhoto {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentPhoto(nil), f.photos...)
}

type testGame struct {
	proc     *Processor
	repo     *store.SQLiteRepo
	q        *queue.Queue
	notifier *fakeNotifier
}

func newTestGame(t *testing.T) *testGame {
	t.Helper()
	ctx := context.Background()

	repo, err := store.OpenSQLite(ctx, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	dir := directory.New(repo, stubRoster{}, "", zap.NewNop())
	notifier := &fakeNotifier{}
	q := queue.New()

	proc := NewProcessor(dir, repo, notifier, q, zap.NewNop(), Options{
		PlayCommand:      "play",
		QueueTimeout:     20 * time.Millisecond,
		ChallengeTimeout: 30 * time.Second,
	})
	return &testGame{proc: proc, repo: repo, q: q, notifier: notifier}
}

func (g *testGame) seedUser(t *testing.T, id, fullName, photo string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, g.repo.UpsertRosterUser(ctx, &domain.User{
		SlackID:  id,
		FullName: fullName,
		PhotoURL: photo,
		Eligible: photo != "",
	}))
	require.NoError(t, g.repo.SetChannel(ctx, id, "D"+id))
}

func (g *testGame) handle(t *testing.T, sender, text string) {
	t.Helper()
	msg, err := domain.NewIncomingMessage(sender, text)
	require.NoError(t, err)
	g.proc.Handle(context.Background(), msg)
}

func TestHandle_UnknownSender_NoReplyNoState(t *testing.T) {
	g := newTestGame(t)

	g.handle(t, "U404", "play")

	assert.Empty(t, g.notifier.sentTexts())
	assert.Empty(t, g.notifier.sentPhotos())
}

func TestHandle_Idle_UnknownCommand_Help(t *testing.T) {
	g := newTestGame(t)
	g.seedUser(t, "U1", "Ann Archer", "https://img/ann.jpg")

	g.handle(t, "U1", "hello?")

	texts := g.notifier.sentTexts()
	require.Len(t, texts, 1)
	assert.Equal(t, "DU1", texts[0].channel)
	assert.Equal(t, fmt.Sprintf(textUnknownFmt, "play"), texts[0].text)

	u, err := g.repo.GetUser(context.Background(), "U1")
	require.NoError(t, err)
	assert.False(t, u.HasChallenge(), "help must not change state")
}

func TestHandle_Idle_Play_IssuesChallenge(t *testing.T) {
	g := newTestGame(t)
	g.seedUser(t, "U1", "Ann Archer", "https://img/ann.jpg")
	g.seedUser(t, "U2", "Bob Byrne", "https://img/bob.jpg")

	g.handle(t, "U1", "play")

	u, err := g.repo.GetUser(context.Background(), "U1")
	require.NoError(t, err)
	assert.Equal(t, "U2", u.Challenge)
	require.NotNil(t, u.ChallengeAt)

	photos := g.notifier.sentPhotos()
	require.Len(t, photos, 1)
	assert.Equal(t, "DU1", photos[0].channel)
	assert.Equal(t, photoCaption, photos[0].caption)
	assert.Equal(t, "https://img/bob.jpg", photos[0].imageURL)

	hist, err := g.repo.ChallengeHistory(context.Background(), "U1")
	require.NoError(t, err)
	assert.Equal(t, []string{"U2"}, hist)
}

func TestHandle_Idle_Play_NoEligibleTargets(t *testing.T) {
	g := newTestGame(t)
	g.seedUser(t, "U1", "Ann Archer", "https://img/ann.jpg")
	g.seedUser(t, "U2", "Bob Byrne", "") // no avatar, ineligible

	g.handle(t, "U1", "play")

	texts := g.notifier.sentTexts()
	require.Len(t, texts, 1)
	assert.Equal(t, textNoTargets, texts[0].text)

	u, err := g.repo.GetUser(context.Background(), "U1")
	require.NoError(t, err)
	assert.False(t, u.HasChallenge(), "failed issue must remain idle")
}

func TestHandle_Awaiting_CorrectGuess(t *testing.T) {
	g := newTestGame(t)
	g.seedUser(t, "U1", "Ann Archer", "https://img/ann.jpg")
	g.seedUser(t, "U2", "Steve Smith", "https://img/steve.jpg")
	require.NoError(t, g.repo.SetChallenge(context.Background(), "U1", "U2", time.Now()))

	// Any whitespace token of the target's names matches, ignoring case.
	g.handle(t, "U1", "steve")

	texts := g.notifier.sentTexts()
	require.Len(t, texts, 1)
	assert.Equal(t, textCorrect, texts[0].text)

	u, err := g.repo.GetUser(context.Background(), "U1")
	require.NoError(t, err)
	assert.Empty(t, u.Challenge)
	assert.Nil(t, u.ChallengeAt)
}

func TestHandle_Awaiting_WrongGuess(t *testing.T) {
	g := newTestGame(t)
	g.seedUser(t, "U1", "Ann Archer", "https://img/ann.jpg")
	g.seedUser(t, "U2", "Steve Smith", "https://img/steve.jpg")
	require.NoError(t, g.repo.SetChallenge(context.Background(), "U1", "U2", time.Now()))

	g.handle(t, "U1", "Dave")

	texts := g.notifier.sentTexts()
	require.Len(t, texts, 1)
	assert.Equal(t, fmt.Sprintf(textWrongFmt, "Steve"), texts[0].text)

	u, err := g.repo.GetUser(context.Background(), "U1")
	require.NoError(t, err)
	assert.False(t, u.HasChallenge())
}

func TestHandle_Awaiting_PlayCommandIsAGuess(t *testing.T) {
	g := newTestGame(t)
	g.seedUser(t, "U1", "Ann Archer", "https://img/ann.jpg")
	g.seedUser(t, "U2", "Steve Smith", "https://img/steve.jpg")
	require.NoError(t, g.repo.SetChallenge(context.Background(), "U1", "U2", time.Now()))

	// "play" while awaiting resolves the round instead of re-issuing.
	g.handle(t, "U1", "play")

	texts := g.notifier.sentTexts()
	require.Len(t, texts, 1)
	assert.Equal(t, fmt.Sprintf(textWrongFmt, "Steve"), texts[0].text)
	assert.Empty(t, g.notifier.sentPhotos(), "no new challenge may be issued")
}

func TestHandle_Awaiting_TargetDeleted_FailSafe(t *testing.T) {
	g := newTestGame(t)
	g.seedUser(t, "U1", "Ann Archer", "https://img/ann.jpg")
	require.NoError(t, g.repo.SetChallenge(context.Background(), "U1", "UGONE", time.Now()))

	g.handle(t, "U1", "anyone")

	texts := g.notifier.sentTexts()
	require.Len(t, texts, 1)
	assert.Equal(t, textSystemError, texts[0].text)

	u, err := g.repo.GetUser(context.Background(), "U1")
	require.NoError(t, err)
	assert.Empty(t, u.Challenge, "dangling reference must be cleared")
	assert.Nil(t, u.ChallengeAt)
}

func TestIssueChallenge_WhileActive(t *testing.T) {
	g := newTestGame(t)
	g.seedUser(t, "U1", "Ann Archer", "https://img/ann.jpg")
	g.seedUser(t, "U2", "Bob Byrne", "https://img/bob.jpg")
	ctx := context.Background()
	require.NoError(t, g.repo.SetChallenge(ctx, "U1", "U2", time.Now()))

	u, err := g.repo.GetUser(ctx, "U1")
	require.NoError(t, err)

	err = g.proc.IssueChallenge(ctx, u)
	assert.True(t, errors.Is(err, ErrChallengeActive))
}

func TestRun_ConsumesQueueAndStops(t *testing.T) {
	g := newTestGame(t)
	g.seedUser(t, "U1", "Ann Archer", "https://img/ann.jpg")
	g.seedUser(t, "U2", "Bob Byrne", "https://img/bob.jpg")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		g.proc.Run(ctx)
		close(done)
	}()

	msg, err := domain.NewIncomingMessage("U1", "play")
	require.NoError(t, err)
	require.True(t, g.q.Enqueue(msg))

	require.Eventually(t, func() bool {
		return len(g.notifier.sentPhotos()) == 1
	}, 2*time.Second, 10*time.Millisecond, "queued message should be processed")

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("processor did not stop on cancellation")
	}
}
