package game

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpireStale_TimesOutOldChallenge(t *testing.T) {
	g := newTestGame(t)
	g.seedUser(t, "U1", "Ann Archer", "https://img/ann.jpg")
	g.seedUser(t, "U2", "Steve Smith", "https://img/steve.jpg")
	ctx := context.Background()

	started := time.Now().Add(-time.Minute) // well past the 30s timeout
	require.NoError(t, g.repo.SetChallenge(ctx, "U1", "U2", started))

	g.proc.ExpireStale(ctx)

	texts := g.notifier.sentTexts()
	require.Len(t, texts, 1)
	assert.Equal(t, "DU1", texts[0].channel)
	assert.Equal(t, fmt.Sprintf(textTimeoutFmt, "Steve"), texts[0].text)

	u, err := g.repo.GetUser(ctx, "U1")
	require.NoError(t, err)
	assert.False(t, u.HasChallenge())

	// A second sweep finds nothing: exactly one notification per expiry.
	g.proc.ExpireStale(ctx)
	assert.Len(t, g.notifier.sentTexts(), 1)
}

func TestExpireStale_KeepsFreshChallenge(t *testing.T) {
	g := newTestGame(t)
	g.seedUser(t, "U1", "Ann Archer", "https://img/ann.jpg")
	g.seedUser(t, "U2", "Steve Smith", "https://img/steve.jpg")
	ctx := context.Background()

	require.NoError(t, g.repo.SetChallenge(ctx, "U1", "U2", time.Now()))

	g.proc.ExpireStale(ctx)

	assert.Empty(t, g.notifier.sentTexts())
	u, err := g.repo.GetUser(ctx, "U1")
	require.NoError(t, err)
	assert.True(t, u.HasChallenge())
}

func TestExpireStale_MissingTargetSkipped(t *testing.T) {
	g := newTestGame(t)
	g.seedUser(t, "U1", "Ann Archer", "https://img/ann.jpg")
	ctx := context.Background()

	require.NoError(t, g.repo.SetChallenge(ctx, "U1", "UGONE", time.Now().Add(-time.Minute)))

	// Must not panic and must not notify; the row is left for the resolve
	// path's fail-safe to clean up.
	g.proc.ExpireStale(ctx)
	assert.Empty(t, g.notifier.sentTexts())
}

func TestExpireStale_OnlyStaleAmongMany(t *testing.T) {
	g := newTestGame(t)
	g.seedUser(t, "U1", "Ann Archer", "https://img/ann.jpg")
	g.seedUser(t, "U2", "Bob Byrne", "https://img/bob.jpg")
	g.seedUser(t, "U3", "Cat Cole", "https://img/cat.jpg")
	ctx := context.Background()

	require.NoError(t, g.repo.SetChallenge(ctx, "U1", "U3", time.Now().Add(-time.Minute)))
	require.NoError(t, g.repo.SetChallenge(ctx, "U2", "U3", time.Now()))

	g.proc.ExpireStale(ctx)

	texts := g.notifier.sentTexts()
	require.Len(t, texts, 1)
	assert.Equal(t, "DU1", texts[0].channel)

	u2, err := g.repo.GetUser(ctx, "U2")
	require.NoError(t, err)
	assert.True(t, u2.HasChallenge(), "fresh challenge must survive the sweep")
}
