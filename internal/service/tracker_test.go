package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"
	"wynn-tracker/internal/api"
	"wynn-tracker/internal/config"
	"wynn-tracker/internal/database"
	"wynn-tracker/internal/domain"
	"wynn-tracker/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", "file::memory:?_foreign_keys=on&_txlock=immediate")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	// a :memory: database exists per connection
	db.SetMaxOpenConns(1)

	require.NoError(t, database.RunMigrations(db, zerolog.Nop()))
	return db
}

type testEnv struct {
	db         *sql.DB
	players    *repository.PlayerRepository
	characters *repository.CharacterRepository
	stats      *repository.StatsRepository
	fetcher    *fakeFetcher
	cfg        *config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	return &testEnv{
		db:         db,
		players:    repository.NewPlayerRepository(db, zerolog.Nop()),
		characters: repository.NewCharacterRepository(db, zerolog.Nop()),
		stats:      repository.NewStatsRepository(db, zerolog.Nop()),
		fetcher:    newFakeFetcher(),
		cfg: &config.Config{
			FetchInterval:   15 * time.Minute,
			CheckInterval:   time.Second,
			OnlineThreshold: 15 * time.Minute,
		},
	}
}

func (e *testEnv) newTracker(now time.Time) *Tracker {
	tracker := NewTracker(e.fetcher, e.players, e.characters, e.stats, e.cfg, zerolog.Nop())
	tracker.now = func() time.Time { return now }
	return tracker
}

func (e *testEnv) seed(t *testing.T, playerUUID, characterUUID string, lastFetchedAt *time.Time) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, e.players.Upsert(ctx, &domain.Player{
		UUID: playerUUID, Username: "u-" + playerUUID, CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, e.characters.Upsert(ctx, &domain.Character{
		UUID: characterUUID, PlayerUUID: playerUUID, LastFetchedAt: lastFetchedAt, CreatedAt: now,
	}))
}

type fakeFetcher struct {
	mu        sync.Mutex
	responses map[string]*api.PlayerResponse
	failures  map[string]error
	calls     map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		responses: make(map[string]*api.PlayerResponse),
		failures:  make(map[string]error),
		calls:     make(map[string]int),
	}
}

func (f *fakeFetcher) FetchPlayer(_ context.Context, playerUUID string) (*api.PlayerResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[playerUUID]++
	if err, ok := f.failures[playerUUID]; ok {
		return nil, err
	}
	if resp, ok := f.responses[playerUUID]; ok {
		return resp, nil
	}
	return nil, api.ErrNotFound
}

func (f *fakeFetcher) callCount(playerUUID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[playerUUID]
}

func playerResponse(playerUUID, characterUUID string, level int64) *api.PlayerResponse {
	return &api.PlayerResponse{
		UUID:     playerUUID,
		Username: "u-" + playerUUID,
		Characters: map[string]api.CharacterPayload{
			characterUUID: {Level: &level},
		},
	}
}

func TestDefaultClocksStampUTC(t *testing.T) {
	tracker := NewTracker(nil, nil, nil, nil, &config.Config{}, zerolog.Nop())
	assert.Equal(t, time.UTC, tracker.now().Location())

	svc := NewCharacterService(nil, nil, nil, nil, &config.Config{}, zerolog.Nop())
	assert.Equal(t, time.UTC, svc.now().Location())
}

func TestShouldFetch(t *testing.T) {
	now := time.Now().UTC()
	interval := 15 * time.Minute
	past := func(d time.Duration) *time.Time {
		at := now.Add(-d)
		return &at
	}

	assert.True(t, ShouldFetch(now, nil, interval), "never fetched is due")
	assert.True(t, ShouldFetch(now, past(20*time.Minute), interval))
	assert.True(t, ShouldFetch(now, past(15*time.Minute), interval), "boundary is inclusive")
	assert.False(t, ShouldFetch(now, past(5*time.Minute), interval))

	future := now.Add(10 * time.Minute)
	assert.True(t, ShouldFetch(now, &future, interval), "future timestamp is due immediately")
}

func TestTimeUntilNextFetch(t *testing.T) {
	now := time.Now().UTC()
	interval := 15 * time.Minute

	assert.Equal(t, time.Duration(0), TimeUntilNextFetch(now, nil, interval))

	overdue := now.Add(-20 * time.Minute)
	assert.Equal(t, time.Duration(0), TimeUntilNextFetch(now, &overdue, interval))

	recent := now.Add(-5 * time.Minute)
	assert.Equal(t, 10*time.Minute, TimeUntilNextFetch(now, &recent, interval))
}

func TestRunCycleFailureIsolation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	env.seed(t, "pa", "ca", nil)
	env.seed(t, "pb", "cb", nil)
	env.seed(t, "pc", "cc", nil)

	env.fetcher.failures["pa"] = api.ErrUnreachable
	env.fetcher.responses["pb"] = playerResponse("pb", "cb", 10)
	env.fetcher.responses["pc"] = playerResponse("pc", "cc", 20)

	env.newTracker(now).RunCycle(ctx)

	a, err := env.characters.Get(ctx, "ca")
	require.NoError(t, err)
	assert.Nil(t, a.LastFetchedAt, "failed character stays due")

	for _, uuid := range []string{"cb", "cc"} {
		c, err := env.characters.Get(ctx, uuid)
		require.NoError(t, err)
		require.NotNil(t, c.LastFetchedAt, "character %s", uuid)
		assert.True(t, c.LastFetchedAt.Equal(now))

		latest, err := env.stats.Latest(ctx, uuid)
		require.NoError(t, err)
		require.NotNil(t, latest)
	}
}

func TestRunCycleSkipsCharactersNotDue(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now().UTC()

	recent := now.Add(-5 * time.Minute)
	env.seed(t, "pa", "ca", &recent)
	env.fetcher.responses["pa"] = playerResponse("pa", "ca", 10)

	env.newTracker(now).RunCycle(context.Background())

	assert.Zero(t, env.fetcher.callCount("pa"), "a recently fetched character is not polled")
}

func TestRunCycleUnchangedStillCountsAsChecked(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	t0 := time.Now().UTC().Truncate(time.Second)

	env.seed(t, "pa", "ca", nil)
	env.fetcher.responses["pa"] = playerResponse("pa", "ca", 10)

	env.newTracker(t0).RunCycle(ctx)

	// same payload, one interval later
	t1 := t0.Add(20 * time.Minute)
	env.newTracker(t1).RunCycle(ctx)

	c, err := env.characters.Get(ctx, "ca")
	require.NoError(t, err)
	require.NotNil(t, c.LastFetchedAt)
	assert.True(t, c.LastFetchedAt.Equal(t1), "confirmed-unchanged fetch still marks the character checked")

	history, err := env.stats.History(ctx, "ca", nil, nil)
	require.NoError(t, err)
	assert.Len(t, history, 1, "no redundant version for an unchanged snapshot")
}

func TestRunCycleRecordsChangedStats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	t0 := time.Now().UTC().Truncate(time.Second)

	env.seed(t, "pa", "ca", nil)
	env.fetcher.responses["pa"] = playerResponse("pa", "ca", 10)
	env.newTracker(t0).RunCycle(ctx)

	env.fetcher.responses["pa"] = playerResponse("pa", "ca", 11)
	t1 := t0.Add(20 * time.Minute)
	env.newTracker(t1).RunCycle(ctx)

	history, err := env.stats.History(ctx, "ca", nil, nil)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.NotNil(t, history[0].ValidUntil)
	assert.True(t, history[0].ValidUntil.Equal(t1))
	assert.Nil(t, history[1].ValidUntil)
}

func TestFetchAllIgnoresDueness(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now().UTC()

	recent := now.Add(-time.Minute)
	env.seed(t, "pa", "ca", &recent)
	env.fetcher.responses["pa"] = playerResponse("pa", "ca", 10)

	env.newTracker(now).FetchAll(context.Background())

	assert.Equal(t, 1, env.fetcher.callCount("pa"))
}

func TestRunStopsPromptlyOnCancellation(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.CheckInterval = time.Hour // cancellation must not wait this out

	tracker := NewTracker(env.fetcher, env.players, env.characters, env.stats, env.cfg, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tracker.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("tracker did not stop promptly after cancellation")
	}
}
