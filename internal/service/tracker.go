package service

import (
	"context"
	"errors"
	"time"
	"wynn-tracker/internal/api"
	"wynn-tracker/internal/config"
	"wynn-tracker/internal/constants"
	"wynn-tracker/internal/domain"
	"wynn-tracker/internal/repository"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// PlayerFetcher is the upstream collaborator the tracker polls.
type PlayerFetcher interface {
	FetchPlayer(ctx context.Context, playerUUID string) (*api.PlayerResponse, error)
}

// Tracker is the background loop that refreshes due characters every check
// interval and feeds their snapshots through change detection into the
// stats history.
type Tracker struct {
	fetcher    PlayerFetcher
	players    *repository.PlayerRepository
	characters *repository.CharacterRepository
	stats      *repository.StatsRepository
	cfg        *config.Config
	logger     zerolog.Logger
	now        func() time.Time
}

func NewTracker(
	fetcher PlayerFetcher,
	players *repository.PlayerRepository,
	characters *repository.CharacterRepository,
	stats *repository.StatsRepository,
	cfg *config.Config,
	logger zerolog.Logger,
) *Tracker {
	return &Tracker{
		fetcher:    fetcher,
		players:    players,
		characters: characters,
		stats:      stats,
		cfg:        cfg,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// ShouldFetch reports whether a character is due for a refresh. A character
// never fetched is due; a last-fetch timestamp in the future (clock skew,
// imported data) makes it due immediately.
func ShouldFetch(now time.Time, lastFetchedAt *time.Time, interval time.Duration) bool {
	if lastFetchedAt == nil {
		return true
	}
	elapsed := now.Sub(*lastFetchedAt)
	if elapsed < 0 {
		return true
	}
	return elapsed >= interval
}

// TimeUntilNextFetch returns how long until the character is due, floored
// at zero.
func TimeUntilNextFetch(now time.Time, lastFetchedAt *time.Time, interval time.Duration) time.Duration {
	if lastFetchedAt == nil {
		return 0
	}
	remaining := interval - now.Sub(*lastFetchedAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Run loops until ctx is cancelled. The first cycle starts immediately.
func (t *Tracker) Run(ctx context.Context) {
	t.logger.Info().
		Dur("fetch_interval", t.cfg.FetchInterval).
		Dur("check_interval", t.cfg.CheckInterval).
		Msg("tracker started")

	ticker := time.NewTicker(t.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		t.RunCycle(ctx)

		select {
		case <-ctx.Done():
			t.logger.Info().Msg("tracker stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunCycle refreshes every due character once. Each character is processed
// in isolation: a failing fetch or write is logged and leaves the character
// due again next cycle, it never aborts the rest of the set.
func (t *Tracker) RunCycle(ctx context.Context) {
	t.cycle(ctx, false)
}

// FetchAll refreshes every tracked character regardless of dueness.
func (t *Tracker) FetchAll(ctx context.Context) {
	t.cycle(ctx, true)
}

func (t *Tracker) cycle(ctx context.Context, force bool) {
	if ctx.Err() != nil {
		return
	}

	characters, err := t.characters.List(ctx)
	if err != nil {
		t.logger.Error().Err(err).Msg("failed to list characters, skipping cycle")
		return
	}

	now := t.now()

	g := new(errgroup.Group)
	g.SetLimit(constants.TrackerConcurrency)

	for _, character := range characters {
		if ctx.Err() != nil {
			break
		}

		if character.LastFetchedAt != nil && now.Before(*character.LastFetchedAt) {
			t.logger.Warn().
				Str("character_uuid", character.UUID).
				Time("last_fetched_at", *character.LastFetchedAt).
				Msg("last fetch timestamp is in the future, forcing fetch")
		}

		if !force && !ShouldFetch(now, character.LastFetchedAt, t.cfg.FetchInterval) {
			t.logger.Debug().
				Str("character_uuid", character.UUID).
				Dur("next_fetch_in", TimeUntilNextFetch(now, character.LastFetchedAt, t.cfg.FetchInterval)).
				Msg("character not due yet")
			continue
		}

		g.Go(func() error {
			// errors are handled inside; one character must never cancel
			// the rest of the cycle
			t.processCharacter(ctx, character)
			return nil
		})
	}

	g.Wait()
}

func (t *Tracker) processCharacter(ctx context.Context, character domain.Character) {
	log := t.logger.With().
		Str("character_uuid", character.UUID).
		Str("player_uuid", character.PlayerUUID).
		Logger()

	fetchCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	defer cancel()

	resp, err := t.fetcher.FetchPlayer(fetchCtx, character.PlayerUUID)
	if err != nil {
		switch {
		case errors.Is(err, api.ErrNotFound):
			log.Warn().Err(err).Msg("player gone upstream, registration may be stale")
		case errors.Is(err, api.ErrMalformed):
			log.Warn().Err(err).Msg("unexpected upstream payload")
		default:
			log.Warn().Err(err).Msg("upstream fetch failed, will retry next cycle")
		}
		return
	}

	now := t.now()

	if err := t.players.Upsert(ctx, api.ExtractPlayer(resp, now)); err != nil {
		log.Error().Err(err).Msg("failed to refresh player attributes")
		return
	}

	updated, ok := api.ExtractCharacter(resp, character.PlayerUUID, character.UUID, now)
	if !ok {
		log.Warn().Msg("character missing from upstream payload, registration may be stale")
		return
	}
	if err := t.characters.Upsert(ctx, updated); err != nil {
		log.Error().Err(err).Msg("failed to refresh character attributes")
		return
	}

	snapshot, _ := api.ExtractSnapshot(resp, character.UUID)

	version, err := t.stats.AppendIfChanged(ctx, character.UUID, snapshot, now)
	if err != nil {
		if errors.Is(err, domain.ErrOpenVersionConflict) {
			log.Error().Err(err).Msg("stats history corrupted, skipping character this cycle")
		} else {
			log.Error().Err(err).Msg("failed to persist stats, will retry next cycle")
		}
		return
	}

	if version != nil {
		log.Info().Time("valid_from", version.ValidFrom).Msg("new stats version recorded")
	} else {
		log.Debug().Msg("stats unchanged")
	}

	// A confirmed-unchanged fetch still counts as checked.
	if err := t.characters.SetLastFetchedAt(ctx, character.UUID, now); err != nil {
		log.Error().Err(err).Msg("failed to mark character fetched")
	}
}
