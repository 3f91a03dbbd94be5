package service

import (
	"context"
	"errors"
	"fmt"
	"time"
	"wynn-tracker/internal/api"
	"wynn-tracker/internal/config"
	"wynn-tracker/internal/constants"
	"wynn-tracker/internal/domain"
	"wynn-tracker/internal/repository"

	"github.com/rs/zerolog"
)

// CharacterService handles registration and read-side composition around
// tracked characters.
type CharacterService struct {
	fetcher    PlayerFetcher
	players    *repository.PlayerRepository
	characters *repository.CharacterRepository
	stats      *repository.StatsRepository
	cfg        *config.Config
	logger     zerolog.Logger
	now        func() time.Time
}

func NewCharacterService(
	fetcher PlayerFetcher,
	players *repository.PlayerRepository,
	characters *repository.CharacterRepository,
	stats *repository.StatsRepository,
	cfg *config.Config,
	logger zerolog.Logger,
) *CharacterService {
	return &CharacterService{
		fetcher:    fetcher,
		players:    players,
		characters: characters,
		stats:      stats,
		cfg:        cfg,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Register parses a public stats page link, fetches the player upstream and
// starts tracking the referenced character, seeding its first stats version.
func (s *CharacterService) Register(ctx context.Context, trackerURL string) (*domain.Character, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	playerUUID, characterUUID, err := api.ParseTrackerURL(trackerURL)
	if err != nil {
		return nil, err
	}

	if _, err := s.characters.Get(ctx, characterUUID); err == nil {
		return nil, domain.ErrCharacterExists
	} else if !errors.Is(err, domain.ErrCharacterNotFound) {
		return nil, err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	defer cancel()

	resp, err := s.fetcher.FetchPlayer(fetchCtx, playerUUID)
	if err != nil {
		s.logger.Warn().Err(err).Str("player_uuid", playerUUID).Msg("failed to fetch player for registration")
		return nil, fmt.Errorf("failed to fetch player %s: %w", playerUUID, err)
	}

	now := s.now()

	if err := s.players.Upsert(ctx, api.ExtractPlayer(resp, now)); err != nil {
		return nil, err
	}

	character, ok := api.ExtractCharacter(resp, playerUUID, characterUUID, now)
	if !ok {
		return nil, fmt.Errorf("character %s: %w", characterUUID, domain.ErrCharacterNotFound)
	}
	if err := s.characters.Upsert(ctx, character); err != nil {
		return nil, err
	}

	if snapshot, ok := api.ExtractSnapshot(resp, characterUUID); ok {
		if _, err := s.stats.AppendIfChanged(ctx, characterUUID, snapshot, now); err != nil {
			return nil, err
		}
	}

	if err := s.characters.SetLastFetchedAt(ctx, characterUUID, now); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("character_uuid", characterUUID).
		Str("player_uuid", playerUUID).
		Msg("character registered")

	character.LastFetchedAt = &now
	return character, nil
}

// CharacterDetail is a character with its current stats version and the
// recently-active classification downstream consumers display.
type CharacterDetail struct {
	Character      domain.Character
	CurrentStats   *domain.StatVersion
	RecentlyActive bool
}

func (s *CharacterService) Get(ctx context.Context, uuid string) (*CharacterDetail, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	character, err := s.characters.Get(ctx, uuid)
	if err != nil {
		return nil, err
	}

	latest, err := s.stats.Latest(ctx, uuid)
	if err != nil {
		return nil, err
	}

	recentlyActive := false
	if latest != nil {
		cutoff := s.now().Add(-s.cfg.OnlineThreshold)
		recentlyActive = !latest.ValidFrom.Before(cutoff)
	}

	return &CharacterDetail{
		Character:      *character,
		CurrentStats:   latest,
		RecentlyActive: recentlyActive,
	}, nil
}

func (s *CharacterService) List(ctx context.Context, search string) ([]domain.Character, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	if search != "" {
		return s.characters.Search(ctx, search)
	}
	return s.characters.List(ctx)
}

func (s *CharacterService) Delete(ctx context.Context, uuid string) error {
	if err := s.characters.Delete(ctx, uuid); err != nil {
		return err
	}
	s.logger.Info().Str("character_uuid", uuid).Msg("character deleted")
	return nil
}
