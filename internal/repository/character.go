package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"
	"wynn-tracker/internal/domain"

	"github.com/rs/zerolog"
)

// CharacterRepository is the registry of tracked characters and their
// last-fetch bookkeeping.
type CharacterRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewCharacterRepository(sqlDB *sql.DB, logger zerolog.Logger) *CharacterRepository {
	return &CharacterRepository{
		db:     sqlDB,
		logger: logger,
	}
}

const characterColumns = `uuid, player_uuid, type, nickname, gamemodes, last_fetched_at, created_at`

func (r *CharacterRepository) Get(ctx context.Context, uuid string) (*domain.Character, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+characterColumns+` FROM characters WHERE uuid = ?`, uuid)

	character, err := scanCharacter(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrCharacterNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get character %s: %w", uuid, err)
	}
	return character, nil
}

// List returns every tracked character in stable insertion order so a cycle
// over the registry is reproducible for a fixed state.
func (r *CharacterRepository) List(ctx context.Context) ([]domain.Character, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+characterColumns+` FROM characters ORDER BY created_at, uuid`)
	if err != nil {
		return nil, fmt.Errorf("failed to list characters: %w", err)
	}
	defer rows.Close()
	return collectCharacters(rows)
}

func (r *CharacterRepository) ListByPlayer(ctx context.Context, playerUUID string) ([]domain.Character, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+characterColumns+` FROM characters WHERE player_uuid = ? ORDER BY created_at, uuid`,
		playerUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to list characters for player %s: %w", playerUUID, err)
	}
	defer rows.Close()
	return collectCharacters(rows)
}

func (r *CharacterRepository) Search(ctx context.Context, query string) ([]domain.Character, error) {
	pattern := "%" + query + "%"
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.uuid, c.player_uuid, c.type, c.nickname, c.gamemodes, c.last_fetched_at, c.created_at
		FROM characters c
		JOIN players p ON p.uuid = c.player_uuid
		WHERE p.username LIKE ? OR c.nickname LIKE ? OR c.type LIKE ?
		ORDER BY c.created_at, c.uuid`,
		pattern, pattern, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to search characters: %w", err)
	}
	defer rows.Close()
	return collectCharacters(rows)
}

// Upsert creates the character or idempotently refreshes its descriptive
// attributes. Existing attribute values are never nulled out by an absent
// payload field.
func (r *CharacterRepository) Upsert(ctx context.Context, character *domain.Character) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO characters (uuid, player_uuid, type, nickname, gamemodes, last_fetched_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(uuid) DO UPDATE SET
			type = COALESCE(excluded.type, characters.type),
			nickname = COALESCE(excluded.nickname, characters.nickname),
			gamemodes = COALESCE(excluded.gamemodes, characters.gamemodes)`,
		character.UUID, character.PlayerUUID, character.Type, character.Nickname,
		character.Gamemodes, utcPtr(character.LastFetchedAt), character.CreatedAt.UTC())
	if err != nil {
		r.logger.Error().Err(err).Str("uuid", character.UUID).Msg("failed to upsert character")
		return fmt.Errorf("failed to upsert character %s: %w", character.UUID, err)
	}
	return nil
}

// Delete removes the character; its stats history goes with it through the
// foreign key cascade.
func (r *CharacterRepository) Delete(ctx context.Context, uuid string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM characters WHERE uuid = ?`, uuid)
	if err != nil {
		return fmt.Errorf("failed to delete character %s: %w", uuid, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete character %s: %w", uuid, err)
	}
	if affected == 0 {
		return domain.ErrCharacterNotFound
	}
	return nil
}

func (r *CharacterRepository) SetLastFetchedAt(ctx context.Context, uuid string, at time.Time) error {
	at = at.UTC()
	r.logger.Debug().
		Str("uuid", uuid).
		Time("last_fetched_at", at).
		Msg("setting last fetched at")

	res, err := r.db.ExecContext(ctx,
		`UPDATE characters SET last_fetched_at = ? WHERE uuid = ?`, at, uuid)
	if err != nil {
		r.logger.Error().Err(err).Str("uuid", uuid).Msg("failed to set last fetched at")
		return fmt.Errorf("failed to set last fetched at for %s: %w", uuid, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to set last fetched at for %s: %w", uuid, err)
	}
	if affected == 0 {
		return domain.ErrCharacterNotFound
	}
	return nil
}

func collectCharacters(rows *sql.Rows) ([]domain.Character, error) {
	var characters []domain.Character
	for rows.Next() {
		c, err := scanCharacter(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan character: %w", err)
		}
		characters = append(characters, *c)
	}
	return characters, rows.Err()
}

func scanCharacter(row rowScanner) (*domain.Character, error) {
	var c domain.Character
	var ctype, nickname, gamemodes sql.NullString
	var lastFetched sql.NullTime

	if err := row.Scan(&c.UUID, &c.PlayerUUID, &ctype, &nickname, &gamemodes, &lastFetched, &c.CreatedAt); err != nil {
		return nil, err
	}

	if ctype.Valid {
		c.Type = &ctype.String
	}
	if nickname.Valid {
		c.Nickname = &nickname.String
	}
	if gamemodes.Valid {
		c.Gamemodes = &gamemodes.String
	}
	if lastFetched.Valid {
		c.LastFetchedAt = &lastFetched.Time
	}
	return &c, nil
}
