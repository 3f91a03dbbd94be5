package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"
	"wynn-tracker/internal/domain"

	"github.com/rs/zerolog"
)

type PlayerRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewPlayerRepository(sqlDB *sql.DB, logger zerolog.Logger) *PlayerRepository {
	return &PlayerRepository{
		db:     sqlDB,
		logger: logger,
	}
}

const playerColumns = `uuid, username, rank, first_join, playtime_total_days, created_at, updated_at`

func (r *PlayerRepository) Get(ctx context.Context, uuid string) (*domain.Player, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+playerColumns+` FROM players WHERE uuid = ?`, uuid)

	player, err := scanPlayer(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrPlayerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get player %s: %w", uuid, err)
	}
	return player, nil
}

func (r *PlayerRepository) List(ctx context.Context) ([]domain.Player, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+playerColumns+` FROM players ORDER BY created_at, uuid`)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	defer rows.Close()

	var players []domain.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan player: %w", err)
		}
		players = append(players, *p)
	}
	return players, rows.Err()
}

func (r *PlayerRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM players`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count players: %w", err)
	}
	return count, nil
}

// Upsert creates the player or idempotently refreshes its attributes.
// first_join is only ever set once; later nil payloads never null it out.
func (r *PlayerRepository) Upsert(ctx context.Context, player *domain.Player) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO players (uuid, username, rank, first_join, playtime_total_days, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(uuid) DO UPDATE SET
			username = excluded.username,
			rank = COALESCE(excluded.rank, players.rank),
			first_join = COALESCE(players.first_join, excluded.first_join),
			playtime_total_days = COALESCE(excluded.playtime_total_days, players.playtime_total_days),
			updated_at = excluded.updated_at`,
		player.UUID, player.Username, player.Rank, utcPtr(player.FirstJoin),
		player.PlaytimeTotalDays, player.CreatedAt.UTC(), player.UpdatedAt.UTC())
	if err != nil {
		r.logger.Error().Err(err).Str("uuid", player.UUID).Msg("failed to upsert player")
		return fmt.Errorf("failed to upsert player %s: %w", player.UUID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// go-sqlite3 binds time.Time as text carrying the value's own UTC offset,
// and ORDER BY then compares those strings. Every persisted instant must be
// normalized to UTC so text order matches instant order.
func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func scanPlayer(row rowScanner) (*domain.Player, error) {
	var p domain.Player
	var rank sql.NullString
	var firstJoin sql.NullTime
	var playtime sql.NullFloat64

	if err := row.Scan(&p.UUID, &p.Username, &rank, &firstJoin, &playtime, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}

	if rank.Valid {
		p.Rank = &rank.String
	}
	if firstJoin.Valid {
		p.FirstJoin = &firstJoin.Time
	}
	if playtime.Valid {
		p.PlaytimeTotalDays = &playtime.Float64
	}
	return &p, nil
}
