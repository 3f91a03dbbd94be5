package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
	"wynn-tracker/internal/domain"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// StatsRepository maintains the append-only, validity-bounded stats history
// of each character.
type StatsRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewStatsRepository(sqlDB *sql.DB, logger zerolog.Logger) *StatsRepository {
	return &StatsRepository{
		db:     sqlDB,
		logger: logger,
	}
}

const statsColumns = `id, character_uuid, valid_from, valid_until,
	level, total_level, xp, xp_percent, playtime_hours,
	mobs_killed, chests_found, blocks_walked, items_identified, logins,
	deaths, discoveries, content_completion, wars, pvp_kills, pvp_deaths,
	dungeons_total, raids_total, world_events, caves, lootruns, quests_count,
	skill_points, professions, dungeons, raids, quests_list`

// Latest returns the newest version for the character, or nil without error
// when no history exists.
func (r *StatsRepository) Latest(ctx context.Context, characterUUID string) (*domain.StatVersion, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+statsColumns+` FROM character_stats
		 WHERE character_uuid = ?
		 ORDER BY valid_from DESC LIMIT 1`, characterUUID)

	version, err := scanStatVersion(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest stats for %s: %w", characterUUID, err)
	}
	return version, nil
}

// AppendIfChanged compares the candidate snapshot against the character's
// newest version and, when it differs, closes the open version at now and
// inserts a new open one with valid_from = now. Read, close, and insert run
// in one transaction so at most one open version can exist per character.
// Returns nil without writing when nothing changed.
func (r *StatsRepository) AppendIfChanged(ctx context.Context, characterUUID string, candidate domain.Snapshot, now time.Time) (*domain.StatVersion, error) {
	// valid_from and valid_until order as text, so mixed offsets would break it
	now = now.UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var known int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM characters WHERE uuid = ?`, characterUUID).Scan(&known); err != nil {
		return nil, fmt.Errorf("failed to check character %s: %w", characterUUID, err)
	}
	if known == 0 {
		return nil, domain.ErrCharacterNotFound
	}

	var openCount int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM character_stats WHERE character_uuid = ? AND valid_until IS NULL`,
		characterUUID).Scan(&openCount); err != nil {
		return nil, fmt.Errorf("failed to count open versions for %s: %w", characterUUID, err)
	}
	if openCount > 1 {
		r.logger.Error().
			Str("character_uuid", characterUUID).
			Int("open_versions", openCount).
			Msg("stats history is corrupted, refusing to write")
		return nil, fmt.Errorf("character %s: %w", characterUUID, domain.ErrOpenVersionConflict)
	}

	row := tx.QueryRowContext(ctx,
		`SELECT `+statsColumns+` FROM character_stats
		 WHERE character_uuid = ?
		 ORDER BY valid_from DESC LIMIT 1`, characterUUID)

	latest, err := scanStatVersion(row)
	if err == sql.ErrNoRows {
		latest = nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read latest stats for %s: %w", characterUUID, err)
	}

	if !domain.StatsChanged(latest, candidate) {
		return nil, nil
	}

	if latest != nil && latest.ValidUntil == nil {
		if _, err := tx.ExecContext(ctx,
			`UPDATE character_stats SET valid_until = ? WHERE id = ?`, now, latest.ID); err != nil {
			return nil, fmt.Errorf("failed to close open version for %s: %w", characterUUID, err)
		}
	}

	id, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate nanoid: %w", err)
	}

	skillPoints, err := marshalIntMap(candidate.SkillPoints)
	if err != nil {
		return nil, err
	}
	professions, err := marshalProfessions(candidate.Professions)
	if err != nil {
		return nil, err
	}
	dungeons, err := marshalIntMap(candidate.Dungeons)
	if err != nil {
		return nil, err
	}
	raids, err := marshalIntMap(candidate.Raids)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO character_stats (`+statsColumns+`)
		VALUES (?, ?, ?, NULL,
			?, ?, ?, ?, ?,
			?, ?, ?, ?, ?,
			?, ?, ?, ?, ?, ?,
			?, ?, ?, ?, ?, ?,
			?, ?, ?, ?, ?)`,
		id, characterUUID, now,
		candidate.Level, candidate.TotalLevel, candidate.XP, candidate.XPPercent, candidate.PlaytimeHours,
		candidate.MobsKilled, candidate.ChestsFound, candidate.BlocksWalked, candidate.ItemsIdentified, candidate.Logins,
		candidate.Deaths, candidate.Discoveries, candidate.ContentCompletion, candidate.Wars, candidate.PvPKills, candidate.PvPDeaths,
		candidate.DungeonsTotal, candidate.RaidsTotal, candidate.WorldEvents, candidate.Caves, candidate.Lootruns, candidate.QuestsCount,
		skillPoints, professions, dungeons, raids, candidate.QuestsList); err != nil {
		return nil, fmt.Errorf("failed to insert stats version for %s: %w", characterUUID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit stats version for %s: %w", characterUUID, err)
	}

	return &domain.StatVersion{
		ID:            id,
		CharacterUUID: characterUUID,
		ValidFrom:     now,
		Stats:         candidate,
	}, nil
}

// History returns versions whose valid_from falls within the optional
// [from, to] bounds, ascending by valid_from.
func (r *StatsRepository) History(ctx context.Context, characterUUID string, from, to *time.Time) ([]domain.StatVersion, error) {
	query := `SELECT ` + statsColumns + ` FROM character_stats WHERE character_uuid = ?`
	args := []any{characterUUID}
	if from != nil {
		query += ` AND valid_from >= ?`
		args = append(args, from.UTC())
	}
	if to != nil {
		query += ` AND valid_from <= ?`
		args = append(args, to.UTC())
	}
	query += ` ORDER BY valid_from ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query stats history for %s: %w", characterUUID, err)
	}
	defer rows.Close()

	var versions []domain.StatVersion
	for rows.Next() {
		v, err := scanStatVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stats version: %w", err)
		}
		versions = append(versions, *v)
	}
	return versions, rows.Err()
}

func scanStatVersion(row rowScanner) (*domain.StatVersion, error) {
	var v domain.StatVersion
	var validUntil sql.NullTime
	var level, totalLevel, xp, mobsKilled, chestsFound, blocksWalked sql.NullInt64
	var itemsIdentified, logins, deaths, discoveries, contentCompletion, wars sql.NullInt64
	var pvpKills, pvpDeaths, dungeonsTotal, raidsTotal, worldEvents, caves sql.NullInt64
	var lootruns, questsCount sql.NullInt64
	var xpPercent, playtimeHours sql.NullFloat64
	var skillPoints, professions, dungeons, raids, questsList sql.NullString

	err := row.Scan(&v.ID, &v.CharacterUUID, &v.ValidFrom, &validUntil,
		&level, &totalLevel, &xp, &xpPercent, &playtimeHours,
		&mobsKilled, &chestsFound, &blocksWalked, &itemsIdentified, &logins,
		&deaths, &discoveries, &contentCompletion, &wars, &pvpKills, &pvpDeaths,
		&dungeonsTotal, &raidsTotal, &worldEvents, &caves, &lootruns, &questsCount,
		&skillPoints, &professions, &dungeons, &raids, &questsList)
	if err != nil {
		return nil, err
	}

	if validUntil.Valid {
		v.ValidUntil = &validUntil.Time
	}

	s := &v.Stats
	s.Level = nullInt(level)
	s.TotalLevel = nullInt(totalLevel)
	s.XP = nullInt(xp)
	s.XPPercent = nullFloat(xpPercent)
	s.PlaytimeHours = nullFloat(playtimeHours)
	s.MobsKilled = nullInt(mobsKilled)
	s.ChestsFound = nullInt(chestsFound)
	s.BlocksWalked = nullInt(blocksWalked)
	s.ItemsIdentified = nullInt(itemsIdentified)
	s.Logins = nullInt(logins)
	s.Deaths = nullInt(deaths)
	s.Discoveries = nullInt(discoveries)
	s.ContentCompletion = nullInt(contentCompletion)
	s.Wars = nullInt(wars)
	s.PvPKills = nullInt(pvpKills)
	s.PvPDeaths = nullInt(pvpDeaths)
	s.DungeonsTotal = nullInt(dungeonsTotal)
	s.RaidsTotal = nullInt(raidsTotal)
	s.WorldEvents = nullInt(worldEvents)
	s.Caves = nullInt(caves)
	s.Lootruns = nullInt(lootruns)
	s.QuestsCount = nullInt(questsCount)

	if skillPoints.Valid {
		if err := json.Unmarshal([]byte(skillPoints.String), &s.SkillPoints); err != nil {
			return nil, fmt.Errorf("failed to decode skill_points: %w", err)
		}
	}
	if professions.Valid {
		if err := json.Unmarshal([]byte(professions.String), &s.Professions); err != nil {
			return nil, fmt.Errorf("failed to decode professions: %w", err)
		}
	}
	if dungeons.Valid {
		if err := json.Unmarshal([]byte(dungeons.String), &s.Dungeons); err != nil {
			return nil, fmt.Errorf("failed to decode dungeons: %w", err)
		}
	}
	if raids.Valid {
		if err := json.Unmarshal([]byte(raids.String), &s.Raids); err != nil {
			return nil, fmt.Errorf("failed to decode raids: %w", err)
		}
	}
	if questsList.Valid {
		s.QuestsList = &questsList.String
	}

	return &v, nil
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}

func marshalIntMap(m map[string]int64) (any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode map column: %w", err)
	}
	return string(b), nil
}

func marshalProfessions(m map[string]domain.Profession) (any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode professions column: %w", err)
	}
	return string(b), nil
}
