package service

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"
	"wynn-tracker/internal/domain"
	"wynn-tracker/internal/repository"

	"github.com/rs/zerolog"
)

// ImportRecord is one line of the historical JSON-lines dump: a snapshot of
// one character at one instant, plus the registry attributes known then.
type ImportRecord struct {
	PlayerUUID        string     `json:"player_uuid"`
	CharacterUUID     string     `json:"character_uuid"`
	Timestamp         time.Time  `json:"timestamp"`
	Username          string     `json:"username"`
	Rank              *string    `json:"rank"`
	FirstJoin         *time.Time `json:"first_join"`
	PlaytimeTotalDays *float64   `json:"playtime_total_days"`
	CharacterType     *string    `json:"character_type"`
	Nickname          *string    `json:"nickname"`
	Gamemodes         *string    `json:"gamemodes"`

	Stats domain.Snapshot `json:"stats"`
}

// Importer replays a historical dump through the same change-detection and
// versioning path live tracking uses.
//
// Contract: the importer only runs against an empty store. Replaying into a
// store that already has players is unsupported and is skipped with a log
// line, never merged.
type Importer struct {
	players    *repository.PlayerRepository
	characters *repository.CharacterRepository
	stats      *repository.StatsRepository
	logger     zerolog.Logger
}

func NewImporter(
	players *repository.PlayerRepository,
	characters *repository.CharacterRepository,
	stats *repository.StatsRepository,
	logger zerolog.Logger,
) *Importer {
	return &Importer{
		players:    players,
		characters: characters,
		stats:      stats,
		logger:     logger,
	}
}

// CheckAndRun imports the dump at path if one is configured, present, and
// the store is empty.
func (im *Importer) CheckAndRun(ctx context.Context, path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		im.logger.Warn().Str("path", path).Msg("import file not found, skipping")
		return nil
	}

	count, err := im.players.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to check store before import: %w", err)
	}
	if count > 0 {
		im.logger.Info().Str("path", path).Msg("store is not empty, skipping import")
		return nil
	}

	im.logger.Info().Str("path", path).Msg("store empty, starting import")
	return im.Run(ctx, path)
}

// Run reads the dump and replays it grouped per character, each group in
// ascending timestamp order so validity intervals come out monotonic.
func (im *Importer) Run(ctx context.Context, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open import file: %w", err)
	}
	defer file.Close()

	records, err := readRecords(file)
	if err != nil {
		return err
	}
	im.logger.Info().Int("records", len(records)).Msg("import file loaded")

	groups, order := groupRecords(records)

	var charactersSeen, versionsCreated int
	for _, characterUUID := range order {
		group := groups[characterUUID]
		sort.SliceStable(group, func(a, b int) bool {
			return group[a].Timestamp.Before(group[b].Timestamp)
		})

		if err := im.replayGroup(ctx, group); err != nil {
			return fmt.Errorf("failed to import character %s: %w", characterUUID, err)
		}

		charactersSeen++
		history, err := im.stats.History(ctx, characterUUID, nil, nil)
		if err != nil {
			return err
		}
		versionsCreated += len(history)
	}

	im.logger.Info().
		Int("characters", charactersSeen).
		Int("stats_versions", versionsCreated).
		Msg("import complete")
	return nil
}

func (im *Importer) replayGroup(ctx context.Context, group []ImportRecord) error {
	first := group[0]

	if err := im.players.Upsert(ctx, &domain.Player{
		UUID:              first.PlayerUUID,
		Username:          first.Username,
		Rank:              first.Rank,
		FirstJoin:         first.FirstJoin,
		PlaytimeTotalDays: first.PlaytimeTotalDays,
		CreatedAt:         first.Timestamp,
		UpdatedAt:         first.Timestamp,
	}); err != nil {
		return err
	}

	if err := im.characters.Upsert(ctx, &domain.Character{
		UUID:       first.CharacterUUID,
		PlayerUUID: first.PlayerUUID,
		Type:       first.CharacterType,
		Nickname:   first.Nickname,
		Gamemodes:  first.Gamemodes,
		CreatedAt:  first.Timestamp,
	}); err != nil {
		return err
	}

	for _, record := range group {
		if _, err := im.stats.AppendIfChanged(ctx, record.CharacterUUID, record.Stats, record.Timestamp); err != nil {
			return err
		}
	}

	last := group[len(group)-1]
	return im.characters.SetLastFetchedAt(ctx, last.CharacterUUID, last.Timestamp)
}

func readRecords(file *os.File) ([]ImportRecord, error) {
	var records []ImportRecord

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var record ImportRecord
		if err := json.Unmarshal(raw, &record); err != nil {
			return nil, fmt.Errorf("failed to decode import line %d: %w", line, err)
		}
		if record.PlayerUUID == "" || record.CharacterUUID == "" {
			return nil, fmt.Errorf("import line %d is missing player_uuid or character_uuid", line)
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read import file: %w", err)
	}
	return records, nil
}

// groupRecords buckets records per character, keeping first-seen order so a
// fixed dump always replays the same way.
func groupRecords(records []ImportRecord) (map[string][]ImportRecord, []string) {
	groups := make(map[string][]ImportRecord)
	var order []string
	for _, record := range records {
		if _, ok := groups[record.CharacterUUID]; !ok {
			order = append(order, record.CharacterUUID)
		}
		groups[record.CharacterUUID] = append(groups[record.CharacterUUID], record)
	}
	return groups, order
}
