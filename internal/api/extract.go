package api

import (
	"strings"
	"time"
	"wynn-tracker/internal/domain"
)

// ExtractPlayer reduces the payload to the player's registry attributes.
func ExtractPlayer(resp *PlayerResponse, now time.Time) *domain.Player {
	player := &domain.Player{
		UUID:              resp.UUID,
		Username:          resp.Username,
		Rank:              resp.Rank,
		PlaytimeTotalDays: resp.Playtime,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if resp.FirstJoin != nil {
		if ts, err := time.Parse(time.RFC3339, *resp.FirstJoin); err == nil {
			player.FirstJoin = &ts
		}
	}
	return player
}

// ExtractCharacter pulls one character's registry attributes out of the
// payload. The second return is false when the character is not part of the
// payload anymore.
func ExtractCharacter(resp *PlayerResponse, playerUUID, characterUUID string, now time.Time) (*domain.Character, bool) {
	payload, ok := resp.Characters[characterUUID]
	if !ok {
		return nil, false
	}
	return &domain.Character{
		UUID:       characterUUID,
		PlayerUUID: playerUUID,
		Type:       payload.Type,
		Nickname:   payload.Nickname,
		CreatedAt:  now,
	}, true
}

// ExtractSnapshot builds the comparable stats snapshot for one character.
// Empty upstream collections become nil so absence is representable.
func ExtractSnapshot(resp *PlayerResponse, characterUUID string) (domain.Snapshot, bool) {
	payload, ok := resp.Characters[characterUUID]
	if !ok {
		return domain.Snapshot{}, false
	}

	questsCount := int64(len(payload.Quests))
	snap := domain.Snapshot{
		Level:             payload.Level,
		TotalLevel:        payload.TotalLevel,
		XP:                payload.XP,
		XPPercent:         payload.XPPercent,
		PlaytimeHours:     payload.Playtime,
		MobsKilled:        payload.MobsKilled,
		ChestsFound:       payload.ChestsFound,
		BlocksWalked:      payload.BlocksWalked,
		ItemsIdentified:   payload.ItemsIdentified,
		Logins:            payload.Logins,
		Deaths:            payload.Deaths,
		Discoveries:       payload.Discoveries,
		ContentCompletion: payload.ContentCompletion,
		Wars:              payload.Wars,
		PvPKills:          payload.PvP.Kills,
		PvPDeaths:         payload.PvP.Deaths,
		DungeonsTotal:     payload.Dungeons.Total,
		RaidsTotal:        payload.Raids.Total,
		WorldEvents:       payload.WorldEvents,
		Caves:             payload.Caves,
		Lootruns:          payload.Lootruns,
		QuestsCount:       &questsCount,
	}

	if len(payload.SkillPoints) > 0 {
		snap.SkillPoints = payload.SkillPoints
	}
	if len(payload.Professions) > 0 {
		professions := make(map[string]domain.Profession, len(payload.Professions))
		for name, p := range payload.Professions {
			professions[name] = domain.Profession{Level: p.Level, XPPercent: p.XPPercent}
		}
		snap.Professions = professions
	}
	if len(payload.Dungeons.List) > 0 {
		snap.Dungeons = payload.Dungeons.List
	}
	if len(payload.Raids.List) > 0 {
		snap.Raids = payload.Raids.List
	}
	if len(payload.Quests) > 0 {
		quests := strings.Join(payload.Quests, ";")
		snap.QuestsList = &quests
	}

	return snap, true
}
