package api

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const playerFixture = `{
	"uuid": "player-1",
	"username": "Salted",
	"rank": "VIP",
	"firstJoin": "2014-03-02T15:04:05Z",
	"playtime": 312.4,
	"characters": {
		"char-1": {
			"type": "ARCHER",
			"nickname": "Bowman",
			"level": 80,
			"totalLevel": 210,
			"xp": 1234567,
			"xpPercent": 45.2,
			"playtime": 120.5,
			"mobsKilled": 90210,
			"deaths": 14,
			"logins": 300,
			"pvp": {"kills": 5, "deaths": 9},
			"dungeons": {"total": 12, "list": {"Decrepit Sewers": 4, "Infested Pit": 8}},
			"raids": {"total": 0, "list": {}},
			"quests": ["King's Recruit", "Enzan's Brother"],
			"skillPoints": {"strength": 40, "dexterity": 60},
			"professions": {"mining": {"level": 70, "xpPercent": 12.5}, "fishing": {"level": 20}}
		},
		"char-2": {
			"type": "MAGE",
			"level": 3
		}
	}
}`

func decodeFixture(t *testing.T) *PlayerResponse {
	t.Helper()
	var resp PlayerResponse
	require.NoError(t, json.Unmarshal([]byte(playerFixture), &resp))
	return &resp
}

func TestExtractPlayer(t *testing.T) {
	resp := decodeFixture(t)
	now := time.Now().UTC()

	player := ExtractPlayer(resp, now)
	assert.Equal(t, "player-1", player.UUID)
	assert.Equal(t, "Salted", player.Username)
	require.NotNil(t, player.Rank)
	assert.Equal(t, "VIP", *player.Rank)
	require.NotNil(t, player.FirstJoin)
	assert.Equal(t, 2014, player.FirstJoin.Year())
	require.NotNil(t, player.PlaytimeTotalDays)
	assert.Equal(t, 312.4, *player.PlaytimeTotalDays)
}

func TestExtractCharacter(t *testing.T) {
	resp := decodeFixture(t)
	now := time.Now().UTC()

	character, ok := ExtractCharacter(resp, "player-1", "char-1", now)
	require.True(t, ok)
	assert.Equal(t, "player-1", character.PlayerUUID)
	require.NotNil(t, character.Type)
	assert.Equal(t, "ARCHER", *character.Type)

	_, ok = ExtractCharacter(resp, "player-1", "deleted-char", now)
	assert.False(t, ok, "characters missing from the payload are reported, not invented")
}

func TestExtractSnapshot(t *testing.T) {
	resp := decodeFixture(t)

	snap, ok := ExtractSnapshot(resp, "char-1")
	require.True(t, ok)

	require.NotNil(t, snap.Level)
	assert.Equal(t, int64(80), *snap.Level)
	require.NotNil(t, snap.PvPKills)
	assert.Equal(t, int64(5), *snap.PvPKills)
	require.NotNil(t, snap.QuestsCount)
	assert.Equal(t, int64(2), *snap.QuestsCount)
	require.NotNil(t, snap.QuestsList)
	assert.Equal(t, "King's Recruit;Enzan's Brother", *snap.QuestsList)

	assert.Equal(t, map[string]int64{"Decrepit Sewers": 4, "Infested Pit": 8}, snap.Dungeons)
	assert.Nil(t, snap.Raids, "empty upstream collection stays absent")
	require.NotNil(t, snap.DungeonsTotal)
	assert.Equal(t, int64(12), *snap.DungeonsTotal)

	require.Contains(t, snap.Professions, "fishing")
	assert.Nil(t, snap.Professions["fishing"].XPPercent)
	require.Contains(t, snap.Professions, "mining")
	require.NotNil(t, snap.Professions["mining"].XPPercent)
	assert.Equal(t, 12.5, *snap.Professions["mining"].XPPercent)

	assert.Nil(t, snap.Wars, "fields absent upstream stay nil")
}

func TestExtractSnapshotSparseCharacter(t *testing.T) {
	resp := decodeFixture(t)

	snap, ok := ExtractSnapshot(resp, "char-2")
	require.True(t, ok)
	require.NotNil(t, snap.Level)
	assert.Equal(t, int64(3), *snap.Level)
	assert.Nil(t, snap.SkillPoints)
	assert.Nil(t, snap.QuestsList)
	require.NotNil(t, snap.QuestsCount)
	assert.Equal(t, int64(0), *snap.QuestsCount)

	_, ok = ExtractSnapshot(resp, "ghost")
	assert.False(t, ok)
}
