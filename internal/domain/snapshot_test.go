package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func i(v int64) *int64     { return &v }
func f(v float64) *float64 { return &v }
func str(v string) *string { return &v }

func baseSnapshot() Snapshot {
	return Snapshot{
		Level:         i(64),
		TotalLevel:    i(180),
		XP:            i(123456),
		XPPercent:     f(41.5),
		PlaytimeHours: f(102.25),
		MobsKilled:    i(50321),
		Deaths:        i(12),
		QuestsCount:   i(3),
		SkillPoints:   map[string]int64{"strength": 40, "dexterity": 15},
		Professions: map[string]Profession{
			"mining":  {Level: 70, XPPercent: f(12.0)},
			"fishing": {Level: 33, XPPercent: nil},
		},
		Dungeons:   map[string]int64{"Decrepit Sewers": 4},
		QuestsList: str("Cook Assistant;King's Recruit;Enzan's Brother"),
	}
}

func TestStatsChangedFirstObservation(t *testing.T) {
	assert.True(t, StatsChanged(nil, Snapshot{}), "no history always counts as changed")
}

func TestStatsChangedIdenticalSnapshot(t *testing.T) {
	prev := &StatVersion{ValidFrom: time.Now(), Stats: baseSnapshot()}
	assert.False(t, StatsChanged(prev, baseSnapshot()))
}

func TestStatsChangedScalarField(t *testing.T) {
	prev := &StatVersion{Stats: baseSnapshot()}

	next := baseSnapshot()
	next.MobsKilled = i(50322)
	assert.True(t, StatsChanged(prev, next))
}

func TestStatsChangedAbsentVsPresent(t *testing.T) {
	prev := &StatVersion{Stats: baseSnapshot()}

	next := baseSnapshot()
	next.Wars = i(0) // previously absent, now present with a zero value
	assert.True(t, StatsChanged(prev, next))

	next = baseSnapshot()
	next.XPPercent = nil
	assert.True(t, StatsChanged(prev, next))
}

func TestStatsChangedMapFields(t *testing.T) {
	prev := &StatVersion{Stats: baseSnapshot()}

	next := baseSnapshot()
	next.SkillPoints = map[string]int64{"dexterity": 15, "strength": 40}
	assert.False(t, StatsChanged(prev, next), "map key order is irrelevant")

	next.SkillPoints["intelligence"] = 5
	assert.True(t, StatsChanged(prev, next))

	next = baseSnapshot()
	next.Professions["mining"] = Profession{Level: 70, XPPercent: f(12.5)}
	assert.True(t, StatsChanged(prev, next))

	next = baseSnapshot()
	next.Professions["fishing"] = Profession{Level: 33, XPPercent: f(0)}
	assert.True(t, StatsChanged(prev, next), "nil vs zero xp percent is a change")
}

func TestStatsChangedQuestListOrder(t *testing.T) {
	prev := &StatVersion{Stats: baseSnapshot()}

	next := baseSnapshot()
	next.QuestsList = str("King's Recruit;Cook Assistant;Enzan's Brother")
	assert.True(t, StatsChanged(prev, next), "quest log compares as an ordered sequence")
}

func TestStatsChangedIgnoresNonComparableState(t *testing.T) {
	// Version bookkeeping around the snapshot never influences the result.
	until := time.Now()
	prev := &StatVersion{
		ID:            "abc123",
		CharacterUUID: "char-1",
		ValidFrom:     time.Now().Add(-time.Hour),
		ValidUntil:    &until,
		Stats:         baseSnapshot(),
	}
	assert.False(t, StatsChanged(prev, baseSnapshot()))
}
