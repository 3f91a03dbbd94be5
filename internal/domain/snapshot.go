package domain

// Profession is one profession's progress (mining, fishing, ...).
type Profession struct {
	Level     int64    `json:"level"`
	XPPercent *float64 `json:"xp_percent"`
}

// Snapshot is one point-in-time extraction of a character's stats from the
// upstream API. All fields are nullable: nil means the upstream payload did
// not carry the field, which is distinct from a present zero value.
//
// Every field here takes part in change detection; registry attributes
// (nickname, timestamps, ...) deliberately do not.
type Snapshot struct {
	Level             *int64   `json:"level"`
	TotalLevel        *int64   `json:"total_level"`
	XP                *int64   `json:"xp"`
	XPPercent         *float64 `json:"xp_percent"`
	PlaytimeHours     *float64 `json:"playtime_hours"`
	MobsKilled        *int64   `json:"mobs_killed"`
	ChestsFound       *int64   `json:"chests_found"`
	BlocksWalked      *int64   `json:"blocks_walked"`
	ItemsIdentified   *int64   `json:"items_identified"`
	Logins            *int64   `json:"logins"`
	Deaths            *int64   `json:"deaths"`
	Discoveries       *int64   `json:"discoveries"`
	ContentCompletion *int64   `json:"content_completion"`
	Wars              *int64   `json:"wars"`
	PvPKills          *int64   `json:"pvp_kills"`
	PvPDeaths         *int64   `json:"pvp_deaths"`
	DungeonsTotal     *int64   `json:"dungeons_total"`
	RaidsTotal        *int64   `json:"raids_total"`
	WorldEvents       *int64   `json:"world_events"`
	Caves             *int64   `json:"caves"`
	Lootruns          *int64   `json:"lootruns"`
	QuestsCount       *int64   `json:"quests_count"`

	SkillPoints map[string]int64      `json:"skill_points,omitempty"`
	Professions map[string]Profession `json:"professions,omitempty"`
	Dungeons    map[string]int64      `json:"dungeons,omitempty"`
	Raids       map[string]int64      `json:"raids,omitempty"`

	// Completed quests in API order, ";"-joined.
	QuestsList *string `json:"quests_list"`
}

// StatsChanged reports whether candidate differs from the last persisted
// version. A character with no history always counts as changed.
func StatsChanged(prev *StatVersion, candidate Snapshot) bool {
	if prev == nil {
		return true
	}
	return !prev.Stats.Equal(candidate)
}

// Equal compares two snapshots field by field. Map fields compare deep and
// order-insensitive; a nil map only equals a nil or empty map.
func (s Snapshot) Equal(o Snapshot) bool {
	return eqInt(s.Level, o.Level) &&
		eqInt(s.TotalLevel, o.TotalLevel) &&
		eqInt(s.XP, o.XP) &&
		eqFloat(s.XPPercent, o.XPPercent) &&
		eqFloat(s.PlaytimeHours, o.PlaytimeHours) &&
		eqInt(s.MobsKilled, o.MobsKilled) &&
		eqInt(s.ChestsFound, o.ChestsFound) &&
		eqInt(s.BlocksWalked, o.BlocksWalked) &&
		eqInt(s.ItemsIdentified, o.ItemsIdentified) &&
		eqInt(s.Logins, o.Logins) &&
		eqInt(s.Deaths, o.Deaths) &&
		eqInt(s.Discoveries, o.Discoveries) &&
		eqInt(s.ContentCompletion, o.ContentCompletion) &&
		eqInt(s.Wars, o.Wars) &&
		eqInt(s.PvPKills, o.PvPKills) &&
		eqInt(s.PvPDeaths, o.PvPDeaths) &&
		eqInt(s.DungeonsTotal, o.DungeonsTotal) &&
		eqInt(s.RaidsTotal, o.RaidsTotal) &&
		eqInt(s.WorldEvents, o.WorldEvents) &&
		eqInt(s.Caves, o.Caves) &&
		eqInt(s.Lootruns, o.Lootruns) &&
		eqInt(s.QuestsCount, o.QuestsCount) &&
		eqIntMap(s.SkillPoints, o.SkillPoints) &&
		eqProfMap(s.Professions, o.Professions) &&
		eqIntMap(s.Dungeons, o.Dungeons) &&
		eqIntMap(s.Raids, o.Raids) &&
		eqString(s.QuestsList, o.QuestsList)
}

func eqInt(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func eqFloat(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func eqString(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func eqIntMap(a, b map[string]int64) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || av != bv {
			return false
		}
	}
	return true
}

func eqProfMap(a, b map[string]Profession) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || av.Level != bv.Level || !eqFloat(av.XPPercent, bv.XPPercent) {
			return false
		}
	}
	return true
}
