package domain

import (
	"time"
)

type Player struct {
	UUID              string
	Username          string
	Rank              *string
	FirstJoin         *time.Time
	PlaytimeTotalDays *float64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type Character struct {
	UUID          string
	PlayerUUID    string
	Type          *string
	Nickname      *string
	Gamemodes     *string
	LastFetchedAt *time.Time
	CreatedAt     time.Time
}

// StatVersion is one row of a character's stats history. ValidUntil is nil
// for the open version, the one currently in effect.
type StatVersion struct {
	ID            string // nanoid
	CharacterUUID string
	ValidFrom     time.Time
	ValidUntil    *time.Time
	Stats         Snapshot
}
