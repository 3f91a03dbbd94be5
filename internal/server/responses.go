package server

import (
	"time"
	"wynn-tracker/internal/domain"
)

type playerResponse struct {
	UUID              string     `json:"uuid"`
	Username          string     `json:"username"`
	Rank              *string    `json:"rank"`
	FirstJoin         *time.Time `json:"first_join"`
	PlaytimeTotalDays *float64   `json:"playtime_total_days"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`

	Characters []characterResponse `json:"characters,omitempty"`
}

type characterResponse struct {
	UUID          string     `json:"uuid"`
	PlayerUUID    string     `json:"player_uuid"`
	Type          *string    `json:"type"`
	Nickname      *string    `json:"nickname"`
	Gamemodes     *string    `json:"gamemodes"`
	LastFetchedAt *time.Time `json:"last_fetched_at"`
	CreatedAt     time.Time  `json:"created_at"`
}

type characterDetailResponse struct {
	characterResponse

	CurrentStats     *statsResponse `json:"current_stats"`
	IsRecentlyActive bool           `json:"is_recently_active"`
}

type statsResponse struct {
	ID            string     `json:"id"`
	CharacterUUID string     `json:"character_uuid"`
	ValidFrom     time.Time  `json:"valid_from"`
	ValidUntil    *time.Time `json:"valid_until"`

	domain.Snapshot
}

func toPlayerResponse(p domain.Player, characters []domain.Character) playerResponse {
	resp := playerResponse{
		UUID:              p.UUID,
		Username:          p.Username,
		Rank:              p.Rank,
		FirstJoin:         p.FirstJoin,
		PlaytimeTotalDays: p.PlaytimeTotalDays,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
	for _, c := range characters {
		resp.Characters = append(resp.Characters, toCharacterResponse(c))
	}
	return resp
}

func toCharacterResponse(c domain.Character) characterResponse {
	return characterResponse{
		UUID:          c.UUID,
		PlayerUUID:    c.PlayerUUID,
		Type:          c.Type,
		Nickname:      c.Nickname,
		Gamemodes:     c.Gamemodes,
		LastFetchedAt: c.LastFetchedAt,
		CreatedAt:     c.CreatedAt,
	}
}

func toStatsResponse(v domain.StatVersion) statsResponse {
	return statsResponse{
		ID:            v.ID,
		CharacterUUID: v.CharacterUUID,
		ValidFrom:     v.ValidFrom,
		ValidUntil:    v.ValidUntil,
		Snapshot:      v.Stats,
	}
}
