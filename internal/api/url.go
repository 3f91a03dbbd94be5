package api

import (
	"errors"
	"net/url"
	"strings"
)

var ErrInvalidTrackerURL = errors.New("invalid character tracker url")

// ParseTrackerURL extracts the player and character identifiers from a
// public stats page link, e.g.
// https://wynncraft.com/stats/player/<player-uuid>?character=<character-uuid>.
func ParseTrackerURL(raw string) (playerUUID, characterUUID string, err error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", "", ErrInvalidTrackerURL
	}

	parts := strings.Split(parsed.Path, "/")
	for idx, part := range parts {
		if part == "player" && idx+1 < len(parts) && parts[idx+1] != "" {
			playerUUID = parts[idx+1]
			break
		}
	}

	characterUUID = parsed.Query().Get("character")

	if playerUUID == "" || characterUUID == "" {
		return "", "", ErrInvalidTrackerURL
	}
	return playerUUID, characterUUID, nil
}
