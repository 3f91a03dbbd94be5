package domain

import "errors"

var (
	ErrPlayerNotFound    = errors.New("player not found")
	ErrCharacterNotFound = errors.New("character not found")
	ErrCharacterExists   = errors.New("character already tracked")

	// ErrOpenVersionConflict means a character has more than one stats
	// version with no upper validity bound. That state is corruption and is
	// surfaced instead of repaired.
	ErrOpenVersionConflict = errors.New("multiple open stats versions")
)
