package constants

import "time"

const (
	ExternalAPITimeout = 30 * time.Second
	DatabaseTimeout    = 5 * time.Second
	RequestTimeout     = 45 * time.Second
)

const (
	DBMaxOpenConns    = 100
	DBMaxIdleConns    = 10
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
)

const (
	// Upper bound on characters refreshed in parallel within one cycle.
	TrackerConcurrency = 4
)

const (
	ShutdownTimeout = 5 * time.Second
)
