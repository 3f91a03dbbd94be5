package logger

import (
	"os"
	"wynn-tracker/internal/config"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func New() zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Caller().
		Logger()

	logger = logger.Level(zerolog.DebugLevel)

	return logger
}

// SetLevel applies the configured minimum level process-wide once the
// configuration is loaded. An unknown level string keeps the default.
func SetLevel(cfg *config.Config, logger zerolog.Logger) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		logger.Warn().Str("log_level", cfg.LogLevel).Msg("unknown log level, keeping default")
		return
	}
	zerolog.SetGlobalLevel(level)
}

var Module = fx.Options(
	fx.Provide(New),
	fx.Invoke(SetLevel),
)
