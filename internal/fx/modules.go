package fx

import (
	"wynn-tracker/internal/api"
	"wynn-tracker/internal/config"
	"wynn-tracker/internal/database"
	"wynn-tracker/internal/logger"
	"wynn-tracker/internal/repository"
	"wynn-tracker/internal/server"
	"wynn-tracker/internal/service"

	"go.uber.org/fx"
)

func ProvideFetcher(client *api.WynncraftClient) service.PlayerFetcher {
	return client
}

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Invoke(logger.SetLevel),
	fx.Provide(database.New),
	// repos
	fx.Provide(repository.NewPlayerRepository),
	fx.Provide(repository.NewCharacterRepository),
	fx.Provide(repository.NewStatsRepository),
	// api client
	fx.Provide(api.NewWynncraftClient),
	fx.Provide(ProvideFetcher),
	// svc
	fx.Provide(service.NewTracker),
	fx.Provide(service.NewCharacterService),
	fx.Provide(service.NewImporter),
	// server
	fx.Provide(server.New),
)
