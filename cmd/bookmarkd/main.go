package main

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Rogue-Bear-Innovations/bookmarker/internal/config"
	"github.com/Rogue-Bear-Innovations/bookmarker/internal/db"
	"github.com/Rogue-Bear-Innovations/bookmarker/internal/feed"
	"github.com/Rogue-Bear-Innovations/bookmarker/internal/health"
	"github.com/Rogue-Bear-Innovations/bookmarker/internal/logger"
	"github.com/Rogue-Bear-Innovations/bookmarker/internal/service"
	"github.com/Rogue-Bear-Innovations/bookmarker/internal/transport"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		panic(err)
	}

	fx.New(
		fx.Provide(
			config.NewConfig,
			func(cfg *config.Config) (*zap.SugaredLogger, error) {
				return logger.New(cfg.LogLevel)
			},
			db.NewGormClient,
			service.NewGeneral,
		),
		feed.Module,
		transport.Module,
		health.Module,
		fx.Invoke(func(*transport.HTTPServer, *health.Server) {}),
	).Run()
}
