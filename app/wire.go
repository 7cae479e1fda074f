//go:build wireinject
// +build wireinject

package app

import (
	"github.com/google/wire"

	"github.com/cppla/inkblog/config"
	"github.com/cppla/inkblog/controllers"
	"github.com/cppla/inkblog/middleware"
	"github.com/cppla/inkblog/routes"
	"github.com/cppla/inkblog/services"
)

func InitApp(cfg config.AppConfig) (*App, func(), error) {
	wire.Build(
		InfraSet,
		services.ProviderSet,
		controllers.ProviderSet,
		middleware.NewRateLimiter,
		wire.Struct(new(routes.Handlers), "*"),
		routes.SetupRouter,
		wire.Struct(new(App), "*"),
	)
	return nil, nil, nil
}
