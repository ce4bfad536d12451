package config

import (
	"context"

	"vcfcreds/app"
	"vcfcreds/app/controller/credentials"
	"vcfcreds/app/controller/environments"
	"vcfcreds/app/controller/health"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func AddRoutes(e *echo.Echo, container *app.Container) {
	root := e.Group("")
	v1Route := e.Group("/api/v1")

	health.Register(root, func(ctx context.Context) error {
		sqlDB, err := container.DB.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	})
	root.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	envHandler := environments.NewHandler(
		container.EnvironmentRepository,
		container.CredentialRepository,
		container.SyncService,
		container.SyncJob,
	)
	credHandler := credentials.NewHandler(container.CredentialRepository)

	envHandler.RegisterRoutes(v1Route.Group("/environments"))
	credHandler.RegisterRoutes(v1Route.Group("/credentials"))
}
