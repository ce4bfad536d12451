package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vcfcreds/app"
	"vcfcreds/config"
	"vcfcreds/config/appconf"
	"vcfcreds/internal/dbconn"
	"vcfcreds/internal/logging"
	"vcfcreds/internal/syncmetrics"
	"vcfcreds/internal/validator"
	"vcfcreds/version"

	_ "github.com/joho/godotenv/autoload"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	gommonlog "github.com/labstack/gommon/log"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
)

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "vcfcreds",
		Usage:   "Credential sync server for VCF deployments",
		Version: version.Version,
		Before: func(ctx context.Context, _ *cli.Command) (context.Context, error) {
			return ctx, logging.Configure(appconf.LogLevel(), appconf.LogFormat())
		},
		Action: serveAction,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Start the HTTP API and the sync scheduler",
				Action: serveAction,
			},
			{
				Name:   "sync",
				Usage:  "Sync every enabled environment once and exit",
				Action: syncAction,
			},
			{
				Name:  "version",
				Usage: "Print the version",
				Action: func(_ context.Context, c *cli.Command) error {
					fmt.Fprintln(c.Root().Writer, version.Version)
					return nil
				},
			},
		},
	}
}

func newContainer() (*app.Container, error) {
	db, err := dbconn.GetConn(
		dbconn.WithURL(appconf.DBURL()),
	)
	if err != nil {
		return nil, fmt.Errorf("db connection failed: %w", err)
	}

	container := app.NewContainer(db, app.ContainerConfig{
		SourceTimeout:   appconf.SourceTimeout(),
		SyncConcurrency: appconf.SyncConcurrency(),
		PruneMissing:    appconf.PruneMissing(),
		Metrics:         syncmetrics.Default(),
	})
	if err := container.Migrate(); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return container, nil
}

func serveAction(ctx context.Context, _ *cli.Command) error {
	container, err := newContainer()
	if err != nil {
		return err
	}
	defer dbconn.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	e := echo.New()
	e.HideBanner = true
	e.Logger.SetLevel(gommonlog.INFO)
	e.Validator = validator.New()

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	config.AddRoutes(e, container)

	if _, err := container.SyncJob.Register(ctx); err != nil {
		return err
	}
	defer container.SyncJob.Shutdown()

	errCh := make(chan error, 1)
	go func() {
		errCh <- e.Start(fmt.Sprintf(":%s", appconf.Port()))
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func syncAction(ctx context.Context, _ *cli.Command) error {
	container, err := newContainer()
	if err != nil {
		return err
	}
	defer dbconn.Close()

	return container.SyncJob.SyncAll(ctx)
}
