// cmd/wms/main.go
package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/tamzrod/weather-station/internal/config"
	"github.com/tamzrod/weather-station/internal/logging"
)

const (
	// Flags.
	flagConfig  = "config"
	flagEnvFile = "env-file"
	flagSensors = "sensors"
	flagDebug   = "debug"
)

func main() {
	app := &cli.App{
		Name:  "wms",
		Usage: "poll a weather station over Modbus TCP and publish its sensor values",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     flagConfig,
				Aliases:  []string{"c"},
				Usage:    "load configuration from `FILE`",
				Required: true,
			},
			&cli.StringSliceFlag{
				Name:  flagEnvFile,
				Usage: "load environment overrides from `FILE` (missing files are skipped)",
				Value: cli.NewStringSlice(".env"),
			},
			&cli.StringSliceFlag{
				Name:  flagSensors,
				Usage: "poll only these sensors (default: all configured)",
			},
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "enable debug logging",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	logger, err := logging.New(c.Bool(flagDebug))
	if err != nil {
		return errors.Wrap(err, "logger")
	}
	defer func() { _ = logger.Sync() }()

	// --------------------
	// Load + validate config
	// --------------------

	if err := config.LoadEnv(c.StringSlice(flagEnvFile)...); err != nil {
		return err
	}
	cfg, err := loadConfig(c.String(flagConfig))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --------------------
	// Build station + sinks
	// --------------------

	app, cleanup, err := initApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()
	// closes every sink on early returns; no-op after the final Close below
	defer func() { _ = app.Close() }()

	if err := app.Start(c.StringSlice(flagSensors)); err != nil {
		return err
	}
	go app.RunStatus(ctx)
	logger.Info("weather station running",
		zap.String("station", app.Station.Name()),
		zap.String("endpoint", cfg.WeatherStation.Endpoint()),
		zap.Duration("poll_interval", app.Station.PollInterval()),
		zap.Strings("sensors", app.Station.PolledSensors()),
	)

	// --------------------
	// Block until signalled
	// --------------------

	<-ctx.Done()
	logger.Info("shutting down", zap.Any("status", app.Station.Status()))

	return app.Close()
}
