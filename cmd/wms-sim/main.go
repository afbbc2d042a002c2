// cmd/wms-sim/main.go
package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/tamzrod/weather-station/internal/logging"
	"github.com/tamzrod/weather-station/internal/simulator"
)

const (
	// Flags.
	flagListen   = "listen"
	flagGenerate = "generate"
	flagSeed     = "seed"
	flagDebug    = "debug"
)

func main() {
	app := &cli.App{
		Name:  "wms-sim",
		Usage: "serve a simulated weather station over Modbus TCP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  flagListen,
				Usage: "listen on `ADDR`",
				Value: "0.0.0.0:502",
			},
			&cli.BoolFlag{
				Name:  flagGenerate,
				Usage: "vary sensor values over time instead of holding the defaults",
			},
			&cli.Int64Flag{
				Name:  flagSeed,
				Usage: "seed for generated data (default: current time)",
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

	seed := c.Int64(flagSeed)
	if !c.IsSet(flagSeed) {
		seed = time.Now().UnixNano()
	}

	sim := simulator.New(nil, seed)
	srv := simulator.NewServer(sim, logger)
	if err := srv.Listen(c.String(flagListen)); err != nil {
		return err
	}
	defer srv.Close()

	if c.Bool(flagGenerate) {
		sim.StartGenerating()
		defer sim.StopGenerating()
	}

	for _, s := range sim.Sensors() {
		d := s.Descriptor()
		logger.Info("sensor",
			zap.String("name", d.Name),
			zap.Uint16("address", d.Address),
			zap.Float64("value", s.Engineering()),
			zap.String("unit", d.Unit),
		)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("shutting down")
	return nil
}
