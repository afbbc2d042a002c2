// cmd/wms/app.go
package main

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/tamzrod/weather-station/internal/config"
	"github.com/tamzrod/weather-station/internal/poller"
	influxsink "github.com/tamzrod/weather-station/internal/sink/influx"
	mqttsink "github.com/tamzrod/weather-station/internal/sink/mqtt"
	"github.com/tamzrod/weather-station/internal/station"
	mbtransport "github.com/tamzrod/weather-station/internal/transport/modbus"
	"github.com/tamzrod/weather-station/internal/writer"
)

// statusInterval is how often the status block is written to the mirror.
const statusInterval = time.Second

// App is one running weather station with its output sinks.
type App struct {
	Station *station.WeatherStation

	mqtt   *mqttsink.Sink   // nil when not configured
	influx *influxsink.Sink // nil when not configured
	mirror *writer.Mirror   // nil when not configured
	clock  clock.Clock
	logger *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

func newApp(ws *station.WeatherStation, mq *mqttsink.Sink, ix *influxsink.Sink, mr *writer.Mirror, logger *zap.Logger) *App {
	return &App{
		Station: ws,
		mqtt:    mq,
		influx:  ix,
		mirror:  mr,
		clock:   clock.New(),
		logger:  logger.Named("wms"),
	}
}

// Subscribe registers the log sink and every configured output sink.
func (a *App) Subscribe() {
	a.Station.SubscribeData(a.logData, a.logFailure)

	if a.mqtt != nil {
		a.Station.SubscribeData(a.mqtt.OnData, a.mqtt.OnFailure)
	}
	if a.influx != nil {
		a.Station.SubscribeData(a.influx.OnData, nil)
	}
	if a.mirror != nil {
		a.Station.SubscribeData(a.mirror.OnData, nil)
	}
}

// RunStatus writes the station status to the mirror once per second
// until ctx is done. It returns immediately when no status block is configured.
func (a *App) RunStatus(ctx context.Context) {
	if a.mirror == nil || !a.mirror.StatusEnabled() {
		return
	}

	t := a.clock.Ticker(statusInterval)
	defer t.Stop()

	for {
		a.mirror.WriteStatus(a.Station.Status())

		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func (a *App) logData(data poller.Data) {
	fields := make([]zap.Field, 0, len(data))
	for name, v := range data {
		fields = append(fields, zap.Float64(name, v.Value))
	}
	a.logger.Debug("sensor data", fields...)
}

func (a *App) logFailure(f poller.Failure) {
	a.logger.Warn("sensor read failed",
		zap.Strings("sensors", f.Sensors),
		zap.String("error", f.Message),
		zap.Time("ts", f.Timestamp),
	)
}

// Start applies an optional sensor subset, subscribes the sinks and starts polling.
func (a *App) Start(sensors []string) error {
	if len(sensors) > 0 {
		if err := a.Station.ConfigurePollSensors(sensors); err != nil {
			return err
		}
	}
	a.Subscribe()
	return a.Station.StartPolling()
}

// Close stops the station before the sinks it feeds.
// Every sink is closed even when an earlier one fails. Later calls return
// the first call's result.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		err := a.Station.Close()
		if a.mqtt != nil {
			err = multierr.Append(err, a.mqtt.Close())
		}
		if a.influx != nil {
			err = multierr.Append(err, a.influx.Close())
		}
		if a.mirror != nil {
			err = multierr.Append(err, a.mirror.Close())
		}
		a.closeErr = err
	})
	return a.closeErr
}

// ---- providers ----

func provideTransport(cfg *config.Config, logger *zap.Logger) (*mbtransport.Client, error) {
	s := cfg.WeatherStation
	return mbtransport.New(mbtransport.Config{
		Endpoint: s.Endpoint(),
		SlaveID:  *s.SlaveID,
		Timeout:  s.Timeout(),
	}, logger)
}

func provideStation(cfg *config.Config, tr *mbtransport.Client, logger *zap.Logger) (*station.WeatherStation, func(), error) {
	s := cfg.WeatherStation
	ws, err := station.New(station.Config{
		Name:         s.Name,
		Sensors:      s.Descriptors(),
		PollInterval: s.Interval(),
		QueueSize:    s.QueueSize,
	}, tr, logger)
	if err != nil {
		return nil, nil, err
	}
	return ws, func() { _ = ws.Close() }, nil
}

func provideMQTT(cfg *config.Config, logger *zap.Logger) (*mqttsink.Sink, error) {
	m := cfg.MQTT
	if m == nil {
		return nil, nil
	}
	return mqttsink.Dial(mqttsink.Config{
		Broker:      m.Broker,
		ClientID:    m.ClientID,
		Username:    m.Username,
		Password:    m.Password,
		TopicPrefix: m.TopicPrefix,
		QoS:         m.QoS,
		Station:     cfg.WeatherStation.Name,
	}, logger)
}

func provideInflux(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*influxsink.Sink, error) {
	i := cfg.InfluxDB
	if i == nil {
		return nil, nil
	}
	return influxsink.Dial(ctx, influxsink.Config{
		URL:         i.URL,
		Token:       i.Token,
		Org:         i.Org,
		Bucket:      i.Bucket,
		Measurement: i.Measurement,
		Station:     cfg.WeatherStation.Name,
	}, logger)
}

func provideMirror(cfg *config.Config, logger *zap.Logger) (*writer.Mirror, error) {
	m := cfg.Mirror
	if m == nil {
		return nil, nil
	}
	s := cfg.WeatherStation
	return writer.Build(*m, s.Name, s.Descriptors(), logger)
}

// loadConfig reads, checks and completes the config file.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	config.ApplyEnv(cfg)

	if err := config.Validate(cfg); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}
	config.Normalize(cfg)
	return cfg, nil
}
