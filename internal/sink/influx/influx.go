// Package influx stores poll results in InfluxDB, one point per data item.
package influx

import (
	"context"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/tamzrod/weather-station/internal/poller"
)

//go:generate mockgen -destination=mock_writer_test.go -package=influx . Writer

// DefaultWriteTimeout bounds one blocking write.
const DefaultWriteTimeout = 5 * time.Second

// Writer is the part of the blocking write API the sink uses.
type Writer interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// Config selects where points go.
type Config struct {
	URL         string
	Token       string
	Org         string
	Bucket      string
	Measurement string
	Station     string

	WriteTimeout time.Duration
}

// Sink writes Data items as points. Failures are not stored.
type Sink struct {
	w      Writer
	cfg    Config
	logger *zap.Logger

	client influxdb2.Client // nil when built with New
}

// New wraps an existing writer.
func New(w Writer, cfg Config, logger *zap.Logger) *Sink {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{
		w:      w,
		cfg:    cfg,
		logger: logger.Named("influx"),
	}
}

// Dial creates an InfluxDB client for cfg. An unreachable server is logged, not fatal:
// writes are retried on every item.
func Dial(ctx context.Context, cfg Config, logger *zap.Logger) (*Sink, error) {
	if cfg.URL == "" {
		return nil, errors.New("influx: url required")
	}

	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	s := New(client.WriteAPIBlocking(cfg.Org, cfg.Bucket), cfg, logger)
	s.client = client

	if ok, err := client.Ping(ctx); err != nil || !ok {
		s.logger.Warn("influxdb not reachable", zap.String("url", cfg.URL), zap.Error(err))
	}
	return s, nil
}

// Point builds the point for one data item: a field per sensor, tagged with the
// station name and stamped with the item's read time.
func (s *Sink) Point(data poller.Data) *write.Point {
	fields := make(map[string]interface{}, len(data))
	var ts time.Time
	for name, v := range data {
		fields[name] = v.Value
		if ts.IsZero() || v.Timestamp.Before(ts) {
			ts = v.Timestamp
		}
	}

	return influxdb2.NewPoint(
		s.cfg.Measurement,
		map[string]string{"station": s.cfg.Station},
		fields,
		ts,
	)
}

// OnData writes one point. Errors are logged; the poll loop never sees them.
func (s *Sink) OnData(data poller.Data) {
	if len(data) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.WriteTimeout)
	defer cancel()

	if err := s.w.WritePoint(ctx, s.Point(data)); err != nil {
		s.logger.Error("write failed",
			zap.String("bucket", s.cfg.Bucket),
			zap.Int("fields", len(data)),
			zap.Error(err),
		)
	}
}

// Close releases the client created by Dial.
func (s *Sink) Close() error {
	if s.client != nil {
		s.client.Close()
	}
	return nil
}
