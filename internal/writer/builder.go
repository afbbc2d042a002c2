// internal/writer/builder.go
package writer

import (
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	cfg "github.com/tamzrod/weather-station/internal/config"
	"github.com/tamzrod/weather-station/internal/poller"
	"github.com/tamzrod/weather-station/internal/sensor"
	"github.com/tamzrod/weather-station/internal/status"
	wmodbus "github.com/tamzrod/weather-station/internal/writer/modbus"
)

// BuildPlan converts the mirror config into a Writer Plan.
// Assumes config has already passed validation and normalization.
func BuildPlan(m cfg.MirrorConfig, stationName string) (Plan, error) {
	if m.Endpoint == "" {
		return Plan{}, errors.New("writer: mirror.endpoint required")
	}
	if m.UnitID == nil {
		return Plan{}, errors.New("writer: mirror.unit_id required")
	}

	plan := Plan{
		Target: Target{
			Endpoint: m.Endpoint,
			UnitID:   *m.UnitID,
			Offset:   m.Offset,
		},
	}
	if m.StatusSlot != nil {
		plan.Status = &StatusPlan{
			BaseSlot:   *m.StatusSlot,
			DeviceName: stationName,
		}
	}
	return plan, nil
}

// Mirror is the assembled mirror sink: one endpoint client shared by the
// data writer and the optional status writer.
type Mirror struct {
	data   *writerImpl
	status *deviceStatusWriter // nil when disabled
	cli    *wmodbus.EndpointClient
	logger *zap.Logger
}

// Build creates the endpoint client and both writers.
func Build(m cfg.MirrorConfig, stationName string, sensors []sensor.Descriptor, logger *zap.Logger) (*Mirror, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	plan, err := BuildPlan(m, stationName)
	if err != nil {
		return nil, err
	}

	c, err := wmodbus.NewEndpointClient(wmodbus.Config{
		Endpoint: m.Endpoint,
		Timeout:  time.Duration(m.TimeoutMs) * time.Millisecond,
	})
	if err != nil {
		return nil, err
	}

	return newMirror(plan, sensors, c, c, logger), nil
}

func newMirror(plan Plan, sensors []sensor.Descriptor, cli endpointClient, conn *wmodbus.EndpointClient, logger *zap.Logger) *Mirror {
	mr := &Mirror{
		data:   New(plan, sensors, cli, logger),
		cli:    conn,
		logger: logger.Named("writer"),
	}
	if sw, ok := NewDeviceStatusWriter(plan, cli); ok {
		mr.status = sw
	}
	return mr
}

// OnData mirrors one data item. Errors are logged.
func (m *Mirror) OnData(data poller.Data) {
	m.data.OnData(data)
}

// StatusEnabled reports whether a status block is configured.
func (m *Mirror) StatusEnabled() bool {
	return m.status != nil
}

// WriteStatus writes a status snapshot when the status block is enabled.
func (m *Mirror) WriteStatus(s status.Snapshot) {
	if m.status == nil {
		return
	}
	if err := m.status.WriteStatus(s); err != nil {
		m.logger.Warn("status write failed", zap.Error(err))
	}
}

// Close drops the endpoint connection.
func (m *Mirror) Close() error {
	if m.cli == nil {
		return nil
	}
	return m.cli.Close()
}
