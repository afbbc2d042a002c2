// internal/writer/writer.go
package writer

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/tamzrod/weather-station/internal/poller"
	"github.com/tamzrod/weather-station/internal/sensor"
)

// endpointClient is the exact contract the writers use.
type endpointClient interface {
	WriteRegisters(unitID uint8, addr uint16, regs []uint16) error
}

var (
	_ Writer       = (*writerImpl)(nil)
	_ StatusWriter = (*deviceStatusWriter)(nil)
)

type writerImpl struct {
	plan    Plan
	sensors map[string]sensor.Descriptor
	cli     endpointClient
	logger  *zap.Logger
}

// New returns a writer that copies raw counts of the given sensors into the
// target's holding registers at Offset+address.
func New(plan Plan, sensors []sensor.Descriptor, cli endpointClient, logger *zap.Logger) *writerImpl {
	if logger == nil {
		logger = zap.NewNop()
	}
	byName := make(map[string]sensor.Descriptor, len(sensors))
	for _, s := range sensors {
		byName[s.Name] = s
	}
	return &writerImpl{
		plan:    plan,
		sensors: byName,
		cli:     cli,
		logger:  logger.Named("writer"),
	}
}

// Write mirrors one data item. Contiguous sensors go out as one FC16 request.
func (w *writerImpl) Write(data poller.Data) error {
	if w.cli == nil {
		return errors.Errorf("writer: missing client for endpoint %s", w.plan.Target.Endpoint)
	}

	present := make([]sensor.Descriptor, 0, len(data))
	for name := range data {
		s, ok := w.sensors[name]
		if !ok {
			return errors.Errorf("writer: unknown sensor %q", name)
		}
		present = append(present, s)
	}

	var err error
	for _, run := range poller.BuildPlan(present) {
		regs := make([]uint16, len(run))
		for i, s := range run {
			regs[i] = data[s.Name].Raw
		}

		dstAddr := w.plan.Target.Offset + run.Start()
		if werr := w.cli.WriteRegisters(w.plan.Target.UnitID, dstAddr, regs); werr != nil {
			err = multierr.Append(err, errors.Wrapf(werr,
				"writer: ep=%s unit=%d addr=%d",
				w.plan.Target.Endpoint, w.plan.Target.UnitID, dstAddr,
			))
		}
	}
	return err
}

// OnData is Write as a data callback. Errors are logged.
func (w *writerImpl) OnData(data poller.Data) {
	if err := w.Write(data); err != nil {
		w.logger.Error("mirror write failed", zap.Error(err))
	}
}
