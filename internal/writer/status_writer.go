// internal/writer/status_writer.go
package writer

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/tamzrod/weather-station/internal/status"
)

// StatusWriter is the delivery-only contract for station status.
// It receives a snapshot and writes it verbatim.
type StatusWriter interface {
	WriteStatus(s status.Snapshot) error
}

type deviceStatusWriter struct {
	target Target
	plan   *StatusPlan
	cli    endpointClient

	needFull bool
	last     status.Snapshot
	nameRegs []uint16
}

// NewDeviceStatusWriter builds a status writer if the plan enables one.
func NewDeviceStatusWriter(plan Plan, cli endpointClient) (*deviceStatusWriter, bool) {
	if plan.Status == nil {
		return nil, false
	}

	sp := plan.Status
	return &deviceStatusWriter{
		target:   plan.Target,
		plan:     sp,
		cli:      cli,
		needFull: true, // full re-assert on first successful write
		last: status.Snapshot{
			Health: status.HealthUnknown,
		},
		nameRegs: encodeDeviceNameRegs(sp.DeviceName),
	}, true
}

// WriteStatus delivers a status snapshot into status memory.
// On any write failure, the next successful call re-asserts the full block.
func (sw *deviceStatusWriter) WriteStatus(s status.Snapshot) error {
	if sw == nil || sw.plan == nil {
		return errors.New("status writer: disabled")
	}
	if sw.cli == nil {
		return errors.Errorf("status writer: missing client for endpoint %s", sw.target.Endpoint)
	}

	baseAddr := sw.baseAddr()
	unitID := sw.target.UnitID

	// ---- full block (identity re-assert) ----

	if sw.needFull {
		if err := sw.cli.WriteRegisters(unitID, baseAddr, sw.fullBlockRegs(s)); err != nil {
			return errors.Wrap(err, "status writer: full block write failed")
		}
		sw.needFull = false
		sw.last = s
		return nil
	}

	// ---- deltas ----

	var err error

	if sw.last.Health != s.Health {
		if werr := sw.cli.WriteRegisters(unitID, baseAddr+SlotHealthCode, []uint16{s.Health}); werr != nil {
			err = multierr.Append(err, errors.Wrap(werr, "slot0 health write failed"))
		} else {
			sw.last.Health = s.Health
		}
	}

	if sw.last.LastErrorCode != s.LastErrorCode {
		if werr := sw.cli.WriteRegisters(unitID, baseAddr+SlotLastErrorCode, []uint16{s.LastErrorCode}); werr != nil {
			err = multierr.Append(err, errors.Wrap(werr, "slot1 last_error write failed"))
		} else {
			sw.last.LastErrorCode = s.LastErrorCode
		}
	}

	if sw.last.SecondsInError != s.SecondsInError {
		if werr := sw.cli.WriteRegisters(unitID, baseAddr+SlotSecondsInError, []uint16{s.SecondsInError}); werr != nil {
			err = multierr.Append(err, errors.Wrap(werr, "slot2 seconds write failed"))
		} else {
			sw.last.SecondsInError = s.SecondsInError
		}
	}

	if err != nil {
		// Any partial failure introduces doubt: re-assert on next success.
		sw.needFull = true
		return errors.Wrap(err, "status writer")
	}
	return nil
}

func (sw *deviceStatusWriter) baseAddr() uint16 {
	return sw.plan.BaseSlot * SlotsPerDevice
}

func (sw *deviceStatusWriter) fullBlockRegs(s status.Snapshot) []uint16 {
	regs := make([]uint16, SlotsPerDevice)

	regs[SlotHealthCode] = s.Health
	regs[SlotLastErrorCode] = s.LastErrorCode
	regs[SlotSecondsInError] = s.SecondsInError

	// Station name always lives at the end of the block.
	copy(regs[SlotDeviceNameStart:SlotDeviceNameStart+SlotDeviceNameSlots], sw.nameRegs)

	return regs
}

// encodeDeviceNameRegs packs up to 16 ASCII characters into 8 registers,
// two bytes per register, big-endian.
func encodeDeviceNameRegs(name string) []uint16 {
	out := make([]uint16, SlotDeviceNameSlots)

	b := []byte(name)
	if len(b) > DeviceNameMaxChars {
		b = b[:DeviceNameMaxChars]
	}

	// printable ASCII only
	for i := range b {
		if b[i] < 0x20 || b[i] > 0x7E {
			b[i] = '?'
		}
	}

	for i := 0; i < DeviceNameMaxChars; i += 2 {
		var hi, lo byte
		if i < len(b) {
			hi = b[i]
		}
		if i+1 < len(b) {
			lo = b[i+1]
		}
		out[i/2] = uint16(hi)<<8 | uint16(lo)
	}

	return out
}
