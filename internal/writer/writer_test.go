// internal/writer/writer_test.go
package writer

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tamzrod/weather-station/internal/poller"
	"github.com/tamzrod/weather-station/internal/sensor"
)

// ---- fake endpoint client ----

type fakeEndpointClient struct {
	writes   []writeCall
	lastRegs []uint16

	// failAt makes writes to this address fail (when failSet).
	failAt  uint16
	failSet bool
}

type writeCall struct {
	unitID uint8
	addr   uint16
	regs   []uint16
}

func (f *fakeEndpointClient) WriteRegisters(unitID uint8, addr uint16, regs []uint16) error {
	if f.failSet && addr == f.failAt {
		return errors.New("boom")
	}
	cp := append([]uint16(nil), regs...)
	f.writes = append(f.writes, writeCall{unitID: unitID, addr: addr, regs: cp})
	f.lastRegs = cp
	return nil
}

// ---- helpers ----

func desc(name string, addr uint16) sensor.Descriptor {
	return sensor.Descriptor{Name: name, Address: addr, Unit: "u", ScaleLow: 0, ScaleHigh: 100}
}

var mirrored = []sensor.Descriptor{
	desc("wind_speed", 15),
	desc("wind_direction", 16),
	desc("temperature", 17),
	desc("humidity", 19),
}

func data(raw map[string]uint16) poller.Data {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := poller.Data{}
	for name, r := range raw {
		out[name] = poller.Value{Raw: r, Value: float64(r), Timestamp: ts}
	}
	return out
}

// ---- tests ----

func TestWriter_OffsetAndContiguousRuns(t *testing.T) {
	fake := &fakeEndpointClient{}

	plan := Plan{Target: Target{Endpoint: "ep1", UnitID: 7, Offset: 100}}
	w := New(plan, mirrored, fake, nil)

	err := w.Write(data(map[string]uint16{
		"wind_speed":     1,
		"wind_direction": 2,
		"temperature":    3,
		"humidity":       4,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(fake.writes) != 2 {
		t.Fatalf("expected 2 writes, got %d", len(fake.writes))
	}

	first := fake.writes[0]
	if first.unitID != 7 || first.addr != 115 || len(first.regs) != 3 {
		t.Fatalf("unexpected first write %+v", first)
	}
	if first.regs[0] != 1 || first.regs[1] != 2 || first.regs[2] != 3 {
		t.Fatalf("unexpected first regs %v", first.regs)
	}

	second := fake.writes[1]
	if second.addr != 119 || len(second.regs) != 1 || second.regs[0] != 4 {
		t.Fatalf("unexpected second write %+v", second)
	}
}

func TestWriter_OnlyPresentSensors(t *testing.T) {
	fake := &fakeEndpointClient{}
	w := New(Plan{Target: Target{Endpoint: "ep1", UnitID: 1}}, mirrored, fake, nil)

	if err := w.Write(data(map[string]uint16{"humidity": 26869})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(fake.writes) != 1 {
		t.Fatalf("expected 1 write, got %d", len(fake.writes))
	}
	if fake.writes[0].addr != 19 || fake.writes[0].regs[0] != 26869 {
		t.Fatalf("unexpected write %+v", fake.writes[0])
	}
}

func TestWriter_UnknownSensor(t *testing.T) {
	fake := &fakeEndpointClient{}
	w := New(Plan{Target: Target{Endpoint: "ep1"}}, mirrored, fake, nil)

	if err := w.Write(data(map[string]uint16{"ghost": 1})); err == nil {
		t.Fatalf("expected error for unknown sensor")
	}
	if len(fake.writes) != 0 {
		t.Fatalf("nothing should be written")
	}
}

func TestWriter_PartialFailureKeepsGoing(t *testing.T) {
	fake := &fakeEndpointClient{failAt: 15, failSet: true}
	w := New(Plan{Target: Target{Endpoint: "ep1", UnitID: 1}}, mirrored, fake, nil)

	err := w.Write(data(map[string]uint16{"wind_speed": 1, "humidity": 2}))
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(fake.writes) != 1 || fake.writes[0].addr != 19 {
		t.Fatalf("second run should still be written, got %+v", fake.writes)
	}
}

func TestWriter_NilClient(t *testing.T) {
	w := New(Plan{Target: Target{Endpoint: "ep1"}}, mirrored, nil, nil)
	if err := w.Write(data(map[string]uint16{"humidity": 1})); err == nil {
		t.Fatalf("expected error for missing client")
	}
}

func TestWriter_OnDataLogsErrors(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	fake := &fakeEndpointClient{failAt: 19, failSet: true}
	w := New(Plan{Target: Target{Endpoint: "ep1"}}, mirrored, fake, zap.New(core))

	w.OnData(data(map[string]uint16{"humidity": 1}))

	if n := logs.FilterMessage("mirror write failed").Len(); n != 1 {
		t.Fatalf("expected 1 error log, got %d", n)
	}
}
