// internal/writer/status_writer_test.go
package writer

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tamzrod/weather-station/internal/config"
	"github.com/tamzrod/weather-station/internal/status"
)

func statusPlan(slot uint16, name string) Plan {
	return Plan{
		Target: Target{Endpoint: "status-endpoint", UnitID: 1},
		Status: &StatusPlan{BaseSlot: slot, DeviceName: name},
	}
}

func TestDeviceNameWrittenOnFullAssertOnly(t *testing.T) {
	cli := &fakeEndpointClient{}
	plan := statusPlan(0, "station1")

	sw, enabled := NewDeviceStatusWriter(plan, cli)
	if !enabled {
		t.Fatalf("status writer should be enabled")
	}

	// ---- first write: FULL ASSERT ----
	if err := sw.WriteStatus(status.Snapshot{Health: status.HealthOK}); err != nil {
		t.Fatalf("initial full assert failed: %v", err)
	}

	if len(cli.lastRegs) != SlotsPerDevice {
		t.Fatalf("expected full block write (%d regs), got %d", SlotsPerDevice, len(cli.lastRegs))
	}

	expectedNameRegs := encodeDeviceNameRegs(plan.Status.DeviceName)
	for i := 0; i < SlotDeviceNameSlots; i++ {
		slot := SlotDeviceNameStart + i
		if cli.lastRegs[slot] != expectedNameRegs[i] {
			t.Fatalf("device name slot %d mismatch: got=%d want=%d", slot, cli.lastRegs[slot], expectedNameRegs[i])
		}
	}

	// ---- second write: INCREMENTAL ONLY ----
	second := status.Snapshot{
		Health:         status.HealthError,
		LastErrorCode:  2,
		SecondsInError: 1,
	}
	if err := sw.WriteStatus(second); err != nil {
		t.Fatalf("incremental write failed: %v", err)
	}

	if len(cli.lastRegs) == SlotsPerDevice {
		t.Fatalf("device name should not be rewritten on incremental update")
	}
	// health, last error and seconds changed: three single-register writes
	if len(cli.writes) != 4 {
		t.Fatalf("expected 4 writes total, got %d", len(cli.writes))
	}
}

func TestStatusBlockAddress(t *testing.T) {
	cli := &fakeEndpointClient{}
	sw, _ := NewDeviceStatusWriter(statusPlan(5, "x"), cli)

	if err := sw.WriteStatus(status.Snapshot{Health: status.HealthOK}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if cli.writes[0].addr != 100 {
		t.Fatalf("expected block at 100, got %d", cli.writes[0].addr)
	}

	if err := sw.WriteStatus(status.Snapshot{Health: status.HealthStale}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if cli.writes[1].addr != 100+SlotHealthCode || cli.writes[1].regs[0] != status.HealthStale {
		t.Fatalf("unexpected delta write %+v", cli.writes[1])
	}
}

func TestSecondsInErrorResetOnRecovery(t *testing.T) {
	cli := &fakeEndpointClient{}
	sw, _ := NewDeviceStatusWriter(statusPlan(0, "station1"), cli)

	errSnap := status.Snapshot{Health: status.HealthError, LastErrorCode: 4, SecondsInError: 3}
	if err := sw.WriteStatus(errSnap); err != nil {
		t.Fatalf("error snapshot write failed: %v", err)
	}

	okSnap := status.Snapshot{Health: status.HealthOK, LastErrorCode: 4}
	if err := sw.WriteStatus(okSnap); err != nil {
		t.Fatalf("recovery write failed: %v", err)
	}

	last := cli.writes[len(cli.writes)-1]
	if last.addr != SlotSecondsInError || last.regs[0] != 0 {
		t.Fatalf("seconds_in_error should be reset, got %+v", last)
	}
}

func TestFailedDeltaForcesFullAssert(t *testing.T) {
	cli := &fakeEndpointClient{}
	sw, _ := NewDeviceStatusWriter(statusPlan(0, "station1"), cli)

	if err := sw.WriteStatus(status.Snapshot{Health: status.HealthOK}); err != nil {
		t.Fatalf("write: %v", err)
	}

	cli.failAt, cli.failSet = SlotHealthCode, true
	if err := sw.WriteStatus(status.Snapshot{Health: status.HealthError}); err == nil {
		t.Fatalf("expected delta failure")
	}

	cli.failSet = false
	if err := sw.WriteStatus(status.Snapshot{Health: status.HealthError}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if len(cli.lastRegs) != SlotsPerDevice {
		t.Fatalf("expected full re-assert after failure, got %d regs", len(cli.lastRegs))
	}
}

func TestEncodeDeviceName(t *testing.T) {
	regs := encodeDeviceNameRegs("AB\x01")
	if regs[0] != uint16('A')<<8|uint16('B') {
		t.Fatalf("unexpected first reg %#x", regs[0])
	}
	if regs[1] != uint16('?')<<8 {
		t.Fatalf("control byte should be replaced, got %#x", regs[1])
	}

	long := encodeDeviceNameRegs("abcdefghijklmnopqrstuvwxyz")
	if long[SlotDeviceNameSlots-1] != uint16('o')<<8|uint16('p') {
		t.Fatalf("name should be cut at %d chars", DeviceNameMaxChars)
	}
}

func TestStatusDisabledWithoutPlan(t *testing.T) {
	if _, ok := NewDeviceStatusWriter(Plan{}, &fakeEndpointClient{}); ok {
		t.Fatalf("status writer should be disabled")
	}
}

// ---- builder + mirror ----

func TestBuildPlan(t *testing.T) {
	id := uint8(3)
	slot := uint16(10)

	plan, err := BuildPlan(config.MirrorConfig{
		Endpoint:   "localhost:1502",
		UnitID:     &id,
		Offset:     1000,
		StatusSlot: &slot,
	}, "station1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.Target.UnitID != 3 || plan.Target.Offset != 1000 {
		t.Fatalf("unexpected target %+v", plan.Target)
	}
	if plan.Status == nil || plan.Status.BaseSlot != 10 || plan.Status.DeviceName != "station1" {
		t.Fatalf("unexpected status plan %+v", plan.Status)
	}

	if _, err := BuildPlan(config.MirrorConfig{Endpoint: "x"}, "s"); err == nil {
		t.Fatalf("expected error without unit id")
	}
}

func TestMirror_DataAndStatus(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	cli := &fakeEndpointClient{}

	m := newMirror(statusPlan(10, "station1"), mirrored, cli, nil, zap.New(core))
	if !m.StatusEnabled() {
		t.Fatalf("status should be enabled")
	}

	m.OnData(data(map[string]uint16{"temperature": 39102}))
	m.WriteStatus(status.Snapshot{Health: status.HealthOK})

	if len(cli.writes) != 2 {
		t.Fatalf("expected 2 writes, got %d", len(cli.writes))
	}
	if cli.writes[0].addr != 17 || cli.writes[0].regs[0] != 39102 {
		t.Fatalf("unexpected data write %+v", cli.writes[0])
	}
	if cli.writes[1].addr != 200 {
		t.Fatalf("unexpected status write %+v", cli.writes[1])
	}

	cli.failAt, cli.failSet = SlotHealthCode+200, true
	m.WriteStatus(status.Snapshot{Health: status.HealthError})
	if logs.FilterMessage("status write failed").Len() != 1 {
		t.Fatalf("expected status failure to be logged")
	}

	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
