// internal/writer/types.go
package writer

import "github.com/tamzrod/weather-station/internal/poller"

// Target is the Modbus server the station's registers are mirrored into.
type Target struct {
	Endpoint string
	UnitID   uint8

	// Offset is added to every sensor address.
	Offset uint16
}

// StatusPlan places the station status block in target memory.
type StatusPlan struct {
	// BaseSlot selects the block: the block starts at BaseSlot*SlotsPerDevice.
	BaseSlot   uint16
	DeviceName string
}

// Plan is the fully-built write plan for one station.
type Plan struct {
	Target Target
	Status *StatusPlan // nil: status block disabled
}

// Writer mirrors poll data into target memory.
type Writer interface {
	Write(data poller.Data) error
}
