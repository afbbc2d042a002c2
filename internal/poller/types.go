// internal/poller/types.go
package poller

import (
	"time"

	"github.com/tamzrod/weather-station/internal/sensor"
)

// ReadRequest is one Modbus read: sensors with strictly consecutive addresses.
// Geometry comes from the sensors themselves.
type ReadRequest []sensor.Descriptor

// Start is the first register address of the request.
func (r ReadRequest) Start() uint16 {
	return r[0].Address
}

// Quantity is the number of registers covered by the request.
func (r ReadRequest) Quantity() uint16 {
	return uint16(len(r))
}

// Names lists the sensors covered by the request, in register order.
func (r ReadRequest) Names() []string {
	names := make([]string, len(r))
	for i, s := range r {
		names[i] = s.Name
	}
	return names
}

// Plan is the full, ordered set of requests executed by one poll cycle.
// A Plan is never modified once handed to the poller; build a new one instead.
type Plan []ReadRequest

// Sensors counts the sensors covered by the plan.
func (p Plan) Sensors() int {
	n := 0
	for _, r := range p {
		n += len(r)
	}
	return n
}

// Reading is one raw register value, as read from the device.
type Reading struct {
	Sensor    string
	Raw       uint16
	Timestamp time.Time
}

// Value is one converted sensor value, as delivered to subscribers.
type Value struct {
	Value     float64
	Unit      string
	Timestamp time.Time

	// Raw is the register value Value was converted from.
	Raw uint16
}

// Data maps sensor name to its converted value.
// One Data is produced per successful ReadRequest.
type Data map[string]Value

// Failure reports one failed ReadRequest.
type Failure struct {
	Sensors   []string
	Message   string
	Timestamp time.Time

	// Err is the transport error behind Message, kept for classification.
	Err error
}

// Item is what the poller hands to the publisher.
// Exactly one of Data / Failure is set.
type Item struct {
	Data    Data
	Failure *Failure

	// Cycle numbers the poll cycle the item belongs to, from 1.
	// Zero means the item stands alone.
	Cycle uint64
	// Last marks the final request of its cycle.
	Last bool
}

// IsFailure reports whether the item carries a failure.
func (it Item) IsFailure() bool {
	return it.Failure != nil
}

// EndsCycle reports whether no further item of the same cycle follows.
func (it Item) EndsCycle() bool {
	return it.Cycle == 0 || it.Last
}
