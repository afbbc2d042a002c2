// internal/simulator/simulator.go
package simulator

import (
	"sort"

	"github.com/benbjohnson/clock"

	"github.com/tamzrod/weather-station/internal/sensor"
)

// Default raw counts, matching the reference station.
const (
	DefaultWindSpeed     uint16 = 14024 // 21.4 m/s
	DefaultWindDirection uint16 = 53156 // 292 degrees
	DefaultTemperature   uint16 = 39102 // 25.8 deg C
	DefaultPressure      uint16 = 26476 // 802 mbar
	DefaultHumidity      uint16 = 26869 // 41 %
	DefaultRainfall      uint16 = 2883  // 22 mm
)

type sensorSpec struct {
	desc      sensor.Descriptor
	initial   uint16
	frequency float64 // Hz
}

var weatherSensors = []sensorSpec{
	{sensor.Descriptor{Address: 15, Name: "wind_speed", Description: "Wind speed", Unit: "m/s", ScaleLow: 0, ScaleHigh: 100}, DefaultWindSpeed, 1},
	{sensor.Descriptor{Address: 16, Name: "wind_direction", Description: "Wind direction", Unit: "degrees", ScaleLow: 0, ScaleHigh: 360}, DefaultWindDirection, 2},
	{sensor.Descriptor{Address: 17, Name: "temperature", Description: "Temperature", Unit: "Deg C", ScaleLow: -10, ScaleHigh: 50}, DefaultTemperature, 3},
	{sensor.Descriptor{Address: 18, Name: "pressure", Description: "Barometric pressure", Unit: "mbar", ScaleLow: 600, ScaleHigh: 1100}, DefaultPressure, 5},
	{sensor.Descriptor{Address: 19, Name: "humidity", Description: "Relative humidity", Unit: "%", ScaleLow: 0, ScaleHigh: 100}, DefaultHumidity, 10},
	{sensor.Descriptor{Address: 20, Name: "rainfall", Description: "Rainfall", Unit: "mm", ScaleLow: 0, ScaleHigh: 500}, DefaultRainfall, 5},
}

// Descriptors returns the simulated station's sensors, ordered by address.
func Descriptors() []sensor.Descriptor {
	out := make([]sensor.Descriptor, len(weatherSensors))
	for i, s := range weatherSensors {
		out[i] = s.desc
	}
	return out
}

// Simulator holds the register map of one simulated weather station.
// Construct one per server (or per test); nothing is shared between instances.
type Simulator struct {
	byName map[string]*Sensor
	byAddr map[uint16]*Sensor
}

// New creates a simulator with every sensor at its default value.
// Data generation is off until StartGenerating; seed makes generated data repeatable.
func New(clk clock.Clock, seed int64) *Simulator {
	sim := &Simulator{
		byName: make(map[string]*Sensor, len(weatherSensors)),
		byAddr: make(map[uint16]*Sensor, len(weatherSensors)),
	}
	for i, spec := range weatherSensors {
		s := NewSensor(spec.desc, spec.initial, spec.frequency, clk, seed+int64(i))
		sim.byName[spec.desc.Name] = s
		sim.byAddr[spec.desc.Address] = s
	}
	return sim
}

// Sensor looks a sensor up by name.
func (sim *Simulator) Sensor(name string) (*Sensor, bool) {
	s, ok := sim.byName[name]
	return s, ok
}

// Sensors returns all sensors ordered by address.
func (sim *Simulator) Sensors() []*Sensor {
	out := make([]*Sensor, 0, len(sim.byAddr))
	for _, s := range sim.byAddr {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].desc.Address < out[j].desc.Address
	})
	return out
}

// Register returns the raw value at addr. ok is false for unmapped registers.
func (sim *Simulator) Register(addr uint16) (value uint16, ok bool) {
	s, ok := sim.byAddr[addr]
	if !ok {
		return 0, false
	}
	return s.Raw(), true
}

// StartGenerating starts every sensor's data generator.
func (sim *Simulator) StartGenerating() {
	for _, s := range sim.byAddr {
		s.StartGenerating()
	}
}

// StopGenerating stops every generator and waits for them.
func (sim *Simulator) StopGenerating() {
	for _, s := range sim.byAddr {
		s.StopGenerating()
	}
}
