// internal/sensor/sensor.go
package sensor

import (
	"math"

	"github.com/pkg/errors"
)

// FullScale is the largest value the ADC produces, in raw counts.
const FullScale = math.MaxUint16

// Descriptor describes one sensor exposed as a single input register.
// It is a plain value: copy it freely, never mutate a shared one.
type Descriptor struct {
	Address     uint16
	Name        string
	Description string
	Unit        string
	ScaleLow    float64
	ScaleHigh   float64
}

// Validate checks the descriptor's own invariants.
// Cross-sensor checks (unique names/addresses) belong to the owner of the list.
func (d Descriptor) Validate() error {
	if d.Name == "" {
		return errors.Errorf("sensor at address %d: name required", d.Address)
	}
	if !(d.ScaleHigh > d.ScaleLow) {
		return errors.Errorf(
			"sensor %q: scale_high (%g) must be greater than scale_low (%g)",
			d.Name, d.ScaleHigh, d.ScaleLow,
		)
	}
	return nil
}

// Range is the span of the engineering scale.
func (d Descriptor) Range() float64 {
	return d.ScaleHigh - d.ScaleLow
}

// ToEngineering converts raw ADC counts into engineering units.
// raw=0 maps to ScaleLow, raw=FullScale maps to ScaleHigh.
func (d Descriptor) ToEngineering(raw uint16) float64 {
	return float64(raw)/FullScale*d.Range() + d.ScaleLow
}

// ToRaw converts an engineering value back into raw ADC counts.
// Values outside the scale are clamped.
func (d Descriptor) ToRaw(value float64) uint16 {
	raw := math.Floor((value - d.ScaleLow) / d.Range() * FullScale)
	switch {
	case math.IsNaN(raw), raw <= 0:
		return 0
	case raw >= FullScale:
		return FullScale
	}
	return uint16(raw)
}
