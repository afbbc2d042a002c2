// internal/simulator/sensor.go
package simulator

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/tamzrod/weather-station/internal/sensor"
)

// signal step along one sine period, in radians
const phaseStep = 0.001

// Sensor is one simulated ADC channel.
// The raw value is the source of truth; engineering values are derived from it.
type Sensor struct {
	desc      sensor.Descriptor
	frequency float64 // updates per second while generating

	mu  sync.RWMutex
	raw uint16

	clock clock.Clock
	rng   *rand.Rand

	genMu sync.Mutex
	stop  chan struct{}
	done  chan struct{}
}

// NewSensor creates a sensor holding initial raw counts.
func NewSensor(desc sensor.Descriptor, initial uint16, frequency float64, clk clock.Clock, seed int64) *Sensor {
	if clk == nil {
		clk = clock.New()
	}
	return &Sensor{
		desc:      desc,
		frequency: frequency,
		raw:       initial,
		clock:     clk,
		rng:       rand.New(rand.NewSource(seed)),
	}
}

// Descriptor returns the sensor's register address and scale.
func (s *Sensor) Descriptor() sensor.Descriptor {
	return s.desc
}

// Raw returns the current value in ADC counts.
func (s *Sensor) Raw() uint16 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.raw
}

// SetRaw sets the current value in ADC counts.
func (s *Sensor) SetRaw(raw uint16) {
	s.mu.Lock()
	s.raw = raw
	s.mu.Unlock()
}

// Engineering returns the current value in engineering units.
func (s *Sensor) Engineering() float64 {
	return s.desc.ToEngineering(s.Raw())
}

// SetEngineering sets the current value from engineering units.
func (s *Sensor) SetEngineering(v float64) {
	s.SetRaw(s.desc.ToRaw(v))
}

// Generating reports whether the data generator is running.
func (s *Sensor) Generating() bool {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.stop != nil
}

// StartGenerating starts a noisy sine wave on the sensor. No-op when already running.
func (s *Sensor) StartGenerating() {
	s.genMu.Lock()
	defer s.genMu.Unlock()

	if s.stop != nil || s.frequency <= 0 {
		return
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go s.generate(s.newSignal(), s.stop, s.done)
}

// StopGenerating stops the generator and waits for it. The last value is kept.
// genMu stays held until the generator has exited, so a concurrent
// StartGenerating never shares s.rng with it.
func (s *Sensor) StopGenerating() {
	s.genMu.Lock()
	defer s.genMu.Unlock()

	if s.stop == nil {
		return
	}
	close(s.stop)
	<-s.done
	s.stop, s.done = nil, nil
}

// signal is a sine wave between two random levels with gaussian noise on top.
type signal struct {
	base, amplitude, noise float64
	rng                    *rand.Rand
}

func (s *Sensor) newSignal() signal {
	// leave headroom for noise at both ends
	start := float64(s.rng.Intn(sensor.FullScale/2 + 1))
	endLow := start + 500
	endHigh := float64(sensor.FullScale - 10000)
	end := endLow + s.rng.Float64()*(endHigh-endLow)

	span := end - start
	return signal{
		base:      start + span/2,
		amplitude: span / 2,
		noise:     float64(1+s.rng.Intn(10)) / 100 * span,
		rng:       s.rng,
	}
}

func (sig signal) at(phase float64) uint16 {
	v := sig.base + math.Sin(phase)*sig.amplitude + sig.rng.NormFloat64()*sig.noise
	switch {
	case v <= 0:
		return 0
	case v >= sensor.FullScale:
		return sensor.FullScale
	}
	return uint16(math.Floor(v))
}

func (s *Sensor) generate(sig signal, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	period := time.Duration(float64(time.Second) / s.frequency)
	ticker := s.clock.Ticker(period)
	defer ticker.Stop()

	phase := 0.0
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.SetRaw(sig.at(phase))
			phase += phaseStep
			if phase >= 2*math.Pi {
				phase = 0
			}
		}
	}
}
