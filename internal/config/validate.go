// internal/config/validate.go
package config

import (
	"math"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
// Zero values mean "use the default" and are accepted.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config: nil config")
	}

	if err := validateStation(&cfg.WeatherStation); err != nil {
		return err
	}

	if cfg.MQTT != nil {
		if err := validateMQTT(cfg.MQTT); err != nil {
			return err
		}
	}
	if cfg.InfluxDB != nil {
		if err := validateInfluxDB(cfg.InfluxDB); err != nil {
			return err
		}
	}
	if cfg.Mirror != nil {
		if err := validateMirror(cfg.Mirror, &cfg.WeatherStation); err != nil {
			return err
		}
	}

	return nil
}

// maxPollSeconds is the longest poll interval a time.Duration can hold.
const maxPollSeconds = float64(math.MaxInt64) / float64(time.Second)

func validateStation(s *StationConfig) error {
	if s.SlaveID == nil {
		return errors.New("weather_station: slave_id is required")
	}
	if s.Port < 0 || s.Port > math.MaxUint16 {
		return errors.Errorf("weather_station: port %d out of range", s.Port)
	}
	if s.TimeoutMs < 0 {
		return errors.Errorf("weather_station: timeout_ms must be >= 0, got %d", s.TimeoutMs)
	}
	if s.PollInterval < 0 || math.IsNaN(s.PollInterval) || math.IsInf(s.PollInterval, 0) {
		return errors.Errorf("weather_station: poll_interval must be > 0, got %v", s.PollInterval)
	}
	// zero means default; anything else must survive the conversion to a duration
	if s.PollInterval != 0 && (s.PollInterval > maxPollSeconds || s.Interval() <= 0) {
		return errors.Errorf("weather_station: poll_interval %v is not a usable duration", s.PollInterval)
	}
	if s.QueueSize < 0 {
		return errors.Errorf("weather_station: queue_size must be >= 0, got %d", s.QueueSize)
	}

	// ------------------------------------------------------------
	// SENSOR TABLE
	// ------------------------------------------------------------

	if len(s.Sensors) == 0 {
		return errors.New("weather_station: at least one sensor is required")
	}

	// key = register address
	owner := make(map[uint16]string, len(s.Sensors))

	// iterate in address order so errors are stable
	for _, d := range s.Descriptors() {
		if strings.TrimSpace(d.Name) == "" {
			return errors.Errorf("sensor at address %d: name must not be empty", d.Address)
		}
		if d.Unit == "" {
			return errors.Errorf("sensor %q: units are required", d.Name)
		}
		if err := d.Validate(); err != nil {
			return err
		}

		if prev, exists := owner[d.Address]; exists {
			return errors.Errorf(
				"address collision: address=%d used by sensors %q and %q",
				d.Address,
				prev,
				d.Name,
			)
		}
		owner[d.Address] = d.Name
	}

	return nil
}

func validateMQTT(m *MQTTConfig) error {
	if m.Broker == "" {
		return errors.New("mqtt: broker is required")
	}
	if m.QoS > 2 {
		return errors.Errorf("mqtt: qos must be 0, 1 or 2, got %d", m.QoS)
	}
	return nil
}

func validateInfluxDB(c *InfluxDBConfig) error {
	if c.URL == "" {
		return errors.New("influxdb: url is required")
	}
	if c.Org == "" {
		return errors.New("influxdb: org is required")
	}
	if c.Bucket == "" {
		return errors.New("influxdb: bucket is required")
	}
	return nil
}

// mirrorStatusSlots is the size of the mirrored status block, in registers.
const mirrorStatusSlots = 20

func validateMirror(m *MirrorConfig, s *StationConfig) error {
	if m.Endpoint == "" {
		return errors.New("mirror: endpoint is required")
	}
	if m.TimeoutMs < 0 {
		return errors.Errorf("mirror: timeout_ms must be >= 0, got %d", m.TimeoutMs)
	}

	// ------------------------------------------------------------
	// DESTINATION RANGE
	// ------------------------------------------------------------

	for _, d := range s.Descriptors() {
		if uint32(d.Address)+uint32(m.Offset) > math.MaxUint16 {
			return errors.Errorf(
				"mirror: sensor %q address %d + offset %d exceeds 65535",
				d.Name, d.Address, m.Offset,
			)
		}
	}

	if m.StatusSlot == nil {
		return nil
	}

	start := uint32(*m.StatusSlot) * mirrorStatusSlots
	end := start + mirrorStatusSlots // exclusive
	if end-1 > math.MaxUint16 {
		return errors.Errorf("mirror: status_slot %d out of range", *m.StatusSlot)
	}

	for _, d := range s.Descriptors() {
		dst := uint32(d.Address) + uint32(m.Offset)
		if dst >= start && dst < end {
			return errors.Errorf(
				"mirror: status block %d-%d overlaps sensor %q at %d",
				start, end-1, d.Name, dst,
			)
		}
	}

	return nil
}
