// internal/config/normalize.go
package config

// Defaults applied by Normalize.
const (
	DefaultHost         = "localhost"
	DefaultPort         = 502
	DefaultTimeoutMs    = 1000
	DefaultPollInterval = 1.0 // seconds
	DefaultQueueSize    = 1024

	DefaultMQTTClientID    = "wms"
	DefaultMQTTTopicPrefix = "wms"
	DefaultMeasurement     = "weather"

	DefaultMirrorUnitID    uint8 = 1
	DefaultMirrorTimeoutMs       = 1000
)

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	s := &cfg.WeatherStation

	if s.Host == "" {
		s.Host = DefaultHost
	}
	if s.Port == 0 {
		s.Port = DefaultPort
	}
	if s.TimeoutMs == 0 {
		s.TimeoutMs = DefaultTimeoutMs
	}
	if s.PollInterval == 0 {
		s.PollInterval = DefaultPollInterval
	}
	if s.QueueSize == 0 {
		s.QueueSize = DefaultQueueSize
	}

	// station name doubles as a topic segment and a tag value
	if s.Name == "" {
		s.Name = s.Host
	}

	if m := cfg.MQTT; m != nil {
		if m.ClientID == "" {
			m.ClientID = DefaultMQTTClientID
		}
		if m.TopicPrefix == "" {
			m.TopicPrefix = DefaultMQTTTopicPrefix
		}
	}

	if i := cfg.InfluxDB; i != nil && i.Measurement == "" {
		i.Measurement = DefaultMeasurement
	}

	if m := cfg.Mirror; m != nil {
		if m.UnitID == nil {
			id := DefaultMirrorUnitID
			m.UnitID = &id
		}
		if m.TimeoutMs == 0 {
			m.TimeoutMs = DefaultMirrorTimeoutMs
		}
	}
}
