// internal/config/config.go
package config

import (
	"net"
	"sort"
	"strconv"
	"time"

	"github.com/tamzrod/weather-station/internal/sensor"
)

type Config struct {
	WeatherStation StationConfig   `yaml:"weather_station"`
	MQTT           *MQTTConfig     `yaml:"mqtt"`
	InfluxDB       *InfluxDBConfig `yaml:"influxdb"`
	Mirror         *MirrorConfig   `yaml:"mirror"`
}

// ---- STATION ----

type StationConfig struct {
	Name      string `yaml:"name"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	SlaveID   *uint8 `yaml:"slave_id"`
	TimeoutMs int    `yaml:"timeout_ms"`

	// seconds
	PollInterval float64 `yaml:"poll_interval"`
	QueueSize    int     `yaml:"queue_size"`

	Sensors map[string]SensorConfig `yaml:"sensors"`
}

// ---- SENSOR ----

type SensorConfig struct {
	Address     uint16  `yaml:"address"`
	Description string  `yaml:"description"`
	Units       string  `yaml:"units"`
	ScaleLow    float64 `yaml:"scale_low"`
	ScaleHigh   float64 `yaml:"scale_high"`
}

// ---- SINKS (optional) ----

type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos"`
}

type InfluxDBConfig struct {
	URL         string `yaml:"url"`
	Token       string `yaml:"token"`
	Org         string `yaml:"org"`
	Bucket      string `yaml:"bucket"`
	Measurement string `yaml:"measurement"`
}

// MirrorConfig copies raw sensor registers (and optionally the station
// status block) into the holding registers of another Modbus server.
type MirrorConfig struct {
	Endpoint  string `yaml:"endpoint"`
	UnitID    *uint8 `yaml:"unit_id"`
	Offset    uint16 `yaml:"offset"`
	TimeoutMs int    `yaml:"timeout_ms"`

	// StatusSlot enables the status block at StatusSlot*20. nil: disabled.
	StatusSlot *uint16 `yaml:"status_slot"`
}

// ---- derived values ----

// Endpoint is host:port of the Modbus device.
func (s StationConfig) Endpoint() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// Interval is the poll interval as a duration.
func (s StationConfig) Interval() time.Duration {
	return time.Duration(s.PollInterval * float64(time.Second))
}

// Timeout is the per-request Modbus timeout.
func (s StationConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutMs) * time.Millisecond
}

// Descriptors returns the configured sensors ordered by address.
func (s StationConfig) Descriptors() []sensor.Descriptor {
	out := make([]sensor.Descriptor, 0, len(s.Sensors))
	for name, sc := range s.Sensors {
		out = append(out, sensor.Descriptor{
			Address:     sc.Address,
			Name:        name,
			Description: sc.Description,
			Unit:        sc.Units,
			ScaleLow:    sc.ScaleLow,
			ScaleHigh:   sc.ScaleHigh,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Address < out[j].Address
	})
	return out
}
