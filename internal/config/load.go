// internal/config/load.go
package config

import (
	"bytes"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Environment variables that override secrets from the file.
const (
	EnvInfluxDBToken = "WMS_INFLUXDB_TOKEN"
	EnvMQTTPassword  = "WMS_MQTT_PASSWORD"
)

// Load reads a YAML config file. Unknown keys are rejected.
// The result is neither validated nor normalized.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "config: read")
	}
	return Parse(raw)
}

// Parse decodes YAML config bytes.
func Parse(raw []byte) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, errors.Wrap(err, "config: decode")
	}
	return &cfg, nil
}

// LoadEnv loads .env style files into the process environment.
// Missing files are ignored; variables already set win.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return errors.Wrapf(err, "config: env file %s", f)
		}
	}
	return nil
}

// ApplyEnv overrides secrets from the environment.
// Sink sections absent from the file are not created.
func ApplyEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	if v, ok := os.LookupEnv(EnvInfluxDBToken); ok && cfg.InfluxDB != nil {
		cfg.InfluxDB.Token = v
	}
	if v, ok := os.LookupEnv(EnvMQTTPassword); ok && cfg.MQTT != nil {
		cfg.MQTT.Password = v
	}
}
