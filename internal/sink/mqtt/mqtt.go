// Package mqtt publishes poll results to an MQTT broker.
//
// Topics:
//
//	<prefix>/<station>/<sensor>/state   one message per sensor value
//	<prefix>/<station>/error            one message per failed read
package mqtt

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/tamzrod/weather-station/internal/poller"
)

//go:generate mockgen -destination=mock_publisher_test.go -package=mqtt . Publisher

// DefaultPublishTimeout bounds the wait for one broker acknowledgement.
const DefaultPublishTimeout = 5 * time.Second

// Publisher is the part of the paho client the sink uses.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

type Config struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	QoS         byte
	Station     string

	PublishTimeout time.Duration
}

// SensorState is the payload of a state topic.
type SensorState struct {
	Ts    int64   `json:"ts"` // unix milliseconds
	Value float64 `json:"value"`
	Unit  string  `json:"unit,omitempty"`
}

// ErrorEvent is the payload of the error topic.
type ErrorEvent struct {
	Ts      int64    `json:"ts"`
	Sensors []string `json:"sensors"`
	Message string   `json:"message"`
}

// Sink publishes every data value and failure it is handed.
type Sink struct {
	pub    Publisher
	cfg    Config
	logger *zap.Logger

	client paho.Client // nil when built with New
}

// New wraps an existing publisher.
func New(pub Publisher, cfg Config, logger *zap.Logger) *Sink {
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = DefaultPublishTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{
		pub:    pub,
		cfg:    cfg,
		logger: logger.Named("mqtt"),
	}
}

// Dial connects to the broker and returns a sink owning the connection.
func Dial(cfg Config, logger *zap.Logger) (*Sink, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt: broker required")
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetKeepAlive(30 * time.Second).
		SetConnectTimeout(5 * time.Second).
		SetPingTimeout(3 * time.Second).
		SetAutoReconnect(true).
		SetOrderMatters(false)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := paho.NewClient(opts)
	t := client.Connect()
	if ok := t.WaitTimeout(10 * time.Second); !ok {
		return nil, errors.Errorf("mqtt: connect %s: timed out", cfg.Broker)
	}
	if err := t.Error(); err != nil {
		return nil, errors.Wrapf(err, "mqtt: connect %s", cfg.Broker)
	}

	s := New(client, cfg, logger)
	s.client = client
	s.logger.Info("connected", zap.String("broker", cfg.Broker))
	return s, nil
}

// StateTopic is where values of one sensor go.
func (s *Sink) StateTopic(sensor string) string {
	return s.topic(sensor, "state")
}

// ErrorTopic is where failed reads go.
func (s *Sink) ErrorTopic() string {
	return s.topic("error")
}

func (s *Sink) topic(parts ...string) string {
	all := append([]string{s.cfg.TopicPrefix, s.cfg.Station}, parts...)
	return strings.Join(all, "/")
}

// OnData publishes one message per sensor, in name order.
func (s *Sink) OnData(data poller.Data) {
	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		v := data[name]
		s.publish(s.StateTopic(name), SensorState{
			Ts:    v.Timestamp.UnixMilli(),
			Value: v.Value,
			Unit:  v.Unit,
		})
	}
}

// OnFailure publishes one error event.
func (s *Sink) OnFailure(f poller.Failure) {
	s.publish(s.ErrorTopic(), ErrorEvent{
		Ts:      f.Timestamp.UnixMilli(),
		Sensors: f.Sensors,
		Message: f.Message,
	})
}

func (s *Sink) publish(topic string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("marshal payload", zap.String("topic", topic), zap.Error(err))
		return
	}

	t := s.pub.Publish(topic, s.cfg.QoS, false, data)
	if !t.WaitTimeout(s.cfg.PublishTimeout) {
		s.logger.Warn("publish timed out", zap.String("topic", topic))
		return
	}
	if err := t.Error(); err != nil {
		s.logger.Error("publish failed", zap.String("topic", topic), zap.Error(err))
	}
}

// Close disconnects the client created by Dial.
func (s *Sink) Close() error {
	if s.client != nil && s.client.IsConnectionOpen() {
		s.client.Disconnect(250)
	}
	return nil
}
