package mqtt

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tamzrod/weather-station/internal/poller"
)

// token is a completed paho token.
type token struct {
	err      error
	timedOut bool
}

func (t *token) Wait() bool                     { return !t.timedOut }
func (t *token) WaitTimeout(time.Duration) bool { return !t.timedOut }
func (t *token) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *token) Error() error { return t.err }

var ts = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testConfig() Config {
	return Config{TopicPrefix: "wms", Station: "station1", QoS: 1}
}

func TestTopics(t *testing.T) {
	s := New(nil, testConfig(), nil)

	if got := s.StateTopic("humidity"); got != "wms/station1/humidity/state" {
		t.Fatalf("unexpected state topic %q", got)
	}
	if got := s.ErrorTopic(); got != "wms/station1/error" {
		t.Fatalf("unexpected error topic %q", got)
	}
}

func TestOnData_OneMessagePerSensor(t *testing.T) {
	ctrl := gomock.NewController(t)
	pub := NewMockPublisher(ctrl)

	var topics []string
	var states []SensorState
	pub.EXPECT().Publish(gomock.Any(), byte(1), false, gomock.Any()).
		DoAndReturn(func(topic string, _ byte, _ bool, payload interface{}) *token {
			var st SensorState
			if err := json.Unmarshal(payload.([]byte), &st); err != nil {
				t.Errorf("bad payload: %v", err)
			}
			topics = append(topics, topic)
			states = append(states, st)
			return &token{}
		}).
		Times(2)

	s := New(pub, testConfig(), nil)
	s.OnData(poller.Data{
		"wind_speed":  {Value: 21.4, Unit: "m/s", Timestamp: ts},
		"temperature": {Value: 25.8, Unit: "Deg C", Timestamp: ts},
	})

	if topics[0] != "wms/station1/temperature/state" || topics[1] != "wms/station1/wind_speed/state" {
		t.Fatalf("unexpected topics %v", topics)
	}
	if states[0] != (SensorState{Ts: ts.UnixMilli(), Value: 25.8, Unit: "Deg C"}) {
		t.Fatalf("unexpected payload %+v", states[0])
	}
}

func TestOnFailure_PublishesErrorEvent(t *testing.T) {
	ctrl := gomock.NewController(t)
	pub := NewMockPublisher(ctrl)

	var ev ErrorEvent
	pub.EXPECT().Publish("wms/station1/error", byte(1), false, gomock.Any()).
		DoAndReturn(func(_ string, _ byte, _ bool, payload interface{}) *token {
			if err := json.Unmarshal(payload.([]byte), &ev); err != nil {
				t.Errorf("bad payload: %v", err)
			}
			return &token{}
		})

	s := New(pub, testConfig(), nil)
	s.OnFailure(poller.Failure{Sensors: []string{"humidity"}, Message: "read timeout", Timestamp: ts})

	if len(ev.Sensors) != 1 || ev.Sensors[0] != "humidity" || ev.Message != "read timeout" {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestPublish_ErrorsAreLogged(t *testing.T) {
	ctrl := gomock.NewController(t)
	pub := NewMockPublisher(ctrl)

	gomock.InOrder(
		pub.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(&token{err: errors.New("not connected")}),
		pub.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(&token{timedOut: true}),
	)

	core, logs := observer.New(zapcore.WarnLevel)
	s := New(pub, testConfig(), zap.New(core))

	s.OnFailure(poller.Failure{Sensors: []string{"humidity"}, Message: "x", Timestamp: ts})
	s.OnData(poller.Data{"rainfall": {Value: 22, Unit: "mm", Timestamp: ts}})

	if n := logs.FilterMessage("publish failed").Len(); n != 1 {
		t.Fatalf("expected 1 publish failure, got %d", n)
	}
	if n := logs.FilterMessage("publish timed out").Len(); n != 1 {
		t.Fatalf("expected 1 publish timeout, got %d", n)
	}
}

func TestDial_RequiresBroker(t *testing.T) {
	if _, err := Dial(Config{}, nil); err == nil {
		t.Fatalf("expected error for empty broker")
	}
}
