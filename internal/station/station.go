// internal/station/station.go
package station

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/tamzrod/weather-station/internal/poller"
	"github.com/tamzrod/weather-station/internal/publisher"
	"github.com/tamzrod/weather-station/internal/sensor"
	"github.com/tamzrod/weather-station/internal/status"
)

//go:generate mockgen -destination=mock_transport_test.go -package=station . Transport

var (
	// ErrUnknownSensor is returned when a poll configuration names a sensor the station does not have.
	ErrUnknownSensor = errors.New("station: unknown sensor")

	// ErrClosed is returned by operations on a closed station.
	ErrClosed = errors.New("station: closed")
)

// Defaults for zero Config fields.
const (
	DefaultPollInterval = time.Second
	DefaultQueueSize    = 1024

	// poll intervals without data before an OK station reports stale
	staleIntervals = 5
)

// Transport is the Modbus connection the station polls through.
type Transport interface {
	poller.Client
	Connect() error
	Close() error
	Connected() bool
}

// Config describes one weather station.
type Config struct {
	Name         string
	Sensors      []sensor.Descriptor
	PollInterval time.Duration
	QueueSize    int

	// Clock drives polling and status timing. Defaults to the wall clock.
	Clock clock.Clock
}

// WeatherStation polls a station's sensors and publishes the results to subscribers.
// It owns the poller, the dispatcher and the queue between them.
type WeatherStation struct {
	cfg       Config
	byName    map[string]sensor.Descriptor
	transport Transport
	logger    *zap.Logger

	poller     *poller.Poller
	dispatcher *publisher.Dispatcher
	tracker    *status.Tracker

	// serializes connect / disconnect / start / stop / close
	mu     sync.Mutex
	closed bool

	cancel       context.CancelFunc
	dispatchDone chan struct{}
	trackerDone  chan struct{}
}

// New validates the sensors, polls all of them by default and starts
// dispatching. Polling itself starts with StartPolling.
func New(cfg Config, transport Transport, logger *zap.Logger) (*WeatherStation, error) {
	if transport == nil {
		return nil, errors.New("station: transport required")
	}
	if cfg.PollInterval < 0 {
		return nil, errors.Errorf("station: poll interval must be > 0, got %s", cfg.PollInterval)
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Name != "" {
		logger = logger.With(zap.String("station", cfg.Name))
	}

	byName, err := indexSensors(cfg.Sensors)
	if err != nil {
		return nil, err
	}
	cfg.Sensors = append([]sensor.Descriptor(nil), cfg.Sensors...)

	queue := make(chan poller.Item, cfg.QueueSize)

	p, err := poller.New(poller.Config{
		Interval: cfg.PollInterval,
		Clock:    cfg.Clock,
	}, transport, queue, logger)
	if err != nil {
		return nil, errors.Wrap(err, "station")
	}
	p.UpdatePlan(poller.BuildPlan(cfg.Sensors))

	tracker := status.NewTracker(staleIntervals*cfg.PollInterval, cfg.Clock, logger)
	tracker.Disable()

	d := publisher.New(queue, logger)
	d.Observe(tracker.Observe)

	ctx, cancel := context.WithCancel(context.Background())
	ws := &WeatherStation{
		cfg:        cfg,
		byName:     byName,
		transport:  transport,
		logger:     logger.Named("station"),
		poller:     p,
		dispatcher: d,
		tracker:    tracker,

		cancel:       cancel,
		dispatchDone: make(chan struct{}),
		trackerDone:  make(chan struct{}),
	}

	go func() {
		defer close(ws.dispatchDone)
		d.Run(ctx)
	}()
	go func() {
		defer close(ws.trackerDone)
		tracker.Run(ctx)
	}()

	return ws, nil
}

func indexSensors(sensors []sensor.Descriptor) (map[string]sensor.Descriptor, error) {
	byName := make(map[string]sensor.Descriptor, len(sensors))
	byAddr := make(map[uint16]string, len(sensors))

	for _, s := range sensors {
		if err := s.Validate(); err != nil {
			return nil, errors.Wrap(err, "station")
		}
		if _, dup := byName[s.Name]; dup {
			return nil, errors.Errorf("station: duplicate sensor name %q", s.Name)
		}
		if prev, dup := byAddr[s.Address]; dup {
			return nil, errors.Errorf("station: sensors %q and %q share address %d", prev, s.Name, s.Address)
		}
		byName[s.Name] = s
		byAddr[s.Address] = s.Name
	}
	return byName, nil
}

// ---- configuration ----

// ConfigurePollSensors restricts polling to the named sensors.
// An unknown name rejects the whole update and the previous selection stays in effect.
func (ws *WeatherStation) ConfigurePollSensors(names []string) error {
	selected := make([]sensor.Descriptor, 0, len(names))
	seen := make(map[string]bool, len(names))

	for _, name := range names {
		s, ok := ws.byName[name]
		if !ok {
			ws.logger.Error("cannot configure polling: unknown sensor", zap.String("sensor", name))
			return errors.Wrapf(ErrUnknownSensor, "configure poll sensors: %q", name)
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		selected = append(selected, s)
	}

	ws.poller.UpdatePlan(poller.BuildPlan(selected))
	ws.logger.Info("poll sensors configured", zap.Strings("sensors", names))
	return nil
}

// PolledSensors lists the sensors the next cycle reads, in address order.
func (ws *WeatherStation) PolledSensors() []string {
	var names []string
	for _, req := range ws.poller.Plan() {
		names = append(names, req.Names()...)
	}
	return names
}

// Sensors returns every sensor the station knows about.
func (ws *WeatherStation) Sensors() []sensor.Descriptor {
	return append([]sensor.Descriptor(nil), ws.cfg.Sensors...)
}

// Name is the station name from the configuration.
func (ws *WeatherStation) Name() string {
	return ws.cfg.Name
}

// PollInterval is the wait between two poll cycles.
func (ws *WeatherStation) PollInterval() time.Duration {
	return ws.poller.Interval()
}

// ---- connection ----

// Connect opens the transport.
func (ws *WeatherStation) Connect() error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.connectLocked()
}

func (ws *WeatherStation) connectLocked() error {
	if ws.closed {
		return ErrClosed
	}
	if ws.transport.Connected() {
		return nil
	}
	if err := ws.transport.Connect(); err != nil {
		ws.logger.Error("connect failed", zap.Error(err))
		return errors.Wrap(err, "station: connect")
	}
	return nil
}

// Disconnect stops polling, then closes the transport.
// On a closed station it does nothing.
func (ws *WeatherStation) Disconnect() error {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if ws.closed {
		return nil
	}
	ws.stopLocked()
	if err := ws.transport.Close(); err != nil {
		return errors.Wrap(err, "station: disconnect")
	}
	return nil
}

// Connected reports whether the transport is open.
func (ws *WeatherStation) Connected() bool {
	return ws.transport.Connected()
}

// ---- polling ----

// StartPolling connects if needed and starts the poll loop.
// It returns ErrClosed once the station is closed.
func (ws *WeatherStation) StartPolling() error {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if err := ws.connectLocked(); err != nil {
		return err
	}
	ws.tracker.Enable()
	ws.poller.Start()
	return nil
}

// StopPolling stops the poll loop after the request in flight.
func (ws *WeatherStation) StopPolling() {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.stopLocked()
}

func (ws *WeatherStation) stopLocked() {
	ws.poller.Stop()
	ws.tracker.Disable()
}

// Polling reports whether the poll loop is reading.
func (ws *WeatherStation) Polling() bool {
	return ws.poller.Running()
}

// ---- subscriptions ----

// SubscribeData registers callbacks for poll results and returns the subscription id.
// errFn may be nil.
func (ws *WeatherStation) SubscribeData(data publisher.DataFunc, errFn publisher.ErrorFunc) uint64 {
	return ws.dispatcher.Subscribe(data, errFn)
}

// UnsubscribeData removes a subscription.
func (ws *WeatherStation) UnsubscribeData(id uint64) {
	ws.dispatcher.Unsubscribe(id)
}

// Status is the station's current health.
func (ws *WeatherStation) Status() status.Snapshot {
	return ws.tracker.Snapshot()
}

// ---- lifecycle ----

// Close stops polling and dispatching and closes the transport.
// The station cannot be restarted; later calls return nil.
//
// Close may be called from a subscriber callback. Close waits for the
// dispatcher to exit unless a callback is running at that moment (which is
// always the case when called from one): then dispatching is cancelled and
// the running callback is not waited for.
func (ws *WeatherStation) Close() error {
	ws.mu.Lock()
	if ws.closed {
		ws.mu.Unlock()
		return nil
	}
	ws.closed = true
	ws.stopLocked()
	ws.mu.Unlock()

	// locks released: callbacks may still call into the station meanwhile
	ws.poller.Close()
	ws.cancel()
	<-ws.trackerDone
	if !ws.dispatcher.Dispatching() {
		<-ws.dispatchDone
	}

	ws.mu.Lock()
	err := ws.transport.Close()
	ws.mu.Unlock()

	ws.logger.Info("closed")
	return err
}
