// internal/poller/poller.go
package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Client abstracts the one Modbus operation the poller needs.
// The poller depends on geometry only.
type Client interface {
	ReadRegisters(addr, qty uint16) ([]uint16, error)
}

// Config is the minimal runtime config the poller needs.
type Config struct {
	Interval time.Duration

	// Clock drives timestamps and the inter-cycle wait. Defaults to the wall clock.
	Clock clock.Clock
}

// Poller reads the current plan on a fixed interval and emits one Item per request.
type Poller struct {
	cfg    Config
	client Client
	out    chan<- Item
	logger *zap.Logger

	plan    atomic.Pointer[Plan]
	running atomic.Bool
	cycles  atomic.Uint64

	// guards closed against Start
	mu     sync.Mutex
	closed bool

	startOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
}

// New creates a stopped poller with an empty plan.
func New(cfg Config, client Client, out chan<- Item, logger *zap.Logger) (*Poller, error) {
	if cfg.Interval <= 0 {
		return nil, errors.New("poller: interval must be > 0")
	}
	if client == nil {
		return nil, errors.New("poller: client required")
	}
	if out == nil {
		return nil, errors.New("poller: output queue required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		cfg:    cfg,
		client: client,
		out:    out,
		logger: logger.Named("poller"),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}, nil
}

// Interval is the wait between two cycles.
func (p *Poller) Interval() time.Duration {
	return p.cfg.Interval
}

// Plan returns the plan the next cycle will use.
func (p *Poller) Plan() Plan {
	if pl := p.plan.Load(); pl != nil {
		return *pl
	}
	return nil
}

// UpdatePlan swaps the plan used by the next cycle.
// Safe to call while running; a cycle in progress keeps the plan it started with.
func (p *Poller) UpdatePlan(plan Plan) {
	p.plan.Store(&plan)
	p.logger.Debug("plan updated",
		zap.Int("requests", len(plan)),
		zap.Int("sensors", plan.Sensors()),
	)
}

// Running reports whether cycles currently perform reads.
func (p *Poller) Running() bool {
	return p.running.Load()
}

// Start enables polling. The loop goroutine is spawned on the first call only.
// After Close, Start does nothing.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		p.logger.Warn("start ignored: poller closed")
		return
	}
	if !p.running.Swap(true) {
		p.logger.Info("polling started", zap.Duration("interval", p.cfg.Interval))
	}
	p.startOnce.Do(func() {
		go p.run()
	})
}

// Stop disables polling. A request already on the wire completes; no new one begins.
func (p *Poller) Stop() {
	if p.running.Swap(false) {
		p.logger.Info("polling stopped")
	}
}

// Close stops the loop for good and waits for it to exit.
func (p *Poller) Close() {
	p.mu.Lock()
	p.closed = true
	p.running.Store(false)
	p.cancel()

	// Never started: nothing to wait for.
	p.startOnce.Do(func() { close(p.done) })
	p.mu.Unlock()

	<-p.done
}

// PollOnce performs exactly one cycle over the current plan and returns its items.
// Failures never abort the cycle: each request yields either Data or Failure.
func (p *Poller) PollOnce() []Item {
	plan := p.Plan()
	cycle := p.cycles.Add(1)

	items := make([]Item, 0, len(plan))
	for i, req := range plan {
		item := p.read(req)
		item.Cycle, item.Last = cycle, i == len(plan)-1
		items = append(items, item)
	}
	return items
}

func (p *Poller) read(req ReadRequest) Item {
	regs, err := p.client.ReadRegisters(req.Start(), req.Quantity())
	now := p.cfg.Clock.Now().UTC()

	if err == nil && len(regs) != len(req) {
		err = errors.Errorf("poller: got %d registers, want %d", len(regs), len(req))
	}
	if err != nil {
		p.logger.Error("error reading input registers",
			zap.Uint16("address", req.Start()),
			zap.Uint16("count", req.Quantity()),
			zap.Error(err),
		)
		return Item{Failure: &Failure{
			Sensors:   req.Names(),
			Message:   err.Error(),
			Timestamp: now,
			Err:       err,
		}}
	}

	p.logger.Debug("read input registers",
		zap.Uint16("address", req.Start()),
		zap.Uint16("count", req.Quantity()),
		zap.Uint16s("registers", regs),
	)

	readings := make([]Reading, len(req))
	for i, s := range req {
		readings[i] = Reading{Sensor: s.Name, Raw: regs[i], Timestamp: now}
	}
	return Item{Data: convert(req, readings)}
}

// convert maps readings (in request order) through their sensors' scales.
func convert(req ReadRequest, readings []Reading) Data {
	data := make(Data, len(readings))
	for i, r := range readings {
		s := req[i]
		data[r.Sensor] = Value{
			Value:     s.ToEngineering(r.Raw),
			Unit:      s.Unit,
			Timestamp: r.Timestamp,
			Raw:       r.Raw,
		}
	}
	return data
}
