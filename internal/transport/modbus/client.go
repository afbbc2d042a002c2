// internal/transport/modbus/client.go
package modbus

import (
	"sync"
	"time"

	"github.com/goburrow/modbus"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrNotConnected is returned by every read issued while disconnected.
var ErrNotConnected = errors.New("modbus client: not connected")

// DefaultTimeout bounds a single request when Config.Timeout is zero.
const DefaultTimeout = time.Second

// Config is minimal transport config.
type Config struct {
	Endpoint string // host:port
	SlaveID  uint8
	Timeout  time.Duration
}

// Client is a single Modbus TCP connection to the weather station.
// It serializes requests and reads input registers (FC 4) only.
type Client struct {
	cfg    Config
	logger *zap.Logger

	mu        sync.Mutex
	handler   *modbus.TCPClientHandler
	client    modbus.Client
	connected bool
}

// New creates a disconnected client.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("modbus client: endpoint required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	h := modbus.NewTCPClientHandler(cfg.Endpoint)
	h.Timeout = cfg.Timeout
	h.SlaveId = cfg.SlaveID
	if logger.Core().Enabled(zap.DebugLevel) {
		h.Logger = zap.NewStdLog(logger.Named("wire"))
	}

	return &Client{
		cfg:     cfg,
		logger:  logger.Named("modbus"),
		handler: h,
		client:  modbus.NewClient(h),
	}, nil
}

// Endpoint is the host:port this client talks to.
func (c *Client) Endpoint() string {
	return c.cfg.Endpoint
}

// Connect opens the TCP connection. Connecting twice is a no-op.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}
	if err := c.handler.Connect(); err != nil {
		return errors.Wrapf(err, "modbus client: connect %s", c.cfg.Endpoint)
	}

	c.connected = true
	c.logger.Info("connected",
		zap.String("endpoint", c.cfg.Endpoint),
		zap.Uint8("slave_id", c.cfg.SlaveID),
	)
	return nil
}

// Close closes the TCP connection. Later reads fail with ErrNotConnected.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil
	}
	c.connected = false
	c.logger.Info("disconnected", zap.String("endpoint", c.cfg.Endpoint))
	return c.handler.Close()
}

// Connected reports whether Connect succeeded and Close has not been called since.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// ReadRegisters reads qty input registers starting at addr.
// Device exception responses come back as *modbus.ModbusError.
func (c *Client) ReadRegisters(addr, qty uint16) ([]uint16, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil, ErrNotConnected
	}
	if qty == 0 {
		return nil, nil
	}

	raw, err := c.client.ReadInputRegisters(addr, qty)
	if err != nil {
		return nil, err
	}
	if len(raw) != 2*int(qty) {
		return nil, errors.Errorf("modbus: read-registers payload is %d bytes, want %d", len(raw), 2*int(qty))
	}
	return unpackRegisters(raw), nil
}

// ExceptionCode extracts the Modbus exception code from err.
// ok is false when err is not a device exception response.
func ExceptionCode(err error) (code uint8, ok bool) {
	var me *modbus.ModbusError
	if errors.As(err, &me) {
		return me.ExceptionCode, true
	}
	return 0, false
}

// ---- helpers (pure geometry) ----

func unpackRegisters(data []byte) []uint16 {
	n := len(data) / 2
	out := make([]uint16, n)
	for i := 0; i < n; i++ {
		out[i] = uint16(data[2*i])<<8 | uint16(data[2*i+1])
	}
	return out
}
