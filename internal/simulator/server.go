// internal/simulator/server.go
package simulator

import (
	"encoding/binary"
	"sync"

	"github.com/pkg/errors"
	"github.com/tbrandon/mbserver"
	"go.uber.org/zap"
)

// Device identity reported over FC 43 / MEI 14.
const (
	VendorName  = "ACROMAG"
	ProductCode = "961EN-4006"
	Revision    = "1.0"
)

const (
	fcReadInputRegisters = 4
	fcEncapsulated       = 43
	meiDeviceID          = 0x0E

	maxReadQuantity = 125
)

// Server exposes a Simulator on Modbus TCP.
// Only input registers (FC 4) and device identification (FC 43) are served;
// every other function code answers IllegalFunction.
type Server struct {
	sim    *Simulator
	logger *zap.Logger

	mu     sync.Mutex
	srv    *mbserver.Server
	closed bool
}

// NewServer wires sim behind a Modbus TCP server. Call Listen to accept connections.
func NewServer(sim *Simulator, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		sim:    sim,
		logger: logger.Named("simulator"),
		srv:    mbserver.NewServer(),
	}

	for fc := 1; fc <= 255; fc++ {
		if fc == fcReadInputRegisters || fc == fcEncapsulated {
			continue
		}
		s.srv.RegisterFunctionHandler(uint8(fc), illegalFunction)
	}
	s.srv.RegisterFunctionHandler(fcReadInputRegisters, s.readInputRegisters)
	s.srv.RegisterFunctionHandler(fcEncapsulated, s.readDeviceIdentification)

	return s
}

// Simulator returns the register map behind the server.
func (s *Server) Simulator() *Simulator {
	return s.sim
}

// Listen starts accepting connections on addr (host:port). It does not block.
func (s *Server) Listen(addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New("simulator: server closed")
	}
	if err := s.srv.ListenTCP(addr); err != nil {
		return errors.Wrapf(err, "simulator: listen %s", addr)
	}

	s.logger.Info("listening", zap.String("addr", addr))
	return nil
}

// Close stops accepting new connections.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.srv.Close()
	s.logger.Info("stopped")
}

// ---- function handlers ----

func illegalFunction(_ *mbserver.Server, _ mbserver.Framer) ([]byte, *mbserver.Exception) {
	return []byte{}, &mbserver.IllegalFunction
}

func (s *Server) readInputRegisters(_ *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	data := frame.GetData()
	if len(data) < 4 {
		return []byte{}, &mbserver.IllegalDataValue
	}

	start := binary.BigEndian.Uint16(data[0:2])
	qty := binary.BigEndian.Uint16(data[2:4])
	if qty == 0 || qty > maxReadQuantity {
		return []byte{}, &mbserver.IllegalDataValue
	}

	out := make([]byte, 1+2*int(qty))
	out[0] = byte(2 * qty)
	for i := 0; i < int(qty); i++ {
		addr := uint32(start) + uint32(i)
		if addr > 0xFFFF {
			return []byte{}, &mbserver.IllegalDataAddress
		}
		v, ok := s.sim.Register(uint16(addr))
		if !ok {
			s.logger.Debug("read of unmapped register",
				zap.Uint16("start", start),
				zap.Uint16("quantity", qty),
				zap.Uint32("address", addr),
			)
			return []byte{}, &mbserver.IllegalDataAddress
		}
		binary.BigEndian.PutUint16(out[1+2*i:], v)
	}

	return out, &mbserver.Success
}

// readDeviceIdentification answers a basic-stream request with vendor,
// product code and revision.
func (s *Server) readDeviceIdentification(_ *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	data := frame.GetData()
	if len(data) < 3 || data[0] != meiDeviceID {
		return []byte{}, &mbserver.IllegalDataValue
	}

	readCode := data[1]
	if readCode < 1 || readCode > 4 {
		return []byte{}, &mbserver.IllegalDataValue
	}

	objects := []string{VendorName, ProductCode, Revision}

	out := []byte{
		meiDeviceID,
		readCode,
		0x01, // conformity: basic, stream only
		0x00, // no more follows
		0x00, // next object id
		byte(len(objects)),
	}
	for id, v := range objects {
		out = append(out, byte(id), byte(len(v)))
		out = append(out, v...)
	}
	return out, &mbserver.Success
}
