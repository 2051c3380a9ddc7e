package modbusctrl

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	mbserver "github.com/tbrandon/mbserver"
	"go.uber.org/zap"

	"github.com/Agrid-Dev/heatzyswitch/internal/ports"
)

// Config for the Modbus controller.
type Config struct {
	DeviceID string
	Addr     string
	UnitID   byte // UnitID (Modbus slave/unit ID). Use an integer 1..247. Requests for other units are rejected.
	// RequestTimeout bounds the remote call behind a coil read or write.
	RequestTimeout time.Duration
}

// Controller exposes the switch as coil 0 (live) and discrete input 0 (last
// reconciled value).
type Controller struct {
	svc ports.SwitchService
	cfg Config
	log *zap.SugaredLogger

	mu   sync.RWMutex
	ctx  context.Context
	serv *mbserver.Server
}

func New(svc ports.SwitchService, cfg Config, log *zap.SugaredLogger) (*Controller, error) {
	if cfg.UnitID == 0 {
		return nil, errors.New("modbus: UnitID is required (non-zero)")
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:1502"
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}
	return &Controller{svc: svc, cfg: cfg, log: log, ctx: context.Background()}, nil
}

// Run starts the Modbus server. It blocks until ctx is canceled.
func (c *Controller) Run(ctx context.Context) error {
	serv := mbserver.NewServer()
	c.mu.Lock()
	c.serv = serv
	c.ctx = ctx
	c.mu.Unlock()

	// Register handlers BEFORE starting the TCP listener to avoid races inside mbserver
	// between handler registration and the server's goroutines.
	serv.RegisterFunctionHandler(1, c.readCoils)
	serv.RegisterFunctionHandler(2, c.readDiscreteInputs)
	serv.RegisterFunctionHandler(5, c.writeSingleCoil)

	if err := serv.ListenTCP(c.cfg.Addr); err != nil {
		return fmt.Errorf("mbserver listen tcp %s: %w", c.cfg.Addr, err)
	}
	c.log.Infow("modbus controller listening", "addr", c.cfg.Addr, "unit_id", c.cfg.UnitID)

	<-ctx.Done()
	serv.Close()
	return ctx.Err()
}

// Read Coils (function 1): coil 0 is a fresh read of the device.
func (c *Controller) readCoils(_ *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	if exc := c.checkUnit(frame); exc != nil {
		return []byte{}, exc
	}
	if exc := checkSingleBit(frame.GetData()); exc != nil {
		return []byte{}, exc
	}

	ctx, cancel := c.requestContext()
	defer cancel()
	on, err := c.svc.Read(ctx)
	if err != nil {
		c.log.Errorw("modbus read coil failed", "err", err)
		return []byte{}, &mbserver.SlaveDeviceFailure
	}
	return bitResponse(on), &mbserver.Success
}

// Read Discrete Inputs (function 2): input 0 is the last reconciled value.
func (c *Controller) readDiscreteInputs(_ *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	if exc := c.checkUnit(frame); exc != nil {
		return []byte{}, exc
	}
	if exc := checkSingleBit(frame.GetData()); exc != nil {
		return []byte{}, exc
	}

	on, known := c.svc.Cached()
	if !known {
		return []byte{}, &mbserver.SlaveDeviceFailure
	}
	return bitResponse(on), &mbserver.Success
}

// Write Single Coil (function 5): coil 0 switches the heater.
func (c *Controller) writeSingleCoil(_ *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	if exc := c.checkUnit(frame); exc != nil {
		return []byte{}, exc
	}
	data := frame.GetData()
	if len(data) < 4 {
		return []byte{}, &mbserver.IllegalDataValue
	}
	addr := binary.BigEndian.Uint16(data[0:2])
	value := binary.BigEndian.Uint16(data[2:4])

	if addr != 0 {
		return []byte{}, &mbserver.IllegalDataAddress
	}

	var on bool
	switch value {
	case 0x0000:
		on = false
	case 0xFF00:
		on = true
	default:
		return []byte{}, &mbserver.IllegalDataValue
	}

	ctx, cancel := c.requestContext()
	defer cancel()
	if _, err := c.svc.Write(ctx, on); err != nil {
		c.log.Errorw("modbus write coil failed", "value", on, "err", err)
		return []byte{}, &mbserver.SlaveDeviceFailure
	}

	// echo request (address + value)
	resp := make([]byte, 4)
	copy(resp, data[0:4])
	return resp, &mbserver.Success
}

func (c *Controller) requestContext() (context.Context, context.CancelFunc) {
	c.mu.RLock()
	parent := c.ctx
	c.mu.RUnlock()
	return context.WithTimeout(parent, c.cfg.RequestTimeout)
}

// checkUnit answers requests addressed to another unit the way a gateway
// reports an absent target.
func (c *Controller) checkUnit(frame mbserver.Framer) *mbserver.Exception {
	var unit uint8
	switch f := frame.(type) {
	case *mbserver.TCPFrame:
		unit = f.Device
	case *mbserver.RTUFrame:
		unit = f.Address
	default:
		return nil
	}
	if unit != c.cfg.UnitID {
		c.log.Debugw("modbus request for another unit", "unit_id", unit)
		return &mbserver.GatewayTargetDeviceFailedtoRespond
	}
	return nil
}

// checkSingleBit validates a read request for exactly bit 0.
func checkSingleBit(data []byte) *mbserver.Exception {
	if len(data) < 4 {
		return &mbserver.IllegalDataValue
	}
	start := binary.BigEndian.Uint16(data[0:2])
	qty := binary.BigEndian.Uint16(data[2:4])
	if qty == 0 || qty > 2000 {
		return &mbserver.IllegalDataValue
	}
	if start != 0 || qty != 1 {
		return &mbserver.IllegalDataAddress
	}
	return nil
}

// bitResponse is byte count (1) + packed bits.
func bitResponse(on bool) []byte {
	b := byte(0)
	if on {
		b = 0x01
	}
	return []byte{1, b}
}
