package serialsrc

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"go.bug.st/serial"

	"github.com/and-elf/layered-queue-driver-sub000/internal/domain"
	"github.com/and-elf/layered-queue-driver-sub000/internal/ports"
)

// Config describes the serial link carrying sample frames from the
// acquisition microcontroller.
type Config struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

func (c *Config) ApplyDefaults() {
	if c.Baud == 0 {
		c.Baud = 115200
	}
}

func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}
	return nil
}

// frame is one CBOR-encoded sample on the wire. Integer keys keep the
// encoding compact enough for low-baud links.
type frame struct {
	Signal    uint8  `cbor:"1,keyasint"`
	Value     int32  `cbor:"2,keyasint"`
	Status    uint8  `cbor:"3,keyasint"`
	Timestamp uint64 `cbor:"4,keyasint"`
}

// Collector reads a stream of CBOR sample frames from a serial port and
// pushes them into the sample transport. A frame with a zero timestamp is
// stamped with the local receive time.
type Collector struct {
	cfg  Config
	sink ports.EventSink
	obs  ports.Observability

	mu      sync.Mutex
	port    serial.Port
	wg      sync.WaitGroup
	started bool
}

func NewCollector(cfg Config, sink ports.EventSink, obs ports.Observability) (*Collector, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Collector{cfg: cfg, sink: sink, obs: obs}, nil
}

func (c *Collector) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return fmt.Errorf("serial collector already started")
	}

	mode := &serial.Mode{
		BaudRate: c.cfg.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(c.cfg.Port, mode)
	if err != nil {
		return fmt.Errorf("open serial port %s: %w", c.cfg.Port, err)
	}

	c.port = port
	c.started = true
	c.wg.Add(1)
	go c.readLoop(port)
	return nil
}

func (c *Collector) Stop() error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	port := c.port
	c.port = nil
	c.started = false
	c.mu.Unlock()

	err := port.Close()
	c.wg.Wait()
	return err
}

func (c *Collector) readLoop(port serial.Port) {
	defer c.wg.Done()

	dec := cbor.NewDecoder(port)
	for {
		var f frame
		if err := dec.Decode(&f); err != nil {
			c.mu.Lock()
			stopped := !c.started
			c.mu.Unlock()
			if stopped {
				return
			}
			c.obs.LogError("serial frame decode", err)
			c.obs.IncCounter("lq_serial_decode_errors_total", 1)
			// The decoder's internal state is unreliable after a framing
			// error; restart it on the same port.
			dec = cbor.NewDecoder(port)
			continue
		}

		ts := f.Timestamp
		if ts == 0 {
			ts = uint64(time.Now().UnixMicro())
		}
		evt := domain.RawEvent{
			Source:    f.Signal,
			Value:     f.Value,
			Status:    domain.Status(f.Status),
			Timestamp: ts,
		}
		if !c.sink.Push(evt) {
			c.obs.IncCounter("lq_source_evictions_total", 1)
		}
	}
}

var _ ports.Collector = (*Collector)(nil)
