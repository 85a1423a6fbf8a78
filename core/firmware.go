// Package core is the firmware command layer: it registers the message
// dictionary, decodes commands arriving over the transport and drives the
// EEPROM engine on the board's I2C buses.
package core

import (
	"errors"
	"io"
	"runtime"
	"strings"

	"ee24/eeprom"
	"ee24/i2c"
	"ee24/protocol"
)

// ErrUnknownResponse is returned when sending a response that was never
// registered.
var ErrUnknownResponse = errors.New("response not registered")

// moveCount is the command queue depth reported by get_config.
const moveCount = 16

// Config describes the board a Firmware runs on.
type Config struct {
	// MCU is reported as the MCU dictionary constant.
	MCU string

	// Buses names the I2C controllers; the index is the i2c_bus value.
	Buses []string

	I2C I2CDriver

	// Frequency is the bus rate, DefaultI2CFrequency when zero.
	Frequency uint32

	// Clock drives get_uptime and get_clock, SystemClock when nil.
	Clock Clock
}

// Firmware is one MCU instance. It is not safe for concurrent use; Serve
// runs all handlers on its own goroutine.
type Firmware struct {
	cfg       Config
	registry  *CommandRegistry
	dict      *Dictionary
	transport *protocol.Transport
	output    *protocol.ScratchOutput

	eeproms  map[uint8]*eepromObject
	busReady map[i2c.BusID]bool

	port     io.Writer
	writeErr error
}

func NewFirmware(cfg Config) *Firmware {
	if cfg.MCU == "" {
		cfg.MCU = "host"
	}
	if cfg.Frequency == 0 {
		cfg.Frequency = DefaultI2CFrequency
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock()
	}

	f := &Firmware{
		cfg:      cfg,
		registry: NewCommandRegistry(),
		output:   protocol.NewScratchOutput(),
		eeproms:  make(map[uint8]*eepromObject),
		busReady: make(map[i2c.BusID]bool),
	}
	f.dict = NewDictionary(f.registry, protocol.Version)
	f.transport = protocol.NewTransport(f.output, f.dispatch)
	f.transport.SetFlushCallback(f.flush)
	f.transport.SetResetCallback(f.reset)

	f.initCoreCommands()
	f.initEEPROMCommands()
	return f
}

// initCoreCommands registers the bootstrap messages first: the host
// assumes identify_response=0 and identify=1 before it has a dictionary.
func (f *Firmware) initCoreCommands() {
	f.registry.RegisterResponse("identify_response", "offset=%u data=%*s")
	f.registry.Register("identify", "offset=%u count=%c", f.handleIdentify)

	f.registry.Register("get_config", "", f.handleGetConfig)
	f.registry.Register("get_uptime", "", f.handleGetUptime)
	f.registry.Register("get_clock", "", f.handleGetClock)

	f.registry.RegisterResponse("config", "is_config=%c move_count=%hu eeprom_count=%c")
	f.registry.RegisterResponse("uptime", "high=%u clock=%u")
	f.registry.RegisterResponse("clock", "clock=%u")

	f.dict.AddConstant("MCU", f.cfg.MCU)
	f.dict.AddConstant("CLOCK_FREQ", TimerFreq)
	f.dict.AddConstant("EEPROM_CAPACITIES", capacityList())
	if len(f.cfg.Buses) > 0 {
		f.dict.AddEnumeration("i2c_bus", f.cfg.Buses)
	}
}

func capacityList() string {
	var names []string
	for _, c := range eeprom.Capacities() {
		names = append(names, utoa(uint32(c)))
	}
	return strings.Join(names, ",")
}

// Registry returns the command registry.
func (f *Firmware) Registry() *CommandRegistry {
	return f.registry
}

// Dictionary returns the data dictionary.
func (f *Firmware) Dictionary() *Dictionary {
	return f.dict
}

func (f *Firmware) dispatch(cmdID uint16, data *[]byte) error {
	err := f.registry.Dispatch(cmdID, data)
	if err != nil {
		DebugPrintln("[fw] command " + utoa(uint32(cmdID)) + ": " + err.Error())
	}
	return err
}

// SendResponse queues the named response.
func (f *Firmware) SendResponse(name string, args func(output protocol.OutputBuffer)) error {
	cmd, ok := f.registry.GetCommandByName(name)
	if !ok {
		return ErrUnknownResponse
	}
	return f.transport.SendCommand(cmd.ID, args)
}

// reset runs when the host restarts its sequence: configured chips are
// forgotten and must be configured again.
func (f *Firmware) reset() {
	DebugPrintln("[fw] host reset")
	f.eeproms = make(map[uint8]*eepromObject)
}

func (f *Firmware) flush() {
	if f.output.CurPosition() == 0 {
		return
	}
	if f.port != nil && f.writeErr == nil {
		_, f.writeErr = f.port.Write(f.output.Result())
	}
	f.output.Reset()
}

// Serve runs the firmware on port until it reports io.EOF or fails. A
// port returning no data without an error is polled.
func (f *Firmware) Serve(port io.ReadWriter) error {
	f.port = port
	defer func() { f.port = nil }()

	in := protocol.NewFifoBuffer(512)
	buf := make([]byte, 64)

	for {
		n, err := port.Read(buf)
		if n > 0 {
			in.Write(buf[:n])
			f.transport.Receive(in)
			f.flush()
		}
		if f.writeErr != nil {
			return f.writeErr
		}
		if err != nil {
			if err == io.EOF || errors.Is(err, io.ErrClosedPipe) {
				return nil
			}
			return err
		}
		if n == 0 {
			runtime.Gosched()
		}
	}
}

// handleIdentify returns a chunk of the data dictionary.
// Format: identify offset=%u count=%c
func (f *Firmware) handleIdentify(data *[]byte) error {
	var offset, count uint32
	if err := decodeArgs(data, &offset, &count); err != nil {
		return err
	}
	if count > protocol.MessagePayloadMax-8 {
		count = protocol.MessagePayloadMax - 8
	}

	chunk := f.dict.GetChunk(offset, uint8(count))
	return f.SendResponse("identify_response", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, offset)
		protocol.EncodeVLQBytes(output, chunk)
	})
}

func (f *Firmware) handleGetConfig(data *[]byte) error {
	n := len(f.eeproms)
	isConfig := uint32(0)
	if n > 0 {
		isConfig = 1
	}

	return f.SendResponse("config", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, isConfig)
		protocol.EncodeVLQUint(output, moveCount)
		protocol.EncodeVLQUint(output, uint32(n))
	})
}

func (f *Firmware) handleGetUptime(data *[]byte) error {
	uptime := f.cfg.Clock()
	return f.SendResponse("uptime", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(uptime>>32))
		protocol.EncodeVLQUint(output, uint32(uptime))
	})
}

func (f *Firmware) handleGetClock(data *[]byte) error {
	clock := uint32(f.cfg.Clock())
	return f.SendResponse("clock", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, clock)
	})
}
