package core

import (
	"errors"

	"ee24/eeprom"
	"ee24/i2c"
	"ee24/protocol"
)

// Status codes carried by eeprom_status and eeprom_read_response.
const (
	StatusOK uint8 = iota
	StatusUnsupportedCapacity
	StatusInvalidAddress
	StatusInvalidRange
	StatusBusError
	StatusUnknownOID
	StatusNoBus
	StatusTooLarge
)

// MaxTransfer is the largest payload of one eeprom_read or eeprom_write;
// the reply must fit in a single 64 byte frame.
const MaxTransfer = 48

// StatusFor maps an engine error to its wire status.
func StatusFor(err error) uint8 {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, eeprom.ErrUnsupportedCapacity):
		return StatusUnsupportedCapacity
	case errors.Is(err, eeprom.ErrInvalidAddress):
		return StatusInvalidAddress
	case errors.Is(err, eeprom.ErrInvalidRange):
		return StatusInvalidRange
	case errors.Is(err, i2c.ErrNoBus):
		return StatusNoBus
	default:
		return StatusBusError
	}
}

// eepromObject is a configured chip.
type eepromObject struct {
	oid    uint8
	bus    i2c.BusID
	master i2c.Master
	dev    eeprom.Device
}

func (f *Firmware) initEEPROMCommands() {
	f.registry.Register("config_eeprom", "oid=%c i2c_bus=%c address=%c capacity=%hu", f.handleConfigEEPROM)
	f.registry.Register("eeprom_write", "oid=%c offset=%hu data=%*s", f.handleEEPROMWrite)
	f.registry.Register("eeprom_read", "oid=%c offset=%hu count=%c", f.handleEEPROMRead)
	f.registry.Register("set_debug", "enable=%c", handleSetDebug)

	f.registry.RegisterResponse("eeprom_status", "oid=%c status=%c")
	f.registry.RegisterResponse("eeprom_read_response", "oid=%c offset=%hu status=%c data=%*s")

	f.dict.AddConstant("EEPROM_MAX_TRANSFER", MaxTransfer)
}

func decodeArgs(data *[]byte, args ...*uint32) error {
	for _, a := range args {
		v, err := protocol.DecodeVLQUint(data)
		if err != nil {
			return err
		}
		*a = v
	}
	return nil
}

// handleConfigEEPROM binds oid to a chip.
// Format: config_eeprom oid=%c i2c_bus=%c address=%c capacity=%hu
func (f *Firmware) handleConfigEEPROM(data *[]byte) error {
	var oid, bus, address, capacity uint32
	if err := decodeArgs(data, &oid, &bus, &address, &capacity); err != nil {
		return err
	}

	status := StatusUnknownOID
	if oid <= 0xff {
		status = f.configEEPROM(uint8(oid), bus, address, capacity)
	}
	if status != StatusOK {
		DebugPrintln("[eeprom] config oid=" + utoa(oid) + " failed, status " + itoa(int(status)))
	}
	return f.sendStatus(oid, status)
}

func (f *Firmware) configEEPROM(oid uint8, bus, address, capacity uint32) uint8 {
	if capacity > 0xffff {
		return StatusUnsupportedCapacity
	}
	if address > uint32(i2c.MaxAddress) {
		return StatusInvalidAddress
	}
	dev, err := eeprom.New(i2c.Address(address), eeprom.Capacity(capacity))
	if err != nil {
		return StatusFor(err)
	}
	if bus > 0xff {
		return StatusNoBus
	}

	master, err := f.claimBus(i2c.BusID(bus))
	if err != nil {
		return StatusNoBus
	}

	f.eeproms[oid] = &eepromObject{
		oid:    oid,
		bus:    i2c.BusID(bus),
		master: master,
		dev:    dev,
	}
	DebugPrintln("[eeprom] oid=" + utoa(uint32(oid)) + " " + dev.Capacity().String() +
		" at " + hex8(uint8(address)) + " on bus " + utoa(bus))
	return StatusOK
}

// claimBus configures a bus the first time a chip is placed on it.
func (f *Firmware) claimBus(bus i2c.BusID) (i2c.Master, error) {
	if f.cfg.I2C == nil {
		return nil, i2c.ErrNoBus
	}
	if !f.busReady[bus] {
		if err := f.cfg.I2C.ConfigureBus(bus, f.cfg.Frequency); err != nil {
			return nil, err
		}
		f.busReady[bus] = true
	}
	return f.cfg.I2C.Master(bus)
}

// master returns the bus for obj, traced while debug output is on.
func (f *Firmware) master(obj *eepromObject) i2c.Master {
	if IsDebugEnabled() {
		return i2c.NewTracer(obj.master, DebugPrintln)
	}
	return obj.master
}

// handleEEPROMWrite stores data at offset.
// Format: eeprom_write oid=%c offset=%hu data=%*s
func (f *Firmware) handleEEPROMWrite(data *[]byte) error {
	var oid, offset uint32
	if err := decodeArgs(data, &oid, &offset); err != nil {
		return err
	}
	payload, err := protocol.DecodeVLQBytes(data)
	if err != nil {
		return err
	}

	obj, ok := f.lookup(oid)
	var status uint8
	switch {
	case !ok:
		status = StatusUnknownOID
	case len(payload) > MaxTransfer:
		status = StatusTooLarge
	case offset > 0xffff:
		status = StatusInvalidRange
	default:
		err := eeprom.Write(f.master(obj), obj.dev, uint16(offset), payload)
		if err != nil {
			DebugPrintln("[eeprom] write oid=" + utoa(oid) + ": " + err.Error())
		}
		status = StatusFor(err)
	}

	return f.sendStatus(oid, status)
}

// handleEEPROMRead reads count bytes at offset.
// Format: eeprom_read oid=%c offset=%hu count=%c
func (f *Firmware) handleEEPROMRead(data *[]byte) error {
	var oid, offset, count uint32
	if err := decodeArgs(data, &oid, &offset, &count); err != nil {
		return err
	}

	obj, ok := f.lookup(oid)
	var status uint8
	var result []byte
	switch {
	case !ok:
		status = StatusUnknownOID
	case count > MaxTransfer:
		status = StatusTooLarge
	case offset > 0xffff:
		status = StatusInvalidRange
	default:
		var err error
		result, err = eeprom.Read(f.master(obj), obj.dev, uint16(offset), int(count))
		if err != nil {
			DebugPrintln("[eeprom] read oid=" + utoa(oid) + ": " + err.Error())
			result = nil
		}
		status = StatusFor(err)
	}

	return f.SendResponse("eeprom_read_response", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, oid)
		protocol.EncodeVLQUint(output, offset)
		protocol.EncodeVLQUint(output, uint32(status))
		protocol.EncodeVLQBytes(output, result)
	})
}

// lookup finds a configured chip. Oids are 8 bit; larger values never
// match instead of aliasing a lower oid.
func (f *Firmware) lookup(oid uint32) (*eepromObject, bool) {
	if oid > 0xff {
		return nil, false
	}
	obj, ok := f.eeproms[uint8(oid)]
	return obj, ok
}

// sendStatus echoes oid as received.
func (f *Firmware) sendStatus(oid uint32, status uint8) error {
	return f.SendResponse("eeprom_status", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, oid)
		protocol.EncodeVLQUint(output, uint32(status))
	})
}

// handleSetDebug switches debug output and bus tracing.
// Format: set_debug enable=%c
func handleSetDebug(data *[]byte) error {
	enable, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	SetDebugEnabled(enable != 0)
	return nil
}
