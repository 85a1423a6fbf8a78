package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/google/shlex"

	"ee24/eeprom"
	"ee24/host/config"
	"ee24/host/mcu"
	"ee24/i2c"
)

var errUsage = errors.New("wrong arguments (type 'help')")

type console struct {
	m   *mcu.MCU
	cfg *config.Config
	out io.Writer
}

func newConsole(m *mcu.MCU, cfg *config.Config, out io.Writer) *console {
	return &console{m: m, cfg: cfg, out: out}
}

// setup fetches the dictionary and configures every chip.
func (c *console) setup() error {
	if err := c.m.RetrieveDictionary(); err != nil {
		return fmt.Errorf("failed to retrieve dictionary: %w", err)
	}
	if err := c.m.SetDebug(c.cfg.Debug); err != nil {
		return err
	}

	for _, e := range c.cfg.EEPROMs {
		addr, capacity, err := e.Device()
		if err != nil {
			return err
		}
		if err := c.m.ConfigEEPROM(e.OID, i2c.BusID(e.Bus), addr, capacity); err != nil {
			return fmt.Errorf("eeprom %s: %w", e.Name, err)
		}
	}
	return nil
}

// exec runs one console line. quit reports a request to exit.
func (c *console) exec(line string) (quit bool, err error) {
	args, err := shlex.Split(line)
	if err != nil {
		return false, err
	}
	if len(args) == 0 {
		return false, nil
	}

	cmd, args := args[0], args[1:]
	switch cmd {
	case "quit", "exit", "q":
		return true, nil
	case "help", "?":
		c.printHelp()
	case "dict":
		c.m.PrintDictionary()
	case "raw":
		raw := c.m.GetDictionaryRaw()
		fmt.Fprintf(c.out, "Raw dictionary data (%d bytes):\n%s\n", len(raw), raw)
	case "status":
		err = c.status()
	case "devices":
		c.devices()
	case "debug":
		err = c.debug(args)
	case "read":
		err = c.read(args)
	case "write":
		err = c.write(args)
	case "dump":
		err = c.dump(args)
	case "load":
		err = c.load(args)
	default:
		err = fmt.Errorf("unknown command: %s (type 'help' for available commands)", cmd)
	}
	return false, err
}

func (c *console) printHelp() {
	fmt.Fprintln(c.out, "Available commands:")
	fmt.Fprintln(c.out, "  help                          - Show this help message")
	fmt.Fprintln(c.out, "  dict | raw                    - Print the dictionary")
	fmt.Fprintln(c.out, "  status                        - Show MCU configuration and uptime")
	fmt.Fprintln(c.out, "  devices                       - List configured EEPROMs")
	fmt.Fprintln(c.out, "  debug on|off                  - Firmware debug output and bus tracing")
	fmt.Fprintln(c.out, "  read <dev> <offset> <count>   - Hex dump a range")
	fmt.Fprintln(c.out, "  write <dev> <offset> <data>   - Write text, or hex bytes given as 0x...")
	fmt.Fprintln(c.out, "  dump <dev> [file]             - Read the whole chip")
	fmt.Fprintln(c.out, "  load <dev> <file> [offset]    - Write a file to the chip")
	fmt.Fprintln(c.out, "  quit/exit/q                   - Exit the program")
}

func (c *console) status() error {
	cfg, err := c.m.GetConfig()
	if err != nil {
		return err
	}
	uptime, err := c.m.Uptime()
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "configured=%v eeproms=%d move_count=%d uptime=%v\n",
		cfg.IsConfig, cfg.EEPROMCount, cfg.MoveCount, uptime)
	return nil
}

func (c *console) devices() {
	for _, e := range c.cfg.EEPROMs {
		_, capacity, _ := e.Device()
		bus := strconv.Itoa(int(e.Bus))
		if int(e.Bus) < len(c.cfg.Buses) {
			bus = c.cfg.Buses[e.Bus]
		}
		fmt.Fprintf(c.out, "  [%d] %-12s %s at %s on %s\n", e.OID, e.Name, capacity, e.Address, bus)
	}
}

func (c *console) debug(args []string) error {
	if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
		return errUsage
	}
	return c.m.SetDebug(args[0] == "on")
}

// device resolves a chip argument.
func (c *console) device(key string) (config.EEPROMConfig, *mcu.Remote, error) {
	e, ok := c.cfg.Lookup(key)
	if !ok {
		return e, nil, fmt.Errorf("no eeprom %q", key)
	}
	_, capacity, err := e.Device()
	if err != nil {
		return e, nil, err
	}
	r, err := c.m.Remote(e.OID, capacity)
	return e, r, err
}

func parseOffset(s string) (uint16, error) {
	n, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("offset %q: %w", s, eeprom.ErrInvalidRange)
	}
	return uint16(n), nil
}

func (c *console) read(args []string) error {
	if len(args) != 3 {
		return errUsage
	}
	e, _, err := c.device(args[0])
	if err != nil {
		return err
	}
	offset, err := parseOffset(args[1])
	if err != nil {
		return err
	}
	count, err := strconv.Atoi(args[2])
	if err != nil || count < 0 {
		return errUsage
	}

	data, err := c.m.ReadEEPROM(e.OID, offset, count)
	if err != nil {
		return err
	}
	hexDump(c.out, int(offset), data)
	return nil
}

// parseData accepts 0x-prefixed hex or literal text.
func parseData(args []string) ([]byte, error) {
	s := strings.Join(args, " ")
	if strings.HasPrefix(s, "0x") {
		data, err := hex.DecodeString(strings.ReplaceAll(s[2:], " ", ""))
		if err != nil {
			return nil, fmt.Errorf("bad hex data: %w", err)
		}
		return data, nil
	}
	return []byte(s), nil
}

func (c *console) write(args []string) error {
	if len(args) < 3 {
		return errUsage
	}
	e, _, err := c.device(args[0])
	if err != nil {
		return err
	}
	offset, err := parseOffset(args[1])
	if err != nil {
		return err
	}
	data, err := parseData(args[2:])
	if err != nil {
		return err
	}

	if err := c.m.WriteEEPROM(e.OID, offset, data); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Wrote %d bytes at 0x%04x\n", len(data), offset)
	return nil
}

func (c *console) dump(args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return errUsage
	}
	_, r, err := c.device(args[0])
	if err != nil {
		return err
	}

	data, err := io.ReadAll(io.NewSectionReader(r, 0, r.Size()))
	if err != nil {
		return err
	}

	if len(args) == 1 {
		hexDump(c.out, 0, data)
		return nil
	}
	if err := os.WriteFile(args[1], data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Saved %d bytes to %s\n", len(data), args[1])
	return nil
}

func (c *console) load(args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return errUsage
	}
	_, r, err := c.device(args[0])
	if err != nil {
		return err
	}
	var offset uint16
	if len(args) == 3 {
		if offset, err = parseOffset(args[2]); err != nil {
			return err
		}
	}

	data, err := os.ReadFile(args[1])
	if err != nil {
		return err
	}
	if _, err := r.WriteAt(data, int64(offset)); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Loaded %d bytes at 0x%04x\n", len(data), offset)
	return nil
}

// hexDump prints 16 bytes per line labelled with their chip offset.
func hexDump(w io.Writer, base int, data []byte) {
	for i := 0; i < len(data); i += 16 {
		end := i + 16
		if end > len(data) {
			end = len(data)
		}
		line := data[i:end]

		ascii := make([]byte, len(line))
		for j, b := range line {
			if b < 0x20 || b > 0x7e {
				b = '.'
			}
			ascii[j] = b
		}
		fmt.Fprintf(w, "%04x  % -47x  |%s|\n", base+i, line, ascii)
	}
}
