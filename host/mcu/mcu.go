// Package mcu is the host side client of the ee24 firmware.
package mcu

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"ee24/host/serial"
	"ee24/protocol"
)

var (
	// ErrNotConnected is returned before Connect or after Close.
	ErrNotConnected = errors.New("not connected to MCU")

	// ErrNoDictionary is returned by name based calls before
	// RetrieveDictionary.
	ErrNoDictionary = errors.New("dictionary not loaded")
)

// Bootstrap message IDs, valid before the dictionary is known.
const (
	identifyResponseID = 0
	identifyID         = 1
)

// MCU is a connection to one firmware instance. Queries are serialized.
type MCU struct {
	mu        sync.Mutex
	transport *protocol.HostTransport

	dictionary     *Dictionary
	dictionaryData []byte
	commands       map[string]uint16
	responseNames  map[uint16]string

	connected bool
	verbose   bool

	// Timeout bounds every response wait.
	Timeout time.Duration
}

// Dictionary is the parsed data dictionary.
type Dictionary struct {
	Version       string                    `json:"version"`
	BuildVersions string                    `json:"build_versions"`
	Config        map[string]interface{}    `json:"config"`
	Commands      map[string]int            `json:"commands"`
	Responses     map[string]int            `json:"responses"`
	Enumerations  map[string]map[string]int `json:"enumerations,omitempty"`
}

// ConfigInt returns an integer dictionary constant.
func (d *Dictionary) ConfigInt(name string) (int, bool) {
	switch v := d.Config[name].(type) {
	case float64:
		return int(v), true
	case string:
		var n int
		if _, err := fmt.Sscan(v, &n); err == nil {
			return n, true
		}
	}
	return 0, false
}

func NewMCU() *MCU {
	return &MCU{Timeout: 2 * time.Second}
}

// SetVerbose enables progress output on stdout.
func (m *MCU) SetVerbose(v bool) {
	m.verbose = v
}

func (m *MCU) logf(format string, args ...interface{}) {
	if m.verbose {
		fmt.Printf(format, args...)
	}
}

// Connect opens device with the default serial settings.
func (m *MCU) Connect(device string) error {
	return m.ConnectWithConfig(serial.DefaultConfig(device))
}

func (m *MCU) ConnectWithConfig(cfg *serial.Config) error {
	port, err := serial.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to open serial port: %w", err)
	}
	m.ConnectPort(port)

	// a freshly enumerated USB device may still be booting
	time.Sleep(100 * time.Millisecond)
	return nil
}

// ConnectPort runs the link over an already open port.
func (m *MCU) ConnectPort(port io.ReadWriteCloser) {
	m.transport = protocol.NewHostTransport(port)
	m.connected = true
}

func (m *MCU) Close() error {
	if !m.connected {
		return nil
	}
	m.connected = false
	return m.transport.Close()
}

func (m *MCU) IsConnected() bool {
	return m.connected
}

// RetrieveDictionary fetches the dictionary in identify chunks.
func (m *MCU) RetrieveDictionary() error {
	if !m.connected {
		return ErrNotConnected
	}

	m.logf("Retrieving dictionary from MCU...\n")

	var dictBuffer bytes.Buffer
	const chunkSize = 40
	for {
		offset := uint32(dictBuffer.Len())
		chunk, err := m.sendIdentify(offset, chunkSize)
		if err != nil {
			return fmt.Errorf("failed to retrieve dictionary chunk at offset %d: %w", offset, err)
		}
		if len(chunk) == 0 {
			break
		}
		dictBuffer.Write(chunk)
	}

	m.dictionaryData = dictBuffer.Bytes()
	m.logf("Dictionary retrieved: %d bytes\n", len(m.dictionaryData))

	if err := m.parseDictionary(); err != nil {
		return fmt.Errorf("failed to parse dictionary: %w", err)
	}
	return nil
}

func (m *MCU) sendIdentify(offset uint32, count uint8) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := m.transport.SendCommand(identifyID, func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, offset)
		protocol.EncodeVLQUint(output, uint32(count))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to send identify command: %w", err)
	}

	payload, err := m.awaitID(identifyResponseID)
	if err != nil {
		return nil, err
	}

	respOffset, err := protocol.DecodeVLQUint(&payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode response offset: %w", err)
	}
	if respOffset != offset {
		return nil, fmt.Errorf("offset mismatch: expected %d, got %d", offset, respOffset)
	}

	data, err := protocol.DecodeVLQBytes(&payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode response data: %w", err)
	}
	return data, nil
}

// awaitID returns the arguments of the next response with message id,
// skipping unrelated responses.
func (m *MCU) awaitID(id uint16) ([]byte, error) {
	deadline := time.Now().Add(m.Timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("no response %d within %v", id, m.Timeout)
		}

		resp, err := m.transport.ReceiveResponse(remaining)
		if err != nil {
			return nil, err
		}
		payload := resp.Payload
		cmdID, err := protocol.DecodeVLQUint(&payload)
		if err != nil {
			return nil, fmt.Errorf("failed to decode response command ID: %w", err)
		}
		if uint16(cmdID) == id {
			return payload, nil
		}
		m.logf("Skipping response %d\n", cmdID)
	}
}

// parseDictionary indexes commands and responses by message name.
func (m *MCU) parseDictionary() error {
	dict := &Dictionary{}
	if err := json.Unmarshal(m.dictionaryData, dict); err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %w", err)
	}

	m.commands = make(map[string]uint16, len(dict.Commands))
	for sig, id := range dict.Commands {
		m.commands[messageName(sig)] = uint16(id)
	}
	m.responseNames = make(map[uint16]string, len(dict.Responses))
	for sig, id := range dict.Responses {
		m.responseNames[uint16(id)] = messageName(sig)
	}

	m.dictionary = dict
	return nil
}

func messageName(signature string) string {
	if i := strings.IndexByte(signature, ' '); i >= 0 {
		return signature[:i]
	}
	return signature
}

func (m *MCU) GetDictionary() *Dictionary {
	return m.dictionary
}

func (m *MCU) GetDictionaryRaw() []byte {
	return m.dictionaryData
}

func (m *MCU) commandID(name string) (uint16, error) {
	if !m.connected {
		return 0, ErrNotConnected
	}
	if m.dictionary == nil {
		return 0, ErrNoDictionary
	}
	id, ok := m.commands[name]
	if !ok {
		return 0, fmt.Errorf("unknown command: %s", name)
	}
	return id, nil
}

func (m *MCU) responseID(name string) (uint16, error) {
	for id, n := range m.responseNames {
		if n == name {
			return id, nil
		}
	}
	return 0, fmt.Errorf("unknown response: %s", name)
}

// SendCommand sends a command by name and waits for its ACK.
func (m *MCU) SendCommand(name string, args func(output protocol.OutputBuffer)) error {
	id, err := m.commandID(name)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transport.SendCommand(id, args)
}

// Query sends a command and returns the arguments of the named response.
func (m *MCU) Query(name string, args func(output protocol.OutputBuffer), response string) ([]byte, error) {
	id, err := m.commandID(name)
	if err != nil {
		return nil, err
	}
	respID, err := m.responseID(response)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.transport.SendCommand(id, args); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	payload, err := m.awaitID(respID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return payload, nil
}

// Config is the get_config reply.
type Config struct {
	IsConfig    bool
	MoveCount   int
	EEPROMCount int
}

func (m *MCU) GetConfig() (Config, error) {
	payload, err := m.Query("get_config", nil, "config")
	if err != nil {
		return Config{}, err
	}
	v, err := decodeUints(&payload, 3)
	if err != nil {
		return Config{}, err
	}
	return Config{IsConfig: v[0] != 0, MoveCount: int(v[1]), EEPROMCount: int(v[2])}, nil
}

// Uptime returns the time since the firmware booted.
func (m *MCU) Uptime() (time.Duration, error) {
	payload, err := m.Query("get_uptime", nil, "uptime")
	if err != nil {
		return 0, err
	}
	v, err := decodeUints(&payload, 2)
	if err != nil {
		return 0, err
	}

	freq, ok := m.dictionary.ConfigInt("CLOCK_FREQ")
	if !ok || freq <= 0 {
		return 0, fmt.Errorf("dictionary lacks CLOCK_FREQ")
	}
	ticks := uint64(v[0])<<32 | uint64(v[1])
	secs, rest := ticks/uint64(freq), ticks%uint64(freq)
	return time.Duration(secs)*time.Second + time.Duration(rest*uint64(time.Second)/uint64(freq)), nil
}

// SetDebug switches firmware debug output and bus tracing.
func (m *MCU) SetDebug(enable bool) error {
	return m.SendCommand("set_debug", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, boolArg(enable))
	})
}

// PrintDictionary prints a summary of the dictionary.
func (m *MCU) PrintDictionary() {
	if m.dictionary == nil {
		fmt.Println("No dictionary loaded")
		return
	}

	fmt.Println("=== MCU Dictionary ===")
	fmt.Printf("Version: %s\n", m.dictionary.Version)
	fmt.Printf("Build: %s\n", m.dictionary.BuildVersions)

	fmt.Println("\nConfig:")
	for _, k := range sortedKeys(m.dictionary.Config) {
		fmt.Printf("  %s = %v\n", k, m.dictionary.Config[k])
	}

	fmt.Printf("\nCommands (%d):\n", len(m.dictionary.Commands))
	printMessages(m.dictionary.Commands)
	fmt.Printf("\nResponses (%d):\n", len(m.dictionary.Responses))
	printMessages(m.dictionary.Responses)

	if len(m.dictionary.Enumerations) > 0 {
		fmt.Printf("\nEnumerations (%d):\n", len(m.dictionary.Enumerations))
		for _, name := range sortedKeys(m.dictionary.Enumerations) {
			fmt.Printf("  %s: %v\n", name, m.dictionary.Enumerations[name])
		}
	}
}

func printMessages(msgs map[string]int) {
	sigs := sortedKeys(msgs)
	sort.SliceStable(sigs, func(i, j int) bool { return msgs[sigs[i]] < msgs[sigs[j]] })
	for _, sig := range sigs {
		fmt.Printf("  [%d] %s\n", msgs[sig], sig)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func decodeUints(data *[]byte, n int) ([]uint32, error) {
	out := make([]uint32, n)
	for i := range out {
		v, err := protocol.DecodeVLQUint(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode argument %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func boolArg(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
