// Package config loads the ee24 host configuration file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"ee24/eeprom"
	"ee24/i2c"
)

// Config is the host tool configuration.
type Config struct {
	Serial  SerialConfig   `json:"serial"`
	Buses   []string       `json:"i2c_buses"`
	EEPROMs []EEPROMConfig `json:"eeproms"`
	Debug   bool           `json:"debug"`

	// TimeoutMS bounds every firmware reply.
	TimeoutMS int `json:"timeout_ms"`
}

type SerialConfig struct {
	Device        string `json:"device"`
	Baud          int    `json:"baud"`
	ReadTimeoutMS int    `json:"read_timeout_ms"`
}

// EEPROMConfig names one chip. Address accepts "0x50" or "80"; capacity
// accepts anything ParseCapacity does ("24c08", "8k", "256").
type EEPROMConfig struct {
	Name     string `json:"name"`
	OID      uint8  `json:"oid"`
	Bus      uint8  `json:"bus"`
	Address  string `json:"address"`
	Capacity string `json:"capacity"`
}

// Device returns the parsed bus address and capacity.
func (e EEPROMConfig) Device() (i2c.Address, eeprom.Capacity, error) {
	addr, err := strconv.ParseUint(strings.TrimSpace(e.Address), 0, 8)
	if err != nil || addr > uint64(i2c.MaxAddress) {
		return 0, 0, fmt.Errorf("eeprom %s: address %q: %w", e.Name, e.Address, eeprom.ErrInvalidAddress)
	}
	c, err := eeprom.ParseCapacity(e.Capacity)
	if err != nil {
		return 0, 0, fmt.Errorf("eeprom %s: capacity %q: %w", e.Name, e.Capacity, err)
	}
	return i2c.Address(addr), c, nil
}

// LoadConfig parses and validates a JSON configuration.
func LoadConfig(jsonData []byte) (*Config, error) {
	var config Config
	if err := json.Unmarshal(jsonData, &config); err != nil {
		return nil, err
	}

	applyDefaults(&config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// LoadFile reads path and calls LoadConfig.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	config, err := LoadConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return config, nil
}

func applyDefaults(config *Config) {
	if config.Serial.Baud == 0 {
		config.Serial.Baud = 250000
	}
	if config.Serial.ReadTimeoutMS == 0 {
		config.Serial.ReadTimeoutMS = 100
	}
	if config.TimeoutMS == 0 {
		config.TimeoutMS = 2000
	}
	if len(config.Buses) == 0 {
		config.Buses = []string{"i2c0", "i2c1"}
	}

	for i := range config.EEPROMs {
		e := &config.EEPROMs[i]
		if e.Name == "" {
			e.Name = "eeprom" + strconv.Itoa(int(e.OID))
		}
		if e.Address == "" {
			e.Address = "0x50"
		}
	}
}

// Validate checks every chip and rejects duplicate names and oids.
func (c *Config) Validate() error {
	names := make(map[string]bool)
	oids := make(map[uint8]bool)
	for _, e := range c.EEPROMs {
		if names[e.Name] {
			return fmt.Errorf("duplicate eeprom name %q", e.Name)
		}
		if oids[e.OID] {
			return fmt.Errorf("duplicate eeprom oid %d", e.OID)
		}
		names[e.Name] = true
		oids[e.OID] = true

		if int(e.Bus) >= len(c.Buses) {
			return fmt.Errorf("eeprom %s: bus %d: %w", e.Name, e.Bus, i2c.ErrNoBus)
		}
		if _, _, err := e.Device(); err != nil {
			return err
		}
	}
	return nil
}

// Lookup finds a chip by name or by oid written as a number.
func (c *Config) Lookup(key string) (EEPROMConfig, bool) {
	for _, e := range c.EEPROMs {
		if e.Name == key {
			return e, true
		}
	}
	if n, err := strconv.ParseUint(key, 10, 8); err == nil {
		for _, e := range c.EEPROMs {
			if e.OID == uint8(n) {
				return e, true
			}
		}
	}
	return EEPROMConfig{}, false
}

// Default returns a configuration with a single 24C08 at 0x50 on bus 0.
func Default() *Config {
	config := &Config{
		EEPROMs: []EEPROMConfig{{Name: "eeprom0", Capacity: "24c08"}},
	}
	applyDefaults(config)
	return config
}
