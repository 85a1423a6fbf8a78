package core

import (
	"sort"
	"sync"
)

// Enumeration maps value names to their wire numbers by position.
type Enumeration struct {
	Name   string
	Values []string
}

// Dictionary is the JSON data dictionary the host fetches with identify.
// It is built once after all commands are registered.
type Dictionary struct {
	mu            sync.RWMutex
	constants     map[string]interface{}
	enumerations  map[string]*Enumeration
	commandReg    *CommandRegistry
	version       string
	buildVersions string
	cached        []byte
}

func NewDictionary(cmdReg *CommandRegistry, version string) *Dictionary {
	return &Dictionary{
		constants:     make(map[string]interface{}),
		enumerations:  make(map[string]*Enumeration),
		commandReg:    cmdReg,
		version:       version,
		buildVersions: "go",
	}
}

// AddConstant adds a string or integer constant. Adding invalidates the
// cached dictionary.
func (d *Dictionary) AddConstant(name string, value interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.constants[name] = value
	d.cached = nil
}

func (d *Dictionary) AddEnumeration(name string, values []string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	valuesCopy := make([]string, len(values))
	copy(valuesCopy, values)
	d.enumerations[name] = &Enumeration{Name: name, Values: valuesCopy}
	d.cached = nil
}

func (d *Dictionary) SetBuildVersions(versions string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.buildVersions = versions
	d.cached = nil
}

// Generate returns the dictionary JSON, building it on first use.
func (d *Dictionary) Generate() []byte {
	d.mu.RLock()
	cached := d.cached
	d.mu.RUnlock()
	if cached != nil {
		return cached
	}

	// registry lock is taken before ours, never inside it
	commands := d.commandReg.Commands()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cached == nil {
		d.cached = d.buildJSON(commands)
	}
	return d.cached
}

// buildJSON writes the dictionary by hand; encoding/json does not fit the
// firmware image. Caller holds d.mu.
func (d *Dictionary) buildJSON(commands []*Command) []byte {
	result := make([]byte, 0, 1024)

	result = append(result, `{"version":"`...)
	result = append(result, d.version...)
	result = append(result, `","build_versions":"`...)
	result = append(result, d.buildVersions...)
	result = append(result, `","config":{`...)

	names := make([]string, 0, len(d.constants))
	for name := range d.constants {
		names = append(names, name)
	}
	sort.Strings(names)
	for i, name := range names {
		if i > 0 {
			result = append(result, ',')
		}
		result = appendKey(result, name)
		if s, ok := d.constants[name].(string); ok {
			result = append(result, '"')
			result = append(result, s...)
			result = append(result, '"')
		} else {
			result = append(result, valueToString(d.constants[name])...)
		}
	}

	result = append(result, `},"commands":{`...)
	result = appendMessages(result, commands, true)
	result = append(result, `},"responses":{`...)
	result = appendMessages(result, commands, false)
	result = append(result, '}')

	if len(d.enumerations) > 0 {
		result = append(result, `,"enumerations":{`...)

		names = names[:0]
		for name := range d.enumerations {
			names = append(names, name)
		}
		sort.Strings(names)

		for i, name := range names {
			if i > 0 {
				result = append(result, ',')
			}
			result = appendKey(result, name)
			result = append(result, '{')
			first := true
			for n, value := range d.enumerations[name].Values {
				if value == "" {
					continue
				}
				if !first {
					result = append(result, ',')
				}
				result = appendKey(result, value)
				result = append(result, itoa(n)...)
				first = false
			}
			result = append(result, '}')
		}
		result = append(result, '}')
	}

	return append(result, '}')
}

func appendKey(b []byte, key string) []byte {
	b = append(b, '"')
	b = append(b, key...)
	return append(b, `":`...)
}

func appendMessages(b []byte, commands []*Command, handlers bool) []byte {
	first := true
	for _, cmd := range commands {
		if (cmd.Handler != nil) != handlers {
			continue
		}
		if !first {
			b = append(b, ',')
		}
		b = appendKey(b, cmd.Signature())
		b = append(b, utoa(uint32(cmd.ID))...)
		first = false
	}
	return b
}

// GetChunk returns a copy of up to count dictionary bytes at offset. An
// offset at or past the end yields an empty chunk, which tells the host
// the transfer is complete.
func (d *Dictionary) GetChunk(offset uint32, count uint8) []byte {
	data := d.Generate()
	if offset >= uint32(len(data)) {
		return []byte{}
	}

	end := offset + uint32(count)
	if end > uint32(len(data)) {
		end = uint32(len(data))
	}

	chunk := make([]byte, end-offset)
	copy(chunk, data[offset:end])
	return chunk
}
