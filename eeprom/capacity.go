package eeprom

import (
	"strconv"
	"strings"
)

// Capacity is the storage size class of a 24CXX device in Kbit.
type Capacity uint16

// Supported capacity classes, named after the common part numbers.
const (
	AT24C01  Capacity = 1
	AT24C02  Capacity = 2
	AT24C04  Capacity = 4
	AT24C08  Capacity = 8
	AT24C16  Capacity = 16
	AT24C32  Capacity = 32
	AT24C64  Capacity = 64
	AT24C128 Capacity = 128
	AT24C256 Capacity = 256
	AT24C512 Capacity = 512
	AT24CM01 Capacity = 1024
)

// Scheme describes how a capacity class is addressed on the bus.
type Scheme struct {
	// PageSize is the number of bytes one write transaction may cover.
	PageSize int

	// SelectBits is the number of high memory-address bits carried in the
	// low bits of the device select address.
	SelectBits uint8

	// TwoByteAddress is set when the memory address is sent as two bytes
	// (high first) instead of one.
	TwoByteAddress bool

	// Size is the total storage in bytes.
	Size int
}

// addressWindow is the span reachable with 16-bit offsets.
const addressWindow = 1 << 16

// Addressable returns how many bytes can be reached from offset zero.
func (s Scheme) Addressable() int {
	if s.Size > addressWindow {
		return addressWindow
	}
	return s.Size
}

var schemes = [...]struct {
	capacity Capacity
	scheme   Scheme
}{
	{AT24C01, Scheme{PageSize: 8, Size: 128}},
	{AT24C02, Scheme{PageSize: 8, Size: 256}},
	{AT24C04, Scheme{PageSize: 16, SelectBits: 1, Size: 512}},
	{AT24C08, Scheme{PageSize: 16, SelectBits: 2, Size: 1024}},
	{AT24C16, Scheme{PageSize: 16, SelectBits: 3, Size: 2048}},
	{AT24C32, Scheme{PageSize: 32, TwoByteAddress: true, Size: 4096}},
	{AT24C64, Scheme{PageSize: 32, TwoByteAddress: true, Size: 8192}},
	{AT24C128, Scheme{PageSize: 64, TwoByteAddress: true, Size: 16384}},
	{AT24C256, Scheme{PageSize: 64, TwoByteAddress: true, Size: 32768}},
	{AT24C512, Scheme{PageSize: 128, TwoByteAddress: true, Size: 65536}},
	{AT24CM01, Scheme{PageSize: 256, TwoByteAddress: true, Size: 131072}},
}

// Scheme returns the addressing scheme of c. ok is false for values that
// are not a supported capacity class.
func (c Capacity) Scheme() (s Scheme, ok bool) {
	for _, e := range schemes {
		if e.capacity == c {
			return e.scheme, true
		}
	}
	return Scheme{}, false
}

// Valid reports whether c is a supported capacity class.
func (c Capacity) Valid() bool {
	_, ok := c.Scheme()
	return ok
}

func (c Capacity) String() string {
	if c >= 1024 && c%1024 == 0 {
		return strconv.Itoa(int(c/1024)) + "Mbit"
	}
	return strconv.Itoa(int(c)) + "Kbit"
}

// Capacities lists every supported class in ascending order.
func Capacities() []Capacity {
	out := make([]Capacity, len(schemes))
	for i, e := range schemes {
		out[i] = e.capacity
	}
	return out
}

// ParseCapacity accepts a Kbit count ("8", "8k", "8kbit"), megabit
// notation ("1M", "1Mbit") or a part number ("24c08", "AT24C256", "24M01").
func ParseCapacity(s string) (Capacity, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.TrimPrefix(v, "at")

	var kbit int
	var err error

	switch {
	case strings.HasPrefix(v, "24cm"), strings.HasPrefix(v, "24m"):
		v = strings.TrimPrefix(strings.TrimPrefix(v, "24cm"), "24m")
		kbit, err = strconv.Atoi(v)
		kbit *= 1024
	case strings.HasPrefix(v, "24c"):
		kbit, err = strconv.Atoi(strings.TrimPrefix(v, "24c"))
	case strings.HasSuffix(v, "mbit"), strings.HasSuffix(v, "m"):
		kbit, err = strconv.Atoi(strings.TrimSuffix(strings.TrimSuffix(v, "mbit"), "m"))
		kbit *= 1024
	default:
		kbit, err = strconv.Atoi(strings.TrimSuffix(strings.TrimSuffix(v, "kbit"), "k"))
	}

	if err != nil || kbit <= 0 || kbit > 0xFFFF || !Capacity(kbit).Valid() {
		return 0, ErrUnsupportedCapacity
	}
	return Capacity(kbit), nil
}
