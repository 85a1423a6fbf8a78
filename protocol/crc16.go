package protocol

// Frames carry CRC-16/MCRF4XX: the reflected CCITT polynomial, 0xFFFF
// initial value, no final xor.
const (
	crcPolyReflected = 0x8408
	crcInit          = 0xFFFF
)

var crcTable = func() (t [256]uint16) {
	for i := range t {
		c := uint16(i)
		for bit := 0; bit < 8; bit++ {
			if c&1 != 0 {
				c = c>>1 ^ crcPolyReflected
			} else {
				c >>= 1
			}
		}
		t[i] = c
	}
	return t
}()

// UpdateCRC16 continues crc over data, so a frame can be checksummed
// piecewise.
func UpdateCRC16(crc uint16, data []byte) uint16 {
	for _, b := range data {
		crc = crc>>8 ^ crcTable[uint8(crc)^b]
	}
	return crc
}

// CRC16 returns the checksum of a whole frame body (length, sequence and
// payload).
func CRC16(data []byte) uint16 {
	return UpdateCRC16(crcInit, data)
}

// crcTrailer returns the checksum as transmitted, high byte first.
func crcTrailer(crc uint16) [2]byte {
	return [2]byte{uint8(crc >> 8), uint8(crc)}
}
