package protocol

import (
	"bytes"
	"errors"
)

// ErrFrameTooLong is returned when a payload does not fit in one frame.
var ErrFrameTooLong = errors.New("message too long")

// Decoder splits a byte stream into frames. After a framing or CRC error
// it discards input up to the next sync byte.
type Decoder struct {
	// Dest, when non-zero, is the required value of the sequence high bits.
	Dest uint8

	// OnResync is called when the decoder regains sync.
	OnResync func()

	lost bool
}

// Synchronized reports whether the decoder is aligned on a frame boundary.
func (d *Decoder) Synchronized() bool {
	return !d.lost
}

// Reset returns the decoder to the synchronized state.
func (d *Decoder) Reset() {
	d.lost = false
}

// Decode calls fn for every complete, valid frame in data and returns the
// number of bytes consumed. A trailing partial frame is left unconsumed.
// Message payloads alias data.
func (d *Decoder) Decode(data []byte, fn func(Message)) int {
	total := len(data)

	for len(data) > 0 {
		if d.lost {
			i := bytes.IndexByte(data, MessageValueSync)
			if i < 0 {
				data = data[len(data):]
				break
			}
			data = data[i+1:]
			d.lost = false
			if d.OnResync != nil {
				d.OnResync()
			}
			continue
		}

		if data[0] == MessageValueSync {
			data = data[1:]
			continue
		}
		if len(data) < MessageLengthMin {
			break
		}

		n := int(data[MessagePositionLen])
		if n < MessageLengthMin || n > MessageLengthMax {
			d.lost = true
			continue
		}
		seq := data[MessagePositionSeq]
		if d.Dest != 0 && seq&^MessageSeqMask != d.Dest {
			d.lost = true
			continue
		}
		if len(data) < n {
			break
		}
		if data[n-MessageTrailerSync] != MessageValueSync {
			d.lost = true
			continue
		}

		body := data[:n-MessageTrailerSize]
		crc := CRC16(body)
		if crcTrailer(crc) != [2]byte(data[n-MessageTrailerCRC : n-MessageTrailerSync]) {
			d.lost = true
			continue
		}

		msg := Message{
			Length:   data[MessagePositionLen],
			Sequence: seq,
			Payload:  body[MessageHeaderSize:],
			CRC:      crc,
		}
		data = data[n:]
		fn(msg)
	}

	return total - len(data)
}

// EncodeFrame appends one frame to out. body writes the payload. Nothing
// is written when the frame would exceed MessageLengthMax.
func EncodeFrame(out OutputBuffer, seq uint8, body func(OutputBuffer)) error {
	var s ScratchOutput
	s.Output([]byte{0, seq})
	if body != nil {
		body(&s)
	}

	n := s.CurPosition() + MessageTrailerSize
	if s.Overflow() || n > MessageLengthMax {
		return ErrFrameTooLong
	}
	s.Update(MessagePositionLen, uint8(n))

	trailer := crcTrailer(CRC16(s.Result()))
	s.Output([]byte{trailer[0], trailer[1], MessageValueSync})
	out.Output(s.Result())
	return nil
}
