package protocol

import "sync/atomic"

// CommandHandler decodes the arguments of cmdID from data and advances it.
type CommandHandler func(cmdID uint16, data *[]byte) error

// Transport is the firmware end of the link: it validates incoming frames,
// dispatches the commands they carry and acknowledges every frame with the
// next expected sequence.
type Transport struct {
	nextSequence  uint32 // expected host sequence, 0x10-0x1F
	decoder       Decoder
	output        OutputBuffer
	handler       CommandHandler
	resetCallback func()
	flushCallback func()
}

func NewTransport(output OutputBuffer, handler CommandHandler) *Transport {
	t := &Transport{
		nextSequence: MessageDest,
		output:       output,
		handler:      handler,
	}
	t.decoder.Dest = MessageDest
	t.decoder.OnResync = t.encodeAckNak
	return t
}

// Receive processes what input holds and pops the consumed bytes.
func (t *Transport) Receive(input InputBuffer) {
	n := t.decoder.Decode(input.Data(), t.receiveFrame)
	if n > 0 {
		input.Pop(n)
	}
}

func (t *Transport) receiveFrame(msg Message) {
	seq := msg.Sequence
	expected := uint8(atomic.LoadUint32(&t.nextSequence))

	// the host restarts its sequence after reconnecting
	if seq == MessageDest && expected != MessageDest {
		atomic.StoreUint32(&t.nextSequence, MessageDest)
		expected = MessageDest
		if t.resetCallback != nil {
			t.resetCallback()
		}
	}

	if seq == expected {
		atomic.StoreUint32(&t.nextSequence, uint32(NextSequence(seq)))
		_ = t.parseFrame(msg.Payload)
	}

	// a stale sequence gets the ACK too, which acts as a NAK
	t.encodeAckNak()
}

func (t *Transport) parseFrame(frame []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			t.decoder.lost = true
		}
	}()

	for len(frame) > 0 {
		cmdID, err := DecodeVLQUint(&frame)
		if err != nil {
			t.decoder.lost = true
			return err
		}
		if t.handler != nil {
			if err := t.handler(uint16(cmdID), &frame); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *Transport) encodeAckNak() {
	seq := uint8(atomic.LoadUint32(&t.nextSequence))
	_ = EncodeFrame(t.output, seq, nil)

	// the host waits for the ACK before it looks at responses
	if t.flushCallback != nil {
		t.flushCallback()
	}
}

// EncodeFrame queues a response frame. Responses carry the current
// sequence, like the ACK that precedes them.
func (t *Transport) EncodeFrame(body func(output OutputBuffer)) error {
	seq := uint8(atomic.LoadUint32(&t.nextSequence))
	return EncodeFrame(t.output, seq, body)
}

// SendCommand queues a response message with id cmdID.
func (t *Transport) SendCommand(cmdID uint16, args func(output OutputBuffer)) error {
	return t.EncodeFrame(func(output OutputBuffer) {
		EncodeVLQUint(output, uint32(cmdID))
		if args != nil {
			args(output)
		}
	})
}

// Reset drops sequence state, e.g. after the USB link was reopened.
func (t *Transport) Reset() {
	t.decoder.Reset()
	atomic.StoreUint32(&t.nextSequence, MessageDest)
	if t.resetCallback != nil {
		t.resetCallback()
	}
}

func (t *Transport) SetResetCallback(callback func()) {
	t.resetCallback = callback
}

func (t *Transport) SetFlushCallback(callback func()) {
	t.flushCallback = callback
}

// Synchronized reports whether the receive side is frame aligned.
func (t *Transport) Synchronized() bool {
	return t.decoder.Synchronized()
}
