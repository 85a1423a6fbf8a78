package protocol

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// ErrTransportClosed is returned by calls waiting on a closed transport.
var ErrTransportClosed = errors.New("transport stopped")

// ResponseHandler is called from the read loop for every response frame.
type ResponseHandler func(cmdID uint16, data *[]byte) error

// HostTransport is the host end of the link: it sends one command frame at
// a time, waits for the ACK and queues response frames.
type HostTransport struct {
	port io.ReadWriteCloser

	currentSeq uint32 // sequence of the next command, 0x10-0x1F

	inputBuffer *FifoBuffer
	decoder     Decoder

	ackChan      chan uint8
	responseChan chan *Message

	handlerMutex    sync.Mutex
	responseHandler ResponseHandler

	sendMutex sync.Mutex

	closeOnce sync.Once
	stopChan  chan struct{}
	doneChan  chan struct{}
}

func NewHostTransport(port io.ReadWriteCloser) *HostTransport {
	t := &HostTransport{
		port:         port,
		currentSeq:   MessageDest,
		inputBuffer:  NewFifoBuffer(512),
		ackChan:      make(chan uint8, 4),
		responseChan: make(chan *Message, 16),
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
	t.decoder.Dest = MessageDest

	go t.readLoop()

	return t
}

// SendCommand sends a command and waits for its ACK.
func (t *HostTransport) SendCommand(cmdID uint16, args func(output OutputBuffer)) error {
	return t.SendCommandWithTimeout(cmdID, args, 2*time.Second)
}

func (t *HostTransport) SendCommandWithTimeout(cmdID uint16, args func(output OutputBuffer), timeout time.Duration) error {
	t.sendMutex.Lock()
	defer t.sendMutex.Unlock()

	seq := uint8(atomic.LoadUint32(&t.currentSeq))
	msg, err := buildCommandMessage(seq, cmdID, args)
	if err != nil {
		return fmt.Errorf("failed to build command: %w", err)
	}

	if err := t.writeMessage(msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	if err := t.waitForAck(NextSequence(seq), timeout); err != nil {
		return fmt.Errorf("no ACK for sequence 0x%02x: %w", seq, err)
	}

	atomic.StoreUint32(&t.currentSeq, uint32(NextSequence(seq)))
	return nil
}

func buildCommandMessage(seq uint8, cmdID uint16, args func(output OutputBuffer)) ([]byte, error) {
	out := NewScratchOutput()
	err := EncodeFrame(out, seq, func(output OutputBuffer) {
		EncodeVLQUint(output, uint32(cmdID))
		if args != nil {
			args(output)
		}
	})
	if err != nil {
		return nil, err
	}

	msg := make([]byte, len(out.Result()))
	copy(msg, out.Result())
	return msg, nil
}

func (t *HostTransport) writeMessage(msg []byte) error {
	n, err := t.port.Write(msg)
	if err != nil {
		return err
	}
	if n != len(msg) {
		return fmt.Errorf("incomplete write: %d/%d bytes", n, len(msg))
	}
	return nil
}

// waitForAck waits for an ACK naming want, the sequence the firmware
// expects next. ACKs for other sequences are skipped.
func (t *HostTransport) waitForAck(want uint8, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	got := -1
	for {
		select {
		case seq := <-t.ackChan:
			if seq == want {
				return nil
			}
			got = int(seq)

		case <-timer.C:
			if got >= 0 {
				return fmt.Errorf("sequence mismatch: expected 0x%02x, got 0x%02x", want, got)
			}
			return fmt.Errorf("ACK timeout after %v", timeout)

		case <-t.stopChan:
			return ErrTransportClosed
		}
	}
}

// ReceiveResponse returns the oldest queued response frame.
func (t *HostTransport) ReceiveResponse(timeout time.Duration) (*Message, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-t.responseChan:
		return resp, nil
	case <-timer.C:
		return nil, fmt.Errorf("response timeout after %v", timeout)
	case <-t.stopChan:
		return nil, ErrTransportClosed
	}
}

func (t *HostTransport) SetResponseHandler(handler ResponseHandler) {
	t.handlerMutex.Lock()
	t.responseHandler = handler
	t.handlerMutex.Unlock()
}

func (t *HostTransport) readLoop() {
	defer close(t.doneChan)

	buffer := make([]byte, 256)

	for {
		select {
		case <-t.stopChan:
			return
		default:
		}

		n, err := t.port.Read(buffer)
		if n > 0 {
			t.feed(buffer[:n])
		}
		if err != nil {
			if err == io.EOF || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, os.ErrClosed) {
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func (t *HostTransport) feed(data []byte) {
	for len(data) > 0 {
		n := t.inputBuffer.Write(data)
		data = data[n:]

		consumed := t.decoder.Decode(t.inputBuffer.Data(), t.dispatchMessage)
		t.inputBuffer.Pop(consumed)

		if n == 0 && consumed == 0 {
			// a full buffer with no frame in it is garbage
			t.inputBuffer.Reset()
			t.decoder.lost = true
		}
	}
}

func (t *HostTransport) dispatchMessage(msg Message) {
	if len(msg.Payload) == 0 {
		select {
		case t.ackChan <- msg.Sequence:
		default:
			// stale ACKs nobody waited for
			select {
			case <-t.ackChan:
			default:
			}
			t.ackChan <- msg.Sequence
		}
		return
	}

	payload := make([]byte, len(msg.Payload))
	copy(payload, msg.Payload)
	msg.Payload = payload

	t.handlerMutex.Lock()
	handler := t.responseHandler
	t.handlerMutex.Unlock()
	if handler != nil {
		data := payload
		if cmdID, err := DecodeVLQUint(&data); err == nil {
			_ = handler(uint16(cmdID), &data)
		}
	}

	select {
	case t.responseChan <- &msg:
	default:
		// drop the oldest
		select {
		case <-t.responseChan:
		default:
		}
		t.responseChan <- &msg
	}
}

// Close stops the read loop and closes the port. Closing the port first
// unblocks a Read in progress.
func (t *HostTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.stopChan)
		if t.port != nil {
			err = t.port.Close()
		}
		<-t.doneChan
	})
	return err
}

// Reset drops queued frames and restarts the sequence at 0x10.
func (t *HostTransport) Reset() {
	t.sendMutex.Lock()
	defer t.sendMutex.Unlock()

	atomic.StoreUint32(&t.currentSeq, MessageDest)
	for len(t.ackChan) > 0 {
		<-t.ackChan
	}
	for len(t.responseChan) > 0 {
		<-t.responseChan
	}
}

// Sequence returns the sequence the next command will carry.
func (t *HostTransport) Sequence() uint8 {
	return uint8(atomic.LoadUint32(&t.currentSeq))
}
