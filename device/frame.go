package device

import (
	"errors"
	"fmt"
	"io"
	"time"
)

const (
	head0 = 0xAA
	head1 = 0xBB
)

var (
	// ErrTimeout is returned when the reader does not answer in time.
	ErrTimeout = errors.New("device: read timeout")

	errChecksum = errors.New("device: checksum mismatch")
)

// reply is a decoded response frame.
type reply struct {
	devID  uint16
	cmd    uint16
	status byte
	data   []byte
}

// encodeFrame builds a request frame. The length counts the device id,
// command, data and checksum; stuffed bytes are not counted.
func encodeFrame(devID, cmd uint16, data []byte) []byte {
	body := make([]byte, 0, 4+len(data))
	body = append(body, byte(devID), byte(devID>>8), byte(cmd), byte(cmd>>8))
	body = append(body, data...)
	body = append(body, xor(body))

	n := len(body)
	out := make([]byte, 0, 4+2*n)
	out = append(out, head0, head1, byte(n), byte(n>>8))
	for _, b := range body {
		out = append(out, b)
		if b == head0 {
			out = append(out, 0x00)
		}
	}
	return out
}

func xor(b []byte) byte {
	var x byte
	for _, v := range b {
		x ^= v
	}
	return x
}

// frameReader pulls single bytes off a port whose Read may return
// (0, nil) or io.EOF on a read timeout.
type frameReader struct {
	r       io.Reader
	timeout time.Duration
	buf     [1]byte
}

func (f *frameReader) next() (byte, error) {
	deadline := time.Now().Add(f.timeout)
	for {
		n, err := f.r.Read(f.buf[:])
		if n == 1 {
			return f.buf[0], nil
		}
		if err != nil && err != io.EOF {
			return 0, err
		}
		if time.Now().After(deadline) {
			return 0, ErrTimeout
		}
	}
}

// unstuffed reads one logical body byte, dropping the 0x00 after 0xAA.
func (f *frameReader) unstuffed() (byte, error) {
	b, err := f.next()
	if err != nil {
		return 0, err
	}
	if b == head0 {
		if _, err := f.next(); err != nil {
			return 0, err
		}
	}
	return b, nil
}

func (f *frameReader) readFrame() (*reply, error) {
	// Sync on AA BB, discarding line noise.
	prev := byte(0)
	for {
		b, err := f.next()
		if err != nil {
			return nil, err
		}
		if prev == head0 && b == head1 {
			break
		}
		prev = b
	}

	lo, err := f.next()
	if err != nil {
		return nil, err
	}
	hi, err := f.next()
	if err != nil {
		return nil, err
	}
	n := int(lo) | int(hi)<<8
	if n < 6 {
		return nil, fmt.Errorf("device: short frame length %d", n)
	}

	body := make([]byte, n)
	for i := range body {
		if body[i], err = f.unstuffed(); err != nil {
			return nil, err
		}
	}
	if xor(body[:n-1]) != body[n-1] {
		return nil, errChecksum
	}

	return &reply{
		devID:  uint16(body[0]) | uint16(body[1])<<8,
		cmd:    uint16(body[2]) | uint16(body[3])<<8,
		status: body[4],
		data:   body[5 : n-1],
	}, nil
}
