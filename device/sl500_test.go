package device

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePort struct {
	written bytes.Buffer
	replies bytes.Buffer
	baud    int
	closed  bool
}

func (f *fakePort) Read(p []byte) (int, error)  { return f.replies.Read(p) }
func (f *fakePort) Write(p []byte) (int, error) { return f.written.Write(p) }
func (f *fakePort) SetBaud(baud int) error      { f.baud = baud; return nil }
func (f *fakePort) Close() error                { f.closed = true; return nil }

// queue appends a reply frame; a reply is a request frame whose first data
// byte is the status.
func (f *fakePort) queue(cmd uint16, status byte, data ...byte) {
	f.replies.Write(encodeFrame(0, cmd, append([]byte{status}, data...)))
}

func newTestDevice() (*SL500, *fakePort) {
	p := &fakePort{}
	return New(p, 20*time.Millisecond), p
}

func TestEncodeFrame(t *testing.T) {
	got := encodeFrame(0, cmdLight, []byte{byte(LightGreen)})
	// AA BB len=6 | 00 00 07 01 02 | xor
	assert.Equal(t, []byte{0xAA, 0xBB, 0x06, 0x00, 0x00, 0x00, 0x07, 0x01, 0x02, 0x04}, got)
}

func TestEncodeFrameStuffsAA(t *testing.T) {
	got := encodeFrame(0, cmdBeep, []byte{0xAA})
	assert.Equal(t, []byte{0xAA, 0xBB, 0x06, 0x00, 0x00, 0x00, 0x06, 0x01, 0xAA, 0x00, 0xAD}, got)
}

func TestAnticollUID(t *testing.T) {
	d, p := newTestDevice()
	p.queue(cmdAnticoll, 0, 0x78, 0x56, 0x34, 0x12)

	uid, err := d.Anticoll()
	require.NoError(t, err)
	assert.Equal(t, uint32(0x12345678), uid)
	assert.Equal(t, encodeFrame(0, cmdAnticoll, nil), p.written.Bytes())
}

func TestUIDContainingAA(t *testing.T) {
	d, p := newTestDevice()
	p.queue(cmdAnticoll, 0, 0xAA, 0x01, 0x02, 0x03)

	uid, err := d.Anticoll()
	require.NoError(t, err)
	assert.Equal(t, uint32(0x030201AA), uid)
}

func TestRequestNoCard(t *testing.T) {
	d, p := newTestDevice()
	p.queue(cmdRequest, 1)

	err := d.Request()
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, uint16(cmdRequest), se.Cmd)
	assert.Equal(t, byte(1), se.Status)
}

func TestReadTimeout(t *testing.T) {
	d, _ := newTestDevice()
	err := d.Light(LightOff)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestChecksumMismatch(t *testing.T) {
	d, p := newTestDevice()
	frame := encodeFrame(0, cmdBeep, []byte{0})
	frame[len(frame)-1] ^= 0xFF
	p.replies.Write(frame)

	err := d.Beep(10)
	assert.ErrorIs(t, err, errChecksum)
}

func TestSkipsNoiseAndStaleReplies(t *testing.T) {
	d, p := newTestDevice()
	p.replies.Write([]byte{0x13, 0x37})
	p.queue(cmdLight, 0)
	p.queue(cmdGetModel, 0, []byte("SL500\x00\x00")...)

	model, err := d.Model()
	require.NoError(t, err)
	assert.Equal(t, "SL500", model)
}

func TestSetSpeed(t *testing.T) {
	d, p := newTestDevice()
	p.queue(cmdInitCom, 0)

	require.NoError(t, d.SetSpeed(115200))
	assert.Equal(t, 115200, p.baud)
	assert.Equal(t, encodeFrame(0, cmdInitCom, []byte{7}), p.written.Bytes())

	assert.Error(t, d.SetSpeed(12345))
}
