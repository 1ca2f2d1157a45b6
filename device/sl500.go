package device

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// SL500 command codes.
const (
	cmdInitCom  = 0x0101
	cmdGetModel = 0x0104
	cmdBeep     = 0x0106
	cmdLight    = 0x0107
	cmdRequest  = 0x0201
	cmdAnticoll = 0x0202

	requestAll = 0x52
)

// Color is an LED state understood by the reader.
type Color byte

const (
	LightOff    Color = 0
	LightRed    Color = 1
	LightGreen  Color = 2
	LightYellow Color = 3
)

// Speeds the reader accepts for InitCom.
var baudCodes = map[int]byte{
	4800:   0,
	9600:   1,
	14400:  2,
	19200:  3,
	28800:  4,
	38400:  5,
	57600:  6,
	115200: 7,
}

// StatusError is a reply with a non-zero status byte.
type StatusError struct {
	Cmd    uint16
	Status byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("device: command 0x%04x status %d", e.Cmd, e.Status)
}

// Config holds serial settings for the reader.
type Config struct {
	Port     string        `yaml:"port"`      // e.g. "/dev/ttyUSB0"
	Driver   string        `yaml:"driver"`    // "tarm" (default) or "bugst"
	Baud     int           `yaml:"baud"`      // power-on speed, restored at shutdown
	FastBaud int           `yaml:"fast_baud"` // speed used while running
	Timeout  time.Duration `yaml:"timeout"`   // per-reply read timeout
}

// SL500 talks the SL500 frame protocol. Calls are serialized; one command
// is in flight at a time.
type SL500 struct {
	mu      sync.Mutex
	port    Port
	devID   uint16
	timeout time.Duration
}

// Open opens the configured port at the power-on speed.
func Open(cfg Config) (*SL500, error) {
	if cfg.Baud == 0 {
		cfg.Baud = 19200
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = time.Second
	}
	p, err := OpenPort(cfg.Driver, cfg.Port, cfg.Baud, cfg.Timeout)
	if err != nil {
		return nil, err
	}
	log.Printf("Opened reader on %s at %d baud", cfg.Port, cfg.Baud)
	return New(p, cfg.Timeout), nil
}

// New wraps an already open port.
func New(p Port, timeout time.Duration) *SL500 {
	return &SL500{port: p, timeout: timeout}
}

func (d *SL500) exchange(cmd uint16, data []byte) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.port.Write(encodeFrame(d.devID, cmd, data)); err != nil {
		return nil, fmt.Errorf("write command 0x%04x: %w", cmd, err)
	}

	fr := &frameReader{r: d.port, timeout: d.timeout}
	for {
		rep, err := fr.readFrame()
		if err != nil {
			return nil, fmt.Errorf("read reply 0x%04x: %w", cmd, err)
		}
		if rep.cmd != cmd {
			// Stale reply from an earlier timed-out command.
			log.Debugf("Skipping reply for 0x%04x while waiting for 0x%04x", rep.cmd, cmd)
			continue
		}
		if rep.status != 0 {
			return nil, &StatusError{Cmd: cmd, Status: rep.status}
		}
		return rep.data, nil
	}
}

// InitCom tells the reader to switch line speed. The reply is sent at the
// old speed; the caller switches the local port afterwards.
func (d *SL500) InitCom(baud int) error {
	code, ok := baudCodes[baud]
	if !ok {
		return fmt.Errorf("unsupported baud %d", baud)
	}
	_, err := d.exchange(cmdInitCom, []byte{code})
	return err
}

// SetSpeed switches both ends of the link to baud.
func (d *SL500) SetSpeed(baud int) error {
	if err := d.InitCom(baud); err != nil {
		return fmt.Errorf("init com: %w", err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.port.SetBaud(baud)
}

// Model returns the reader's model string.
func (d *SL500) Model() (string, error) {
	data, err := d.exchange(cmdGetModel, nil)
	if err != nil {
		return "", err
	}
	return string(bytes.TrimRight(data, "\x00")), nil
}

// Beep sounds the buzzer for units*10ms. The reader times the tone itself.
func (d *SL500) Beep(units byte) error {
	_, err := d.exchange(cmdBeep, []byte{units})
	return err
}

// Light sets the LED.
func (d *SL500) Light(c Color) error {
	_, err := d.exchange(cmdLight, []byte{byte(c)})
	return err
}

// Request asks for any card in the field. A *StatusError means none answered.
func (d *SL500) Request() error {
	_, err := d.exchange(cmdRequest, []byte{requestAll})
	return err
}

// Anticoll selects one card and returns its 4-byte UID.
func (d *SL500) Anticoll() (uint32, error) {
	data, err := d.exchange(cmdAnticoll, nil)
	if err != nil {
		return 0, err
	}
	if len(data) < 4 {
		return 0, fmt.Errorf("anticoll: short uid (%d bytes)", len(data))
	}
	return binary.LittleEndian.Uint32(data[:4]), nil
}

// Close closes the port.
func (d *SL500) Close() error {
	if d.port == nil {
		return nil
	}
	return d.port.Close()
}
