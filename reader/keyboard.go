package reader

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kenshaw/evdev"
	log "github.com/sirupsen/logrus"
)

// Keyboard implements CardPoller for USB keyboard-style RFID readers
// that output digits followed by Enter.
type Keyboard struct {
	device    *evdev.Evdev
	events    <-chan *evdev.EventEnvelope
	cancel    context.CancelFunc
	numDigits int  // expected number of digits (0 = any)
	isHex     bool // true for hex input, false for decimal
	format    string
	window    time.Duration
	strbuf    string // digits typed so far; survives across polls
}

// parseFormat understands "10h" (10 hex digits), "8d" (8 decimal) and a
// bare number, which is taken as hex.
func parseFormat(format string) (numDigits int, isHex bool, norm string) {
	if format == "" {
		format = "10h"
	}
	format = strings.ToLower(format)

	switch {
	case strings.HasSuffix(format, "h"):
		numDigits, _ = strconv.Atoi(strings.TrimSuffix(format, "h"))
		isHex = true
	case strings.HasSuffix(format, "d"):
		numDigits, _ = strconv.Atoi(strings.TrimSuffix(format, "d"))
	default:
		numDigits, _ = strconv.Atoi(format)
		isHex = true
	}
	return numDigits, isHex, format
}

// NewKeyboard opens the input device and starts listening to it.
func NewKeyboard(device, format string, window time.Duration) (*Keyboard, error) {
	dev, err := evdev.OpenFile(device)
	if err != nil {
		return nil, fmt.Errorf("open evdev %s: %w", device, err)
	}

	log.Printf("Opened keyboard device: %s", dev.Name())
	log.Printf("Vendor: 0x%04x, Product: 0x%04x", dev.ID().Vendor, dev.ID().Product)

	numDigits, isHex, format := parseFormat(format)
	log.Printf("Keyboard reader format: %s (%d digits)", format, numDigits)

	ctx, cancel := context.WithCancel(context.Background())
	return &Keyboard{
		device:    dev,
		events:    dev.Poll(ctx),
		cancel:    cancel,
		numDigits: numDigits,
		isHex:     isHex,
		format:    format,
		window:    window,
	}, nil
}

// Poll implements CardPoller.Poll. It waits up to the poll window for a
// complete line.
func (k *Keyboard) Poll(ctx context.Context) (uint32, error) {
	timer := time.NewTimer(k.window)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-timer.C:
			return 0, ErrNoCard
		case event := <-k.events:
			if event == nil {
				return 0, fmt.Errorf("keyboard device closed")
			}
			if _, ok := event.Type.(evdev.KeyType); !ok || event.Value != 1 {
				continue
			}
			if event.Type != evdev.KeyEnter {
				k.strbuf += evdev.KeyType(event.Code).String()
				continue
			}

			line := k.strbuf
			k.strbuf = ""
			if id, ok := k.parse(line); ok {
				return id, nil
			}
		}
	}
}

func (k *Keyboard) parse(line string) (uint32, bool) {
	if line == "" {
		return 0, false
	}
	if k.numDigits > 0 && len(line) != k.numDigits {
		log.Warnf("Bad badge: expected %d digits, got %d (%q)", k.numDigits, len(line), line)
		return 0, false
	}

	base := 10
	if k.isHex {
		base = 16
	}
	number, err := strconv.ParseUint(line, base, 64)
	if err != nil {
		log.Warnf("Bad badge line %q (base %d): %v", line, base, err)
		return 0, false
	}
	log.Debugf("Got %s string %s badge %d", k.format, line, number&0xffffffff)
	return uint32(number & 0xffffffff), true
}

// Close implements CardPoller.Close.
func (k *Keyboard) Close() error {
	k.cancel()
	if k.device == nil {
		return nil
	}
	return k.device.Close()
}
