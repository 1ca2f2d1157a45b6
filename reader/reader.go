package reader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gocheckin/device"
)

// ErrNoCard means nothing was presented during this poll. It is routine.
var ErrNoCard = errors.New("no card")

// CardPoller is the interface for all card reader implementations.
type CardPoller interface {
	// Poll makes one detection attempt. It returns the card identifier,
	// ErrNoCard, or a wrapped link error.
	Poll(ctx context.Context) (uint32, error)

	// Close releases any resources held by the poller.
	Close() error
}

// Config holds configuration for poller implementations.
type Config struct {
	Type   string        `yaml:"type"`   // "sl500" (default), "keyboard", "wiegand", "pipe"
	Device string        `yaml:"device"` // input device, serial port or FIFO path
	Baud   int           `yaml:"baud"`   // baud rate for wiegand readers
	Format string        `yaml:"format"` // keyboard digit format, e.g. "10h"
	Window time.Duration `yaml:"window"` // how long keyboard/wiegand/pipe wait per poll
}

// New creates a CardPoller. dev is the SL500 handle and may be nil for
// reader types that do not use it.
func New(cfg Config, dev *device.SL500) (CardPoller, error) {
	if cfg.Window == 0 {
		cfg.Window = 500 * time.Millisecond
	}
	switch cfg.Type {
	case "", "sl500":
		if dev == nil {
			return nil, fmt.Errorf("sl500 reader needs device.port")
		}
		return NewSL500(dev), nil
	case "keyboard", "10h-kbd":
		return NewKeyboard(cfg.Device, cfg.Format, cfg.Window)
	case "wiegand":
		return NewWiegand(cfg.Device, cfg.Baud, cfg.Window)
	case "pipe":
		return NewPipe(cfg.Device, cfg.Window)
	default:
		return nil, fmt.Errorf("unknown reader type %q", cfg.Type)
	}
}
