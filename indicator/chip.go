package indicator

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// Chip implements Sink on the Linux GPIO character device, for boards
// that are not a Raspberry Pi.
type Chip struct {
	green  *gpiocdev.Line
	red    *gpiocdev.Line
	buzzer *gpiocdev.Line
	buzz   *buzzer
}

// NewChip requests the configured lines as outputs driven low.
func NewChip(chip string, greenPin, redPin, buzzerPin *int) (*Chip, error) {
	if chip == "" {
		chip = "gpiochip0"
	}

	c := &Chip{}
	var err error
	if c.green, err = requestOutput(chip, greenPin); err != nil {
		c.Release()
		return nil, err
	}
	if c.red, err = requestOutput(chip, redPin); err != nil {
		c.Release()
		return nil, err
	}
	if c.buzzer, err = requestOutput(chip, buzzerPin); err != nil {
		c.Release()
		return nil, err
	}
	if c.buzzer != nil {
		line := c.buzzer
		c.buzz = newBuzzer(
			func() error { return line.SetValue(1) },
			func() { line.SetValue(0) },
		)
	}
	return c, nil
}

func requestOutput(chip string, offset *int) (*gpiocdev.Line, error) {
	if offset == nil {
		return nil, nil
	}
	l, err := gpiocdev.RequestLine(chip, *offset, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, fmt.Errorf("request %s line %d: %w", chip, *offset, err)
	}
	return l, nil
}

// Beep implements Sink.Beep.
func (c *Chip) Beep(s Speed) error {
	if c.buzz == nil {
		return nil
	}
	if err := c.buzz.beep(s); err != nil {
		return fmt.Errorf("buzzer on: %w", err)
	}
	return nil
}

// Light implements Sink.Light.
func (c *Chip) Light(col Color) error {
	if err := setLine(c.green, col == Green); err != nil {
		return fmt.Errorf("green led: %w", err)
	}
	if err := setLine(c.red, col == Red); err != nil {
		return fmt.Errorf("red led: %w", err)
	}
	return nil
}

// Release implements Sink.Release.
func (c *Chip) Release() error {
	if c.buzz != nil {
		c.buzz.stop()
	}

	var lastErr error
	for _, l := range []*gpiocdev.Line{c.green, c.red, c.buzzer} {
		if l == nil {
			continue
		}
		l.SetValue(0)
		if err := l.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func setLine(l *gpiocdev.Line, high bool) error {
	if l == nil {
		return nil
	}
	v := 0
	if high {
		v = 1
	}
	return l.SetValue(v)
}
