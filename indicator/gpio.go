package indicator

import (
	"fmt"

	"github.com/hjkoskel/govattu"
)

// GPIO implements Sink using discrete LED and buzzer pins on a Raspberry Pi.
type GPIO struct {
	hw        govattu.Vattu
	greenPin  *uint8
	redPin    *uint8
	buzzerPin *uint8
	buzz      *buzzer
}

func pin8(p *int) *uint8 {
	if p == nil {
		return nil
	}
	v := uint8(*p)
	return &v
}

// NewGPIO creates a new GPIO-based sink.
func NewGPIO(greenPin, redPin, buzzerPin *int) (*GPIO, error) {
	hw, err := govattu.Open()
	if err != nil {
		return nil, fmt.Errorf("open gpio: %w", err)
	}

	g := &GPIO{
		hw:        hw,
		greenPin:  pin8(greenPin),
		redPin:    pin8(redPin),
		buzzerPin: pin8(buzzerPin),
	}

	// Initialize all pins as outputs, start off
	for _, p := range []*uint8{g.greenPin, g.redPin, g.buzzerPin} {
		if p != nil {
			hw.PinMode(*p, govattu.ALToutput)
			hw.PinClear(*p)
		}
	}

	if g.buzzerPin != nil {
		pin := *g.buzzerPin
		g.buzz = newBuzzer(
			func() error { hw.PinSet(pin); return nil },
			func() { hw.PinClear(pin) },
		)
	}

	return g, nil
}

// Beep implements Sink.Beep.
func (g *GPIO) Beep(s Speed) error {
	if g.buzz == nil {
		return nil
	}
	return g.buzz.beep(s)
}

// Light implements Sink.Light.
func (g *GPIO) Light(c Color) error {
	g.set(g.greenPin, c == Green)
	g.set(g.redPin, c == Red)
	return nil
}

// Release implements Sink.Release.
func (g *GPIO) Release() error {
	if g.buzz != nil {
		g.buzz.stop()
	}
	g.set(g.greenPin, false)
	g.set(g.redPin, false)
	return g.hw.Close()
}

func (g *GPIO) set(pin *uint8, high bool) {
	if pin == nil {
		return
	}
	if high {
		g.hw.PinSet(*pin)
	} else {
		g.hw.PinClear(*pin)
	}
}
