package indicator

import "gocheckin/device"

// Lamp is the subset of the reader used for feedback.
type Lamp interface {
	Beep(units byte) error
	Light(c device.Color) error
}

// Device implements Sink using the reader's own buzzer and LED.
type Device struct {
	dev Lamp
}

// NewDevice wraps a reader. The reader stays owned by the caller.
func NewDevice(dev Lamp) *Device {
	return &Device{dev: dev}
}

// Beep implements Sink.Beep.
func (d *Device) Beep(s Speed) error {
	return d.dev.Beep(byte(s))
}

// Light implements Sink.Light.
func (d *Device) Light(c Color) error {
	switch c {
	case Red:
		return d.dev.Light(device.LightRed)
	case Green:
		return d.dev.Light(device.LightGreen)
	default:
		return d.dev.Light(device.LightOff)
	}
}

// Release implements Sink.Release. It only turns the LED off.
func (d *Device) Release() error {
	return d.dev.Light(device.LightOff)
}
