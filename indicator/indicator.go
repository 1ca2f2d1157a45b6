package indicator

// Speed is a beep length in the reader's 10ms units. Zero means no beep.
type Speed byte

const (
	NoBeep Speed = 0
	Fast   Speed = 10
	Slow   Speed = 50
)

// Color is the state of the status light.
type Color int

const (
	Off Color = iota
	Red
	Green
)

func (c Color) String() string {
	switch c {
	case Red:
		return "red"
	case Green:
		return "green"
	default:
		return "off"
	}
}

// Sink is anything that can beep and show a colour: the reader itself,
// GPIO LEDs, a neopixel strip.
type Sink interface {
	// Beep starts a tone and returns without waiting for it to end.
	Beep(s Speed) error

	// Light sets the status light.
	Light(c Color) error

	// Release turns everything off and frees hardware.
	Release() error
}

// Config holds configuration for the auxiliary sinks. The reader's own
// beeper and LED are always used when a reader is present.
type Config struct {
	// GPIO pins (nil = not configured)
	GreenPin  *int `yaml:"green_pin"`
	RedPin    *int `yaml:"red_pin"`
	BuzzerPin *int `yaml:"buzzer_pin"`

	// "govattu" drives the Pi registers directly, "chip" uses the
	// gpio character device named by Chip.
	GPIODriver string `yaml:"gpio_driver"`
	Chip       string `yaml:"chip"`

	// Neopixel pipe path (empty = not configured)
	NeopixelPipe string `yaml:"neopixel_pipe"`
}

// New builds the sink set. primary may be nil when no reader LED exists.
// Returns a Multi whenever an auxiliary sink is configured.
func New(cfg Config, primary Sink) (Sink, error) {
	var sinks []Sink

	if cfg.GreenPin != nil || cfg.RedPin != nil || cfg.BuzzerPin != nil {
		var (
			s   Sink
			err error
		)
		switch cfg.GPIODriver {
		case "chip":
			s, err = NewChip(cfg.Chip, cfg.GreenPin, cfg.RedPin, cfg.BuzzerPin)
		default:
			s, err = NewGPIO(cfg.GreenPin, cfg.RedPin, cfg.BuzzerPin)
		}
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}

	if cfg.NeopixelPipe != "" {
		neo, err := NewNeopixel(cfg.NeopixelPipe)
		if err != nil {
			releaseAll(sinks)
			return nil, err
		}
		sinks = append(sinks, neo)
	}

	switch {
	case len(sinks) > 0:
		return NewMulti(primary, sinks...), nil
	case primary != nil:
		return primary, nil
	default:
		return &Noop{}, nil
	}
}

func releaseAll(sinks []Sink) {
	for _, s := range sinks {
		s.Release()
	}
}
