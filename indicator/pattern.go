package indicator

import (
	"fmt"
	"time"
)

// Pattern names a fixed feedback sequence.
type Pattern int

const (
	InputAccepted Pattern = iota
	ServerFailure
	CheckInOutSuccess
	CheckInOutFailure
	RegistrationSuccess
	NoCardOnFile
	DeviceInvalid
)

var patternNames = map[Pattern]string{
	InputAccepted:       "input_accepted",
	ServerFailure:       "server_failure",
	CheckInOutSuccess:   "checkinout_success",
	CheckInOutFailure:   "checkinout_failure",
	RegistrationSuccess: "registration_success",
	NoCardOnFile:        "no_card_on_file",
	DeviceInvalid:       "device_invalid",
}

func (p Pattern) String() string {
	if s, ok := patternNames[p]; ok {
		return s
	}
	return fmt.Sprintf("pattern(%d)", int(p))
}

// Step is one pulse: optional beep, light colour, then a hold.
type Step struct {
	Beep  Speed
	Light Color
	Hold  time.Duration
}

func on(s Speed, c Color, ms int) Step {
	return Step{Beep: s, Light: c, Hold: time.Duration(ms) * time.Millisecond}
}

func off(ms int) Step {
	return Step{Light: Off, Hold: time.Duration(ms) * time.Millisecond}
}

// The three-pulse patterns end on OFF with no trailing hold.
var sequences = map[Pattern][]Step{
	InputAccepted:       {on(Fast, Green, 100), off(100), on(Fast, Green, 100), off(1000)},
	ServerFailure:       {on(Slow, Red, 300), off(0)},
	CheckInOutSuccess:   {on(Fast, Green, 300), off(0)},
	CheckInOutFailure:   {on(Slow, Red, 300), off(0)},
	RegistrationSuccess: {on(Fast, Green, 300), off(300), on(Fast, Green, 300), off(300), on(Fast, Green, 300), off(0)},
	NoCardOnFile:        {on(Slow, Red, 300), off(300), on(Slow, Red, 300), off(300), on(Slow, Red, 300), off(0)},
	DeviceInvalid:       {on(Slow, Red, 300), off(300), on(Slow, Red, 300), off(300), on(Slow, Red, 300), off(0)},
}

// Steps returns a copy of the pattern's sequence.
func Steps(p Pattern) []Step {
	return append([]Step(nil), sequences[p]...)
}

// Duration is the total time Signal blocks for p.
func Duration(p Pattern) time.Duration {
	var d time.Duration
	for _, s := range sequences[p] {
		d += s.Hold
	}
	return d
}

// Signaler plays patterns on a Sink.
type Signaler struct {
	sink  Sink
	sleep func(time.Duration)
}

// NewSignaler returns a Signaler that blocks with time.Sleep.
func NewSignaler(sink Sink) *Signaler {
	return &Signaler{sink: sink, sleep: time.Sleep}
}

// Signal plays p to completion. The first sink error aborts the sequence
// and is returned; it means the device link is down.
func (s *Signaler) Signal(p Pattern) error {
	steps, ok := sequences[p]
	if !ok {
		return fmt.Errorf("unknown %s", p)
	}
	for i, st := range steps {
		if st.Beep != NoBeep {
			if err := s.sink.Beep(st.Beep); err != nil {
				return fmt.Errorf("%s step %d beep: %w", p, i, err)
			}
		}
		if err := s.sink.Light(st.Light); err != nil {
			return fmt.Errorf("%s step %d light: %w", p, i, err)
		}
		if st.Hold > 0 {
			s.sleep(st.Hold)
		}
	}
	return nil
}
