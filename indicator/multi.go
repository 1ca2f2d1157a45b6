package indicator

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

// Multi drives the reader's own sink plus any auxiliary sinks. Only the
// primary sink's errors are returned; auxiliary failures are logged.
type Multi struct {
	primary Sink
	aux     []Sink
}

// NewMulti returns a Multi. primary may be nil.
func NewMulti(primary Sink, aux ...Sink) *Multi {
	return &Multi{primary: primary, aux: aux}
}

// Beep implements Sink.Beep.
func (m *Multi) Beep(s Speed) error {
	return m.each("beep", func(sk Sink) error { return sk.Beep(s) })
}

// Light implements Sink.Light.
func (m *Multi) Light(c Color) error {
	return m.each("light", func(sk Sink) error { return sk.Light(c) })
}

// Release implements Sink.Release.
func (m *Multi) Release() error {
	return m.each("release", Sink.Release)
}

func (m *Multi) each(op string, f func(Sink) error) error {
	var err error
	if m.primary != nil {
		err = f(m.primary)
	}
	for _, sk := range m.aux {
		if auxErr := f(sk); auxErr != nil {
			log.WithField("sink", fmt.Sprintf("%T", sk)).Warnf("Auxiliary %s: %v", op, auxErr)
		}
	}
	return err
}
