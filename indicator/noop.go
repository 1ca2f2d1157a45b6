package indicator

// Noop implements Sink but does nothing.
// Used when neither a reader nor any auxiliary sink is configured.
type Noop struct{}

// Beep implements Sink.Beep.
func (n *Noop) Beep(s Speed) error { return nil }

// Light implements Sink.Light.
func (n *Noop) Light(c Color) error { return nil }

// Release implements Sink.Release.
func (n *Noop) Release() error {
	return nil
}
