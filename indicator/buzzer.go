package indicator

import (
	"sync"
	"time"
)

// buzzer drives a tone pin for a fixed time. Starting a new tone cancels
// the pending stop of the previous one, even if its timer already fired.
type buzzer struct {
	on  func() error
	off func()

	mu    sync.Mutex
	gen   uint64
	timer *time.Timer
}

func newBuzzer(on func() error, off func()) *buzzer {
	return &buzzer{on: on, off: off}
}

func (b *buzzer) beep(s Speed) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.gen++
	gen := b.gen
	if b.timer != nil {
		b.timer.Stop()
	}
	if err := b.on(); err != nil {
		return err
	}
	b.timer = time.AfterFunc(time.Duration(s)*10*time.Millisecond, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.gen == gen {
			b.off()
		}
	})
	return nil
}

// stop silences the pin and drops any pending stop.
func (b *buzzer) stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.gen++
	if b.timer != nil {
		b.timer.Stop()
	}
	b.off()
}
