package torch

import (
	"fmt"
	"sync"

	"github.com/developer27/falconeye/internal/debug"
	"github.com/developer27/falconeye/internal/hw/gpio"
)

// Torch drives the flash LED used as a continuous torch during preview.
// Wiring: LED driver input on one GPIO pin; active HIGH unless activeLow.
// Pin 0 means no physical LED is fitted and every call is a no-op.
type Torch struct {
	mu        sync.Mutex
	gpio      gpio.Driver
	pin       int
	activeLow bool
	on        bool
}

// New configures pin as an output and switches the LED off.
func New(g gpio.Driver, pin int, activeLow bool) (*Torch, error) {
	t := &Torch{gpio: g, pin: pin, activeLow: activeLow}
	if pin <= 0 {
		debug.Verbose("Torch: no pin configured, flash is request-only")
		return t, nil
	}
	if err := g.SetupPin(pin, gpio.Output); err != nil {
		return nil, fmt.Errorf("setup torch pin %d: %w", pin, err)
	}
	if err := g.WritePin(pin, t.level(false)); err != nil {
		return nil, fmt.Errorf("switch torch pin %d off: %w", pin, err)
	}
	return t, nil
}

func (t *Torch) level(on bool) gpio.Level {
	return gpio.Level(on != t.activeLow)
}

// Set lights or darkens the LED.
func (t *Torch) Set(on bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.pin <= 0 {
		t.on = on
		return nil
	}
	debug.Verbose("Torch: pin %d -> %v", t.pin, on)
	if err := t.gpio.WritePin(t.pin, t.level(on)); err != nil {
		return err
	}
	t.on = on
	return nil
}

// On reports the last state successfully written.
func (t *Torch) On() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.on
}

// Off is Set(false); used on shutdown.
func (t *Torch) Off() error {
	return t.Set(false)
}
