package gpio

import (
	"log"
	"sync"
)

// MockDriver remembers pin states in memory and logs transitions. Used on
// machines without GPIO hardware.
type MockDriver struct {
	mu     sync.Mutex
	states map[int]bool
}

// NewMockDriver creates a mock GPIO driver.
func NewMockDriver() *MockDriver {
	return &MockDriver{states: make(map[int]bool)}
}

// Setup registers the pin, off.
func (d *MockDriver) Setup(pin int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.states[pin] = false
	return nil
}

// Assert marks the pin high.
func (d *MockDriver) Assert(pin int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.states[pin] = true
	log.Printf("gpio(mock): pin %d HIGH", pin)
	return nil
}

// Deassert marks the pin low.
func (d *MockDriver) Deassert(pin int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.states[pin] = false
	log.Printf("gpio(mock): pin %d LOW", pin)
	return nil
}

// Close clears all pin state.
func (d *MockDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.states = make(map[int]bool)
	return nil
}

// State reports the current level of a pin. Test helper.
func (d *MockDriver) State(pin int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.states[pin]
}
