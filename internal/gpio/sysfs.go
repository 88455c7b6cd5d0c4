package gpio

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

const sysfsRoot = "/sys/class/gpio"

// SysfsDriver controls pins through the kernel's sysfs GPIO interface.
// Each pin is exported on Setup and unexported (after being driven low)
// on Close.
type SysfsDriver struct {
	root string

	mu       sync.Mutex
	exported map[int]bool
}

// NewSysfsDriver creates a driver rooted at the given sysfs path.
func NewSysfsDriver(root string) (*SysfsDriver, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("gpio sysfs not available at %s: %w", root, err)
	}
	return &SysfsDriver{
		root:     root,
		exported: make(map[int]bool),
	}, nil
}

// Setup exports the pin, sets it as an output and drives it low.
func (d *SysfsDriver) Setup(pin int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.exported[pin] {
		return nil
	}

	pinDir := filepath.Join(d.root, fmt.Sprintf("gpio%d", pin))
	if _, err := os.Stat(pinDir); os.IsNotExist(err) {
		if err := os.WriteFile(filepath.Join(d.root, "export"), []byte(strconv.Itoa(pin)), 0644); err != nil {
			return fmt.Errorf("exporting pin %d: %w", pin, err)
		}
		// The kernel needs a moment to create the pin directory and fix
		// its permissions after export.
		time.Sleep(100 * time.Millisecond)
	}

	if err := os.WriteFile(filepath.Join(pinDir, "direction"), []byte("out"), 0644); err != nil {
		return fmt.Errorf("setting pin %d direction: %w", pin, err)
	}
	if err := d.write(pin, false); err != nil {
		return err
	}

	d.exported[pin] = true
	return nil
}

// Assert drives the pin high.
func (d *SysfsDriver) Assert(pin int) error {
	return d.write(pin, true)
}

// Deassert drives the pin low.
func (d *SysfsDriver) Deassert(pin int) error {
	return d.write(pin, false)
}

func (d *SysfsDriver) write(pin int, high bool) error {
	value := "0"
	if high {
		value = "1"
	}
	path := filepath.Join(d.root, fmt.Sprintf("gpio%d", pin), "value")
	if err := os.WriteFile(path, []byte(value), 0644); err != nil {
		return fmt.Errorf("writing pin %d value: %w", pin, err)
	}
	return nil
}

// Close drives every exported pin low and unexports it.
func (d *SysfsDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var firstErr error
	for pin := range d.exported {
		if err := d.write(pin, false); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := os.WriteFile(filepath.Join(d.root, "unexport"), []byte(strconv.Itoa(pin)), 0644); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("unexporting pin %d: %w", pin, err)
		}
		delete(d.exported, pin)
	}
	return firstErr
}
