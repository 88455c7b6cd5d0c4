// Package gpio drives relay outputs on the Raspberry Pi header.
//
// The controller talks to an abstract output line; the sysfs driver writes
// the real pins and the mock driver stands in on development machines.
package gpio

import (
	"fmt"
	"os"
)

// Driver controls a set of output pins, identified by BCM number.
type Driver interface {
	// Setup configures the pin as an output and drives it low.
	Setup(pin int) error
	// Assert drives the pin high (relay on).
	Assert(pin int) error
	// Deassert drives the pin low (relay off).
	Deassert(pin int) error
	// Close releases all configured pins, driving them low first.
	Close() error
}

// New returns the driver named by the config: "sysfs" for real hardware,
// anything else gets the mock.
func New(driver string) (Driver, error) {
	switch driver {
	case "sysfs":
		return NewSysfsDriver(sysfsRoot)
	case "", "mock":
		return NewMockDriver(), nil
	default:
		return nil, fmt.Errorf("unknown gpio driver %q", driver)
	}
}

// Available reports whether the sysfs GPIO interface exists on this host.
func Available() bool {
	_, err := os.Stat(sysfsRoot)
	return err == nil
}
