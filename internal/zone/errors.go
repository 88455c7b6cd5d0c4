package zone

import "errors"

// Sentinel errors for zone operations. Handlers map these to HTTP statuses
// with errors.Is; everything else is an internal error.
var (
	// ErrZoneNotFound means no zone with the requested name exists.
	ErrZoneNotFound = errors.New("zone not found")

	// ErrDuplicateZone means a zone with the requested name already exists.
	ErrDuplicateZone = errors.New("zone already exists")

	// ErrPinInUse means another zone already owns the requested GPIO pin.
	ErrPinInUse = errors.New("gpio pin already in use")

	// ErrAlreadyRunning means the zone is active; only one run per zone
	// may be in progress.
	ErrAlreadyRunning = errors.New("zone is already running")

	// ErrNotRunning means a stop was requested for an idle zone.
	ErrNotRunning = errors.New("zone is not running")

	// ErrInvalidDuration means a requested run duration is outside 1-180
	// minutes.
	ErrInvalidDuration = errors.New("invalid duration")

	// ErrInvalidSchedule means a schedule failed validation.
	ErrInvalidSchedule = errors.New("invalid schedule")

	// ErrOutput wraps a hardware failure from the output driver. The zone's
	// bookkeeping state is not changed when this is returned.
	ErrOutput = errors.New("output driver failure")

	// ErrPersistence wraps a failed save of the zone set. The in-memory
	// mutation has already been applied; the next successful save rewrites
	// the full set.
	ErrPersistence = errors.New("persisting zone set")
)
