package zone

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/sprinkler-controller/backend/internal/storage/models"
)

// OutputPort is the hardware surface the controller drives. Assert turns a
// relay on, Deassert turns it off. Calls are assumed fast and local.
type OutputPort interface {
	Setup(pin int) error
	Assert(pin int) error
	Deassert(pin int) error
}

// RunListener is notified after a run starts or stops. Listeners must not
// block; they are called outside any zone lock.
type RunListener interface {
	ZoneStarted(z models.Zone)
	ZoneStopped(z models.Zone, reason string)
}

// Reasons reported to listeners when a run ends.
const (
	StopReasonManual   = "manual"
	StopReasonExpired  = "expired"
	StopReasonShutdown = "shutdown"
	StopReasonDeleted  = "deleted"
)

// Controller performs start/stop transitions on zones. It is the only
// writer of a zone's active state and the only caller of the output port
// during a run.
type Controller struct {
	registry  *Registry
	port      OutputPort
	listeners []RunListener

	now func() time.Time
}

// NewController creates a controller over the given registry and output
// port. Listeners receive start/stop notifications in registration order.
func NewController(registry *Registry, port OutputPort, listeners ...RunListener) *Controller {
	return &Controller{
		registry:  registry,
		port:      port,
		listeners: listeners,
		now:       time.Now,
	}
}

// SetupOutput configures a pin as an output, off. Called for every zone at
// startup and for each newly created zone.
func (c *Controller) SetupOutput(pin int) error {
	return c.port.Setup(pin)
}

// Start begins a run on the named zone for the given number of minutes.
// The zone must be idle; the duration must be within 1-180 minutes. On
// success the output is asserted and the zone carries its deadline, the
// requesting source, and a fresh run ID.
func (c *Controller) Start(ctx context.Context, name string, minutes int, by models.StartSource) (models.Zone, error) {
	st, ok := c.registry.state(name)
	if !ok {
		return models.Zone{}, fmt.Errorf("%w: %q", ErrZoneNotFound, name)
	}

	st.mu.Lock()
	if st.deleted {
		st.mu.Unlock()
		return models.Zone{}, fmt.Errorf("%w: %q", ErrZoneNotFound, name)
	}
	if st.z.Active {
		st.mu.Unlock()
		return models.Zone{}, fmt.Errorf("%w: %q", ErrAlreadyRunning, name)
	}
	if minutes < models.MinDurationMinutes || minutes > models.MaxDurationMinutes {
		st.mu.Unlock()
		return models.Zone{}, fmt.Errorf("%w: %d minutes (allowed %d-%d)",
			ErrInvalidDuration, minutes, models.MinDurationMinutes, models.MaxDurationMinutes)
	}

	if err := c.port.Assert(st.z.GPIOPin); err != nil {
		st.mu.Unlock()
		return models.Zone{}, fmt.Errorf("%w: asserting pin %d: %v", ErrOutput, st.z.GPIOPin, err)
	}

	until := c.now().Add(time.Duration(minutes) * time.Minute)
	st.z.Active = true
	st.z.ActiveUntil = &until
	st.z.StartedBy = by
	st.z.RunID = uuid.NewString()
	z := copyZone(st.z)
	st.mu.Unlock()

	log.Printf("Zone '%s' turned ON for %d minutes (%s, run %s)", name, minutes, by, z.RunID)
	c.notifyStarted(z)
	return z, nil
}

// Stop ends the run on the named zone. Stopping an idle zone returns
// ErrNotRunning; a second stop in a row is therefore a conflict, not a
// no-op.
func (c *Controller) Stop(ctx context.Context, name, reason string) (models.Zone, error) {
	st, ok := c.registry.state(name)
	if !ok {
		return models.Zone{}, fmt.Errorf("%w: %q", ErrZoneNotFound, name)
	}

	st.mu.Lock()
	if st.deleted {
		st.mu.Unlock()
		return models.Zone{}, fmt.Errorf("%w: %q", ErrZoneNotFound, name)
	}
	if !st.z.Active {
		st.mu.Unlock()
		return models.Zone{}, fmt.Errorf("%w: %q", ErrNotRunning, name)
	}

	if err := c.port.Deassert(st.z.GPIOPin); err != nil {
		st.mu.Unlock()
		return models.Zone{}, fmt.Errorf("%w: deasserting pin %d: %v", ErrOutput, st.z.GPIOPin, err)
	}

	z := c.clearRunLocked(st)
	st.mu.Unlock()

	log.Printf("Zone '%s' turned OFF (%s)", name, reason)
	c.notifyStopped(z, reason)
	return z, nil
}

// ForceStopAll deasserts every active zone's output and clears its state.
// Best effort per zone: an output failure is logged, the zone's state is
// cleared regardless, and the remaining zones are still stopped. Never
// returns an error.
func (c *Controller) ForceStopAll(ctx context.Context) {
	for _, z := range c.registry.List() {
		if !z.Active {
			continue
		}

		st, ok := c.registry.state(z.Name)
		if !ok {
			continue
		}

		st.mu.Lock()
		if st.deleted || !st.z.Active {
			st.mu.Unlock()
			continue
		}
		if err := c.port.Deassert(st.z.GPIOPin); err != nil {
			log.Printf("Failed to deassert pin %d for zone '%s' during force stop: %v", st.z.GPIOPin, st.z.Name, err)
		}
		stopped := c.clearRunLocked(st)
		st.mu.Unlock()

		log.Printf("Zone '%s' force stopped", stopped.Name)
		c.notifyStopped(stopped, StopReasonShutdown)
	}
}

// releaseZone marks the state deleted and ends any run in progress, all
// under the zone lock, so no start can interleave between the stop and the
// registry removal. Best effort on the output like ForceStopAll: a failed
// deassert is logged and the state is cleared regardless. Returns the
// stopped run and whether one was active; the caller notifies listeners.
func (c *Controller) releaseZone(st *zoneState) (models.Zone, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.deleted = true
	if !st.z.Active {
		return models.Zone{}, false
	}
	if err := c.port.Deassert(st.z.GPIOPin); err != nil {
		log.Printf("Failed to deassert pin %d for zone '%s' during delete: %v", st.z.GPIOPin, st.z.Name, err)
	}
	return c.clearRunLocked(st), true
}

// clearRunLocked resets the zone's run state. Caller holds the zone lock.
// Returns a copy of the zone as it was at the moment it stopped, with the
// run metadata still attached for listeners.
func (c *Controller) clearRunLocked(st *zoneState) models.Zone {
	z := copyZone(st.z)
	st.z.Active = false
	st.z.ActiveUntil = nil
	st.z.StartedBy = ""
	st.z.RunID = ""
	return z
}

func (c *Controller) notifyStarted(z models.Zone) {
	for _, l := range c.listeners {
		l.ZoneStarted(z)
	}
}

func (c *Controller) notifyStopped(z models.Zone, reason string) {
	for _, l := range c.listeners {
		l.ZoneStopped(z, reason)
	}
}
