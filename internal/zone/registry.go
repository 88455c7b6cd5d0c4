// Package zone implements the zone scheduling and execution engine: the
// in-memory zone registry, the execution controller that drives relay
// outputs, the minute-tick schedule engine, and the shutdown guard.
package zone

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/sprinkler-controller/backend/internal/storage/models"
)

// ScheduleStore persists the zone set and the global schedule gate. The
// registry writes the full set on every mutation; a failed save is surfaced
// but never rolls back the in-memory state.
type ScheduleStore interface {
	Save(ctx context.Context, zones []models.Zone, globalEnabled bool) error
}

// zoneState pairs a zone with its own mutex so operations on unrelated
// zones never serialize each other. deleted is set under mu before the
// state is unmapped; operations that find it set treat the zone as gone,
// so a start queued on the lock cannot commit a run on a removed zone.
type zoneState struct {
	mu      sync.Mutex
	z       models.Zone
	deleted bool
}

// Registry is the authoritative in-memory set of zones, keyed by name.
type Registry struct {
	mu            sync.RWMutex
	zones         map[string]*zoneState
	globalEnabled bool

	store      ScheduleStore
	controller *Controller
}

// NewRegistry creates an empty registry backed by the given store.
func NewRegistry(store ScheduleStore) *Registry {
	return &Registry{
		zones:         make(map[string]*zoneState),
		globalEnabled: true,
		store:         store,
	}
}

// AttachController wires the execution controller used to stop a zone that
// is deleted while running and to configure outputs for new zones. Must be
// called once during startup, before the registry serves requests.
func (r *Registry) AttachController(c *Controller) {
	r.controller = c
}

// Init seeds the registry from persisted state. Runtime fields on the
// loaded zones are ignored; every zone starts idle.
func (r *Registry) Init(zones []models.Zone, globalEnabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.globalEnabled = globalEnabled
	for _, z := range zones {
		z.Active = false
		z.ActiveUntil = nil
		z.StartedBy = ""
		z.RunID = ""
		r.zones[z.Name] = &zoneState{z: z}
	}
}

// Get returns a copy of the named zone.
func (r *Registry) Get(name string) (models.Zone, error) {
	st, ok := r.state(name)
	if !ok {
		return models.Zone{}, fmt.Errorf("%w: %q", ErrZoneNotFound, name)
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.deleted {
		return models.Zone{}, fmt.Errorf("%w: %q", ErrZoneNotFound, name)
	}
	return copyZone(st.z), nil
}

// List returns copies of all zones, sorted by name.
func (r *Registry) List() []models.Zone {
	r.mu.RLock()
	states := make([]*zoneState, 0, len(r.zones))
	for _, st := range r.zones {
		states = append(states, st)
	}
	r.mu.RUnlock()

	zones := make([]models.Zone, 0, len(states))
	for _, st := range states {
		st.mu.Lock()
		if !st.deleted {
			zones = append(zones, copyZone(st.z))
		}
		st.mu.Unlock()
	}
	sort.Slice(zones, func(i, j int) bool { return zones[i].Name < zones[j].Name })
	return zones
}

// Create adds a new zone and persists the updated set. The zone name and
// GPIO pin must both be unused.
func (r *Registry) Create(ctx context.Context, z models.Zone) (models.Zone, error) {
	if err := z.ValidateDefinition(); err != nil {
		return models.Zone{}, fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}
	if err := z.Schedule.Validate(); err != nil {
		return models.Zone{}, fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}

	z.Active = false
	z.ActiveUntil = nil
	z.StartedBy = ""
	z.RunID = ""
	now := time.Now().UTC()
	z.CreatedAt = now
	z.UpdatedAt = now

	r.mu.Lock()
	if _, exists := r.zones[z.Name]; exists {
		r.mu.Unlock()
		return models.Zone{}, fmt.Errorf("%w: %q", ErrDuplicateZone, z.Name)
	}
	for _, st := range r.zones {
		if st.z.GPIOPin == z.GPIOPin {
			r.mu.Unlock()
			return models.Zone{}, fmt.Errorf("%w: pin %d", ErrPinInUse, z.GPIOPin)
		}
	}
	r.zones[z.Name] = &zoneState{z: z}
	r.mu.Unlock()

	if r.controller != nil {
		if err := r.controller.SetupOutput(z.GPIOPin); err != nil {
			log.Printf("Failed to configure output for zone '%s' (pin %d): %v", z.Name, z.GPIOPin, err)
		}
	}

	log.Printf("Zone '%s' created on GPIO pin %d", z.Name, z.GPIOPin)
	return copyZone(z), r.persist(ctx)
}

// Delete stops the zone if it is running, then removes it and persists the
// updated set. The state is marked deleted and any run ended in a single
// critical section, so a concurrent start queued on the zone lock fails
// with NotFound instead of committing a run on a removed zone.
func (r *Registry) Delete(ctx context.Context, name string) error {
	st, ok := r.state(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrZoneNotFound, name)
	}

	var stopped models.Zone
	var wasActive bool
	if r.controller != nil {
		stopped, wasActive = r.controller.releaseZone(st)
	} else {
		st.mu.Lock()
		if st.deleted {
			st.mu.Unlock()
			return fmt.Errorf("%w: %q", ErrZoneNotFound, name)
		}
		st.deleted = true
		st.mu.Unlock()
	}

	r.mu.Lock()
	delete(r.zones, name)
	r.mu.Unlock()

	if wasActive {
		log.Printf("Zone '%s' turned OFF (%s)", name, StopReasonDeleted)
		r.controller.notifyStopped(stopped, StopReasonDeleted)
	}

	log.Printf("Zone '%s' removed", name)
	return r.persist(ctx)
}

// UpdateSchedule atomically replaces the zone's schedule and persists it.
// A run already in progress keeps its original deadline; only future
// triggers and requests see the new schedule.
func (r *Registry) UpdateSchedule(ctx context.Context, name string, s models.Schedule) (models.Zone, error) {
	if err := s.Validate(); err != nil {
		return models.Zone{}, fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}

	st, ok := r.state(name)
	if !ok {
		return models.Zone{}, fmt.Errorf("%w: %q", ErrZoneNotFound, name)
	}

	st.mu.Lock()
	if st.deleted {
		st.mu.Unlock()
		return models.Zone{}, fmt.Errorf("%w: %q", ErrZoneNotFound, name)
	}
	st.z.Schedule = copySchedule(s)
	st.z.UpdatedAt = time.Now().UTC()
	z := copyZone(st.z)
	st.mu.Unlock()

	log.Printf("Schedule updated for zone '%s'", name)
	return z, r.persist(ctx)
}

// SetZoneScheduleEnabled toggles a single zone's schedule gate. A running
// zone is not interrupted; only future triggers are affected.
func (r *Registry) SetZoneScheduleEnabled(ctx context.Context, name string, enabled bool) (models.Zone, error) {
	st, ok := r.state(name)
	if !ok {
		return models.Zone{}, fmt.Errorf("%w: %q", ErrZoneNotFound, name)
	}

	st.mu.Lock()
	if st.deleted {
		st.mu.Unlock()
		return models.Zone{}, fmt.Errorf("%w: %q", ErrZoneNotFound, name)
	}
	st.z.Schedule.Enabled = enabled
	st.z.UpdatedAt = time.Now().UTC()
	z := copyZone(st.z)
	st.mu.Unlock()

	log.Printf("Schedule %s for zone '%s'", enabledWord(enabled), name)
	return z, r.persist(ctx)
}

// GlobalEnabled reports the process-wide schedule gate.
func (r *Registry) GlobalEnabled() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.globalEnabled
}

// SetGlobalEnabled flips the process-wide schedule gate and persists it.
// Manual control and running zones are unaffected.
func (r *Registry) SetGlobalEnabled(ctx context.Context, enabled bool) error {
	r.mu.Lock()
	r.globalEnabled = enabled
	r.mu.Unlock()

	log.Printf("Global schedule %s", enabledWord(enabled))
	return r.persist(ctx)
}

// state looks up the shared state for a zone.
func (r *Registry) state(name string) (*zoneState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.zones[name]
	return st, ok
}

// persist writes the current zone set and global gate through the store.
// Persistence failure is reported as ErrPersistence; the in-memory state
// stands and the next successful save rewrites the full set.
func (r *Registry) persist(ctx context.Context) error {
	zones := r.List()
	if err := r.store.Save(ctx, zones, r.GlobalEnabled()); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

func copyZone(z models.Zone) models.Zone {
	cp := z
	cp.Schedule = copySchedule(z.Schedule)
	if z.ActiveUntil != nil {
		t := *z.ActiveUntil
		cp.ActiveUntil = &t
	}
	return cp
}

func copySchedule(s models.Schedule) models.Schedule {
	cp := s
	cp.Days = append([]int(nil), s.Days...)
	return cp
}

func enabledWord(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}
