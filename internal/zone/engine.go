package zone

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sprinkler-controller/backend/internal/storage/models"
)

// Engine evaluates every zone's schedule against the wall clock once per
// minute and drives the controller. Auto-stop precision is bounded by the
// tick interval: a run can end up to one minute after its deadline.
//
// Missed ticks are not backfilled. If the process was paused across a
// zone's start minute, that watering simply does not happen.
type Engine struct {
	cron       *cron.Cron
	registry   *Registry
	controller *Controller
	loc        *time.Location

	now func() time.Time

	mu      sync.Mutex
	running bool
}

// NewEngine creates a schedule engine evaluating times in the given
// location. A nil location means local time.
func NewEngine(registry *Registry, controller *Controller, loc *time.Location) *Engine {
	if loc == nil {
		loc = time.Local
	}
	return &Engine{
		cron:       cron.New(),
		registry:   registry,
		controller: controller,
		loc:        loc,
		now:        time.Now,
	}
}

// Start begins the minute tick. An immediate evaluation also runs so a
// restart inside a trigger window is not missed.
func (e *Engine) Start() {
	log.Println("Starting schedule engine...")

	e.cron.AddFunc("@every 1m", func() {
		e.tick(e.now())
	})
	e.cron.Start()

	go e.tick(e.now())

	e.mu.Lock()
	e.running = true
	e.mu.Unlock()
	log.Println("Schedule engine started")
}

// Stop shuts the tick loop down, waiting for an in-flight tick to finish.
func (e *Engine) Stop() {
	log.Println("Stopping schedule engine...")
	ctx := e.cron.Stop()
	<-ctx.Done()

	e.mu.Lock()
	e.running = false
	e.mu.Unlock()
	log.Println("Schedule engine stopped")
}

// Running reports whether the tick loop is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// tick runs one evaluation pass at the given wall-clock time. Each zone is
// considered at most once: first expired runs are stopped, then idle zones
// are checked against their trigger windows. A failure on one zone never
// aborts evaluation of the rest.
func (e *Engine) tick(now time.Time) {
	ctx := context.Background()
	now = now.In(e.loc)

	for _, z := range e.registry.List() {
		if z.Active && z.ActiveUntil != nil && !now.Before(*z.ActiveUntil) {
			if _, err := e.controller.Stop(ctx, z.Name, StopReasonExpired); err != nil && !errors.Is(err, ErrNotRunning) {
				log.Printf("Failed to auto-stop zone '%s': %v", z.Name, err)
			}
		}
	}

	if !e.registry.GlobalEnabled() {
		return
	}

	for _, z := range e.registry.List() {
		if z.Active || !z.Schedule.Enabled {
			continue
		}
		if !z.Schedule.MatchesAt(now) {
			continue
		}

		log.Printf("Schedule triggered for zone '%s'", z.Name)
		if _, err := e.controller.Start(ctx, z.Name, z.Schedule.DurationMinutes, models.StartedByScheduled); err != nil {
			// A manual start racing the tick is not an error worth noise.
			if errors.Is(err, ErrAlreadyRunning) {
				continue
			}
			log.Printf("Failed to auto-start zone '%s': %v", z.Name, err)
		}
	}
}
