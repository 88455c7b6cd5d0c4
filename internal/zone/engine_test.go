package zone

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprinkler-controller/backend/internal/storage/models"
)

// 2026-08-31 06:00 UTC is a Monday, matching testSchedule's Mon/Wed/Fri 06:00.
var mondaySix = time.Date(2026, 8, 31, 6, 0, 0, 0, time.UTC)

func newTestEngine(registry *Registry, controller *Controller) *Engine {
	return NewEngine(registry, controller, time.UTC)
}

func TestEngineTriggersScheduledRun(t *testing.T) {
	registry, controller, _, port, listener := newTestRig(testZone("Front Yard", 17))
	controller.now = fixedClock(mondaySix)
	engine := newTestEngine(registry, controller)

	engine.tick(mondaySix)

	z, err := registry.Get("Front Yard")
	require.NoError(t, err)
	assert.True(t, z.Active)
	assert.Equal(t, models.StartedByScheduled, z.StartedBy)
	require.NotNil(t, z.ActiveUntil)
	assert.Equal(t, mondaySix.Add(20*time.Minute), *z.ActiveUntil)
	assert.True(t, port.isHigh(17))

	events := listener.all()
	require.Len(t, events, 1)
	assert.Equal(t, "started", events[0].kind)
}

func TestEngineDoesNotRetriggerRunningZone(t *testing.T) {
	registry, controller, _, _, listener := newTestRig(testZone("Front Yard", 17))
	controller.now = fixedClock(mondaySix)
	engine := newTestEngine(registry, controller)

	engine.tick(mondaySix)
	first, err := registry.Get("Front Yard")
	require.NoError(t, err)

	// Same trigger minute again while the run is in progress.
	engine.tick(mondaySix.Add(30 * time.Second))

	again, err := registry.Get("Front Yard")
	require.NoError(t, err)
	assert.Equal(t, first.RunID, again.RunID)
	assert.Len(t, listener.all(), 1)
}

func TestEngineNoTriggerOutsideWindow(t *testing.T) {
	registry, controller, _, _, _ := newTestRig(testZone("Front Yard", 17))
	engine := newTestEngine(registry, controller)

	for _, now := range []time.Time{
		mondaySix.Add(time.Minute),    // one minute late
		mondaySix.Add(-time.Minute),   // one minute early
		mondaySix.AddDate(0, 0, 1),    // Tuesday, not scheduled
		mondaySix.Add(12 * time.Hour), // Monday evening
	} {
		engine.tick(now)
		z, err := registry.Get("Front Yard")
		require.NoError(t, err)
		assert.False(t, z.Active, "tick at %v must not trigger", now)
	}
}

func TestEngineZoneGateSuppressesTrigger(t *testing.T) {
	registry, controller, _, _, _ := newTestRig(testZone("Front Yard", 17))
	engine := newTestEngine(registry, controller)
	ctx := context.Background()

	_, err := registry.SetZoneScheduleEnabled(ctx, "Front Yard", false)
	require.NoError(t, err)

	engine.tick(mondaySix)
	z, err := registry.Get("Front Yard")
	require.NoError(t, err)
	assert.False(t, z.Active)

	// Manual control still works with the gate closed.
	_, err = controller.Start(ctx, "Front Yard", 10, models.StartedByManual)
	assert.NoError(t, err)
}

func TestEngineGlobalGateSuppressesTrigger(t *testing.T) {
	registry, controller, _, _, _ := newTestRig(
		testZone("Front Yard", 17),
		testZone("Back Yard", 27),
	)
	engine := newTestEngine(registry, controller)
	ctx := context.Background()

	require.NoError(t, registry.SetGlobalEnabled(ctx, false))

	engine.tick(mondaySix)
	for _, z := range registry.List() {
		assert.False(t, z.Active, "zone %s", z.Name)
	}

	_, err := controller.Start(ctx, "Front Yard", 10, models.StartedByManual)
	assert.NoError(t, err, "manual start bypasses the global gate")
}

func TestEngineAutoStopsExpiredRun(t *testing.T) {
	registry, controller, _, port, listener := newTestRig(testZone("Front Yard", 17))
	controller.now = fixedClock(mondaySix)
	engine := newTestEngine(registry, controller)

	engine.tick(mondaySix)
	require.True(t, port.isHigh(17))

	// Deadline not reached yet.
	engine.tick(mondaySix.Add(19 * time.Minute))
	z, err := registry.Get("Front Yard")
	require.NoError(t, err)
	assert.True(t, z.Active)

	// At the deadline exactly.
	engine.tick(mondaySix.Add(20 * time.Minute))
	z, err = registry.Get("Front Yard")
	require.NoError(t, err)
	assert.False(t, z.Active)
	assert.False(t, port.isHigh(17))

	events := listener.all()
	require.Len(t, events, 2)
	assert.Equal(t, runEvent{kind: "stopped", zone: "Front Yard", reason: StopReasonExpired}, events[1])

	// Subsequent ticks must not report another stop.
	engine.tick(mondaySix.Add(21 * time.Minute))
	assert.Len(t, listener.all(), 2)
}

func TestEngineAutoStopAppliesWithGatesClosed(t *testing.T) {
	registry, controller, _, _, _ := newTestRig(testZone("Front Yard", 17))
	controller.now = fixedClock(mondaySix)
	engine := newTestEngine(registry, controller)
	ctx := context.Background()

	_, err := controller.Start(ctx, "Front Yard", 5, models.StartedByManual)
	require.NoError(t, err)
	require.NoError(t, registry.SetGlobalEnabled(ctx, false))

	engine.tick(mondaySix.Add(5 * time.Minute))
	z, err := registry.Get("Front Yard")
	require.NoError(t, err)
	assert.False(t, z.Active, "auto-stop runs even when scheduling is disabled")
}

func TestEngineStopExpiryBeforeTrigger(t *testing.T) {
	// A zone whose run expires exactly at another zone's trigger minute:
	// the expired run stops and the trigger fires in the same pass.
	registry, controller, _, _, _ := newTestRig(
		testZone("Front Yard", 17),
		models.Zone{
			Name:    "Back Yard",
			GPIOPin: 27,
			Schedule: models.Schedule{
				Days:            []int{0},
				StartTime:       "05:40",
				DurationMinutes: 20,
				Enabled:         true,
			},
		},
	)
	engine := newTestEngine(registry, controller)
	ctx := context.Background()

	controller.now = fixedClock(mondaySix.Add(-20 * time.Minute))
	_, err := controller.Start(ctx, "Back Yard", 20, models.StartedByScheduled)
	require.NoError(t, err)

	controller.now = fixedClock(mondaySix)
	engine.tick(mondaySix)

	back, err := registry.Get("Back Yard")
	require.NoError(t, err)
	assert.False(t, back.Active)

	front, err := registry.Get("Front Yard")
	require.NoError(t, err)
	assert.True(t, front.Active)
}

func TestEngineStartStop(t *testing.T) {
	registry, controller, _, _, _ := newTestRig()
	engine := newTestEngine(registry, controller)

	assert.False(t, engine.Running())
	engine.Start()
	assert.True(t, engine.Running())
	engine.Stop()
	assert.False(t, engine.Running())
}
