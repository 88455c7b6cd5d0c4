package zone

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sprinkler-controller/backend/internal/storage/models"
)

// mockStore records Save calls and can be told to fail.
type mockStore struct {
	mu      sync.Mutex
	saves   int
	failErr error
}

func (m *mockStore) Save(ctx context.Context, zones []models.Zone, globalEnabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	m.saves++
	return nil
}

func (m *mockStore) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// mockPort tracks pin levels. failAssert/failDeassert force output errors.
type mockPort struct {
	mu           sync.Mutex
	high         map[int]bool
	setups       []int
	failAssert   bool
	failDeassert bool
}

func newMockPort() *mockPort {
	return &mockPort{high: make(map[int]bool)}
}

func (m *mockPort) Setup(pin int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setups = append(m.setups, pin)
	m.high[pin] = false
	return nil
}

func (m *mockPort) Assert(pin int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAssert {
		return errors.New("assert failed")
	}
	m.high[pin] = true
	return nil
}

func (m *mockPort) Deassert(pin int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDeassert {
		return errors.New("deassert failed")
	}
	m.high[pin] = false
	return nil
}

func (m *mockPort) isHigh(pin int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.high[pin]
}

// runEvent is one listener notification.
type runEvent struct {
	kind   string // "started" or "stopped"
	zone   string
	reason string
}

// mockListener records every start/stop notification in order.
type mockListener struct {
	mu     sync.Mutex
	events []runEvent
}

func (m *mockListener) ZoneStarted(z models.Zone) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, runEvent{kind: "started", zone: z.Name})
}

func (m *mockListener) ZoneStopped(z models.Zone, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, runEvent{kind: "stopped", zone: z.Name, reason: reason})
}

func (m *mockListener) all() []runEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]runEvent(nil), m.events...)
}

func testSchedule() models.Schedule {
	return models.Schedule{
		Days:            []int{0, 2, 4}, // Mon, Wed, Fri
		StartTime:       "06:00",
		DurationMinutes: 20,
		Enabled:         true,
	}
}

func testZone(name string, pin int) models.Zone {
	return models.Zone{
		Name:     name,
		GPIOPin:  pin,
		Schedule: testSchedule(),
	}
}

// newTestRig wires a registry, controller, and listener over mocks, seeded
// with the given zones.
func newTestRig(zones ...models.Zone) (*Registry, *Controller, *mockStore, *mockPort, *mockListener) {
	store := &mockStore{}
	port := newMockPort()
	listener := &mockListener{}

	registry := NewRegistry(store)
	registry.Init(zones, true)
	controller := NewController(registry, port, listener)
	registry.AttachController(controller)
	return registry, controller, store, port, listener
}

// fixedClock returns a clock function pinned to t.
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
