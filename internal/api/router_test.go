package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprinkler-controller/backend/internal/gpio"
	"github.com/sprinkler-controller/backend/internal/storage"
	"github.com/sprinkler-controller/backend/internal/storage/models"
	"github.com/sprinkler-controller/backend/internal/websocket"
	"github.com/sprinkler-controller/backend/internal/zone"
)

// newTestServer wires the full stack over a temp database and the mock
// GPIO driver.
func newTestServer(t *testing.T) (*httptest.Server, *zone.Registry, *zone.Controller) {
	t.Helper()

	db, err := storage.NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, storage.RunMigrations(db))

	driver, err := gpio.New("mock")
	require.NoError(t, err)

	hub := websocket.NewHub()
	go hub.Run()
	broadcaster := websocket.NewEventBroadcaster(hub)

	repo := storage.NewZoneRepository(db)
	registry := zone.NewRegistry(repo)
	registry.Init(nil, true)
	controller := zone.NewController(registry, driver, broadcaster)
	registry.AttachController(controller)
	engine := zone.NewEngine(registry, controller, nil)

	srv := httptest.NewServer(NewRouter(Deps{
		DB:          db,
		Registry:    registry,
		Controller:  controller,
		Engine:      engine,
		Hub:         hub,
		Broadcaster: broadcaster,
		StaticDir:   t.TempDir(),
	}))
	t.Cleanup(srv.Close)

	return srv, registry, controller
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func createZoneBody(name string, pin int) map[string]any {
	return map[string]any{
		"name":     name,
		"gpio_pin": pin,
		"schedule": map[string]any{
			"days":             []int{0, 2, 4},
			"start_time":       "06:00",
			"duration_minutes": 20,
			"enabled":          true,
		},
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.Equal(t, "healthy", body["status"])
}

func TestZoneLifecycle(t *testing.T) {
	srv, _, _ := newTestServer(t)

	// Empty list to start.
	resp := doJSON(t, "GET", srv.URL+"/api/zones", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[[]models.Zone](t, resp))

	// Create.
	resp = doJSON(t, "POST", srv.URL+"/api/zones", createZoneBody("Front Yard", 17))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[models.Zone](t, resp)
	assert.Equal(t, "Front Yard", created.Name)
	assert.Equal(t, 17, created.GPIOPin)
	assert.False(t, created.Active)

	// Get.
	resp = doJSON(t, "GET", srv.URL+"/api/zones/Front Yard", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Duplicate name.
	resp = doJSON(t, "POST", srv.URL+"/api/zones", createZoneBody("Front Yard", 22))
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Duplicate pin.
	resp = doJSON(t, "POST", srv.URL+"/api/zones", createZoneBody("Side Yard", 17))
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Delete.
	resp = doJSON(t, "DELETE", srv.URL+"/api/zones/Front Yard", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, "GET", srv.URL+"/api/zones/Front Yard", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateZoneValidation(t *testing.T) {
	srv, _, _ := newTestServer(t)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"empty name", createZoneBody("", 17)},
		{"pin out of range", createZoneBody("Side Yard", 40)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, "POST", srv.URL+"/api/zones", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}

	bad := createZoneBody("Side Yard", 17)
	bad["schedule"].(map[string]any)["duration_minutes"] = 200
	resp := doJSON(t, "POST", srv.URL+"/api/zones", bad)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestManualRunAndStop(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := doJSON(t, "POST", srv.URL+"/api/zones", createZoneBody("Front Yard", 17))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	runURL := srv.URL + "/api/zones/Front Yard/run"
	stopURL := srv.URL + "/api/zones/Front Yard/stop"

	// Bad duration.
	resp = doJSON(t, "POST", runURL, map[string]int{"duration_minutes": 0})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = doJSON(t, "POST", runURL, map[string]int{"duration_minutes": 181})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Stop while idle.
	resp = doJSON(t, "POST", stopURL, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Run.
	resp = doJSON(t, "POST", runURL, map[string]int{"duration_minutes": 10})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	running := decode[models.Zone](t, resp)
	assert.True(t, running.Active)
	assert.Equal(t, models.StartedByManual, running.StartedBy)
	assert.NotNil(t, running.ActiveUntil)

	// Run again while running.
	resp = doJSON(t, "POST", runURL, map[string]int{"duration_minutes": 10})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Stop.
	resp = doJSON(t, "POST", stopURL, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stopped := decode[models.Zone](t, resp)
	assert.Equal(t, running.RunID, stopped.RunID)

	// Unknown zone.
	resp = doJSON(t, "POST", srv.URL+"/api/zones/Nope/run", map[string]int{"duration_minutes": 10})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestScheduleGateEndpoints(t *testing.T) {
	srv, registry, _ := newTestServer(t)

	resp := doJSON(t, "POST", srv.URL+"/api/zones", createZoneBody("Front Yard", 17))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, "POST", srv.URL+"/api/zones/Front Yard/schedule/disable", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	z := decode[models.Zone](t, resp)
	assert.False(t, z.Schedule.Enabled)

	resp = doJSON(t, "POST", srv.URL+"/api/zones/Front Yard/schedule/enable", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	z = decode[models.Zone](t, resp)
	assert.True(t, z.Schedule.Enabled)

	resp = doJSON(t, "POST", srv.URL+"/api/schedule/disable", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, registry.GlobalEnabled())

	resp = doJSON(t, "POST", srv.URL+"/api/schedule/enable", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, registry.GlobalEnabled())

	resp = doJSON(t, "POST", srv.URL+"/api/zones/Nope/schedule/enable", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUpdateZoneSchedule(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := doJSON(t, "POST", srv.URL+"/api/zones", createZoneBody("Front Yard", 17))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	update := map[string]any{
		"schedule": map[string]any{
			"days":             []int{6},
			"start_time":       "19:30",
			"duration_minutes": 45,
			"enabled":          false,
		},
	}
	resp = doJSON(t, "PUT", srv.URL+"/api/zones/Front Yard/schedule", update)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	z := decode[models.Zone](t, resp)
	assert.Equal(t, []int{6}, z.Schedule.Days)
	assert.Equal(t, "19:30", z.Schedule.StartTime)
	assert.Equal(t, 45, z.Schedule.DurationMinutes)
	assert.False(t, z.Schedule.Enabled)

	bad := map[string]any{
		"schedule": map[string]any{
			"days":             []int{9},
			"start_time":       "19:30",
			"duration_minutes": 45,
		},
	}
	resp = doJSON(t, "PUT", srv.URL+"/api/zones/Front Yard/schedule", bad)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStatusEndpoint(t *testing.T) {
	srv, _, controller := newTestServer(t)

	for i, name := range []string{"Front Yard", "Back Yard"} {
		resp := doJSON(t, "POST", srv.URL+"/api/zones", createZoneBody(name, 17+i))
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp := doJSON(t, "POST", srv.URL+"/api/zones/Front Yard/run", map[string]int{"duration_minutes": 10})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, "GET", srv.URL+"/api/status", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	status := decode[map[string]any](t, resp)
	assert.Equal(t, float64(2), status["total_zones"])
	assert.Equal(t, true, status["global_schedule_enabled"])
	assert.Equal(t, []any{"Front Yard"}, status["active_zones"])
	assert.ElementsMatch(t, []any{"Back Yard", "Front Yard"}, status["zones"])

	_, err := controller.Stop(resp.Request.Context(), "Front Yard", zone.StopReasonManual)
	require.NoError(t, err)
}

func TestStatusCodesForUnknownRoutes(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := doJSON(t, "GET", fmt.Sprintf("%s/api/zones/%s", srv.URL, "Missing"), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
