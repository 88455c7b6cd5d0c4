package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sprinkler-controller/backend/internal/api/middleware"
	"github.com/sprinkler-controller/backend/internal/storage/models"
	"github.com/sprinkler-controller/backend/internal/websocket"
	"github.com/sprinkler-controller/backend/internal/zone"
)

// RunZoneRequest is the body of POST /api/zones/{name}/run.
type RunZoneRequest struct {
	DurationMinutes int `json:"duration_minutes"`
}

// RunZone starts a zone manually. Manual control ignores both schedule
// gates.
func RunZone(controller *zone.Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := mux.Vars(r)["name"]

		var req RunZoneRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}

		z, err := controller.Start(r.Context(), name, req.DurationMinutes, models.StartedByManual)
		if err != nil {
			writeZoneError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, z)
	}
}

// StopZone stops a running zone.
func StopZone(controller *zone.Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := mux.Vars(r)["name"]

		z, err := controller.Stop(r.Context(), name, zone.StopReasonManual)
		if err != nil {
			writeZoneError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, z)
	}
}

// SetZoneSchedule enables or disables a zone's schedule gate. A running
// zone keeps running; only future triggers change.
func SetZoneSchedule(registry *zone.Registry, broadcaster *websocket.EventBroadcaster, enabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := mux.Vars(r)["name"]

		z, err := registry.SetZoneScheduleEnabled(r.Context(), name, enabled)
		if err := persisted(err); err != nil {
			writeZoneError(w, err)
			return
		}

		if broadcaster != nil {
			broadcaster.ZoneScheduleUpdated(z)
		}
		writeJSON(w, http.StatusOK, z)
	}
}

// SetGlobalSchedule enables or disables the process-wide schedule gate.
func SetGlobalSchedule(registry *zone.Registry, broadcaster *websocket.EventBroadcaster, enabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := registry.SetGlobalEnabled(r.Context(), enabled)
		if err := persisted(err); err != nil {
			writeZoneError(w, err)
			return
		}

		if broadcaster != nil {
			broadcaster.GlobalScheduleChanged(enabled)
		}
		writeJSON(w, http.StatusOK, map[string]bool{"enabled": enabled})
	}
}
