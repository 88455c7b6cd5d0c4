// Package handlers provides HTTP request handlers for the API endpoints.
package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sprinkler-controller/backend/internal/api/middleware"
	"github.com/sprinkler-controller/backend/internal/storage/models"
	"github.com/sprinkler-controller/backend/internal/websocket"
	"github.com/sprinkler-controller/backend/internal/zone"
)

// ScheduleRequest is the schedule portion of zone create/update requests.
type ScheduleRequest struct {
	Days            []int  `json:"days"`
	StartTime       string `json:"start_time"`
	DurationMinutes int    `json:"duration_minutes"`
	Enabled         *bool  `json:"enabled"`
}

func (s ScheduleRequest) toModel() models.Schedule {
	enabled := true
	if s.Enabled != nil {
		enabled = *s.Enabled
	}
	return models.Schedule{
		Days:            s.Days,
		StartTime:       s.StartTime,
		DurationMinutes: s.DurationMinutes,
		Enabled:         enabled,
	}
}

// CreateZoneRequest is the body of POST /api/zones.
type CreateZoneRequest struct {
	Name     string          `json:"name"`
	GPIOPin  int             `json:"gpio_pin"`
	Schedule ScheduleRequest `json:"schedule"`
}

// writeZoneError maps engine errors to HTTP statuses.
func writeZoneError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, zone.ErrZoneNotFound):
		middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, err.Error())
	case errors.Is(err, zone.ErrAlreadyRunning),
		errors.Is(err, zone.ErrNotRunning),
		errors.Is(err, zone.ErrDuplicateZone),
		errors.Is(err, zone.ErrPinInUse):
		middleware.WriteError(w, http.StatusConflict, middleware.ErrConflict, err.Error())
	case errors.Is(err, zone.ErrInvalidDuration),
		errors.Is(err, zone.ErrInvalidSchedule):
		middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, err.Error())
	default:
		middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, err.Error())
	}
}

// persisted filters a registry result for a save failure. The in-memory
// mutation has succeeded in that case, so the handler reports the primary
// outcome and only logs the persistence problem. Anything else comes back
// for the caller to surface.
func persisted(err error) error {
	if errors.Is(err, zone.ErrPersistence) {
		log.Printf("Warning: %v", err)
		return nil
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ListZones returns all zones and their current status.
func ListZones(registry *zone.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		zones := registry.List()
		if zones == nil {
			zones = []models.Zone{}
		}
		writeJSON(w, http.StatusOK, zones)
	}
}

// GetZone returns a single zone by name.
func GetZone(registry *zone.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := mux.Vars(r)["name"]

		z, err := registry.Get(name)
		if err != nil {
			writeZoneError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, z)
	}
}

// CreateZone creates a new zone.
func CreateZone(registry *zone.Registry, broadcaster *websocket.EventBroadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateZoneRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}

		z, err := registry.Create(r.Context(), models.Zone{
			Name:     req.Name,
			GPIOPin:  req.GPIOPin,
			Schedule: req.Schedule.toModel(),
		})
		if err := persisted(err); err != nil {
			writeZoneError(w, err)
			return
		}

		if broadcaster != nil {
			broadcaster.ZoneCreated(z)
		}
		writeJSON(w, http.StatusCreated, z)
	}
}

// DeleteZone removes a zone, stopping it first when active.
func DeleteZone(registry *zone.Registry, broadcaster *websocket.EventBroadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := mux.Vars(r)["name"]

		err := registry.Delete(r.Context(), name)
		if err := persisted(err); err != nil {
			writeZoneError(w, err)
			return
		}

		if broadcaster != nil {
			broadcaster.ZoneDeleted(name)
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// UpdateZoneSchedule replaces a zone's schedule.
func UpdateZoneSchedule(registry *zone.Registry, broadcaster *websocket.EventBroadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := mux.Vars(r)["name"]

		var req struct {
			Schedule ScheduleRequest `json:"schedule"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}

		z, err := registry.UpdateSchedule(r.Context(), name, req.Schedule.toModel())
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
