package handlers

import (
	"net/http"

	"github.com/sprinkler-controller/backend/internal/storage"
	"github.com/sprinkler-controller/backend/internal/zone"
)

// HealthResponse is the health check body.
type HealthResponse struct {
	Status      string `json:"status"`
	DBConnected bool   `json:"db_connected"`
}

// HealthCheck reports process liveness and database reachability.
func HealthCheck(db *storage.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dbConnected := db.Ping() == nil

		status := "healthy"
		code := http.StatusOK
		if !dbConnected {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		writeJSON(w, code, HealthResponse{
			Status:      status,
			DBConnected: dbConnected,
		})
	}
}

// StatusResponse is the system status body.
type StatusResponse struct {
	ControllerRunning     bool     `json:"controller_running"`
	GlobalScheduleEnabled bool     `json:"global_schedule_enabled"`
	TotalZones            int      `json:"total_zones"`
	Zones                 []string `json:"zones"`
	ActiveZones           []string `json:"active_zones"`
	EnabledSchedules      []string `json:"enabled_schedules"`
	ConnectedClients      int      `json:"connected_clients"`
}

// StatusDeps are the collaborators the status endpoint reads from.
type StatusDeps struct {
	Registry *zone.Registry
	Engine   *zone.Engine
	Clients  interface{ ClientCount() int }
}

// Status reports the overall system status snapshot.
func Status(deps StatusDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		zones := deps.Registry.List()

		resp := StatusResponse{
			ControllerRunning:     deps.Engine.Running(),
			GlobalScheduleEnabled: deps.Registry.GlobalEnabled(),
			TotalZones:            len(zones),
			Zones:                 []string{},
			ActiveZones:           []string{},
			EnabledSchedules:      []string{},
		}
		if deps.Clients != nil {
			resp.ConnectedClients = deps.Clients.ClientCount()
		}

		for _, z := range zones {
			resp.Zones = append(resp.Zones, z.Name)
			if z.Active {
				resp.ActiveZones = append(resp.ActiveZones, z.Name)
			}
			if z.Schedule.Enabled {
				resp.EnabledSchedules = append(resp.EnabledSchedules, z.Name)
			}
		}

		writeJSON(w, http.StatusOK, resp)
	}
}
