// Package api provides HTTP routing and handlers for the REST API.
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sprinkler-controller/backend/internal/api/handlers"
	"github.com/sprinkler-controller/backend/internal/api/middleware"
	"github.com/sprinkler-controller/backend/internal/storage"
	"github.com/sprinkler-controller/backend/internal/websocket"
	"github.com/sprinkler-controller/backend/internal/zone"
)

// Deps are the collaborators the router hands to its handlers.
type Deps struct {
	DB          *storage.DB
	Registry    *zone.Registry
	Controller  *zone.Controller
	Engine      *zone.Engine
	Hub         *websocket.Hub
	Broadcaster *websocket.EventBroadcaster
	StaticDir   string
}

// NewRouter creates and configures the HTTP router with all API routes.
func NewRouter(deps Deps) *mux.Router {
	r := mux.NewRouter()

	r.Use(middleware.Logging)
	r.Use(middleware.ErrorRecovery)

	api := r.PathPrefix("/api").Subrouter()

	// Health and status endpoints
	api.HandleFunc("/health", handlers.HealthCheck(deps.DB)).Methods("GET")
	api.HandleFunc("/status", handlers.Status(handlers.StatusDeps{
		Registry: deps.Registry,
		Engine:   deps.Engine,
		Clients:  deps.Hub,
	})).Methods("GET")

	// WebSocket endpoint
	api.HandleFunc("/ws", handlers.WebSocketUpgrade(deps.Hub)).Methods("GET")

	// Zone endpoints
	api.HandleFunc("/zones", handlers.ListZones(deps.Registry)).Methods("GET")
	api.HandleFunc("/zones", handlers.CreateZone(deps.Registry, deps.Broadcaster)).Methods("POST")
	api.HandleFunc("/zones/{name}", handlers.GetZone(deps.Registry)).Methods("GET")
	api.HandleFunc("/zones/{name}", handlers.DeleteZone(deps.Registry, deps.Broadcaster)).Methods("DELETE")
	api.HandleFunc("/zones/{name}/schedule", handlers.UpdateZoneSchedule(deps.Registry, deps.Broadcaster)).Methods("PUT")

	// Manual control endpoints
	api.HandleFunc("/zones/{name}/run", handlers.RunZone(deps.Controller)).Methods("POST")
	api.HandleFunc("/zones/{name}/stop", handlers.StopZone(deps.Controller)).Methods("POST")

	// Schedule gate endpoints
	api.HandleFunc("/zones/{name}/schedule/enable", handlers.SetZoneSchedule(deps.Registry, deps.Broadcaster, true)).Methods("POST")
	api.HandleFunc("/zones/{name}/schedule/disable", handlers.SetZoneSchedule(deps.Registry, deps.Broadcaster, false)).Methods("POST")
	api.HandleFunc("/schedule/enable", handlers.SetGlobalSchedule(deps.Registry, deps.Broadcaster, true)).Methods("POST")
	api.HandleFunc("/schedule/disable", handlers.SetGlobalSchedule(deps.Registry, deps.Broadcaster, false)).Methods("POST")

	// Serve static frontend files
	r.PathPrefix("/").Handler(http.FileServer(http.Dir(deps.StaticDir)))

	return r
}
