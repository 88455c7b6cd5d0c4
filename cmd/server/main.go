// Package main is the entry point for the sprinkler controller server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/sprinkler-controller/backend/internal/api"
	"github.com/sprinkler-controller/backend/internal/config"
	"github.com/sprinkler-controller/backend/internal/gpio"
	"github.com/sprinkler-controller/backend/internal/mqtt"
	"github.com/sprinkler-controller/backend/internal/storage"
	"github.com/sprinkler-controller/backend/internal/storage/models"
	"github.com/sprinkler-controller/backend/internal/websocket"
	"github.com/sprinkler-controller/backend/internal/zone"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "Path to YAML configuration file")
	addr := flag.String("addr", "", "HTTP server address (overrides config)")
	dataPath := flag.String("data", "", "Path to SQLite database file (overrides config)")
	healthCheck := flag.Bool("health-check", false, "Run health check and exit")
	flag.Parse()

	// A .env file is optional; real environments set variables directly.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *dataPath != "" {
		cfg.Database.Path = *dataPath
	}

	// Health check mode for container HEALTHCHECK
	if *healthCheck {
		if err := runHealthCheck(cfg.Server.Addr); err != nil {
			log.Fatalf("Health check failed: %v", err)
		}
		os.Exit(0)
	}

	log.Printf("Starting sprinkler controller (version: %s)...", version)

	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("Invalid timezone: %v", err)
	}

	// Database and migrations
	db, err := storage.NewDB(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := storage.RunMigrations(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations complete")

	// GPIO driver
	driver, err := gpio.New(cfg.GPIO.Driver)
	if err != nil {
		log.Fatalf("Failed to initialize GPIO driver: %v", err)
	}
	defer driver.Close()

	// WebSocket hub
	hub := websocket.NewHub()
	go hub.Run()
	broadcaster := websocket.NewEventBroadcaster(hub)

	// Load persisted zones, seeding the defaults on first boot.
	ctx := context.Background()
	repo := storage.NewZoneRepository(db)
	zones, globalEnabled, err := repo.Load(ctx)
	if err != nil {
		log.Fatalf("Failed to load zones: %v", err)
	}
	if len(zones) == 0 {
		zones = defaultZones()
		if err := repo.Save(ctx, zones, globalEnabled); err != nil {
			log.Fatalf("Failed to seed default zones: %v", err)
		}
		log.Println("Default zones created")
	}

	// Engine wiring
	listeners := []zone.RunListener{broadcaster}
	var statePublisher *mqtt.Publisher
	if cfg.MQTT.Enabled {
		statePublisher, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			log.Printf("Warning: MQTT publisher unavailable: %v", err)
		} else {
			defer statePublisher.Close()
			listeners = append(listeners, statePublisher)
		}
	}

	registry := zone.NewRegistry(repo)
	registry.Init(zones, globalEnabled)
	controller := zone.NewController(registry, driver, listeners...)
	registry.AttachController(controller)
	guard := zone.NewGuard(controller)

	for _, z := range registry.List() {
		if err := controller.SetupOutput(z.GPIOPin); err != nil {
			log.Printf("Warning: failed to configure pin %d for zone '%s': %v", z.GPIOPin, z.Name, err)
		}
	}
	log.Printf("Sprinkler controller initialized with %d zones", len(zones))

	engine := zone.NewEngine(registry, controller, loc)
	engine.Start()

	// HTTP server
	router := api.NewRouter(api.Deps{
		DB:          db,
		Registry:    registry,
		Controller:  controller,
		Engine:      engine,
		Hub:         hub,
		Broadcaster: broadcaster,
		StaticDir:   cfg.Server.StaticDir,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server listening on %s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Stop scheduling first so no new run starts, then force every output
	// off before the process is allowed to exit.
	engine.Stop()
	guard.OnShutdown(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}

// defaultZones is the zone set created on a fresh install.
func defaultZones() []models.Zone {
	now := time.Now().UTC()
	return []models.Zone{
		{
			Name:    "Front Yard",
			GPIOPin: 17,
			Schedule: models.Schedule{
				Days:            []int{0, 2, 4}, // Monday, Wednesday, Friday
				StartTime:       "06:00",
				DurationMinutes: 20,
				Enabled:         true,
			},
			CreatedAt: now,
			UpdatedAt: now,
		},
		{
			Name:    "Back Yard",
			GPIOPin: 27,
			Schedule: models.Schedule{
				Days:            []int{1, 3, 5}, // Tuesday, Thursday, Saturday
				StartTime:       "06:30",
				DurationMinutes: 15,
				Enabled:         true,
			},
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

// runHealthCheck performs a health check against the running server.
func runHealthCheck(addr string) error {
	url := "http://localhost" + addr + "/api/health"
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
