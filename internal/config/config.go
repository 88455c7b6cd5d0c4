// Package config loads the server configuration from YAML with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the sprinkler controller.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	GPIO      GPIOConfig      `yaml:"gpio"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr      string `yaml:"addr"`
	StaticDir string `yaml:"static_dir"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// SchedulerConfig holds schedule engine settings.
type SchedulerConfig struct {
	// Timezone for evaluating trigger windows, e.g. "Europe/London".
	// Empty means the host's local time.
	Timezone string `yaml:"timezone"`
}

// GPIOConfig selects the output driver.
type GPIOConfig struct {
	// Driver is "sysfs" for real hardware or "mock" for development.
	Driver string `yaml:"driver"`
}

// MQTTConfig holds the optional state publisher settings.
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"` // e.g. "tcp://localhost:1883"
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:      ":8070",
			StaticDir: "./static",
		},
		Database: DatabaseConfig{
			Path: "/data/sprinkler.db",
		},
		GPIO: GPIOConfig{
			Driver: "mock",
		},
		MQTT: MQTTConfig{
			Broker:      "tcp://localhost:1883",
			ClientID:    "sprinkler-controller",
			TopicPrefix: "sprinkler",
		},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. A missing file is not an error; env-only setups
// are supported.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Fall through to env overrides.
		case err != nil:
			return cfg, fmt.Errorf("reading config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parsing config file: %w", err)
			}
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overrides config values from the environment.
func (c *Config) applyEnv() {
	setString(&c.Server.Addr, "SPRINKLER_ADDR")
	setString(&c.Server.StaticDir, "SPRINKLER_STATIC_DIR")
	setString(&c.Database.Path, "SPRINKLER_DB_PATH")
	setString(&c.Scheduler.Timezone, "SPRINKLER_TIMEZONE")
	setString(&c.GPIO.Driver, "SPRINKLER_GPIO_DRIVER")
	setString(&c.MQTT.Broker, "SPRINKLER_MQTT_BROKER")
	setString(&c.MQTT.ClientID, "SPRINKLER_MQTT_CLIENT_ID")
	setString(&c.MQTT.TopicPrefix, "SPRINKLER_MQTT_TOPIC_PREFIX")
	setString(&c.MQTT.Username, "SPRINKLER_MQTT_USERNAME")
	setString(&c.MQTT.Password, "SPRINKLER_MQTT_PASSWORD")
	if v := os.Getenv("SPRINKLER_MQTT_ENABLED"); v != "" {
		c.MQTT.Enabled = v == "1" || v == "true" || v == "yes"
	}
}

func (c *Config) validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves the scheduler timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Scheduler.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid scheduler.timezone %q: %w", c.Scheduler.Timezone, err)
	}
	return loc, nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
