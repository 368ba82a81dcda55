package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"turbo-slide/internal/services"
)

// Default config file locations, tried in order when SLIDES_CONFIG is unset
var defaultConfigFiles = []string{"turbo-slide.config.yaml", "turbo-slide.config.json"}

// Config holds the complete server configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	TLS      TLSConfig      `yaml:"tls"`
	Slides   SlidesConfig   `yaml:"slides"`
	Events   EventsConfig   `yaml:"events"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
}

// ServerConfig contains listener settings
type ServerConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
}

// TLSConfig contains certificate settings
type TLSConfig struct {
	Enabled    bool   `yaml:"enabled"`
	CertFile   string `yaml:"cert_file"`
	KeyFile    string `yaml:"key_file"`
	MinVersion string `yaml:"min_version"`
}

// SlidesConfig describes where decks live and how they are presented
type SlidesConfig struct {
	Title        string `yaml:"title"`
	Author       string `yaml:"author"`
	TimerSeconds int    `yaml:"timer_seconds"`
	DecksDir     string `yaml:"decks_dir"`
	DefaultDeck  string `yaml:"default_deck"`
	ImportDir    string `yaml:"import_dir"`
	PublicDir    string `yaml:"public_dir"`
	ImagesDir    string `yaml:"images_dir"`
	Mount        string `yaml:"mount"`
	LegacyHome   bool   `yaml:"legacy_home"`
	WatchImports bool   `yaml:"watch_imports"`
}

// EventsConfig tunes the push channels
type EventsConfig struct {
	WriteTimeout time.Duration `yaml:"write_timeout"`
	Keepalive    time.Duration `yaml:"keepalive"`
}

// DatabaseConfig points at the sqlite import ledger
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// MQTTConfig enables mirroring slide changes to a broker
type MQTTConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Broker        string        `yaml:"broker"`
	ClientID      string        `yaml:"client_id"`
	TopicPrefix   string        `yaml:"topic_prefix"`
	QoS           byte          `yaml:"qos"`
	PayloadFormat string        `yaml:"payload_format"` // json or msgpack
	WriteTimeout  time.Duration `yaml:"write_timeout"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: "3000",
		},
		TLS: TLSConfig{
			MinVersion: "1.2",
		},
		Slides: SlidesConfig{
			Title:        "Turbo Slide",
			TimerSeconds: 600,
			DecksDir:     "./slides/decks",
			DefaultDeck:  "default",
			ImportDir:    "./slides/import",
			PublicDir:    "./public",
			ImagesDir:    "./slides/images",
			Mount:        "decks",
			WatchImports: true,
		},
		Events: EventsConfig{
			WriteTimeout: 5 * time.Second,
			Keepalive:    30 * time.Second,
		},
		Database: DatabaseConfig{
			Path: "./data/slides.db",
		},
		MQTT: MQTTConfig{
			Broker:        "localhost:1883",
			ClientID:      "turbo-slide",
			TopicPrefix:   "slides",
			PayloadFormat: "json",
			WriteTimeout:  2 * time.Second,
		},
	}
}

// Load reads the config file at path over the defaults. A missing file is not
// an error; a malformed one is.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	var legacy legacyConfig
	if err := yaml.Unmarshal(data, &legacy); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if legacy.apply(cfg) {
		log.Printf("Config %s uses flat keys (title, author, timer, slidesDir, imagesDir); prefer the slides section", path)
	}

	return cfg, nil
}

// legacyConfig is the flat turbo-slide.config.json layout. Nested slides.*
// keys take precedence when both are given.
type legacyConfig struct {
	Title     *string `yaml:"title"`
	Author    *string `yaml:"author"`
	Timer     *int    `yaml:"timer"`
	SlidesDir *string `yaml:"slidesDir"`
	ImagesDir *string `yaml:"imagesDir"`
	Slides    struct {
		Title        *string `yaml:"title"`
		Author       *string `yaml:"author"`
		TimerSeconds *int    `yaml:"timer_seconds"`
		DecksDir     *string `yaml:"decks_dir"`
		ImagesDir    *string `yaml:"images_dir"`
	} `yaml:"slides"`
}

// apply copies flat keys onto cfg and reports whether any were present.
// slidesDir is the old slides root; decks live in its decks subdirectory.
func (l *legacyConfig) apply(cfg *Config) bool {
	found := false
	if l.Title != nil {
		found = true
		if l.Slides.Title == nil {
			cfg.Slides.Title = *l.Title
		}
	}
	if l.Author != nil {
		found = true
		if l.Slides.Author == nil {
			cfg.Slides.Author = *l.Author
		}
	}
	if l.Timer != nil {
		found = true
		if l.Slides.TimerSeconds == nil {
			cfg.Slides.TimerSeconds = *l.Timer
		}
	}
	if l.SlidesDir != nil {
		found = true
		if l.Slides.DecksDir == nil {
			cfg.Slides.DecksDir = filepath.Join(*l.SlidesDir, "decks")
		}
	}
	if l.ImagesDir != nil {
		found = true
		if l.Slides.ImagesDir == nil {
			cfg.Slides.ImagesDir = *l.ImagesDir
		}
	}
	return found
}

// LoadConfig loads configuration from file and environment. It never fails:
// a broken config file degrades to defaults with a warning.
func LoadConfig() *Config {
	path := os.Getenv("SLIDES_CONFIG")
	if path == "" {
		path = defaultConfigFiles[0]
		for _, candidate := range defaultConfigFiles {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	cfg, err := Load(path)
	if err != nil {
		log.Printf("Warning: %v, using defaults", err)
		cfg = Default()
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		log.Printf("Warning: invalid configuration (%v), using defaults", err)
		cfg = Default()
		cfg.applyEnv()
	}

	return cfg
}

// applyEnv overrides file settings with environment variables
func (c *Config) applyEnv() {
	setString(&c.Server.Host, "HOST")
	setString(&c.Server.Port, "PORT")
	setString(&c.Slides.DecksDir, "DECKS_DIR")
	setString(&c.Slides.ImportDir, "IMPORT_DIR")
	setString(&c.Slides.PublicDir, "PUBLIC_DIR")
	setString(&c.Slides.ImagesDir, "IMAGES_DIR")
	setString(&c.Database.Path, "DB_PATH")
	setString(&c.MQTT.Broker, "MQTT_BROKER")
	setString(&c.TLS.CertFile, "TLS_CERT_FILE")
	setString(&c.TLS.KeyFile, "TLS_KEY_FILE")

	if v := os.Getenv("TLS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.TLS.Enabled = b
		}
	}
	if v := os.Getenv("MQTT_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.MQTT.Enabled = b
		}
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate checks settings that would otherwise fail at request time
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if c.Slides.DecksDir == "" {
		return fmt.Errorf("slides.decks_dir is required")
	}
	if !services.ValidDeckName(c.Slides.DefaultDeck) {
		return fmt.Errorf("slides.default_deck %q is not a valid deck name", c.Slides.DefaultDeck)
	}
	if !services.ValidDeckName(c.Slides.Mount) {
		return fmt.Errorf("slides.mount %q is not a valid path segment", c.Slides.Mount)
	}
	if c.Slides.Mount == "images" {
		return fmt.Errorf("slides.mount %q collides with the /images route", c.Slides.Mount)
	}
	if c.Slides.TimerSeconds < 0 {
		return fmt.Errorf("slides.timer_seconds must not be negative")
	}
	switch c.MQTT.PayloadFormat {
	case "", "json", "msgpack":
	default:
		return fmt.Errorf("mqtt.payload_format %q is not supported", c.MQTT.PayloadFormat)
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
	}
	if c.TLS.Enabled && (c.TLS.CertFile == "" || c.TLS.KeyFile == "") {
		return fmt.Errorf("tls.cert_file and tls.key_file are required when TLS is enabled")
	}
	return nil
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}
