// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads LogicGraph settings from YAML and the environment.
//
// Precedence, lowest first: Default(), the YAML file, environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/LogicGraph/pkg/logging"
	"github.com/AleutianAI/LogicGraph/services/diagram/geom"
	"github.com/AleutianAI/LogicGraph/services/diagram/graph"
	"github.com/AleutianAI/LogicGraph/services/diagram/quadtree"
	"github.com/AleutianAI/LogicGraph/services/diagram/telemetry"
)

// Environment variables that override file settings.
const (
	EnvLogLevel        = "LOGICGRAPH_LOG_LEVEL"
	EnvAddr            = "LOGICGRAPH_ADDR"
	EnvTracesExporter  = "OTEL_TRACES_EXPORTER"
	EnvMetricsExporter = "OTEL_METRICS_EXPORTER"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

var configValidate *validator.Validate

func init() {
	configValidate = validator.New()
	_ = configValidate.RegisterValidation("loglevel", validateLogLevel)
}

func validateLogLevel(fl validator.FieldLevel) bool {
	_, err := logging.ParseLevel(fl.Field().String())
	return err == nil
}

// Config is the complete LogicGraph configuration.
type Config struct {
	World     WorldConfig     `yaml:"world" json:"world"`
	Index     IndexConfig     `yaml:"index" json:"index"`
	Node      NodeConfig      `yaml:"node" json:"node"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry" json:"telemetry"`
	Server    ServerConfig    `yaml:"server" json:"server"`
}

// WorldConfig is the extent of the spatial indexes.
type WorldConfig struct {
	X      float64 `yaml:"x" json:"x"`
	Y      float64 `yaml:"y" json:"y"`
	Width  float64 `yaml:"width" json:"width" validate:"gt=0"`
	Height float64 `yaml:"height" json:"height" validate:"gt=0"`
}

// IndexConfig tunes the quadtrees.
type IndexConfig struct {
	MaxDepth     int `yaml:"max_depth" json:"max_depth" validate:"gte=0,lte=16"`
	RootCapacity int `yaml:"root_capacity" json:"root_capacity" validate:"gte=1"`
}

// NodeConfig holds node defaults.
type NodeConfig struct {
	DefaultWidth  float64 `yaml:"default_width" json:"default_width" validate:"gte=0"`
	DefaultHeight float64 `yaml:"default_height" json:"default_height" validate:"gte=0"`
}

// LoggingConfig maps onto logging.Config.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level" validate:"loglevel"`
	JSON  bool   `yaml:"json" json:"json"`
	Dir   string `yaml:"dir" json:"dir"`
}

// TelemetryConfig selects OpenTelemetry exporters.
type TelemetryConfig struct {
	ServiceName     string `yaml:"service_name" json:"service_name" validate:"required"`
	TracesExporter  string `yaml:"traces_exporter" json:"traces_exporter" validate:"oneof=otlp stdout none"`
	MetricsExporter string `yaml:"metrics_exporter" json:"metrics_exporter" validate:"oneof=prometheus stdout none"`
}

// ServerConfig configures `logicgraph serve`.
type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr" validate:"required"`

	// MovingEventsPerSecond and MovingBurst throttle node:moving events per
	// websocket client. Other events are never throttled.
	MovingEventsPerSecond float64 `yaml:"moving_events_per_second" json:"moving_events_per_second" validate:"gt=0"`
	MovingBurst           int     `yaml:"moving_burst" json:"moving_burst" validate:"gte=1"`

	// WatchDebounce is how long the document watcher waits for writes to
	// settle before reloading.
	WatchDebounce time.Duration `yaml:"watch_debounce" json:"watch_debounce" validate:"gte=0"`
}

// Default returns the built-in configuration.
func Default() Config {
	world := graph.DefaultWorldBounds
	return Config{
		World: WorldConfig{X: world.X, Y: world.Y, Width: world.Width, Height: world.Height},
		Index: IndexConfig{
			MaxDepth:     quadtree.MaxDepth,
			RootCapacity: quadtree.MaxItemsPerRootLeaf,
		},
		Node: NodeConfig{
			DefaultWidth:  graph.DefaultNodeSize.Width,
			DefaultHeight: graph.DefaultNodeSize.Height,
		},
		Logging: LoggingConfig{Level: "info"},
		Telemetry: TelemetryConfig{
			ServiceName:     "logicgraph",
			TracesExporter:  "none",
			MetricsExporter: "prometheus",
		},
		Server: ServerConfig{
			Addr:                  ":8088",
			MovingEventsPerSecond: 30,
			MovingBurst:           5,
			WatchDebounce:         200 * time.Millisecond,
		},
	}
}

// Load reads configuration from path, applies environment overrides and
// validates the result.
//
// Inputs:
//
//	path - YAML file. Empty means defaults plus environment only.
//
// Errors:
//
//	Read and parse errors are returned wrapped; os.ErrNotExist survives
//	wrapping. ErrInvalidConfig if validation fails.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.ApplyEnv(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides settings from the environment. getenv is usually
// os.Getenv; empty values are ignored.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := getenv(EnvAddr); v != "" {
		c.Server.Addr = v
	}
	if v := getenv(EnvTracesExporter); v != "" {
		c.Telemetry.TracesExporter = v
	}
	if v := getenv(EnvMetricsExporter); v != "" {
		c.Telemetry.MetricsExporter = v
	}
}

// Validate checks every field constraint.
func (c *Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Marshal encodes the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// WorldBounds returns the configured world as a rectangle.
func (c *Config) WorldBounds() geom.Rect {
	return geom.NewRect(c.World.X, c.World.Y, c.World.Width, c.World.Height)
}

// LoggingConfig converts the logging section into a logging.Config. The
// level must already be valid.
func (c *Config) LoggingConfig(service string) logging.Config {
	level, _ := logging.ParseLevel(c.Logging.Level)
	return logging.Config{
		Level:   level,
		LogDir:  c.Logging.Dir,
		Service: service,
		JSON:    c.Logging.JSON,
	}
}

// TelemetryConfig overlays the telemetry section on telemetry.DefaultConfig.
func (c *Config) TelemetryConfig() telemetry.Config {
	tc := telemetry.DefaultConfig()
	tc.ServiceName = c.Telemetry.ServiceName
	tc.TraceExporter = c.Telemetry.TracesExporter
	tc.MetricExporter = c.Telemetry.MetricsExporter
	return tc
}

// GraphOptions converts the configuration into graph options.
func (c *Config) GraphOptions(logger *slog.Logger) []graph.Option {
	return []graph.Option{
		graph.WithWorldBounds(c.WorldBounds()),
		graph.WithIndexDepth(c.Index.MaxDepth),
		graph.WithIndexRootCapacity(c.Index.RootCapacity),
		graph.WithDefaultNodeSize(graph.Size{
			Width:  c.Node.DefaultWidth,
			Height: c.Node.DefaultHeight,
		}),
		graph.WithLogger(logger),
	}
}
