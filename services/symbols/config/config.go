// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.
// Package config loads the engine and CLI configuration.
//
// Defaults are embedded; a user file overrides them key by key and a few
// environment variables override both. The result is validated before
// use and maps onto convert and index options.
package config

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/symbridge/services/symbols/convert"
	"github.com/AleutianAI/symbridge/services/symbols/index"
	"github.com/AleutianAI/symbridge/services/symbols/match"
	"github.com/AleutianAI/symbridge/services/symbols/metadata"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// MaxYAMLFileSize bounds configuration files.
const MaxYAMLFileSize = 1 << 20

// Environment overrides.
const (
	EnvLogLevel    = "SYMBOLS_LOG_LEVEL"
	EnvLogFormat   = "SYMBOLS_LOG_FORMAT"
	EnvSnapshotDir = "SYMBOLS_SNAPSHOT_DIR"
)

var tracer = otel.Tracer("symbols.config")

// =============================================================================
// Configuration Types
// =============================================================================

// Config is the full configuration.
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type Config struct {
	Engine    EngineConfig    `yaml:"engine"`
	Metadata  MetadataConfig  `yaml:"metadata"`
	Matching  MatchingConfig  `yaml:"matching"`
	Synthetic SyntheticConfig `yaml:"synthetic"`
	Logging   LoggingConfig   `yaml:"logging"`
	Snapshot  SnapshotConfig  `yaml:"snapshot"`
}

// EngineConfig sizes the conversion engine and index.
type EngineConfig struct {
	// Workers bounds batch conversion. 0 means GOMAXPROCS.
	Workers int `yaml:"workers" validate:"gte=0"`

	// MaxSymbols is the index capacity.
	MaxSymbols int `yaml:"max_symbols" validate:"gte=1"`
}

// MetadataConfig is the metadata version gate.
type MetadataConfig struct {
	// MinVersion is the oldest readable version, with or without a
	// leading "v".
	MinVersion string `yaml:"min_version" validate:"required,metaversion"`

	// MaxMajor is the newest readable major version.
	MaxMajor int `yaml:"max_major" validate:"gte=1"`
}

// MatchingConfig tunes member matching.
type MatchingConfig struct {
	// NameExceptions are signatures exempt from parameter-name comparison.
	NameExceptions []string `yaml:"name_exceptions" validate:"dive,required"`
}

// SyntheticConfig classifies members and types with no metadata.
type SyntheticConfig struct {
	TypeSuffixes     []string `yaml:"type_suffixes" validate:"dive,required"`
	ArtifactPatterns []string `yaml:"artifact_patterns" validate:"dive,required,matchpattern"`
}

// LoggingConfig selects the CLI log handler.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=auto text json"`
}

// SnapshotConfig locates the snapshot store.
type SnapshotConfig struct {
	// Dir is the BadgerDB directory. Empty means in-memory.
	Dir string `yaml:"dir"`

	// ListLimit bounds snapshot listings. 0 means the store default.
	ListLimit int `yaml:"list_limit" validate:"gte=0"`
}

// =============================================================================
// Loading
// =============================================================================

// Default returns the embedded defaults with environment overrides.
func Default(ctx context.Context) (*Config, error) {
	return Parse(ctx, nil)
}

// Load reads a YAML file over the defaults. An empty path returns Default.
func Load(ctx context.Context, file string) (*Config, error) {
	if file == "" {
		return Default(ctx)
	}
	info, err := os.Stat(file)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if info.Size() > MaxYAMLFileSize {
		return nil, fmt.Errorf("config: %s exceeds maximum size (%d > %d)", file, info.Size(), MaxYAMLFileSize)
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return Parse(ctx, data)
}

// Parse overlays data on the embedded defaults.
//
// Description:
//
//	Decodes the defaults, then data, into one Config so keys absent from
//	data keep their default. Lists present in data replace the default
//	list. Environment overrides are applied last and the result is
//	validated.
//
// Inputs:
//
//	ctx - Context for tracing. Must not be nil.
//	data - User YAML; may be empty.
//
// Outputs:
//
//	*Config - The validated configuration.
//	error - Non-nil if parsing or validation fails.
func Parse(ctx context.Context, data []byte) (*Config, error) {
	return parse(ctx, data, os.LookupEnv)
}

func parse(ctx context.Context, data []byte, lookup func(string) (string, bool)) (*Config, error) {
	_, span := tracer.Start(ctx, "config.Parse")
	defer span.End()

	if len(data) > MaxYAMLFileSize {
		return nil, fmt.Errorf("config: YAML data exceeds maximum size (%d > %d)", len(data), MaxYAMLFileSize)
	}

	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing defaults: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parsing YAML: %w", err)
		}
	}
	cfg.applyEnv(lookup)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("workers", cfg.Engine.Workers),
		attribute.String("metadata.min_version", cfg.Metadata.MinVersion),
		attribute.Int("artifact_patterns", len(cfg.Synthetic.ArtifactPatterns)),
	)
	return &cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v, ok := lookup(EnvLogFormat); ok && v != "" {
		c.Logging.Format = strings.ToLower(v)
	}
	if v, ok := lookup(EnvSnapshotDir); ok {
		c.Snapshot.Dir = v
	}
}

// =============================================================================
// Validation
// =============================================================================

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Registration only fails for empty tags or nil functions.
	_ = v.RegisterValidation("metaversion", func(fl validator.FieldLevel) bool {
		return semver.IsValid(canonical(fl.Field().String()))
	})
	_ = v.RegisterValidation("matchpattern", func(fl validator.FieldLevel) bool {
		_, err := path.Match(fl.Field().String(), "")
		return err == nil
	})
	return v
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: validation: %w", err)
	}
	return nil
}

func canonical(v string) string {
	if v != "" && !strings.HasPrefix(v, "v") {
		return "v" + v
	}
	return v
}

// =============================================================================
// Mapping
// =============================================================================

// EngineOptions returns the convert options this configuration describes.
func (c *Config) EngineOptions(logger *slog.Logger) []convert.Option {
	return []convert.Option{
		convert.WithLogger(logger),
		convert.WithWorkers(c.Engine.Workers),
		convert.WithDecoder(metadata.NewBlobDecoder(
			metadata.WithMinVersion(canonical(c.Metadata.MinVersion)),
			metadata.WithMaxMajor(c.Metadata.MaxMajor),
		)),
		convert.WithMatcher(match.NewMatcher(match.WithNameExceptions(c.Matching.NameExceptions...))),
		convert.WithSyntheticTypeSuffixes(c.Synthetic.TypeSuffixes...),
		convert.WithArtifactPatterns(c.Synthetic.ArtifactPatterns...),
	}
}

// IndexOptions returns the index options this configuration describes.
func (c *Config) IndexOptions() []index.Option {
	return []index.Option{index.WithMaxSymbols(c.Engine.MaxSymbols)}
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() slog.Level {
	switch c.Logging.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
