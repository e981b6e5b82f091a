// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package convert turns platform declaration nodes into merged symbols.
//
// An Engine classifies each node by kind and metadata presence, assembles
// container types against their decoded metadata, and memoizes every
// result in a Cache keyed by platform identity. Members are never
// converted on their own: converting a member converts its container and
// then reads the member back from the cache.
package convert

import (
	"context"
	"log/slog"
	"runtime"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/symbridge/services/symbols/match"
	"github.com/AleutianAI/symbridge/services/symbols/metadata"
)

// DefaultSyntheticTypeSuffixes are type-name suffixes of compiler-generated
// types that carry no metadata.
var DefaultSyntheticTypeSuffixes = []string{"$DefaultImpls", "$WhenMappings"}

// DefaultArtifactPatterns are path.Match patterns for member names the
// compiler emits without a metadata counterpart.
var DefaultArtifactPatterns = []string{
	"<clinit>",
	"access$*",
	"*$default",
	"$$delegatedProperties",
	"$$INSTANCE",
	"INSTANCE",
	"Companion",
	"$values",
	"$ENTRIES",
	"values",
	"valueOf",
	"getEntries",
	"$assertionsDisabled",
	"$jacocoData",
	"box-impl",
	"unbox-impl",
	"toString",
	"hashCode",
	"equals",
	"component[0-9]*",
	"copy",
}

// =============================================================================
// Options
// =============================================================================

// Options configures an Engine.
type Options struct {
	// Logger receives engine diagnostics. Default: slog.Default().
	Logger *slog.Logger

	// Decoder decodes metadata blobs. Default: metadata.NewBlobDecoder().
	Decoder metadata.Decoder

	// Matcher runs member matching. Default: match.NewMatcher().
	Matcher *match.Matcher

	// Workers bounds ConvertAll parallelism. Default: GOMAXPROCS.
	Workers int

	// SyntheticTypeSuffixes mark metadata-less types as synthetic.
	SyntheticTypeSuffixes []string

	// ArtifactPatterns classify unaccounted members as compiler artifacts.
	ArtifactPatterns []string

	// TracerProvider supplies the engine tracer. Default: the global
	// provider.
	TracerProvider trace.TracerProvider
}

// DefaultOptions returns the default options.
func DefaultOptions() Options {
	return Options{
		Logger:                slog.Default(),
		Decoder:               metadata.NewBlobDecoder(),
		Matcher:               match.NewMatcher(),
		Workers:               runtime.GOMAXPROCS(0),
		SyntheticTypeSuffixes: append([]string(nil), DefaultSyntheticTypeSuffixes...),
		ArtifactPatterns:      append([]string(nil), DefaultArtifactPatterns...),
	}
}

// Option is a functional option for configuring an Engine.
type Option func(*Options)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

// WithDecoder sets the metadata decoder.
func WithDecoder(d metadata.Decoder) Option {
	return func(o *Options) {
		if d != nil {
			o.Decoder = d
		}
	}
}

// WithMatcher sets the member matcher.
func WithMatcher(m *match.Matcher) Option {
	return func(o *Options) {
		if m != nil {
			o.Matcher = m
		}
	}
}

// WithWorkers bounds ConvertAll parallelism. Values below 1 are ignored.
func WithWorkers(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.Workers = n
		}
	}
}

// WithSyntheticTypeSuffixes replaces the synthetic type-name suffixes.
func WithSyntheticTypeSuffixes(suffixes ...string) Option {
	return func(o *Options) {
		o.SyntheticTypeSuffixes = append([]string(nil), suffixes...)
	}
}

// WithArtifactPatterns replaces the compiler-artifact member patterns.
func WithArtifactPatterns(patterns ...string) Option {
	return func(o *Options) {
		o.ArtifactPatterns = append([]string(nil), patterns...)
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *Options) {
		o.TracerProvider = tp
	}
}

// =============================================================================
// Engine
// =============================================================================

// Engine converts platform nodes into merged symbols.
//
// Thread Safety:
//
//	Safe for concurrent use. All mutable state lives in the Cache and in
//	the Lazy cells of published symbols.
type Engine struct {
	id      string
	options Options
	cache   *Cache
	logger  *slog.Logger
	tracer  trace.Tracer
}

// NewEngine creates an Engine with a fresh cache.
//
// Example:
//
//	eng := convert.NewEngine(convert.WithLogger(logger), convert.WithWorkers(4))
//	sym, err := eng.Convert(ctx, node)
func NewEngine(opts ...Option) *Engine {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	tp := options.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	id := uuid.NewString()
	return &Engine{
		id:      id,
		options: options,
		cache:   NewCache(),
		logger:  options.Logger.With(slog.String("engine_id", id)),
		tracer:  tp.Tracer(tracerName),
	}
}

// ID returns the engine's instance ID.
func (e *Engine) ID() string { return e.id }

// Cache returns the engine's cache.
func (e *Engine) Cache() *Cache { return e.cache }

// detached returns a context for lazy cells that outlive the call that
// created them.
func detached(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
