// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package merged defines the merged symbol graph: one closed union of
// symbol variants, each reconciling metadata with the platform members it
// accounts for.
//
// Symbols are immutable once published. Back-references (enclosing
// declaration, nested types, package contents) are Lazy cells that resolve
// through the engine that built them.
package merged

import (
	"sync"

	"github.com/AleutianAI/symbridge/services/symbols/platform"
)

// Kind identifies the variant of a Symbol.
type Kind int

const (
	KindModule Kind = iota
	KindPackage
	KindClass
	KindObject
	KindCompanion
	KindInterface
	KindAnnotation
	KindEnum
	KindEnumConstant
	KindFacade
	KindMultiFileFacade
	KindSyntheticType
	KindForeignType
	KindFunction
	KindConstructor
	KindProperty
	KindGetter
	KindSetter
	KindParameter
	KindTypeParameter
	KindTypeAlias
	KindForeignMember
	KindSyntheticMember
)

var kindNames = [...]string{
	KindModule:          "module",
	KindPackage:         "package",
	KindClass:           "class",
	KindObject:          "object",
	KindCompanion:       "companion",
	KindInterface:       "interface",
	KindAnnotation:      "annotation",
	KindEnum:            "enum",
	KindEnumConstant:    "enum_constant",
	KindFacade:          "facade",
	KindMultiFileFacade: "multi_file_facade",
	KindSyntheticType:   "synthetic_type",
	KindForeignType:     "foreign_type",
	KindFunction:        "function",
	KindConstructor:     "constructor",
	KindProperty:        "property",
	KindGetter:          "getter",
	KindSetter:          "setter",
	KindParameter:       "parameter",
	KindTypeParameter:   "type_parameter",
	KindTypeAlias:       "type_alias",
	KindForeignMember:   "foreign_member",
	KindSyntheticMember: "synthetic_member",
}

// String returns the snake_case name of the kind.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// ParseKind returns the Kind named s.
func ParseKind(s string) (Kind, bool) {
	for k, name := range kindNames {
		if name == s {
			return Kind(k), true
		}
	}
	return 0, false
}

// IsType reports whether k is a type-like variant.
func (k Kind) IsType() bool {
	return k >= KindClass && k <= KindForeignType && k != KindEnumConstant
}

// =============================================================================
// Symbol
// =============================================================================

// Symbol is one node of the merged graph.
//
// The set of implementations is closed: every variant is declared in this
// package and embeds Common. Switch on the concrete type or on Kind().
type Symbol interface {
	// Key is the symbol's identity. It equals platform.KeyOf of the primary
	// platform node, or a derived key for symbols with no single node.
	Key() platform.Key

	// Name is the source-level simple name.
	Name() string

	// Kind is the variant tag.
	Kind() Kind

	// Platform returns the platform nodes this symbol accounts for, primary
	// first.
	Platform() []platform.Node

	// OneToOne reports whether the symbol corresponds to exactly one
	// platform node whose signature was verified against metadata.
	OneToOne() bool

	// Enclosing resolves the enclosing symbol, or nil for modules.
	Enclosing() (Symbol, error)

	sealed()
}

// Common carries the fields every variant shares.
type Common struct {
	key       platform.Key
	name      string
	kind      Kind
	nodes     []platform.Node
	enclosing *Lazy[Symbol]
}

// NewCommon builds the shared part of a symbol. enclosing may be nil for
// roots.
func NewCommon(key platform.Key, name string, kind Kind, nodes []platform.Node, enclosing *Lazy[Symbol]) Common {
	return Common{key: key, name: name, kind: kind, nodes: nodes, enclosing: enclosing}
}

func (c *Common) Key() platform.Key { return c.key }

func (c *Common) Name() string { return c.name }

func (c *Common) Kind() Kind { return c.kind }

// Platform returns a copy of the accounted platform nodes.
func (c *Common) Platform() []platform.Node {
	return append([]platform.Node(nil), c.nodes...)
}

func (c *Common) Enclosing() (Symbol, error) {
	if c.enclosing == nil {
		return nil, nil
	}
	return c.enclosing.Get()
}

// Primary returns the first platform node, or nil.
func (c *Common) Primary() platform.Node {
	if len(c.nodes) == 0 {
		return nil
	}
	return c.nodes[0]
}

func (c *Common) sealed() {}

// TypeLike is implemented by the variants that stand for a platform type:
// Type, Facade, MultiFileFacade, SyntheticType and ForeignType.
type TypeLike interface {
	Symbol

	// Members returns the member symbols in declaration order.
	Members() []Symbol

	// Nested resolves the nested types.
	Nested() ([]TypeLike, error)

	// HasMetadata reports whether the type carried decodable metadata.
	HasMetadata() bool
}

// =============================================================================
// Lazy
// =============================================================================

// Lazy is a converge-once cell. The first Get runs the producer; every
// later Get returns the same value and error.
//
// Thread Safety: Safe for concurrent use.
type Lazy[T any] struct {
	get func() (T, error)
}

// NewLazy creates a cell that computes its value with f on first use.
func NewLazy[T any](f func() (T, error)) *Lazy[T] {
	return &Lazy[T]{get: sync.OnceValues(f)}
}

// Resolved creates a cell that already holds v.
func Resolved[T any](v T) *Lazy[T] {
	return &Lazy[T]{get: func() (T, error) { return v, nil }}
}

// Get returns the cell's value. A nil cell yields the zero value.
func (l *Lazy[T]) Get() (T, error) {
	if l == nil {
		var zero T
		return zero, nil
	}
	return l.get()
}
