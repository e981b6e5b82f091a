// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package match pairs metadata-described members with the platform members
// of one enclosing scope.
//
// A Scope indexes the platform members of a container once. The Matcher
// then runs parameter matching, overload-set resolution and property
// assembly against it. Nothing in this package mutates the platform tree
// or caches results across scopes.
package match

import (
	"fmt"

	"github.com/AleutianAI/symbridge/services/symbols/platform"
	"github.com/AleutianAI/symbridge/services/symbols/signature"
)

// Member is one platform member of a scope with its parsed descriptor.
type Member struct {
	// Node is the platform node.
	Node platform.Node

	// Key is the structural identity of Node.
	Key platform.Key

	// Kind is Node.Kind().
	Kind platform.Kind

	// Name is Node.SimpleName().
	Name string

	// Method is the parsed descriptor of an executable.
	Method platform.MethodDesc

	// Field is the parsed descriptor of a field.
	Field platform.TypeDesc

	// Logical is Method without implicit constructor parameters; Implicit
	// counts how many were removed.
	Logical  platform.MethodDesc
	Implicit int

	// Params are Node.Parameters().
	Params []platform.Node
}

// Signature returns the member's platform signature.
func (m *Member) Signature() signature.Signature {
	return signature.Of(m.Node)
}

// LogicalSignature returns the signature with implicit constructor
// parameters removed.
func (m *Member) LogicalSignature() signature.Signature {
	if m.Kind == platform.KindField || m.Implicit == 0 {
		return m.Signature()
	}
	return signature.Signature{Name: m.Name, Descriptor: m.Logical.String()}
}

// Scope is the indexed set of platform members of one container.
//
// Thread Safety: Immutable after NewScope; safe for concurrent use.
type Scope struct {
	owner   platform.Node
	members []*Member
	byName  map[string][]*Member
	outer   *Scope
}

// NewScope indexes the enclosed members of owner.
//
// Description:
//
//	Collects methods, constructors, fields and initializers in declaration
//	order and parses their descriptors. Constructor descriptors are also
//	stripped of the implicit parameters described by shape.
//
// Inputs:
//
//	owner - The container node, normally a type.
//	shape - Implicit constructor parameters of owner.
//
// Outputs:
//
//	*Scope - The scope.
//	error - platform.ErrMalformedDescriptor if a member descriptor is invalid.
func NewScope(owner platform.Node, shape signature.Shape) (*Scope, error) {
	s := &Scope{owner: owner, byName: make(map[string][]*Member)}
	for _, n := range owner.Enclosed() {
		if !n.Kind().IsMember() {
			continue
		}
		m := &Member{Node: n, Key: platform.KeyOf(n), Kind: n.Kind(), Name: n.SimpleName(), Params: n.Parameters()}
		switch n.Kind() {
		case platform.KindField:
			fd, err := platform.ParseFieldDescriptor(n.Descriptor())
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", platform.QualifiedName(n), err)
			}
			m.Field = fd
		default:
			md, err := platform.ParseMethodDescriptor(n.Descriptor())
			if err != nil {
				return nil, fmt.Errorf("%s %s: %w", n.Kind(), platform.QualifiedName(n), err)
			}
			m.Method = md
			m.Logical = md
			if n.Kind() == platform.KindConstructor {
				m.Logical, m.Implicit = signature.StripImplicit(md, shape)
			}
		}
		s.members = append(s.members, m)
		s.byName[m.Name] = append(s.byName[m.Name], m)
	}
	return s, nil
}

// Owner returns the container node.
func (s *Scope) Owner() platform.Node { return s.owner }

// Members returns every member in declaration order.
func (s *Scope) Members() []*Member { return s.members }

// Named returns the members with the given name and kind.
func (s *Scope) Named(name string, kind platform.Kind) []*Member {
	var out []*Member
	for _, m := range s.byName[name] {
		if m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}

// WithOuter returns a copy of s whose field lookups fall back to outer.
// Companion objects use it to find backing fields stored on the
// enclosing class.
func (s *Scope) WithOuter(outer *Scope) *Scope {
	c := *s
	c.outer = outer
	return &c
}

// Outer returns the fallback scope, or nil.
func (s *Scope) Outer() *Scope { return s.outer }

func (s *Scope) name() string {
	return platform.QualifiedName(s.owner)
}
