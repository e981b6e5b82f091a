// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package signature derives binary signatures ("name + descriptor") for
// metadata-described members so they can be compared with platform members.
//
// Everything here is a pure function of the metadata and its Context.
package signature

import (
	"errors"
	"fmt"

	"github.com/AleutianAI/symbridge/services/symbols/metadata"
	"github.com/AleutianAI/symbridge/services/symbols/platform"
)

// ErrMalformedDescriptor is returned when a metadata type reference cannot
// be resolved in the current Context. It wraps the platform sentinel so
// callers can test for either.
var ErrMalformedDescriptor = fmt.Errorf("signature: %w", platform.ErrMalformedDescriptor)

// ConstructorName is the platform name of every constructor.
const ConstructorName = "<init>"

// =============================================================================
// Context
// =============================================================================

// Context is the resolution scope a signature is built in: the type
// parameters visible at the member, innermost first.
//
// Thread Safety: Immutable; safe for concurrent use.
type Context struct {
	params map[int]metadata.TypeParameter
	parent *Context
}

// NewContext creates a root context declaring the given type parameters.
func NewContext(params []metadata.TypeParameter) *Context {
	return (*Context)(nil).With(params)
}

// With returns a child context that adds params. Inner declarations shadow
// outer ones with the same ID.
func (c *Context) With(params []metadata.TypeParameter) *Context {
	child := &Context{params: make(map[int]metadata.TypeParameter, len(params)), parent: c}
	for _, p := range params {
		child.params[p.ID] = p
	}
	return child
}

// TypeParameter looks up a type parameter by ID.
func (c *Context) TypeParameter(id int) (metadata.TypeParameter, bool) {
	for cur := c; cur != nil; cur = cur.parent {
		if p, ok := cur.params[id]; ok {
			return p, true
		}
	}
	return metadata.TypeParameter{}, false
}

// =============================================================================
// Signatures
// =============================================================================

// Signature is a member's binary identity.
type Signature struct {
	// Name is the platform member name.
	Name string

	// Descriptor is "(params)ret" for executables and a field descriptor
	// for fields.
	Descriptor string

	// Field is true for field signatures, which render as "name:desc".
	Field bool
}

// String renders the signature as used in diagnostics and comparisons.
func (s Signature) String() string {
	if s.Field {
		return s.Name + ":" + s.Descriptor
	}
	return s.Name + s.Descriptor
}

// Arity returns the number of descriptor parameters, or -1 for fields and
// unparseable descriptors.
func (s Signature) Arity() int {
	if s.Field {
		return -1
	}
	md, err := platform.ParseMethodDescriptor(s.Descriptor)
	if err != nil {
		return -1
	}
	return len(md.Params)
}

// Of returns the signature of a platform member node as it appears in the
// platform tree.
func Of(n platform.Node) Signature {
	return Signature{Name: n.SimpleName(), Descriptor: n.Descriptor(), Field: n.Kind() == platform.KindField}
}

// Builder builds signatures in one Context.
type Builder struct {
	ctx *Context
}

// New returns a Builder for ctx. A nil ctx declares no type parameters.
func New(ctx *Context) *Builder {
	if ctx == nil {
		ctx = NewContext(nil)
	}
	return &Builder{ctx: ctx}
}

// Context returns the builder's context.
func (b *Builder) Context() *Context { return b.ctx }

// Function returns the signature of a function.
//
// Description:
//
//	The extension receiver, if any, becomes the first parameter. Suspend
//	functions take a trailing continuation parameter and return Object.
//	The function's own type parameters are in scope.
//
// Errors:
//
//	ErrMalformedDescriptor - A type could not be resolved.
func (b *Builder) Function(f metadata.Function) (Signature, error) {
	fb := &Builder{ctx: b.ctx.With(f.TypeParameters)}
	md, err := fb.method(f.ReceiverType, f.ValueParameters, f.ReturnType, f.Suspend)
	if err != nil {
		return Signature{}, fmt.Errorf("function %s: %w", f.Name, err)
	}
	return Signature{Name: f.Name, Descriptor: md.String()}, nil
}

// Constructor returns the logical signature of a constructor: declared
// parameters only, returning void. Implicit platform parameters are handled
// by StripImplicit.
func (b *Builder) Constructor(c metadata.Constructor) (Signature, error) {
	var md platform.MethodDesc
	for _, p := range c.ValueParameters {
		d, err := b.Type(p.Type, PositionValue)
		if err != nil {
			return Signature{}, fmt.Errorf("constructor parameter %s: %w", p.Name, err)
		}
		md.Params = append(md.Params, d)
	}
	md.Return = platform.Primitive(platform.SortVoid)
	return Signature{Name: ConstructorName, Descriptor: md.String()}, nil
}

func (b *Builder) method(receiver *metadata.TypeRef, params []metadata.ValueParameter, ret metadata.TypeRef, suspend bool) (platform.MethodDesc, error) {
	var md platform.MethodDesc
	if receiver != nil {
		d, err := b.Type(*receiver, PositionValue)
		if err != nil {
			return md, fmt.Errorf("receiver: %w", err)
		}
		md.Params = append(md.Params, d)
	}
	for _, p := range params {
		d, err := b.Type(p.Type, PositionValue)
		if err != nil {
			return md, fmt.Errorf("parameter %s: %w", p.Name, err)
		}
		md.Params = append(md.Params, d)
	}
	if suspend {
		md.Params = append(md.Params, platform.Object(continuationClass))
		md.Return = platform.Object(objectClass)
		return md, nil
	}
	r, err := b.Type(ret, PositionReturn)
	if err != nil {
		return md, fmt.Errorf("return type: %w", err)
	}
	md.Return = r
	return md, nil
}

// IsMalformed reports whether err stems from an unresolvable descriptor.
func IsMalformed(err error) bool {
	return errors.Is(err, platform.ErrMalformedDescriptor)
}
