// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package platform

import (
	"fmt"
)

// Element is an in-memory platform Node.
//
// Description:
//
//	Element backs fixtures and tests. Trees are built top-down with the Add*
//	methods; once handed to the engine an Element tree must not be modified.
//
// Thread Safety:
//
//	Building is not safe for concurrent use. A finished tree is safe for
//	concurrent reads.
type Element struct {
	kind       Kind
	name       string
	desc       string
	mods       Modifiers
	parent     *Element
	children   []*Element
	params     []*Element
	typeParams []*Element
	blob       *Blob
	constant   any
	hasConst   bool
}

// NewModule creates the root of a tree.
func NewModule(name string) *Element {
	return &Element{kind: KindModule, name: name}
}

// NewElement creates a detached node of an arbitrary kind. It exists for
// exercising forward-compatibility paths with kinds such as KindOther.
func NewElement(kind Kind, name, desc string) *Element {
	return &Element{kind: kind, name: name, desc: desc}
}

// =============================================================================
// Node implementation
// =============================================================================

func (e *Element) Kind() Kind { return e.kind }

func (e *Element) SimpleName() string { return e.name }

func (e *Element) Modifiers() Modifiers { return e.mods }

// Enclosing returns the parent, or a nil Node for roots.
func (e *Element) Enclosing() Node {
	if e.parent == nil {
		return nil
	}
	return e.parent
}

func (e *Element) Enclosed() []Node { return toNodes(e.children) }

func (e *Element) Parameters() []Node { return toNodes(e.params) }

func (e *Element) TypeParameters() []Node { return toNodes(e.typeParams) }

// Descriptor returns the binary descriptor. Types derive theirs from the
// internal name.
func (e *Element) Descriptor() string {
	if e.kind == KindType {
		return "L" + InternalName(e) + ";"
	}
	return e.desc
}

func (e *Element) Metadata() (Blob, bool) {
	if e.blob == nil {
		return Blob{}, false
	}
	return *e.blob, true
}

func (e *Element) ConstantValue() (any, bool) {
	return e.constant, e.hasConst
}

func toNodes(in []*Element) []Node {
	if len(in) == 0 {
		return nil
	}
	out := make([]Node, len(in))
	for i, el := range in {
		out[i] = el
	}
	return out
}

// =============================================================================
// Builder
// =============================================================================

// AddPackage attaches a package to a module. name is the dotted package name.
func (e *Element) AddPackage(name string) (*Element, error) {
	if e.kind != KindModule {
		return nil, fmt.Errorf("%w: package %q under %s", ErrInvalidTree, name, e.kind)
	}
	return e.attach(&Element{kind: KindPackage, name: name}), nil
}

// AddType attaches a type to a package or, for nested types, to a type.
func (e *Element) AddType(name string, mods Modifiers) (*Element, error) {
	if e.kind != KindPackage && e.kind != KindType {
		return nil, fmt.Errorf("%w: type %q under %s", ErrInvalidTree, name, e.kind)
	}
	return e.attach(&Element{kind: KindType, name: name, mods: mods}), nil
}

// AddMethod attaches a method to a type.
//
// Inputs:
//
//	name - The method name.
//	desc - The method descriptor, e.g. "(ILjava/lang/String;)V".
//	mods - Platform flags.
//	paramNames - One name per descriptor parameter. When empty, names
//	             "p0".."pN" are generated.
//
// Outputs:
//
//	*Element - The method node.
//	error - ErrMalformedDescriptor or ErrInvalidTree.
func (e *Element) AddMethod(name, desc string, mods Modifiers, paramNames ...string) (*Element, error) {
	return e.addExecutable(KindMethod, name, desc, mods, paramNames)
}

// AddConstructor attaches an "<init>" constructor to a type.
func (e *Element) AddConstructor(desc string, mods Modifiers, paramNames ...string) (*Element, error) {
	return e.addExecutable(KindConstructor, "<init>", desc, mods, paramNames)
}

// AddInitializer attaches a static initializer block to a type.
func (e *Element) AddInitializer() (*Element, error) {
	if e.kind != KindType {
		return nil, fmt.Errorf("%w: initializer under %s", ErrInvalidTree, e.kind)
	}
	return e.attach(&Element{kind: KindInitializer, name: "<clinit>", desc: "()V", mods: ModStatic}), nil
}

// AddField attaches a field to a type.
func (e *Element) AddField(name, desc string, mods Modifiers) (*Element, error) {
	if e.kind != KindType {
		return nil, fmt.Errorf("%w: field %q under %s", ErrInvalidTree, name, e.kind)
	}
	if _, err := ParseFieldDescriptor(desc); err != nil {
		return nil, err
	}
	return e.attach(&Element{kind: KindField, name: name, desc: desc, mods: mods}), nil
}

// AddTypeParameter declares a type parameter on a type or executable.
func (e *Element) AddTypeParameter(name string) (*Element, error) {
	if e.kind != KindType && !e.kind.IsExecutable() {
		return nil, fmt.Errorf("%w: type parameter %q under %s", ErrInvalidTree, name, e.kind)
	}
	tp := &Element{kind: KindTypeParameter, name: name, desc: "Ljava/lang/Object;", parent: e}
	e.typeParams = append(e.typeParams, tp)
	return tp, nil
}

// SetMetadata attaches a metadata blob to a type.
func (e *Element) SetMetadata(b Blob) error {
	if e.kind != KindType {
		return fmt.Errorf("%w: metadata on %s", ErrInvalidTree, e.kind)
	}
	blob := b
	e.blob = &blob
	return nil
}

// SetConstant records the compile-time constant of a field.
func (e *Element) SetConstant(v any) error {
	if e.kind != KindField {
		return fmt.Errorf("%w: constant on %s", ErrInvalidTree, e.kind)
	}
	e.constant = v
	e.hasConst = true
	return nil
}

// Attach adds an arbitrary child. Only detached elements created with
// NewElement may be attached this way.
func (e *Element) Attach(child *Element) error {
	if child.parent != nil {
		return fmt.Errorf("%w: %s %q already attached", ErrInvalidTree, child.kind, child.name)
	}
	e.attach(child)
	return nil
}

func (e *Element) addExecutable(kind Kind, name, desc string, mods Modifiers, paramNames []string) (*Element, error) {
	if e.kind != KindType {
		return nil, fmt.Errorf("%w: %s %q under %s", ErrInvalidTree, kind, name, e.kind)
	}
	md, err := ParseMethodDescriptor(desc)
	if err != nil {
		return nil, err
	}
	if len(paramNames) != 0 && len(paramNames) != len(md.Params) {
		return nil, fmt.Errorf("%w: %s%s declares %d parameters, got %d names",
			ErrInvalidTree, name, desc, len(md.Params), len(paramNames))
	}
	ex := &Element{kind: kind, name: name, desc: desc, mods: mods}
	for i, p := range md.Params {
		pn := fmt.Sprintf("p%d", i)
		if len(paramNames) != 0 {
			pn = paramNames[i]
		}
		ex.params = append(ex.params, &Element{kind: KindParameter, name: pn, desc: p.String(), parent: ex})
	}
	return e.attach(ex), nil
}

func (e *Element) attach(child *Element) *Element {
	child.parent = e
	e.children = append(e.children, child)
	return child
}
