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
	"strconv"
	"strings"
)

// Key is the structural identity of a platform node.
//
// Two node instances share a Key exactly when they describe the same
// declaration: same enclosing chain, kind, simple name and descriptor.
// Keys are stable across process runs and safe to persist.
type Key string

// String returns the key text.
func (k Key) String() string {
	return string(k)
}

// KeyOf derives the structural identity key of a node.
//
// Description:
//
//	Walks the enclosing chain up to the root and joins one segment per
//	level. Each segment is "<kind>:<name>" followed by the descriptor for
//	executables and fields, so overloads and same-named fields of different
//	kinds never collide. Parameters are keyed by position and name because
//	two parameters of one executable can share a descriptor.
//
// Inputs:
//
//	n - The node. Must not be nil.
//
// Outputs:
//
//	Key - The identity key.
//
// Thread Safety:
//
//	Safe for concurrent use provided the node is.
func KeyOf(n Node) Key {
	var segs []string
	for cur := n; cur != nil; cur = cur.Enclosing() {
		segs = append(segs, segment(cur))
	}
	for i, j := 0, len(segs)-1; i < j; i, j = i+1, j-1 {
		segs[i], segs[j] = segs[j], segs[i]
	}
	return Key(strings.Join(segs, "/"))
}

func segment(n Node) string {
	kind := n.Kind()
	var b strings.Builder
	b.WriteString(kind.String())
	b.WriteByte(':')
	switch kind {
	case KindParameter:
		b.WriteByte('#')
		b.WriteString(strconv.Itoa(parameterIndex(n)))
		b.WriteByte(':')
		b.WriteString(n.SimpleName())
	case KindMethod, KindConstructor, KindInitializer:
		b.WriteString(n.SimpleName())
		b.WriteString(n.Descriptor())
	case KindField:
		b.WriteString(n.SimpleName())
		b.WriteByte(':')
		b.WriteString(n.Descriptor())
	default:
		b.WriteString(n.SimpleName())
	}
	return b.String()
}

func parameterIndex(n Node) int {
	parent := n.Enclosing()
	if parent == nil {
		return -1
	}
	for i, p := range parent.Parameters() {
		if p.SimpleName() == n.SimpleName() {
			return i
		}
	}
	return -1
}

// PackageOf returns the nearest enclosing package node, or nil.
func PackageOf(n Node) Node {
	for cur := n; cur != nil; cur = cur.Enclosing() {
		if cur.Kind() == KindPackage {
			return cur
		}
	}
	return nil
}

// EnclosingType returns the nearest strictly enclosing type node, or nil.
func EnclosingType(n Node) Node {
	for cur := n.Enclosing(); cur != nil; cur = cur.Enclosing() {
		if cur.Kind() == KindType {
			return cur
		}
	}
	return nil
}

// InternalName returns the binary internal name of a type node, e.g.
// "com/example/Outer$Inner". Nested type names are joined with '$'.
func InternalName(n Node) string {
	var types []string
	var pkg string
	for cur := n; cur != nil; cur = cur.Enclosing() {
		switch cur.Kind() {
		case KindType:
			types = append(types, cur.SimpleName())
		case KindPackage:
			pkg = cur.SimpleName()
		}
		if pkg != "" {
			break
		}
	}
	for i, j := 0, len(types)-1; i < j; i, j = i+1, j-1 {
		types[i], types[j] = types[j], types[i]
	}
	name := strings.Join(types, "$")
	if pkg == "" {
		return name
	}
	return strings.ReplaceAll(pkg, ".", "/") + "/" + name
}

// QualifiedName returns a human-readable dotted name for diagnostics.
//
// Types render as "pkg.Outer.Inner", members as "pkg.Type.member",
// parameters as "pkg.Type.member#name".
func QualifiedName(n Node) string {
	if n == nil {
		return ""
	}
	var parts []string
	for cur := n; cur != nil; cur = cur.Enclosing() {
		switch cur.Kind() {
		case KindModule:
			continue
		case KindParameter, KindTypeParameter:
			parts = append(parts, "#"+cur.SimpleName())
		default:
			parts = append(parts, cur.SimpleName())
		}
	}
	var b strings.Builder
	for i := len(parts) - 1; i >= 0; i-- {
		p := parts[i]
		if b.Len() > 0 && !strings.HasPrefix(p, "#") {
			b.WriteByte('.')
		}
		b.WriteString(p)
	}
	return b.String()
}
