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
	"strings"
)

// =============================================================================
// Binary Descriptors
// =============================================================================

// Sort classifies a TypeDesc.
type Sort int

const (
	SortVoid Sort = iota
	SortBoolean
	SortChar
	SortByte
	SortShort
	SortInt
	SortFloat
	SortLong
	SortDouble
	SortArray
	SortObject
)

var primitiveSorts = map[byte]Sort{
	'V': SortVoid,
	'Z': SortBoolean,
	'C': SortChar,
	'B': SortByte,
	'S': SortShort,
	'I': SortInt,
	'F': SortFloat,
	'J': SortLong,
	'D': SortDouble,
}

var primitiveCodes = map[Sort]byte{
	SortVoid:    'V',
	SortBoolean: 'Z',
	SortChar:    'C',
	SortByte:    'B',
	SortShort:   'S',
	SortInt:     'I',
	SortFloat:   'F',
	SortLong:    'J',
	SortDouble:  'D',
}

// TypeDesc is one parsed field descriptor.
//
// Thread Safety: TypeDesc is an immutable value type.
type TypeDesc struct {
	// Sort is the descriptor category.
	Sort Sort

	// ClassName is the internal class name ("java/lang/String") for
	// SortObject, empty otherwise.
	ClassName string

	// Elem is the component type for SortArray, nil otherwise.
	Elem *TypeDesc
}

// Primitive returns the TypeDesc for a primitive or void sort.
func Primitive(s Sort) TypeDesc {
	return TypeDesc{Sort: s}
}

// Object returns the TypeDesc for an internal class name.
func Object(className string) TypeDesc {
	return TypeDesc{Sort: SortObject, ClassName: className}
}

// ArrayOf returns the array TypeDesc with the given component.
func ArrayOf(elem TypeDesc) TypeDesc {
	e := elem
	return TypeDesc{Sort: SortArray, Elem: &e}
}

// IsPrimitive reports whether d is a primitive (non-void) type.
func (d TypeDesc) IsPrimitive() bool {
	return d.Sort > SortVoid && d.Sort < SortArray
}

// String renders the descriptor in binary form.
func (d TypeDesc) String() string {
	var b strings.Builder
	d.write(&b)
	return b.String()
}

func (d TypeDesc) write(b *strings.Builder) {
	switch d.Sort {
	case SortArray:
		b.WriteByte('[')
		if d.Elem != nil {
			d.Elem.write(b)
		}
	case SortObject:
		b.WriteByte('L')
		b.WriteString(d.ClassName)
		b.WriteByte(';')
	default:
		b.WriteByte(primitiveCodes[d.Sort])
	}
}

// SameType reports whether two descriptors denote the same platform type.
func SameType(a, b TypeDesc) bool {
	if a.Sort != b.Sort {
		return false
	}
	switch a.Sort {
	case SortObject:
		return a.ClassName == b.ClassName
	case SortArray:
		if a.Elem == nil || b.Elem == nil {
			return a.Elem == b.Elem
		}
		return SameType(*a.Elem, *b.Elem)
	default:
		return true
	}
}

// MethodDesc is a parsed method descriptor.
type MethodDesc struct {
	Params []TypeDesc
	Return TypeDesc
}

// String renders the method descriptor in binary form.
func (m MethodDesc) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for _, p := range m.Params {
		p.write(&b)
	}
	b.WriteByte(')')
	m.Return.write(&b)
	return b.String()
}

// DropLeading returns a copy of m without its first n parameters.
func (m MethodDesc) DropLeading(n int) MethodDesc {
	if n <= 0 {
		return m
	}
	if n > len(m.Params) {
		n = len(m.Params)
	}
	out := MethodDesc{Return: m.Return, Params: make([]TypeDesc, len(m.Params)-n)}
	copy(out.Params, m.Params[n:])
	return out
}

// DropTrailing returns a copy of m without its last n parameters.
func (m MethodDesc) DropTrailing(n int) MethodDesc {
	if n <= 0 {
		return m
	}
	if n > len(m.Params) {
		n = len(m.Params)
	}
	out := MethodDesc{Return: m.Return, Params: make([]TypeDesc, len(m.Params)-n)}
	copy(out.Params, m.Params[:len(m.Params)-n])
	return out
}

// ParseFieldDescriptor parses a single field descriptor such as "I",
// "Ljava/lang/String;" or "[[J".
//
// Outputs:
//
//	TypeDesc - The parsed descriptor.
//	error - ErrMalformedDescriptor if s is not exactly one field descriptor.
func ParseFieldDescriptor(s string) (TypeDesc, error) {
	d, n, err := parseOne(s, 0)
	if err != nil {
		return TypeDesc{}, err
	}
	if n != len(s) {
		return TypeDesc{}, fmt.Errorf("%w: trailing input in %q", ErrMalformedDescriptor, s)
	}
	if d.Sort == SortVoid {
		return TypeDesc{}, fmt.Errorf("%w: void is not a field type in %q", ErrMalformedDescriptor, s)
	}
	return d, nil
}

// ParseMethodDescriptor parses a method descriptor "(params)ret".
//
// Outputs:
//
//	MethodDesc - The parsed descriptor.
//	error - ErrMalformedDescriptor on any syntax error.
func ParseMethodDescriptor(s string) (MethodDesc, error) {
	if len(s) < 3 || s[0] != '(' {
		return MethodDesc{}, fmt.Errorf("%w: %q is not a method descriptor", ErrMalformedDescriptor, s)
	}
	var m MethodDesc
	i := 1
	for i < len(s) && s[i] != ')' {
		d, next, err := parseOne(s, i)
		if err != nil {
			return MethodDesc{}, err
		}
		if d.Sort == SortVoid {
			return MethodDesc{}, fmt.Errorf("%w: void parameter in %q", ErrMalformedDescriptor, s)
		}
		m.Params = append(m.Params, d)
		i = next
	}
	if i >= len(s) {
		return MethodDesc{}, fmt.Errorf("%w: unterminated parameter list in %q", ErrMalformedDescriptor, s)
	}
	ret, next, err := parseOne(s, i+1)
	if err != nil {
		return MethodDesc{}, err
	}
	if next != len(s) {
		return MethodDesc{}, fmt.Errorf("%w: trailing input in %q", ErrMalformedDescriptor, s)
	}
	m.Return = ret
	return m, nil
}

func parseOne(s string, i int) (TypeDesc, int, error) {
	if i >= len(s) {
		return TypeDesc{}, i, fmt.Errorf("%w: unexpected end of %q", ErrMalformedDescriptor, s)
	}
	c := s[i]
	if sort, ok := primitiveSorts[c]; ok {
		return TypeDesc{Sort: sort}, i + 1, nil
	}
	switch c {
	case '[':
		elem, next, err := parseOne(s, i+1)
		if err != nil {
			return TypeDesc{}, i, err
		}
		if elem.Sort == SortVoid {
			return TypeDesc{}, i, fmt.Errorf("%w: void array component in %q", ErrMalformedDescriptor, s)
		}
		return ArrayOf(elem), next, nil
	case 'L':
		end := strings.IndexByte(s[i:], ';')
		if end <= 1 {
			return TypeDesc{}, i, fmt.Errorf("%w: bad class reference in %q", ErrMalformedDescriptor, s)
		}
		return Object(s[i+1 : i+end]), i + end + 1, nil
	default:
		return TypeDesc{}, i, fmt.Errorf("%w: unexpected %q at offset %d in %q", ErrMalformedDescriptor, c, i, s)
	}
}
