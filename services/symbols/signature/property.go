// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package signature

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/AleutianAI/symbridge/services/symbols/metadata"
	"github.com/AleutianAI/symbridge/services/symbols/platform"
)

// Platform name suffixes of property add-ons.
const (
	AnnotationsSuffix = "$annotations"
	DelegateSuffix    = "$delegate"
)

// =============================================================================
// Accessor naming
// =============================================================================

// GetterName returns the platform getter name of a property.
//
// "name" becomes "getName"; names already of the form "isX" (X not a
// lowercase letter) are kept. Properties of annotation classes use the
// bare property name.
func GetterName(property string, inAnnotation bool) string {
	if inAnnotation || isPrefixed(property) {
		return property
	}
	return "get" + capitalize(property)
}

// SetterName returns the platform setter name of a property. "isOpen"
// becomes "setOpen".
func SetterName(property string) string {
	if isPrefixed(property) {
		return "set" + property[2:]
	}
	return "set" + capitalize(property)
}

// AnnotationHolderName returns the name of the synthetic method that carries
// a property's annotations.
func AnnotationHolderName(property string) string {
	return GetterName(property, false) + AnnotationsSuffix
}

// TypeAliasHolderName returns the name of the synthetic method that carries
// a type alias's annotations.
func TypeAliasHolderName(alias string) string {
	return alias + AnnotationsSuffix
}

// DelegateFieldName returns the name of a delegated property's delegate
// field.
func DelegateFieldName(property string) string {
	return property + DelegateSuffix
}

func isPrefixed(name string) bool {
	if !strings.HasPrefix(name, "is") || len(name) == 2 {
		return false
	}
	r, _ := utf8.DecodeRuneInString(name[2:])
	return !unicode.IsLower(r)
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// =============================================================================
// Property member signatures
// =============================================================================

// Getter returns the expected getter signature of a property.
func (b *Builder) Getter(p metadata.Property, inAnnotation bool) (Signature, error) {
	pb := &Builder{ctx: b.ctx.With(p.TypeParameters)}
	md, err := pb.method(p.ReceiverType, nil, p.ReturnType, false)
	if err != nil {
		return Signature{}, fmt.Errorf("getter of %s: %w", p.Name, err)
	}
	return Signature{Name: GetterName(p.Name, inAnnotation), Descriptor: md.String()}, nil
}

// Setter returns the expected setter signature of a property: the receiver,
// then one parameter of the property type, returning void.
func (b *Builder) Setter(p metadata.Property) (Signature, error) {
	pb := &Builder{ctx: b.ctx.With(p.TypeParameters)}
	param := metadata.ValueParameter{Name: p.SetterParameter, Type: p.ReturnType}
	md, err := pb.method(p.ReceiverType, []metadata.ValueParameter{param}, metadata.ClassType(unitClass), false)
	if err != nil {
		return Signature{}, fmt.Errorf("setter of %s: %w", p.Name, err)
	}
	return Signature{Name: SetterName(p.Name), Descriptor: md.String()}, nil
}

// Field returns the expected backing-field signature of a property.
func (b *Builder) Field(p metadata.Property) (Signature, error) {
	pb := &Builder{ctx: b.ctx.With(p.TypeParameters)}
	d, err := pb.Type(p.ReturnType, PositionValue)
	if err != nil {
		return Signature{}, fmt.Errorf("field of %s: %w", p.Name, err)
	}
	return Signature{Name: p.Name, Descriptor: d.String(), Field: true}, nil
}

// AnnotationHolder returns the expected signature of the synthetic
// annotation holder: the receiver if any, returning void.
func (b *Builder) AnnotationHolder(p metadata.Property) (Signature, error) {
	pb := &Builder{ctx: b.ctx.With(p.TypeParameters)}
	md, err := pb.method(p.ReceiverType, nil, metadata.ClassType(unitClass), false)
	if err != nil {
		return Signature{}, fmt.Errorf("annotation holder of %s: %w", p.Name, err)
	}
	return Signature{Name: AnnotationHolderName(p.Name), Descriptor: md.String()}, nil
}

// =============================================================================
// Implicit constructor parameters
// =============================================================================

// Shape describes the implicit parameters the compiler adds to every
// platform constructor of a type.
type Shape struct {
	// Enum types take a leading (String name, int ordinal) pair.
	Enum bool

	// OuterInternalName is set for inner types, whose constructors take a
	// leading enclosing-instance parameter of that type.
	OuterInternalName string
}

// Implicit returns the number of implicit leading parameters for s.
func (s Shape) Implicit() int {
	switch {
	case s.Enum:
		return 2
	case s.OuterInternalName != "":
		return 1
	default:
		return 0
	}
}

// StripImplicit removes the implicit leading parameters of shape s from a
// platform constructor descriptor.
//
// Description:
//
//	Stripping applies only when the descriptor actually carries the
//	implicit parameters: enum constructors must start with
//	(Ljava/lang/String;I) and inner-type constructors with the outer type.
//	Otherwise the descriptor is returned unchanged.
//
// Outputs:
//
//	platform.MethodDesc - The logical descriptor.
//	int - The number of parameters removed.
func StripImplicit(md platform.MethodDesc, s Shape) (platform.MethodDesc, int) {
	switch {
	case s.Enum:
		if len(md.Params) >= 2 &&
			platform.SameType(md.Params[0], platform.Object("java/lang/String")) &&
			platform.SameType(md.Params[1], platform.Primitive(platform.SortInt)) {
			return md.DropLeading(2), 2
		}
	case s.OuterInternalName != "":
		if len(md.Params) >= 1 && platform.SameType(md.Params[0], platform.Object(s.OuterInternalName)) {
			return md.DropLeading(1), 1
		}
	}
	return md, 0
}
