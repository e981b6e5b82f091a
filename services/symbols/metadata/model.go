// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package metadata models the declaration-metadata tree: the source-level
// record the compiler attaches to each compiled type as an encoded blob.
//
// The model is immutable once decoded. Class names inside it use the source
// form "pkg/path/Outer.Inner"; builtin types live under "kotlin/".
package metadata

import (
	"fmt"
)

// =============================================================================
// Enumerations
// =============================================================================

// ClassKind is the source-level kind of a class declaration.
type ClassKind int

const (
	ClassKindClass ClassKind = iota
	ClassKindInterface
	ClassKindEnumClass
	ClassKindEnumEntry
	ClassKindAnnotationClass
	ClassKindObject
	ClassKindCompanionObject
)

var classKindNames = []string{
	"class", "interface", "enum_class", "enum_entry", "annotation_class", "object", "companion_object",
}

// String returns the string representation of the ClassKind.
func (k ClassKind) String() string { return enumName(classKindNames, int(k)) }

// MarshalText implements encoding.TextMarshaler.
func (k ClassKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *ClassKind) UnmarshalText(b []byte) error {
	v, err := enumValue(classKindNames, "class kind", string(b))
	*k = ClassKind(v)
	return err
}

// Visibility is a declaration's source visibility.
type Visibility int

const (
	VisibilityPublic Visibility = iota
	VisibilityInternal
	VisibilityProtected
	VisibilityPrivate
	VisibilityPrivateToThis
	VisibilityLocal
)

var visibilityNames = []string{"public", "internal", "protected", "private", "private_to_this", "local"}

// String returns the string representation of the Visibility.
func (v Visibility) String() string { return enumName(visibilityNames, int(v)) }

// MarshalText implements encoding.TextMarshaler.
func (v Visibility) MarshalText() ([]byte, error) { return []byte(v.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Visibility) UnmarshalText(b []byte) error {
	n, err := enumValue(visibilityNames, "visibility", string(b))
	*v = Visibility(n)
	return err
}

// Modality is a declaration's inheritance modality.
type Modality int

const (
	ModalityFinal Modality = iota
	ModalityOpen
	ModalityAbstract
	ModalitySealed
)

var modalityNames = []string{"final", "open", "abstract", "sealed"}

// String returns the string representation of the Modality.
func (m Modality) String() string { return enumName(modalityNames, int(m)) }

// MarshalText implements encoding.TextMarshaler.
func (m Modality) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Modality) UnmarshalText(b []byte) error {
	n, err := enumValue(modalityNames, "modality", string(b))
	*m = Modality(n)
	return err
}

// Variance is a type parameter's declaration-site variance.
type Variance int

const (
	VarianceInvariant Variance = iota
	VarianceIn
	VarianceOut
)

var varianceNames = []string{"invariant", "in", "out"}

// String returns the string representation of the Variance.
func (v Variance) String() string { return enumName(varianceNames, int(v)) }

// MarshalText implements encoding.TextMarshaler.
func (v Variance) MarshalText() ([]byte, error) { return []byte(v.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Variance) UnmarshalText(b []byte) error {
	n, err := enumValue(varianceNames, "variance", string(b))
	*v = Variance(n)
	return err
}

func enumName(names []string, i int) string {
	if i < 0 || i >= len(names) {
		return fmt.Sprintf("unknown(%d)", i)
	}
	return names[i]
}

func enumValue(names []string, what, s string) (int, error) {
	for i, n := range names {
		if n == s {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown %s %q", ErrInvalidMetadata, what, s)
}

// =============================================================================
// Types
// =============================================================================

// TypeRef is a reference to a type from inside metadata.
//
// A TypeRef is either a class reference (ClassName set), a type-parameter
// reference (Param set, naming the parameter's ID) or a star projection
// (only legal as a type argument).
//
// On the wire the class name is an index into the blob's string table;
// ClassName is filled in by the decoder.
type TypeRef struct {
	ClassName  string    `yaml:"-"`
	ClassIndex int       `yaml:"class,omitempty"`
	Param      *int      `yaml:"param,omitempty"`
	Star       bool      `yaml:"star,omitempty"`
	Nullable   bool      `yaml:"nullable,omitempty"`
	Arguments  []TypeRef `yaml:"args,omitempty"`

	// inline is set when ClassName came from the source form rather than
	// the string table.
	inline bool
}

// ClassType returns a non-null class reference.
func ClassType(name string, args ...TypeRef) TypeRef {
	return TypeRef{ClassName: name, Arguments: args}
}

// ParamType returns a reference to the type parameter with the given ID.
func ParamType(id int) TypeRef {
	return TypeRef{Param: &id}
}

// StarType returns a star projection.
func StarType() TypeRef {
	return TypeRef{Star: true}
}

// OrNull returns a nullable copy of t.
func (t TypeRef) OrNull() TypeRef {
	t.Nullable = true
	return t
}

// IsTypeParameter reports whether t refers to a type parameter.
func (t TypeRef) IsTypeParameter() bool { return t.Param != nil }

// String renders t in source form, e.g. "kotlin/collections/List<T#0>?".
func (t TypeRef) String() string {
	var s string
	switch {
	case t.Star:
		return "*"
	case t.Param != nil:
		s = fmt.Sprintf("T#%d", *t.Param)
	default:
		s = t.ClassName
	}
	if len(t.Arguments) > 0 {
		s += "<"
		for i, a := range t.Arguments {
			if i > 0 {
				s += ", "
			}
			s += a.String()
		}
		s += ">"
	}
	if t.Nullable {
		s += "?"
	}
	return s
}

// TypeParameter declares a type parameter. ID is unique within the blob and
// is what TypeRef.Param refers to.
type TypeParameter struct {
	ID          int       `yaml:"id"`
	Name        string    `yaml:"name"`
	Variance    Variance  `yaml:"variance,omitempty"`
	Reified     bool      `yaml:"reified,omitempty"`
	UpperBounds []TypeRef `yaml:"upper_bounds,omitempty"`
}

// ValueParameter is one declared value parameter.
type ValueParameter struct {
	Name              string   `yaml:"name"`
	Type              TypeRef  `yaml:"type"`
	VarargElementType *TypeRef `yaml:"vararg_element_type,omitempty"`
	DeclaresDefault   bool     `yaml:"declares_default,omitempty"`
	Crossinline       bool     `yaml:"crossinline,omitempty"`
	Noinline          bool     `yaml:"noinline,omitempty"`
}

// =============================================================================
// Declarations
// =============================================================================

// Function describes a function or method.
type Function struct {
	Name            string           `yaml:"name"`
	Visibility      Visibility       `yaml:"visibility,omitempty"`
	Modality        Modality         `yaml:"modality,omitempty"`
	Inline          bool             `yaml:"inline,omitempty"`
	Infix           bool             `yaml:"infix,omitempty"`
	Tailrec         bool             `yaml:"tailrec,omitempty"`
	Suspend         bool             `yaml:"suspend,omitempty"`
	Operator        bool             `yaml:"operator,omitempty"`
	External        bool             `yaml:"external,omitempty"`
	Expect          bool             `yaml:"expect,omitempty"`
	TypeParameters  []TypeParameter  `yaml:"type_parameters,omitempty"`
	ReceiverType    *TypeRef         `yaml:"receiver,omitempty"`
	ValueParameters []ValueParameter `yaml:"parameters,omitempty"`
	ReturnType      TypeRef          `yaml:"returns"`
}

// Constructor describes a constructor. Secondary is false for the primary
// constructor.
type Constructor struct {
	Visibility      Visibility       `yaml:"visibility,omitempty"`
	Secondary       bool             `yaml:"secondary,omitempty"`
	ValueParameters []ValueParameter `yaml:"parameters,omitempty"`
}

// IsPrimary reports whether c is the primary constructor.
func (c Constructor) IsPrimary() bool { return !c.Secondary }

// Accessor carries the attributes of a property getter or setter.
type Accessor struct {
	Visibility Visibility `yaml:"visibility,omitempty"`
	Modality   Modality   `yaml:"modality,omitempty"`
	NotDefault bool       `yaml:"not_default,omitempty"`
	External   bool       `yaml:"external,omitempty"`
	Inline     bool       `yaml:"inline,omitempty"`
}

// Property describes a property.
//
// HasGetter and HasSetter record whether the compiler emits the accessor at
// all. Private properties with default accessors, const properties and
// properties of annotation classes may have none.
type Property struct {
	Name            string          `yaml:"name"`
	Visibility      Visibility      `yaml:"visibility,omitempty"`
	Modality        Modality        `yaml:"modality,omitempty"`
	Var             bool            `yaml:"var,omitempty"`
	Const           bool            `yaml:"const,omitempty"`
	Delegated       bool            `yaml:"delegated,omitempty"`
	Lateinit        bool            `yaml:"lateinit,omitempty"`
	HasAnnotations  bool            `yaml:"has_annotations,omitempty"`
	HasGetter       bool            `yaml:"has_getter,omitempty"`
	HasSetter       bool            `yaml:"has_setter,omitempty"`
	Expect          bool            `yaml:"expect,omitempty"`
	External        bool            `yaml:"external,omitempty"`
	Getter          Accessor        `yaml:"getter,omitempty"`
	Setter          Accessor        `yaml:"setter,omitempty"`
	TypeParameters  []TypeParameter `yaml:"type_parameters,omitempty"`
	ReceiverType    *TypeRef        `yaml:"receiver,omitempty"`
	ReturnType      TypeRef         `yaml:"returns"`
	SetterParameter string          `yaml:"setter_parameter,omitempty"`
}

// TypeAlias describes a type alias.
type TypeAlias struct {
	Name           string          `yaml:"name"`
	Visibility     Visibility      `yaml:"visibility,omitempty"`
	TypeParameters []TypeParameter `yaml:"type_parameters,omitempty"`
	Underlying     TypeRef         `yaml:"underlying"`
	HasAnnotations bool            `yaml:"has_annotations,omitempty"`
}

// Class describes a class-like declaration.
//
// NestedClasses, CompanionObject and EnumEntries hold simple names.
type Class struct {
	Name            string          `yaml:"-"`
	NameIndex       int             `yaml:"name"`
	Kind            ClassKind       `yaml:"kind,omitempty"`
	Visibility      Visibility      `yaml:"visibility,omitempty"`
	Modality        Modality        `yaml:"modality,omitempty"`
	Inner           bool            `yaml:"inner,omitempty"`
	Data            bool            `yaml:"data,omitempty"`
	Value           bool            `yaml:"value,omitempty"`
	External        bool            `yaml:"external,omitempty"`
	Expect          bool            `yaml:"expect,omitempty"`
	Fun             bool            `yaml:"fun,omitempty"`
	TypeParameters  []TypeParameter `yaml:"type_parameters,omitempty"`
	Supertypes      []TypeRef       `yaml:"supertypes,omitempty"`
	Constructors    []Constructor   `yaml:"constructors,omitempty"`
	Functions       []Function      `yaml:"functions,omitempty"`
	Properties      []Property      `yaml:"properties,omitempty"`
	TypeAliases     []TypeAlias     `yaml:"type_aliases,omitempty"`
	NestedClasses   []string        `yaml:"nested_classes,omitempty"`
	CompanionObject string          `yaml:"companion_object,omitempty"`
	EnumEntries     []string        `yaml:"enum_entries,omitempty"`
}

// Package describes the top-level declarations held by a file facade or a
// multi-file part.
type Package struct {
	Functions   []Function  `yaml:"functions,omitempty"`
	Properties  []Property  `yaml:"properties,omitempty"`
	TypeAliases []TypeAlias `yaml:"type_aliases,omitempty"`
}

// MultiFileFacade lists the internal names of a multi-file facade's parts.
type MultiFileFacade struct {
	Parts []string `yaml:"parts"`
}

// SyntheticClass describes a compiler-generated type. Lambda is set when
// the type implements a lambda.
type SyntheticClass struct {
	Lambda *Function `yaml:"lambda,omitempty"`
}
