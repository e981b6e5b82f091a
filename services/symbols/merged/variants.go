// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package merged

import (
	"github.com/AleutianAI/symbridge/services/symbols/metadata"
	"github.com/AleutianAI/symbridge/services/symbols/platform"
	"github.com/AleutianAI/symbridge/services/symbols/signature"
)

// =============================================================================
// Containers
// =============================================================================

// Module is the root of a merged graph.
type Module struct {
	Common

	// Packages resolves the module's packages in platform order.
	Packages *Lazy[[]*Package]

	// HasSourceDeclarations is true when any type below the module carries
	// metadata.
	HasSourceDeclarations bool
}

func (*Module) OneToOne() bool { return true }

// Package groups the types of one platform package.
type Package struct {
	Common

	// QualifiedName is the dotted package name.
	QualifiedName string

	// Types resolves the top-level types in platform order.
	Types *Lazy[[]TypeLike]

	// HasSourceDeclarations is true when any type of the package carries
	// metadata.
	HasSourceDeclarations bool
}

func (*Package) OneToOne() bool { return true }

// =============================================================================
// Types
// =============================================================================

// Type is a source-declared class, object, companion, interface, annotation
// class or enum. Kind() tells which.
type Type struct {
	Common

	Visibility metadata.Visibility
	Modality   metadata.Modality

	Inner    bool
	Data     bool
	Value    bool
	External bool
	Expect   bool
	Fun      bool

	// Supertypes are the declared supertypes in source form.
	Supertypes []string

	TypeParameters []*TypeParameter

	// Constructors are ordered primary first.
	Constructors  []*Constructor
	Functions     []*Function
	Properties    []*Property
	TypeAliases   []*TypeAlias
	EnumConstants []*EnumConstant

	// Synthetic are platform members of the type with no metadata
	// counterpart.
	Synthetic []*SyntheticMember

	// CompanionName is the simple name of the companion object, if any.
	CompanionName string

	NestedTypes *Lazy[[]TypeLike]
}

func (*Type) OneToOne() bool { return true }

func (t *Type) Members() []Symbol {
	var out []Symbol
	for _, c := range t.Constructors {
		out = append(out, c)
	}
	for _, f := range t.Functions {
		out = append(out, f)
	}
	for _, p := range t.Properties {
		out = append(out, p)
	}
	for _, a := range t.TypeAliases {
		out = append(out, a)
	}
	for _, e := range t.EnumConstants {
		out = append(out, e)
	}
	for _, s := range t.Synthetic {
		out = append(out, s)
	}
	return out
}

func (t *Type) Nested() ([]TypeLike, error) { return t.NestedTypes.Get() }

func (*Type) HasMetadata() bool { return true }

// PrimaryConstructor returns the primary constructor, or nil.
func (t *Type) PrimaryConstructor() *Constructor {
	if len(t.Constructors) > 0 && t.Constructors[0].Primary {
		return t.Constructors[0]
	}
	return nil
}

// EnumConstant is one entry of an enum class, backed by its static field.
type EnumConstant struct {
	Common
}

func (*EnumConstant) OneToOne() bool { return true }

// Facade is a compiler-generated class holding top-level declarations of
// one source file, or one part of a multi-file facade.
type Facade struct {
	Common

	// MultiFilePart is set for parts of a multi-file facade.
	MultiFilePart bool

	// FacadeName is the internal name of the owning multi-file facade.
	FacadeName string

	Functions   []*Function
	Properties  []*Property
	TypeAliases []*TypeAlias
	Synthetic   []*SyntheticMember

	NestedTypes *Lazy[[]TypeLike]
}

func (*Facade) OneToOne() bool { return false }

func (f *Facade) Members() []Symbol {
	var out []Symbol
	for _, fn := range f.Functions {
		out = append(out, fn)
	}
	for _, p := range f.Properties {
		out = append(out, p)
	}
	for _, a := range f.TypeAliases {
		out = append(out, a)
	}
	for _, s := range f.Synthetic {
		out = append(out, s)
	}
	return out
}

func (f *Facade) Nested() ([]TypeLike, error) { return f.NestedTypes.Get() }

func (*Facade) HasMetadata() bool { return true }

// MultiFileFacade is the public class that delegates to several facade
// parts.
type MultiFileFacade struct {
	Common

	// Parts are the internal names of the parts.
	Parts []string

	// Delegates are the forwarding members.
	Delegates []*SyntheticMember

	NestedTypes *Lazy[[]TypeLike]
}

func (*MultiFileFacade) OneToOne() bool { return false }

func (m *MultiFileFacade) Members() []Symbol {
	out := make([]Symbol, 0, len(m.Delegates))
	for _, d := range m.Delegates {
		out = append(out, d)
	}
	return out
}

func (m *MultiFileFacade) Nested() ([]TypeLike, error) { return m.NestedTypes.Get() }

func (*MultiFileFacade) HasMetadata() bool { return true }

// SyntheticType is a compiler-generated class: lambdas, DefaultImpls,
// WhenMappings and similar.
type SyntheticType struct {
	Common

	// Reason names why the type is synthetic.
	Reason string

	// Lambda is the decoded lambda signature, if the metadata had one.
	Lambda *metadata.Function

	Synthetic []*SyntheticMember

	// FromMetadata is set when the type carried a synthetic-class blob
	// rather than matching a naming convention.
	FromMetadata bool

	NestedTypes *Lazy[[]TypeLike]
}

func (*SyntheticType) OneToOne() bool { return false }

func (s *SyntheticType) Members() []Symbol {
	out := make([]Symbol, 0, len(s.Synthetic))
	for _, m := range s.Synthetic {
		out = append(out, m)
	}
	return out
}

func (s *SyntheticType) Nested() ([]TypeLike, error) { return s.NestedTypes.Get() }

func (s *SyntheticType) HasMetadata() bool { return s.FromMetadata }

// ForeignType is a platform type with no metadata, such as a class written
// in another language.
type ForeignType struct {
	Common

	ForeignMembers []*ForeignMember

	NestedTypes *Lazy[[]TypeLike]
}

// OneToOne is false: no metadata signature was checked.
func (*ForeignType) OneToOne() bool { return false }

func (f *ForeignType) Members() []Symbol {
	out := make([]Symbol, 0, len(f.ForeignMembers))
	for _, m := range f.ForeignMembers {
		out = append(out, m)
	}
	return out
}

func (f *ForeignType) Nested() ([]TypeLike, error) { return f.NestedTypes.Get() }

func (*ForeignType) HasMetadata() bool { return false }

// =============================================================================
// Callables
// =============================================================================

// Function is a source function with its platform overload set.
type Function struct {
	Common

	Visibility metadata.Visibility
	Modality   metadata.Modality

	Inline   bool
	Infix    bool
	Tailrec  bool
	Suspend  bool
	Operator bool
	External bool
	Expect   bool

	// Signature is the verified signature of the primary platform method.
	Signature signature.Signature

	// Receiver is the extension receiver parameter, or nil.
	Receiver *Parameter

	Parameters     []*Parameter
	TypeParameters []*TypeParameter
	ReturnType     metadata.TypeRef

	// Overloads are the reduced-arity platform methods generated for
	// default parameters.
	Overloads []platform.Node
}

func (f *Function) OneToOne() bool { return len(f.Overloads) == 0 }

// Constructor is a source constructor with its platform overload set.
type Constructor struct {
	Common

	Visibility metadata.Visibility

	// Primary is set for the primary constructor.
	Primary bool

	Signature signature.Signature

	// Implicit counts the leading platform parameters the compiler adds for
	// enum and inner types.
	Implicit int

	Parameters []*Parameter
	Overloads  []platform.Node
}

func (c *Constructor) OneToOne() bool { return len(c.Overloads) == 0 }

// Parameter is a value parameter or extension receiver.
type Parameter struct {
	Common

	Index    int
	Receiver bool
	Required bool

	Type              metadata.TypeRef
	VarargElementType *metadata.TypeRef
	Crossinline       bool
	Noinline          bool
}

func (*Parameter) OneToOne() bool { return true }

// TypeParameter is a declared type parameter.
type TypeParameter struct {
	Common

	Index       int
	Variance    metadata.Variance
	Reified     bool
	UpperBounds []metadata.TypeRef
}

// OneToOne is false for type parameters with no platform node, such as
// those of properties.
func (t *TypeParameter) OneToOne() bool { return len(t.nodes) == 1 }

// =============================================================================
// Properties
// =============================================================================

// Property is a source property assembled from its platform parts.
type Property struct {
	Common

	Visibility metadata.Visibility
	Modality   metadata.Modality

	Var       bool
	Const     bool
	Delegated bool
	Lateinit  bool
	Expect    bool
	External  bool

	ReceiverType   *metadata.TypeRef
	ReturnType     metadata.TypeRef
	TypeParameters []*TypeParameter

	Getter *Accessor
	Setter *Accessor

	Field            platform.Node
	AnnotationHolder platform.Node
	DelegateField    platform.Node

	// FieldInOuter is set when Field lives on the enclosing class of a
	// companion object.
	FieldInOuter bool

	Constant    any
	HasConstant bool
}

func (*Property) OneToOne() bool { return false }

// Accessor is a property getter or setter.
type Accessor struct {
	Common

	Visibility metadata.Visibility
	Modality   metadata.Modality
	NotDefault bool
	External   bool
	Inline     bool

	// Property is the owning property.
	Property *Property

	Signature signature.Signature

	// Verified is set when Signature equals the signature expected from
	// the metadata. An accessor found by name and arity alone is not 1:1.
	Verified bool

	// Parameters are the receiver and, for setters, the value parameter.
	Parameters []*Parameter
}

func (a *Accessor) OneToOne() bool { return a.Verified }

// TypeAlias is a source type alias. It has no platform node beyond the
// optional annotation holder.
type TypeAlias struct {
	Common

	Visibility     metadata.Visibility
	Underlying     metadata.TypeRef
	TypeParameters []*TypeParameter
}

func (*TypeAlias) OneToOne() bool { return false }

// =============================================================================
// Unmatched members
// =============================================================================

// ForeignMember is a member of a ForeignType.
type ForeignMember struct {
	Common
}

func (*ForeignMember) OneToOne() bool { return false }

// SyntheticMember is a platform member with no metadata counterpart.
type SyntheticMember struct {
	Common

	// Reason names the classification, e.g. "compiler_artifact".
	Reason string
}

func (*SyntheticMember) OneToOne() bool { return false }
