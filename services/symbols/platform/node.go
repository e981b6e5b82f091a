// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package platform describes the platform declaration tree: the
// reflection-style view of compiled members expressed only in terms of the
// binary platform's type system.
//
// The tree itself is owned by an external reflection provider. This package
// defines the Node interface the reconciliation engine consumes, the binary
// descriptor grammar used to compare members, and Element, an in-memory
// implementation used by fixtures and tests.
package platform

// Kind is the node-kind tag supplied by the reflection provider.
type Kind int

const (
	// KindOther is any node kind the provider reports that this engine does
	// not understand. Converting it fails with an unsupported-kind error.
	KindOther Kind = iota

	// KindType is a class, interface, enum, annotation or record.
	KindType

	// KindMethod is a named executable member.
	KindMethod

	// KindConstructor is an instance constructor ("<init>").
	KindConstructor

	// KindField is a field, including enum constants.
	KindField

	// KindParameter is a value parameter of an executable.
	KindParameter

	// KindTypeParameter is a type parameter of a type or executable.
	KindTypeParameter

	// KindPackage is a package.
	KindPackage

	// KindModule is a module, the root of a tree.
	KindModule

	// KindInitializer is a static or instance initializer block.
	KindInitializer
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindType:
		return "type"
	case KindMethod:
		return "method"
	case KindConstructor:
		return "constructor"
	case KindField:
		return "field"
	case KindParameter:
		return "parameter"
	case KindTypeParameter:
		return "type_parameter"
	case KindPackage:
		return "package"
	case KindModule:
		return "module"
	case KindInitializer:
		return "initializer"
	default:
		return "other"
	}
}

// IsExecutable reports whether nodes of this kind carry a parameter list.
func (k Kind) IsExecutable() bool {
	return k == KindMethod || k == KindConstructor
}

// IsMember reports whether nodes of this kind live inside a type and can
// only be classified through their enclosing container.
func (k Kind) IsMember() bool {
	switch k {
	case KindMethod, KindConstructor, KindField, KindInitializer:
		return true
	default:
		return false
	}
}

// Modifiers is a bit set of platform-level access and structure flags.
type Modifiers uint16

const (
	ModPublic Modifiers = 1 << iota
	ModProtected
	ModPrivate
	ModStatic
	ModFinal
	ModAbstract
	ModSynthetic
	ModEnum
	ModInterface
	ModAnnotation
)

// Has reports whether every flag in m is set.
func (m Modifiers) Has(flag Modifiers) bool {
	return m&flag == flag
}

// Node is one declaration in the platform tree.
//
// Description:
//
//	Node is the only view of compiled code the reconciliation engine has on
//	the platform side. Implementations must be immutable and structurally
//	stable: navigating Enclosed twice on the same node yields an equivalent
//	node set, though not necessarily the same instances. Identity across
//	instances is derived with KeyOf.
//
// Thread Safety:
//
//	Implementations must be safe for concurrent reads.
type Node interface {
	// Kind returns the node-kind tag.
	Kind() Kind

	// SimpleName returns the unqualified name. Constructors return "<init>",
	// initializers "<clinit>" or "<init>".
	SimpleName() string

	// Enclosing returns the enclosing node. Nil only for modules and
	// top-level packages.
	Enclosing() Node

	// Enclosed returns the directly enclosed declarations in declaration order.
	Enclosed() []Node

	// Descriptor returns the binary descriptor: a field descriptor for
	// fields, parameters and types, a method descriptor "(params)ret" for
	// executables, and "" for packages and modules.
	Descriptor() string

	// Parameters returns the declared value parameters of an executable, in
	// order. Nil for non-executables.
	Parameters() []Node

	// TypeParameters returns the declared type parameters of a type or
	// executable.
	TypeParameters() []Node

	// Modifiers returns the platform access and structure flags.
	Modifiers() Modifiers

	// Metadata returns the raw declaration-metadata blob attached to a
	// compiled type, if any.
	Metadata() (Blob, bool)

	// ConstantValue returns the compile-time constant of a static final
	// field, if any.
	ConstantValue() (any, bool)
}

// BlobKind identifies what a metadata blob describes.
type BlobKind int

const (
	// BlobClass describes a class, interface, object, enum or annotation.
	BlobClass BlobKind = iota + 1

	// BlobFileFacade describes the facade type that holds one source file's
	// top-level declarations.
	BlobFileFacade

	// BlobSyntheticClass marks a compiler-generated compatibility type.
	BlobSyntheticClass

	// BlobMultiFileFacade describes a facade whose members are spread over
	// several part types.
	BlobMultiFileFacade

	// BlobMultiFilePart describes one part of a multi-file facade.
	BlobMultiFilePart
)

// String returns the string representation of the BlobKind.
func (k BlobKind) String() string {
	switch k {
	case BlobClass:
		return "class"
	case BlobFileFacade:
		return "file_facade"
	case BlobSyntheticClass:
		return "synthetic_class"
	case BlobMultiFileFacade:
		return "multi_file_facade"
	case BlobMultiFilePart:
		return "multi_file_part"
	default:
		return "unknown"
	}
}

// Blob is the raw, still-encoded declaration metadata attached to a type.
//
// Strings is the name-resolution table scoped to this blob; encoded name
// references inside Data are indices into it.
type Blob struct {
	Kind        BlobKind
	Version     string
	Data        []byte
	Strings     []string
	ExtraString string
	PackageName string
}
