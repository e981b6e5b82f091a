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

	"github.com/AleutianAI/symbridge/services/symbols/metadata"
	"github.com/AleutianAI/symbridge/services/symbols/platform"
)

// Position is where a type occurs in a member descriptor. It decides
// between primitive and boxed forms and whether Unit maps to void.
type Position int

const (
	// PositionValue is a parameter or field type.
	PositionValue Position = iota

	// PositionReturn is a return type.
	PositionReturn

	// PositionArgument is a generic type argument or array component of a
	// reference array.
	PositionArgument
)

type builtin struct {
	primitive platform.Sort
	box       string
}

var builtins = map[string]builtin{
	"kotlin/Boolean": {platform.SortBoolean, "java/lang/Boolean"},
	"kotlin/Char":    {platform.SortChar, "java/lang/Character"},
	"kotlin/Byte":    {platform.SortByte, "java/lang/Byte"},
	"kotlin/Short":   {platform.SortShort, "java/lang/Short"},
	"kotlin/Int":     {platform.SortInt, "java/lang/Integer"},
	"kotlin/Float":   {platform.SortFloat, "java/lang/Float"},
	"kotlin/Long":    {platform.SortLong, "java/lang/Long"},
	"kotlin/Double":  {platform.SortDouble, "java/lang/Double"},
}

var primitiveArrays = map[string]platform.Sort{
	"kotlin/BooleanArray": platform.SortBoolean,
	"kotlin/CharArray":    platform.SortChar,
	"kotlin/ByteArray":    platform.SortByte,
	"kotlin/ShortArray":   platform.SortShort,
	"kotlin/IntArray":     platform.SortInt,
	"kotlin/FloatArray":   platform.SortFloat,
	"kotlin/LongArray":    platform.SortLong,
	"kotlin/DoubleArray":  platform.SortDouble,
}

// mappedClasses are source classes compiled to a different platform class.
// Read-only and mutable collection views share one platform interface.
var mappedClasses = map[string]string{
	"kotlin/Any":                                 "java/lang/Object",
	"kotlin/Nothing":                             "java/lang/Void",
	"kotlin/String":                              "java/lang/String",
	"kotlin/CharSequence":                        "java/lang/CharSequence",
	"kotlin/Number":                              "java/lang/Number",
	"kotlin/Throwable":                           "java/lang/Throwable",
	"kotlin/Comparable":                          "java/lang/Comparable",
	"kotlin/Enum":                                "java/lang/Enum",
	"kotlin/Annotation":                          "java/lang/annotation/Annotation",
	"kotlin/Cloneable":                           "java/lang/Cloneable",
	"kotlin/collections/Iterable":                "java/lang/Iterable",
	"kotlin/collections/MutableIterable":         "java/lang/Iterable",
	"kotlin/collections/Iterator":                "java/util/Iterator",
	"kotlin/collections/MutableIterator":         "java/util/Iterator",
	"kotlin/collections/ListIterator":            "java/util/ListIterator",
	"kotlin/collections/Collection":              "java/util/Collection",
	"kotlin/collections/MutableCollection":       "java/util/Collection",
	"kotlin/collections/List":                    "java/util/List",
	"kotlin/collections/MutableList":             "java/util/List",
	"kotlin/collections/Set":                     "java/util/Set",
	"kotlin/collections/MutableSet":              "java/util/Set",
	"kotlin/collections/Map":                     "java/util/Map",
	"kotlin/collections/MutableMap":              "java/util/Map",
	"kotlin/collections/Map.Entry":               "java/util/Map$Entry",
	"kotlin/collections/MutableMap.MutableEntry": "java/util/Map$Entry",
}

const (
	unitClass         = "kotlin/Unit"
	arrayClass        = "kotlin/Array"
	functionPrefix    = "kotlin/Function"
	functionJVMPrefix = "kotlin/jvm/functions/Function"
	continuationClass = "kotlin/coroutines/Continuation"
	objectClass       = "java/lang/Object"
)

// Type maps a source type reference to its platform descriptor.
//
// Description:
//
//	Builtin value types become primitives in value and return positions
//	unless nullable, and their boxes otherwise. Unit becomes void only as
//	a non-null return type. Arrays map to platform arrays with reference
//	components in argument position. Nested source names "A.B" become
//	"A$B". Type parameters erase to their first upper bound, or Object.
//
// Errors:
//
//	ErrMalformedDescriptor - An empty class name, an unknown type
//	                         parameter ID, a star projection outside an
//	                         argument list, or a cyclic bound.
func (b *Builder) Type(t metadata.TypeRef, pos Position) (platform.TypeDesc, error) {
	return b.mapType(t, pos, 0)
}

// maxErasureDepth bounds type-parameter bound chasing.
const maxErasureDepth = 32

func (b *Builder) mapType(t metadata.TypeRef, pos Position, depth int) (platform.TypeDesc, error) {
	if depth > maxErasureDepth {
		return platform.TypeDesc{}, fmt.Errorf("%w: type parameter bounds too deep at %s", ErrMalformedDescriptor, t)
	}
	if t.Star {
		if pos != PositionArgument {
			return platform.TypeDesc{}, fmt.Errorf("%w: star projection outside type arguments", ErrMalformedDescriptor)
		}
		return platform.Object(objectClass), nil
	}
	if t.IsTypeParameter() {
		return b.eraseParameter(*t.Param, t.Nullable, depth)
	}
	if t.ClassName == "" {
		return platform.TypeDesc{}, fmt.Errorf("%w: unresolved class reference", ErrMalformedDescriptor)
	}

	name := t.ClassName
	if bi, ok := builtins[name]; ok {
		if t.Nullable || pos == PositionArgument {
			return platform.Object(bi.box), nil
		}
		return platform.Primitive(bi.primitive), nil
	}
	if name == unitClass && pos == PositionReturn && !t.Nullable {
		return platform.Primitive(platform.SortVoid), nil
	}
	if sort, ok := primitiveArrays[name]; ok {
		return platform.ArrayOf(platform.Primitive(sort)), nil
	}
	if name == arrayClass {
		if len(t.Arguments) != 1 {
			return platform.TypeDesc{}, fmt.Errorf("%w: %s needs one type argument", ErrMalformedDescriptor, name)
		}
		elem, err := b.mapType(t.Arguments[0], PositionArgument, depth)
		if err != nil {
			return platform.TypeDesc{}, err
		}
		return platform.ArrayOf(elem), nil
	}
	if mapped, ok := mappedClasses[name]; ok {
		return platform.Object(mapped), nil
	}
	if n, ok := strings.CutPrefix(name, functionPrefix); ok && isDigits(n) {
		return platform.Object(functionJVMPrefix + n), nil
	}
	return platform.Object(InternalName(name)), nil
}

func (b *Builder) eraseParameter(id int, nullable bool, depth int) (platform.TypeDesc, error) {
	tp, ok := b.ctx.TypeParameter(id)
	if !ok {
		return platform.TypeDesc{}, fmt.Errorf("%w: unknown type parameter #%d", ErrMalformedDescriptor, id)
	}
	if len(tp.UpperBounds) == 0 {
		return platform.Object(objectClass), nil
	}
	bound := tp.UpperBounds[0]
	bound.Nullable = bound.Nullable || nullable
	// A type variable is always a reference on the platform.
	return b.mapType(bound, PositionArgument, depth+1)
}

// InternalName converts a source class name to the platform internal
// name: "com/example/Outer.Inner" becomes "com/example/Outer$Inner".
func InternalName(sourceName string) string {
	return strings.ReplaceAll(sourceName, ".", "$")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
