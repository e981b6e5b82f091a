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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/symbridge/services/symbols/metadata"
	"github.com/AleutianAI/symbridge/services/symbols/platform"
)

func mustType(t *testing.T, s string) metadata.TypeRef {
	t.Helper()
	ref, err := metadata.ParseType(s)
	require.NoError(t, err)
	return ref
}

func TestBuilder_Type(t *testing.T) {
	b := New(NewContext([]metadata.TypeParameter{
		{ID: 0, Name: "T"},
		{ID: 1, Name: "N", UpperBounds: []metadata.TypeRef{metadata.ClassType("kotlin/Number")}},
		{ID: 2, Name: "C", UpperBounds: []metadata.TypeRef{metadata.ParamType(1)}},
	}))

	tests := []struct {
		in   string
		pos  Position
		want string
	}{
		{"kotlin/Int", PositionValue, "I"},
		{"kotlin/Int?", PositionValue, "Ljava/lang/Integer;"},
		{"kotlin/Boolean", PositionReturn, "Z"},
		{"kotlin/Unit", PositionReturn, "V"},
		{"kotlin/Unit", PositionValue, "Lkotlin/Unit;"},
		{"kotlin/Unit?", PositionReturn, "Lkotlin/Unit;"},
		{"kotlin/Any", PositionValue, "Ljava/lang/Object;"},
		{"kotlin/String?", PositionValue, "Ljava/lang/String;"},
		{"kotlin/collections/MutableList<kotlin/Int>", PositionValue, "Ljava/util/List;"},
		{"kotlin/collections/Map.Entry<kotlin/String, kotlin/Int>", PositionValue, "Ljava/util/Map$Entry;"},
		{"kotlin/Function2<kotlin/Int, kotlin/Int, kotlin/Unit>", PositionValue, "Lkotlin/jvm/functions/Function2;"},
		{"kotlin/IntArray", PositionValue, "[I"},
		{"kotlin/Array<kotlin/Int>", PositionValue, "[Ljava/lang/Integer;"},
		{"kotlin/Array<kotlin/Array<kotlin/String>>", PositionValue, "[[Ljava/lang/String;"},
		{"kotlin/Array<*>", PositionValue, "[Ljava/lang/Object;"},
		{"com/example/Outer.Inner", PositionValue, "Lcom/example/Outer$Inner;"},
		{"#0", PositionValue, "Ljava/lang/Object;"},
		{"#1", PositionReturn, "Ljava/lang/Number;"},
		{"#2", PositionValue, "Ljava/lang/Number;"},
		{"kotlin/Array<#0>", PositionValue, "[Ljava/lang/Object;"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d, err := b.Type(mustType(t, tt.in), tt.pos)
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.String())
		})
	}
}

func TestBuilder_TypeErrors(t *testing.T) {
	b := New(nil)

	_, err := b.Type(metadata.ParamType(7), PositionValue)
	assert.ErrorIs(t, err, ErrMalformedDescriptor)
	assert.ErrorIs(t, err, platform.ErrMalformedDescriptor)

	_, err = b.Type(metadata.TypeRef{}, PositionValue)
	assert.ErrorIs(t, err, ErrMalformedDescriptor)

	_, err = b.Type(metadata.StarType(), PositionValue)
	assert.ErrorIs(t, err, ErrMalformedDescriptor)

	cyclic := New(NewContext([]metadata.TypeParameter{
		{ID: 0, Name: "A", UpperBounds: []metadata.TypeRef{metadata.ParamType(1)}},
		{ID: 1, Name: "B", UpperBounds: []metadata.TypeRef{metadata.ParamType(0)}},
	}))
	_, err = cyclic.Type(metadata.ParamType(0), PositionValue)
	assert.ErrorIs(t, err, ErrMalformedDescriptor)
}

func TestBuilder_Function(t *testing.T) {
	b := New(nil)

	t.Run("plain", func(t *testing.T) {
		sig, err := b.Function(metadata.Function{
			Name: "greet",
			ValueParameters: []metadata.ValueParameter{
				{Name: "name", Type: mustType(t, "kotlin/String")},
				{Name: "times", Type: mustType(t, "kotlin/Int")},
			},
			ReturnType: mustType(t, "kotlin/Unit"),
		})
		require.NoError(t, err)
		assert.Equal(t, "greet(Ljava/lang/String;I)V", sig.String())
		assert.Equal(t, 2, sig.Arity())
	})

	t.Run("extension", func(t *testing.T) {
		recv := mustType(t, "kotlin/String")
		sig, err := b.Function(metadata.Function{
			Name:         "shout",
			ReceiverType: &recv,
			ReturnType:   mustType(t, "kotlin/String"),
		})
		require.NoError(t, err)
		assert.Equal(t, "shout(Ljava/lang/String;)Ljava/lang/String;", sig.String())
	})

	t.Run("suspend", func(t *testing.T) {
		sig, err := b.Function(metadata.Function{
			Name:            "load",
			Suspend:         true,
			ValueParameters: []metadata.ValueParameter{{Name: "id", Type: mustType(t, "kotlin/Long")}},
			ReturnType:      mustType(t, "kotlin/String"),
		})
		require.NoError(t, err)
		assert.Equal(t, "load(JLkotlin/coroutines/Continuation;)Ljava/lang/Object;", sig.String())
	})

	t.Run("own type parameters", func(t *testing.T) {
		sig, err := b.Function(metadata.Function{
			Name: "max",
			TypeParameters: []metadata.TypeParameter{
				{ID: 3, Name: "T", UpperBounds: []metadata.TypeRef{mustType(t, "kotlin/Comparable<#3>")}},
			},
			ValueParameters: []metadata.ValueParameter{
				{Name: "a", Type: metadata.ParamType(3)},
				{Name: "b", Type: metadata.ParamType(3)},
			},
			ReturnType: metadata.ParamType(3),
		})
		require.NoError(t, err)
		assert.Equal(t, "max(Ljava/lang/Comparable;Ljava/lang/Comparable;)Ljava/lang/Comparable;", sig.String())
	})

	t.Run("unresolvable", func(t *testing.T) {
		_, err := b.Function(metadata.Function{Name: "bad", ReturnType: metadata.ParamType(9)})
		assert.ErrorIs(t, err, ErrMalformedDescriptor)
	})
}

func TestAccessorNames(t *testing.T) {
	assert.Equal(t, "getName", GetterName("name", false))
	assert.Equal(t, "isOpen", GetterName("isOpen", false))
	assert.Equal(t, "getIsland", GetterName("island", false))
	assert.Equal(t, "value", GetterName("value", true))
	assert.Equal(t, "setName", SetterName("name"))
	assert.Equal(t, "setOpen", SetterName("isOpen"))
	assert.Equal(t, "getName$annotations", AnnotationHolderName("name"))
	assert.Equal(t, "name$delegate", DelegateFieldName("name"))
	assert.Equal(t, "Names$annotations", TypeAliasHolderName("Names"))
}

func TestBuilder_PropertyMembers(t *testing.T) {
	b := New(nil)
	p := metadata.Property{Name: "count", Var: true, ReturnType: mustType(t, "kotlin/Int")}

	getter, err := b.Getter(p, false)
	require.NoError(t, err)
	assert.Equal(t, "getCount()I", getter.String())

	setter, err := b.Setter(p)
	require.NoError(t, err)
	assert.Equal(t, "setCount(I)V", setter.String())

	field, err := b.Field(p)
	require.NoError(t, err)
	assert.Equal(t, "count:I", field.String())
	assert.Equal(t, -1, field.Arity())

	holder, err := b.AnnotationHolder(p)
	require.NoError(t, err)
	assert.Equal(t, "getCount$annotations()V", holder.String())

	recv := mustType(t, "kotlin/String")
	ext := metadata.Property{Name: "size", ReceiverType: &recv, ReturnType: mustType(t, "kotlin/Int")}
	getter, err = b.Getter(ext, false)
	require.NoError(t, err)
	assert.Equal(t, "getSize(Ljava/lang/String;)I", getter.String())
}

// Signatures computed from metadata must equal the signatures of platform
// members built to match them.
func TestRoundTrip(t *testing.T) {
	mod := platform.NewModule("m")
	pkg, err := mod.AddPackage("com.example")
	require.NoError(t, err)
	typ, err := pkg.AddType("Widget", platform.ModPublic)
	require.NoError(t, err)

	b := New(nil)
	cases := []struct {
		meta metadata.Function
		desc string
	}{
		{
			meta: metadata.Function{
				Name:            "resize",
				ValueParameters: []metadata.ValueParameter{{Name: "w", Type: mustType(t, "kotlin/Int")}, {Name: "h", Type: mustType(t, "kotlin/Int?")}},
				ReturnType:      mustType(t, "kotlin/Boolean"),
			},
			desc: "(ILjava/lang/Integer;)Z",
		},
		{
			meta: metadata.Function{
				Name:            "children",
				ValueParameters: []metadata.ValueParameter{{Name: "filter", Type: mustType(t, "kotlin/Function1<com/example/Widget, kotlin/Boolean>")}},
				ReturnType:      mustType(t, "kotlin/collections/List<com/example/Widget>"),
			},
			desc: "(Lkotlin/jvm/functions/Function1;)Ljava/util/List;",
		},
	}
	for _, tc := range cases {
		names := make([]string, len(tc.meta.ValueParameters))
		for i, p := range tc.meta.ValueParameters {
			names[i] = p.Name
		}
		m, err := typ.AddMethod(tc.meta.Name, tc.desc, platform.ModPublic, names...)
		require.NoError(t, err)

		sig, err := b.Function(tc.meta)
		require.NoError(t, err)
		assert.Equal(t, Of(m), sig)
	}

	ctor, err := typ.AddConstructor("(Ljava/lang/String;)V", platform.ModPublic, "id")
	require.NoError(t, err)
	sig, err := b.Constructor(metadata.Constructor{
		ValueParameters: []metadata.ValueParameter{{Name: "id", Type: mustType(t, "kotlin/String")}},
	})
	require.NoError(t, err)
	assert.Equal(t, Of(ctor), sig)
}

func TestStripImplicit(t *testing.T) {
	b := New(nil)
	logical := metadata.Constructor{ValueParameters: []metadata.ValueParameter{
		{Name: "a", Type: mustType(t, "kotlin/String")},
		{Name: "b", Type: mustType(t, "kotlin/Long")},
	}}
	want, err := b.Constructor(logical)
	require.NoError(t, err)

	t.Run("enum prefix", func(t *testing.T) {
		md, err := platform.ParseMethodDescriptor("(Ljava/lang/String;ILjava/lang/String;J)V")
		require.NoError(t, err)
		stripped, n := StripImplicit(md, Shape{Enum: true})
		assert.Equal(t, 2, n)
		assert.Equal(t, want.Descriptor, stripped.String())
	})

	t.Run("inner outer instance", func(t *testing.T) {
		md, err := platform.ParseMethodDescriptor("(Lcom/example/Outer;Ljava/lang/String;J)V")
		require.NoError(t, err)
		stripped, n := StripImplicit(md, Shape{OuterInternalName: "com/example/Outer"})
		assert.Equal(t, 1, n)
		assert.Equal(t, want.Descriptor, stripped.String())
	})

	t.Run("absent implicit parameters are kept", func(t *testing.T) {
		md, err := platform.ParseMethodDescriptor("(Ljava/lang/String;J)V")
		require.NoError(t, err)
		stripped, n := StripImplicit(md, Shape{OuterInternalName: "com/example/Outer"})
		assert.Equal(t, 0, n)
		assert.Equal(t, want.Descriptor, stripped.String())

		stripped, n = StripImplicit(md, Shape{Enum: true})
		assert.Equal(t, 0, n)
		assert.Equal(t, want.Descriptor, stripped.String())
	})

	assert.Equal(t, 2, Shape{Enum: true}.Implicit())
	assert.Equal(t, 1, Shape{OuterInternalName: "x/Y"}.Implicit())
	assert.Equal(t, 0, Shape{}.Implicit())
}
