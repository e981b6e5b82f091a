// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package match

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/symbridge/services/symbols/metadata"
	"github.com/AleutianAI/symbridge/services/symbols/platform"
	"github.com/AleutianAI/symbridge/services/symbols/signature"
)

// =============================================================================
// Helpers
// =============================================================================

func newType(t *testing.T, name string) *platform.Element {
	t.Helper()
	mod := platform.NewModule("m")
	pkg, err := mod.AddPackage("com.example")
	require.NoError(t, err)
	typ, err := pkg.AddType(name, platform.ModPublic)
	require.NoError(t, err)
	return typ
}

func addMethod(t *testing.T, typ *platform.Element, name, desc string, params ...string) *platform.Element {
	t.Helper()
	m, err := typ.AddMethod(name, desc, platform.ModPublic, params...)
	require.NoError(t, err)
	return m
}

func addCtor(t *testing.T, typ *platform.Element, desc string, params ...string) *platform.Element {
	t.Helper()
	m, err := typ.AddConstructor(desc, platform.ModPublic, params...)
	require.NoError(t, err)
	return m
}

func addField(t *testing.T, typ *platform.Element, name, desc string) *platform.Element {
	t.Helper()
	f, err := typ.AddField(name, desc, platform.ModPrivate)
	require.NoError(t, err)
	return f
}

func scopeOf(t *testing.T, typ platform.Node, shape signature.Shape) *Scope {
	t.Helper()
	s, err := NewScope(typ, shape)
	require.NoError(t, err)
	return s
}

func param(t *testing.T, name, typ string, hasDefault bool) metadata.ValueParameter {
	t.Helper()
	ref, err := metadata.ParseType(typ)
	require.NoError(t, err)
	return metadata.ValueParameter{Name: name, Type: ref, DeclaresDefault: hasDefault}
}

func typeRef(t *testing.T, s string) metadata.TypeRef {
	t.Helper()
	ref, err := metadata.ParseType(s)
	require.NoError(t, err)
	return ref
}

func keysOf(members []*Member) []platform.Key {
	out := make([]platform.Key, len(members))
	for i, m := range members {
		out[i] = m.Key
	}
	return out
}

// =============================================================================
// Parameter matching
// =============================================================================

func TestMatchParameters(t *testing.T) {
	typ := newType(t, "Point")
	m := addMethod(t, typ, "move", "(II)V", "dx", "dy")
	sig := signature.Of(m)

	t.Run("names agree", func(t *testing.T) {
		got, err := MatchParameters(sig, []metadata.ValueParameter{
			param(t, "dx", "kotlin/Int", false),
			param(t, "dy", "kotlin/Int", true),
		}, m.Parameters())
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.True(t, got[0].Required)
		assert.False(t, got[1].Required)
		assert.Equal(t, "dy", got[1].Platform.SimpleName())
	})

	t.Run("name mismatch is fatal", func(t *testing.T) {
		_, err := MatchParameters(sig, []metadata.ValueParameter{
			param(t, "dx", "kotlin/Int", false),
			param(t, "y", "kotlin/Int", false),
		}, m.Parameters())
		assert.ErrorIs(t, err, ErrParameterMismatch)
	})

	t.Run("length mismatch is fatal", func(t *testing.T) {
		_, err := MatchParameters(sig, []metadata.ValueParameter{param(t, "dx", "kotlin/Int", false)}, m.Parameters())
		assert.ErrorIs(t, err, ErrParameterMismatch)
	})

	t.Run("equals is exempt", func(t *testing.T) {
		eq := addMethod(t, typ, "equals", "(Ljava/lang/Object;)Z", "obj")
		_, err := MatchParameters(signature.Of(eq), []metadata.ValueParameter{param(t, "other", "kotlin/Any?", false)}, eq.Parameters())
		assert.NoError(t, err)

		strict := NewMatcher(WithNameExceptions())
		_, err = strict.MatchParameters(signature.Of(eq), []metadata.ValueParameter{param(t, "other", "kotlin/Any?", false)}, eq.Parameters())
		assert.ErrorIs(t, err, ErrParameterMismatch)
	})
}

// =============================================================================
// Overload resolution
// =============================================================================

func TestResolveOverloads_DefaultParameterExpansion(t *testing.T) {
	typ := newType(t, "Config")
	full := addCtor(t, typ, "(Ljava/lang/String;IZ)V", "a", "b", "c")
	two := addCtor(t, typ, "(Ljava/lang/String;I)V", "a", "b")
	one := addCtor(t, typ, "(Ljava/lang/String;)V", "a")
	addCtor(t, typ, "(Ljava/lang/String;IZILkotlin/jvm/internal/DefaultConstructorMarker;)V")

	ctor := metadata.Constructor{ValueParameters: []metadata.ValueParameter{
		param(t, "a", "kotlin/String", false),
		param(t, "b", "kotlin/Int", true),
		param(t, "c", "kotlin/Boolean", true),
	}}
	sig, err := signature.New(nil).Constructor(ctor)
	require.NoError(t, err)

	set, err := ResolveOverloads(scopeOf(t, typ, signature.Shape{}), Expected{
		Kind:       platform.KindConstructor,
		Signature:  sig,
		Parameters: ctor.ValueParameters,
	})
	require.NoError(t, err)

	assert.Equal(t, platform.KeyOf(full), set.Primary.Key)
	assert.ElementsMatch(t, []platform.Key{platform.KeyOf(two), platform.KeyOf(one)}, keysOf(set.Overloads))
	require.Len(t, set.Parameters, 3)
	assert.True(t, set.Parameters[0].Required)
}

func TestResolveOverloads_RequiredParametersMustBeCovered(t *testing.T) {
	typ := newType(t, "Api")
	addMethod(t, typ, "call", "(Ljava/lang/String;I)V", "url", "retries")
	addMethod(t, typ, "call", "(I)V", "retries")

	fn := metadata.Function{
		Name: "call",
		ValueParameters: []metadata.ValueParameter{
			param(t, "url", "kotlin/String", false),
			param(t, "retries", "kotlin/Int", true),
		},
		ReturnType: typeRef(t, "kotlin/Unit"),
	}
	sig, err := signature.New(nil).Function(fn)
	require.NoError(t, err)

	set, err := ResolveOverloads(scopeOf(t, typ, signature.Shape{}), Expected{
		Kind: platform.KindMethod, Signature: sig, Parameters: fn.ValueParameters,
	})
	require.NoError(t, err)
	assert.Empty(t, set.Overloads)
}

func TestResolveOverloads_ExcludedMembersAreNotOverloads(t *testing.T) {
	typ := newType(t, "Api")
	addMethod(t, typ, "f", "(II)V", "a", "b")
	single := addMethod(t, typ, "f", "(I)V", "a")

	fn := metadata.Function{
		Name:            "f",
		ValueParameters: []metadata.ValueParameter{param(t, "a", "kotlin/Int", false), param(t, "b", "kotlin/Int", true)},
		ReturnType:      typeRef(t, "kotlin/Unit"),
	}
	sig, err := signature.New(nil).Function(fn)
	require.NoError(t, err)

	set, err := ResolveOverloads(scopeOf(t, typ, signature.Shape{}), Expected{
		Kind: platform.KindMethod, Signature: sig, Parameters: fn.ValueParameters,
		Exclude: map[platform.Key]bool{platform.KeyOf(single): true},
	})
	require.NoError(t, err)
	assert.Empty(t, set.Overloads)
}

func TestResolveOverloads_MissingAndAmbiguous(t *testing.T) {
	typ := newType(t, "Api")
	addMethod(t, typ, "f", "(I)V", "a")

	exp := Expected{
		Kind:      platform.KindMethod,
		Signature: signature.Signature{Name: "f", Descriptor: "(J)V"},
	}
	_, err := ResolveOverloads(scopeOf(t, typ, signature.Shape{}), exp)
	require.ErrorIs(t, err, ErrAmbiguousOrMissingMember)

	var lookupErr *MemberLookupError
	require.True(t, errors.As(err, &lookupErr))
	assert.Equal(t, 0, lookupErr.Candidates)
	assert.Equal(t, "f(J)V", lookupErr.Signature)
	assert.Equal(t, "com.example.Api", lookupErr.Scope)
}

func TestResolveOverloads_ExtensionAndSuspend(t *testing.T) {
	typ := newType(t, "UtilsKt")
	addMethod(t, typ, "fetch", "(Ljava/lang/String;JLkotlin/coroutines/Continuation;)Ljava/lang/Object;",
		"$this$fetch", "id", "$completion")

	recv := typeRef(t, "kotlin/String")
	fn := metadata.Function{
		Name:            "fetch",
		Suspend:         true,
		ReceiverType:    &recv,
		ValueParameters: []metadata.ValueParameter{param(t, "id", "kotlin/Long", false)},
		ReturnType:      typeRef(t, "kotlin/String"),
	}
	sig, err := signature.New(nil).Function(fn)
	require.NoError(t, err)

	set, err := ResolveOverloads(scopeOf(t, typ, signature.Shape{}), Expected{
		Kind: platform.KindMethod, Signature: sig, Parameters: fn.ValueParameters,
		HasReceiver: true, Suspend: true,
	})
	require.NoError(t, err)
	require.NotNil(t, set.Receiver)
	assert.Equal(t, "$this$fetch", set.Receiver.SimpleName())
	require.Len(t, set.Parameters, 1)
	assert.Equal(t, "id", set.Parameters[0].Platform.SimpleName())
}

func TestResolveOverloads_ImplicitConstructorParameters(t *testing.T) {
	ctor := metadata.Constructor{ValueParameters: []metadata.ValueParameter{
		param(t, "a", "kotlin/String", false),
		param(t, "b", "kotlin/Long", true),
	}}
	sig, err := signature.New(nil).Constructor(ctor)
	require.NoError(t, err)

	t.Run("enum", func(t *testing.T) {
		typ := newType(t, "Color")
		primary := addCtor(t, typ, "(Ljava/lang/String;ILjava/lang/String;J)V", "$enum$name", "$enum$ordinal", "a", "b")
		reduced := addCtor(t, typ, "(Ljava/lang/String;ILjava/lang/String;)V", "$enum$name", "$enum$ordinal", "a")

		set, err := ResolveOverloads(scopeOf(t, typ, signature.Shape{Enum: true}), Expected{
			Kind: platform.KindConstructor, Signature: sig, Parameters: ctor.ValueParameters,
		})
		require.NoError(t, err)
		assert.Equal(t, platform.KeyOf(primary), set.Primary.Key)
		assert.Equal(t, 2, set.Implicit)
		assert.Equal(t, []platform.Key{platform.KeyOf(reduced)}, keysOf(set.Overloads))
	})

	t.Run("inner", func(t *testing.T) {
		typ := newType(t, "Outer")
		inner, err := typ.AddType("Inner", platform.ModPublic)
		require.NoError(t, err)
		primary := addCtor(t, inner, "(Lcom/example/Outer;Ljava/lang/String;J)V", "this$0", "a", "b")

		set, err := ResolveOverloads(scopeOf(t, inner, signature.Shape{OuterInternalName: "com/example/Outer"}), Expected{
			Kind: platform.KindConstructor, Signature: sig, Parameters: ctor.ValueParameters,
		})
		require.NoError(t, err)
		assert.Equal(t, platform.KeyOf(primary), set.Primary.Key)
		assert.Equal(t, 1, set.Implicit)
		assert.Equal(t, "a", set.Parameters[0].Platform.SimpleName())
	})
}

func TestResolveOverloads_EnumWithoutImplicitPrefix(t *testing.T) {
	// Declared parameters that look like the enum name and ordinal.
	ctor := metadata.Constructor{ValueParameters: []metadata.ValueParameter{
		param(t, "a", "kotlin/String", false),
		param(t, "b", "kotlin/Int", false),
		param(t, "c", "kotlin/Long", true),
	}}
	sig, err := signature.New(nil).Constructor(ctor)
	require.NoError(t, err)

	typ := newType(t, "Pair")
	primary := addCtor(t, typ, "(Ljava/lang/String;IJ)V", "a", "b", "c")
	reduced := addCtor(t, typ, "(Ljava/lang/String;I)V", "a", "b")

	set, err := ResolveOverloads(scopeOf(t, typ, signature.Shape{Enum: true}), Expected{
		Kind: platform.KindConstructor, Signature: sig, Parameters: ctor.ValueParameters,
	})
	require.NoError(t, err)
	assert.Equal(t, platform.KeyOf(primary), set.Primary.Key)
	assert.Equal(t, 0, set.Implicit)
	require.Len(t, set.Parameters, 3)
	assert.Equal(t, "a", set.Parameters[0].Platform.SimpleName())
	assert.Equal(t, []platform.Key{platform.KeyOf(reduced)}, keysOf(set.Overloads))
}
