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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTree(t *testing.T) (mod, pkg, outer, inner, method *Element) {
	t.Helper()

	mod = NewModule("app")
	pkg, err := mod.AddPackage("com.example")
	require.NoError(t, err)
	outer, err = pkg.AddType("Outer", ModPublic|ModFinal)
	require.NoError(t, err)
	inner, err = outer.AddType("Inner", ModPublic)
	require.NoError(t, err)
	method, err = inner.AddMethod("greet", "(Ljava/lang/String;I)V", ModPublic, "name", "times")
	require.NoError(t, err)
	return mod, pkg, outer, inner, method
}

func TestElement_Navigation(t *testing.T) {
	mod, pkg, outer, inner, method := buildTree(t)

	assert.Nil(t, mod.Enclosing())
	assert.Equal(t, Node(pkg), outer.Enclosing())
	assert.Equal(t, []Node{outer}, pkg.Enclosed())
	assert.Equal(t, "Lcom/example/Outer$Inner;", inner.Descriptor())
	assert.Equal(t, "com/example/Outer$Inner", InternalName(inner))

	params := method.Parameters()
	require.Len(t, params, 2)
	assert.Equal(t, "name", params[0].SimpleName())
	assert.Equal(t, "Ljava/lang/String;", params[0].Descriptor())
	assert.Equal(t, "I", params[1].Descriptor())
	assert.Equal(t, Node(method), params[1].Enclosing())
}

func TestElement_BuilderRejectsBadShapes(t *testing.T) {
	mod, pkg, outer, _, method := buildTree(t)

	_, err := mod.AddType("Nope", 0)
	assert.ErrorIs(t, err, ErrInvalidTree)

	_, err = pkg.AddMethod("f", "()V", 0)
	assert.ErrorIs(t, err, ErrInvalidTree)

	_, err = outer.AddMethod("f", "(I)V", 0, "a", "b")
	assert.ErrorIs(t, err, ErrInvalidTree)

	_, err = outer.AddMethod("f", "(I", 0)
	assert.ErrorIs(t, err, ErrMalformedDescriptor)

	assert.ErrorIs(t, method.SetConstant(1), ErrInvalidTree)
	assert.ErrorIs(t, pkg.SetMetadata(Blob{}), ErrInvalidTree)
}

func TestKeyOf(t *testing.T) {
	t.Run("equivalent nodes share a key", func(t *testing.T) {
		_, _, _, _, m1 := buildTree(t)
		_, _, _, _, m2 := buildTree(t)
		assert.NotSame(t, m1, m2)
		assert.Equal(t, KeyOf(m1), KeyOf(m2))
		assert.Equal(t, KeyOf(m1.Parameters()[1]), KeyOf(m2.Parameters()[1]))
	})

	t.Run("overloads differ", func(t *testing.T) {
		_, _, outer, _, _ := buildTree(t)
		a, err := outer.AddMethod("f", "(I)V", 0)
		require.NoError(t, err)
		b, err := outer.AddMethod("f", "(J)V", 0)
		require.NoError(t, err)
		assert.NotEqual(t, KeyOf(a), KeyOf(b))
	})

	t.Run("field and method with one name differ", func(t *testing.T) {
		_, _, outer, _, _ := buildTree(t)
		f, err := outer.AddField("x", "I", ModPrivate)
		require.NoError(t, err)
		m, err := outer.AddMethod("x", "()I", ModPublic)
		require.NoError(t, err)
		assert.NotEqual(t, KeyOf(f), KeyOf(m))
	})

	t.Run("segments", func(t *testing.T) {
		_, _, _, _, method := buildTree(t)
		assert.Equal(t,
			Key("module:app/package:com.example/type:Outer/type:Inner/method:greet(Ljava/lang/String;I)V/parameter:#1:times"),
			KeyOf(method.Parameters()[1]))
	})
}

func TestQualifiedName(t *testing.T) {
	_, _, _, inner, method := buildTree(t)
	assert.Equal(t, "com.example.Outer.Inner", QualifiedName(inner))
	assert.Equal(t, "com.example.Outer.Inner.greet#name", QualifiedName(method.Parameters()[0]))
	assert.Equal(t, "", QualifiedName(nil))
}
