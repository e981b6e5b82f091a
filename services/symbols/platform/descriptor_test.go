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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMethodDescriptor(t *testing.T) {
	t.Run("round trips", func(t *testing.T) {
		for _, desc := range []string{
			"()V",
			"(I)I",
			"(ILjava/lang/String;)V",
			"([[JLjava/util/List;Z)[Ljava/lang/Object;",
			"(Ljava/lang/String;ILcom/example/Outer$Inner;)V",
		} {
			md, err := ParseMethodDescriptor(desc)
			require.NoError(t, err, desc)
			assert.Equal(t, desc, md.String())
		}
	})

	t.Run("parses parameter sorts", func(t *testing.T) {
		md, err := ParseMethodDescriptor("(I[JLjava/lang/String;)Z")
		require.NoError(t, err)
		require.Len(t, md.Params, 3)
		assert.Equal(t, SortInt, md.Params[0].Sort)
		assert.Equal(t, SortArray, md.Params[1].Sort)
		assert.Equal(t, SortLong, md.Params[1].Elem.Sort)
		assert.Equal(t, "java/lang/String", md.Params[2].ClassName)
		assert.Equal(t, SortBoolean, md.Return.Sort)
	})

	t.Run("rejects malformed input", func(t *testing.T) {
		for _, desc := range []string{
			"",
			"V",
			"(I",
			"(I)",
			"(V)V",
			"(Ljava/lang/String)V",
			"(L;)V",
			"(I)VV",
			"(Q)V",
			"([V)V",
		} {
			_, err := ParseMethodDescriptor(desc)
			assert.True(t, errors.Is(err, ErrMalformedDescriptor), "expected malformed for %q, got %v", desc, err)
		}
	})
}

func TestParseFieldDescriptor(t *testing.T) {
	d, err := ParseFieldDescriptor("[Ljava/lang/String;")
	require.NoError(t, err)
	assert.Equal(t, SortArray, d.Sort)
	assert.Equal(t, "[Ljava/lang/String;", d.String())

	_, err = ParseFieldDescriptor("V")
	assert.ErrorIs(t, err, ErrMalformedDescriptor)

	_, err = ParseFieldDescriptor("II")
	assert.ErrorIs(t, err, ErrMalformedDescriptor)
}

func TestSameType(t *testing.T) {
	str := Object("java/lang/String")
	assert.True(t, SameType(str, Object("java/lang/String")))
	assert.False(t, SameType(str, Object("java/lang/Object")))
	assert.True(t, SameType(ArrayOf(Primitive(SortInt)), ArrayOf(Primitive(SortInt))))
	assert.False(t, SameType(ArrayOf(Primitive(SortInt)), ArrayOf(Primitive(SortLong))))
	assert.False(t, SameType(Primitive(SortInt), Object("java/lang/Integer")))
}

func TestMethodDesc_Drop(t *testing.T) {
	md, err := ParseMethodDescriptor("(Ljava/lang/String;IJZ)V")
	require.NoError(t, err)

	assert.Equal(t, "(JZ)V", md.DropLeading(2).String())
	assert.Equal(t, "(Ljava/lang/String;I)V", md.DropTrailing(2).String())
	assert.Equal(t, "()V", md.DropLeading(10).String())
	assert.Equal(t, md.String(), md.DropLeading(0).String())

	// md itself is unchanged.
	assert.Len(t, md.Params, 4)
}
