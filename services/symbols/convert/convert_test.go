// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.
package convert

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/AleutianAI/symbridge/services/symbols/fixture"
	"github.com/AleutianAI/symbridge/services/symbols/match"
	"github.com/AleutianAI/symbridge/services/symbols/merged"
	"github.com/AleutianAI/symbridge/services/symbols/metadata"
	"github.com/AleutianAI/symbridge/services/symbols/platform"
)

// =============================================================================
// Helpers
// =============================================================================

func loadSample(t *testing.T) platform.Node {
	t.Helper()
	mod, err := fixture.Load(filepath.Join("..", "fixture", "testdata", "sample.yaml"))
	require.NoError(t, err)
	return mod
}

func parseFixture(t *testing.T, doc string) platform.Node {
	t.Helper()
	mod, err := fixture.Parse([]byte(doc))
	require.NoError(t, err)
	return mod
}

func newTestEngine(opts ...Option) *Engine {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewEngine(append([]Option{WithLogger(logger)}, opts...)...)
}

// find walks down packages and types by simple name. Members that share a
// type's name, such as a companion's static field, are skipped.
func find(t *testing.T, root platform.Node, names ...string) platform.Node {
	t.Helper()
	cur := root
	for _, name := range names {
		var next platform.Node
		for _, c := range cur.Enclosed() {
			if c.SimpleName() == name && isContainer(c.Kind()) {
				next = c
				break
			}
		}
		require.NotNil(t, next, "no %q under %s", name, cur.SimpleName())
		cur = next
	}
	return cur
}

func isContainer(k platform.Kind) bool {
	return k == platform.KindPackage || k == platform.KindType
}

// member finds an executable or field of typ by name and descriptor.
func member(t *testing.T, typ platform.Node, name, desc string) platform.Node {
	t.Helper()
	for _, c := range typ.Enclosed() {
		if c.SimpleName() == name && c.Descriptor() == desc {
			return c
		}
	}
	require.FailNow(t, "member not found", "%s%s in %s", name, desc, typ.SimpleName())
	return nil
}

func param(t *testing.T, exec platform.Node, name string) platform.Node {
	t.Helper()
	for _, p := range exec.Parameters() {
		if p.SimpleName() == name {
			return p
		}
	}
	require.FailNow(t, "parameter not found", "%s of %s", name, exec.SimpleName())
	return nil
}

// allNodes lists n and everything below it, parameters and type parameters
// included, in a stable order.
func allNodes(n platform.Node) []platform.Node {
	out := []platform.Node{n}
	out = append(out, n.TypeParameters()...)
	out = append(out, n.Parameters()...)
	for _, c := range n.Enclosed() {
		out = append(out, allNodes(c)...)
	}
	return out
}

func mustConvert[T merged.Symbol](t *testing.T, e *Engine, n platform.Node) T {
	t.Helper()
	sym, err := e.Convert(context.Background(), n)
	require.NoError(t, err)
	out, ok := sym.(T)
	require.True(t, ok, "got %T (%s)", sym, sym.Kind())
	return out
}

// =============================================================================
// Identity and caching
// =============================================================================

func TestConvert_Idempotent(t *testing.T) {
	mod := loadSample(t)
	e := newTestEngine()
	ctx := context.Background()
	config := find(t, mod, "com.example", "Config")

	first, err := e.Convert(ctx, config)
	require.NoError(t, err)
	second, err := e.Convert(ctx, config)
	require.NoError(t, err)
	assert.Same(t, first, second)

	// An equivalent node from a separately built tree has the same key.
	other := find(t, loadSample(t), "com.example", "Config")
	third, err := e.Convert(ctx, member(t, other, "getHost", "()Ljava/lang/String;"))
	require.NoError(t, err)
	fourth, err := e.Convert(ctx, member(t, config, "getHost", "()Ljava/lang/String;"))
	require.NoError(t, err)
	assert.Same(t, third, fourth)
}

func TestConvert_CacheHitsAreCounted(t *testing.T) {
	mod := loadSample(t)
	e := newTestEngine()
	ctx := context.Background()
	color := find(t, mod, "com.example", "Color")

	_, err := e.Convert(ctx, color)
	require.NoError(t, err)
	before := testutil.ToFloat64(cacheLookupsTotal.WithLabelValues(string(lookupHit)))
	_, err = e.Convert(ctx, color)
	require.NoError(t, err)
	after := testutil.ToFloat64(cacheLookupsTotal.WithLabelValues(string(lookupHit)))
	assert.GreaterOrEqual(t, after-before, 1.0)
}

func TestConvert_EveryNodeIsAccountedFor(t *testing.T) {
	mod := loadSample(t)
	e := newTestEngine()
	ctx := context.Background()

	for _, n := range allNodes(mod) {
		sym, err := e.Convert(ctx, n)
		require.NoError(t, err, "converting %s %s", n.Kind(), platform.QualifiedName(n))
		require.NotNil(t, sym)
		again, err := e.Convert(ctx, n)
		require.NoError(t, err)
		assert.Same(t, sym, again, platform.QualifiedName(n))
	}
}

func TestConvertAll_MatchesSequentialConversion(t *testing.T) {
	nodes := allNodes(loadSample(t))
	ctx := context.Background()

	parallel, err := newTestEngine(WithWorkers(8)).ConvertAll(ctx, nodes)
	require.NoError(t, err)
	require.Len(t, parallel, len(nodes))

	seq := newTestEngine()
	for i, n := range nodes {
		want, err := seq.Convert(ctx, n)
		require.NoError(t, err)
		got := parallel[i]
		assert.Equal(t, want.Key(), got.Key(), platform.QualifiedName(n))
		assert.Equal(t, want.Kind(), got.Kind(), platform.QualifiedName(n))
		assert.Equal(t, want.Name(), got.Name(), platform.QualifiedName(n))
	}
}

func TestConvert_ConcurrentCallersShareSymbols(t *testing.T) {
	mod := loadSample(t)
	e := newTestEngine(WithWorkers(16))
	outer := find(t, mod, "com.example", "Outer")

	// The same node many times over, plus members that force the companion.
	var nodes []platform.Node
	for i := 0; i < 32; i++ {
		nodes = append(nodes, outer, member(t, outer, "MAX", "I"), find(t, outer, "Companion"))
	}
	syms, err := e.ConvertAll(context.Background(), nodes)
	require.NoError(t, err)
	for i := 3; i < len(syms); i++ {
		assert.Same(t, syms[i%3], syms[i])
	}
}

func TestConvertPackage_ConcurrentTypesAreDeterministic(t *testing.T) {
	mod := loadSample(t)
	e := newTestEngine()
	pkgNode := find(t, mod, "com.example")

	const callers = 8
	pkgs := make([]*merged.Package, callers)
	keys := make([][]platform.Key, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pkg, err := e.ConvertPackage(context.Background(), pkgNode)
			if err != nil {
				errs[i] = err
				return
			}
			types, err := pkg.Types.Get()
			if err != nil {
				errs[i] = err
				return
			}
			pkgs[i] = pkg
			for _, typ := range types {
				keys[i] = append(keys[i], typ.Key())
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, pkgs[0], pkgs[i])
		assert.Equal(t, keys[0], keys[i])
	}
	assert.Len(t, keys[0], 10)

	// A fresh engine classifies the package the same way.
	again, err := newTestEngine().ConvertPackage(context.Background(), pkgNode)
	require.NoError(t, err)
	types, err := again.Types.Get()
	require.NoError(t, err)
	var fresh []platform.Key
	for _, typ := range types {
		fresh = append(fresh, typ.Key())
	}
	assert.Equal(t, keys[0], fresh)
}

// =============================================================================
// Classes
// =============================================================================

func TestConvert_DefaultArgumentOverloads(t *testing.T) {
	mod := loadSample(t)
	e := newTestEngine()
	config := find(t, mod, "com.example", "Config")

	full := member(t, config, "<init>", "(Ljava/lang/String;IZ)V")
	two := member(t, config, "<init>", "(Ljava/lang/String;I)V")
	one := member(t, config, "<init>", "(Ljava/lang/String;)V")

	ctor := mustConvert[*merged.Constructor](t, e, full)
	assert.True(t, ctor.Primary)
	assert.False(t, ctor.OneToOne())
	assert.ElementsMatch(t, []platform.Key{platform.KeyOf(two), platform.KeyOf(one)}, keysOfNodes(ctor.Overloads))
	assert.Same(t, ctor, mustConvert[*merged.Constructor](t, e, two))
	assert.Same(t, ctor, mustConvert[*merged.Constructor](t, e, one))

	require.Len(t, ctor.Parameters, 3)
	assert.True(t, ctor.Parameters[0].Required)
	assert.False(t, ctor.Parameters[1].Required)
	assert.False(t, ctor.Parameters[2].Required)

	// Parameters of a reduced overload resolve to the logical parameter.
	host := mustConvert[*merged.Parameter](t, e, param(t, one, "host"))
	assert.Same(t, ctor.Parameters[0], host)
	port := mustConvert[*merged.Parameter](t, e, param(t, two, "port"))
	assert.Same(t, ctor.Parameters[1], port)

	marker := member(t, config, "<init>", "(Ljava/lang/String;IZILkotlin/jvm/internal/DefaultConstructorMarker;)V")
	sm := mustConvert[*merged.SyntheticMember](t, e, marker)
	assert.Equal(t, reasonArtifact, sm.Reason)

	connect := mustConvert[*merged.Function](t, e, member(t, config, "connect", "(J)Z"))
	assert.Same(t, connect, mustConvert[*merged.Function](t, e, member(t, config, "connect", "()Z")))
	require.Len(t, connect.Overloads, 1)
	assert.Equal(t, "connect$default", mustConvert[*merged.SyntheticMember](t, e,
		member(t, config, "connect$default", "(Lcom/example/Config;JILjava/lang/Object;)Z")).Name())
}

func keysOfNodes(nodes []platform.Node) []platform.Key {
	out := make([]platform.Key, len(nodes))
	for i, n := range nodes {
		out[i] = platform.KeyOf(n)
	}
	return out
}

func TestConvert_Properties(t *testing.T) {
	mod := loadSample(t)
	e := newTestEngine()
	config := find(t, mod, "com.example", "Config")

	getter := mustConvert[*merged.Accessor](t, e, member(t, config, "getPort", "()I"))
	assert.Equal(t, merged.KindGetter, getter.Kind())
	prop := getter.Property
	require.NotNil(t, prop)
	assert.Equal(t, "port", prop.Name())
	assert.True(t, prop.Var)

	enclosing, err := getter.Enclosing()
	require.NoError(t, err)
	assert.Same(t, prop, enclosing)

	setter := mustConvert[*merged.Accessor](t, e, member(t, config, "setPort", "(I)V"))
	assert.Same(t, prop.Setter, setter)
	value := mustConvert[*merged.Parameter](t, e, param(t, member(t, config, "setPort", "(I)V"), "<set-?>"))
	assert.Same(t, setter.Parameters[0], value)

	field := mustConvert[*merged.Property](t, e, member(t, config, "port", "I"))
	assert.Same(t, prop, field)
	assert.Len(t, prop.Platform(), 3)

	url := mustConvert[*merged.Accessor](t, e, member(t, config, "getUrl", "()Ljava/lang/String;")).Property
	assert.Nil(t, url.Field)
	assert.Nil(t, url.Setter)

	typ, err := prop.Enclosing()
	require.NoError(t, err)
	assert.Equal(t, merged.KindClass, typ.Kind())
	assert.Len(t, typ.(*merged.Type).Properties, 3)
	assert.True(t, getter.OneToOne())
	assert.True(t, setter.OneToOne())
}

const mistypedGetterFixture = `
module: m
packages:
  - name: p
    types:
      - name: Sized
        metadata:
          kind: class
          class:
            properties:
              - {name: size, returns: kotlin/Int, has_getter: true}
        methods:
          - {name: getSize, descriptor: "()Ljava/lang/String;"}
`

func TestConvert_UnverifiedGetterIsNotOneToOne(t *testing.T) {
	mod := parseFixture(t, mistypedGetterFixture)
	e := newTestEngine()
	sized := find(t, mod, "p", "Sized")

	getter := mustConvert[*merged.Accessor](t, e, member(t, sized, "getSize", "()Ljava/lang/String;"))
	assert.False(t, getter.Verified)
	assert.False(t, getter.OneToOne())
	assert.Equal(t, "size", getter.Property.Name())
}

func TestConvert_EnumConstructorsAndEntries(t *testing.T) {
	mod := loadSample(t)
	e := newTestEngine()
	color := find(t, mod, "com.example", "Color")

	typ := mustConvert[*merged.Type](t, e, color)
	assert.Equal(t, merged.KindEnum, typ.Kind())
	require.Len(t, typ.EnumConstants, 2)
	assert.Equal(t, "RED", typ.EnumConstants[0].Name())

	ctorNode := member(t, color, "<init>", "(Ljava/lang/String;II)V")
	ctor := mustConvert[*merged.Constructor](t, e, ctorNode)
	assert.Equal(t, 2, ctor.Implicit)
	require.Len(t, ctor.Parameters, 1)
	assert.Equal(t, "rgb", ctor.Parameters[0].Name())
	assert.Same(t, typ.PrimaryConstructor(), ctor)

	name := mustConvert[*merged.SyntheticMember](t, e, param(t, ctorNode, "$enum$name"))
	assert.Equal(t, reasonImplicitParameter, name.Reason)

	red := mustConvert[*merged.EnumConstant](t, e, member(t, color, "RED", "Lcom/example/Color;"))
	assert.Same(t, typ.EnumConstants[0], red)

	for _, n := range []platform.Node{
		member(t, color, "values", "()[Lcom/example/Color;"),
		member(t, color, "<clinit>", "()V"),
	} {
		sm := mustConvert[*merged.SyntheticMember](t, e, n)
		assert.Equal(t, reasonArtifact, sm.Reason, n.SimpleName())
	}
}

const enumPairFixture = `
module: m
packages:
  - name: p
    types:
      - name: Pair
        modifiers: [public, final, enum]
        metadata:
          kind: class
          class:
            kind: enum_class
            constructors:
              - parameters:
                  - {name: a, type: kotlin/String}
                  - {name: b, type: kotlin/Int}
                  - {name: c, type: kotlin/Long, declares_default: true}
        constructors:
          - {descriptor: "(Ljava/lang/String;IJ)V", params: [a, b, c], modifiers: [private]}
          - {descriptor: "(Ljava/lang/String;I)V", params: [a, b], modifiers: [private]}
`

func TestConvert_EnumConstructorWithoutImplicitPrefix(t *testing.T) {
	mod := parseFixture(t, enumPairFixture)
	e := newTestEngine()
	pair := find(t, mod, "p", "Pair")

	full := member(t, pair, "<init>", "(Ljava/lang/String;IJ)V")
	reduced := member(t, pair, "<init>", "(Ljava/lang/String;I)V")

	ctor := mustConvert[*merged.Constructor](t, e, full)
	assert.Equal(t, 0, ctor.Implicit)
	require.Len(t, ctor.Parameters, 3)
	assert.Same(t, ctor, mustConvert[*merged.Constructor](t, e, reduced))

	for i, name := range []string{"a", "b", "c"} {
		p := mustConvert[*merged.Parameter](t, e, param(t, full, name))
		assert.Same(t, ctor.Parameters[i], p, name)
	}
	for i, name := range []string{"a", "b"} {
		p := mustConvert[*merged.Parameter](t, e, param(t, reduced, name))
		assert.Same(t, ctor.Parameters[i], p, name)
	}
}

func TestConvert_InnerClass(t *testing.T) {
	mod := loadSample(t)
	e := newTestEngine()
	inner := find(t, mod, "com.example", "Outer", "Inner")

	ctorNode := member(t, inner, "<init>", "(Lcom/example/Outer;Ljava/lang/Object;)V")
	ctor := mustConvert[*merged.Constructor](t, e, ctorNode)
	assert.Equal(t, 1, ctor.Implicit)
	require.Len(t, ctor.Parameters, 1)
	assert.Equal(t, "value", ctor.Parameters[0].Name())

	outerRef := mustConvert[*merged.SyntheticMember](t, e, param(t, ctorNode, "this$0"))
	assert.Equal(t, reasonImplicitParameter, outerRef.Reason)

	typ := mustConvert[*merged.Type](t, e, inner)
	assert.True(t, typ.Inner)
	parent, err := typ.Enclosing()
	require.NoError(t, err)
	assert.Equal(t, "Outer", parent.Name())

	nested, err := parent.(*merged.Type).Nested()
	require.NoError(t, err)
	require.Len(t, nested, 2)
	assert.Same(t, typ, nested[0])
	assert.Equal(t, merged.KindCompanion, nested[1].Kind())
}

func TestConvert_CompanionFieldsOnOuterClass(t *testing.T) {
	mod := loadSample(t)
	e := newTestEngine()
	outer := find(t, mod, "com.example", "Outer")

	limit := mustConvert[*merged.Property](t, e, member(t, outer, "MAX", "I"))
	assert.True(t, limit.Const)
	assert.True(t, limit.FieldInOuter)
	assert.True(t, limit.HasConstant)
	assert.Equal(t, 10, limit.Constant)

	owner, err := limit.Enclosing()
	require.NoError(t, err)
	assert.Equal(t, merged.KindCompanion, owner.Kind())

	label := mustConvert[*merged.Property](t, e, member(t, outer, "label", "Ljava/lang/String;"))
	require.NotNil(t, label.Getter)
	require.NotNil(t, label.Setter)
	assert.True(t, label.FieldInOuter)

	instance := mustConvert[*merged.SyntheticMember](t, e, member(t, outer, "Companion", "Lcom/example/Outer$Companion;"))
	assert.Equal(t, reasonArtifact, instance.Reason)

	outerType := mustConvert[*merged.Type](t, e, outer)
	assert.Empty(t, outerType.Properties)
	assert.Len(t, outerType.Synthetic, 1)
}

func TestConvert_AnnotationClass(t *testing.T) {
	mod := loadSample(t)
	e := newTestEngine()
	marker := find(t, mod, "com.example", "Marker")

	typ := mustConvert[*merged.Type](t, e, marker)
	assert.Equal(t, merged.KindAnnotation, typ.Kind())
	assert.Empty(t, typ.Constructors)

	value := mustConvert[*merged.Accessor](t, e, member(t, marker, "value", "()Ljava/lang/String;"))
	assert.Equal(t, "value", value.Property.Name())
}

// =============================================================================
// Facades and types without source declarations
// =============================================================================

func TestConvert_FileFacade(t *testing.T) {
	mod := loadSample(t)
	e := newTestEngine()
	utils := find(t, mod, "com.example", "UtilsKt")

	facade := mustConvert[*merged.Facade](t, e, utils)
	assert.False(t, facade.MultiFilePart)
	assert.Len(t, facade.Functions, 3)
	assert.Len(t, facade.Properties, 3)
	require.Len(t, facade.TypeAliases, 1)

	shoutNode := member(t, utils, "shout", "(Ljava/lang/String;)Ljava/lang/String;")
	shout := mustConvert[*merged.Function](t, e, shoutNode)
	require.NotNil(t, shout.Receiver)
	assert.True(t, shout.Receiver.Receiver)
	assert.Equal(t, -1, shout.Receiver.Index)
	assert.Same(t, shout.Receiver, mustConvert[*merged.Parameter](t, e, param(t, shoutNode, "$this$shout")))

	fetchNode := member(t, utils, "fetch", "(JLkotlin/coroutines/Continuation;)Ljava/lang/Object;")
	fetch := mustConvert[*merged.Function](t, e, fetchNode)
	assert.True(t, fetch.Suspend)
	require.Len(t, fetch.Parameters, 1)
	completion := mustConvert[*merged.SyntheticMember](t, e, param(t, fetchNode, "$completion"))
	assert.Equal(t, reasonContinuation, completion.Reason)

	firstNode := member(t, utils, "firstOrNull", "(Ljava/util/List;)Ljava/lang/Object;")
	tp, err := e.ConvertTypeParameter(context.Background(), firstNode.TypeParameters()[0])
	require.NoError(t, err)
	assert.Equal(t, "T", tp.Name())
	assert.True(t, tp.OneToOne())
	first := mustConvert[*merged.Function](t, e, firstNode)
	assert.Same(t, first.TypeParameters[0], tp)

	version := mustConvert[*merged.Property](t, e, member(t, utils, "VERSION", "Ljava/lang/String;"))
	assert.True(t, version.HasConstant)
	assert.Equal(t, "1.0", version.Constant)
	assert.False(t, version.FieldInOuter)

	greeting := mustConvert[*merged.Property](t, e, member(t, utils, "greeting$delegate", "Lkotlin/Lazy;"))
	assert.True(t, greeting.Delegated)
	assert.NotNil(t, greeting.DelegateField)

	alias := mustConvert[*merged.TypeAlias](t, e, member(t, utils, "Names$annotations", "()V"))
	assert.Same(t, facade.TypeAliases[0], alias)

	props := mustConvert[*merged.SyntheticMember](t, e, member(t, utils, "$$delegatedProperties", "[Lkotlin/reflect/KProperty;"))
	assert.Equal(t, reasonArtifact, props.Reason)
}

func TestConvert_MultiFileFacade(t *testing.T) {
	mod := loadSample(t)
	e := newTestEngine()
	pkg := find(t, mod, "com.example")

	facadeNode := find(t, pkg, "StringsKt")
	facade := mustConvert[*merged.MultiFileFacade](t, e, facadeNode)
	assert.Equal(t, []string{"com/example/StringsKt__CaseKt"}, facade.Parts)
	require.Len(t, facade.Delegates, 1)
	assert.Equal(t, reasonFacadeDelegate, facade.Delegates[0].Reason)

	part := mustConvert[*merged.Facade](t, e, find(t, pkg, "StringsKt__CaseKt"))
	assert.True(t, part.MultiFilePart)
	assert.Equal(t, "com/example/StringsKt", part.FacadeName)
	require.Len(t, part.Functions, 1)
	assert.Equal(t, "upper", part.Functions[0].Name())
}

func TestConvert_SyntheticAndForeignTypes(t *testing.T) {
	mod := loadSample(t)
	e := newTestEngine()
	pkg := find(t, mod, "com.example")

	impls := find(t, pkg, "Greeter", "DefaultImpls")
	st := mustConvert[*merged.SyntheticType](t, e, impls)
	assert.Equal(t, reasonNamingConvention, st.Reason)
	assert.False(t, st.HasMetadata())
	greet := member(t, impls, "greet", "(Lcom/example/Greeter;Ljava/lang/String;)Ljava/lang/String;")
	assert.Equal(t, reasonArtifact, mustConvert[*merged.SyntheticMember](t, e, greet).Reason)
	assert.Equal(t, reasonArtifact, mustConvert[*merged.SyntheticMember](t, e, param(t, greet, "$this")).Reason)

	lambda := mustConvert[*merged.SyntheticType](t, e, find(t, pkg, "MainKt$main$1"))
	assert.Equal(t, reasonSyntheticClass, lambda.Reason)
	assert.True(t, lambda.HasMetadata())
	assert.NotNil(t, lambda.Lambda)

	helperNode := find(t, pkg, "JavaHelper")
	helper := mustConvert[*merged.ForeignType](t, e, helperNode)
	assert.Len(t, helper.ForeignMembers, 2)
	help := member(t, helperNode, "help", "(Ljava/lang/String;)V")
	assert.Same(t, helper.ForeignMembers[1], mustConvert[*merged.ForeignMember](t, e, help))
	topic := mustConvert[*merged.ForeignMember](t, e, param(t, help, "topic"))
	assert.Equal(t, "topic", topic.Name())

	tp, err := e.ConvertTypeParameter(context.Background(), helperNode.TypeParameters()[0])
	require.NoError(t, err)
	assert.Equal(t, "E", tp.Name())
	enclosing, err := tp.Enclosing()
	require.NoError(t, err)
	assert.Same(t, helper, enclosing)
}

// =============================================================================
// Modules and packages
// =============================================================================

func TestConvertModule(t *testing.T) {
	mod := loadSample(t)
	e := newTestEngine()
	ctx := context.Background()

	m, err := e.ConvertModule(ctx, mod)
	require.NoError(t, err)
	assert.True(t, m.HasSourceDeclarations)

	pkgs, err := m.Packages.Get()
	require.NoError(t, err)
	require.Len(t, pkgs, 2)
	assert.Equal(t, "com.example", pkgs[0].QualifiedName)
	assert.True(t, pkgs[0].HasSourceDeclarations)
	assert.Equal(t, "com.example.legacy", pkgs[1].QualifiedName)
	assert.False(t, pkgs[1].HasSourceDeclarations)

	types, err := pkgs[0].Types.Get()
	require.NoError(t, err)
	assert.Len(t, types, 10)

	direct, err := e.ConvertPackage(ctx, find(t, mod, "com.example"))
	require.NoError(t, err)
	assert.Same(t, pkgs[0], direct)

	var visited int
	require.NoError(t, merged.Walk(m, func(merged.Symbol) error {
		visited++
		return nil
	}))
	assert.Greater(t, visited, 50)
}

// =============================================================================
// Failures
// =============================================================================

const brokenFixture = `
module: m
packages:
  - name: p
    types:
      - name: Broken
        metadata:
          kind: class
          class:
            properties:
              - {name: value, var: true, returns: kotlin/Int, has_getter: true, has_setter: true}
        methods:
          - {name: getValue, descriptor: "()I"}
          - {name: setValue, descriptor: "(Ljava/lang/String;)V", params: [v]}
      - name: Missing
        metadata:
          kind: class
          class:
            functions:
              - {name: run, returns: kotlin/Unit}
      - name: Old
        metadata:
          kind: class
          version: "1.1.0"
`

func TestConvert_FailuresAreNotCached(t *testing.T) {
	mod := parseFixture(t, brokenFixture)
	e := newTestEngine()
	ctx := context.Background()
	broken := find(t, mod, "p", "Broken")

	_, err := e.Convert(ctx, broken)
	require.Error(t, err)
	assert.ErrorIs(t, err, match.ErrPropertyTypeConflict)

	var ce *ConversionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, platform.KeyOf(broken), ce.Key)
	assert.Equal(t, "property value", ce.Step)

	_, ok := e.Cache().Get(platform.KeyOf(broken))
	assert.False(t, ok)
	_, ok = e.Cache().Get(platform.KeyOf(member(t, broken, "getValue", "()I")))
	assert.False(t, ok)

	// Members fail the same way, and retrying recomputes.
	_, err = e.Convert(ctx, member(t, broken, "getValue", "()I"))
	assert.ErrorIs(t, err, match.ErrPropertyTypeConflict)
	_, err = e.Convert(ctx, broken)
	assert.ErrorIs(t, err, match.ErrPropertyTypeConflict)
}

func TestConvert_MissingMember(t *testing.T) {
	mod := parseFixture(t, brokenFixture)
	e := newTestEngine()

	_, err := e.Convert(context.Background(), find(t, mod, "p", "Missing"))
	require.Error(t, err)
	assert.ErrorIs(t, err, match.ErrAmbiguousOrMissingMember)

	var le *match.MemberLookupError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "run()V", le.Signature)
	assert.Equal(t, 0, le.Candidates)
}

func TestConvert_UnsupportedMetadataVersion(t *testing.T) {
	mod := parseFixture(t, brokenFixture)
	e := newTestEngine()

	_, err := e.Convert(context.Background(), find(t, mod, "p", "Old"))
	assert.ErrorIs(t, err, metadata.ErrUnsupportedVersion)

	// A decoder that accepts older blobs converts the same node.
	lenient := newTestEngine(WithDecoder(metadata.NewBlobDecoder(metadata.WithMinVersion("v1.0.0"))))
	sym, err := lenient.Convert(context.Background(), find(t, mod, "p", "Old"))
	require.NoError(t, err)
	assert.Equal(t, merged.KindClass, sym.Kind())
}

func TestConvert_NarrowingAndUnsupportedKinds(t *testing.T) {
	mod := loadSample(t)
	e := newTestEngine()
	ctx := context.Background()

	_, err := e.Convert(ctx, nil)
	assert.ErrorIs(t, err, ErrNilNode)

	_, err = e.Convert(ctx, platform.NewElement(platform.KindOther, "weird", ""))
	assert.ErrorIs(t, err, ErrUnsupportedNodeKind)

	_, err = e.ConvertModule(ctx, find(t, mod, "com.example"))
	assert.ErrorIs(t, err, ErrUnsupportedNodeKind)

	_, err = e.ConvertType(ctx, nil)
	assert.ErrorIs(t, err, ErrNilNode)

	tl, err := e.ConvertType(ctx, find(t, mod, "com.example", "UtilsKt"))
	require.NoError(t, err)
	assert.Equal(t, merged.KindFacade, tl.Kind())
}

// =============================================================================
// Tracing
// =============================================================================

func TestConvert_RecordsSpans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	e := newTestEngine(WithTracerProvider(tp))
	ctx := context.Background()

	_, err := e.Convert(ctx, find(t, loadSample(t), "com.example", "Config"))
	require.NoError(t, err)
	_, err = e.Convert(ctx, find(t, parseFixture(t, brokenFixture), "p", "Broken"))
	require.Error(t, err)

	names := make(map[string]int)
	var failed int
	for _, s := range rec.Ended() {
		names[s.Name()]++
		if s.Status().Code == codes.Error {
			failed++
		}
	}
	assert.Equal(t, 2, names["convert.Engine.Convert"])
	assert.Equal(t, 2, names["convert.Engine.assembleClass"])
	assert.Equal(t, 1, failed)
}

func TestConvert_ErrorsUnwrapThroughConversionError(t *testing.T) {
	inner := errors.New("cause")
	n := platform.NewModule("m")
	err := conversionError(n, "step", inner)
	assert.ErrorIs(t, err, inner)
	assert.Same(t, err, conversionError(n, "other", err))
	assert.Contains(t, err.Error(), "(step)")
}
