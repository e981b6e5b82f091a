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
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/symbridge/services/symbols/match"
	"github.com/AleutianAI/symbridge/services/symbols/merged"
	"github.com/AleutianAI/symbridge/services/symbols/metadata"
	"github.com/AleutianAI/symbridge/services/symbols/platform"
	"github.com/AleutianAI/symbridge/services/symbols/signature"
)

type assembled = map[platform.Key]merged.Symbol

var classKinds = map[metadata.ClassKind]merged.Kind{
	metadata.ClassKindClass:           merged.KindClass,
	metadata.ClassKindInterface:       merged.KindInterface,
	metadata.ClassKindEnumClass:       merged.KindEnum,
	metadata.ClassKindEnumEntry:       merged.KindClass,
	metadata.ClassKindAnnotationClass: merged.KindAnnotation,
	metadata.ClassKindObject:          merged.KindObject,
	metadata.ClassKindCompanionObject: merged.KindCompanion,
}

// sourceName returns the simple name of a metadata class name such as
// "com/example/Outer.Inner".
func sourceName(className string, n platform.Node) string {
	if className == "" {
		return n.SimpleName()
	}
	if i := strings.LastIndexAny(className, "/."); i >= 0 {
		return className[i+1:]
	}
	return className
}

// =============================================================================
// Classes
// =============================================================================

// assembleClass builds a Type from a class blob.
//
// Description:
//
//	Indexes the platform members once, then resolves constructors and
//	functions as overload sets, assembles properties, type aliases and enum
//	entries, and classifies whatever remains as synthetic. Nested types
//	and the enclosing declaration are resolved lazily through the engine.
//
// Outputs:
//
//	merged.Symbol - The *merged.Type.
//	assembled - Every platform node the type accounts for.
//	error - *ConversionError; the caller caches nothing on failure.
func (e *Engine) assembleClass(ctx context.Context, n platform.Node, class *metadata.Class) (merged.Symbol, assembled, error) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "convert.Engine.assembleClass",
		trace.WithAttributes(attribute.String("class", class.Name)))
	defer span.End()

	kind, ok := classKinds[class.Kind]
	if !ok {
		kind = merged.KindClass
	}

	shape := signature.Shape{Enum: class.Kind == metadata.ClassKindEnumClass}
	if class.Inner {
		if outer := platform.EnclosingType(n); outer != nil {
			shape.OuterInternalName = platform.InternalName(outer)
		}
	}
	scope, err := match.NewScope(n, shape)
	if err != nil {
		return nil, nil, conversionError(n, "scope", err)
	}
	if kind == merged.KindCompanion {
		if outer := platform.EnclosingType(n); outer != nil {
			outerScope, err := match.NewScope(outer, signature.Shape{})
			if err != nil {
				return nil, nil, conversionError(n, "outer scope", err)
			}
			scope = scope.WithOuter(outerScope)
		}
	}

	lazyCtx := detached(ctx)
	t := &merged.Type{
		Common:        merged.NewCommon(platform.KeyOf(n), sourceName(class.Name, n), kind, []platform.Node{n}, e.enclosingOf(lazyCtx, n)),
		Visibility:    class.Visibility,
		Modality:      class.Modality,
		Inner:         class.Inner,
		Data:          class.Data,
		Value:         class.Value,
		External:      class.External,
		Expect:        class.Expect,
		Fun:           class.Fun,
		CompanionName: class.CompanionObject,
	}
	for _, st := range class.Supertypes {
		t.Supertypes = append(t.Supertypes, st.String())
	}

	a := e.newAssembler(n, scope, signature.New(e.typeContext(n, class)), t)
	a.inAnnotation = kind == merged.KindAnnotation
	a.skipCompanionFields(class.CompanionObject)

	t.TypeParameters = a.typeParameters(class.TypeParameters, n.TypeParameters(), t)

	ctors := class.Constructors
	if a.inAnnotation {
		ctors = nil
	}
	if t.Constructors, t.Functions, err = a.callables(ctors, class.Functions); err != nil {
		span.RecordError(err)
		return nil, nil, err
	}
	if t.Properties, err = a.properties(class.Properties); err != nil {
		span.RecordError(err)
		return nil, nil, err
	}
	t.TypeAliases = a.typeAliases(class.TypeAliases, signature.TypeAliasHolderName)
	if t.EnumConstants, err = a.enumConstants(class.EnumEntries); err != nil {
		span.RecordError(err)
		return nil, nil, err
	}
	t.Synthetic = a.unaccounted()
	t.NestedTypes = e.typesBelow(lazyCtx, n)

	recordAssembly("class", time.Since(start))
	span.SetAttributes(
		attribute.Int("constructors", len(t.Constructors)),
		attribute.Int("functions", len(t.Functions)),
		attribute.Int("properties", len(t.Properties)),
		attribute.Int("synthetic", len(t.Synthetic)),
	)
	e.logger.Debug("assembled class",
		slog.String("class", class.Name),
		slog.String("kind", kind.String()),
		slog.Int("constructors", len(t.Constructors)),
		slog.Int("functions", len(t.Functions)),
		slog.Int("properties", len(t.Properties)),
		slog.Int("synthetic", len(t.Synthetic)),
	)
	return t, a.members, nil
}

// typeContext returns the signature context of a class. Inner classes see
// the type parameters of their enclosing classes.
func (e *Engine) typeContext(n platform.Node, class *metadata.Class) *signature.Context {
	var parent *signature.Context
	if class.Inner {
		if outer := platform.EnclosingType(n); outer != nil {
			res, err := metadata.DecodeNode(e.options.Decoder, outer)
			if err == nil && res.Status == metadata.StatusDecoded && res.Class != nil {
				parent = e.typeContext(outer, res.Class)
			}
		}
	}
	return parent.With(class.TypeParameters)
}

// skipCompanionFields marks the outer-class fields that back companion
// properties. The companion's own assembly accounts for them.
func (a *assembler) skipCompanionFields(companionName string) {
	if companionName == "" {
		return
	}
	companion := nestedType(a.node, companionName)
	if companion == nil {
		return
	}
	res, err := metadata.DecodeNode(a.e.options.Decoder, companion)
	if err != nil || res.Class == nil {
		return
	}
	for _, p := range res.Class.Properties {
		if p.ReceiverType != nil {
			continue
		}
		for _, m := range a.scope.Named(p.Name, platform.KindField) {
			a.skip[m.Key] = true
		}
	}
}

// =============================================================================
// Facades
// =============================================================================

// assembleFacade builds a Facade from a file-facade or multi-file-part blob.
func (e *Engine) assembleFacade(ctx context.Context, n platform.Node, res metadata.Result) (merged.Symbol, assembled, error) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "convert.Engine.assembleFacade",
		trace.WithAttributes(attribute.String("facade", platform.InternalName(n))))
	defer span.End()

	scope, err := match.NewScope(n, signature.Shape{})
	if err != nil {
		return nil, nil, conversionError(n, "scope", err)
	}
	lazyCtx := detached(ctx)
	f := &merged.Facade{
		Common:        merged.NewCommon(platform.KeyOf(n), n.SimpleName(), merged.KindFacade, []platform.Node{n}, e.enclosingOf(lazyCtx, n)),
		MultiFilePart: res.Kind == platform.BlobMultiFilePart,
		FacadeName:    res.FacadeName,
	}
	a := e.newAssembler(n, scope, signature.New(nil), f)

	if _, f.Functions, err = a.callables(nil, res.Package.Functions); err != nil {
		span.RecordError(err)
		return nil, nil, err
	}
	if f.Properties, err = a.properties(res.Package.Properties); err != nil {
		span.RecordError(err)
		return nil, nil, err
	}
	f.TypeAliases = a.typeAliases(res.Package.TypeAliases, signature.TypeAliasHolderName)
	f.Synthetic = a.unaccounted()
	f.NestedTypes = e.typesBelow(lazyCtx, n)

	recordAssembly("facade", time.Since(start))
	e.logger.Debug("assembled facade",
		slog.String("facade", platform.InternalName(n)),
		slog.Bool("multi_file_part", f.MultiFilePart),
		slog.Int("functions", len(f.Functions)),
		slog.Int("properties", len(f.Properties)),
	)
	return f, a.members, nil
}

// assembleMultiFileFacade builds a MultiFileFacade. Every member of the
// facade forwards to a part and becomes a synthetic delegate.
func (e *Engine) assembleMultiFileFacade(ctx context.Context, n platform.Node, facade *metadata.MultiFileFacade) (merged.Symbol, assembled, error) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "convert.Engine.assembleMultiFileFacade")
	defer span.End()

	lazyCtx := detached(ctx)
	m := &merged.MultiFileFacade{
		Common: merged.NewCommon(platform.KeyOf(n), n.SimpleName(), merged.KindMultiFileFacade, []platform.Node{n}, e.enclosingOf(lazyCtx, n)),
		Parts:  append([]string(nil), facade.Parts...),
	}
	a := e.newAssembler(n, nil, nil, m)
	for _, c := range n.Enclosed() {
		if c.Kind().IsMember() {
			m.Delegates = append(m.Delegates, a.synthetic(c, reasonFacadeDelegate, a.self))
		}
	}
	m.NestedTypes = e.typesBelow(lazyCtx, n)

	recordAssembly("multi_file_facade", time.Since(start))
	return m, a.members, nil
}

// =============================================================================
// Types without source declarations
// =============================================================================

// assembleSyntheticType builds a SyntheticType. synth is nil when the type
// was classified by naming convention.
func (e *Engine) assembleSyntheticType(ctx context.Context, n platform.Node, synth *metadata.SyntheticClass, reason string) (merged.Symbol, assembled, error) {
	start := time.Now()
	lazyCtx := detached(ctx)
	s := &merged.SyntheticType{
		Common:       merged.NewCommon(platform.KeyOf(n), n.SimpleName(), merged.KindSyntheticType, []platform.Node{n}, e.enclosingOf(lazyCtx, n)),
		Reason:       reason,
		FromMetadata: synth != nil,
	}
	if synth != nil {
		s.Lambda = synth.Lambda
	}
	a := e.newAssembler(n, nil, nil, s)
	for _, c := range n.Enclosed() {
		if c.Kind().IsMember() {
			s.Synthetic = append(s.Synthetic, a.synthetic(c, reasonArtifact, a.self))
		}
	}
	s.NestedTypes = e.typesBelow(lazyCtx, n)

	recordAssembly("synthetic_type", time.Since(start))
	return s, a.members, nil
}

// assembleForeignType builds a ForeignType for a type without metadata.
func (e *Engine) assembleForeignType(ctx context.Context, n platform.Node) (merged.Symbol, assembled, error) {
	start := time.Now()
	lazyCtx := detached(ctx)
	f := &merged.ForeignType{
		Common: merged.NewCommon(platform.KeyOf(n), n.SimpleName(), merged.KindForeignType, []platform.Node{n}, e.enclosingOf(lazyCtx, n)),
	}
	self := merged.Resolved[merged.Symbol](f)
	members := make(assembled)
	for _, c := range n.Enclosed() {
		if !c.Kind().IsMember() {
			continue
		}
		fm := &merged.ForeignMember{
			Common: merged.NewCommon(platform.KeyOf(c), c.SimpleName(), merged.KindForeignMember, []platform.Node{c}, self),
		}
		f.ForeignMembers = append(f.ForeignMembers, fm)
		members[fm.Key()] = fm
	}
	f.NestedTypes = e.typesBelow(lazyCtx, n)

	recordAssembly("foreign_type", time.Since(start))
	e.logger.Debug("foreign type", slog.String("type", platform.InternalName(n)), slog.Int("members", len(f.ForeignMembers)))
	return f, members, nil
}
