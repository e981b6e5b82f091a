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
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/symbridge/services/symbols/match"
	"github.com/AleutianAI/symbridge/services/symbols/merged"
	"github.com/AleutianAI/symbridge/services/symbols/metadata"
	"github.com/AleutianAI/symbridge/services/symbols/platform"
)

// Convert returns the merged symbol for a platform node.
//
// Description:
//
//	Returns the cached symbol when one exists. Otherwise dispatches on the
//	node kind: modules, packages and types are computed under their own
//	cache entry; members, parameters and type parameters are resolved by
//	converting their container, whose assembly registers every enclosed
//	node.
//
// Inputs:
//
//	ctx - Carries tracing only; conversions are not cancellable.
//	n - The platform node.
//
// Outputs:
//
//	merged.Symbol - The symbol. Repeated calls with equivalent nodes return
//	                the same symbol.
//	error - *ConversionError wrapping the cause. Nothing is cached for a
//	        failed conversion.
//
// Thread Safety:
//
//	Safe for concurrent use.
func (e *Engine) Convert(ctx context.Context, n platform.Node) (merged.Symbol, error) {
	if n == nil {
		return nil, ErrNilNode
	}
	key := platform.KeyOf(n)
	if sym, ok := e.cache.Get(key); ok {
		cacheLookupsTotal.WithLabelValues(string(lookupHit)).Inc()
		return sym, nil
	}

	ctx, span := e.tracer.Start(ctx, "convert.Engine.Convert",
		trace.WithAttributes(
			attribute.String("engine_id", e.id),
			attribute.String("node.key", string(key)),
			attribute.String("node.kind", n.Kind().String()),
		),
	)
	defer span.End()

	sym, err := e.dispatch(ctx, n, key)
	if err != nil {
		err = conversionError(n, "", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("symbol.kind", sym.Kind().String()))
	return sym, nil
}

func (e *Engine) dispatch(ctx context.Context, n platform.Node, key platform.Key) (merged.Symbol, error) {
	switch n.Kind() {
	case platform.KindModule:
		return e.computed(key, n, func() (merged.Symbol, map[platform.Key]merged.Symbol, error) {
			return e.module(ctx, n), nil, nil
		})
	case platform.KindPackage:
		return e.computed(key, n, func() (merged.Symbol, map[platform.Key]merged.Symbol, error) {
			return e.pkg(ctx, n), nil, nil
		})
	case platform.KindType:
		return e.computed(key, n, func() (merged.Symbol, map[platform.Key]merged.Symbol, error) {
			return e.typ(ctx, n)
		})
	case platform.KindMethod, platform.KindConstructor, platform.KindField, platform.KindInitializer,
		platform.KindParameter, platform.KindTypeParameter:
		return e.child(ctx, n, key)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedNodeKind, n.Kind())
	}
}

// computed runs fn under the cache entry for key and records the outcome.
func (e *Engine) computed(key platform.Key, n platform.Node, fn computeFunc) (merged.Symbol, error) {
	sym, result, err := e.cache.compute(key, fn)
	cacheLookupsTotal.WithLabelValues(string(result)).Inc()
	if result != lookupMiss {
		if err == nil {
			e.logger.Debug("conversion cache reuse",
				slog.String("key", string(key)),
				slog.String("result", string(result)),
			)
		}
		return sym, err
	}
	if err != nil {
		recordConversion(n.Kind().String(), err)
		e.logger.Error("conversion failed",
			slog.String("key", string(key)),
			slog.String("name", platform.QualifiedName(n)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	recordConversion(sym.Kind().String(), nil)
	return sym, nil
}

// child resolves a member, parameter or type parameter through its
// enclosing node.
func (e *Engine) child(ctx context.Context, n platform.Node, key platform.Key) (merged.Symbol, error) {
	parent := n.Enclosing()
	if parent == nil {
		return nil, fmt.Errorf("%w: %s has no enclosing node", platform.ErrInvalidTree, n.Kind())
	}
	owner, err := e.Convert(ctx, parent)
	if err != nil {
		return nil, err
	}
	if sym, ok := e.cache.Get(key); ok {
		return sym, nil
	}

	switch o := owner.(type) {
	case *merged.Type:
		// Backing fields of companion properties live on the outer class
		// and are registered by the companion's assembly.
		if o.CompanionName != "" && n.Kind() == platform.KindField {
			if companion := nestedType(parent, o.CompanionName); companion != nil {
				if _, err := e.Convert(ctx, companion); err != nil {
					return nil, err
				}
				if sym, ok := e.cache.Get(key); ok {
					return sym, nil
				}
			}
		}
	case *merged.SyntheticMember, *merged.ForeignMember, *merged.ForeignType, *merged.SyntheticType:
		return e.computed(key, n, func() (merged.Symbol, map[platform.Key]merged.Symbol, error) {
			return unmatchedChild(n, owner), nil, nil
		})
	}

	return nil, &match.MemberLookupError{
		Signature: n.SimpleName() + n.Descriptor(),
		Scope:     platform.QualifiedName(parent),
	}
}

// unmatchedChild builds the symbol of a node below a symbol that has no
// metadata to match it against.
func unmatchedChild(n platform.Node, owner merged.Symbol) merged.Symbol {
	key := platform.KeyOf(n)
	enclosing := merged.Resolved(owner)
	if n.Kind() == platform.KindTypeParameter {
		index := 0
		for i, tp := range n.Enclosing().TypeParameters() {
			if tp.SimpleName() == n.SimpleName() {
				index = i
			}
		}
		return &merged.TypeParameter{
			Common: merged.NewCommon(key, n.SimpleName(), merged.KindTypeParameter, []platform.Node{n}, enclosing),
			Index:  index,
		}
	}
	if s, ok := owner.(*merged.SyntheticMember); ok {
		return &merged.SyntheticMember{
			Common: merged.NewCommon(key, n.SimpleName(), merged.KindSyntheticMember, []platform.Node{n}, enclosing),
			Reason: s.Reason,
		}
	}
	if _, ok := owner.(*merged.SyntheticType); ok {
		return &merged.SyntheticMember{
			Common: merged.NewCommon(key, n.SimpleName(), merged.KindSyntheticMember, []platform.Node{n}, enclosing),
			Reason: reasonArtifact,
		}
	}
	return &merged.ForeignMember{
		Common: merged.NewCommon(key, n.SimpleName(), merged.KindForeignMember, []platform.Node{n}, enclosing),
	}
}

func nestedType(owner platform.Node, name string) platform.Node {
	for _, c := range owner.Enclosed() {
		if c.Kind() == platform.KindType && c.SimpleName() == name {
			return c
		}
	}
	return nil
}

// =============================================================================
// Narrowing entry points
// =============================================================================

// ConvertModule converts a module node.
func (e *Engine) ConvertModule(ctx context.Context, n platform.Node) (*merged.Module, error) {
	return convertAs[*merged.Module](ctx, e, n, platform.KindModule)
}

// ConvertPackage converts a package node.
func (e *Engine) ConvertPackage(ctx context.Context, n platform.Node) (*merged.Package, error) {
	return convertAs[*merged.Package](ctx, e, n, platform.KindPackage)
}

// ConvertType converts a type node to whichever type-like variant its
// metadata calls for.
func (e *Engine) ConvertType(ctx context.Context, n platform.Node) (merged.TypeLike, error) {
	return convertAs[merged.TypeLike](ctx, e, n, platform.KindType)
}

// ConvertTypeParameter converts a type-parameter node.
func (e *Engine) ConvertTypeParameter(ctx context.Context, n platform.Node) (*merged.TypeParameter, error) {
	return convertAs[*merged.TypeParameter](ctx, e, n, platform.KindTypeParameter)
}

func convertAs[T merged.Symbol](ctx context.Context, e *Engine, n platform.Node, want platform.Kind) (T, error) {
	var zero T
	if n == nil {
		return zero, ErrNilNode
	}
	if n.Kind() != want {
		return zero, conversionError(n, "", fmt.Errorf("%w: expected %s, got %s", ErrUnsupportedNodeKind, want, n.Kind()))
	}
	sym, err := e.Convert(ctx, n)
	if err != nil {
		return zero, err
	}
	out, ok := sym.(T)
	if !ok {
		return zero, conversionError(n, "", fmt.Errorf("%w: %s converted to %s", ErrUnsupportedNodeKind, want, sym.Kind()))
	}
	return out, nil
}

// ConvertAll converts nodes in parallel, bounded by the configured worker
// count.
//
// Outputs:
//
//	[]merged.Symbol - One symbol per node, in input order.
//	error - The first conversion error; remaining work is abandoned.
func (e *Engine) ConvertAll(ctx context.Context, nodes []platform.Node) ([]merged.Symbol, error) {
	ctx, span := e.tracer.Start(ctx, "convert.Engine.ConvertAll",
		trace.WithAttributes(attribute.Int("node_count", len(nodes))))
	defer span.End()

	out := make([]merged.Symbol, len(nodes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.options.Workers)
	for i, n := range nodes {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sym, err := e.Convert(gctx, n)
			if err != nil {
				return err
			}
			out[i] = sym
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return out, nil
}

// =============================================================================
// Modules and packages
// =============================================================================

func (e *Engine) module(ctx context.Context, n platform.Node) merged.Symbol {
	lazyCtx := detached(ctx)
	mod := &merged.Module{
		Common:                merged.NewCommon(platform.KeyOf(n), n.SimpleName(), merged.KindModule, []platform.Node{n}, nil),
		HasSourceDeclarations: hasSourceDeclarations(n),
	}
	mod.Packages = merged.NewLazy(func() ([]*merged.Package, error) {
		var out []*merged.Package
		for _, c := range n.Enclosed() {
			if c.Kind() != platform.KindPackage {
				continue
			}
			p, err := e.ConvertPackage(lazyCtx, c)
			if err != nil {
				return nil, err
			}
			out = append(out, p)
		}
		return out, nil
	})
	return mod
}

func (e *Engine) pkg(ctx context.Context, n platform.Node) merged.Symbol {
	lazyCtx := detached(ctx)
	p := &merged.Package{
		Common:                merged.NewCommon(platform.KeyOf(n), n.SimpleName(), merged.KindPackage, []platform.Node{n}, e.enclosingOf(lazyCtx, n)),
		QualifiedName:         n.SimpleName(),
		HasSourceDeclarations: hasSourceDeclarations(n),
	}
	p.Types = e.typesBelow(lazyCtx, n)
	return p
}

// typesBelow lazily converts the types directly enclosed by n.
func (e *Engine) typesBelow(ctx context.Context, n platform.Node) *merged.Lazy[[]merged.TypeLike] {
	return merged.NewLazy(func() ([]merged.TypeLike, error) {
		var out []merged.TypeLike
		for _, c := range n.Enclosed() {
			if c.Kind() != platform.KindType {
				continue
			}
			t, err := e.ConvertType(ctx, c)
			if err != nil {
				return nil, err
			}
			out = append(out, t)
		}
		return out, nil
	})
}

// enclosingOf lazily converts the enclosing node of n, or returns nil for
// roots.
func (e *Engine) enclosingOf(ctx context.Context, n platform.Node) *merged.Lazy[merged.Symbol] {
	parent := n.Enclosing()
	if parent == nil {
		return nil
	}
	return merged.NewLazy(func() (merged.Symbol, error) {
		return e.Convert(ctx, parent)
	})
}

// hasSourceDeclarations reports whether any type at or below n carries
// metadata.
func hasSourceDeclarations(n platform.Node) bool {
	if n.Kind() == platform.KindType {
		if _, ok := n.Metadata(); ok {
			return true
		}
	}
	for _, c := range n.Enclosed() {
		if c.Kind() != platform.KindPackage && c.Kind() != platform.KindType {
			continue
		}
		if hasSourceDeclarations(c) {
			return true
		}
	}
	return false
}

// =============================================================================
// Types
// =============================================================================

// typ classifies a type node by its metadata and assembles it.
func (e *Engine) typ(ctx context.Context, n platform.Node) (merged.Symbol, map[platform.Key]merged.Symbol, error) {
	res, err := metadata.DecodeNode(e.options.Decoder, n)
	if err != nil {
		return nil, nil, conversionError(n, "metadata", err)
	}
	switch res.Status {
	case metadata.StatusUnsupportedVersion:
		return nil, nil, conversionError(n, "metadata", fmt.Errorf("%w: %s", metadata.ErrUnsupportedVersion, res.Version))
	case metadata.StatusAbsent:
		if reason, ok := e.syntheticByName(n); ok {
			return e.assembleSyntheticType(ctx, n, nil, reason)
		}
		return e.assembleForeignType(ctx, n)
	}

	switch res.Kind {
	case platform.BlobClass:
		return e.assembleClass(ctx, n, res.Class)
	case platform.BlobFileFacade, platform.BlobMultiFilePart:
		return e.assembleFacade(ctx, n, res)
	case platform.BlobMultiFileFacade:
		return e.assembleMultiFileFacade(ctx, n, res.Facade)
	case platform.BlobSyntheticClass:
		return e.assembleSyntheticType(ctx, n, res.Synthetic, reasonSyntheticClass)
	default:
		return nil, nil, conversionError(n, "metadata", fmt.Errorf("%w: blob kind %s", metadata.ErrInvalidMetadata, res.Kind))
	}
}
