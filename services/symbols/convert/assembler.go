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
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/AleutianAI/symbridge/services/symbols/match"
	"github.com/AleutianAI/symbridge/services/symbols/merged"
	"github.com/AleutianAI/symbridge/services/symbols/metadata"
	"github.com/AleutianAI/symbridge/services/symbols/platform"
	"github.com/AleutianAI/symbridge/services/symbols/signature"
)

// Reasons recorded on synthetic symbols.
const (
	reasonArtifact          = "compiler_artifact"
	reasonUnaccounted       = "unaccounted"
	reasonFacadeDelegate    = "facade_delegate"
	reasonSyntheticClass    = "synthetic_class"
	reasonNamingConvention  = "naming_convention"
	reasonImplicitParameter = "implicit_parameter"
	reasonContinuation      = "continuation"
)

const defaultConstructorMarker = "kotlin/jvm/internal/DefaultConstructorMarker"

// assembler builds the member symbols of one container. It is used by a
// single goroutine for the duration of one cache computation.
type assembler struct {
	e         *Engine
	node      platform.Node
	key       platform.Key
	scope     *match.Scope
	builder   *signature.Builder
	self      *merged.Lazy[merged.Symbol]
	ownerKind merged.Kind

	inAnnotation bool

	// members maps every accounted platform node to its symbol.
	members map[platform.Key]merged.Symbol

	// skip are scope members another container accounts for.
	skip map[platform.Key]bool
}

func (e *Engine) newAssembler(n platform.Node, scope *match.Scope, b *signature.Builder, self merged.Symbol) *assembler {
	return &assembler{
		e:         e,
		node:      n,
		key:       platform.KeyOf(n),
		scope:     scope,
		builder:   b,
		self:      merged.Resolved(self),
		ownerKind: self.Kind(),
		members:   make(map[platform.Key]merged.Symbol),
		skip:      make(map[platform.Key]bool),
	}
}

// register records sym for n. The first registration wins.
func (a *assembler) register(n platform.Node, sym merged.Symbol) {
	k := platform.KeyOf(n)
	if _, dup := a.members[k]; dup {
		return
	}
	a.members[k] = sym
}

func (a *assembler) fail(step string, err error) error {
	return conversionError(a.node, step, err)
}

// derivedKey names a symbol that has no platform node of its own.
func derivedKey(container platform.Key, kind, name string) platform.Key {
	return platform.Key(string(container) + "/" + kind + ":" + name)
}

// =============================================================================
// Functions and constructors
// =============================================================================

type callable struct {
	exp  match.Expected
	fn   *metadata.Function
	ctor *metadata.Constructor
}

func (c callable) step() string {
	if c.ctor != nil {
		return "constructor " + c.exp.Signature.String()
	}
	return "function " + c.fn.Name
}

// callables resolves constructors and functions together.
//
// Description:
//
//	Every exact match is found first so that no declaration claims another
//	declaration's primary member as a reduced overload. Constructors come
//	out primary first.
func (a *assembler) callables(ctors []metadata.Constructor, fns []metadata.Function) ([]*merged.Constructor, []*merged.Function, error) {
	ordered := make([]metadata.Constructor, 0, len(ctors))
	for _, c := range ctors {
		if c.IsPrimary() {
			ordered = append(ordered, c)
		}
	}
	for _, c := range ctors {
		if !c.IsPrimary() {
			ordered = append(ordered, c)
		}
	}

	calls := make([]callable, 0, len(ordered)+len(fns))
	for i := range ordered {
		c := &ordered[i]
		sig, err := a.builder.Constructor(*c)
		if err != nil {
			return nil, nil, a.fail("constructor", err)
		}
		calls = append(calls, callable{
			exp:  match.Expected{Kind: platform.KindConstructor, Signature: sig, Parameters: c.ValueParameters},
			ctor: c,
		})
	}
	for i := range fns {
		f := &fns[i]
		sig, err := a.builder.Function(*f)
		if err != nil {
			return nil, nil, a.fail("function "+f.Name, err)
		}
		calls = append(calls, callable{
			exp: match.Expected{
				Kind:        platform.KindMethod,
				Signature:   sig,
				Parameters:  f.ValueParameters,
				HasReceiver: f.ReceiverType != nil,
				Suspend:     f.Suspend,
			},
			fn: f,
		})
	}

	matcher := a.e.options.Matcher
	primaries := make(map[platform.Key]bool, len(calls))
	for _, c := range calls {
		m, err := matcher.FindExact(a.scope, c.exp)
		if err != nil {
			return nil, nil, a.fail(c.step(), err)
		}
		if primaries[m.Key] {
			return nil, nil, a.fail(c.step(), fmt.Errorf("%w: %s is matched by two declarations",
				match.ErrAmbiguousOrMissingMember, m.Signature()))
		}
		primaries[m.Key] = true
	}

	var outCtors []*merged.Constructor
	var outFns []*merged.Function
	for _, c := range calls {
		c.exp.Exclude = primaries
		set, err := matcher.ResolveOverloads(a.scope, c.exp)
		if err != nil {
			return nil, nil, a.fail(c.step(), err)
		}
		if c.ctor != nil {
			outCtors = append(outCtors, a.constructor(*c.ctor, set))
		} else {
			outFns = append(outFns, a.function(*c.fn, set))
		}
	}
	return outCtors, outFns, nil
}

// overloadNodes returns the primary node followed by the reduced overloads.
func overloadNodes(set *match.OverloadSet) []platform.Node {
	nodes := []platform.Node{set.Primary.Node}
	for _, o := range set.Overloads {
		nodes = append(nodes, o.Node)
	}
	return nodes
}

func (a *assembler) function(f metadata.Function, set *match.OverloadSet) *merged.Function {
	fn := &merged.Function{
		Common:     merged.NewCommon(set.Primary.Key, f.Name, merged.KindFunction, overloadNodes(set), a.self),
		Visibility: f.Visibility,
		Modality:   f.Modality,
		Inline:     f.Inline,
		Infix:      f.Infix,
		Tailrec:    f.Tailrec,
		Suspend:    f.Suspend,
		Operator:   f.Operator,
		External:   f.External,
		Expect:     f.Expect,
		Signature:  set.Primary.Signature(),
		ReturnType: f.ReturnType,
		Overloads:  overloadNodes(set)[1:],
	}
	fn.TypeParameters = a.typeParameters(f.TypeParameters, set.Primary.Node.TypeParameters(), fn)
	fn.Receiver, fn.Parameters = a.parameters(set, f.ReceiverType, f.Suspend, fn)
	for _, o := range set.Overloads {
		a.register(o.Node, fn)
	}
	a.register(set.Primary.Node, fn)
	return fn
}

func (a *assembler) constructor(c metadata.Constructor, set *match.OverloadSet) *merged.Constructor {
	ctor := &merged.Constructor{
		Common:     merged.NewCommon(set.Primary.Key, signature.ConstructorName, merged.KindConstructor, overloadNodes(set), a.self),
		Visibility: c.Visibility,
		Primary:    c.IsPrimary(),
		Signature:  set.Primary.Signature(),
		Implicit:   set.Implicit,
		Overloads:  overloadNodes(set)[1:],
	}
	_, ctor.Parameters = a.parameters(set, nil, false, ctor)
	for _, o := range set.Overloads {
		a.register(o.Node, ctor)
	}
	a.register(set.Primary.Node, ctor)
	return ctor
}

// parameters builds the parameter symbols of an overload set and registers
// the platform parameters of the primary and of every reduced overload.
func (a *assembler) parameters(set *match.OverloadSet, receiverType *metadata.TypeRef, suspend bool, owner merged.Symbol) (*merged.Parameter, []*merged.Parameter) {
	self := merged.Resolved(owner)
	byName := make(map[string]*merged.Parameter)

	var receiver *merged.Parameter
	if set.Receiver != nil && receiverType != nil {
		receiver = &merged.Parameter{
			Common:   merged.NewCommon(platform.KeyOf(set.Receiver), set.Receiver.SimpleName(), merged.KindParameter, []platform.Node{set.Receiver}, self),
			Index:    -1,
			Receiver: true,
			Required: true,
			Type:     *receiverType,
		}
		byName[set.Receiver.SimpleName()] = receiver
	}

	params := make([]*merged.Parameter, len(set.Parameters))
	for i, pm := range set.Parameters {
		p := &merged.Parameter{
			Common:            merged.NewCommon(platform.KeyOf(pm.Platform), pm.Name, merged.KindParameter, []platform.Node{pm.Platform}, self),
			Index:             i,
			Required:          pm.Required,
			Type:              pm.Meta.Type,
			VarargElementType: pm.Meta.VarargElementType,
			Crossinline:       pm.Meta.Crossinline,
			Noinline:          pm.Meta.Noinline,
		}
		params[i] = p
		byName[pm.Platform.SimpleName()] = p
	}

	a.bindParameters(set.Primary, set.Implicit, byName, suspend, self)
	for _, o := range set.Overloads {
		a.bindParameters(o, set.Implicit, byName, suspend, self)
	}
	return receiver, params
}

// bindParameters registers each platform parameter of m with the logical
// parameter of the same name. The first implicit parameters, as decided by
// overload resolution, and the suspend continuation become synthetic.
func (a *assembler) bindParameters(m *match.Member, implicit int, byName map[string]*merged.Parameter, suspend bool, self *merged.Lazy[merged.Symbol]) {
	for i, pn := range m.Params {
		if i >= implicit {
			if p, ok := byName[pn.SimpleName()]; ok {
				a.register(pn, p)
				continue
			}
		}
		reason := reasonUnaccounted
		switch {
		case i < implicit:
			reason = reasonImplicitParameter
		case suspend && i == len(m.Params)-1:
			reason = reasonContinuation
		}
		a.register(pn, a.synthetic(pn, reason, self))
	}
}

// =============================================================================
// Type parameters
// =============================================================================

// typeParameters pairs metadata type parameters with platform ones by name.
// Type parameters without a platform node keep a derived key.
func (a *assembler) typeParameters(meta []metadata.TypeParameter, plat []platform.Node, owner merged.Symbol) []*merged.TypeParameter {
	if len(meta) == 0 {
		return nil
	}
	self := merged.Resolved(owner)
	out := make([]*merged.TypeParameter, len(meta))
	for i, tp := range meta {
		key := derivedKey(owner.Key(), "type_parameter", tp.Name)
		var nodes []platform.Node
		for _, pn := range plat {
			if pn.SimpleName() == tp.Name {
				key = platform.KeyOf(pn)
				nodes = []platform.Node{pn}
				break
			}
		}
		sym := &merged.TypeParameter{
			Common:      merged.NewCommon(key, tp.Name, merged.KindTypeParameter, nodes, self),
			Index:       i,
			Variance:    tp.Variance,
			Reified:     tp.Reified,
			UpperBounds: tp.UpperBounds,
		}
		if len(nodes) == 1 {
			a.register(nodes[0], sym)
		}
		out[i] = sym
	}
	return out
}

// =============================================================================
// Properties and type aliases
// =============================================================================

func (a *assembler) properties(props []metadata.Property) ([]*merged.Property, error) {
	out := make([]*merged.Property, 0, len(props))
	for _, p := range props {
		prop, err := a.property(p)
		if err != nil {
			return nil, a.fail("property "+p.Name, err)
		}
		out = append(out, prop)
	}
	return out, nil
}

func (a *assembler) property(p metadata.Property) (*merged.Property, error) {
	exp, err := match.NewPropertyExpectation(a.builder, p, a.inAnnotation)
	if err != nil {
		return nil, err
	}
	parts, err := a.e.options.Matcher.AssembleProperty(a.scope, exp)
	if err != nil {
		return nil, err
	}

	var nodes []platform.Node
	for _, m := range parts.Members() {
		nodes = append(nodes, m.Node)
	}
	prop := &merged.Property{
		Common:       merged.NewCommon(derivedKey(a.key, "property", p.Name), p.Name, merged.KindProperty, nodes, a.self),
		Visibility:   p.Visibility,
		Modality:     p.Modality,
		Var:          p.Var,
		Const:        p.Const,
		Delegated:    p.Delegated,
		Lateinit:     p.Lateinit,
		Expect:       p.Expect,
		External:     p.External,
		ReceiverType: p.ReceiverType,
		ReturnType:   p.ReturnType,
		FieldInOuter: parts.FieldInOuter,
		Constant:     parts.Constant,
		HasConstant:  parts.HasConstant,
	}
	self := merged.Resolved[merged.Symbol](prop)

	var accessorTypeParams []platform.Node
	if parts.Getter != nil {
		prop.Getter = a.accessor(merged.KindGetter, parts.Getter, parts.Exact(parts.Getter), p, p.Getter, prop, self)
		accessorTypeParams = parts.Getter.Node.TypeParameters()
	}
	if parts.Setter != nil {
		prop.Setter = a.accessor(merged.KindSetter, parts.Setter, parts.Exact(parts.Setter), p, p.Setter, prop, self)
		if accessorTypeParams == nil {
			accessorTypeParams = parts.Setter.Node.TypeParameters()
		}
	}
	prop.TypeParameters = a.typeParameters(p.TypeParameters, accessorTypeParams, prop)

	for _, m := range []*match.Member{parts.Field, parts.AnnotationHolder, parts.DelegateField} {
		if m != nil {
			a.register(m.Node, prop)
		}
	}
	if parts.Field != nil {
		prop.Field = parts.Field.Node
	}
	if parts.AnnotationHolder != nil {
		prop.AnnotationHolder = parts.AnnotationHolder.Node
	}
	if parts.DelegateField != nil {
		prop.DelegateField = parts.DelegateField.Node
	}
	return prop, nil
}

func (a *assembler) accessor(kind merged.Kind, m *match.Member, verified bool, p metadata.Property, acc metadata.Accessor, prop *merged.Property, propSelf *merged.Lazy[merged.Symbol]) *merged.Accessor {
	ac := &merged.Accessor{
		Common:     merged.NewCommon(m.Key, m.Name, kind, []platform.Node{m.Node}, propSelf),
		Visibility: acc.Visibility,
		Modality:   acc.Modality,
		NotDefault: acc.NotDefault,
		External:   acc.External,
		Inline:     acc.Inline,
		Property:   prop,
		Signature:  m.Signature(),
		Verified:   verified,
	}
	self := merged.Resolved[merged.Symbol](ac)
	offset := 0
	if p.ReceiverType != nil {
		offset = 1
	}
	for i, pn := range m.Params {
		param := &merged.Parameter{
			Common:   merged.NewCommon(platform.KeyOf(pn), pn.SimpleName(), merged.KindParameter, []platform.Node{pn}, self),
			Index:    i - offset,
			Required: true,
			Type:     p.ReturnType,
		}
		if i < offset {
			param.Receiver = true
			param.Type = *p.ReceiverType
		}
		ac.Parameters = append(ac.Parameters, param)
		a.register(pn, param)
	}
	a.register(m.Node, ac)
	return ac
}

// typeAliases builds the alias symbols. holderName maps an alias name to
// the name of its annotation-holder method.
func (a *assembler) typeAliases(aliases []metadata.TypeAlias, holderName func(string) string) []*merged.TypeAlias {
	out := make([]*merged.TypeAlias, 0, len(aliases))
	for _, ta := range aliases {
		var holder platform.Node
		if ta.HasAnnotations {
			if ms := a.scope.Named(holderName(ta.Name), platform.KindMethod); len(ms) > 0 {
				holder = ms[0].Node
			}
		}
		var nodes []platform.Node
		if holder != nil {
			nodes = []platform.Node{holder}
		}
		alias := &merged.TypeAlias{
			Common:     merged.NewCommon(derivedKey(a.key, "type_alias", ta.Name), ta.Name, merged.KindTypeAlias, nodes, a.self),
			Visibility: ta.Visibility,
			Underlying: ta.Underlying,
		}
		alias.TypeParameters = a.typeParameters(ta.TypeParameters, nil, alias)
		if holder != nil {
			a.register(holder, alias)
		}
		out = append(out, alias)
	}
	return out
}

// =============================================================================
// Enum constants
// =============================================================================

func (a *assembler) enumConstants(entries []string) ([]*merged.EnumConstant, error) {
	out := make([]*merged.EnumConstant, 0, len(entries))
	for _, name := range entries {
		fields := a.scope.Named(name, platform.KindField)
		if len(fields) != 1 {
			return nil, a.fail("enum entry "+name, &match.MemberLookupError{
				Signature:  name,
				Scope:      platform.QualifiedName(a.node),
				Candidates: len(fields),
			})
		}
		ec := &merged.EnumConstant{
			Common: merged.NewCommon(fields[0].Key, name, merged.KindEnumConstant, []platform.Node{fields[0].Node}, a.self),
		}
		a.register(fields[0].Node, ec)
		out = append(out, ec)
	}
	return out, nil
}

// =============================================================================
// Synthetic members
// =============================================================================

// synthetic creates and registers a SyntheticMember for n.
func (a *assembler) synthetic(n platform.Node, reason string, enclosing *merged.Lazy[merged.Symbol]) *merged.SyntheticMember {
	sm := &merged.SyntheticMember{
		Common: merged.NewCommon(platform.KeyOf(n), n.SimpleName(), merged.KindSyntheticMember, []platform.Node{n}, enclosing),
		Reason: reason,
	}
	syntheticMembersTotal.WithLabelValues(reason).Inc()
	if reason == reasonUnaccounted {
		a.e.logger.Warn("platform member has no metadata counterpart",
			slog.String("member", platform.QualifiedName(n)),
			slog.String("descriptor", n.Descriptor()),
		)
	} else {
		a.e.logger.Debug("synthetic member",
			slog.String("member", platform.QualifiedName(n)),
			slog.String("reason", reason),
		)
	}
	a.register(n, sm)
	return sm
}

// unaccounted turns every scope member nothing claimed into a
// SyntheticMember.
func (a *assembler) unaccounted() []*merged.SyntheticMember {
	var out []*merged.SyntheticMember
	for _, m := range a.scope.Members() {
		if _, ok := a.members[m.Key]; ok || a.skip[m.Key] {
			continue
		}
		out = append(out, a.synthetic(m.Node, a.e.classifyMember(a.ownerKind, m), a.self))
	}
	return out
}

// classifyMember decides whether an unclaimed member is a known compiler
// artifact.
func (e *Engine) classifyMember(owner merged.Kind, m *match.Member) string {
	switch {
	case m.Kind == platform.KindInitializer:
		return reasonArtifact
	case m.Node.Modifiers().Has(platform.ModSynthetic):
		return reasonArtifact
	case m.Kind == platform.KindConstructor && (owner == merged.KindObject || owner == merged.KindCompanion):
		return reasonArtifact
	case m.Kind == platform.KindConstructor && len(m.Method.Params) > 0 &&
		platform.SameType(m.Method.Params[len(m.Method.Params)-1], platform.Object(defaultConstructorMarker)):
		return reasonArtifact
	}
	for _, pattern := range e.options.ArtifactPatterns {
		if ok, _ := path.Match(pattern, m.Name); ok {
			return reasonArtifact
		}
	}
	return reasonUnaccounted
}

// syntheticByName reports whether a metadata-less type follows a
// compiler naming convention.
func (e *Engine) syntheticByName(n platform.Node) (string, bool) {
	internal := platform.InternalName(n)
	for _, suffix := range e.options.SyntheticTypeSuffixes {
		if strings.HasSuffix(internal, suffix) {
			return reasonNamingConvention, true
		}
	}
	return "", false
}
