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
	"fmt"

	"github.com/AleutianAI/symbridge/services/symbols/metadata"
	"github.com/AleutianAI/symbridge/services/symbols/platform"
	"github.com/AleutianAI/symbridge/services/symbols/signature"
)

// DefaultNameExceptions lists the signatures whose parameter names may
// differ between the two trees. The compiler-generated equals method names
// its parameter "other" while platform views commonly report the name of
// the overridden declaration.
var DefaultNameExceptions = []string{"equals(Ljava/lang/Object;)Z"}

// =============================================================================
// Matcher
// =============================================================================

// Options configures a Matcher.
type Options struct {
	// NameExceptions are signatures exempt from parameter-name comparison.
	NameExceptions []string
}

// DefaultOptions returns the default options.
func DefaultOptions() Options {
	return Options{NameExceptions: append([]string(nil), DefaultNameExceptions...)}
}

// Option is a functional option for configuring a Matcher.
type Option func(*Options)

// WithNameExceptions replaces the signatures exempt from parameter-name
// comparison.
func WithNameExceptions(sigs ...string) Option {
	return func(o *Options) {
		o.NameExceptions = append([]string(nil), sigs...)
	}
}

// Matcher runs the matching algorithms with one configuration.
//
// Thread Safety: Immutable; safe for concurrent use.
type Matcher struct {
	exceptions map[string]struct{}
}

// NewMatcher creates a Matcher.
func NewMatcher(opts ...Option) *Matcher {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	m := &Matcher{exceptions: make(map[string]struct{}, len(options.NameExceptions))}
	for _, s := range options.NameExceptions {
		m.exceptions[s] = struct{}{}
	}
	return m
}

var defaultMatcher = NewMatcher()

// =============================================================================
// Parameter matching
// =============================================================================

// ParameterMatch pairs one metadata parameter with its platform parameter.
type ParameterMatch struct {
	// Name is the metadata parameter name.
	Name string

	// Required is false when the parameter declares a default value.
	Required bool

	// Meta is the metadata parameter.
	Meta metadata.ValueParameter

	// Platform is the platform parameter node.
	Platform platform.Node
}

// MatchParameters matches parameters with the default options.
func MatchParameters(sig signature.Signature, meta []metadata.ValueParameter, plat []platform.Node) ([]ParameterMatch, error) {
	return defaultMatcher.MatchParameters(sig, meta, plat)
}

// MatchParameters verifies the positional correspondence of two parameter
// lists belonging to one member.
//
// Description:
//
//	The lists must have equal length. Each pair must share its name unless
//	sig is one of the configured exceptions.
//
// Inputs:
//
//	sig - The member's signature, used for exceptions and diagnostics.
//	meta - The metadata parameters.
//	plat - The platform parameters, without receiver or implicit ones.
//
// Outputs:
//
//	[]ParameterMatch - One entry per parameter, in order.
//	error - ErrParameterMismatch on any disagreement.
func (m *Matcher) MatchParameters(sig signature.Signature, meta []metadata.ValueParameter, plat []platform.Node) ([]ParameterMatch, error) {
	if len(meta) != len(plat) {
		return nil, fmt.Errorf("%w: %s has %d metadata and %d platform parameters",
			ErrParameterMismatch, sig, len(meta), len(plat))
	}
	_, exempt := m.exceptions[sig.String()]
	out := make([]ParameterMatch, len(meta))
	for i, mp := range meta {
		pp := plat[i]
		if !exempt && mp.Name != pp.SimpleName() {
			return nil, fmt.Errorf("%w: %s parameter %d is %q in metadata and %q on the platform",
				ErrParameterMismatch, sig, i, mp.Name, pp.SimpleName())
		}
		out[i] = ParameterMatch{Name: mp.Name, Required: !mp.DeclaresDefault, Meta: mp, Platform: pp}
	}
	return out, nil
}

// =============================================================================
// Overload resolution
// =============================================================================

// Expected describes the metadata member being resolved.
type Expected struct {
	// Kind is KindMethod or KindConstructor.
	Kind platform.Kind

	// Signature is the signature built from metadata.
	Signature signature.Signature

	// Parameters are the declared value parameters.
	Parameters []metadata.ValueParameter

	// HasReceiver is set for extension members.
	HasReceiver bool

	// Suspend is set for suspend functions.
	Suspend bool

	// Exclude lists members already claimed by other metadata members. They
	// are never collected as reduced overloads.
	Exclude map[platform.Key]bool
}

// OverloadSet is the platform evidence of one function or constructor.
type OverloadSet struct {
	// Primary is the exact-signature match.
	Primary *Member

	// Implicit is the number of implicit leading parameters of Primary that
	// were stripped to match. Every reduced overload carries the same
	// number; a member whose descriptor merely looks like it starts with
	// implicit parameters is not stripped when the primary matched raw.
	Implicit int

	// Receiver is the platform receiver parameter of an extension, or nil.
	Receiver platform.Node

	// Parameters are the matched value parameters.
	Parameters []ParameterMatch

	// Overloads are the reduced-arity members generated for default
	// parameters.
	Overloads []*Member
}

// FindExact finds the single member of s matching exp's signature.
func FindExact(s *Scope, exp Expected) (*Member, error) {
	return defaultMatcher.FindExact(s, exp)
}

// FindExact finds the single member of s whose signature, or logical
// signature for constructors, equals exp.Signature.
//
// Errors:
//
//	*MemberLookupError - Zero or several members match.
func (m *Matcher) FindExact(s *Scope, exp Expected) (*Member, error) {
	want := exp.Signature.String()
	var found []*Member
	for _, c := range s.Named(exp.Signature.Name, exp.Kind) {
		if c.Signature().String() == want || c.LogicalSignature().String() == want {
			found = append(found, c)
		}
	}
	if len(found) != 1 {
		return nil, &MemberLookupError{Signature: want, Scope: s.name(), Candidates: len(found)}
	}
	return found[0], nil
}

// ResolveOverloads resolves with the default options.
func ResolveOverloads(s *Scope, exp Expected) (*OverloadSet, error) {
	return defaultMatcher.ResolveOverloads(s, exp)
}

// ResolveOverloads finds the platform members of one metadata function or
// constructor.
//
// Description:
//
//	Finds the single exact match, matches its parameters, then collects
//	reduced overloads: members of the same name and kind, with a different
//	signature and the same return type, whose parameters are a subset (by
//	name and type) of the primary's and include every required parameter.
//	When the primary matched only after stripping implicit constructor
//	parameters, overloads are compared after the same stripping.
//
// Outputs:
//
//	*OverloadSet - The primary and its reduced overloads, in scope order.
//	error - *MemberLookupError or ErrParameterMismatch.
func (m *Matcher) ResolveOverloads(s *Scope, exp Expected) (*OverloadSet, error) {
	primary, err := m.FindExact(s, exp)
	if err != nil {
		return nil, err
	}

	set := &OverloadSet{Primary: primary}
	if primary.Signature() != exp.Signature {
		set.Implicit = primary.Implicit
	}

	params := primary.Params[set.Implicit:]
	lead, trail := 0, 0
	if exp.HasReceiver {
		lead = 1
	}
	if exp.Suspend {
		trail = 1
	}
	if len(params) < lead+trail {
		return nil, fmt.Errorf("%w: %s has %d platform parameters, needs at least %d",
			ErrParameterMismatch, exp.Signature, len(params), lead+trail)
	}
	if lead == 1 {
		set.Receiver = params[0]
	}

	set.Parameters, err = m.MatchParameters(exp.Signature, exp.Parameters, params[lead:len(params)-trail])
	if err != nil {
		return nil, err
	}

	set.Overloads = collectReduced(s, exp, set, params)
	return set, nil
}

type paramKey struct {
	name string
	desc string
}

func collectReduced(s *Scope, exp Expected, set *OverloadSet, params []platform.Node) []*Member {
	available := make(map[paramKey]bool, len(params))
	for _, p := range params {
		available[paramKey{p.SimpleName(), p.Descriptor()}] = true
	}
	var required []string
	if set.Receiver != nil {
		required = append(required, set.Receiver.SimpleName())
	}
	for _, pm := range set.Parameters {
		if pm.Required {
			required = append(required, pm.Platform.SimpleName())
		}
	}

	var out []*Member
	for _, c := range s.Named(exp.Signature.Name, exp.Kind) {
		if c == set.Primary || exp.Exclude[c.Key] || c.Signature() == set.Primary.Signature() {
			continue
		}
		if set.Implicit > 0 && c.Implicit != set.Implicit {
			continue
		}
		if !platform.SameType(c.Method.Return, set.Primary.Method.Return) {
			continue
		}
		cParams := c.Params[set.Implicit:]
		if len(cParams) >= len(params) {
			continue
		}
		if isReducedOverload(cParams, available, required) {
			out = append(out, c)
		}
	}
	return out
}

func isReducedOverload(params []platform.Node, available map[paramKey]bool, required []string) bool {
	names := make(map[string]bool, len(params))
	for _, p := range params {
		if !available[paramKey{p.SimpleName(), p.Descriptor()}] {
			return false
		}
		names[p.SimpleName()] = true
	}
	for _, r := range required {
		if !names[r] {
			return false
		}
	}
	return true
}
