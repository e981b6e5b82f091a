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

// PropertyExpectation carries the expected platform signatures of one
// metadata property.
type PropertyExpectation struct {
	// Property is the metadata property.
	Property metadata.Property

	// Getter is the expected getter signature.
	Getter signature.Signature

	// Setter is the expected setter signature. Only looked up for var
	// properties.
	Setter signature.Signature

	// Field is the expected backing-field signature.
	Field signature.Signature

	// AnnotationHolder is the expected annotation-holder signature. Only
	// looked up when the property has annotations.
	AnnotationHolder signature.Signature
}

// NewPropertyExpectation builds the expected signatures of p with b.
func NewPropertyExpectation(b *signature.Builder, p metadata.Property, inAnnotation bool) (PropertyExpectation, error) {
	exp := PropertyExpectation{Property: p}
	var err error
	if exp.Getter, err = b.Getter(p, inAnnotation); err != nil {
		return exp, err
	}
	if exp.Setter, err = b.Setter(p); err != nil {
		return exp, err
	}
	if exp.Field, err = b.Field(p); err != nil {
		return exp, err
	}
	if exp.AnnotationHolder, err = b.AnnotationHolder(p); err != nil {
		return exp, err
	}
	return exp, nil
}

// PropertyParts are the platform members that make up one property.
//
// At least one of Field, Getter and Setter is non-nil.
type PropertyParts struct {
	Field            *Member
	Getter           *Member
	Setter           *Member
	AnnotationHolder *Member
	DelegateField    *Member

	// FieldInOuter is set when Field was found in the outer scope.
	FieldInOuter bool

	// Constant is the compile-time value of a const property.
	Constant    any
	HasConstant bool

	exact map[*Member]bool
}

// Exact reports whether m was found by its expected signature rather than
// by name and arity alone.
func (pp *PropertyParts) Exact(m *Member) bool { return pp.exact[m] }

// Members returns the non-nil parts.
func (pp *PropertyParts) Members() []*Member {
	var out []*Member
	for _, m := range []*Member{pp.Field, pp.Getter, pp.Setter, pp.AnnotationHolder, pp.DelegateField} {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}

// AssembleProperty assembles with the default options.
func AssembleProperty(s *Scope, exp PropertyExpectation) (*PropertyParts, error) {
	return defaultMatcher.AssembleProperty(s, exp)
}

// AssembleProperty locates the platform members of one property.
//
// Description:
//
//	Resolves getter, setter, backing field, annotation holder and delegate
//	field independently. Each lookup considers members of the expected
//	name and arity, prefers the one whose signature equals the expected
//	signature, and accepts a single inexact candidate. Inexact members are
//	reported by PropertyParts.Exact. The backing field falls back to the
//	outer scope when s has one.
//
//	The resolved field, getter and setter must agree on the property type
//	and, unless the field came from the outer scope, share an enclosing
//	declaration.
//
// Outputs:
//
//	*PropertyParts - The resolved members.
//	error - *MemberLookupError when a lookup is ambiguous,
//	        ErrOrphanProperty when none of field, getter and setter exist,
//	        ErrPropertyTypeConflict when they disagree.
//
// Thread Safety:
//
//	Safe for concurrent use.
func (m *Matcher) AssembleProperty(s *Scope, exp PropertyExpectation) (*PropertyParts, error) {
	p := exp.Property
	receiver := 0
	if p.ReceiverType != nil {
		receiver = 1
	}

	parts := &PropertyParts{exact: make(map[*Member]bool)}
	var err error

	if parts.Getter, err = parts.lookup(s, platform.KindMethod, exp.Getter, receiver); err != nil {
		return nil, err
	}
	if p.Var {
		if parts.Setter, err = parts.lookup(s, platform.KindMethod, exp.Setter, receiver+1); err != nil {
			return nil, err
		}
	}
	if p.ReceiverType == nil {
		if parts.Field, err = parts.lookup(s, platform.KindField, exp.Field, -1); err != nil {
			return nil, err
		}
		if parts.Field == nil && s.outer != nil {
			if parts.Field, err = parts.lookup(s.outer, platform.KindField, exp.Field, -1); err != nil {
				return nil, err
			}
			parts.FieldInOuter = parts.Field != nil
		}
	}
	if p.HasAnnotations {
		if parts.AnnotationHolder, err = parts.lookup(s, platform.KindMethod, exp.AnnotationHolder, receiver); err != nil {
			return nil, err
		}
	}
	if p.Delegated {
		delegate := signature.Signature{Name: signature.DelegateFieldName(p.Name), Field: true}
		if parts.DelegateField, err = parts.lookup(s, platform.KindField, delegate, -1); err != nil {
			return nil, err
		}
	}

	if parts.Field == nil && parts.Getter == nil && parts.Setter == nil {
		return nil, fmt.Errorf("%w: %s in %s", ErrOrphanProperty, p.Name, s.name())
	}
	if err := checkConsistency(p.Name, parts); err != nil {
		return nil, err
	}

	if p.Const && parts.Field != nil {
		parts.Constant, parts.HasConstant = parts.Field.Node.ConstantValue()
	}
	return parts, nil
}

// lookup resolves one property member and records whether it matched
// exactly. arity < 0 matches any arity.
func (pp *PropertyParts) lookup(s *Scope, kind platform.Kind, want signature.Signature, arity int) (*Member, error) {
	var candidates, exact []*Member
	for _, c := range s.Named(want.Name, kind) {
		if arity >= 0 && len(c.Params) != arity {
			continue
		}
		candidates = append(candidates, c)
		if want.Descriptor != "" && c.Signature() == want {
			exact = append(exact, c)
		}
	}
	switch {
	case len(exact) == 1:
		pp.exact[exact[0]] = true
		return exact[0], nil
	case len(exact) > 1:
		return nil, &MemberLookupError{Signature: want.String(), Scope: s.name(), Candidates: len(exact)}
	case len(candidates) == 0:
		return nil, nil
	case len(candidates) == 1:
		return candidates[0], nil
	default:
		return nil, &MemberLookupError{Signature: want.String(), Scope: s.name(), Candidates: len(candidates)}
	}
}

func checkConsistency(name string, parts *PropertyParts) error {
	var enclosing platform.Key
	check := func(m *Member) error {
		if m == nil {
			return nil
		}
		k := platform.KeyOf(m.Node.Enclosing())
		if enclosing == "" {
			enclosing = k
			return nil
		}
		if k != enclosing {
			return fmt.Errorf("%w: %s members live in %s and %s", ErrPropertyTypeConflict, name, enclosing, k)
		}
		return nil
	}
	if !parts.FieldInOuter {
		if err := check(parts.Field); err != nil {
			return err
		}
	}
	if err := check(parts.Getter); err != nil {
		return err
	}
	if err := check(parts.Setter); err != nil {
		return err
	}

	type typed struct {
		what string
		desc platform.TypeDesc
	}
	var types []typed
	if parts.Field != nil {
		types = append(types, typed{"field", parts.Field.Field})
	}
	if parts.Getter != nil {
		types = append(types, typed{"getter return", parts.Getter.Method.Return})
	}
	if parts.Setter != nil && len(parts.Setter.Method.Params) > 0 {
		params := parts.Setter.Method.Params
		types = append(types, typed{"setter parameter", params[len(params)-1]})
	}
	for i := 1; i < len(types); i++ {
		if !platform.SameType(types[0].desc, types[i].desc) {
			return fmt.Errorf("%w: %s has %s %s but %s %s", ErrPropertyTypeConflict, name,
				types[0].what, types[0].desc, types[i].what, types[i].desc)
		}
	}
	return nil
}
