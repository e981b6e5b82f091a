// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package merged

import (
	"errors"
)

// SkipChildren may be returned by a WalkFunc to skip the symbols below the
// current one.
var SkipChildren = errors.New("skip children")

// WalkFunc is called for each symbol visited by Walk.
type WalkFunc func(sym Symbol) error

// Children returns the symbols directly below sym in the graph, resolving
// lazy cells as needed.
//
// Order: type parameters, receiver, parameters, then members and nested
// types for containers; getter then setter for properties.
func Children(sym Symbol) ([]Symbol, error) {
	var out []Symbol
	switch s := sym.(type) {
	case *Module:
		pkgs, err := s.Packages.Get()
		if err != nil {
			return nil, err
		}
		for _, p := range pkgs {
			out = append(out, p)
		}
	case *Package:
		types, err := s.Types.Get()
		if err != nil {
			return nil, err
		}
		for _, t := range types {
			out = append(out, t)
		}
	case *Function:
		out = appendTypeParameters(out, s.TypeParameters)
		if s.Receiver != nil {
			out = append(out, s.Receiver)
		}
		out = appendParameters(out, s.Parameters)
	case *Constructor:
		out = appendParameters(out, s.Parameters)
	case *Property:
		out = appendTypeParameters(out, s.TypeParameters)
		if s.Getter != nil {
			out = append(out, s.Getter)
		}
		if s.Setter != nil {
			out = append(out, s.Setter)
		}
	case *Accessor:
		out = appendParameters(out, s.Parameters)
	case *TypeAlias:
		out = appendTypeParameters(out, s.TypeParameters)
	case TypeLike:
		if t, ok := s.(*Type); ok {
			out = appendTypeParameters(out, t.TypeParameters)
		}
		out = append(out, s.Members()...)
		nested, err := s.Nested()
		if err != nil {
			return nil, err
		}
		for _, n := range nested {
			out = append(out, n)
		}
	}
	return out, nil
}

func appendParameters(out []Symbol, params []*Parameter) []Symbol {
	for _, p := range params {
		out = append(out, p)
	}
	return out
}

func appendTypeParameters(out []Symbol, params []*TypeParameter) []Symbol {
	for _, p := range params {
		out = append(out, p)
	}
	return out
}

// Walk visits root and every symbol below it, depth first in Children
// order. Each symbol is visited once even if reachable twice.
//
// Errors:
//
//	Returns the first error from fn (other than SkipChildren) or from
//	resolving a lazy cell.
func Walk(root Symbol, fn WalkFunc) error {
	seen := make(map[Symbol]bool)
	var visit func(Symbol) error
	visit = func(sym Symbol) error {
		if seen[sym] {
			return nil
		}
		seen[sym] = true
		if err := fn(sym); err != nil {
			if errors.Is(err, SkipChildren) {
				return nil
			}
			return err
		}
		children, err := Children(sym)
		if err != nil {
			return err
		}
		for _, c := range children {
			if err := visit(c); err != nil {
				return err
			}
		}
		return nil
	}
	return visit(root)
}
