// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package metadata

import "fmt"

// =============================================================================
// String table resolution
// =============================================================================

// resolver fills in class names from a blob's string table.
type resolver struct {
	strings []string
}

func (r resolver) lookup(i int) (string, error) {
	if i < 0 || i >= len(r.strings) {
		return "", fmt.Errorf("%w: string index %d outside table of %d", ErrInvalidMetadata, i, len(r.strings))
	}
	return r.strings[i], nil
}

func (r resolver) ref(t *TypeRef) error {
	if t.inline {
		return fmt.Errorf("%w: inline type name %q in blob", ErrInvalidMetadata, t.ClassName)
	}
	if t.Param == nil && !t.Star {
		name, err := r.lookup(t.ClassIndex)
		if err != nil {
			return err
		}
		t.ClassName = name
	}
	for i := range t.Arguments {
		if err := r.ref(&t.Arguments[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r resolver) optRef(t *TypeRef) error {
	if t == nil {
		return nil
	}
	return r.ref(t)
}

func (r resolver) typeParams(tps []TypeParameter) error {
	for i := range tps {
		for j := range tps[i].UpperBounds {
			if err := r.ref(&tps[i].UpperBounds[j]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r resolver) valueParams(vps []ValueParameter) error {
	for i := range vps {
		if err := r.ref(&vps[i].Type); err != nil {
			return err
		}
		if err := r.optRef(vps[i].VarargElementType); err != nil {
			return err
		}
	}
	return nil
}

func (r resolver) function(f *Function) error {
	if err := r.typeParams(f.TypeParameters); err != nil {
		return err
	}
	if err := r.optRef(f.ReceiverType); err != nil {
		return err
	}
	if err := r.valueParams(f.ValueParameters); err != nil {
		return err
	}
	return r.ref(&f.ReturnType)
}

func (r resolver) property(p *Property) error {
	if err := r.typeParams(p.TypeParameters); err != nil {
		return err
	}
	if err := r.optRef(p.ReceiverType); err != nil {
		return err
	}
	return r.ref(&p.ReturnType)
}

func (r resolver) alias(a *TypeAlias) error {
	if err := r.typeParams(a.TypeParameters); err != nil {
		return err
	}
	return r.ref(&a.Underlying)
}

func (r resolver) pkg(p *Package) error {
	for i := range p.Functions {
		if err := r.function(&p.Functions[i]); err != nil {
			return err
		}
	}
	for i := range p.Properties {
		if err := r.property(&p.Properties[i]); err != nil {
			return err
		}
	}
	for i := range p.TypeAliases {
		if err := r.alias(&p.TypeAliases[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r resolver) class(c *Class) error {
	name, err := r.lookup(c.NameIndex)
	if err != nil {
		return err
	}
	c.Name = name

	primaries := 0
	for i := range c.Constructors {
		if c.Constructors[i].IsPrimary() {
			primaries++
		}
		if err := r.valueParams(c.Constructors[i].ValueParameters); err != nil {
			return err
		}
	}
	if primaries > 1 {
		return fmt.Errorf("%w: class %s declares %d primary constructors", ErrInvalidMetadata, name, primaries)
	}

	if err := r.typeParams(c.TypeParameters); err != nil {
		return err
	}
	for i := range c.Supertypes {
		if err := r.ref(&c.Supertypes[i]); err != nil {
			return err
		}
	}
	return r.pkg(&Package{Functions: c.Functions, Properties: c.Properties, TypeAliases: c.TypeAliases})
}

// =============================================================================
// String table construction
// =============================================================================

// interner assigns string-table indices while encoding.
type interner struct {
	index map[string]int
	table []string
}

func (in *interner) intern(s string) int {
	if i, ok := in.index[s]; ok {
		return i
	}
	i := len(in.table)
	in.index[s] = i
	in.table = append(in.table, s)
	return i
}

func (in *interner) ref(t *TypeRef) {
	if t.Param == nil && !t.Star {
		t.ClassIndex = in.intern(t.ClassName)
	}
	for i := range t.Arguments {
		in.ref(&t.Arguments[i])
	}
}

func (in *interner) typeParams(tps []TypeParameter) {
	for i := range tps {
		for j := range tps[i].UpperBounds {
			in.ref(&tps[i].UpperBounds[j])
		}
	}
}

func (in *interner) valueParams(vps []ValueParameter) {
	for i := range vps {
		in.ref(&vps[i].Type)
		if vps[i].VarargElementType != nil {
			in.ref(vps[i].VarargElementType)
		}
	}
}

func (in *interner) function(f *Function) {
	in.typeParams(f.TypeParameters)
	if f.ReceiverType != nil {
		in.ref(f.ReceiverType)
	}
	in.valueParams(f.ValueParameters)
	in.ref(&f.ReturnType)
}

func (in *interner) property(p *Property) {
	in.typeParams(p.TypeParameters)
	if p.ReceiverType != nil {
		in.ref(p.ReceiverType)
	}
	in.ref(&p.ReturnType)
}

func (in *interner) pkg(p *Package) {
	for i := range p.Functions {
		in.function(&p.Functions[i])
	}
	for i := range p.Properties {
		in.property(&p.Properties[i])
	}
	for i := range p.TypeAliases {
		in.typeParams(p.TypeAliases[i].TypeParameters)
		in.ref(&p.TypeAliases[i].Underlying)
	}
}

func (in *interner) class(c *Class) {
	c.NameIndex = in.intern(c.Name)
	in.typeParams(c.TypeParameters)
	for i := range c.Supertypes {
		in.ref(&c.Supertypes[i])
	}
	for i := range c.Constructors {
		in.valueParams(c.Constructors[i].ValueParameters)
	}
	in.pkg(&Package{Functions: c.Functions, Properties: c.Properties, TypeAliases: c.TypeAliases})
}

// =============================================================================
// Deep copies
// =============================================================================

func cloneRef(t TypeRef) TypeRef {
	if t.Param != nil {
		id := *t.Param
		t.Param = &id
	}
	if t.Arguments != nil {
		args := make([]TypeRef, len(t.Arguments))
		for i, a := range t.Arguments {
			args[i] = cloneRef(a)
		}
		t.Arguments = args
	}
	return t
}

func cloneOptRef(t *TypeRef) *TypeRef {
	if t == nil {
		return nil
	}
	c := cloneRef(*t)
	return &c
}

func cloneTypeParams(tps []TypeParameter) []TypeParameter {
	if tps == nil {
		return nil
	}
	out := make([]TypeParameter, len(tps))
	for i, tp := range tps {
		out[i] = tp
		if tp.UpperBounds != nil {
			out[i].UpperBounds = make([]TypeRef, len(tp.UpperBounds))
			for j, b := range tp.UpperBounds {
				out[i].UpperBounds[j] = cloneRef(b)
			}
		}
	}
	return out
}

func cloneValueParams(vps []ValueParameter) []ValueParameter {
	if vps == nil {
		return nil
	}
	out := make([]ValueParameter, len(vps))
	for i, vp := range vps {
		out[i] = vp
		out[i].Type = cloneRef(vp.Type)
		out[i].VarargElementType = cloneOptRef(vp.VarargElementType)
	}
	return out
}

func cloneFunction(f Function) Function {
	f.TypeParameters = cloneTypeParams(f.TypeParameters)
	f.ReceiverType = cloneOptRef(f.ReceiverType)
	f.ValueParameters = cloneValueParams(f.ValueParameters)
	f.ReturnType = cloneRef(f.ReturnType)
	return f
}

func cloneProperty(p Property) Property {
	p.TypeParameters = cloneTypeParams(p.TypeParameters)
	p.ReceiverType = cloneOptRef(p.ReceiverType)
	p.ReturnType = cloneRef(p.ReturnType)
	return p
}

func clonePackage(p Package) Package {
	out := Package{}
	for _, f := range p.Functions {
		out.Functions = append(out.Functions, cloneFunction(f))
	}
	for _, pr := range p.Properties {
		out.Properties = append(out.Properties, cloneProperty(pr))
	}
	for _, a := range p.TypeAliases {
		a.TypeParameters = cloneTypeParams(a.TypeParameters)
		a.Underlying = cloneRef(a.Underlying)
		out.TypeAliases = append(out.TypeAliases, a)
	}
	return out
}

func cloneClass(c Class) Class {
	members := clonePackage(Package{Functions: c.Functions, Properties: c.Properties, TypeAliases: c.TypeAliases})
	c.Functions = members.Functions
	c.Properties = members.Properties
	c.TypeAliases = members.TypeAliases
	c.TypeParameters = cloneTypeParams(c.TypeParameters)
	if c.Supertypes != nil {
		sup := make([]TypeRef, len(c.Supertypes))
		for i, s := range c.Supertypes {
			sup[i] = cloneRef(s)
		}
		c.Supertypes = sup
	}
	if c.Constructors != nil {
		ctors := make([]Constructor, len(c.Constructors))
		for i, ctor := range c.Constructors {
			ctors[i] = ctor
			ctors[i].ValueParameters = cloneValueParams(ctor.ValueParameters)
		}
		c.Constructors = ctors
	}
	c.NestedClasses = append([]string(nil), c.NestedClasses...)
	c.EnumEntries = append([]string(nil), c.EnumEntries...)
	return c
}
