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

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// typeRefWire has TypeRef's fields without its YAML methods.
type typeRefWire TypeRef

// MarshalYAML always writes the indexed wire form.
func (t TypeRef) MarshalYAML() (interface{}, error) {
	return typeRefWire(t), nil
}

// UnmarshalYAML accepts either the indexed wire form (a mapping) or the
// source form as a scalar, e.g. "kotlin/collections/List<#0>?". The scalar
// form is meant for hand-written fixtures; BlobDecoder rejects it.
func (t *TypeRef) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		parsed, err := ParseType(node.Value)
		if err != nil {
			return err
		}
		*t = parsed
		return nil
	}
	var w typeRefWire
	if err := node.Decode(&w); err != nil {
		return err
	}
	*t = TypeRef(w)
	t.inline = false
	return nil
}

// ParseType parses the source form of a type reference.
//
// Grammar:
//
//	type  := base [ "<" type { "," type } ">" ] [ "?" ]
//	base  := "*" | "#" id | class-name
//
// "#0" refers to the type parameter with ID 0.
//
// Outputs:
//
//	TypeRef - The parsed reference, marked as carrying an inline name.
//	error - ErrInvalidMetadata on syntax errors.
func ParseType(s string) (TypeRef, error) {
	p := typeParser{src: s}
	t, err := p.parse()
	if err != nil {
		return TypeRef{}, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return TypeRef{}, p.errorf("trailing input")
	}
	return t, nil
}

type typeParser struct {
	src string
	pos int
}

func (p *typeParser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: type %q at %d: %s", ErrInvalidMetadata, p.src, p.pos, fmt.Sprintf(format, args...))
}

func (p *typeParser) skipSpace() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

func (p *typeParser) parse() (TypeRef, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) && !strings.ContainsRune("<>,? ", rune(p.src[p.pos])) {
		p.pos++
	}
	base := p.src[start:p.pos]

	var t TypeRef
	switch {
	case base == "":
		return TypeRef{}, p.errorf("missing type name")
	case base == "*":
		return StarType(), nil
	case strings.HasPrefix(base, "#"):
		id, err := strconv.Atoi(base[1:])
		if err != nil {
			return TypeRef{}, p.errorf("bad type parameter id %q", base)
		}
		t = ParamType(id)
	default:
		t = TypeRef{ClassName: base, inline: true}
	}

	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == '<' {
		p.pos++
		for {
			arg, err := p.parse()
			if err != nil {
				return TypeRef{}, err
			}
			t.Arguments = append(t.Arguments, arg)
			p.skipSpace()
			if p.pos >= len(p.src) {
				return TypeRef{}, p.errorf("unterminated argument list")
			}
			if p.src[p.pos] == ',' {
				p.pos++
				continue
			}
			if p.src[p.pos] == '>' {
				p.pos++
				break
			}
			return TypeRef{}, p.errorf("unexpected %q", p.src[p.pos])
		}
	}

	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == '?' {
		p.pos++
		t.Nullable = true
	}
	return t, nil
}
