// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.
// Package snapshot persists merged graphs and compares them.
//
// A merged graph holds live platform nodes and lazy cells, so it is first
// flattened into a Graph: key-sorted nodes with their observable
// attributes, plus the structural edges between them. Graphs are stored
// gzip-compressed in BadgerDB by a Manager and compared with Diff.
package snapshot

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/AleutianAI/symbridge/services/symbols/merged"
	"github.com/AleutianAI/symbridge/services/symbols/metadata"
	"github.com/AleutianAI/symbridge/services/symbols/platform"
)

// SchemaVersion is the version of the serialized form. Increment when the
// format changes in a breaking way.
const SchemaVersion = "1.0"

var (
	// ErrDuplicateKey is returned when two distinct symbols share a key.
	ErrDuplicateKey = errors.New("snapshot: duplicate symbol key")

	// ErrSchemaVersion is returned when loading a graph of another schema.
	ErrSchemaVersion = errors.New("snapshot: unsupported schema version")

	// ErrNotFound is returned when a snapshot does not exist.
	ErrNotFound = errors.New("snapshot: not found")

	// ErrIntegrity is returned when stored data does not match its hash.
	ErrIntegrity = errors.New("snapshot: integrity check failed")
)

// EdgeType names a structural relation between two keys.
type EdgeType string

const (
	// EdgeEncloses links a symbol to each of its children.
	EdgeEncloses EdgeType = "encloses"

	// EdgeAccessorOf links a getter or setter to its property.
	EdgeAccessorOf EdgeType = "accessor_of"

	// EdgeOverloadOf links a reduced-arity platform member to the function
	// or constructor it was generated for.
	EdgeOverloadOf EdgeType = "overload_of"

	// EdgeBackingFieldOf links a platform field to its property.
	EdgeBackingFieldOf EdgeType = "backing_field_of"
)

// Node is the serialized form of one merged symbol.
type Node struct {
	// Key is the symbol key.
	Key string `json:"key"`

	Name string `json:"name"`
	Kind string `json:"kind"`

	// Package is the dotted package the symbol belongs to; empty for the
	// module.
	Package string `json:"package,omitempty"`

	OneToOne bool `json:"one_to_one"`

	// Platform are the keys of the accounted platform nodes, primary first.
	Platform []string `json:"platform,omitempty"`

	// Signature is the verified platform signature of callables and
	// accessors.
	Signature string `json:"signature,omitempty"`

	// Attributes are the kind-specific details worth comparing.
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Edge is the serialized form of one relation.
type Edge struct {
	From string   `json:"from"`
	To   string   `json:"to"`
	Type EdgeType `json:"type"`
}

// Graph is the serializable form of a merged graph.
//
// Nodes are sorted by key and edges by (from, to, type) so equal graphs
// encode to equal bytes.
//
// Thread Safety: Value type; not safe for concurrent mutation.
type Graph struct {
	SchemaVersion string `json:"schema_version"`

	// Module is the module name.
	Module string `json:"module"`

	// Hash is the deterministic hash of Nodes and Edges.
	Hash string `json:"hash"`

	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.Nodes) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return len(g.Edges) }

// Node returns the node with the given key.
func (g *Graph) Node(key string) (Node, bool) {
	i := sort.Search(len(g.Nodes), func(i int) bool { return g.Nodes[i].Key >= key })
	if i < len(g.Nodes) && g.Nodes[i].Key == key {
		return g.Nodes[i], true
	}
	return Node{}, false
}

// =============================================================================
// Flattening
// =============================================================================

// FromMerged flattens the merged graph below root.
//
// Description:
//
//	Walks root depth first through merged.Children, resolving lazy cells,
//	and records one Node per symbol. Each child gets an encloses edge from
//	its parent. Accessors, overloads and backing fields get their own
//	edges. Converting a module node and flattening it captures the whole
//	module.
//
// Inputs:
//
//	ctx - Checked between symbols for cancellation.
//	root - The root symbol, normally a *merged.Module.
//
// Outputs:
//
//	*Graph - The flattened graph with its hash set.
//	error - The first error resolving the graph, ErrDuplicateKey, or the
//	        context error.
func FromMerged(ctx context.Context, root merged.Symbol) (*Graph, error) {
	if root == nil {
		return nil, fmt.Errorf("root must not be nil")
	}

	g := &Graph{SchemaVersion: SchemaVersion, Module: root.Name()}
	if _, ok := root.(*merged.Module); !ok {
		g.Module = ""
	}

	owners := make(map[platform.Key]merged.Symbol)
	pkgOf := make(map[merged.Symbol]string)
	err := merged.Walk(root, func(sym merged.Symbol) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if prev, ok := owners[sym.Key()]; ok && prev != sym {
			return fmt.Errorf("%w: %s", ErrDuplicateKey, sym.Key())
		}
		owners[sym.Key()] = sym

		pkg := pkgOf[sym]
		if p, ok := sym.(*merged.Package); ok {
			pkg = p.QualifiedName
		}
		g.Nodes = append(g.Nodes, nodeOf(sym, pkg))

		children, err := merged.Children(sym)
		if err != nil {
			return err
		}
		for _, c := range children {
			if _, ok := pkgOf[c]; !ok {
				pkgOf[c] = pkg
			}
			g.Edges = append(g.Edges, Edge{From: string(sym.Key()), To: string(c.Key()), Type: EdgeEncloses})
		}
		g.Edges = append(g.Edges, relationsOf(sym)...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	g.sort()
	g.Hash = g.computeHash()
	return g, nil
}

func nodeOf(sym merged.Symbol, pkg string) Node {
	n := Node{
		Key:      string(sym.Key()),
		Name:     sym.Name(),
		Kind:     sym.Kind().String(),
		Package:  pkg,
		OneToOne: sym.OneToOne(),
	}
	for _, p := range sym.Platform() {
		n.Platform = append(n.Platform, string(platform.KeyOf(p)))
	}

	attrs := make(map[string]string)
	set := func(k, v string) {
		if v != "" {
			attrs[k] = v
		}
	}
	flag := func(k string, v bool) {
		if v {
			attrs[k] = "true"
		}
	}

	switch s := sym.(type) {
	case *merged.Type:
		set("visibility", s.Visibility.String())
		set("modality", s.Modality.String())
		set("supertypes", strings.Join(s.Supertypes, ","))
		set("companion", s.CompanionName)
		flag("data", s.Data)
		flag("inner", s.Inner)
		flag("value", s.Value)
	case *merged.Facade:
		set("facade", s.FacadeName)
		flag("multi_file_part", s.MultiFilePart)
	case *merged.MultiFileFacade:
		set("parts", strings.Join(s.Parts, ","))
	case *merged.SyntheticType:
		set("reason", s.Reason)
		if s.Lambda != nil {
			set("lambda", s.Lambda.ReturnType.String())
		}
	case *merged.Function:
		n.Signature = s.Signature.String()
		set("visibility", s.Visibility.String())
		set("modality", s.Modality.String())
		set("returns", s.ReturnType.String())
		flag("suspend", s.Suspend)
		flag("inline", s.Inline)
		flag("operator", s.Operator)
	case *merged.Constructor:
		n.Signature = s.Signature.String()
		set("visibility", s.Visibility.String())
		flag("primary", s.Primary)
		if s.Implicit > 0 {
			set("implicit", strconv.Itoa(s.Implicit))
		}
	case *merged.Parameter:
		set("index", strconv.Itoa(s.Index))
		set("type", s.Type.String())
		flag("receiver", s.Receiver)
		flag("required", s.Required)
		if s.VarargElementType != nil {
			set("vararg", s.VarargElementType.String())
		}
	case *merged.TypeParameter:
		set("index", strconv.Itoa(s.Index))
		set("variance", s.Variance.String())
		set("bounds", joinTypes(s.UpperBounds))
		flag("reified", s.Reified)
	case *merged.Property:
		set("visibility", s.Visibility.String())
		set("modality", s.Modality.String())
		set("type", s.ReturnType.String())
		if s.ReceiverType != nil {
			set("receiver", s.ReceiverType.String())
		}
		flag("var", s.Var)
		flag("const", s.Const)
		flag("delegated", s.Delegated)
		flag("lateinit", s.Lateinit)
		flag("field_in_outer", s.FieldInOuter)
		if s.HasConstant {
			set("constant", fmt.Sprint(s.Constant))
		}
	case *merged.Accessor:
		n.Signature = s.Signature.String()
		set("visibility", s.Visibility.String())
		flag("not_default", s.NotDefault)
	case *merged.TypeAlias:
		set("visibility", s.Visibility.String())
		set("underlying", s.Underlying.String())
	case *merged.SyntheticMember:
		set("reason", s.Reason)
	}
	if len(attrs) > 0 {
		n.Attributes = attrs
	}
	return n
}

func joinTypes(refs []metadata.TypeRef) string {
	parts := make([]string, len(refs))
	for i, r := range refs {
		parts[i] = r.String()
	}
	return strings.Join(parts, ",")
}

// relationsOf returns the non-enclosure edges that originate at sym.
func relationsOf(sym merged.Symbol) []Edge {
	key := string(sym.Key())
	var out []Edge
	switch s := sym.(type) {
	case *merged.Function:
		for _, o := range s.Overloads {
			out = append(out, Edge{From: string(platform.KeyOf(o)), To: key, Type: EdgeOverloadOf})
		}
	case *merged.Constructor:
		for _, o := range s.Overloads {
			out = append(out, Edge{From: string(platform.KeyOf(o)), To: key, Type: EdgeOverloadOf})
		}
	case *merged.Property:
		if s.Field != nil {
			out = append(out, Edge{From: string(platform.KeyOf(s.Field)), To: key, Type: EdgeBackingFieldOf})
		}
	case *merged.Accessor:
		if s.Property != nil {
			out = append(out, Edge{From: key, To: string(s.Property.Key()), Type: EdgeAccessorOf})
		}
	}
	return out
}

// =============================================================================
// Determinism
// =============================================================================

func (g *Graph) sort() {
	sort.Slice(g.Nodes, func(i, j int) bool { return g.Nodes[i].Key < g.Nodes[j].Key })
	sort.Slice(g.Edges, func(i, j int) bool {
		a, b := g.Edges[i], g.Edges[j]
		if a.From != b.From {
			return a.From < b.From
		}
		if a.To != b.To {
			return a.To < b.To
		}
		return a.Type < b.Type
	})
}

// computeHash hashes the canonical JSON of nodes and edges. Map keys are
// encoded in sorted order, so the result is stable.
func (g *Graph) computeHash() string {
	h := sha256.New()
	enc := json.NewEncoder(h)
	// Encoding plain structs of strings and maps cannot fail.
	_ = enc.Encode(g.Nodes)
	_ = enc.Encode(g.Edges)
	return hex.EncodeToString(h.Sum(nil))
}

// Verify checks the schema version and that Hash matches the content.
func (g *Graph) Verify() error {
	if g.SchemaVersion != SchemaVersion {
		return fmt.Errorf("%w: %q (expected %q)", ErrSchemaVersion, g.SchemaVersion, SchemaVersion)
	}
	if got := g.computeHash(); got != g.Hash {
		return fmt.Errorf("%w: graph hash %s, content hashes to %s", ErrIntegrity, g.Hash, got)
	}
	return nil
}
