// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.
package snapshot

import (
	"fmt"
	"maps"
	"slices"
	"sort"
)

// Change classifications reported in NodeChange.Change.
const (
	ChangeKind       = "kind_changed"
	ChangeSignature  = "signature_changed"
	ChangePlatform   = "platform_changed"
	ChangeAttributes = "attributes_changed"
	ChangeMoved      = "moved"
)

// Diff is the difference between two graphs.
type Diff struct {
	BaseHash   string `json:"base_hash"`
	TargetHash string `json:"target_hash"`

	// Added are keys present only in the target.
	Added []string `json:"added"`

	// Removed are keys present only in the base.
	Removed []string `json:"removed"`

	// Changed are keys present in both whose nodes differ.
	Changed []NodeChange `json:"changed"`

	EdgesAdded   int `json:"edges_added"`
	EdgesRemoved int `json:"edges_removed"`

	Summary DiffSummary `json:"summary"`
}

// NodeChange describes one changed node.
type NodeChange struct {
	Key    string `json:"key"`
	Name   string `json:"name"`
	Change string `json:"change"`

	// Attributes lists the attribute names whose values differ, for
	// ChangeAttributes.
	Attributes []string `json:"attributes,omitempty"`
}

// DiffSummary aggregates a Diff.
type DiffSummary struct {
	// TotalChanges counts added, removed and changed nodes plus edge
	// changes.
	TotalChanges int `json:"total_changes"`

	// PackagesAffected counts distinct packages with changed symbols.
	PackagesAffected int `json:"packages_affected"`

	// ChangeRatio is changed nodes over the larger node count.
	ChangeRatio float64 `json:"change_ratio"`
}

// Empty reports whether the graphs were identical.
func (d *Diff) Empty() bool { return d.Summary.TotalChanges == 0 }

// Compare computes the difference from base to target.
//
// Description:
//
//	Nodes are compared by key. A node whose kind changed is reported as
//	such; otherwise the first of package, signature, platform nodes and
//	attributes that differs names the change. Equal graph hashes short
//	circuit to an empty diff.
//
// Outputs:
//
//	*Diff - Sorted, deterministic differences.
//	error - Non-nil if either graph is nil.
//
// Complexity:
//
//	O(V + E) plus sorting of the reported keys.
func Compare(base, target *Graph) (*Diff, error) {
	if base == nil {
		return nil, fmt.Errorf("base graph must not be nil")
	}
	if target == nil {
		return nil, fmt.Errorf("target graph must not be nil")
	}

	d := &Diff{
		BaseHash:   base.Hash,
		TargetHash: target.Hash,
		Added:      []string{},
		Removed:    []string{},
		Changed:    []NodeChange{},
	}
	if base.Hash != "" && base.Hash == target.Hash {
		return d, nil
	}

	baseNodes := nodeMap(base)
	targetNodes := nodeMap(target)
	packages := make(map[string]bool)

	for key, t := range targetNodes {
		b, ok := baseNodes[key]
		if !ok {
			d.Added = append(d.Added, key)
			packages[t.Package] = true
			continue
		}
		if c, changed := compareNodes(b, t); changed {
			d.Changed = append(d.Changed, c)
			packages[b.Package] = true
			packages[t.Package] = true
		}
	}
	for key, b := range baseNodes {
		if _, ok := targetNodes[key]; !ok {
			d.Removed = append(d.Removed, key)
			packages[b.Package] = true
		}
	}

	sort.Strings(d.Added)
	sort.Strings(d.Removed)
	sort.Slice(d.Changed, func(i, j int) bool { return d.Changed[i].Key < d.Changed[j].Key })

	baseEdges := edgeSet(base.Edges)
	targetEdges := edgeSet(target.Edges)
	for e := range targetEdges {
		if !baseEdges[e] {
			d.EdgesAdded++
		}
	}
	for e := range baseEdges {
		if !targetEdges[e] {
			d.EdgesRemoved++
		}
	}

	changedNodes := len(d.Added) + len(d.Removed) + len(d.Changed)
	if total := max(len(base.Nodes), len(target.Nodes)); total > 0 {
		d.Summary.ChangeRatio = float64(changedNodes) / float64(total)
	}
	d.Summary.TotalChanges = changedNodes + d.EdgesAdded + d.EdgesRemoved
	d.Summary.PackagesAffected = len(packages)
	return d, nil
}

func nodeMap(g *Graph) map[string]*Node {
	m := make(map[string]*Node, len(g.Nodes))
	for i := range g.Nodes {
		m[g.Nodes[i].Key] = &g.Nodes[i]
	}
	return m
}

func compareNodes(b, t *Node) (NodeChange, bool) {
	c := NodeChange{Key: t.Key, Name: t.Name}
	switch {
	case b.Kind != t.Kind:
		c.Change = ChangeKind
	case b.Package != t.Package:
		c.Change = ChangeMoved
	case b.Signature != t.Signature:
		c.Change = ChangeSignature
	case !slices.Equal(b.Platform, t.Platform) || b.OneToOne != t.OneToOne:
		c.Change = ChangePlatform
	default:
		diffs := attributeDiffs(b.Attributes, t.Attributes)
		if len(diffs) == 0 && b.Name == t.Name {
			return c, false
		}
		c.Change = ChangeAttributes
		c.Attributes = diffs
	}
	return c, true
}

func attributeDiffs(a, b map[string]string) []string {
	names := make(map[string]bool, len(a)+len(b))
	for k, v := range a {
		if b[k] != v {
			names[k] = true
		}
	}
	for k, v := range b {
		if a[k] != v {
			names[k] = true
		}
	}
	return slices.Sorted(maps.Keys(names))
}

type edgeKey struct {
	from, to string
	typ      EdgeType
}

func edgeSet(edges []Edge) map[edgeKey]bool {
	set := make(map[edgeKey]bool, len(edges))
	for _, e := range edges {
		set[edgeKey{e.From, e.To, e.Type}] = true
	}
	return set
}
