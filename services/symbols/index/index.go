// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.
// Package index provides fast lookups over a converted symbol graph.
//
// An Index is filled from a merged graph with Build, or entry by entry
// with Add and AddBatch, and answers lookups by key, name, kind and
// package plus a ranked fuzzy name search.
package index

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/symbridge/services/symbols/merged"
	"github.com/AleutianAI/symbridge/services/symbols/platform"
)

// Default configuration values.
const (
	// DefaultMaxSymbols is the default maximum number of entries.
	DefaultMaxSymbols = 1_000_000

	// searchCheckInterval is how often Search checks for cancellation.
	searchCheckInterval = 1000
)

var tracer = otel.Tracer("symbols.index")

// Options configures an Index.
type Options struct {
	// MaxSymbols is the maximum number of entries. Adding more returns
	// ErrMaxSymbolsExceeded.
	// Default: 1,000,000
	MaxSymbols int
}

// DefaultOptions returns the default options.
func DefaultOptions() Options {
	return Options{MaxSymbols: DefaultMaxSymbols}
}

// Option is a functional option for configuring an Index.
type Option func(*Options)

// WithMaxSymbols sets the maximum number of entries.
func WithMaxSymbols(n int) Option {
	return func(o *Options) {
		o.MaxSymbols = n
	}
}

// Entry is one indexed symbol.
type Entry struct {
	// Symbol is the merged symbol.
	Symbol merged.Symbol

	// Package is the dotted name of the enclosing package, empty for the
	// module.
	Package string

	// Path is the dotted name of the symbol below its package, e.g.
	// "Config.port" or "Config.connect#timeout".
	Path string
}

// Stats contains statistics about the index.
type Stats struct {
	TotalSymbols int
	ByKind       map[merged.Kind]int
	PackageCount int
	MaxSymbols   int
}

// Index maps merged symbols by key, name, kind and package.
//
// Thread Safety:
//
//	Safe for concurrent use.
//
// Ownership:
//
//	The index holds the symbols but does not own them. Merged symbols are
//	immutable once published, so sharing is safe.
type Index struct {
	mu sync.RWMutex

	byKey     map[platform.Key]*Entry
	byName    map[string][]*Entry
	byKind    map[merged.Kind][]*Entry
	byPackage map[string][]*Entry

	options Options
}

// New creates an empty Index.
//
// Example:
//
//	idx := index.New(index.WithMaxSymbols(100_000))
//	n, err := idx.Build(ctx, module)
func New(opts ...Option) *Index {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return &Index{
		byKey:     make(map[platform.Key]*Entry),
		byName:    make(map[string][]*Entry),
		byKind:    make(map[merged.Kind][]*Entry),
		byPackage: make(map[string][]*Entry),
		options:   options,
	}
}

func validate(e Entry) error {
	if e.Symbol == nil {
		return fmt.Errorf("%w: symbol is nil", ErrInvalidSymbol)
	}
	if e.Symbol.Key() == "" {
		return fmt.Errorf("%w: %s %q has no key", ErrInvalidSymbol, e.Symbol.Kind(), e.Symbol.Name())
	}
	return nil
}

// Add indexes a single entry.
//
// Errors:
//
//	ErrInvalidSymbol - The entry has no symbol or the symbol has no key.
//	ErrDuplicateSymbol - A different symbol with the same key is indexed.
//	ErrMaxSymbolsExceeded - The index is full.
func (idx *Index) Add(e Entry) error {
	if err := validate(e); err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if existing, ok := idx.byKey[e.Symbol.Key()]; ok {
		if existing.Symbol == e.Symbol {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrDuplicateSymbol, e.Symbol.Key())
	}
	if len(idx.byKey) >= idx.options.MaxSymbols {
		return ErrMaxSymbolsExceeded
	}
	idx.addLocked(e)
	return nil
}

// AddBatch indexes entries all or nothing.
//
// Description:
//
//	Validates every entry and checks for key collisions within the batch
//	and against the index before adding anything. Re-adding an already
//	indexed symbol is not a collision.
//
// Errors:
//
//	*BatchError - Every validation or duplicate problem found.
//	ErrMaxSymbolsExceeded - The batch does not fit.
func (idx *Index) AddBatch(entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	var errs []error
	first := make(map[platform.Key]int, len(entries))
	for i, e := range entries {
		if err := validate(e); err != nil {
			errs = append(errs, fmt.Errorf("entry[%d]: %w", i, err))
			continue
		}
		k := e.Symbol.Key()
		if j, ok := first[k]; ok && entries[j].Symbol != e.Symbol {
			errs = append(errs, fmt.Errorf("entry[%d]: %w in batch (same as entry[%d]): %s", i, ErrDuplicateSymbol, j, k))
			continue
		}
		if _, ok := first[k]; !ok {
			first[k] = i
		}
	}
	if len(errs) > 0 {
		return &BatchError{Errors: errs}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	fresh := make([]Entry, 0, len(first))
	for k, i := range first {
		existing, ok := idx.byKey[k]
		switch {
		case !ok:
			fresh = append(fresh, entries[i])
		case existing.Symbol != entries[i].Symbol:
			errs = append(errs, fmt.Errorf("entry[%d]: %w: %s", i, ErrDuplicateSymbol, k))
		}
	}
	if len(errs) > 0 {
		return &BatchError{Errors: errs}
	}
	if len(idx.byKey)+len(fresh) > idx.options.MaxSymbols {
		return ErrMaxSymbolsExceeded
	}
	for _, e := range fresh {
		idx.addLocked(e)
	}
	return nil
}

// addLocked adds e to every map. Caller must hold idx.mu.
func (idx *Index) addLocked(e Entry) {
	entry := &e
	sym := e.Symbol
	idx.byKey[sym.Key()] = entry
	idx.byName[sym.Name()] = append(idx.byName[sym.Name()], entry)
	idx.byKind[sym.Kind()] = append(idx.byKind[sym.Kind()], entry)
	idx.byPackage[e.Package] = append(idx.byPackage[e.Package], entry)
}

// =============================================================================
// Building from a graph
// =============================================================================

// Build walks the graph below root and indexes every symbol.
//
// Description:
//
//	Traverses depth first through merged.Children, resolving lazy cells as
//	it goes, so converting a module node and building from it indexes the
//	whole module. Packages and paths are recorded from the traversal.
//
// Outputs:
//
//	int - The number of entries added.
//	error - The first error resolving the graph, a *BatchError, or
//	        ErrMaxSymbolsExceeded. Nothing is added on error.
func (idx *Index) Build(ctx context.Context, root merged.Symbol) (int, error) {
	ctx, span := tracer.Start(ctx, "index.Index.Build")
	defer span.End()
	start := time.Now()

	var entries []Entry
	seen := make(map[merged.Symbol]bool)
	var visit func(sym merged.Symbol, pkg, path string) error
	visit = func(sym merged.Symbol, pkg, path string) error {
		if seen[sym] {
			return nil
		}
		seen[sym] = true
		if len(entries)%searchCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		switch s := sym.(type) {
		case *merged.Module:
			path = ""
		case *merged.Package:
			pkg, path = s.QualifiedName, ""
		case *merged.Parameter, *merged.TypeParameter:
			path += "#" + sym.Name()
		default:
			if path != "" {
				path += "."
			}
			path += sym.Name()
		}
		entries = append(entries, Entry{Symbol: sym, Package: pkg, Path: path})

		children, err := merged.Children(sym)
		if err != nil {
			return err
		}
		for _, c := range children {
			if err := visit(c, pkg, path); err != nil {
				return err
			}
		}
		return nil
	}

	err := visit(root, "", "")
	if err == nil {
		err = idx.AddBatch(entries)
	}
	recordBuild(time.Since(start), len(entries), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}
	span.SetAttributes(attribute.Int("entries", len(entries)))
	return len(entries), nil
}

// =============================================================================
// Lookups
// =============================================================================

// GetByKey returns the entry for a symbol key.
func (idx *Index) GetByKey(key platform.Key) (Entry, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	e, ok := idx.byKey[key]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// GetByName returns every entry with the given simple name. The result
// is a copy.
func (idx *Index) GetByName(name string) []Entry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return copyEntries(idx.byName[name])
}

// GetByKind returns every entry of the given kind.
func (idx *Index) GetByKind(kind merged.Kind) []Entry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return copyEntries(idx.byKind[kind])
}

// GetByPackage returns every entry of the given dotted package.
func (idx *Index) GetByPackage(pkg string) []Entry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return copyEntries(idx.byPackage[pkg])
}

// GetByPath returns the entries whose package and path match, e.g.
// ("com.example", "Config.port"). Overloaded functions share a path.
func (idx *Index) GetByPath(pkg, path string) []Entry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	var out []Entry
	for _, e := range idx.byPackage[pkg] {
		if e.Path == path {
			out = append(out, *e)
		}
	}
	return out
}

func copyEntries(src []*Entry) []Entry {
	if len(src) == 0 {
		return nil
	}
	out := make([]Entry, len(src))
	for i, e := range src {
		out[i] = *e
	}
	return out
}

// =============================================================================
// Search
// =============================================================================

// Search ranks entries whose names match query.
//
// Description:
//
//	Exact matches rank first, then prefixes, camel-case word matches,
//	substrings and finally names within a small edit distance. Ties break
//	toward earlier match positions, closer lengths, callables before
//	types before everything else, and finally by key so results are
//	stable.
//
// Inputs:
//
//	ctx - Checked periodically for cancellation.
//	query - Case-insensitive search string.
//	limit - Maximum results; 0 means no limit.
//
// Outputs:
//
//	[]Entry - Matches, best first.
//	error - The context error if cancelled.
//
// Thread Safety:
//
//	Safe for concurrent use.
func (idx *Index) Search(ctx context.Context, query string, limit int) ([]Entry, error) {
	ctx, span := tracer.Start(ctx, "index.Index.Search",
		trace.WithAttributes(attribute.String("query", query)))
	defer span.End()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if query == "" {
		return nil, nil
	}
	queryLower := strings.ToLower(query)

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	type scored struct {
		entry *Entry
		score int
	}
	var results []scored
	n := 0
	for _, e := range idx.byKey {
		n++
		if n%searchCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		name := e.Symbol.Name()
		if score := matchScore(query, queryLower, name, strings.ToLower(name), e.Symbol.Kind()); score >= 0 {
			results = append(results, scored{entry: e, score: score})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score < results[j].score
		}
		return results[i].entry.Symbol.Key() < results[j].entry.Symbol.Key()
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	out := make([]Entry, len(results))
	for i, r := range results {
		out[i] = *r.entry
	}
	searchesTotal.Inc()
	span.SetAttributes(attribute.Int("results", len(out)))
	return out, nil
}

// matchScore scores name against query. Lower is better; -1 is no match.
//
//	score = base*10000 + position*100 + length*10 + kind
func matchScore(query, queryLower, name, nameLower string, kind merged.Kind) int {
	if nameLower == queryLower {
		return 0
	}

	var base, pos int
	switch {
	case strings.HasPrefix(nameLower, queryLower):
		base = 1
	case wordMatch(name, queryLower) >= 0:
		base, pos = 2, wordMatch(name, queryLower)
	case strings.Contains(nameLower, queryLower):
		base, pos = 3, strings.Index(nameLower, queryLower)
	default:
		if editDistance(nameLower, queryLower) > max(2, len(queryLower)/3) {
			return -1
		}
		base = 4
	}

	position := 0
	if pos > 0 && len(name) > 0 {
		position = min(99, pos*100/len(name))
	}
	length := min(99, absInt(len(name)-len(query)))
	return base*10000 + position*100 + length*10 + kindPenalty(kind)
}

// wordMatch returns the offset at which queryLower matches a whole
// camel-case word run of name, or -1.
func wordMatch(name, queryLower string) int {
	if queryLower == "" {
		return -1
	}
	for i := 0; i+len(queryLower) <= len(name); i++ {
		if i > 0 && !(isUpper(name[i]) && !isUpper(name[i-1])) {
			continue
		}
		if strings.ToLower(name[i:i+len(queryLower)]) != queryLower {
			continue
		}
		end := i + len(queryLower)
		if end == len(name) || isUpper(name[end]) || !isLetter(name[end]) {
			return i
		}
	}
	return -1
}

func kindPenalty(kind merged.Kind) int {
	switch kind {
	case merged.KindFunction, merged.KindConstructor, merged.KindProperty:
		return 0
	case merged.KindClass, merged.KindObject, merged.KindCompanion, merged.KindInterface,
		merged.KindAnnotation, merged.KindEnum, merged.KindTypeAlias:
		return 1
	case merged.KindGetter, merged.KindSetter, merged.KindEnumConstant, merged.KindFacade,
		merged.KindMultiFileFacade:
		return 2
	case merged.KindParameter, merged.KindTypeParameter:
		return 3
	default:
		return 5
	}
}

func isUpper(c byte) bool  { return c >= 'A' && c <= 'Z' }
func isLetter(c byte) bool { return isUpper(c) || (c >= 'a' && c <= 'z') }

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// editDistance is the Levenshtein distance of a and b, two rows at a time.
func editDistance(a, b string) int {
	if a == "" {
		return len(b)
	}
	if b == "" {
		return len(a)
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			sub := prev[j-1]
			if a[i-1] != b[j-1] {
				sub++
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, sub)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

// =============================================================================
// Maintenance
// =============================================================================

// RemoveByPackage drops every entry of a package and returns how many
// were removed.
func (idx *Index) RemoveByPackage(pkg string) int {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	entries := idx.byPackage[pkg]
	for _, e := range entries {
		sym := e.Symbol
		delete(idx.byKey, sym.Key())
		idx.byName[sym.Name()] = without(idx.byName[sym.Name()], e)
		if len(idx.byName[sym.Name()]) == 0 {
			delete(idx.byName, sym.Name())
		}
		idx.byKind[sym.Kind()] = without(idx.byKind[sym.Kind()], e)
		if len(idx.byKind[sym.Kind()]) == 0 {
			delete(idx.byKind, sym.Kind())
		}
	}
	delete(idx.byPackage, pkg)
	return len(entries)
}

// without removes e by pointer, preserving order.
func without(entries []*Entry, e *Entry) []*Entry {
	for i, x := range entries {
		if x == e {
			return append(entries[:i:i], entries[i+1:]...)
		}
	}
	return entries
}

// Clear removes every entry.
func (idx *Index) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.byKey = make(map[platform.Key]*Entry)
	idx.byName = make(map[string][]*Entry)
	idx.byKind = make(map[merged.Kind][]*Entry)
	idx.byPackage = make(map[string][]*Entry)
}

// Len returns the number of entries.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.byKey)
}

// Stats returns a snapshot of the index counters.
func (idx *Index) Stats() Stats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	byKind := make(map[merged.Kind]int, len(idx.byKind))
	for k, entries := range idx.byKind {
		byKind[k] = len(entries)
	}
	return Stats{
		TotalSymbols: len(idx.byKey),
		ByKind:       byKind,
		PackageCount: len(idx.byPackage),
		MaxSymbols:   idx.options.MaxSymbols,
	}
}

// Clone returns an independent copy sharing the immutable entries.
func (idx *Index) Clone() *Index {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	c := &Index{
		byKey:     make(map[platform.Key]*Entry, len(idx.byKey)),
		byName:    make(map[string][]*Entry, len(idx.byName)),
		byKind:    make(map[merged.Kind][]*Entry, len(idx.byKind)),
		byPackage: make(map[string][]*Entry, len(idx.byPackage)),
		options:   idx.options,
	}
	for k, e := range idx.byKey {
		c.byKey[k] = e
	}
	for k, v := range idx.byName {
		c.byName[k] = append([]*Entry(nil), v...)
	}
	for k, v := range idx.byKind {
		c.byKind[k] = append([]*Entry(nil), v...)
	}
	for k, v := range idx.byPackage {
		c.byPackage[k] = append([]*Entry(nil), v...)
	}
	return c
}
