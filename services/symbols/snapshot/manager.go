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
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// BadgerDB key layout.
const (
	keyPrefixSnap      = "symbols:snap:"
	keyPrefixSnapIndex = "symbols:snap:index:"
	keySuffixData      = ":data"
	keySuffixMeta      = ":meta"
	keySuffixLatest    = ":latest"
)

// DefaultListLimit bounds List when no limit is given.
const DefaultListLimit = 100

var tracer = otel.Tracer("symbols.snapshot")

// Metadata describes one saved snapshot.
type Metadata struct {
	// ID is the unique snapshot identifier.
	ID string `json:"id"`

	// Module is the module name of the graph.
	Module string `json:"module"`

	// ModuleHash is ModuleHash(Module), used for key grouping.
	ModuleHash string `json:"module_hash"`

	// GraphHash is Graph.Hash at save time.
	GraphHash string `json:"graph_hash"`

	// Label is an optional human-readable label.
	Label string `json:"label,omitempty"`

	// CreatedAtNano is when the snapshot was saved, Unix nanoseconds UTC.
	CreatedAtNano int64 `json:"created_at_nano"`

	NodeCount int `json:"node_count"`
	EdgeCount int `json:"edge_count"`

	SchemaVersion string `json:"schema_version"`

	// CompressedSize is the size of the stored payload in bytes.
	CompressedSize int64 `json:"compressed_size"`

	// ContentHash is the SHA256 of the stored payload.
	ContentHash string `json:"content_hash"`
}

// CreatedAt returns the save time.
func (m *Metadata) CreatedAt() time.Time { return time.Unix(0, m.CreatedAtNano).UTC() }

// Manager saves and loads graph snapshots in BadgerDB.
//
// Description:
//
//	Each snapshot is stored as gzip-compressed JSON next to its metadata.
//	A per-module "latest" pointer and a reverse index from snapshot ID to
//	module hash are kept up to date in the same transaction.
//
// Thread Safety:
//
//	Safe for concurrent use. BadgerDB handles its own concurrency control.
type Manager struct {
	db     *badger.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewManager creates a Manager.
//
// Inputs:
//
//	db - An opened BadgerDB instance, closed by the caller. Must not be nil.
//	logger - Logger for diagnostic output. Must not be nil.
func NewManager(db *badger.DB, logger *slog.Logger) (*Manager, error) {
	if db == nil {
		return nil, fmt.Errorf("badger db must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	return &Manager{db: db, logger: logger, now: time.Now}, nil
}

// Open opens a BadgerDB at dir and returns a Manager over it. An empty
// dir opens an in-memory database. Close the returned DB when done.
func Open(dir string, logger *slog.Logger) (*Manager, *badger.DB, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("opening snapshot store %q: %w", dir, err)
	}
	m, err := NewManager(db, logger)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return m, db, nil
}

// Save persists a graph.
//
// Description:
//
//	Verifies g, encodes it to JSON, compresses it, and stores it with its
//	metadata. Updates the module's latest pointer.
//
// Inputs:
//
//	ctx - Context for cancellation and tracing. Must not be nil.
//	g - The graph to save. Must not be nil.
//	label - Optional human-readable label.
//
// Outputs:
//
//	*Metadata - The saved snapshot's metadata.
//	error - Non-nil if g fails Verify, or encoding or storage fails.
//
// Key Schema:
//
//	symbols:snap:{moduleHash}:{id}:data → gzip(JSON(Graph))
//	symbols:snap:{moduleHash}:{id}:meta → JSON(Metadata)
//	symbols:snap:{moduleHash}:latest    → id
//	symbols:snap:index:{id}             → moduleHash
func (m *Manager) Save(ctx context.Context, g *Graph, label string) (_ *Metadata, err error) {
	if ctx == nil {
		return nil, fmt.Errorf("ctx must not be nil")
	}
	if g == nil {
		return nil, fmt.Errorf("graph must not be nil")
	}
	_, span := tracer.Start(ctx, "snapshot.Manager.Save",
		trace.WithAttributes(attribute.String("module", g.Module)))
	defer endSpan(span, &err)

	if err := g.Verify(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	payload, err := compress(g)
	if err != nil {
		return nil, err
	}

	moduleHash := ModuleHash(g.Module)
	meta := &Metadata{
		ID:             uuid.NewString(),
		Module:         g.Module,
		ModuleHash:     moduleHash,
		GraphHash:      g.Hash,
		Label:          label,
		CreatedAtNano:  m.now().UnixNano(),
		NodeCount:      g.NodeCount(),
		EdgeCount:      g.EdgeCount(),
		SchemaVersion:  g.SchemaVersion,
		CompressedSize: int64(len(payload)),
		ContentHash:    hashBytes(payload),
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshaling metadata: %w", err)
	}

	err = m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(dataKey(moduleHash, meta.ID), payload); err != nil {
			return fmt.Errorf("storing data: %w", err)
		}
		if err := txn.Set(metaKey(moduleHash, meta.ID), metaJSON); err != nil {
			return fmt.Errorf("storing metadata: %w", err)
		}
		if err := txn.Set(latestKey(moduleHash), []byte(meta.ID)); err != nil {
			return fmt.Errorf("updating latest pointer: %w", err)
		}
		if err := txn.Set(indexKey(meta.ID), []byte(moduleHash)); err != nil {
			return fmt.Errorf("storing reverse index: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("writing snapshot to badger: %w", err)
	}

	span.SetAttributes(attribute.String("snapshot_id", meta.ID))
	m.logger.Info("snapshot saved",
		slog.String("snapshot_id", meta.ID),
		slog.String("module", meta.Module),
		slog.Int("node_count", meta.NodeCount),
		slog.Int("edge_count", meta.EdgeCount),
		slog.Int64("compressed_size", meta.CompressedSize),
	)
	return meta, nil
}

// Load retrieves a snapshot by ID.
//
// Errors:
//
//	ErrNotFound - No snapshot has that ID.
//	ErrIntegrity - The stored payload or graph does not match its hash.
//	ErrSchemaVersion - The graph was saved with another schema.
func (m *Manager) Load(ctx context.Context, id string) (_ *Graph, _ *Metadata, err error) {
	if ctx == nil {
		return nil, nil, fmt.Errorf("ctx must not be nil")
	}
	if id == "" {
		return nil, nil, fmt.Errorf("snapshot ID must not be empty")
	}
	_, span := tracer.Start(ctx, "snapshot.Manager.Load",
		trace.WithAttributes(attribute.String("snapshot_id", id)))
	defer endSpan(span, &err)

	moduleHash, err := m.moduleHashOf(id)
	if err != nil {
		return nil, nil, err
	}
	return m.loadByKeys(moduleHash, id)
}

// LoadLatest loads the most recently saved snapshot of a module.
//
// Errors:
//
//	ErrNotFound - The module has no snapshots.
func (m *Manager) LoadLatest(ctx context.Context, module string) (_ *Graph, _ *Metadata, err error) {
	if ctx == nil {
		return nil, nil, fmt.Errorf("ctx must not be nil")
	}
	_, span := tracer.Start(ctx, "snapshot.Manager.LoadLatest",
		trace.WithAttributes(attribute.String("module", module)))
	defer endSpan(span, &err)

	moduleHash := ModuleHash(module)
	id, err := m.get(latestKey(moduleHash))
	if err != nil {
		return nil, nil, fmt.Errorf("latest snapshot of %q: %w", module, err)
	}
	return m.loadByKeys(moduleHash, id)
}

// List returns snapshot metadata, newest first.
//
// Inputs:
//
//	ctx - Context for cancellation. Must not be nil.
//	module - Optional module filter. Empty lists every module.
//	limit - Maximum results. Values <= 0 mean DefaultListLimit.
func (m *Manager) List(ctx context.Context, module string, limit int) ([]*Metadata, error) {
	if ctx == nil {
		return nil, fmt.Errorf("ctx must not be nil")
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}

	prefix := keyPrefixSnap
	if module != "" {
		prefix = keyPrefixSnap + ModuleHash(module) + ":"
	}

	var results []*Metadata
	err := m.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(opts.Prefix); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			key := string(item.Key())
			if !strings.HasSuffix(key, keySuffixMeta) {
				continue
			}
			var meta Metadata
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &meta) }); err != nil {
				m.logger.Warn("skipping corrupt metadata", slog.String("key", key), slog.Any("error", err))
				continue
			}
			results = append(results, &meta)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].CreatedAtNano != results[j].CreatedAtNano {
			return results[i].CreatedAtNano > results[j].CreatedAtNano
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Delete removes a snapshot. When it was the module's latest, the latest
// pointer is removed too.
//
// Errors:
//
//	ErrNotFound - No snapshot has that ID.
func (m *Manager) Delete(ctx context.Context, id string) error {
	if ctx == nil {
		return fmt.Errorf("ctx must not be nil")
	}
	if id == "" {
		return fmt.Errorf("snapshot ID must not be empty")
	}

	moduleHash, err := m.moduleHashOf(id)
	if err != nil {
		return err
	}

	err = m.db.Update(func(txn *badger.Txn) error {
		for _, k := range [][]byte{dataKey(moduleHash, id), metaKey(moduleHash, id), indexKey(id)} {
			if err := txn.Delete(k); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("deleting %s: %w", k, err)
			}
		}
		item, err := txn.Get(latestKey(moduleHash))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		latest, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if string(latest) == id {
			return txn.Delete(latestKey(moduleHash))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("deleting snapshot %s: %w", id, err)
	}

	m.logger.Info("snapshot deleted", slog.String("snapshot_id", id))
	return nil
}

// =============================================================================
// Internals
// =============================================================================

func (m *Manager) loadByKeys(moduleHash, id string) (*Graph, *Metadata, error) {
	var payload, metaJSON []byte
	err := m.db.View(func(txn *badger.Txn) error {
		var err error
		if payload, err = valueCopy(txn, dataKey(moduleHash, id)); err != nil {
			return fmt.Errorf("reading data for %s: %w", id, err)
		}
		if metaJSON, err = valueCopy(txn, metaKey(moduleHash, id)); err != nil {
			return fmt.Errorf("reading metadata for %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	var meta Metadata
	if err := json.Unmarshal(metaJSON, &meta); err != nil {
		return nil, nil, fmt.Errorf("unmarshaling metadata for %s: %w", id, err)
	}
	if actual := hashBytes(payload); meta.ContentHash != "" && meta.ContentHash != actual {
		return nil, nil, fmt.Errorf("%w: %s: expected content hash %s, got %s", ErrIntegrity, id, meta.ContentHash, actual)
	}

	g, err := decompress(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("snapshot %s: %w", id, err)
	}
	if err := g.Verify(); err != nil {
		return nil, nil, fmt.Errorf("snapshot %s: %w", id, err)
	}
	return g, &meta, nil
}

func (m *Manager) moduleHashOf(id string) (string, error) {
	h, err := m.get(indexKey(id))
	if err != nil {
		return "", fmt.Errorf("looking up snapshot %s: %w", id, err)
	}
	return h, nil
}

// get reads a string value, mapping a missing key to ErrNotFound.
func (m *Manager) get(key []byte) (string, error) {
	var v []byte
	err := m.db.View(func(txn *badger.Txn) error {
		var err error
		v, err = valueCopy(txn, key)
		return err
	})
	if err != nil {
		return "", err
	}
	return string(v), nil
}

func valueCopy(txn *badger.Txn, key []byte) ([]byte, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func compress(g *Graph) ([]byte, error) {
	data, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("marshaling graph: %w", err)
	}
	var buf bytes.Buffer
	gw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("creating gzip writer: %w", err)
	}
	if _, err := gw.Write(data); err != nil {
		return nil, fmt.Errorf("compressing graph: %w", err)
	}
	if err := gw.Close(); err != nil {
		return nil, fmt.Errorf("closing gzip writer: %w", err)
	}
	return buf.Bytes(), nil
}

func decompress(payload []byte) (*Graph, error) {
	gr, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("decompressing: %w", err)
	}
	defer gr.Close()
	data, err := io.ReadAll(gr)
	if err != nil {
		return nil, fmt.Errorf("reading decompressed data: %w", err)
	}
	var g Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("unmarshaling graph: %w", err)
	}
	return &g, nil
}

func endSpan(span trace.Span, err *error) {
	if *err != nil {
		span.RecordError(*err)
		span.SetStatus(codes.Error, (*err).Error())
	}
	span.End()
}

// ModuleHash returns SHA256(module)[:16], the key prefix of a module's
// snapshots.
func ModuleHash(module string) string {
	return hashBytes([]byte(module))[:16]
}

func hashBytes(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func dataKey(moduleHash, id string) []byte {
	return []byte(keyPrefixSnap + moduleHash + ":" + id + keySuffixData)
}

func metaKey(moduleHash, id string) []byte {
	return []byte(keyPrefixSnap + moduleHash + ":" + id + keySuffixMeta)
}

func latestKey(moduleHash string) []byte {
	return []byte(keyPrefixSnap + moduleHash + keySuffixLatest)
}

func indexKey(id string) []byte {
	return []byte(keyPrefixSnapIndex + id)
}
