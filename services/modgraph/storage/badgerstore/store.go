// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package badgerstore persists resolved module trees in BadgerDB.
//
// Trees are stored as gzip-compressed JSON snapshots keyed by crate, with
// per-node records alongside so single modules and items can be fetched
// without decompressing a whole snapshot. Pruning results apply the same
// deletions to the per-node records.
package badgerstore

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
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/crategraph/crategraph/services/modgraph/ir"
	"github.com/crategraph/crategraph/services/modgraph/tree"
)

// BadgerDB key prefixes for tree snapshots and node records.
const (
	keyPrefixSnap      = "modtree:snap:"
	keyPrefixSnapIndex = "modtree:snap:index:"
	keyPrefixNode      = "modtree:node:"
	keySuffixData      = ":data"
	keySuffixMeta      = ":meta"
	keySuffixLatest    = ":latest"
)

// ErrSnapshotNotFound is returned when no snapshot matches the request.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// SnapshotMetadata describes one saved tree snapshot.
type SnapshotMetadata struct {
	// SnapshotID is derived from SHA256(crateName + CreatedAtMilli)[:16].
	SnapshotID string `json:"snapshot_id"`

	// CrateName is the crate the tree belongs to.
	CrateName string `json:"crate_name"`

	// CrateHash is SHA256(CrateName)[:16] for key grouping.
	CrateHash string `json:"crate_hash"`

	// TreeHash is the deterministic hash of the serialized tree.
	TreeHash string `json:"tree_hash"`

	// Label is an optional human-readable label.
	Label string `json:"label,omitempty"`

	// CreatedAtMilli is when the snapshot was saved (Unix milliseconds UTC).
	CreatedAtMilli int64 `json:"created_at_milli"`

	// ModuleCount and EdgeCount size the stored tree.
	ModuleCount int `json:"module_count"`
	EdgeCount   int `json:"edge_count"`

	// SchemaVersion is the tree serialization schema version.
	SchemaVersion string `json:"schema_version"`

	// CompressedSize is the gzip payload size in bytes.
	CompressedSize int64 `json:"compressed_size"`

	// ContentHash is the SHA256 of the compressed payload.
	ContentHash string `json:"content_hash"`
}

// TreeStore manages saving and loading module trees in BadgerDB.
//
// Thread Safety: safe for concurrent use; BadgerDB handles its own
// concurrency control.
type TreeStore struct {
	db     *badger.DB
	logger *slog.Logger
}

// Open opens (or creates) a badger database at dir and wraps it in a
// TreeStore. The caller owns Close.
func Open(dir string, logger *slog.Logger) (*TreeStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage dir must not be empty")
	}
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger at %s: %w", dir, err)
	}
	return NewTreeStore(db, logger)
}

// NewTreeStore wraps an already-open BadgerDB instance.
func NewTreeStore(db *badger.DB, logger *slog.Logger) (*TreeStore, error) {
	if db == nil {
		return nil, fmt.Errorf("badger db must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TreeStore{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (s *TreeStore) Close() error { return s.db.Close() }

// Save persists one frozen tree.
//
// Description:
//
//	Serializes the tree, gzip-compresses the JSON, and writes snapshot
//	data, metadata, the crate's latest pointer, and a reverse index entry
//	in one transaction. Per-node records for every module and item are
//	written alongside for point lookups.
//
// Key Schema:
//
//	modtree:snap:{crateHash}:{snapshotID}:data -> gzip(JSON(SerializableTree))
//	modtree:snap:{crateHash}:{snapshotID}:meta -> JSON(SnapshotMetadata)
//	modtree:snap:{crateHash}:latest            -> snapshotID
//	modtree:snap:index:{snapshotID}            -> crateHash
//	modtree:node:{crateHash}:{nodeID}          -> JSON(module or item)
func (s *TreeStore) Save(ctx context.Context, t *tree.ModuleTree, label string) (*SnapshotMetadata, error) {
	if ctx == nil {
		return nil, fmt.Errorf("ctx must not be nil")
	}
	if t == nil {
		return nil, fmt.Errorf("tree must not be nil")
	}

	st, err := t.ToSerializable()
	if err != nil {
		return nil, fmt.Errorf("serializing tree: %w", err)
	}
	jsonData, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("marshaling tree: %w", err)
	}
	treeHash, err := t.ContentHash()
	if err != nil {
		return nil, fmt.Errorf("hashing tree: %w", err)
	}

	var compressed bytes.Buffer
	gw, err := gzip.NewWriterLevel(&compressed, gzip.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("creating gzip writer: %w", err)
	}
	if _, err := gw.Write(jsonData); err != nil {
		return nil, fmt.Errorf("compressing tree: %w", err)
	}
	if err := gw.Close(); err != nil {
		return nil, fmt.Errorf("closing gzip writer: %w", err)
	}
	compressedData := compressed.Bytes()

	now := time.Now().UnixMilli()
	crateHash := hashString(t.CrateName())[:16]
	snapshotID := hashString(fmt.Sprintf("%s:%d", t.CrateName(), now))[:16]

	meta := &SnapshotMetadata{
		SnapshotID:     snapshotID,
		CrateName:      t.CrateName(),
		CrateHash:      crateHash,
		TreeHash:       treeHash,
		Label:          label,
		CreatedAtMilli: now,
		ModuleCount:    t.ModuleCount(),
		EdgeCount:      t.EdgeCount(),
		SchemaVersion:  tree.SchemaVersion,
		CompressedSize: int64(len(compressedData)),
		ContentHash:    hashBytes(compressedData),
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshaling metadata: %w", err)
	}

	dataKey := keyPrefixSnap + crateHash + ":" + snapshotID + keySuffixData
	metaKey := keyPrefixSnap + crateHash + ":" + snapshotID + keySuffixMeta
	latestKey := keyPrefixSnap + crateHash + keySuffixLatest
	indexKey := keyPrefixSnapIndex + snapshotID

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(dataKey), compressedData); err != nil {
			return fmt.Errorf("storing data: %w", err)
		}
		if err := txn.Set([]byte(metaKey), metaJSON); err != nil {
			return fmt.Errorf("storing metadata: %w", err)
		}
		if err := txn.Set([]byte(latestKey), []byte(snapshotID)); err != nil {
			return fmt.Errorf("updating latest pointer: %w", err)
		}
		if err := txn.Set([]byte(indexKey), []byte(crateHash)); err != nil {
			return fmt.Errorf("storing reverse index: %w", err)
		}
		for _, m := range st.Modules {
			b, err := json.Marshal(m)
			if err != nil {
				return fmt.Errorf("marshaling module %s: %w", m.ID, err)
			}
			if err := txn.Set([]byte(nodeKey(crateHash, m.ID)), b); err != nil {
				return fmt.Errorf("storing module %s: %w", m.ID, err)
			}
		}
		for _, it := range st.Items {
			b, err := json.Marshal(it)
			if err != nil {
				return fmt.Errorf("marshaling item %s: %w", it.ID, err)
			}
			if err := txn.Set([]byte(nodeKey(crateHash, it.ID)), b); err != nil {
				return fmt.Errorf("storing item %s: %w", it.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("writing snapshot to badger: %w", err)
	}

	s.logger.Info("tree snapshot saved",
		slog.String("snapshot_id", snapshotID),
		slog.String("crate", t.CrateName()),
		slog.Int("module_count", meta.ModuleCount),
		slog.Int("edge_count", meta.EdgeCount),
		slog.Int64("compressed_size", meta.CompressedSize))
	return meta, nil
}

// Load retrieves a tree snapshot by its ID.
func (s *TreeStore) Load(ctx context.Context, snapshotID string) (*tree.ModuleTree, *SnapshotMetadata, error) {
	if ctx == nil {
		return nil, nil, fmt.Errorf("ctx must not be nil")
	}
	if snapshotID == "" {
		return nil, nil, fmt.Errorf("snapshot ID must not be empty")
	}
	crateHash, err := s.getCrateHash(snapshotID)
	if err != nil {
		return nil, nil, fmt.Errorf("looking up snapshot %s: %w", snapshotID, err)
	}
	return s.loadByKeys(crateHash, snapshotID)
}

// LoadLatest loads the most recent snapshot for a crate.
func (s *TreeStore) LoadLatest(ctx context.Context, crateName string) (*tree.ModuleTree, *SnapshotMetadata, error) {
	if ctx == nil {
		return nil, nil, fmt.Errorf("ctx must not be nil")
	}
	if crateName == "" {
		return nil, nil, fmt.Errorf("crate name must not be empty")
	}
	crateHash := hashString(crateName)[:16]

	latestKey := keyPrefixSnap + crateHash + keySuffixLatest
	var snapshotID string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(latestKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			snapshotID = string(val)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil, fmt.Errorf("%w: no snapshots for crate %s", ErrSnapshotNotFound, crateName)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("reading latest pointer for %s: %w", crateName, err)
	}
	return s.loadByKeys(crateHash, snapshotID)
}

// List returns snapshot metadata, optionally filtered by crate, newest
// first.
func (s *TreeStore) List(ctx context.Context, crateName string, limit int) ([]*SnapshotMetadata, error) {
	if ctx == nil {
		return nil, fmt.Errorf("ctx must not be nil")
	}
	if limit <= 0 {
		limit = 100
	}
	prefix := keyPrefixSnap
	if crateName != "" {
		prefix += hashString(crateName)[:16] + ":"
	}

	var metas []*SnapshotMetadata
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			key := string(it.Item().Key())
			if len(key) < len(keySuffixMeta) || key[len(key)-len(keySuffixMeta):] != keySuffixMeta {
				continue
			}
			var meta SnapshotMetadata
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &meta)
			}); err != nil {
				return fmt.Errorf("decoding metadata at %s: %w", key, err)
			}
			metas = append(metas, &meta)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(metas, func(i, j int) bool { return metas[i].CreatedAtMilli > metas[j].CreatedAtMilli })
	if len(metas) > limit {
		metas = metas[:limit]
	}
	return metas, nil
}

// ApplyPruning deletes per-node records for everything a pruning pass
// removed, keeping the node keyspace consistent with the tree.
func (s *TreeStore) ApplyPruning(ctx context.Context, crateName string, result *tree.PruningResult) error {
	if ctx == nil {
		return fmt.Errorf("ctx must not be nil")
	}
	if result == nil || result.Empty() {
		return nil
	}
	crateHash := hashString(crateName)[:16]

	err := s.db.Update(func(txn *badger.Txn) error {
		for _, id := range result.ModuleIDs {
			if err := deleteIgnoreMissing(txn, nodeKey(crateHash, id)); err != nil {
				return err
			}
		}
		for _, id := range result.ItemIDs {
			if err := deleteIgnoreMissing(txn, nodeKey(crateHash, id)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("applying pruning for %s: %w", crateName, err)
	}

	s.logger.Info("applied pruning to node records",
		slog.String("crate", crateName),
		slog.Int("modules", len(result.ModuleIDs)),
		slog.Int("items", len(result.ItemIDs)))
	return nil
}

// GetModule fetches one stored module record without loading a snapshot.
func (s *TreeStore) GetModule(ctx context.Context, crateName string, id ir.NodeID) (*ir.Module, error) {
	if ctx == nil {
		return nil, fmt.Errorf("ctx must not be nil")
	}
	crateHash := hashString(crateName)[:16]
	var m ir.Module
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(nodeKey(crateHash, id)))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &m)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: module %s", ErrSnapshotNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *TreeStore) loadByKeys(crateHash, snapshotID string) (*tree.ModuleTree, *SnapshotMetadata, error) {
	dataKey := keyPrefixSnap + crateHash + ":" + snapshotID + keySuffixData
	metaKey := keyPrefixSnap + crateHash + ":" + snapshotID + keySuffixMeta

	var compressedData, metaJSON []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(dataKey))
		if err != nil {
			return err
		}
		compressedData, err = item.ValueCopy(nil)
		if err != nil {
			return err
		}
		item, err = txn.Get([]byte(metaKey))
		if err != nil {
			return err
		}
		metaJSON, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, snapshotID)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("reading snapshot %s: %w", snapshotID, err)
	}

	gr, err := gzip.NewReader(bytes.NewReader(compressedData))
	if err != nil {
		return nil, nil, fmt.Errorf("opening gzip reader: %w", err)
	}
	jsonData, err := io.ReadAll(gr)
	if err != nil {
		return nil, nil, fmt.Errorf("decompressing snapshot: %w", err)
	}
	if err := gr.Close(); err != nil {
		return nil, nil, fmt.Errorf("closing gzip reader: %w", err)
	}

	var st tree.SerializableTree
	if err := json.Unmarshal(jsonData, &st); err != nil {
		return nil, nil, fmt.Errorf("decoding tree: %w", err)
	}
	t, err := tree.FromSerializable(&st)
	if err != nil {
		return nil, nil, fmt.Errorf("reconstructing tree: %w", err)
	}

	var meta SnapshotMetadata
	if err := json.Unmarshal(metaJSON, &meta); err != nil {
		return nil, nil, fmt.Errorf("decoding metadata: %w", err)
	}
	return t, &meta, nil
}

func (s *TreeStore) getCrateHash(snapshotID string) (string, error) {
	var crateHash string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefixSnapIndex + snapshotID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			crateHash = string(val)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", ErrSnapshotNotFound
	}
	return crateHash, err
}

func nodeKey(crateHash string, id ir.NodeID) string {
	return keyPrefixNode + crateHash + ":" + string(id)
}

func deleteIgnoreMissing(txn *badger.Txn, key string) error {
	err := txn.Delete([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	return err
}

func hashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func hashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
