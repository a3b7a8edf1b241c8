// FedMF - Federated Matrix-Factorization Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fedmf

package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/fedmf/internal/federated"
	"github.com/tomtom215/fedmf/internal/metrics"
)

// Key prefixes for BadgerDB storage
const (
	modelKeyPrefix = "model:"
	userKeyPrefix  = "user:"
	roundKeyPrefix = "round:"

	itemsSuffix   = ":items"
	vocabSuffix   = ":vocab"
	metaSuffix    = ":meta"
	factorsSuffix = ":factors"
)

// modelMeta is stored next to the matrix to version it.
type modelMeta struct {
	Version   uint64    `json:"version"`
	Dim       int       `json:"dim"`
	Rows      int       `json:"rows"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Options configures a BadgerStore.
type Options struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps everything in memory (tests and simulations).
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool
}

// BadgerStore implements Store on BadgerDB.
type BadgerStore struct {
	db *badger.DB
}

// Open opens (or creates) a BadgerDB database for factor storage.
func Open(opts Options) (*BadgerStore, error) {
	bopts := badger.DefaultOptions(opts.Path).
		WithInMemory(opts.InMemory).
		WithSyncWrites(opts.SyncWrites).
		WithLogger(nil)
	if opts.InMemory {
		bopts.Dir = ""
		bopts.ValueDir = ""
	}

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open factor store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Close closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func modelKey(scope, suffix string) []byte {
	return []byte(modelKeyPrefix + scope + suffix)
}

func userKey(userID string) []byte {
	return []byte(userKeyPrefix + userID + factorsSuffix)
}

func roundPrefix(roundID string) []byte {
	return []byte(roundKeyPrefix + roundID + ":delta:")
}

// getJSON reads and decodes key inside txn, mapping a missing key to ErrNotFound.
func getJSON(txn *badger.Txn, key []byte, dst interface{}) error {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return federated.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", key, err)
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, dst)
	})
}

// LoadModel implements Store.
func (s *BadgerStore) LoadModel(ctx context.Context, scope string) (*ModelSnapshot, error) {
	start := time.Now()
	snap := &ModelSnapshot{Scope: scope, Vocabulary: federated.NewVocabulary()}

	err := s.db.View(func(txn *badger.Txn) error {
		var meta modelMeta
		if err := getJSON(txn, modelKey(scope, metaSuffix), &meta); err != nil {
			return err
		}
		if err := getJSON(txn, modelKey(scope, itemsSuffix), &snap.Items); err != nil {
			return err
		}
		if err := getJSON(txn, modelKey(scope, vocabSuffix), snap.Vocabulary); err != nil {
			return err
		}
		snap.Version = meta.Version
		snap.UpdatedAt = meta.UpdatedAt
		return nil
	})
	metrics.RecordStoreOperation("load_model", time.Since(start), ignoreNotFound(err))
	if err != nil {
		return nil, fmt.Errorf("load model %q: %w", scope, err)
	}
	return snap, nil
}

// PersistModel implements Store.
func (s *BadgerStore) PersistModel(ctx context.Context, snap *ModelSnapshot) error {
	if snap == nil || snap.Vocabulary == nil {
		return fmt.Errorf("%w: nil model snapshot", federated.ErrConfiguration)
	}
	if err := snap.Items.Validate(); err != nil {
		return err
	}
	if snap.Items.Len() < snap.Vocabulary.Len() {
		return fmt.Errorf("%w: %d item rows for %d vocabulary titles",
			federated.ErrConfiguration, snap.Items.Len(), snap.Vocabulary.Len())
	}

	start := time.Now()
	updatedAt := snap.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	itemsData, err := json.Marshal(snap.Items)
	if err != nil {
		return fmt.Errorf("marshal item factors: %w", err)
	}
	vocabData, err := json.Marshal(snap.Vocabulary)
	if err != nil {
		return fmt.Errorf("marshal vocabulary: %w", err)
	}
	metaData, err := json.Marshal(modelMeta{
		Version:   snap.Version,
		Dim:       snap.Items.Dim,
		Rows:      snap.Items.Len(),
		UpdatedAt: updatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal model meta: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(modelKey(snap.Scope, itemsSuffix), itemsData); err != nil {
			return fmt.Errorf("set item factors: %w", err)
		}
		if err := txn.Set(modelKey(snap.Scope, vocabSuffix), vocabData); err != nil {
			return fmt.Errorf("set vocabulary: %w", err)
		}
		if err := txn.Set(modelKey(snap.Scope, metaSuffix), metaData); err != nil {
			return fmt.Errorf("set model meta: %w", err)
		}
		return nil
	})
	metrics.RecordStoreOperation("persist_model", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("persist model %q: %w", snap.Scope, err)
	}
	snap.UpdatedAt = updatedAt
	return nil
}

// LoadItemFactors implements Store.
func (s *BadgerStore) LoadItemFactors(ctx context.Context, scope string) (federated.ItemFactorMatrix, error) {
	var m federated.ItemFactorMatrix
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, modelKey(scope, itemsSuffix), &m)
	})
	if err != nil {
		return federated.ItemFactorMatrix{}, fmt.Errorf("load item factors %q: %w", scope, err)
	}
	return m, nil
}

// LoadVocabulary implements Store.
func (s *BadgerStore) LoadVocabulary(ctx context.Context, scope string) (*federated.Vocabulary, error) {
	v := federated.NewVocabulary()
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, modelKey(scope, vocabSuffix), v)
	})
	if err != nil {
		return nil, fmt.Errorf("load vocabulary %q: %w", scope, err)
	}
	return v, nil
}

// LoadUserFactors implements Store.
func (s *BadgerStore) LoadUserFactors(ctx context.Context, userID string) (federated.Vector, error) {
	start := time.Now()
	var v federated.Vector
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, userKey(userID), &v)
	})
	metrics.RecordStoreOperation("load_user", time.Since(start), ignoreNotFound(err))
	if err != nil {
		return nil, fmt.Errorf("load user factors %q: %w", userID, err)
	}
	return v, nil
}

// PersistUserFactors implements Store.
func (s *BadgerStore) PersistUserFactors(ctx context.Context, userID string, v federated.Vector) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal user factors: %w", err)
	}

	start := time.Now()
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(userKey(userID), data)
	})
	metrics.RecordStoreOperation("persist_user", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("persist user factors %q: %w", userID, err)
	}
	return nil
}

// SaveRoundDelta implements Store.
func (s *BadgerStore) SaveRoundDelta(ctx context.Context, roundID string, rd RoundDelta) error {
	data, err := json.Marshal(rd)
	if err != nil {
		return fmt.Errorf("marshal round delta: %w", err)
	}

	key := append(roundPrefix(roundID), rd.ParticipantID...)
	start := time.Now()
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
	metrics.RecordStoreOperation("save_round_delta", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("save round delta %s/%s: %w", roundID, rd.ParticipantID, err)
	}
	return nil
}

// LoadRoundDeltas implements Store.
func (s *BadgerStore) LoadRoundDeltas(ctx context.Context, roundID string) ([]RoundDelta, error) {
	prefix := roundPrefix(roundID)
	var out []RoundDelta

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rd RoundDelta
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rd)
			}); err != nil {
				return fmt.Errorf("decode round delta %s: %w", it.Item().Key(), err)
			}
			out = append(out, rd)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load round deltas %s: %w", roundID, err)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ParticipantID < out[j].ParticipantID })
	return out, nil
}

// DeleteRound implements Store.
func (s *BadgerStore) DeleteRound(ctx context.Context, roundID string) error {
	prefix := roundPrefix(roundID)
	return s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)

		var keys [][]byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		it.Close()

		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return fmt.Errorf("delete %s: %w", k, err)
			}
		}
		return nil
	})
}

// ignoreNotFound keeps expected misses out of the error metrics.
func ignoreNotFound(err error) error {
	if errors.Is(err, federated.ErrNotFound) {
		return nil
	}
	return err
}

var _ Store = (*BadgerStore)(nil)
