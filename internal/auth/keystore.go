// Civicmap - Geo-tagged Issue Reporting API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/civicmap

package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// KeyStore resolves the shared secret of a modality.
//
// Resolve returns ErrKeyNotFound for unknown modalities. Any other error is
// treated as a persistence failure by the validator.
type KeyStore interface {
	Resolve(ctx context.Context, id ModalityID) (*Key, error)
}

// StaticKeyStore serves keys provisioned in configuration.
type StaticKeyStore struct {
	mu   sync.RWMutex
	keys map[ModalityID]Key
}

// NewStaticKeyStore creates a store holding the given keys.
func NewStaticKeyStore(keys ...Key) *StaticKeyStore {
	s := &StaticKeyStore{keys: make(map[ModalityID]Key, len(keys))}
	for _, k := range keys {
		s.keys[k.ModalityID] = k
	}
	return s
}

// Put adds or replaces a key.
func (s *StaticKeyStore) Put(k Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[k.ModalityID] = k
}

// Len returns the number of provisioned keys.
func (s *StaticKeyStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

// Resolve returns a copy of the key for id.
func (s *StaticKeyStore) Resolve(_ context.Context, id ModalityID) (*Key, error) {
	s.mu.RLock()
	k, ok := s.keys[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrKeyNotFound
	}
	k.Secret = append([]byte(nil), k.Secret...)
	return &k, nil
}

// ChainKeyStore consults each store in turn and returns the first key found.
// Errors other than ErrKeyNotFound stop the search.
type ChainKeyStore []KeyStore

// Resolve implements KeyStore.
func (c ChainKeyStore) Resolve(ctx context.Context, id ModalityID) (*Key, error) {
	for _, s := range c {
		k, err := s.Resolve(ctx, id)
		if err == nil {
			return k, nil
		}
		if !errors.Is(err, ErrKeyNotFound) {
			return nil, err
		}
	}
	return nil, ErrKeyNotFound
}

// CachedKeyStore caches successful resolutions of another KeyStore in a
// ristretto cache. Misses and errors are never cached, so a newly provisioned
// modality is visible on the next request.
type CachedKeyStore struct {
	next  KeyStore
	cache *ristretto.Cache[int64, Key]
	ttl   time.Duration
}

// NewCachedKeyStore wraps next with a TTL cache.
func NewCachedKeyStore(next KeyStore, ttl time.Duration) (*CachedKeyStore, error) {
	if next == nil {
		return nil, errors.New("cached key store: next store is nil")
	}
	cache, err := ristretto.NewCache(&ristretto.Config[int64, Key]{
		NumCounters: 10_000,
		MaxCost:     1_000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create key cache: %w", err)
	}
	return &CachedKeyStore{next: next, cache: cache, ttl: ttl}, nil
}

// Resolve implements KeyStore.
func (c *CachedKeyStore) Resolve(ctx context.Context, id ModalityID) (*Key, error) {
	if k, ok := c.cache.Get(int64(id)); ok {
		KeyStoreLookupsTotal.WithLabelValues("hit").Inc()
		k.Secret = append([]byte(nil), k.Secret...)
		return &k, nil
	}

	k, err := c.next.Resolve(ctx, id)
	if err != nil {
		KeyStoreLookupsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	KeyStoreLookupsTotal.WithLabelValues("miss").Inc()

	stored := *k
	stored.Secret = append([]byte(nil), k.Secret...)
	c.cache.SetWithTTL(int64(id), stored, 1, c.ttl)
	return k, nil
}

// Invalidate drops a cached key, e.g. after rotation.
func (c *CachedKeyStore) Invalidate(id ModalityID) {
	c.cache.Del(int64(id))
}

// Wait blocks until buffered cache writes are applied.
func (c *CachedKeyStore) Wait() {
	c.cache.Wait()
}

// Close releases the cache.
func (c *CachedKeyStore) Close() {
	c.cache.Close()
}
