package spider

import (
	"context"
	"sync"

	"github.com/willf/bloom"
)

// Deduper represents a URL de-duplicator.
//
// The engine calls the deduper with the keys of every batch
// it is about to enqueue, so it is the single point that decides
// whether a URL was seen before.
type Deduper interface {
	// Dedupe de-duplicates the given keys.
	//
	// The method returns the keys that were not seen yet
	// and marks them as seen, it must be thread-safe and
	// atomic: when two callers race with the same key exactly
	// one of them receives it.
	//
	// Duplicates within the same call are returned once.
	Dedupe(ctx context.Context, keys []string) ([]string, error)
}

// Dedupe implements an in-memory deduper.
type deduper struct {
	m *sync.Map
}

// DedupeMap returns a new deduper backed by sync.Map.
func DedupeMap() Deduper {
	return &deduper{new(sync.Map)}
}

// Dedupe implementation.
func (d *deduper) Dedupe(ctx context.Context, keys []string) ([]string, error) {
	var ret = make([]string, 0, len(keys))

	for _, k := range keys {
		if _, exists := d.m.LoadOrStore(k, nil); !exists {
			ret = append(ret, k)
		}
	}

	return ret, nil
}

// Dedupebf implements a bloom filter deduper.
type dedupebf struct {
	filter *bloom.BloomFilter
	mtx    sync.Mutex
}

// DedupeBF returns a new deduper backed by a bloom filter
// of `m` bits and `k` hash functions.
//
// The deduper uses constant memory, but false positives make
// it drop a small fraction of URLs that were never seen.
func DedupeBF(m, k uint) Deduper {
	return &dedupebf{
		filter: bloom.New(m, k),
	}
}

// Dedupe implementation.
func (d *dedupebf) Dedupe(ctx context.Context, keys []string) ([]string, error) {
	var ret = make([]string, 0, len(keys))

	d.mtx.Lock()
	defer d.mtx.Unlock()

	for _, k := range keys {
		if !d.filter.TestAndAdd([]byte(k)) {
			ret = append(ret, k)
		}
	}

	return ret, nil
}

// Set implements a concurrent set of URLs.
type set struct {
	m sync.Map
}

// Add adds k to the set.
func (s *set) add(k string) {
	s.m.Store(k, nil)
}

// Has returns true if k is in the set.
func (s *set) has(k string) bool {
	_, ok := s.m.Load(k)
	return ok
}
