package stablekv

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"orbit-station/internal/ids"
)

// UniqueIndex maps an index key to a single entity id (spec.md §4.1: e.g.
// UserIdentity(Principal) -> UserId, unique). Backed by its own Store, as
// spec.md requires ("Indices live in dedicated stable maps").
type UniqueIndex[IK comparable] struct {
	store *Store[IK, ids.ID]
}

func OpenUniqueIndex[IK comparable](dir, name string, log *logrus.Entry) (*UniqueIndex[IK], error) {
	s, err := Open[IK, ids.ID](dir, name, log)
	if err != nil {
		return nil, err
	}
	return &UniqueIndex[IK]{store: s}, nil
}

func (idx *UniqueIndex[IK]) Lookup(key IK) (ids.ID, bool) { return idx.store.Get(key) }

// Insert records key -> id, erroring if key is already claimed by a
// different id (uniqueness, spec.md §4.1).
func (idx *UniqueIndex[IK]) Insert(key IK, id ids.ID) error {
	if existing, ok := idx.store.Get(key); ok && existing != id {
		return fmt.Errorf("stablekv: unique index violation for key %v", key)
	}
	_, _, err := idx.store.Insert(key, id)
	return err
}

func (idx *UniqueIndex[IK]) Remove(key IK) error {
	_, _, err := idx.store.Remove(key)
	return err
}

func (idx *UniqueIndex[IK]) Len() int { return idx.store.Len() }

// NonUniqueIndex maps an index key to a set of entity ids (spec.md §4.1:
// e.g. UserStatusGroup(status, group) -> UserId, non-unique).
type NonUniqueIndex[IK comparable] struct {
	mu    sync.RWMutex
	store *Store[IK, map[ids.ID]struct{}]
}

func OpenNonUniqueIndex[IK comparable](dir, name string, log *logrus.Entry) (*NonUniqueIndex[IK], error) {
	s, err := Open[IK, map[ids.ID]struct{}](dir, name, log)
	if err != nil {
		return nil, err
	}
	return &NonUniqueIndex[IK]{store: s}, nil
}

func (idx *NonUniqueIndex[IK]) Insert(key IK, id ids.ID) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	set, _ := idx.store.Get(key)
	if set == nil {
		set = make(map[ids.ID]struct{})
	} else {
		// copy so concurrent readers of the old set from Lookup() aren't mutated
		cp := make(map[ids.ID]struct{}, len(set)+1)
		for k := range set {
			cp[k] = struct{}{}
		}
		set = cp
	}
	set[id] = struct{}{}
	_, _, err := idx.store.Insert(key, set)
	return err
}

func (idx *NonUniqueIndex[IK]) Remove(key IK, id ids.ID) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	set, ok := idx.store.Get(key)
	if !ok {
		return nil
	}
	cp := make(map[ids.ID]struct{}, len(set))
	for k := range set {
		if k != id {
			cp[k] = struct{}{}
		}
	}
	if len(cp) == 0 {
		_, _, err := idx.store.Remove(key)
		return err
	}
	_, _, err := idx.store.Insert(key, cp)
	return err
}

func (idx *NonUniqueIndex[IK]) Lookup(key IK) []ids.ID {
	set, _ := idx.store.Get(key)
	out := make([]ids.ID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// RangeEntry is one (sort key, id) pair in a RangeIndex scan result.
type RangeEntry[IK any] struct {
	Key IK
	ID  ids.ID
}

// RangeIndex supports ordered range scans over a composite sort key
// (spec.md §4.1: RequestSortKey(timestamp, id), RequestExpiration(timestamp,
// id), both "non-unique, range-scannable"). Entries are kept in an
// in-memory sorted slice rebuilt from the backing Store on open; Insert
// re-sorts the whole slice each time it adds a new entry, and Remove
// deletes the entry in place.
type RangeIndex[IK comparable] struct {
	mu      sync.RWMutex
	store   *Store[string, RangeEntry[IK]]
	less    func(a, b IK) bool
	keyStr  func(IK) string
	sorted  []string // keys into store, kept sorted by less(decoded key)
}

func OpenRangeIndex[IK comparable](dir, name string, log *logrus.Entry, keyStr func(IK) string, less func(a, b IK) bool) (*RangeIndex[IK], error) {
	s, err := Open[string, RangeEntry[IK]](dir, name, log)
	if err != nil {
		return nil, err
	}
	idx := &RangeIndex[IK]{store: s, less: less, keyStr: keyStr}
	for _, k := range s.Keys() {
		idx.sorted = append(idx.sorted, k)
	}
	idx.resort()
	return idx, nil
}

func (idx *RangeIndex[IK]) resort() {
	sort.Slice(idx.sorted, func(i, j int) bool {
		ei, _ := idx.store.Get(idx.sorted[i])
		ej, _ := idx.store.Get(idx.sorted[j])
		if ei.Key == ej.Key {
			return idx.sorted[i] < idx.sorted[j]
		}
		return idx.less(ei.Key, ej.Key)
	})
}

func (idx *RangeIndex[IK]) Insert(key IK, id ids.ID) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	storeKey := idx.keyStr(key) + ":" + id.String()
	if _, _, err := idx.store.Insert(storeKey, RangeEntry[IK]{Key: key, ID: id}); err != nil {
		return err
	}
	if !idx.contains(storeKey) {
		idx.sorted = append(idx.sorted, storeKey)
		idx.resort()
	}
	return nil
}

func (idx *RangeIndex[IK]) contains(storeKey string) bool {
	for _, k := range idx.sorted {
		if k == storeKey {
			return true
		}
	}
	return false
}

func (idx *RangeIndex[IK]) Remove(key IK, id ids.ID) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	storeKey := idx.keyStr(key) + ":" + id.String()
	if _, _, err := idx.store.Remove(storeKey); err != nil {
		return err
	}
	for i, k := range idx.sorted {
		if k == storeKey {
			idx.sorted = append(idx.sorted[:i], idx.sorted[i+1:]...)
			break
		}
	}
	return nil
}

// ScanUpTo returns every (key, id) pair with Key <= upTo, in ascending
// order, stopping as soon as the bound is exceeded — this is what lets the
// expiration sweeper (spec.md §4.5/§9) "use a range scan ... to process
// only due requests, not a full list".
func (idx *RangeIndex[IK]) ScanUpTo(upTo IK) []RangeEntry[IK] {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	var out []RangeEntry[IK]
	for _, k := range idx.sorted {
		e, ok := idx.store.Get(k)
		if !ok {
			continue
		}
		if idx.less(upTo, e.Key) {
			break
		}
		out = append(out, e)
	}
	return out
}

// ScanAll returns every entry in ascending key order.
func (idx *RangeIndex[IK]) ScanAll() []RangeEntry[IK] {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]RangeEntry[IK], 0, len(idx.sorted))
	for _, k := range idx.sorted {
		if e, ok := idx.store.Get(k); ok {
			out = append(out, e)
		}
	}
	return out
}
