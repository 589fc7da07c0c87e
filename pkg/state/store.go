package state

import (
	"fmt"
	"reflect"
	"sync"
)

// Store is the session-scoped slot store. It is owned by the notebook
// session and passed to whoever needs it; there is no package-level
// default instance.
//
// A Store is safe for concurrent use. The store-level lock only guards
// the slot map; value access goes through per-slot locks.
type Store struct {
	mu    sync.RWMutex
	slots map[string]*slot
}

// slot is the backing storage for one cell value.
//
// rev counts observable changes, not writes: releasing a write lease
// bumps it only when the new value compares unequal to the old one.
// rev is read and written under mu.
type slot struct {
	mu  sync.RWMutex
	val any
	rev uint64

	// typ is the static type recorded at creation. Guarded by the
	// store lock, immutable afterwards.
	typ reflect.Type

	// equal compares two boxed values of the slot's type.
	equal func(a, b any) bool

	// clone snapshots a boxed value so later in-place mutation of the
	// original stays invisible. Reports false when the type holds state
	// a copy cannot isolate.
	clone func(v any) (any, bool)
}

// NewStore creates an empty slot store.
func NewStore() *Store {
	return &Store{
		slots: make(map[string]*slot),
	}
}

// Len returns the number of materialized slots.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.slots)
}

// Keys returns the keys of all materialized slots, in no particular order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.slots))
	for k := range s.slots {
		keys = append(keys, k)
	}
	return keys
}

// lookup returns the slot for key, or nil if it was never created.
func (s *Store) lookup(key string) *slot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.slots[key]
}

// GetOrCreate returns a typed handle to the slot for key, materializing
// the slot with init on first access. Creation is two-phase: the initial
// value is registered if the slot is absent, then the handle is returned.
// Subsequent calls with the same key ignore init and return a handle to
// the existing slot.
//
// Reusing a key with a different type is a programming error and panics.
func GetOrCreate[T any](s *Store, key string, init func() T) Handle[T] {
	want := reflect.TypeOf((*T)(nil)).Elem()

	s.mu.RLock()
	existing := s.slots[key]
	s.mu.RUnlock()

	if existing == nil {
		// Run the initializer outside the store lock; it may be
		// arbitrarily expensive.
		initial := init()

		s.mu.Lock()
		// Re-check: another goroutine may have won the race.
		existing = s.slots[key]
		if existing == nil {
			existing = &slot{
				val: initial,
				typ: want,
				equal: func(a, b any) bool {
					return DefaultEquals(a.(T), b.(T))
				},
				clone: cloneFunc(want),
			}
			s.slots[key] = existing
		}
		s.mu.Unlock()
	}

	if existing.typ != want {
		panic(fmt.Sprintf("state: slot %q holds %v, requested as %v", key, existing.typ, want))
	}

	return Handle[T]{store: s, key: key}
}

// Lookup returns a handle for key without creating the slot. Reads
// through the handle report "not found" until some call to GetOrCreate
// materializes the slot.
//
// Like GetOrCreate, requesting an existing slot as a different type panics.
func Lookup[T any](s *Store, key string) Handle[T] {
	if existing := s.lookup(key); existing != nil {
		want := reflect.TypeOf((*T)(nil)).Elem()
		if existing.typ != want {
			panic(fmt.Sprintf("state: slot %q holds %v, requested as %v", key, existing.typ, want))
		}
	}
	return Handle[T]{store: s, key: key}
}

// DefaultEquals provides type-appropriate equality checking.
// Uses == for common comparable types and reflect.DeepEqual for others.
func DefaultEquals[T any](a, b T) bool {
	switch av := any(a).(type) {
	case int:
		return av == any(b).(int)
	case int8:
		return av == any(b).(int8)
	case int16:
		return av == any(b).(int16)
	case int32:
		return av == any(b).(int32)
	case int64:
		return av == any(b).(int64)
	case uint:
		return av == any(b).(uint)
	case uint8:
		return av == any(b).(uint8)
	case uint16:
		return av == any(b).(uint16)
	case uint32:
		return av == any(b).(uint32)
	case uint64:
		return av == any(b).(uint64)
	case float32:
		return av == any(b).(float32)
	case float64:
		return av == any(b).(float64)
	case string:
		return av == any(b).(string)
	case bool:
		return av == any(b).(bool)
	default:
		// Fall back to reflect.DeepEqual for slices, maps, structs, etc.
		return reflect.DeepEqual(a, b)
	}
}
