package state

// Handle is a copyable, typed capability for one slot. It is a weak
// reference: it identifies the slot by key and grants lookup, never
// exclusive ownership of the value. The zero Handle refers to no slot
// and reports "not found" from every operation.
type Handle[T any] struct {
	store *Store
	key   string
}

// Key returns the slot key this handle refers to.
func (h Handle[T]) Key() string { return h.key }

// Valid reports whether the handle is bound to a store.
func (h Handle[T]) Valid() bool { return h.store != nil }

// slot resolves the backing slot, or nil if the handle is zero or the
// slot was never created.
func (h Handle[T]) slot() *slot {
	if h.store == nil {
		return nil
	}
	return h.store.lookup(h.key)
}

// Read acquires a shared read lease, blocking while a writer holds the
// slot. Returns false if the slot does not exist. The lease must be
// released.
func (h Handle[T]) Read() (*ReadLease[T], bool) {
	sl := h.slot()
	if sl == nil {
		return nil, false
	}
	sl.mu.RLock()
	return &ReadLease[T]{sl: sl}, true
}

// TryRead is the non-blocking variant of Read. Returns false if the slot
// does not exist or the lock is contended.
func (h Handle[T]) TryRead() (*ReadLease[T], bool) {
	sl := h.slot()
	if sl == nil || !sl.mu.TryRLock() {
		return nil, false
	}
	return &ReadLease[T]{sl: sl}, true
}

// Write acquires an exclusive write lease, blocking out all readers and
// writers on this slot. Returns false if the slot does not exist. The
// lease must be released; acquiring the same handle exclusively twice
// without releasing self-deadlocks.
func (h Handle[T]) Write() (*WriteLease[T], bool) {
	sl := h.slot()
	if sl == nil {
		return nil, false
	}
	sl.mu.Lock()
	return newWriteLease[T](sl), true
}

// TryWrite is the non-blocking variant of Write.
func (h Handle[T]) TryWrite() (*WriteLease[T], bool) {
	sl := h.slot()
	if sl == nil || !sl.mu.TryLock() {
		return nil, false
	}
	return newWriteLease[T](sl), true
}

// Snapshot returns an owned copy of the current value. No lock is held
// on return. Reference-typed values are deep-copied where possible, so
// the caller can hold or mutate the result without touching the slot;
// values a copy cannot isolate are returned as-is.
func (h Handle[T]) Snapshot() (T, bool) {
	lease, ok := h.Read()
	if !ok {
		var zero T
		return zero, false
	}
	v := lease.Value()
	if c, ok := lease.sl.clone(any(v)); ok {
		v = c.(T)
	}
	lease.Release()
	return v, true
}

// Revision returns the slot's change counter. The counter advances when
// a released write changed the value, so equal revisions imply an
// unchanged value. It may also advance without an observable change for
// values a snapshot cannot isolate; see WriteLease.
func (h Handle[T]) Revision() (uint64, bool) {
	sl := h.slot()
	if sl == nil {
		return 0, false
	}
	sl.mu.RLock()
	rev := sl.rev
	sl.mu.RUnlock()
	return rev, true
}

// TryRevision is the non-blocking variant of Revision. Returns false if
// the slot does not exist or the lock is contended.
func (h Handle[T]) TryRevision() (uint64, bool) {
	sl := h.slot()
	if sl == nil || !sl.mu.TryRLock() {
		return 0, false
	}
	rev := sl.rev
	sl.mu.RUnlock()
	return rev, true
}

// ReadLease is a shared read lease on one slot. Multiple read leases may
// coexist; none may coexist with a write lease.
type ReadLease[T any] struct {
	sl       *slot
	released bool
}

// Value returns the slot's current value.
func (l *ReadLease[T]) Value() T {
	return l.sl.val.(T)
}

// Release returns the lease. Safe to call more than once.
func (l *ReadLease[T]) Release() {
	if l.released {
		return
	}
	l.released = true
	l.sl.mu.RUnlock()
}

// WriteLease is an exclusive lease on one slot. The caller mutates the
// value through Ptr and publishes it with Release; the slot's revision
// advances only if the released value compares unequal to the previous
// one. The previous value is snapshotted when the lease is acquired, so
// mutating a slice, map, or pointee in place through Ptr is detected
// like any other change. For values no snapshot can isolate (channels,
// funcs, unexported reference fields) the revision advances on every
// release.
type WriteLease[T any] struct {
	sl       *slot
	val      T
	prev     any
	prevOK   bool
	released bool
}

func newWriteLease[T any](sl *slot) *WriteLease[T] {
	prev, ok := sl.clone(sl.val)
	return &WriteLease[T]{
		sl:     sl,
		val:    sl.val.(T),
		prev:   prev,
		prevOK: ok,
	}
}

// Ptr returns a pointer to the working copy of the value. Mutations
// become visible to other handles when the lease is released.
func (l *WriteLease[T]) Ptr() *T {
	return &l.val
}

// Set replaces the working copy wholesale.
func (l *WriteLease[T]) Set(v T) {
	l.val = v
}

// Release publishes the working copy and returns the lease. Safe to call
// more than once.
func (l *WriteLease[T]) Release() {
	if l.released {
		return
	}
	l.released = true

	if !l.prevOK || !l.sl.equal(l.prev, any(l.val)) {
		l.sl.rev++
	}
	l.sl.val = l.val
	l.sl.mu.Unlock()
}
