// Package state provides the slot store backing notebook cells.
//
// A Store holds one slot per cell key. Slots are created lazily on first
// access, are type-tagged, and live for the session; they are never
// destroyed individually. Each slot has its own shared-read/exclusive-write
// lock, so readers of one slot never contend with writers of another.
// There is no cross-slot atomicity: a consumer reading two related slots
// may observe a torn combination.
//
// Handles are copyable, typed capabilities. They grant lookup, never
// ownership: reading through a handle whose slot does not exist yields
// "not found" rather than an error.
//
// Example:
//
//	store := state.NewStore()
//	count := state.GetOrCreate(store, "count", func() int { return 0 })
//
//	if lease, ok := count.Write(); ok {
//	    *lease.Ptr()++
//	    lease.Release()
//	}
package state
