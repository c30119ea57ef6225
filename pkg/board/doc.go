// Package board provides type-safe Go definitions and Redis schema patterns
// for the corkboard shared-state core. A board is a bounded two-dimensional
// surface holding positioned items (cards); this package owns the
// authoritative item store, the per-item soft locks, and the change bus that
// fans committed mutations out to every connected session.
//
// All Redis keys and channels are namespaced by board ID so that many boards
// can safely coexist on a single Redis server.
//
// Concurrency control is two-layered: every item carries a version stamp and
// all writes are compare-and-set on that version, while short-lived TTL locks
// keep two participants from dragging the same item at once. A lock denial is
// a UX conflict, not a data-integrity one: an unlocked concurrent write is
// still rejected by version mismatch.
package board
