// Package storage persists dated price snapshots.
//
// A snapshot maps entity id to price and is keyed by an identifier whose
// lexicographic order equals chronological order (ISO date). Stores are
// append-only: a key is written once and never modified. Reads ask for the
// most recent snapshot strictly before a key, so the snapshot written by the
// current run is never used as its own baseline.
package storage
