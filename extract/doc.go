// Package extract holds the per-record callbacks of the dump passes.
//
// The identifier pass indexes every corpus-linked record together with the
// identifiers its claims reference. The entity pass stores a normalized,
// single-language copy of every record the identifier pass indexed. The
// label pass keeps the labels and descriptions of every record in all
// languages, so referenced identifiers outside the corpus can be named.
//
// All passes are ingestion.Handler values and run concurrently on all
// pipeline workers, so they hold no mutable state.
package extract
