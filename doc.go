/*
Package btree provides an in-memory ordered key/payload store, implemented
as a persistent (copy-on-write) B-tree.

Trees are value-like handles: Clone is O(1) and produces an independent tree
that shares all storage with the original. Mutating either tree never
changes what the other one observes; only the nodes on the mutation path are
copied, and only when they are still shared.

The package is intentionally not a finished map/set/list container. It is
the structural core such wrappers project onto: a thin ordered-map facade
would expose Get/Insert/Remove by key, a list facade the positional API, an
ordered-set facade the merge operations.

Feature overview:
  - logarithmic insert/remove/lookup by key, with a tie-break selector
    (First/Last/Any/After) for duplicate keys,
  - logarithmic access, update, insertion and removal by absolute position,
  - logarithmic slicing (by position range or key range) and concatenation,
    sharing subtrees with the source trees,
  - one-pass bottom-up bulk loading from sorted input (Builder, FromSorted),
  - an exclusive batch-editing cursor with amortized O(1) sequential edits,
  - position handles (Index, Iterator) with staleness detection,
  - set algebra (union, distinct union, intersection, subtraction, symmetric
    difference) that splices whole shared or disjoint subtrees instead of
    visiting elements one by one.

All operations are synchronous and single-threaded; the package contains no
locking. Sharing trees across goroutines for reading is safe only as long as
no goroutine mutates them.

# BSD License

Copyright (c) Norbert Pillmayer <norbert@pillmayer.com>

Please refer to the License file for details.
*/
package btree

import (
	"github.com/npillmayer/schuko/gtrace"
	"github.com/npillmayer/schuko/tracing"
)

// tracer traces to the global core-tracer.
func tracer() tracing.Trace {
	return gtrace.CoreTracer
}

func assert(condition bool, msg string) {
	if !condition {
		panic(msg)
	}
}
