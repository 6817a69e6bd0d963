package btree

// Index is a lightweight read-only position handle. It remembers the
// descent path to an element, so stepping to a neighbor is amortized O(1)
// where re-descending from the root would be O(log n).
//
// An index is only valid for the tree state it was created from: any
// mutation of the tree invalidates all of its indexes, and using a stale
// index panics.
type Index[K, V any] struct {
	tree    *Tree[K, V]
	version uint64
	path    []indexFrame[K, V]
	offset  int
}

type indexFrame[K, V any] struct {
	n    *node[K, V]
	slot int
	base int
}

// StartIndex returns an index on the first element, or the end index for
// an empty tree.
func (t *Tree[K, V]) StartIndex() *Index[K, V] {
	return t.IndexAt(0)
}

// EndIndex returns the index past the last element.
func (t *Tree[K, V]) EndIndex() *Index[K, V] {
	return t.IndexAt(t.Count())
}

// IndexAt returns an index at an absolute position; pos may equal Count
// for the end index.
func (t *Tree[K, V]) IndexAt(pos int) *Index[K, V] {
	cnt := t.Count()
	assert(pos >= 0 && pos <= cnt, "index position out of range")
	ix := &Index[K, V]{tree: t, version: t.version, offset: pos}
	if pos < cnt {
		ix.seek(pos)
	}
	return ix
}

// Offset returns the index's absolute position; Count means the end index.
func (ix *Index[K, V]) Offset() int {
	ix.ensureFresh()
	return ix.offset
}

// IsAtEnd reports whether the index is past the last element.
func (ix *Index[K, V]) IsAtEnd() bool {
	ix.ensureFresh()
	return ix.offset == ix.tree.root.countOrZero()
}

// Element returns the element at the index, or false for the end index.
func (ix *Index[K, V]) Element() (Element[K, V], bool) {
	ix.ensureFresh()
	if ix.offset == ix.tree.root.countOrZero() {
		var zero Element[K, V]
		return zero, false
	}
	f := ix.top()
	return f.n.elements[f.slot], true
}

// Next advances the index and reports whether it landed on an element
// (false once it reaches the end index).
func (ix *Index[K, V]) Next() bool {
	ix.ensureFresh()
	cnt := ix.tree.root.countOrZero()
	if ix.offset >= cnt {
		return false
	}
	ix.offset++
	if ix.offset == cnt {
		ix.path = ix.path[:0]
		return false
	}
	if f := ix.top(); f.n.isLeaf() && f.slot+1 < len(f.n.elements) {
		f.slot++
		return true
	}
	ix.seek(ix.offset)
	return true
}

// Prev retreats the index and reports whether it moved.
func (ix *Index[K, V]) Prev() bool {
	ix.ensureFresh()
	if ix.offset == 0 {
		return false
	}
	ix.offset--
	if len(ix.path) > 0 {
		if f := ix.top(); f.n.isLeaf() && f.slot > 0 {
			f.slot--
			return true
		}
	}
	ix.seek(ix.offset)
	return true
}

// Advanced returns a new index displaced by a (possibly negative) number
// of positions.
func (ix *Index[K, V]) Advanced(by int) *Index[K, V] {
	ix.ensureFresh()
	return ix.tree.IndexAt(ix.offset + by)
}

// DistanceTo returns the number of positions from the receiver to another
// index of the same tree state; the result is negative when other lies
// before the receiver.
func (ix *Index[K, V]) DistanceTo(other *Index[K, V]) int {
	ix.ensureFresh()
	other.ensureFresh()
	assert(ix.tree == other.tree, "indexes of different trees are unrelated")
	return other.offset - ix.offset
}

// Subtree returns a new tree holding the elements of the index range
// [from, to). Both indexes must belong to the receiver.
func (t *Tree[K, V]) Subtree(from, to *Index[K, V]) *Tree[K, V] {
	from.ensureFresh()
	to.ensureFresh()
	assert(from.tree == t && to.tree == t, "subtree bounded by indexes of a different tree")
	return t.SubtreeByOffsets(from.offset, to.offset)
}

func (ix *Index[K, V]) ensureFresh() {
	assert(!ix.tree.detached, "index into a tree that is detached by a cursor")
	assert(ix.version == ix.tree.version, "stale index: the tree has been mutated")
}

func (ix *Index[K, V]) top() *indexFrame[K, V] {
	return &ix.path[len(ix.path)-1]
}

// seek repositions the path onto the element at pos, ascending only as far
// as necessary.
func (ix *Index[K, V]) seek(pos int) {
	for len(ix.path) > 0 {
		f := ix.top()
		if pos >= f.base && pos < f.base+f.n.count {
			break
		}
		ix.path = ix.path[:len(ix.path)-1]
	}
	if len(ix.path) == 0 {
		ix.path = append(ix.path, indexFrame[K, V]{n: ix.tree.root})
	}
	for {
		f := ix.top()
		slot, inner, onElement := f.n.positionSlot(pos - f.base)
		f.slot = slot
		if onElement {
			return
		}
		ix.path = append(ix.path, indexFrame[K, V]{n: f.n.children[slot], base: pos - inner})
	}
}

// countOrZero lets the empty tree (nil root) pass as count 0.
func (n *node[K, V]) countOrZero() int {
	if n == nil {
		return 0
	}
	return n.count
}

// Iterator walks a tree's elements in ascending key order. Like an Index it
// is invalidated by any mutation of the tree.
type Iterator[K, V any] struct {
	ix *Index[K, V]
}

// Iterator returns an iterator positioned before the first element.
func (t *Tree[K, V]) Iterator() *Iterator[K, V] {
	return &Iterator[K, V]{ix: t.StartIndex()}
}

// Next returns the next element, or false when the elements are exhausted.
func (it *Iterator[K, V]) Next() (Element[K, V], bool) {
	e, ok := it.ix.Element()
	if ok {
		it.ix.Next()
	}
	return e, ok
}
