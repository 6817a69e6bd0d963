package btree

import "unsafe"

// Tree is an ordered sequence of key/payload elements, stored as a
// copy-on-write B-tree. The zero value is not usable; create trees with New
// or FromSorted.
//
// Trees behave like values: Clone is O(1), and a clone and its original
// never observe each other's subsequent mutations. Slicing and merge
// operations likewise return trees that share subtrees with their operands
// without entangling them.
//
// Lookup, insertion and removal are offered both by key (with a Selector
// for duplicate keys) and by absolute position. Elements with equal keys
// keep their insertion order.
type Tree[K, V any] struct {
	cfg      Config[K]
	order    int
	owner    *ownership
	root     *node[K, V]
	version  uint64
	detached bool
}

// New creates an empty tree from a configuration.
func New[K, V any](cfg Config[K]) (*Tree[K, V], error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	order := cfg.Order
	if order == 0 {
		order = defaultOrder[K, V]()
		tracer().Debugf("btree: derived default order %d", order)
	}
	return &Tree[K, V]{cfg: cfg, order: order, owner: newOwnership()}, nil
}

// defaultOrder derives a branching factor from the element size, targeting
// a fixed per-node memory footprint.
func defaultOrder[K, V any]() int {
	var e Element[K, V]
	size := int(unsafe.Sizeof(e))
	if size < 1 {
		size = 1
	}
	order := targetNodeFootprint / size
	if order < 4 {
		order = 4
	}
	if order > MaxOrder {
		order = MaxOrder
	}
	return order
}

// FromUnsorted builds a tree by inserting the elements one by one; the
// input order is arbitrary, elements with equal keys keep their arrival
// order.
func FromUnsorted[K, V any](cfg Config[K], elements []Element[K, V]) (*Tree[K, V], error) {
	t, err := New[K, V](cfg)
	if err != nil {
		return nil, err
	}
	for _, e := range elements {
		t.Insert(e.Key, e.Payload, Last)
	}
	return t, nil
}

// Clone returns an independent tree with the same content, in O(1). Both
// handles give up exclusive ownership of the shared nodes, so later
// mutations of either side copy their mutation path instead of writing
// into shared storage.
func (t *Tree[K, V]) Clone() *Tree[K, V] {
	t.ensureAttached()
	t.owner = newOwnership()
	return &Tree[K, V]{cfg: t.cfg, order: t.order, owner: newOwnership(), root: t.root}
}

// Count returns the number of elements.
func (t *Tree[K, V]) Count() int {
	t.ensureAttached()
	if t.root == nil {
		return 0
	}
	return t.root.count
}

// IsEmpty reports whether the tree holds no elements.
func (t *Tree[K, V]) IsEmpty() bool { return t.Count() == 0 }

// Order returns the tree's branching factor.
func (t *Tree[K, V]) Order() int { return t.order }

// Height returns the number of node levels; an empty tree has height 0.
func (t *Tree[K, V]) Height() int {
	t.ensureAttached()
	if t.root == nil {
		return 0
	}
	return t.root.depth + 1
}

// First returns the element with the smallest key, or false for an empty
// tree.
func (t *Tree[K, V]) First() (Element[K, V], bool) {
	t.ensureAttached()
	if t.root == nil {
		var zero Element[K, V]
		return zero, false
	}
	return t.root.firstElement(), true
}

// Last returns the element with the greatest key, or false for an empty
// tree.
func (t *Tree[K, V]) Last() (Element[K, V], bool) {
	t.ensureAttached()
	if t.root == nil {
		var zero Element[K, V]
		return zero, false
	}
	return t.root.lastElement(), true
}

// Get returns the payload of the element the selector picks for key.
func (t *Tree[K, V]) Get(key K, sel Selector) (V, bool) {
	var zero V
	e, ok := t.find(key, sel)
	if !ok {
		return zero, false
	}
	return e.Payload, true
}

// Contains reports whether at least one element has the given key.
func (t *Tree[K, V]) Contains(key K) bool {
	_, ok := t.find(key, Any)
	return ok
}

// find descends for key, keeping the best candidate seen so far: for First,
// Last and After a match in an inner node may still be beaten by an element
// deeper down on the descend side.
func (t *Tree[K, V]) find(key K, sel Selector) (Element[K, V], bool) {
	t.ensureAttached()
	var best Element[K, V]
	found := false
	cmp := t.cfg.Compare
	for n := t.root; n != nil; {
		match, descend := n.slotOf(key, sel, cmp)
		if match >= 0 {
			best, found = n.elements[match], true
			if sel == Any {
				return best, true
			}
		}
		if n.isLeaf() {
			break
		}
		n = n.children[descend]
	}
	return best, found
}

// Insert adds an element. Among equal keys, First places the new element
// before all existing ones and the other selectors after them, so Last,
// Any and After preserve insertion order for duplicates.
func (t *Tree[K, V]) Insert(key K, payload V, sel Selector) {
	t.ensureAttached()
	e := Element[K, V]{Key: key, Payload: payload}
	if t.root == nil {
		t.root = newLeaf(t.order, t.owner, []Element[K, V]{e})
		t.version++
		return
	}
	root := t.root.isolatedFor(t.owner)
	if sp := insertKeyRec(root, e, sel, t.cfg.Compare, t.owner); sp != nil {
		root = growRoot(root, *sp, t.owner)
	}
	t.root = root
	t.version++
}

func insertKeyRec[K, V any](n *node[K, V], e Element[K, V], sel Selector, cmp func(K, K) int, ctx *ownership) *splinter[K, V] {
	n.count++
	var slot int
	if sel == First {
		slot = n.lowerBound(e.Key, cmp)
	} else {
		slot = n.upperBound(e.Key, cmp)
	}
	if n.isLeaf() {
		n.elements = insertAt(n.elements, slot, e)
	} else {
		child := n.children[slot].isolatedFor(ctx)
		n.children[slot] = child
		if sp := insertKeyRec(child, e, sel, cmp, ctx); sp != nil {
			n.elements = insertAt(n.elements, slot, sp.separator)
			n.children = insertAt(n.children, slot+1, sp.sibling)
		}
	}
	if len(n.elements) > n.maxElements() {
		sp := n.split()
		return &sp
	}
	return nil
}

// Remove deletes the element the selector picks for key and returns its
// payload. It returns false and leaves the tree untouched when no element
// matches.
func (t *Tree[K, V]) Remove(key K, sel Selector) (V, bool) {
	var zero V
	if _, ok := t.find(key, sel); !ok {
		return zero, false
	}
	root := t.root.isolatedFor(t.owner)
	removed := removeKeyRec(root, key, sel, t.cfg.Compare, t.owner)
	t.root = normalizeRootNode(root)
	t.version++
	return removed.Payload, true
}

// removeKeyRec removes the selector's element for key from a subtree known
// to contain it.
func removeKeyRec[K, V any](n *node[K, V], key K, sel Selector, cmp func(K, K) int, ctx *ownership) Element[K, V] {
	n.count--
	match, descend := n.slotOf(key, sel, cmp)
	if n.isLeaf() {
		assert(match >= 0, "remove: matched element vanished during descent")
		e := n.elements[match]
		n.elements = removeRange(n.elements, match, match+1)
		return e
	}
	if match >= 0 && matchIsFinal(n, key, sel, cmp, match) {
		// replace the matched separator with its in-order predecessor
		e := n.elements[match]
		child := n.children[match].isolatedFor(ctx)
		n.children[match] = child
		n.elements[match] = removeMaxNode(child, ctx)
		if child.isDeficient() {
			n.fixDeficiency(match, ctx)
		}
		return e
	}
	child := n.children[descend].isolatedFor(ctx)
	n.children[descend] = child
	e := removeKeyRec(child, key, sel, cmp, ctx)
	if child.isDeficient() {
		n.fixDeficiency(descend, ctx)
	}
	return e
}

// matchIsFinal reports whether a separator matched in an inner node is the
// element the selector designates, or whether a better candidate may still
// live on the descend side.
func matchIsFinal[K, V any](n *node[K, V], key K, sel Selector, cmp func(K, K) int, match int) bool {
	switch sel {
	case First:
		return cmp(n.children[match].lastElement().Key, key) < 0
	case Last:
		return cmp(n.children[match+1].firstElement().Key, key) > 0
	case After:
		return cmp(n.children[match].lastElement().Key, key) <= 0
	}
	return true
}

// ElementAt returns the element at an absolute position, 0-based in key
// order. The position must be in range.
func (t *Tree[K, V]) ElementAt(pos int) Element[K, V] {
	assert(pos >= 0 && pos < t.Count(), "element position out of range")
	n := t.root
	for {
		slot, within, onElement := n.positionSlot(pos)
		if onElement {
			return n.elements[slot]
		}
		n, pos = n.children[slot], within
	}
}

// SetPayloadAt replaces the payload of the element at a position, keeping
// its key.
func (t *Tree[K, V]) SetPayloadAt(pos int, payload V) {
	assert(pos >= 0 && pos < t.Count(), "element position out of range")
	root := t.root.isolatedFor(t.owner)
	t.root = root
	for n := root; ; {
		slot, within, onElement := n.positionSlot(pos)
		if onElement {
			n.elements[slot].Payload = payload
			break
		}
		child := n.children[slot].isolatedFor(t.owner)
		n.children[slot] = child
		n, pos = child, within
	}
	t.version++
}

// InsertAt inserts an element before the element at pos; pos may equal
// Count to append. Keeping the key order intact at that position is the
// caller's responsibility.
func (t *Tree[K, V]) InsertAt(pos int, key K, payload V) {
	cnt := t.Count()
	assert(pos >= 0 && pos <= cnt, "insert position out of range")
	e := Element[K, V]{Key: key, Payload: payload}
	if t.root == nil {
		t.root = newLeaf(t.order, t.owner, []Element[K, V]{e})
	} else {
		t.root = insertAtNode(t.root, pos, e, t.owner)
	}
	t.version++
}

// RemoveAt deletes and returns the element at a position.
func (t *Tree[K, V]) RemoveAt(pos int) Element[K, V] {
	assert(pos >= 0 && pos < t.Count(), "remove position out of range")
	root := t.root.isolatedFor(t.owner)
	e := removeAtRec(root, pos, t.owner)
	t.root = normalizeRootNode(root)
	t.version++
	return e
}

func removeAtRec[K, V any](n *node[K, V], pos int, ctx *ownership) Element[K, V] {
	slot, within, onElement := n.positionSlot(pos)
	n.count--
	if n.isLeaf() {
		e := n.elements[slot]
		n.elements = removeRange(n.elements, slot, slot+1)
		return e
	}
	if onElement {
		e := n.elements[slot]
		child := n.children[slot].isolatedFor(ctx)
		n.children[slot] = child
		n.elements[slot] = removeMaxNode(child, ctx)
		if child.isDeficient() {
			n.fixDeficiency(slot, ctx)
		}
		return e
	}
	child := n.children[slot].isolatedFor(ctx)
	n.children[slot] = child
	e := removeAtRec(child, within, ctx)
	if child.isDeficient() {
		n.fixDeficiency(slot, ctx)
	}
	return e
}

// OffsetOf returns the absolute position of the element the selector picks
// for key, or -1 and false when no element matches.
func (t *Tree[K, V]) OffsetOf(key K, sel Selector) (int, bool) {
	t.ensureAttached()
	cmp := t.cfg.Compare
	base, best, found := 0, -1, false
	for n := t.root; n != nil; {
		match, descend := n.slotOf(key, sel, cmp)
		if match >= 0 {
			best, found = base+n.elementOffset(match), true
			if sel == Any {
				return best, true
			}
		}
		if n.isLeaf() {
			break
		}
		base += n.subtreeOffset(descend)
		n = n.children[descend]
	}
	return best, found
}

// subtreeOffset returns the offset of the first element of the child at
// childSlot, relative to the node's subtree.
func (n *node[K, V]) subtreeOffset(childSlot int) int {
	off := childSlot
	for _, c := range n.children[:childSlot] {
		off += c.count
	}
	return off
}

// elementOffset returns the offset of the node's own element at slot,
// relative to the node's subtree.
func (n *node[K, V]) elementOffset(slot int) int {
	off := slot
	if !n.isLeaf() {
		for _, c := range n.children[:slot+1] {
			off += c.count
		}
	}
	return off
}

// rank counts the elements whose key is less than key, or less than or
// equal when inclusive is set.
func (t *Tree[K, V]) rank(key K, inclusive bool) int {
	return rankIn(t.root, key, inclusive, t.cfg.Compare)
}

func rankIn[K, V any](n *node[K, V], key K, inclusive bool, cmp func(K, K) int) int {
	base := 0
	for n != nil {
		var slot int
		if inclusive {
			slot = n.upperBound(key, cmp)
		} else {
			slot = n.lowerBound(key, cmp)
		}
		if n.isLeaf() {
			return base + slot
		}
		base += n.subtreeOffset(slot)
		n = n.children[slot]
	}
	return base
}

// SubtreeByOffsets returns a new tree holding the elements of the position
// range [from, to), in O(log n). The result shares untouched subtrees with
// the receiver; neither tree's later mutations affect the other.
func (t *Tree[K, V]) SubtreeByOffsets(from, to int) *Tree[K, V] {
	cnt := t.Count()
	assert(0 <= from && from <= to && to <= cnt, "subtree offsets out of range")
	// Splitting happens under a fresh context, so the receiver's nodes are
	// never written to; the receiver in turn gives up exclusive ownership
	// of the now-shared nodes.
	t.owner = newOwnership()
	ctx := newOwnership()
	_, tail := splitNodeAt(t.root, from, ctx)
	mid, _ := splitNodeAt(tail, to-from, ctx)
	return &Tree[K, V]{cfg: t.cfg, order: t.order, owner: ctx, root: normalizeRootNode(mid)}
}

// SubtreeUpToKey returns a new tree with all elements whose key is strictly
// less than key.
func (t *Tree[K, V]) SubtreeUpToKey(key K) *Tree[K, V] {
	t.ensureAttached()
	return t.SubtreeByOffsets(0, t.rank(key, false))
}

// SubtreeThroughKey returns a new tree with all elements whose key is less
// than or equal to key.
func (t *Tree[K, V]) SubtreeThroughKey(key K) *Tree[K, V] {
	t.ensureAttached()
	return t.SubtreeByOffsets(0, t.rank(key, true))
}

// SubtreeFromKey returns a new tree with all elements whose key is greater
// than or equal to key.
func (t *Tree[K, V]) SubtreeFromKey(key K) *Tree[K, V] {
	t.ensureAttached()
	return t.SubtreeByOffsets(t.rank(key, false), t.Count())
}

// Concat returns a new tree with other's elements appended after the
// receiver's, in O(log n). Both operands must have the same order, and the
// receiver's greatest key must not exceed other's smallest. The operands
// stay valid and share subtrees with the result.
func (t *Tree[K, V]) Concat(other *Tree[K, V]) *Tree[K, V] {
	t.ensureAttached()
	other.ensureAttached()
	assert(t.order == other.order, "concat of trees with different order")
	if t.root != nil && other.root != nil {
		assert(t.cfg.Compare(t.root.lastElement().Key, other.root.firstElement().Key) <= 0,
			"concat operands overlap in key order")
	}
	t.owner = newOwnership()
	other.owner = newOwnership()
	ctx := newOwnership()
	return &Tree[K, V]{cfg: t.cfg, order: t.order, owner: ctx, root: joinAdjacent(t.root, other.root, ctx)}
}

// ensureAttached guards against use of a tree whose content is checked out
// by an active cursor.
func (t *Tree[K, V]) ensureAttached() {
	assert(!t.detached, "tree is detached by an active cursor")
}
