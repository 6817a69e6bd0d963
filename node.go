package btree

// Element is one key/payload pair stored in a tree. Duplicate keys are
// allowed; the Selector given to an operation disambiguates between them.
type Element[K, V any] struct {
	Key     K
	Payload V
}

// ownership tags every node with the context (tree, builder or cursor) that
// is allowed to mutate it in place. A node whose tag differs from the
// mutating context may be referenced by other trees and must be cloned
// before any write; see isolatedFor. This is the whole copy-on-write
// contract: Clone hands out fresh tags, so previously written nodes become
// immutable for both handles.
type ownership struct{ _ int8 }

func newOwnership() *ownership {
	return &ownership{}
}

// node is the unit of shared structure. Elements are sorted ascending by
// key; children is empty iff the node is a leaf. count caches the total
// number of elements in the subtree, depth is 0 for leaves.
//
// Structural invariants (checked by Tree.Check):
//   - len(elements) <= order-1,
//   - for internal nodes, len(children) == len(elements)+1 and, unless the
//     node is the root, ceil(order/2) <= len(children) <= order,
//   - count == len(elements) + sum over children of child.count,
//   - child.depth == depth-1 for every child,
//   - keys are non-decreasing across elements and element/child boundaries.
type node[K, V any] struct {
	owner    *ownership
	order    int
	depth    int
	count    int
	elements []Element[K, V]
	children []*node[K, V]
}

// splinter is the (separator, new sibling) pair produced by splitting an
// overfull node.
type splinter[K, V any] struct {
	separator Element[K, V]
	sibling   *node[K, V]
}

func newLeaf[K, V any](order int, o *ownership, elements []Element[K, V]) *node[K, V] {
	return &node[K, V]{owner: o, order: order, count: len(elements), elements: elements}
}

func (n *node[K, V]) isLeaf() bool { return len(n.children) == 0 }

func (n *node[K, V]) maxElements() int { return n.order - 1 }

// minElements is the occupancy floor for non-root nodes. It equals
// ceil(order/2)-1, so an internal node at the floor has ceil(order/2)
// children.
func (n *node[K, V]) minElements() int { return (n.order - 1) / 2 }

func (n *node[K, V]) isDeficient() bool { return len(n.elements) < n.minElements() }

// isolatedFor returns a node that ctx may write to: n itself when n is
// already exclusively owned, a clone tagged for ctx otherwise.
func (n *node[K, V]) isolatedFor(ctx *ownership) *node[K, V] {
	if n.owner == ctx {
		return n
	}
	clone := &node[K, V]{
		owner: ctx,
		order: n.order,
		depth: n.depth,
		count: n.count,
	}
	clone.elements = append(clone.elements, n.elements...)
	clone.children = append(clone.children, n.children...)
	return clone
}

// recount recomputes the cached subtree count from the node's own elements
// and its children's counts.
func (n *node[K, V]) recount() {
	c := len(n.elements)
	for _, child := range n.children {
		c += child.count
	}
	n.count = c
}

func (n *node[K, V]) firstElement() Element[K, V] {
	for !n.isLeaf() {
		n = n.children[0]
	}
	return n.elements[0]
}

func (n *node[K, V]) lastElement() Element[K, V] {
	for !n.isLeaf() {
		n = n.children[len(n.children)-1]
	}
	return n.elements[len(n.elements)-1]
}

// lowerBound returns the first slot whose key is >= key.
func (n *node[K, V]) lowerBound(key K, cmp func(K, K) int) int {
	lo, hi := 0, len(n.elements)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if cmp(n.elements[mid].Key, key) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// upperBound returns the first slot whose key is > key.
func (n *node[K, V]) upperBound(key K, cmp func(K, K) int) int {
	lo, hi := 0, len(n.elements)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if cmp(n.elements[mid].Key, key) <= 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// slotOf searches the node's elements for key, honoring the selector.
//
// match is the slot of a matching element in this node, or -1. descend is
// the child slot in which the search continues when the answer is not (or
// not necessarily) in this node: for First the subtree left of the match
// may hold an earlier duplicate, for Last the subtree right of it a later
// one, for After a smaller element that is still greater than key.
func (n *node[K, V]) slotOf(key K, sel Selector, cmp func(K, K) int) (match, descend int) {
	switch sel {
	case First:
		slot := n.lowerBound(key, cmp)
		if slot < len(n.elements) && cmp(n.elements[slot].Key, key) == 0 {
			return slot, slot
		}
		return -1, slot
	case Last:
		slot := n.upperBound(key, cmp)
		if slot > 0 && cmp(n.elements[slot-1].Key, key) == 0 {
			return slot - 1, slot
		}
		return -1, slot
	case After:
		slot := n.upperBound(key, cmp)
		if slot < len(n.elements) {
			return slot, slot
		}
		return -1, slot
	default: // Any: stop at whatever match binary search hits first
		lo, hi := 0, len(n.elements)
		for lo < hi {
			mid := int(uint(lo+hi) >> 1)
			c := cmp(n.elements[mid].Key, key)
			switch {
			case c == 0:
				return mid, mid
			case c < 0:
				lo = mid + 1
			default:
				hi = mid
			}
		}
		return -1, lo
	}
}

// positionSlot maps an absolute offset within the subtree to a slot of this
// node. When the offset addresses one of the node's own elements, onElement
// is true and slot is its element slot; otherwise slot is the child to
// descend into and within the offset inside that child's subtree.
func (n *node[K, V]) positionSlot(pos int) (slot, within int, onElement bool) {
	assert(pos >= 0 && pos < n.count, "positionSlot: offset outside subtree")
	if n.isLeaf() {
		return pos, 0, true
	}
	acc := 0
	for i, child := range n.children {
		if pos < acc+child.count {
			return i, pos - acc, false
		}
		acc += child.count
		if i < len(n.elements) {
			if pos == acc {
				return i, 0, true
			}
			acc++
		}
	}
	assert(false, "positionSlot: inconsistent subtree count")
	return 0, 0, false
}

// split divides an overfull node around its median. The receiver keeps the
// left half, the returned splinter carries the separator element and the
// new right sibling. The receiver must be writable by its current owner.
func (n *node[K, V]) split() splinter[K, V] {
	mid := len(n.elements) / 2
	sep := n.elements[mid]
	sibling := &node[K, V]{owner: n.owner, order: n.order, depth: n.depth}
	sibling.elements = append(sibling.elements, n.elements[mid+1:]...)
	n.elements = n.elements[:mid]
	if !n.isLeaf() {
		sibling.children = append(sibling.children, n.children[mid+1:]...)
		n.children = n.children[:mid+1]
	}
	n.recount()
	sibling.recount()
	return splinter[K, V]{separator: sep, sibling: sibling}
}

// fixDeficiency repairs an underfull child at slot, first rotating elements
// over from an adjacent sibling, then collapsing child, separator and
// sibling into one node. Collapsing removes one element from the receiver,
// which may leave the receiver itself deficient; that cascades to the
// caller. The receiver must be writable.
func (n *node[K, V]) fixDeficiency(slot int, ctx *ownership) {
	assert(len(n.children) >= 2, "fixDeficiency: no sibling to borrow from or collapse into")
	child := n.children[slot].isolatedFor(ctx)
	n.children[slot] = child
	for child.isDeficient() {
		if slot > 0 && n.canLend(slot-1) {
			n.rotateFromLeft(slot, ctx)
			continue
		}
		if slot+1 < len(n.children) && n.canLend(slot+1) {
			n.rotateFromRight(slot, ctx)
			continue
		}
		if slot > 0 {
			n.collapseIntoLeft(slot, ctx)
		} else {
			n.collapseIntoLeft(slot+1, ctx)
		}
		return
	}
}

// canLend reports whether the child at slot can give up an element without
// itself dropping below the occupancy floor.
func (n *node[K, V]) canLend(slot int) bool {
	sibling := n.children[slot]
	return len(sibling.elements) > sibling.minElements() && len(sibling.elements) > 1
}

func (n *node[K, V]) rotateFromLeft(slot int, ctx *ownership) {
	left := n.children[slot-1].isolatedFor(ctx)
	n.children[slot-1] = left
	child := n.children[slot]
	child.elements = insertAt(child.elements, 0, n.elements[slot-1])
	n.elements[slot-1] = left.elements[len(left.elements)-1]
	left.elements = left.elements[:len(left.elements)-1]
	if !left.isLeaf() {
		moved := left.children[len(left.children)-1]
		left.children = left.children[:len(left.children)-1]
		child.children = insertAt(child.children, 0, moved)
	}
	left.recount()
	child.recount()
}

func (n *node[K, V]) rotateFromRight(slot int, ctx *ownership) {
	right := n.children[slot+1].isolatedFor(ctx)
	n.children[slot+1] = right
	child := n.children[slot]
	child.elements = append(child.elements, n.elements[slot])
	n.elements[slot] = right.elements[0]
	right.elements = removeRange(right.elements, 0, 1)
	if !right.isLeaf() {
		moved := right.children[0]
		right.children = removeRange(right.children, 0, 1)
		child.children = append(child.children, moved)
	}
	right.recount()
	child.recount()
}

// collapseIntoLeft merges the child at slot, its left separator, and the
// child at slot-1 into a single node, shrinking the receiver by one child.
func (n *node[K, V]) collapseIntoLeft(slot int, ctx *ownership) {
	left := n.children[slot-1].isolatedFor(ctx)
	n.children[slot-1] = left
	right := n.children[slot]
	left.elements = append(left.elements, n.elements[slot-1])
	left.elements = append(left.elements, right.elements...)
	left.children = append(left.children, right.children...)
	left.recount()
	n.elements = removeRange(n.elements, slot-1, slot)
	n.children = removeRange(n.children, slot, slot+1)
}

// rejoinChild rebuilds a degenerate child subtree (underfull, possibly
// wrapped in a chain of single-child nodes) by joining it with a neighbor
// subtree. Unlike fixDeficiency it copes with children that are more than
// one repair step away from validity. The receiver must be writable and
// have at least two children; it keeps its total count but may lose an
// element, leaving the deficiency to the caller.
func (n *node[K, V]) rejoinChild(slot int, ctx *ownership) {
	assert(len(n.children) >= 2, "rejoinChild: no neighbor to join with")
	var left, right *node[K, V]
	var sepIdx int
	if slot > 0 {
		sepIdx = slot - 1
		left, right = n.children[slot-1], normalizeRootNode(n.children[slot])
	} else {
		sepIdx = 0
		left, right = normalizeRootNode(n.children[0]), n.children[1]
	}
	joined := joinNodes(n.order, left, n.elements[sepIdx], right, ctx)
	if joined.depth == n.depth-1 {
		// the pair collapsed into a single child
		n.elements = removeRange(n.elements, sepIdx, sepIdx+1)
		n.children[sepIdx] = joined
		n.children = removeRange(n.children, sepIdx+1, sepIdx+2)
		return
	}
	// the join kept two subtrees under a transient root
	assert(joined.depth == n.depth && len(joined.children) == 2,
		"rejoinChild: join result does not fit the child level")
	n.elements[sepIdx] = joined.elements[0]
	n.children[sepIdx] = joined.children[0]
	n.children[sepIdx+1] = joined.children[1]
}

// growRoot wraps a split root and its splinter into a new root one level up.
func growRoot[K, V any](root *node[K, V], sp splinter[K, V], ctx *ownership) *node[K, V] {
	parent := &node[K, V]{
		owner:    ctx,
		order:    root.order,
		depth:    root.depth + 1,
		elements: []Element[K, V]{sp.separator},
		children: []*node[K, V]{root, sp.sibling},
	}
	parent.recount()
	return parent
}

// normalizeRootNode canonicalizes a root after structural surgery: internal
// roots with a single child collapse into it, an empty leaf root becomes a
// nil (empty) tree.
func normalizeRootNode[K, V any](n *node[K, V]) *node[K, V] {
	for n != nil {
		if n.isLeaf() {
			if len(n.elements) == 0 {
				return nil
			}
			return n
		}
		if len(n.children) == 1 {
			n = n.children[0]
			continue
		}
		return n
	}
	return nil
}

// joinNodes combines two subtrees around a separator element into a single
// valid tree, in O(difference of depths) plus rebalancing. left and right
// may have different depths and may be deficient roots; either may be nil,
// in which case the separator is inserted at the respective end of the
// other side. Nodes reachable from left/right stay shared except along the
// join seam.
func joinNodes[K, V any](order int, left *node[K, V], sep Element[K, V], right *node[K, V], ctx *ownership) *node[K, V] {
	switch {
	case left == nil && right == nil:
		return newLeaf(order, ctx, []Element[K, V]{sep})
	case left == nil:
		return insertAtNode(right, 0, sep, ctx)
	case right == nil:
		return insertAtNode(left, left.count, sep, ctx)
	}
	if left.depth == right.depth {
		return joinEqualDepth(left, sep, right, ctx)
	}
	if left.depth > right.depth {
		return attachAtRightSpine(left, sep, right, ctx)
	}
	return attachAtLeftSpine(left, sep, right, ctx)
}

func joinEqualDepth[K, V any](left *node[K, V], sep Element[K, V], right *node[K, V], ctx *ownership) *node[K, V] {
	if len(left.elements)+1+len(right.elements) <= left.maxElements() {
		merged := left.isolatedFor(ctx)
		merged.elements = append(merged.elements, sep)
		merged.elements = append(merged.elements, right.elements...)
		merged.children = append(merged.children, right.children...)
		merged.recount()
		return merged
	}
	parent := &node[K, V]{
		owner:    ctx,
		order:    left.order,
		depth:    left.depth + 1,
		elements: []Element[K, V]{sep},
		children: []*node[K, V]{left, right},
	}
	parent.recount()
	// At most one side can be deficient here: two deficient halves plus a
	// separator would have fit into a single node.
	if parent.children[0].isDeficient() {
		parent.fixDeficiency(0, ctx)
	} else if last := len(parent.children) - 1; parent.children[last].isDeficient() {
		parent.fixDeficiency(last, ctx)
	}
	if len(parent.children) == 1 {
		return parent.children[0]
	}
	return parent
}

// attachAtRightSpine grafts a shallower right subtree onto the right spine
// of a taller left subtree, then repairs occupancy back up the spine.
func attachAtRightSpine[K, V any](left *node[K, V], sep Element[K, V], right *node[K, V], ctx *ownership) *node[K, V] {
	root := left.isolatedFor(ctx)
	spine := []*node[K, V]{root}
	n := root
	for n.depth > right.depth+1 {
		last := len(n.children) - 1
		child := n.children[last].isolatedFor(ctx)
		n.children[last] = child
		spine = append(spine, child)
		n = child
	}
	n.elements = append(n.elements, sep)
	n.children = append(n.children, right)
	if right.isDeficient() {
		n.fixDeficiency(len(n.children)-1, ctx)
	}
	for i := len(spine) - 1; i >= 0; i-- {
		m := spine[i]
		m.recount()
		if len(m.elements) <= m.maxElements() {
			continue
		}
		sp := m.split()
		if i == 0 {
			return growRoot(m, sp, ctx)
		}
		parent := spine[i-1]
		parent.elements = append(parent.elements, sp.separator)
		parent.children = append(parent.children, sp.sibling)
	}
	if root.isLeaf() || len(root.children) > 1 {
		return root
	}
	return normalizeRootNode(root)
}

func attachAtLeftSpine[K, V any](left *node[K, V], sep Element[K, V], right *node[K, V], ctx *ownership) *node[K, V] {
	root := right.isolatedFor(ctx)
	spine := []*node[K, V]{root}
	n := root
	for n.depth > left.depth+1 {
		child := n.children[0].isolatedFor(ctx)
		n.children[0] = child
		spine = append(spine, child)
		n = child
	}
	n.elements = insertAt(n.elements, 0, sep)
	n.children = insertAt(n.children, 0, left)
	if left.isDeficient() {
		n.fixDeficiency(0, ctx)
	}
	for i := len(spine) - 1; i >= 0; i-- {
		m := spine[i]
		m.recount()
		if len(m.elements) <= m.maxElements() {
			continue
		}
		sp := m.split()
		if i == 0 {
			return growRoot(m, sp, ctx)
		}
		parent := spine[i-1]
		parent.elements = insertAt(parent.elements, 0, sp.separator)
		parent.children = insertAt(parent.children, 1, sp.sibling)
	}
	if root.isLeaf() || len(root.children) > 1 {
		return root
	}
	return normalizeRootNode(root)
}

// joinAdjacent concatenates two trees without an explicit separator by
// promoting the left tree's last element into that role. Either side may
// be nil.
func joinAdjacent[K, V any](a, b *node[K, V], ctx *ownership) *node[K, V] {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	left := a.isolatedFor(ctx)
	sep := removeMaxNode(left, ctx)
	left = normalizeRootNode(left)
	if left == nil {
		return insertAtNode(b, 0, sep, ctx)
	}
	return joinNodes(b.order, left, sep, b, ctx)
}

// removeMaxNode removes and returns the subtree's greatest element. The
// root must already be writable by ctx; the result may need root
// normalization.
func removeMaxNode[K, V any](n *node[K, V], ctx *ownership) Element[K, V] {
	n.count--
	if n.isLeaf() {
		e := n.elements[len(n.elements)-1]
		n.elements = n.elements[:len(n.elements)-1]
		return e
	}
	last := len(n.children) - 1
	child := n.children[last].isolatedFor(ctx)
	n.children[last] = child
	e := removeMaxNode(child, ctx)
	if child.isDeficient() {
		n.fixDeficiency(last, ctx)
	}
	return e
}

// insertAtNode inserts an element at an absolute offset and returns the new
// root; the subtree may grow by one level. The caller is responsible for
// the element's key fitting the ordering at that offset.
func insertAtNode[K, V any](n *node[K, V], pos int, e Element[K, V], ctx *ownership) *node[K, V] {
	assert(n != nil, "insertAtNode: nil subtree")
	assert(pos >= 0 && pos <= n.count, "insertAtNode: offset outside subtree")
	root := n.isolatedFor(ctx)
	if sp := insertAtRec(root, pos, e, ctx); sp != nil {
		return growRoot(root, *sp, ctx)
	}
	return root
}

func insertAtRec[K, V any](n *node[K, V], pos int, e Element[K, V], ctx *ownership) *splinter[K, V] {
	n.count++
	if n.isLeaf() {
		n.elements = insertAt(n.elements, pos, e)
	} else {
		acc := 0
		slot, within := -1, 0
		for i, child := range n.children {
			// boundary offsets land in the left neighbor
			if pos <= acc+child.count {
				slot, within = i, pos-acc
				break
			}
			acc += child.count + 1
		}
		assert(slot >= 0, "insertAtRec: offset routing exceeded subtree count")
		child := n.children[slot].isolatedFor(ctx)
		n.children[slot] = child
		if sp := insertAtRec(child, within, e, ctx); sp != nil {
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

// splitNodeAt splits a subtree at an absolute offset into two valid trees;
// the element at the offset goes to the right side. Untouched subtrees are
// shared with the input, only the split seam is rebuilt.
func splitNodeAt[K, V any](n *node[K, V], pos int, ctx *ownership) (left, right *node[K, V]) {
	if n == nil {
		assert(pos == 0, "splitNodeAt: offset in empty subtree")
		return nil, nil
	}
	assert(pos >= 0 && pos <= n.count, "splitNodeAt: offset outside subtree")
	switch pos {
	case 0:
		return nil, n
	case n.count:
		return n, nil
	}
	if n.isLeaf() {
		left = newLeaf(n.order, ctx, append([]Element[K, V](nil), n.elements[:pos]...))
		right = newLeaf(n.order, ctx, append([]Element[K, V](nil), n.elements[pos:]...))
		return left, right
	}
	acc := 0
	for i, child := range n.children {
		if pos < acc+child.count {
			cl, cr := splitNodeAt(child, pos-acc, ctx)
			if i > 0 {
				pre := sideNode(n, n.children[:i], n.elements[:i-1], ctx)
				left = joinNodes(n.order, pre, n.elements[i-1], cl, ctx)
			} else {
				left = cl
			}
			if i < len(n.elements) {
				post := sideNode(n, n.children[i+1:], n.elements[i+1:], ctx)
				right = joinNodes(n.order, cr, n.elements[i], post, ctx)
			} else {
				right = cr
			}
			return left, right
		}
		acc += child.count
		if i < len(n.elements) {
			if pos == acc {
				left = sideNode(n, n.children[:i+1], n.elements[:i], ctx)
				post := sideNode(n, n.children[i+1:], n.elements[i+1:], ctx)
				right = joinNodes(n.order, nil, n.elements[i], post, ctx)
				return left, right
			}
			acc++
		}
	}
	assert(false, "splitNodeAt: inconsistent subtree count")
	return nil, nil
}

// sideNode packages a contiguous run of children and their separators into
// a (possibly deficient) root for further joining. A single child is
// returned as-is and stays fully shared.
func sideNode[K, V any](src *node[K, V], children []*node[K, V], elements []Element[K, V], ctx *ownership) *node[K, V] {
	switch len(children) {
	case 0:
		return nil
	case 1:
		return children[0]
	}
	side := &node[K, V]{
		owner:    ctx,
		order:    src.order,
		depth:    src.depth,
		elements: append([]Element[K, V](nil), elements...),
		children: append([]*node[K, V](nil), children...),
	}
	side.recount()
	return side
}

// insertAt returns s with vals inserted at slot `at`.
func insertAt[T any](s []T, at int, vals ...T) []T {
	out := make([]T, 0, len(s)+len(vals))
	out = append(out, s[:at]...)
	out = append(out, vals...)
	out = append(out, s[at:]...)
	return out
}

// removeRange returns s without the slots in [from, to).
func removeRange[T any](s []T, from, to int) []T {
	return append(s[:from:from], s[to:]...)
}
