package btree

// Cursor is an exclusive batch editor. Creating a cursor checks the tree's
// content out of the tree handle; until Finish is called the tree itself
// refuses all operations, and the cursor is free to edit nodes in place
// without copy-on-write overhead for repeated edits in the same region.
//
// The cursor sits on an element, or past the last element (the end
// position). Sequential movement and editing near the current position is
// amortized O(1); random repositioning is O(log n).
//
// Internally the cursor keeps the descent path to the current element. Node
// counts along that path exclude the subtree the path continues into, so an
// edit deep in a leaf updates a single count instead of the whole path;
// the excluded counts are restored (and underfull nodes repaired) as the
// path unwinds.
type Cursor[K, V any] struct {
	tree  *Tree[K, V]
	owner *ownership
	cmp   func(K, K) int
	order int

	root   *node[K, V] // holds the tree while the path is empty
	path   []cursorFrame[K, V]
	offset int
	count  int
}

// cursorFrame is one step of the descent path. Below the top of the path,
// slot is the child index the path continues into; at the top it is the
// element slot the cursor sits on. base is the absolute offset of the
// frame's first element and stays valid while the frame is on the path.
type cursorFrame[K, V any] struct {
	n    *node[K, V]
	slot int
	base int
}

// Cursor checks the tree out into a cursor positioned on the first element
// (or at the end when the tree is empty).
func (t *Tree[K, V]) Cursor() *Cursor[K, V] {
	c := t.checkout()
	if c.count > 0 {
		c.moveTo(0)
	}
	return c
}

// CursorAtEnd checks the tree out into a cursor at the end position.
func (t *Tree[K, V]) CursorAtEnd() *Cursor[K, V] {
	return t.checkout()
}

// CursorAt checks the tree out into a cursor positioned at pos; pos may
// equal Count for the end position.
func (t *Tree[K, V]) CursorAt(pos int) *Cursor[K, V] {
	c := t.checkout()
	c.moveTo(pos)
	return c
}

// CursorAtKey checks the tree out into a cursor positioned on the element
// the selector picks for key. When no element matches, the cursor is left
// at the position where such an element would be inserted and ok is false.
func (t *Tree[K, V]) CursorAtKey(key K, sel Selector) (c *Cursor[K, V], ok bool) {
	c = t.checkout()
	ok = c.MoveToKey(key, sel)
	return c, ok
}

func (t *Tree[K, V]) checkout() *Cursor[K, V] {
	t.ensureAttached()
	cnt := 0
	if t.root != nil {
		cnt = t.root.count
	}
	c := &Cursor[K, V]{
		tree:   t,
		owner:  t.owner,
		cmp:    t.cfg.Compare,
		order:  t.order,
		root:   t.root,
		offset: cnt,
		count:  cnt,
	}
	t.detached = true
	t.root = nil
	return c
}

// Finish checks the content back into the tree and invalidates the cursor.
func (c *Cursor[K, V]) Finish() *Tree[K, V] {
	assert(c.tree != nil, "cursor has already been finished")
	c.ascendAll()
	t := c.tree
	t.root = normalizeRootNode(c.root)
	t.detached = false
	t.version++
	c.tree = nil
	c.root = nil
	tracer().Debugf("btree: cursor checked %d elements back into the tree", t.Count())
	return t
}

// Count returns the current number of elements under the cursor.
func (c *Cursor[K, V]) Count() int { return c.count }

// Offset returns the cursor's absolute position; Count means the end
// position.
func (c *Cursor[K, V]) Offset() int { return c.offset }

// IsAtEnd reports whether the cursor is past the last element.
func (c *Cursor[K, V]) IsAtEnd() bool { return c.offset == c.count }

// Element returns the element the cursor sits on, or false at the end
// position.
func (c *Cursor[K, V]) Element() (Element[K, V], bool) {
	if c.offset == c.count {
		var zero Element[K, V]
		return zero, false
	}
	f := c.top()
	return f.n.elements[f.slot], true
}

// SetPayload replaces the payload of the element the cursor sits on.
func (c *Cursor[K, V]) SetPayload(payload V) {
	assert(c.offset < c.count, "cursor is past the last element")
	f := c.top()
	f.n.elements[f.slot].Payload = payload
}

// MoveTo positions the cursor at an absolute position; pos may equal Count
// for the end position.
func (c *Cursor[K, V]) MoveTo(pos int) {
	c.moveTo(pos)
}

// MoveForward advances to the next element (or the end position) and
// reports whether the cursor was moved.
func (c *Cursor[K, V]) MoveForward() bool {
	if c.offset >= c.count {
		return false
	}
	if f := c.top(); f.n.isLeaf() && f.slot+1 < len(f.n.elements) {
		f.slot++
		c.offset++
		return true
	}
	c.moveTo(c.offset + 1)
	return true
}

// MoveBackward retreats to the previous element and reports whether the
// cursor was moved.
func (c *Cursor[K, V]) MoveBackward() bool {
	if c.offset == 0 {
		return false
	}
	if c.offset < c.count {
		if f := c.top(); f.n.isLeaf() && f.slot > 0 {
			f.slot--
			c.offset--
			return true
		}
	}
	c.moveTo(c.offset - 1)
	return true
}

// MoveToKey positions the cursor on the element the selector picks for
// key. When no element matches, the cursor moves to the position where
// such an element would be inserted and MoveToKey returns false.
func (c *Cursor[K, V]) MoveToKey(key K, sel Selector) bool {
	c.ascendAll()
	base, best, found := 0, -1, false
	for n := c.root; n != nil; {
		match, descend := n.slotOf(key, sel, c.cmp)
		if match >= 0 {
			best, found = base+n.elementOffset(match), true
			if sel == Any {
				break
			}
		}
		if n.isLeaf() {
			break
		}
		base += n.subtreeOffset(descend)
		n = n.children[descend]
	}
	if found {
		c.moveTo(best)
		return true
	}
	c.moveTo(rankIn(c.root, key, true, c.cmp))
	return false
}

// Insert places an element immediately before the cursor position and
// leaves the cursor right after the new element. Keeping the key order
// intact at that position is the caller's responsibility.
func (c *Cursor[K, V]) Insert(key K, payload V) {
	pos := c.offset
	c.insertElementAt(pos, Element[K, V]{Key: key, Payload: payload})
	c.moveTo(pos + 1)
}

// InsertAfter places an element immediately after the element the cursor
// sits on and moves the cursor onto the new element.
func (c *Cursor[K, V]) InsertAfter(key K, payload V) {
	assert(c.offset < c.count, "cursor is past the last element")
	pos := c.offset + 1
	c.insertElementAt(pos, Element[K, V]{Key: key, Payload: payload})
	c.moveTo(pos)
}

// Remove deletes the element the cursor sits on and returns it. The cursor
// ends up on the removed element's successor, or at the end position.
func (c *Cursor[K, V]) Remove() Element[K, V] {
	assert(c.offset < c.count, "cursor is past the last element")
	pos := c.offset
	f := c.top()
	n := f.n
	var e Element[K, V]
	if n.isLeaf() {
		e = n.elements[f.slot]
		n.elements = removeRange(n.elements, f.slot, f.slot+1)
		n.count--
	} else {
		// an inner element is swapped with its in-order successor, which
		// lives in a leaf and can be removed there
		e = n.elements[f.slot]
		elemFrame := len(c.path) - 1
		elemSlot := f.slot
		f.slot = elemSlot + 1
		child := n.children[elemSlot+1].isolatedFor(c.owner)
		n.children[elemSlot+1] = child
		n.count -= child.count
		c.path = append(c.path, cursorFrame[K, V]{n: child, base: pos + 1})
		for !child.isLeaf() {
			grand := child.children[0].isolatedFor(c.owner)
			child.children[0] = grand
			child.count -= grand.count
			c.path = append(c.path, cursorFrame[K, V]{n: grand, base: pos + 1})
			child = grand
		}
		c.path[elemFrame].n.elements[elemSlot] = child.elements[0]
		child.elements = removeRange(child.elements, 0, 1)
		child.count--
	}
	c.count--
	c.moveTo(min(pos, c.count))
	return e
}

// RemoveRun deletes k consecutive elements starting at the cursor position.
func (c *Cursor[K, V]) RemoveRun(k int) {
	assert(k >= 0 && c.offset+k <= c.count, "run exceeds the element count")
	for range k {
		c.Remove()
	}
}

// Extract removes k consecutive elements starting at the cursor position
// and returns them as an independent tree, in O(log n).
func (c *Cursor[K, V]) Extract(k int) *Tree[K, V] {
	pos := c.offset
	assert(k >= 0 && pos+k <= c.count, "run exceeds the element count")
	if k == 0 {
		return &Tree[K, V]{cfg: c.tree.cfg, order: c.order, owner: newOwnership()}
	}
	c.ascendAll()
	left, rest := splitNodeAt(c.root, pos, c.owner)
	mid, right := splitNodeAt(rest, k, c.owner)
	c.root = joinAdjacent(left, right, c.owner)
	c.count -= k
	c.moveTo(min(pos, c.count))
	return &Tree[K, V]{cfg: c.tree.cfg, order: c.order, owner: newOwnership(), root: normalizeRootNode(mid)}
}

// RemoveAllBefore deletes every element before the cursor position, in
// O(log n).
func (c *Cursor[K, V]) RemoveAllBefore() {
	pos := c.offset
	c.ascendAll()
	_, right := splitNodeAt(c.root, pos, c.owner)
	c.root = normalizeRootNode(right)
	c.count -= pos
	c.moveTo(0)
}

// RemoveAllAfter deletes every element after the cursor position, and the
// current element too when includingCurrent is set, in O(log n). The
// cursor ends up at the end position.
func (c *Cursor[K, V]) RemoveAllAfter(includingCurrent bool) {
	cut := c.offset
	if !includingCurrent && cut < c.count {
		cut++
	}
	c.ascendAll()
	left, _ := splitNodeAt(c.root, cut, c.owner)
	c.root = normalizeRootNode(left)
	c.count = cut
	c.moveTo(cut)
}

// InsertTree splices a whole tree's elements in before the cursor position,
// in O(log n), and leaves the cursor after them. The tree must have the
// same order and its keys must fit between the cursor's neighbors; it
// stays valid and shares subtrees with the cursor's content.
func (c *Cursor[K, V]) InsertTree(t *Tree[K, V]) {
	t.ensureAttached()
	assert(t.order == c.order, "inserted tree has a different order")
	if t.IsEmpty() {
		return
	}
	pos := c.offset
	k := t.Count()
	c.ascendAll()
	left, right := splitNodeAt(c.root, pos, c.owner)
	if left != nil {
		assert(c.cmp(left.lastElement().Key, t.root.firstElement().Key) <= 0,
			"inserted tree's keys fall below the preceding element")
	}
	if right != nil {
		assert(c.cmp(t.root.lastElement().Key, right.firstElement().Key) <= 0,
			"inserted tree's keys exceed the following element")
	}
	t.owner = newOwnership()
	merged := joinAdjacent(left, t.root, c.owner)
	c.root = joinAdjacent(merged, right, c.owner)
	c.count += k
	c.moveTo(pos + k)
}

// --- path machinery ---------------------------------------------------

func (c *Cursor[K, V]) top() *cursorFrame[K, V] {
	return &c.path[len(c.path)-1]
}

// moveTo repositions the path onto the element at pos (or unwinds it
// entirely for the end position). It ascends just far enough to reach a
// subtree containing pos and descends from there.
func (c *Cursor[K, V]) moveTo(pos int) {
	assert(pos >= 0 && pos <= c.count, "cursor position out of range")
	c.offset = pos
	if pos == c.count {
		c.ascendAll()
		return
	}
	for len(c.path) > 0 {
		f := c.top()
		if pos >= f.base && pos < f.base+f.n.count {
			break
		}
		c.popFrame()
	}
	if len(c.path) == 0 {
		root := c.root.isolatedFor(c.owner)
		c.root = root
		c.path = append(c.path, cursorFrame[K, V]{n: root})
	}
	c.descendToOffset(pos)
}

// descendToOffset walks from the top frame down to the element at absolute
// offset pos, which must lie in the top frame's subtree. Descended children
// are isolated for in-place edits and their counts excluded from the
// parents on the way.
func (c *Cursor[K, V]) descendToOffset(pos int) {
	for {
		f := c.top()
		n := f.n
		slot, inner, onElement := n.positionSlot(pos - f.base)
		f.slot = slot
		if onElement {
			return
		}
		child := n.children[slot].isolatedFor(c.owner)
		n.children[slot] = child
		n.count -= child.count
		c.path = append(c.path, cursorFrame[K, V]{n: child, base: pos - inner})
	}
}

// popFrame unwinds one path step: the child's count is folded back into
// its parent and, should edits have left the child underfull, the parent
// repairs it on the spot. A parent that has collapsed to a single child
// carries no sibling to repair with, so the repair escalates to the
// nearest ancestor that still has one.
func (c *Cursor[K, V]) popFrame() {
	f := c.path[len(c.path)-1]
	c.path = c.path[:len(c.path)-1]
	if len(c.path) == 0 {
		c.root = f.n
		return
	}
	parent := c.top()
	parent.n.count += f.n.count
	if !f.n.isDeficient() {
		return
	}
	if len(parent.n.children) >= 2 {
		parent.n.fixDeficiency(parent.slot, c.owner)
		return
	}
	child := parent.n
	c.path = c.path[:len(c.path)-1]
	for len(c.path) > 0 {
		parent = c.top()
		parent.n.count += child.count
		if len(parent.n.children) >= 2 {
			parent.n.rejoinChild(parent.slot, c.owner)
			return
		}
		child = parent.n
		c.path = c.path[:len(c.path)-1]
	}
	c.root = child
}

func (c *Cursor[K, V]) ascendAll() {
	for len(c.path) > 0 {
		c.popFrame()
	}
}

// insertElementAt splices an element into the leaf adjacent to position
// pos. The cursor path is left on the affected leaf's parent chain;
// callers reposition with moveTo afterwards.
func (c *Cursor[K, V]) insertElementAt(pos int, e Element[K, V]) {
	assert(pos >= 0 && pos <= c.count, "insert position out of range")
	if c.count == 0 {
		c.root = newLeaf(c.order, c.owner, []Element[K, V]{e})
		c.count = 1
		c.offset = 1
		return
	}
	slot := c.leafSlotFor(pos)
	f := c.top()
	f.n.elements = insertAt(f.n.elements, slot, e)
	f.n.count++
	f.slot = slot
	c.count++
	c.offset = pos
	if len(f.n.elements) > f.n.maxElements() {
		c.repairOverflow()
	}
}

// leafSlotFor positions the path on the leaf adjacent to the insertion
// point pos and returns the element slot to insert at. One of the
// neighboring elements of any position lives in a leaf.
func (c *Cursor[K, V]) leafSlotFor(pos int) int {
	if pos < c.count {
		c.moveTo(pos)
		if f := c.top(); f.n.isLeaf() {
			return f.slot
		}
	}
	c.moveTo(pos - 1)
	f := c.top()
	assert(f.n.isLeaf(), "no leaf adjacent to the insertion point")
	return f.slot + 1
}

// repairOverflow splits overfull nodes at the top of the path into their
// parents, unwinding as far as the overflow propagates.
func (c *Cursor[K, V]) repairOverflow() {
	for len(c.path) > 0 {
		f := c.top()
		if len(f.n.elements) <= f.n.maxElements() {
			return
		}
		child := f.n
		c.path = c.path[:len(c.path)-1]
		sp := child.split()
		if len(c.path) == 0 {
			c.root = growRoot(child, sp, c.owner)
			return
		}
		parent := c.top()
		parent.n.count += child.count + 1 + sp.sibling.count
		parent.n.elements = insertAt(parent.n.elements, parent.slot, sp.separator)
		parent.n.children = insertAt(parent.n.children, parent.slot+1, sp.sibling)
	}
}
