package btree

// Builder assembles a tree from elements arriving in ascending key order,
// in one bottom-up pass without rebalancing. Nodes are packed to the
// configured fill factor; with the default factor of 1 the result is as
// dense as the order permits.
//
// Besides single elements, whole trees can be appended in O(log n) when
// their keys continue the sequence. Misuse is reported through errors, not
// panics, since the input typically comes from external data.
type Builder[K, V any] struct {
	cfg      Config[K]
	order    int
	owner    *ownership
	dropDup  bool
	leafCap  int
	childCap int

	levels     []*node[K, V] // levels[d] is the open node of depth d
	built      *node[K, V]   // finished tree accumulated by AppendTree
	pending    Element[K, V] // last accepted element, held back for DropDuplicates
	hasPending bool
	lastKey    K
	hasLast    bool
	done       bool
}

// NewBuilder creates a builder for a tree with the given configuration.
func NewBuilder[K, V any](cfg Config[K], opts LoadOptions) (*Builder[K, V], error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	opts = opts.normalized()
	order := cfg.Order
	if order == 0 {
		order = defaultOrder[K, V]()
	}
	b := &Builder[K, V]{
		cfg:     cfg,
		order:   order,
		owner:   newOwnership(),
		dropDup: opts.DropDuplicates,
	}
	b.leafCap = clamp(int(opts.FillFactor*float64(order-1)), max(1, (order-1)/2), order-1)
	b.childCap = clamp(int(opts.FillFactor*float64(order)), max(2, (order+1)/2), order)
	return b, nil
}

// FromSorted bulk-loads a tree from elements sorted ascending by key.
func FromSorted[K, V any](cfg Config[K], opts LoadOptions, elements []Element[K, V]) (*Tree[K, V], error) {
	b, err := NewBuilder[K, V](cfg, opts)
	if err != nil {
		return nil, err
	}
	for _, e := range elements {
		if err := b.Append(e.Key, e.Payload); err != nil {
			return nil, err
		}
	}
	return b.Finish(), nil
}

// Append adds the next element. Keys must arrive in ascending order; equal
// keys are legal and keep their arrival order, unless DropDuplicates is set,
// in which case the last element of an equal-key run wins.
func (b *Builder[K, V]) Append(key K, payload V) error {
	if b.done {
		return ErrBuilderCompleted
	}
	if b.hasPending {
		switch c := b.cfg.Compare(key, b.pending.Key); {
		case c < 0:
			return ErrKeysUnsorted
		case c == 0 && b.dropDup:
			b.pending.Payload = payload
			return nil
		}
		b.flush(b.pending)
	} else if b.hasLast && b.cfg.Compare(key, b.lastKey) < 0 {
		return ErrKeysUnsorted
	}
	b.pending = Element[K, V]{Key: key, Payload: payload}
	b.hasPending = true
	b.lastKey = key
	b.hasLast = true
	return nil
}

// AppendTree appends a whole tree whose smallest key continues the key
// sequence, in O(log n). The tree must have the same order as the builder;
// it stays valid and shares its nodes with the builder's result.
func (b *Builder[K, V]) AppendTree(t *Tree[K, V]) error {
	if b.done {
		return ErrBuilderCompleted
	}
	t.ensureAttached()
	assert(t.order == b.order, "appended tree has a different order")
	if t.IsEmpty() {
		return nil
	}
	first := t.root.firstElement()
	if b.hasLast && b.cfg.Compare(first.Key, b.lastKey) < 0 {
		return ErrKeysUnsorted
	}
	if b.hasPending && b.dropDup && b.cfg.Compare(first.Key, b.pending.Key) == 0 {
		b.hasPending = false
	}
	b.flushPending()
	t.owner = newOwnership()
	b.built = joinAdjacent(b.built, b.closeLevels(), b.owner)
	b.built = joinAdjacent(b.built, t.root, b.owner)
	b.lastKey = t.root.lastElement().Key
	b.hasLast = true
	return nil
}

// Finish completes the build and returns the tree. The builder accepts no
// further input afterwards.
func (b *Builder[K, V]) Finish() *Tree[K, V] {
	assert(!b.done, "builder has already been completed")
	b.flushPending()
	root := joinAdjacent(b.built, b.closeLevels(), b.owner)
	b.built = nil
	b.done = true
	t := &Tree[K, V]{cfg: b.cfg, order: b.order, owner: b.owner, root: normalizeRootNode(root)}
	tracer().Debugf("btree: builder finished a tree of %d elements", t.Count())
	return t
}

// appendElement is the panic-on-misuse variant of Append for internal
// callers that produce sorted output by construction.
func (b *Builder[K, V]) appendElement(e Element[K, V]) {
	err := b.Append(e.Key, e.Payload)
	assert(err == nil, "builder fed with unsorted elements")
}

// appendSubtree splices a whole (possibly shared) subtree whose smallest
// key continues the key sequence.
func (b *Builder[K, V]) appendSubtree(n *node[K, V]) {
	if n == nil {
		return
	}
	b.flushPending()
	b.built = joinAdjacent(b.built, b.closeLevels(), b.owner)
	b.built = joinAdjacent(b.built, n, b.owner)
	b.lastKey = n.lastElement().Key
	b.hasLast = true
}

func (b *Builder[K, V]) flushPending() {
	if b.hasPending {
		b.flush(b.pending)
		b.hasPending = false
	}
}

// flush pushes an element into the open leaf. A full leaf is closed and
// promoted, with the element acting as the separator one level up.
func (b *Builder[K, V]) flush(e Element[K, V]) {
	leaf := b.openNode(0)
	if len(leaf.elements) == b.leafCap {
		b.levels[0] = nil
		leaf.recount()
		b.promote(leaf, e, 1)
		return
	}
	leaf.elements = append(leaf.elements, e)
}

// promote hands a completed child and its trailing separator to the open
// node of the next level. Open internal nodes hold as many separators as
// children; the final separator of a closing node bubbles further up.
func (b *Builder[K, V]) promote(child *node[K, V], sep Element[K, V], depth int) {
	n := b.openNode(depth)
	n.children = append(n.children, child)
	if len(n.children) == b.childCap {
		b.levels[depth] = nil
		n.recount()
		b.promote(n, sep, depth+1)
		return
	}
	n.elements = append(n.elements, sep)
}

func (b *Builder[K, V]) openNode(depth int) *node[K, V] {
	for len(b.levels) <= depth {
		b.levels = append(b.levels, nil)
	}
	if b.levels[depth] == nil {
		b.levels[depth] = &node[K, V]{owner: b.owner, order: b.order, depth: depth}
	}
	return b.levels[depth]
}

// closeLevels folds all open nodes into a single valid tree. An open
// internal node lacks its last child; its trailing separator is popped and
// re-joined with the fringe assembled from the levels below.
func (b *Builder[K, V]) closeLevels() *node[K, V] {
	var closed *node[K, V]
	for depth, n := range b.levels {
		if n == nil {
			continue
		}
		b.levels[depth] = nil
		if depth == 0 {
			if len(n.elements) == 0 {
				continue
			}
			n.recount()
			closed = n
			continue
		}
		sep := n.elements[len(n.elements)-1]
		n.elements = n.elements[:len(n.elements)-1]
		n.recount()
		closed = joinNodes(b.order, n, sep, closed, b.owner)
	}
	b.levels = b.levels[:0]
	return closed
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
