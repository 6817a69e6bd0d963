package btree

// The merge operations treat a tree as a multiset of elements grouped into
// runs of equal keys. Membership decisions are made per key, never per
// duplicate: Subtracting, for example, drops the receiver's whole run for
// every key the other tree contains, regardless of how many duplicates
// either side holds.
//
// All operations walk both operands in lockstep through strands (see
// below) and emit the result through a Builder, so the output is built in
// one bottom-up pass. Subtrees that both operands share (by node identity,
// the natural result of cloning) and subtrees that lie entirely between
// two keys of the other operand are spliced into the output wholesale
// instead of element by element.

// Union returns a tree with all elements of both operands. Duplicates are
// kept; among equal keys the receiver's elements precede other's.
func (t *Tree[K, V]) Union(other *Tree[K, V]) *Tree[K, V] {
	sa, sb, bld := t.mergeSetup(other)
	cmp := t.cfg.Compare
	for {
		ea, okA := sa.peek()
		eb, okB := sb.peek()
		if !okA || !okB {
			break
		}
		if cmp(ea.Key, eb.Key) <= 0 {
			sa.copyWhileLess(eb.Key, true, bld)
		} else {
			sb.copyWhileLess(ea.Key, false, bld)
		}
	}
	sa.copyRest(bld)
	sb.copyRest(bld)
	return bld.Finish()
}

// DistinctUnion returns a tree with the elements of both operands, except
// that for keys present in both, other's run of elements replaces the
// receiver's. Duplicates within one operand pass through untouched.
func (t *Tree[K, V]) DistinctUnion(other *Tree[K, V]) *Tree[K, V] {
	sa, sb, bld := t.mergeSetup(other)
	cmp := t.cfg.Compare
	var ca, cb []*node[K, V]
	for {
		ca, cb = sa.spliceCandidates(ca), sb.spliceCandidates(cb)
		if shared := firstShared(ca, cb); shared != nil {
			// identical subtrees carry identical runs, so either version
			// serves; the trailing key may continue on both sides
			bld.appendSubtree(shared)
			last := shared.lastElement().Key
			sa.consume(shared)
			sb.consume(shared)
			sa.skipWhileLess(last, true)
			sb.copyWhileLess(last, true, bld)
			continue
		}
		ea, okA := sa.peek()
		eb, okB := sb.peek()
		if !okA || !okB {
			break
		}
		switch c := cmp(ea.Key, eb.Key); {
		case c < 0:
			sa.copyWhileLess(eb.Key, false, bld)
		case c > 0:
			sb.copyWhileLess(ea.Key, false, bld)
		default:
			sa.skipWhileLess(ea.Key, true)
			sb.copyWhileLess(ea.Key, true, bld)
		}
	}
	sa.copyRest(bld)
	sb.copyRest(bld)
	return bld.Finish()
}

// Intersection returns a tree with the receiver's runs for all keys that
// other contains as well.
func (t *Tree[K, V]) Intersection(other *Tree[K, V]) *Tree[K, V] {
	sa, sb, bld := t.mergeSetup(other)
	cmp := t.cfg.Compare
	var ca, cb []*node[K, V]
	for {
		ca, cb = sa.spliceCandidates(ca), sb.spliceCandidates(cb)
		if shared := firstShared(ca, cb); shared != nil {
			bld.appendSubtree(shared)
			last := shared.lastElement().Key
			sa.consume(shared)
			sb.consume(shared)
			sa.copyWhileLess(last, true, bld)
			sb.skipWhileLess(last, true)
			continue
		}
		ea, okA := sa.peek()
		eb, okB := sb.peek()
		if !okA || !okB {
			break
		}
		switch c := cmp(ea.Key, eb.Key); {
		case c < 0:
			sa.skipWhileLess(eb.Key, false)
		case c > 0:
			sb.skipWhileLess(ea.Key, false)
		default:
			sa.copyWhileLess(ea.Key, true, bld)
			sb.skipWhileLess(ea.Key, true)
		}
	}
	return bld.Finish()
}

// Subtracting returns a tree with the receiver's runs for all keys that
// other does not contain.
func (t *Tree[K, V]) Subtracting(other *Tree[K, V]) *Tree[K, V] {
	sa, sb, bld := t.mergeSetup(other)
	cmp := t.cfg.Compare
	var ca, cb []*node[K, V]
	for {
		ca, cb = sa.spliceCandidates(ca), sb.spliceCandidates(cb)
		if shared := firstShared(ca, cb); shared != nil {
			last := shared.lastElement().Key
			sa.consume(shared)
			sb.consume(shared)
			sa.skipWhileLess(last, true)
			sb.skipWhileLess(last, true)
			continue
		}
		ea, okA := sa.peek()
		if !okA {
			break
		}
		eb, okB := sb.peek()
		if !okB {
			break
		}
		switch c := cmp(ea.Key, eb.Key); {
		case c < 0:
			sa.copyWhileLess(eb.Key, false, bld)
		case c > 0:
			sb.skipWhileLess(ea.Key, false)
		default:
			sa.skipWhileLess(ea.Key, true)
			sb.skipWhileLess(ea.Key, true)
		}
	}
	sa.copyRest(bld)
	return bld.Finish()
}

// SymmetricDifference returns a tree with the runs of both operands whose
// key appears in only one of them.
func (t *Tree[K, V]) SymmetricDifference(other *Tree[K, V]) *Tree[K, V] {
	sa, sb, bld := t.mergeSetup(other)
	cmp := t.cfg.Compare
	var ca, cb []*node[K, V]
	for {
		ca, cb = sa.spliceCandidates(ca), sb.spliceCandidates(cb)
		if shared := firstShared(ca, cb); shared != nil {
			last := shared.lastElement().Key
			sa.consume(shared)
			sb.consume(shared)
			sa.skipWhileLess(last, true)
			sb.skipWhileLess(last, true)
			continue
		}
		ea, okA := sa.peek()
		eb, okB := sb.peek()
		if !okA || !okB {
			break
		}
		switch c := cmp(ea.Key, eb.Key); {
		case c < 0:
			sa.copyWhileLess(eb.Key, false, bld)
		case c > 0:
			sb.copyWhileLess(ea.Key, false, bld)
		default:
			sa.skipWhileLess(ea.Key, true)
			sb.skipWhileLess(ea.Key, true)
		}
	}
	sa.copyRest(bld)
	sb.copyRest(bld)
	return bld.Finish()
}

// ElementsEqual reports whether both trees hold the same key sequence.
// When samePayload is non-nil it is consulted for each element pair as
// well. Shared subtrees are skipped without visiting their elements.
func (t *Tree[K, V]) ElementsEqual(other *Tree[K, V], samePayload func(a, b V) bool) bool {
	t.ensureAttached()
	other.ensureAttached()
	if t.root == other.root {
		return true
	}
	if t.Count() != other.Count() {
		return false
	}
	cmp := t.cfg.Compare
	sa, sb := strandOf(t), strandOf(other)
	var ca, cb []*node[K, V]
	for {
		if samePayload == nil {
			ca, cb = sa.spliceCandidates(ca), sb.spliceCandidates(cb)
			if shared := firstShared(ca, cb); shared != nil {
				sa.consume(shared)
				sb.consume(shared)
				continue
			}
		}
		ea, okA := sa.peek()
		eb, okB := sb.peek()
		if !okA || !okB {
			return okA == okB
		}
		if cmp(ea.Key, eb.Key) != 0 {
			return false
		}
		if samePayload != nil && !samePayload(ea.Payload, eb.Payload) {
			return false
		}
		sa.advance()
		sb.advance()
	}
}

// mergeSetup prepares the operand strands and the output builder. Both
// operands give up exclusive node ownership, since the result will share
// subtrees with them.
func (t *Tree[K, V]) mergeSetup(other *Tree[K, V]) (*strand[K, V], *strand[K, V], *Builder[K, V]) {
	t.ensureAttached()
	other.ensureAttached()
	assert(t.order == other.order, "merge of trees with different order")
	tracer().Debugf("btree: merging trees of %d and %d elements", t.Count(), other.Count())
	t.owner = newOwnership()
	other.owner = newOwnership()
	bld, err := NewBuilder[K, V](Config[K]{Order: t.order, Compare: t.cfg.Compare}, LoadOptions{})
	assert(err == nil, "merge output builder rejected the tree configuration")
	return strandOf(t), strandOf(other), bld
}

// --- strands ------------------------------------------------------------

// strand is a resumable in-order walk over one merge operand. Unlike the
// recursive iteration it exposes its descent path, which is what allows
// skipping or emitting whole subtrees: a pending child can be consumed in
// one step instead of being entered.
type strand[K, V any] struct {
	cmp  func(K, K) int
	path []strandFrame[K, V]
}

// strandFrame is one step of the walk. On a leaf, slot is the next element
// to deliver. On an inner node, slot/onElement alternate between "descend
// into children[slot] next" (onElement false) and "deliver elements[slot]
// next" (onElement true).
type strandFrame[K, V any] struct {
	n         *node[K, V]
	slot      int
	onElement bool
}

func strandOf[K, V any](t *Tree[K, V]) *strand[K, V] {
	s := &strand[K, V]{cmp: t.cfg.Compare}
	if t.root != nil {
		s.path = append(s.path, strandFrame[K, V]{n: t.root})
	}
	return s
}

func (s *strand[K, V]) top() *strandFrame[K, V] {
	return &s.path[len(s.path)-1]
}

// settle pops exhausted frames. Afterwards the top frame either delivers
// an element or waits to descend into a child; settle reports false when
// the walk is complete.
func (s *strand[K, V]) settle() bool {
	for len(s.path) > 0 {
		f := s.top()
		if f.n.isLeaf() || f.onElement {
			if f.slot < len(f.n.elements) {
				return true
			}
			s.pop()
			continue
		}
		return true
	}
	return false
}

// readyElement reports whether the settled top frame delivers an element
// (as opposed to waiting to descend).
func (s *strand[K, V]) readyElement() bool {
	f := s.top()
	return f.n.isLeaf() || f.onElement
}

func (s *strand[K, V]) current() Element[K, V] {
	f := s.top()
	return f.n.elements[f.slot]
}

// advance moves past the delivered element; on an inner node the walk
// continues in the following child.
func (s *strand[K, V]) advance() {
	f := s.top()
	f.slot++
	f.onElement = false
}

func (s *strand[K, V]) descend() {
	f := s.top()
	s.path = append(s.path, strandFrame[K, V]{n: f.n.children[f.slot]})
}

// pop finishes a child; the parent's separator after it comes next.
func (s *strand[K, V]) pop() {
	s.path = s.path[:len(s.path)-1]
	if len(s.path) > 0 {
		s.top().onElement = true
	}
}

// peek returns the next element without consuming it, descending as far as
// necessary.
func (s *strand[K, V]) peek() (Element[K, V], bool) {
	for s.settle() {
		if s.readyElement() {
			return s.current(), true
		}
		s.descend()
	}
	var zero Element[K, V]
	return zero, false
}

// copyWhileLess emits elements into the builder while their key is below
// the limit (or equal, when inclusive is set). Pending subtrees that fall
// entirely below the limit are spliced wholesale.
func (s *strand[K, V]) copyWhileLess(limit K, inclusive bool, b *Builder[K, V]) {
	for s.settle() {
		f := s.top()
		if !s.readyElement() {
			child := f.n.children[f.slot]
			if c := s.cmp(child.lastElement().Key, limit); c < 0 || (inclusive && c == 0) {
				b.appendSubtree(child)
				f.onElement = true
				continue
			}
			s.descend()
			continue
		}
		e := f.n.elements[f.slot]
		if c := s.cmp(e.Key, limit); c > 0 || (!inclusive && c == 0) {
			return
		}
		b.appendElement(e)
		s.advance()
	}
}

// skipWhileLess discards elements below (or through) the limit, skipping
// pending subtrees wholesale.
func (s *strand[K, V]) skipWhileLess(limit K, inclusive bool) {
	for s.settle() {
		f := s.top()
		if !s.readyElement() {
			child := f.n.children[f.slot]
			if c := s.cmp(child.lastElement().Key, limit); c < 0 || (inclusive && c == 0) {
				f.onElement = true
				continue
			}
			s.descend()
			continue
		}
		if c := s.cmp(f.n.elements[f.slot].Key, limit); c > 0 || (!inclusive && c == 0) {
			return
		}
		s.advance()
	}
}

// copyRest emits everything left on the strand, splicing whole pending
// subtrees.
func (s *strand[K, V]) copyRest(b *Builder[K, V]) {
	for s.settle() {
		f := s.top()
		if !s.readyElement() {
			b.appendSubtree(f.n.children[f.slot])
			f.onElement = true
			continue
		}
		b.appendElement(f.n.elements[f.slot])
		s.advance()
	}
}

// spliceCandidates collects the nodes whose first element is the strand's
// next element, outermost first: the virgin tail of the path plus the
// leftmost chain below a pending child. A node shared with the other
// operand's candidates can be consumed in one step.
func (s *strand[K, V]) spliceCandidates(buf []*node[K, V]) []*node[K, V] {
	buf = buf[:0]
	if !s.settle() {
		return buf
	}
	v := len(s.path)
	for v > 0 {
		f := s.path[v-1]
		if f.slot != 0 || f.onElement {
			break
		}
		v--
	}
	for i := v; i < len(s.path); i++ {
		buf = append(buf, s.path[i].n)
	}
	if f := s.top(); !f.n.isLeaf() && !f.onElement {
		for c := f.n.children[f.slot]; ; c = c.children[0] {
			buf = append(buf, c)
			if c.isLeaf() {
				break
			}
		}
	}
	return buf
}

// firstShared returns the outermost node present in both candidate lists.
func firstShared[K, V any](as, bs []*node[K, V]) *node[K, V] {
	for _, x := range as {
		for _, y := range bs {
			if x == y {
				return x
			}
		}
	}
	return nil
}

// consume drops an entire pending candidate subtree from the walk.
func (s *strand[K, V]) consume(target *node[K, V]) {
	for i := len(s.path) - 1; i >= 0; i-- {
		if s.path[i].n == target {
			s.path = s.path[:i]
			if len(s.path) > 0 {
				s.top().onElement = true
			}
			return
		}
	}
	for {
		f := s.top()
		if f.n.children[f.slot] == target {
			f.onElement = true
			return
		}
		s.descend()
	}
}
