package btree

import "iter"

// ForEach calls fn for every element, in ascending key order.
func (t *Tree[K, V]) ForEach(fn func(key K, payload V)) {
	t.ensureAttached()
	forEachNode(t.root, func(e Element[K, V]) bool {
		fn(e.Key, e.Payload)
		return true
	})
}

// ForEachUntil calls fn for every element in ascending key order, stopping
// early as soon as fn returns false.
func (t *Tree[K, V]) ForEachUntil(fn func(key K, payload V) bool) {
	t.ensureAttached()
	forEachNode(t.root, func(e Element[K, V]) bool {
		return fn(e.Key, e.Payload)
	})
}

// All returns a range iterator over all key/payload pairs, in ascending key
// order. The tree must not be mutated during the iteration.
func (t *Tree[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		t.ensureAttached()
		forEachNode(t.root, func(e Element[K, V]) bool {
			return yield(e.Key, e.Payload)
		})
	}
}

// Keys returns a range iterator over all keys, in ascending order, with
// duplicates.
func (t *Tree[K, V]) Keys() iter.Seq[K] {
	return func(yield func(K) bool) {
		t.ensureAttached()
		forEachNode(t.root, func(e Element[K, V]) bool {
			return yield(e.Key)
		})
	}
}

func forEachNode[K, V any](n *node[K, V], fn func(Element[K, V]) bool) bool {
	if n == nil {
		return true
	}
	if n.isLeaf() {
		for _, e := range n.elements {
			if !fn(e) {
				return false
			}
		}
		return true
	}
	for i, child := range n.children {
		if !forEachNode(child, fn) {
			return false
		}
		if i < len(n.elements) && !fn(n.elements[i]) {
			return false
		}
	}
	return true
}
