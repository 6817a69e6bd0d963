package btree

import "fmt"

// Check validates the tree's structural invariants: node occupancy bounds,
// child/element arity, cached subtree counts, uniform leaf depth and the
// key ordering across node boundaries. It returns nil or an error wrapping
// ErrInvariantViolation.
//
// Check is meant for tests and debugging; regular operations maintain the
// invariants without it.
func (t *Tree[K, V]) Check() error {
	t.ensureAttached()
	if t.root == nil {
		return nil
	}
	if !t.root.isLeaf() && len(t.root.children) < 2 {
		return fmt.Errorf("%w: inner root with %d children", ErrInvariantViolation, len(t.root.children))
	}
	return checkNode(t.root, t.order, t.cfg.Compare, true)
}

func checkNode[K, V any](n *node[K, V], order int, cmp func(K, K) int, isRoot bool) error {
	if n.order != order {
		return fmt.Errorf("%w: node order %d differs from tree order %d", ErrInvariantViolation, n.order, order)
	}
	if len(n.elements) > order-1 {
		return fmt.Errorf("%w: node holds %d elements, order %d allows %d",
			ErrInvariantViolation, len(n.elements), order, order-1)
	}
	if len(n.elements) == 0 && !isRoot {
		return fmt.Errorf("%w: empty non-root node", ErrInvariantViolation)
	}
	if !isRoot && len(n.elements) < (order-1)/2 {
		return fmt.Errorf("%w: node holds %d elements, below the floor %d",
			ErrInvariantViolation, len(n.elements), (order-1)/2)
	}
	for i := 1; i < len(n.elements); i++ {
		if cmp(n.elements[i-1].Key, n.elements[i].Key) > 0 {
			return fmt.Errorf("%w: keys out of order within a node", ErrInvariantViolation)
		}
	}
	if n.isLeaf() {
		if n.depth != 0 {
			return fmt.Errorf("%w: leaf at depth %d", ErrInvariantViolation, n.depth)
		}
		if n.count != len(n.elements) {
			return fmt.Errorf("%w: leaf count %d for %d elements", ErrInvariantViolation, n.count, len(n.elements))
		}
		return nil
	}
	if len(n.children) != len(n.elements)+1 {
		return fmt.Errorf("%w: inner node with %d elements but %d children",
			ErrInvariantViolation, len(n.elements), len(n.children))
	}
	cnt := len(n.elements)
	for i, child := range n.children {
		if child.depth != n.depth-1 {
			return fmt.Errorf("%w: child depth %d under a node of depth %d",
				ErrInvariantViolation, child.depth, n.depth)
		}
		if i > 0 && cmp(n.elements[i-1].Key, child.firstElement().Key) > 0 {
			return fmt.Errorf("%w: separator exceeds the following subtree's first key", ErrInvariantViolation)
		}
		if i < len(n.elements) && cmp(child.lastElement().Key, n.elements[i].Key) > 0 {
			return fmt.Errorf("%w: subtree's last key exceeds the following separator", ErrInvariantViolation)
		}
		if err := checkNode(child, order, cmp, false); err != nil {
			return err
		}
		cnt += child.count
	}
	if n.count != cnt {
		return fmt.Errorf("%w: cached count %d, subtree holds %d elements", ErrInvariantViolation, n.count, cnt)
	}
	return nil
}
