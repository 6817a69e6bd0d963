package btree

import (
	"cmp"
	"fmt"
)

const (
	// MinOrder is the smallest legal branching factor. Order 2 would cap
	// nodes at a single element, leaving no room for the rebalancing
	// rotations and merges.
	MinOrder = 3
	// MaxOrder caps the branching factor; larger nodes stop behaving like
	// tree nodes and start behaving like arrays.
	MaxOrder = 1 << 12

	// targetNodeFootprint is the per-node memory size used to derive a
	// default order when the configuration leaves Order at zero.
	targetNodeFootprint = 2048
)

// Selector is the tie-break rule applied when an operation meets duplicate
// keys.
type Selector uint8

const (
	// Any stops at the first match the search happens to find. It is the
	// cheapest selector and the right choice when keys are known to be
	// unique.
	Any Selector = iota
	// First selects the leftmost element matching the key.
	First
	// Last selects the rightmost element matching the key.
	Last
	// After selects the leftmost element whose key is strictly greater.
	After
)

func (sel Selector) String() string {
	switch sel {
	case Any:
		return "Any"
	case First:
		return "First"
	case Last:
		return "Last"
	case After:
		return "After"
	}
	return fmt.Sprintf("Selector(%d)", uint8(sel))
}

// Config configures an ordered key/payload tree.
//
// K is the key type; payload types are not constrained by the configuration.
type Config[K any] struct {
	// Order is the maximum number of children per internal node (the
	// branching factor). Zero selects a default derived from a per-node
	// memory footprint target.
	Order int
	// Compare establishes the total order on keys. It must return a value
	// less than, equal to, or greater than zero for a<b, a==b, a>b.
	Compare func(a, b K) int
}

// Lexical returns a comparison function for naturally ordered key types.
func Lexical[K cmp.Ordered]() func(a, b K) int {
	return cmp.Compare[K]
}

func (cfg Config[K]) validate() error {
	if cfg.Compare == nil {
		return fmt.Errorf("%w: compare function is required", ErrInvalidConfig)
	}
	if cfg.Order != 0 && (cfg.Order < MinOrder || cfg.Order > MaxOrder) {
		return fmt.Errorf("%w: order %d outside [%d, %d]", ErrInvalidConfig, cfg.Order, MinOrder, MaxOrder)
	}
	return nil
}

// LoadOptions tune sorted bulk loading.
type LoadOptions struct {
	// FillFactor is the target node occupancy in (0, 1]. Zero selects 1,
	// i.e. maximally dense nodes. Lower values trade lookup density for
	// insertion headroom.
	FillFactor float64
	// DropDuplicates keeps only the last-seen element per repeated key.
	DropDuplicates bool
}

func (opts LoadOptions) normalized() LoadOptions {
	if opts.FillFactor == 0 {
		opts.FillFactor = 1
	}
	return opts
}

func (opts LoadOptions) validate() error {
	if o := opts.normalized(); o.FillFactor <= 0 || o.FillFactor > 1 {
		return fmt.Errorf("%w: fill factor %v outside (0, 1]", ErrInvalidConfig, o.FillFactor)
	}
	return nil
}
