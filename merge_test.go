package btree

import (
	"slices"
	"strconv"
	"testing"

	"github.com/npillmayer/schuko/gtrace"
	"github.com/npillmayer/schuko/tracing/gotestingadapter"
)

// multiset builds a tree from keys in the given order; payloads number the
// insertions so duplicate provenance stays visible.
func multiset(t *testing.T, order int, keys ...int) *Tree[int, string] {
	t.Helper()
	tree, err := New[int, string](Config[int]{Order: order, Compare: Lexical[int]()})
	if err != nil {
		t.Fatal(err.Error())
	}
	for i, k := range keys {
		tree.Insert(k, "v"+strconv.Itoa(i), Last)
	}
	return tree
}

func payloads(tree *Tree[int, string]) []string {
	vals := []string{}
	for _, v := range tree.All() {
		vals = append(vals, v)
	}
	return vals
}

func TestUnionInterleaved(t *testing.T) {
	gtrace.CoreTracer = gotestingadapter.New(t)
	teardown := gotestingadapter.RedirectTracing(t)
	defer teardown()
	//
	evens := intTree(t, 5)
	odds := intTree(t, 5)
	for k := 0; k < 100; k += 2 {
		evens.Insert(k, strconv.Itoa(k), Any)
		odds.Insert(k+1, strconv.Itoa(k+1), Any)
	}
	u := evens.Union(odds)
	checked(t, u)
	checked(t, evens)
	checked(t, odds)
	if !slices.Equal(treeKeys(u), ascending(0, 100)) {
		t.Errorf("union keys = %v", treeKeys(u))
	}
	u.Remove(42, Any)
	if !evens.Contains(42) {
		t.Error("editing the union changed an operand")
	}
}

func TestUnionDuplicatePrecedence(t *testing.T) {
	a := intTree(t, 4)
	a.Insert(1, "a1", Last)
	a.Insert(2, "a2", Last)
	b := intTree(t, 4)
	b.Insert(1, "b1", Last)
	u := a.Union(b)
	checked(t, u)
	if !slices.Equal(treeKeys(u), []int{1, 1, 2}) {
		t.Fatalf("union keys = %v", treeKeys(u))
	}
	if vals := payloads(u); !slices.Equal(vals, []string{"a1", "b1", "a2"}) {
		t.Errorf("union payloads = %v, expected the receiver's duplicate first", vals)
	}
}

func TestSubtractingRuns(t *testing.T) {
	gtrace.CoreTracer = gotestingadapter.New(t)
	teardown := gotestingadapter.RedirectTracing(t)
	defer teardown()
	//
	a := multiset(t, 3, 0, 0, 0, 0, 3, 4, 6, 6, 6, 6, 7, 7)
	b := multiset(t, 3, 0, 0, 1, 1, 3, 3, 6, 8)
	diff := a.Subtracting(b)
	checked(t, diff)
	if !slices.Equal(treeKeys(diff), []int{4, 7, 7}) {
		t.Errorf("difference keys = %v, expected [4 7 7]", treeKeys(diff))
	}
	checked(t, a)
	checked(t, b)
}

func TestIntersectionKeepsReceiverRuns(t *testing.T) {
	a := multiset(t, 4, 1, 2, 2, 3, 5)
	b := multiset(t, 4, 2, 5, 5, 9)
	got := a.Intersection(b)
	checked(t, got)
	if !slices.Equal(treeKeys(got), []int{2, 2, 5}) {
		t.Errorf("intersection keys = %v, expected [2 2 5]", treeKeys(got))
	}
}

func TestDistinctUnionSecondWins(t *testing.T) {
	a := multiset(t, 4, 1, 2, 3)    // 2:v1
	b := multiset(t, 4, 2, 2, 4)    // 2:v0 2:v1
	got := a.DistinctUnion(b)
	checked(t, got)
	if !slices.Equal(treeKeys(got), []int{1, 2, 2, 3, 4}) {
		t.Fatalf("distinct union keys = %v", treeKeys(got))
	}
	// the run for the shared key 2 comes from b
	sub := got.SubtreeFromKey(2).SubtreeUpToKey(3)
	if vals := payloads(sub); !slices.Equal(vals, []string{"v0", "v1"}) {
		t.Errorf("run for key 2 = %v, expected b's run", vals)
	}
}

func TestSymmetricDifference(t *testing.T) {
	a := multiset(t, 4, 1, 2, 2, 3)
	b := multiset(t, 4, 2, 4)
	got := a.SymmetricDifference(b)
	checked(t, got)
	if !slices.Equal(treeKeys(got), []int{1, 3, 4}) {
		t.Errorf("xor keys = %v, expected [1 3 4]", treeKeys(got))
	}
}

func TestMergeAlgebraicIdentities(t *testing.T) {
	gtrace.CoreTracer = gotestingadapter.New(t)
	teardown := gotestingadapter.RedirectTracing(t)
	defer teardown()
	//
	// duplicate-heavy operand pairs; for each, recombining difference and
	// intersection must reproduce the receiver, and the symmetric difference
	// must equal union minus intersection, both as multisets
	cases := []struct{ a, b []int }{
		{[]int{0, 0, 0, 0, 3, 4, 6, 6, 6, 6, 7, 7}, []int{0, 0, 1, 1, 3, 3, 6, 8}},
		{[]int{1, 1, 2, 3, 3, 3, 5, 5, 9}, []int{1, 3, 3, 4, 5, 5, 5, 9, 9}},
		{[]int{2, 2, 2, 2, 2}, []int{2}},
		{[]int{}, []int{1, 1, 2}},
		{[]int{4, 4, 8, 8, 12}, []int{1, 3, 5, 7, 9}},
	}
	for _, order := range []int{3, 4, 5, 6} {
		for i, c := range cases {
			a := multiset(t, order, c.a...)
			b := multiset(t, order, c.b...)
			sub := a.Subtracting(b)
			inter := a.Intersection(b)
			recombined := sub.Union(inter)
			checked(t, recombined)
			if !slices.Equal(treeKeys(recombined), treeKeys(a)) {
				t.Errorf("order %d case %d: subtract + intersect = %v, expected %v",
					order, i, treeKeys(recombined), treeKeys(a))
			}
			xor := a.SymmetricDifference(b)
			alt := a.Union(b).Subtracting(inter)
			checked(t, xor)
			if !slices.Equal(treeKeys(xor), treeKeys(alt)) {
				t.Errorf("order %d case %d: xor = %v, union minus intersection = %v",
					order, i, treeKeys(xor), treeKeys(alt))
			}
		}
	}
}

func TestMergeOnSharedSubtrees(t *testing.T) {
	gtrace.CoreTracer = gotestingadapter.New(t)
	teardown := gotestingadapter.RedirectTracing(t)
	defer teardown()
	//
	// clones share almost all nodes, which merge walks splice wholesale
	base := intTree(t, 5, ascending(0, 1000)...)
	variant := base.Clone()
	variant.Insert(5000, "extra", Any)
	variant.Remove(500, Any)

	diff := variant.Subtracting(base)
	checked(t, diff)
	if !slices.Equal(treeKeys(diff), []int{5000}) {
		t.Errorf("difference keys = %v, expected [5000]", treeKeys(diff))
	}
	both := variant.Intersection(base)
	checked(t, both)
	if both.Count() != 999 || both.Contains(500) || both.Contains(5000) {
		t.Errorf("intersection count = %d", both.Count())
	}
	missing := base.Subtracting(variant)
	if !slices.Equal(treeKeys(missing), []int{500}) {
		t.Errorf("reverse difference keys = %v, expected [500]", treeKeys(missing))
	}
	checked(t, base)
	checked(t, variant)
}

func TestElementsEqual(t *testing.T) {
	base := intTree(t, 5, ascending(0, 500)...)
	clone := base.Clone()
	if !base.ElementsEqual(clone, nil) {
		t.Error("clone not equal to its original")
	}
	same := func(a, b string) bool { return a == b }
	if !base.ElementsEqual(clone, same) {
		t.Error("clone payloads not equal to the original's")
	}
	clone.SetPayloadAt(250, "changed")
	if !base.ElementsEqual(clone, nil) {
		t.Error("key comparison should ignore payloads")
	}
	if base.ElementsEqual(clone, same) {
		t.Error("payload comparison missed a change")
	}
	clone.Remove(250, Any)
	if base.ElementsEqual(clone, nil) {
		t.Error("trees of different counts compared equal")
	}
	rebuilt := intTree(t, 5, ascending(0, 500)...)
	if !base.ElementsEqual(rebuilt, nil) {
		t.Error("structurally different trees with equal keys compared unequal")
	}
}

func TestMergeDisjointRanges(t *testing.T) {
	low := intTree(t, 4, ascending(0, 200)...)
	high := intTree(t, 4, ascending(200, 400)...)
	u := low.Union(high)
	checked(t, u)
	if !slices.Equal(treeKeys(u), ascending(0, 400)) {
		t.Errorf("union of disjoint ranges lost elements: %d", u.Count())
	}
	if got := low.Intersection(high); !got.IsEmpty() {
		t.Errorf("intersection of disjoint ranges = %v", treeKeys(got))
	}
	if got := low.Subtracting(high); got.Count() != 200 {
		t.Errorf("difference with a disjoint tree = %d elements", got.Count())
	}
}
