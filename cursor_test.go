package btree

import (
	"slices"
	"strconv"
	"testing"

	"github.com/npillmayer/schuko/gtrace"
	"github.com/npillmayer/schuko/tracing"
	"github.com/npillmayer/schuko/tracing/gotestingadapter"
)

func panics(fn func()) (p bool) {
	defer func() {
		p = recover() != nil
	}()
	fn()
	return
}

func TestCursorAppendsIntoEmptyTree(t *testing.T) {
	gtrace.CoreTracer = gotestingadapter.New(t)
	teardown := gotestingadapter.RedirectTracing(t)
	defer teardown()
	gtrace.CoreTracer.SetTraceLevel(tracing.LevelDebug)
	//
	tree := intTree(t, 3)
	c := tree.CursorAtEnd()
	for k := range 30 {
		c.Insert(k, strconv.Itoa(k))
	}
	if !c.IsAtEnd() || c.Count() != 30 {
		t.Errorf("cursor at %d of %d, expected the end of 30 elements", c.Offset(), c.Count())
	}
	tree = c.Finish()
	checked(t, tree)
	if !slices.Equal(treeKeys(tree), ascending(0, 30)) {
		t.Errorf("keys = %v", treeKeys(tree))
	}
}

func TestCursorDetachesTree(t *testing.T) {
	tree := intTree(t, 4, 1, 2, 3)
	c := tree.Cursor()
	if !panics(func() { tree.Count() }) {
		t.Error("expected the detached tree to refuse operations")
	}
	if !panics(func() { tree.Cursor() }) {
		t.Error("expected a second checkout to panic")
	}
	c.Finish()
	if tree.Count() != 3 {
		t.Error("tree not usable again after Finish")
	}
}

func TestCursorMovement(t *testing.T) {
	tree := intTree(t, 4, ascending(0, 50)...)
	c := tree.Cursor()
	for k := 0; k < 50; k++ {
		e, ok := c.Element()
		if !ok || e.Key != k {
			t.Fatalf("cursor element = %v/%v at offset %d", e, ok, c.Offset())
		}
		c.MoveForward()
	}
	if !c.IsAtEnd() || c.MoveForward() {
		t.Error("cursor moved past the end")
	}
	for k := 49; k >= 0; k-- {
		if !c.MoveBackward() {
			t.Fatalf("MoveBackward refused at offset %d", c.Offset())
		}
		if e, _ := c.Element(); e.Key != k {
			t.Fatalf("element after MoveBackward = %d, expected %d", e.Key, k)
		}
	}
	if c.MoveBackward() {
		t.Error("cursor moved before the start")
	}
	c.MoveTo(25)
	if e, _ := c.Element(); e.Key != 25 {
		t.Errorf("element after MoveTo(25) = %d", e.Key)
	}
	checked(t, c.Finish())
}

func TestCursorMoveToKey(t *testing.T) {
	tree := intTree(t, 4, 1, 3, 3, 3, 5, 9)
	c := tree.Cursor()
	if !c.MoveToKey(3, First) || c.Offset() != 1 {
		t.Errorf("MoveToKey(3, First) left the cursor at %d", c.Offset())
	}
	if !c.MoveToKey(3, Last) || c.Offset() != 3 {
		t.Errorf("MoveToKey(3, Last) left the cursor at %d", c.Offset())
	}
	if c.MoveToKey(7, Any) {
		t.Error("MoveToKey found an absent key")
	}
	if c.Offset() != 5 {
		t.Errorf("miss left the cursor at %d, expected the insertion point 5", c.Offset())
	}
	c.Insert(7, "seven")
	tree = c.Finish()
	checked(t, tree)
	if !slices.Equal(treeKeys(tree), []int{1, 3, 3, 3, 5, 7, 9}) {
		t.Errorf("keys = %v", treeKeys(tree))
	}
}

func TestCursorRemoveSequence(t *testing.T) {
	gtrace.CoreTracer = gotestingadapter.New(t)
	teardown := gotestingadapter.RedirectTracing(t)
	defer teardown()
	//
	tree := intTree(t, 4, ascending(0, 50)...)
	c := tree.CursorAt(25)
	for k := 25; k < 35; k++ {
		e := c.Remove()
		if e.Key != k {
			t.Fatalf("removed key %d, expected %d", e.Key, k)
		}
		if next, ok := c.Element(); ok && next.Key != k+1 {
			t.Fatalf("cursor on %d after removing %d", next.Key, k)
		}
	}
	tree = c.Finish()
	checked(t, tree)
	want := append(ascending(0, 25), ascending(35, 50)...)
	if !slices.Equal(treeKeys(tree), want) {
		t.Errorf("keys = %v", treeKeys(tree))
	}
}

func TestCursorRemoveRun(t *testing.T) {
	tree := intTree(t, 5, ascending(0, 40)...)
	c := tree.CursorAt(5)
	c.RemoveRun(30)
	if c.Offset() != 5 || c.Count() != 10 {
		t.Errorf("cursor at %d of %d after the run removal", c.Offset(), c.Count())
	}
	tree = c.Finish()
	checked(t, tree)
	if !slices.Equal(treeKeys(tree), append(ascending(0, 5), ascending(35, 40)...)) {
		t.Errorf("keys = %v", treeKeys(tree))
	}
}

func TestCursorExtract(t *testing.T) {
	gtrace.CoreTracer = gotestingadapter.New(t)
	teardown := gotestingadapter.RedirectTracing(t)
	defer teardown()
	//
	tree := intTree(t, 4, ascending(0, 40)...)
	c := tree.CursorAt(10)
	mid := c.Extract(10)
	checked(t, mid)
	if !slices.Equal(treeKeys(mid), ascending(10, 20)) {
		t.Errorf("extracted keys = %v", treeKeys(mid))
	}
	if e, _ := c.Element(); e.Key != 20 {
		t.Errorf("cursor on %d after extraction, expected 20", e.Key)
	}
	tree = c.Finish()
	checked(t, tree)
	if !slices.Equal(treeKeys(tree), append(ascending(0, 10), ascending(20, 40)...)) {
		t.Errorf("keys = %v", treeKeys(tree))
	}
}

func TestCursorInsertTree(t *testing.T) {
	tree := intTree(t, 4, append(ascending(0, 10), ascending(20, 30)...)...)
	mid := intTree(t, 4, ascending(10, 20)...)
	c := tree.CursorAt(10)
	c.InsertTree(mid)
	if c.Offset() != 20 {
		t.Errorf("cursor at %d after splicing, expected 20", c.Offset())
	}
	tree = c.Finish()
	checked(t, tree)
	checked(t, mid)
	if !slices.Equal(treeKeys(tree), ascending(0, 30)) {
		t.Errorf("keys = %v", treeKeys(tree))
	}
	tree.Remove(15, Any)
	if !mid.Contains(15) {
		t.Error("editing the spliced tree changed the source")
	}
}

func TestCursorTrimEnds(t *testing.T) {
	tree := intTree(t, 4, ascending(0, 30)...)
	c := tree.CursorAt(5)
	c.RemoveAllBefore()
	if c.Offset() != 0 || c.Count() != 25 {
		t.Errorf("cursor at %d of %d after RemoveAllBefore", c.Offset(), c.Count())
	}
	c.MoveTo(10)
	c.RemoveAllAfter(false)
	if c.Count() != 11 {
		t.Errorf("count = %d after RemoveAllAfter(false), expected 11", c.Count())
	}
	tree = c.Finish()
	checked(t, tree)
	if !slices.Equal(treeKeys(tree), ascending(5, 16)) {
		t.Errorf("keys = %v", treeKeys(tree))
	}
}

func TestCursorInsertAfterAndSetPayload(t *testing.T) {
	tree := intTree(t, 4, 1, 2, 4)
	c, ok := tree.CursorAtKey(2, Any)
	if !ok {
		t.Fatal("CursorAtKey missed an existing key")
	}
	c.InsertAfter(3, "three")
	if e, _ := c.Element(); e.Key != 3 {
		t.Errorf("cursor on %d after InsertAfter, expected the new element", e.Key)
	}
	c.SetPayload("drei")
	tree = c.Finish()
	checked(t, tree)
	if v, _ := tree.Get(3, Any); v != "drei" {
		t.Errorf("payload of 3 = %q", v)
	}
	if !slices.Equal(treeKeys(tree), []int{1, 2, 3, 4}) {
		t.Errorf("keys = %v", treeKeys(tree))
	}
}

func TestCursorMixedBatch(t *testing.T) {
	gtrace.CoreTracer = gotestingadapter.New(t)
	teardown := gotestingadapter.RedirectTracing(t)
	defer teardown()
	//
	tree := intTree(t, 3, ascending(0, 100)...)
	c := tree.Cursor()
	// drop every third element, then re-insert a tail
	for !c.IsAtEnd() {
		e, _ := c.Element()
		if e.Key%3 == 0 {
			c.Remove()
			continue
		}
		c.MoveForward()
	}
	for k := 100; k < 110; k++ {
		c.Insert(k, strconv.Itoa(k))
	}
	tree = c.Finish()
	checked(t, tree)
	want := []int{}
	for k := range 100 {
		if k%3 != 0 {
			want = append(want, k)
		}
	}
	want = append(want, ascending(100, 110)...)
	if !slices.Equal(treeKeys(tree), want) {
		t.Errorf("keys = %v", treeKeys(tree))
	}
}
