package btree

import (
	"errors"
	"slices"
	"strconv"
	"testing"

	"github.com/npillmayer/schuko/gtrace"
	"github.com/npillmayer/schuko/tracing/gotestingadapter"
)

func TestFromSorted(t *testing.T) {
	gtrace.CoreTracer = gotestingadapter.New(t)
	teardown := gotestingadapter.RedirectTracing(t)
	defer teardown()
	//
	elements := make([]Element[int, string], 100)
	for k := range elements {
		elements[k] = Element[int, string]{Key: k, Payload: strconv.Itoa(k)}
	}
	tree, err := FromSorted(Config[int]{Order: 5, Compare: Lexical[int]()}, LoadOptions{}, elements)
	if err != nil {
		t.Fatal(err.Error())
	}
	checked(t, tree)
	if tree.Count() != 100 {
		t.Errorf("count = %d, expected 100", tree.Count())
	}
	if !slices.Equal(treeKeys(tree), ascending(0, 100)) {
		t.Errorf("keys = %v", treeKeys(tree))
	}
	if v, _ := tree.Get(73, Any); v != "73" {
		t.Errorf("payload of 73 = %q", v)
	}
}

func TestFromSortedEmpty(t *testing.T) {
	tree, err := FromSorted(Config[int]{Order: 4, Compare: Lexical[int]()}, LoadOptions{}, []Element[int, string](nil))
	if err != nil {
		t.Fatal(err.Error())
	}
	if !tree.IsEmpty() {
		t.Error("bulk load of no elements produced a non-empty tree")
	}
	checked(t, tree)
}

func TestFromSortedRejectsUnsorted(t *testing.T) {
	_, err := FromSorted(Config[int]{Order: 4, Compare: Lexical[int]()}, LoadOptions{},
		[]Element[int, string]{{Key: 5}, {Key: 3}})
	if !errors.Is(err, ErrKeysUnsorted) {
		t.Errorf("err = %v, expected ErrKeysUnsorted", err)
	}
}

func TestBuilderFillFactor(t *testing.T) {
	gtrace.CoreTracer = gotestingadapter.New(t)
	teardown := gotestingadapter.RedirectTracing(t)
	defer teardown()
	//
	elements := make([]Element[int, string], 200)
	for k := range elements {
		elements[k] = Element[int, string]{Key: k}
	}
	dense, err := FromSorted(Config[int]{Order: 9, Compare: Lexical[int]()}, LoadOptions{FillFactor: 1}, elements)
	if err != nil {
		t.Fatal(err.Error())
	}
	loose, err := FromSorted(Config[int]{Order: 9, Compare: Lexical[int]()}, LoadOptions{FillFactor: 0.5}, elements)
	if err != nil {
		t.Fatal(err.Error())
	}
	checked(t, dense)
	checked(t, loose)
	if !slices.Equal(treeKeys(dense), treeKeys(loose)) {
		t.Error("fill factor changed the element sequence")
	}
	if _, err := NewBuilder[int, string](Config[int]{Order: 4, Compare: Lexical[int]()},
		LoadOptions{FillFactor: 1.5}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("err = %v, expected ErrInvalidConfig for fill factor 1.5", err)
	}
}

func TestBuilderDropDuplicates(t *testing.T) {
	b, err := NewBuilder[int, string](Config[int]{Order: 4, Compare: Lexical[int]()},
		LoadOptions{DropDuplicates: true})
	if err != nil {
		t.Fatal(err.Error())
	}
	input := []Element[int, string]{
		{1, "a"}, {2, "b"}, {2, "c"}, {2, "d"}, {3, "e"},
	}
	for _, e := range input {
		if err := b.Append(e.Key, e.Payload); err != nil {
			t.Fatal(err.Error())
		}
	}
	tree := b.Finish()
	checked(t, tree)
	if !slices.Equal(treeKeys(tree), []int{1, 2, 3}) {
		t.Errorf("keys = %v, expected deduplicated [1 2 3]", treeKeys(tree))
	}
	if v, _ := tree.Get(2, Any); v != "d" {
		t.Errorf("payload of 2 = %q, expected the last duplicate to win", v)
	}
}

func TestBuilderMisuse(t *testing.T) {
	b, err := NewBuilder[int, string](Config[int]{Order: 4, Compare: Lexical[int]()}, LoadOptions{})
	if err != nil {
		t.Fatal(err.Error())
	}
	if err := b.Append(5, "x"); err != nil {
		t.Fatal(err.Error())
	}
	if err := b.Append(3, "y"); !errors.Is(err, ErrKeysUnsorted) {
		t.Errorf("err = %v, expected ErrKeysUnsorted", err)
	}
	if err := b.Append(5, "z"); err != nil {
		t.Errorf("equal key rejected: %v", err)
	}
	tree := b.Finish()
	checked(t, tree)
	if err := b.Append(9, "w"); !errors.Is(err, ErrBuilderCompleted) {
		t.Errorf("err = %v, expected ErrBuilderCompleted", err)
	}
	if !slices.Equal(treeKeys(tree), []int{5, 5}) {
		t.Errorf("keys = %v", treeKeys(tree))
	}
}

func TestBuilderAppendTree(t *testing.T) {
	gtrace.CoreTracer = gotestingadapter.New(t)
	teardown := gotestingadapter.RedirectTracing(t)
	defer teardown()
	//
	middle := intTree(t, 4, ascending(10, 40)...)
	b, err := NewBuilder[int, string](Config[int]{Order: 4, Compare: Lexical[int]()}, LoadOptions{})
	if err != nil {
		t.Fatal(err.Error())
	}
	for k := range 10 {
		if err := b.Append(k, strconv.Itoa(k)); err != nil {
			t.Fatal(err.Error())
		}
	}
	if err := b.AppendTree(middle); err != nil {
		t.Fatal(err.Error())
	}
	for k := 40; k < 45; k++ {
		if err := b.Append(k, strconv.Itoa(k)); err != nil {
			t.Fatal(err.Error())
		}
	}
	tree := b.Finish()
	checked(t, tree)
	checked(t, middle)
	if !slices.Equal(treeKeys(tree), ascending(0, 45)) {
		t.Errorf("keys = %v", treeKeys(tree))
	}
	if !slices.Equal(treeKeys(middle), ascending(10, 40)) {
		t.Error("appending a tree changed the source tree")
	}
	tree.Remove(20, Any)
	if !middle.Contains(20) {
		t.Error("editing the built tree changed the appended source")
	}
}

func TestBuilderAppendTreeUnsorted(t *testing.T) {
	low := intTree(t, 4, 1, 2, 3)
	b, err := NewBuilder[int, string](Config[int]{Order: 4, Compare: Lexical[int]()}, LoadOptions{})
	if err != nil {
		t.Fatal(err.Error())
	}
	if err := b.Append(7, "x"); err != nil {
		t.Fatal(err.Error())
	}
	if err := b.AppendTree(low); !errors.Is(err, ErrKeysUnsorted) {
		t.Errorf("err = %v, expected ErrKeysUnsorted", err)
	}
}
