package btree

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

type nodeids[K, V any] struct {
	idTable map[*node[K, V]]int
	max     int
}

func newtable[K, V any]() nodeids[K, V] {
	return nodeids[K, V]{
		idTable: make(map[*node[K, V]]int),
		max:     1,
	}
}

func (ids *nodeids[K, V]) alloc(n *node[K, V]) int {
	if id := ids.idTable[n]; id > 0 {
		return id
	}
	ids.idTable[n] = ids.max
	ids.max++
	return ids.max - 1
}

// Dot outputs the internal structure of a tree in Graphviz DOT format (for
// debugging purposes). Keys are rendered with %v.
func (t *Tree[K, V]) Dot(w io.Writer) {
	t.ensureAttached()
	io.WriteString(w, "strict digraph {\n")
	io.WriteString(w, "\tnode [fontname=Arial,fontsize=12];\n")
	ids := newtable[K, V]()
	nodelist, edgelist := "", ""
	walkNodes(t.root, func(n *node[K, V]) {
		id := ids.alloc(n)
		keys := make([]string, len(n.elements))
		for i, e := range n.elements {
			keys[i] = fmt.Sprintf("%v", e.Key)
		}
		label := fmt.Sprintf("%s\\n#%d", strings.Join(keys, " | "), n.count)
		nodelist += fmt.Sprintf("\"%d\" [label=\"%s\" %s];\n", id, label, nodeDotStyles(n.isLeaf()))
		for _, child := range n.children {
			edgelist += fmt.Sprintf("\"%d\" -> \"%d\";\n", id, ids.alloc(child))
		}
	})
	io.WriteString(w, nodelist)
	io.WriteString(w, edgelist)
	io.WriteString(w, "}\n")
}

func nodeDotStyles(isleaf bool) string {
	s := ",style=filled"
	if isleaf {
		s += ",shape=box"
	} else {
		s += ",color=black,fillcolor=\"#a3d7e4\""
		s += ",shape=ellipse"
	}
	return s
}

// walkNodes visits every node pre-order, parents before children.
func walkNodes[K, V any](n *node[K, V], visit func(*node[K, V])) {
	if n == nil {
		return
	}
	visit(n)
	for _, child := range n.children {
		walkNodes(child, visit)
	}
}

// Dump writes an indented per-level rendering of the tree structure to w
// (for debugging purposes), with inner nodes and leaves in different
// colors when w is a terminal.
func (t *Tree[K, V]) Dump(w io.Writer) {
	t.ensureAttached()
	if t.root == nil {
		fmt.Fprintln(w, "empty tree")
		return
	}
	inner := color.New(color.FgBlue)
	leaf := color.New(color.FgGreen)
	dumpNode(w, t.root, 0, inner, leaf)
}

func dumpNode[K, V any](w io.Writer, n *node[K, V], indent int, inner, leaf *color.Color) {
	keys := make([]string, len(n.elements))
	for i, e := range n.elements {
		keys[i] = fmt.Sprintf("%v", e.Key)
	}
	c := inner
	if n.isLeaf() {
		c = leaf
	}
	fmt.Fprintf(w, "%s%s  ", strings.Repeat("    ", indent), c.Sprintf("[%s]", strings.Join(keys, " ")))
	fmt.Fprintf(w, "#%d\n", n.count)
	for _, child := range n.children {
		dumpNode(w, child, indent+1, inner, leaf)
	}
}
