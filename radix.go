package servhub

// Compact radix tree keyed by service name, trimmed down from
// https://github.com/armon/go-radix and made generic. The registry uses it
// instead of a plain map to get ordered iteration and prefix scans for
// discovery queries.

import (
	"iter"
	"sort"
	"strings"
)

type leafNode[T any] struct {
	key string
	val T
}

type radixEdge[T any] struct {
	label byte
	node  *radixNode[T]
}

type radixNode[T any] struct {
	leaf   *leafNode[T]
	prefix string
	edges  []radixEdge[T]
}

func (n *radixNode[T]) isLeaf() bool {
	return n.leaf != nil
}

func (n *radixNode[T]) edgeIndex(label byte) int {
	return sort.Search(len(n.edges), func(i int) bool {
		return n.edges[i].label >= label
	})
}

func (n *radixNode[T]) addEdge(e radixEdge[T]) {
	idx := n.edgeIndex(e.label)
	n.edges = append(n.edges, radixEdge[T]{})
	copy(n.edges[idx+1:], n.edges[idx:])
	n.edges[idx] = e
}

func (n *radixNode[T]) replaceEdge(label byte, child *radixNode[T]) {
	idx := n.edgeIndex(label)
	if idx < len(n.edges) && n.edges[idx].label == label {
		n.edges[idx].node = child
		return
	}
	panic("replacing missing edge")
}

func (n *radixNode[T]) getEdge(label byte) *radixNode[T] {
	idx := n.edgeIndex(label)
	if idx < len(n.edges) && n.edges[idx].label == label {
		return n.edges[idx].node
	}
	return nil
}

func (n *radixNode[T]) delEdge(label byte) {
	idx := n.edgeIndex(label)
	if idx < len(n.edges) && n.edges[idx].label == label {
		copy(n.edges[idx:], n.edges[idx+1:])
		n.edges[len(n.edges)-1] = radixEdge[T]{}
		n.edges = n.edges[:len(n.edges)-1]
	}
}

func (n *radixNode[T]) mergeChild() {
	child := n.edges[0].node
	n.prefix = n.prefix + child.prefix
	n.leaf = child.leaf
	n.edges = child.edges
}

// Tree is a radix tree mapping strings to values, with ordered
// prefix-based iteration.
type Tree[T any] struct {
	root *radixNode[T]
	size int
}

func NewTree[T any]() *Tree[T] {
	return &Tree[T]{root: &radixNode[T]{}}
}

func (t *Tree[T]) Len() int {
	return t.size
}

func commonPrefixLen(k1, k2 string) int {
	limit := len(k1)
	if len(k2) < limit {
		limit = len(k2)
	}
	var i int
	for i = 0; i < limit; i++ {
		if k1[i] != k2[i] {
			break
		}
	}
	return i
}

// Insert adds or replaces the value under a key. It reports the previous
// value when one was replaced.
func (t *Tree[T]) Insert(s string, v T) (old T, updated bool) {
	var parent *radixNode[T]
	n := t.root
	search := s
	for {
		if len(search) == 0 {
			if n.isLeaf() {
				old = n.leaf.val
				n.leaf.val = v
				return old, true
			}
			n.leaf = &leafNode[T]{key: s, val: v}
			t.size++
			return old, false
		}

		parent = n
		n = n.getEdge(search[0])
		if n == nil {
			parent.addEdge(radixEdge[T]{
				label: search[0],
				node: &radixNode[T]{
					leaf:   &leafNode[T]{key: s, val: v},
					prefix: search,
				},
			})
			t.size++
			return old, false
		}

		shared := commonPrefixLen(search, n.prefix)
		if shared == len(n.prefix) {
			search = search[shared:]
			continue
		}

		// Split the edge at the shared prefix.
		t.size++
		child := &radixNode[T]{prefix: search[:shared]}
		parent.replaceEdge(search[0], child)
		child.addEdge(radixEdge[T]{label: n.prefix[shared], node: n})
		n.prefix = n.prefix[shared:]

		leaf := &leafNode[T]{key: s, val: v}
		search = search[shared:]
		if len(search) == 0 {
			child.leaf = leaf
			return old, false
		}
		child.addEdge(radixEdge[T]{
			label: search[0],
			node:  &radixNode[T]{leaf: leaf, prefix: search},
		})
		return old, false
	}
}

// Delete removes a key, reporting the removed value if it existed.
func (t *Tree[T]) Delete(s string) (removed T, hadKey bool) {
	var parent *radixNode[T]
	var label byte
	n := t.root
	search := s
	for {
		if len(search) == 0 {
			if !n.isLeaf() {
				return
			}
			break
		}

		parent = n
		label = search[0]
		n = n.getEdge(label)
		if n == nil {
			return
		}
		if !strings.HasPrefix(search, n.prefix) {
			return
		}
		search = search[len(n.prefix):]
	}

	leaf := n.leaf
	n.leaf = nil
	t.size--

	if parent != nil && len(n.edges) == 0 {
		parent.delEdge(label)
	}
	if n != t.root && len(n.edges) == 1 {
		n.mergeChild()
	}
	if parent != nil && parent != t.root && len(parent.edges) == 1 && !parent.isLeaf() {
		parent.mergeChild()
	}
	return leaf.val, true
}

func (t *Tree[T]) Get(s string) (val T, found bool) {
	n := t.root
	search := s
	for {
		if len(search) == 0 {
			if n.isLeaf() {
				return n.leaf.val, true
			}
			return
		}
		n = n.getEdge(search[0])
		if n == nil {
			return
		}
		if !strings.HasPrefix(search, n.prefix) {
			return
		}
		search = search[len(n.prefix):]
	}
}

// WalkPrefix iterates, in key order, over every entry whose key starts with
// the prefix.
func (t *Tree[T]) WalkPrefix(prefix string) iter.Seq2[string, T] {
	return func(yield func(string, T) bool) {
		n := t.root
		search := prefix
		for {
			if len(search) == 0 {
				walkNode(n, yield)
				return
			}
			n = n.getEdge(search[0])
			if n == nil {
				return
			}
			if strings.HasPrefix(search, n.prefix) {
				search = search[len(n.prefix):]
				continue
			}
			if strings.HasPrefix(n.prefix, search) {
				walkNode(n, yield)
			}
			return
		}
	}
}

func walkNode[T any](n *radixNode[T], yield func(string, T) bool) bool {
	if n.leaf != nil && !yield(n.leaf.key, n.leaf.val) {
		return true
	}
	for _, e := range n.edges {
		if walkNode(e.node, yield) {
			return true
		}
	}
	return false
}
