package ast

import (
	"container/heap"
	"errors"
	"fmt"

	"github.com/quasilang/quasipiler/quasi/reader"
)

type GroupKind int

const (
	KindFile GroupKind = iota
	KindBody
	KindList
	KindParen
	KindCommand
	KindItem
	KindKey
	KindHalt
)

var groupKindNames = map[GroupKind]string{
	KindFile:    "file",
	KindBody:    "body",
	KindList:    "list",
	KindParen:   "paren",
	KindCommand: "command",
	KindItem:    "item",
	KindKey:     "key",
	KindHalt:    "halt",
}

func (k GroupKind) String() string {
	if name, ok := groupKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// BudgetError reports that a group cannot satisfy its size limit even
// after every collapsible child has been squeezed.
type BudgetError struct {
	Full  int
	Limit int
}

func (e *BudgetError) Error() string {
	return fmt.Sprintf("limit is too small for group node (required %d, limit is %d)", e.Full, e.Limit)
}

// weightEntry records a heavy child at the moment it was appended.
type weightEntry struct {
	size  int
	index int
}

// weightHeap is a max-heap over (size, index); ties prefer the larger
// index so later siblings collapse first.
type weightHeap []weightEntry

func (h weightHeap) Len() int { return len(h) }
func (h weightHeap) Less(i, j int) bool {
	if h[i].size != h[j].size {
		return h[i].size > h[j].size
	}
	return h[i].index > h[j].index
}
func (h weightHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *weightHeap) Push(x any) { *h = append(*h, x.(weightEntry)) }

func (h *weightHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// Group is an ordered collection of nodes with a configurable size limit.
// Oversized child groups are replaced with placeholders so that FixedSize
// never exceeds Limit after a successful Append.
type Group struct {
	Kind    GroupKind
	Limit   int
	Nodes   []Node
	weights weightHeap
	fixed   int
	full    int

	hasStart bool
	start    reader.Position
}

func NewGroup(kind GroupKind, limit int) *Group {
	return &Group{Kind: kind, Limit: limit, fixed: 1, full: 1}
}

// NewWrapped creates a bracketed group that records the position of its
// opening bracket.
func NewWrapped(kind GroupKind, limit int, start reader.Position) *Group {
	g := NewGroup(kind, limit)
	g.hasStart = true
	g.start = start
	return g
}

func (g *Group) FixedSize() int { return g.fixed }
func (g *Group) FullSize() int  { return g.full }
func (g *Group) Empty() bool    { return len(g.Nodes) == 0 }
func (g *Group) Size() int      { return len(g.Nodes) }

// SetStart records the opening-bracket position after construction. Used
// when a rough group is re-identified into a fresh one.
func (g *Group) SetStart(pos reader.Position) {
	g.hasStart = true
	g.start = pos
}

func (g *Group) Start() reader.Position {
	if g.hasStart {
		return g.start
	}
	if len(g.Nodes) > 0 {
		return g.Nodes[0].Start()
	}
	return reader.Position{}
}

// First descends to the first leaf of the subtree.
func (g *Group) First() (Node, error) {
	if len(g.Nodes) == 0 {
		return nil, errors.New("group node is empty")
	}
	if sub, ok := g.Nodes[0].(*Group); ok {
		return sub.First()
	}
	return g.Nodes[0], nil
}

// Append adds a child while respecting the size limit. Children contribute
// their weights to the parent; the first child does not double-count the
// empty group's own unit. If the accumulated FixedSize exceeds Limit, the
// heaviest child groups are collapsed into placeholders that can be lazily
// re-read from src later.
func (g *Group) Append(n Node, src *reader.Reader) error {
	exclude := 0
	if len(g.Nodes) == 0 {
		exclude = 1
	}
	g.fixed += n.FixedSize() - exclude
	g.full += n.FullSize() - exclude
	if sub, ok := n.(*Group); ok && sub.fixed > 1 {
		heap.Push(&g.weights, weightEntry{size: sub.fixed, index: len(g.Nodes)})
	}
	g.Nodes = append(g.Nodes, n)

	for len(g.weights) > 0 && g.fixed > g.Limit {
		e := heap.Pop(&g.weights).(weightEntry)
		if e.index >= len(g.Nodes) {
			continue // stale after PopBack
		}
		sub, ok := g.Nodes[e.index].(*Group)
		if !ok || sub.fixed != e.size {
			continue // already a placeholder, or a stale entry
		}
		if err := g.squeeze(e.index, src); err != nil {
			return err
		}
		g.fixed += 1 - e.size
	}
	if g.fixed > g.Limit {
		return &BudgetError{Full: g.full, Limit: g.Limit}
	}
	return nil
}

// squeeze replaces the child group at index with a placeholder that holds
// enough state to re-parse the original subtree from src on demand.
func (g *Group) squeeze(index int, src *reader.Reader) error {
	sub, ok := g.Nodes[index].(*Group)
	if !ok {
		return fmt.Errorf("node at index %d is not a group node", index)
	}
	if _, err := sub.First(); err != nil {
		return fmt.Errorf("cannot squeeze group node: %w", err)
	}
	// Re-entry point: the first child's start. A bracketed group re-parses
	// from its first element (the parse resumes inside the bracket); a
	// separator group re-parses from the first child including any opening
	// bracket that child may carry.
	g.Nodes[index] = &Placeholder{
		Kind:   sub.Kind,
		Limit:  sub.Limit,
		Pos:    sub.Nodes[0].Start(),
		Source: src,
		full:   sub.full,
	}
	return nil
}

// PopBack removes and returns the last child, adjusting the weights. An
// emptied group resets to unit size.
func (g *Group) PopBack() Node {
	if len(g.Nodes) == 0 {
		return nil
	}
	n := g.Nodes[len(g.Nodes)-1]
	g.Nodes = g.Nodes[:len(g.Nodes)-1]
	if len(g.Nodes) == 0 {
		g.fixed = 1
		g.full = 1
	} else {
		g.fixed -= n.FixedSize()
		g.full -= n.FullSize()
	}
	return n
}

// Rewrite replaces all children with the single node n: the result of
// lowering a flat operator sequence into one expression tree.
func (g *Group) Rewrite(n Node) {
	g.Nodes = append(g.Nodes[:0], n)
	g.weights = g.weights[:0]
	g.fixed = n.FixedSize()
	g.full = n.FullSize()
}

// Placeholder stands in for a squeezed subtree. Pos is the start of the
// collapsed group's first child (the opening bracket when that child is a
// bracketed group); re-parsing from there with the stored kind and limit
// reconstructs the original content. Source is borrowed: a
// placeholder must not outlive the reader it points into.
type Placeholder struct {
	Kind   GroupKind
	Limit  int
	Pos    reader.Position
	Source *reader.Reader
	full   int
}

func (p *Placeholder) FixedSize() int         { return 1 }
func (p *Placeholder) FullSize() int          { return p.full }
func (p *Placeholder) Start() reader.Position { return p.Pos }

// NewPlaceholder builds a placeholder directly; the grouper itself creates
// placeholders through Append.
func NewPlaceholder(kind GroupKind, limit int, pos reader.Position, src *reader.Reader, full int) *Placeholder {
	return &Placeholder{Kind: kind, Limit: limit, Pos: pos, Source: src, full: full}
}
