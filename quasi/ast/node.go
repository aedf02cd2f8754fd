// Package ast defines the QuasiLang syntax tree: token leaves, size-bounded
// groups, recognised control-flow and call forms, and expression nodes.
//
// Every node carries two weights. FullSize is the true node count of the
// subtree; FixedSize is the on-tree count after placeholder collapses. A
// placeholder contributes a FixedSize of 1 while remembering the FullSize
// of the subtree it stands for.
package ast

import (
	"github.com/quasilang/quasipiler/quasi/reader"
)

type Node interface {
	FixedSize() int
	FullSize() int
	// Start reports the earliest source position of the subtree: a
	// bracketed group reports its opening bracket, other nodes their
	// first token.
	Start() reader.Position
}

// Null is a vestigial empty node.
type Null struct{}

func (*Null) FixedSize() int         { return 1 }
func (*Null) FullSize() int          { return 1 }
func (*Null) Start() reader.Position { return reader.Position{} }

// TokenNode is a single-token leaf.
type TokenNode struct {
	Tok reader.Token
}

func NewTokenNode(tok reader.Token) *TokenNode { return &TokenNode{Tok: tok} }

func (*TokenNode) FixedSize() int           { return 1 }
func (*TokenNode) FullSize() int            { return 1 }
func (n *TokenNode) Start() reader.Position { return n.Tok.Pos }

// sizes is the weight pair embedded in every compound node.
type sizes struct {
	fixed int
	full  int
}

func newSizes() sizes           { return sizes{fixed: 1, full: 1} }
func (s *sizes) FixedSize() int { return s.fixed }
func (s *sizes) FullSize() int  { return s.full }

func (s *sizes) absorb(n Node) {
	s.fixed += n.FixedSize()
	s.full += n.FullSize()
}

// CallExpr is a keyword followed by a paren group: a function call.
type CallExpr struct {
	sizes
	Name  reader.Token
	Paren Node // nil until SetParen
}

func NewCallExpr(name reader.Token) *CallExpr {
	return &CallExpr{sizes: newSizes(), Name: name}
}

func (c *CallExpr) SetParen(n Node) {
	c.Paren = n
	c.absorb(n)
}

func (c *CallExpr) Start() reader.Position { return c.Name.Pos }

// FuncDecl is a call expression followed immediately by a body group: a
// function declaration. Promotion moves the call's name and paren over.
type FuncDecl struct {
	CallExpr
	Body Node // nil until SetBody
}

func NewFuncDecl(proto *CallExpr) *FuncDecl {
	fd := &FuncDecl{}
	if proto != nil {
		fd.CallExpr = *proto
	} else {
		fd.CallExpr = *NewCallExpr(reader.Token{})
	}
	return fd
}

func (f *FuncDecl) SetBody(n Node) {
	f.Body = n
	f.absorb(n)
}

// Control is an else/try/finally keyword with an optional body.
type Control struct {
	sizes
	Keyword reader.Token
	Body    Node // nil until SetBody
}

func NewControl(keyword reader.Token) *Control {
	return &Control{sizes: newSizes(), Keyword: keyword}
}

func (c *Control) SetBody(n Node) {
	c.Body = n
	c.absorb(n)
}

func (c *Control) Start() reader.Position { return c.Keyword.Pos }

// Condition is an if/elif/while/for/catch keyword with an optional paren
// condition and body. IsLoop is set for for/while.
type Condition struct {
	Control
	Paren  Node // nil until SetParen
	IsLoop bool
}

func NewCondition(keyword reader.Token) *Condition {
	c := &Condition{Control: *NewControl(keyword)}
	if keyword.Word == "for" || keyword.Word == "while" {
		c.IsLoop = true
	}
	return c
}

func (c *Condition) SetParen(n Node) {
	c.Paren = n
	c.absorb(n)
}

// Jump is a return/continue/break/goto keyword with an optional body.
type Jump struct {
	Control
}

func NewJump(keyword reader.Token) *Jump {
	return &Jump{Control: *NewControl(keyword)}
}

// Unary is a prefix or postfix operator application.
type Unary struct {
	sizes
	Op       reader.Token
	Operand  Node
	IsPrefix bool
	Priority int
}

func NewUnary(op reader.Token, operand Node, isPrefix bool, priority int) *Unary {
	u := &Unary{sizes: newSizes(), Op: op, Operand: operand, IsPrefix: isPrefix, Priority: priority}
	u.absorb(operand)
	return u
}

func (u *Unary) Start() reader.Position {
	if u.IsPrefix {
		return u.Op.Pos
	}
	return u.Operand.Start()
}

// Binary is an infix operator application.
type Binary struct {
	sizes
	Op       reader.Token
	LHS      Node
	RHS      Node
	Priority int
}

func NewBinary(op reader.Token, lhs, rhs Node, priority int) *Binary {
	b := &Binary{sizes: newSizes(), Op: op, LHS: lhs, RHS: rhs, Priority: priority}
	b.absorb(lhs)
	b.absorb(rhs)
	return b
}

func (b *Binary) Start() reader.Position { return b.LHS.Start() }

// Ternary is the ?: conditional operator.
type Ternary struct {
	sizes
	QMark    reader.Token
	Colon    reader.Token
	Cond     Node
	Then     Node
	Else     Node
	Priority int
}

func NewTernary(qmark, colon reader.Token, cond, then, els Node, priority int) *Ternary {
	t := &Ternary{sizes: newSizes(), QMark: qmark, Colon: colon, Cond: cond, Then: then, Else: els, Priority: priority}
	t.absorb(cond)
	t.absorb(then)
	t.absorb(els)
	return t
}

func (t *Ternary) Start() reader.Position { return t.Cond.Start() }
