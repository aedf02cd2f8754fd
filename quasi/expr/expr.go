// Package expr converts a flat token-and-operand sequence into a tree of
// unary, binary and ternary nodes using a Pratt parser with C-like
// precedence and associativity.
package expr

import (
	"fmt"

	"github.com/quasilang/quasipiler/quasi/ast"
	"github.com/quasilang/quasipiler/quasi/reader"
)

// Item is an element of the parser's input stream: either an operator
// token or an operand node.
type Item struct {
	IsOp bool
	Tok  reader.Token
	Node ast.Node
}

// SyntaxError reports a malformed expression.
type SyntaxError struct {
	Msg string
	Pos reader.Position
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s at %d:%d", e.Msg, e.Pos.Line, e.Pos.Column)
}

type opInfo struct {
	prec       int
	rightAssoc bool
}

var binaryOps = map[string]opInfo{
	"=": {1, true}, "+=": {1, true}, "-=": {1, true}, "*=": {1, true},
	"/=": {1, true}, "%=": {1, true}, "^=": {1, true}, "|=": {1, true},
	"&=": {1, true}, "<<=": {1, true}, ">>=": {1, true},
	"||": {3, false},
	"&&": {4, false},
	"|":  {5, false},
	"^":  {6, false},
	"&":  {7, false},
	"==": {8, false}, "!=": {8, false},
	"<": {9, false}, "<=": {9, false}, ">": {9, false}, ">=": {9, false},
	"<<": {10, false}, ">>": {10, false},
	"+": {11, false}, "-": {11, false},
	"*": {12, false}, "/": {12, false}, "%": {12, false},
}

var prefixOps = map[string]int{
	"+": 13, "-": 13, "!": 13, "~": 13, "++": 13, "--": 13,
}

var postfixOps = map[string]int{
	"++": 14, "--": 14,
}

const ternaryPrec = 2

// multiOps lists multi-character operators; adjacent single-character
// operator tokens are merged greedily in this order.
var multiOps = []string{
	"<<=", ">>=", "++", "--", "+=", "-=", "*=", "/=",
	"%=", "^=", "|=", "&=", "==", "!=", "<=", ">=",
	"<<", ">>", "&&", "||",
}

func matchOp(nodes []ast.Node, pos int, op string) bool {
	if pos+len(op) > len(nodes) {
		return false
	}
	for i := 0; i < len(op); i++ {
		tn, ok := nodes[pos+i].(*ast.TokenNode)
		if !ok || tn.Tok.Word != op[i:i+1] {
			return false
		}
	}
	return true
}

// MakeItems splits a node list into operator and operand items, merging
// consecutive single-character operator tokens into multi-character
// operators such as "+=" or "==".
func MakeItems(nodes []ast.Node) []Item {
	var items []Item
	for i := 0; i < len(nodes); {
		if tn, ok := nodes[i].(*ast.TokenNode); ok &&
			(tn.Tok.Kind == reader.TokenSpecial || tn.Tok.Kind == reader.TokenSeparator) {
			op := tn.Tok.Word
			length := 1
			for _, candidate := range multiOps {
				if matchOp(nodes, i, candidate) {
					op = candidate
					length = len(candidate)
					break
				}
			}
			tok := tn.Tok
			tok.Word = op
			items = append(items, Item{IsOp: true, Tok: tok})
			i += length
			continue
		}
		items = append(items, Item{Node: nodes[i]})
		i++
	}
	return items
}

// Parser consumes an item stream produced by MakeItems.
type Parser struct {
	items []Item
	pos   int
}

func NewParser(items []Item) *Parser {
	return &Parser{items: items}
}

// Pos reports how many items have been consumed.
func (p *Parser) Pos() int { return p.pos }

// Done reports whether the whole item stream has been consumed.
func (p *Parser) Done() bool { return p.pos >= len(p.items) }

func (p *Parser) errorf(format string, args ...any) error {
	var pos reader.Position
	switch {
	case p.pos < len(p.items):
		if it := p.items[p.pos]; it.IsOp {
			pos = it.Tok.Pos
		} else if it.Node != nil {
			pos = it.Node.Start()
		}
	case len(p.items) > 0:
		if it := p.items[len(p.items)-1]; it.IsOp {
			pos = it.Tok.Pos
		} else if it.Node != nil {
			pos = it.Node.Start()
		}
	}
	return &SyntaxError{Msg: fmt.Sprintf(format, args...), Pos: pos}
}

// ParseExpression parses a binary/ternary expression. minPrec is the
// minimal operator precedence accepted at the current recursion level;
// parsing stops (without error) at the first operator that binds looser.
func (p *Parser) ParseExpression(minPrec int) (ast.Node, error) {
	left, err := p.parsePrefix()
	if err != nil {
		return nil, err
	}
	for p.pos < len(p.items) {
		if !p.items[p.pos].IsOp {
			break
		}
		op := p.items[p.pos].Tok.Word
		if op == "?" {
			if ternaryPrec < minPrec {
				break
			}
			qtok := p.items[p.pos].Tok
			p.pos++
			middle, err := p.ParseExpression(0)
			if err != nil {
				return nil, err
			}
			if p.pos >= len(p.items) || !p.items[p.pos].IsOp || p.items[p.pos].Tok.Word != ":" {
				return nil, p.errorf("expected ':' in ternary expression")
			}
			ctok := p.items[p.pos].Tok
			p.pos++
			right, err := p.ParseExpression(ternaryPrec)
			if err != nil {
				return nil, err
			}
			left = ast.NewTernary(qtok, ctok, left, middle, right, ternaryPrec)
			continue
		}
		info, ok := binaryOps[op]
		if !ok {
			break
		}
		if info.prec < minPrec {
			break
		}
		optok := p.items[p.pos].Tok
		p.pos++
		nextMin := info.prec + 1
		if info.rightAssoc {
			nextMin = info.prec
		}
		rhs, err := p.ParseExpression(nextMin)
		if err != nil {
			return nil, err
		}
		left = ast.NewBinary(optok, left, rhs, info.prec)
	}
	return left, nil
}

// parsePrefix parses a chain of prefix operators followed by one operand
// and any trailing postfix operators.
func (p *Parser) parsePrefix() (ast.Node, error) {
	if p.pos < len(p.items) && p.items[p.pos].IsOp {
		if prec, ok := prefixOps[p.items[p.pos].Tok.Word]; ok {
			tok := p.items[p.pos].Tok
			p.pos++
			operand, err := p.parsePrefix()
			if err != nil {
				return nil, err
			}
			return ast.NewUnary(tok, operand, true, prec), nil
		}
	}
	if p.pos >= len(p.items) {
		return nil, p.errorf("unexpected end of expression")
	}
	if p.items[p.pos].IsOp {
		return nil, p.errorf("expected operand, got operator %q", p.items[p.pos].Tok.Word)
	}
	node := p.items[p.pos].Node
	p.pos++
	for p.pos < len(p.items) && p.items[p.pos].IsOp {
		prec, ok := postfixOps[p.items[p.pos].Tok.Word]
		if !ok {
			break
		}
		tok := p.items[p.pos].Tok
		p.pos++
		node = ast.NewUnary(tok, node, false, prec)
	}
	return node, nil
}
