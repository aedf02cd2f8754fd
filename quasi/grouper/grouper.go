// Package grouper builds the QuasiLang syntax tree from a token stream:
// a rough bracket/separator hierarchy first, then a classification pass
// that recognises control-flow skeletons, call expressions and function
// declarations, and finally an arithmetic-lowering pass over
// expression-eligible groups. Group sizes are bounded by a node budget;
// oversized subtrees collapse into placeholders that can be re-expanded
// from the original source.
package grouper

import (
	"fmt"

	"github.com/quasilang/quasipiler/quasi/ast"
	"github.com/quasilang/quasipiler/quasi/expr"
	"github.com/quasilang/quasipiler/quasi/reader"
)

// DefaultLimit is the node budget applied when the caller does not choose
// one.
const DefaultLimit = 64

// MinLimit is the smallest accepted node budget: a group and one child.
const MinLimit = 2

// Error is a structural or classification diagnostic anchored at the
// position the reader had reached.
type Error struct {
	Msg string
	Pos reader.Position
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s at %d:%d: %v", e.Msg, e.Pos.Line, e.Pos.Column, e.Err)
	}
	return fmt.Sprintf("%s at %d:%d", e.Msg, e.Pos.Line, e.Pos.Column)
}

func (e *Error) Unwrap() error { return e.Err }

// Grouper parses tokens from a reader into hierarchical groups.
type Grouper struct {
	src     *reader.Reader
	limit   int
	current reader.Token
	pos     reader.Position
	reuse   bool
}

// New creates a grouper over src with the given node budget.
func New(src *reader.Reader, limit int) (*Grouper, error) {
	if limit < MinLimit {
		return nil, &Error{Msg: fmt.Sprintf("minimum limit is %d", MinLimit), Pos: src.Position()}
	}
	return &Grouper{src: src, limit: limit}, nil
}

// Parse reads a sequence starting at the current reader position and
// returns the classified group of the requested kind.
func (g *Grouper) Parse(kind ast.GroupKind) (*ast.Group, error) {
	raw := ast.NewGroup(kind, g.limit)
	result := ast.NewGroup(kind, g.limit)
	raw, err := g.parseGroup(kind, raw)
	if err != nil {
		return nil, err
	}
	if err := g.identify(raw, result); err != nil {
		return nil, err
	}
	return result, nil
}

// peek advances to the next significant token, skipping whitespace and
// comments, unless the previous closer was flagged for reuse.
func (g *Grouper) peek() error {
	if g.reuse {
		g.reuse = false
		return nil
	}
	for {
		g.pos = g.src.Position()
		if err := g.src.NextToken(&g.current); err != nil {
			return err
		}
		if g.current.Kind != reader.TokenWhitespace && g.current.Kind != reader.TokenComment {
			return nil
		}
	}
}

func (g *Grouper) append(parent *ast.Group, n ast.Node) error {
	if err := parent.Append(n, g.src); err != nil {
		return g.wrapError("failed to append node", err)
	}
	return nil
}

// parseGroup populates group with a rough bracket/separator hierarchy and
// returns it. The returned group may differ from the argument when a
// separator run coalesces into the requested kind.
func (g *Grouper) parseGroup(kind ast.GroupKind, group *ast.Group) (*ast.Group, error) {
	top := ast.NewGroup(ast.KindHalt, g.limit)
	for {
		if err := g.peek(); err != nil {
			return nil, err
		}
		switch g.current.Kind {
		case reader.TokenSeparator:
			next, done, err := g.appendCommand(group, top, kind)
			if err != nil {
				return nil, err
			}
			if done {
				return next, nil
			}
			top = ast.NewGroup(ast.KindHalt, g.limit)
		case reader.TokenOpenBracket:
			if err := g.appendWrapped(top); err != nil {
				return nil, err
			}
		case reader.TokenCloseBracket, reader.TokenEOF:
			return g.closeWrapped(group, top, kind)
		default:
			if err := g.append(top, ast.NewTokenNode(g.current)); err != nil {
				return nil, err
			}
		}
	}
}

// appendCommand closes the running group at a separator, promoting its
// kind from the separator character. When the promoted kind matches the
// requested one and the enclosing group is still empty, the running group
// replaces it and parsing of this level is finished.
func (g *Grouper) appendCommand(group, top *ast.Group, kind ast.GroupKind) (*ast.Group, bool, error) {
	switch g.current.Word {
	case ":":
		top.Kind = ast.KindKey
	case ",":
		top.Kind = ast.KindItem
	case ";":
		top.Kind = ast.KindCommand
	default:
		return nil, false, g.errorf("unexpected separator: %s", g.current.Word)
	}
	if top.Kind == kind {
		if group.Empty() {
			return top, true, nil
		}
		if err := g.append(group, top); err != nil {
			return nil, false, err
		}
		return nil, false, g.errorf("wrong group kind. expected: %s, got: %s", kind, group.Kind)
	}
	if err := g.append(group, top); err != nil {
		return nil, false, err
	}
	return nil, false, nil
}

// appendWrapped parses a bracketed sub-group and appends it to top.
func (g *Grouper) appendWrapped(top *ast.Group) error {
	var subKind ast.GroupKind
	switch g.current.Word {
	case "{":
		subKind = ast.KindBody
	case "[":
		subKind = ast.KindList
	case "(":
		subKind = ast.KindParen
	default:
		return g.errorf("unexpected open bracket: %s", g.current.Word)
	}
	wrapped := ast.NewWrapped(subKind, g.limit, g.pos)
	sub, err := g.parseGroup(subKind, wrapped)
	if err != nil {
		return err
	}
	return g.append(top, sub)
}

// closeWrapped finalises the enclosing group at a closing bracket or EOF
// and returns it. A halt request means the closer belongs to the caller:
// the token is flagged for reuse, and the running group stands on its own
// so that a re-expanded subtree keeps the shape of the original.
func (g *Grouper) closeWrapped(group, top *ast.Group, kind ast.GroupKind) (*ast.Group, error) {
	if kind == ast.KindHalt && group.Empty() {
		g.reuse = true
		return top, nil
	}
	if err := g.append(group, top); err != nil {
		return nil, err
	}
	switch {
	case g.current.Kind == reader.TokenEOF:
		group.Kind = ast.KindFile
	case g.current.Word == "}":
		group.Kind = ast.KindBody
	case g.current.Word == "]":
		group.Kind = ast.KindList
	case g.current.Word == ")":
		group.Kind = ast.KindParen
	default:
		return nil, g.errorf("unexpected close bracket: %s", g.current.Word)
	}
	if kind == ast.KindHalt {
		g.reuse = true
		return group, nil
	}
	if group.Kind != kind {
		return nil, g.errorf("wrong group kind. expected: %s, got: %s", kind, group.Kind)
	}
	return group, nil
}

// controlKeyword extracts the introducing keyword of a recognised control
// form, if n is one.
func controlKeyword(n ast.Node) (string, bool) {
	switch t := n.(type) {
	case *ast.Condition:
		return t.Keyword.Word, true
	case *ast.Jump:
		return t.Keyword.Word, true
	case *ast.Control:
		return t.Keyword.Word, true
	}
	return "", false
}

// identifySubgroup runs the classification pass over a sub-group into a
// fresh group of the same kind.
func (g *Grouper) identifySubgroup(sub *ast.Group) (*ast.Group, error) {
	inode := ast.NewGroup(sub.Kind, g.limit)
	if sub.Kind == ast.KindBody || sub.Kind == ast.KindList || sub.Kind == ast.KindParen {
		inode.SetStart(sub.Start())
	}
	if err := g.identify(sub, inode); err != nil {
		return nil, err
	}
	return inode, nil
}

// handleChain attaches a statement that begins with a secondary keyword
// (else, elif, catch, finally) to the preceding command's control form.
func (g *Grouper) handleChain(result, inode *ast.Group) (bool, error) {
	kw, ok := controlKeyword(inode.Nodes[0])
	if !ok {
		return false, nil
	}
	switch kw {
	case "else", "elif", "catch", "finally":
	default:
		return false, nil
	}
	if result.Empty() {
		return false, g.errorf("orphan secondary keyword: %s", kw)
	}
	prev, ok := result.Nodes[len(result.Nodes)-1].(*ast.Group)
	if !ok || prev.Empty() || prev.Kind != ast.KindCommand {
		return false, g.errorf("invalid predecessor for keyword: %s", kw)
	}
	prevKw, ok := controlKeyword(prev.Nodes[len(prev.Nodes)-1])
	if !ok {
		return false, g.errorf("invalid predecessor for keyword: %s", kw)
	}
	allowed := false
	switch kw {
	case "else", "elif":
		allowed = prevKw == "if" || prevKw == "elif"
	case "catch", "finally":
		allowed = prevKw == "try" || prevKw == "catch"
	}
	if !allowed {
		return false, g.errorf("unexpected keyword order: %s before %s", prevKw, kw)
	}
	result.PopBack()
	for _, ch := range inode.Nodes {
		if err := g.append(prev, ch); err != nil {
			return false, err
		}
	}
	if err := g.append(result, prev); err != nil {
		return false, err
	}
	return true, nil
}

// appendGroup attaches a classified sub-group to the preceding node when
// one of the structural patterns applies: a condition takes a paren, a
// control form takes a body, a call followed by a body becomes a function
// declaration, and a bare keyword followed by a paren becomes a call.
func (g *Grouper) appendGroup(result *ast.Group, node ast.Node, waitForCondition, waitForBody *bool, kind ast.GroupKind) (bool, error) {
	if result.Empty() {
		return false, nil
	}
	top := result.PopBack()
	switch t := top.(type) {
	case *ast.Condition:
		if kind == ast.KindParen {
			t.SetParen(node)
			if err := g.append(result, t); err != nil {
				return false, err
			}
			*waitForCondition = false
			*waitForBody = true
			return true, nil
		}
		if kind == ast.KindBody {
			t.SetBody(node)
			if err := g.append(result, t); err != nil {
				return false, err
			}
			*waitForBody = false
			return true, nil
		}
	case *ast.Control:
		if kind == ast.KindBody {
			t.SetBody(node)
			if err := g.append(result, t); err != nil {
				return false, err
			}
			*waitForBody = false
			return true, nil
		}
	case *ast.Jump:
		if kind == ast.KindBody {
			t.SetBody(node)
			if err := g.append(result, t); err != nil {
				return false, err
			}
			*waitForBody = false
			return true, nil
		}
	case *ast.CallExpr:
		if kind == ast.KindBody {
			decl := ast.NewFuncDecl(t)
			decl.SetBody(node)
			if err := g.append(result, decl); err != nil {
				return false, err
			}
			return true, nil
		}
	case *ast.TokenNode:
		if t.Tok.Kind == reader.TokenKeyword && kind == ast.KindParen {
			call := ast.NewCallExpr(t.Tok)
			call.SetParen(node)
			if err := g.append(result, call); err != nil {
				return false, err
			}
			return true, nil
		}
	}
	if err := g.append(result, top); err != nil {
		return false, err
	}
	return false, nil
}

// identifyBody wraps the trailing statement into a synthetic body group
// and attaches it to the nearest preceding control form or call.
func (g *Grouper) identifyBody(result *ast.Group) error {
	body := ast.NewGroup(ast.KindBody, g.limit)
	var tail []ast.Node
	for !result.Empty() {
		top := result.PopBack()
		switch t := top.(type) {
		case *ast.Condition:
			return g.attachBody(result, &t.Control, t, body, tail)
		case *ast.Jump:
			return g.attachBody(result, &t.Control, t, body, tail)
		case *ast.Control:
			return g.attachBody(result, t, t, body, tail)
		case *ast.CallExpr:
			decl := ast.NewFuncDecl(t)
			if err := g.fillBody(body, tail); err != nil {
				return err
			}
			decl.SetBody(body)
			return g.append(result, decl)
		}
		tail = append(tail, top)
	}
	// No carrier found: restore the popped nodes.
	for i := len(tail) - 1; i >= 0; i-- {
		if err := g.append(result, tail[i]); err != nil {
			return err
		}
	}
	return nil
}

func (g *Grouper) attachBody(result *ast.Group, ctl *ast.Control, node ast.Node, body *ast.Group, tail []ast.Node) error {
	if err := g.fillBody(body, tail); err != nil {
		return err
	}
	ctl.SetBody(body)
	return g.append(result, node)
}

// fillBody appends the popped tail in source order.
func (g *Grouper) fillBody(body *ast.Group, tail []ast.Node) error {
	for i := len(tail) - 1; i >= 0; i-- {
		if err := g.append(body, tail[i]); err != nil {
			return err
		}
	}
	return nil
}

// identify applies the keyword and structural pattern rules to the rough
// group, filling result.
func (g *Grouper) identify(group, result *ast.Group) error {
	waitForCondition := false
	waitForBody := false

	for _, node := range group.Nodes {
		isGroup := false
		var kind ast.GroupKind

		if sub, ok := node.(*ast.Group); ok {
			kind = sub.Kind
			inode, err := g.identifySubgroup(sub)
			if err != nil {
				return err
			}
			node = inode
			isGroup = true

			if (kind == ast.KindHalt || kind == ast.KindCommand) && !inode.Empty() {
				handled, err := g.handleChain(result, inode)
				if err != nil {
					return err
				}
				if handled {
					continue
				}
			}
		}
		if waitForCondition && (!isGroup || kind != ast.KindParen) {
			return g.errorf("expected condition after control keyword")
		}
		if isGroup {
			handled, err := g.appendGroup(result, node, &waitForCondition, &waitForBody, kind)
			if err != nil {
				return err
			}
			if handled {
				continue
			}
		}
		if tok, ok := node.(*ast.TokenNode); ok && tok.Tok.Kind == reader.TokenKeyword {
			switch tok.Tok.Word {
			case "if", "elif", "while", "for", "catch":
				waitForCondition = true
				if err := g.append(result, ast.NewCondition(tok.Tok)); err != nil {
					return err
				}
				continue
			case "else", "try", "finally":
				waitForBody = true
				if err := g.append(result, ast.NewControl(tok.Tok)); err != nil {
					return err
				}
				continue
			case "return", "continue", "break", "goto":
				if err := g.append(result, ast.NewJump(tok.Tok)); err != nil {
					return err
				}
				waitForBody = tok.Tok.Word != "continue" && tok.Tok.Word != "break"
				continue
			}
		}
		if err := g.append(result, node); err != nil {
			return err
		}
	}
	if waitForBody {
		if err := g.identifyBody(result); err != nil {
			return err
		}
	}
	g.lowerArithmetic(result)
	return nil
}

// lowerArithmetic rewrites an expression-eligible group into a single
// operator tree when the whole flat sequence parses as one expression.
// Groups that would outgrow their budget, or contain no operator at all,
// are left as they are.
func (g *Grouper) lowerArithmetic(group *ast.Group) {
	switch group.Kind {
	case ast.KindCommand, ast.KindItem, ast.KindKey, ast.KindParen, ast.KindHalt:
	default:
		return
	}
	if group.Empty() {
		return
	}
	items := expr.MakeItems(group.Nodes)
	hasOp := false
	for _, it := range items {
		if it.IsOp {
			hasOp = true
			break
		}
	}
	if !hasOp {
		return
	}
	p := expr.NewParser(items)
	node, err := p.ParseExpression(0)
	if err != nil || !p.Done() {
		return
	}
	if node.FixedSize() > group.Limit {
		return
	}
	group.Rewrite(node)
}

func (g *Grouper) errorf(format string, args ...any) error {
	return g.wrapError(fmt.Sprintf(format, args...), nil)
}

func (g *Grouper) wrapError(msg string, err error) error {
	return &Error{Msg: msg, Pos: g.src.Position(), Err: err}
}
