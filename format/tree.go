package format

import (
	"fmt"
	"io"
	"strings"

	"github.com/quasilang/quasipiler/quasi/ast"
	"github.com/quasilang/quasipiler/quasi/grouper"
	"github.com/quasilang/quasipiler/quasi/reader"
)

// Mode selects how placeholders and node weights are rendered.
type Mode int

const (
	// Full expands placeholders in place by re-parsing their source.
	Full Mode = iota
	// Compact prints placeholders as one-line stand-ins and annotates
	// groups with their fixed/full node counts.
	Compact
)

// TreeEncoder writes the rooted indented tree listing.
type TreeEncoder struct {
	w    io.Writer
	mode Mode
	err  error
}

func NewTreeEncoder(w io.Writer, mode Mode) *TreeEncoder {
	return &TreeEncoder{w: w, mode: mode}
}

func (e *TreeEncoder) Encode(node ast.Node) error {
	e.err = nil
	e.dump(node, "", true)
	return e.err
}

func (e *TreeEncoder) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}

func branch(isLast bool) string {
	if isLast {
		return "`-"
	}
	return "|-"
}

func childPrefix(prefix string, isLast bool) string {
	if isLast {
		return prefix + "  "
	}
	return prefix + "| "
}

// TokenString renders a token in the dump format shared by the tree
// listing and the tokens command.
func TokenString(tok reader.Token) string {
	return tok.String()
}

func (e *TreeEncoder) dumpToken(tok reader.Token, prefix string, isLast bool) {
	e.printf("%s%s%s\n", prefix, branch(isLast), TokenString(tok))
}

func (e *TreeEncoder) sizes(n ast.Node) string {
	if e.mode != Compact {
		return ""
	}
	return fmt.Sprintf(" <%d/%d nodes>", n.FixedSize(), n.FullSize())
}

func (e *TreeEncoder) dump(node ast.Node, prefix string, isLast bool) {
	if e.err != nil {
		return
	}
	switch n := node.(type) {
	case *ast.Group:
		e.dumpGroup(n, prefix, isLast)
	case *ast.Placeholder:
		e.dumpPlaceholder(n, prefix, isLast)
	case *ast.TokenNode:
		e.dumpToken(n.Tok, prefix, isLast)
	case *ast.FuncDecl:
		e.printf("%s%sFunctionDecl\n", prefix, branch(isLast))
		cp := childPrefix(prefix, isLast)
		e.dumpToken(n.Name, cp, n.Paren == nil && n.Body == nil)
		if n.Paren != nil {
			e.dump(n.Paren, cp, n.Body == nil)
		}
		if n.Body != nil {
			e.dump(n.Body, cp, true)
		}
	case *ast.CallExpr:
		e.printf("%s%sCallExpr\n", prefix, branch(isLast))
		cp := childPrefix(prefix, isLast)
		e.dumpToken(n.Name, cp, n.Paren == nil)
		if n.Paren != nil {
			e.dump(n.Paren, cp, true)
		}
	case *ast.Condition:
		label := "Condition"
		if n.IsLoop {
			label = "Loop"
		}
		e.printf("%s%s%s(%s)%s\n", prefix, branch(isLast), label, n.Keyword.Word, e.sizes(n))
		cp := childPrefix(prefix, isLast)
		if n.Paren != nil {
			e.dump(n.Paren, cp, n.Body == nil)
		}
		if n.Body != nil {
			e.dump(n.Body, cp, true)
		}
	case *ast.Jump:
		e.dumpControl(&n.Control, prefix, isLast)
	case *ast.Control:
		e.dumpControl(n, prefix, isLast)
	case *ast.Unary:
		fixity := "postfix"
		if n.IsPrefix {
			fixity = "prefix"
		}
		e.printf("%s%sUnary(%s, %s, prio=%d)\n", prefix, branch(isLast), n.Op.Word, fixity, n.Priority)
		e.dump(n.Operand, childPrefix(prefix, isLast), true)
	case *ast.Binary:
		e.printf("%s%sBinary(%s, prio=%d)\n", prefix, branch(isLast), n.Op.Word, n.Priority)
		cp := childPrefix(prefix, isLast)
		e.dump(n.LHS, cp, false)
		e.dump(n.RHS, cp, true)
	case *ast.Ternary:
		e.printf("%s%sTernary(?:) prio=%d\n", prefix, branch(isLast), n.Priority)
		cp := childPrefix(prefix, isLast)
		e.dump(n.Cond, cp, false)
		e.dump(n.Then, cp, false)
		e.dump(n.Else, cp, true)
	default:
		e.printf("%s%sNull\n", prefix, branch(isLast))
	}
}

func (e *TreeEncoder) dumpControl(c *ast.Control, prefix string, isLast bool) {
	e.printf("%s%sControl(%s)%s\n", prefix, branch(isLast), c.Keyword.Word, e.sizes(c))
	if c.Body != nil {
		e.dump(c.Body, childPrefix(prefix, isLast), true)
	}
}

func (e *TreeEncoder) dumpGroup(g *ast.Group, prefix string, isLast bool) {
	cp := prefix
	if g.Kind != ast.KindFile {
		e.printf("%s%s", prefix, branch(isLast))
		cp = childPrefix(prefix, isLast)
	}
	e.printf("Group(%s)%s\n", g.Kind, e.sizes(g))
	for i, child := range g.Nodes {
		e.dump(child, cp, i+1 == len(g.Nodes))
	}
}

func (e *TreeEncoder) dumpPlaceholder(p *ast.Placeholder, prefix string, isLast bool) {
	if e.mode == Full {
		group, err := grouper.Expand(p)
		if err != nil {
			e.err = err
			return
		}
		e.dumpGroup(group, prefix, isLast)
		return
	}
	e.printf("%s%sPlaceholder(%s) [%d nested nodes]\n", prefix, branch(isLast), p.Kind, p.FullSize())
}

// Tree is a convenience wrapper rendering node to a string.
func Tree(node ast.Node, mode Mode) (string, error) {
	var sb strings.Builder
	if err := NewTreeEncoder(&sb, mode).Encode(node); err != nil {
		return "", err
	}
	return sb.String(), nil
}
