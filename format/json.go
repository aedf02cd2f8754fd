package format

import (
	"encoding/json"
	"io"

	"github.com/quasilang/quasipiler/quasi/ast"
	"github.com/quasilang/quasipiler/quasi/reader"
)

// JSONEncoder writes a structural JSON rendering of the tree. Placeholders
// are never expanded; they carry their kind, limit and full size instead.
type JSONEncoder struct {
	w io.Writer
}

func NewJSONEncoder(w io.Writer) *JSONEncoder {
	return &JSONEncoder{w: w}
}

func (e *JSONEncoder) Encode(node ast.Node) error {
	text, err := json.MarshalIndent(nodeToJSON(node), "", "  ")
	if err != nil {
		return err
	}
	if _, err := e.w.Write(text); err != nil {
		return err
	}
	_, err = io.WriteString(e.w, "\n")
	return err
}

type jsonNode struct {
	Node     string        `json:"node"`
	Kind     string        `json:"kind,omitempty"`
	Word     string        `json:"word,omitempty"`
	Fixity   string        `json:"fixity,omitempty"`
	Priority int           `json:"priority,omitempty"`
	Limit    int           `json:"limit,omitempty"`
	Fixed    int           `json:"fixed,omitempty"`
	Full     int           `json:"full,omitempty"`
	Loop     bool          `json:"loop,omitempty"`
	Pos      *jsonPosition `json:"pos,omitempty"`
	Children []*jsonNode   `json:"children,omitempty"`
}

type jsonPosition struct {
	Offset int64 `json:"offset"`
	Line   int   `json:"line"`
	Column int   `json:"column"`
}

func posToJSON(p reader.Position) *jsonPosition {
	return &jsonPosition{Offset: p.Offset, Line: p.Line, Column: p.Column}
}

func nodeToJSON(node ast.Node) *jsonNode {
	switch n := node.(type) {
	case *ast.Group:
		jn := &jsonNode{
			Node:  "group",
			Kind:  n.Kind.String(),
			Limit: n.Limit,
			Fixed: n.FixedSize(),
			Full:  n.FullSize(),
		}
		for _, child := range n.Nodes {
			jn.Children = append(jn.Children, nodeToJSON(child))
		}
		return jn
	case *ast.Placeholder:
		return &jsonNode{
			Node:  "placeholder",
			Kind:  n.Kind.String(),
			Limit: n.Limit,
			Full:  n.FullSize(),
			Pos:   posToJSON(n.Pos),
		}
	case *ast.TokenNode:
		return &jsonNode{
			Node: "token",
			Kind: n.Tok.Kind.String(),
			Word: n.Tok.Word,
			Pos:  posToJSON(n.Tok.Pos),
		}
	case *ast.FuncDecl:
		jn := &jsonNode{Node: "function_decl", Word: n.Name.Word, Pos: posToJSON(n.Name.Pos)}
		if n.Paren != nil {
			jn.Children = append(jn.Children, nodeToJSON(n.Paren))
		}
		if n.Body != nil {
			jn.Children = append(jn.Children, nodeToJSON(n.Body))
		}
		return jn
	case *ast.CallExpr:
		jn := &jsonNode{Node: "call_expr", Word: n.Name.Word, Pos: posToJSON(n.Name.Pos)}
		if n.Paren != nil {
			jn.Children = append(jn.Children, nodeToJSON(n.Paren))
		}
		return jn
	case *ast.Condition:
		jn := &jsonNode{
			Node: "condition",
			Word: n.Keyword.Word,
			Loop: n.IsLoop,
			Pos:  posToJSON(n.Keyword.Pos),
		}
		if n.Paren != nil {
			jn.Children = append(jn.Children, nodeToJSON(n.Paren))
		}
		if n.Body != nil {
			jn.Children = append(jn.Children, nodeToJSON(n.Body))
		}
		return jn
	case *ast.Jump:
		jn := &jsonNode{Node: "jump", Word: n.Keyword.Word, Pos: posToJSON(n.Keyword.Pos)}
		if n.Body != nil {
			jn.Children = append(jn.Children, nodeToJSON(n.Body))
		}
		return jn
	case *ast.Control:
		jn := &jsonNode{Node: "control", Word: n.Keyword.Word, Pos: posToJSON(n.Keyword.Pos)}
		if n.Body != nil {
			jn.Children = append(jn.Children, nodeToJSON(n.Body))
		}
		return jn
	case *ast.Unary:
		fixity := "postfix"
		if n.IsPrefix {
			fixity = "prefix"
		}
		return &jsonNode{
			Node:     "unary",
			Word:     n.Op.Word,
			Fixity:   fixity,
			Priority: n.Priority,
			Children: []*jsonNode{nodeToJSON(n.Operand)},
		}
	case *ast.Binary:
		return &jsonNode{
			Node:     "binary",
			Word:     n.Op.Word,
			Priority: n.Priority,
			Children: []*jsonNode{nodeToJSON(n.LHS), nodeToJSON(n.RHS)},
		}
	case *ast.Ternary:
		return &jsonNode{
			Node:     "ternary",
			Priority: n.Priority,
			Children: []*jsonNode{nodeToJSON(n.Cond), nodeToJSON(n.Then), nodeToJSON(n.Else)},
		}
	default:
		return &jsonNode{Node: "null"}
	}
}
