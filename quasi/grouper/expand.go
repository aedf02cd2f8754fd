package grouper

import (
	"fmt"

	"github.com/quasilang/quasipiler/quasi/ast"
	"github.com/quasilang/quasipiler/quasi/reader"
)

// ExpandError reports a failed placeholder re-expansion: the inner parse
// error together with the placeholder's original position and the first
// token re-read from the source.
type ExpandError struct {
	Pos   reader.Position
	First reader.Token
	Err   error
}

func (e *ExpandError) Error() string {
	return fmt.Sprintf("re-expansion failed at %d:%d (first token %q): %v",
		e.Pos.Line, e.Pos.Column, e.First.Word, e.Err)
}

func (e *ExpandError) Unwrap() error { return e.Err }

// Expand re-parses the subtree a placeholder stands for. The source
// position is saved before the jump and restored afterwards, so dump
// operations over a tree holding several placeholders compose.
func Expand(ph *ast.Placeholder) (*ast.Group, error) {
	src := ph.Source
	if src == nil {
		return nil, fmt.Errorf("placeholder has no source")
	}
	saved := src.Position()
	defer func() { _ = src.JumpTo(saved) }()

	if err := src.JumpTo(ph.Pos); err != nil {
		return nil, &ExpandError{Pos: ph.Pos, Err: err}
	}
	var first reader.Token
	if err := src.NextToken(&first); err != nil {
		return nil, &ExpandError{Pos: ph.Pos, Err: err}
	}
	if err := src.JumpTo(ph.Pos); err != nil {
		return nil, &ExpandError{Pos: ph.Pos, First: first, Err: err}
	}

	g, err := New(src, ph.Limit)
	if err != nil {
		return nil, &ExpandError{Pos: ph.Pos, First: first, Err: err}
	}
	group, err := g.Parse(ph.Kind)
	if err != nil {
		return nil, &ExpandError{Pos: ph.Pos, First: first, Err: err}
	}
	return group, nil
}
