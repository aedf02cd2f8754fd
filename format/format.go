// Package format renders QuasiLang syntax trees: an indented tree listing
// and a structural JSON encoding.
package format

import (
	"github.com/quasilang/quasipiler/quasi/ast"
)

// Encoder writes a rendering of a syntax tree.
type Encoder interface {
	Encode(node ast.Node) error
}
