package grouper_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/quasilang/quasipiler/format"
	"github.com/quasilang/quasipiler/quasi/ast"
	"github.com/quasilang/quasipiler/quasi/grouper"
	"github.com/quasilang/quasipiler/quasi/reader"
)

func parseString(t *testing.T, input string, limit int) *ast.Group {
	t.Helper()
	g, err := grouper.New(reader.NewString(input), limit)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	root, err := g.Parse(ast.KindFile)
	if err != nil {
		t.Fatalf("Parse(%q): %v", input, err)
	}
	return root
}

func parseError(t *testing.T, input string) error {
	t.Helper()
	g, err := grouper.New(reader.NewString(input), grouper.DefaultLimit)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = g.Parse(ast.KindFile)
	if err == nil {
		t.Fatalf("Parse(%q) succeeded, expected error", input)
	}
	return err
}

func compactDump(t *testing.T, n ast.Node) string {
	t.Helper()
	out, err := format.Tree(n, format.Compact)
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	return out
}

func asGroup(t *testing.T, n ast.Node, kind ast.GroupKind) *ast.Group {
	t.Helper()
	g, ok := n.(*ast.Group)
	if !ok {
		t.Fatalf("node = %T, want *ast.Group", n)
	}
	if g.Kind != kind {
		t.Fatalf("group kind = %v, want %v", g.Kind, kind)
	}
	return g
}

func leafWord(t *testing.T, n ast.Node) string {
	t.Helper()
	switch v := n.(type) {
	case *ast.TokenNode:
		return v.Tok.Word
	case *ast.Group:
		if len(v.Nodes) != 1 {
			t.Fatalf("group has %d children, want a single leaf", len(v.Nodes))
		}
		return leafWord(t, v.Nodes[0])
	}
	t.Fatalf("node = %T, want token or group", n)
	return ""
}

func TestMinimumLimit(t *testing.T) {
	if _, err := grouper.New(reader.NewString("a"), 1); err == nil {
		t.Error("limit 1 accepted")
	}
	if _, err := grouper.New(reader.NewString("a"), 2); err != nil {
		t.Errorf("limit 2 rejected: %v", err)
	}
}

func TestBodyWithTwoCommands(t *testing.T) {
	root := parseString(t, "{a;b}", grouper.DefaultLimit)
	if root.Kind != ast.KindFile {
		t.Fatalf("root kind = %v, want file", root.Kind)
	}
	if len(root.Nodes) != 1 {
		t.Fatalf("root has %d children, want 1", len(root.Nodes))
	}
	halt := asGroup(t, root.Nodes[0], ast.KindHalt)
	if len(halt.Nodes) != 1 {
		t.Fatalf("halt has %d children, want 1", len(halt.Nodes))
	}
	body := asGroup(t, halt.Nodes[0], ast.KindBody)
	if len(body.Nodes) != 2 {
		t.Fatalf("body has %d children, want 2", len(body.Nodes))
	}
	command := asGroup(t, body.Nodes[0], ast.KindCommand)
	if got := leafWord(t, command); got != "a" {
		t.Errorf("first command leaf = %q, want a", got)
	}
	if got := leafWord(t, body.Nodes[1]); got != "b" {
		t.Errorf("second group leaf = %q, want b", got)
	}
}

func TestNestedListBody(t *testing.T) {
	root := parseString(t, "[a,{b;c}]", grouper.DefaultLimit)
	halt := asGroup(t, root.Nodes[0], ast.KindHalt)
	list := asGroup(t, halt.Nodes[0], ast.KindList)
	if len(list.Nodes) != 2 {
		t.Fatalf("list has %d children, want 2", len(list.Nodes))
	}
	item := asGroup(t, list.Nodes[0], ast.KindItem)
	if got := leafWord(t, item); got != "a" {
		t.Errorf("item leaf = %q, want a", got)
	}
	wrap := asGroup(t, list.Nodes[1], ast.KindHalt)
	body := asGroup(t, wrap.Nodes[0], ast.KindBody)
	if len(body.Nodes) != 2 {
		t.Errorf("inner body has %d children, want 2", len(body.Nodes))
	}
}

func TestIfElifElseChain(t *testing.T) {
	root := parseString(t, "if(a){b}elif(c){d}else{e}", grouper.DefaultLimit)
	halt := asGroup(t, root.Nodes[0], ast.KindHalt)
	if len(halt.Nodes) != 3 {
		t.Fatalf("halt has %d children, want 3", len(halt.Nodes))
	}

	first, ok := halt.Nodes[0].(*ast.Condition)
	if !ok {
		t.Fatalf("first = %T, want *ast.Condition", halt.Nodes[0])
	}
	if first.Keyword.Word != "if" || first.Paren == nil || first.Body == nil {
		t.Errorf("if condition incomplete: %+v", first)
	}
	if first.IsLoop {
		t.Error("if marked as loop")
	}

	second, ok := halt.Nodes[1].(*ast.Condition)
	if !ok {
		t.Fatalf("second = %T, want *ast.Condition", halt.Nodes[1])
	}
	if second.Keyword.Word != "elif" || second.Paren == nil || second.Body == nil {
		t.Errorf("elif condition incomplete: %+v", second)
	}

	third, ok := halt.Nodes[2].(*ast.Control)
	if !ok {
		t.Fatalf("third = %T, want *ast.Control", halt.Nodes[2])
	}
	if third.Keyword.Word != "else" || third.Body == nil {
		t.Errorf("else control incomplete: %+v", third)
	}
}

func TestLoopRecognition(t *testing.T) {
	root := parseString(t, "while(a){b}", grouper.DefaultLimit)
	halt := asGroup(t, root.Nodes[0], ast.KindHalt)
	cond, ok := halt.Nodes[0].(*ast.Condition)
	if !ok {
		t.Fatalf("node = %T, want *ast.Condition", halt.Nodes[0])
	}
	if !cond.IsLoop {
		t.Error("while not marked as loop")
	}
}

func TestFunctionDecl(t *testing.T) {
	root := parseString(t, "main(a){b}", grouper.DefaultLimit)
	halt := asGroup(t, root.Nodes[0], ast.KindHalt)
	if len(halt.Nodes) != 1 {
		t.Fatalf("halt has %d children, want 1", len(halt.Nodes))
	}
	decl, ok := halt.Nodes[0].(*ast.FuncDecl)
	if !ok {
		t.Fatalf("node = %T, want *ast.FuncDecl", halt.Nodes[0])
	}
	if decl.Name.Word != "main" {
		t.Errorf("name = %q, want main", decl.Name.Word)
	}
	if decl.Paren == nil || decl.Body == nil {
		t.Error("function declaration incomplete")
	}
}

func TestCallExpr(t *testing.T) {
	root := parseString(t, "f(x);", grouper.DefaultLimit)
	command := asGroup(t, root.Nodes[0], ast.KindCommand)
	call, ok := command.Nodes[0].(*ast.CallExpr)
	if !ok {
		t.Fatalf("node = %T, want *ast.CallExpr", command.Nodes[0])
	}
	if call.Name.Word != "f" || call.Paren == nil {
		t.Errorf("call incomplete: %+v", call)
	}
}

func TestJumpWithBody(t *testing.T) {
	root := parseString(t, "return x;", grouper.DefaultLimit)
	command := asGroup(t, root.Nodes[0], ast.KindCommand)
	jump, ok := command.Nodes[0].(*ast.Jump)
	if !ok {
		t.Fatalf("node = %T, want *ast.Jump", command.Nodes[0])
	}
	if jump.Keyword.Word != "return" {
		t.Errorf("keyword = %q, want return", jump.Keyword.Word)
	}
	if jump.Body == nil {
		t.Fatal("return lost its value")
	}
	body := asGroup(t, jump.Body, ast.KindBody)
	if got := leafWord(t, body.Nodes[0]); got != "x" {
		t.Errorf("return value = %q, want x", got)
	}
}

func TestGotoExpectsBody(t *testing.T) {
	root := parseString(t, "goto end;", grouper.DefaultLimit)
	command := asGroup(t, root.Nodes[0], ast.KindCommand)
	jump, ok := command.Nodes[0].(*ast.Jump)
	if !ok {
		t.Fatalf("node = %T, want *ast.Jump", command.Nodes[0])
	}
	if jump.Body == nil {
		t.Error("goto should take a body target")
	}
}

func TestBreakWithoutBody(t *testing.T) {
	root := parseString(t, "break;", grouper.DefaultLimit)
	command := asGroup(t, root.Nodes[0], ast.KindCommand)
	jump, ok := command.Nodes[0].(*ast.Jump)
	if !ok {
		t.Fatalf("node = %T, want *ast.Jump", command.Nodes[0])
	}
	if jump.Body != nil {
		t.Error("break should not take a body")
	}
}

func TestChainAcrossCommands(t *testing.T) {
	root := parseString(t, "if(a){b};elif(c){d};", grouper.DefaultLimit)
	command := asGroup(t, root.Nodes[0], ast.KindCommand)
	if len(command.Nodes) != 2 {
		t.Fatalf("command has %d children, want chained pair", len(command.Nodes))
	}
	if _, ok := command.Nodes[0].(*ast.Condition); !ok {
		t.Errorf("first = %T, want *ast.Condition", command.Nodes[0])
	}
	second, ok := command.Nodes[1].(*ast.Condition)
	if !ok {
		t.Fatalf("second = %T, want *ast.Condition", command.Nodes[1])
	}
	if second.Keyword.Word != "elif" {
		t.Errorf("second keyword = %q, want elif", second.Keyword.Word)
	}
}

func TestTryCatchFinallyChain(t *testing.T) {
	root := parseString(t, "try{a};catch(e){b};finally{c};", grouper.DefaultLimit)
	command := asGroup(t, root.Nodes[0], ast.KindCommand)
	if len(command.Nodes) != 3 {
		t.Fatalf("command has %d children, want 3", len(command.Nodes))
	}
	if _, ok := command.Nodes[0].(*ast.Control); !ok {
		t.Errorf("try = %T, want *ast.Control", command.Nodes[0])
	}
	catch, ok := command.Nodes[1].(*ast.Condition)
	if !ok {
		t.Fatalf("catch = %T, want *ast.Condition", command.Nodes[1])
	}
	if catch.Keyword.Word != "catch" || catch.Paren == nil || catch.Body == nil {
		t.Errorf("catch incomplete: %+v", catch)
	}
	fin, ok := command.Nodes[2].(*ast.Control)
	if !ok {
		t.Fatalf("finally = %T, want *ast.Control", command.Nodes[2])
	}
	if fin.Keyword.Word != "finally" || fin.Body == nil {
		t.Errorf("finally incomplete: %+v", fin)
	}
}

func TestIdentificationErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		msg   string
	}{
		{"orphan elif", "elif(a){b}", "orphan secondary keyword"},
		{"orphan else", "else{b}", "orphan secondary keyword"},
		{"plain predecessor", "a;else{b};", "invalid predecessor for keyword"},
		{"wrong order", "try{a};else{b};", "unexpected keyword order"},
		{"missing condition", "if a;", "expected condition after control keyword"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := parseError(t, tt.input)
			var gerr *grouper.Error
			if !errors.As(err, &gerr) {
				t.Fatalf("error type = %T, want *grouper.Error", err)
			}
			if !strings.Contains(gerr.Msg, tt.msg) {
				t.Errorf("msg = %q, want it to contain %q", gerr.Msg, tt.msg)
			}
		})
	}
}

func TestStructuralErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"mismatched close", "{a]"},
		{"unclosed body", "{a"},
		{"stray close", "a)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parseError(t, tt.input)
		})
	}
}

func TestArithmeticLowering(t *testing.T) {
	root := parseString(t, "a+b*c;", grouper.DefaultLimit)
	command := asGroup(t, root.Nodes[0], ast.KindCommand)
	if len(command.Nodes) != 1 {
		t.Fatalf("command has %d children, want the lowered expression", len(command.Nodes))
	}
	add, ok := command.Nodes[0].(*ast.Binary)
	if !ok {
		t.Fatalf("node = %T, want *ast.Binary", command.Nodes[0])
	}
	if add.Op.Word != "+" || add.Priority != 11 {
		t.Errorf("root op = %q prio %d, want + prio 11", add.Op.Word, add.Priority)
	}
	mul, ok := add.RHS.(*ast.Binary)
	if !ok {
		t.Fatalf("rhs = %T, want *ast.Binary", add.RHS)
	}
	if mul.Op.Word != "*" || mul.Priority != 12 {
		t.Errorf("rhs op = %q prio %d, want * prio 12", mul.Op.Word, mul.Priority)
	}
}

func TestLoweringMergesCompoundOperators(t *testing.T) {
	root := parseString(t, "d=e=f;", grouper.DefaultLimit)
	command := asGroup(t, root.Nodes[0], ast.KindCommand)
	assign, ok := command.Nodes[0].(*ast.Binary)
	if !ok {
		t.Fatalf("node = %T, want *ast.Binary", command.Nodes[0])
	}
	if assign.Op.Word != "=" || assign.Priority != 1 {
		t.Errorf("op = %q prio %d, want = prio 1", assign.Op.Word, assign.Priority)
	}
	if _, ok := assign.RHS.(*ast.Binary); !ok {
		t.Errorf("rhs = %T, want nested assignment (right associative)", assign.RHS)
	}
}

func TestLoweringKeepsMalformedSequences(t *testing.T) {
	// A dangling operator must not be rewritten; the flat tokens stand.
	root := parseString(t, "a+;", grouper.DefaultLimit)
	command := asGroup(t, root.Nodes[0], ast.KindCommand)
	if len(command.Nodes) != 2 {
		t.Errorf("command has %d children, want untouched tokens", len(command.Nodes))
	}
}

func TestLoweringInsideParen(t *testing.T) {
	root := parseString(t, "(a+b)", grouper.DefaultLimit)
	halt := asGroup(t, root.Nodes[0], ast.KindHalt)
	paren := asGroup(t, halt.Nodes[0], ast.KindParen)
	inner := asGroup(t, paren.Nodes[0], ast.KindHalt)
	if len(inner.Nodes) != 1 {
		t.Fatalf("inner group has %d children, want 1", len(inner.Nodes))
	}
	if _, ok := inner.Nodes[0].(*ast.Binary); !ok {
		t.Errorf("node = %T, want *ast.Binary", inner.Nodes[0])
	}
}

const placeholderInput = "{[a,b,c,d],[e,f,g,h],[i,j,k,l]}"

func findBody(t *testing.T, root *ast.Group) *ast.Group {
	t.Helper()
	halt := asGroup(t, root.Nodes[0], ast.KindHalt)
	return asGroup(t, halt.Nodes[0], ast.KindBody)
}

func TestPlaceholderBudget(t *testing.T) {
	root := parseString(t, placeholderInput, 4)
	body := findBody(t, root)
	if len(body.Nodes) != 3 {
		t.Fatalf("body has %d children, want 3", len(body.Nodes))
	}
	placeholders := 0
	for _, n := range body.Nodes {
		if _, ok := n.(*ast.Placeholder); ok {
			placeholders++
		}
	}
	if placeholders == 0 {
		t.Fatal("no placeholder despite the budget")
	}
}

func TestPlaceholderRoundTrip(t *testing.T) {
	root := parseString(t, placeholderInput, 4)
	wide := parseString(t, placeholderInput, 100)

	body := findBody(t, root)
	wideBody := findBody(t, wide)
	if len(body.Nodes) != len(wideBody.Nodes) {
		t.Fatalf("narrow body has %d children, wide %d", len(body.Nodes), len(wideBody.Nodes))
	}

	for i, n := range body.Nodes {
		ph, ok := n.(*ast.Placeholder)
		if !ok {
			continue
		}
		expanded, err := grouper.Expand(ph)
		if err != nil {
			t.Fatalf("Expand child %d: %v", i, err)
		}
		if expanded.FullSize() != ph.FullSize() {
			t.Errorf("child %d: expanded full = %d, want %d", i, expanded.FullSize(), ph.FullSize())
		}
		got := compactDump(t, expanded)
		want := compactDump(t, wideBody.Nodes[i])
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("child %d dump mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestExpandRestoresPosition(t *testing.T) {
	src := reader.NewString(placeholderInput)
	g, err := grouper.New(src, 4)
	if err != nil {
		t.Fatal(err)
	}
	root, err := g.Parse(ast.KindFile)
	if err != nil {
		t.Fatal(err)
	}
	body := findBody(t, root)

	var ph *ast.Placeholder
	for _, n := range body.Nodes {
		if p, ok := n.(*ast.Placeholder); ok {
			ph = p
			break
		}
	}
	if ph == nil {
		t.Fatal("no placeholder found")
	}
	before := src.Position()
	if _, err := grouper.Expand(ph); err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if got := src.Position(); got != before {
		t.Errorf("position after expand = %+v, want %+v", got, before)
	}
}

func TestInvariants(t *testing.T) {
	inputs := []struct {
		input string
		limit int
	}{
		{"{a;b}", grouper.DefaultLimit},
		{"[a,{b;c}]", grouper.DefaultLimit},
		{placeholderInput, 4},
		{placeholderInput, 6},
		{"{[a,b,c,d,e],[f,g],{h;i;j},[k,n]}", 5},
		{"a+b*c;d=e=f;", grouper.DefaultLimit},
		{"if(a){b}elif(c){d}else{e}", grouper.DefaultLimit},
	}
	for _, tt := range inputs {
		t.Run(tt.input, func(t *testing.T) {
			root := parseString(t, tt.input, tt.limit)
			walkGroups(root, func(g *ast.Group) {
				if g.FixedSize() > g.Limit {
					t.Errorf("group %v: fixed %d exceeds limit %d", g.Kind, g.FixedSize(), g.Limit)
				}
				if g.FullSize() < g.FixedSize() {
					t.Errorf("group %v: full %d < fixed %d", g.Kind, g.FullSize(), g.FixedSize())
				}
				if len(g.Nodes) == 0 {
					if g.FixedSize() != 1 || g.FullSize() != 1 {
						t.Errorf("empty group %v sizes = %d/%d, want 1/1", g.Kind, g.FixedSize(), g.FullSize())
					}
					return
				}
				fixed, full := 0, 0
				for _, child := range g.Nodes {
					fixed += child.FixedSize()
					full += child.FullSize()
				}
				if g.FixedSize() != fixed {
					t.Errorf("group %v: fixed %d, children sum %d", g.Kind, g.FixedSize(), fixed)
				}
				if g.FullSize() != full {
					t.Errorf("group %v: full %d, children sum %d", g.Kind, g.FullSize(), full)
				}
			})
		})
	}
}

func walkGroups(n ast.Node, visit func(*ast.Group)) {
	switch v := n.(type) {
	case *ast.Group:
		visit(v)
		for _, child := range v.Nodes {
			walkGroups(child, visit)
		}
	case *ast.FuncDecl:
		if v.Paren != nil {
			walkGroups(v.Paren, visit)
		}
		if v.Body != nil {
			walkGroups(v.Body, visit)
		}
	case *ast.CallExpr:
		if v.Paren != nil {
			walkGroups(v.Paren, visit)
		}
	case *ast.Condition:
		if v.Paren != nil {
			walkGroups(v.Paren, visit)
		}
		if v.Body != nil {
			walkGroups(v.Body, visit)
		}
	case *ast.Jump:
		if v.Body != nil {
			walkGroups(v.Body, visit)
		}
	case *ast.Control:
		if v.Body != nil {
			walkGroups(v.Body, visit)
		}
	case *ast.Unary:
		walkGroups(v.Operand, visit)
	case *ast.Binary:
		walkGroups(v.LHS, visit)
		walkGroups(v.RHS, visit)
	case *ast.Ternary:
		walkGroups(v.Cond, visit)
		walkGroups(v.Then, visit)
		walkGroups(v.Else, visit)
	}
}
