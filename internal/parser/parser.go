package parser

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/QTest-hq/pyflowchart/internal/syntax"
)

// ErrSyntax is returned when the source contains syntax errors.
var ErrSyntax = errors.New("syntax error")

// Parser parses Python source files using tree-sitter
type Parser struct {
	pyParser *sitter.Parser
}

// NewParser creates a new Python parser
func NewParser() *Parser {
	pyParser := sitter.NewParser()
	pyParser.SetLanguage(python.GetLanguage())

	return &Parser{
		pyParser: pyParser,
	}
}

// ParseContent parses source code content into a syntax tree.
// A tree with ERROR or MISSING nodes is rejected with ErrSyntax.
func (p *Parser) ParseContent(ctx context.Context, content []byte) (*syntax.Module, error) {
	tree, err := p.pyParser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, fmt.Errorf("%w at line %d", ErrSyntax, firstErrorLine(root))
	}

	l := &lowerer{src: content, u: &unparser{src: content}}
	module := &syntax.Module{Body: l.block(root)}

	log.Debug().
		Int("statements", len(module.Body)).
		Int("bytes", len(content)).
		Msg("parsed module")

	return module, nil
}

// lowerer converts tree-sitter nodes into syntax statements
type lowerer struct {
	src []byte
	u   *unparser
}

func (l *lowerer) block(n *sitter.Node) []syntax.Stmt {
	if n == nil {
		return nil
	}

	var stmts []syntax.Stmt
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child == nil || child.Type() == "comment" {
			continue
		}
		stmts = append(stmts, l.stmt(child))
	}
	return stmts
}

// suite lowers the body of a def or class, dropping a leading docstring.
func (l *lowerer) suite(n *sitter.Node) []syntax.Stmt {
	stmts := l.block(n)
	if n == nil || len(stmts) == 0 {
		return stmts
	}

	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() == "comment" {
			continue
		}
		if isDocstring(child) {
			return stmts[1:]
		}
		break
	}
	return stmts
}

func isDocstring(n *sitter.Node) bool {
	if n.Type() != "expression_statement" || n.NamedChildCount() != 1 {
		return false
	}
	switch n.NamedChild(0).Type() {
	case "string", "concatenated_string":
		return true
	}
	return false
}

func (l *lowerer) stmt(n *sitter.Node) syntax.Stmt {
	pos := position(n)

	switch n.Type() {
	case "expression_statement":
		return l.exprStatement(n)

	case "if_statement":
		return l.ifStatement(n)

	case "while_statement":
		return &syntax.While{
			Position: pos,
			Cond:     l.u.text(n.ChildByFieldName("condition")),
			Body:     l.block(n.ChildByFieldName("body")),
			Else:     l.elseBody(n.ChildByFieldName("alternative")),
		}

	case "for_statement":
		return &syntax.For{
			Position: pos,
			Async:    hasChild(n, "async"),
			Target:   l.u.text(n.ChildByFieldName("left")),
			Iter:     l.u.text(n.ChildByFieldName("right")),
			Body:     l.block(n.ChildByFieldName("body")),
			Else:     l.elseBody(n.ChildByFieldName("alternative")),
		}

	case "with_statement":
		with := &syntax.With{
			Position: pos,
			Async:    hasChild(n, "async"),
			Body:     l.block(n.ChildByFieldName("body")),
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			if child := n.NamedChild(i); child.Type() == "with_clause" {
				with.Items = l.u.text(child)
			}
		}
		return with

	case "try_statement":
		return l.tryStatement(n)

	case "match_statement":
		return l.matchStatement(n)

	case "break_statement":
		return &syntax.Break{Position: pos}

	case "continue_statement":
		return &syntax.Continue{Position: pos}

	case "return_statement":
		ret := &syntax.Return{Position: pos}
		if value := firstNamed(n); value != nil {
			text := l.u.text(value)
			ret.Value = &text
		}
		return ret

	case "function_definition":
		return &syntax.FuncDef{
			Position: pos,
			Name:     l.content(n.ChildByFieldName("name")),
			Async:    hasChild(n, "async"),
			Params:   l.parameters(n.ChildByFieldName("parameters")),
			Body:     l.suite(n.ChildByFieldName("body")),
		}

	case "class_definition":
		cls := &syntax.ClassDef{
			Position: pos,
			Name:     l.content(n.ChildByFieldName("name")),
			Body:     l.suite(n.ChildByFieldName("body")),
		}
		if bases := n.ChildByFieldName("superclasses"); bases != nil {
			cls.Bases = l.u.text(bases)
		}
		return cls

	case "decorated_definition":
		if def := n.ChildByFieldName("definition"); def != nil {
			return l.stmt(def)
		}

	case "pass_statement", "raise_statement", "assert_statement",
		"import_statement", "import_from_statement", "future_import_statement",
		"delete_statement", "global_statement", "nonlocal_statement",
		"print_statement", "exec_statement", "type_alias_statement":
		return &syntax.Simple{Position: pos, Text: l.u.text(n)}
	}

	return &syntax.Unknown{Position: pos, Kind: n.Type(), Text: l.header(n)}
}

func (l *lowerer) exprStatement(n *sitter.Node) syntax.Stmt {
	pos := position(n)
	if n.NamedChildCount() != 1 {
		return &syntax.Simple{Position: pos, Text: l.u.text(n)}
	}

	child := n.NamedChild(0)
	switch child.Type() {
	case "assignment":
		right := child.ChildByFieldName("right")
		if right == nil {
			// bare annotation: `x: int`
			return &syntax.Simple{Position: pos, Text: l.u.text(child)}
		}
		return &syntax.Assign{Position: pos, Text: l.u.text(child), Value: l.expr(right)}
	case "augmented_assignment":
		return &syntax.Simple{Position: pos, Text: l.u.text(child)}
	}

	return &syntax.ExprStmt{Position: pos, X: l.expr(child)}
}

func (l *lowerer) expr(n *sitter.Node) syntax.Expr {
	pos := position(n)

	switch n.Type() {
	case "call":
		return &syntax.Call{Position: pos, Callee: l.callee(n.ChildByFieldName("function")), Text: l.u.text(n)}
	case "await":
		if inner := firstNamed(n); inner != nil && inner.Type() == "call" {
			return &syntax.Call{
				Position: pos,
				Callee:   l.callee(inner.ChildByFieldName("function")),
				Await:    true,
				Text:     l.u.text(n),
			}
		}
	case "yield":
		return &syntax.Yield{Position: pos, Text: l.u.text(n)}
	case "conditional_expression":
		if n.NamedChildCount() == 3 {
			return &syntax.Ternary{
				Position: pos,
				Cond:     l.u.text(n.NamedChild(1)),
				Then:     l.expr(n.NamedChild(0)),
				Else:     l.expr(n.NamedChild(2)),
			}
		}
	}

	return &syntax.Other{Position: pos, Text: l.u.text(n)}
}

// callee returns the dotted name of a call target, or "" for computed callees.
func (l *lowerer) callee(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	switch n.Type() {
	case "identifier":
		return l.content(n)
	case "attribute":
		object := l.callee(n.ChildByFieldName("object"))
		if object == "" {
			return ""
		}
		return object + "." + l.content(n.ChildByFieldName("attribute"))
	}
	return ""
}

func (l *lowerer) ifStatement(n *sitter.Node) *syntax.If {
	stmt := &syntax.If{
		Position: position(n),
		Cond:     l.u.text(n.ChildByFieldName("condition")),
		Body:     l.block(n.ChildByFieldName("consequence")),
	}

	var alternatives []*sitter.Node
	for i := 0; i < int(n.ChildCount()); i++ {
		if n.FieldNameForChild(i) == "alternative" {
			alternatives = append(alternatives, n.Child(i))
		}
	}
	stmt.Else, stmt.Elif = l.alternatives(alternatives)

	return stmt
}

// alternatives lowers an elif/else chain; each elif becomes a nested If.
func (l *lowerer) alternatives(clauses []*sitter.Node) ([]syntax.Stmt, bool) {
	if len(clauses) == 0 {
		return nil, false
	}

	clause := clauses[0]
	switch clause.Type() {
	case "elif_clause":
		nested := &syntax.If{
			Position: position(clause),
			Chained:  true,
			Cond:     l.u.text(clause.ChildByFieldName("condition")),
			Body:     l.block(clause.ChildByFieldName("consequence")),
		}
		nested.Else, nested.Elif = l.alternatives(clauses[1:])
		return []syntax.Stmt{nested}, true
	case "else_clause":
		return l.block(clause.ChildByFieldName("body")), false
	}

	return nil, false
}

func (l *lowerer) tryStatement(n *sitter.Node) *syntax.Try {
	stmt := &syntax.Try{
		Position: position(n),
		Body:     l.block(n.ChildByFieldName("body")),
	}

	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "except_clause", "except_group_clause":
			stmt.Handlers = append(stmt.Handlers, l.clause(child))
		case "else_clause":
			stmt.Else = l.elseBody(child)
		case "finally_clause":
			stmt.Finally = l.block(lastBlock(child))
		}
	}

	return stmt
}

func (l *lowerer) matchStatement(n *sitter.Node) *syntax.Match {
	stmt := &syntax.Match{Position: position(n)}

	var subjects []string
	approximate := false
	for i := 0; i < int(n.ChildCount()); i++ {
		if n.FieldNameForChild(i) != "subject" {
			continue
		}
		text := l.u.text(n.Child(i))
		subjects = append(subjects, text.Source)
		approximate = approximate || text.Approximate
	}
	stmt.Subject = syntax.Text{Source: strings.Join(subjects, ", "), Approximate: approximate}

	// cases sit directly under the statement or inside its block
	var collect func(*sitter.Node)
	collect = func(parent *sitter.Node) {
		for i := 0; i < int(parent.NamedChildCount()); i++ {
			child := parent.NamedChild(i)
			switch child.Type() {
			case "case_clause":
				stmt.Cases = append(stmt.Cases, l.clause(child))
			case "block":
				collect(child)
			}
		}
	}
	collect(n)

	return stmt
}

// clause lowers an except handler or a match case. The header is the source
// up to the clause body, so multi-line headers stay exact.
func (l *lowerer) clause(n *sitter.Node) syntax.Clause {
	body := n.ChildByFieldName("consequence")
	if body == nil {
		body = lastBlock(n)
	}

	end := n.EndByte()
	if body != nil {
		end = body.StartByte()
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if child := n.NamedChild(i); child.Type() == "comment" && child.StartByte() < end {
			end = child.StartByte()
		}
	}

	header := strings.TrimSpace(string(l.src[n.StartByte():end]))
	header = strings.TrimSpace(strings.TrimSuffix(header, ":"))

	return syntax.Clause{
		Position: position(n),
		Header:   syntax.Text{Source: collapse(header)},
		Body:     l.block(body),
	}
}

func (l *lowerer) elseBody(n *sitter.Node) []syntax.Stmt {
	if n == nil || n.Type() != "else_clause" {
		return nil
	}
	return l.block(n.ChildByFieldName("body"))
}

func (l *lowerer) parameters(n *sitter.Node) []string {
	params := make([]string, 0)
	if n == nil {
		return params
	}

	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "identifier", "list_splat_pattern", "dictionary_splat_pattern", "tuple_pattern":
			params = append(params, l.content(child))
		case "typed_parameter":
			if name := firstNamed(child); name != nil {
				params = append(params, l.content(name))
			}
		case "default_parameter", "typed_default_parameter":
			if name := child.ChildByFieldName("name"); name != nil {
				params = append(params, l.content(name))
			}
		}
	}

	return params
}

// header returns the first line of a compound statement without its colon.
func (l *lowerer) header(n *sitter.Node) syntax.Text {
	content := n.Content(l.src)
	if i := strings.IndexByte(content, '\n'); i >= 0 {
		content = content[:i]
	}
	content = strings.TrimSuffix(strings.TrimSpace(content), ":")

	log.Debug().
		Str("kind", n.Type()).
		Int("line", position(n).Line).
		Msg("no translation for statement, using header")

	return syntax.Text{Source: collapse(content), Approximate: true}
}

func (l *lowerer) content(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return collapse(n.Content(l.src))
}

func position(n *sitter.Node) syntax.Position {
	return syntax.Position{Line: int(n.StartPoint().Row) + 1}
}

func lastBlock(n *sitter.Node) *sitter.Node {
	for i := int(n.NamedChildCount()) - 1; i >= 0; i-- {
		if child := n.NamedChild(i); child.Type() == "block" {
			return child
		}
	}
	return nil
}

func firstNamed(n *sitter.Node) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if child := n.NamedChild(i); child.Type() != "comment" {
			return child
		}
	}
	return nil
}

func hasChild(n *sitter.Node, typ string) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		if n.Child(i).Type() == typ {
			return true
		}
	}
	return false
}

// firstErrorLine returns the line of the first ERROR or MISSING node
func firstErrorLine(root *sitter.Node) int {
	cursor := sitter.NewTreeCursor(root)
	defer cursor.Close()

	line := int(root.StartPoint().Row) + 1
	found := false
	walkTree(cursor, func(n *sitter.Node) {
		if !found && (n.IsError() || n.IsMissing()) {
			line = int(n.StartPoint().Row) + 1
			found = true
		}
	})
	return line
}

// walkTree walks the tree and calls fn for each node
func walkTree(cursor *sitter.TreeCursor, fn func(*sitter.Node)) {
	for {
		fn(cursor.CurrentNode())

		if cursor.GoToFirstChild() {
			continue
		}

		for {
			if cursor.GoToNextSibling() {
				break
			}
			if !cursor.GoToParent() {
				return
			}
		}
	}
}

// IsPythonFile reports whether path looks like Python source
func IsPythonFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".py", ".pyw", ".pyi":
		return true
	default:
		return false
	}
}
