// Package syntax defines the closed set of statement and expression shapes
// the flowchart builder understands. The parser adapter lowers a tree-sitter
// concrete syntax tree into these types; anything it does not recognize
// becomes an Unknown statement.
package syntax

// Node is any syntax node with a source position.
type Node interface {
	Pos() Position
}

// Stmt is a statement node.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is an expression appearing as a statement (or as the value of an
// assignment) whose shape affects translation.
type Expr interface {
	Node
	exprNode()
}

// Def is a named definition that field paths can select.
type Def interface {
	Stmt
	DefName() string
	DefBody() []Stmt
}

// Position is a 1-based source line.
type Position struct {
	Line int
}

// Pos returns the position itself so it can be embedded.
func (p Position) Pos() Position { return p }

// Text is source-like text produced by unparsing a syntax node.
// Approximate is set when the unparser fell back to the raw source.
type Text struct {
	Source      string
	Approximate bool
}

// String returns the text.
func (t Text) String() string { return t.Source }

// Module is a whole parsed source file.
type Module struct {
	Body []Stmt
}

// Simple is any non-branching statement: assignment without a special value,
// augmented assignment, raise, pass, assert, import, del, global, nonlocal.
type Simple struct {
	Position
	Text Text
}

// Assign is a plain assignment whose right-hand side is kept so the builder
// can recognize input primitives.
type Assign struct {
	Position
	Text  Text
	Value Expr
}

// ExprStmt is an expression evaluated for its effects.
type ExprStmt struct {
	Position
	X Expr
}

// If is an if statement. An elif chain is lowered into a nested If as the
// only statement of Else.
type If struct {
	Position
	Cond Text
	Body []Stmt
	Else []Stmt
	Elif    bool // Else holds a lowered elif rather than a written else
	Chained bool // this If was lowered from an elif clause
}

// While is a while loop with an optional else clause.
type While struct {
	Position
	Cond Text
	Body []Stmt
	Else []Stmt
}

// For is a for loop with an optional else clause.
type For struct {
	Position
	Async  bool
	Target Text
	Iter   Text
	Body   []Stmt
	Else   []Stmt
}

// With is a with statement; its body runs inline.
type With struct {
	Position
	Items Text
	Async bool
	Body  []Stmt
}

// Try is a try statement. Handlers are matched in order when the body
// raises; Else runs when it does not and Finally runs on every exit path.
type Try struct {
	Position
	Body     []Stmt
	Handlers []Clause
	Else     []Stmt
	Finally  []Stmt
}

// Match is a match statement whose cases are tried in order.
type Match struct {
	Position
	Subject Text
	Cases   []Clause
}

// Clause is an except handler or a match case: its header without the colon
// ("except ValueError as e", "case [x, y] if x > y") and its body.
type Clause struct {
	Position
	Header Text
	Body   []Stmt
}

// Break is a break statement.
type Break struct {
	Position
}

// Continue is a continue statement.
type Continue struct {
	Position
}

// Return is a return statement. Value is nil for a bare return.
type Return struct {
	Position
	Value *Text
}

// FuncDef is a function or method definition.
type FuncDef struct {
	Position
	Name   string
	Async  bool
	Params []string
	Body   []Stmt
}

// ClassDef is a class definition.
type ClassDef struct {
	Position
	Name  string
	Bases Text
	Body  []Stmt
}

// Unknown is a statement shape with no dedicated translation.
type Unknown struct {
	Position
	Kind string
	Text Text
}

func (*Simple) stmtNode()   {}
func (*Assign) stmtNode()   {}
func (*ExprStmt) stmtNode() {}
func (*If) stmtNode()       {}
func (*While) stmtNode()    {}
func (*For) stmtNode()      {}
func (*With) stmtNode()     {}
func (*Try) stmtNode()      {}
func (*Match) stmtNode()    {}
func (*Break) stmtNode()    {}
func (*Continue) stmtNode() {}
func (*Return) stmtNode()   {}
func (*FuncDef) stmtNode()  {}
func (*ClassDef) stmtNode() {}
func (*Unknown) stmtNode()  {}

// DefName returns the function name.
func (d *FuncDef) DefName() string { return d.Name }

// DefBody returns the function body.
func (d *FuncDef) DefBody() []Stmt { return d.Body }

// DefName returns the class name.
func (d *ClassDef) DefName() string { return d.Name }

// DefBody returns the class body.
func (d *ClassDef) DefBody() []Stmt { return d.Body }

// Call is a call expression. Callee is the dotted callee text ("sys.stdout.write")
// or empty when the callee is not a plain name or attribute chain.
type Call struct {
	Position
	Callee string
	Await  bool
	Text   Text
}

// Yield is a yield or yield-from expression.
type Yield struct {
	Position
	Text Text
}

// Ternary is a conditional expression used as a statement.
type Ternary struct {
	Position
	Cond Text
	Then Expr
	Else Expr
}

// Other is any expression without special meaning for the flowchart.
type Other struct {
	Position
	Text Text
}

func (*Call) exprNode()    {}
func (*Yield) exprNode()   {}
func (*Ternary) exprNode() {}
func (*Other) exprNode()   {}

// Label returns the unparsed text of an expression.
func Label(x Expr) Text {
	switch x := x.(type) {
	case *Call:
		return x.Text
	case *Yield:
		return x.Text
	case *Ternary:
		then, els := Label(x.Then), Label(x.Else)
		return Text{
			Source:      then.Source + " if " + x.Cond.Source + " else " + els.Source,
			Approximate: x.Cond.Approximate || then.Approximate || els.Approximate,
		}
	case *Other:
		return x.Text
	default:
		return Text{}
	}
}
