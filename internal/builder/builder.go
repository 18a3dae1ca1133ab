// Package builder walks syntax trees and wires the flowchart graph.
//
// Every statement handler receives the pending joins left by the previous
// statement, connects them to the first node it creates and returns its own
// pending joins. An empty set of joins means control never falls through
// (return, break, continue), and the rest of the block is skipped.
package builder

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/QTest-hq/pyflowchart/internal/syntax"
	"github.com/QTest-hq/pyflowchart/pkg/chart"
)

// Default call names recognized as input and output primitives.
var (
	DefaultInputCalls  = []string{"input", "raw_input", "sys.stdin.read", "sys.stdin.readline"}
	DefaultOutputCalls = []string{"sys.stdout.write", "sys.stderr.write"}
)

// Options control a translation run.
type Options struct {
	Simplify        bool
	AlignConditions bool
	InputCalls      []string
	OutputCalls     []string
}

// slot is an outgoing edge position waiting for its successor.
type slot struct {
	node   *chart.Node
	branch chart.Branch // empty for non-condition nodes
}

func (s slot) fill(to *chart.Node, dir chart.Direction) error {
	if s.branch == "" {
		return s.node.Connect(to, dir)
	}
	return s.node.ConnectBranch(s.branch, to, dir)
}

// loopContext tracks the innermost enclosing loop.
type loopContext struct {
	cond  *chart.Node
	exits []slot // joins left by break
}

// candidate is a condition and its one-node body that the simplifier may merge.
type candidate struct {
	cond  *chart.Node
	body  *chart.Node
	guard string
	loop  bool
}

// Builder is the state of one translation run. It is not reusable.
type Builder struct {
	opts  Options
	graph *chart.Graph

	loops      []*loopContext
	end        *chart.Node
	endLabel   string
	candidates []candidate
	candidate  map[*chart.Node]bool

	inputCalls  map[string]bool
	outputCalls map[string]bool
}

func newBuilder(opts Options) *Builder {
	if opts.InputCalls == nil {
		opts.InputCalls = DefaultInputCalls
	}
	if opts.OutputCalls == nil {
		opts.OutputCalls = DefaultOutputCalls
	}

	return &Builder{
		opts:        opts,
		graph:       chart.NewGraph(),
		candidate:   make(map[*chart.Node]bool),
		inputCalls:  toSet(opts.InputCalls),
		outputCalls: toSet(opts.OutputCalls),
	}
}

// BuildModule translates a whole module between a "start" and an "end" node.
func BuildModule(m *syntax.Module, opts Options) (*chart.Graph, error) {
	b := newBuilder(opts)

	start := b.graph.NewNode(chart.KindStart, "start")
	b.graph.Head = start

	return b.finish("end", m.Body, []slot{{node: start}})
}

// BuildDef translates a function or class. With inner set the body is
// expanded between start and end nodes; otherwise the definition becomes a
// single node.
func BuildDef(def syntax.Def, inner bool, opts Options) (*chart.Graph, error) {
	b := newBuilder(opts)

	if !inner {
		b.graph.Head = b.opaque(def)
		return b.graph, nil
	}

	start := b.graph.NewNode(chart.KindStart, "start "+def.DefName())
	b.graph.Head = start
	tails := []slot{{node: start}}

	if fn, ok := def.(*syntax.FuncDef); ok && len(fn.Params) > 0 {
		params := b.graph.NewInputOutput(chart.IOInput, strings.Join(fn.Params, ", "))
		if err := start.Connect(params, chart.DirDefault); err != nil {
			return nil, err
		}
		tails = []slot{{node: params}}
	}

	return b.finish("end "+def.DefName(), def.DefBody(), tails)
}

func (b *Builder) finish(endLabel string, body []syntax.Stmt, tails []slot) (*chart.Graph, error) {
	b.endLabel = endLabel

	_, tails, err := b.block(body, tails)
	if err != nil {
		return nil, err
	}
	if err := b.attach(tails, b.scopeEnd(), chart.DirDefault); err != nil {
		return nil, err
	}

	if b.opts.Simplify {
		if err := simplify(b.graph, b.candidates); err != nil {
			return nil, err
		}
	}

	log.Debug().
		Int("nodes", b.graph.Len()).
		Int("simplified", len(b.candidates)).
		Msg("built flowchart")

	return b.graph, nil
}

func (b *Builder) opaque(def syntax.Def) *chart.Node {
	switch d := def.(type) {
	case *syntax.FuncDef:
		label := d.Name + "(" + strings.Join(d.Params, ", ") + ")"
		if d.Async {
			label = "async " + label
		}
		return b.graph.NewNode(chart.KindSubroutine, label)
	default:
		return b.graph.NewNode(chart.KindOperation, "class "+def.DefName())
	}
}

// scopeEnd returns the single end node of the scope, creating it on first use.
func (b *Builder) scopeEnd() *chart.Node {
	if b.end == nil {
		b.end = b.graph.NewNode(chart.KindEnd, b.endLabel)
	}
	return b.end
}

func (b *Builder) attach(tails []slot, to *chart.Node, dir chart.Direction) error {
	for _, t := range tails {
		if err := t.fill(to, dir); err != nil {
			return fmt.Errorf("failed to connect node %d: %w", t.node.ID, err)
		}
	}
	return nil
}

// node creates a node labelled with text and connects the pending joins to it.
func (b *Builder) node(kind chart.Kind, text syntax.Text, tails []slot) (*chart.Node, error) {
	n := b.graph.NewNode(kind, text.Source)
	n.Approximate = text.Approximate
	return n, b.attach(tails, n, chart.DirDefault)
}

func (b *Builder) io(dir chart.IODirection, text syntax.Text, tails []slot) (*chart.Node, error) {
	n := b.graph.NewInputOutput(dir, text.Source)
	n.Approximate = text.Approximate
	return n, b.attach(tails, n, chart.DirDefault)
}

// block translates a statement sequence and returns its first node.
func (b *Builder) block(stmts []syntax.Stmt, tails []slot) (*chart.Node, []slot, error) {
	var (
		head     *chart.Node
		lastCond *chart.Node
	)

	for i, stmt := range stmts {
		if len(tails) == 0 {
			log.Debug().
				Int("line", stmt.Pos().Line).
				Int("skipped", len(stmts)-i).
				Msg("skipping unreachable statements")
			break
		}

		h, next, err := b.stmt(stmt, tails)
		if err != nil {
			return nil, nil, err
		}
		if head == nil {
			head = h
		}
		tails = next

		if b.opts.AlignConditions {
			lastCond = b.align(stmt, h, lastCond)
		}
	}

	return head, tails, nil
}

// align marks the earlier of two consecutive if conditions so flowchart.js
// does not line the next one up behind it.
func (b *Builder) align(stmt syntax.Stmt, head, last *chart.Node) *chart.Node {
	if _, ok := stmt.(*syntax.If); !ok || head == nil || b.candidate[head] {
		return nil
	}
	if last != nil {
		last.SetParam("align-next", "no")
	}
	return head
}

func (b *Builder) stmt(stmt syntax.Stmt, tails []slot) (*chart.Node, []slot, error) {
	switch s := stmt.(type) {
	case *syntax.Simple:
		n, err := b.node(chart.KindOperation, s.Text, tails)
		return n, []slot{{node: n}}, err

	case *syntax.Assign:
		if call, ok := s.Value.(*syntax.Call); ok && !call.Await && b.inputCalls[call.Callee] {
			n, err := b.io(chart.IOInput, s.Text, tails)
			return n, []slot{{node: n}}, err
		}
		n, err := b.node(chart.KindOperation, s.Text, tails)
		return n, []slot{{node: n}}, err

	case *syntax.ExprStmt:
		return b.expr(s.X, tails)

	case *syntax.If:
		return b.ifStmt(s, tails)

	case *syntax.While:
		text := s.Cond
		text.Source = "while " + s.Cond.Source
		return b.loop(text, s.Cond.Source, s.Body, s.Else, tails)

	case *syntax.For:
		guard := s.Target.Source + " in " + s.Iter.Source
		text := syntax.Text{
			Source:      "for " + guard,
			Approximate: s.Target.Approximate || s.Iter.Approximate,
		}
		if s.Async {
			text.Source = "async " + text.Source
		}
		return b.loop(text, guard, s.Body, s.Else, tails)

	case *syntax.With:
		text := s.Items
		text.Source = "with " + s.Items.Source
		if s.Async {
			text.Source = "async " + text.Source
		}
		n, err := b.node(chart.KindOperation, text, tails)
		if err != nil {
			return nil, nil, err
		}
		_, out, err := b.block(s.Body, []slot{{node: n}})
		return n, out, err

	case *syntax.Try:
		return b.tryStmt(s, tails)

	case *syntax.Match:
		return b.matchStmt(s, tails)

	case *syntax.Break:
		loop, err := b.innermost("break", s.Line)
		if err != nil {
			return nil, nil, err
		}
		loop.exits = append(loop.exits, tails...)
		return nil, nil, nil

	case *syntax.Continue:
		loop, err := b.innermost("continue", s.Line)
		if err != nil {
			return nil, nil, err
		}
		return nil, nil, b.attach(tails, loop.cond, chart.DirLeft)

	case *syntax.Return:
		var head *chart.Node
		if s.Value != nil {
			n, err := b.io(chart.IOOutput, *s.Value, tails)
			if err != nil {
				return nil, nil, err
			}
			head, tails = n, []slot{{node: n}}
		}
		end := b.scopeEnd()
		if head == nil {
			head = end
		}
		return head, nil, b.attach(tails, end, chart.DirDefault)

	case *syntax.FuncDef, *syntax.ClassDef:
		log.Debug().
			Str("name", s.(syntax.Def).DefName()).
			Int("line", s.Pos().Line).
			Msg("skipping nested definition")
		return nil, tails, nil

	case *syntax.Unknown:
		n, err := b.node(chart.KindOperation, s.Text, tails)
		return n, []slot{{node: n}}, err
	}

	return nil, nil, fmt.Errorf("unsupported statement %T", stmt)
}

func (b *Builder) expr(x syntax.Expr, tails []slot) (*chart.Node, []slot, error) {
	switch e := x.(type) {
	case *syntax.Call:
		var (
			n   *chart.Node
			err error
		)
		switch {
		case !e.Await && b.inputCalls[e.Callee]:
			n, err = b.io(chart.IOInput, e.Text, tails)
		case !e.Await && b.outputCalls[e.Callee]:
			n, err = b.io(chart.IOOutput, e.Text, tails)
		default:
			n, err = b.node(chart.KindSubroutine, e.Text, tails)
		}
		return n, []slot{{node: n}}, err

	case *syntax.Yield:
		n, err := b.io(chart.IOOutput, e.Text, tails)
		return n, []slot{{node: n}}, err

	case *syntax.Ternary:
		text := e.Cond
		text.Source = "if " + e.Cond.Source
		cond, err := b.node(chart.KindCondition, text, tails)
		if err != nil {
			return nil, nil, err
		}
		_, yes, err := b.expr(e.Then, []slot{{node: cond, branch: chart.BranchYes}})
		if err != nil {
			return nil, nil, err
		}
		_, no, err := b.expr(e.Else, []slot{{node: cond, branch: chart.BranchNo}})
		if err != nil {
			return nil, nil, err
		}
		return cond, append(yes, no...), nil

	case *syntax.Other:
		n, err := b.node(chart.KindOperation, e.Text, tails)
		return n, []slot{{node: n}}, err
	}

	return nil, nil, fmt.Errorf("unsupported expression %T", x)
}

func (b *Builder) ifStmt(s *syntax.If, tails []slot) (*chart.Node, []slot, error) {
	text := s.Cond
	text.Source = "if " + s.Cond.Source
	cond, err := b.node(chart.KindCondition, text, tails)
	if err != nil {
		return nil, nil, err
	}

	bodyHead, yes, err := b.block(s.Body, []slot{{node: cond, branch: chart.BranchYes}})
	if err != nil {
		return nil, nil, err
	}

	no := []slot{{node: cond, branch: chart.BranchNo}}
	if len(s.Else) > 0 {
		if _, no, err = b.block(s.Else, no); err != nil {
			return nil, nil, err
		}
	}

	if len(s.Else) == 0 && !s.Chained && len(s.Body) == 1 && plain(bodyHead, yes) {
		b.record(candidate{cond: cond, body: bodyHead, guard: s.Cond.Source})
	}

	return cond, append(yes, no...), nil
}

func (b *Builder) loop(text syntax.Text, guard string, body, els []syntax.Stmt, tails []slot) (*chart.Node, []slot, error) {
	cond, err := b.node(chart.KindCondition, text, tails)
	if err != nil {
		return nil, nil, err
	}

	ctx := &loopContext{cond: cond}
	b.loops = append(b.loops, ctx)
	bodyHead, back, err := b.block(body, []slot{{node: cond, branch: chart.BranchYes}})
	b.loops = b.loops[:len(b.loops)-1]
	if err != nil {
		return nil, nil, err
	}

	if err := b.attach(back, cond, chart.DirLeft); err != nil {
		return nil, nil, err
	}

	out := []slot{{node: cond, branch: chart.BranchNo}}
	if len(els) > 0 {
		if _, out, err = b.block(els, out); err != nil {
			return nil, nil, err
		}
	}

	if len(els) == 0 && len(body) == 1 && plain(bodyHead, back) {
		b.record(candidate{cond: cond, body: bodyHead, guard: guard, loop: true})
	}

	return cond, append(out, ctx.exits...), nil
}

// tryStmt draws a try with handlers as a condition: yes runs the body and its
// else block, no tests the handlers in order. An exception no handler matches
// leaves the scope. A finally block follows every path that falls through.
func (b *Builder) tryStmt(s *syntax.Try, tails []slot) (*chart.Node, []slot, error) {
	var (
		head *chart.Node
		out  []slot
		err  error
	)

	if len(s.Handlers) == 0 {
		if head, err = b.node(chart.KindOperation, syntax.Text{Source: "try"}, tails); err != nil {
			return nil, nil, err
		}
		if _, out, err = b.block(s.Body, []slot{{node: head}}); err != nil {
			return nil, nil, err
		}
	} else {
		if head, err = b.node(chart.KindCondition, syntax.Text{Source: "try"}, tails); err != nil {
			return nil, nil, err
		}
		if _, out, err = b.block(s.Body, []slot{{node: head, branch: chart.BranchYes}}); err != nil {
			return nil, nil, err
		}
		if len(s.Else) > 0 && len(out) > 0 {
			if _, out, err = b.block(s.Else, out); err != nil {
				return nil, nil, err
			}
		}

		handled, unmatched, err := b.clauses(s.Handlers, []slot{{node: head, branch: chart.BranchNo}})
		if err != nil {
			return nil, nil, err
		}
		if err := b.attach(unmatched, b.scopeEnd(), chart.DirDefault); err != nil {
			return nil, nil, err
		}
		out = append(out, handled...)
	}

	if len(s.Finally) > 0 && len(out) > 0 {
		fin, err := b.node(chart.KindOperation, syntax.Text{Source: "finally"}, out)
		if err != nil {
			return nil, nil, err
		}
		if _, out, err = b.block(s.Finally, []slot{{node: fin}}); err != nil {
			return nil, nil, err
		}
	}

	return head, out, nil
}

// matchStmt draws the subject as an operation followed by one condition per
// case. Falling past the last case joins the statement's exit.
func (b *Builder) matchStmt(s *syntax.Match, tails []slot) (*chart.Node, []slot, error) {
	text := s.Subject
	text.Source = "match " + s.Subject.Source
	head, err := b.node(chart.KindOperation, text, tails)
	if err != nil {
		return nil, nil, err
	}

	matched, unmatched, err := b.clauses(s.Cases, []slot{{node: head}})
	if err != nil {
		return nil, nil, err
	}
	return head, append(matched, unmatched...), nil
}

// clauses chains one condition per clause header. Each yes branch runs the
// clause body and each no branch tests the next clause.
func (b *Builder) clauses(cs []syntax.Clause, tails []slot) ([]slot, []slot, error) {
	var matched []slot
	for _, c := range cs {
		cond, err := b.node(chart.KindCondition, c.Header, tails)
		if err != nil {
			return nil, nil, err
		}
		_, out, err := b.block(c.Body, []slot{{node: cond, branch: chart.BranchYes}})
		if err != nil {
			return nil, nil, err
		}
		matched = append(matched, out...)
		tails = []slot{{node: cond, branch: chart.BranchNo}}
	}
	return matched, tails, nil
}

func (b *Builder) record(c candidate) {
	if !b.opts.Simplify {
		return
	}
	b.candidates = append(b.candidates, c)
	b.candidate[c.cond] = true
}

func (b *Builder) innermost(keyword string, line int) (*loopContext, error) {
	if len(b.loops) == 0 {
		return nil, &syntax.ScopeError{Keyword: keyword, Line: line}
	}
	return b.loops[len(b.loops)-1], nil
}

// plain reports whether a body produced exactly one fall-through node that
// is not itself a branch and whose label is exact.
func plain(head *chart.Node, tails []slot) bool {
	if head == nil || head.Approximate || len(tails) != 1 || tails[0].node != head {
		return false
	}
	switch head.Kind {
	case chart.KindOperation, chart.KindSubroutine, chart.KindInputOutput:
		return true
	}
	return false
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, name := range names {
		set[name] = true
	}
	return set
}
