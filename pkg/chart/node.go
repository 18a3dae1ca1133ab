// Package chart is the flowchart vocabulary: typed nodes, labeled edges and
// the graph that owns them, plus renderers for the flowchart.js DSL, a
// standalone HTML page and Mermaid.
package chart

import (
	"errors"
	"strings"
)

// Kind is a flowchart node kind. The string value is the flowchart.js keyword.
type Kind string

const (
	KindStart       Kind = "start"
	KindEnd         Kind = "end"
	KindOperation   Kind = "operation"
	KindCondition   Kind = "condition"
	KindInputOutput Kind = "inputoutput"
	KindSubroutine  Kind = "subroutine"
)

// prefix is the short name used for rendered node identifiers.
func (k Kind) prefix() string {
	switch k {
	case KindStart:
		return "st"
	case KindEnd:
		return "e"
	case KindCondition:
		return "cond"
	case KindInputOutput:
		return "io"
	case KindSubroutine:
		return "sub"
	default:
		return "op"
	}
}

// IODirection tells input nodes from output nodes.
type IODirection string

const (
	IONone   IODirection = ""
	IOInput  IODirection = "input"
	IOOutput IODirection = "output"
)

// Direction is a hint for the side an edge leaves its source node from.
type Direction string

const (
	DirDefault Direction = ""
	DirLeft    Direction = "left"
	DirRight   Direction = "right"
	DirTop     Direction = "top"
	DirBottom  Direction = "bottom"
)

// Branch labels the two outgoing edges of a condition node.
type Branch string

const (
	BranchYes Branch = "yes"
	BranchNo  Branch = "no"
)

// ErrBranchMismatch is returned when an edge label does not fit the node kind.
var ErrBranchMismatch = errors.New("edge label does not match node kind")

// Edge is a directed connection to another node.
type Edge struct {
	To  *Node
	Dir Direction
}

// Param is a node-level display hint.
type Param struct {
	Key   string
	Value string
}

// Node is one declared unit of the flowchart. Kind is fixed at creation.
type Node struct {
	ID          int
	Kind        Kind
	IO          IODirection
	Label       string
	Approximate bool // label came from the raw-source fallback

	params []Param
	next   *Edge
	yes    *Edge
	no     *Edge
}

// SetParam sets a display parameter. A key keeps the position of its first
// insertion; the last value written wins.
func (n *Node) SetParam(key, value string) {
	for i := range n.params {
		if n.params[i].Key == key {
			n.params[i].Value = value
			return
		}
	}
	n.params = append(n.params, Param{Key: key, Value: value})
}

// Param returns the value of a display parameter.
func (n *Node) Param(key string) (string, bool) {
	for _, p := range n.params {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// Params returns the display parameters in insertion order.
func (n *Node) Params() []Param {
	out := make([]Param, len(n.params))
	copy(out, n.params)
	return out
}

// Connect sets the single outgoing edge of a non-condition node, replacing
// any previous one.
func (n *Node) Connect(to *Node, dir Direction) error {
	if n.Kind == KindCondition {
		return ErrBranchMismatch
	}
	n.next = &Edge{To: to, Dir: dir}
	return nil
}

// ConnectBranch sets the yes or no edge of a condition node.
func (n *Node) ConnectBranch(b Branch, to *Node, dir Direction) error {
	if n.Kind != KindCondition {
		return ErrBranchMismatch
	}
	switch b {
	case BranchYes:
		n.yes = &Edge{To: to, Dir: dir}
	case BranchNo:
		n.no = &Edge{To: to, Dir: dir}
	default:
		return ErrBranchMismatch
	}
	return nil
}

// Next returns the outgoing edge of a non-condition node, or nil.
func (n *Node) Next() *Edge {
	return n.next
}

// Branch returns the yes or no edge of a condition node, or nil when unset.
func (n *Node) Branch(b Branch) *Edge {
	switch b {
	case BranchYes:
		return n.yes
	case BranchNo:
		return n.no
	}
	return nil
}

// Edges returns every outgoing edge that has a target.
func (n *Node) Edges() []*Edge {
	var edges []*Edge
	for _, e := range []*Edge{n.next, n.yes, n.no} {
		if e != nil && e.To != nil {
			edges = append(edges, e)
		}
	}
	return edges
}

func newLabel(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "\r", ""), "\n", " ")
}
