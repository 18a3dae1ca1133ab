package chart

import (
	"strconv"
	"strings"
)

// Names assigns each node its rendered identifier: the kind prefix followed
// by the node's position in declaration order ("st0", "io1", "cond2", ...).
func Names(g *Graph) map[*Node]string {
	names := make(map[*Node]string, g.Len())
	for i, n := range g.nodes {
		names[n] = n.Kind.prefix() + strconv.Itoa(i)
	}
	return names
}

// Render serializes the graph into the flowchart.js DSL: one declaration per
// node in id order, a blank line, then the edges grouped by source node in the
// same order. Condition nodes always emit a yes and a no line.
func Render(g *Graph) string {
	names := Names(g)

	var b strings.Builder
	for _, n := range g.nodes {
		b.WriteString(names[n])
		if len(n.params) > 0 {
			b.WriteByte('(')
			for i, p := range n.params {
				if i > 0 {
					b.WriteByte(',')
				}
				b.WriteString(p.Key)
				b.WriteByte('=')
				b.WriteString(p.Value)
			}
			b.WriteByte(')')
		}
		b.WriteString("=>")
		b.WriteString(string(n.Kind))
		b.WriteString(": ")
		b.WriteString(n.Label)
		b.WriteByte('\n')
	}

	b.WriteByte('\n')

	for _, n := range g.nodes {
		if n.Kind == KindCondition {
			writeEdge(&b, names, names[n], string(BranchYes), n.yes)
			writeEdge(&b, names, names[n], string(BranchNo), n.no)
			continue
		}
		if n.next != nil && n.next.To != nil {
			writeEdge(&b, names, names[n], "", n.next)
		}
	}

	return b.String()
}

func writeEdge(b *strings.Builder, names map[*Node]string, from, label string, e *Edge) {
	var tokens []string
	if label != "" {
		tokens = append(tokens, label)
	}
	if e != nil && e.Dir != DirDefault {
		tokens = append(tokens, string(e.Dir))
	}

	b.WriteString(from)
	if len(tokens) > 0 {
		b.WriteByte('(')
		b.WriteString(strings.Join(tokens, ","))
		b.WriteByte(')')
	}
	b.WriteString("->")
	if e != nil && e.To != nil {
		b.WriteString(names[e.To])
	}
	b.WriteByte('\n')
}
