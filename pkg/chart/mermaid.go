package chart

import (
	"fmt"
	"strings"
)

// RenderMermaid renders the graph as a Mermaid flowchart. Node names match
// the ones Render uses; direction hints have no Mermaid equivalent and are
// dropped.
func RenderMermaid(g *Graph) string {
	names := Names(g)

	var b strings.Builder
	b.WriteString("flowchart TD\n")

	for _, n := range g.nodes {
		b.WriteString(fmt.Sprintf("    %s\n", mermaidNodeDef(names[n], n)))
	}

	for _, n := range g.nodes {
		if n.Kind == KindCondition {
			for _, br := range []Branch{BranchYes, BranchNo} {
				if e := n.Branch(br); e != nil && e.To != nil {
					b.WriteString(fmt.Sprintf("    %s -->|%s| %s\n", names[n], br, names[e.To]))
				}
			}
			continue
		}
		if e := n.Next(); e != nil && e.To != nil {
			b.WriteString(fmt.Sprintf("    %s --> %s\n", names[n], names[e.To]))
		}
	}

	return b.String()
}

// mermaidNodeDef returns a Mermaid node definition with the appropriate shape.
func mermaidNodeDef(id string, n *Node) string {
	label := mermaidEscapeLabel(n.Label)

	switch n.Kind {
	case KindStart, KindEnd:
		return fmt.Sprintf("%s([\"%s\"])", id, label)
	case KindCondition:
		return fmt.Sprintf("%s{\"%s\"}", id, label)
	case KindInputOutput:
		return fmt.Sprintf("%s[/\"%s\"/]", id, label)
	case KindSubroutine:
		return fmt.Sprintf("%s[[\"%s\"]]", id, label)
	default:
		return fmt.Sprintf("%s[\"%s\"]", id, label)
	}
}

// mermaidEscapeLabel escapes characters that end a quoted Mermaid label.
func mermaidEscapeLabel(s string) string {
	return strings.ReplaceAll(s, `"`, "#quot;")
}
