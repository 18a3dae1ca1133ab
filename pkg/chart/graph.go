package chart

// Graph holds every node created during one translation run. Node ids come
// from a counter owned by the graph, so two graphs never share state.
type Graph struct {
	Head *Node

	nodes  []*Node
	nextID int
}

// NewGraph creates an empty graph
func NewGraph() *Graph {
	return &Graph{}
}

// NewNode creates a node with the next id.
func (g *Graph) NewNode(kind Kind, label string) *Node {
	n := &Node{
		ID:    g.nextID,
		Kind:  kind,
		Label: newLabel(label),
	}
	g.nextID++
	g.nodes = append(g.nodes, n)
	return n
}

// NewInputOutput creates an input or output node labelled "input: ..." or
// "output: ...".
func (g *Graph) NewInputOutput(io IODirection, content string) *Node {
	n := g.NewNode(KindInputOutput, string(io)+": "+content)
	n.IO = io
	return n
}

// Nodes returns the nodes in ascending id order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Replace puts repl in old's place: repl takes old's id and declaration
// position, every edge that targeted old now targets repl, and old leaves the
// graph. Outgoing edges of old are not copied.
func (g *Graph) Replace(old, repl *Node) {
	g.drop(repl)

	for i, n := range g.nodes {
		if n == old {
			g.nodes[i] = repl
			break
		}
	}
	repl.ID = old.ID

	g.retarget(old, repl)
	if g.Head == old {
		g.Head = repl
	}
}

// Remove deletes a node. Edges still pointing at it are left to the caller.
func (g *Graph) Remove(n *Node) {
	g.drop(n)
	if g.Head == n {
		g.Head = nil
	}
}

func (g *Graph) drop(n *Node) {
	for i, m := range g.nodes {
		if m == n {
			g.nodes = append(g.nodes[:i], g.nodes[i+1:]...)
			return
		}
	}
}

func (g *Graph) retarget(from, to *Node) {
	for _, n := range g.nodes {
		for _, e := range []*Edge{n.next, n.yes, n.no} {
			if e != nil && e.To == from {
				e.To = to
			}
		}
	}
}

// Ends returns the end nodes reachable from the head.
func (g *Graph) Ends() []*Node {
	var ends []*Node
	for _, n := range g.Reachable() {
		if n.Kind == KindEnd {
			ends = append(ends, n)
		}
	}
	return ends
}

// Reachable returns the nodes reachable from the head in ascending id order.
func (g *Graph) Reachable() []*Node {
	if g.Head == nil {
		return nil
	}

	seen := map[*Node]bool{g.Head: true}
	stack := []*Node{g.Head}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, e := range n.Edges() {
			if !seen[e.To] {
				seen[e.To] = true
				stack = append(stack, e.To)
			}
		}
	}

	var out []*Node
	for _, n := range g.nodes {
		if seen[n] {
			out = append(out, n)
		}
	}
	return out
}
