package builder

import (
	"github.com/rs/zerolog/log"

	"github.com/QTest-hq/pyflowchart/pkg/chart"
)

// simplify merges each candidate condition with its one-node body into a
// single operation: "<action> if <guard>" or "<action> while <guard>". The
// merged node takes the condition's id and incoming edges. It leaves along
// the body's edge for an if and along the loop exit for a loop.
func simplify(g *chart.Graph, candidates []candidate) error {
	for _, c := range candidates {
		keyword := " if "
		out := c.body.Next()
		if c.loop {
			keyword = " while "
			out = c.cond.Branch(chart.BranchNo)
		}

		merged := g.NewNode(chart.KindOperation, c.body.Label+keyword+c.guard)
		merged.Approximate = c.cond.Approximate || c.body.Approximate

		if out != nil && out.To != nil {
			if err := merged.Connect(out.To, out.Dir); err != nil {
				return err
			}
		}

		g.Replace(c.cond, merged)
		g.Remove(c.body)

		log.Debug().
			Str("label", merged.Label).
			Int("id", merged.ID).
			Msg("simplified condition")
	}
	return nil
}
