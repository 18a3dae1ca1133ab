// Package flowchart translates Python source into flowchart.js diagrams.
//
// A translation parses the source, selects the module or the definition named
// by a dotted field path, builds the control-flow graph, optionally collapses
// one-line branches and loops, and renders the result:
//
//	out, err := flowchart.Translate(ctx, src, flowchart.DefaultOptions())
package flowchart

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/QTest-hq/pyflowchart/internal/builder"
	"github.com/QTest-hq/pyflowchart/internal/parser"
	"github.com/QTest-hq/pyflowchart/internal/syntax"
	"github.com/QTest-hq/pyflowchart/pkg/chart"
)

// Format selects the output language.
type Format string

const (
	FormatFlowchart Format = "flowchart"
	FormatMermaid   Format = "mermaid"
)

// ParseFormat validates a format name. The empty string means flowchart.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatFlowchart:
		return FormatFlowchart, nil
	case FormatMermaid:
		return FormatMermaid, nil
	}
	return "", fmt.Errorf("unknown format %q (want flowchart or mermaid)", s)
}

// Errors reported by Translate and Build.
type (
	SelectionError = syntax.SelectionError
	ScopeError     = syntax.ScopeError
)

// ErrSyntax wraps front-end parse failures.
var ErrSyntax = parser.ErrSyntax

// Options configure a translation.
type Options struct {
	// Field is a dotted path such as "Class.method". Empty selects the module.
	Field string
	// Inner expands the selected definition's body instead of drawing it as
	// one node. Ignored when Field is empty.
	Inner bool
	// Simplify collapses one-line ifs and loops into a single operation.
	Simplify bool
	// AlignConditions marks consecutive if conditions with align-next=no.
	AlignConditions bool
	// InputCalls and OutputCalls name the call targets drawn as input/output.
	// Nil selects the defaults.
	InputCalls  []string
	OutputCalls []string
	Format      Format
}

// DefaultOptions returns the options the command line starts from.
func DefaultOptions() Options {
	return Options{
		Inner:    true,
		Simplify: true,
		Format:   FormatFlowchart,
	}
}

// Build parses source and returns the flowchart graph.
func Build(ctx context.Context, source []byte, opts Options) (*chart.Graph, error) {
	module, err := parser.NewParser().ParseContent(ctx, source)
	if err != nil {
		return nil, err
	}

	def, err := syntax.Resolve(module, opts.Field)
	if err != nil {
		return nil, err
	}

	bopts := builder.Options{
		Simplify:        opts.Simplify,
		AlignConditions: opts.AlignConditions,
		InputCalls:      opts.InputCalls,
		OutputCalls:     opts.OutputCalls,
	}

	if def == nil {
		return builder.BuildModule(module, bopts)
	}

	log.Debug().
		Str("field", opts.Field).
		Bool("inner", opts.Inner).
		Msg("translating selected definition")

	return builder.BuildDef(def, opts.Inner, bopts)
}

// Translate parses source and renders it in opts.Format. It never returns
// partial output: on error the string is empty.
func Translate(ctx context.Context, source []byte, opts Options) (string, error) {
	g, err := Build(ctx, source, opts)
	if err != nil {
		return "", err
	}
	return Render(g, opts.Format)
}

// Render renders a built graph in the given format.
func Render(g *chart.Graph, format Format) (string, error) {
	switch format {
	case "", FormatFlowchart:
		return chart.Render(g), nil
	case FormatMermaid:
		return chart.RenderMermaid(g), nil
	}
	return "", fmt.Errorf("unknown format %q", format)
}

// Approximate reports whether any node label came from the raw-source fallback.
func Approximate(g *chart.Graph) bool {
	for _, n := range g.Nodes() {
		if n.Approximate {
			return true
		}
	}
	return false
}
