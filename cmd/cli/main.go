package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/QTest-hq/pyflowchart/internal/config"
	"github.com/QTest-hq/pyflowchart/internal/parser"
	"github.com/QTest-hq/pyflowchart/internal/source"
	"github.com/QTest-hq/pyflowchart/pkg/chart"
	"github.com/QTest-hq/pyflowchart/pkg/flowchart"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var version = "dev"

// Exit codes
const (
	exitOK        = 0
	exitGeneric   = 1
	exitSelection = 2
	exitScope     = 3
	exitSyntax    = 4
)

func main() {
	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command line and returns the process exit code
func run(args []string, stdout, stderr io.Writer) int {
	cmd := rootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return exitCode(err)
	}
	return exitOK
}

func exitCode(err error) int {
	var (
		selErr   *flowchart.SelectionError
		scopeErr *flowchart.ScopeError
	)

	switch {
	case errors.As(err, &selErr):
		return exitSelection
	case errors.As(err, &scopeErr):
		return exitScope
	case errors.Is(err, flowchart.ErrSyntax):
		return exitSyntax
	}
	return exitGeneric
}

type flags struct {
	field      string
	inner      bool
	noSimplify bool
	condsAlign bool
	output     string
	format     string
	rev        string
	configPath string
	verbose    bool
}

func rootCmd() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "pyflowchart <code_file>",
		Short: "Translate Python source into a flowchart",
		Long: `pyflowchart reads a Python file and prints a flowchart.js description of
its control flow. Open the result with flowchart.js, or write an .html file
with -o to get a page that draws it.`,
		Version:       version,
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			setLogLevel(f.verbose)
			return translate(cmd, args[0], &f)
		},
	}

	cmd.Flags().StringVarP(&f.field, "field", "f", "", "Dotted path of the function or class to draw (e.g. Class.method)")
	cmd.Flags().BoolVarP(&f.inner, "inner", "i", false, "Draw the body of the selected field instead of a single node")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Output file; .html/.htm writes a standalone page")
	cmd.Flags().StringVar(&f.rev, "rev", "", "Read the file as of a git revision (e.g. HEAD~1)")
	cmd.Flags().StringVar(&f.configPath, "config", "", "Project config file (default: .pyflowchart.yaml next to the source)")

	// translation defaults, shared with init
	cmd.PersistentFlags().BoolVar(&f.noSimplify, "no-simplify", false, "Keep one-line ifs and loops as separate nodes")
	cmd.PersistentFlags().BoolVar(&f.condsAlign, "conds-align", false, "Align consecutive if conditions")
	cmd.PersistentFlags().StringVar(&f.format, "format", "", "Output format (flowchart, mermaid)")
	cmd.PersistentFlags().BoolVarP(&f.verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(initCmd(&f))

	return cmd
}

func initCmd(f *flags) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a " + config.ProjectConfigFile + " with the default translation settings",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			setLogLevel(f.verbose)

			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}

			path := filepath.Join(dir, config.ProjectConfigFile)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			layer, err := overrides(cmd, f)
			if err != nil {
				return err
			}
			cfg := config.DefaultProjectConfig()
			cfg.Merge(layer)

			if err := config.SaveProjectConfig(dir, cfg); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")

	return cmd
}

func setLogLevel(verbose bool) {
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

func translate(cmd *cobra.Command, path string, f *flags) error {
	opts, err := resolveOptions(cmd, path, f)
	if err != nil {
		return err
	}

	if !parser.IsPythonFile(path) {
		log.Warn().Str("file", path).Msg("file does not have a Python extension")
	}

	src, err := source.Load(path, f.rev)
	if err != nil {
		return err
	}

	log.Debug().
		Str("file", path).
		Str("rev", f.rev).
		Str("field", opts.Field).
		Msg("translating")

	g, err := flowchart.Build(context.Background(), src, opts)
	if err != nil {
		return err
	}

	if f.output == "" {
		out, err := flowchart.Render(g, opts.Format)
		if err != nil {
			return err
		}
		_, err = io.WriteString(cmd.OutOrStdout(), out)
		return err
	}

	var out string
	if isHTML(f.output) {
		title := opts.Field
		if title == "" {
			title = filepath.Base(path)
		}
		out, err = chart.RenderHTML(chart.Render(g), title)
	} else {
		out, err = flowchart.Render(g, opts.Format)
	}
	if err != nil {
		return err
	}

	if err := os.WriteFile(f.output, []byte(out), 0644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	log.Info().Str("output", f.output).Int("nodes", g.Len()).Msg("flowchart written")

	return nil
}

// resolveOptions layers explicit flags over the project config
func resolveOptions(cmd *cobra.Command, path string, f *flags) (flowchart.Options, error) {
	var (
		project *config.ProjectConfig
		err     error
	)
	if f.configPath != "" {
		project, err = config.LoadProjectConfigFile(f.configPath)
	} else {
		project, err = config.LoadProjectConfig(filepath.Dir(path))
	}
	if err != nil {
		return flowchart.Options{}, err
	}

	layer, err := overrides(cmd, f)
	if err != nil {
		return flowchart.Options{}, err
	}
	project.Merge(layer)

	opts := project.Options()
	opts.Field = f.field
	opts.Inner = f.inner

	return opts, nil
}

// overrides collects the translation flags set on the command line as a
// config layer
func overrides(cmd *cobra.Command, f *flags) (*config.ProjectConfig, error) {
	layer := &config.ProjectConfig{}
	changed := cmd.Flags().Changed

	if changed("no-simplify") {
		simplify := !f.noSimplify
		layer.Simplify = &simplify
	}
	if changed("conds-align") {
		align := f.condsAlign
		layer.CondsAlign = &align
	}
	if changed("format") {
		format, err := flowchart.ParseFormat(f.format)
		if err != nil {
			return nil, err
		}
		layer.Format = string(format)
	}

	return layer, nil
}

func isHTML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return true
	}
	return false
}
