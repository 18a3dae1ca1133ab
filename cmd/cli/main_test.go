package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/QTest-hq/pyflowchart/internal/config"
	"github.com/QTest-hq/pyflowchart/internal/testutil"
	"github.com/QTest-hq/pyflowchart/pkg/flowchart"
)

const sample = `def foo(a, b):
    if a:
        b = 1
    return a + b
`

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_Module(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "main.py", "x = 1\n")

	code, out, _ := runCLI(t, path)
	require.Equal(t, exitOK, code)

	c := testutil.ParseChart(t, out)
	_, ok := c.Find("start", "start")
	assert.True(t, ok)
	_, ok = c.Find("operation", "x = 1")
	assert.True(t, ok)
	assert.Equal(t, 1, c.Count("end"))
}

func TestRun_FieldWithoutInner(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "main.py", sample)

	code, out, _ := runCLI(t, "-f", "foo", path)
	require.Equal(t, exitOK, code)
	assert.Equal(t, "sub0=>subroutine: foo(a, b)\n\n", out)
}

func TestRun_FieldInner(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "main.py", sample)

	code, out, _ := runCLI(t, "-f", "foo", "-i", path)
	require.Equal(t, exitOK, code)

	c := testutil.ParseChart(t, out)
	_, ok := c.Find("start", "start foo")
	assert.True(t, ok)
	_, ok = c.Find("operation", "b = 1 if a")
	assert.True(t, ok, "one-line if should be simplified by default")

	code, out, _ = runCLI(t, "-f", "foo", "-i", "--no-simplify", path)
	require.Equal(t, exitOK, code)

	c = testutil.ParseChart(t, out)
	_, ok = c.Find("condition", "if a")
	assert.True(t, ok)
	_, ok = c.Find("operation", "b = 1")
	assert.True(t, ok)
}

func TestRun_Format(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "main.py", sample)

	code, out, _ := runCLI(t, "--format", "mermaid", "-f", "foo", "-i", path)
	require.Equal(t, exitOK, code)
	assert.True(t, strings.HasPrefix(out, "flowchart TD\n"))

	code, _, errOut := runCLI(t, "--format", "dot", path)
	assert.Equal(t, exitGeneric, code)
	assert.Contains(t, errOut, "unknown format")
}

func TestRun_ProjectConfig(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "main.py", sample)
	testutil.WriteFile(t, dir, ".pyflowchart.yaml", "format: mermaid\nsimplify: false\n")

	code, out, _ := runCLI(t, "-f", "foo", "-i", path)
	require.Equal(t, exitOK, code)
	assert.True(t, strings.HasPrefix(out, "flowchart TD\n"))
	assert.Contains(t, out, `{"if a"}`)

	// explicit flags win over the file
	code, out, _ = runCLI(t, "--format", "flowchart", "-f", "foo", "-i", path)
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "=>condition: if a")

	other := testutil.WriteFile(t, t.TempDir(), "other.yaml", "format: flowchart\n")
	code, out, _ = runCLI(t, "--config", other, path)
	require.Equal(t, exitOK, code)
	assert.True(t, strings.HasPrefix(out, "st0=>start: start\n"))
}

func TestRun_OutputFile(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "main.py", sample)

	_, stdoutDSL, _ := runCLI(t, "-f", "foo", "-i", path)

	txt := filepath.Join(dir, "out.txt")
	code, out, _ := runCLI(t, "-f", "foo", "-i", "-o", txt, path)
	require.Equal(t, exitOK, code)
	assert.Empty(t, out)

	data, err := os.ReadFile(txt)
	require.NoError(t, err)
	assert.Equal(t, stdoutDSL, string(data))

	page := filepath.Join(dir, "out.HTML")
	code, _, _ = runCLI(t, "-f", "foo", "-i", "-o", page, path)
	require.Equal(t, exitOK, code)

	data, err = os.ReadFile(page)
	require.NoError(t, err)
	assert.Contains(t, string(data), "flowchart.parse")
	assert.Contains(t, string(data), "<title>foo</title>")
	assert.Contains(t, string(data), "condition: if a")
}

func TestRun_Revision(t *testing.T) {
	dir, _ := testutil.InitRepo(t,
		map[string]string{"app.py": "x = 1\n"},
		map[string]string{"app.py": "y = 2\n"},
	)
	path := filepath.Join(dir, "app.py")

	code, out, _ := runCLI(t, "--rev", "HEAD~1", path)
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "operation: x = 1")

	code, out, _ = runCLI(t, path)
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "operation: y = 2")
}

func TestRun_ExitCodes(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name   string
		source string
		args   []string
		want   int
	}{
		{"selection", sample, []string{"-f", "bar"}, exitSelection},
		{"scope", "break\n", nil, exitScope},
		{"syntax", "def (:\n", nil, exitSyntax},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := testutil.WriteFile(t, dir, tt.name+".py", tt.source)

			code, out, errOut := runCLI(t, append(tt.args, path)...)
			assert.Equal(t, tt.want, code)
			assert.Empty(t, out, "no partial output on error")
			assert.NotEmpty(t, errOut)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		code, _, _ := runCLI(t, filepath.Join(dir, "nope.py"))
		assert.Equal(t, exitGeneric, code)
	})

	t.Run("no arguments", func(t *testing.T) {
		code, _, _ := runCLI(t)
		assert.Equal(t, exitGeneric, code)
	})
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"selection", &flowchart.SelectionError{Path: "a.b", Segment: "b"}, exitSelection},
		{"wrapped scope", fmt.Errorf("build: %w", &flowchart.ScopeError{Keyword: "break", Line: 1}), exitScope},
		{"syntax", fmt.Errorf("%w at line 3", flowchart.ErrSyntax), exitSyntax},
		{"other", errors.New("disk full"), exitGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestIsHTML(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"out.html", true},
		{"out.htm", true},
		{"dir/OUT.HTML", true},
		{"out.txt", false},
		{"html", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := isHTML(tt.path); got != tt.want {
				t.Errorf("isHTML(%s) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestRun_SampleFile(t *testing.T) {
	path := filepath.Join("..", "..", "testdata", "sample.py")

	fields := []string{"foo", "Bar.buzz", "Bar.buzz.g", "Bar.fetch", "read_numbers"}
	for _, field := range fields {
		t.Run(field, func(t *testing.T) {
			code, out, errOut := runCLI(t, "-f", field, "-i", path)
			require.Equal(t, exitOK, code, errOut)

			c := testutil.ParseChart(t, out)
			assert.Equal(t, 1, c.Count("start"))
			assert.GreaterOrEqual(t, c.Count("end"), 1)
			for _, d := range c.Decls {
				if d.Kind == "condition" {
					assert.NotEmpty(t, c.Target(d.Name, "yes"), "%s has no yes branch", d.Name)
					assert.NotEmpty(t, c.Target(d.Name, "no"), "%s has no no branch", d.Name)
				}
			}
		})
	}

	code, out, _ := runCLI(t, path)
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "operation: import sys")
}

func TestRun_Init(t *testing.T) {
	dir := t.TempDir()

	code, out, errOut := runCLI(t, "init", "--format", "mermaid", "--no-simplify", dir)
	require.Equal(t, exitOK, code, errOut)
	assert.Contains(t, out, ".pyflowchart.yaml")

	cfg, err := config.LoadProjectConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "mermaid", cfg.Format)
	require.NotNil(t, cfg.Simplify)
	assert.False(t, *cfg.Simplify)

	// an existing file is kept unless forced
	code, _, errOut = runCLI(t, "init", dir)
	assert.Equal(t, exitGeneric, code)
	assert.Contains(t, errOut, "already exists")

	code, _, _ = runCLI(t, "init", "--force", dir)
	require.Equal(t, exitOK, code)

	cfg, err = config.LoadProjectConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "flowchart", cfg.Format)
	assert.True(t, *cfg.Simplify)

	// the written file drives translation of sources next to it
	path := testutil.WriteFile(t, dir, "main.py", sample)
	code, out, _ = runCLI(t, "-f", "foo", "-i", path)
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "operation: b = 1 if a")
}

func TestOverrides(t *testing.T) {
	cmd := rootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--conds-align", "--format", "mermaid"}))

	layer, err := overrides(cmd, &flags{condsAlign: true, format: "mermaid"})
	require.NoError(t, err)
	assert.Nil(t, layer.Simplify, "unset flags leave the project value alone")
	require.NotNil(t, layer.CondsAlign)
	assert.True(t, *layer.CondsAlign)
	assert.Equal(t, "mermaid", layer.Format)
}
