// Package testutil provides helpers shared by package tests
package testutil

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"
)

// Decl is one parsed node declaration line
type Decl struct {
	Name   string
	Index  int
	Params string
	Kind   string
	Label  string
}

// EdgeLine is one parsed edge line. Branch is "yes"/"no" for conditions.
type EdgeLine struct {
	From   string
	Branch string
	Dir    string
	To     string
}

// Chart is a rendered flowchart.js document split into its two blocks
type Chart struct {
	Decls []Decl
	Edges []EdgeLine
}

var (
	declPattern = regexp.MustCompile(`^([a-z]+)(\d+)(?:\(([^)]*)\))?=>([a-z]+): (.*)$`)
	edgePattern = regexp.MustCompile(`^([a-z]+\d+)(?:\(([^)]*)\))?->(.*)$`)
)

// ParseChart parses rendered DSL and fails the test on any malformed line
func ParseChart(t *testing.T, dsl string) *Chart {
	t.Helper()

	blocks := strings.SplitN(dsl, "\n\n", 2)
	require.Len(t, blocks, 2, "output must contain a blank line between declarations and edges")

	c := &Chart{}
	for _, line := range strings.Split(strings.TrimSuffix(blocks[0], "\n"), "\n") {
		if line == "" {
			continue
		}
		m := declPattern.FindStringSubmatch(line)
		require.NotNil(t, m, "malformed declaration %q", line)
		index, err := strconv.Atoi(m[2])
		require.NoError(t, err)
		c.Decls = append(c.Decls, Decl{Name: m[1] + m[2], Index: index, Params: m[3], Kind: m[4], Label: m[5]})
	}

	for _, line := range strings.Split(strings.TrimSuffix(blocks[1], "\n"), "\n") {
		if line == "" {
			continue
		}
		m := edgePattern.FindStringSubmatch(line)
		require.NotNil(t, m, "malformed edge %q", line)

		e := EdgeLine{From: m[1], To: m[3]}
		for _, tok := range strings.Split(m[2], ",") {
			switch tok {
			case "":
			case "yes", "no":
				e.Branch = tok
			default:
				e.Dir = tok
			}
		}
		c.Edges = append(c.Edges, e)
	}

	return c
}

// Count returns the number of declarations of a kind
func (c *Chart) Count(kind string) int {
	n := 0
	for _, d := range c.Decls {
		if d.Kind == kind {
			n++
		}
	}
	return n
}

// Find returns the first declaration with the given kind and label
func (c *Chart) Find(kind, label string) (Decl, bool) {
	for _, d := range c.Decls {
		if d.Kind == kind && d.Label == label {
			return d, true
		}
	}
	return Decl{}, false
}

// EdgesFrom returns the edge lines leaving a node, in output order
func (c *Chart) EdgesFrom(name string) []EdgeLine {
	var out []EdgeLine
	for _, e := range c.Edges {
		if e.From == name {
			out = append(out, e)
		}
	}
	return out
}

// Target returns the target of the edge leaving name on branch ("" for plain edges)
func (c *Chart) Target(name, branch string) string {
	for _, e := range c.EdgesFrom(name) {
		if e.Branch == branch {
			return e.To
		}
	}
	return ""
}

// WriteFile writes content under dir, creating parent directories
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// InitRepo creates a git repository in a temp dir and commits each snapshot
// in order. It returns the repository dir and the commit hashes.
func InitRepo(t *testing.T, snapshots ...map[string]string) (string, []string) {
	t.Helper()

	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	wt, err := repo.Worktree()
	require.NoError(t, err)

	var hashes []string
	for i, files := range snapshots {
		for name, content := range files {
			WriteFile(t, dir, name, content)
			_, err := wt.Add(name)
			require.NoError(t, err)
		}

		hash, err := wt.Commit("snapshot", &git.CommitOptions{
			Author: &object.Signature{
				Name:  "test",
				Email: "test@example.com",
				When:  time.Unix(int64(1700000000+i), 0),
			},
		})
		require.NoError(t, err)
		hashes = append(hashes, hash.String())
	}

	return dir, hashes
}
