// Package source loads Python files from disk or from a git revision and
// normalizes them to UTF-8.
package source

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/rs/zerolog/log"
)

// Load reads path from the working tree, or as of rev when rev is not empty.
func Load(path, rev string) ([]byte, error) {
	var (
		raw []byte
		err error
	)
	if rev == "" {
		raw, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read file: %w", err)
		}
	} else {
		raw, err = ReadRevision(path, rev)
		if err != nil {
			return nil, err
		}
	}

	return Decode(raw)
}

// ReadRevision returns the content of path at a git revision (commit hash,
// branch, tag or expressions such as HEAD~1). The repository is found by
// walking up from the file's directory.
func ReadRevision(path, rev string) ([]byte, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}

	repo, err := git.PlainOpenWithOptions(filepath.Dir(abs), &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open repo: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to get worktree: %w", err)
	}

	root, err := filepath.EvalSymlinks(worktree.Filesystem.Root())
	if err != nil {
		return nil, fmt.Errorf("failed to resolve repo root: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(filepath.Dir(abs)); err == nil {
		abs = filepath.Join(resolved, filepath.Base(abs))
	}

	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return nil, fmt.Errorf("file is outside the repository: %w", err)
	}

	hash, err := repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve revision %q: %w", rev, err)
	}

	commit, err := repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("failed to get commit: %w", err)
	}

	file, err := commit.File(filepath.ToSlash(rel))
	if err != nil {
		return nil, fmt.Errorf("failed to find %s at %s: %w", rel, rev, err)
	}

	content, err := file.Contents()
	if err != nil {
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}

	log.Debug().
		Str("file", rel).
		Str("commit", hash.String()[:8]).
		Msg("loaded file from revision")

	return []byte(content), nil
}
