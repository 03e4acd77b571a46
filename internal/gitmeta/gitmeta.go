// Package gitmeta derives page metadata from git history, currently the
// last-modified timestamp of a content file.
package gitmeta

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"git.home.luguber.info/inful/sitegen/internal/logfields"
)

// Lastmod answers "when was this file last committed?" for content under a
// git work tree. Lookups are served from an index built once per instance;
// uncommitted files simply have no answer and fall back to frontmatter or
// nothing.
type Lastmod struct {
	logger *slog.Logger
	root   string

	// commit times keyed by path relative to the repository root, slash
	// separated.
	times map[string]commitTime
}

type commitTime struct {
	unix int64
}

// Open locates the repository containing dir and indexes the commit history
// once. The index walks from HEAD and records, per file, the first (most
// recent) commit that touched it.
func Open(dir string, logger *slog.Logger) (*Lastmod, error) {
	if logger == nil {
		logger = slog.Default()
	}

	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open repository for %s: %w", dir, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("repository has no work tree: %w", err)
	}

	lm := &Lastmod{
		logger: logger,
		root:   wt.Filesystem.Root(),
		times:  map[string]commitTime{},
	}
	if err := lm.index(repo); err != nil {
		return nil, err
	}
	logger.Debug("Git history indexed",
		logfields.Path(lm.root),
		logfields.Count(len(lm.times)))
	return lm, nil
}

func (lm *Lastmod) index(repo *git.Repository) error {
	head, err := repo.Head()
	if err != nil {
		// Repository without commits: every lookup misses.
		return nil //nolint:nilerr
	}

	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return fmt.Errorf("walk history: %w", err)
	}
	defer iter.Close()

	var prev *object.Commit
	err = iter.ForEach(func(c *object.Commit) error {
		if prev != nil {
			lm.recordDiff(prev, c)
		}
		prev = c
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk history: %w", err)
	}
	if prev != nil {
		// Root commit: everything in its tree was introduced by it.
		lm.recordInitial(prev)
	}
	return nil
}

// recordDiff attributes files changed between commit and its parent to the
// newer commit. History walks newest first, so the first attribution wins.
func (lm *Lastmod) recordDiff(newer, older *object.Commit) {
	newTree, err := newer.Tree()
	if err != nil {
		return
	}
	oldTree, err := older.Tree()
	if err != nil {
		return
	}
	changes, err := oldTree.Diff(newTree)
	if err != nil {
		return
	}
	when := newer.Committer.When.Unix()
	for _, ch := range changes {
		name := ch.To.Name
		if name == "" {
			continue // deletion
		}
		if _, seen := lm.times[name]; !seen {
			lm.times[name] = commitTime{unix: when}
		}
	}
}

func (lm *Lastmod) recordInitial(root *object.Commit) {
	tree, err := root.Tree()
	if err != nil {
		return
	}
	when := root.Committer.When.Unix()
	_ = tree.Files().ForEach(func(f *object.File) error {
		if _, seen := lm.times[f.Name]; !seen {
			lm.times[f.Name] = commitTime{unix: when}
		}
		return nil
	})
}

// Time returns the last commit time of path (absolute or repo-relative) and
// whether the file has any committed history. The signature matches what
// content discovery expects for lastmod enrichment.
func (lm *Lastmod) Time(path string) (time.Time, bool) {
	rel := path
	if filepath.IsAbs(path) {
		r, err := filepath.Rel(lm.root, path)
		if err != nil || strings.HasPrefix(r, "..") {
			return time.Time{}, false
		}
		rel = r
	}
	ct, ok := lm.times[filepath.ToSlash(rel)]
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(ct.unix, 0).UTC(), true
}
