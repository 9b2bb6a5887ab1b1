// Package vcs implements the automation stage: handing produced
// artifacts to version-control automation as a branch plus commit.
package vcs

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/flowd/internal/executor"
)

// CommitInfo is what the automation backend returns on success.
type CommitInfo struct {
	Branch         string   `json:"branch"`
	CommitHash     string   `json:"commit_hash"`
	FilesCommitted []string `json:"files_committed"`
}

// Automation creates a branch and commit for produced artifacts. Any
// returned error is a normal stage failure.
type Automation interface {
	Commit(ctx context.Context, branch string, files []string) (*CommitInfo, error)
}

// BranchName derives the deterministic branch name for a task type.
func BranchName(taskType string, now time.Time) string {
	return fmt.Sprintf("flow/%s-%d", executor.Slug(taskType), now.Unix())
}

// GitAutomation commits artifacts into a local repository with go-git.
type GitAutomation struct {
	repoPath string
	author   object.Signature
	logger   *zap.Logger
}

// NewGitAutomation creates an automation backend over the repository
// at repoPath. The path must already be an initialized repository.
func NewGitAutomation(repoPath string, logger *zap.Logger) (*GitAutomation, error) {
	if repoPath == "" {
		return nil, fmt.Errorf("repository path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &GitAutomation{
		repoPath: repoPath,
		author: object.Signature{
			Name:  "flowd automation",
			Email: "flowd@fyrsmithlabs.dev",
		},
		logger: logger,
	}, nil
}

// Commit creates the branch (at current HEAD), stages the given files,
// and commits them. File paths may be absolute as long as they are
// inside the repository.
func (g *GitAutomation) Commit(ctx context.Context, branch string, files []string) (*CommitInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no files to commit")
	}

	repo, err := git.PlainOpen(g.repoPath)
	if err != nil {
		return nil, fmt.Errorf("opening repository %s: %w", g.repoPath, err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("opening worktree: %w", err)
	}

	if err := wt.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(branch),
		Create: true,
		Keep:   true,
	}); err != nil {
		return nil, fmt.Errorf("creating branch %s: %w", branch, err)
	}

	staged := make([]string, 0, len(files))
	for _, file := range files {
		rel, err := g.relPath(file)
		if err != nil {
			return nil, err
		}
		if _, err := wt.Add(rel); err != nil {
			return nil, fmt.Errorf("staging %s: %w", rel, err)
		}
		staged = append(staged, rel)
	}

	author := g.author
	author.When = time.Now()
	hash, err := wt.Commit(fmt.Sprintf("automation: commit %d artifact(s) on %s", len(staged), branch), &git.CommitOptions{
		Author: &author,
	})
	if err != nil {
		return nil, fmt.Errorf("committing: %w", err)
	}

	g.logger.Info("artifacts committed",
		zap.String("branch", branch),
		zap.String("commit", hash.String()),
		zap.Int("files", len(staged)),
	)

	return &CommitInfo{
		Branch:         branch,
		CommitHash:     hash.String(),
		FilesCommitted: staged,
	}, nil
}

// relPath resolves a possibly absolute artifact path to a
// repo-relative one and rejects paths outside the repository.
func (g *GitAutomation) relPath(file string) (string, error) {
	if !filepath.IsAbs(file) {
		return filepath.ToSlash(file), nil
	}

	rel, err := filepath.Rel(g.repoPath, file)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("artifact %s is outside repository %s", file, g.repoPath)
	}
	return filepath.ToSlash(rel), nil
}
