package incident

import (
	"context"
	"fmt"

	"github.com/google/go-github/v57/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// GitHubReporter files an issue per failed flow. Intended for teams
// whose incident queue is an issue tracker.
type GitHubReporter struct {
	client *github.Client
	owner  string
	repo   string
	logger *zap.Logger
}

// NewGitHubReporter creates a reporter that opens issues in
// owner/repo using the given token.
func NewGitHubReporter(ctx context.Context, token, owner, repo string, logger *zap.Logger) (*GitHubReporter, error) {
	if token == "" {
		return nil, fmt.Errorf("github token is required")
	}
	if owner == "" || repo == "" {
		return nil, fmt.Errorf("github owner and repo are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(ctx, ts)

	return &GitHubReporter{
		client: github.NewClient(tc),
		owner:  owner,
		repo:   repo,
		logger: logger,
	}, nil
}

// ReportFailure opens the issue. A failed API call is logged, not
// propagated.
func (r *GitHubReporter) ReportFailure(ctx context.Context, flowID, stageName, errorMessage string) {
	title := fmt.Sprintf("Flow %s failed at stage %s", flowID, stageName)
	body := fmt.Sprintf("Flow `%s` failed during the `%s` stage.\n\n```\n%s\n```\n", flowID, stageName, errorMessage)
	labels := []string{"incident", "flowd"}

	issue, _, err := r.client.Issues.Create(ctx, r.owner, r.repo, &github.IssueRequest{
		Title:  github.String(title),
		Body:   github.String(body),
		Labels: &labels,
	})
	if err != nil {
		r.logger.Warn("incident issue creation failed",
			zap.String("flow_id", flowID),
			zap.String("stage", stageName),
			zap.Error(err),
		)
		return
	}

	r.logger.Info("incident issue filed",
		zap.String("flow_id", flowID),
		zap.Int("issue", issue.GetNumber()),
	)
}
