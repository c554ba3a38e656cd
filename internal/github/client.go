// Package github wraps the GitHub REST API primitives GitPilot consumes:
// recursive tree snapshots, blob reads, blob writes/deletes with SHA
// preconditions, and branch creation.
package github

import (
	"context"
	"fmt"
	"strings"

	gogh "github.com/google/go-github/v68/github"

	"github.com/jxucoder/gitpilot/internal/model"
)

// Client wraps the GitHub API for GitPilot operations. All write operations
// are token-scoped; a separate Client is built per credential.
type Client struct {
	gh *gogh.Client
}

// NewClient creates a GitHub client authenticated with the given token.
func NewClient(token string) *Client {
	return &Client{
		gh: gogh.NewClient(nil).WithAuthToken(token),
	}
}

// Commit identifies a commit produced by a write operation.
type Commit struct {
	SHA string `json:"commit_sha"`
	URL string `json:"commit_url,omitempty"`
}

// Snapshot fetches the full recursive file listing of a repository at the
// given ref (default "HEAD"). Only blob entries are returned; trees and
// submodules are excluded.
func (c *Client) Snapshot(ctx context.Context, owner, repo, ref string) (*model.RepositorySnapshot, error) {
	if ref == "" {
		ref = "HEAD"
	}
	tree, _, err := c.gh.Git.GetTree(ctx, owner, repo, ref, true)
	if err != nil {
		return nil, classify(err, fmt.Sprintf("%s/%s@%s", owner, repo, ref))
	}

	snap := &model.RepositorySnapshot{Owner: owner, Repo: repo, Ref: ref}
	for _, entry := range tree.Entries {
		if entry.GetType() == "blob" {
			snap.Paths = append(snap.Paths, entry.GetPath())
		}
	}
	return snap, nil
}

// ReadFile fetches one blob's decoded text content at the given ref.
// An empty ref reads from the repository's default branch.
func (c *Client) ReadFile(ctx context.Context, owner, repo, path, ref string) (string, error) {
	opts := &gogh.RepositoryContentGetOptions{Ref: ref}
	file, _, _, err := c.gh.Repositories.GetContents(ctx, owner, repo, path, opts)
	if err != nil {
		return "", classify(err, path)
	}
	if file == nil {
		return "", &NotFoundError{Resource: path}
	}

	content, err := file.GetContent()
	if err != nil {
		return "", fmt.Errorf("decoding content for %s: %w", path, err)
	}
	return content, nil
}

// fileSHA returns the current blob SHA of path on ref, or a NotFoundError.
func (c *Client) fileSHA(ctx context.Context, owner, repo, path, ref string) (string, error) {
	opts := &gogh.RepositoryContentGetOptions{Ref: ref}
	file, _, _, err := c.gh.Repositories.GetContents(ctx, owner, repo, path, opts)
	if err != nil {
		return "", classify(err, path)
	}
	if file == nil {
		return "", &NotFoundError{Resource: path}
	}
	return file.GetSHA(), nil
}

// WriteFile creates or updates path on branch with the given content,
// committing with message. The existing blob SHA, when present, is carried
// as the optimistic-concurrency precondition.
func (c *Client) WriteFile(ctx context.Context, owner, repo, path, content, message, branch string) (*Commit, error) {
	opts := &gogh.RepositoryContentFileOptions{
		Message: gogh.Ptr(message),
		Content: []byte(content),
		Branch:  gogh.Ptr(branch),
	}

	sha, err := c.fileSHA(ctx, owner, repo, path, branch)
	switch {
	case err == nil:
		opts.SHA = gogh.Ptr(sha)
	case IsNotFound(err):
		// New file: no precondition.
	default:
		return nil, err
	}

	var resp *gogh.RepositoryContentResponse
	if opts.SHA != nil {
		resp, _, err = c.gh.Repositories.UpdateFile(ctx, owner, repo, path, opts)
	} else {
		resp, _, err = c.gh.Repositories.CreateFile(ctx, owner, repo, path, opts)
	}
	if err != nil {
		return nil, classify(err, path)
	}

	return &Commit{SHA: resp.Commit.GetSHA(), URL: resp.Commit.GetHTMLURL()}, nil
}

// DeleteFile removes path from branch, using the current blob SHA on that
// branch as the precondition.
func (c *Client) DeleteFile(ctx context.Context, owner, repo, path, message, branch string) (*Commit, error) {
	sha, err := c.fileSHA(ctx, owner, repo, path, branch)
	if err != nil {
		return nil, err
	}

	opts := &gogh.RepositoryContentFileOptions{
		Message: gogh.Ptr(message),
		SHA:     gogh.Ptr(sha),
		Branch:  gogh.Ptr(branch),
	}
	resp, _, err := c.gh.Repositories.DeleteFile(ctx, owner, repo, path, opts)
	if err != nil {
		return nil, classify(err, path)
	}

	return &Commit{SHA: resp.Commit.GetSHA(), URL: resp.Commit.GetHTMLURL()}, nil
}

// DefaultBranch returns the default branch for a repository.
func (c *Client) DefaultBranch(ctx context.Context, owner, repo string) (string, error) {
	r, _, err := c.gh.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return "", classify(err, owner+"/"+repo)
	}
	branch := r.GetDefaultBranch()
	if branch == "" {
		branch = "main"
	}
	return branch, nil
}

// CreateBranch creates branch from the repository's default branch HEAD and
// returns the new ref. A BranchExistsError is returned when the ref is
// already present.
func (c *Client) CreateBranch(ctx context.Context, owner, repo, branch string) (string, error) {
	defaultBranch, err := c.DefaultBranch(ctx, owner, repo)
	if err != nil {
		return "", err
	}

	base, _, err := c.gh.Git.GetRef(ctx, owner, repo, "heads/"+defaultBranch)
	if err != nil {
		return "", classify(err, "heads/"+defaultBranch)
	}

	ref := "refs/heads/" + branch
	created, _, err := c.gh.Git.CreateRef(ctx, owner, repo, &gogh.Reference{
		Ref:    gogh.Ptr(ref),
		Object: &gogh.GitObject{SHA: base.Object.SHA},
	})
	if err != nil {
		return "", classify(err, branch)
	}
	return created.GetRef(), nil
}

// SplitRepo parses "owner/repo" into its components.
func SplitRepo(fullName string) (owner, repo string, err error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repo format %q, expected \"owner/repo\"", fullName)
	}
	return parts[0], parts[1], nil
}
