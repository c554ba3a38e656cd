package server

import (
	"context"
	"sync"

	"github.com/jxucoder/gitpilot/internal/auth"
	ghx "github.com/jxucoder/gitpilot/internal/github"
)

// lazyFallback mints the installation token on first use and reuses the
// resulting client for the rest of the run. Executions that never hit a
// permissions failure never pay for the token exchange.
type lazyFallback struct {
	resolver *auth.Resolver
	newRepo  func(token string) repoClient

	once sync.Once
	repo repoClient
	err  error
}

func (l *lazyFallback) client(ctx context.Context) (repoClient, error) {
	l.once.Do(func() {
		token, err := l.resolver.InstallationToken(ctx)
		if err != nil {
			l.err = err
			return
		}
		l.repo = l.newRepo(token)
	})
	return l.repo, l.err
}

func (l *lazyFallback) ReadFile(ctx context.Context, owner, repo, path, ref string) (string, error) {
	c, err := l.client(ctx)
	if err != nil {
		return "", err
	}
	return c.ReadFile(ctx, owner, repo, path, ref)
}

func (l *lazyFallback) WriteFile(ctx context.Context, owner, repo, path, content, message, branch string) (*ghx.Commit, error) {
	c, err := l.client(ctx)
	if err != nil {
		return nil, err
	}
	return c.WriteFile(ctx, owner, repo, path, content, message, branch)
}

func (l *lazyFallback) DeleteFile(ctx context.Context, owner, repo, path, message, branch string) (*ghx.Commit, error) {
	c, err := l.client(ctx)
	if err != nil {
		return nil, err
	}
	return c.DeleteFile(ctx, owner, repo, path, message, branch)
}

func (l *lazyFallback) CreateBranch(ctx context.Context, owner, repo, branch string) (string, error) {
	c, err := l.client(ctx)
	if err != nil {
		return "", err
	}
	return c.CreateBranch(ctx, owner, repo, branch)
}
