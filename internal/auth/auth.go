// Package auth resolves GitHub credentials for GitPilot.
//
// Resolution follows one ordered fallback chain: an explicit caller token
// wins, then the configured personal access token, then a GitHub App
// installation token minted via RS256 JWT exchange. All resolution is
// read-only and side-effect-free per call; installation tokens are cached
// until shortly before expiry.
package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jxucoder/gitpilot/internal/config"
	ghx "github.com/jxucoder/gitpilot/internal/github"
)

const defaultAPIBase = "https://api.github.com"

// Resolver implements the credential fallback policy.
type Resolver struct {
	cfg     *config.Config
	apiBase string
	client  *http.Client
	now     func() time.Time

	mu          sync.Mutex
	cachedToken string
	cachedUntil time.Time
}

// NewResolver creates a Resolver over the given configuration.
func NewResolver(cfg *config.Config) *Resolver {
	return &Resolver{
		cfg:     cfg,
		apiBase: defaultAPIBase,
		client:  http.DefaultClient,
		now:     time.Now,
	}
}

// Resolve returns a usable GitHub token. The explicit token, when non-empty,
// always wins; otherwise the configured PAT, then a GitHub App installation
// token. Returns an AuthError when nothing resolves.
func (r *Resolver) Resolve(ctx context.Context, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if r.cfg.GitHubToken != "" {
		return r.cfg.GitHubToken, nil
	}
	if r.cfg.AppConfigured() {
		return r.InstallationToken(ctx)
	}
	return "", &ghx.AuthError{Reason: "no credential available (set GITHUB_TOKEN or configure a GitHub App)"}
}

// HasFallback reports whether an installation-token fallback is available
// for write operations that fail with a permissions error.
func (r *Resolver) HasFallback() bool {
	return r.cfg.AppConfigured()
}

// InstallationToken exchanges an app JWT for an installation access token.
func (r *Resolver) InstallationToken(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cachedToken != "" && r.now().Before(r.cachedUntil) {
		return r.cachedToken, nil
	}

	appJWT, err := r.appJWT()
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/app/installations/%s/access_tokens", r.apiBase, r.cfg.GitHubAppInstallationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+appJWT)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("exchanging app JWT: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 400 {
		return "", &ghx.AuthError{Reason: fmt.Sprintf("installation token exchange failed (%d): %s", resp.StatusCode, string(body))}
	}

	var result struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("parsing installation token response: %w", err)
	}
	if result.Token == "" {
		return "", &ghx.AuthError{Reason: "installation token response contained no token"}
	}

	r.cachedToken = result.Token
	r.cachedUntil = result.ExpiresAt.Add(-time.Minute)
	return result.Token, nil
}

// appJWT builds the short-lived RS256 JWT GitHub Apps authenticate with.
// Issued-at is backdated 60s to tolerate clock drift.
func (r *Resolver) appJWT() (string, error) {
	pem := r.cfg.GitHubAppPrivateKey
	if !strings.HasPrefix(pem, "-----BEGIN") {
		decoded, err := base64.StdEncoding.DecodeString(pem)
		if err != nil {
			return "", &ghx.AuthError{Reason: "app private key is neither PEM nor base64-encoded PEM"}
		}
		pem = string(decoded)
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(pem))
	if err != nil {
		return "", fmt.Errorf("parsing app private key: %w", err)
	}

	now := r.now()
	claims := jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now.Add(-60 * time.Second)),
		ExpiresAt: jwt.NewNumericDate(now.Add(9 * time.Minute)),
		Issuer:    r.cfg.GitHubAppID,
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
}
