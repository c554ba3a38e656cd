package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jxucoder/gitpilot/internal/config"
	ghx "github.com/jxucoder/gitpilot/internal/github"
)

func testPrivateKeyPEM(t *testing.T) (string, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}
	return string(pem.EncodeToMemory(block)), key
}

func TestResolveExplicitWins(t *testing.T) {
	r := NewResolver(&config.Config{GitHubToken: "pat"})
	tok, err := r.Resolve(context.Background(), "explicit")
	require.NoError(t, err)
	assert.Equal(t, "explicit", tok)
}

func TestResolveFallsBackToPAT(t *testing.T) {
	r := NewResolver(&config.Config{GitHubToken: "pat"})
	tok, err := r.Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "pat", tok)
}

func TestResolveNoCredential(t *testing.T) {
	r := NewResolver(&config.Config{})
	_, err := r.Resolve(context.Background(), "")
	require.Error(t, err)
	assert.True(t, ghx.IsAuth(err))
}

func TestInstallationTokenExchange(t *testing.T) {
	pemKey, key := testPrivateKeyPEM(t)

	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/app/installations/42/access_tokens", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"token":"ghs_abc","expires_at":"2030-01-01T00:00:00Z"}`))
	}))
	defer srv.Close()

	cfg := &config.Config{
		GitHubAppID:             "12345",
		GitHubAppInstallationID: "42",
		GitHubAppPrivateKey:     pemKey,
	}
	r := NewResolver(cfg)
	r.apiBase = srv.URL

	tok, err := r.Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "ghs_abc", tok)

	// The Authorization header must carry a valid RS256 JWT issued by the app.
	require.True(t, len(gotAuth) > 7 && gotAuth[:7] == "Bearer ")
	parsed, err := jwt.ParseWithClaims(gotAuth[7:], &jwt.RegisteredClaims{}, func(tk *jwt.Token) (any, error) {
		return &key.PublicKey, nil
	})
	require.NoError(t, err)
	claims := parsed.Claims.(*jwt.RegisteredClaims)
	assert.Equal(t, "12345", claims.Issuer)

	// Second call is served from cache: shut the server down and re-resolve.
	srv.Close()
	tok2, err := r.Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "ghs_abc", tok2)
}

func TestInstallationTokenExchangeFailure(t *testing.T) {
	pemKey, _ := testPrivateKeyPEM(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"bad jwt"}`))
	}))
	defer srv.Close()

	cfg := &config.Config{
		GitHubAppID:             "12345",
		GitHubAppInstallationID: "42",
		GitHubAppPrivateKey:     pemKey,
	}
	r := NewResolver(cfg)
	r.apiBase = srv.URL
	r.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

	_, err := r.Resolve(context.Background(), "")
	require.Error(t, err)
	assert.True(t, ghx.IsAuth(err))
}
