package main

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"repo-watcher/internal/config"
	"repo-watcher/internal/github"
	"repo-watcher/internal/notifier"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createMockGitHubServer serves a repository with one commit, one pull request and one branch
func createMockGitHubServer() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octo/hello", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			http.Error(w, `{"message":"Bad credentials"}`, http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"id": 1, "full_name": "octo/hello"}`))
	})
	mux.HandleFunc("/repos/octo/hello/commits", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"sha": "abc", "html_url": "https://github.com/octo/hello/commit/abc", "commit": {"message": "Initial", "author": {"name": "Alice"}}}]`))
	})
	mux.HandleFunc("/repos/octo/hello/commits/abc", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"sha": "abc", "files": [{"filename": "README.md", "status": "added"}]}`))
	})
	mux.HandleFunc("/repos/octo/hello/pulls", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id": 10, "number": 1, "title": "First PR", "html_url": "https://github.com/octo/hello/pull/1"}]`))
	})
	mux.HandleFunc("/repos/octo/hello/branches", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"name": "main"}]`))
	})
	return httptest.NewServer(mux)
}

// webhookCounter counts webhook posts
type webhookCounter struct {
	mu    sync.Mutex
	posts int
}

func (c *webhookCounter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	c.posts++
	c.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (c *webhookCounter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.posts
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{config.EnvRepository, config.EnvToken, config.EnvGitHubCLI, config.EnvWebhookURL, config.EnvInterval} {
		t.Setenv(key, "")
	}
}

func restoreLogger(t *testing.T) {
	t.Helper()
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })
}

func newSource(t *testing.T, cfg *config.Config) *github.Client {
	t.Helper()
	client, err := github.NewClient(cfg)
	require.NoError(t, err)
	return client
}

func writeTestConfig(t *testing.T, apiURL, webhookURL, token string) string {
	t.Helper()
	content := `
github:
  repository: "octo/hello"
  token: "` + token + `"
  api_url: "` + apiURL + `"
discord:
  webhook_url: "` + webhookURL + `"
watch:
  interval: 1s
log:
  level: "error"
  format: "json"
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func testConfig(apiURL, webhookURL string) *config.Config {
	cfg := config.Default()
	cfg.GitHub.Repository = "octo/hello"
	cfg.GitHub.Token = "test-token"
	cfg.GitHub.APIURL = apiURL
	cfg.Discord.WebhookURL = webhookURL
	return cfg
}

func TestNewRootCmd_Flags(t *testing.T) {
	cmd := newRootCmd()

	configFlag := cmd.Flags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "config.yaml", configFlag.DefValue)
	assert.Equal(t, "c", configFlag.Shorthand)

	onceFlag := cmd.Flags().Lookup("once")
	require.NotNil(t, onceFlag)
	assert.Equal(t, "false", onceFlag.DefValue)
}

func TestNewRootCmd_RejectsArgs(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"unexpected"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	assert.Error(t, cmd.ExecuteContext(context.Background()))
}

func TestNewRootCmd_Version(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--version"})

	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), version)
}

func TestNewRootCmd_Once(t *testing.T) {
	clearEnv(t)
	restoreLogger(t)

	api := createMockGitHubServer()
	defer api.Close()
	hook := &webhookCounter{}
	hookServer := httptest.NewServer(hook)
	defer hookServer.Close()

	cmd := newRootCmd()
	cmd.SetArgs([]string{"--config", writeTestConfig(t, api.URL, hookServer.URL, "test-token"), "--once"})

	require.NoError(t, cmd.ExecuteContext(context.Background()))
	// commit, pull request, branch
	assert.Equal(t, 3, hook.count())
}

func TestNewRootCmd_ConnectionTestFails(t *testing.T) {
	clearEnv(t)
	restoreLogger(t)

	api := createMockGitHubServer()
	defer api.Close()
	hook := &webhookCounter{}
	hookServer := httptest.NewServer(hook)
	defer hookServer.Close()

	var stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"--config", writeTestConfig(t, api.URL, hookServer.URL, "wrong-token"), "--once"})

	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, stderr.String(), "connection test failed")
	assert.Zero(t, hook.count())
}

func TestStart_InvalidConfig(t *testing.T) {
	clearEnv(t)

	err := start(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"), true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestRun_StopsWhenContextEnds(t *testing.T) {
	restoreLogger(t)

	api := createMockGitHubServer()
	defer api.Close()
	hook := &webhookCounter{}
	hookServer := httptest.NewServer(hook)
	defer hookServer.Close()

	cfg := testConfig(api.URL, hookServer.URL)
	source := newSource(t, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	err := run(ctx, cfg, source, false)
	assert.NoError(t, err)
	assert.Equal(t, 3, hook.count())
}

func TestRun_OnceWithSeed(t *testing.T) {
	api := createMockGitHubServer()
	defer api.Close()
	hook := &webhookCounter{}
	hookServer := httptest.NewServer(hook)
	defer hookServer.Close()

	cfg := testConfig(api.URL, hookServer.URL)
	cfg.Watch.SeedOnStart = true

	require.NoError(t, run(context.Background(), cfg, newSource(t, cfg), true))
	assert.Zero(t, hook.count())
}

func TestBuildNotifiers(t *testing.T) {
	cfg := testConfig("", "https://discord.com/api/webhooks/1/abc")

	notifiers := buildNotifiers(cfg)
	require.Len(t, notifiers, 1)
	assert.IsType(t, &notifier.DiscordNotifier{}, notifiers[0])

	cfg.Notifiers.SMTP.Host = "smtp.example.com"
	notifiers = buildNotifiers(cfg)
	require.Len(t, notifiers, 2)
	assert.IsType(t, &notifier.EmailNotifier{}, notifiers[1])
}
