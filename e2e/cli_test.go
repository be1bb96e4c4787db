package e2e_test

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/authservice/internal/api"
	"github.com/mcoot/authservice/internal/factory"
	"github.com/mcoot/authservice/internal/testutil"
)

// cliRunner manages CLI binary execution
type cliRunner struct {
	binaryPath string
	serverURL  string
	tokenFile  string
}

func newCLIRunner(t *testing.T, serverURL string) *cliRunner {
	t.Helper()

	// Find project root (where go.mod is)
	projectRoot := findProjectRoot(t)

	// Build the CLI binary
	binaryPath := filepath.Join(t.TempDir(), "authctl-test")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/authctl")
	cmd.Dir = projectRoot
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "failed to build CLI: %s", string(output))

	// Create temp token file
	tokenFile := filepath.Join(t.TempDir(), "token")

	return &cliRunner{
		binaryPath: binaryPath,
		serverURL:  serverURL,
		tokenFile:  tokenFile,
	}
}

func (r *cliRunner) run(args ...string) (string, error) {
	fullArgs := append([]string{
		"--server", r.serverURL,
		"--token-file", r.tokenFile,
		"--output", "json",
	}, args...)

	cmd := exec.Command(r.binaryPath, fullArgs...)
	output, err := cmd.CombinedOutput()
	return string(output), err
}

func (r *cliRunner) runWithToken(token string, args ...string) (string, error) {
	fullArgs := append([]string{
		"--server", r.serverURL,
		"--token", token,
		"--token-file", r.tokenFile,
		"--output", "json",
	}, args...)

	cmd := exec.Command(r.binaryPath, fullArgs...)
	output, err := cmd.CombinedOutput()
	return string(output), err
}

func findProjectRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	require.NoError(t, err)

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find project root (go.mod)")
		}
		dir = parent
	}
}

// testServer manages a real HTTP server for e2e tests
type testServer struct {
	server   *http.Server
	addr     string
	shutdown func()
}

func startTestServer(t *testing.T) *testServer {
	t.Helper()

	// Find a free port
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	// Create application with real clock and in-memory storage
	logger := testutil.NopLogger()
	app, err := factory.New(context.Background(), factory.Config{
		TokenConfig: factory.TestTokenConfig(),
		BcryptCost:  bcrypt.MinCost,
		Logger:      logger,
	})
	require.NoError(t, err)

	apiRouter := api.NewRouter(api.RouterConfig{
		Logger:         logger,
		AccountService: app.AccountService,
		Tokens:         app.Tokens,
		Accounts:       app.Storage,
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           apiRouter,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Start server
	go func() {
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	// Wait for server to be ready
	serverURL := "http://" + addr
	waitForServer(t, serverURL+"/api/v1/health")

	return &testServer{
		server: server,
		addr:   serverURL,
		shutdown: func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(ctx)
			_ = app.Close()
		},
	}
}

func waitForServer(t *testing.T, url string) {
	t.Helper()

	client := &http.Client{Timeout: 100 * time.Millisecond}
	deadline := time.Now().Add(5 * time.Second)

	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(50 * time.Millisecond)
	}

	t.Fatal("server did not become ready in time")
}

// Response types for JSON parsing
type accountResponse struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	Role        string     `json:"role"`
	IsActive    bool       `json:"is_active"`
	LastLoginAt *time.Time `json:"last_login_at"`
}

type loginResponse struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	User      accountResponse `json:"user"`
}

type healthResponse struct {
	Status string `json:"status"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// Tests

func TestCLI_HealthCheck(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	output, err := cli.run("health")
	require.NoError(t, err, "output: %s", output)

	var resp healthResponse
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestCLI_AccountLifecycle(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	// Register
	output, err := cli.run("register", "--user", "alice", "--email", "alice@example.com", "--pass", "secret1")
	require.NoError(t, err, "output: %s", output)

	var registered accountResponse
	require.NoError(t, json.Unmarshal([]byte(output), &registered))
	assert.Equal(t, "alice", registered.Username)
	assert.Equal(t, "player", registered.Role)
	assert.Nil(t, registered.LastLoginAt)

	// Profile before login fails without a token
	output, err = cli.run("profile", "show")
	require.Error(t, err)
	assert.Contains(t, output, "NO_TOKEN")

	// Login stores the token
	output, err = cli.run("login", "--email", "alice@example.com", "--pass", "secret1")
	require.NoError(t, err, "output: %s", output)

	var login loginResponse
	require.NoError(t, json.Unmarshal([]byte(output), &login))
	assert.NotEmpty(t, login.Token)
	assert.Equal(t, registered.ID, login.User.ID)

	// Show profile (token should be saved in token file)
	output, err = cli.run("profile", "show")
	require.NoError(t, err, "output: %s", output)

	var me accountResponse
	require.NoError(t, json.Unmarshal([]byte(output), &me))
	assert.Equal(t, registered.ID, me.ID)
	assert.NotNil(t, me.LastLoginAt)

	// Update profile
	output, err = cli.run("profile", "update", "--user", "alicia")
	require.NoError(t, err, "output: %s", output)

	var updated accountResponse
	require.NoError(t, json.Unmarshal([]byte(output), &updated))
	assert.Equal(t, "alicia", updated.Username)

	// Change password
	output, err = cli.run("password", "--current", "secret1", "--new", "newpass1")
	require.NoError(t, err, "output: %s", output)

	var msg messageResponse
	require.NoError(t, json.Unmarshal([]byte(output), &msg))
	assert.Equal(t, "Password updated successfully", msg.Message)

	// Deactivate requires confirmation
	_, err = cli.run("deactivate")
	require.Error(t, err)

	output, err = cli.runWithToken(login.Token, "deactivate", "--yes")
	require.NoError(t, err, "output: %s", output)

	// The old token is refused now
	output, err = cli.runWithToken(login.Token, "profile", "show")
	require.Error(t, err)
	assert.Contains(t, output, "ACCOUNT_DEACTIVATED")
}

func TestCLI_LoginFailure(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	output, err := cli.run("register", "--user", "bob", "--email", "bob@example.com", "--pass", "secret1")
	require.NoError(t, err, "output: %s", output)

	output, err = cli.run("login", "--email", "bob@example.com", "--pass", "wrong12")
	require.Error(t, err)
	assert.Contains(t, output, "INVALID_CREDENTIALS")

	// Nothing was stored
	_, statErr := os.Stat(cli.tokenFile)
	assert.True(t, os.IsNotExist(statErr))
}
