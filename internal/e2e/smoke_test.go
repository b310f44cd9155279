package e2e

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/bnema/taskflow-cli/internal/domain"
	"github.com/bnema/taskflow-cli/internal/fakeapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSmokeFlow(t *testing.T) {
	home := t.TempDir()
	binaryPath := buildBinary(t)

	server := fakeapi.New()
	httpServer := server.Start()
	defer httpServer.Close()
	server.SeedUser("ada@example.com", "correct-horse")
	server.SeedTask("ada@example.com", domain.TaskCreate{Title: "Seeded task"})
	baseURL := fakeapi.BaseURL(httpServer)

	_, stderr, err := runTF(t, binaryPath, home, baseURL, "auth", "login", "--email", "ada@example.com", "--password", "correct-horse")
	require.NoError(t, err, "stderr: %s", stderr)

	_, stderr, err = runTF(t, binaryPath, home, baseURL, "tasks", "create", "--title", "From the binary")
	require.NoError(t, err, "stderr: %s", stderr)

	stdout, stderr, err := runTF(t, binaryPath, home, baseURL, "tasks", "list")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, "total: 2")
	assert.Contains(t, stdout, "From the binary")
	assert.Contains(t, stdout, "Seeded task")

	_, stderr, err = runTF(t, binaryPath, home, baseURL, "auth", "logout")
	require.NoError(t, err, "stderr: %s", stderr)

	_, _, err = runTF(t, binaryPath, home, baseURL, "tasks", "list")
	require.Error(t, err)
}

func buildBinary(t *testing.T) string {
	t.Helper()

	binaryPath := filepath.Join(t.TempDir(), "tf-e2e")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/tf")
	cmd.Dir = repoRoot(t)

	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "build tf binary: %s", string(output))
	return binaryPath
}

func runTF(t *testing.T, binaryPath, home, baseURL string, args ...string) (string, string, error) {
	t.Helper()

	cmd := exec.Command(binaryPath, args...)
	cmd.Env = append(os.Environ(), "HOME="+home, "TF_API_BASE_URL="+baseURL, "TF_SESSION_BACKEND=file")

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

func repoRoot(t *testing.T) string {
	t.Helper()

	wd, err := os.Getwd()
	require.NoError(t, err)
	return filepath.Clean(filepath.Join(wd, "..", ".."))
}
