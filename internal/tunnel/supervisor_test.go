package tunnel

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScript writes an executable shell script standing in for the tunnel
// binary. The script must tolerate the generated argument list.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-tunnel")
	script := "#!/bin/sh\n" + body
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestEnsureTunnelDiscoversPublicURL(t *testing.T) {
	cmd := writeScript(t, `echo 'msg="started tunnel" url=https://abc123.ngrok-free.app'
sleep 30
`)
	s := NewSupervisor(Config{Command: cmd, LocalPort: 8725})
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	assert.True(t, s.EnsureTunnel(ctx))
	assert.Equal(t, "https://abc123.ngrok-free.app", s.PublicURL())

	// A live tunnel is reused without spawning again.
	assert.True(t, s.EnsureTunnel(ctx))
}

func TestEnsureTunnelErrorOutputFails(t *testing.T) {
	cmd := writeScript(t, `echo 'lvl=error msg="failed to start tunnel session"'
sleep 30
`)
	s := NewSupervisor(Config{Command: cmd, LocalPort: 8725})
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	assert.False(t, s.EnsureTunnel(ctx))
	assert.Empty(t, s.PublicURL())

	s.mu.Lock()
	assert.Nil(t, s.handle, "failed process must be torn down")
	s.mu.Unlock()
}

func TestEnsureTunnelProcessExitsEarly(t *testing.T) {
	cmd := writeScript(t, `exit 0
`)
	s := NewSupervisor(Config{Command: cmd, LocalPort: 8725})
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	assert.False(t, s.EnsureTunnel(ctx))
}

func TestEnsureTunnelMissingCommand(t *testing.T) {
	s := NewSupervisor(Config{Command: filepath.Join(t.TempDir(), "does-not-exist"), LocalPort: 8725})
	defer s.Close()

	assert.False(t, s.EnsureTunnel(context.Background()))
}

func TestEnsureTunnelTimeoutKeepsProcessForReuse(t *testing.T) {
	cmd := writeScript(t, `sleep 30
`)
	s := NewSupervisor(Config{Command: cmd, LocalPort: 8725})
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	assert.False(t, s.EnsureTunnel(ctx))

	s.mu.Lock()
	assert.NotNil(t, s.handle, "a silent process is kept for the next attempt")
	s.mu.Unlock()
}

func TestEnsureTunnelConcurrentCallersSpawnOnce(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "starts")
	cmd := writeScript(t, `echo started >> `+marker+`
echo 'url=https://once.ngrok-free.app'
sleep 30
`)
	s := NewSupervisor(Config{Command: cmd, LocalPort: 8725})
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	results := make([]bool, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.EnsureTunnel(ctx)
		}(i)
	}
	wg.Wait()

	for i, ok := range results {
		assert.True(t, ok, "caller %d", i)
	}

	data, err := os.ReadFile(marker)
	require.NoError(t, err)
	starts := strings.Count(string(data), "started")
	assert.Equal(t, 1, starts, "exactly one tunnel process may be spawned")
}

func TestBuildArgs(t *testing.T) {
	s := NewSupervisor(Config{Command: "ngrok", LocalPort: 8725, ExtraArgs: []string{"--region", "eu"}})
	args := s.buildArgs()
	assert.Equal(t, []string{"http", "https://localhost:8725", "--log", "stdout", "--region", "eu"}, args)
}

func TestIsErrorLine(t *testing.T) {
	assert.True(t, isErrorLine(`t=2026-01-01 lvl=error msg="session closed"`))
	assert.True(t, isErrorLine("ERR_NGROK_108: session limit"))
	assert.True(t, isErrorLine("command failed: exit status 1"))
	assert.False(t, isErrorLine(`t=2026-01-01 lvl=info msg="tunnel session started"`))
	assert.False(t, isErrorLine("url=https://abc.ngrok-free.app"))
}

func TestPublicURLPattern(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{`t=2026-01-01 lvl=info msg="started tunnel" url=https://abc123.ngrok-free.app`, "https://abc123.ngrok-free.app"},
		{`Forwarding https://xyz.ngrok.io -> https://localhost:8725`, "https://xyz.ngrok.io"},
		{`no url here`, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, publicURLPattern.FindString(tt.line), tt.line)
	}
}
