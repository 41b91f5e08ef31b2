package tunnel

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"qbconnect/pkg/logging"
)

// ReadinessCeiling caps how long EnsureTunnel waits for the child process to
// report a public URL, regardless of the caller's deadline.
const ReadinessCeiling = 25 * time.Second

const logContext = "TunnelSupervisor"

// publicURLPattern matches the forwarding URL in the child's output, e.g.
// ngrok's "url=https://abc123.ngrok-free.app" or a bare https URL on a line.
var publicURLPattern = regexp.MustCompile(`https://[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}[^\s"]*`)

// errorMarkers are substrings that mark a line as a startup failure.
var errorMarkers = []string{"ERR_", "lvl=error", "\"err\"", "command failed", "failed to start"}

// Config configures the tunnel supervisor.
type Config struct {
	// Command is the forwarding executable, e.g. "ngrok".
	Command string

	// ExtraArgs are appended to the generated argument list.
	ExtraArgs []string

	// LocalPort is the local HTTPS port the tunnel forwards to. This is the
	// webhook listener port, not the main application port.
	LocalPort int
}

// handle tracks one live child process.
type handle struct {
	cmd       *exec.Cmd
	publicURL string
	ready     bool
	failed    bool
	readyCh   chan struct{} // closed once readiness resolves either way
	cancel    context.CancelFunc
}

// Supervisor manages at most one tunnel process per application. EnsureTunnel
// is idempotent: a live handle is reused, and concurrent callers racing on a
// cold supervisor spawn exactly one process.
type Supervisor struct {
	mu     sync.Mutex
	cfg    Config
	handle *handle
}

// NewSupervisor creates a supervisor for the given configuration.
func NewSupervisor(cfg Config) *Supervisor {
	return &Supervisor{cfg: cfg}
}

// PublicURL returns the discovered public URL, or "" while the tunnel is not
// ready.
func (s *Supervisor) PublicURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle != nil && s.handle.ready {
		return s.handle.publicURL
	}
	return ""
}

// EnsureTunnel makes sure a tunnel process is running and reports whether a
// public URL is available. The wait is bounded by the smaller of the caller's
// deadline and the readiness ceiling. Tunnel availability is best-effort:
// every failure path returns false rather than an error.
func (s *Supervisor) EnsureTunnel(ctx context.Context) bool {
	s.mu.Lock()
	if s.handle != nil && s.handle.ready {
		s.mu.Unlock()
		return true
	}
	if s.handle == nil {
		h, err := s.spawnLocked()
		if err != nil {
			s.mu.Unlock()
			logging.Warn(logContext, "Failed to start tunnel process %s: %v", s.cfg.Command, err)
			return false
		}
		s.handle = h
		logging.Info(logContext, "Started tunnel process %s forwarding to local port %d", s.cfg.Command, s.cfg.LocalPort)
	}
	h := s.handle
	s.mu.Unlock()

	waitCtx, cancel := context.WithTimeout(ctx, ReadinessCeiling)
	defer cancel()

	select {
	case <-h.readyCh:
	case <-waitCtx.Done():
		// Timed out. The process stays up for reuse on the next call unless
		// it already reported an error.
		s.mu.Lock()
		failed := h.failed
		s.mu.Unlock()
		if failed {
			s.teardown(h)
		}
		logging.Warn(logContext, "Timed out waiting for tunnel readiness")
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if h.failed {
		s.teardownLocked(h)
		return false
	}
	return h.ready
}

// spawnLocked starts the child process and its output consumers.
// Must be called with s.mu held.
func (s *Supervisor) spawnLocked() (*handle, error) {
	procCtx, cancel := context.WithCancel(context.Background())

	args := s.buildArgs()
	// #nosec G204 -- the command comes from local configuration, not remote input
	cmd := exec.CommandContext(procCtx, s.cfg.Command, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, err
	}

	h := &handle{
		cmd:     cmd,
		readyCh: make(chan struct{}),
		cancel:  cancel,
	}

	var resolveOnce sync.Once
	resolve := func(url string, failed bool) {
		resolveOnce.Do(func() {
			s.mu.Lock()
			h.publicURL = url
			h.ready = url != ""
			h.failed = failed
			s.mu.Unlock()
			close(h.readyCh)
		})
	}

	group := &errgroup.Group{}
	group.Go(func() error { return scanStream(stdout, resolve) })
	group.Go(func() error { return scanStream(stderr, resolve) })
	go func() {
		_ = group.Wait()
		_ = cmd.Wait()
		// Output ended without a match: the process died before readiness.
		resolve("", true)
	}()

	return h, nil
}

// buildArgs generates the child's argument list: forward HTTP traffic to the
// local webhook port.
func (s *Supervisor) buildArgs() []string {
	args := []string{"http", fmt.Sprintf("https://localhost:%d", s.cfg.LocalPort), "--log", "stdout"}
	return append(args, s.cfg.ExtraArgs...)
}

// scanStream consumes one output stream line by line. The first line matching
// the public URL pattern resolves readiness with that URL; the first line
// containing an error marker resolves it as failed.
func scanStream(r io.Reader, resolve func(url string, failed bool)) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()

		if isErrorLine(line) {
			logging.Debug(logContext, "Tunnel reported error: %s", line)
			resolve("", true)
			continue
		}
		if url := publicURLPattern.FindString(line); url != "" {
			logging.Info(logContext, "Tunnel public URL discovered: %s", url)
			resolve(url, false)
		}
	}
	return scanner.Err()
}

func isErrorLine(line string) bool {
	for _, marker := range errorMarkers {
		if strings.Contains(line, marker) {
			return true
		}
	}
	return false
}

// teardown terminates the child process and clears the handle.
func (s *Supervisor) teardown(h *handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teardownLocked(h)
}

// teardownLocked must be called with s.mu held.
func (s *Supervisor) teardownLocked(h *handle) {
	if h == nil {
		return
	}
	h.cancel()
	if s.handle == h {
		s.handle = nil
	}
}

// Close terminates any live tunnel process. Called on manager disposal.
func (s *Supervisor) Close() {
	s.mu.Lock()
	h := s.handle
	s.handle = nil
	s.mu.Unlock()

	if h != nil {
		h.cancel()
		logging.Debug(logContext, "Tunnel process terminated")
	}
}
