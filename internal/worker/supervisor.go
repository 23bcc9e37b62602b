package worker

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// WorkerHost is where the worker binds its own WebSocket server.
	WorkerHost = "127.0.0.1"

	// DefaultReadyMarker is the line fragment the worker prints on
	// stderr once its WebSocket server is accepting connections.
	DefaultReadyMarker = "WebSocket server started successfully"

	// DefaultReadyTimeout bounds how long Start waits for readiness.
	DefaultReadyTimeout = 60 * time.Second
)

// ErrAlreadyRunning is returned by Start when a worker process is
// already managed by this supervisor.
var ErrAlreadyRunning = errors.New("worker already running")

// ReadyDetector decides, line by line, when the worker has signaled
// readiness. The marker-string scanner is the default adapter; a
// worker with a structured readiness protocol can plug in its own.
type ReadyDetector interface {
	Ready(line string) bool
}

type markerDetector struct {
	marker string
}

func (m markerDetector) Ready(line string) bool {
	return strings.Contains(line, m.marker)
}

// MarkerDetector matches readiness by substring search on each
// output line.
func MarkerDetector(marker string) ReadyDetector {
	return markerDetector{marker: marker}
}

// Supervisor owns at most one worker subprocess: it spawns the
// binary, drains its output streams into the log, waits for the
// readiness signal and terminates the process on Stop.
type Supervisor struct {
	log          *zap.SugaredLogger
	binPath      string
	detector     ReadyDetector
	readyTimeout time.Duration

	mu   sync.Mutex
	cmd  *exec.Cmd
	done chan struct{} // closed once the process has been reaped
}

// NewSupervisor creates a supervisor for the worker at binPath. An
// empty binPath resolves the default location next to the host
// executable.
func NewSupervisor(log *zap.SugaredLogger, binPath string, detector ReadyDetector, readyTimeout time.Duration) *Supervisor {
	if detector == nil {
		detector = MarkerDetector(DefaultReadyMarker)
	}
	if readyTimeout <= 0 {
		readyTimeout = DefaultReadyTimeout
	}
	return &Supervisor{
		log:          log.Named("supervisor"),
		binPath:      binPath,
		detector:     detector,
		readyTimeout: readyTimeout,
	}
}

// defaultWorkerPath locates the bundled worker binary relative to the
// host application's own executable, never an arbitrary search path.
func defaultWorkerPath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolving executable path: %w", err)
	}
	name := "deepface_cli"
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return filepath.Join(filepath.Dir(exe), "binaries", "deepface_cli", name), nil
}

// Start spawns the worker in serve mode on the given port and blocks
// until it signals readiness. A second Start without an intervening
// Stop returns ErrAlreadyRunning and spawns nothing. If readiness is
// not signaled within the timeout the process is killed before the
// error is returned.
func (s *Supervisor) Start(ctx context.Context, port int) error {
	s.mu.Lock()
	if s.cmd != nil {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}

	bin := s.binPath
	if bin == "" {
		var err error
		bin, err = defaultWorkerPath()
		if err != nil {
			s.mu.Unlock()
			return err
		}
	}

	cmd := exec.Command(bin, "serve", "--host", WorkerHost, "--port", strconv.Itoa(port))
	cmd.Dir = filepath.Dir(bin)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("stderr pipe: %w", err)
	}

	s.log.Infof("starting worker: %s serve --host %s --port %d", bin, WorkerHost, port)
	if err := cmd.Start(); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("starting worker: %w", err)
	}

	ready := make(chan struct{})
	done := make(chan struct{})
	s.cmd = cmd
	s.done = done
	s.mu.Unlock()

	// Both streams are drained for the lifetime of the process so the
	// worker can never stall on a full pipe. Readiness is scraped from
	// stderr only.
	g := new(errgroup.Group)
	g.Go(func() error {
		s.drain("stdout", stdout, nil)
		return nil
	})
	g.Go(func() error {
		s.drain("stderr", stderr, ready)
		return nil
	})
	go func() {
		_ = g.Wait()
		if err := cmd.Wait(); err != nil {
			s.log.Debugf("worker exited: %v", err)
		}
		close(done)
	}()

	select {
	case <-ready:
		s.log.Infof("worker ready on port %d", port)
		return nil
	case <-time.After(s.readyTimeout):
		s.log.Warnf("worker not ready after %s, killing pid %d", s.readyTimeout, cmd.Process.Pid)
		s.kill(cmd, done)
		return fmt.Errorf("timeout waiting for worker to become ready (%s)", s.readyTimeout)
	case <-ctx.Done():
		s.kill(cmd, done)
		return ctx.Err()
	}
}

func (s *Supervisor) kill(cmd *exec.Cmd, done chan struct{}) {
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		s.log.Warnf("killing worker: %v", err)
	}
	<-done
	s.mu.Lock()
	s.cmd = nil
	s.mu.Unlock()
}

// drain forwards stream lines to the log. When ready is non-nil it is
// closed on the first line the detector accepts; the stream keeps
// draining afterwards.
func (s *Supervisor) drain(name string, r io.Reader, ready chan struct{}) {
	signaled := ready == nil
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		s.log.Debugf("[worker %s] %s", name, line)
		if !signaled && s.detector.Ready(line) {
			close(ready)
			signaled = true
		}
	}
	if err := scanner.Err(); err != nil {
		s.log.Debugf("worker %s drain ended: %v", name, err)
	}
}

// Stop terminates a running worker and waits for it to exit. Stopping
// a non-running worker is a no-op.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	cmd, done := s.cmd, s.done
	s.cmd = nil
	s.mu.Unlock()
	if cmd == nil {
		return nil
	}

	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("stopping worker: %w", err)
	}
	<-done
	s.log.Info("worker stopped")
	return nil
}

// Running reports whether a worker process is currently managed.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cmd != nil
}
