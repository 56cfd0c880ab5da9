// Package daemon supervises the resident service across process
// boundaries. The only coordination primitive is a pid file published
// atomically by the resident process itself; liveness is always verified
// with a signal probe, never assumed from the file's presence.
package daemon

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// ErrAlreadyRunning means another live resident process holds the handle.
var ErrAlreadyRunning = errors.New("service is already running")

// State describes the resident service lifecycle as seen from outside.
type State int

const (
	// Absent: no handle and no process.
	Absent State = iota
	// Starting: a process was launched but has not published its handle yet.
	Starting
	// Running: the handle names a live process.
	Running
	// Stale: the handle names a dead process; the next start cleans it up.
	Stale
)

func (s State) String() string {
	switch s {
	case Absent:
		return "absent"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stale:
		return "stale"
	}
	return "unknown"
}

// Supervisor manages the resident service handle at PIDPath. The zero
// value is not usable; construct with New.
type Supervisor struct {
	PIDPath string
	LogPath string

	// spawn launches the resident process and returns its pid. Overridden
	// in tests.
	spawn func(logPath string) (int, error)

	// handleWait bounds how long EnsureRunning waits for a freshly
	// launched process to publish its handle.
	handleWait time.Duration
	pollStep   time.Duration
}

// New returns a Supervisor for the handle at pidPath. The resident
// process's output is appended to logPath.
func New(pidPath, logPath string) *Supervisor {
	return &Supervisor{
		PIDPath:    pidPath,
		LogPath:    logPath,
		spawn:      startResident,
		handleWait: 2 * time.Second,
		pollStep:   50 * time.Millisecond,
	}
}

// Inspect reads the handle and probes the recorded process. It returns the
// observed state and the pid from the handle, if any.
func (s *Supervisor) Inspect() (State, int) {
	pid, err := s.readPID()
	if err != nil {
		if os.IsNotExist(err) {
			return Absent, 0
		}
		// Unreadable or garbage handle: treat like a crash leftover.
		return Stale, 0
	}

	if processAlive(pid) {
		return Running, pid
	}
	return Stale, pid
}

// EnsureRunning makes sure exactly one resident process exists, launching
// one if the handle is absent or stale. It returns the pid of the live
// service and whether this call started it.
//
// The caller does not wait for the new process to finish initializing; it
// only waits for the handle to appear. Failures after that point (for
// example a port already in use) surface in the service log.
func (s *Supervisor) EnsureRunning() (int, bool, error) {
	state, pid := s.Inspect()
	switch state {
	case Running:
		return pid, false, nil
	case Stale:
		if err := os.Remove(s.PIDPath); err != nil && !os.IsNotExist(err) {
			return 0, false, fmt.Errorf("failed to remove stale handle: %w", err)
		}
	}

	childPID, err := s.spawn(s.LogPath)
	if err != nil {
		return 0, false, fmt.Errorf("failed to start service: %w", err)
	}

	// The child publishes its own pid as its first durable action; wait
	// for that rather than trusting the pid we spawned, since a
	// concurrent invocation may have won the race.
	deadline := time.Now().Add(s.handleWait)
	for time.Now().Before(deadline) {
		if state, pid := s.Inspect(); state == Running {
			return pid, true, nil
		}
		time.Sleep(s.pollStep)
	}

	return childPID, true, fmt.Errorf("service (pid %d) has not published a handle; check %s", childPID, s.LogPath)
}

// Stop terminates the resident process if one is alive and removes the
// handle unconditionally. Stopping an already-stopped service is not an
// error.
func (s *Supervisor) Stop() (bool, error) {
	pid, err := s.readPID()
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		// Garbage handle: just clear it.
		return false, s.removeHandle()
	}

	stopped := false
	if processAlive(pid) {
		proc, err := os.FindProcess(pid)
		if err == nil {
			if err := proc.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
				return false, fmt.Errorf("failed to signal pid %d: %w", pid, err)
			}
			stopped = true
		}
	}

	return stopped, s.removeHandle()
}

func (s *Supervisor) removeHandle() error {
	if err := os.Remove(s.PIDPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove handle: %w", err)
	}
	return nil
}

func (s *Supervisor) readPID() (int, error) {
	data, err := os.ReadFile(s.PIDPath)
	if err != nil {
		return 0, err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("malformed handle %s", s.PIDPath)
	}
	return pid, nil
}

// Handle is an acquired claim on being the resident process. Release it on
// shutdown.
type Handle struct {
	path string
	pid  int
}

// Acquire publishes the calling process's pid as the resident handle. The
// publication is atomic: if a live process already holds the handle,
// ErrAlreadyRunning is returned and the existing handle is left untouched.
// A handle held by a dead process is replaced.
func (s *Supervisor) Acquire() (*Handle, error) {
	pid := os.Getpid()

	dir := filepath.Dir(s.PIDPath)
	tmp, err := os.CreateTemp(dir, ".peekfs.pid.*")
	if err != nil {
		return nil, fmt.Errorf("failed to create handle: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := fmt.Fprintf(tmp, "%d\n", pid); err != nil {
		_ = tmp.Close()
		return nil, fmt.Errorf("failed to write handle: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to write handle: %w", err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		err := os.Link(tmpName, s.PIDPath)
		if err == nil {
			return &Handle{path: s.PIDPath, pid: pid}, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to publish handle: %w", err)
		}

		holder, readErr := s.readPID()
		if readErr == nil && processAlive(holder) {
			return nil, fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, holder)
		}
		// Dead or unreadable holder: clear it and publish again.
		if err := os.Remove(s.PIDPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to remove stale handle: %w", err)
		}
	}

	return nil, fmt.Errorf("failed to acquire handle at %s", s.PIDPath)
}

// Release removes the handle if this process still owns it. Releasing
// twice, or after the handle was already replaced, is a no-op.
func (h *Handle) Release() error {
	pid, err := readPIDFile(h.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return nil
	}
	if pid != h.pid {
		// Someone else owns the handle now; leave it alone.
		return nil
	}

	if err := os.Remove(h.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove handle: %w", err)
	}
	return nil
}

// PID returns the pid the handle was acquired for.
func (h *Handle) PID() int {
	return h.pid
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, err
	}
	return pid, nil
}

// processAlive probes pid with a null signal. Permission errors count as
// alive: the process exists, it just belongs to someone else.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	return errors.Is(err, syscall.EPERM)
}

// startResident re-executes the current binary as a detached `serve`
// process. The child owns its own session so it survives the CLI exiting,
// and its output goes to the service log.
func startResident(logPath string) (int, error) {
	exe, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("failed to locate executable: %w", err)
	}

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return 0, fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = logFile.Close() }()

	cmd := exec.Command(exe, "serve")
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start service: %w", err)
	}

	pid := cmd.Process.Pid
	_ = cmd.Process.Release()

	return pid, nil
}
