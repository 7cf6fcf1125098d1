//go:build !windows

// Package daemon implements spec.md §6's process model: self re-exec into
// a detached background process, then (in the detached child) umask,
// chdir, and stdio redirection before the kernel bridge main loop starts.
package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"

	"golang.org/x/sys/unix"
)

// Options controls where the background process records its PID and logs.
type Options struct {
	PIDFile string
	LogFile string
}

// Running reports whether the process recorded in pidFile is still alive.
func Running(pidFile string) (pid int, alive bool) {
	data, err := os.ReadFile(pidFile)
	if err != nil {
		return 0, false
	}
	if _, err := fmt.Sscanf(string(data), "%d", &pid); err != nil {
		return 0, false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return 0, false
	}
	if err := proc.Signal(syscall.Signal(0)); err != nil {
		return 0, false
	}
	return pid, true
}

// Start re-execs the current binary with --foreground appended to args,
// detaches it into its own session, and redirects its stdio to LogFile.
// It is called from the parent CLI invocation and returns once the child
// has been launched (not once it has finished mounting).
func Start(opts Options, foregroundArgs []string) (*os.Process, error) {
	if opts.PIDFile != "" {
		if pid, alive := Running(opts.PIDFile); alive {
			return nil, fmt.Errorf("daemon: already running (PID %d)", pid)
		}
		_ = os.Remove(opts.PIDFile)
	}

	executable, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("daemon: resolve executable: %w", err)
	}

	cmd := exec.Command(executable, foregroundArgs...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if opts.LogFile != "" {
		logHandle, err := os.OpenFile(opts.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("daemon: open log file: %w", err)
		}
		defer logHandle.Close()
		cmd.Stdout = logHandle
		cmd.Stderr = logHandle
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("daemon: start background process: %w", err)
	}
	return cmd.Process, nil
}

// EnterForeground performs the detached child's side of spec.md §6's
// process model: set umask 022, chdir to the filesystem root, redirect
// stdio to /dev/null, and record the PID file. The returned cleanup
// removes the PID file and should be deferred by the caller.
func EnterForeground(pidFile string) (cleanup func(), err error) {
	unix.Umask(0o022)

	if err := os.Chdir("/"); err != nil {
		return nil, fmt.Errorf("daemon: chdir: %w", err)
	}

	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("daemon: open %s: %w", os.DevNull, err)
	}
	os.Stdin = devNull
	os.Stdout = devNull
	os.Stderr = devNull

	if pidFile != "" {
		if err := os.MkdirAll(filepath.Dir(pidFile), 0755); err != nil {
			return nil, fmt.Errorf("daemon: create pid file directory: %w", err)
		}
		if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d", os.Getpid())), 0644); err != nil {
			return nil, fmt.Errorf("daemon: write pid file: %w", err)
		}
	}

	return func() {
		if pidFile != "" {
			_ = os.Remove(pidFile)
		}
	}, nil
}
