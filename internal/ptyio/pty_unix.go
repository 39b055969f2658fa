//go:build !windows

package ptyio

import (
	"errors"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/creack/pty"
)

type unixPty struct {
	cmd  *exec.Cmd
	ptmx *os.File

	mu       sync.Mutex
	exited   bool
	exitCode int
	waitErr  error
	waitOnce sync.Once
	waitCh   chan struct{}
}

// Create spawns opts.Command under a new pseudo-terminal of the given size.
func Create(opts Options) (PTY, error) {
	cmd := exec.Command(opts.Command, opts.Arguments...)
	cmd.Dir = opts.WorkingDirectory
	cmd.Env = mergeEnv(os.Environ(), opts.Environment)

	size := &pty.Winsize{
		Cols: uint16(opts.Columns),
		Rows: uint16(opts.Rows),
	}
	ptmx, err := pty.StartWithSize(cmd, size)
	if err != nil {
		return nil, &PtyCreateError{Command: opts.Command, Err: err}
	}

	p := &unixPty{cmd: cmd, ptmx: ptmx, waitCh: make(chan struct{})}
	go p.reap()
	return p, nil
}

func (p *unixPty) reap() {
	err := p.cmd.Wait()
	code := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
				switch {
				case status.Exited():
					code = status.ExitStatus()
				case status.Signaled():
					code = 128 + int(status.Signal())
				}
			}
		}
	}
	p.mu.Lock()
	p.exited = true
	p.exitCode = code
	p.waitErr = err
	p.mu.Unlock()
	close(p.waitCh)
}

// Read returns 0, nil on EIO/EPIPE (the child's side of the pty closed),
// translating the platform error into the plain EOF signal callers expect.
func (p *unixPty) Read(buf []byte) (int, error) {
	n, err := p.ptmx.Read(buf)
	if err != nil && isBrokenPipe(err) {
		return 0, nil
	}
	return n, err
}

// Write fully writes buf, retrying on short writes.
func (p *unixPty) Write(buf []byte) error {
	for len(buf) > 0 {
		n, err := p.ptmx.Write(buf)
		if err != nil {
			return err
		}
		buf = buf[n:]
	}
	return nil
}

func (p *unixPty) Resize(cols, rows int) error {
	return pty.Setsize(p.ptmx, &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)})
}

func (p *unixPty) Kill(force bool) error {
	if p.cmd.Process == nil {
		return nil
	}
	if force {
		return p.cmd.Process.Signal(syscall.SIGKILL)
	}
	return p.cmd.Process.Signal(syscall.SIGTERM)
}

func (p *unixPty) WaitForExit() (int, error) {
	<-p.waitCh
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode, nil
}

func (p *unixPty) ProcessID() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

func (p *unixPty) HasExited() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exited
}

func (p *unixPty) ExitCode() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode, p.exited
}

func (p *unixPty) Close() error {
	return p.ptmx.Close()
}

func isBrokenPipe(err error) bool {
	return errors.Is(err, syscall.EIO) || errors.Is(err, syscall.EPIPE)
}
