package session

import (
	"io"
	"sync"
)

// fakePty is a deterministic ptyio.PTY test double: Feed() pushes bytes a
// test wants the session's pump to observe, and ExitWith() (or Kill)
// simulates the child process ending; Close() does nothing.
type fakePty struct {
	mu       sync.Mutex
	pending  [][]byte
	cond     *sync.Cond
	closed   bool
	exitCode int

	written [][]byte
	resizes [][2]int
	killed  []bool
}

func newFakePty() *fakePty {
	p := &fakePty{}
	p.cond = sync.NewCond(&p.mu)
	return p
}

func (p *fakePty) Feed(b []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = append(p.pending, append([]byte(nil), b...))
	p.cond.Broadcast()
}

func (p *fakePty) ExitWith(code int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exitCode = code
	p.closed = true
	p.cond.Broadcast()
}

func (p *fakePty) Read(buf []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.pending) == 0 && !p.closed {
		p.cond.Wait()
	}
	if len(p.pending) == 0 {
		return 0, nil
	}
	chunk := p.pending[0]
	p.pending = p.pending[1:]
	n := copy(buf, chunk)
	if n < len(chunk) {
		p.pending = append([][]byte{chunk[n:]}, p.pending...)
	}
	return n, nil
}

func (p *fakePty) Write(buf []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.written = append(p.written, append([]byte(nil), buf...))
	return nil
}

func (p *fakePty) Resize(cols, rows int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resizes = append(p.resizes, [2]int{cols, rows})
	return nil
}

func (p *fakePty) Kill(force bool) error {
	p.mu.Lock()
	p.killed = append(p.killed, force)
	p.mu.Unlock()
	p.ExitWith(0)
	return nil
}

func (p *fakePty) WaitForExit() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for !p.closed {
		p.cond.Wait()
	}
	return p.exitCode, nil
}

func (p *fakePty) ProcessID() int { return 4242 }

func (p *fakePty) HasExited() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *fakePty) ExitCode() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode, p.closed
}

func (p *fakePty) Close() error { return nil }

var _ io.Closer = (*fakePty)(nil)
