//go:build !windows

package ptyio

import (
	"strings"
	"testing"
	"time"
)

func TestCreateReadWrite(t *testing.T) {
	p, err := Create(Options{
		Command:   "/bin/cat",
		Columns:   80,
		Rows:      24,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer p.Close()

	if err := p.Write([]byte("hello\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	buf := make([]byte, 256)
	done := make(chan struct{})
	var n int
	var readErr error
	go func() {
		n, readErr = p.Read(buf)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for pty output")
	}
	if readErr != nil {
		t.Fatalf("Read: %v", readErr)
	}
	if !strings.Contains(string(buf[:n]), "hello") {
		t.Errorf("output = %q, want to contain %q", string(buf[:n]), "hello")
	}

	if err := p.Kill(true); err != nil {
		t.Fatalf("Kill: %v", err)
	}
	code, err := p.WaitForExit()
	if err != nil {
		t.Fatalf("WaitForExit: %v", err)
	}
	if !p.HasExited() {
		t.Errorf("HasExited = false after WaitForExit")
	}
	if code == 0 {
		t.Logf("exit code = %d (killed process typically reports 128+signal)", code)
	}
}

func TestResize(t *testing.T) {
	p, err := Create(Options{Command: "/bin/cat", Columns: 80, Rows: 24})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer p.Close()
	defer p.Kill(true)

	if err := p.Resize(100, 40); err != nil {
		t.Errorf("Resize: %v", err)
	}
}

func TestProcessIDNonZero(t *testing.T) {
	p, err := Create(Options{Command: "/bin/cat", Columns: 80, Rows: 24})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer p.Close()
	defer p.Kill(true)

	if p.ProcessID() == 0 {
		t.Errorf("ProcessID = 0, want non-zero")
	}
}

func TestMergeEnvOverridesDuplicateKeys(t *testing.T) {
	base := []string{"PATH=/usr/bin", "HOME=/root"}
	merged := mergeEnv(base, []string{"HOME=/custom", "FOO=bar"})
	want := map[string]string{"PATH": "/usr/bin", "HOME": "/custom", "FOO": "bar"}
	if len(merged) != 3 {
		t.Fatalf("merged = %v, want 3 entries", merged)
	}
	got := map[string]string{}
	for _, kv := range merged {
		k, v, _ := splitEnv(kv)
		got[k] = v
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("merged[%q] = %q, want %q", k, got[k], v)
		}
	}
}
