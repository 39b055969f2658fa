//go:build windows

package ptyio

import (
	"fmt"
	"os"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	kernel32                      = windows.NewLazySystemDLL("kernel32.dll")
	procCreatePseudoConsole       = kernel32.NewProc("CreatePseudoConsole")
	procResizePseudoConsole       = kernel32.NewProc("ResizePseudoConsole")
	procClosePseudoConsole        = kernel32.NewProc("ClosePseudoConsole")
	procInitializeProcThreadAttr  = kernel32.NewProc("InitializeProcThreadAttributeList")
	procUpdateProcThreadAttr      = kernel32.NewProc("UpdateProcThreadAttribute")
	procDeleteProcThreadAttr      = kernel32.NewProc("DeleteProcThreadAttributeList")
)

const procThreadAttributePseudoConsole = 0x00020016

type windowsPty struct {
	hpc        windows.Handle
	outRead    windows.Handle
	inWrite    windows.Handle
	outWriteCh windows.Handle // write end handed to ConPTY, closed after spawn
	inReadCh   windows.Handle // read end handed to ConPTY, closed after spawn

	proc windows.Handle
	pid  int

	mu       sync.Mutex
	exited   bool
	exitCode int
	waitCh   chan struct{}
}

func coord(cols, rows int) uintptr {
	type coordT struct{ X, Y int16 }
	c := coordT{X: int16(cols), Y: int16(rows)}
	return uintptr(*(*uint32)(unsafe.Pointer(&c)))
}

// Create spawns opts.Command attached to a new ConPTY pseudo-console.
func Create(opts Options) (PTY, error) {
	var inRead, inWrite, outRead, outWrite windows.Handle
	if err := windows.CreatePipe(&inRead, &inWrite, nil, 0); err != nil {
		return nil, &PtyCreateError{Command: opts.Command, Err: err}
	}
	if err := windows.CreatePipe(&outRead, &outWrite, nil, 0); err != nil {
		return nil, &PtyCreateError{Command: opts.Command, Err: err}
	}

	var hpc windows.Handle
	ret, _, _ := procCreatePseudoConsole.Call(
		coord(opts.Columns, opts.Rows),
		uintptr(inRead),
		uintptr(outWrite),
		0,
		uintptr(unsafe.Pointer(&hpc)),
	)
	if ret != 0 {
		return nil, &PtyCreateError{Command: opts.Command, Err: fmt.Errorf("CreatePseudoConsole failed: 0x%x", ret)}
	}

	var attrListSize uintptr
	procInitializeProcThreadAttr.Call(0, 1, 0, uintptr(unsafe.Pointer(&attrListSize)))
	attrList := make([]byte, attrListSize)
	procInitializeProcThreadAttr.Call(
		uintptr(unsafe.Pointer(&attrList[0])), 1, 0, uintptr(unsafe.Pointer(&attrListSize)),
	)
	procUpdateProcThreadAttr.Call(
		uintptr(unsafe.Pointer(&attrList[0])), 0,
		procThreadAttributePseudoConsole,
		uintptr(hpc), unsafe.Sizeof(hpc), 0, 0,
	)

	cmdLine := buildCommandLine(opts.Command, opts.Arguments)
	env := mergeEnv(os.Environ(), opts.Environment)

	var si windows.StartupInfoEx
	si.StartupInfo.Cb = uint32(unsafe.Sizeof(si))
	si.ProcThreadAttributeList = (*windows.ProcThreadAttributeListContainer)(unsafe.Pointer(&attrList[0]))

	var pi windows.ProcessInformation
	cmdLinePtr, err := windows.UTF16PtrFromString(cmdLine)
	if err != nil {
		return nil, &PtyCreateError{Command: opts.Command, Err: err}
	}
	envBlock := buildEnvBlock(env)
	var cwdPtr *uint16
	if opts.WorkingDirectory != "" {
		cwdPtr, _ = windows.UTF16PtrFromString(opts.WorkingDirectory)
	}

	err = windows.CreateProcess(
		nil, cmdLinePtr, nil, nil, false,
		windows.EXTENDED_STARTUPINFO_PRESENT|windows.CREATE_UNICODE_ENVIRONMENT,
		envBlock, cwdPtr, &si.StartupInfo, &pi,
	)
	if err != nil {
		procClosePseudoConsole.Call(uintptr(hpc))
		return nil, &PtyCreateError{Command: opts.Command, Err: err}
	}

	windows.CloseHandle(inRead)
	windows.CloseHandle(outWrite)

	p := &windowsPty{
		hpc:      hpc,
		outRead:  outRead,
		inWrite:  inWrite,
		proc:     pi.Process,
		pid:      int(pi.ProcessId),
		waitCh:   make(chan struct{}),
	}
	windows.CloseHandle(pi.Thread)
	go p.reap()
	return p, nil
}

func buildCommandLine(command string, args []string) string {
	line := windows.EscapeArg(command)
	for _, a := range args {
		line += " " + windows.EscapeArg(a)
	}
	return line
}

func buildEnvBlock(env []string) *uint16 {
	var block []uint16
	for _, e := range env {
		block = append(block, windows.StringToUTF16(e)...)
	}
	block = append(block, 0)
	return &block[0]
}

func (p *windowsPty) reap() {
	windows.WaitForSingleObject(p.proc, windows.INFINITE)
	var code uint32
	windows.GetExitCodeProcess(p.proc, &code)
	p.mu.Lock()
	p.exited = true
	p.exitCode = int(code)
	p.mu.Unlock()
	close(p.waitCh)
}

func (p *windowsPty) Read(buf []byte) (int, error) {
	var n uint32
	err := windows.ReadFile(p.outRead, buf, &n, nil)
	if err != nil {
		if err == windows.ERROR_BROKEN_PIPE {
			return 0, nil
		}
		return 0, err
	}
	return int(n), nil
}

func (p *windowsPty) Write(buf []byte) error {
	for len(buf) > 0 {
		var n uint32
		if err := windows.WriteFile(p.inWrite, buf, &n, nil); err != nil {
			return err
		}
		buf = buf[n:]
	}
	return nil
}

func (p *windowsPty) Resize(cols, rows int) error {
	ret, _, _ := procResizePseudoConsole.Call(uintptr(p.hpc), coord(cols, rows))
	if ret != 0 {
		return fmt.Errorf("ResizePseudoConsole failed: 0x%x", ret)
	}
	return nil
}

// Kill always unconditionally terminates: ConPTY has no SIGTERM equivalent.
func (p *windowsPty) Kill(force bool) error {
	return windows.TerminateProcess(p.proc, 1)
}

func (p *windowsPty) WaitForExit() (int, error) {
	<-p.waitCh
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode, nil
}

func (p *windowsPty) ProcessID() int { return p.pid }

func (p *windowsPty) HasExited() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exited
}

func (p *windowsPty) ExitCode() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode, p.exited
}

func (p *windowsPty) Close() error {
	procClosePseudoConsole.Call(uintptr(p.hpc))
	windows.CloseHandle(p.outRead)
	windows.CloseHandle(p.inWrite)
	windows.CloseHandle(p.proc)
	return nil
}

