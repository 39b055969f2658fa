package vtparser

import (
	"reflect"
	"testing"
)

// recorder implements Handler and records every dispatch call for assertions.
type recorder struct {
	prints    []rune
	executes  []byte
	csis      []csiCall
	escs      []escCall
	oscs      []oscCall
	dcsHooks  []dcsHookCall
	dcsPuts   []byte
	dcsUnhook int
}

type csiCall struct {
	params  []int
	unset   []bool
	private byte
	inter   string
	final   byte
}

type escCall struct {
	inter string
	final byte
}

type oscCall struct {
	command int
	data    string
}

type dcsHookCall struct {
	params []int
	inter  string
	final  byte
}

func (r *recorder) Print(c rune)  { r.prints = append(r.prints, c) }
func (r *recorder) Execute(b byte) { r.executes = append(r.executes, b) }

func (r *recorder) CSIDispatch(p *Params, private byte, inter []byte, final byte) {
	vals := make([]int, p.Len())
	unset := make([]bool, p.Len())
	for i := 0; i < p.Len(); i++ {
		vals[i] = p.Get(i, -1)
		unset[i] = p.IsUnset(i)
	}
	r.csis = append(r.csis, csiCall{vals, unset, private, string(inter), final})
}

func (r *recorder) ESCDispatch(inter []byte, final byte) {
	r.escs = append(r.escs, escCall{string(inter), final})
}

func (r *recorder) OSCDispatch(command int, data []byte) {
	r.oscs = append(r.oscs, oscCall{command, string(data)})
}

func (r *recorder) DCSHook(p *Params, inter []byte, final byte) {
	vals := make([]int, p.Len())
	for i := 0; i < p.Len(); i++ {
		vals[i] = p.Get(i, -1)
	}
	r.dcsHooks = append(r.dcsHooks, dcsHookCall{vals, string(inter), final})
}
func (r *recorder) DCSPut(b byte) { r.dcsPuts = append(r.dcsPuts, b) }
func (r *recorder) DCSUnhook()    { r.dcsUnhook++ }

func TestPrintASCII(t *testing.T) {
	rec := &recorder{}
	New(rec).Feed([]byte("Hi!"))
	if got := string(rec.prints); got != "Hi!" {
		t.Errorf("prints = %q, want %q", got, "Hi!")
	}
}

func TestExecuteC0(t *testing.T) {
	rec := &recorder{}
	New(rec).Feed([]byte{'A', '\n', '\r', 'B'})
	if !reflect.DeepEqual(rec.executes, []byte{'\n', '\r'}) {
		t.Errorf("executes = %v", rec.executes)
	}
	if string(rec.prints) != "AB" {
		t.Errorf("prints = %q", string(rec.prints))
	}
}

func TestCSIDispatchBasic(t *testing.T) {
	rec := &recorder{}
	New(rec).Feed([]byte("\x1b[1;31mA"))
	if len(rec.csis) != 1 {
		t.Fatalf("csis = %d, want 1", len(rec.csis))
	}
	c := rec.csis[0]
	if c.final != 'm' || !reflect.DeepEqual(c.params, []int{1, 31}) {
		t.Errorf("csi = %+v", c)
	}
	if string(rec.prints) != "A" {
		t.Errorf("prints = %q", string(rec.prints))
	}
}

func TestCSIPrivateMarker(t *testing.T) {
	rec := &recorder{}
	New(rec).Feed([]byte("\x1b[?25h"))
	if len(rec.csis) != 1 || rec.csis[0].private != '?' || rec.csis[0].final != 'h' {
		t.Errorf("csi = %+v", rec.csis)
	}
}

func TestCSIUnsetParamDefaultsHandledByCaller(t *testing.T) {
	rec := &recorder{}
	New(rec).Feed([]byte("\x1b[;5H"))
	c := rec.csis[0]
	if !c.unset[0] || c.unset[1] {
		t.Errorf("unset = %v", c.unset)
	}
	if c.params[1] != 5 {
		t.Errorf("params = %v", c.params)
	}
}

func TestCSIParamOverflowSlotsIgnoresDispatch(t *testing.T) {
	rec := &recorder{}
	seq := "\x1b["
	for i := 0; i < 20; i++ {
		seq += "1;"
	}
	seq += "1m"
	New(rec).Feed([]byte(seq))
	if len(rec.csis) != 0 {
		t.Errorf("expected no dispatch on param overflow, got %+v", rec.csis)
	}
}

func TestCSIParamValueOverflowIgnoresDispatch(t *testing.T) {
	rec := &recorder{}
	New(rec).Feed([]byte("\x1b[99999999m"))
	if len(rec.csis) != 0 {
		t.Errorf("expected no dispatch on value overflow, got %+v", rec.csis)
	}
	// Parser must recover to Ground and accept further input.
	p2 := New(rec)
	p2.Feed([]byte("\x1b[99999999mA"))
	if string(rec.prints) != "A" {
		t.Errorf("parser did not recover after overflow: prints=%q", string(rec.prints))
	}
}

func TestESCDispatch(t *testing.T) {
	rec := &recorder{}
	New(rec).Feed([]byte("\x1b7"))
	if len(rec.escs) != 1 || rec.escs[0].final != '7' {
		t.Errorf("escs = %+v", rec.escs)
	}
}

func TestESCDispatchWithIntermediate(t *testing.T) {
	rec := &recorder{}
	New(rec).Feed([]byte("\x1b(B"))
	if len(rec.escs) != 1 || rec.escs[0].inter != "(" || rec.escs[0].final != 'B' {
		t.Errorf("escs = %+v", rec.escs)
	}
}

func TestOSCDispatchBEL(t *testing.T) {
	rec := &recorder{}
	New(rec).Feed([]byte("\x1b]2;hello\x07"))
	if len(rec.oscs) != 1 || rec.oscs[0].command != 2 || rec.oscs[0].data != "hello" {
		t.Errorf("oscs = %+v", rec.oscs)
	}
}

func TestOSCDispatchST(t *testing.T) {
	rec := &recorder{}
	New(rec).Feed([]byte("\x1b]2;hello\x1b\\"))
	if len(rec.oscs) != 1 || rec.oscs[0].command != 2 || rec.oscs[0].data != "hello" {
		t.Errorf("oscs = %+v", rec.oscs)
	}
}

func TestOSCEscapeNotStRecoversAsEscape(t *testing.T) {
	rec := &recorder{}
	// ESC inside OSC not followed by '\' means a new escape sequence began.
	New(rec).Feed([]byte("\x1b]2;hello\x1b7"))
	if len(rec.oscs) != 0 {
		t.Errorf("unexpected OSC dispatch: %+v", rec.oscs)
	}
	if len(rec.escs) != 1 || rec.escs[0].final != '7' {
		t.Errorf("escs = %+v", rec.escs)
	}
}

func TestDCSHookPutUnhook(t *testing.T) {
	rec := &recorder{}
	New(rec).Feed([]byte("\x1bP1$qhello\x1b\\"))
	if len(rec.dcsHooks) != 1 || rec.dcsHooks[0].final != 'q' {
		t.Errorf("hooks = %+v", rec.dcsHooks)
	}
	if string(rec.dcsPuts) != "hello" {
		t.Errorf("puts = %q", string(rec.dcsPuts))
	}
	if rec.dcsUnhook != 1 {
		t.Errorf("unhook count = %d", rec.dcsUnhook)
	}
}

func TestUTF8SplitAcrossFeeds(t *testing.T) {
	rec := &recorder{}
	p := New(rec)
	euro := []byte{0xE2, 0x82, 0xAC} // U+20AC split across 3 feeds
	p.Feed(euro[:1])
	p.Feed(euro[1:2])
	p.Feed(euro[2:3])
	if len(rec.prints) != 1 || rec.prints[0] != '€' {
		t.Errorf("prints = %v", rec.prints)
	}
}

func TestUTF8Invalid(t *testing.T) {
	rec := &recorder{}
	New(rec).Feed([]byte{0xFF, 'A'})
	if len(rec.prints) != 2 || rec.prints[0] != 0xFFFD || rec.prints[1] != 'A' {
		t.Errorf("prints = %v", rec.prints)
	}
}

func TestChunkInvariance(t *testing.T) {
	input := []byte("\x1b[1;31mHello\x1b]0;title\x07World\x1b[2J")
	rec1 := &recorder{}
	New(rec1).Feed(input)

	rec2 := &recorder{}
	p2 := New(rec2)
	for i := range input {
		p2.Feed(input[i : i+1])
	}

	if string(rec1.prints) != string(rec2.prints) {
		t.Errorf("prints differ: %q vs %q", string(rec1.prints), string(rec2.prints))
	}
	if !reflect.DeepEqual(rec1.csis, rec2.csis) {
		t.Errorf("csis differ: %+v vs %+v", rec1.csis, rec2.csis)
	}
	if !reflect.DeepEqual(rec1.oscs, rec2.oscs) {
		t.Errorf("oscs differ: %+v vs %+v", rec1.oscs, rec2.oscs)
	}
}

func TestCANAbortsSequence(t *testing.T) {
	rec := &recorder{}
	New(rec).Feed([]byte("\x1b[1;3\x18A"))
	if len(rec.csis) != 0 {
		t.Errorf("expected aborted CSI, got %+v", rec.csis)
	}
	if string(rec.prints) != "A" {
		t.Errorf("prints = %q", string(rec.prints))
	}
}
