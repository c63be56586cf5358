package stomp

import (
	"bufio"
	"bytes"
	"testing"
)

func TestCodecRoundTrip(t *testing.T) {
	f := NewFrame(CmdSend, HeaderDestination, "/queue/work")
	f.WithBody([]byte("hello"))

	var buf bytes.Buffer
	w := NewCodec(nil, bufio.NewWriter(&buf))
	if err := w.WriteFrame(f); err != nil {
		t.Fatalf("write: %v", err)
	}

	r := NewCodec(bufio.NewReader(&buf), nil)
	got, err := r.ReadFrame()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	if got.Command != CmdSend {
		t.Fatalf("command: got %q, want %q", got.Command, CmdSend)
	}
	if dest, _ := got.Contains(HeaderDestination); dest != "/queue/work" {
		t.Fatalf("destination: got %q", dest)
	}
	if string(got.Body) != "hello" {
		t.Fatalf("body: got %q", got.Body)
	}
	if cl, _ := got.ContentLength(); cl != "5" {
		t.Fatalf("content-length: got %q, want 5", cl)
	}
}

func TestCodecReadBodyWithoutContentLength(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("SEND\ndestination:/queue/x\n\nbody-text\x00\n")

	r := NewCodec(bufio.NewReader(&buf), nil)
	f, err := r.ReadFrame()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(f.Body) != "body-text" {
		t.Fatalf("body: got %q", f.Body)
	}
}

func TestCodecSkipsBlankHeartbeatLines(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("\n\nCONNECT\n\n\x00\n")

	r := NewCodec(bufio.NewReader(&buf), nil)
	f, err := r.ReadFrame()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if f.Command != CmdConnect {
		t.Fatalf("command: got %q", f.Command)
	}
}

func TestCodecTrailingNewlineOptional(t *testing.T) {
	f := NewFrame(CmdConnected, HeaderSession, "1")
	var buf bytes.Buffer
	w := NewCodec(nil, bufio.NewWriter(&buf))
	w.TrailingNewline = false
	if err := w.WriteFrame(f); err != nil {
		t.Fatalf("write: %v", err)
	}
	if bytes.HasSuffix(buf.Bytes(), []byte("\x00\n")) {
		t.Fatal("expected no trailing newline after NUL")
	}
	if !bytes.HasSuffix(buf.Bytes(), []byte{0}) {
		t.Fatal("expected frame to end in NUL")
	}
}
