package transport

import (
	"bytes"
	"testing"
)

func TestFramerRoundTrip(t *testing.T) {
	buf := &bytes.Buffer{}
	framer := NewFramer(buf)

	msgs := [][]byte{
		[]byte("hello"),
		[]byte(`{"type":"put"}`),
		bytes.Repeat([]byte("x"), 4096),
	}

	for _, m := range msgs {
		if err := framer.WriteFrame(m); err != nil {
			t.Fatalf("WriteFrame failed: %v", err)
		}
	}

	for i, want := range msgs {
		got, err := framer.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame %d failed: %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("frame %d: got %q, want %q", i, got, want)
		}
	}
}

func TestFrameWriterRejectsEmpty(t *testing.T) {
	buf := &bytes.Buffer{}
	framer := NewFramer(buf)

	if err := framer.WriteFrame(nil); err != ErrMessageEmpty {
		t.Fatalf("expected ErrMessageEmpty, got %v", err)
	}
}

func TestFrameWriterRejectsOversize(t *testing.T) {
	buf := &bytes.Buffer{}
	framer := NewFramerWithMaxSize(buf, 16)

	err := framer.WriteFrame(bytes.Repeat([]byte("a"), 17))
	if err == nil {
		t.Fatal("expected an error for an oversize frame")
	}
}

func TestFrameReaderRejectsTruncatedFrame(t *testing.T) {
	buf := &bytes.Buffer{}
	framer := NewFramer(buf)
	if err := framer.WriteFrame([]byte("hello world")); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}

	full := buf.Bytes()
	truncated := bytes.NewReader(full[:len(full)-3])
	reader := NewFrameReader(truncated)

	if _, err := reader.ReadFrame(); err != ErrFrameTruncated {
		t.Fatalf("expected ErrFrameTruncated, got %v", err)
	}
}
