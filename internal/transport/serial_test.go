package transport

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

// trickleReader returns at most one byte per call and zero bytes every other
// call, like a serial port hitting its read timeout.
type trickleReader struct {
	data []byte
	tick bool
}

func (r *trickleReader) Read(p []byte) (int, error) {
	r.tick = !r.tick
	if r.tick || len(r.data) == 0 {
		return 0, nil
	}
	p[0] = r.data[0]
	r.data = r.data[1:]

	return 1, nil
}

func TestReadFullContextHandlesTimeouts(t *testing.T) {
	frame, err := encodeFrame([]byte{0x6F, 0x20})
	if err != nil {
		t.Fatalf("encode frame: %v", err)
	}
	r := &trickleReader{data: frame}

	got, err := readFrame(func(buf []byte) error {
		return readFullContext(context.Background(), r, buf)
	})
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if !bytes.Equal(got, []byte{0x6F, 0x20}) {
		t.Fatalf("payload mismatch: got % X", got)
	}
}

func TestReadFullContextStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := readFullContext(ctx, &trickleReader{}, make([]byte, 1))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

type chunkWriter struct {
	bytes.Buffer
	max int
}

func (w *chunkWriter) Write(p []byte) (int, error) {
	if len(p) > w.max {
		p = p[:w.max]
	}

	return w.Buffer.Write(p)
}

func TestWriteFullWritesEverything(t *testing.T) {
	w := &chunkWriter{max: 3}
	payload := []byte{0xA4, 0x01, 0x4A, 0x00, 0xEF}

	if err := writeFull(context.Background(), w, payload); err != nil {
		t.Fatalf("write full: %v", err)
	}
	if !bytes.Equal(w.Bytes(), payload) {
		t.Fatalf("written mismatch: got % X", w.Bytes())
	}
}

func TestSerialTransportValidation(t *testing.T) {
	if err := NewSerialTransport("", 115200).Connect(context.Background()); err == nil {
		t.Fatalf("expected error for empty port")
	}
	if err := NewSerialTransport("/dev/null", 0).Connect(context.Background()); err == nil {
		t.Fatalf("expected error for bad baud")
	}

	tr := NewSerialTransport("/dev/ttyUSB0", 115200)
	if got := tr.StatusTarget(); got != "/dev/ttyUSB0@115200" {
		t.Fatalf("unexpected status target: %q", got)
	}
	if err := tr.WriteFrame(context.Background(), []byte{0x4A, 0x00}); !errors.Is(err, errNotConnected) {
		t.Fatalf("expected not connected, got %v", err)
	}
}
