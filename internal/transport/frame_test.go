package transport

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestEncodeFrameWritesBigEndianLength(t *testing.T) {
	frame, err := encodeFrame([]byte("hello"))
	if err != nil {
		t.Fatalf("encode frame: %v", err)
	}
	want := []byte{0x00, 0x00, 0x00, 0x05, 'h', 'e', 'l', 'l', 'o'}
	if !bytes.Equal(frame, want) {
		t.Fatalf("frame mismatch: got %x want %x", frame, want)
	}
}

func TestEncodeFrameAndReadFrameRoundTrip(t *testing.T) {
	payload := []byte("hello")
	frame, err := encodeFrame(payload)
	if err != nil {
		t.Fatalf("encode frame: %v", err)
	}

	got, err := newFrameReader(bytes.NewReader(frame)).next()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload mismatch: got %q want %q", string(got), string(payload))
	}
}

func TestReadFrameAcceptsZeroLength(t *testing.T) {
	got, err := newFrameReader(bytes.NewReader([]byte{0, 0, 0, 0})).next()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty payload, got %x", got)
	}
}

func TestReadFrameReadsConsecutiveFrames(t *testing.T) {
	raw := bytes.NewBuffer([]byte{
		0x00, 0x00, 0x00, 0x02, 0x01, 0x02,
		0x00, 0x00, 0x00, 0x01, 0x03,
	})
	fr := newFrameReader(raw)

	first, err := fr.next()
	if err != nil {
		t.Fatalf("read first frame: %v", err)
	}
	second, err := fr.next()
	if err != nil {
		t.Fatalf("read second frame: %v", err)
	}
	if !bytes.Equal(first, []byte{0x01, 0x02}) || !bytes.Equal(second, []byte{0x03}) {
		t.Fatalf("unexpected frames: %x %x", first, second)
	}
}

func TestReadFrameRejectsOversizedLength(t *testing.T) {
	raw := bytes.NewBuffer([]byte{0xff, 0xff, 0xff, 0xff})

	_, err := newFrameReader(raw).next()
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
}

func TestReadFramePayloadEOF(t *testing.T) {
	raw := bytes.NewBuffer([]byte{
		0x00, 0x00, 0x00, 0x04,
		0x01, 0x02,
	})

	_, err := newFrameReader(raw).next()
	if err == nil {
		t.Fatalf("expected payload read error, got nil")
	}
	if err == io.EOF {
		t.Fatalf("expected wrapped error, got raw io.EOF")
	}
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected wrapped io.EOF, got %v", err)
	}
}

func TestReadFrameResumesAfterInterruptedRead(t *testing.T) {
	interrupt := errors.New("deadline")
	src := &scriptedReader{chunks: []scriptedChunk{
		{data: []byte{0x00, 0x00}},
		{err: interrupt},
		{data: []byte{0x00, 0x03, 'a'}},
		{err: interrupt},
		{data: []byte{'b', 'c'}},
	}}
	fr := newFrameReader(src)

	if _, err := fr.next(); !errors.Is(err, interrupt) {
		t.Fatalf("expected interrupted header read, got %v", err)
	}
	if !fr.pending() {
		t.Fatalf("expected partial frame to be pending")
	}
	if _, err := fr.next(); !errors.Is(err, interrupt) {
		t.Fatalf("expected interrupted payload read, got %v", err)
	}
	got, err := fr.next()
	if err != nil {
		t.Fatalf("resume frame: %v", err)
	}
	if string(got) != "abc" {
		t.Fatalf("expected resumed payload abc, got %q", got)
	}
	if fr.pending() {
		t.Fatalf("expected reader to be reset after a complete frame")
	}
}

type scriptedChunk struct {
	data []byte
	err  error
}

type scriptedReader struct {
	chunks []scriptedChunk
}

func (r *scriptedReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		return 0, io.EOF
	}
	chunk := &r.chunks[0]
	if chunk.err != nil {
		err := chunk.err
		r.chunks = r.chunks[1:]

		return 0, err
	}
	n := copy(p, chunk.data)
	chunk.data = chunk.data[n:]
	if len(chunk.data) == 0 {
		r.chunks = r.chunks[1:]
	}

	return n, nil
}
