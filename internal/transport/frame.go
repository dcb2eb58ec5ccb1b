package transport

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	frameHeaderLen = 4
	// MaxFrameLen bounds the payload size a peer may announce.
	MaxFrameLen = 64 << 20
)

func encodeFrame(payload []byte) ([]byte, error) {
	if len(payload) > MaxFrameLen {
		return nil, fmt.Errorf("%w: %d", ErrFrameTooLarge, len(payload))
	}

	frame := make([]byte, frameHeaderLen+len(payload))
	// #nosec G115 -- length is bounded by MaxFrameLen above.
	binary.BigEndian.PutUint32(frame[:frameHeaderLen], uint32(len(payload)))
	copy(frame[frameHeaderLen:], payload)

	return frame, nil
}

// frameReader decodes length-prefixed frames and keeps partial progress
// between calls, so a read deadline firing mid-frame does not lose bytes.
type frameReader struct {
	r io.Reader

	header  [frameHeaderLen]byte
	headerN int
	sized   bool
	payload []byte
	payN    int
}

func newFrameReader(r io.Reader) *frameReader {
	return &frameReader{r: r}
}

func (f *frameReader) next() ([]byte, error) {
	for f.headerN < frameHeaderLen {
		n, err := f.r.Read(f.header[f.headerN:])
		f.headerN += n
		if f.headerN == frameHeaderLen {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read frame length: %w", err)
		}
	}

	if !f.sized {
		ln := binary.BigEndian.Uint32(f.header[:])
		if ln > MaxFrameLen {
			return nil, fmt.Errorf("%w: %d", ErrFrameTooLarge, ln)
		}
		f.payload = make([]byte, ln)
		f.payN = 0
		f.sized = true
	}

	for f.payN < len(f.payload) {
		n, err := f.r.Read(f.payload[f.payN:])
		f.payN += n
		if f.payN == len(f.payload) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read frame payload: %w", err)
		}
	}

	out := f.payload
	f.reset()

	return out, nil
}

// pending reports whether a frame has been partially consumed.
func (f *frameReader) pending() bool {
	return f.headerN > 0
}

func (f *frameReader) reset() {
	f.headerN = 0
	f.sized = false
	f.payload = nil
	f.payN = 0
}
