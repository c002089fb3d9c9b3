package container

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// Magic identifies a telemux chunk container. Followed by a single role
// byte, then a sequence of frames.
const Magic = "ZDC1"

// MaxFrameSize bounds a single frame payload after decompression.
const MaxFrameSize = 64 << 20

// CompressionTag identifies the per-frame compression algorithm. Tags are
// protocol constants stored in the frame header; changing them breaks
// container compatibility.
type CompressionTag uint8

const (
	// CompressionNone stores the protobuf payload as-is.
	CompressionNone CompressionTag = 0

	// CompressionZstd stores the payload zstd-compressed. The default for
	// event frames, which are dominated by waveform bytes.
	CompressionZstd CompressionTag = 1
)

func (tag CompressionTag) String() string {
	switch tag {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", tag)
	}
}

// ParseCompressionTag parses a tag from its configuration name.
func ParseCompressionTag(name string) (CompressionTag, error) {
	switch name {
	case "", "none":
		return CompressionNone, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", name)
	}
}

type frameKind uint8

const (
	kindDataStream   frameKind = 1
	kindCameraConfig frameKind = 2
	kindEvent        frameKind = 3
)

// Frame layout: [1 byte kind][1 byte compression tag][uint32 BE length][payload].
func writeFrame(w io.Writer, kind frameKind, tag CompressionTag, enc *zstd.Encoder, payload []byte) error {
	if tag == CompressionZstd {
		payload = enc.EncodeAll(payload, nil)
	}
	if len(payload) > MaxFrameSize {
		return fmt.Errorf("frame too large: %d", len(payload))
	}
	var header [6]byte
	header[0] = byte(kind)
	header[1] = byte(tag)
	binary.BigEndian.PutUint32(header[2:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// readFrame returns the next frame's kind and decompressed payload. A clean
// end of chunk surfaces as io.EOF; a truncated frame as ErrUnexpectedEOF.
func readFrame(r *bufio.Reader, dec *zstd.Decoder) (frameKind, []byte, error) {
	var header [6]byte
	if _, err := io.ReadFull(r, header[:1]); err != nil {
		if err == io.EOF {
			return 0, nil, io.EOF
		}
		return 0, nil, err
	}
	if _, err := io.ReadFull(r, header[1:]); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return 0, nil, err
	}
	kind := frameKind(header[0])
	tag := CompressionTag(header[1])
	sz := binary.BigEndian.Uint32(header[2:])
	if sz > MaxFrameSize {
		return 0, nil, fmt.Errorf("frame too large: %d", sz)
	}
	payload := make([]byte, int(sz))
	if _, err := io.ReadFull(r, payload); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return 0, nil, err
	}

	switch tag {
	case CompressionNone:
	case CompressionZstd:
		var err error
		payload, err = dec.DecodeAll(payload, nil)
		if err != nil {
			return 0, nil, fmt.Errorf("decompress frame: %w", err)
		}
		if len(payload) > MaxFrameSize {
			return 0, nil, fmt.Errorf("frame too large after decompression: %d", len(payload))
		}
	default:
		return 0, nil, fmt.Errorf("unknown compression tag %d", tag)
	}
	return kind, payload, nil
}
