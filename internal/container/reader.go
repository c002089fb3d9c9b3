package container

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/golang/protobuf/proto"
	"github.com/klauspost/compress/zstd"

	"telemux/internal/domain"
)

// Header is the run-level metadata captured from the frames preceding the
// first event. Trigger containers carry neither message; telescope
// containers carry both.
type Header struct {
	DataStream   *DataStream
	CameraConfig *CameraConfiguration
}

// File is the tagged result of sniffing a container. Exactly one of
// Telescope and Trigger is set, according to Role; callers pick the variant
// themselves.
type File struct {
	Role      domain.StreamRole
	Telescope *TelescopeReader
	Trigger   *TriggerReader
}

// Close closes whichever reader variant is open.
func (f *File) Close() error {
	switch {
	case f.Telescope != nil:
		return f.Telescope.Close()
	case f.Trigger != nil:
		return f.Trigger.Close()
	}
	return nil
}

// Open sniffs the container preamble and returns the matching reader
// variant.
func Open(path string) (*File, error) {
	role, err := Sniff(path)
	if err != nil {
		return nil, err
	}
	switch role {
	case domain.RoleTelescope:
		r, err := OpenTelescope(path)
		if err != nil {
			return nil, err
		}
		return &File{Role: role, Telescope: r}, nil
	default:
		r, err := OpenTrigger(path)
		if err != nil {
			return nil, err
		}
		return &File{Role: role, Trigger: r}, nil
	}
}

// Sniff reads the container preamble and reports the stream role without
// consuming any frames.
func Sniff(path string) (domain.StreamRole, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var preamble [5]byte
	if _, err := io.ReadFull(f, preamble[:]); err != nil {
		return "", fmt.Errorf("read container preamble of %s: %w", path, err)
	}
	return roleFromPreamble(path, preamble)
}

func roleFromPreamble(path string, preamble [5]byte) (domain.StreamRole, error) {
	if string(preamble[:4]) != Magic {
		return "", fmt.Errorf("%s is not a chunk container (bad magic %q)", path, preamble[:4])
	}
	for role, b := range roleBytes {
		if preamble[4] == b {
			return role, nil
		}
	}
	return "", fmt.Errorf("%s: unknown stream role byte %d", path, preamble[4])
}

// reader is the role-independent part: preamble check, header capture and
// frame iteration.
type reader struct {
	f   *os.File
	br  *bufio.Reader
	dec *zstd.Decoder

	header  Header
	pending []byte

	closed bool
}

func openReader(path string, want domain.StreamRole) (*reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r := &reader{f: f, br: bufio.NewReader(f)}

	var preamble [5]byte
	if _, err := io.ReadFull(r.br, preamble[:]); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("read container preamble of %s: %w", path, err)
	}
	role, err := roleFromPreamble(path, preamble)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if role != want {
		_ = f.Close()
		return nil, fmt.Errorf("%s holds a %s stream, expected %s", path, role, want)
	}

	r.dec, err = zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := r.captureHeader(); err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("read run header of %s: %w", path, err)
	}
	return r, nil
}

// captureHeader consumes leading run-level frames up to (not including) the
// first event frame. The event payload seen while scanning is kept for the
// first Next call.
func (r *reader) captureHeader() error {
	for {
		kind, payload, err := readFrame(r.br, r.dec)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		switch kind {
		case kindDataStream:
			ds := &DataStream{}
			if err := proto.Unmarshal(payload, ds); err != nil {
				return err
			}
			r.header.DataStream = ds
		case kindCameraConfig:
			cc := &CameraConfiguration{}
			if err := proto.Unmarshal(payload, cc); err != nil {
				return err
			}
			r.header.CameraConfig = cc
		case kindEvent:
			r.pending = payload
			return nil
		default:
			return fmt.Errorf("unknown frame kind %d", kind)
		}
	}
}

// nextEventPayload returns the next event frame, ok=false at end of chunk.
func (r *reader) nextEventPayload() ([]byte, bool, error) {
	if r.closed {
		return nil, false, nil
	}
	if r.pending != nil {
		payload := r.pending
		r.pending = nil
		return payload, true, nil
	}
	kind, payload, err := readFrame(r.br, r.dec)
	if err == io.EOF {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if kind != kindEvent {
		return nil, false, fmt.Errorf("run-level frame kind %d after first event", kind)
	}
	return payload, true, nil
}

func (r *reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if r.dec != nil {
		r.dec.Close()
	}
	return r.f.Close()
}

// TelescopeReader iterates the telescope event table of one chunk.
type TelescopeReader struct {
	*reader
}

// OpenTelescope opens a telescope chunk container.
func OpenTelescope(path string) (*TelescopeReader, error) {
	r, err := openReader(path, domain.RoleTelescope)
	if err != nil {
		return nil, err
	}
	return &TelescopeReader{reader: r}, nil
}

// Header returns the run-level metadata of this chunk.
func (r *TelescopeReader) Header() Header { return r.header }

// Next returns the next telescope record. ok is false at clean end of
// chunk; err is set only for structural faults.
func (r *TelescopeReader) Next() (*TelescopeEvent, bool, error) {
	payload, ok, err := r.nextEventPayload()
	if !ok || err != nil {
		return nil, false, err
	}
	ev := &TelescopeEvent{}
	if err := proto.Unmarshal(payload, ev); err != nil {
		return nil, false, fmt.Errorf("decode telescope event: %w", err)
	}
	return ev, true, nil
}

// TriggerReader iterates the subarray trigger table of one chunk.
type TriggerReader struct {
	*reader
}

// OpenTrigger opens a subarray trigger chunk container.
func OpenTrigger(path string) (*TriggerReader, error) {
	r, err := openReader(path, domain.RoleTrigger)
	if err != nil {
		return nil, err
	}
	return &TriggerReader{reader: r}, nil
}

// Header returns the run-level metadata of this chunk.
func (r *TriggerReader) Header() Header { return r.header }

// Next returns the next trigger record. ok is false at clean end of chunk;
// err is set only for structural faults.
func (r *TriggerReader) Next() (*SubarrayEvent, bool, error) {
	payload, ok, err := r.nextEventPayload()
	if !ok || err != nil {
		return nil, false, err
	}
	ev := &SubarrayEvent{}
	if err := proto.Unmarshal(payload, ev); err != nil {
		return nil, false, fmt.Errorf("decode trigger event: %w", err)
	}
	return ev, true, nil
}
