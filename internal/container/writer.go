package container

import (
	"bufio"
	"fmt"
	"os"

	"github.com/golang/protobuf/proto"
	"github.com/klauspost/compress/zstd"

	"telemux/internal/domain"
)

var roleBytes = map[domain.StreamRole]byte{
	domain.RoleTelescope: 1,
	domain.RoleTrigger:   2,
}

// Writer produces one chunk container file. Run-level frames (data stream,
// camera configuration) must be written before the first event frame, which
// is how readers capture them once per run.
type Writer struct {
	f    *os.File
	bw   *bufio.Writer
	enc  *zstd.Encoder
	role domain.StreamRole
	tag  CompressionTag

	wroteEvent bool
	closed     bool
}

// NewWriter creates path and writes the container preamble.
func NewWriter(path string, role domain.StreamRole, tag CompressionTag) (*Writer, error) {
	roleByte, ok := roleBytes[role]
	if !ok {
		return nil, fmt.Errorf("unknown stream role %q", role)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault), zstd.WithEncoderConcurrency(1))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	bw := bufio.NewWriter(f)
	if _, err := bw.WriteString(Magic); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := bw.WriteByte(roleByte); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Writer{f: f, bw: bw, enc: enc, role: role, tag: tag}, nil
}

// WriteDataStream writes the per-run data stream configuration frame.
func (w *Writer) WriteDataStream(ds *DataStream) error {
	if w.wroteEvent {
		return fmt.Errorf("data stream frame after first event frame")
	}
	payload, err := marshalMessage(ds)
	if err != nil {
		return err
	}
	return writeFrame(w.bw, kindDataStream, CompressionNone, w.enc, payload)
}

// WriteCameraConfig writes the per-run camera configuration frame.
func (w *Writer) WriteCameraConfig(cc *CameraConfiguration) error {
	if w.wroteEvent {
		return fmt.Errorf("camera configuration frame after first event frame")
	}
	payload, err := marshalMessage(cc)
	if err != nil {
		return err
	}
	return writeFrame(w.bw, kindCameraConfig, CompressionNone, w.enc, payload)
}

// WriteTelescopeEvent appends one telescope record.
func (w *Writer) WriteTelescopeEvent(ev *TelescopeEvent) error {
	if w.role != domain.RoleTelescope {
		return fmt.Errorf("telescope event in %s container", w.role)
	}
	return w.writeEvent(ev)
}

// WriteTriggerEvent appends one subarray trigger record.
func (w *Writer) WriteTriggerEvent(ev *SubarrayEvent) error {
	if w.role != domain.RoleTrigger {
		return fmt.Errorf("trigger event in %s container", w.role)
	}
	return w.writeEvent(ev)
}

func (w *Writer) writeEvent(msg proto.Message) error {
	payload, err := marshalMessage(msg)
	if err != nil {
		return err
	}
	w.wroteEvent = true
	return writeFrame(w.bw, kindEvent, w.tag, w.enc, payload)
}

// Close flushes and closes the file. Idempotent.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.enc.Close()
	if err := w.bw.Flush(); err != nil {
		_ = w.f.Close()
		return err
	}
	return w.f.Close()
}
