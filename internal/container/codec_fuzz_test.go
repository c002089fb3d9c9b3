package container

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/klauspost/compress/zstd"
)

func FuzzReadFrame(f *testing.F) {
	f.Add([]byte{byte(kindEvent), byte(CompressionNone), 0, 0, 0, 1, 0x2a})
	f.Add([]byte{byte(kindDataStream), byte(CompressionZstd), 0, 0, 0, 0})
	f.Add([]byte{byte(kindEvent), byte(CompressionNone), 0xff, 0xff, 0xff, 0xff})
	f.Fuzz(func(t *testing.T, data []byte) {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			t.Fatal(err)
		}
		defer dec.Close()
		_, _, _ = readFrame(bufio.NewReader(bytes.NewReader(data)), dec)
	})
}
