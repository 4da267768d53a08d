package transport

import (
	"errors"
	"fmt"
	"io"

	"github.com/skobkin/antbridge/internal/ant"
)

// syncByte starts every host-to-stick and stick-to-host ANT message.
const syncByte byte = 0xA4

var ErrChecksum = errors.New("frame checksum mismatch")

type readFullFunc func(buf []byte) error

// encodeFrame wraps a message payload (id + data) as
// [sync][len(data)][id][data...][xor checksum].
func encodeFrame(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, errors.New("payload is empty")
	}
	dataLen := len(payload) - 1
	if dataLen > ant.MaxDataSize {
		return nil, fmt.Errorf("payload too large: %d", len(payload))
	}

	frame := make([]byte, 0, len(payload)+3)
	frame = append(frame, syncByte, byte(dataLen))
	frame = append(frame, payload...)

	return append(frame, checksum(frame)), nil
}

func readFrame(readFull readFullFunc) ([]byte, error) {
	if err := resyncToHeader(readFull); err != nil {
		return nil, err
	}

	var lenBuf [1]byte
	if err := readFull(lenBuf[:]); err != nil {
		return nil, fmt.Errorf("read frame length: %w", err)
	}
	dataLen := int(lenBuf[0])

	// id + data + checksum
	rest := make([]byte, dataLen+2)
	if err := readFull(rest); err != nil {
		return nil, fmt.Errorf("read frame payload: %w", err)
	}

	payload := rest[:dataLen+1]
	want := checksum([]byte{syncByte, lenBuf[0]}) ^ checksum(payload)
	if got := rest[dataLen+1]; got != want {
		return nil, fmt.Errorf("%w: got %#02x want %#02x", ErrChecksum, got, want)
	}

	return payload, nil
}

func resyncToHeader(readFull readFullFunc) error {
	buf := make([]byte, 1)
	for {
		if err := readFull(buf); err != nil {
			return fmt.Errorf("read frame sync: %w", err)
		}
		if buf[0] == syncByte {
			return nil
		}
	}
}

func checksum(b []byte) byte {
	var sum byte
	for _, v := range b {
		sum ^= v
	}

	return sum
}

func ioReadFullFunc(r io.Reader) readFullFunc {
	return func(buf []byte) error {
		_, err := io.ReadFull(r, buf)

		return err
	}
}
