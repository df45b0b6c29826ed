package clusterserver

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/yndnr/gridmesh/internal/core/domain"
	"github.com/yndnr/gridmesh/pkg/crypto/adaptive"
)

const headerSize = 6

// Codec reads and writes member frames. With a cipher, payloads are sealed
// and the opcode is authenticated as additional data.
type Codec struct {
	cipher   adaptive.Cipher
	maxFrame int
}

// NewCodec creates a codec. maxFrame bounds the plaintext payload size; a
// nil cipher leaves payloads in the clear.
func NewCodec(cipher adaptive.Cipher, maxFrame int) *Codec {
	return &Codec{cipher: cipher, maxFrame: maxFrame}
}

func (c *Codec) maxWire() int {
	if c.cipher != nil {
		return c.maxFrame + c.cipher.Overhead()
	}
	return c.maxFrame
}

// WriteFrame writes one frame to w. It does not flush.
func (c *Codec) WriteFrame(w *bufio.Writer, opcode uint16, payload []byte) error {
	if len(payload) > c.maxFrame {
		return domain.ErrFrameTooLarge.WithDetails(fmt.Sprintf("%d > %d bytes", len(payload), c.maxFrame))
	}

	var header [headerSize]byte
	binary.BigEndian.PutUint16(header[4:], opcode)

	body := payload
	if c.cipher != nil {
		sealed, err := c.cipher.Encrypt(payload, header[4:])
		if err != nil {
			return fmt.Errorf("seal frame: %w", err)
		}
		body = sealed
	}
	binary.BigEndian.PutUint32(header[:4], uint32(len(body)))

	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

// ReadFrame reads one frame from r.
func (c *Codec) ReadFrame(r io.Reader) (opcode uint16, payload []byte, err error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, nil, err
	}
	size := binary.BigEndian.Uint32(header[:4])
	opcode = binary.BigEndian.Uint16(header[4:])
	if int64(size) > int64(c.maxWire()) {
		return 0, nil, domain.ErrFrameTooLarge.WithDetails(fmt.Sprintf("%d > %d bytes", size, c.maxWire()))
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, nil, err
	}
	if c.cipher == nil {
		return opcode, body, nil
	}
	payload, err = c.cipher.Decrypt(body, header[4:])
	if err != nil {
		return 0, nil, fmt.Errorf("open frame: %w", err)
	}
	return opcode, payload, nil
}
