package noise

import (
	"encoding/binary"
	"io"
)

// Do runs the two-act NX handshake over rw and returns the resulting
// SecureChannel. Handshake acts are framed with a 2-byte little-endian
// length prefix, the same act-framing real SV2 noise implementations use
// before the transport's own frame format takes over.
func Do(rw io.ReadWriter) (*SecureChannel, error) {
	hs, err := NewInitiatorHandshake()
	if err != nil {
		return nil, err
	}

	msg0, err := hs.WriteMessage(nil)
	if err != nil {
		return nil, err
	}
	if err := writeFramed(rw, msg0); err != nil {
		return nil, err
	}

	msg1, err := readFramed(rw)
	if err != nil {
		return nil, err
	}
	if _, err := hs.ReadMessage(msg1); err != nil {
		return nil, err
	}

	send, recv, err := hs.Split()
	if err != nil {
		return nil, err
	}
	return NewSecureChannel(send, recv), nil
}

func writeFramed(w io.Writer, msg []byte) error {
	var lenPrefix [2]byte
	binary.LittleEndian.PutUint16(lenPrefix[:], uint16(len(msg)))
	if _, err := w.Write(lenPrefix[:]); err != nil {
		return err
	}
	_, err := w.Write(msg)
	return err
}

func readFramed(r io.Reader) ([]byte, error) {
	var lenPrefix [2]byte
	if _, err := io.ReadFull(r, lenPrefix[:]); err != nil {
		return nil, err
	}
	msg := make([]byte, binary.LittleEndian.Uint16(lenPrefix[:]))
	if _, err := io.ReadFull(r, msg); err != nil {
		return nil, err
	}
	return msg, nil
}
