// Package transport dials a Stratum V2 pool and establishes the Noise
// secure channel, before any mining-protocol message is exchanged (§6,
// §9 "Timeouts").
package transport

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"net/url"
	"time"

	"github.com/mujina-project/mujina-core/internal/mujerr"
	"github.com/mujina-project/mujina-core/internal/sv2/noise"
)

const (
	// urlScheme is the only accepted pool URL scheme (§6 "sv2+tcp://").
	urlScheme = "sv2+tcp"

	connectAttempts   = 3
	connectTimeout    = 10 * time.Second
	connectRetryDelay = 5 * time.Second
)

// ParseURL validates a pool URL against the sv2+tcp://<host>:<port>
// grammar and returns its host:port address.
func ParseURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", mujerr.New(mujerr.Config, "parse_url", err)
	}
	if u.Scheme != urlScheme {
		return "", mujerr.New(mujerr.Config, "parse_url", fmt.Errorf("unsupported scheme %q, want %q", u.Scheme, urlScheme))
	}
	if u.Host == "" {
		return "", mujerr.New(mujerr.Config, "parse_url", fmt.Errorf("missing host:port in %q", rawURL))
	}
	return u.Host, nil
}

// DialWithRetry opens a TCP connection to addr, retrying up to
// connectAttempts times with a fixed backoff between attempts (§5
// "Timeouts": 10s per attempt).
func DialWithRetry(addr string) (net.Conn, error) {
	var lastErr error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		conn, err := net.DialTimeout("tcp", addr, connectTimeout)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		if attempt < connectAttempts {
			time.Sleep(connectRetryDelay)
		}
	}
	return nil, mujerr.New(mujerr.Transport, "dial", fmt.Errorf("failed to connect to %s after %d attempts: %w", addr, connectAttempts, lastErr))
}

// Connect dials addr and runs the Noise initiator handshake, returning a
// secure channel ready to carry SV2 frames.
func Connect(addr string) (*noise.SecureChannel, net.Conn, error) {
	conn, err := DialWithRetry(addr)
	if err != nil {
		return nil, nil, err
	}
	sc, err := noise.Do(conn)
	if err != nil {
		conn.Close()
		return nil, nil, mujerr.New(mujerr.Transport, "noise_handshake", err)
	}
	return sc, conn, nil
}

// SendFrame encrypts plaintext (a serialized wire.FrameHeader + payload) and
// writes it to conn as a 2-byte little-endian length-prefixed ciphertext.
func SendFrame(conn net.Conn, sc *noise.SecureChannel, plaintext []byte) error {
	ciphertext, err := sc.Encrypt(plaintext)
	if err != nil {
		return mujerr.New(mujerr.Transport, "encrypt_frame", err)
	}
	var lenPrefix [2]byte
	binary.LittleEndian.PutUint16(lenPrefix[:], uint16(len(ciphertext)))
	if _, err := conn.Write(lenPrefix[:]); err != nil {
		return mujerr.New(mujerr.Transport, "send_frame", err)
	}
	if _, err := conn.Write(ciphertext); err != nil {
		return mujerr.New(mujerr.Transport, "send_frame", err)
	}
	return nil
}

// ReceiveFrame reads one length-prefixed ciphertext from conn and decrypts
// it back to the plaintext wire frame.
func ReceiveFrame(conn net.Conn, sc *noise.SecureChannel) ([]byte, error) {
	var lenPrefix [2]byte
	if _, err := io.ReadFull(conn, lenPrefix[:]); err != nil {
		return nil, mujerr.New(mujerr.Transport, "receive_frame", err)
	}
	ciphertext := make([]byte, binary.LittleEndian.Uint16(lenPrefix[:]))
	if _, err := io.ReadFull(conn, ciphertext); err != nil {
		return nil, mujerr.New(mujerr.Transport, "receive_frame", err)
	}
	plaintext, err := sc.Decrypt(ciphertext)
	if err != nil {
		return nil, mujerr.New(mujerr.Frame, "decrypt_frame", err)
	}
	return plaintext, nil
}
