// Package noise implements the initiator side of Noise_NX_25519_ChaChaPoly_SHA256,
// the handshake Stratum V2 runs anonymously between a miner and a pool
// (spec §4.C: "no static key configured" on our side — we never act as
// responder and never verify the pool's static key).
package noise

import (
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"io"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
)

const (
	// ProtocolName identifies the handshake pattern and primitive suite.
	ProtocolName = "Noise_NX_25519_ChaChaPoly_SHA256"

	DHKeySize  = 32
	SymKeySize = 32
	NonceSize  = 12
	TagSize    = 16
	MaxNonce   = ^uint64(0) - 1
)

var (
	ErrHandshakeFailed  = errors.New("handshake failed")
	ErrInvalidMessage   = errors.New("invalid message")
	ErrNonceOverflow    = errors.New("nonce overflow - rekey required")
	ErrDecryptionFailed = errors.New("decryption failed")
	ErrNotEstablished   = errors.New("secure channel not established")
	ErrInvalidPublicKey = errors.New("invalid public key")
)

// KeyPair is an X25519 key pair.
type KeyPair struct {
	PrivateKey [DHKeySize]byte
	PublicKey  [DHKeySize]byte
}

// GenerateKeyPair generates a new ephemeral X25519 key pair.
func GenerateKeyPair() (*KeyPair, error) {
	kp := &KeyPair{}
	if _, err := io.ReadFull(rand.Reader, kp.PrivateKey[:]); err != nil {
		return nil, err
	}
	kp.PrivateKey[0] &= 248
	kp.PrivateKey[31] &= 127
	kp.PrivateKey[31] |= 64
	curve25519.ScalarBaseMult(&kp.PublicKey, &kp.PrivateKey)
	return kp, nil
}

// DH performs X25519 Diffie-Hellman.
func (kp *KeyPair) DH(theirPublic [DHKeySize]byte) ([DHKeySize]byte, error) {
	var shared [DHKeySize]byte
	curve25519.ScalarMult(&shared, &kp.PrivateKey, &theirPublic)

	allZero := true
	for _, b := range shared {
		if b != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		return shared, ErrInvalidPublicKey
	}
	return shared, nil
}

// CipherState manages one direction's symmetric encryption state.
type CipherState struct {
	nonce uint64
	aead  cipher.AEAD
	mu    sync.Mutex
}

func newCipherState(key [SymKeySize]byte) (*CipherState, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, err
	}
	return &CipherState{aead: aead}, nil
}

func littleEndianNonce(n uint64) []byte {
	nonce := make([]byte, NonceSize)
	for i := 0; i < 8; i++ {
		nonce[i] = byte(n >> (8 * i))
	}
	return nonce
}

// Encrypt seals plaintext with associated data, using and advancing the
// per-direction nonce counter.
func (cs *CipherState) Encrypt(plaintext, ad []byte) ([]byte, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.nonce >= MaxNonce {
		return nil, ErrNonceOverflow
	}
	nonce := littleEndianNonce(cs.nonce)
	cs.nonce++
	return cs.aead.Seal(nil, nonce, plaintext, ad), nil
}

// Decrypt opens ciphertext with associated data.
func (cs *CipherState) Decrypt(ciphertext, ad []byte) ([]byte, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.nonce >= MaxNonce {
		return nil, ErrNonceOverflow
	}
	nonce := littleEndianNonce(cs.nonce)
	cs.nonce++
	plaintext, err := cs.aead.Open(nil, nonce, ciphertext, ad)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// symmetricState tracks the handshake's chaining key and transcript hash.
type symmetricState struct {
	chainingKey [SymKeySize]byte
	h           [32]byte
	cipher      *CipherState
}

func newSymmetricState() *symmetricState {
	ss := &symmetricState{}
	protocolBytes := []byte(ProtocolName)
	if len(protocolBytes) <= 32 {
		copy(ss.h[:], protocolBytes)
	} else {
		ss.h = sha256Hash(protocolBytes)
	}
	ss.chainingKey = ss.h
	return ss
}

func (ss *symmetricState) mixKey(inputKeyMaterial []byte) {
	tempK1, tempK2 := hkdfDerive(ss.chainingKey[:], inputKeyMaterial)
	ss.chainingKey = tempK1
	ss.cipher, _ = newCipherState(tempK2)
}

func (ss *symmetricState) mixHash(data []byte) {
	combined := append(append([]byte{}, ss.h[:]...), data...)
	ss.h = sha256Hash(combined)
}

func (ss *symmetricState) encryptAndHash(plaintext []byte) ([]byte, error) {
	if ss.cipher == nil {
		ss.mixHash(plaintext)
		return plaintext, nil
	}
	ciphertext, err := ss.cipher.Encrypt(plaintext, ss.h[:])
	if err != nil {
		return nil, err
	}
	ss.mixHash(ciphertext)
	return ciphertext, nil
}

func (ss *symmetricState) decryptAndHash(ciphertext []byte) ([]byte, error) {
	if ss.cipher == nil {
		ss.mixHash(ciphertext)
		return ciphertext, nil
	}
	plaintext, err := ss.cipher.Decrypt(ciphertext, ss.h[:])
	if err != nil {
		return nil, err
	}
	ss.mixHash(ciphertext)
	return plaintext, nil
}

func (ss *symmetricState) split() (*CipherState, *CipherState, error) {
	tempK1, tempK2 := hkdfDerive(ss.chainingKey[:], nil)
	c1, err := newCipherState(tempK1)
	if err != nil {
		return nil, nil, err
	}
	c2, err := newCipherState(tempK2)
	if err != nil {
		return nil, nil, err
	}
	return c1, c2, nil
}

// HandshakeState drives the initiator side of the NX pattern:
//
//	-> e
//	<- e, ee, s, es
type HandshakeState struct {
	ss              *symmetricState
	localEphemeral  *KeyPair
	remoteStatic    [DHKeySize]byte
	remoteEphemeral [DHKeySize]byte
	messageIndex    int
}

// NewInitiatorHandshake creates initiator handshake state for a miner
// connecting anonymously to a pool.
func NewInitiatorHandshake() (*HandshakeState, error) {
	ephemeral, err := GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	return &HandshakeState{ss: newSymmetricState(), localEphemeral: ephemeral}, nil
}

// WriteMessage produces message 0 (-> e).
func (hs *HandshakeState) WriteMessage(payload []byte) ([]byte, error) {
	if hs.messageIndex != 0 {
		return nil, ErrHandshakeFailed
	}
	hs.ss.mixHash(hs.localEphemeral.PublicKey[:])
	message := append([]byte{}, hs.localEphemeral.PublicKey[:]...)

	encPayload, err := hs.ss.encryptAndHash(payload)
	if err != nil {
		return nil, err
	}
	message = append(message, encPayload...)

	hs.messageIndex++
	return message, nil
}

// ReadMessage processes message 1 (<- e, ee, s, es), returning the
// responder's handshake payload.
func (hs *HandshakeState) ReadMessage(message []byte) ([]byte, error) {
	if hs.messageIndex != 1 {
		return nil, ErrHandshakeFailed
	}
	if len(message) < DHKeySize {
		return nil, ErrInvalidMessage
	}
	copy(hs.remoteEphemeral[:], message[:DHKeySize])
	hs.ss.mixHash(hs.remoteEphemeral[:])
	message = message[DHKeySize:]

	shared, err := hs.localEphemeral.DH(hs.remoteEphemeral)
	if err != nil {
		return nil, err
	}
	hs.ss.mixKey(shared[:])

	if len(message) < DHKeySize+TagSize {
		return nil, ErrInvalidMessage
	}
	decStatic, err := hs.ss.decryptAndHash(message[:DHKeySize+TagSize])
	if err != nil {
		return nil, err
	}
	copy(hs.remoteStatic[:], decStatic)
	message = message[DHKeySize+TagSize:]

	shared, err = hs.localEphemeral.DH(hs.remoteStatic)
	if err != nil {
		return nil, err
	}
	hs.ss.mixKey(shared[:])

	payload, err := hs.ss.decryptAndHash(message)
	if err != nil {
		return nil, err
	}
	hs.messageIndex++
	return payload, nil
}

// IsComplete reports whether both handshake acts have run.
func (hs *HandshakeState) IsComplete() bool { return hs.messageIndex >= 2 }

// Split returns (send, recv) transport ciphers once the handshake is done.
func (hs *HandshakeState) Split() (*CipherState, *CipherState, error) {
	if !hs.IsComplete() {
		return nil, nil, ErrNotEstablished
	}
	// Initiator: c1 sends, c2 receives (the first derived key protects the
	// initiator-to-responder direction; the responder uses the pair the
	// other way round).
	c1, c2, err := hs.ss.split()
	if err != nil {
		return nil, nil, err
	}
	return c1, c2, nil
}

// RemoteStatic returns the pool's static public key as revealed during the
// handshake. It is never verified against anything — the connection is
// anonymous by design (spec §1 Non-goals: "no authentication of the pool").
func (hs *HandshakeState) RemoteStatic() [DHKeySize]byte { return hs.remoteStatic }

// SecureChannel wraps the transport ciphers resulting from a completed
// handshake.
type SecureChannel struct {
	send *CipherState
	recv *CipherState
}

// NewSecureChannel builds a SecureChannel from handshake-derived ciphers.
func NewSecureChannel(send, recv *CipherState) *SecureChannel {
	return &SecureChannel{send: send, recv: recv}
}

// Encrypt seals plaintext for sending.
func (sc *SecureChannel) Encrypt(plaintext []byte) ([]byte, error) {
	return sc.send.Encrypt(plaintext, nil)
}

// Decrypt opens a received ciphertext.
func (sc *SecureChannel) Decrypt(ciphertext []byte) ([]byte, error) {
	return sc.recv.Decrypt(ciphertext, nil)
}
