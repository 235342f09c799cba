// Package bm13xx implements the register-level protocol handler for a
// chain of BM13xx mining chips: chip addressing, register read/write
// (unicast and broadcast), work submission, and nonce response parsing
// (spec §4.B).
package bm13xx

import (
	"encoding/binary"
	"log"

	"github.com/mujina-project/mujina-core/internal/bm13xx/frame"
	"github.com/mujina-project/mujina-core/internal/mujerr"
)

// MidstateCount bounds the number of midstates a variable work frame may
// carry: N ∈ {1…4}, giving a work-midstate frame of 20 + 32·N bytes
// (header 4, fixed fields 14, N midstates, CRC-16 2).
type MidstateCount int

const (
	minMidstates MidstateCount = 1
	maxMidstates MidstateCount = 4
)

// Nonce is a chip-reported hash result, tolerant of both the minimal and
// extended wire forms (spec §4.B).
type Nonce struct {
	JobID       uint8
	Value       uint32
	MidstateIdx *uint8
	CoreID      *uint16
}

// Handler is the register-level view of a chain of BM13xx chips reached
// over a single serial Link.
type Handler struct {
	link   Link
	logger *log.Logger
}

// NewHandler builds a Handler over link. A nil logger falls back to
// log.Default(), matching the teacher's convention for optional loggers.
func NewHandler(link Link, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{link: link, logger: logger}
}

// SetAddress broadcasts a chip-address assignment.
func (h *Handler) SetAddress(addr uint8) error {
	f := frame.EncodeCommand(frame.CmdSetChipAddress, true, []byte{addr})
	return h.write(f, "set_address")
}

// Write sets reg on chip to value.
func (h *Handler) Write(chip uint8, reg uint8, value uint32) error {
	payload := make([]byte, 2, 6)
	payload[0], payload[1] = chip, reg
	payload = appendU32LE(payload, value)
	f := frame.EncodeCommand(frame.CmdWriteRegister, false, payload)
	return h.write(f, "write_register")
}

// WriteBroadcast sets reg to value on every chip on the chain.
func (h *Handler) WriteBroadcast(reg uint8, value uint32) error {
	payload := make([]byte, 1, 5)
	payload[0] = reg
	payload = appendU32LE(payload, value)
	f := frame.EncodeCommand(frame.CmdWriteRegister, true, payload)
	return h.write(f, "write_register_broadcast")
}

// Read returns the current value of reg on chip.
func (h *Handler) Read(chip uint8, reg uint8) (uint32, error) {
	f := frame.EncodeCommand(frame.CmdReadRegister, false, []byte{chip, reg})
	if err := h.write(f, "read_register"); err != nil {
		return 0, err
	}
	resp, err := readResponse(h.link)
	if err != nil {
		return 0, err
	}
	if resp.Kind != frame.KindRegisterValue {
		return 0, mujerr.New(mujerr.Protocol, "read_register", errUnexpectedKind(frame.KindRegisterValue, resp.Kind))
	}
	return resp.RegValue, nil
}

// ReadBroadcast issues a broadcast register read; the first responding
// chip's value is returned.
func (h *Handler) ReadBroadcast(reg uint8) (uint32, error) {
	f := frame.EncodeCommand(frame.CmdReadRegister, true, []byte{reg})
	if err := h.write(f, "read_register_broadcast"); err != nil {
		return 0, err
	}
	resp, err := readResponse(h.link)
	if err != nil {
		return 0, err
	}
	if resp.Kind != frame.KindRegisterValue {
		return 0, mujerr.New(mujerr.Protocol, "read_register_broadcast", errUnexpectedKind(frame.KindRegisterValue, resp.Kind))
	}
	return resp.RegValue, nil
}

// reservedFullByte is always 0; it exists only so the full work payload
// lands on the spec's declared 148-byte frame size (see
// internal/bm13xx/frame DESIGN notes).
const reservedFullByte = 0x00

// SubmitWorkFull sends a fixed four-midstate work frame.
func (h *Handler) SubmitWorkFull(jobID uint8, nbits, ntime, merkleRootLSW uint32, midstates [4][32]byte) error {
	payload := make([]byte, 0, 142)
	payload = append(payload, jobID, reservedFullByte)
	payload = appendU32LE(payload, nbits)
	payload = appendU32LE(payload, ntime)
	payload = appendU32LE(payload, merkleRootLSW)
	for _, ms := range midstates {
		payload = append(payload, ms[:]...)
	}
	f := frame.EncodeWork(frame.CmdSendWork, payload)
	return h.write(f, "submit_work_full")
}

// SubmitWorkMidstate sends a variable-midstate work frame carrying
// len(midstates) midstates; that count must be in [1,4].
func (h *Handler) SubmitWorkMidstate(jobID uint8, nbits, ntime, merkleRootLSW uint32, midstates [][32]byte) error {
	count := MidstateCount(len(midstates))
	if count < minMidstates || count > maxMidstates {
		return mujerr.New(mujerr.Data, "submit_work_midstate", errMidstateCount(count))
	}
	payload := make([]byte, 0, 14+32*len(midstates))
	payload = append(payload, jobID, byte(count))
	payload = appendU32LE(payload, nbits)
	payload = appendU32LE(payload, ntime)
	payload = appendU32LE(payload, merkleRootLSW)
	for _, ms := range midstates {
		payload = append(payload, ms[:]...)
	}
	f := frame.EncodeWork(frame.CmdSendWork, payload)
	return h.write(f, "submit_work_midstate")
}

// ReadNonce blocks for the next nonce-found response from the chain.
func (h *Handler) ReadNonce() (Nonce, error) {
	resp, err := readResponse(h.link)
	if err != nil {
		return Nonce{}, err
	}
	if resp.Kind != frame.KindNonceFound {
		return Nonce{}, mujerr.New(mujerr.Protocol, "read_nonce", errUnexpectedKind(frame.KindNonceFound, resp.Kind))
	}
	return Nonce{
		JobID:       resp.JobID,
		Value:       resp.Nonce,
		MidstateIdx: resp.MidstateIdx,
		CoreID:      resp.CoreID,
	}, nil
}

// chipVersionRegister is the well-known register address chips answer
// with a KindChipVersion response to, rather than a plain register value.
const chipVersionRegister = 0x00

// ChipVersion reads the chip version via a broadcast read; real chains
// answer with the first chip's version.
func (h *Handler) ChipVersion() (uint32, error) {
	f := frame.EncodeCommand(frame.CmdReadRegister, true, []byte{chipVersionRegister})
	if err := h.write(f, "chip_version"); err != nil {
		return 0, err
	}
	resp, err := readResponse(h.link)
	if err != nil {
		return 0, err
	}
	if resp.Kind != frame.KindChipVersion {
		return 0, mujerr.New(mujerr.Protocol, "chip_version", errUnexpectedKind(frame.KindChipVersion, resp.Kind))
	}
	return resp.Version, nil
}

func (h *Handler) write(f []byte, op string) error {
	if _, err := h.link.Write(f); err != nil {
		return mujerr.New(mujerr.Transport, op, err)
	}
	return nil
}

func appendU32LE(dst []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(dst, b[:]...)
}
