// Package frame implements the BM13xx serial wire format: CRC-protected
// command and work frames host-to-chip, and CRC-protected response frames
// chip-to-host (spec §3, §4.A).
package frame

import (
	"encoding/binary"
	"fmt"

	"github.com/mujina-project/mujina-core/internal/mujerr"
)

// Preamble bytes. Host-to-chip frames start 0x55 0xAA; chip-to-host
// frames start 0xAA 0x55.
const (
	PreambleHost0 = 0x55
	PreambleHost1 = 0xAA
	PreambleChip0 = 0xAA
	PreambleChip1 = 0x55
)

// Command identifies a host-to-chip command (bits 0-4 of the type byte).
type Command uint8

const (
	CmdSetChipAddress Command = 0
	CmdWriteRegister  Command = 1
	CmdReadRegister   Command = 2

	// CmdSendWork is the command code carried by work frames (bit 7 of the
	// type byte already marks a frame as work; the low bits still carry a
	// command so work and command frames share one type-byte vocabulary).
	CmdSendWork Command = 1
)

const (
	typeFlagWork      = 0x80
	typeFlagBroadcast = 0x40
	typeCmdMask       = 0x1f
)

// typeByte builds the type/flags byte: bit7=work, bit6=broadcast,
// bits0-4=command.
func typeByte(cmd Command, work, broadcast bool) byte {
	b := byte(cmd) & typeCmdMask
	if work {
		b |= typeFlagWork
	}
	if broadcast {
		b |= typeFlagBroadcast
	}
	return b
}

// EncodeCommand builds a CRC-5 checked command frame:
// [0x55, 0xAA, type, len, payload…, crc5]. len is the total frame length.
func EncodeCommand(cmd Command, broadcast bool, payload []byte) []byte {
	total := 4 + len(payload) + 1
	buf := make([]byte, 0, total)
	buf = append(buf, PreambleHost0, PreambleHost1, typeByte(cmd, false, broadcast), byte(total))
	buf = append(buf, payload...)
	buf = append(buf, crc5(buf))
	return buf
}

// EncodeWork builds a CRC-16 checked work frame:
// [0x55, 0xAA, type, len, payload…, crc16 (2 bytes, big-endian)].
// CRC-16 covers the work payload alone, without the preamble/header.
func EncodeWork(cmd Command, payload []byte) []byte {
	total := 4 + len(payload) + 2
	buf := make([]byte, 0, total)
	buf = append(buf, PreambleHost0, PreambleHost1, typeByte(cmd, true, false), byte(total))
	buf = append(buf, payload...)
	c := crc16(payload)
	buf = append(buf, byte(c>>8), byte(c))
	return buf
}

// ResponseKind is the 3-bit tag embedded in a response frame's trailing byte.
type ResponseKind uint8

const (
	KindRegisterValue ResponseKind = 0
	KindNonceFound    ResponseKind = 2
	KindChipVersion   ResponseKind = 6
)

// Response is a decoded chip-to-host frame.
type Response struct {
	Kind ResponseKind
	CRC5 CRCStatus

	// RegisterValue fields (Kind == KindRegisterValue)
	ChipID   [2]byte
	RegAddr  uint8
	RegValue uint32

	// NonceFound fields (Kind == KindNonceFound)
	JobID       uint8
	Nonce       uint32
	MidstateIdx *uint8 // nil unless the extended response form was present
	CoreID      *uint16

	// ChipVersion fields (Kind == KindChipVersion)
	Version uint32
}

// CRCStatus mirrors the dissector's CrcStatus, reused here so firmware code
// and the dissector agree on one vocabulary (spec §4.H).
type CRCStatus int

const (
	CRCNotChecked CRCStatus = iota
	CRCValid
	CRCInvalid
)

func (s CRCStatus) String() string {
	switch s {
	case CRCValid:
		return "CRC OK"
	case CRCInvalid:
		return "CRC FAIL"
	default:
		return ""
	}
}

const (
	registerValuePayloadLen = 7  // chip_id(2) + reg_addr(1) + value(4)
	nonceMinimalPayloadLen  = 5  // job_id(1) + nonce(4)
	nonceExtendedPayloadLen = 8  // + midstate_idx(1) + core_id(2)
	versionPayloadLen       = 4  // version(4)
	responseHeaderLen       = 2  // preamble
	responseTrailerLen      = 1  // crc5/kind byte
)

// DecodeResponse decodes a chip-to-host frame. CRC failure does not prevent
// decoding in the firmware path either; callers that must discard bad
// responses check resp.CRC5 themselves (spec §4.I: "CRC failure on a
// response discards the response and may trigger a resync" is a policy
// decision left to the caller, not to this decoder).
func DecodeResponse(data []byte) (Response, error) {
	if len(data) < responseHeaderLen+responseTrailerLen {
		return Response{}, mujerr.New(mujerr.Frame, "decode_response", fmt.Errorf("frame too short: %d bytes", len(data)))
	}
	if data[0] != PreambleChip0 || data[1] != PreambleChip1 {
		return Response{}, mujerr.New(mujerr.Frame, "decode_response", fmt.Errorf("invalid response preamble"))
	}

	trailer := data[len(data)-1]
	kind := ResponseKind(trailer >> 5)
	status := CRCInvalid
	if CRC5Valid(data) {
		status = CRCValid
	}

	payload := data[2 : len(data)-1]

	switch kind {
	case KindRegisterValue:
		if len(payload) != registerValuePayloadLen {
			return Response{}, mujerr.New(mujerr.Frame, "decode_response", fmt.Errorf("register value payload: got %d bytes, want %d", len(payload), registerValuePayloadLen))
		}
		return Response{
			Kind:     kind,
			CRC5:     status,
			ChipID:   [2]byte{payload[0], payload[1]},
			RegAddr:  payload[2],
			RegValue: binary.LittleEndian.Uint32(payload[3:7]),
		}, nil

	case KindNonceFound:
		switch len(payload) {
		case nonceMinimalPayloadLen:
			return Response{
				Kind:  kind,
				CRC5:  status,
				JobID: payload[0],
				Nonce: binary.LittleEndian.Uint32(payload[1:5]),
			}, nil
		case nonceExtendedPayloadLen:
			idx := payload[5]
			core := binary.LittleEndian.Uint16(payload[6:8])
			return Response{
				Kind:        kind,
				CRC5:        status,
				JobID:       payload[0],
				Nonce:       binary.LittleEndian.Uint32(payload[1:5]),
				MidstateIdx: &idx,
				CoreID:      &core,
			}, nil
		default:
			return Response{}, mujerr.New(mujerr.Frame, "decode_response", fmt.Errorf("nonce payload: got %d bytes, want %d or %d", len(payload), nonceMinimalPayloadLen, nonceExtendedPayloadLen))
		}

	case KindChipVersion:
		if len(payload) != versionPayloadLen {
			return Response{}, mujerr.New(mujerr.Frame, "decode_response", fmt.Errorf("version payload: got %d bytes, want %d", len(payload), versionPayloadLen))
		}
		return Response{
			Kind:    kind,
			CRC5:    status,
			Version: binary.LittleEndian.Uint32(payload),
		}, nil

	default:
		return Response{}, mujerr.New(mujerr.Frame, "decode_response", fmt.Errorf("unrecognized response kind %d", kind))
	}
}

// EncodeRegisterValue builds the frame bytes for a register-read response,
// the inverse of DecodeResponse for Kind == KindRegisterValue. Used by
// tests exercising the encode(decode(f))=f round trip and by simulators.
func EncodeRegisterValue(chipID [2]byte, regAddr uint8, value uint32) []byte {
	payload := make([]byte, 0, registerValuePayloadLen)
	payload = append(payload, chipID[0], chipID[1], regAddr)
	var v [4]byte
	binary.LittleEndian.PutUint32(v[:], value)
	payload = append(payload, v[:]...)
	return encodeResponse(KindRegisterValue, payload)
}

// EncodeNonceFound builds the frame bytes for a nonce-found response. Pass
// nil midstateIdx/coreID for the minimal wire form.
func EncodeNonceFound(jobID uint8, nonce uint32, midstateIdx *uint8, coreID *uint16) []byte {
	payload := make([]byte, 0, nonceExtendedPayloadLen)
	payload = append(payload, jobID)
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], nonce)
	payload = append(payload, n[:]...)
	if midstateIdx != nil && coreID != nil {
		payload = append(payload, *midstateIdx)
		var c [2]byte
		binary.LittleEndian.PutUint16(c[:], *coreID)
		payload = append(payload, c[:]...)
	}
	return encodeResponse(KindNonceFound, payload)
}

// EncodeChipVersion builds the frame bytes for a chip-version response.
func EncodeChipVersion(version uint32) []byte {
	payload := make([]byte, versionPayloadLen)
	binary.LittleEndian.PutUint32(payload, version)
	return encodeResponse(KindChipVersion, payload)
}

func encodeResponse(kind ResponseKind, payload []byte) []byte {
	buf := make([]byte, 0, responseHeaderLen+len(payload)+responseTrailerLen)
	buf = append(buf, PreambleChip0, PreambleChip1)
	buf = append(buf, payload...)
	trailer := (byte(kind) << 5) | (crc5(buf) & 0x1f)
	return append(buf, trailer)
}
