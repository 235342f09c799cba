// Package wire implements the Stratum V2 mining-protocol message types and
// their little-endian binary encoding, trimmed to the subset a standard-
// channel miner needs (spec §4.A/§6): setup, standard channel open, job
// activation, target, and standard share submission.
package wire

import (
	"encoding/binary"
	"errors"
)

// Message type constants (mining protocol subset actually used here).
const (
	MsgTypeSetupConnection        uint8 = 0x00
	MsgTypeSetupConnectionSuccess uint8 = 0x01
	MsgTypeSetupConnectionError   uint8 = 0x02

	MsgTypeOpenStandardMiningChannel        uint8 = 0x10
	MsgTypeOpenStandardMiningChannelSuccess uint8 = 0x11
	MsgTypeOpenStandardMiningChannelError   uint8 = 0x12

	MsgTypeNewMiningJob       uint8 = 0x20
	MsgTypeSetNewPrevHash     uint8 = 0x22
	MsgTypeSetCustomMiningJob uint8 = 0x23

	MsgTypeSubmitSharesStandard uint8 = 0x30
	MsgTypeSubmitSharesSuccess  uint8 = 0x32
	MsgTypeSubmitSharesError    uint8 = 0x33

	MsgTypeSetTarget uint8 = 0x40
)

// SetupConnection flags.
const (
	FlagRequiresStandardJobs uint32 = 0x01
)

var (
	ErrInvalidHeader    = errors.New("invalid message header")
	ErrTruncatedMessage = errors.New("truncated message")
)

// FrameHeader is a Stratum V2 message frame header:
// [extension_type: u16] [msg_type: u8] [msg_length: u24].
type FrameHeader struct {
	ExtensionType uint16
	MsgType       uint8
	MsgLength     uint32 // 24-bit on the wire
}

// HeaderSize is the size of the frame header in bytes.
const HeaderSize = 6

// Serialize serializes the header to bytes.
func (h *FrameHeader) Serialize() []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint16(buf[0:2], h.ExtensionType)
	buf[2] = h.MsgType
	buf[3] = byte(h.MsgLength & 0xFF)
	buf[4] = byte((h.MsgLength >> 8) & 0xFF)
	buf[5] = byte((h.MsgLength >> 16) & 0xFF)
	return buf
}

// ParseHeader parses a frame header from bytes.
func ParseHeader(data []byte) (*FrameHeader, error) {
	if len(data) < HeaderSize {
		return nil, ErrInvalidHeader
	}
	return &FrameHeader{
		ExtensionType: binary.LittleEndian.Uint16(data[0:2]),
		MsgType:       data[2],
		MsgLength:     uint32(data[3]) | uint32(data[4])<<8 | uint32(data[5])<<16,
	}, nil
}

// STR0_255 is a string with a 1-byte length prefix, max 255 bytes.
type STR0_255 string

// SetupConnection is sent by the client to initiate a connection.
type SetupConnection struct {
	Protocol        uint8
	MinVersion      uint16
	MaxVersion      uint16
	Flags           uint32
	Endpoint        STR0_255
	Vendor          STR0_255
	HardwareVersion STR0_255
	FirmwareVersion STR0_255
	DeviceID        STR0_255
}

// SetupConnectionSuccess is sent by the server on successful setup.
type SetupConnectionSuccess struct {
	UsedVersion uint16
	Flags       uint32
}

// SetupConnectionError is sent by the server on setup failure.
type SetupConnectionError struct {
	Flags     uint32
	ErrorCode STR0_255
}

// OpenStandardMiningChannel requests opening a standard mining channel.
type OpenStandardMiningChannel struct {
	RequestID         uint32
	UserIdentity      STR0_255
	NominalHashrate   float32
	MaxTargetRequired [32]byte
}

// OpenStandardMiningChannelSuccess confirms a channel was opened.
type OpenStandardMiningChannelSuccess struct {
	RequestID       uint32
	ChannelID       uint32
	Target          [32]byte
	ExtraNonce2Size uint16
	GroupChannelID  uint32
}

// OpenStandardMiningChannelError indicates a channel-open failure.
type OpenStandardMiningChannelError struct {
	RequestID uint32
	ErrorCode STR0_255
}

// NewMiningJob carries a new mining job. MerkleRoot is present because
// standard channels carry a pool-precomputed root (spec §4.E); extended
// channels (out of scope) would instead carry extranonce parameters.
type NewMiningJob struct {
	ChannelID  uint32
	JobID      uint32
	IsFuture   bool
	Version    uint32
	MerkleRoot [32]byte
}

// SetNewPrevHash updates the previous block hash a job_id activates against.
type SetNewPrevHash struct {
	ChannelID uint32
	JobID     uint32
	PrevHash  [32]byte
	MinNTime  uint32
	NBits     uint32
}

// SubmitSharesStandard submits a standard-channel share.
type SubmitSharesStandard struct {
	ChannelID   uint32
	SequenceNum uint32
	JobID       uint32
	Nonce       uint32
	NTime       uint32
	Version     uint32
}

// SubmitSharesSuccess acknowledges accepted shares.
type SubmitSharesSuccess struct {
	ChannelID       uint32
	LastSequenceNum uint32
	NewSubmits      uint32
	NewSharesSum    uint64
}

// SubmitSharesError indicates share rejection.
type SubmitSharesError struct {
	ChannelID   uint32
	SequenceNum uint32
	ErrorCode   STR0_255
}

// SetTarget updates the mining target for a channel.
type SetTarget struct {
	ChannelID uint32
	MaxTarget [32]byte
}
