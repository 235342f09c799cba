// Package dissect decodes assembled serial frames and grouped I2C
// operations into human-readable content, the final stage of the offline
// logic-analyser tool (spec §4.H).
package dissect

import (
	"encoding/binary"
	"fmt"

	"github.com/mujina-project/mujina-core/internal/bm13xx/frame"
	"github.com/mujina-project/mujina-core/internal/dissect/i2c"
	"github.com/mujina-project/mujina-core/internal/dissect/serial"
	"github.com/mujina-project/mujina-core/internal/peripheral"
)

// typeFlags decomposes a command frame's type/flags byte.
type typeFlags struct {
	isWork      bool
	isBroadcast bool
	cmd         uint8
}

func parseTypeFlags(b byte) typeFlags {
	return typeFlags{
		isWork:      b&0x80 != 0,
		isBroadcast: b&0x40 != 0,
		cmd:         b & 0x1f,
	}
}

// CommandKind identifies the shape of a decoded host-to-chip command.
type CommandKind int

const (
	CmdSetChipAddress CommandKind = iota
	CmdWriteRegister
	CmdReadRegister
	CmdWriteRegisterBroadcast
	CmdReadRegisterBroadcast
	CmdMiningJobFull
	CmdMiningJobMidstate
	CmdUnknown
)

// Command is a decoded host-to-chip frame (spec §4.H).
type Command struct {
	Kind CommandKind

	ChipAddr uint8
	RegAddr  uint8
	Value    uint32

	JobID         uint8
	MidstateNum   uint8
	NBits         uint32
	NTime         uint32
	MerkleRootLSW uint32
	Midstates     [][32]byte

	UnknownType uint8
	Payload     []byte
}

func (c Command) String() string {
	switch c.Kind {
	case CmdSetChipAddress:
		return fmt.Sprintf("SetChipAddress(addr=0x%02x)", c.ChipAddr)
	case CmdWriteRegister:
		return fmt.Sprintf("WriteReg(chip=0x%02x, reg=0x%02x, val=0x%08x)", c.ChipAddr, c.RegAddr, c.Value)
	case CmdReadRegister:
		return fmt.Sprintf("ReadReg(chip=0x%02x, reg=0x%02x)", c.ChipAddr, c.RegAddr)
	case CmdWriteRegisterBroadcast:
		return fmt.Sprintf("WriteRegBcast(reg=0x%02x, val=0x%08x)", c.RegAddr, c.Value)
	case CmdReadRegisterBroadcast:
		return fmt.Sprintf("ReadRegBcast(reg=0x%02x)", c.RegAddr)
	case CmdMiningJobFull:
		return fmt.Sprintf("MiningJob(Full(id=%d, nbits=0x%08x))", c.JobID, c.NBits)
	case CmdMiningJobMidstate:
		return fmt.Sprintf("MiningJob(Midstate(id=%d, num=%d, nbits=0x%08x))", c.JobID, c.MidstateNum, c.NBits)
	default:
		return fmt.Sprintf("Unknown(type=0x%02x, len=%d)", c.UnknownType, len(c.Payload))
	}
}

// FrameContent is the decoded payload of a dissected serial frame: a
// Command, a Response, or an explanation of why neither could be decoded.
type FrameContent interface {
	isFrameContent()
}

// CommandContent wraps a decoded host-to-chip command.
type CommandContent struct{ Command Command }

func (CommandContent) isFrameContent() {}

// ResponseContent wraps a decoded chip-to-host response, reusing
// bm13xx/frame's own decoder since it already covers this wire format.
type ResponseContent struct{ Response frame.Response }

func (ResponseContent) isFrameContent() {}

// InvalidContent explains why a frame could not be decoded.
type InvalidContent struct{ Reason string }

func (InvalidContent) isFrameContent() {}

// DissectedFrame is a fully decoded serial frame.
type DissectedFrame struct {
	Timestamp float64
	Direction serial.Direction
	RawData   []byte
	Content   FrameContent
	CRCStatus frame.CRCStatus
}

// DissectSerialFrame decodes an assembled serial frame's content and CRC
// status.
func DissectSerialFrame(f serial.Frame) DissectedFrame {
	var content FrameContent
	var status frame.CRCStatus
	if f.Direction == serial.HostToChip {
		content, status = dissectCommand(f.Data)
	} else {
		content, status = dissectResponse(f.Data)
	}
	return DissectedFrame{
		Timestamp: f.StartTime,
		Direction: f.Direction,
		RawData:   f.Data,
		Content:   content,
		CRCStatus: status,
	}
}

func dissectCommand(data []byte) (FrameContent, frame.CRCStatus) {
	if len(data) < 5 {
		return InvalidContent{Reason: fmt.Sprintf("frame too short: %d bytes", len(data))}, frame.CRCNotChecked
	}
	if data[0] != frame.PreambleHost0 || data[1] != frame.PreambleHost1 {
		return InvalidContent{Reason: "invalid preamble"}, frame.CRCNotChecked
	}

	tf := parseTypeFlags(data[2])
	length := int(data[3])
	if len(data) < length {
		return InvalidContent{Reason: fmt.Sprintf("incomplete frame: expected %d bytes, got %d", length, len(data))}, frame.CRCNotChecked
	}

	status := frame.CRCNotChecked
	if tf.isWork {
		if length >= 6 {
			if frame.CRC16Valid(data[4:length-2], data[length-2:length]) {
				status = frame.CRCValid
			} else {
				status = frame.CRCInvalid
			}
		}
	} else {
		if frame.CRC5Valid(data[:length]) {
			status = frame.CRCValid
		} else {
			status = frame.CRCInvalid
		}
	}

	var content FrameContent
	if tf.isWork {
		content = decodeMiningJob(data, length)
	} else {
		content = decodeCommand(tf, data)
	}
	return content, status
}

func decodeCommand(tf typeFlags, data []byte) FrameContent {
	switch {
	case tf.cmd == 0 && !tf.isBroadcast:
		if len(data) < 5 {
			return InvalidContent{Reason: "SetChipAddress missing address"}
		}
		return CommandContent{Command{Kind: CmdSetChipAddress, ChipAddr: data[4]}}

	case tf.cmd == 1 && !tf.isBroadcast:
		if len(data) < 10 {
			return InvalidContent{Reason: "WriteRegister too short"}
		}
		return CommandContent{Command{
			Kind:     CmdWriteRegister,
			ChipAddr: data[4],
			RegAddr:  data[5],
			Value:    binary.LittleEndian.Uint32(data[6:10]),
		}}

	case tf.cmd == 2 && !tf.isBroadcast:
		if len(data) < 6 {
			return InvalidContent{Reason: "ReadRegister too short"}
		}
		return CommandContent{Command{Kind: CmdReadRegister, ChipAddr: data[4], RegAddr: data[5]}}

	case tf.cmd == 1 && tf.isBroadcast:
		if len(data) < 9 {
			return InvalidContent{Reason: "WriteRegisterBroadcast too short"}
		}
		return CommandContent{Command{
			Kind:    CmdWriteRegisterBroadcast,
			RegAddr: data[4],
			Value:   binary.LittleEndian.Uint32(data[5:9]),
		}}

	case tf.cmd == 2 && tf.isBroadcast:
		if len(data) < 5 {
			return InvalidContent{Reason: "ReadRegisterBroadcast too short"}
		}
		return CommandContent{Command{Kind: CmdReadRegisterBroadcast, RegAddr: data[4]}}

	default:
		return CommandContent{Command{Kind: CmdUnknown, UnknownType: data[2], Payload: append([]byte(nil), data[4:]...)}}
	}
}

// fullJobFrameLen is the total frame size of a fixed four-midstate work
// frame: header(4) + job_id(1) + reserved(1) + nbits(4) + ntime(4) +
// merkle_root_lsw(4) + 4×32 midstates(128) + crc16(2) (matches
// bm13xx.Handler.SubmitWorkFull's wire layout).
const fullJobFrameLen = 148

func decodeMiningJob(data []byte, length int) FrameContent {
	if length == fullJobFrameLen && len(data) >= fullJobFrameLen {
		var midstates [4][32]byte
		for i := range midstates {
			start := 18 + i*32
			copy(midstates[i][:], data[start:start+32])
		}
		return CommandContent{Command{
			Kind:          CmdMiningJobFull,
			JobID:         data[4],
			NBits:         binary.LittleEndian.Uint32(data[6:10]),
			NTime:         binary.LittleEndian.Uint32(data[10:14]),
			MerkleRootLSW: binary.LittleEndian.Uint32(data[14:18]),
			Midstates:     midstates[:],
		}}
	}

	if len(data) < 18 {
		return InvalidContent{Reason: "job frame too short"}
	}
	midstateNum := int(data[5])
	expectedLen := 18 + midstateNum*32 + 2
	if len(data) < expectedLen {
		return InvalidContent{Reason: fmt.Sprintf("midstate job too short: expected %d, got %d", expectedLen, len(data))}
	}

	midstates := make([][32]byte, midstateNum)
	for i := 0; i < midstateNum; i++ {
		start := 18 + i*32
		copy(midstates[i][:], data[start:start+32])
	}
	return CommandContent{Command{
		Kind:          CmdMiningJobMidstate,
		JobID:         data[4],
		MidstateNum:   data[5],
		NBits:         binary.LittleEndian.Uint32(data[6:10]),
		NTime:         binary.LittleEndian.Uint32(data[10:14]),
		MerkleRootLSW: binary.LittleEndian.Uint32(data[14:18]),
		Midstates:     midstates,
	}}
}

func dissectResponse(data []byte) (FrameContent, frame.CRCStatus) {
	if len(data) < 3 {
		return InvalidContent{Reason: fmt.Sprintf("response too short: %d bytes", len(data))}, frame.CRCNotChecked
	}
	resp, err := frame.DecodeResponse(data)
	if err != nil {
		status := frame.CRCNotChecked
		if frame.CRC5Valid(data) {
			status = frame.CRCValid
		} else {
			status = frame.CRCInvalid
		}
		return InvalidContent{Reason: err.Error()}, status
	}
	return ResponseContent{Response: resp}, resp.CRC5
}

// DissectedI2c is a fully decoded, device-formatted I2C operation.
type DissectedI2c struct {
	Timestamp float64
	Address   uint8
	Device    peripheral.Device
	Operation string
	RawData   []byte
}

// DissectI2cOperation formats a grouped I2C operation against the known
// EMC2101/TPS546 register tables (spec §4.H).
func DissectI2cOperation(op i2c.Operation) DissectedI2c {
	device := peripheral.DeviceAt(op.Address)

	var operation string
	if op.Register != nil {
		reg := *op.Register
		data := op.ReadData
		isRead := op.ReadData != nil
		if data == nil {
			data = op.WriteData
		}
		switch device {
		case peripheral.EMC2101:
			operation = "EMC2101 " + formatDeviceTransaction(peripheral.EMC2101RegisterName(reg), reg, data, isRead)
		case peripheral.TPS546:
			operation = "TPS546 " + formatDeviceTransaction(peripheral.TPS546RegisterName(reg), reg, data, isRead)
		default:
			switch {
			case op.ReadData != nil:
				operation = fmt.Sprintf("READ [0x%02x]=%s", reg, formatHex(op.ReadData))
			case op.WriteData != nil:
				operation = fmt.Sprintf("WRITE [0x%02x]=%s", reg, formatHex(op.WriteData))
			default:
				operation = fmt.Sprintf("ACCESS [0x%02x]", reg)
			}
		}
	} else {
		operation = fmt.Sprintf("I2C op @ 0x%02x", op.Address)
	}

	rawData := op.WriteData
	if rawData == nil {
		rawData = op.ReadData
	}

	return DissectedI2c{
		Timestamp: op.StartTime,
		Address:   op.Address,
		Device:    device,
		Operation: operation,
		RawData:   rawData,
	}
}

func formatDeviceTransaction(name string, reg uint8, data []byte, isRead bool) string {
	verb := "WRITE"
	if isRead {
		verb = "READ"
	}
	if data != nil {
		return fmt.Sprintf("%s %s=%s", verb, name, formatHex(data))
	}
	if isRead {
		return fmt.Sprintf("%s %s", verb, name)
	}
	return fmt.Sprintf("WRITE REG[0x%02x]", reg)
}

func formatHex(data []byte) string {
	out := make([]byte, 0, len(data)*2)
	const hexDigits = "0123456789abcdef"
	for _, b := range data {
		out = append(out, hexDigits[b>>4], hexDigits[b&0xf])
	}
	return "[" + string(out) + "]"
}
