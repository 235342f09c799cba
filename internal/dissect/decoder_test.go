package dissect

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mujina-project/mujina-core/internal/bm13xx/frame"
	"github.com/mujina-project/mujina-core/internal/dissect/i2c"
	"github.com/mujina-project/mujina-core/internal/dissect/serial"
)

func TestDissectWriteRegisterCommand(t *testing.T) {
	raw := frame.EncodeCommand(frame.CmdWriteRegister, false, append([]byte{0x01, 0x4A}, le32(0x00001234)...))
	f := serial.Frame{Direction: serial.HostToChip, StartTime: 1.0, Data: raw}

	d := DissectSerialFrame(f)
	assert.Equal(t, frame.CRCValid, d.CRCStatus)
	cmd, ok := d.Content.(CommandContent)
	require.True(t, ok)
	assert.Equal(t, CmdWriteRegister, cmd.Command.Kind)
	assert.Equal(t, uint8(0x01), cmd.Command.ChipAddr)
	assert.Equal(t, uint8(0x4A), cmd.Command.RegAddr)
	assert.Equal(t, uint32(0x00001234), cmd.Command.Value)
}

func TestDissectCommandDetectsCRCFailure(t *testing.T) {
	raw := frame.EncodeCommand(frame.CmdSetChipAddress, true, []byte{0x03})
	raw[len(raw)-1] ^= 0xff
	f := serial.Frame{Direction: serial.HostToChip, Data: raw}

	d := DissectSerialFrame(f)
	assert.Equal(t, frame.CRCInvalid, d.CRCStatus)
}

func TestDissectRegisterValueResponse(t *testing.T) {
	raw := frame.EncodeRegisterValue([2]byte{0x01, 0x02}, 0x4A, 0xdeadbeef)
	f := serial.Frame{Direction: serial.ChipToHost, Data: raw}

	d := DissectSerialFrame(f)
	assert.Equal(t, frame.CRCValid, d.CRCStatus)
	resp, ok := d.Content.(ResponseContent)
	require.True(t, ok)
	assert.Equal(t, frame.KindRegisterValue, resp.Response.Kind)
	assert.Equal(t, uint32(0xdeadbeef), resp.Response.RegValue)
}

func TestDissectNonceFoundResponse(t *testing.T) {
	raw := frame.EncodeNonceFound(42, 0x12345678, nil, nil)
	f := serial.Frame{Direction: serial.ChipToHost, Data: raw}

	d := DissectSerialFrame(f)
	resp, ok := d.Content.(ResponseContent)
	require.True(t, ok)
	assert.Equal(t, uint8(42), resp.Response.JobID)
	assert.Equal(t, "NonceFound(job=42, nonce=0x12345678)", formatResponse(resp.Response))
}

func TestDissectMiningJobFullFrame(t *testing.T) {
	var midstates [4][32]byte
	for i := range midstates {
		for j := range midstates[i] {
			midstates[i][j] = byte(i*32 + j)
		}
	}
	payload := make([]byte, 0, 142)
	payload = append(payload, 7, 0x00)
	payload = append(payload, le32(0x1a00ffff)...)
	payload = append(payload, le32(1700000000)...)
	payload = append(payload, le32(0x11223344)...)
	for _, ms := range midstates {
		payload = append(payload, ms[:]...)
	}
	raw := frame.EncodeWork(frame.CmdSendWork, payload)
	require.Len(t, raw, fullJobFrameLen)

	f := serial.Frame{Direction: serial.HostToChip, Data: raw}
	d := DissectSerialFrame(f)
	assert.Equal(t, frame.CRCValid, d.CRCStatus)
	cmd, ok := d.Content.(CommandContent)
	require.True(t, ok)
	assert.Equal(t, CmdMiningJobFull, cmd.Command.Kind)
	assert.Equal(t, uint8(7), cmd.Command.JobID)
	assert.Equal(t, uint32(0x1a00ffff), cmd.Command.NBits)
	assert.Equal(t, midstates[0], cmd.Command.Midstates[0])
	assert.Equal(t, midstates[3], cmd.Command.Midstates[3])
}

func TestDissectMiningJobMidstateFrame(t *testing.T) {
	var ms [2][32]byte
	payload := make([]byte, 0, 14+64)
	payload = append(payload, 9, 2)
	payload = append(payload, le32(0x1a00ffff)...)
	payload = append(payload, le32(1700000000)...)
	payload = append(payload, le32(0xaabbccdd)...)
	payload = append(payload, ms[0][:]...)
	payload = append(payload, ms[1][:]...)
	raw := frame.EncodeWork(frame.CmdSendWork, payload)

	d := DissectSerialFrame(serial.Frame{Direction: serial.HostToChip, Data: raw})
	cmd, ok := d.Content.(CommandContent)
	require.True(t, ok)
	assert.Equal(t, CmdMiningJobMidstate, cmd.Command.Kind)
	assert.Equal(t, uint8(2), cmd.Command.MidstateNum)
	assert.Len(t, cmd.Command.Midstates, 2)
}

func TestDissectI2cOperationEmc2101(t *testing.T) {
	reg := uint8(0x4C)
	op := i2c.Operation{Address: 0x4C, Register: &reg, ReadData: []byte{0x50}}
	d := DissectI2cOperation(op)
	assert.Equal(t, "EMC2101 READ FAN_SETTING=[50]", d.Operation)
}

func TestDissectI2cOperationUnknownDevice(t *testing.T) {
	reg := uint8(0x10)
	op := i2c.Operation{Address: 0x50, Register: &reg, WriteData: []byte{0x01}}
	d := DissectI2cOperation(op)
	assert.Equal(t, "WRITE [0x10]=[01]", d.Operation)
}

func le32(v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return b[:]
}
