package wire

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
)

// Serializer handles binary message serialization with a reusable buffer.
type Serializer struct {
	buf *bytes.Buffer
}

// NewSerializer creates a new serializer with a pre-allocated buffer.
func NewSerializer() *Serializer {
	return &Serializer{buf: bytes.NewBuffer(make([]byte, 0, 256))}
}

func (s *Serializer) Reset()        { s.buf.Reset() }
func (s *Serializer) Bytes() []byte { return s.buf.Bytes() }

func (s *Serializer) WriteU8(v uint8) { s.buf.WriteByte(v) }

func (s *Serializer) WriteU16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	s.buf.Write(b[:])
}

func (s *Serializer) WriteU24(v uint32) {
	s.buf.WriteByte(byte(v & 0xFF))
	s.buf.WriteByte(byte((v >> 8) & 0xFF))
	s.buf.WriteByte(byte((v >> 16) & 0xFF))
}

func (s *Serializer) WriteU32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	s.buf.Write(b[:])
}

func (s *Serializer) WriteU64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	s.buf.Write(b[:])
}

func (s *Serializer) WriteF32(v float32) { s.WriteU32(math.Float32bits(v)) }

func (s *Serializer) WriteBool(v bool) {
	if v {
		s.buf.WriteByte(1)
	} else {
		s.buf.WriteByte(0)
	}
}

func (s *Serializer) WriteFixedBytes(b []byte, n int) {
	if len(b) >= n {
		s.buf.Write(b[:n])
		return
	}
	s.buf.Write(b)
	for i := len(b); i < n; i++ {
		s.buf.WriteByte(0)
	}
}

func (s *Serializer) WriteSTR0_255(str string) {
	if len(str) > 255 {
		str = str[:255]
	}
	s.buf.WriteByte(byte(len(str)))
	s.buf.WriteString(str)
}

func (s *Serializer) WriteHeader(h *FrameHeader) {
	s.WriteU16(h.ExtensionType)
	s.WriteU8(h.MsgType)
	s.WriteU24(h.MsgLength)
}

// -----------------------------------------------------------------------------
// Message serializers
// -----------------------------------------------------------------------------

func (s *Serializer) SerializeSetupConnection(msg *SetupConnection) []byte {
	s.Reset()
	s.WriteU8(msg.Protocol)
	s.WriteU16(msg.MinVersion)
	s.WriteU16(msg.MaxVersion)
	s.WriteU32(msg.Flags)
	s.WriteSTR0_255(string(msg.Endpoint))
	s.WriteSTR0_255(string(msg.Vendor))
	s.WriteSTR0_255(string(msg.HardwareVersion))
	s.WriteSTR0_255(string(msg.FirmwareVersion))
	s.WriteSTR0_255(string(msg.DeviceID))
	return s.Bytes()
}

func (s *Serializer) SerializeOpenStandardMiningChannel(msg *OpenStandardMiningChannel) []byte {
	s.Reset()
	s.WriteU32(msg.RequestID)
	s.WriteSTR0_255(string(msg.UserIdentity))
	s.WriteF32(msg.NominalHashrate)
	s.WriteFixedBytes(msg.MaxTargetRequired[:], 32)
	return s.Bytes()
}

func (s *Serializer) SerializeSubmitSharesStandard(msg *SubmitSharesStandard) []byte {
	s.Reset()
	s.WriteU32(msg.ChannelID)
	s.WriteU32(msg.SequenceNum)
	s.WriteU32(msg.JobID)
	s.WriteU32(msg.Nonce)
	s.WriteU32(msg.NTime)
	s.WriteU32(msg.Version)
	return s.Bytes()
}

// SerializeFrame creates a complete frame: header followed by payload.
func (s *Serializer) SerializeFrame(msgType uint8, extensionType uint16, payload []byte) []byte {
	header := &FrameHeader{ExtensionType: extensionType, MsgType: msgType, MsgLength: uint32(len(payload))}
	result := make([]byte, HeaderSize+len(payload))
	copy(result[:HeaderSize], header.Serialize())
	copy(result[HeaderSize:], payload)
	return result
}

// =============================================================================
// DESERIALIZER
// =============================================================================

// Deserializer handles binary message deserialization.
type Deserializer struct {
	data []byte
	pos  int
}

// NewDeserializer creates a new deserializer over data.
func NewDeserializer(data []byte) *Deserializer {
	return &Deserializer{data: data}
}

func (d *Deserializer) Remaining() int { return len(d.data) - d.pos }

func (d *Deserializer) ReadU8() (uint8, error) {
	if d.Remaining() < 1 {
		return 0, io.ErrUnexpectedEOF
	}
	v := d.data[d.pos]
	d.pos++
	return v, nil
}

func (d *Deserializer) ReadU16() (uint16, error) {
	if d.Remaining() < 2 {
		return 0, io.ErrUnexpectedEOF
	}
	v := binary.LittleEndian.Uint16(d.data[d.pos:])
	d.pos += 2
	return v, nil
}

func (d *Deserializer) ReadU24() (uint32, error) {
	if d.Remaining() < 3 {
		return 0, io.ErrUnexpectedEOF
	}
	v := uint32(d.data[d.pos]) | uint32(d.data[d.pos+1])<<8 | uint32(d.data[d.pos+2])<<16
	d.pos += 3
	return v, nil
}

func (d *Deserializer) ReadU32() (uint32, error) {
	if d.Remaining() < 4 {
		return 0, io.ErrUnexpectedEOF
	}
	v := binary.LittleEndian.Uint32(d.data[d.pos:])
	d.pos += 4
	return v, nil
}

func (d *Deserializer) ReadU64() (uint64, error) {
	if d.Remaining() < 8 {
		return 0, io.ErrUnexpectedEOF
	}
	v := binary.LittleEndian.Uint64(d.data[d.pos:])
	d.pos += 8
	return v, nil
}

func (d *Deserializer) ReadF32() (float32, error) {
	bits, err := d.ReadU32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(bits), nil
}

func (d *Deserializer) ReadBool() (bool, error) {
	v, err := d.ReadU8()
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

func (d *Deserializer) ReadFixedBytes32() ([32]byte, error) {
	var v [32]byte
	if d.Remaining() < 32 {
		return v, io.ErrUnexpectedEOF
	}
	copy(v[:], d.data[d.pos:d.pos+32])
	d.pos += 32
	return v, nil
}

func (d *Deserializer) ReadSTR0_255() (STR0_255, error) {
	length, err := d.ReadU8()
	if err != nil {
		return "", err
	}
	if d.Remaining() < int(length) {
		return "", io.ErrUnexpectedEOF
	}
	v := string(d.data[d.pos : d.pos+int(length)])
	d.pos += int(length)
	return STR0_255(v), nil
}

func (d *Deserializer) ReadHeader() (*FrameHeader, error) {
	extType, err := d.ReadU16()
	if err != nil {
		return nil, err
	}
	msgType, err := d.ReadU8()
	if err != nil {
		return nil, err
	}
	msgLen, err := d.ReadU24()
	if err != nil {
		return nil, err
	}
	return &FrameHeader{ExtensionType: extType, MsgType: msgType, MsgLength: msgLen}, nil
}

// -----------------------------------------------------------------------------
// Message deserializers
// -----------------------------------------------------------------------------

func (d *Deserializer) DeserializeSetupConnectionSuccess() (*SetupConnectionSuccess, error) {
	msg := &SetupConnectionSuccess{}
	var err error
	if msg.UsedVersion, err = d.ReadU16(); err != nil {
		return nil, err
	}
	if msg.Flags, err = d.ReadU32(); err != nil {
		return nil, err
	}
	return msg, nil
}

func (d *Deserializer) DeserializeSetupConnectionError() (*SetupConnectionError, error) {
	msg := &SetupConnectionError{}
	var err error
	if msg.Flags, err = d.ReadU32(); err != nil {
		return nil, err
	}
	if msg.ErrorCode, err = d.ReadSTR0_255(); err != nil {
		return nil, err
	}
	return msg, nil
}

func (d *Deserializer) DeserializeOpenStandardMiningChannelSuccess() (*OpenStandardMiningChannelSuccess, error) {
	msg := &OpenStandardMiningChannelSuccess{}
	var err error
	if msg.RequestID, err = d.ReadU32(); err != nil {
		return nil, err
	}
	if msg.ChannelID, err = d.ReadU32(); err != nil {
		return nil, err
	}
	if msg.Target, err = d.ReadFixedBytes32(); err != nil {
		return nil, err
	}
	if msg.ExtraNonce2Size, err = d.ReadU16(); err != nil {
		return nil, err
	}
	if msg.GroupChannelID, err = d.ReadU32(); err != nil {
		return nil, err
	}
	return msg, nil
}

func (d *Deserializer) DeserializeOpenStandardMiningChannelError() (*OpenStandardMiningChannelError, error) {
	msg := &OpenStandardMiningChannelError{}
	var err error
	if msg.RequestID, err = d.ReadU32(); err != nil {
		return nil, err
	}
	if msg.ErrorCode, err = d.ReadSTR0_255(); err != nil {
		return nil, err
	}
	return msg, nil
}

func (d *Deserializer) DeserializeNewMiningJob() (*NewMiningJob, error) {
	msg := &NewMiningJob{}
	var err error
	if msg.ChannelID, err = d.ReadU32(); err != nil {
		return nil, err
	}
	if msg.JobID, err = d.ReadU32(); err != nil {
		return nil, err
	}
	if msg.IsFuture, err = d.ReadBool(); err != nil {
		return nil, err
	}
	if msg.Version, err = d.ReadU32(); err != nil {
		return nil, err
	}
	if msg.MerkleRoot, err = d.ReadFixedBytes32(); err != nil {
		return nil, err
	}
	return msg, nil
}

func (d *Deserializer) DeserializeSetNewPrevHash() (*SetNewPrevHash, error) {
	msg := &SetNewPrevHash{}
	var err error
	if msg.ChannelID, err = d.ReadU32(); err != nil {
		return nil, err
	}
	if msg.JobID, err = d.ReadU32(); err != nil {
		return nil, err
	}
	if msg.PrevHash, err = d.ReadFixedBytes32(); err != nil {
		return nil, err
	}
	if msg.MinNTime, err = d.ReadU32(); err != nil {
		return nil, err
	}
	if msg.NBits, err = d.ReadU32(); err != nil {
		return nil, err
	}
	return msg, nil
}

func (d *Deserializer) DeserializeSubmitSharesSuccess() (*SubmitSharesSuccess, error) {
	msg := &SubmitSharesSuccess{}
	var err error
	if msg.ChannelID, err = d.ReadU32(); err != nil {
		return nil, err
	}
	if msg.LastSequenceNum, err = d.ReadU32(); err != nil {
		return nil, err
	}
	if msg.NewSubmits, err = d.ReadU32(); err != nil {
		return nil, err
	}
	if msg.NewSharesSum, err = d.ReadU64(); err != nil {
		return nil, err
	}
	return msg, nil
}

func (d *Deserializer) DeserializeSubmitSharesError() (*SubmitSharesError, error) {
	msg := &SubmitSharesError{}
	var err error
	if msg.ChannelID, err = d.ReadU32(); err != nil {
		return nil, err
	}
	if msg.SequenceNum, err = d.ReadU32(); err != nil {
		return nil, err
	}
	if msg.ErrorCode, err = d.ReadSTR0_255(); err != nil {
		return nil, err
	}
	return msg, nil
}

func (d *Deserializer) DeserializeSetTarget() (*SetTarget, error) {
	msg := &SetTarget{}
	var err error
	if msg.ChannelID, err = d.ReadU32(); err != nil {
		return nil, err
	}
	if msg.MaxTarget, err = d.ReadFixedBytes32(); err != nil {
		return nil, err
	}
	return msg, nil
}
