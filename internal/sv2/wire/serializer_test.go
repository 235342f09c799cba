package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameHeaderRoundTrips(t *testing.T) {
	h := &FrameHeader{ExtensionType: 0, MsgType: MsgTypeNewMiningJob, MsgLength: 41}
	got, err := ParseHeader(h.Serialize())
	require.NoError(t, err)
	assert.Equal(t, h, got)
}

func TestSetupConnectionRoundTrips(t *testing.T) {
	s := NewSerializer()
	payload := s.SerializeSetupConnection(&SetupConnection{
		Protocol:   0,
		MinVersion: 2,
		MaxVersion: 2,
		Flags:      FlagRequiresStandardJobs,
		DeviceID:   "worker1",
	})

	d := NewDeserializer(payload)
	proto, err := d.ReadU8()
	require.NoError(t, err)
	assert.Equal(t, uint8(0), proto)
}

func TestOpenStandardMiningChannelSuccessRoundTrips(t *testing.T) {
	want := &OpenStandardMiningChannelSuccess{
		RequestID:       0,
		ChannelID:       7,
		Target:          [32]byte{0xff},
		ExtraNonce2Size: 4,
		GroupChannelID:  1,
	}
	s := NewSerializer()
	s.WriteU32(want.RequestID)
	s.WriteU32(want.ChannelID)
	s.WriteFixedBytes(want.Target[:], 32)
	s.WriteU16(want.ExtraNonce2Size)
	s.WriteU32(want.GroupChannelID)

	got, err := NewDeserializer(s.Bytes()).DeserializeOpenStandardMiningChannelSuccess()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestNewMiningJobRoundTrips(t *testing.T) {
	want := &NewMiningJob{ChannelID: 1, JobID: 42, IsFuture: true, Version: 0x20000000, MerkleRoot: [32]byte{0x11}}
	s := NewSerializer()
	s.WriteU32(want.ChannelID)
	s.WriteU32(want.JobID)
	s.WriteBool(want.IsFuture)
	s.WriteU32(want.Version)
	s.WriteFixedBytes(want.MerkleRoot[:], 32)

	got, err := NewDeserializer(s.Bytes()).DeserializeNewMiningJob()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSubmitSharesStandardRoundTrips(t *testing.T) {
	want := &SubmitSharesStandard{ChannelID: 7, SequenceNum: 0, JobID: 42, Nonce: 0xdeadbeef, NTime: 1700000010, Version: 0x20200000}
	s := NewSerializer()
	payload := s.SerializeSubmitSharesStandard(want)

	d := NewDeserializer(payload)
	got := &SubmitSharesStandard{}
	var err error
	if got.ChannelID, err = d.ReadU32(); err != nil {
		t.Fatal(err)
	}
	if got.SequenceNum, err = d.ReadU32(); err != nil {
		t.Fatal(err)
	}
	if got.JobID, err = d.ReadU32(); err != nil {
		t.Fatal(err)
	}
	if got.Nonce, err = d.ReadU32(); err != nil {
		t.Fatal(err)
	}
	if got.NTime, err = d.ReadU32(); err != nil {
		t.Fatal(err)
	}
	if got.Version, err = d.ReadU32(); err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, want, got)
}

func TestDeserializerRejectsTruncatedInput(t *testing.T) {
	d := NewDeserializer([]byte{0x01, 0x02})
	_, err := d.ReadU32()
	assert.Error(t, err)
}
