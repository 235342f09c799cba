package serial

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mujina-project/mujina-core/internal/dissect/capture"
)

func feed(t *testing.T, a *Assembler, ch capture.Channel, data []byte, start, spacing float64) *Frame {
	t.Helper()
	var frame *Frame
	ts := start
	for _, b := range data {
		if f := a.Process(capture.SerialEvent{Timestamp: ts, Data: b, Channel: ch}); f != nil {
			frame = f
		}
		ts += spacing
	}
	return frame
}

// TestWriteRegisterFrameAssembly is scenario S5: a 9-byte WriteRegister
// command frame, evenly spaced, assembles into one complete frame.
func TestWriteRegisterFrameAssembly(t *testing.T) {
	a := NewAssembler(HostToChip, nil)
	data := []byte{0x55, 0xAA, 0x01, 0x09, 0x01, 0x02, 0x03, 0x04, 0x05}
	frame := feed(t, a, capture.CI, data, 0, 0.0001)

	require.NotNil(t, frame)
	assert.False(t, frame.HasErrors)
	assert.Equal(t, data, frame.Data)
	assert.Equal(t, HostToChip, frame.Direction)
}

// TestInterByteTimeoutBreaksOffIncompleteFrame is scenario S6: a 3-byte
// prefix followed by a 5ms gap assembles into one errored, incomplete
// frame; the assembler then resets and restarts assembly with the byte
// that ended the gap (0x55 here, so it waits in FoundFirst).
func TestInterByteTimeoutBreaksOffIncompleteFrame(t *testing.T) {
	a := NewAssembler(HostToChip, nil)

	require.Nil(t, a.Process(capture.SerialEvent{Timestamp: 0, Data: 0x55, Channel: capture.CI}))
	require.Nil(t, a.Process(capture.SerialEvent{Timestamp: 0.0001, Data: 0xAA, Channel: capture.CI}))
	require.Nil(t, a.Process(capture.SerialEvent{Timestamp: 0.0002, Data: 0x01, Channel: capture.CI}))

	frame := a.Process(capture.SerialEvent{Timestamp: 0.0002 + 0.005, Data: 0x55, Channel: capture.CI})
	require.NotNil(t, frame)
	assert.True(t, frame.HasErrors)
	assert.Equal(t, []byte{0x55, 0xAA, 0x01}, frame.Data)

	assert.Equal(t, stateFoundFirst, a.state)
}

func TestFlushBreaksOffInProgressFrame(t *testing.T) {
	a := NewAssembler(ChipToHost, nil)
	require.Nil(t, a.Process(capture.SerialEvent{Timestamp: 0, Data: 0xAA, Channel: capture.RO}))
	require.Nil(t, a.Process(capture.SerialEvent{Timestamp: 0.0001, Data: 0x55, Channel: capture.RO}))

	frame := a.Flush()
	require.NotNil(t, frame)
	assert.True(t, frame.HasErrors)
	assert.Equal(t, []byte{0xAA, 0x55}, frame.Data)
}

// TestResponseFrameHeuristic covers the 7/9/10/11/>=20-byte completion
// rule for chip-to-host frames.
func TestResponseFrameHeuristic(t *testing.T) {
	for _, n := range []int{7, 9, 10, 11, 20} {
		a := NewAssembler(ChipToHost, nil)
		data := make([]byte, n)
		data[0], data[1] = 0xAA, 0x55
		for i := 2; i < n; i++ {
			data[i] = byte(i)
		}
		frame := feed(t, a, capture.RO, data, 0, 0.0001)
		require.NotNilf(t, frame, "length %d should complete", n)
		assert.Equal(t, n, len(frame.Data))
	}
}

func TestResponseFrameLengthEightDoesNotComplete(t *testing.T) {
	a := NewAssembler(ChipToHost, nil)
	data := []byte{0xAA, 0x55, 1, 2, 3, 4, 5, 6}
	frame := feed(t, a, capture.RO, data, 0, 0.0001)
	assert.Nil(t, frame)
}

func TestMultiChannelAssemblerOrdersFramesByCompletion(t *testing.T) {
	m := NewMultiChannelAssembler(nil)
	ci := []byte{0x55, 0xAA, 0x00, 0x05, 0x01}
	for i, b := range ci {
		m.Process(capture.SerialEvent{Timestamp: float64(i) * 0.0001, Data: b, Channel: capture.CI})
	}
	ro := []byte{0xAA, 0x55, 1, 2, 3, 4, 5}
	for i, b := range ro {
		m.Process(capture.SerialEvent{Timestamp: float64(i) * 0.0001, Data: b, Channel: capture.RO})
	}

	first, ok := m.NextFrame()
	require.True(t, ok)
	assert.Equal(t, HostToChip, first.Direction)

	second, ok := m.NextFrame()
	require.True(t, ok)
	assert.Equal(t, ChipToHost, second.Direction)

	_, ok = m.NextFrame()
	assert.False(t, ok)
}
