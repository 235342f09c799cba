package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mujina-project/mujina-core/internal/sv2/wire"
)

func TestNextSequenceNumberStartsAtZeroAndIncrementsByOne(t *testing.T) {
	s := New()
	assert.Equal(t, uint32(0), s.NextSequenceNumber())
	assert.Equal(t, uint32(1), s.NextSequenceNumber())
	assert.Equal(t, uint32(2), s.NextSequenceNumber())
}

func TestStoreFutureJobKeepsTenLargestJobIDs(t *testing.T) {
	s := New()
	for id := uint32(1); id <= 15; id++ {
		s.StoreFutureJob(wire.NewMiningJob{JobID: id})
	}
	require.Equal(t, MaxFutureJobs, s.FutureJobCount())
	for id := uint32(1); id <= 5; id++ {
		_, ok := s.FutureJob(id)
		assert.False(t, ok, "job %d should have been evicted", id)
	}
	for id := uint32(6); id <= 15; id++ {
		_, ok := s.FutureJob(id)
		assert.True(t, ok, "job %d should remain", id)
	}
}

func TestPendingPrevHashMatchesOnlyItsJobID(t *testing.T) {
	s := New()
	s.SetPendingPrevHash(wire.SetNewPrevHash{JobID: 42, NBits: 0x1a00ffff})

	_, ok := s.PendingPrevHash(7)
	assert.False(t, ok)

	p, ok := s.PendingPrevHash(42)
	require.True(t, ok)
	assert.Equal(t, uint32(0x1a00ffff), p.NBits)
}

func TestPendingPrevHashOverwritesEarlierOne(t *testing.T) {
	s := New()
	s.SetPendingPrevHash(wire.SetNewPrevHash{JobID: 1})
	s.SetPendingPrevHash(wire.SetNewPrevHash{JobID: 2})

	_, ok := s.PendingPrevHash(1)
	assert.False(t, ok)
	_, ok = s.PendingPrevHash(2)
	assert.True(t, ok)
}

func TestClearPendingPrevHash(t *testing.T) {
	s := New()
	s.SetPendingPrevHash(wire.SetNewPrevHash{JobID: 1})
	s.ClearPendingPrevHash()
	_, ok := s.PendingPrevHash(1)
	assert.False(t, ok)
}

func TestChannelIDUnsetByDefault(t *testing.T) {
	s := New()
	_, ok := s.ChannelID()
	assert.False(t, ok)

	s.SetChannelID(7)
	id, ok := s.ChannelID()
	require.True(t, ok)
	assert.Equal(t, uint32(7), id)
}

func TestVersionMaskUnsetByDefault(t *testing.T) {
	s := New()
	_, ok := s.VersionMask()
	assert.False(t, ok)

	s.SetVersionMask(0x1fffe000)
	mask, ok := s.VersionMask()
	require.True(t, ok)
	assert.Equal(t, uint32(0x1fffe000), mask)
}
