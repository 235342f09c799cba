package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mujina-project/mujina-core/internal/job"
	"github.com/mujina-project/mujina-core/internal/sv2/wire"
)

func repeat32(b byte) [32]byte {
	var out [32]byte
	for i := range out {
		out[i] = b
	}
	return out
}

// TestJobToTemplateHappyPath is scenario S1.
func TestJobToTemplateHappyPath(t *testing.T) {
	newJob := wire.NewMiningJob{
		JobID:      42,
		IsFuture:   true,
		Version:    0x20000000,
		MerkleRoot: repeat32(0x11),
	}
	prevHash := wire.SetNewPrevHash{
		JobID:    42,
		PrevHash: repeat32(0x22),
		NBits:    0x1a00ffff,
		MinNTime: 1700000000,
	}

	tmpl := JobToTemplate(newJob, prevHash, [32]byte{}, 0, false)

	assert.Equal(t, "42", tmpl.ID)
	assert.Equal(t, uint32(0x20000000), tmpl.Version.Base)
	assert.Equal(t, uint32(0x1a00ffff), tmpl.Bits)
	assert.Equal(t, uint32(1700000000), tmpl.Time)
	assert.Equal(t, repeat32(0x22), tmpl.PrevBlockHash)
	assert.Equal(t, job.FixedMerkleRoot(repeat32(0x11)), tmpl.MerkleRoot)
	assert.Equal(t, job.FullGeneralPurposeBits, tmpl.Version.GPBits)
}

func TestJobToTemplateExtractsVersionMaskBits13To28(t *testing.T) {
	newJob := wire.NewMiningJob{JobID: 1, Version: 0x20000000}
	prevHash := wire.SetNewPrevHash{JobID: 1}

	tmpl := JobToTemplate(newJob, prevHash, [32]byte{}, 0x1fffe000, true)

	assert.Equal(t, job.GeneralPurposeBits(0xffff), tmpl.Version.GPBits)
}

// TestShareToSubmit is scenario S4.
func TestShareToSubmit(t *testing.T) {
	s := job.Share{JobID: "42", Nonce: 0xdeadbeef, Time: 1700000010, Version: 0x20200000}

	submit, err := ShareToSubmit(s, 7, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), submit.ChannelID)
	assert.Equal(t, uint32(0), submit.SequenceNum)
	assert.Equal(t, uint32(42), submit.JobID)
	assert.Equal(t, uint32(0xdeadbeef), submit.Nonce)
	assert.Equal(t, uint32(1700000010), submit.NTime)
	assert.Equal(t, uint32(0x20200000), submit.Version)

	submit2, err := ShareToSubmit(s, 7, 1)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), submit2.SequenceNum)
}

func TestShareToSubmitRejectsNonNumericJobID(t *testing.T) {
	s := job.Share{JobID: "not-a-number"}
	_, err := ShareToSubmit(s, 1, 0)
	assert.Error(t, err)
}
