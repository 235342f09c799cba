// Package bridge converts between Stratum V2 wire messages and the
// source-agnostic job/share types the scheduler surface exchanges (§4.E).
package bridge

import (
	"fmt"
	"strconv"

	"github.com/mujina-project/mujina-core/internal/job"
	"github.com/mujina-project/mujina-core/internal/sv2/wire"
)

// rollableBitsShift is the bit position where the 16-bit version-rolling
// field SV2 exposes starts (bits 13-28 of the 32-bit mask), per §9
// "Version rolling bits".
const rollableBitsShift = 13

// JobToTemplate combines an activated NewMiningJob with its matching
// SetNewPrevHash, the current target and the advertised version-rolling
// mask into a JobTemplate. Absence of a mask means full-16-bits-rollable,
// the protocol default (§9).
func JobToTemplate(j wire.NewMiningJob, prevHash wire.SetNewPrevHash, target [32]byte, versionMask uint32, maskSet bool) job.JobTemplate {
	gpBits := job.FullGeneralPurposeBits
	if maskSet {
		gpBits = job.GeneralPurposeBits((versionMask >> rollableBitsShift) & 0xffff)
	}

	return job.JobTemplate{
		ID:            strconv.FormatUint(uint64(j.JobID), 10),
		PrevBlockHash: prevHash.PrevHash,
		Version:       job.VersionTemplate{Base: j.Version, GPBits: gpBits},
		Bits:          prevHash.NBits,
		ShareTarget:   target,
		Time:          prevHash.MinNTime,
		MerkleRoot:    job.FixedMerkleRoot(j.MerkleRoot),
	}
}

// ShareToSubmit converts a Share into a SubmitSharesStandard for the given
// channel and sequence number. JobID must parse back to the u32 job_id the
// SV2 path round-trips through decimal (§9 "Share.job_id as string") — a
// parse failure is a data error, not fatal.
func ShareToSubmit(s job.Share, channelID, sequenceNumber uint32) (wire.SubmitSharesStandard, error) {
	jobID, err := strconv.ParseUint(s.JobID, 10, 32)
	if err != nil {
		return wire.SubmitSharesStandard{}, fmt.Errorf("share job_id %q: %w", s.JobID, err)
	}

	return wire.SubmitSharesStandard{
		ChannelID:   channelID,
		SequenceNum: sequenceNumber,
		JobID:       uint32(jobID),
		Nonce:       s.Nonce,
		NTime:       s.Time,
		Version:     s.Version,
	}, nil
}
