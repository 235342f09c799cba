// Package state tracks per-connection Stratum V2 protocol state: the
// channel id, the share sequence counter, the future-job rendezvous table,
// the pending prev-hash, the current target and the version-rolling mask.
package state

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/mujina-project/mujina-core/internal/sv2/wire"
)

// MaxFutureJobs bounds the future-job table (§4.D, §8 invariant 4): pools
// advertise future jobs faster than any SetNewPrevHash arrives to retire
// them, so the table is size-bounded rather than time-bounded.
const MaxFutureJobs = 10

// ProtocolState is pure per-connection state, owned by the single goroutine
// that runs a Source's reactor loop. The sequence counter is atomic only as
// a convenience; nothing here is read concurrently from more than one
// goroutine (§9 "State ownership").
type ProtocolState struct {
	mu sync.Mutex

	channelID   uint32
	channelSet  bool
	futureJobs  map[uint32]wire.NewMiningJob
	prevHash    *wire.SetNewPrevHash
	target      [32]byte
	targetSet   bool
	versionMask uint32
	maskSet     bool

	sequenceNumber atomic.Uint32
}

// New returns an empty ProtocolState.
func New() *ProtocolState {
	return &ProtocolState{futureJobs: make(map[uint32]wire.NewMiningJob)}
}

// SetChannelID records the channel id from OpenStandardMiningChannelSuccess.
func (s *ProtocolState) SetChannelID(id uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channelID = id
	s.channelSet = true
}

// ChannelID returns the channel id and whether one has been set.
func (s *ProtocolState) ChannelID() (uint32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channelID, s.channelSet
}

// NextSequenceNumber returns the next share sequence number, starting at 0
// and incrementing by exactly one per call (§8 invariant 1).
func (s *ProtocolState) NextSequenceNumber() uint32 {
	return s.sequenceNumber.Add(1) - 1
}

// StoreFutureJob records a future job, then evicts down to MaxFutureJobs by
// keeping only the entries with the largest job_id values (§8 invariant 4).
func (s *ProtocolState) StoreFutureJob(j wire.NewMiningJob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.futureJobs[j.JobID] = j
	s.evictOldJobsLocked()
}

func (s *ProtocolState) evictOldJobsLocked() {
	if len(s.futureJobs) <= MaxFutureJobs {
		return
	}
	ids := make([]uint32, 0, len(s.futureJobs))
	for id := range s.futureJobs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	toRemove := len(ids) - MaxFutureJobs
	for _, id := range ids[:toRemove] {
		delete(s.futureJobs, id)
	}
}

// FutureJob returns a stored future job by id.
func (s *ProtocolState) FutureJob(jobID uint32) (wire.NewMiningJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.futureJobs[jobID]
	return j, ok
}

// RemoveFutureJob discards a future job once it has been activated.
func (s *ProtocolState) RemoveFutureJob(jobID uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.futureJobs, jobID)
}

// FutureJobCount reports the number of pending future jobs.
func (s *ProtocolState) FutureJobCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.futureJobs)
}

// SetPendingPrevHash records the most recent SetNewPrevHash, overwriting any
// earlier pending one — the rendezvous table holds at most one (§9).
func (s *ProtocolState) SetPendingPrevHash(p wire.SetNewPrevHash) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prevHash = &p
}

// PendingPrevHash returns the pending prev-hash for jobID, if its job_id
// matches, without consuming it.
func (s *ProtocolState) PendingPrevHash(jobID uint32) (wire.SetNewPrevHash, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.prevHash == nil || s.prevHash.JobID != jobID {
		return wire.SetNewPrevHash{}, false
	}
	return *s.prevHash, true
}

// ClearPendingPrevHash discards the pending prev-hash once consumed.
func (s *ProtocolState) ClearPendingPrevHash() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prevHash = nil
}

// SetTarget records the current mining target.
func (s *ProtocolState) SetTarget(target [32]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.target = target
	s.targetSet = true
}

// Target returns the current target and whether one has been set.
func (s *ProtocolState) Target() ([32]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target, s.targetSet
}

// SetVersionMask records the version-rolling mask advertised at setup.
func (s *ProtocolState) SetVersionMask(mask uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.versionMask = mask
	s.maskSet = true
}

// VersionMask returns the version-rolling mask and whether one was
// advertised.
func (s *ProtocolState) VersionMask() (uint32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.versionMask, s.maskSet
}
