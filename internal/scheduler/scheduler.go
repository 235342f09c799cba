// Package scheduler defines the channel-level contract between a job
// source and the scheduler that consumes its work (§6 "Scheduler
// interface"). No queueing or dispatch policy lives here — that is the
// scheduler's own concern and out of scope for this core (§1 Non-goals).
package scheduler

import "github.com/mujina-project/mujina-core/internal/job"

// SourceEvent is emitted by a job source toward the scheduler.
type SourceEvent interface {
	isSourceEvent()
}

// UpdateJob carries a new template; prior outstanding work remains valid.
type UpdateJob struct {
	Template job.JobTemplate
}

func (UpdateJob) isSourceEvent() {}

// ReplaceJob carries a new template; outstanding work must be discarded.
type ReplaceJob struct {
	Template job.JobTemplate
}

func (ReplaceJob) isSourceEvent() {}

// SourceCommand is sent by the scheduler toward a job source.
type SourceCommand interface {
	isSourceCommand()
}

// SubmitShare asks the source to submit a found share to the pool.
type SubmitShare struct {
	Share job.Share
}

func (SubmitShare) isSourceCommand() {}

// Channels bundles the two directions a source and scheduler exchange
// (§5 "the source owns its socket, its ProtocolState, and the two channels
// to the scheduler").
type Channels struct {
	Events   chan<- SourceEvent
	Commands <-chan SourceCommand
}
