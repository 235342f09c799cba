package main

import (
	"context"
	"encoding/binary"
	"log"
	"strconv"

	"github.com/mujina-project/mujina-core/internal/bm13xx"
	"github.com/mujina-project/mujina-core/internal/job"
	"github.com/mujina-project/mujina-core/internal/scheduler"
)

// dispatcher is the minimal job/share glue between a job source and the
// ASIC chain: it tracks the single currently active template, resubmits
// it as chip work whenever the source replaces or updates it, and turns
// chip nonce responses back into shares for the source to submit. The
// scheduler's actual dispatch policy (multi-chip fan-out, job
// prioritization) is out of scope here; this is the thin default that
// keeps the event/command interface exercised end to end.
type dispatcher struct {
	handler  *bm13xx.Handler
	events   <-chan scheduler.SourceEvent
	commands chan<- scheduler.SourceCommand
	logger   *log.Logger

	currentSV2JobID string
	currentASICID   uint8
}

func newDispatcher(handler *bm13xx.Handler, events <-chan scheduler.SourceEvent, commands chan<- scheduler.SourceCommand, logger *log.Logger) *dispatcher {
	return &dispatcher{handler: handler, events: events, commands: commands, logger: logger}
}

// asicJobID derives the single-byte chip job id the BM13xx protocol
// carries from an SV2 job_id string (which may be arbitrarily large).
func asicJobID(sv2JobID string) uint8 {
	n, err := strconv.ParseUint(sv2JobID, 10, 64)
	if err != nil {
		return 0
	}
	return uint8(n & 0xff)
}

func (d *dispatcher) runEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-d.events:
			if !ok {
				return
			}
			d.handleEvent(evt)
		}
	}
}

func (d *dispatcher) handleEvent(evt scheduler.SourceEvent) {
	var tmpl job.JobTemplate
	switch e := evt.(type) {
	case scheduler.ReplaceJob:
		tmpl = e.Template
	case scheduler.UpdateJob:
		tmpl = e.Template
	default:
		return
	}

	root, ok := tmpl.MerkleRoot.(job.FixedMerkleRoot)
	if !ok {
		d.logger.Printf("[mujina-firmwared] job %s: non-fixed merkle root unsupported on this chain", tmpl.ID)
		return
	}
	merkleRootLSW := binary.LittleEndian.Uint32(root[28:32])

	d.currentSV2JobID = tmpl.ID
	d.currentASICID = asicJobID(tmpl.ID)

	midstates := [4][32]byte{}
	if err := d.handler.SubmitWorkFull(d.currentASICID, tmpl.Bits, tmpl.Time, merkleRootLSW, midstates); err != nil {
		d.logger.Printf("[mujina-firmwared] submit work for job %s: %v", tmpl.ID, err)
	}
}

// runNonces polls the chain for nonce responses and reports each as a
// share submission back to the job source. Runs until readNonce returns
// an error (serial closed) or ctx is cancelled.
func (d *dispatcher) runNonces(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		nonce, err := d.handler.ReadNonce()
		if err != nil {
			d.logger.Printf("[mujina-firmwared] read nonce: %v", err)
			return
		}
		if nonce.JobID != d.currentASICID {
			continue
		}
		share := scheduler.SubmitShare{Share: job.Share{
			JobID: d.currentSV2JobID,
			Nonce: nonce.Value,
		}}
		select {
		case d.commands <- share:
		case <-ctx.Done():
			return
		}
	}
}
