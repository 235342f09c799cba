// Package sv2 bridges a Stratum V2 pool connection to the scheduler's
// source-agnostic SourceEvent/SourceCommand surface (§4.C/D/E, §5).
package sv2

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/mujina-project/mujina-core/internal/job"
	"github.com/mujina-project/mujina-core/internal/mujerr"
	"github.com/mujina-project/mujina-core/internal/scheduler"
	"github.com/mujina-project/mujina-core/internal/sv2/bridge"
	"github.com/mujina-project/mujina-core/internal/sv2/state"
	"github.com/mujina-project/mujina-core/internal/sv2/transport"
	"github.com/mujina-project/mujina-core/internal/sv2/wire"
)

// Config configures a Source's connection to a pool.
type Config struct {
	// PoolURL is an sv2+tcp://host:port address (§6).
	PoolURL string
	// Worker identifies this device to the pool (device_id / user_identity).
	Worker string
}

// maxTargetAny is the widest possible target, sent on channel open to
// accept any difficulty the pool assigns (§6 "max_target = 32 x 0xFF").
var maxTargetAny = [32]byte{
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
}

// nominalHashrate is a placeholder advertised hashrate; the pool adjusts
// the assigned target as real performance is observed.
const nominalHashrate float32 = 1_000_000_000_000.0 // 1 TH/s

const protocolMining uint8 = 0
const setupMinVersion, setupMaxVersion uint16 = 2, 2

// Source owns one pool connection, its ProtocolState, and the two channels
// to the scheduler (§5 "Scheduling model"). It runs single-threaded except
// for the reader goroutine that turns blocking socket reads into a channel
// the main select can multiplex over.
type Source struct {
	config Config
	conn   Conn
	state  *state.ProtocolState
	ser    *wire.Serializer

	events   chan<- scheduler.SourceEvent
	commands <-chan scheduler.SourceCommand

	runID  uuid.UUID
	logger *log.Logger
}

// poolFrame is one decoded message pulled off the reader goroutine.
type poolFrame struct {
	msgType uint8
	payload []byte
	err     error
}

// New builds a Source. A nil logger falls back to log.Default().
func New(config Config, events chan<- scheduler.SourceEvent, commands <-chan scheduler.SourceCommand, logger *log.Logger) *Source {
	if logger == nil {
		logger = log.Default()
	}
	return &Source{
		config:   config,
		state:    state.New(),
		ser:      wire.NewSerializer(),
		events:   events,
		commands: commands,
		runID:    uuid.New(),
		logger:   logger,
	}
}

// Run connects to the pool, performs setup, and runs the main reactor loop
// until ctx is cancelled or a transport/protocol-fatal error occurs
// (§7 "Transport-fatal"/"Protocol-fatal").
func (s *Source) Run(ctx context.Context) error {
	addr, err := transport.ParseURL(s.config.PoolURL)
	if err != nil {
		return err
	}

	conn, err := dial(addr)
	if err != nil {
		return fmt.Errorf("connect to pool: %w", err)
	}
	s.conn = conn
	defer conn.Close()

	if err := s.setupConnection(addr); err != nil {
		return fmt.Errorf("setup connection: %w", err)
	}
	channelID, err := s.openStandardMiningChannel()
	if err != nil {
		return fmt.Errorf("open standard mining channel: %w", err)
	}
	s.state.SetChannelID(channelID)
	s.logger.Printf("[SV2Source] connected, run=%s channel_id=%d", s.runID, channelID)

	frames := make(chan poolFrame)
	go s.readLoop(ctx, frames)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case cmd := <-s.commands:
			if err := s.handleSchedulerCommand(cmd); err != nil {
				s.logger.Printf("[SV2Source] scheduler command error: %v", err)
			}

		case fr := <-frames:
			if fr.err != nil {
				return fmt.Errorf("pool connection: %w", fr.err)
			}
			if err := s.handlePoolMessage(fr.msgType, fr.payload); err != nil {
				if mujerr.Fatal(err) {
					return err
				}
				s.logger.Printf("[SV2Source] pool message error: %v", err)
			}
		}
	}
}

func (s *Source) readLoop(ctx context.Context, out chan<- poolFrame) {
	for {
		msgType, payload, err := s.conn.ReceiveMessage()
		select {
		case out <- poolFrame{msgType: msgType, payload: payload, err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

func (s *Source) setupConnection(addr string) error {
	msg := &wire.SetupConnection{
		Protocol:        protocolMining,
		MinVersion:      setupMinVersion,
		MaxVersion:      setupMaxVersion,
		Flags:           wire.FlagRequiresStandardJobs,
		Endpoint:        wire.STR0_255(addr),
		Vendor:          "",
		HardwareVersion: "",
		FirmwareVersion: "",
		DeviceID:        wire.STR0_255(s.config.Worker),
	}
	payload := s.ser.SerializeSetupConnection(msg)
	if err := s.conn.SendMessage(wire.MsgTypeSetupConnection, payload); err != nil {
		return err
	}

	msgType, respPayload, err := s.conn.ReceiveMessage()
	if err != nil {
		return err
	}
	switch msgType {
	case wire.MsgTypeSetupConnectionSuccess:
		success, err := wire.NewDeserializer(respPayload).DeserializeSetupConnectionSuccess()
		if err != nil {
			return mujerr.New(mujerr.Frame, "setup_connection_success", err)
		}
		s.logger.Printf("[SV2Source] setup connection success: version=%d flags=%#x", success.UsedVersion, success.Flags)
		return nil
	case wire.MsgTypeSetupConnectionError:
		errMsg, err := wire.NewDeserializer(respPayload).DeserializeSetupConnectionError()
		if err != nil {
			return mujerr.New(mujerr.Frame, "setup_connection_error", err)
		}
		return mujerr.New(mujerr.Protocol, "setup_connection", fmt.Errorf("pool rejected setup: %s", errMsg.ErrorCode))
	default:
		return mujerr.New(mujerr.Protocol, "setup_connection", fmt.Errorf("unexpected message type %#x", msgType))
	}
}

func (s *Source) openStandardMiningChannel() (uint32, error) {
	msg := &wire.OpenStandardMiningChannel{
		RequestID:         0,
		UserIdentity:      wire.STR0_255(s.config.Worker),
		NominalHashrate:   nominalHashrate,
		MaxTargetRequired: maxTargetAny,
	}
	payload := s.ser.SerializeOpenStandardMiningChannel(msg)
	if err := s.conn.SendMessage(wire.MsgTypeOpenStandardMiningChannel, payload); err != nil {
		return 0, err
	}

	msgType, respPayload, err := s.conn.ReceiveMessage()
	if err != nil {
		return 0, err
	}
	switch msgType {
	case wire.MsgTypeOpenStandardMiningChannelSuccess:
		success, err := wire.NewDeserializer(respPayload).DeserializeOpenStandardMiningChannelSuccess()
		if err != nil {
			return 0, mujerr.New(mujerr.Frame, "open_channel_success", err)
		}
		return success.ChannelID, nil
	case wire.MsgTypeOpenStandardMiningChannelError:
		errMsg, err := wire.NewDeserializer(respPayload).DeserializeOpenStandardMiningChannelError()
		if err != nil {
			return 0, mujerr.New(mujerr.Frame, "open_channel_error", err)
		}
		return 0, mujerr.New(mujerr.Protocol, "open_channel", fmt.Errorf("pool rejected channel open: %s", errMsg.ErrorCode))
	default:
		return 0, mujerr.New(mujerr.Protocol, "open_channel", fmt.Errorf("unexpected message type %#x", msgType))
	}
}

// handlePoolMessage dispatches a decoded pool message (§4.C/D). A message
// that fails to decode is returned as a Frame error, which Run logs before
// reading on (§7); ignored and unknown message types are logged and return
// nil.
func (s *Source) handlePoolMessage(msgType uint8, payload []byte) error {
	d := wire.NewDeserializer(payload)
	switch msgType {
	case wire.MsgTypeNewMiningJob:
		msg, err := d.DeserializeNewMiningJob()
		if err != nil {
			return mujerr.New(mujerr.Frame, "new_mining_job", err)
		}
		return s.handleNewMiningJob(*msg)

	case wire.MsgTypeSetNewPrevHash:
		msg, err := d.DeserializeSetNewPrevHash()
		if err != nil {
			return mujerr.New(mujerr.Frame, "set_new_prev_hash", err)
		}
		return s.handleSetNewPrevHash(*msg)

	case wire.MsgTypeSetTarget:
		msg, err := d.DeserializeSetTarget()
		if err != nil {
			return mujerr.New(mujerr.Frame, "set_target", err)
		}
		s.handleSetTarget(*msg)
		return nil

	case wire.MsgTypeSubmitSharesSuccess:
		msg, err := d.DeserializeSubmitSharesSuccess()
		if err != nil {
			return mujerr.New(mujerr.Frame, "submit_shares_success", err)
		}
		s.logger.Printf("[SV2Source] share(s) accepted: last_seq=%d new_submits=%d", msg.LastSequenceNum, msg.NewSubmits)
		return nil

	case wire.MsgTypeSubmitSharesError:
		msg, err := d.DeserializeSubmitSharesError()
		if err != nil {
			return mujerr.New(mujerr.Frame, "submit_shares_error", err)
		}
		s.logger.Printf("[SV2Source] share rejected: seq=%d code=%s", msg.SequenceNum, msg.ErrorCode)
		return nil

	case wire.MsgTypeSetCustomMiningJob:
		s.logger.Printf("[SV2Source] SetCustomMiningJob received on standard channel (ignored)")
		return nil

	default:
		s.logger.Printf("[SV2Source] unhandled message type %#x", msgType)
		return nil
	}
}

func (s *Source) handleNewMiningJob(job wire.NewMiningJob) error {
	if job.IsFuture {
		s.state.StoreFutureJob(job)
		return s.activateJob(job.JobID)
	}

	// Non-future jobs are unexpected on a standard channel but are handled
	// as an immediate update if a matching prev-hash is already pending.
	prevHash, ok := s.state.PendingPrevHash(job.JobID)
	if !ok {
		s.logger.Printf("[SV2Source] non-future NewMiningJob %d with no matching prev-hash yet", job.JobID)
		return nil
	}
	tmpl := s.jobToTemplate(job, prevHash)
	s.events <- scheduler.UpdateJob{Template: tmpl}
	return nil
}

func (s *Source) handleSetNewPrevHash(prevHash wire.SetNewPrevHash) error {
	s.state.SetPendingPrevHash(prevHash)
	return s.activateJob(prevHash.JobID)
}

// activateJob emits ReplaceJob once both halves of the rendezvous pair for
// jobID are present (§8 invariant 3).
func (s *Source) activateJob(jobID uint32) error {
	futureJob, ok := s.state.FutureJob(jobID)
	if !ok {
		return nil
	}
	prevHash, ok := s.state.PendingPrevHash(jobID)
	if !ok {
		return nil
	}

	tmpl := s.jobToTemplate(futureJob, prevHash)
	s.events <- scheduler.ReplaceJob{Template: tmpl}
	return nil
}

func (s *Source) jobToTemplate(j wire.NewMiningJob, prevHash wire.SetNewPrevHash) job.JobTemplate {
	target, targetSet := s.state.Target()
	if !targetSet {
		target = maxTargetAny
	}
	mask, maskSet := s.state.VersionMask()
	return bridge.JobToTemplate(j, prevHash, target, mask, maskSet)
}

func (s *Source) handleSetTarget(target wire.SetTarget) {
	s.state.SetTarget(target.MaxTarget)
}

func (s *Source) handleSchedulerCommand(cmd scheduler.SourceCommand) error {
	submitCmd, ok := cmd.(scheduler.SubmitShare)
	if !ok {
		return nil
	}

	channelID, ok := s.state.ChannelID()
	if !ok {
		return mujerr.New(mujerr.Resource, "submit_share", fmt.Errorf("no channel opened yet"))
	}
	seq := s.state.NextSequenceNumber()

	submit, err := bridge.ShareToSubmit(submitCmd.Share, channelID, seq)
	if err != nil {
		return mujerr.New(mujerr.Data, "submit_share", err)
	}

	payload := s.ser.SerializeSubmitSharesStandard(&submit)
	if err := s.conn.SendMessage(wire.MsgTypeSubmitSharesStandard, payload); err != nil {
		return err
	}
	return nil
}
