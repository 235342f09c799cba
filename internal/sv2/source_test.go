package sv2

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mujina-project/mujina-core/internal/job"
	"github.com/mujina-project/mujina-core/internal/scheduler"
	"github.com/mujina-project/mujina-core/internal/sv2/wire"
)

type sentMessage struct {
	msgType uint8
	payload []byte
}

// fakeConn is a Conn test double recording sent messages and replaying a
// canned queue of incoming ones.
type fakeConn struct {
	sent   []sentMessage
	inbox  []sentMessage
	closed bool
}

func (c *fakeConn) SendMessage(msgType uint8, payload []byte) error {
	c.sent = append(c.sent, sentMessage{msgType: msgType, payload: payload})
	return nil
}

func (c *fakeConn) ReceiveMessage() (uint8, []byte, error) {
	if len(c.inbox) == 0 {
		return 0, nil, assert.AnError
	}
	m := c.inbox[0]
	c.inbox = c.inbox[1:]
	return m.msgType, m.payload, nil
}

func (c *fakeConn) Close() error { c.closed = true; return nil }

func newTestSource(events chan scheduler.SourceEvent, commands chan scheduler.SourceCommand) *Source {
	return New(Config{PoolURL: "sv2+tcp://127.0.0.1:3333", Worker: "worker1"}, events, commands, nil)
}

func repeat32(b byte) [32]byte {
	var out [32]byte
	for i := range out {
		out[i] = b
	}
	return out
}

// TestHappyPath is scenario S1.
func TestHappyPath(t *testing.T) {
	events := make(chan scheduler.SourceEvent, 1)
	s := newTestSource(events, make(chan scheduler.SourceCommand))
	s.state.SetChannelID(1)

	newJob := wire.NewMiningJob{JobID: 42, IsFuture: true, Version: 0x20000000, MerkleRoot: repeat32(0x11)}
	require.NoError(t, s.handleNewMiningJob(newJob))

	prevHash := wire.SetNewPrevHash{JobID: 42, PrevHash: repeat32(0x22), NBits: 0x1a00ffff, MinNTime: 1700000000}
	require.NoError(t, s.handleSetNewPrevHash(prevHash))

	select {
	case evt := <-events:
		replace, ok := evt.(scheduler.ReplaceJob)
		require.True(t, ok)
		assert.Equal(t, "42", replace.Template.ID)
		assert.Equal(t, uint32(0x20000000), replace.Template.Version.Base)
		assert.Equal(t, uint32(0x1a00ffff), replace.Template.Bits)
		assert.Equal(t, uint32(1700000000), replace.Template.Time)
		assert.Equal(t, repeat32(0x22), replace.Template.PrevBlockHash)
		assert.Equal(t, job.FixedMerkleRoot(repeat32(0x11)), replace.Template.MerkleRoot)
	default:
		t.Fatal("expected a ReplaceJob event")
	}
}

// TestReorderedRendezvous is scenario S2: SetNewPrevHash arrives first.
func TestReorderedRendezvous(t *testing.T) {
	events := make(chan scheduler.SourceEvent, 1)
	s := newTestSource(events, make(chan scheduler.SourceCommand))

	prevHash := wire.SetNewPrevHash{JobID: 42, PrevHash: repeat32(0x22), NBits: 0x1a00ffff, MinNTime: 1700000000}
	require.NoError(t, s.handleSetNewPrevHash(prevHash))

	select {
	case <-events:
		t.Fatal("no job should activate before the future job arrives")
	default:
	}

	newJob := wire.NewMiningJob{JobID: 42, IsFuture: true, Version: 0x20000000, MerkleRoot: repeat32(0x11)}
	require.NoError(t, s.handleNewMiningJob(newJob))

	select {
	case evt := <-events:
		replace, ok := evt.(scheduler.ReplaceJob)
		require.True(t, ok)
		assert.Equal(t, "42", replace.Template.ID)
	default:
		t.Fatal("expected a ReplaceJob event once both halves are present")
	}
}

// TestStaleFuture is scenario S3: 15 future jobs pushed, job 3 was evicted.
func TestStaleFuture(t *testing.T) {
	events := make(chan scheduler.SourceEvent, 1)
	s := newTestSource(events, make(chan scheduler.SourceCommand))

	for id := uint32(1); id <= 15; id++ {
		require.NoError(t, s.handleNewMiningJob(wire.NewMiningJob{JobID: id, IsFuture: true}))
	}

	require.NoError(t, s.handleSetNewPrevHash(wire.SetNewPrevHash{JobID: 3}))

	select {
	case <-events:
		t.Fatal("job 3 was evicted, no ReplaceJob expected")
	default:
	}
}

// TestShareSubmission is scenario S4.
func TestShareSubmission(t *testing.T) {
	commands := make(chan scheduler.SourceCommand)
	s := newTestSource(make(chan scheduler.SourceEvent), commands)
	conn := &fakeConn{}
	s.conn = conn
	s.state.SetChannelID(7)

	share := job.Share{JobID: "42", Nonce: 0xdeadbeef, Time: 1700000010, Version: 0x20200000}
	require.NoError(t, s.handleSchedulerCommand(scheduler.SubmitShare{Share: share}))
	require.NoError(t, s.handleSchedulerCommand(scheduler.SubmitShare{Share: share}))

	require.Len(t, conn.sent, 2)
	d1 := wire.NewDeserializer(conn.sent[0].payload)
	submit1, err := readSubmit(d1)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), submit1.ChannelID)
	assert.Equal(t, uint32(0), submit1.SequenceNum)
	assert.Equal(t, uint32(42), submit1.JobID)
	assert.Equal(t, uint32(0xdeadbeef), submit1.Nonce)

	d2 := wire.NewDeserializer(conn.sent[1].payload)
	submit2, err := readSubmit(d2)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), submit2.SequenceNum)
}

func readSubmit(d *wire.Deserializer) (wire.SubmitSharesStandard, error) {
	var msg wire.SubmitSharesStandard
	var err error
	if msg.ChannelID, err = d.ReadU32(); err != nil {
		return msg, err
	}
	if msg.SequenceNum, err = d.ReadU32(); err != nil {
		return msg, err
	}
	if msg.JobID, err = d.ReadU32(); err != nil {
		return msg, err
	}
	if msg.Nonce, err = d.ReadU32(); err != nil {
		return msg, err
	}
	if msg.NTime, err = d.ReadU32(); err != nil {
		return msg, err
	}
	if msg.Version, err = d.ReadU32(); err != nil {
		return msg, err
	}
	return msg, nil
}

func TestShareSubmissionRequiresOpenChannel(t *testing.T) {
	s := newTestSource(make(chan scheduler.SourceEvent), make(chan scheduler.SourceCommand))
	s.conn = &fakeConn{}
	err := s.handleSchedulerCommand(scheduler.SubmitShare{Share: job.Share{JobID: "1"}})
	assert.Error(t, err)
}

func TestSetCustomMiningJobIsIgnored(t *testing.T) {
	s := newTestSource(make(chan scheduler.SourceEvent), make(chan scheduler.SourceCommand))
	require.NoError(t, s.handlePoolMessage(wire.MsgTypeSetCustomMiningJob, nil))
}

func TestSetTargetUpdatesState(t *testing.T) {
	s := newTestSource(make(chan scheduler.SourceEvent), make(chan scheduler.SourceCommand))
	s.handleSetTarget(wire.SetTarget{ChannelID: 1, MaxTarget: repeat32(0x01)})
	target, ok := s.state.Target()
	require.True(t, ok)
	assert.Equal(t, repeat32(0x01), target)
}
