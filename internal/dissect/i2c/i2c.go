// Package i2c assembles I2C bus transactions and groups them into logical
// register operations, for the peripheral side of the dissector (spec
// §4.G).
package i2c

import "github.com/mujina-project/mujina-core/internal/dissect/capture"

// Transaction is one complete I2C bus transaction between a START and the
// following STOP.
type Transaction struct {
	StartTime float64
	EndTime   float64
	Address   uint8
	IsRead    bool
	Data      []byte
	Success   bool
}

type assemblyState int

const (
	stateIdle assemblyState = iota
	stateWaitingForAddress
	stateCollecting
)

// Assembler reassembles I2C bus events into transactions.
type Assembler struct {
	state        assemblyState
	startTime    float64
	address      uint8
	isRead       bool
	data         []byte
	allAcks      bool
	transactions []Transaction
}

// NewAssembler builds an empty I2C transaction assembler.
func NewAssembler() *Assembler {
	return &Assembler{state: stateIdle}
}

// Process feeds one captured I2C bus event through the assembler.
func (a *Assembler) Process(event capture.I2cEvent) {
	switch a.state {
	case stateIdle:
		if event.EventType == capture.I2cStart {
			a.state = stateWaitingForAddress
			a.startTime = event.Timestamp
		}

	case stateWaitingForAddress:
		switch event.EventType {
		case capture.I2cAddress:
			if event.Address != nil {
				a.state = stateCollecting
				a.address = *event.Address
				a.isRead = event.Read
				a.data = nil
				a.allAcks = event.Ack
			} else {
				a.state = stateIdle
			}
		case capture.I2cStop:
			a.state = stateIdle
		}

	case stateCollecting:
		switch event.EventType {
		case capture.I2cData:
			if event.Data != nil {
				a.data = append(a.data, *event.Data)
				a.allAcks = a.allAcks && event.Ack
			}
		case capture.I2cStop:
			a.transactions = append(a.transactions, a.snapshot(event.Timestamp))
			a.state = stateIdle
		case capture.I2cStart:
			if len(a.data) != 0 {
				a.transactions = append(a.transactions, a.snapshot(event.Timestamp))
			}
			a.state = stateWaitingForAddress
			a.startTime = event.Timestamp
		}
	}
}

func (a *Assembler) snapshot(endTime float64) Transaction {
	data := make([]byte, len(a.data))
	copy(data, a.data)
	return Transaction{
		StartTime: a.startTime,
		EndTime:   endTime,
		Address:   a.address,
		IsRead:    a.isRead,
		Data:      data,
		Success:   a.allAcks,
	}
}

// NextTransaction pops the oldest completed transaction, if any.
func (a *Assembler) NextTransaction() (Transaction, bool) {
	if len(a.transactions) == 0 {
		return Transaction{}, false
	}
	t := a.transactions[0]
	a.transactions = a.transactions[1:]
	return t, true
}

// Flush breaks off any in-progress transaction at end of capture, marked
// unsuccessful since it never saw a STOP.
func (a *Assembler) Flush() {
	if a.state == stateCollecting && len(a.data) != 0 {
		a.transactions = append(a.transactions, Transaction{
			StartTime: a.startTime,
			EndTime:   a.startTime,
			Address:   a.address,
			IsRead:    a.isRead,
			Data:      append([]byte(nil), a.data...),
			Success:   false,
		})
	}
	a.state = stateIdle
}

// Operation is a logical register access: either a single transaction, or
// a write-then-read pair fused into one register read.
type Operation struct {
	StartTime float64
	EndTime   float64
	Address   uint8
	Register  *uint8
	WriteData []byte
	ReadData  []byte
}

// GroupTransactions fuses adjacent write+read transaction pairs to the
// same address into one register-read Operation, and otherwise emits one
// Operation per transaction (spec §4.G).
func GroupTransactions(transactions []Transaction) []Operation {
	var ops []Operation
	i := 0
	for i < len(transactions) {
		t1 := transactions[i]

		if !t1.IsRead && len(t1.Data) >= 1 && i+1 < len(transactions) {
			t2 := transactions[i+1]
			if t2.IsRead && t2.Address == t1.Address {
				reg := t1.Data[0]
				op := Operation{
					StartTime: t1.StartTime,
					EndTime:   t2.EndTime,
					Address:   t1.Address,
					Register:  &reg,
					ReadData:  append([]byte(nil), t2.Data...),
				}
				if len(t1.Data) > 1 {
					op.WriteData = append([]byte(nil), t1.Data[1:]...)
				}
				ops = append(ops, op)
				i += 2
				continue
			}
		}

		op := Operation{
			StartTime: t1.StartTime,
			EndTime:   t1.EndTime,
			Address:   t1.Address,
		}
		if len(t1.Data) > 0 {
			reg := t1.Data[0]
			op.Register = &reg
		}
		if !t1.IsRead && len(t1.Data) > 1 {
			op.WriteData = append([]byte(nil), t1.Data[1:]...)
		}
		if t1.IsRead {
			op.ReadData = append([]byte(nil), t1.Data...)
		}
		ops = append(ops, op)
		i++
	}
	return ops
}
