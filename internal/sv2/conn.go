package sv2

import (
	"net"

	"github.com/mujina-project/mujina-core/internal/mujerr"
	"github.com/mujina-project/mujina-core/internal/sv2/noise"
	"github.com/mujina-project/mujina-core/internal/sv2/transport"
	"github.com/mujina-project/mujina-core/internal/sv2/wire"
)

// Conn is the message-level view of an established pool connection: send
// and receive whole SV2 messages, encryption and framing already handled.
type Conn interface {
	SendMessage(msgType uint8, payload []byte) error
	ReceiveMessage() (msgType uint8, payload []byte, err error)
	Close() error
}

// wireConn implements Conn over a TCP connection and Noise secure channel.
type wireConn struct {
	netConn net.Conn
	sc      *noise.SecureChannel
	ser     *wire.Serializer
}

func dial(addr string) (*wireConn, error) {
	sc, netConn, err := transport.Connect(addr)
	if err != nil {
		return nil, err
	}
	return &wireConn{netConn: netConn, sc: sc, ser: wire.NewSerializer()}, nil
}

func (c *wireConn) SendMessage(msgType uint8, payload []byte) error {
	frame := c.ser.SerializeFrame(msgType, 0, payload)
	return transport.SendFrame(c.netConn, c.sc, frame)
}

func (c *wireConn) ReceiveMessage() (uint8, []byte, error) {
	plaintext, err := transport.ReceiveFrame(c.netConn, c.sc)
	if err != nil {
		return 0, nil, err
	}
	header, err := wire.ParseHeader(plaintext)
	if err != nil {
		return 0, nil, mujerr.New(mujerr.Frame, "parse_header", err)
	}
	payload := plaintext[wire.HeaderSize:]
	if uint32(len(payload)) < header.MsgLength {
		return 0, nil, mujerr.New(mujerr.Frame, "parse_header", wire.ErrTruncatedMessage)
	}
	return header.MsgType, payload[:header.MsgLength], nil
}

func (c *wireConn) Close() error { return c.netConn.Close() }
