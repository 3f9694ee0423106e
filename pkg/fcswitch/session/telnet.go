package session

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/leptonai/portbounce/pkg/log"
)

// telnet command bytes (RFC 854)
const (
	telnetIAC  byte = 255
	telnetDONT byte = 254
	telnetDO   byte = 253
	telnetWONT byte = 252
	telnetWILL byte = 251
	telnetSB   byte = 250
	telnetSE   byte = 240
)

const (
	stateData = iota
	stateIAC
	stateOption
	stateSub
	stateSubIAC
)

// LoginTelnet dials the switch over telnet and completes the
// "login: " / "Password: " exchange.
func LoginTelnet(ctx context.Context, addr string, user string, password string, opts ...OpOption) (Channel, error) {
	op := &Op{}
	op.applyOpts(opts)

	d := net.Dialer{Timeout: op.commandTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial switch %s: %w", addr, err)
	}

	ch, err := loginTelnetConn(ctx, conn, user, password, op)
	if err != nil {
		return nil, fmt.Errorf("failed to log in to switch %s: %w", addr, err)
	}
	log.Logger.Infow("logged in to switch", "address", addr, "transport", "telnet", "user", user)
	return ch, nil
}

func loginTelnetConn(ctx context.Context, conn net.Conn, user string, password string, op *Op) (*channel, error) {
	tc := newTelnetConn(conn)
	ch := &channel{
		exp:     newExpecter(tc, tc),
		prompt:  op.prompt,
		timeout: op.commandTimeout,
		closer:  conn.Close,
	}
	if err := ch.login(ctx, user, password); err != nil {
		_ = ch.Close()
		return nil, err
	}
	return ch, nil
}

// telnetConn strips telnet negotiation from the inbound stream and
// refuses every option the peer offers or requests.
type telnetConn struct {
	net.Conn

	// only touched by the reading goroutine
	state int
	verb  byte

	wmu sync.Mutex
}

func newTelnetConn(conn net.Conn) *telnetConn {
	return &telnetConn{Conn: conn}
}

func (c *telnetConn) Read(p []byte) (int, error) {
	raw := make([]byte, len(p))
	for {
		n, err := c.Conn.Read(raw)

		data, replies := c.filter(raw[:n])
		if len(replies) > 0 {
			if werr := c.writeRaw(replies); werr != nil && err == nil {
				err = werr
			}
		}

		copy(p, data)
		if len(data) > 0 || err != nil {
			return len(data), err
		}
	}
}

// Write escapes literal IAC bytes in outbound data.
func (c *telnetConn) Write(p []byte) (int, error) {
	escaped := make([]byte, 0, len(p))
	for _, b := range p {
		if b == telnetIAC {
			escaped = append(escaped, telnetIAC)
		}
		escaped = append(escaped, b)
	}
	if err := c.writeRaw(escaped); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *telnetConn) writeRaw(b []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_, err := c.Conn.Write(b)
	return err
}

// filter returns the payload bytes of the chunk and the negotiation
// replies to send back. The output never exceeds the input length.
func (c *telnetConn) filter(in []byte) (data []byte, replies []byte) {
	data = make([]byte, 0, len(in))
	for _, b := range in {
		switch c.state {
		case stateData:
			switch b {
			case telnetIAC:
				c.state = stateIAC
			case 0:
				// NUL after a bare CR
			default:
				data = append(data, b)
			}

		case stateIAC:
			switch b {
			case telnetIAC:
				data = append(data, telnetIAC)
				c.state = stateData
			case telnetDO, telnetDONT, telnetWILL, telnetWONT:
				c.verb = b
				c.state = stateOption
			case telnetSB:
				c.state = stateSub
			default:
				c.state = stateData
			}

		case stateOption:
			switch c.verb {
			case telnetDO:
				replies = append(replies, telnetIAC, telnetWONT, b)
			case telnetWILL:
				replies = append(replies, telnetIAC, telnetDONT, b)
			}
			c.state = stateData

		case stateSub:
			if b == telnetIAC {
				c.state = stateSubIAC
			}

		case stateSubIAC:
			if b == telnetSE {
				c.state = stateData
			} else {
				c.state = stateSub
			}
		}
	}
	return data, replies
}
