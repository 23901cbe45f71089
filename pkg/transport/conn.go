// Package transport implements the blocking one-exchange-per-connection
// TCP client the relay protocol expects.
package transport

import (
	"errors"
	"net"
	"time"

	"github.com/Natifishman/MessageU/pkg/protocol"
)

var (
	ErrConnectFailed = errors.New("connect failed")
	ErrWriteFailed   = errors.New("write failed")
	ErrPeerClosed    = errors.New("peer closed connection")
	ErrNotConnected  = errors.New("not connected")
	ErrTimeout       = errors.New("operation timed out")
)

// Conn is a client connection to the relay server. A connection is scoped
// to a single request/response exchange; there is no pipelining and no
// long-lived session.
type Conn struct {
	addr      string
	timeout   time.Duration
	conn      net.Conn
	connected bool
}

// New creates a connection for the given endpoint. A zero timeout means
// operations block indefinitely.
func New(host, port string, timeout time.Duration) *Conn {
	return &Conn{addr: net.JoinHostPort(host, port), timeout: timeout}
}

// Connect resolves the endpoint, opens the socket and disables Nagle.
func (c *Conn) Connect() error {
	c.Disconnect()

	var (
		conn net.Conn
		err  error
	)
	if c.timeout > 0 {
		conn, err = net.DialTimeout("tcp", c.addr, c.timeout)
	} else {
		conn, err = net.Dial("tcp", c.addr)
	}
	if err != nil {
		if isTimeout(err) {
			return ErrTimeout
		}
		return ErrConnectFailed
	}

	if tc, ok := conn.(*net.TCPConn); ok {
		tc.SetNoDelay(true)
	}

	c.conn = conn
	c.connected = true
	return nil
}

// SendAll writes the entire buffer, looping over partial writes. Any
// underlying error leaves the connection unusable.
func (c *Conn) SendAll(buf []byte) error {
	if !c.connected {
		return ErrNotConnected
	}
	if err := c.setDeadline(); err != nil {
		return ErrWriteFailed
	}

	for len(buf) > 0 {
		n, err := c.conn.Write(buf)
		if err != nil {
			c.Disconnect()
			if isTimeout(err) {
				return ErrTimeout
			}
			return ErrWriteFailed
		}
		buf = buf[n:]
	}

	return nil
}

// RecvExact reads until the buffer is full, pulling at most ChunkSize
// bytes per read. A peer close before the buffer fills is ErrPeerClosed.
func (c *Conn) RecvExact(buf []byte) error {
	if !c.connected {
		return ErrNotConnected
	}
	if err := c.setDeadline(); err != nil {
		return ErrPeerClosed
	}

	off := 0
	for off < len(buf) {
		end := off + protocol.ChunkSize
		if end > len(buf) {
			end = len(buf)
		}

		n, err := c.conn.Read(buf[off:end])
		off += n
		if err != nil {
			c.Disconnect()
			if isTimeout(err) {
				return ErrTimeout
			}
			return ErrPeerClosed
		}
	}

	return nil
}

// Disconnect shuts the connection down. Safe to call repeatedly and on a
// connection that never connected.
func (c *Conn) Disconnect() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connected = false
}

// IsConnected returns connection status
func (c *Conn) IsConnected() bool {
	return c.connected
}

// RoundTrip performs one complete exchange whose response size is known
// in advance: connect, send the request, read exactly respSize bytes,
// disconnect.
func (c *Conn) RoundTrip(request []byte, respSize int) ([]byte, error) {
	if err := c.Connect(); err != nil {
		return nil, err
	}
	defer c.Disconnect()

	if err := c.SendAll(request); err != nil {
		return nil, err
	}

	resp := make([]byte, respSize)
	if err := c.RecvExact(resp); err != nil {
		return nil, err
	}

	return resp, nil
}

func (c *Conn) setDeadline() error {
	if c.timeout == 0 {
		return nil
	}
	return c.conn.SetDeadline(time.Now().Add(c.timeout))
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
