package pool

import (
	"context"
	"net"
	"time"
)

// Connector dials a destination address and tunes the resulting socket.
// The default TCPConnector applies Nagle's algorithm, buffer sizes,
// keep-alive and linger to the raw *net.TCPConn immediately after dial,
// before the connection is handed back to the pool.
type Connector interface {
	Dial(ctx context.Context, addr string) (net.Conn, error)
}

// TCPSettings holds socket-tuning fields for the default TCPConnector.
type TCPSettings struct {
	NoDelay         bool
	ReadBufferSize  int
	WriteBufferSize int
	KeepAliveSec    int
	LingerSec       int
}

// DefaultTCPSettings matches common low-latency RPC tuning: Nagle off,
// keep-alive on, no linger override.
func DefaultTCPSettings() TCPSettings {
	return TCPSettings{
		NoDelay:      true,
		KeepAliveSec: 30,
		LingerSec:    -1,
	}
}

// TCPConnector dials plain TCP connections and applies TCPSettings.
type TCPConnector struct {
	Settings TCPSettings
}

func NewTCPConnector(settings TCPSettings) *TCPConnector {
	return &TCPConnector{Settings: settings}
}

func (c *TCPConnector) Dial(ctx context.Context, addr string) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if err := c.upgrade(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func (c *TCPConnector) upgrade(conn net.Conn) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}

	if err := tcpConn.SetNoDelay(c.Settings.NoDelay); err != nil {
		return err
	}
	if c.Settings.WriteBufferSize > 0 {
		if err := tcpConn.SetWriteBuffer(c.Settings.WriteBufferSize); err != nil {
			return err
		}
	}
	if c.Settings.ReadBufferSize > 0 {
		if err := tcpConn.SetReadBuffer(c.Settings.ReadBufferSize); err != nil {
			return err
		}
	}
	if c.Settings.KeepAliveSec > 0 {
		if err := tcpConn.SetKeepAlive(true); err != nil {
			return err
		}
		if err := tcpConn.SetKeepAlivePeriod(time.Duration(c.Settings.KeepAliveSec) * time.Second); err != nil {
			return err
		}
	}
	if c.Settings.LingerSec >= 0 {
		if err := tcpConn.SetLinger(c.Settings.LingerSec); err != nil {
			return err
		}
	}
	return nil
}
