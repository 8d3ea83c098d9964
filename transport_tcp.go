package ernode

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// tcpEndpoint wraps a *net.TCPConn as an Endpoint (spec §4.8 "Concrete
// endpoints: TCP (IPv4/IPv6)").
type tcpEndpoint struct {
	conn *net.TCPConn
}

func dialTCP(ctx context.Context, host string, port int) (Endpoint, error) {
	d := net.Dialer{}
	c, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, errors.Wrapf(ErrConnectFailed, "%s:%d: %s", host, port, err)
	}
	tc, ok := c.(*net.TCPConn)
	if !ok {
		c.Close()
		return nil, errors.Wrap(ErrConnectFailed, "dialed connection is not TCP")
	}
	return &tcpEndpoint{conn: tc}, nil
}

func (e *tcpEndpoint) Read(p []byte) (int, error) { return e.conn.Read(p) }

func (e *tcpEndpoint) WriteBuffers(bufs net.Buffers) (int64, error) {
	return bufs.WriteTo(e.conn)
}

func (e *tcpEndpoint) SetNoDelay(on bool) error { return e.conn.SetNoDelay(on) }

func (e *tcpEndpoint) SetKeepAlive(on bool) error { return e.conn.SetKeepAlive(on) }

func (e *tcpEndpoint) SetDeadline(t time.Time) error { return e.conn.SetDeadline(t) }

func (e *tcpEndpoint) Close() error { return e.conn.Close() }
