//go:build !windows
// +build !windows

package ernode

import (
	"context"
	"net"
	"time"

	"github.com/pkg/errors"
)

// udsEndpoint wraps a *net.UnixConn as an Endpoint (spec §4.8 "local
// stream socket (UNIX domain path)"), grounded in the teacher's
// socket_unix.go dial-a-local-socket convention.
type udsEndpoint struct {
	conn *net.UnixConn
}

func dialUDS(ctx context.Context, path string) (Endpoint, error) {
	d := net.Dialer{}
	c, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, errors.Wrapf(ErrConnectFailed, "uds %s: %s", path, err)
	}
	uc, ok := c.(*net.UnixConn)
	if !ok {
		c.Close()
		return nil, errors.Wrap(ErrConnectFailed, "dialed connection is not a unix socket")
	}
	return &udsEndpoint{conn: uc}, nil
}

func (e *udsEndpoint) Read(p []byte) (int, error) { return e.conn.Read(p) }

func (e *udsEndpoint) WriteBuffers(bufs net.Buffers) (int64, error) {
	return bufs.WriteTo(e.conn)
}

// SetNoDelay is a no-op on UNIX domain sockets: there is no Nagle
// algorithm to disable.
func (e *udsEndpoint) SetNoDelay(on bool) error { return nil }

// SetKeepAlive is a no-op on UNIX domain sockets.
func (e *udsEndpoint) SetKeepAlive(on bool) error { return nil }

func (e *udsEndpoint) SetDeadline(t time.Time) error { return e.conn.SetDeadline(t) }

func (e *udsEndpoint) Close() error { return e.conn.Close() }
