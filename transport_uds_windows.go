//go:build windows
// +build windows

package ernode

import (
	"context"
	"net"
	"time"

	"github.com/pkg/errors"
	npipe "gopkg.in/natefinch/npipe.v2"
)

// udsEndpoint substitutes a Windows named pipe for the UNIX-domain
// socket spec §4.8 assumes, grounded in the teacher's Windows transport
// split (socket_windows.go alongside socket_unix.go).
type udsEndpoint struct {
	conn *npipe.PipeConn
}

func dialUDS(ctx context.Context, path string) (Endpoint, error) {
	c, err := npipe.DialTimeout(path, namedPipeDialTimeout(ctx))
	if err != nil {
		return nil, errors.Wrapf(ErrConnectFailed, "named pipe %s: %s", path, err)
	}
	return &udsEndpoint{conn: c}, nil
}

func namedPipeDialTimeout(ctx context.Context) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		return time.Until(dl)
	}
	return 5 * time.Second
}

func (e *udsEndpoint) Read(p []byte) (int, error) { return e.conn.Read(p) }

func (e *udsEndpoint) WriteBuffers(bufs net.Buffers) (int64, error) {
	var total int64
	for _, b := range bufs {
		n, err := e.conn.Write(b)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// SetNoDelay is a no-op on named pipes.
func (e *udsEndpoint) SetNoDelay(on bool) error { return nil }

// SetKeepAlive is a no-op on named pipes.
func (e *udsEndpoint) SetKeepAlive(on bool) error { return nil }

func (e *udsEndpoint) SetDeadline(t time.Time) error { return e.conn.SetDeadline(t) }

func (e *udsEndpoint) Close() error { return e.conn.Close() }
