package ernode

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error taxonomy (spec §7). Each is a distinct sentinel value; call sites
// wrap it with github.com/pkg/errors to attach context while keeping the
// sentinel recoverable via errors.Is/errors.Cause, mirroring how
// moshee-sound annotates its I/O errors.
var (
	ErrInvalidNodeName        = errors.New("invalid node name")
	ErrUnknownTransport       = errors.New("unknown transport scheme")
	ErrDNSResolveFailed       = errors.New("dns resolve failed")
	ErrConnectFailed          = errors.New("connect failed")
	ErrEpmdProtocolError      = errors.New("epmd protocol error")
	ErrNodeNotRegistered      = errors.New("node not registered with epmd")
	ErrIncompatibleDistVsn    = errors.New("incompatible distribution version")
	ErrAuthenticationFailed   = errors.New("authentication failed")
	ErrHandshakeTimeout       = errors.New("handshake timeout")
	ErrEncode                 = errors.New("encode error")
	ErrFrameTooLarge          = errors.New("frame too large")
	ErrUnboundVariable        = errors.New("unbound variable")
	ErrOperationAborted       = errors.New("operation aborted")
	ErrNotConnected           = errors.New("not connected")
)

// DecodeError reports a malformed ETF payload at a specific byte offset
// (spec §7 "DecodeError(offset,msg)").
type DecodeError struct {
	Offset int
	Msg    string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode error at offset %d: %s", e.Offset, e.Msg)
}

func newDecodeError(offset int, format string, args ...interface{}) error {
	return &DecodeError{Offset: offset, Msg: fmt.Sprintf(format, args...)}
}

// HandshakeRejected wraps the verbatim rejection payload the peer sent
// back in place of "sok" (spec §4.7 "Status").
type HandshakeRejected struct {
	Reason string
}

func (e *HandshakeRejected) Error() string {
	return fmt.Sprintf("handshake rejected: %s", e.Reason)
}

// IoError wraps a transport-level I/O failure (spec §7 "IoError(detail)").
type IoError struct {
	Detail error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("io error: %s", e.Detail)
}

func (e *IoError) Unwrap() error { return e.Detail }
