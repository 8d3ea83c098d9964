package ernode

import (
	"strings"

	"github.com/pkg/errors"
)

// Transport names the concrete endpoint kind an Address resolves to
// (spec §4.8).
type Transport int

const (
	TransportTCP Transport = iota
	TransportUDS
)

func (t Transport) String() string {
	switch t {
	case TransportTCP:
		return "tcp"
	case TransportUDS:
		return "uds"
	default:
		return "unknown"
	}
}

// Address is a parsed peer address: `[tcp://|uds://]alive@host-or-path`
// (spec §4.8). For TCP, HostOrPath is the DNS name or IP literal EPMD is
// queried on; for UDS it is a filesystem path and Alive is left empty,
// since a local stream socket has no EPMD to query.
type Address struct {
	Transport  Transport
	Alive      string
	HostOrPath string
}

// ParseAddress parses a node address string. An unrecognized scheme
// prefix yields ErrUnknownTransport.
func ParseAddress(raw string) (Address, error) {
	scheme := TransportTCP
	rest := raw
	switch {
	case strings.HasPrefix(raw, "tcp://"):
		rest = raw[len("tcp://"):]
	case strings.HasPrefix(raw, "uds://"):
		scheme = TransportUDS
		rest = raw[len("uds://"):]
	case strings.Contains(raw, "://"):
		return Address{}, errors.Wrapf(ErrUnknownTransport, "scheme in %q", raw)
	}

	if scheme == TransportUDS {
		return Address{Transport: TransportUDS, HostOrPath: rest}, nil
	}

	at := strings.LastIndexByte(rest, '@')
	if at < 0 || at == 0 || at == len(rest)-1 {
		return Address{}, errors.Wrapf(ErrInvalidNodeName, "%q must be alive@host", raw)
	}
	return Address{
		Transport:  TransportTCP,
		Alive:      rest[:at],
		HostOrPath: rest[at+1:],
	}, nil
}

// NodeName reassembles the `alive@host` form for TCP addresses, for use
// in handshake name exchange and log lines.
func (a Address) NodeName() string {
	return a.Alive + "@" + a.HostOrPath
}
