package ernode

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"strconv"

	"github.com/pkg/errors"
)

// epmdLookup is a single port-2 request/response round trip (spec §4.7
// "EPMD port-2 request"). It opens its own short-lived TCP connection,
// since EPMD is queried once per dial and then discarded in favor of the
// peer connection proper ("Peer connect: close the EPMD socket,
// reconnect to the same host at the resolved port").
type epmdLookup struct {
	Port           int
	NodeType       byte
	Protocol       byte
	HighestVersion uint16
	LowestVersion  uint16
}

func queryEpmd(ctx context.Context, host string, alive string) (epmdLookup, error) {
	d := net.Dialer{}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(EpmdPort())))
	if err != nil {
		return epmdLookup{}, errors.Wrapf(ErrConnectFailed, "epmd %s: %s", host, err)
	}
	defer conn.Close()
	if dl, ok := ctx.Deadline(); ok {
		conn.SetDeadline(dl)
	}

	req := make([]byte, 2+1+len(alive))
	binary.BigEndian.PutUint16(req, uint16(1+len(alive)))
	req[2] = epmdPort2Req
	copy(req[3:], alive)
	if _, err := conn.Write(req); err != nil {
		return epmdLookup{}, errors.Wrap(&IoError{Detail: err}, "epmd write")
	}

	var hdr [2]byte
	if _, err := io.ReadFull(conn, hdr[:]); err != nil {
		return epmdLookup{}, errors.Wrap(&IoError{Detail: err}, "epmd read result")
	}
	if hdr[0] != epmdPort2Resp {
		return epmdLookup{}, errors.Wrapf(ErrEpmdProtocolError, "unexpected response tag %d", hdr[0])
	}
	if hdr[1] != 0 {
		return epmdLookup{}, errors.Wrapf(ErrNodeNotRegistered, "%s not registered (result %d)", alive, hdr[1])
	}

	var body [8]byte
	if _, err := io.ReadFull(conn, body[:]); err != nil {
		return epmdLookup{}, errors.Wrap(&IoError{Detail: err}, "epmd read port info")
	}
	return epmdLookup{
		Port:           int(binary.BigEndian.Uint16(body[0:2])),
		NodeType:       body[2],
		Protocol:       body[3],
		HighestVersion: binary.BigEndian.Uint16(body[4:6]),
		LowestVersion:  binary.BigEndian.Uint16(body[6:8]),
	}, nil
}
