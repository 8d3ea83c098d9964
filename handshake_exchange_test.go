package ernode

import (
	"context"
	"crypto/md5"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"strconv"
	"testing"
	"time"
)

// pipeEndpoint adapts one side of a net.Pipe() into an Endpoint, so
// exchange can be driven against a fake in-memory peer without a real
// socket (spec §8 end-to-end scenarios).
type pipeEndpoint struct {
	conn net.Conn
}

func (e *pipeEndpoint) Read(p []byte) (int, error) { return e.conn.Read(p) }

func (e *pipeEndpoint) WriteBuffers(bufs net.Buffers) (int64, error) {
	return bufs.WriteTo(e.conn)
}

func (e *pipeEndpoint) SetNoDelay(on bool) error      { return nil }
func (e *pipeEndpoint) SetKeepAlive(on bool) error    { return nil }
func (e *pipeEndpoint) SetDeadline(t time.Time) error { return e.conn.SetDeadline(t) }
func (e *pipeEndpoint) Close() error                  { return e.conn.Close() }

// readRawHandshakeFrame and writeRawHandshakeFrame speak the same
// 2-byte-length-prefixed framing as handshake.go's readFrame/writeFrame,
// from the fake peer's side of the pipe.
func readRawHandshakeFrame(conn net.Conn) ([]byte, error) {
	var hdr [2]byte
	if _, err := io.ReadFull(conn, hdr[:]); err != nil {
		return nil, err
	}
	body := make([]byte, binary.BigEndian.Uint16(hdr[:]))
	if len(body) > 0 {
		if _, err := io.ReadFull(conn, body); err != nil {
			return nil, err
		}
	}
	return body, nil
}

func writeRawHandshakeFrame(conn net.Conn, body []byte) error {
	buf := make([]byte, 2+len(body))
	binary.BigEndian.PutUint16(buf, uint16(len(body)))
	copy(buf[2:], body)
	_, err := conn.Write(buf)
	return err
}

func newExchangeHandshaker(cookie string) (*handshaker, Endpoint, net.Conn) {
	client, peer := net.Pipe()
	hs := &handshaker{
		cfg:   DefaultConfig(cookie),
		state: StateIdle,
	}
	return hs, &pipeEndpoint{conn: client}, peer
}

// TestExchangeRejectedStatus drives exchange against a fake peer that
// answers the name frame with "sno", the wire form of a non-"sok" status
// (spec §8 scenario 4: "sno" status => HandshakeRejected("no")).
func TestExchangeRejectedStatus(t *testing.T) {
	hs, ep, peer := newExchangeHandshaker("cookie")
	defer peer.Close()

	peerErrs := make(chan error, 1)
	go func() {
		if _, err := readRawHandshakeFrame(peer); err != nil {
			peerErrs <- err
			return
		}
		peerErrs <- writeRawHandshakeFrame(peer, []byte("sno"))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := hs.exchange(ctx, ep)

	if perr := <-peerErrs; perr != nil {
		t.Fatalf("fake peer error: %v", perr)
	}
	rejected, ok := err.(*HandshakeRejected)
	if !ok {
		t.Fatalf("exchange error = %v (%T), want *HandshakeRejected", err, err)
	}
	if rejected.Reason != "no" {
		t.Fatalf("Reason = %q, want %q", rejected.Reason, "no")
	}
}

// TestExchangeAckDigestMismatch completes status and challenge normally
// but has the fake peer compute its ack with a different cookie, so the
// digests can never match (spec §8 scenario 6: ack digest mismatch =>
// AuthenticationFailed).
func TestExchangeAckDigestMismatch(t *testing.T) {
	hs, ep, peer := newExchangeHandshaker("our-cookie")
	defer peer.Close()

	const peerChallenge uint32 = 0xdeadbeef
	peerErrs := make(chan error, 1)
	go func() {
		// Read our name frame, ignore its contents.
		if _, err := readRawHandshakeFrame(peer); err != nil {
			peerErrs <- err
			return
		}
		if err := writeRawHandshakeFrame(peer, []byte("sok")); err != nil {
			peerErrs <- err
			return
		}

		challengeBody := make([]byte, 1+2+4+4)
		challengeBody[0] = hsTag
		binary.BigEndian.PutUint16(challengeBody[1:3], ourDistVersion)
		binary.BigEndian.PutUint32(challengeBody[3:7], ourCapabilities)
		binary.BigEndian.PutUint32(challengeBody[7:11], peerChallenge)
		if err := writeRawHandshakeFrame(peer, challengeBody); err != nil {
			peerErrs <- err
			return
		}

		// Read the challenge reply; we only need ourChallenge out of it
		// to compute an ack against the wrong cookie.
		reply, err := readRawHandshakeFrame(peer)
		if err != nil {
			peerErrs <- err
			return
		}
		if len(reply) != 1+4+16 || reply[0] != hsChallengeReply {
			peerErrs <- errors.New("malformed challenge reply")
			return
		}
		ourChallenge := binary.BigEndian.Uint32(reply[1:5])

		wrongDigest := md5.Sum([]byte("not-our-cookie" + strconv.FormatUint(uint64(ourChallenge), 10)))
		ackBody := make([]byte, 1+16)
		ackBody[0] = hsAck
		copy(ackBody[1:], wrongDigest[:])
		peerErrs <- writeRawHandshakeFrame(peer, ackBody)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := hs.exchange(ctx, ep)

	if perr := <-peerErrs; perr != nil {
		t.Fatalf("fake peer error: %v", perr)
	}
	if err != ErrAuthenticationFailed {
		t.Fatalf("exchange error = %v, want ErrAuthenticationFailed", err)
	}
}
