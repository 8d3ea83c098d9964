package ernode

import (
	"context"
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/keybase/saltpack/encoding/basex"
	"github.com/kryptco/go-crypto/blake2b"
	"github.com/pkg/errors"
)

// HandshakeState names a point in the distribution handshake's strictly
// linear sequence (spec §4.7). It exists for observability and tests;
// the handshake itself runs as a single synchronous function, since the
// blocking net.Conn calls it drives already are this goroutine's only
// suspension points, one substitution the spec explicitly allows for
// ("representing it explicitly as a state enum ... is equally valid").
type HandshakeState int

const (
	StateIdle HandshakeState = iota
	StateWaitResolve
	StateWaitEpmdConnect
	StateWaitEpmdReply
	StateWaitConnect
	StateWaitStatus
	StateWaitChallenge
	StateWaitChallengeAck
	StateConnected
	StateFailed
)

func (s HandshakeState) String() string {
	names := [...]string{
		"Idle", "WaitResolve", "WaitEpmdConnect", "WaitEpmdReply",
		"WaitConnect", "WaitStatus", "WaitChallenge", "WaitChallengeAck",
		"Connected", "Failed",
	}
	if int(s) < len(names) {
		return names[s]
	}
	return "Unknown"
}

// Dial resolves addr, performs the EPMD lookup and distribution
// handshake, and returns a live Conn with its read loop already running
// (spec §4.7 end-to-end, "Connected: ... issue the first framed read").
func Dial(ctx context.Context, addr Address, localName string, cfg Config, handler Handler) (*Conn, error) {
	hs := &handshaker{
		addr:      addr,
		localName: localName,
		cfg:       cfg,
		handler:   handler,
		state:     StateIdle,
		resolver:  newResolveCache(cfg.ResolveCache),
	}
	conn, err := hs.run(ctx)
	if err != nil {
		hs.state = StateFailed
		handler.OnConnectFailure(nil, err)
		return nil, err
	}
	return conn, nil
}

type handshaker struct {
	addr      Address
	localName string
	cfg       Config
	handler   Handler
	state     HandshakeState
	resolver  *resolveCache
}

func (hs *handshaker) run(parent context.Context) (*Conn, error) {
	if !strings.ContainsRune(hs.localName, '@') {
		return nil, errors.Wrapf(ErrInvalidNodeName, "%q", hs.localName)
	}

	ctx, cancel := context.WithTimeout(parent, hs.cfg.Timeouts.Handshake)
	defer cancel()

	var (
		port       int
		err        error
		host       = hs.addr.HostOrPath
		negotiated = uint16(ourDistVersion)
	)
	if hs.addr.Transport == TransportTCP {
		hs.state = StateWaitResolve
		candidates, rerr := hs.resolver.resolve(ctx, hs.addr.HostOrPath)
		if rerr != nil {
			return nil, errors.Wrapf(ErrDNSResolveFailed, "%s: %s", hs.addr.HostOrPath, rerr)
		}

		hs.state = StateWaitEpmdConnect
		var lookup epmdLookup
		var lastErr error
		resolved := false
		for _, addr := range candidates {
			ip := addr.String()
			l, lerr := queryEpmd(ctx, ip, hs.addr.Alive)
			if lerr != nil {
				hs.resolver.invalidate(hs.addr.HostOrPath)
				lastErr = lerr
				continue
			}
			lookup, host, resolved = l, ip, true
			break
		}
		if !resolved {
			if lastErr == nil {
				lastErr = errors.Wrapf(ErrDNSResolveFailed, "no addresses for %s", hs.addr.HostOrPath)
			}
			return nil, lastErr
		}

		hs.state = StateWaitEpmdReply
		negotiated = lookup.HighestVersion
		if negotiated > ourDistVersion {
			negotiated = ourDistVersion
		}
		if negotiated <= minCompatibleDistVersion {
			return nil, errors.Wrapf(ErrIncompatibleDistVsn, "negotiated %d", negotiated)
		}
		if hs.cfg.Verbosity >= VerbosityTrace {
			log.Debugf("ernode: %s", describePeerCompatibility(negotiated))
		}
		port = lookup.Port
	}

	hs.state = StateWaitConnect
	ep, err := dialEndpoint(ctx, hs.addr, host, port)
	if err != nil {
		return nil, err
	}

	if err := hs.exchange(ctx, ep); err != nil {
		ep.Close()
		return nil, err
	}

	ep.SetNoDelay(true)
	ep.SetKeepAlive(true)

	conn := newConn(ep, hs.cfg, hs.handler)
	hs.state = StateConnected
	logHandshakeConnected(hs.localName, negotiated)
	hs.handler.OnConnect(conn)
	go conn.readLoop()
	return conn, nil
}

// exchange drives name exchange, status, challenge/response, and ack
// verification over ep, all synchronously (spec §4.7 "Name exchange"
// through "Ack").
func (hs *handshaker) exchange(ctx context.Context, ep Endpoint) error {
	if err := hs.sendName(ctx, ep); err != nil {
		return err
	}

	hs.state = StateWaitStatus
	if err := hs.readStatus(ctx, ep); err != nil {
		return err
	}

	hs.state = StateWaitChallenge
	peerChallenge, err := hs.readPeerChallenge(ctx, ep)
	if err != nil {
		return err
	}

	ourChallenge := localChallenge()
	if hs.cfg.Verbosity >= VerbosityTrace {
		log.Debugf("ernode: peer challenge %s, our challenge %s",
			basex.Base62StdEncoding.EncodeToString(uint32Bytes(peerChallenge)),
			basex.Base62StdEncoding.EncodeToString(uint32Bytes(ourChallenge)))
	}
	if err := hs.sendChallengeReply(ctx, ep, ourChallenge, peerChallenge); err != nil {
		return err
	}

	hs.state = StateWaitChallengeAck
	return hs.readAck(ctx, ep, ourChallenge)
}

func (hs *handshaker) sendName(ctx context.Context, ep Endpoint) error {
	name := hs.localName
	body := make([]byte, 1+2+4+len(name))
	body[0] = hsTag
	binary.BigEndian.PutUint16(body[1:3], ourDistVersion)
	binary.BigEndian.PutUint32(body[3:7], ourCapabilities)
	copy(body[7:], name)
	return writeFrame(ctx, ep, body)
}

func (hs *handshaker) readStatus(ctx context.Context, ep Endpoint) error {
	body, err := readFrame(ctx, ep)
	if err != nil {
		return err
	}
	if string(body) == "sok" {
		return nil
	}
	reason := string(body)
	if len(body) > 0 && body[0] == hsStatus {
		reason = string(body[1:])
	}
	return &HandshakeRejected{Reason: reason}
}

func (hs *handshaker) readPeerChallenge(ctx context.Context, ep Endpoint) (uint32, error) {
	body, err := readFrame(ctx, ep)
	if err != nil {
		return 0, err
	}
	if len(body) < 1+2+4+4 || body[0] != hsTag {
		return 0, errors.Wrapf(ErrEpmdProtocolError, "malformed peer challenge frame")
	}
	return binary.BigEndian.Uint32(body[7:11]), nil
}

func (hs *handshaker) sendChallengeReply(ctx context.Context, ep Endpoint, ourChallenge, peerChallenge uint32) error {
	digest := challengeDigest(hs.cfg.Cookie, peerChallenge)
	body := make([]byte, 1+4+16)
	body[0] = hsChallengeReply
	binary.BigEndian.PutUint32(body[1:5], ourChallenge)
	copy(body[5:], digest[:])
	return writeFrame(ctx, ep, body)
}

func (hs *handshaker) readAck(ctx context.Context, ep Endpoint, ourChallenge uint32) error {
	body, err := readFrame(ctx, ep)
	if err != nil {
		return err
	}
	if len(body) != 17 || body[0] != hsAck {
		return errors.Wrapf(ErrEpmdProtocolError, "malformed ack frame")
	}
	expected := challengeDigest(hs.cfg.Cookie, ourChallenge)
	var got [16]byte
	copy(got[:], body[1:])
	if !md5DigestsEqual(expected, got) {
		return ErrAuthenticationFailed
	}
	return nil
}

// challengeDigest computes MD5(cookie || decimal-ascii(challenge)) (spec
// §4.7 "Our challenge and reply").
func challengeDigest(cookie string, challenge uint32) [16]byte {
	return md5.Sum([]byte(cookie + strconv.FormatUint(uint64(challenge), 10)))
}

func uint32Bytes(v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return b[:]
}

func md5DigestsEqual(a, b [16]byte) bool {
	var diff byte
	for i := range a {
		diff |= a[i] ^ b[i]
	}
	return diff == 0
}

// localChallenge mixes wall-clock time, the process and parent-process
// ids, and the hostname into a blake2b digest and takes its first four
// bytes as the local 32-bit challenge (spec §4.7 "sufficient variability
// within a host"), the way krypto.go mixes an ephemeral key and a peer
// key into a nonce before hashing.
func localChallenge() uint32 {
	host, _ := os.Hostname()
	seed := fmt.Sprintf("%d:%d:%d:%s", time.Now().UnixNano(), os.Getpid(), os.Getppid(), host)
	sum := blake2b.Sum256([]byte(seed))
	return binary.BigEndian.Uint32(sum[:4])
}

// armDeadline binds ep's next I/O to ctx's remaining budget (spec §4.7
// "each handshake step should have an implementation-defined timeout"),
// reporting an already-expired context up front instead of letting it
// surface later as an opaque I/O error.
func armDeadline(ctx context.Context, ep Endpoint) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(ErrHandshakeTimeout, "handshake step")
	}
	dl, ok := ctx.Deadline()
	if !ok {
		return ep.SetDeadline(time.Time{})
	}
	return ep.SetDeadline(dl)
}

// asHandshakeTimeout reports whether err (from a deadline-bound
// Read/WriteBuffers call) is this step's timeout firing, either as a
// net.Error or via the context that armed the deadline expiring first.
func asHandshakeTimeout(ctx context.Context, err error) bool {
	if ctx.Err() == context.DeadlineExceeded {
		return true
	}
	if ne, ok := err.(net.Error); ok {
		return ne.Timeout()
	}
	return false
}

func writeFrame(ctx context.Context, ep Endpoint, body []byte) error {
	if err := armDeadline(ctx, ep); err != nil {
		return err
	}
	buf := make([]byte, 2+len(body))
	binary.BigEndian.PutUint16(buf, uint16(len(body)))
	copy(buf[2:], body)
	bufs := net.Buffers{buf}
	_, err := ep.WriteBuffers(bufs)
	if err != nil {
		if asHandshakeTimeout(ctx, err) {
			return errors.Wrap(ErrHandshakeTimeout, "handshake write")
		}
		return errors.Wrap(&IoError{Detail: err}, "handshake write")
	}
	return nil
}

func readFrame(ctx context.Context, ep Endpoint) ([]byte, error) {
	if err := armDeadline(ctx, ep); err != nil {
		return nil, err
	}
	var hdr [2]byte
	if _, err := io.ReadFull(readerOf(ep), hdr[:]); err != nil {
		if asHandshakeTimeout(ctx, err) {
			return nil, errors.Wrap(ErrHandshakeTimeout, "handshake read length")
		}
		return nil, errors.Wrap(&IoError{Detail: err}, "handshake read length")
	}
	n := binary.BigEndian.Uint16(hdr[:])
	body := make([]byte, n)
	if n > 0 {
		if err := armDeadline(ctx, ep); err != nil {
			return nil, err
		}
		if _, err := io.ReadFull(readerOf(ep), body); err != nil {
			if asHandshakeTimeout(ctx, err) {
				return nil, errors.Wrap(ErrHandshakeTimeout, "handshake read body")
			}
			return nil, errors.Wrap(&IoError{Detail: err}, "handshake read body")
		}
	}
	return body, nil
}

// readerOf adapts Endpoint.Read to io.Reader for io.ReadFull.
func readerOf(ep Endpoint) io.Reader {
	return readerFunc(ep.Read)
}

type readerFunc func(p []byte) (int, error)

func (f readerFunc) Read(p []byte) (int, error) { return f(p) }
