package ernode

import (
	"context"
	"crypto/md5"
	"strconv"
	"testing"
)

func TestChallengeDigestMatchesDirectMD5(t *testing.T) {
	cookie := "mycookie"
	var challenge uint32 = 12345
	want := md5.Sum([]byte(cookie + strconv.FormatUint(uint64(challenge), 10)))
	got := challengeDigest(cookie, challenge)
	if got != want {
		t.Fatalf("challengeDigest = % x, want % x", got, want)
	}
}

func TestChallengeDigestDifferentCookiesDiffer(t *testing.T) {
	a := challengeDigest("cookie-a", 1)
	b := challengeDigest("cookie-b", 1)
	if a == b {
		t.Fatalf("different cookies should not produce the same digest")
	}
}

func TestMd5DigestsEqual(t *testing.T) {
	a := md5.Sum([]byte("x"))
	b := md5.Sum([]byte("x"))
	c := md5.Sum([]byte("y"))
	if !md5DigestsEqual(a, b) {
		t.Fatalf("identical digests should compare equal")
	}
	if md5DigestsEqual(a, c) {
		t.Fatalf("different digests should not compare equal")
	}
}

func TestLocalChallengeDoesNotPanic(t *testing.T) {
	a := localChallenge()
	b := localChallenge()
	// Not guaranteed to differ (time resolution, same pid/host), but both
	// calls must at least produce a value deterministically derived from
	// the mixing function without panicking.
	_ = a
	_ = b
}

func TestHandshakeStateString(t *testing.T) {
	if StateIdle.String() != "Idle" {
		t.Fatalf("StateIdle.String() = %q", StateIdle.String())
	}
	if StateConnected.String() != "Connected" {
		t.Fatalf("StateConnected.String() = %q", StateConnected.String())
	}
}

func TestLocalNodeNameMustContainAt(t *testing.T) {
	_, err := Dial(context.Background(), Address{Transport: TransportTCP, Alive: "x", HostOrPath: "localhost"}, "noatsign", DefaultConfig("c"), noopHandler{})
	if err == nil {
		t.Fatalf("Dial should reject a local node name without '@'")
	}
}

type noopHandler struct{}

func (noopHandler) OnConnect(c *Conn)                     {}
func (noopHandler) OnConnectFailure(c *Conn, reason error) {}
func (noopHandler) OnDisconnect(c *Conn, reason error)     {}
func (noopHandler) OnMessage(c *Conn, msg TransportMessage) {}
func (noopHandler) OnError(c *Conn, message string)        {}
func (noopHandler) Verbose() Verbosity                     { return VerbosityNone }
