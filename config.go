package ernode

import (
	"os"
	"strconv"
	"time"
)

// defaultEpmdPort is EPMD's compiled-in default (spec §4.7); it is
// overridden by the ERL_EPMD_PORT environment variable, matching real
// OTP node behavior.
const defaultEpmdPort = 4369

// ourDistVersion is the highest distribution version this client speaks.
// The handshake negotiates down to min(peerHighest, ourDistVersion).
const ourDistVersion = 5

// minCompatibleDistVersion is the lowest negotiated version this client
// accepts; at or below it the peer is too old (spec §4.7 "if it is ≤ 4
// the peer is incompatible").
const minCompatibleDistVersion = 4

// Capability flags advertised during name exchange (spec §4.7), named
// after the Erlang distribution protocol's DFLAG_* constants.
const (
	dflagDistMonitor        = 0x00000008
	dflagExtendedReferences = 0x00000004
	dflagExtendedPidsPorts  = 0x00000100
	dflagNewFloats          = 0x00000800
	dflagFunTags            = 0x00000010
	dflagNewFunTags         = 0x00000080
)

// ourCapabilities is the minimum flag set spec §4.7 requires this client
// to advertise: extended references, extended pids/ports, fun tags, new
// fun tags, new floats, and distribution monitor support.
const ourCapabilities = uint32(dflagDistMonitor | dflagExtendedReferences |
	dflagExtendedPidsPorts | dflagNewFloats | dflagFunTags | dflagNewFunTags)

// Timeouts groups the connection's deadlines. Grounded in the teacher's
// TimeoutPhases/DefaultTimeouts shape. Only Handshake is read by this
// package: it is one budget shared by the whole of Dial (resolution,
// EPMD query, connect, and every exchange step), not a fresh deadline
// per step. Resolve, Connect and Tick are not read.
type Timeouts struct {
	Resolve   time.Duration
	Connect   time.Duration
	Handshake time.Duration
	Tick      time.Duration
}

// DefaultTimeouts mirrors the spec's 5-second handshake-step default.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Resolve:   5 * time.Second,
		Connect:   5 * time.Second,
		Handshake: 5 * time.Second,
		Tick:      60 * time.Second,
	}
}

// Config carries everything a Conn needs to dial and authenticate with a
// peer node (spec §4.7, §6 "External Interfaces").
type Config struct {
	Cookie       string
	MaxFrameSize int
	Timeouts     Timeouts
	Verbosity    Verbosity
	ResolveCache int
}

// DefaultConfig returns the zero-ish baseline most callers start from.
func DefaultConfig(cookie string) Config {
	return Config{
		Cookie:       cookie,
		MaxFrameSize: 64 << 20,
		Timeouts:     DefaultTimeouts(),
		Verbosity:    VerbosityNone,
		ResolveCache: 128,
	}
}

// EpmdPort returns the EPMD port to query: ERL_EPMD_PORT if set and
// parseable, else defaultEpmdPort (spec §4.7, §6).
func EpmdPort() int {
	if raw := os.Getenv("ERL_EPMD_PORT"); raw != "" {
		if p, err := strconv.Atoi(raw); err == nil && p > 0 && p < 65536 {
			return p
		}
	}
	return defaultEpmdPort
}
