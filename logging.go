package ernode

import (
	stdlog "log"
	"log/syslog"
	"os"

	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("")

var syslogFormat = logging.MustStringFormatter(
	`%{time:15:04:05.000} %{level:.6s} ▶ %{message}`,
)
var stderrFormat = logging.MustStringFormatter(
	`%{color}ernode ▶ %{message}%{color:reset}`,
)

// SetupLogging wires the package logger to syslog when available, falling
// back to stderr. ERNODE_LOG_LEVEL overrides defaultLogLevel when set.
func SetupLogging(prefix string, defaultLogLevel logging.Level, trySyslog bool) *logging.Logger {
	var backend logging.Backend
	if trySyslog {
		var err error
		backend, err = logging.NewSyslogBackendPriority(prefix, syslog.LOG_NOTICE)
		if err == nil {
			logging.SetFormatter(syslogFormat)
			if syslogBackend, ok := backend.(*logging.SyslogBackend); ok {
				stdlog.SetOutput(syslogBackend.Writer)
			}
		} else {
			backend = nil
		}
	}
	if backend == nil {
		backend = logging.NewLogBackend(os.Stderr, prefix, 0)
		logging.SetFormatter(stderrFormat)
	}
	leveled := logging.AddModuleLevel(backend)
	switch os.Getenv("ERNODE_LOG_LEVEL") {
	case "CRITICAL":
		leveled.SetLevel(logging.CRITICAL, prefix)
	case "ERROR":
		leveled.SetLevel(logging.ERROR, prefix)
	case "WARNING":
		leveled.SetLevel(logging.WARNING, prefix)
	case "NOTICE":
		leveled.SetLevel(logging.NOTICE, prefix)
	case "INFO":
		leveled.SetLevel(logging.INFO, prefix)
	case "DEBUG":
		leveled.SetLevel(logging.DEBUG, prefix)
	default:
		leveled.SetLevel(defaultLogLevel, prefix)
	}

	logging.SetBackend(leveled)
	return log
}

// Verbosity controls which diagnostic points a Conn logs at. It has no
// effect on protocol semantics (spec §4.6).
type Verbosity int

const (
	VerbosityNone Verbosity = iota
	VerbosityTrace
	VerbosityWire
	VerbosityMessage
)

func (v Verbosity) String() string {
	switch v {
	case VerbosityTrace:
		return "trace"
	case VerbosityWire:
		return "wire"
	case VerbosityMessage:
		return "message"
	default:
		return "none"
	}
}

// verbosityLogLevel maps a Conn's diagnostic Verbosity onto the
// go-logging level SetupLoggingForVerbosity defaults to. Raising
// -verbosity this way also raises what actually reaches the configured
// backend, instead of only gating the package's own Debugf call sites.
func verbosityLogLevel(v Verbosity) logging.Level {
	switch v {
	case VerbosityTrace, VerbosityWire, VerbosityMessage:
		return logging.DEBUG
	default:
		return logging.NOTICE
	}
}

// SetupLoggingForVerbosity is SetupLogging with the default level derived
// from a Config's Verbosity rather than passed explicitly, so a CLI's
// -verbosity flag controls both Conn's own trace calls and the ambient
// log level with a single setting.
func SetupLoggingForVerbosity(prefix string, v Verbosity, trySyslog bool) *logging.Logger {
	return SetupLogging(prefix, verbosityLogLevel(v), trySyslog)
}

// logHandshakeConnected records, at NOTICE, which local node name and
// negotiated distribution version a handshake completed with (spec §4.7
// "Connected"). Unlike the VerbosityTrace-gated Debugf calls in
// handshake.go, this line is unconditional: it is the one durable record
// in the log of which local name and protocol version a completed
// handshake used, useful after the fact even when nothing else was
// logged. The peer's name is not part of the line.
func logHandshakeConnected(localName string, negotiatedDistVersion uint16) {
	log.Noticef("ernode: %s handshake complete, %s", localName, describePeerCompatibility(negotiatedDistVersion))
}
