package ernode

import (
	"strconv"

	"github.com/blang/semver"
)

// versionString is this client library's release version. It has no
// effect on the wire protocol (that is governed entirely by the
// negotiated distribution version in the handshake); it exists so a
// peer-facing diagnostic can report which build of the client it is
// talking to, the way krdclient.go reports krd's version.
const versionString = "1.0.0"

// Version is the parsed form of versionString, computed once.
var Version = semver.MustParse(versionString)

// describePeerCompatibility renders this client's library version
// alongside the negotiated distribution version reported by EPMD, for
// the handshake's log lines. The two are printed, not compared.
func describePeerCompatibility(negotiatedDistVersion uint16) string {
	return "ernode " + Version.String() + " / dist v" + strconv.Itoa(int(negotiatedDistVersion))
}
