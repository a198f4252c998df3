package kobuki

import (
	"github.com/Masterminds/semver"
)

// SupportedProtocolVersion is the wire protocol version this driver
// implements decoding for. Older or newer firmware still streams
// well-formed frames; only the interpretation of sub-record contents is
// pinned to this version.
const SupportedProtocolVersion = "2.0.0"

// protocolCompatible reports whether reported, the protocol_version string
// from the driver's configuration, satisfies this driver's supported
// version. A malformed version string is treated as incompatible rather
// than as an error: the caller degrades to draining frames without
// decoding them.
func protocolCompatible(reported string) bool {
	v, err := semver.NewVersion(reported)
	if err != nil {
		return false
	}

	constraint, err := semver.NewConstraint("=" + SupportedProtocolVersion)
	if err != nil {
		return false
	}
	return constraint.Check(v)
}
