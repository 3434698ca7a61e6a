// Package reactordemo holds the application-level handshake shared by the
// demo binaries under cmd/. None of this runs inside the reactor core:
// TcpConnection only ever sees bytes, and it is this package's job — driven
// entirely from a MessageCallback — to find a line, parse it, and decide
// whether the peer is compatible enough to keep talking to.
package reactordemo

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

const helloPrefix = "HELLO "

// HelloLine renders the greeting a demo sends right after the connection
// comes up: its own semantic version, newline-terminated so the peer's
// Buffer.FindCRLF/FindEOL helpers can pick it out of the stream.
func HelloLine(selfVersion string) string {
	return helloPrefix + selfVersion + "\n"
}

// ParseHello extracts the peer's version from a line previously produced by
// HelloLine. line must already have its trailing newline stripped.
func ParseHello(line string) (*semver.Version, error) {
	rest, ok := strings.CutPrefix(line, helloPrefix)
	if !ok {
		return nil, fmt.Errorf("reactordemo: line %q is not a hello greeting", line)
	}
	v, err := semver.NewVersion(strings.TrimSpace(rest))
	if err != nil {
		return nil, fmt.Errorf("reactordemo: parsing peer version from %q: %w", line, err)
	}
	return v, nil
}

// Satisfies reports whether peerVersion meets the ">= minVersion" constraint
// demo binaries require of each other before letting the echo loop start.
func Satisfies(peerVersion *semver.Version, minVersion string) (bool, error) {
	constraint, err := semver.NewConstraint(">= " + minVersion)
	if err != nil {
		return false, fmt.Errorf("reactordemo: bad minimum version constraint %q: %w", minVersion, err)
	}
	return constraint.Check(peerVersion), nil
}
