//go:build linux

package reactor

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// TCPInfo returns kernel TCP diagnostics for the connection's socket,
// formatted for logging. golang.org/x/sys/unix already exposes the decoded
// TCP_INFO struct, so no manual struct layout is needed here.
func (s Socket) TCPInfo() (string, error) {
	info, err := unix.GetsockoptTCPInfo(s.fd, unix.SOL_TCP, unix.TCP_INFO)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"state=%d retransmits=%d rto=%d ato=%d snd_mss=%d rcv_mss=%d "+
			"lost=%d retrans=%d rtt=%d rttvar=%d snd_cwnd=%d total_retrans=%d",
		info.State, info.Retransmits, info.Rto, info.Ato, info.Snd_mss, info.Rcv_mss,
		info.Lost, info.Retrans, info.Rtt, info.Rttvar, info.Snd_cwnd, info.Total_retrans,
	), nil
}
