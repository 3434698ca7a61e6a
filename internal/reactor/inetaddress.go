package reactor

import (
	"fmt"
	"net"
	"strconv"

	"golang.org/x/sys/unix"
)

// InetAddress is a typed wrapper over a v4 or v6 socket address. It stores the kernel-facing sockaddr form so socket ops can pass it
// straight through to syscalls without another conversion.
type InetAddress struct {
	addr unix.Sockaddr
	ip   net.IP
	port int
	isV6 bool
}

// NewInetAddress builds an InetAddress from an IP and port. ip may be nil to
// mean INADDR_ANY (used when constructing a listen address).
func NewInetAddress(ip net.IP, port int) InetAddress {
	if ip == nil {
		ip = net.IPv4zero
	}
	if v4 := ip.To4(); v4 != nil {
		var sa unix.SockaddrInet4
		sa.Port = port
		copy(sa.Addr[:], v4)
		return InetAddress{addr: &sa, ip: ip, port: port, isV6: false}
	}
	var sa unix.SockaddrInet6
	sa.Port = port
	copy(sa.Addr[:], ip.To16())
	return InetAddress{addr: &sa, ip: ip, port: port, isV6: true}
}

// ResolveInetAddress parses a "host:port" string, resolving host if it is
// not already a literal IP address.
//
// This is a caller's-thread-blocking DNS lookup. It is never called from
// inside the event loop; only a demo's one-shot startup should use it.
func ResolveInetAddress(hostport string) (InetAddress, error) {
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return InetAddress{}, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return InetAddress{}, fmt.Errorf("reactor: invalid port %q: %w", portStr, err)
	}
	if ip := net.ParseIP(host); ip != nil {
		return NewInetAddress(ip, port), nil
	}
	ips, err := net.LookupIP(host)
	if err != nil {
		return InetAddress{}, err
	}
	for _, ip := range ips {
		if ip.To4() != nil {
			return NewInetAddress(ip, port), nil
		}
	}
	return NewInetAddress(ips[0], port), nil
}

func inetAddressFromSockaddr(sa unix.Sockaddr) InetAddress {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		ip := net.IPv4(v.Addr[0], v.Addr[1], v.Addr[2], v.Addr[3])
		return InetAddress{addr: v, ip: ip, port: v.Port, isV6: false}
	case *unix.SockaddrInet6:
		ip := make(net.IP, net.IPv6len)
		copy(ip, v.Addr[:])
		return InetAddress{addr: v, ip: ip, port: v.Port, isV6: true}
	default:
		return InetAddress{}
	}
}

// IP returns the address's IP component.
func (a InetAddress) IP() net.IP { return a.ip }

// Port returns the address's port component.
func (a InetAddress) Port() int { return a.port }

// IsV6 reports whether this is an IPv6 address.
func (a InetAddress) IsV6() bool { return a.isV6 }

// String renders the address as dotted-decimal for v4, bracketed
// colon-hex for v6, with ":port" appended.
func (a InetAddress) String() string {
	if a.ip == nil {
		return fmt.Sprintf(":%d", a.port)
	}
	if a.isV6 {
		return fmt.Sprintf("[%s]:%d", a.ip.String(), a.port)
	}
	return fmt.Sprintf("%s:%d", a.ip.String(), a.port)
}

// Equal compares two addresses by family, address bytes and port, used by the
// Connector's self-connect detection.
func (a InetAddress) Equal(other InetAddress) bool {
	if a.isV6 != other.isV6 || a.port != other.port {
		return false
	}
	return a.ip.Equal(other.ip)
}

func (a InetAddress) family() int {
	if a.isV6 {
		return unix.AF_INET6
	}
	return unix.AF_INET
}
