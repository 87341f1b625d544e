package fetch

import (
	"fmt"
	"net"
	"strings"
	"syscall"
)

// ErrBlockedHost is returned when a URL resolves to a loopback, private,
// link-local or unspecified address. It wraps ErrInvalidURL.
var ErrBlockedHost = fmt.Errorf("%w: host not allowed", ErrInvalidURL)

// BlockedIP reports whether ip must not be dialed by a server-side fetch.
func BlockedIP(ip net.IP) bool {
	return ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() ||
		ip.IsUnspecified()
}

// internalHost matches names that only resolve inside a private network.
func internalHost(host string) bool {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if host == "localhost" {
		return true
	}
	for _, suffix := range []string{".localhost", ".local", ".internal"} {
		if strings.HasSuffix(host, suffix) {
			return true
		}
	}
	if ip := net.ParseIP(host); ip != nil {
		return BlockedIP(ip)
	}
	return false
}

// dialControl runs after DNS resolution, so it also covers redirects and
// names that resolve to internal addresses.
func dialControl(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBlockedHost, address)
	}
	ip := net.ParseIP(host)
	if ip == nil || BlockedIP(ip) {
		return ErrBlockedHost
	}
	return nil
}
