// Package netutil holds the small TCP probes service providers rely on.
package netutil

import (
	"fmt"
	"net"
	"time"
)

// DefaultDialTimeout bounds a single liveness probe.
const DefaultDialTimeout = 500 * time.Millisecond

// CanConnect reports whether something is accepting TCP connections on
// host:port.
func CanConnect(host string, port int, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, fmt.Sprintf("%d", port)), timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// FirstFreePort scans [lower, upper] and returns the first port nothing is
// listening on. The second return value is false when every port in the
// range is taken.
func FirstFreePort(host string, lower, upper int) (int, bool) {
	for port := lower; port <= upper; port++ {
		if !CanConnect(host, port, DefaultDialTimeout) {
			return port, true
		}
	}
	return 0, false
}
