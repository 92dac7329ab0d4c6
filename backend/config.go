package backend

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultPort is used when no port is configured.
const DefaultPort = 8088

// DefaultAddr is the address used when none is configured.
var DefaultAddr = fmt.Sprintf("127.0.0.1:%d", DefaultPort)

// ResolveAddr normalizes a configured address. A bare port is bound to
// loopback and an empty address resolves to DefaultAddr.
func ResolveAddr(addr string) (string, error) {
	if strings.TrimSpace(addr) == "" {
		return DefaultAddr, nil
	}
	return normalizeAddr(addr)
}

func normalizeAddr(addr string) (string, error) {
	trimmed := strings.TrimSpace(addr)
	if trimmed == "" {
		return "", fmt.Errorf("address is required")
	}
	if strings.Contains(trimmed, ":") {
		return trimmed, nil
	}
	port, err := strconv.Atoi(trimmed)
	if err != nil {
		return "", fmt.Errorf("invalid port %q", trimmed)
	}
	if port <= 0 || port > 65535 {
		return "", fmt.Errorf("port out of range: %d", port)
	}
	return fmt.Sprintf("127.0.0.1:%d", port), nil
}
