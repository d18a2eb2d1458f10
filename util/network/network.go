package network

import (
	"net"

	"github.com/pkg/errors"
)

// NormalizeAddresses returns a new slice with all the passed listen or
// connect addresses normalized with the given default port, and all
// duplicates removed. Order of first appearance is kept.
func NormalizeAddresses(addrs []string, defaultPort string) ([]string, error) {
	normalized := make([]string, 0, len(addrs))
	seen := make(map[string]struct{}, len(addrs))
	for _, addr := range addrs {
		addrWithPort, err := NormalizeAddress(addr, defaultPort)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[addrWithPort]; ok {
			continue
		}
		seen[addrWithPort] = struct{}{}
		normalized = append(normalized, addrWithPort)
	}
	return normalized, nil
}

// NormalizeAddress returns addr with the passed default port appended if
// there is not already a port specified.
func NormalizeAddress(addr, defaultPort string) (string, error) {
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr, nil
	}

	// SplitHostPort also fails for reasons other than a missing port, so
	// the joined form is validated again.
	addrWithPort := net.JoinHostPort(addr, defaultPort)
	if _, _, err := net.SplitHostPort(addrWithPort); err != nil {
		return "", errors.Wrapf(err, "invalid address %q", addr)
	}
	return addrWithPort, nil
}
