package netutil

import (
	"fmt"
	"net"
	"strings"
)

// maxCIDRHosts caps a single CIDR entry so a typo like 10.0.0.0/8 does not
// explode into millions of endpoints.
const maxCIDRHosts = 1 << 16

// ExpandHost turns one host-list entry into concrete hosts. Entries with a
// slash are parsed as CIDR ranges; anything else is returned unchanged.
func ExpandHost(entry string) ([]string, error) {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return nil, nil
	}
	if !strings.Contains(entry, "/") {
		return []string{entry}, nil
	}

	ip, ipnet, err := net.ParseCIDR(entry)
	if err != nil {
		return nil, fmt.Errorf("invalid CIDR %q: %w", entry, err)
	}
	ones, bits := ipnet.Mask.Size()
	if bits-ones > 16 {
		return nil, fmt.Errorf("CIDR %q is larger than %d addresses", entry, maxCIDRHosts)
	}

	var hosts []string
	for ip := ip.Mask(ipnet.Mask); ipnet.Contains(ip); inc(ip) {
		// Skip network and broadcast addresses for /30 and larger.
		if bits-ones > 1 {
			if ip.Equal(ipnet.IP) {
				continue
			}
			if bits == 32 && ip.Equal(broadcastAddr(ipnet)) {
				continue
			}
		}
		hosts = append(hosts, ip.String())
	}
	return hosts, nil
}

func inc(ip net.IP) {
	for j := len(ip) - 1; j >= 0; j-- {
		ip[j]++
		if ip[j] > 0 {
			break
		}
	}
}

func broadcastAddr(n *net.IPNet) net.IP {
	ip := make(net.IP, len(n.IP))
	for i := range ip {
		ip[i] = n.IP[i] | ^n.Mask[i]
	}
	return ip
}
