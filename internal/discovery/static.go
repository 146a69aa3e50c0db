// Package discovery finds running targets that expose a recording agent.
package discovery

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"

	"github.com/jfrlite/jfrlite/internal/targets"
)

// AddressKind classifies the host part of a static target entry.
type AddressKind string

const (
	AddressCIDR     AddressKind = "cidr"
	AddressRange    AddressKind = "range"
	AddressSingle   AddressKind = "ip"
	AddressHostname AddressKind = "hostname"
	AddressUnknown  AddressKind = "unknown"
)

// maxExpandedHosts caps how many addresses a single CIDR block or range may produce.
const maxExpandedHosts = 65536

// SourceStatic marks targets configured by hand.
const SourceStatic = "static"

// ClassifyAddress reports what kind of address expression value is.
//
//   - "10.0.0.0/24" -> cidr
//   - "10.0.0.1-10.0.0.9" -> range
//   - "10.0.0.7" -> ip
//   - "orders.internal" -> hostname
func ClassifyAddress(value string) AddressKind {
	value = strings.TrimSpace(value)
	if value == "" {
		return AddressUnknown
	}

	if strings.Contains(value, "/") {
		if _, err := netip.ParsePrefix(value); err == nil {
			return AddressCIDR
		}
		return AddressUnknown
	}

	if start, end, ok := strings.Cut(value, "-"); ok {
		_, errStart := netip.ParseAddr(strings.TrimSpace(start))
		_, errEnd := netip.ParseAddr(strings.TrimSpace(end))
		if errStart == nil && errEnd == nil {
			return AddressRange
		}
	}

	if _, err := netip.ParseAddr(value); err == nil {
		return AddressSingle
	}

	if isHostname(value) {
		return AddressHostname
	}
	return AddressUnknown
}

func isHostname(value string) bool {
	if len(value) > 253 || strings.ContainsAny(value, " /:@") {
		return false
	}
	labels := strings.Split(value, ".")
	// A leading numeric label means a malformed IP, not a hostname.
	if _, err := strconv.Atoi(labels[0]); err == nil {
		return false
	}
	for _, label := range labels {
		if label == "" || len(label) > 63 || label[0] == '-' || label[len(label)-1] == '-' {
			return false
		}
		for _, r := range label {
			if !(r == '-' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
				return false
			}
		}
	}
	return true
}

// ExpandAddresses turns an address expression into individual hosts. IPv4 CIDR
// blocks exclude the network and broadcast addresses except for /31 and /32.
func ExpandAddresses(value string) ([]string, error) {
	value = strings.TrimSpace(value)
	switch ClassifyAddress(value) {
	case AddressCIDR:
		return expandCIDR(value)
	case AddressRange:
		return expandRange(value)
	case AddressSingle, AddressHostname:
		return []string{value}, nil
	default:
		return nil, fmt.Errorf("invalid address: %q", value)
	}
}

func expandCIDR(cidr string) ([]string, error) {
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		return nil, fmt.Errorf("invalid CIDR notation: %w", err)
	}

	maxBits := 32
	if prefix.Addr().Is6() {
		maxBits = 128
	}
	if maxBits-prefix.Bits() > 16 {
		return nil, fmt.Errorf("CIDR block too large (>%d hosts): %s", maxExpandedHosts, cidr)
	}

	trimEdges := prefix.Addr().Is4() && prefix.Bits() < 31
	addr := prefix.Masked().Addr()
	if trimEdges {
		addr = addr.Next()
	}

	var hosts []string
	for ; addr.IsValid() && prefix.Contains(addr); addr = addr.Next() {
		hosts = append(hosts, addr.String())
	}
	if trimEdges && len(hosts) > 0 {
		hosts = hosts[:len(hosts)-1]
	}
	return hosts, nil
}

func expandRange(value string) ([]string, error) {
	rawStart, rawEnd, _ := strings.Cut(value, "-")
	start, err := netip.ParseAddr(strings.TrimSpace(rawStart))
	if err != nil {
		return nil, fmt.Errorf("invalid range start: %w", err)
	}
	end, err := netip.ParseAddr(strings.TrimSpace(rawEnd))
	if err != nil {
		return nil, fmt.Errorf("invalid range end: %w", err)
	}
	if start.Is4() != end.Is4() {
		return nil, fmt.Errorf("IP version mismatch: %s and %s", start, end)
	}
	if start.Compare(end) > 0 {
		return nil, fmt.Errorf("range start must be <= end: %s > %s", start, end)
	}

	var hosts []string
	for current := start; ; current = current.Next() {
		if !current.IsValid() {
			return nil, fmt.Errorf("address overflow while expanding range: %s", value)
		}
		hosts = append(hosts, current.String())
		if len(hosts) > maxExpandedHosts {
			return nil, fmt.Errorf("IP range too large (>%d hosts): %s", maxExpandedHosts, value)
		}
		if current == end {
			return hosts, nil
		}
	}
}

// ParseStaticEntry expands one configured target entry. Accepted forms:
//
//	host:port          single host or IP with an explicit port
//	[v6addr]:port
//	address@port       any address expression (CIDR, range, IP, hostname)
//	address            uses defaultPort
func ParseStaticEntry(entry string, defaultPort int) ([]targets.Target, error) {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return nil, fmt.Errorf("empty target entry")
	}

	address, port := entry, defaultPort
	if at := strings.LastIndex(entry, "@"); at >= 0 {
		p, err := parsePort(entry[at+1:])
		if err != nil {
			return nil, fmt.Errorf("target entry %q: %w", entry, err)
		}
		address, port = entry[:at], p
	} else if host, rawPort, err := net.SplitHostPort(entry); err == nil {
		p, err := parsePort(rawPort)
		if err != nil {
			return nil, fmt.Errorf("target entry %q: %w", entry, err)
		}
		address, port = host, p
	}
	if port <= 0 {
		return nil, fmt.Errorf("target entry %q has no port", entry)
	}

	hosts, err := ExpandAddresses(address)
	if err != nil {
		return nil, fmt.Errorf("target entry %q: %w", entry, err)
	}

	out := make([]targets.Target, 0, len(hosts))
	for _, host := range hosts {
		hostPort := net.JoinHostPort(host, strconv.Itoa(port))
		out = append(out, targets.Target{
			ID:       hostPort,
			AgentURL: "http://" + hostPort,
			Source:   SourceStatic,
		})
	}
	return out, nil
}

func parsePort(raw string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || port <= 0 || port > 65535 {
		return 0, fmt.Errorf("invalid port %q", raw)
	}
	return port, nil
}

// StaticScan expands entries once and returns a ScanFunc yielding the result.
func StaticScan(entries []string, defaultPort int) (ScanFunc, error) {
	var all []targets.Target
	for _, entry := range entries {
		expanded, err := ParseStaticEntry(entry, defaultPort)
		if err != nil {
			return nil, err
		}
		all = append(all, expanded...)
	}
	return func(context.Context) ([]targets.Target, error) {
		out := make([]targets.Target, len(all))
		copy(out, all)
		return out, nil
	}, nil
}
