package detectors

import (
	"fmt"
	"math"
	"net/netip"
	"strconv"
	"strings"
)

const earthRadiusKm = 6371.0

type location struct {
	prefix   netip.Prefix
	lat, lon float64
}

// Network holds the static IP tables used by the geo-spoof and vpn-proxy
// detectors.
type Network struct {
	vpn       []netip.Prefix
	locations []location
}

// ParseNetwork builds the tables from CIDR strings. locations maps a CIDR to
// "lat,lon".
func ParseNetwork(vpnRanges []string, locations map[string]string) (*Network, error) {
	n := &Network{}
	for _, r := range vpnRanges {
		p, err := netip.ParsePrefix(strings.TrimSpace(r))
		if err != nil {
			return nil, fmt.Errorf("vpn range %q: %w", r, err)
		}
		n.vpn = append(n.vpn, p.Masked())
	}
	for cidr, coords := range locations {
		p, err := netip.ParsePrefix(strings.TrimSpace(cidr))
		if err != nil {
			return nil, fmt.Errorf("ip location %q: %w", cidr, err)
		}
		lat, lon, err := parseCoords(coords)
		if err != nil {
			return nil, fmt.Errorf("ip location %q: %w", cidr, err)
		}
		n.locations = append(n.locations, location{prefix: p.Masked(), lat: lat, lon: lon})
	}
	return n, nil
}

func parseCoords(s string) (float64, float64, error) {
	latS, lonS, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, fmt.Errorf("want \"lat,lon\", got %q", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latS), 64)
	if err != nil {
		return 0, 0, err
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonS), 64)
	if err != nil {
		return 0, 0, err
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return 0, 0, fmt.Errorf("coordinates out of range: %q", s)
	}
	return lat, lon, nil
}

// VPNRange returns the matching VPN/proxy range.
func (n *Network) VPNRange(ip netip.Addr) (netip.Prefix, bool) {
	if n == nil {
		return netip.Prefix{}, false
	}
	for _, p := range n.vpn {
		if p.Contains(ip) {
			return p, true
		}
	}
	return netip.Prefix{}, false
}

// Locate returns the coordinates of the most specific matching range.
func (n *Network) Locate(ip netip.Addr) (lat, lon float64, ok bool) {
	if n == nil {
		return 0, 0, false
	}
	best := -1
	for _, l := range n.locations {
		if l.prefix.Contains(ip) && l.prefix.Bits() > best {
			best = l.prefix.Bits()
			lat, lon, ok = l.lat, l.lon, true
		}
	}
	return lat, lon, ok
}

// haversineKm is the great-circle distance between two points.
func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(a)))
}

func parseIP(s string) (netip.Addr, bool) {
	if s == "" {
		return netip.Addr{}, false
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}
