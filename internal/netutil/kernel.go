package netutil

import (
	"fmt"
	"slices"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

// KernelRoute is one IPv4 route of the kernel main table, reduced to what a
// static forwarding table can express.
type KernelRoute struct {
	Network   uint32
	PrefixLen int
	Ifindex   int
	Priority  int
	// Reject is set for blackhole, unreachable and prohibit routes.
	Reject bool
}

// KernelRoutes snapshots the IPv4 main routing table via netlink.
func KernelRoutes() ([]KernelRoute, error) {
	filter := &netlink.Route{Table: unix.RT_TABLE_MAIN}
	routes, err := netlink.RouteListFiltered(netlink.FAMILY_V4, filter, netlink.RT_FILTER_TABLE)
	if err != nil {
		return nil, fmt.Errorf("listing IPv4 routes: %w", err)
	}
	return convertRoutes(routes), nil
}

// convertRoutes keeps unicast and reject routes, one per prefix. When the
// kernel holds the same prefix at several metrics the lowest one wins.
func convertRoutes(routes []netlink.Route) []KernelRoute {
	out := make([]KernelRoute, 0, len(routes))
	for _, r := range routes {
		kr := KernelRoute{Priority: r.Priority}

		switch r.Type {
		case unix.RTN_UNICAST:
		case unix.RTN_BLACKHOLE, unix.RTN_UNREACHABLE, unix.RTN_PROHIBIT:
			kr.Reject = true
		default:
			continue
		}

		// Newer netlink versions report the default route as 0.0.0.0/0,
		// older ones leave Dst nil.
		if r.Dst != nil {
			ones, bits := r.Dst.Mask.Size()
			if bits != 32 {
				continue
			}
			kr.Network = IPToU32(r.Dst.IP)
			kr.PrefixLen = ones
		}

		kr.Ifindex = r.LinkIndex
		if kr.Ifindex == 0 && len(r.MultiPath) > 0 {
			// Multipath is not modelled; take the first hop.
			kr.Ifindex = r.MultiPath[0].LinkIndex
		}
		if !kr.Reject && kr.Ifindex == 0 {
			continue
		}

		out = append(out, kr)
	}

	slices.SortStableFunc(out, func(a, b KernelRoute) int {
		if a.PrefixLen != b.PrefixLen {
			return b.PrefixLen - a.PrefixLen
		}
		if a.Network != b.Network {
			if a.Network < b.Network {
				return -1
			}
			return 1
		}
		return a.Priority - b.Priority
	})

	return slices.CompactFunc(out, func(a, b KernelRoute) bool {
		return a.PrefixLen == b.PrefixLen && a.Network == b.Network
	})
}
