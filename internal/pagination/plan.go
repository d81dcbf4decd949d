package pagination

const (
	// MaxStride is the largest page distance covered by a single hop.
	MaxStride = 5
	// EntryWaypoint is the first jump target a compressed pager exposes.
	EntryWaypoint = 5
	// WaypointStep is the spacing of the jump targets after the entry one.
	WaypointStep = 5
)

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Clamp bounds target to [1, last]. A last page below 1 is treated as a
// single page listing.
func Clamp(target, last int) int {
	if last < 1 {
		last = 1
	}
	return clamp(target, 1, last)
}

// nearestWaypoint returns the jump target closest to target among page 1,
// every multiple of WaypointStep and the last page. Ties go to the lower page.
func nearestWaypoint(target, last int) int {
	best := 1
	consider := func(p int) {
		if p < 1 || p > last {
			return
		}
		if abs(p-target) < abs(best-target) {
			best = p
		}
	}
	for p := WaypointStep; p <= last; p += WaypointStep {
		consider(p)
	}
	consider(last)
	return best
}

// PlanHops returns the pages to visit, in order, to move from current to
// target. Nearby targets are reached directly. Distant targets go through the
// entry waypoint when starting before it, then the waypoint closest to the
// target, then strides of at most MaxStride pages.
func PlanHops(current, target, last int) []int {
	if last < 1 {
		last = 1
	}
	target = clamp(target, 1, last)
	current = clamp(current, 1, last)

	if current == target {
		return nil
	}
	if abs(target-current) <= MaxStride {
		return []int{target}
	}

	var hops []int
	pos := current

	if pos < EntryWaypoint && target > EntryWaypoint && last >= EntryWaypoint {
		pos = EntryWaypoint
		hops = append(hops, pos)
	}

	if abs(target-pos) > MaxStride {
		if wp := nearestWaypoint(target, last); wp != pos {
			pos = wp
			hops = append(hops, pos)
		}
	}

	for pos != target {
		pos += clamp(target-pos, -MaxStride, MaxStride)
		hops = append(hops, pos)
	}

	return hops
}
