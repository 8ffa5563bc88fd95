package daemon

import "hash/fnv"

// PortRangeLow and PortRangeHigh bound the deterministic port hash
// (spec.md §4.4): "a deterministic hash of project_id into a fixed range
// (e.g. 37890-38890)".
const (
	PortRangeLow  = 37890
	PortRangeHigh = 38890
)

// DerivePort deterministically maps a project_id into [PortRangeLow,
// PortRangeHigh] so that repeated daemon starts for the same project always
// claim the same loopback port.
func DerivePort(projectID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(projectID))
	span := PortRangeHigh - PortRangeLow + 1
	return PortRangeLow + int(h.Sum32())%span
}
