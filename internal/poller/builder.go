// internal/poller/builder.go
package poller

import (
	"sort"

	"github.com/tamzrod/weather-station/internal/sensor"
)

// BuildPlan groups sensors into the fewest read requests.
// Sensors are ordered by address; a gap between two addresses starts a new request.
// Assumes addresses are unique (callers validate). The input slice is not modified.
func BuildPlan(sensors []sensor.Descriptor) Plan {
	if len(sensors) == 0 {
		return nil
	}

	sorted := make([]sensor.Descriptor, len(sensors))
	copy(sorted, sensors)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Address < sorted[j].Address
	})

	var plan Plan
	run := ReadRequest{sorted[0]}

	for _, s := range sorted[1:] {
		prev := run[len(run)-1]
		if uint32(s.Address) == uint32(prev.Address)+1 {
			run = append(run, s)
			continue
		}
		plan = append(plan, run)
		run = ReadRequest{s}
	}

	return append(plan, run)
}
