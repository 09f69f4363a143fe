package planning

import (
	"context"

	"github.com/aerofleet/dronesim"
	"github.com/aerofleet/dronesim/logging"
)

// StraightLinePlanner is the degenerate planner: the path to any
// target is just the target itself, no grid involved. It refreshes the
// single-waypoint path every tick, so a moved target takes effect
// immediately.
type StraightLinePlanner struct {
	log logging.Logger
}

// NewStraightLinePlanner builds a StraightLinePlanner.
func NewStraightLinePlanner(log logging.Logger) *StraightLinePlanner {
	if log == nil {
		log = logging.NewLogger(AlgoStraightLine)
	}
	return &StraightLinePlanner{log: log.Named(AlgoStraightLine)}
}

func (p *StraightLinePlanner) Name() string { return AlgoStraightLine }

func (p *StraightLinePlanner) PlanPaths(ctx context.Context, world *dronesim.World, drones []*dronesim.Drone, params dronesim.RawParams, tick int) {
	for _, d := range drones {
		if d.Target == nil {
			continue
		}
		d.Path = []dronesim.Vec3{*d.Target}
	}
}
