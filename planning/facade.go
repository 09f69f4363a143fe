package planning

import "github.com/aerofleet/dronesim"

// replanTracker implements the per-drone replan cadence policy shared by
// every GridCache-backed planner: a drone replans when it has never been
// planned for, its goal (x,y) moved, replanEvery ticks have elapsed since
// its last plan, or its path ran dry. Kept per planner instance, not
// global, so swapping algorithms via set_algorithm starts this bookkeeping
// fresh.
type replanTracker struct {
	replanEvery int
	lastGoalX   map[string]float64
	lastGoalY   map[string]float64
	lastTick    map[string]int
	seen        map[string]bool
}

func newReplanTracker(replanEvery int) *replanTracker {
	return &replanTracker{
		replanEvery: replanEvery,
		lastGoalX:   make(map[string]float64),
		lastGoalY:   make(map[string]float64),
		lastTick:    make(map[string]int),
		seen:        make(map[string]bool),
	}
}

// needsReplan reports whether d should be (re)planned this tick.
func (rt *replanTracker) needsReplan(d *dronesim.Drone, tick int) bool {
	if d.Target == nil {
		return false
	}
	if !rt.seen[d.ID] {
		return true
	}
	if rt.lastGoalX[d.ID] != d.Target.X || rt.lastGoalY[d.ID] != d.Target.Y {
		return true
	}
	if tick-rt.lastTick[d.ID] >= rt.replanEvery {
		return true
	}
	if len(d.Path) == 0 {
		return true
	}
	return false
}

// record marks d as freshly planned at tick, for future needsReplan calls.
func (rt *replanTracker) record(d *dronesim.Drone, tick int) {
	rt.seen[d.ID] = true
	if d.Target != nil {
		rt.lastGoalX[d.ID] = d.Target.X
		rt.lastGoalY[d.ID] = d.Target.Y
	}
	rt.lastTick[d.ID] = tick
}
