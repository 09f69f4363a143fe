package planning

import (
	"container/heap"
	"context"
	"math"

	"github.com/aerofleet/dronesim"
	"github.com/aerofleet/dronesim/gridcache"
	"github.com/aerofleet/dronesim/logging"
)

// GridAStarPlanner is the plain best-first planner: a single open
// set, Manhattan heuristic, uniform edge cost (1 axial, sqrt(2) diagonal),
// no clearance field. It shares GridCache's coordinate helpers but builds
// a clearance-free grid since it never consults clearance.
type GridAStarPlanner struct {
	log     logging.Logger
	tracker *replanTracker
	grid    *gridcache.Grid
	world   *dronesim.World
	cellReq float64
}

// NewGridAStarPlanner builds a GridAStarPlanner with its 10-tick replan
// cadence.
func NewGridAStarPlanner(log logging.Logger) *GridAStarPlanner {
	if log == nil {
		log = logging.NewLogger(AlgoGridAStar)
	}
	return &GridAStarPlanner{log: log.Named(AlgoGridAStar), tracker: newReplanTracker(10)}
}

func (p *GridAStarPlanner) Name() string { return AlgoGridAStar }

func (p *GridAStarPlanner) PlanPaths(ctx context.Context, world *dronesim.World, drones []*dronesim.Drone, raw dronesim.RawParams, tick int) {
	params := DecodeParams(raw, DefaultGridAStarParams(), p.log)
	params.Tick = tick

	if p.grid == nil || p.cellReq != params.GridCellM || p.world != world {
		g, err := gridcache.BuildPlainSized(world, params.GridCellM, params.ClearanceM, p.log)
		if err != nil {
			p.log.Errorw("failed to build grid, skipping tick", "error", err)
			return
		}
		p.grid, p.world, p.cellReq = g, world, params.GridCellM
	}

	for _, d := range drones {
		if !p.tracker.needsReplan(d, tick) {
			continue
		}
		d.Path = p.planOne(d, params)
		p.tracker.record(d, tick)
	}
}

func (p *GridAStarPlanner) planOne(d *dronesim.Drone, params Params) []dronesim.Vec3 {
	g := p.grid
	start := g.FromWorld(d.Pos.X, d.Pos.Y)
	goal := g.FromWorld(d.Target.X, d.Target.Y)
	start = g.NearestFree(start)
	goal = g.NearestFree(goal)

	if start == goal {
		return []dronesim.Vec3{g.ToWorld(goal, params.CruiseAltM)}
	}

	neighbors := neighborOffsets(params.AllowDiagonal)

	gCost := map[gridcache.Coord]float64{start: 0}
	parent := map[gridcache.Coord]gridcache.Coord{}
	closed := map[gridcache.Coord]bool{}

	open := &pqueue{}
	heap.Init(open)
	seq := 0
	push := func(c gridcache.Coord, f float64) {
		heap.Push(open, pqEntry{key: f, seq: seq, coord: c})
		seq++
	}
	push(start, manhattan(start, goal))

	reached := false
	for open.Len() > 0 {
		entry := heap.Pop(open).(pqEntry)
		u := entry.coord
		if closed[u] {
			continue
		}
		if curF := gCost[u] + manhattan(u, goal); entry.key > curF+1e-9 {
			continue
		}
		closed[u] = true
		if u == goal {
			reached = true
			break
		}
		for _, off := range neighbors {
			v := gridcache.Coord{X: u.X + off.dx, Y: u.Y + off.dy}
			if g.IsBlocked(v) || closed[v] {
				continue
			}
			edge := 1.0
			if off.dx != 0 && off.dy != 0 {
				edge = math.Sqrt2
			}
			ng := gCost[u] + edge
			if old, ok := gCost[v]; !ok || ng < old {
				gCost[v] = ng
				parent[v] = u
				push(v, ng+manhattan(v, goal))
			}
		}
	}

	return reconstructUniform(g, parent, start, goal, reached, params.CruiseAltM)
}

type offset struct{ dx, dy int }

func neighborOffsets(diag bool) []offset {
	offs := []offset{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	if diag {
		offs = append(offs, offset{1, 1}, offset{1, -1}, offset{-1, 1}, offset{-1, -1})
	}
	return offs
}

func manhattan(a, b gridcache.Coord) float64 {
	return math.Abs(float64(a.X-b.X)) + math.Abs(float64(a.Y-b.Y))
}

// reconstructUniform walks parent from goal back to start and returns the
// world-space waypoint sequence. If the goal was never reached and has no
// recorded parent, the path is just the bare goal cell.
func reconstructUniform(g *gridcache.Grid, parent map[gridcache.Coord]gridcache.Coord, start, goal gridcache.Coord, reached bool, alt float64) []dronesim.Vec3 {
	if !reached {
		if _, ok := parent[goal]; !ok {
			return []dronesim.Vec3{g.ToWorld(goal, alt)}
		}
	}
	var cells []gridcache.Coord
	cur := goal
	for {
		cells = append(cells, cur)
		if cur == start {
			break
		}
		p, ok := parent[cur]
		if !ok {
			break
		}
		cur = p
	}
	path := make([]dronesim.Vec3, len(cells))
	for i, c := range cells {
		path[len(cells)-1-i] = g.ToWorld(c, alt)
	}
	return path
}
