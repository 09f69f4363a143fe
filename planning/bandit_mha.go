package planning

import (
	"context"
	"math"

	"github.com/aerofleet/dronesim"
	"github.com/aerofleet/dronesim/gridcache"
	"github.com/aerofleet/dronesim/logging"
)

// BanditMHAPlanner is the multi-heuristic planner: four open sets
// over one shared g-score map, a UCB1 bandit choosing which set to pop each
// expansion, and a clearance-modulated edge-time cost model. Queue 0 is the
// admissible anchor (Euclidean distance over v_max); queues 1-3 are
// inadmissible hints (clearance-time, ALT landmark, bearing-biased) that
// race on progress reward.
type BanditMHAPlanner struct {
	log       logging.Logger
	tracker   *replanTracker
	grid      *gridcache.Grid
	world     *dronesim.World
	cellReq   float64
	telemetry *Telemetry
}

// NewBanditMHAPlanner builds a BanditMHAPlanner with its 20-tick replan
// cadence.
func NewBanditMHAPlanner(log logging.Logger) *BanditMHAPlanner {
	if log == nil {
		log = logging.NewLogger(AlgoBanditMHAStar)
	}
	return &BanditMHAPlanner{
		log:       log.Named(AlgoBanditMHAStar),
		tracker:   newReplanTracker(20),
		telemetry: NewTelemetry(),
	}
}

func (p *BanditMHAPlanner) Name() string { return AlgoBanditMHAStar }

// Telemetry exposes the accumulated per-plan bandit statistics for this
// planner instance; the engine and dronesimctl report its Summary.
func (p *BanditMHAPlanner) Telemetry() *Telemetry { return p.telemetry }

func (p *BanditMHAPlanner) PlanPaths(ctx context.Context, world *dronesim.World, drones []*dronesim.Drone, raw dronesim.RawParams, tick int) {
	params := DecodeParams(raw, DefaultBanditParams(), p.log)
	params.Tick = tick

	// Rebuild on first use, cell change, or world swap (worlds are replaced
	// atomically, so pointer identity is the change signal). cellReq is the
	// requested cell, not the (possibly coarsened) built cell, so a
	// fallback-coarsened grid isn't rebuilt every pass.
	if p.grid == nil || p.cellReq != params.GridCellM || p.world != world {
		g, err := gridcache.BuildSized(world, params.GridCellM, params.ClearanceM, p.log)
		if err != nil {
			p.log.CErrorf(ctx, "failed to build grid, skipping tick: %v", err)
			return
		}
		p.grid, p.world, p.cellReq = g, world, params.GridCellM
	}

	for _, d := range drones {
		if !p.tracker.needsReplan(d, tick) {
			continue
		}
		path, st := p.planOne(d, params)
		d.Path = path
		st.DroneID = d.ID
		p.telemetry.Record(st)
		p.tracker.record(d, tick)
		p.log.CDebugf(ctx, "planned drone %s: %d waypoints, %d expansions, goal=%t",
			d.ID, st.Waypoints, st.Expansions, st.GoalReached)
	}
}

// planOne runs one full search for a single drone and returns the waypoint
// path plus that plan's bandit statistics. All search state is local to
// this call.
func (p *BanditMHAPlanner) planOne(d *dronesim.Drone, params Params) ([]dronesim.Vec3, PlanStats) {
	g := p.grid
	start := g.NearestFree(g.FromWorld(d.Pos.X, d.Pos.Y))
	goal := g.NearestFree(g.FromWorld(d.Target.X, d.Target.Y))
	z := params.CruiseAltM

	// Snap exhaustion leaves the cell blocked; the search then degrades to
	// the bare goal cell and the next replan retries.
	if g.IsBlocked(start) {
		p.log.Warnw("no free cell near start", "error", ErrNoValidStart, "drone", d.ID)
	}
	if g.IsBlocked(goal) {
		p.log.Warnw("no free cell near goal", "error", ErrNoValidGoal, "drone", d.ID)
	}

	if start == goal {
		return []dronesim.Vec3{g.ToWorld(start, z)}, PlanStats{GoalReached: true, Waypoints: 1}
	}

	s := &banditSearch{
		grid:      g,
		h:         newHeuristics(g, start, goal, params),
		p:         params,
		start:     start,
		goal:      goal,
		gCost:     map[gridcache.Coord]float64{start: 0},
		parent:    map[gridcache.Coord]gridcache.Coord{},
		closed:    map[gridcache.Coord]bool{},
		arms:      newBandit(params.UCBExploration, params.AnchorPeriod),
		neighbors: neighborOffsets(params.Neighbors8),
	}

	goalNode, found := s.run()
	if !found && s.expansions >= params.MaxExpansions {
		p.log.Debugw("expansion budget exhausted, returning best partial path",
			"error", ErrExpansionBudgetExhausted, "drone", d.ID, "budget", params.MaxExpansions)
	}
	path := s.reconstruct(goalNode, found, z)

	st := PlanStats{
		Expansions:  s.expansions,
		GoalReached: found,
		Waypoints:   len(path),
		Pulls:       s.arms.pulls,
		RewardSum:   s.arms.rewardSum,
	}
	return path, st
}

// banditSearch is the per-plan search state, discarded as soon as planOne
// returns.
type banditSearch struct {
	grid  *gridcache.Grid
	h     *heuristics
	p     Params
	start gridcache.Coord
	goal  gridcache.Coord

	gCost  map[gridcache.Coord]float64
	parent map[gridcache.Coord]gridcache.Coord
	closed map[gridcache.Coord]bool
	open   [4]pqueue
	seq    int

	arms       *bandit
	neighbors  []offset
	expansions int
}

// fQueue recomputes the current f-value of n for queue k from the live
// g-score map; this is the single source of truth both for pushes and for
// the lazy staleness check on pop.
func (s *banditSearch) fQueue(k int, n gridcache.Coord) float64 {
	switch k {
	case 0:
		return s.h.fAnchor(n, s.gCost)
	case 1:
		return s.h.fClear(n, s.gCost)
	case 2:
		return s.h.fLandmark(n, s.gCost)
	default:
		return s.h.fBearing(n, s.gCost)
	}
}

// pushAll enqueues n onto all four open sets with freshly computed keys.
// The shared seq counter keeps pops FIFO on equal keys across repushes.
func (s *banditSearch) pushAll(n gridcache.Coord) {
	for k := 0; k < 4; k++ {
		s.seq++
		s.open[k].push(pqEntry{key: s.fQueue(k, n), seq: s.seq, coord: n})
	}
}

// popValid pops queue k until it yields an entry that is neither closed nor
// stale. An entry is stale when the node's current f exceeds the key it was
// pushed with. An older entry left behind by a cheaper repush has a key at
// or above the current f; it is discarded by the closed check once the
// cheaper entry has been expanded.
func (s *banditSearch) popValid(k int) (gridcache.Coord, bool) {
	for s.open[k].Len() > 0 {
		entry := s.open[k].pop()
		if s.closed[entry.coord] {
			continue
		}
		if s.fQueue(k, entry.coord) > entry.key+1e-12 {
			continue
		}
		return entry.coord, true
	}
	return gridcache.Coord{}, false
}

// edgeTime is the traversal time of the edge u->v: geometric length divided
// by the clearance-modulated speed. With edge_samples <= 2 the speed comes
// from the worse of the two endpoint clearances; with more samples the edge
// is walked in cell space and the minimum clearance along it governs,
// out-of-bounds samples counting as zero clearance.
func (s *banditSearch) edgeTime(u, v gridcache.Coord, diagonal bool) float64 {
	length := s.grid.Cell
	if diagonal {
		length = math.Sqrt2 * s.grid.Cell
	}

	var minClr float64
	if s.p.EdgeSamples <= 2 {
		minClr = math.Min(s.grid.ClearanceAt(u), s.grid.ClearanceAt(v))
	} else {
		minClr = math.Inf(1)
		for k := 0; k < s.p.EdgeSamples; k++ {
			t := float64(k) / float64(s.p.EdgeSamples-1)
			sx := int(math.Round(float64(u.X) + t*float64(v.X-u.X)))
			sy := int(math.Round(float64(u.Y) + t*float64(v.Y-u.Y)))
			if sx < 0 || sy < 0 || sx >= s.grid.W || sy >= s.grid.H {
				minClr = 0
				break
			}
			minClr = math.Min(minClr, s.grid.ClearanceAt(gridcache.Coord{X: sx, Y: sy}))
		}
	}

	vEff := gridcache.SpeedFromClearance(minClr, s.p.VMin, s.p.VMax, s.p.ClrKappaM)
	return length / math.Max(1e-6, vEff)
}

// run executes the bandit-scheduled expansion loop until the goal is
// accepted, the expansion budget is spent, or every open set drains.
func (s *banditSearch) run() (gridcache.Coord, bool) {
	s.pushAll(s.start)

	lastProgress := s.h.hEuclidTime(s.start, s.goal)
	acceptBound := s.p.AcceptSuboptimalW * lastProgress
	var goalNode gridcache.Coord
	found := false

	for s.expansions < s.p.MaxExpansions {
		s.expansions++

		var empty [4]bool
		exhausted := true
		for k := 0; k < 4; k++ {
			empty[k] = s.open[k].Len() == 0
			exhausted = exhausted && empty[k]
		}
		if exhausted {
			break
		}

		k := s.arms.selectQueue(empty, s.expansions)
		u, ok := s.popValid(k)
		if !ok {
			// This queue held only stale or closed entries; reselect.
			continue
		}

		if u == s.goal {
			goalNode, found = u, true
			if k == 0 {
				break
			}
			// An inadmissible queue reached the goal: accept only if the
			// cost is within the suboptimality bound, otherwise keep
			// searching for a better route.
			if s.gCost[u] <= acceptBound {
				break
			}
		}

		s.closed[u] = true

		for _, off := range s.neighbors {
			v := gridcache.Coord{X: u.X + off.dx, Y: u.Y + off.dy}
			if s.grid.IsBlocked(v) {
				continue
			}
			cand := s.gCost[u] + s.edgeTime(u, v, off.dx != 0 && off.dy != 0)
			if cand+1e-12 < gGet(s.gCost, v) {
				s.gCost[v] = cand
				s.parent[v] = u
				s.pushAll(v)
			}
		}

		// Progress reward: how much this expansion reduced the best
		// admissible distance-to-goal seen so far. A single shared
		// last-progress value attributes progress to whichever arm popped,
		// not the arm that enqueued the improving parent.
		cur := s.h.hEuclidTime(u, s.goal)
		s.arms.recordPull(k, math.Max(0, lastProgress-cur))
		lastProgress = cur
	}

	return goalNode, found
}

// reconstruct walks the parent tree from goalNode back to the start and
// maps the cell chain to world waypoints at altitude z. If the goal was
// never accepted but the search did reach its cell, reconstruct from there
// anyway; with no parent record at all the plan degrades to the bare goal
// cell for the engine to drift toward until the next replan.
func (s *banditSearch) reconstruct(goalNode gridcache.Coord, found bool, z float64) []dronesim.Vec3 {
	g := s.grid
	if !found {
		if _, ok := s.parent[s.goal]; !ok && s.goal != s.start {
			return []dronesim.Vec3{g.ToWorld(s.goal, z)}
		}
		goalNode = s.goal
	}

	if _, ok := s.parent[goalNode]; !ok && goalNode != s.start {
		return []dronesim.Vec3{g.ToWorld(s.start, z), g.ToWorld(goalNode, z)}
	}

	var chain []gridcache.Coord
	cur := goalNode
	for cur != s.start {
		chain = append(chain, cur)
		next, ok := s.parent[cur]
		if !ok {
			next = s.start
		}
		cur = next
		if cur == s.start {
			chain = append(chain, s.start)
			break
		}
	}

	path := make([]dronesim.Vec3, len(chain))
	for i, c := range chain {
		path[len(chain)-1-i] = g.ToWorld(c, z)
	}
	return path
}
