package planning

import (
	"context"
	"math"
	"testing"

	"go.viam.com/test"

	"github.com/aerofleet/dronesim"
	"github.com/aerofleet/dronesim/gridcache"
	"github.com/aerofleet/dronesim/logging"
)

// scenarioParams pins the search to uniform speed (v_min == v_max, kappa 0)
// on a 10m grid with no inflation, so expected path costs can be computed
// by hand.
func scenarioParams() dronesim.RawParams {
	return dronesim.RawParams{
		"grid_cell_m":    10.0,
		"clearance_m":    0.0,
		"v_max":          10.0,
		"v_min":          10.0,
		"clr_kappa_m":    0.0,
		"neighbors8":     false,
		"max_expansions": 1000,
		"anchor_period":  6,
	}
}

func emptyWorld() *dronesim.World {
	return &dronesim.World{SizeX: 100, SizeY: 100, Ceiling: 50}
}

// wallWorld has a wall across most of y=50, leaving gaps at both x ends.
func wallWorld() *dronesim.World {
	return &dronesim.World{
		SizeX: 100, SizeY: 100, Ceiling: 50,
		Obstacles: []dronesim.Building{
			{ID: "wall", Center: dronesim.Vec3{X: 50, Y: 50, Z: 10}, Size: dronesim.Vec3{X: 80, Y: 10, Z: 20}},
		},
	}
}

func vecPtr(v dronesim.Vec3) *dronesim.Vec3 { return &v }

func assertPathContiguousAndFree(t *testing.T, g *gridcache.Grid, path []dronesim.Vec3, diagonal bool) {
	t.Helper()
	maxStep := 1
	for i, wp := range path {
		c := g.FromWorld(wp.X, wp.Y)
		test.That(t, g.IsBlocked(c), test.ShouldBeFalse)
		if i == 0 {
			continue
		}
		prev := g.FromWorld(path[i-1].X, path[i-1].Y)
		dx, dy := c.X-prev.X, c.Y-prev.Y
		if dx < 0 {
			dx = -dx
		}
		if dy < 0 {
			dy = -dy
		}
		test.That(t, dx, test.ShouldBeLessThanOrEqualTo, maxStep)
		test.That(t, dy, test.ShouldBeLessThanOrEqualTo, maxStep)
		if !diagonal {
			test.That(t, dx+dy, test.ShouldBeLessThanOrEqualTo, 1)
		}
	}
}

func TestBanditEmptyWorld(t *testing.T) {
	p := NewBanditMHAPlanner(logging.NewTestLogger(t))
	d := &dronesim.Drone{ID: "d1", Pos: dronesim.Vec3{X: 5, Y: 5}, Target: vecPtr(dronesim.Vec3{X: 95, Y: 95})}

	p.PlanPaths(context.Background(), emptyWorld(), []*dronesim.Drone{d}, scenarioParams(), 0)

	// 4-connected on a 10x10 grid: 18 unit moves from (0,0) to (9,9),
	// 19 cells including the start.
	test.That(t, len(d.Path), test.ShouldEqual, 19)
	g := p.grid
	test.That(t, g.FromWorld(d.Path[0].X, d.Path[0].Y), test.ShouldResemble, gridcache.Coord{X: 0, Y: 0})
	last := d.Path[len(d.Path)-1]
	test.That(t, g.FromWorld(last.X, last.Y), test.ShouldResemble, gridcache.Coord{X: 9, Y: 9})
	for _, wp := range d.Path {
		test.That(t, wp.X, test.ShouldBeBetween, 0.0, 100.0)
		test.That(t, wp.Y, test.ShouldBeBetween, 0.0, 100.0)
	}
	assertPathContiguousAndFree(t, g, d.Path, false)
}

func TestBanditWallDetour(t *testing.T) {
	p := NewBanditMHAPlanner(logging.NewTestLogger(t))
	d := &dronesim.Drone{ID: "d1", Pos: dronesim.Vec3{X: 10, Y: 10}, Target: vecPtr(dronesim.Vec3{X: 10, Y: 90})}

	p.PlanPaths(context.Background(), wallWorld(), []*dronesim.Drone{d}, scenarioParams(), 0)

	test.That(t, len(d.Path), test.ShouldBeGreaterThan, 0)
	assertPathContiguousAndFree(t, p.grid, d.Path, false)
	// A straight run up x=10 is 9 cells (8 moves); the detour around the
	// wall must be strictly longer.
	test.That(t, len(d.Path), test.ShouldBeGreaterThan, 9)
}

func TestBanditSnapsBlockedGoalToFreeCell(t *testing.T) {
	p := NewBanditMHAPlanner(logging.NewTestLogger(t))
	// Target dead center of the wall.
	d := &dronesim.Drone{ID: "d1", Pos: dronesim.Vec3{X: 10, Y: 10}, Target: vecPtr(dronesim.Vec3{X: 50, Y: 50})}

	p.PlanPaths(context.Background(), wallWorld(), []*dronesim.Drone{d}, scenarioParams(), 0)

	test.That(t, len(d.Path), test.ShouldBeGreaterThan, 0)
	last := d.Path[len(d.Path)-1]
	test.That(t, p.grid.IsBlocked(p.grid.FromWorld(last.X, last.Y)), test.ShouldBeFalse)
}

func TestBanditReplanCadence(t *testing.T) {
	ctx := context.Background()
	p := NewBanditMHAPlanner(logging.NewTestLogger(t))
	world := emptyWorld()
	d := &dronesim.Drone{ID: "d1", Pos: dronesim.Vec3{X: 5, Y: 5}, Target: vecPtr(dronesim.Vec3{X: 95, Y: 95})}
	drones := []*dronesim.Drone{d}
	params := scenarioParams()

	p.PlanPaths(ctx, world, drones, params, 0)
	test.That(t, p.tracker.lastTick["d1"], test.ShouldEqual, 0)

	// Unchanged goal, non-empty path, under the 20-tick cadence: no replan.
	p.PlanPaths(ctx, world, drones, params, 10)
	test.That(t, p.tracker.lastTick["d1"], test.ShouldEqual, 0)

	// Cadence reached.
	p.PlanPaths(ctx, world, drones, params, 20)
	test.That(t, p.tracker.lastTick["d1"], test.ShouldEqual, 20)

	// Goal change replans immediately.
	d.Target = vecPtr(dronesim.Vec3{X: 15, Y: 95})
	p.PlanPaths(ctx, world, drones, params, 21)
	test.That(t, p.tracker.lastTick["d1"], test.ShouldEqual, 21)

	// So does an emptied path.
	d.Path = nil
	p.PlanPaths(ctx, world, drones, params, 22)
	test.That(t, p.tracker.lastTick["d1"], test.ShouldEqual, 22)
}

func TestBanditDegradedLargeWorld(t *testing.T) {
	p := NewBanditMHAPlanner(logging.NewTestLogger(t))
	world := &dronesim.World{SizeX: 2000, SizeY: 2000, Ceiling: 100}
	params := scenarioParams()
	params["grid_cell_m"] = 1.0 // 4M cells requested
	// Enough budget to exhaust the coarsened 83x83 grid.
	params["max_expansions"] = 20000

	d := &dronesim.Drone{ID: "d1", Pos: dronesim.Vec3{X: 5, Y: 5}, Target: vecPtr(dronesim.Vec3{X: 1900, Y: 1900})}
	p.PlanPaths(context.Background(), world, []*dronesim.Drone{d}, params, 0)

	test.That(t, p.grid.Cell, test.ShouldEqual, 24.0)
	test.That(t, len(d.Path), test.ShouldBeGreaterThan, 0)
	last := d.Path[len(d.Path)-1]
	test.That(t, p.grid.FromWorld(last.X, last.Y), test.ShouldResemble, p.grid.FromWorld(1900, 1900))
}

func TestBanditDeterministicPaths(t *testing.T) {
	ctx := context.Background()
	world := wallWorld()
	params := scenarioParams()
	params["neighbors8"] = true

	plan := func() []dronesim.Vec3 {
		p := NewBanditMHAPlanner(logging.NewTestLogger(t))
		d := &dronesim.Drone{ID: "d1", Pos: dronesim.Vec3{X: 10, Y: 10}, Target: vecPtr(dronesim.Vec3{X: 90, Y: 90})}
		p.PlanPaths(ctx, world, []*dronesim.Drone{d}, params, 0)
		return d.Path
	}

	test.That(t, plan(), test.ShouldResemble, plan())
}

func TestBanditStartEqualsGoalSingleWaypoint(t *testing.T) {
	p := NewBanditMHAPlanner(logging.NewTestLogger(t))
	d := &dronesim.Drone{ID: "d1", Pos: dronesim.Vec3{X: 5, Y: 5}, Target: vecPtr(dronesim.Vec3{X: 7, Y: 7})}

	p.PlanPaths(context.Background(), emptyWorld(), []*dronesim.Drone{d}, scenarioParams(), 0)

	test.That(t, len(d.Path), test.ShouldEqual, 1)
}

func TestBanditWorldSwapRebuildsGrid(t *testing.T) {
	ctx := context.Background()
	p := NewBanditMHAPlanner(logging.NewTestLogger(t))
	d := &dronesim.Drone{ID: "d1", Pos: dronesim.Vec3{X: 5, Y: 5}, Target: vecPtr(dronesim.Vec3{X: 95, Y: 95})}

	p.PlanPaths(ctx, emptyWorld(), []*dronesim.Drone{d}, scenarioParams(), 0)
	first := p.grid
	test.That(t, first, test.ShouldNotBeNil)

	// Same pointer: grid reused.
	w := emptyWorld()
	p.PlanPaths(ctx, w, []*dronesim.Drone{d}, scenarioParams(), 20)
	second := p.grid
	p.PlanPaths(ctx, w, []*dronesim.Drone{d}, scenarioParams(), 40)
	test.That(t, p.grid == second, test.ShouldBeTrue)

	// Swapped pointer: rebuilt.
	p.PlanPaths(ctx, wallWorld(), []*dronesim.Drone{d}, scenarioParams(), 60)
	test.That(t, p.grid == second, test.ShouldBeFalse)
	test.That(t, p.grid.IsBlocked(p.grid.FromWorld(50, 50)), test.ShouldBeTrue)
}

// newTestSearch mirrors planOne's search construction so properties of the
// raw search (g-costs, acceptance bound) can be asserted directly.
func newTestSearch(world *dronesim.World, start, goal gridcache.Coord, params Params) *banditSearch {
	grid := gridcache.Build(world, params.GridCellM, params.ClearanceM)
	return &banditSearch{
		grid:      grid,
		h:         newHeuristics(grid, start, goal, params),
		p:         params,
		start:     start,
		goal:      goal,
		gCost:     map[gridcache.Coord]float64{start: 0},
		parent:    map[gridcache.Coord]gridcache.Coord{},
		closed:    map[gridcache.Coord]bool{},
		arms:      newBandit(params.UCBExploration, params.AnchorPeriod),
		neighbors: neighborOffsets(params.Neighbors8),
	}
}

func uniformSpeedParams() Params {
	p := DefaultBanditParams()
	p.GridCellM = 10
	p.ClearanceM = 0
	p.VMax, p.VMin, p.ClrKappaM = 10, 10, 0
	p.MaxExpansions = 1000
	return p
}

func TestSearchGoalCostFourConnected(t *testing.T) {
	s := newTestSearch(emptyWorld(), gridcache.Coord{X: 0, Y: 0}, gridcache.Coord{X: 9, Y: 9}, uniformSpeedParams())
	_, found := s.run()
	test.That(t, found, test.ShouldBeTrue)
	// 18 axial moves of 10m at 10m/s.
	test.That(t, s.gCost[s.goal], test.ShouldAlmostEqual, 18.0, 1e-9)
	// The anchor heuristic never overestimates the achieved cost.
	test.That(t, s.h.hEuclidTime(s.start, s.goal), test.ShouldBeLessThanOrEqualTo, s.gCost[s.goal])
}

func TestSearchSuboptimalityBoundEightConnected(t *testing.T) {
	params := uniformSpeedParams()
	params.Neighbors8 = true
	s := newTestSearch(emptyWorld(), gridcache.Coord{X: 0, Y: 0}, gridcache.Coord{X: 9, Y: 9}, params)
	_, found := s.run()
	test.That(t, found, test.ShouldBeTrue)
	// The pure diagonal run equals the straight-line estimate, so the
	// accepted cost must land within the w_subopt bound of it and can
	// never beat it.
	hStart := s.h.hEuclidTime(s.start, s.goal)
	test.That(t, hStart, test.ShouldAlmostEqual, math.Hypot(90, 90)/10, 1e-9)
	test.That(t, s.gCost[s.goal], test.ShouldBeGreaterThanOrEqualTo, hStart-1e-9)
	test.That(t, s.gCost[s.goal], test.ShouldBeLessThanOrEqualTo, params.AcceptSuboptimalW*hStart+1e-9)
}

func TestSearchPopSkipsClosedDuplicates(t *testing.T) {
	s := newTestSearch(emptyWorld(), gridcache.Coord{X: 0, Y: 0}, gridcache.Coord{X: 9, Y: 9}, uniformSpeedParams())
	n := gridcache.Coord{X: 3, Y: 3}
	s.gCost[n] = 5
	s.pushAll(n)
	s.gCost[n] = 3
	s.pushAll(n)

	// The fresher, cheaper entry comes out first.
	c, ok := s.popValid(0)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, c, test.ShouldResemble, n)

	// Once closed, the older duplicate is silently discarded.
	s.closed[n] = true
	_, ok = s.popValid(0)
	test.That(t, ok, test.ShouldBeFalse)
}

func TestSearchEdgeTimeSlowsInNarrowClearance(t *testing.T) {
	params := DefaultBanditParams()
	params.GridCellM = 10
	params.ClearanceM = 0
	params.VMax, params.VMin, params.ClrKappaM = 20, 4, 8
	s := newTestSearch(wallWorld(), gridcache.Coord{X: 0, Y: 0}, gridcache.Coord{X: 9, Y: 9}, params)

	// An edge hugging the wall must cost more time than one in the open.
	nearWall := s.edgeTime(gridcache.Coord{X: 1, Y: 3}, gridcache.Coord{X: 2, Y: 3}, false)
	open := s.edgeTime(gridcache.Coord{X: 1, Y: 9}, gridcache.Coord{X: 2, Y: 9}, false)
	test.That(t, nearWall, test.ShouldBeGreaterThan, open)

	// Diagonal edges are sqrt(2) longer, and this one also ends a row
	// closer to the wall (30m clearance against 40m), so it costs more.
	axial := s.edgeTime(gridcache.Coord{X: 1, Y: 9}, gridcache.Coord{X: 2, Y: 9}, false)
	diag := s.edgeTime(gridcache.Coord{X: 1, Y: 9}, gridcache.Coord{X: 2, Y: 8}, true)
	test.That(t, diag, test.ShouldBeGreaterThan, axial)
}

func TestTelemetryRecordsEveryPlan(t *testing.T) {
	p := NewBanditMHAPlanner(logging.NewTestLogger(t))
	d1 := &dronesim.Drone{ID: "d1", Pos: dronesim.Vec3{X: 5, Y: 5}, Target: vecPtr(dronesim.Vec3{X: 95, Y: 95})}
	d2 := &dronesim.Drone{ID: "d2", Pos: dronesim.Vec3{X: 95, Y: 5}, Target: vecPtr(dronesim.Vec3{X: 5, Y: 95})}

	p.PlanPaths(context.Background(), emptyWorld(), []*dronesim.Drone{d1, d2}, scenarioParams(), 0)

	sum := p.Telemetry().Summary()
	test.That(t, sum.Plans, test.ShouldEqual, 2)
	test.That(t, sum.GoalsReached, test.ShouldEqual, 2)
	test.That(t, sum.ExpansionsMean, test.ShouldBeGreaterThan, 0.0)
}
