package planning

import (
	"math"

	"github.com/aerofleet/dronesim/gridcache"
)

// heuristics bundles the per-search constants (grid, speed bounds, ALT
// landmarks) that every h_* / f_* function needs, so queue push/pop call
// sites stay readable. It is rebuilt once per plan invocation, never
// shared across plans.
type heuristics struct {
	grid *gridcache.Grid

	vMax, vMin, clrKappaM float64
	wClear, wLandmark     float64
	wBearing, bearingGam  float64

	landmarks []gridcache.Coord
	goalLmD   []float64

	start, goal gridcache.Coord
}

func newHeuristics(grid *gridcache.Grid, start, goal gridcache.Coord, p Params) *heuristics {
	landmarks := []gridcache.Coord{
		{X: 0, Y: 0},
		{X: grid.W - 1, Y: 0},
		{X: 0, Y: grid.H - 1},
		{X: grid.W - 1, Y: grid.H - 1},
	}
	goalLmD := make([]float64, len(landmarks))
	for i, lm := range landmarks {
		goalLmD[i] = cellDist(lm, goal) * grid.Cell
	}
	return &heuristics{
		grid:         grid,
		vMax:         p.VMax,
		vMin:         p.VMin,
		clrKappaM:    p.ClrKappaM,
		wClear:       p.WClear,
		wLandmark:    p.WLandmark,
		wBearing:     p.WBearing,
		bearingGam:   p.BearingGamma,
		landmarks:    landmarks,
		goalLmD:      goalLmD,
		start:        start,
		goal:         goal,
	}
}

func cellDist(a, b gridcache.Coord) float64 {
	return math.Hypot(float64(a.X-b.X), float64(a.Y-b.Y))
}

// hEuclidTime is the admissible anchor heuristic: straight-line distance
// divided by the fleet's top speed.
func (h *heuristics) hEuclidTime(n, t gridcache.Coord) float64 {
	return (cellDist(n, t) * h.grid.Cell) / math.Max(1e-6, h.vMax)
}

// hClearTime estimates travel time using the locally achievable speed at n
// rather than v_max; inadmissible whenever local clearance caps speed below
// v_max, which is exactly the hint this queue exists to provide.
func (h *heuristics) hClearTime(n, t gridcache.Coord) float64 {
	clr := h.grid.ClearanceAt(n)
	vEst := gridcache.SpeedFromClearance(clr, h.vMin, h.vMax, h.clrKappaM)
	return (cellDist(n, t) * h.grid.Cell) / math.Max(1e-6, vEst)
}

// hLandmarkTime is the ALT (A*, Landmarks, Triangle inequality) lower
// bound: for each landmark L, |d(n,L) - d(T,L)| is a valid lower bound on
// d(n,T); taking the max over landmarks tightens it. Still only a
// heuristic hint here (not used as the admissible anchor) because the
// anchor queue must stay strictly consistent under the grid's edge costs.
func (h *heuristics) hLandmarkTime(n gridcache.Coord) float64 {
	best := 0.0
	for i, lm := range h.landmarks {
		dn := cellDist(n, lm) * h.grid.Cell
		dt := h.goalLmD[i]
		if diff := math.Abs(dn - dt); diff > best {
			best = diff
		}
	}
	return best / math.Max(1e-6, h.vMax)
}

// bearingAlignment is the cosine similarity between the start->goal
// direction and the node->goal direction, in [-1, 1]. Left unclamped to
// [0, 1] deliberately: a node past the goal (its node->goal direction runs
// back against the start->goal bearing) scores negative and its
// bearing-biased f-value is inflated above the plain anchor estimate,
// pushing the bandit away from overshooting nodes rather than merely being
// indifferent to them.
func bearingAlignment(s, t, n gridcache.Coord) float64 {
	g1x, g1y := float64(t.X-s.X), float64(t.Y-s.Y)
	g2x, g2y := float64(t.X-n.X), float64(t.Y-n.Y)
	norm1 := math.Hypot(g1x, g1y) + 1e-9
	norm2 := math.Hypot(g2x, g2y) + 1e-9
	cos := (g1x*g2x + g1y*g2y) / (norm1 * norm2)
	return math.Max(-1.0, math.Min(1.0, cos))
}

// hBearingTime discounts the anchor estimate by up to gamma when n is well
// aligned with the start->goal bearing, and inflates it when n runs
// counter to that bearing.
func (h *heuristics) hBearingTime(n gridcache.Coord) float64 {
	ht := h.hEuclidTime(n, h.goal)
	align := bearingAlignment(h.start, h.goal, n)
	return math.Max(0.0, ht*(1.0-h.bearingGam*align))
}

func (h *heuristics) fAnchor(n gridcache.Coord, gCost map[gridcache.Coord]float64) float64 {
	return gGet(gCost, n) + h.hEuclidTime(n, h.goal)
}

func (h *heuristics) fClear(n gridcache.Coord, gCost map[gridcache.Coord]float64) float64 {
	return gGet(gCost, n) + h.wClear*h.hClearTime(n, h.goal)
}

func (h *heuristics) fLandmark(n gridcache.Coord, gCost map[gridcache.Coord]float64) float64 {
	return gGet(gCost, n) + h.wLandmark*h.hLandmarkTime(n)
}

func (h *heuristics) fBearing(n gridcache.Coord, gCost map[gridcache.Coord]float64) float64 {
	return gGet(gCost, n) + h.wBearing*h.hBearingTime(n)
}

func gGet(m map[gridcache.Coord]float64, c gridcache.Coord) float64 {
	if v, ok := m[c]; ok {
		return v
	}
	return math.Inf(1)
}
