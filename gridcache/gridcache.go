// Package gridcache rasterizes a dronesim.World into a blocked/free grid
// plus a clearance field (distance in meters to the nearest blocked cell).
// A second, clearance-free rasterization used by the plain grid A* planner
// lives alongside it.
package gridcache

import (
	"math"

	"github.com/pkg/errors"

	"github.com/aerofleet/dronesim"
	"github.com/aerofleet/dronesim/logging"
)

// Coord is a grid cell index, (column, row).
type Coord struct {
	X, Y int
}

// maxRasterCells and maxObstacles gate the fallback coarsening path: above
// either threshold, BuildSized retries at a coarser cell size, exactly if
// the obstacle count allows, otherwise with the cheap center-only
// rasterization instead of the full inflated-AABB sweep.
const (
	maxRasterCells = 300_000
	maxObstacles   = 5000
	fallbackFloor  = 24.0
)

// ErrGridTooLarge is returned by BuildSized when even the coarsened
// fallback grid would still exceed maxRasterCells; callers surface this as
// the GridTooLarge planning error.
var ErrGridTooLarge = errors.New("gridcache: world too large to rasterize")

// Grid is a rasterized world: a blocked mask and, when built With
// clearance, a per-cell distance-to-nearest-obstacle field.
type Grid struct {
	Cell       float64
	W, H       int
	Blocked    []bool
	ClearanceM []float64 // nil for clearance-free grids (plain A*)
}

// Build rasterizes world at cellSize, inflating every obstacle footprint by
// clearanceInflateM on each side, and computes the two-pass Chamfer
// clearance field. It never returns an error on its own; BuildSized is the
// entry point that applies the size-based fallback policy.
func Build(world *dronesim.World, cellSize, clearanceInflateM float64) *Grid {
	w, h := gridDims(world, cellSize)
	blocked := rasterize(world, cellSize, clearanceInflateM, w, h)
	return &Grid{
		Cell:       cellSize,
		W:          w,
		H:          h,
		Blocked:    blocked,
		ClearanceM: chamferClearance(blocked, w, h, cellSize),
	}
}

// BuildPlain rasterizes world with the same inflated-AABB sweep as Build but
// skips the clearance transform, for the plain grid A* planner which only
// ever consults the blocked mask.
func BuildPlain(world *dronesim.World, cellSize, clearanceInflateM float64) *Grid {
	w, h := gridDims(world, cellSize)
	return &Grid{
		Cell:    cellSize,
		W:       w,
		H:       h,
		Blocked: rasterize(world, cellSize, clearanceInflateM, w, h),
	}
}

// rasterize marks every cell whose axis-aligned square overlaps an
// obstacle footprint inflated by clearanceInflateM on each side.
func rasterize(world *dronesim.World, cellSize, clearanceInflateM float64, w, h int) []bool {
	blocked := make([]bool, w*h)
	for _, b := range world.Obstacles {
		cx, cy := b.Center.X, b.Center.Y
		bw := b.Size.X + 2*clearanceInflateM
		bd := b.Size.Y + 2*clearanceInflateM
		xmin := clampInt(int(math.Floor((cx-bw*0.5)/cellSize)), 0, w-1)
		xmax := clampInt(int(math.Floor((cx+bw*0.5)/cellSize)), 0, w-1)
		ymin := clampInt(int(math.Floor((cy-bd*0.5)/cellSize)), 0, h-1)
		ymax := clampInt(int(math.Floor((cy+bd*0.5)/cellSize)), 0, h-1)
		for gx := xmin; gx <= xmax; gx++ {
			for gy := ymin; gy <= ymax; gy++ {
				if rectOverlapsCell(cx, cy, bw, bd, gx, gy, cellSize) {
					blocked[gy*w+gx] = true
				}
			}
		}
	}
	return blocked
}

// buildFallback is the coarse, center-only rasterization used when a
// precise Build would be too expensive; clearance degrades to a constant
// 2*cellSize everywhere.
func buildFallback(world *dronesim.World, cellSize float64) *Grid {
	w, h := gridDims(world, cellSize)
	n := w * h
	blocked := make([]bool, n)
	for _, b := range world.Obstacles {
		gx := clampInt(int(b.Center.X/cellSize), 0, w-1)
		gy := clampInt(int(b.Center.Y/cellSize), 0, h-1)
		blocked[gy*w+gx] = true
	}
	clearance := make([]float64, n)
	for i := range clearance {
		clearance[i] = cellSize * 2.0
	}
	return &Grid{Cell: cellSize, W: w, H: h, Blocked: blocked, ClearanceM: clearance}
}

// BuildSized applies the rebuild policy shared by every clearance-aware
// planner: rasterize at requestedCell; if the grid would exceed
// maxRasterCells or the world carries more than maxObstacles obstacles,
// retry at max(requestedCell, fallbackFloor): an exact build when the
// obstacle count allows, the cheap center-only rasterization otherwise. If
// even the coarsened grid would overflow, ErrGridTooLarge is returned
// (mapped to the GridTooLarge planning error).
func BuildSized(world *dronesim.World, requestedCell, clearanceInflateM float64, log logging.Logger) (*Grid, error) {
	w, h := gridDims(world, requestedCell)
	if w*h <= maxRasterCells && len(world.Obstacles) <= maxObstacles {
		return Build(world, requestedCell, clearanceInflateM), nil
	}

	coarse := math.Max(requestedCell, fallbackFloor)
	cw, ch := gridDims(world, coarse)
	if cw*ch > maxRasterCells {
		return nil, errors.Wrapf(ErrGridTooLarge, "world %gx%g at cell %g still yields %d cells", world.SizeX, world.SizeY, coarse, cw*ch)
	}
	if log != nil {
		log.Warnw("grid exceeds size threshold, coarsening",
			"requestedCell", requestedCell, "coarseCell", coarse, "obstacles", len(world.Obstacles))
	}
	if len(world.Obstacles) <= maxObstacles {
		return Build(world, coarse, clearanceInflateM), nil
	}
	return buildFallback(world, coarse), nil
}

// BuildPlainSized is BuildSized for the clearance-free variant: the same
// coarsening thresholds, with the center-only fallback losing only the
// inflated sweep (there is no clearance field to degrade).
func BuildPlainSized(world *dronesim.World, requestedCell, clearanceInflateM float64, log logging.Logger) (*Grid, error) {
	w, h := gridDims(world, requestedCell)
	if w*h <= maxRasterCells && len(world.Obstacles) <= maxObstacles {
		return BuildPlain(world, requestedCell, clearanceInflateM), nil
	}

	coarse := math.Max(requestedCell, fallbackFloor)
	cw, ch := gridDims(world, coarse)
	if cw*ch > maxRasterCells {
		return nil, errors.Wrapf(ErrGridTooLarge, "world %gx%g at cell %g still yields %d cells", world.SizeX, world.SizeY, coarse, cw*ch)
	}
	if log != nil {
		log.Warnw("grid exceeds size threshold, coarsening",
			"requestedCell", requestedCell, "coarseCell", coarse, "obstacles", len(world.Obstacles))
	}
	if len(world.Obstacles) <= maxObstacles {
		return BuildPlain(world, coarse, clearanceInflateM), nil
	}
	g := buildFallback(world, coarse)
	g.ClearanceM = nil
	return g, nil
}

func gridDims(world *dronesim.World, cellSize float64) (int, int) {
	cellSize = math.Max(cellSize, 1.0)
	w := int(world.SizeX / cellSize)
	h := int(world.SizeY / cellSize)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}

func rectOverlapsCell(cx, cy, w, d float64, cellX, cellY int, cellSize float64) bool {
	rx0, rx1 := cx-w*0.5, cx+w*0.5
	ry0, ry1 := cy-d*0.5, cy+d*0.5
	cx0, cx1 := float64(cellX)*cellSize, float64(cellX+1)*cellSize
	cy0, cy1 := float64(cellY)*cellSize, float64(cellY+1)*cellSize
	return !(rx1 <= cx0 || rx0 >= cx1 || ry1 <= cy0 || ry0 >= cy1)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// chamferClearance runs the forward/backward two-pass L1 distance
// transform, in cells, then scales to meters.
func chamferClearance(blocked []bool, w, h int, cellSize float64) []float64 {
	const inf = 1 << 29
	dist := make([]int, w*h)
	for i, b := range blocked {
		if b {
			dist[i] = 0
		} else {
			dist[i] = inf
		}
	}

	for y := 0; y < h; y++ {
		row := y * w
		for x := 0; x < w; x++ {
			i := row + x
			if dist[i] == 0 {
				continue
			}
			best := dist[i]
			if x > 0 && dist[i-1]+1 < best {
				best = dist[i-1] + 1
			}
			if y > 0 && dist[i-w]+1 < best {
				best = dist[i-w] + 1
			}
			dist[i] = best
		}
	}

	for y := h - 1; y >= 0; y-- {
		row := y * w
		for x := w - 1; x >= 0; x-- {
			i := row + x
			if dist[i] == 0 {
				continue
			}
			best := dist[i]
			if x+1 < w && dist[i+1]+1 < best {
				best = dist[i+1] + 1
			}
			if y+1 < h && dist[i+w]+1 < best {
				best = dist[i+w] + 1
			}
			dist[i] = best
		}
	}

	clearance := make([]float64, len(dist))
	for i, d := range dist {
		clearance[i] = float64(d) * cellSize
	}
	return clearance
}

// Idx maps a coordinate to its flat index into Blocked/ClearanceM.
func (g *Grid) Idx(c Coord) int {
	return c.Y*g.W + c.X
}

// IsBlocked reports whether c is out of bounds or marked blocked.
func (g *Grid) IsBlocked(c Coord) bool {
	if c.X < 0 || c.Y < 0 || c.X >= g.W || c.Y >= g.H {
		return true
	}
	return g.Blocked[g.Idx(c)]
}

// ClearanceAt returns the clearance in meters at c, or 0 if c is
// out-of-bounds or this grid carries no clearance field.
func (g *Grid) ClearanceAt(c Coord) float64 {
	if g.ClearanceM == nil || c.X < 0 || c.Y < 0 || c.X >= g.W || c.Y >= g.H {
		return 0
	}
	return g.ClearanceM[g.Idx(c)]
}

// ToWorld maps a cell to the world-space position of its center, at
// altitude z.
func (g *Grid) ToWorld(c Coord, z float64) dronesim.Vec3 {
	return dronesim.Vec3{
		X: (float64(c.X) + 0.5) * g.Cell,
		Y: (float64(c.Y) + 0.5) * g.Cell,
		Z: z,
	}
}

// FromWorld maps a world-space (x,y) to its containing cell, clamped to
// grid bounds.
func (g *Grid) FromWorld(x, y float64) Coord {
	return Coord{
		X: clampInt(int(x/g.Cell), 0, g.W-1),
		Y: clampInt(int(y/g.Cell), 0, g.H-1),
	}
}

// NearestFree returns the nearest unblocked cell to c0, searching outward
// ring by ring (Chebyshev radius 1..49), scanning each ring's top/bottom
// rows across the full width and then its left/right columns across the
// interior. If no free cell is found within that radius, c0 is returned
// unchanged.
func (g *Grid) NearestFree(c0 Coord) Coord {
	if !g.IsBlocked(c0) {
		return c0
	}
	for r := 1; r < 50; r++ {
		for dx := -r; dx <= r; dx++ {
			for _, dy := range [2]int{-r, r} {
				c := Coord{c0.X + dx, c0.Y + dy}
				if !g.IsBlocked(c) {
					return c
				}
			}
		}
		for dy := -r + 1; dy <= r-1; dy++ {
			for _, dx := range [2]int{-r, r} {
				c := Coord{c0.X + dx, c0.Y + dy}
				if !g.IsBlocked(c) {
					return c
				}
			}
		}
	}
	return c0
}

// SpeedFromClearance is the clearance-modulated kinematic speed model
// shared by the clearance-aware heuristics and edge-cost evaluation:
// v = v_min + (v_max - v_min) * clr/(clr+kappa), monotone increasing in
// clearance and clamped to [v_min, v_max].
func SpeedFromClearance(clearanceM, vMin, vMax, kappaM float64) float64 {
	if kappaM <= 0 {
		return vMax
	}
	frac := clearanceM / (clearanceM + kappaM)
	v := vMin + (vMax-vMin)*frac
	if v < vMin {
		return vMin
	}
	if v > vMax {
		return vMax
	}
	return v
}
