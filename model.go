// Package dronesim defines the shared world/drone data model used by every
// subpackage: gridcache rasterizes a World, planning mutates a Drone's
// Path, engine advances Drone positions tick by tick, and worldfile decodes
// both from JSON. Keeping these types at the module root (rather than,
// say, under worldfile) avoids gridcache and planning depending on a
// package whose only reason to exist would be to hold type declarations.
package dronesim

import "github.com/golang/geo/r3"

// Vec3 is a point or vector in world space, meters. Aliasing r3.Vector
// keeps its Add/Sub/Mul/Norm/Dot arithmetic available everywhere without a
// wrapper type.
type Vec3 = r3.Vector

// Building is an axis-aligned obstacle: a box of full-width Size centered
// at Center. Only the X/Y footprint participates in planning; Z is carried
// for completeness and for future 3-D clearance work.
type Building struct {
	ID     string
	Center Vec3
	Size   Vec3
}

// World is the static environment a plan is computed against. It occupies
// [0,SizeX] x [0,SizeY] x [0,Ceiling] with origin at (0,0,0). A World is
// immutable once handed to a planner; replacing it is done by swapping the
// pointer, never by mutating fields in place.
type World struct {
	SizeX, SizeY, Ceiling float64
	Obstacles             []Building
}

// Footprint reports the world's 2-D extent, the only part GridCache
// rasterizes against.
func (w *World) Footprint() (width, height float64) {
	return w.SizeX, w.SizeY
}

// Drone is a single fleet member. Path is owned by the active planner: the
// engine only pops its head as the drone reaches a waypoint. Target is nil
// when the drone has no destination (and thus nothing to plan toward).
type Drone struct {
	ID     string
	Pos    Vec3
	Vel    Vec3
	Path   []Vec3
	Target *Vec3
}

// AtTarget reports whether the drone currently has an empty path and a
// target, i.e. its most recent plan delivered it and nothing new has been
// requested since.
func (d *Drone) AtTarget() bool {
	return d.Target != nil && len(d.Path) == 0
}

// RawParams is the loosely typed parameter bag a client supplies via
// set_params; each planner decodes the subset it understands with its own
// defaulted struct (see planning.DecodeParams).
type RawParams map[string]interface{}
