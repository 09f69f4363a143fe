// Package planning implements the planning subsystem: GridCache-backed
// path search over a dronesim.World, in three variants registered under
// the names the engine's set_algorithm control message selects between.
package planning

import (
	"context"
	"sync"

	"github.com/aerofleet/dronesim"
	"github.com/aerofleet/dronesim/logging"
)

// Planner is the in-process planner API: PlanPaths mutates
// each drone's Path in place according to the replan policy the concrete
// implementation owns. A Planner instance owns its own GridCache and
// per-drone replan bookkeeping; swapping algorithms means constructing a
// new instance, not resetting an existing one.
type Planner interface {
	// PlanPaths mutates drones[i].Path for every drone whose replan
	// condition fires this tick. It never returns an error: planning-time
	// failures are recovered locally into a degraded plan.
	PlanPaths(ctx context.Context, world *dronesim.World, drones []*dronesim.Drone, params dronesim.RawParams, tick int)

	// Name is the registry name this instance was constructed under.
	Name() string
}

// Constructor builds a fresh Planner instance, e.g. for set_algorithm.
type Constructor func(log logging.Logger) Planner

// Registry maps algorithm names to constructors: a flat map from string
// name to constructor behind an RWMutex, so set_algorithm can build fresh
// planner instances by name.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

// NewRegistry returns an empty Registry; use Register to populate it.
func NewRegistry() *Registry {
	return &Registry{constructors: make(map[string]Constructor)}
}

// Register adds or replaces the constructor for name.
func (r *Registry) Register(name string, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[name] = ctor
}

// Algorithms returns the registered algorithm names for client discovery.
// Order is unspecified; callers that need a stable order should sort.
func (r *Registry) Algorithms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, name)
	}
	return names
}

// Build constructs a new Planner instance for name, or ErrUnknownAlgorithm
// if name was never registered.
func (r *Registry) Build(name string, log logging.Logger) (Planner, error) {
	r.mu.RLock()
	ctor, ok := r.constructors[name]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrUnknownAlgorithm
	}
	return ctor(log), nil
}

// Algorithm names accepted by DefaultRegistry.
const (
	AlgoStraightLine  = "straight_line"
	AlgoGridAStar     = "grid_astar"
	AlgoBanditMHAStar = "bandit_mha_star"
)

// DefaultRegistry returns a Registry pre-populated with all three shipped
// planners.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(AlgoStraightLine, func(log logging.Logger) Planner { return NewStraightLinePlanner(log) })
	r.Register(AlgoGridAStar, func(log logging.Logger) Planner { return NewGridAStarPlanner(log) })
	r.Register(AlgoBanditMHAStar, func(log logging.Logger) Planner { return NewBanditMHAPlanner(log) })
	return r
}
