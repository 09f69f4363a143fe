// Package engine drives the per-tick simulation loop around the planning
// subsystem: it owns the current world, fleet, and active planner, applies
// control-plane changes strictly between ticks, and advances drones along
// their planned paths with a simple clamped-velocity reference integrator.
// The network transport that would feed control messages in a deployment is
// out of scope; Session exposes the same operations as plain methods.
package engine

import (
	"context"
	"math"
	"sync"

	goutils "go.viam.com/utils"
	"golang.org/x/time/rate"

	"github.com/aerofleet/dronesim"
	"github.com/aerofleet/dronesim/logging"
	"github.com/aerofleet/dronesim/planning"
)

// waypointEpsM is the arrival radius: a waypoint closer than this is
// considered reached and popped.
const waypointEpsM = 1e-3

// Snapshot is the per-tick state emission: the tick index plus a deep copy
// of every drone, safe to hand to a transport or renderer without racing
// the next tick.
type Snapshot struct {
	Tick   int
	Drones []dronesim.Drone
}

// EmitFunc receives each tick's Snapshot.
type EmitFunc func(Snapshot)

// Session owns one simulation: world, fleet, active planner, loose params,
// and the tick counter. Control methods and Tick serialize on the session
// mutex, so world, drones, and params are immutable within a tick and
// control changes land strictly between ticks.
type Session struct {
	mu       sync.Mutex
	log      logging.Logger
	registry *planning.Registry

	world      *dronesim.World
	drones     []*dronesim.Drone
	planner    planning.Planner
	params     dronesim.RawParams
	tick       int
	tickRateHz int

	cancelRun               context.CancelFunc
	activeBackgroundWorkers sync.WaitGroup
}

// NewSession builds a Session with the defaults a fresh client connection
// would see: an empty 1000x1000x100 world, no drones, the straight-line
// planner, and a 20Hz tick rate.
func NewSession(log logging.Logger, registry *planning.Registry) *Session {
	if log == nil {
		log = logging.NewLogger("engine")
	} else {
		log = log.Named("engine")
	}
	if registry == nil {
		registry = planning.DefaultRegistry()
	}
	planner, err := registry.Build(planning.AlgoStraightLine, log)
	if err != nil {
		planner = planning.NewStraightLinePlanner(log)
	}
	return &Session{
		log:        log,
		registry:   registry,
		world:      &dronesim.World{SizeX: 1000, SizeY: 1000, Ceiling: 100},
		planner:    planner,
		params:     dronesim.RawParams{},
		tickRateHz: 20,
	}
}

// Algorithms lists the planner names a client may select via SetAlgorithm.
func (s *Session) Algorithms() []string {
	return s.registry.Algorithms()
}

// SetAlgorithm replaces the planner instance wholesale, starting its
// per-drone replan bookkeeping fresh. Returns ErrUnknownAlgorithm for an
// unregistered name and leaves the current planner in place.
func (s *Session) SetAlgorithm(name string) error {
	planner, err := s.registry.Build(name, s.log)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.planner = planner
	return nil
}

// Planner returns the active planner instance, e.g. so a caller can pull
// telemetry off a BanditMHAPlanner.
func (s *Session) Planner() planning.Planner {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.planner
}

// SetWorld swaps the world pointer; planners detect the swap and rebuild
// their grid on the next plan.
func (s *Session) SetWorld(w *dronesim.World) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w != nil {
		s.world = w
	}
}

// SetDrones replaces the fleet.
func (s *Session) SetDrones(drones []*dronesim.Drone) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drones = drones
}

// SetParams merges p into the session's loose parameter bag; individual
// planners decode the subset they understand on each plan.
func (s *Session) SetParams(p dronesim.RawParams) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range p {
		s.params[k] = v
	}
}

// SetTickRate sets the Run pacing in Hz, floored at 1.
func (s *Session) SetTickRate(hz int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if hz < 1 {
		hz = 1
	}
	s.tickRateHz = hz
}

// TickRate returns the current pacing in Hz.
func (s *Session) TickRate() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tickRateHz
}

// TickIndex returns the current tick counter.
func (s *Session) TickIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tick
}

// Reset rewinds the tick counter to zero. Any plan already installed on a
// drone stays until its planner decides to replan; a paused session stays
// paused.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick = 0
}

// Tick advances the simulation one step: plan for every drone whose replan
// condition fires, then integrate each drone toward its next waypoint for
// dt = 1/tickRate. Returns the post-integration snapshot.
func (s *Session) Tick(ctx context.Context) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx = logging.WithFields(ctx, "tick", s.tick)
	s.planner.PlanPaths(ctx, s.world, s.drones, s.params, s.tick)

	dt := 1.0 / float64(s.tickRateHz)
	speed := planning.DecodeParams(s.params, planning.DefaultBanditParams(), s.log).Speed
	stepDrones(s.drones, dt, speed)

	s.tick++
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{Tick: s.tick, Drones: make([]dronesim.Drone, len(s.drones))}
	for i, d := range s.drones {
		snap.Drones[i] = *d
		snap.Drones[i].Path = append([]dronesim.Vec3(nil), d.Path...)
		if d.Target != nil {
			tgt := *d.Target
			snap.Drones[i].Target = &tgt
		}
	}
	return snap
}

// Start launches the paced tick loop in the background; a no-op if the
// loop is already running. The loop stops when ctx is canceled or Pause is
// called.
func (s *Session) Start(ctx context.Context, emit EmitFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelRun != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRun = cancel
	s.activeBackgroundWorkers.Add(1)
	goutils.PanicCapturingGo(func() {
		defer s.activeBackgroundWorkers.Done()
		s.run(runCtx, emit)
	})
}

// Pause cancels the tick loop at its next suspension point and waits for
// it to stop. Ticks already in progress run to completion first.
func (s *Session) Pause() {
	s.mu.Lock()
	cancel := s.cancelRun
	s.cancelRun = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.activeBackgroundWorkers.Wait()
}

// Close pauses the loop and flushes the session logger.
func (s *Session) Close() error {
	s.Pause()
	return s.log.Sync()
}

// run is the paced loop body: wait out the tick interval, tick, emit.
// Rate-limiter suspension between ticks is the only cancellation point.
func (s *Session) run(ctx context.Context, emit EmitFunc) {
	limiter := rate.NewLimiter(rate.Limit(s.TickRate()), 1)
	for {
		if hz := rate.Limit(s.TickRate()); limiter.Limit() != hz {
			limiter.SetLimit(hz)
		}
		if err := limiter.Wait(ctx); err != nil {
			return
		}
		snap := s.Tick(ctx)
		if emit != nil {
			emit(snap)
		}
	}
}

// stepDrones is the reference integrator: each drone moves toward its next
// waypoint at the given speed, popping waypoints as it arrives. It is
// deliberately the simplest kinematics consistent with the planner
// contract, not a vehicle model.
func stepDrones(drones []*dronesim.Drone, dt, speed float64) {
	for _, d := range drones {
		if len(d.Path) == 0 {
			d.Vel = dronesim.Vec3{}
			continue
		}
		target := d.Path[0]
		delta := target.Sub(d.Pos)
		dist := delta.Norm()
		if dist < waypointEpsM {
			d.Pos = target
			d.Path = d.Path[1:]
			d.Vel = dronesim.Vec3{}
			continue
		}
		dir := delta.Mul(1 / dist)
		step := math.Min(speed*dt, dist)
		d.Pos = d.Pos.Add(dir.Mul(step))
		d.Vel = dir.Mul(speed)
	}
}
