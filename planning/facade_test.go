package planning

import (
	"testing"

	"go.viam.com/test"

	"github.com/aerofleet/dronesim"
)

func trackedDrone() *dronesim.Drone {
	return &dronesim.Drone{
		ID:     "d1",
		Pos:    dronesim.Vec3{X: 5, Y: 5},
		Path:   []dronesim.Vec3{{X: 15, Y: 5}},
		Target: vecPtr(dronesim.Vec3{X: 95, Y: 95}),
	}
}

func TestTrackerNoTargetNoReplan(t *testing.T) {
	rt := newReplanTracker(20)
	d := trackedDrone()
	d.Target = nil
	test.That(t, rt.needsReplan(d, 0), test.ShouldBeFalse)
}

func TestTrackerFirstSightReplans(t *testing.T) {
	rt := newReplanTracker(20)
	d := trackedDrone()
	test.That(t, rt.needsReplan(d, 0), test.ShouldBeTrue)
	rt.record(d, 0)
	test.That(t, rt.needsReplan(d, 1), test.ShouldBeFalse)
}

func TestTrackerGoalMoveReplans(t *testing.T) {
	rt := newReplanTracker(20)
	d := trackedDrone()
	rt.record(d, 0)
	d.Target = vecPtr(dronesim.Vec3{X: 50, Y: 95})
	test.That(t, rt.needsReplan(d, 1), test.ShouldBeTrue)
}

func TestTrackerCadenceReplans(t *testing.T) {
	rt := newReplanTracker(20)
	d := trackedDrone()
	rt.record(d, 0)
	test.That(t, rt.needsReplan(d, 19), test.ShouldBeFalse)
	test.That(t, rt.needsReplan(d, 20), test.ShouldBeTrue)
}

func TestTrackerEmptyPathReplans(t *testing.T) {
	rt := newReplanTracker(20)
	d := trackedDrone()
	rt.record(d, 0)
	d.Path = nil
	test.That(t, rt.needsReplan(d, 1), test.ShouldBeTrue)
}

func TestRegistryBuildAndDiscovery(t *testing.T) {
	r := DefaultRegistry()
	names := r.Algorithms()
	test.That(t, names, test.ShouldHaveLength, 3)

	for _, name := range []string{AlgoStraightLine, AlgoGridAStar, AlgoBanditMHAStar} {
		p, err := r.Build(name, nil)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, p.Name(), test.ShouldEqual, name)
	}

	_, err := r.Build("simulated_annealing", nil)
	test.That(t, err, test.ShouldBeError, ErrUnknownAlgorithm)
}
