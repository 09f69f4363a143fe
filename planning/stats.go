package planning

import (
	"sync"

	"github.com/montanaflynn/stats"
)

// ArmNames labels the four open sets in display order; indexes match the
// Pulls/RewardSum arrays in PlanStats.
var ArmNames = [4]string{"anchor", "clearance", "landmark", "bearing"}

// PlanStats is the read-only diagnostic record of one bandit plan: how the
// expansion budget was spent and how the four arms performed. It is
// surfaced rather than print-debugged so the engine and dronesimctl can
// report planner behavior without reaching into search internals.
type PlanStats struct {
	DroneID     string
	Expansions  int
	GoalReached bool
	Waypoints   int
	Pulls       [4]int
	RewardSum   [4]float64
}

// Telemetry accumulates PlanStats across the lifetime of one planner
// instance. Bandit state itself never crosses a plan boundary; this is
// purely an observer of per-plan outcomes.
type Telemetry struct {
	mu          sync.Mutex
	expansions  []float64
	armMeans    [4][]float64
	plans       int
	goalReached int
}

// NewTelemetry returns an empty accumulator.
func NewTelemetry() *Telemetry {
	return &Telemetry{}
}

// Record folds one plan's statistics into the running session aggregates.
func (t *Telemetry) Record(ps PlanStats) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.plans++
	if ps.GoalReached {
		t.goalReached++
	}
	t.expansions = append(t.expansions, float64(ps.Expansions))
	for k := 0; k < 4; k++ {
		if ps.Pulls[k] > 0 {
			t.armMeans[k] = append(t.armMeans[k], ps.RewardSum[k]/float64(ps.Pulls[k]))
		}
	}
}

// TelemetrySummary is the session-level rollup: mean/stddev of expansions
// per plan and the mean reward-per-pull of each arm across plans.
type TelemetrySummary struct {
	Plans            int
	GoalsReached     int
	ExpansionsMean   float64
	ExpansionsStdDev float64
	ArmRewardMean    [4]float64
}

// Summary computes the rollup over everything recorded so far.
func (t *Telemetry) Summary() TelemetrySummary {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := TelemetrySummary{Plans: t.plans, GoalsReached: t.goalReached}
	if len(t.expansions) > 0 {
		s.ExpansionsMean, _ = stats.Mean(t.expansions)
		s.ExpansionsStdDev, _ = stats.StandardDeviation(t.expansions)
	}
	for k := 0; k < 4; k++ {
		if len(t.armMeans[k]) > 0 {
			s.ArmRewardMean[k], _ = stats.Mean(t.armMeans[k])
		}
	}
	return s
}
