package planning

import "github.com/pkg/errors"

// Sentinel errors surfaced by the planning package, matching the error
// taxonomy every algorithm must honor. Wrap with errors.Wrap/Wrapf for
// context; callers should compare with errors.Is.
var (
	// ErrUnknownAlgorithm is returned by Registry.Build for an
	// unregistered algorithm name.
	ErrUnknownAlgorithm = errors.New("planning: unknown algorithm")

	// ErrNoValidStart/ErrNoValidGoal are non-fatal: NearestFree already
	// absorbs most of these by snapping to the closest free cell, so
	// these only surface when even that search fails to find free
	// ground within the search radius.
	ErrNoValidStart = errors.New("planning: no valid start cell")
	ErrNoValidGoal  = errors.New("planning: no valid goal cell")

	// ErrExpansionBudgetExhausted marks a plan that hit max_expansions
	// before reaching the goal; the core still returns its best partial
	// reconstruction rather than failing the tick.
	ErrExpansionBudgetExhausted = errors.New("planning: expansion budget exhausted")

	// ErrBadParam marks a parameter that failed to decode into its
	// expected type; DecodeParams falls back to the field's default and
	// logs rather than failing the whole plan.
	ErrBadParam = errors.New("planning: bad parameter")
)
