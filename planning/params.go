package planning

import (
	mapstructure "github.com/go-viper/mapstructure/v2"

	"github.com/aerofleet/dronesim"
	"github.com/aerofleet/dronesim/logging"
)

// Params is the typed, defaulted view of a client's loose RawParams bag.
// Every field has a zero-value-safe default applied before decode so a
// partially specified params map (or one with a field of the wrong type)
// degrades to sane behavior instead of propagating zeros into the search.
type Params struct {
	Tick int `mapstructure:"tick"`

	GridCellM   float64 `mapstructure:"grid_cell_m"`
	ClearanceM  float64 `mapstructure:"clearance_m"`
	CruiseAltM  float64 `mapstructure:"cruise_alt_m"`
	Speed       float64 `mapstructure:"speed"`
	VMax        float64 `mapstructure:"v_max"`
	VMin        float64 `mapstructure:"v_min"`
	ClrKappaM   float64 `mapstructure:"clr_kappa_m"`
	EdgeSamples int     `mapstructure:"edge_samples"`
	Neighbors8  bool    `mapstructure:"neighbors8"`

	WClear       float64 `mapstructure:"w_clear"`
	WLandmark    float64 `mapstructure:"w_landmark"`
	WBearing     float64 `mapstructure:"w_bearing"`
	BearingGamma float64 `mapstructure:"bearing_gamma"`

	UCBExploration    float64 `mapstructure:"ucb_c"`
	AnchorPeriod      int     `mapstructure:"anchor_period"`
	MaxExpansions     int     `mapstructure:"max_expansions"`
	AcceptSuboptimalW float64 `mapstructure:"accept_suboptimal_w"`
	AllowDiagonal     bool    `mapstructure:"allow_diagonal"`
}

// DefaultBanditParams mirrors bandit_mha_star's defaults exactly.
func DefaultBanditParams() Params {
	return Params{
		GridCellM:         20.0,
		ClearanceM:        6.0,
		CruiseAltM:        60.0,
		Speed:             30.0,
		VMax:              20.0,
		VMin:              4.0,
		ClrKappaM:         8.0,
		EdgeSamples:       2,
		Neighbors8:        false,
		WClear:            1.15,
		WLandmark:         1.0,
		WBearing:          1.1,
		BearingGamma:      0.2,
		UCBExploration:    0.8,
		AnchorPeriod:      6,
		MaxExpansions:     2500,
		AcceptSuboptimalW: 1.05,
		AllowDiagonal:     true,
	}
}

// DefaultGridAStarParams mirrors a_star_grid's defaults: a finer default
// cell and lighter inflation than the bandit planner.
func DefaultGridAStarParams() Params {
	p := DefaultBanditParams()
	p.GridCellM = 10.0
	p.ClearanceM = 5.0
	p.CruiseAltM = 50.0
	return p
}

// DecodeParams decodes raw on top of defaults using mapstructure, so a
// field absent from raw, or present with the wrong type, keeps its
// default rather than zeroing out. Type mismatches are logged as
// ErrBadParam and otherwise ignored - a bad parameter degrades a plan,
// it doesn't fail the tick.
func DecodeParams(raw dronesim.RawParams, defaults Params, log logging.Logger) Params {
	result := defaults
	if len(raw) == 0 {
		return result
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &result,
	})
	if err != nil {
		if log != nil {
			log.Errorw("failed to build params decoder", "error", err)
		}
		return defaults
	}
	if err := decoder.Decode(map[string]interface{}(raw)); err != nil {
		if log != nil {
			log.Warnw("bad parameter(s), falling back to defaults for affected fields", "error", ErrBadParam, "cause", err)
		}
	}
	return result
}
