// Package worldfile decodes worlds and scenario rosters from their JSON
// wire shape into the dronesim data model. It is tolerant where the data
// model says to be (obstacles outside the world footprint are dropped,
// missing drone IDs are generated) and strict where silence would hide a
// broken scenario (non-positive world size, malformed obstacle boxes,
// duplicate drone IDs). Structural problems in one file are reported
// together rather than first-fail, except that a world whose size is
// invalid is reported without its obstacles being checked.
package worldfile

import (
	"encoding/json"
	"os"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/aerofleet/dronesim"
	"github.com/aerofleet/dronesim/logging"
)

// Scenario bundles everything needed to run a session headless: the world,
// the drone roster, the loose planner params, and the algorithm to start
// with (empty means the session default).
type Scenario struct {
	World     *dronesim.World
	Drones    []*dronesim.Drone
	Params    dronesim.RawParams
	Algorithm string
}

type vecDoc struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v vecDoc) vec() dronesim.Vec3 {
	return dronesim.Vec3{X: v.X, Y: v.Y, Z: v.Z}
}

type obstacleDoc struct {
	ID     string `json:"id"`
	Center vecDoc `json:"center"`
	Size   vecDoc `json:"size"`
}

type worldDoc struct {
	Size      []float64     `json:"size"`
	Obstacles []obstacleDoc `json:"obstacles"`
}

type droneDoc struct {
	ID     string  `json:"id"`
	Pos    vecDoc  `json:"pos"`
	Target *vecDoc `json:"target"`
}

type scenarioDoc struct {
	World     worldDoc               `json:"world"`
	Drones    []droneDoc             `json:"drones"`
	Params    map[string]interface{} `json:"params"`
	Algorithm string                 `json:"algorithm"`
}

// ReadScenario loads and decodes a scenario file.
func ReadScenario(path string, log logging.Logger) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read scenario %q", path)
	}
	return ParseScenario(data, log)
}

// ParseScenario decodes a scenario document. Benign issues (obstacles
// outside the footprint, missing drone IDs) are repaired and logged;
// structural ones are accumulated and returned together.
func ParseScenario(data []byte, log logging.Logger) (*Scenario, error) {
	var doc scenarioDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "malformed scenario JSON")
	}

	var errs error

	world, err := worldFromDoc(doc.World, log)
	errs = multierr.Append(errs, err)

	drones := make([]*dronesim.Drone, 0, len(doc.Drones))
	seen := map[string]bool{}
	for i, dd := range doc.Drones {
		id := dd.ID
		if id == "" {
			id = uuid.NewString()
			if log != nil {
				log.Debugw("drone missing id, generated one", "index", i, "id", id)
			}
		}
		if seen[id] {
			errs = multierr.Append(errs, errors.Errorf("duplicate drone id %q", id))
			continue
		}
		seen[id] = true
		d := &dronesim.Drone{ID: id, Pos: dd.Pos.vec()}
		if dd.Target != nil {
			tgt := dd.Target.vec()
			d.Target = &tgt
		}
		drones = append(drones, d)
	}

	if errs != nil {
		return nil, errs
	}
	return &Scenario{
		World:     world,
		Drones:    drones,
		Params:    dronesim.RawParams(doc.Params),
		Algorithm: doc.Algorithm,
	}, nil
}

// ParseWorld decodes a bare world document, the payload shape of the
// set_world control message.
func ParseWorld(data []byte, log logging.Logger) (*dronesim.World, error) {
	var doc worldDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "malformed world JSON")
	}
	return worldFromDoc(doc, log)
}

func worldFromDoc(doc worldDoc, log logging.Logger) (*dronesim.World, error) {
	if len(doc.Size) < 2 {
		return nil, errors.Errorf("world size needs at least (W,H), got %d entries", len(doc.Size))
	}
	w := &dronesim.World{SizeX: doc.Size[0], SizeY: doc.Size[1], Ceiling: 100}
	if len(doc.Size) >= 3 && doc.Size[2] > 0 {
		w.Ceiling = doc.Size[2]
	}
	if w.SizeX <= 0 || w.SizeY <= 0 {
		return nil, errors.Errorf("world footprint must be positive, got %gx%g", w.SizeX, w.SizeY)
	}

	var errs error
	for i, ob := range doc.Obstacles {
		if ob.Size.X <= 0 || ob.Size.Y <= 0 {
			errs = multierr.Append(errs, errors.Errorf("obstacle %d (%q): non-positive footprint %gx%g", i, ob.ID, ob.Size.X, ob.Size.Y))
			continue
		}
		b := dronesim.Building{ID: ob.ID, Center: ob.Center.vec(), Size: ob.Size.vec()}
		if !footprintIntersects(w, b) {
			// The world invariant says out-of-footprint obstacles are
			// ignored, not rejected.
			if log != nil {
				log.Warnw("obstacle outside world footprint, ignoring", "index", i, "id", ob.ID)
			}
			continue
		}
		w.Obstacles = append(w.Obstacles, b)
	}
	if errs != nil {
		return nil, errs
	}
	return w, nil
}

func footprintIntersects(w *dronesim.World, b dronesim.Building) bool {
	x0, x1 := b.Center.X-b.Size.X*0.5, b.Center.X+b.Size.X*0.5
	y0, y1 := b.Center.Y-b.Size.Y*0.5, b.Center.Y+b.Size.Y*0.5
	return x1 > 0 && x0 < w.SizeX && y1 > 0 && y0 < w.SizeY
}
