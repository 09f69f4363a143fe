package gridcache

import (
	"testing"

	"go.viam.com/test"

	"github.com/aerofleet/dronesim"
)

func smallWorld() *dronesim.World {
	return &dronesim.World{
		SizeX: 100,
		SizeY: 100,
		Obstacles: []dronesim.Building{
			{ID: "wall", Center: dronesim.Vec3{X: 50, Y: 50, Z: 10}, Size: dronesim.Vec3{X: 80, Y: 10, Z: 20}},
		},
	}
}

func TestBuildRasterizesObstacle(t *testing.T) {
	g := Build(smallWorld(), 10, 0)
	test.That(t, g.W, test.ShouldEqual, 10)
	test.That(t, g.H, test.ShouldEqual, 10)
	test.That(t, g.IsBlocked(Coord{X: 5, Y: 5}), test.ShouldBeTrue)
	test.That(t, g.IsBlocked(Coord{X: 0, Y: 0}), test.ShouldBeFalse)
}

func TestIsBlockedOutOfBounds(t *testing.T) {
	g := Build(smallWorld(), 10, 0)
	test.That(t, g.IsBlocked(Coord{X: -1, Y: 0}), test.ShouldBeTrue)
	test.That(t, g.IsBlocked(Coord{X: 0, Y: 100}), test.ShouldBeTrue)
}

func TestClearanceZeroOnBlockedCell(t *testing.T) {
	g := Build(smallWorld(), 10, 0)
	test.That(t, g.ClearanceAt(Coord{X: 5, Y: 5}), test.ShouldEqual, 0.0)
	test.That(t, g.ClearanceAt(Coord{X: 0, Y: 0}), test.ShouldBeGreaterThan, 0.0)
}

func TestClearanceMatchesBruteForceL1(t *testing.T) {
	g := Build(smallWorld(), 10, 0)
	for y := 0; y < g.H; y++ {
		for x := 0; x < g.W; x++ {
			want := 1 << 20
			for yy := 0; yy < g.H; yy++ {
				for xx := 0; xx < g.W; xx++ {
					if !g.Blocked[yy*g.W+xx] {
						continue
					}
					d := abs(x-xx) + abs(y-yy)
					if d < want {
						want = d
					}
				}
			}
			got := g.ClearanceAt(Coord{X: x, Y: y}) / g.Cell
			test.That(t, got, test.ShouldEqual, float64(want))
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func TestToWorldFromWorldRoundTrip(t *testing.T) {
	g := Build(smallWorld(), 10, 0)
	c := Coord{X: 3, Y: 7}
	v := g.ToWorld(c, 42)
	test.That(t, v.Z, test.ShouldEqual, 42.0)
	back := g.FromWorld(v.X, v.Y)
	test.That(t, back, test.ShouldResemble, c)
}

func TestNearestFreeReturnsSelfWhenUnblocked(t *testing.T) {
	g := Build(smallWorld(), 10, 0)
	c := Coord{X: 0, Y: 0}
	test.That(t, g.NearestFree(c), test.ShouldResemble, c)
}

func TestNearestFreeEscapesBlockedCell(t *testing.T) {
	g := Build(smallWorld(), 10, 0)
	blocked := Coord{X: 5, Y: 5}
	test.That(t, g.IsBlocked(blocked), test.ShouldBeTrue)
	free := g.NearestFree(blocked)
	test.That(t, g.IsBlocked(free), test.ShouldBeFalse)
}

func TestBuildSizedUsesFallbackForManyObstacles(t *testing.T) {
	world := &dronesim.World{SizeX: 1000, SizeY: 1000}
	for i := 0; i < 5001; i++ {
		world.Obstacles = append(world.Obstacles, dronesim.Building{
			Center: dronesim.Vec3{X: float64(i % 900), Y: float64(i % 900)},
			Size:   dronesim.Vec3{X: 2, Y: 2},
		})
	}
	g, err := BuildSized(world, 5, 6, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, g.Cell, test.ShouldBeGreaterThanOrEqualTo, 24.0)
}

func TestBuildSizedTooLarge(t *testing.T) {
	world := &dronesim.World{SizeX: 1_000_000, SizeY: 1_000_000}
	_, err := BuildSized(world, 1, 1, nil)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestSpeedFromClearanceMonotone(t *testing.T) {
	lo := SpeedFromClearance(0, 4, 20, 8)
	hi := SpeedFromClearance(100, 4, 20, 8)
	test.That(t, lo, test.ShouldEqual, 4.0)
	test.That(t, hi, test.ShouldBeLessThanOrEqualTo, 20.0)
	test.That(t, hi, test.ShouldBeGreaterThan, lo)
}

func TestBuildPlainNoClearanceField(t *testing.T) {
	g := BuildPlain(smallWorld(), 10, 0)
	test.That(t, g.ClearanceM, test.ShouldBeNil)
	test.That(t, g.IsBlocked(Coord{X: 5, Y: 5}), test.ShouldBeTrue)
	test.That(t, g.ClearanceAt(Coord{X: 0, Y: 0}), test.ShouldEqual, 0.0)
}
