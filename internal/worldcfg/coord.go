package worldcfg

import (
	"github.com/go-gl/mathgl/mgl64"

	"voxelworlds.ai/internal/yamlsec"
)

// Location is a position inside a named live world.
type Location struct {
	World string
	Pos   mgl64.Vec3
	Yaw   float32
	Pitch float32
}

// Coord is an immutable position and orientation without a world.
type Coord struct {
	x, y, z    float64
	yaw, pitch float32
}

func NewCoord(x, y, z float64, yaw, pitch float32) Coord {
	return Coord{x: x, y: y, z: z, yaw: yaw, pitch: pitch}
}

// CoordFromLocation drops the world from loc.
func CoordFromLocation(loc Location) Coord {
	return NewCoord(loc.Pos.X(), loc.Pos.Y(), loc.Pos.Z(), loc.Yaw, loc.Pitch)
}

var coordKeys = []string{"x", "y", "z", "pitch", "yaw"}

// LoadCoord reads a coordinate section. All five keys are required.
func LoadCoord(sec *yamlsec.Section) (Coord, error) {
	for _, k := range coordKeys {
		if err := requireKey(sec, k); err != nil {
			return Coord{}, err
		}
	}
	var pos [3]float64
	for i, k := range coordKeys[:3] {
		v, err := sec.Float(k)
		if err != nil {
			return Coord{}, sectionErr(err)
		}
		pos[i] = v
	}
	pitch, err := sec.Float32("pitch")
	if err != nil {
		return Coord{}, sectionErr(err)
	}
	yaw, err := sec.Float32("yaw")
	if err != nil {
		return Coord{}, sectionErr(err)
	}
	return NewCoord(pos[0], pos[1], pos[2], yaw, pitch), nil
}

// Write stores the coordinate into sec.
func (c Coord) Write(sec *yamlsec.Section) {
	_ = sec.Set("x", c.x)
	_ = sec.Set("y", c.y)
	_ = sec.Set("z", c.z)
	_ = sec.Set("pitch", c.pitch)
	_ = sec.Set("yaw", c.yaw)
}

// WithWorld places the coordinate in the named world.
func (c Coord) WithWorld(world string) Location {
	return Location{World: world, Pos: c.Pos(), Yaw: c.yaw, Pitch: c.pitch}
}

func (c Coord) Pos() mgl64.Vec3 { return mgl64.Vec3{c.x, c.y, c.z} }
func (c Coord) X() float64      { return c.x }
func (c Coord) Y() float64      { return c.y }
func (c Coord) Z() float64      { return c.z }
func (c Coord) Yaw() float32    { return c.yaw }
func (c Coord) Pitch() float32  { return c.pitch }
