// Package track implements the color-coded surface map that the racing
// environment drives on. The map is consumed read-only: pixel color
// classes drive collision, friction, and sensor ray casting.
package track

import (
	"fmt"
	"image"
	"image/color"
	_ "image/png"
	"math"
	"os"
)

// Surface is the class of a map pixel.
type Surface int

const (
	// Road is regular drivable track
	Road Surface = iota

	// Wall is impassable; driving into it triggers a collision
	Wall

	// Grass is drivable but high-friction with a reduced top speed
	Grass
)

func (s Surface) String() string {
	switch s {
	case Wall:
		return "Wall"
	case Grass:
		return "Grass"
	default:
		return "Road"
	}
}

// Surface friction multipliers. Any unrecognized pixel color is
// treated as regular road.
const (
	RoadFriction  float64 = 1.0
	WallFriction  float64 = 999.0
	GrassFriction float64 = 3.0
)

// rayStep is the marching step, in pixels, of a sensor ray cast.
const rayStep = 2.0

// classify maps a pixel color to its surface class. Colors are matched
// exactly; anything unrecognized defaults to road.
func classify(c color.Color) Surface {
	r, g, b, _ := c.RGBA()
	r, g, b = r>>8, g>>8, b>>8

	switch {
	case r == 15 && g == 15 && b == 15:
		return Wall
	case r == 34 && g == 177 && b == 76:
		return Grass
	default:
		return Road
	}
}

// Map is a 2D surface map in pixel space. The zero value is not
// usable; construct with Load or New.
type Map struct {
	width    int
	height   int
	surfaces []Surface
}

// Load reads and classifies a surface map image. A missing or corrupt
// image is fatal to starting a run, so the error carries enough
// context for the caller to stop.
func Load(path string) (*Map, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load: could not open surface map: %v", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("load: could not decode surface map %v: %v",
			path, err)
	}

	bounds := img.Bounds()
	m := &Map{
		width:    bounds.Dx(),
		height:   bounds.Dy(),
		surfaces: make([]Surface, bounds.Dx()*bounds.Dy()),
	}
	for y := 0; y < m.height; y++ {
		for x := 0; x < m.width; x++ {
			m.surfaces[y*m.width+x] = classify(
				img.At(bounds.Min.X+x, bounds.Min.Y+y),
			)
		}
	}
	return m, nil
}

// New constructs a Map directly from surface classes in row-major
// order.
func New(width, height int, surfaces []Surface) (*Map, error) {
	if len(surfaces) != width*height {
		return nil, fmt.Errorf("new: have %v surfaces for a %vx%v map",
			len(surfaces), width, height)
	}
	return &Map{width: width, height: height, surfaces: surfaces}, nil
}

// Width returns the map width in pixels
func (m *Map) Width() int { return m.width }

// Height returns the map height in pixels
func (m *Map) Height() int { return m.height }

// At returns the surface class at a position. Positions outside the
// map are impassable.
func (m *Map) At(x, y float64) Surface {
	px, py := int(x), int(y)
	if px < 0 || px >= m.width || py < 0 || py >= m.height {
		return Wall
	}
	return m.surfaces[py*m.width+px]
}

// Friction returns the friction multiplier of the surface at a
// position.
func (m *Map) Friction(x, y float64) float64 {
	switch m.At(x, y) {
	case Wall:
		return WallFriction
	case Grass:
		return GrassFriction
	default:
		return RoadFriction
	}
}

// Raycast marches a ray from (x, y) at the given angle until it hits a
// wall, leaves the map, or reaches maxDistance, and returns the
// distance traveled. A ray that exits the map is not an error: the
// distance to the boundary is a valid reading.
func (m *Map) Raycast(x, y, angle, maxDistance float64) float64 {
	dx, dy := math.Cos(angle), math.Sin(angle)

	for distance := 0.0; distance < maxDistance; distance += rayStep {
		px := int(x + dx*distance)
		py := int(y + dy*distance)

		if px < 0 || px >= m.width || py < 0 || py >= m.height {
			return distance
		}
		if m.surfaces[py*m.width+px] == Wall {
			return distance
		}
	}
	return maxDistance
}
