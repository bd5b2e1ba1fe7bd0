package track

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		c    color.Color
		want Surface
	}{
		{"wall", color.RGBA{15, 15, 15, 255}, Wall},
		{"road", color.RGBA{35, 35, 35, 255}, Road},
		{"grass", color.RGBA{34, 177, 76, 255}, Grass},
		{"unrecognized defaults to road", color.RGBA{200, 10, 90, 255}, Road},
		{"white defaults to road", color.RGBA{255, 255, 255, 255}, Road},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.want, classify(test.c))
		})
	}
}

func TestFriction(t *testing.T) {
	m, err := New(3, 1, []Surface{Road, Wall, Grass})
	require.NoError(t, err)

	assert.Equal(t, RoadFriction, m.Friction(0, 0))
	assert.Equal(t, WallFriction, m.Friction(1, 0))
	assert.Equal(t, GrassFriction, m.Friction(2, 0))

	// Out of bounds is impassable
	assert.Equal(t, WallFriction, m.Friction(-1, 0))
	assert.Equal(t, WallFriction, m.Friction(0, 5))
}

func TestNewValidatesSize(t *testing.T) {
	_, err := New(2, 2, []Surface{Road})
	assert.Error(t, err)
}

// uniform returns a width x height map of a single surface class.
func uniform(width, height int, s Surface) *Map {
	surfaces := make([]Surface, width*height)
	for i := range surfaces {
		surfaces[i] = s
	}
	m, _ := New(width, height, surfaces)
	return m
}

func TestRaycastStopsAtWall(t *testing.T) {
	// Open road with a wall column at x = 20
	m := uniform(40, 10, Road)
	for y := 0; y < 10; y++ {
		m.surfaces[y*40+20] = Wall
	}

	d := m.Raycast(5, 5, 0, 100)
	assert.InDelta(t, 15.0, d, rayStep)
}

func TestRaycastExitsMapAtBoundary(t *testing.T) {
	m := uniform(30, 30, Road)

	// Ray pointing out of the map terminates at the boundary with a
	// valid reading
	d := m.Raycast(25, 15, 0, 200)
	assert.Less(t, d, 200.0)
	assert.InDelta(t, 5.0, d, rayStep)
}

func TestRaycastReachesMaxRange(t *testing.T) {
	m := uniform(500, 500, Road)

	d := m.Raycast(250, 250, 1.0, 50)
	assert.Equal(t, 50.0, d)
}

func TestRaycastIgnoresGrass(t *testing.T) {
	m := uniform(40, 10, Grass)

	// Grass is drivable: rays pass over it until the map boundary
	d := m.Raycast(5, 5, 0, 100)
	assert.InDelta(t, 35.0, d, rayStep)
}
