package models

import (
	"fmt"
	"math"
)

// Threshold window applied to the grayscale intensity of every voxel.
// Voxels whose mean intensity lies inside [LowerThreshold, UpperThreshold]
// become InsideValue, every other voxel becomes OutsideValue.
const (
	LowerThreshold = 128
	UpperThreshold = 255

	InsideValue  = 255
	OutsideValue = 0
)

// ElementType is the MetaImage name of a voxel component type
type ElementType string

const (
	MetChar      ElementType = "MET_CHAR"
	MetUChar     ElementType = "MET_UCHAR"
	MetShort     ElementType = "MET_SHORT"
	MetUShort    ElementType = "MET_USHORT"
	MetInt       ElementType = "MET_INT"
	MetUInt      ElementType = "MET_UINT"
	MetLong      ElementType = "MET_LONG"
	MetULong     ElementType = "MET_ULONG"
	MetLongLong  ElementType = "MET_LONG_LONG"
	MetULongLong ElementType = "MET_ULONG_LONG"
	MetFloat     ElementType = "MET_FLOAT"
	MetDouble    ElementType = "MET_DOUBLE"
)

// Spatial holds the physical placement of a volume. It is carried from the
// input image to the output mask untouched.
type Spatial struct {
	// Origin is the physical position of the first voxel (MetaImage Offset)
	Origin []float64

	// Spacing is the physical size of a voxel along each axis in mm
	Spacing []float64

	// Direction is the row-major NDims x NDims direction cosine matrix
	Direction []float64

	// CenterOfRotation is kept for headers that carry it
	CenterOfRotation []float64

	// AnatomicalOrientation is a code such as "RAI", empty when absent
	AnatomicalOrientation string
}

// Clone returns a deep copy of the spatial metadata
func (s Spatial) Clone() Spatial {
	return Spatial{
		Origin:                cloneFloats(s.Origin),
		Spacing:               cloneFloats(s.Spacing),
		Direction:             cloneFloats(s.Direction),
		CenterOfRotation:      cloneFloats(s.CenterOfRotation),
		AnatomicalOrientation: s.AnatomicalOrientation,
	}
}

// VoxelGrid represents an N-dimensional image whose voxels hold one or more
// channel intensities.
type VoxelGrid struct {
	// Dims is the size along each axis, fastest varying axis first
	Dims []int

	// Components is the number of channels stored per voxel
	Components int

	// ElementType is the on-disk component type
	ElementType ElementType

	// Data holds the voxel values interleaved by channel:
	// Data[voxel*Components + channel]
	Data []float64

	// Spatial is the physical placement of the grid
	Spatial Spatial
}

// NewVoxelGrid allocates a zero-filled grid with identity spatial metadata
func NewVoxelGrid(dims []int, components int, elementType ElementType) *VoxelGrid {
	g := &VoxelGrid{
		Dims:        append([]int(nil), dims...),
		Components:  components,
		ElementType: elementType,
	}
	g.Data = make([]float64, g.NumVoxels()*components)
	g.Spatial = IdentitySpatial(len(dims))
	return g
}

// IdentitySpatial returns unit spacing, zero origin and an identity direction
func IdentitySpatial(ndims int) Spatial {
	s := Spatial{
		Origin:    make([]float64, ndims),
		Spacing:   make([]float64, ndims),
		Direction: make([]float64, ndims*ndims),
	}
	for i := 0; i < ndims; i++ {
		s.Spacing[i] = 1
		s.Direction[i*ndims+i] = 1
	}
	return s
}

// NumVoxels returns the number of voxels, which is zero when any axis is empty
func (g *VoxelGrid) NumVoxels() int {
	if len(g.Dims) == 0 {
		return 0
	}
	n := 1
	for _, d := range g.Dims {
		n *= d
	}
	return n
}

// Channel returns the value of channel c at the given voxel index
func (g *VoxelGrid) Channel(voxel, c int) float64 {
	return g.Data[voxel*g.Components+c]
}

// Validate checks that the grid's shape and data agree
func (g *VoxelGrid) Validate() error {
	if g.Components < 1 {
		return fmt.Errorf("invalid component count %d", g.Components)
	}
	n := g.Components
	for i, d := range g.Dims {
		if d < 0 {
			return fmt.Errorf("invalid size %d along axis %d", d, i)
		}
		if d > 0 && n > math.MaxInt/d {
			return fmt.Errorf("dimensions %v x %d components overflow", g.Dims, g.Components)
		}
		n *= d
	}
	if want := g.NumVoxels() * g.Components; len(g.Data) != want {
		return fmt.Errorf("data length %d does not match dimensions %v x %d components (%d values)",
			len(g.Data), g.Dims, g.Components, want)
	}
	return nil
}

// Metadata is an arbitrary decoded JSON value. It is passed through as read
// and never mutated.
type Metadata = any

func cloneFloats(v []float64) []float64 {
	if v == nil {
		return nil
	}
	return append([]float64(nil), v...)
}
