package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"vesselmask/internal/models"
)

// Viewer cuts axis-aligned 2D slices out of a single-channel volume such as
// a segmentation mask, so the result can be inspected without a MetaImage
// viewer.
type Viewer struct {
	// volumeData holds the voxel intensities, x fastest
	volumeData []float64

	// dimensions of the volume
	width  int
	height int
	depth  int
}

// NewViewer creates a viewer over a 2D or 3D single-channel grid
func NewViewer(grid *models.VoxelGrid) (*Viewer, error) {
	if grid.Components != 1 {
		return nil, fmt.Errorf("viewer needs a single-channel grid, got %d channels", grid.Components)
	}
	if err := grid.Validate(); err != nil {
		return nil, err
	}

	v := &Viewer{volumeData: grid.Data, depth: 1}
	switch len(grid.Dims) {
	case 2:
		v.width, v.height = grid.Dims[0], grid.Dims[1]
	case 3:
		v.width, v.height, v.depth = grid.Dims[0], grid.Dims[1], grid.Dims[2]
	default:
		return nil, fmt.Errorf("viewer supports 2D and 3D grids, got %d dimensions", len(grid.Dims))
	}
	return v, nil
}

// ExtractSlice extracts a 2D slice from the volume along the specified axis.
// Intensities are clamped to the 8-bit range.
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}

	var img *image.Gray

	switch axis {
	case "x", "X":
		// Extract slice along YZ plane
		if position >= v.width {
			return nil, fmt.Errorf("position %d exceeds width %d", position, v.width)
		}

		img = image.NewGray(image.Rect(0, 0, v.depth, v.height))
		for y := 0; y < v.height; y++ {
			for z := 0; z < v.depth; z++ {
				img.SetGray(z, y, v.gray(position, y, z))
			}
		}

	case "y", "Y":
		// Extract slice along XZ plane
		if position >= v.height {
			return nil, fmt.Errorf("position %d exceeds height %d", position, v.height)
		}

		img = image.NewGray(image.Rect(0, 0, v.width, v.depth))
		for z := 0; z < v.depth; z++ {
			for x := 0; x < v.width; x++ {
				img.SetGray(x, z, v.gray(x, position, z))
			}
		}

	case "z", "Z":
		// Extract slice along XY plane
		if position >= v.depth {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, v.depth)
		}

		img = image.NewGray(image.Rect(0, 0, v.width, v.height))
		for y := 0; y < v.height; y++ {
			for x := 0; x < v.width; x++ {
				img.SetGray(x, y, v.gray(x, y, position))
			}
		}

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	return img, nil
}

func (v *Viewer) gray(x, y, z int) color.Gray {
	value := v.volumeData[z*v.width*v.height+y*v.width+x]
	return color.Gray{Y: uint8(math.Max(0, math.Min(255, math.Round(value))))}
}

// SaveSlice saves an extracted slice as a PNG image
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return png.Encode(file, img)
}

// SaveSliceSequence extracts and saves every slice along the specified axis.
// It returns the number of slices written.
func (v *Viewer) SaveSliceSequence(axis string, outputDir string) (int, error) {
	var maxPos int
	switch axis {
	case "x", "X":
		maxPos = v.width
	case "y", "Y":
		maxPos = v.height
	case "z", "Z":
		maxPos = v.depth
	default:
		return 0, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return 0, err
	}

	for pos := 0; pos < maxPos; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return pos, err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.png", axis, pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return pos, err
		}
	}

	return maxPos, nil
}
