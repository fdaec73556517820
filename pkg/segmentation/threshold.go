// Package segmentation turns a multi-channel volume into a binary mask.
//
// The channels of each voxel are averaged into one grayscale intensity and
// the intensity is compared against an inclusive window. The mean is kept
// as an exact float64; with an integer lower bound this classifies voxels
// the same way a truncated integer mean would.
package segmentation

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"vesselmask/internal/models"
)

// ToGrayscale averages the channels of every voxel. The result has one
// component per voxel, the same dimensions, and a copy of the spatial
// metadata. Single-channel input is copied unchanged.
func ToGrayscale(grid *models.VoxelGrid) (*models.VoxelGrid, error) {
	if err := grid.Validate(); err != nil {
		return nil, fmt.Errorf("invalid input grid: %w", err)
	}

	n := grid.NumVoxels()
	c := grid.Components
	gray := &models.VoxelGrid{
		Dims:        append([]int(nil), grid.Dims...),
		Components:  1,
		ElementType: models.MetDouble,
		Data:        make([]float64, n),
		Spatial:     grid.Spatial.Clone(),
	}

	if c == 1 {
		copy(gray.Data, grid.Data)
		gray.ElementType = grid.ElementType
		return gray, nil
	}

	for i := 0; i < n; i++ {
		gray.Data[i] = floats.Sum(grid.Data[i*c:(i+1)*c]) / float64(c)
	}
	return gray, nil
}

// BinaryThreshold maps every voxel of a single-channel grid to inside when
// lower <= value <= upper and to outside otherwise. The mask is stored as
// MET_UCHAR.
func BinaryThreshold(gray *models.VoxelGrid, lower, upper, inside, outside float64) (*models.VoxelGrid, error) {
	if gray.Components != 1 {
		return nil, fmt.Errorf("thresholding needs a single-channel grid, got %d channels", gray.Components)
	}
	if lower > upper {
		return nil, fmt.Errorf("lower threshold %g exceeds upper threshold %g", lower, upper)
	}
	if err := gray.Validate(); err != nil {
		return nil, fmt.Errorf("invalid input grid: %w", err)
	}

	mask := &models.VoxelGrid{
		Dims:        append([]int(nil), gray.Dims...),
		Components:  1,
		ElementType: models.MetUChar,
		Data:        make([]float64, len(gray.Data)),
		Spatial:     gray.Spatial.Clone(),
	}
	for i, v := range gray.Data {
		if v >= lower && v <= upper {
			mask.Data[i] = inside
		} else {
			mask.Data[i] = outside
		}
	}
	return mask, nil
}

// ConvertToBinaryMask reduces grid to grayscale and applies the fixed
// threshold window [LowerThreshold, UpperThreshold]. The input is not modified.
func ConvertToBinaryMask(grid *models.VoxelGrid) (*models.VoxelGrid, error) {
	gray, err := ToGrayscale(grid)
	if err != nil {
		return nil, err
	}
	return BinaryThreshold(gray,
		models.LowerThreshold, models.UpperThreshold,
		models.InsideValue, models.OutsideValue)
}

// CountForeground returns the number of voxels set to InsideValue
func CountForeground(mask *models.VoxelGrid) int {
	return floats.Count(func(v float64) bool { return v == models.InsideValue }, mask.Data)
}
