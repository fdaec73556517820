// Package inference runs the example segmentation algorithm end to end:
// load the image and its metadata, threshold the image into a binary mask
// and write the mask where the platform collects results.
package inference

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/stat"

	"vesselmask/internal/logger"
	"vesselmask/internal/models"
	"vesselmask/pkg/metadata"
	"vesselmask/pkg/segmentation"
	"vesselmask/pkg/visualization"
)

// Params holds the locations and output options of one run
type Params struct {
	// ImageDir is the directory expected to contain exactly one .mha image
	ImageDir string

	// MetadataFile is the JSON file read alongside the image
	MetadataFile string

	// OutputDir receives output.mha and is created when missing
	OutputDir string

	// SavePreview writes PNG slices of the mask to PreviewDir.
	// Preview failures are logged and never fail the run.
	SavePreview bool
	PreviewDir  string
	PreviewAxis string
}

// Summary describes a completed run
type Summary struct {
	InputFile  string
	OutputFile string

	Dims       []int
	Components int

	// ForegroundVoxels is the number of voxels set to the inside value
	ForegroundVoxels int

	// ForegroundFraction is ForegroundVoxels over the voxel count, 0 for an empty grid
	ForegroundFraction float64

	// PreviewSlices is the number of preview images written
	PreviewSlices int

	Elapsed time.Duration
}

// Algorithm executes the load, threshold and write steps once per Run
type Algorithm struct {
	params *Params
	log    *logger.Logger

	metadata models.Metadata
	mask     *models.VoxelGrid
}

// NewAlgorithm creates an algorithm with the provided parameters. A nil
// logger discards all output.
func NewAlgorithm(params *Params, log *logger.Logger) *Algorithm {
	if log == nil {
		log = logger.Nop()
	}
	return &Algorithm{params: params, log: log}
}

// Run executes the steps strictly in order. Any failure ends the run and is
// returned as is; nothing is retried. The output file is written last, so a
// failed run leaves no output behind.
func (a *Algorithm) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	summary := &Summary{}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	grid, path, err := LoadImage(a.params.ImageDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load image: %w", err)
	}
	summary.InputFile = path
	summary.Dims = append([]int(nil), grid.Dims...)
	summary.Components = grid.Components
	a.log.Info("loader", "image loaded", map[string]interface{}{
		"path":         path,
		"dims":         grid.Dims,
		"channels":     grid.Components,
		"element_type": string(grid.ElementType),
	})

	// metadata is read and kept, the threshold does not use it
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	meta, err := metadata.Load(a.params.MetadataFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load metadata: %w", err)
	}
	a.metadata = meta
	a.log.Debug("metadata", "metadata loaded", map[string]interface{}{
		"path":  a.params.MetadataFile,
		"value": meta,
	})

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mask, err := segmentation.ConvertToBinaryMask(grid)
	if err != nil {
		return nil, fmt.Errorf("failed to threshold image: %w", err)
	}
	a.mask = mask
	summary.ForegroundVoxels = segmentation.CountForeground(mask)
	summary.ForegroundFraction = foregroundFraction(mask)
	a.log.Info("segmentation", "binary mask computed", map[string]interface{}{
		"foreground_voxels":   summary.ForegroundVoxels,
		"foreground_fraction": summary.ForegroundFraction,
	})

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out, err := WriteImage(a.params.OutputDir, mask)
	if err != nil {
		return nil, err
	}
	summary.OutputFile = out
	a.log.Info("writer", "mask written", map[string]interface{}{"path": out})

	if a.params.SavePreview {
		summary.PreviewSlices = a.savePreview()
	}

	summary.Elapsed = time.Since(start)
	return summary, nil
}

// Mask returns the mask computed by the last successful Run
func (a *Algorithm) Mask() *models.VoxelGrid {
	return a.mask
}

// Metadata returns the metadata read by the last Run
func (a *Algorithm) Metadata() models.Metadata {
	return a.metadata
}

// savePreview writes PNG slices of the mask and reports how many were saved
func (a *Algorithm) savePreview() int {
	viewer, err := visualization.NewViewer(a.mask)
	if err != nil {
		a.log.Warning("preview", "skipping preview", map[string]interface{}{"reason": err.Error()})
		return 0
	}

	axis := a.params.PreviewAxis
	if axis == "" {
		axis = "z"
	}
	dir := filepath.Join(a.params.PreviewDir, axis)
	count, err := viewer.SaveSliceSequence(axis, dir)
	if err != nil {
		a.log.Warning("preview", "failed to save preview slices", map[string]interface{}{
			"dir":    dir,
			"saved":  count,
			"reason": err.Error(),
		})
		return count
	}

	a.log.Debug("preview", "preview slices saved", map[string]interface{}{"dir": dir, "count": count})
	return count
}

func foregroundFraction(mask *models.VoxelGrid) float64 {
	if len(mask.Data) == 0 {
		return 0
	}
	fraction := stat.Mean(mask.Data, nil) / models.InsideValue
	if math.IsNaN(fraction) {
		return 0
	}
	return fraction
}
