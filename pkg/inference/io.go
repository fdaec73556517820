package inference

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"vesselmask/internal/models"
	"vesselmask/pkg/metaio"
)

const (
	// ImageExtension is the extension of input and output volumes
	ImageExtension = ".mha"

	// OutputName is the base name of the written mask
	OutputName = "output"
)

var (
	// ErrNoInput is returned when the input directory holds no image
	ErrNoInput = errors.New("no input found")

	// ErrAmbiguousInput is returned when more than one image could be the input
	ErrAmbiguousInput = errors.New("more than one input image found")

	// ErrWrite is returned when the output image cannot be written
	ErrWrite = errors.New("failed to write output")
)

// FindImage returns the single .mha file directly inside dir. It never picks
// one of several candidates.
func FindImage(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: directory %s does not exist", ErrNoInput, dir)
		}
		return "", fmt.Errorf("failed to list %s: %w", dir, err)
	}

	var matches []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ImageExtension) {
			matches = append(matches, entry.Name())
		}
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: no %s files in %s", ErrNoInput, ImageExtension, dir)
	case 1:
		return filepath.Join(dir, matches[0]), nil
	default:
		sort.Strings(matches)
		return "", fmt.Errorf("%w: %s in %s", ErrAmbiguousInput, strings.Join(matches, ", "), dir)
	}
}

// LoadImage locates the single image in dir and decodes it
func LoadImage(dir string) (*models.VoxelGrid, string, error) {
	path, err := FindImage(dir)
	if err != nil {
		return nil, "", err
	}

	grid, err := metaio.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	return grid, path, nil
}

// WriteImage writes grid zlib-compressed to dir/output.mha, creating dir
// when missing. It returns the path of the written file.
func WriteImage(dir string, grid *models.VoxelGrid) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("%w: %v", ErrWrite, err)
	}

	path := filepath.Join(dir, OutputName+ImageExtension)
	if err := metaio.WriteFile(path, grid, metaio.Options{Compress: true}); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrWrite, path, err)
	}
	return path, nil
}
