package metaio

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zlib"

	"vesselmask/internal/models"
)

// Options controls how a volume is written
type Options struct {
	// Compress stores the payload as a zlib stream
	Compress bool
}

// WriteFile writes grid to path as a single-file MetaImage (ElementDataFile = LOCAL).
// The data goes to a temporary file in the same directory that is renamed
// over path only once it is complete, so a failed write never leaves a
// partial file at path.
func WriteFile(path string, grid *models.VoxelGrid, opts Options) (err error) {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(f.Name())
		}
	}()

	if err = Write(f, grid, opts); err != nil {
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	if err = os.Chmod(f.Name(), 0644); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}

// Write encodes grid as a MetaImage with a LOCAL payload. Spatial metadata
// is written exactly as stored on the grid.
func Write(w io.Writer, grid *models.VoxelGrid, opts Options) error {
	if err := grid.Validate(); err != nil {
		return err
	}
	if len(grid.Dims) == 0 {
		return fmt.Errorf("cannot write a grid without dimensions")
	}

	elementType := grid.ElementType
	if elementType == "" {
		elementType = models.MetUChar
	}
	raw, err := encodeElements(grid.Data, elementType)
	if err != nil {
		return err
	}

	ndims := len(grid.Dims)
	spatial := grid.Spatial.Clone()
	identity := models.IdentitySpatial(ndims)
	if len(spatial.Origin) != ndims {
		spatial.Origin = identity.Origin
	}
	if len(spatial.Spacing) != ndims {
		spatial.Spacing = identity.Spacing
	}
	if len(spatial.Direction) != ndims*ndims {
		spatial.Direction = identity.Direction
	}
	if len(spatial.CenterOfRotation) != ndims {
		spatial.CenterOfRotation = nil
	}

	h := &Header{
		ObjectType:            "Image",
		NDims:                 ndims,
		DimSize:               grid.Dims,
		ElementType:           elementType,
		Channels:              grid.Components,
		ElementSpacing:        spatial.Spacing,
		Offset:                spatial.Origin,
		TransformMatrix:       spatial.Direction,
		CenterOfRotation:      spatial.CenterOfRotation,
		AnatomicalOrientation: spatial.AnatomicalOrientation,
		BinaryData:            true,
		ElementDataFile:       LocalDataFile,
	}

	payload := raw
	if opts.Compress {
		var buf bytes.Buffer
		zw := zlib.NewWriter(&buf)
		if _, err := zw.Write(raw); err != nil {
			return fmt.Errorf("failed to compress payload: %w", err)
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("failed to compress payload: %w", err)
		}
		payload = buf.Bytes()
		h.CompressedData = true
		h.CompressedDataSize = int64(len(payload))
	}

	if err := h.writeTo(w); err != nil {
		return err
	}
	_, err = w.Write(payload)
	return err
}
