package metaio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zlib"

	"vesselmask/internal/models"
)

// ReadFile loads a MetaImage from disk. Detached payloads named by
// ElementDataFile are resolved relative to the header's directory.
func ReadFile(path string) (*models.VoxelGrid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	grid, err := Read(f, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return grid, nil
}

// Read decodes a MetaImage from r. dir is used to locate detached data files.
func Read(r io.Reader, dir string) (*models.VoxelGrid, error) {
	br := bufio.NewReader(r)
	h, err := ParseHeader(br)
	if err != nil {
		return nil, err
	}

	var payload io.Reader = br
	if !strings.EqualFold(h.ElementDataFile, LocalDataFile) {
		data, err := readDetached(h, dir)
		if err != nil {
			return nil, err
		}
		payload = bytes.NewReader(data)
	}

	raw, err := readPayload(h, payload)
	if err != nil {
		return nil, err
	}

	var order binary.ByteOrder = binary.LittleEndian
	if h.ByteOrderMSB {
		order = binary.BigEndian
	}
	values, err := decodeElements(raw, h.ElementType, order, h.numValues())
	if err != nil {
		return nil, err
	}

	return &models.VoxelGrid{
		Dims:        append([]int(nil), h.DimSize...),
		Components:  h.Channels,
		ElementType: h.ElementType,
		Data:        values,
		Spatial:     h.spatial(),
	}, nil
}

// readPayload returns the uncompressed voxel bytes. The buffer grows as
// data arrives, so a header declaring more data than the stream holds
// fails with ErrShortData instead of allocating the declared size.
func readPayload(h *Header, r io.Reader) ([]byte, error) {
	size, _ := elementSize(h.ElementType)
	want := int64(h.numValues()) * int64(size)

	if h.CompressedData {
		if h.CompressedDataSize > 0 {
			r = io.LimitReader(r, h.CompressedDataSize)
		}
		if want == 0 {
			return []byte{}, nil
		}

		zr, err := zlib.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to open compressed payload: %w", err)
		}
		defer zr.Close()
		r = zr
	}

	raw, err := io.ReadAll(io.LimitReader(r, want))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrShortData, err)
	}
	if int64(len(raw)) < want {
		return nil, fmt.Errorf("%w: have %d bytes, need %d", ErrShortData, len(raw), want)
	}
	return raw, nil
}

// readDetached loads the payload file named by ElementDataFile
func readDetached(h *Header, dir string) ([]byte, error) {
	name := h.ElementDataFile
	if !filepath.IsAbs(name) {
		name = filepath.Join(dir, name)
	}

	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read data file: %w", err)
	}

	switch {
	case h.HeaderSize > 0:
		if h.HeaderSize > int64(len(data)) {
			return nil, fmt.Errorf("%w: HeaderSize %d exceeds data file size %d", ErrShortData, h.HeaderSize, len(data))
		}
		data = data[h.HeaderSize:]
	case h.HeaderSize == -1 && !h.CompressedData:
		size, _ := elementSize(h.ElementType)
		want := h.numValues() * size
		if want > len(data) {
			return nil, fmt.Errorf("%w: have %d bytes, need %d", ErrShortData, len(data), want)
		}
		data = data[len(data)-want:]
	}
	return data, nil
}
