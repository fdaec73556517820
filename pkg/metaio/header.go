// Package metaio reads and writes MetaImage (.mha / .mhd) volumes.
//
// A MetaImage file is a plain-text header of "Key = Value" lines terminated
// by the ElementDataFile entry, followed (for ElementDataFile = LOCAL) by the
// binary voxel payload. The payload may be zlib-compressed.
package metaio

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math/bits"
	"strconv"
	"strings"

	"vesselmask/internal/models"
)

// LocalDataFile marks a payload stored directly after the header
const LocalDataFile = "LOCAL"

// MaxValues bounds the number of components (voxels x channels) a header
// may declare
const MaxValues = 1 << 30

var (
	// ErrMalformedHeader is returned when the header cannot be parsed
	ErrMalformedHeader = errors.New("malformed MetaImage header")

	// ErrUnsupportedElementType is returned for element types this package cannot decode
	ErrUnsupportedElementType = errors.New("unsupported MetaImage element type")

	// ErrShortData is returned when the payload holds fewer bytes than the header declares
	ErrShortData = errors.New("MetaImage payload shorter than declared")
)

// KeyValue is a header entry this package does not interpret
type KeyValue struct {
	Key   string
	Value string
}

// Header is the parsed MetaImage header
type Header struct {
	ObjectType            string
	NDims                 int
	DimSize               []int
	ElementType           models.ElementType
	Channels              int
	ElementSpacing        []float64
	Offset                []float64
	TransformMatrix       []float64
	CenterOfRotation      []float64
	AnatomicalOrientation string

	BinaryData         bool
	ByteOrderMSB       bool
	CompressedData     bool
	CompressedDataSize int64

	// HeaderSize is the number of bytes to skip in a detached data file,
	// -1 meaning the payload sits at the end of that file
	HeaderSize int64

	ElementDataFile string

	// Extra keeps unknown keys in file order
	Extra []KeyValue
}

// ParseHeader reads header lines from r up to and including ElementDataFile.
// The reader is left positioned at the first payload byte.
func ParseHeader(r *bufio.Reader) (*Header, error) {
	h := &Header{
		ObjectType: "Image",
		Channels:   1,
		BinaryData: true,
	}

	for {
		line, err := r.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			if err == io.EOF {
				return nil, fmt.Errorf("%w: missing ElementDataFile", ErrMalformedHeader)
			}
			return nil, err
		}

		line = strings.TrimRight(line, "\r\n")
		if strings.TrimSpace(line) == "" {
			if err == io.EOF {
				return nil, fmt.Errorf("%w: missing ElementDataFile", ErrMalformedHeader)
			}
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("%w: line %q has no '='", ErrMalformedHeader, line)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		done, perr := h.set(key, value)
		if perr != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedHeader, key, perr)
		}
		if done {
			break
		}
		if err == io.EOF {
			return nil, fmt.Errorf("%w: missing ElementDataFile", ErrMalformedHeader)
		}
	}

	if err := h.validate(); err != nil {
		return nil, err
	}
	return h, nil
}

// set applies one header entry and reports whether it ended the header
func (h *Header) set(key, value string) (bool, error) {
	var err error
	switch strings.ToLower(key) {
	case "objecttype":
		h.ObjectType = value
	case "ndims":
		h.NDims, err = strconv.Atoi(value)
	case "dimsize":
		h.DimSize, err = parseInts(value)
	case "elementtype":
		h.ElementType = models.ElementType(strings.ToUpper(value))
	case "elementnumberofchannels":
		h.Channels, err = strconv.Atoi(value)
	case "elementspacing", "elementsize":
		// ElementSize only fills in spacing when ElementSpacing is absent
		if strings.EqualFold(key, "elementsize") && h.ElementSpacing != nil {
			return false, nil
		}
		h.ElementSpacing, err = parseFloats(value)
	case "offset", "origin", "position":
		h.Offset, err = parseFloats(value)
	case "transformmatrix", "rotation", "orientation":
		h.TransformMatrix, err = parseFloats(value)
	case "centerofrotation":
		h.CenterOfRotation, err = parseFloats(value)
	case "anatomicalorientation":
		h.AnatomicalOrientation = value
	case "binarydata":
		h.BinaryData, err = parseBool(value)
	case "binarydatabyteordermsb", "elementbyteordermsb":
		h.ByteOrderMSB, err = parseBool(value)
	case "compresseddata":
		h.CompressedData, err = parseBool(value)
	case "compresseddatasize":
		h.CompressedDataSize, err = strconv.ParseInt(value, 10, 64)
	case "headersize":
		h.HeaderSize, err = strconv.ParseInt(value, 10, 64)
	case "elementdatafile":
		h.ElementDataFile = value
		return true, nil
	default:
		h.Extra = append(h.Extra, KeyValue{Key: key, Value: value})
	}
	return false, err
}

func (h *Header) validate() error {
	if h.NDims <= 0 {
		return fmt.Errorf("%w: NDims must be positive, got %d", ErrMalformedHeader, h.NDims)
	}
	if len(h.DimSize) != h.NDims {
		return fmt.Errorf("%w: DimSize has %d entries for NDims %d", ErrMalformedHeader, len(h.DimSize), h.NDims)
	}
	for _, d := range h.DimSize {
		if d < 0 {
			return fmt.Errorf("%w: negative DimSize %v", ErrMalformedHeader, h.DimSize)
		}
	}
	if h.Channels < 1 {
		return fmt.Errorf("%w: ElementNumberOfChannels must be at least 1", ErrMalformedHeader)
	}
	total := uint64(h.Channels)
	for _, d := range h.DimSize {
		hi, lo := bits.Mul64(total, uint64(d))
		if hi != 0 || lo > MaxValues {
			return fmt.Errorf("%w: DimSize %v with %d channels exceeds %d values",
				ErrMalformedHeader, h.DimSize, h.Channels, MaxValues)
		}
		total = lo
	}
	if h.ElementType == "" {
		return fmt.Errorf("%w: missing ElementType", ErrMalformedHeader)
	}
	if _, err := elementSize(h.ElementType); err != nil {
		return err
	}
	if !h.BinaryData {
		return fmt.Errorf("%w: ASCII payloads are not supported", ErrMalformedHeader)
	}
	if h.ElementDataFile == "" {
		return fmt.Errorf("%w: empty ElementDataFile", ErrMalformedHeader)
	}
	for name, v := range map[string][]float64{
		"ElementSpacing":   h.ElementSpacing,
		"Offset":           h.Offset,
		"CenterOfRotation": h.CenterOfRotation,
	} {
		if v != nil && len(v) != h.NDims {
			return fmt.Errorf("%w: %s has %d entries for NDims %d", ErrMalformedHeader, name, len(v), h.NDims)
		}
	}
	if h.TransformMatrix != nil && len(h.TransformMatrix) != h.NDims*h.NDims {
		return fmt.Errorf("%w: TransformMatrix has %d entries for NDims %d",
			ErrMalformedHeader, len(h.TransformMatrix), h.NDims)
	}
	return nil
}

// numValues is the number of components the payload holds. It is only
// meaningful after validate has bounded the product.
func (h *Header) numValues() int {
	n := h.Channels
	for _, d := range h.DimSize {
		n *= d
	}
	return n
}

// spatial converts the header geometry, filling identity defaults
func (h *Header) spatial() models.Spatial {
	s := models.IdentitySpatial(h.NDims)
	if h.Offset != nil {
		s.Origin = append([]float64(nil), h.Offset...)
	}
	if h.ElementSpacing != nil {
		s.Spacing = append([]float64(nil), h.ElementSpacing...)
	}
	if h.TransformMatrix != nil {
		s.Direction = append([]float64(nil), h.TransformMatrix...)
	}
	if h.CenterOfRotation != nil {
		s.CenterOfRotation = append([]float64(nil), h.CenterOfRotation...)
	}
	s.AnatomicalOrientation = h.AnatomicalOrientation
	return s
}

// writeTo emits the header in the key order ITK writers use
func (h *Header) writeTo(w io.Writer) error {
	bw := bufio.NewWriter(w)
	put := func(key, value string) {
		fmt.Fprintf(bw, "%s = %s\n", key, value)
	}

	put("ObjectType", h.ObjectType)
	put("NDims", strconv.Itoa(h.NDims))
	put("BinaryData", formatBool(h.BinaryData))
	put("BinaryDataByteOrderMSB", formatBool(h.ByteOrderMSB))
	put("CompressedData", formatBool(h.CompressedData))
	if h.CompressedData {
		put("CompressedDataSize", strconv.FormatInt(h.CompressedDataSize, 10))
	}
	put("TransformMatrix", formatFloats(h.TransformMatrix))
	put("Offset", formatFloats(h.Offset))
	if h.CenterOfRotation != nil {
		put("CenterOfRotation", formatFloats(h.CenterOfRotation))
	}
	if h.AnatomicalOrientation != "" {
		put("AnatomicalOrientation", h.AnatomicalOrientation)
	}
	put("ElementSpacing", formatFloats(h.ElementSpacing))
	put("DimSize", formatInts(h.DimSize))
	if h.Channels > 1 {
		put("ElementNumberOfChannels", strconv.Itoa(h.Channels))
	}
	put("ElementType", string(h.ElementType))
	put("ElementDataFile", h.ElementDataFile)

	return bw.Flush()
}

func parseInts(value string) ([]int, error) {
	fields := strings.Fields(value)
	out := make([]int, len(fields))
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func parseFloats(value string) ([]float64, error) {
	fields := strings.Fields(value)
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func parseBool(value string) (bool, error) {
	switch strings.ToLower(value) {
	case "true", "1", "yes":
		return true, nil
	case "false", "0", "no":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", value)
}

func formatBool(v bool) string {
	if v {
		return "True"
	}
	return "False"
}

func formatInts(v []int) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, " ")
}

func formatFloats(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = strconv.FormatFloat(x, 'g', -1, 64)
	}
	return strings.Join(parts, " ")
}
