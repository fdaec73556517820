package metaio

import (
	"encoding/binary"
	"fmt"
	"math"

	"vesselmask/internal/models"
)

// elementSize returns the number of bytes used by one component of type et
func elementSize(et models.ElementType) (int, error) {
	switch et {
	case models.MetChar, models.MetUChar:
		return 1, nil
	case models.MetShort, models.MetUShort:
		return 2, nil
	case models.MetInt, models.MetUInt, models.MetLong, models.MetULong, models.MetFloat:
		return 4, nil
	case models.MetLongLong, models.MetULongLong, models.MetDouble:
		return 8, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedElementType, et)
}

// decodeElements converts count components of raw data into float64 values
func decodeElements(raw []byte, et models.ElementType, order binary.ByteOrder, count int) ([]float64, error) {
	size, err := elementSize(et)
	if err != nil {
		return nil, err
	}
	if len(raw) < count*size {
		return nil, fmt.Errorf("%w: have %d bytes, need %d", ErrShortData, len(raw), count*size)
	}

	values := make([]float64, count)
	for i := range values {
		b := raw[i*size : (i+1)*size]
		switch et {
		case models.MetChar:
			values[i] = float64(int8(b[0]))
		case models.MetUChar:
			values[i] = float64(b[0])
		case models.MetShort:
			values[i] = float64(int16(order.Uint16(b)))
		case models.MetUShort:
			values[i] = float64(order.Uint16(b))
		case models.MetInt, models.MetLong:
			values[i] = float64(int32(order.Uint32(b)))
		case models.MetUInt, models.MetULong:
			values[i] = float64(order.Uint32(b))
		case models.MetLongLong:
			values[i] = float64(int64(order.Uint64(b)))
		case models.MetULongLong:
			values[i] = float64(order.Uint64(b))
		case models.MetFloat:
			values[i] = float64(math.Float32frombits(order.Uint32(b)))
		case models.MetDouble:
			values[i] = math.Float64frombits(order.Uint64(b))
		}
	}
	return values, nil
}

// encodeElements converts values into little-endian raw data of type et.
// Integer types are rounded to the nearest value and clamped to their range.
func encodeElements(values []float64, et models.ElementType) ([]byte, error) {
	size, err := elementSize(et)
	if err != nil {
		return nil, err
	}

	order := binary.LittleEndian
	raw := make([]byte, len(values)*size)
	for i, v := range values {
		b := raw[i*size : (i+1)*size]
		switch et {
		case models.MetChar:
			b[0] = byte(int8(clampRound(v, math.MinInt8, math.MaxInt8)))
		case models.MetUChar:
			b[0] = uint8(clampRound(v, 0, math.MaxUint8))
		case models.MetShort:
			order.PutUint16(b, uint16(int16(clampRound(v, math.MinInt16, math.MaxInt16))))
		case models.MetUShort:
			order.PutUint16(b, uint16(clampRound(v, 0, math.MaxUint16)))
		case models.MetInt, models.MetLong:
			order.PutUint32(b, uint32(int32(clampRound(v, math.MinInt32, math.MaxInt32))))
		case models.MetUInt, models.MetULong:
			order.PutUint32(b, uint32(clampRound(v, 0, math.MaxUint32)))
		case models.MetLongLong:
			order.PutUint64(b, uint64(int64(clampRound(v, math.MinInt64, maxInt64Float))))
		case models.MetULongLong:
			order.PutUint64(b, uint64(clampRound(v, 0, maxUint64Float)))
		case models.MetFloat:
			order.PutUint32(b, math.Float32bits(float32(v)))
		case models.MetDouble:
			order.PutUint64(b, math.Float64bits(v))
		}
	}
	return raw, nil
}

// largest float64 values that still convert to int64 and uint64 exactly
var (
	maxInt64Float  = math.Nextafter(1<<63, 0)
	maxUint64Float = math.Nextafter(1<<64, 0)
)

func clampRound(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	v = math.Round(v)
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
