package conv

import (
	"fmt"
	"math"
)

// IntToUint8 converts int to uint8, rejecting values outside the range.
func IntToUint8(v int) (uint8, error) {
	if v < 0 || v > math.MaxUint8 {
		return 0, fmt.Errorf("conv: %d overflows uint8", v)
	}
	return uint8(v), nil
}

// IntToUint32 converts int to uint32, rejecting values outside the range.
func IntToUint32(v int) (uint32, error) {
	if v < 0 {
		return 0, fmt.Errorf("conv: %d overflows uint32 (negative)", v)
	}
	if uint64(v) > math.MaxUint32 {
		return 0, fmt.Errorf("conv: %d overflows uint32", v)
	}
	return uint32(v), nil
}

// IntToUint64 converts int to uint64, rejecting negative values.
func IntToUint64(v int) (uint64, error) {
	if v < 0 {
		return 0, fmt.Errorf("conv: %d overflows uint64 (negative)", v)
	}
	return uint64(v), nil
}

// Int64ToUint64 converts int64 to uint64, rejecting negative values.
func Int64ToUint64(v int64) (uint64, error) {
	if v < 0 {
		return 0, fmt.Errorf("conv: %d overflows uint64 (negative)", v)
	}
	return uint64(v), nil
}

// Uint64ToInt converts uint64 to int, rejecting values past MaxInt.
func Uint64ToInt(v uint64) (int, error) {
	if v > uint64(math.MaxInt) {
		return 0, fmt.Errorf("conv: %d overflows int", v)
	}
	return int(v), nil
}

// Uint64ToUint32 converts uint64 to uint32, rejecting values past MaxUint32.
func Uint64ToUint32(v uint64) (uint32, error) {
	if v > math.MaxUint32 {
		return 0, fmt.Errorf("conv: %d overflows uint32", v)
	}
	return uint32(v), nil
}

// Uint32ToInt converts uint32 to int, rejecting values past MaxInt.
func Uint32ToInt(v uint32) (int, error) {
	if uint64(v) > uint64(math.MaxInt) {
		return 0, fmt.Errorf("conv: %d overflows int", v)
	}
	return int(v), nil
}
