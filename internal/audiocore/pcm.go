package audiocore

import (
	"encoding/binary"
	"math"
)

// S16LEToFloat32 decodes little endian signed 16 bit PCM into dst, which is
// grown as needed and returned. A trailing odd byte is ignored.
func S16LEToFloat32(dst []float32, pcm []byte) []float32 {
	n := len(pcm) / 2
	dst = grow(dst, n)
	for i := range n {
		dst[i] = float32(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768
	}
	return dst
}

// IntToFloat32 scales integer samples of the given bit depth to [-1, 1].
func IntToFloat32(dst []float32, samples []int, bitDepth int) []float32 {
	dst = grow(dst, len(samples))
	if bitDepth <= 0 || bitDepth > 32 {
		bitDepth = 16
	}
	scale := float32(1) / float32(int64(1)<<(bitDepth-1))
	for i, s := range samples {
		dst[i] = float32(s) * scale
	}
	return dst
}

// Float32ToS16LE encodes samples as little endian signed 16 bit PCM with
// clipping.
func Float32ToS16LE(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(FloatToInt16(s)))
	}
	return out
}

// FloatToInt16 converts one normalized sample with clipping.
func FloatToInt16(s float32) int16 {
	v := math.Round(float64(s) * 32767)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

func grow(dst []float32, n int) []float32 {
	if cap(dst) < n {
		return make([]float32, n)
	}
	return dst[:n]
}
