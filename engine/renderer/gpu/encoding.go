package gpu

import (
	"encoding/binary"
	"math"
)

func putF32(buf []byte, off int, values ...float32) {
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[off+i*4:], math.Float32bits(v))
	}
}

func putU32(buf []byte, off int, values ...uint32) {
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[off+i*4:], v)
	}
}

func putMat(buf []byte, off int, m [16]float32) {
	putF32(buf, off, m[:]...)
}

func getF32(buf []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[off:]))
}

func getU32(buf []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(buf[off:])
}

func getVec3(buf []byte, off int) [3]float32 {
	return [3]float32{getF32(buf, off), getF32(buf, off+4), getF32(buf, off+8)}
}

func getVec4(buf []byte, off int) [4]float32 {
	return [4]float32{getF32(buf, off), getF32(buf, off+4), getF32(buf, off+8), getF32(buf, off+12)}
}

// ReadMat4 decodes a column-major matrix stored at off.
//
// Parameters:
//   - buf: the source bytes
//   - off: the byte offset of the first element
//
// Returns:
//   - [16]float32: the decoded matrix
func ReadMat4(buf []byte, off int) [16]float32 {
	var m [16]float32
	for i := range 16 {
		m[i] = getF32(buf, off+i*4)
	}
	return m
}
