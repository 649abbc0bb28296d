package model

import (
	_ "embed"
	"encoding/binary"
	"math"
)

// GPUVertexSource is the WGSL definition of the VertexInput struct read by every mesh pipeline.
// Matches the Vertex layout exactly (32 bytes).
//
//go:embed assets/vertex.wgsl
var GPUVertexSource string

// VertexSize is the byte size of one Vertex in a vertex buffer.
const VertexSize = 32

// Vertex is the GPU-aligned representation of a single mesh vertex.
// Size: 32 bytes, matching the WGSL VertexInput struct (position, normal, uv).
type Vertex struct {
	Position [3]float32 // offset  0
	Normal   [3]float32 // offset 12
	TexCoord [2]float32 // offset 24
}

// Size returns the size of the Vertex struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes.
func (v *Vertex) Size() int {
	return VertexSize
}

// MarshalTo writes the vertex into buf, which must hold at least VertexSize bytes.
func (v *Vertex) MarshalTo(buf []byte) {
	for i, f := range [8]float32{
		v.Position[0], v.Position[1], v.Position[2],
		v.Normal[0], v.Normal[1], v.Normal[2],
		v.TexCoord[0], v.TexCoord[1],
	} {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
}

// VertexBytes serializes the mesh vertices for GPU upload.
//
// Returns:
//   - []byte: len(Vertices)*VertexSize bytes
func (m *Mesh) VertexBytes() []byte {
	buf := make([]byte, len(m.Vertices)*VertexSize)
	for i := range m.Vertices {
		m.Vertices[i].MarshalTo(buf[i*VertexSize:])
	}
	return buf
}

// IndexBytes serializes the mesh indices as little-endian uint32 values.
//
// Returns:
//   - []byte: len(Indices)*4 bytes
func (m *Mesh) IndexBytes() []byte {
	buf := make([]byte, len(m.Indices)*4)
	for i, idx := range m.Indices {
		binary.LittleEndian.PutUint32(buf[i*4:], idx)
	}
	return buf
}
