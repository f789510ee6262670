package camquad

import (
	"encoding/binary"
	"math"
)

// VertexStride is the size in bytes of one encoded Vertex: a float4
// clip-space position followed by a float2 texture coordinate.
const VertexStride = 24

// TexCoordOffset is the byte offset of the texture coordinate within a vertex.
const TexCoordOffset = 16

// QuadVertexCount is the number of vertices drawn per frame (two triangles).
const QuadVertexCount = 6

// Vertex is one corner of the full-screen quad.
type Vertex struct {
	Position [4]float32
	TexCoord [2]float32
}

// quadVertices covers the whole clip space. Texture coordinate (0,0) sits at
// clip (-1,-1): row 0 of an uploaded frame is drawn at the bottom edge.
var quadVertices = [QuadVertexCount]Vertex{
	{Position: [4]float32{-1, -1, 0, 1}, TexCoord: [2]float32{0, 0}},
	{Position: [4]float32{1, -1, 0, 1}, TexCoord: [2]float32{1, 0}},
	{Position: [4]float32{-1, 1, 0, 1}, TexCoord: [2]float32{0, 1}},

	{Position: [4]float32{1, -1, 0, 1}, TexCoord: [2]float32{1, 0}},
	{Position: [4]float32{-1, 1, 0, 1}, TexCoord: [2]float32{0, 1}},
	{Position: [4]float32{1, 1, 0, 1}, TexCoord: [2]float32{1, 1}},
}

// QuadVertices returns a copy of the six quad vertices in draw order.
func QuadVertices() []Vertex {
	out := make([]Vertex, QuadVertexCount)
	copy(out, quadVertices[:])
	return out
}

// EncodeVertices packs vertices into a little-endian byte slice suitable for
// a GPU vertex buffer with VertexStride bytes per vertex.
func EncodeVertices(verts []Vertex) []byte {
	buf := make([]byte, len(verts)*VertexStride)
	for i, v := range verts {
		off := i * VertexStride
		for j, f := range v.Position {
			binary.LittleEndian.PutUint32(buf[off+j*4:], math.Float32bits(f))
		}
		for j, f := range v.TexCoord {
			binary.LittleEndian.PutUint32(buf[off+TexCoordOffset+j*4:], math.Float32bits(f))
		}
	}
	return buf
}
