package collections

import (
	"encoding/binary"
	"math"

	"github.com/protobase/protobase/pkg/atom"
	perrors "github.com/protobase/protobase/pkg/errors"
)

// Vector is a fixed-dimension float32 embedding, the element type
// ExactVectorIndex and HNSWVectorIndex search over.
type Vector struct {
	Dim    int
	Values []float32
}

func NewVector(values []float32) Vector {
	return Vector{Dim: len(values), Values: values}
}

// CosineSimilarity returns the cosine of the angle between v and o, in
// [-1, 1]; higher is more similar.
func (v Vector) CosineSimilarity(o Vector) (float64, error) {
	if v.Dim != o.Dim {
		return 0, perrors.Newf("vector dimension mismatch: %d vs %d", v.Dim, o.Dim)
	}
	var dot, magV, magO float64
	for i := range v.Values {
		a, b := float64(v.Values[i]), float64(o.Values[i])
		dot += a * b
		magV += a * a
		magO += b * b
	}
	if magV == 0 || magO == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(magV) * math.Sqrt(magO)), nil
}

// L2Distance returns the Euclidean distance between v and o; lower is
// more similar.
func (v Vector) L2Distance(o Vector) (float64, error) {
	if v.Dim != o.Dim {
		return 0, perrors.Newf("vector dimension mismatch: %d vs %d", v.Dim, o.Dim)
	}
	var sum float64
	for i := range v.Values {
		d := float64(v.Values[i]) - float64(o.Values[i])
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

// ToAtoms encodes v as a TagVectorBlob atom (its values, verbatim
// little-endian IEEE-754 float32 per §4.1) referenced by a TagVectorHeader
// atom carrying the dimension, per §3's "large vectors may be stored as a
// blob atom referenced by a header atom" shape — used uniformly here
// regardless of size, so there is one decode path rather than two.
func (v Vector) ToAtoms() ([]atom.Atom, atom.ID) {
	blobBody := make([]byte, 4*len(v.Values))
	for i, f := range v.Values {
		binary.LittleEndian.PutUint32(blobBody[i*4:], math.Float32bits(f))
	}
	blob := atom.New(atom.TagVectorBlob, blobBody, nil)

	headerBody := appendUint32(nil, uint32(v.Dim))
	header := atom.New(atom.TagVectorHeader, headerBody, []atom.ID{blob.ID})

	return []atom.Atom{blob, header}, header.ID
}

// FromVector reconstructs a Vector from a TagVectorHeader root atom id.
func FromVector(id atom.ID, resolve Resolver) (Vector, error) {
	header, ok := resolve(id)
	if !ok {
		return Vector{}, &perrors.CorruptAtom{Reason: "vector header atom missing"}
	}
	if header.Tag != atom.TagVectorHeader || len(header.Body) != 4 || len(header.Refs) != 1 {
		return Vector{}, &perrors.CorruptAtom{Reason: "malformed vector header atom"}
	}
	dim := int(decodeUint32(header.Body))

	blob, ok := resolve(header.Refs[0])
	if !ok || blob.Tag != atom.TagVectorBlob {
		return Vector{}, &perrors.CorruptAtom{Reason: "vector blob atom missing"}
	}
	if len(blob.Body) != 4*dim {
		return Vector{}, &perrors.CorruptAtom{Reason: "vector blob length mismatch"}
	}

	values := make([]float32, dim)
	for i := range values {
		values[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob.Body[i*4:]))
	}
	return Vector{Dim: dim, Values: values}, nil
}
