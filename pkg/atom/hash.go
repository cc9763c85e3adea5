package atom

import "github.com/cespare/xxhash/v2"

// domain separation prefixes for the two halves of the 128-bit identity.
// Neither the pack nor the teacher carries a BLAKE implementation, so
// identity is built from two independent xxhash passes over the canonical
// bytes (see SPEC_FULL.md §4.1 for the justification); the same xxhash is
// reused, truncated to 32 bits, as the HAMT's key hash.
var (
	lowPrefix  = []byte{0x00}
	highPrefix = []byte{0x01}
)

// Identity computes the content-addressed id of canonically encoded atom
// bytes. Equal input always yields equal output (invariant 5).
func Identity(canonical []byte) ID {
	var id ID

	lowHasher := xxhash.New()
	lowHasher.Write(lowPrefix)
	lowHasher.Write(canonical)
	low := lowHasher.Sum64()

	highHasher := xxhash.New()
	highHasher.Write(highPrefix)
	highHasher.Write(canonical)
	high := highHasher.Sum64()

	for i := 0; i < 8; i++ {
		id[i] = byte(low >> (8 * uint(i)))
		id[8+i] = byte(high >> (8 * uint(i)))
	}
	return id
}

// KeyHash32 returns the 32-bit hash HashDictionary uses to place an
// arbitrary key in the trie: the low 32 bits of the key's canonical-bytes
// xxhash.
func KeyHash32(canonicalKeyBytes []byte) uint32 {
	return uint32(xxhash.Sum64(canonicalKeyBytes))
}
