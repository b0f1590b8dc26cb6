package core

import (
	"github.com/bits-and-blooms/bitset"
)

// Bitset is an immutable, named membership set. SEGMENT_MEMBER criteria
// hash a unit id to a bit index and test membership here.
type Bitset struct {
	bits *bitset.BitSet
}

// NewBitset builds a Bitset from a sorted or unsorted list of set bit
// indices, as listed in a ResolverState snapshot's bitset entry.
func NewBitset(size uint, setBits []uint) Bitset {
	bs := bitset.New(size)
	for _, b := range setBits {
		bs.Set(b)
	}
	return Bitset{bits: bs}
}

// Test reports whether bit i is a member. A bitset is always large
// enough to have been built with at least i+1 bits if the reference is
// valid; Test returns false for out-of-range indices rather than
// panicking, since a hash can land outside an undersized test fixture.
func (b Bitset) Test(i uint) bool {
	if b.bits == nil {
		return false
	}
	return b.bits.Test(i)
}

// Len returns the number of bits the set was sized for.
func (b Bitset) Len() uint {
	if b.bits == nil {
		return 0
	}
	return b.bits.Len()
}

// segmentMemberBitIndex derives the bit index tested by a SEGMENT_MEMBER
// criterion from a unit id string and the bitset's size, using the same
// hash/modulus construction as bucket assignment so membership checks
// are stable across a bitset built with any power-of-two-free size.
func segmentMemberBitIndex(unit string, size uint) uint {
	if size == 0 {
		return 0
	}
	h := fullHash(nil, unit)
	return uint(h) % size
}
