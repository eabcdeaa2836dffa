// Package allocator manages the internal VLAN id pool.
//
// Held ids are tracked in a bitmap indexed by VLAN id: bit set means the id
// is allocated. The whole 12-bit id space fits in 512 bytes, so the bitmap
// always covers 0-4095 and a range change never needs to move bits.
package allocator

import "fmt"

// Bitmap is a fixed-size bit set. It is not safe for concurrent use; Pool
// serializes access.
type Bitmap struct {
	bits      []byte
	size      int
	allocated int
}

// NewBitmap creates a bitmap with size bits, all clear.
func NewBitmap(size int) *Bitmap {
	return &Bitmap{
		bits: make([]byte, (size+7)/8),
		size: size,
	}
}

// Set marks index as allocated.
func (b *Bitmap) Set(index int) error {
	if index < 0 || index >= b.size {
		return fmt.Errorf("index %d out of range [0, %d)", index, b.size)
	}
	if b.IsSet(index) {
		return fmt.Errorf("bit %d is already set", index)
	}
	b.bits[index/8] |= 1 << uint(index%8)
	b.allocated++
	return nil
}

// Clear marks index as free. Clearing a clear bit is a no-op.
func (b *Bitmap) Clear(index int) error {
	if index < 0 || index >= b.size {
		return fmt.Errorf("index %d out of range [0, %d)", index, b.size)
	}
	if b.IsSet(index) {
		b.bits[index/8] &^= 1 << uint(index%8)
		b.allocated--
	}
	return nil
}

// IsSet reports whether index is allocated. Out-of-range indexes are
// reported clear.
func (b *Bitmap) IsSet(index int) bool {
	if index < 0 || index >= b.size {
		return false
	}
	return b.bits[index/8]&(1<<uint(index%8)) != 0
}

// FindFirstClear returns the lowest clear index in [from, to], or -1.
func (b *Bitmap) FindFirstClear(from, to int) int {
	for i := max(from, 0); i <= to && i < b.size; i++ {
		if !b.IsSet(i) {
			return i
		}
	}
	return -1
}

// FindLastClear returns the highest clear index in [from, to], or -1.
func (b *Bitmap) FindLastClear(from, to int) int {
	for i := min(to, b.size-1); i >= from && i >= 0; i-- {
		if !b.IsSet(i) {
			return i
		}
	}
	return -1
}

// CountSet returns the number of set bits in [from, to].
func (b *Bitmap) CountSet(from, to int) int {
	n := 0
	for i := max(from, 0); i <= to && i < b.size; i++ {
		if b.IsSet(i) {
			n++
		}
	}
	return n
}

// Size returns the total number of bits.
func (b *Bitmap) Size() int {
	return b.size
}

// Allocated returns the number of set bits.
func (b *Bitmap) Allocated() int {
	return b.allocated
}
