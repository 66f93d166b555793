// Package repack removes row padding from strided camera planes.
//
// This package is INTERNAL - clients use camerarender.RepackPlane.
package repack

// Scratch is a reusable destination for de-strided rows.
//
// The buffer is reallocated only when the packed size changes, otherwise it
// is overwritten in place. The zero value is ready to use.
type Scratch struct {
	buf    []byte
	allocs uint64
}

// Bytes returns the current scratch content (nil before first use).
func (s *Scratch) Bytes() []byte {
	return s.buf
}

// Allocations returns how many times the buffer has been (re)allocated.
func (s *Scratch) Allocations() uint64 {
	return s.allocs
}

// Reset drops the buffer so the next use allocates.
func (s *Scratch) Reset() {
	s.buf = nil
}

// ensure sizes the buffer to exactly n bytes, reallocating iff the size differs.
func (s *Scratch) ensure(n int) []byte {
	if s.buf == nil || len(s.buf) != n {
		s.buf = make([]byte, n)
		s.allocs++
	}
	return s.buf
}

// Destride returns the packed representation of a plane.
//
// Algorithm:
//  1. packedRowBytes = width * elementSize
//  2. stride == packedRowBytes: rows are already dense, data[:packed size]
//     is returned and scratch is left untouched
//  3. otherwise each row i is copied from data[i*stride:] into
//     scratch[i*packedRowBytes:] and the scratch buffer is returned
//
// A final element cut short by the end of data (the V view of a
// semi-planar buffer ends one byte early) is zero-filled. The caller
// guarantees the first byte of every element is inside data.
//
// The returned slice aliases either data or scratch; it is only valid
// until the next call or until the producer reclaims data.
func Destride(data []byte, width, height, stride, elementSize int, scratch *Scratch) []byte {
	rowBytes := width * elementSize
	size := rowBytes * height

	if stride == rowBytes && len(data) >= size {
		return data[:size]
	}

	dst := scratch.ensure(size)
	for i := 0; i < height; i++ {
		row := dst[i*rowBytes : (i+1)*rowBytes]
		start := min(i*stride, len(data))
		end := min(start+rowBytes, len(data))
		if n := copy(row, data[start:end]); n < rowBytes {
			clear(row[n:])
		}
	}
	return dst
}
