package kfmt

import "io"

// ringBufferSize is large enough to hold a full 80x25 text screen. It must
// be a power of two.
const ringBufferSize = 2048

// ringBuffer keeps the most recent ringBufferSize bytes written to it. Once
// full, new writes overwrite the oldest unread data.
type ringBuffer struct {
	buffer      [ringBufferSize]byte
	head, count int
}

// Write appends p to the buffer, discarding the oldest bytes on overflow.
func (rb *ringBuffer) Write(p []byte) (int, error) {
	for _, b := range p {
		rb.buffer[(rb.head+rb.count)&(ringBufferSize-1)] = b
		if rb.count == ringBufferSize {
			rb.head = (rb.head + 1) & (ringBufferSize - 1)
		} else {
			rb.count++
		}
	}

	return len(p), nil
}

// Read drains up to len(p) bytes into p and returns io.EOF once the buffer
// is empty.
func (rb *ringBuffer) Read(p []byte) (int, error) {
	if rb.count == 0 {
		return 0, io.EOF
	}

	// copy the contiguous region up to the array end; the next call
	// picks up the wrapped part.
	n := ringBufferSize - rb.head
	if n > rb.count {
		n = rb.count
	}
	n = copy(p, rb.buffer[rb.head:rb.head+n])

	rb.head = (rb.head + n) & (ringBufferSize - 1)
	rb.count -= n
	return n, nil
}

// Len returns the number of unread bytes.
func (rb *ringBuffer) Len() int {
	return rb.count
}
