package api

// Allocator interface for arena style memory management. Memory
// handed out by an Allocator is never moved and is released in bulk
// when the allocator is cleared or destroyed.
type Allocator interface {
	// Alloc allocate `n` bytes. Allocated memory is always 64-bit
	// aligned and is not zeroed when it is reused.
	Alloc(n int64) []byte

	// Calloc same as Alloc, but memory is zeroed.
	Calloc(n int64) []byte

	// Free return a single allocation back to the allocator before
	// it is cleared. Tiny spans are simply forgotten.
	Free(mem []byte)

	// Track register a cleanup callback for `tracked`, the callback
	// is invoked when this allocator is cleared or destroyed.
	Track(tracked interface{}, cleanup Cleanup)

	// Untrack remove the registration for `tracked`, without calling
	// its cleanup.
	Untrack(tracked interface{}) bool

	// Clear release every allocation, child allocator and tracked
	// object, the allocator can be reused afterwards.
	Clear()

	// Destroy clear the allocator and give its memory back. Allocator
	// shall not be used after this call.
	Destroy()
}

// Cleanup callback registered with an Allocator.
type Cleanup func(tracked interface{})
