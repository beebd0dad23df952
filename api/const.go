package api

import "errors"

// ErrorOutofMemory system allocator cannot supply more memory and no
// handler was willing to retry.
var ErrorOutofMemory = errors.New("outofmemory")

// ErrorPoolDestroyed pool is used after it was destroyed.
var ErrorPoolDestroyed = errors.New("poolDestroyed")

// ErrorLivePools context is destroyed while pools created from it are
// still alive.
var ErrorLivePools = errors.New("livePools")

// ErrorInvalidSize requested allocation size is negative or overflows.
var ErrorInvalidSize = errors.New("invalidSize")

// ErrorInvalidPost post does not belong to the pool or is no longer
// valid.
var ErrorInvalidPost = errors.New("invalidPost")

// MajorVersion, MinorVersion and PatchVersion of this library.
const (
	MajorVersion = 0
	MinorVersion = 2
	PatchVersion = 0
)
