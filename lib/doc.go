// Package lib provide small helpers shared by allocator packages,
// size histograms, stats formatting and zero-copy conversions.
package lib
