//go:build debug
// +build debug

package malloc

// debugmode enable cursor assertions and catalog validation.
const debugmode = true
