//go:build race

package opt

// Race_ reports whether the binary was built with the race detector.
// Stress tests shrink their iteration counts under it.
const Race_ = true
