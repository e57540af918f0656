//go:build pflock_cachelinesize_256

package opt

// CacheLineSize_ is forced to 256 bytes via the pflock_cachelinesize_256 build tag.
// Use: go build -tags=pflock_cachelinesize_256
const CacheLineSize_ = 256
