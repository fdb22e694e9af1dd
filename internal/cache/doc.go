// Package cache provides a small generic LRU cache.
//
// It memoizes values that are expensive to derive and safe to share, such as
// parsed shader modules reused when a program is recreated after device loss:
//
//	c := cache.New[string, *ir.Module](64)
//	m, err := c.GetOrCreate(src, func() (*ir.Module, error) { return parse(src) })
//
// Failed creations are not cached. Cache is safe for concurrent use and must
// not be copied after creation.
package cache
