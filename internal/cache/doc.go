// Package cache provides a generic, thread-safe LRU cache.
//
//	c := cache.New[string, *program.Program](64)
//	p, err := c.GetOrCreate(key, func() (*program.Program, error) {
//		return compile(desc)
//	})
//
// Failed creations are not cached. The cache must not be copied after
// creation.
package cache
