package cache

// Do runs fn once for all concurrent callers that pass the same key. The
// first caller executes fn; callers arriving while it runs wait and receive
// the same value and error. leader reports whether this caller ran fn.
//
// Do does not read or write cache entries. Callers decide what to store.
func (c *Cache[V]) Do(key Key, fn func() (V, error)) (value V, err error, leader bool) {
	ran := false
	v, err, _ := c.flight.Do(key.String(), func() (any, error) {
		ran = true
		return fn()
	})
	if v != nil {
		value = v.(V)
	}
	return value, err, ran
}
