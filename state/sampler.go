package state

// sampleStrings returns up to count entries drawn without replacement from
// items using intn as the random source. The input slice is left untouched.
func sampleStrings(items []string, count int, intn func(n int) int) []string {
	if len(items) == 0 || count <= 0 {
		return nil
	}
	if count > len(items) {
		count = len(items)
	}

	pool := append([]string(nil), items...)
	// Partial Fisher-Yates: the first count slots end up uniformly sampled.
	for i := 0; i < count; i++ {
		j := i + intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:count]
}

// sampleOne returns a single random entry, or the empty string for an empty
// slice.
func sampleOne(items []string, intn func(n int) int) string {
	if len(items) == 0 {
		return ""
	}
	return items[intn(len(items))]
}
