package cmap

// Range calls fn for every key-value pair until fn returns false.
//
// fn runs under a shard read lock and must not call back into the map.
func (m *Map[K, V]) Range(fn func(key K, value V) bool) {
	for _, s := range m.shards {
		s.mu.RLock()
		for k, v := range s.items {
			if !fn(k, v) {
				s.mu.RUnlock()
				return
			}
		}
		s.mu.RUnlock()
	}
}

// Keys returns all keys.
func (m *Map[K, V]) Keys() []K {
	keys := make([]K, 0, m.Count())
	m.Range(func(key K, _ V) bool {
		keys = append(keys, key)
		return true
	})
	return keys
}

// Values returns all values.
func (m *Map[K, V]) Values() []V {
	values := make([]V, 0, m.Count())
	m.Range(func(_ K, value V) bool {
		values = append(values, value)
		return true
	})
	return values
}

// GetOrSet returns the existing value for key, or stores and returns value.
// loaded reports whether the value was already present.
func (m *Map[K, V]) GetOrSet(key K, value V) (actual V, loaded bool) {
	s := m.getShard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.items[key]; ok {
		return existing, true
	}
	s.items[key] = value
	return value, false
}

// GetOrCreate is GetOrSet with a lazily built value: create runs at most
// once per absent key, under the shard lock.
func (m *Map[K, V]) GetOrCreate(key K, create func() V) (actual V, loaded bool) {
	s := m.getShard(key)
	if v, ok := m.Get(key); ok {
		return v, true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.items[key]; ok {
		return existing, true
	}
	v := create()
	s.items[key] = v
	return v, false
}

// SetIfAbsent sets the value only if the key does not exist.
// Returns true if the value was set.
func (m *Map[K, V]) SetIfAbsent(key K, value V) bool {
	_, loaded := m.GetOrSet(key, value)
	return !loaded
}

// Update atomically replaces the value for key with fn's result.
func (m *Map[K, V]) Update(key K, fn func(value V, exists bool) V) V {
	s := m.getShard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.items[key]
	newValue := fn(existing, exists)
	s.items[key] = newValue
	return newValue
}

// Pop removes a key and returns its value.
func (m *Map[K, V]) Pop(key K) (V, bool) {
	s := m.getShard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	val, ok := s.items[key]
	if ok {
		delete(s.items, key)
	}
	return val, ok
}

// CompareAndDelete removes key only while it still maps to a value for
// which match returns true.
func (m *Map[K, V]) CompareAndDelete(key K, match func(V) bool) bool {
	s := m.getShard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	val, ok := s.items[key]
	if !ok || !match(val) {
		return false
	}
	delete(s.items, key)
	return true
}
