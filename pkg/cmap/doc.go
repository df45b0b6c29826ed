// Package cmap provides a concurrent map sharded by key hash.
//
// Keys are mapped to shards with murmur3 over a caller-supplied key
// encoding, so any comparable key type with a stable string form can be
// used (member addresses, object names).
//
// Usage:
//
//	members := cmap.New[domain.Address, *domain.Member](domain.Address.String)
//	members.Set(addr, m)
//	m, ok := members.Get(addr)
//
// Thread Safety:
//
// All operations are thread-safe. Read operations use a per-shard RLock,
// write operations use a per-shard Lock. Range visits shards one at a time
// and therefore does not observe a consistent snapshot.
package cmap
