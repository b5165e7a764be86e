// Package cmap provides a concurrent sharded map.
//
// Keys are spread over a power-of-two number of shards by a murmur3 hash of
// their string form, each shard guarded by its own RWMutex. Iteration locks
// one shard at a time, so a Range view is not a consistent snapshot.
package cmap
