// Package lock serializes work per key (actor id) either in process or across
// replicas through Redis.
package lock

import (
	"context"
	"hash/fnv"
)

// Locker acquires an exclusive lock on key. The returned release func must be
// called exactly once.
type Locker interface {
	Lock(ctx context.Context, key string) (release func(), err error)
}

const defaultShards = 256

// Sharded hashes keys onto a fixed set of single-slot semaphores. Two keys
// may share a shard; that only costs throughput, never correctness.
type Sharded struct {
	shards []chan struct{}
}

func NewSharded(n int) *Sharded {
	if n <= 0 {
		n = defaultShards
	}
	s := &Sharded{shards: make([]chan struct{}, n)}
	for i := range s.shards {
		s.shards[i] = make(chan struct{}, 1)
	}
	return s
}

func (s *Sharded) Lock(ctx context.Context, key string) (func(), error) {
	shard := s.shards[s.index(key)]
	select {
	case shard <- struct{}{}:
		return func() { <-shard }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Sharded) index(key string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return h.Sum32() % uint32(len(s.shards))
}
