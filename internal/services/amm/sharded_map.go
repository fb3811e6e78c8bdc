package amm

import (
	"sync"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/k1lox/coinfair/internal/domain"
)

const numShards = 16

// ShardedPoolMap is a sharded map for pools to reduce lock contention on
// reads while a swap holds the engine lock.
type ShardedPoolMap struct {
	shards [numShards]poolShard
}

type poolShard struct {
	mu    sync.RWMutex
	pools map[ethcommon.Address]*domain.Pool
}

func NewShardedPoolMap() *ShardedPoolMap {
	m := &ShardedPoolMap{}
	for i := 0; i < numShards; i++ {
		m.shards[i].pools = make(map[ethcommon.Address]*domain.Pool)
	}
	return m
}

func (m *ShardedPoolMap) getShard(key ethcommon.Address) *poolShard {
	idx := key[0] % numShards
	return &m.shards[idx]
}

func (m *ShardedPoolMap) Get(key ethcommon.Address) (*domain.Pool, bool) {
	shard := m.getShard(key)
	shard.mu.RLock()
	pool, ok := shard.pools[key]
	shard.mu.RUnlock()
	return pool, ok
}

func (m *ShardedPoolMap) Set(key ethcommon.Address, pool *domain.Pool) {
	shard := m.getShard(key)
	shard.mu.Lock()
	shard.pools[key] = pool
	shard.mu.Unlock()
}

func (m *ShardedPoolMap) Len() int {
	total := 0
	for i := 0; i < numShards; i++ {
		m.shards[i].mu.RLock()
		total += len(m.shards[i].pools)
		m.shards[i].mu.RUnlock()
	}
	return total
}

// Range iterates over all pools (acquires locks per shard)
func (m *ShardedPoolMap) Range(f func(key ethcommon.Address, pool *domain.Pool) bool) {
	for i := 0; i < numShards; i++ {
		m.shards[i].mu.RLock()
		for k, v := range m.shards[i].pools {
			if !f(k, v) {
				m.shards[i].mu.RUnlock()
				return
			}
		}
		m.shards[i].mu.RUnlock()
	}
}

func (m *ShardedPoolMap) GetAll() []*domain.Pool {
	total := m.Len()
	result := make([]*domain.Pool, 0, total)
	for i := 0; i < numShards; i++ {
		m.shards[i].mu.RLock()
		for _, pool := range m.shards[i].pools {
			result = append(result, pool)
		}
		m.shards[i].mu.RUnlock()
	}
	return result
}
