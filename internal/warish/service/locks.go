package service

import (
	"hash/fnv"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	id "warish/pkg/domain"
)

// numLockShards spreads applications over independent RW locks. Two
// applications may share a shard; that only costs contention.
const numLockShards = 256

// keyedLocks serializes work per application inside one process. Readers
// (document verification, uploads) share a shard; writers (transitions,
// issuance) hold it alone.
type keyedLocks struct {
	shards [numLockShards]sync.RWMutex
}

func (l *keyedLocks) shard(appID id.ApplicationID) *sync.RWMutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(appID.String()))
	return &l.shards[h.Sum32()%numLockShards]
}

// Lock takes the exclusive lock and returns its release.
func (l *keyedLocks) Lock(appID id.ApplicationID) func() {
	m := l.shard(appID)
	m.Lock()
	return m.Unlock
}

// RLock takes the shared lock and returns its release.
func (l *keyedLocks) RLock(appID id.ApplicationID) func() {
	m := l.shard(appID)
	m.RLock()
	return m.RUnlock
}

func applicationAttr(appID id.ApplicationID) attribute.KeyValue {
	return attribute.String("warish.application_id", appID.String())
}
