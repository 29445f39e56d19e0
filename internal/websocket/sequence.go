package websocket

import (
	"sync"
	"sync/atomic"
)

// Per-topic monotonic sequence numbers let clients detect gaps in the
// broadcast stream.
var seqMap sync.Map // map[string]*uint64

func nextSeq(topic string) uint64 {
	v, _ := seqMap.LoadOrStore(topic, new(uint64))
	return atomic.AddUint64(v.(*uint64), 1)
}
