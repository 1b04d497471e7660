package conversation

import (
	"sync"

	"github.com/PabloGalante/situation-relay/internal/domain"
)

// channelLocks serializes work per channel. Entries are reference counted and
// dropped when the last holder unlocks, so idle channels cost nothing.
type channelLocks struct {
	mu    sync.Mutex
	locks map[domain.ChannelID]*channelLock
}

type channelLock struct {
	mu   sync.Mutex
	refs int
}

func newChannelLocks() *channelLocks {
	return &channelLocks{locks: make(map[domain.ChannelID]*channelLock)}
}

// lock blocks until ch is free and returns its unlock func.
func (c *channelLocks) lock(ch domain.ChannelID) func() {
	c.mu.Lock()
	l, ok := c.locks[ch]
	if !ok {
		l = &channelLock{}
		c.locks[ch] = l
	}
	l.refs++
	c.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		c.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(c.locks, ch)
		}
		c.mu.Unlock()
	}
}

func (c *channelLocks) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.locks)
}
