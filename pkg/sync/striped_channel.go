package sync

import (
	"sync"
)

const hashEntriesPerChannel = 200

// StripedChannel is a partitioned channel that consistently maps a key space
// to a set of channels. Values for the same key are always received, in
// order, from the same channel.
type StripedChannel[T any] struct {
	channels  []chan T
	hashRing  *ring
	closeOnce sync.Once
}

// NewStripedChannel returns a new StripedChannel with count channels, each
// buffering up to queueSize values
func NewStripedChannel[T any](count, queueSize uint) *StripedChannel[T] {
	channels := make([]chan T, count)
	for i := range channels {
		channels[i] = make(chan T, queueSize)
	}

	return &StripedChannel[T]{
		channels: channels,
		hashRing: newRing("chan", count, hashEntriesPerChannel),
	}
}

// GetChannels returns the set of all receiver channels.
func (c *StripedChannel[T]) GetChannels() []<-chan T {
	receivers := make([]<-chan T, len(c.channels))
	for i, channel := range c.channels {
		receivers[i] = channel
	}
	return receivers
}

// BlockingSend sends the value to the channel that maps to the key, waiting
// for queue space
func (c *StripedChannel[T]) BlockingSend(key []byte, value T) {
	c.channels[c.hashRing.shard(key)] <- value
}

// Close closes all underlying channels.
func (c *StripedChannel[T]) Close() {
	c.closeOnce.Do(func() {
		for _, channel := range c.channels {
			close(channel)
		}
	})
}
