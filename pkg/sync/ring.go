package sync

import (
	"encoding/binary"
	"fmt"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"
	"github.com/spaolacci/murmur3"
)

// ring is a consistent hash ring over the stripe indices [0, size)
type ring struct {
	hashRing *treemap.Map

	// Cached, since treemap.Map.Min() is O(log n)
	minStripe int
}

// newRing places replicationFactor virtual nodes for each stripe. Node names
// are prefixed so different striped types hash independently.
func newRing(prefix string, size, replicationFactor uint) *ring {
	hashRing := treemap.NewWith(utils.Int64Comparator)

	indexBytes := make([]byte, 4)
	for stripe := 0; stripe < int(size); stripe++ {
		nodeHash, _ := murmur3.Sum128([]byte(fmt.Sprintf("%s%d", prefix, stripe)))

		nodeHashBytes := make([]byte, 8)
		binary.LittleEndian.PutUint64(nodeHashBytes, nodeHash)

		for i := 0; i < int(replicationFactor); i++ {
			binary.LittleEndian.PutUint32(indexBytes, uint32(i))

			hasher := murmur3.New128()
			hasher.Write(nodeHashBytes)
			hasher.Write(indexBytes)
			hash, _ := hasher.Sum128()

			hashRing.Put(int64(hash), stripe)
		}
	}

	r := &ring{hashRing: hashRing}
	if _, minStripe := hashRing.Min(); minStripe != nil {
		r.minStripe = minStripe.(int)
	}
	return r
}

// shard consistently hashes the key onto a stripe index
func (r *ring) shard(key []byte) int {
	raw, _ := murmur3.Sum128(key)
	if _, stripe := r.hashRing.Ceiling(int64(raw)); stripe != nil {
		return stripe.(int)
	}
	return r.minStripe
}
