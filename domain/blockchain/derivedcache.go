package blockchain

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/ledgerkit/ledgerd/util/chainhash"
)

// derivedFlags are facts about a block that are expensive to recompute and
// never change for a given block hash.
type derivedFlags uint8

const (
	// derivedScriptsVerified records that every input script of the stored
	// body of the block satisfied the output it spends.
	derivedScriptsVerified derivedFlags = 1 << iota
)

// derivedCache keeps derived facts outside the block records themselves.
// A nil *derivedCache caches nothing.
type derivedCache struct {
	cache *lru.Cache[chainhash.Hash, derivedFlags]
}

// newDerivedCache returns a cache holding up to size blocks. A size of zero
// disables caching.
func newDerivedCache(size int) (*derivedCache, error) {
	if size <= 0 {
		return nil, nil
	}
	cache, err := lru.New[chainhash.Hash, derivedFlags](size)
	if err != nil {
		return nil, err
	}
	return &derivedCache{cache: cache}, nil
}

func (dc *derivedCache) has(hash *chainhash.Hash, flags derivedFlags) bool {
	if dc == nil {
		return false
	}
	cached, ok := dc.cache.Get(*hash)
	return ok && cached&flags == flags
}

// set adds flags to the facts known about hash. Concurrent setters may
// lose a flag, which only costs a recomputation.
func (dc *derivedCache) set(hash *chainhash.Hash, flags derivedFlags) {
	if dc == nil {
		return
	}
	cached, _ := dc.cache.Get(*hash)
	dc.cache.Add(*hash, cached|flags)
}

// invalidate drops every fact known about hash.
func (dc *derivedCache) invalidate(hash *chainhash.Hash) {
	if dc == nil {
		return
	}
	dc.cache.Remove(*hash)
}
