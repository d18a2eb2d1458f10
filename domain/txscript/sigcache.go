// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/kaspanet/go-secp256k1"
	"github.com/ledgerkit/ledgerd/util/chainhash"
)

// sigCacheEntry represents an entry in the SigCache. Entries within the
// SigCache are keyed according to the sigHash of the signature. In the
// scenario of a cache-hit (according to the sigHash), an additional comparison
// of the signature, and public key will be executed in order to ensure a complete
// match. In the occasion that two sigHashes collide, the newer sigHash will
// simply overwrite the existing entry.
type sigCacheEntry struct {
	sig    *secp256k1.SchnorrSignature
	pubKey *secp256k1.SchnorrPublicKey
}

// SigCache implements a Schnorr signature verification cache with a
// least-recently-used eviction policy. Only valid signatures will be added
// to the cache. The benefits of SigCache are two fold. Firstly, usage of
// SigCache mitigates a DoS attack wherein an attack causes a victim's client
// to hang due to worst-case behavior triggered while processing attacker
// crafted invalid transactions. Secondly, usage of the SigCache introduces a
// signature verification optimization which speeds up the validation of
// transactions within a block, if they've already been seen and verified
// within the mempool.
type SigCache struct {
	validSigs *lru.Cache[chainhash.Hash, sigCacheEntry]
}

// NewSigCache creates and initializes a new instance of SigCache. Its sole
// parameter 'maxEntries' represents the maximum number of entries allowed to
// exist in the SigCache at any particular moment. A maxEntries of zero
// yields a cache that never stores anything.
func NewSigCache(maxEntries uint) *SigCache {
	if maxEntries == 0 {
		return &SigCache{}
	}
	validSigs, err := lru.New[chainhash.Hash, sigCacheEntry](int(maxEntries))
	if err != nil {
		// lru.New only fails on a non-positive size.
		panic(err)
	}
	return &SigCache{validSigs: validSigs}
}

// Exists returns true if an existing entry of 'sig' over 'sigHash' for public
// key 'pubKey' is found within the SigCache. Otherwise, false is returned.
//
// NOTE: This function is safe for concurrent access. Readers won't be blocked
// unless there exists a writer, adding an entry to the SigCache.
func (s *SigCache) Exists(sigHash chainhash.Hash, sig *secp256k1.SchnorrSignature, pubKey *secp256k1.SchnorrPublicKey) bool {
	if s.validSigs == nil {
		return false
	}
	entry, ok := s.validSigs.Get(sigHash)
	return ok && entry.pubKey.IsEqual(pubKey) && entry.sig.IsEqual(sig)
}

// Add adds an entry for a signature over 'sigHash' under public key 'pubKey'
// to the signature cache. When the cache is full the least recently used
// entry is evicted.
//
// NOTE: This function is safe for concurrent access. Writers will block
// simultaneous readers until function execution has concluded.
func (s *SigCache) Add(sigHash chainhash.Hash, sig *secp256k1.SchnorrSignature, pubKey *secp256k1.SchnorrPublicKey) {
	if s.validSigs == nil {
		return
	}
	s.validSigs.Add(sigHash, sigCacheEntry{sig, pubKey})
}

// Len returns the number of cached signatures.
func (s *SigCache) Len() int {
	if s.validSigs == nil {
		return 0
	}
	return s.validSigs.Len()
}
