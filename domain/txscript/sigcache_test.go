// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import (
	"crypto/rand"
	"testing"

	"github.com/kaspanet/go-secp256k1"
	"github.com/ledgerkit/ledgerd/util/chainhash"
)

// genRandomSig returns a random message, a signature of the message under the
// public key and the public key. This function is used to generate randomized
// test data.
func genRandomSig() (*chainhash.Hash, *secp256k1.SchnorrSignature, *secp256k1.SchnorrPublicKey, error) {
	privKey, err := secp256k1.GenerateSchnorrKeyPair()
	if err != nil {
		return nil, nil, nil, err
	}

	var msgHash chainhash.Hash
	if _, err := rand.Read(msgHash[:]); err != nil {
		return nil, nil, nil, err
	}

	secpHash := secp256k1.Hash(msgHash)
	sig, err := privKey.SchnorrSign(&secpHash)
	if err != nil {
		return nil, nil, nil, err
	}

	pubKey, err := privKey.SchnorrPublicKey()
	if err != nil {
		return nil, nil, nil, err
	}

	return &msgHash, sig, pubKey, nil
}

// TestSigCacheAddExists tests the ability to add, and later check the
// existence of a signature triplet in the signature cache.
func TestSigCacheAddExists(t *testing.T) {
	sigCache := NewSigCache(200)

	// Generate a random sigCache entry triplet.
	msg1, sig1, key1, err := genRandomSig()
	if err != nil {
		t.Errorf("unable to generate random signature test data")
	}

	// Add the triplet to the signature cache.
	sigCache.Add(*msg1, sig1, key1)

	// The previously added triplet should now be found within the sigcache.
	sig1Copy, _ := secp256k1.DeserializeSchnorrSignatureFromSlice(sig1.Serialize()[:])
	key1Serialized, _ := key1.Serialize()
	key1Copy, _ := secp256k1.DeserializeSchnorrPubKey(key1Serialized[:])
	if !sigCache.Exists(*msg1, sig1Copy, key1Copy) {
		t.Errorf("previously added item not found in signature cache")
	}

	// A different key over the same message is not a hit.
	_, _, key2, err := genRandomSig()
	if err != nil {
		t.Errorf("unable to generate random signature test data")
	}
	if sigCache.Exists(*msg1, sig1, key2) {
		t.Errorf("signature cache matched an entry under a different key")
	}
}

// TestSigCacheAddEvictEntry tests the eviction case where a new signature
// triplet is added to a full signature cache which should trigger the
// eviction of the least recently used entry.
func TestSigCacheAddEvictEntry(t *testing.T) {
	// Create a sigcache that can hold up to 100 entries.
	sigCacheSize := uint(100)
	sigCache := NewSigCache(sigCacheSize)

	// Fill the sigcache up with some random sig triplets.
	first, firstSig, firstKey, err := genRandomSig()
	if err != nil {
		t.Fatalf("unable to generate random signature test data")
	}
	sigCache.Add(*first, firstSig, firstKey)
	for i := uint(1); i < sigCacheSize; i++ {
		msg, sig, key, err := genRandomSig()
		if err != nil {
			t.Fatalf("unable to generate random signature test data")
		}

		sigCache.Add(*msg, sig, key)

		sigCopy, _ := secp256k1.DeserializeSchnorrSignatureFromSlice(sig.Serialize()[:])
		keySerialized, _ := key.Serialize()
		keyCopy, _ := secp256k1.DeserializeSchnorrPubKey(keySerialized[:])
		if !sigCache.Exists(*msg, sigCopy, keyCopy) {
			t.Errorf("previously added item not found in signature" +
				"cache")
		}
	}

	// The sigcache should now have sigCacheSize entries within it.
	if sigCache.Len() != int(sigCacheSize) {
		t.Fatalf("sigcache should now have %v entries, instead it has %v",
			sigCacheSize, sigCache.Len())
	}

	// Add a new entry, this should cause eviction of the least recently
	// used entry, which is the first one added.
	msgNew, sigNew, keyNew, err := genRandomSig()
	if err != nil {
		t.Fatalf("unable to generate random signature test data")
	}
	sigCache.Add(*msgNew, sigNew, keyNew)

	// The sigcache should still have sigCache entries.
	if sigCache.Len() != int(sigCacheSize) {
		t.Fatalf("sigcache should now have %v entries, instead it has %v",
			sigCacheSize, sigCache.Len())
	}

	// The entry added above should be found within the sigcache.
	if !sigCache.Exists(*msgNew, sigNew, keyNew) {
		t.Fatalf("previously added item not found in signature cache")
	}
	if sigCache.Exists(*first, firstSig, firstKey) {
		t.Fatalf("least recently used item was not evicted")
	}
}

// TestSigCacheAddMaxEntriesZeroOrNegative tests that if a sigCache is created
// with a max size <= 0, then no entries are added to the sigcache at all.
func TestSigCacheAddMaxEntriesZeroOrNegative(t *testing.T) {
	// Create a sigcache that can hold up to 0 entries.
	sigCache := NewSigCache(0)

	// Generate a random sigCache entry triplet.
	msg1, sig1, key1, err := genRandomSig()
	if err != nil {
		t.Errorf("unable to generate random signature test data")
	}

	// Add the triplet to the signature cache.
	sigCache.Add(*msg1, sig1, key1)

	// The generated triplet should not be found.
	if sigCache.Exists(*msg1, sig1, key1) {
		t.Errorf("previously added signature found in sigcache, but" +
			"shouldn't have been")
	}

	// There shouldn't be any entries in the sigCache.
	if sigCache.Len() != 0 {
		t.Errorf("%v items found in sigcache, no items should have"+
			"been added", sigCache.Len())
	}
}
