// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import (
	"testing"

	"github.com/kaspanet/go-secp256k1"
	"github.com/ledgerkit/ledgerd/domain/chaincfg"
	"github.com/ledgerkit/ledgerd/util"
	"github.com/pkg/errors"
)

// testKey bundles a key pair with the scripts paying to it.
type testKey struct {
	keyPair *secp256k1.SchnorrKeyPair
	pubKey  []byte
	address util.Address
	p2pkh   []byte
	p2pk    []byte
}

func newTestKey(t *testing.T) *testKey {
	keyPair, err := secp256k1.GenerateSchnorrKeyPair()
	if err != nil {
		t.Fatalf("GenerateSchnorrKeyPair: %s", err)
	}
	publicKey, err := keyPair.SchnorrPublicKey()
	if err != nil {
		t.Fatalf("SchnorrPublicKey: %s", err)
	}
	serializedPubKey, err := publicKey.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %s", err)
	}
	address, err := util.NewAddressPubKeyHashFromPublicKey(serializedPubKey[:],
		chaincfg.RegressionNetParams.PubKeyHashAddrID)
	if err != nil {
		t.Fatalf("NewAddressPubKeyHashFromPublicKey: %s", err)
	}
	p2pkh, err := PayToAddrScript(address)
	if err != nil {
		t.Fatalf("PayToAddrScript: %s", err)
	}
	p2pk, err := PayToPubKeyScript(serializedPubKey[:])
	if err != nil {
		t.Fatalf("PayToPubKeyScript: %s", err)
	}
	return &testKey{
		keyPair: keyPair,
		pubKey:  serializedPubKey[:],
		address: address,
		p2pkh:   p2pkh,
		p2pk:    p2pk,
	}
}

func mkGetKey(keys ...*testKey) KeyDB {
	return KeyClosure(func(addr util.Address) (*secp256k1.SchnorrKeyPair, error) {
		for _, key := range keys {
			if key.address.EncodeAddress() == addr.EncodeAddress() {
				return key.keyPair, nil
			}
		}
		return nil, errors.New("nope")
	})
}

func TestSignTxOutput(t *testing.T) {
	t.Parallel()

	key := newTestKey(t)
	otherKey := newTestKey(t)
	evaluator := NewEvaluator(nil)
	params := &chaincfg.RegressionNetParams

	tests := []struct {
		name     string
		pkScript []byte
		kdb      KeyDB
		signErr  bool
	}{
		{name: "pay-to-pubkey-hash", pkScript: key.p2pkh, kdb: mkGetKey(key)},
		{name: "pay-to-pubkey", pkScript: key.p2pk, kdb: mkGetKey(otherKey, key)},
		{name: "anyone can spend", pkScript: []byte{OP_TRUE}, kdb: mkGetKey()},
		{name: "unknown key", pkScript: key.p2pkh, kdb: mkGetKey(otherKey), signErr: true},
		{name: "nulldata", pkScript: []byte{OP_RETURN}, kdb: mkGetKey(key), signErr: true},
	}

	for _, test := range tests {
		tx := newSpendingTx()
		for idx := range tx.TxIn {
			sigScript, err := SignTxOutput(params, tx, idx, test.pkScript, SigHashAll, test.kdb)
			if test.signErr {
				if err == nil {
					t.Errorf("%s: expected a signing error", test.name)
				}
				break
			}
			if err != nil {
				t.Errorf("%s: SignTxOutput: %s", test.name, err)
				break
			}
			tx.TxIn[idx].SignatureScript = sigScript
		}
		if test.signErr {
			continue
		}

		for idx, txIn := range tx.TxIn {
			err := evaluator.Satisfies(test.pkScript, txIn.SignatureScript, tx, idx)
			if err != nil {
				t.Errorf("%s: input %d does not satisfy its script: %s", test.name, idx, err)
			}
		}
	}
}
