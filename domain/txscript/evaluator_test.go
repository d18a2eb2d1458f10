package txscript

import (
	"testing"

	"github.com/ledgerkit/ledgerd/app/appmessage"
)

// signInput fills the signature script of input idx of tx with a
// pay-to-pubkey-hash spend by key and returns it.
func signInput(t *testing.T, tx *appmessage.MsgTx, idx int, key *testKey) []byte {
	sigScript, err := SignatureScript(tx, idx, key.p2pkh, SigHashAll, key.keyPair)
	if err != nil {
		t.Fatalf("SignatureScript: %s", err)
	}
	tx.TxIn[idx].SignatureScript = sigScript
	return sigScript
}

func TestSatisfiesPayToPubKeyHash(t *testing.T) {
	t.Parallel()

	key := newTestKey(t)
	otherKey := newTestKey(t)
	evaluator := NewEvaluator(NewSigCache(10))

	tx := newSpendingTx()
	sigScript := signInput(t, tx, 0, key)
	err := evaluator.Satisfies(key.p2pkh, sigScript, tx, 0)
	if err != nil {
		t.Fatalf("Satisfies: unexpected error: %s", err)
	}

	// The signature commits to its input index.
	err = evaluator.Satisfies(key.p2pkh, sigScript, tx, 1)
	if !IsErrorCode(err, ErrEvalFalse) {
		t.Fatalf("Satisfies: expected ErrEvalFalse for a moved signature, got %v", err)
	}

	// A key that does not hash to the committed hash.
	err = evaluator.Satisfies(otherKey.p2pkh, sigScript, tx, 0)
	if !IsErrorCode(err, ErrEqualVerify) {
		t.Fatalf("Satisfies: expected ErrEqualVerify, got %v", err)
	}

	// Missing public key push.
	sigOnly, err := NewScriptBuilder().AddData(make([]byte, schnorrSigLen+1)).Script()
	if err != nil {
		t.Fatalf("Script: %s", err)
	}
	err = evaluator.Satisfies(key.p2pkh, sigOnly, tx, 0)
	if !IsErrorCode(err, ErrInvalidStackOperation) {
		t.Fatalf("Satisfies: expected ErrInvalidStackOperation, got %v", err)
	}

	// Changing an output invalidates the signature.
	tx.TxOut[0].Value--
	err = evaluator.Satisfies(key.p2pkh, sigScript, tx, 0)
	if !IsErrorCode(err, ErrEvalFalse) {
		t.Fatalf("Satisfies: expected ErrEvalFalse after changing an output, got %v", err)
	}
}

func TestSatisfiesPayToPubKey(t *testing.T) {
	t.Parallel()

	key := newTestKey(t)
	otherKey := newTestKey(t)
	evaluator := NewEvaluator(nil)

	tx := newSpendingTx()
	sig, err := RawTxInSignature(tx, 0, key.p2pk, SigHashAll, key.keyPair)
	if err != nil {
		t.Fatalf("RawTxInSignature: %s", err)
	}
	sigScript, err := NewScriptBuilder().AddData(sig).Script()
	if err != nil {
		t.Fatalf("Script: %s", err)
	}
	err = evaluator.Satisfies(key.p2pk, sigScript, tx, 0)
	if err != nil {
		t.Fatalf("Satisfies: unexpected error: %s", err)
	}

	err = evaluator.Satisfies(otherKey.p2pk, sigScript, tx, 0)
	if !IsErrorCode(err, ErrEvalFalse) {
		t.Fatalf("Satisfies: expected ErrEvalFalse for another key, got %v", err)
	}

	badHashType := append(append([]byte{}, sig[:schnorrSigLen]...), 0x02)
	sigScript, err = NewScriptBuilder().AddData(badHashType).Script()
	if err != nil {
		t.Fatalf("Script: %s", err)
	}
	err = evaluator.Satisfies(key.p2pk, sigScript, tx, 0)
	if !IsErrorCode(err, ErrInvalidSigHashType) {
		t.Fatalf("Satisfies: expected ErrInvalidSigHashType, got %v", err)
	}

	sigScript, err = NewScriptBuilder().AddData(sig[:schnorrSigLen]).Script()
	if err != nil {
		t.Fatalf("Script: %s", err)
	}
	err = evaluator.Satisfies(key.p2pk, sigScript, tx, 0)
	if !IsErrorCode(err, ErrSigLength) {
		t.Fatalf("Satisfies: expected ErrSigLength, got %v", err)
	}
}

func TestSatisfiesScriptClasses(t *testing.T) {
	t.Parallel()

	evaluator := NewEvaluator(nil)
	tx := newSpendingTx()

	tests := []struct {
		name      string
		pkScript  []byte
		sigScript []byte
		errCode   ErrorCode
		isErr     bool
	}{
		{name: "anyone can spend with empty sig script", pkScript: []byte{OP_TRUE}},
		{name: "anyone can spend with pushes", pkScript: []byte{OP_TRUE}, sigScript: []byte{OP_1, OP_DATA_1, 0x05}},
		{
			name:      "anyone can spend with non-push sig script",
			pkScript:  []byte{OP_TRUE},
			sigScript: []byte{OP_DUP},
			errCode:   ErrNotPushOnly,
			isErr:     true,
		},
		{name: "nulldata", pkScript: []byte{OP_RETURN}, errCode: ErrEarlyReturn, isErr: true},
		{name: "nonstandard", pkScript: []byte{OP_DUP, OP_EQUAL}, errCode: ErrNonStandardScript, isErr: true},
		{
			name:      "malformed sig script",
			pkScript:  []byte{OP_TRUE},
			sigScript: []byte{OP_DATA_32},
			errCode:   ErrMalformedPush,
			isErr:     true,
		},
		{
			name:     "oversized pk script",
			pkScript: make([]byte, MaxScriptSize+1),
			errCode:  ErrScriptTooBig,
			isErr:    true,
		},
	}

	for _, test := range tests {
		err := evaluator.Satisfies(test.pkScript, test.sigScript, tx, 0)
		if !test.isErr {
			if err != nil {
				t.Errorf("%s: unexpected error: %s", test.name, err)
			}
			continue
		}
		if !IsErrorCode(err, test.errCode) {
			t.Errorf("%s: expected %s, got %v", test.name, test.errCode, err)
		}
	}

	err := evaluator.Satisfies([]byte{OP_TRUE}, nil, tx, len(tx.TxIn))
	if !IsErrorCode(err, ErrInvalidIndex) {
		t.Fatalf("Satisfies: expected ErrInvalidIndex, got %v", err)
	}
}

// TestSatisfiesUsesSigCache ensures verified signatures are remembered and
// that a cache hit requires the same signature and key.
func TestSatisfiesUsesSigCache(t *testing.T) {
	t.Parallel()

	key := newTestKey(t)
	sigCache := NewSigCache(10)
	evaluator := NewEvaluator(sigCache)

	tx := newSpendingTx()
	sigScript := signInput(t, tx, 0, key)
	if sigCache.Len() != 0 {
		t.Fatalf("sigcache is not empty before verification")
	}
	err := evaluator.Satisfies(key.p2pkh, sigScript, tx, 0)
	if err != nil {
		t.Fatalf("Satisfies: unexpected error: %s", err)
	}
	if sigCache.Len() != 1 {
		t.Fatalf("sigcache has %d entries after verification, want 1", sigCache.Len())
	}
	err = evaluator.Satisfies(key.p2pkh, sigScript, tx, 0)
	if err != nil {
		t.Fatalf("Satisfies: unexpected error on a cached signature: %s", err)
	}

	// Invalid signatures are never cached.
	sigScript[2] ^= 0xff
	err = evaluator.Satisfies(key.p2pkh, sigScript, tx, 0)
	if err == nil {
		t.Fatalf("Satisfies: a corrupted signature was accepted")
	}
	if sigCache.Len() != 1 {
		t.Fatalf("sigcache has %d entries after a failed verification, want 1", sigCache.Len())
	}
}
