package txscript

import (
	"bytes"
	"fmt"

	"github.com/kaspanet/go-secp256k1"
	"github.com/ledgerkit/ledgerd/app/appmessage"
	"github.com/ledgerkit/ledgerd/util"
)

// schnorrSigLen is the length of a serialized Schnorr signature, without the
// trailing hash type byte.
const schnorrSigLen = 64

// Evaluator checks that signature scripts satisfy the public key scripts of
// the outputs they spend. It is safe for concurrent use.
type Evaluator struct {
	sigCache *SigCache
}

// NewEvaluator returns an Evaluator that memoises valid signatures in
// sigCache. sigCache may be nil.
func NewEvaluator(sigCache *SigCache) *Evaluator {
	return &Evaluator{sigCache: sigCache}
}

// Satisfies returns nil when sigScript, the signature script of input idx of
// tx, satisfies pkScript, the public key script of the output that input
// spends. Any other outcome is reported as an Error.
func (e *Evaluator) Satisfies(pkScript, sigScript []byte, tx *appmessage.MsgTx, idx int) error {
	if idx < 0 || idx >= len(tx.TxIn) {
		str := fmt.Sprintf("transaction input index %d is negative or "+
			">= %d", idx, len(tx.TxIn))
		return scriptError(ErrInvalidIndex, str)
	}
	for _, script := range [][]byte{sigScript, pkScript} {
		if len(script) > MaxScriptSize {
			str := fmt.Sprintf("script size %d is larger than max "+
				"allowed size %d", len(script), MaxScriptSize)
			return scriptError(ErrScriptTooBig, str)
		}
	}

	sigPops, err := parseScript(sigScript)
	if err != nil {
		return err
	}
	if !isPushOnly(sigPops) {
		return scriptError(ErrNotPushOnly,
			"signature script is not push only")
	}
	for _, pop := range sigPops {
		if len(pop.data) > MaxScriptElementSize {
			str := fmt.Sprintf("element size %d exceeds max allowed size %d",
				len(pop.data), MaxScriptElementSize)
			return scriptError(ErrElementTooBig, str)
		}
	}

	pkPops, err := parseScript(pkScript)
	if err != nil {
		return err
	}

	switch typeOfScript(pkPops) {
	case PubKeyHashTy:
		// The signature script must push <sig> <pubkey>, and the
		// pubkey must hash to the 3rd item of the public key script.
		if len(sigPops) != 2 {
			str := fmt.Sprintf("pay-to-pubkey-hash spend pushes %d "+
				"items, expected 2", len(sigPops))
			return scriptError(ErrInvalidStackOperation, str)
		}
		pubKey := sigPops[1].data
		if !bytes.Equal(util.Hash160(pubKey), pkPops[2].data) {
			return scriptError(ErrEqualVerify,
				"public key does not match the public key hash")
		}
		return e.checkSig(sigPops[0].data, pubKey, pkScript, tx, idx)

	case PubKeyTy:
		if len(sigPops) != 1 {
			str := fmt.Sprintf("pay-to-pubkey spend pushes %d "+
				"items, expected 1", len(sigPops))
			return scriptError(ErrInvalidStackOperation, str)
		}
		return e.checkSig(sigPops[0].data, pkPops[0].data, pkScript, tx, idx)

	case TrueTy:
		return nil

	case NullDataTy:
		return scriptError(ErrEarlyReturn,
			"script returned early")
	}

	return scriptError(ErrNonStandardScript,
		"public key script is not of a spendable class")
}

// checkSig verifies sigWithHashType, a Schnorr signature followed by its
// hash type byte, over the signature hash of input idx under the serialized
// public key.
func (e *Evaluator) checkSig(sigWithHashType, serializedPubKey, pkScript []byte,
	tx *appmessage.MsgTx, idx int) error {

	if len(sigWithHashType) != schnorrSigLen+1 {
		str := fmt.Sprintf("signature length is %d, expected %d",
			len(sigWithHashType), schnorrSigLen+1)
		return scriptError(ErrSigLength, str)
	}
	hashType := SigHashType(sigWithHashType[schnorrSigLen])
	if !hashType.IsStandardSigHashType() {
		str := fmt.Sprintf("invalid hash type 0x%x", uint32(hashType))
		return scriptError(ErrInvalidSigHashType, str)
	}

	pubKey, err := secp256k1.DeserializeSchnorrPubKey(serializedPubKey)
	if err != nil {
		return scriptError(ErrPubKeyFormat, err.Error())
	}
	signature, err := secp256k1.DeserializeSchnorrSignatureFromSlice(sigWithHashType[:schnorrSigLen])
	if err != nil {
		return scriptError(ErrSigFormat, err.Error())
	}

	sigHash, err := CalcSignatureHash(tx, idx, pkScript, hashType)
	if err != nil {
		return err
	}

	if e.sigCache != nil && e.sigCache.Exists(*sigHash, signature, pubKey) {
		return nil
	}

	secpHash := secp256k1.Hash(*sigHash)
	if !pubKey.SchnorrVerify(&secpHash, signature) {
		log.Tracef("signature verification failed for input %d of %s", idx, tx.TxID())
		return scriptError(ErrEvalFalse,
			"signature is not valid for the public key")
	}

	if e.sigCache != nil {
		e.sigCache.Add(*sigHash, signature, pubKey)
	}
	return nil
}
