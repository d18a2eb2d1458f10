// Copyright (c) 2013-2015 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import (
	"github.com/kaspanet/go-secp256k1"
	"github.com/ledgerkit/ledgerd/app/appmessage"
	"github.com/ledgerkit/ledgerd/domain/chaincfg"
	"github.com/ledgerkit/ledgerd/util"
	"github.com/pkg/errors"
)

// RawTxInSignature returns the serialized Schnorr signature for the input idx of
// the given transaction, with hashType appended to it.
func RawTxInSignature(tx *appmessage.MsgTx, idx int, prevPkScript []byte,
	hashType SigHashType, key *secp256k1.SchnorrKeyPair) ([]byte, error) {

	hash, err := CalcSignatureHash(tx, idx, prevPkScript, hashType)
	if err != nil {
		return nil, err
	}
	secpHash := secp256k1.Hash(*hash)
	signature, err := key.SchnorrSign(&secpHash)
	if err != nil {
		return nil, errors.Errorf("cannot sign tx input: %s", err)
	}

	return append(signature.Serialize()[:], byte(hashType)), nil
}

// SignatureScript creates an input signature script for tx to spend coins sent
// from a previous output to the owner of privKey. tx must include all
// transaction inputs and outputs, however txin scripts are allowed to be filled
// or empty. The returned script is calculated to be used as the idx'th txin
// sigscript for tx. prevPkScript is the public key script of the previous
// output being used as the idx'th input.
func SignatureScript(tx *appmessage.MsgTx, idx int, prevPkScript []byte,
	hashType SigHashType, privKey *secp256k1.SchnorrKeyPair) ([]byte, error) {

	sig, err := RawTxInSignature(tx, idx, prevPkScript, hashType, privKey)
	if err != nil {
		return nil, err
	}

	pk, err := privKey.SchnorrPublicKey()
	if err != nil {
		return nil, err
	}
	pkData, err := pk.Serialize()
	if err != nil {
		return nil, err
	}

	return NewScriptBuilder().AddData(sig).AddData(pkData[:]).Script()
}

// p2pkSignatureScript creates the signature script of a pay-to-pubkey spend,
// which carries the signature alone.
func p2pkSignatureScript(tx *appmessage.MsgTx, idx int, prevPkScript []byte,
	hashType SigHashType, privKey *secp256k1.SchnorrKeyPair) ([]byte, error) {

	sig, err := RawTxInSignature(tx, idx, prevPkScript, hashType, privKey)
	if err != nil {
		return nil, err
	}

	return NewScriptBuilder().AddData(sig).Script()
}

// KeyDB is an interface type provided to SignTxOutput, it encapsulates
// any user state required to get the private keys for an address.
type KeyDB interface {
	GetKey(util.Address) (*secp256k1.SchnorrKeyPair, error)
}

// KeyClosure implements KeyDB with a closure.
type KeyClosure func(util.Address) (*secp256k1.SchnorrKeyPair, error)

// GetKey implements KeyDB by returning the result of calling the closure.
func (kc KeyClosure) GetKey(address util.Address) (*secp256k1.SchnorrKeyPair, error) {
	return kc(address)
}

// SignTxOutput signs output idx of the given tx to resolve the script given in
// pkScript with a signature type of hashType. Any keys required will be
// looked up by calling kdb.GetKey with the address of the script. Pay-to-pubkey
// keys are looked up by the pubkey hash address of the key.
func SignTxOutput(params *chaincfg.Params, tx *appmessage.MsgTx, idx int,
	pkScript []byte, hashType SigHashType, kdb KeyDB) ([]byte, error) {

	class, address, err := ExtractScriptPubKeyAddress(pkScript, params)
	if err != nil {
		return nil, err
	}

	switch class {
	case PubKeyHashTy, PubKeyTy:
		if address == nil {
			return nil, errors.Errorf("no address for %s script", class)
		}
		key, err := kdb.GetKey(address)
		if err != nil {
			return nil, err
		}
		if class == PubKeyTy {
			return p2pkSignatureScript(tx, idx, pkScript, hashType, key)
		}
		return SignatureScript(tx, idx, pkScript, hashType, key)

	case TrueTy:
		return []byte{}, nil

	default:
		return nil, errors.Errorf("can't sign %s scripts", class)
	}
}
