// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import (
	"github.com/ledgerkit/ledgerd/domain/chaincfg"
	"github.com/ledgerkit/ledgerd/util"
	"github.com/pkg/errors"
)

// SchnorrPubKeySize is the size of a serialized x-only public key.
const SchnorrPubKeySize = 32

// ScriptClass is an enumeration for the list of standard types of script.
type ScriptClass byte

// Classes of script payment known about in the blockchain.
const (
	NonStandardTy ScriptClass = iota // None of the recognized forms.
	PubKeyHashTy                     // Pay pubkey hash.
	PubKeyTy                         // Pay to pubkey.
	TrueTy                           // Anyone can spend.
	NullDataTy                       // Empty data-only (provably prunable).
)

// scriptClassToName houses the human-readable strings which describe each
// script class.
var scriptClassToName = []string{
	NonStandardTy: "nonstandard",
	PubKeyHashTy:  "pubkeyhash",
	PubKeyTy:      "pubkey",
	TrueTy:        "true",
	NullDataTy:    "nulldata",
}

// String implements the Stringer interface by returning the name of
// the enum script class. If the enum is invalid then "Invalid" will be
// returned.
func (t ScriptClass) String() string {
	if int(t) >= len(scriptClassToName) {
		return "Invalid"
	}
	return scriptClassToName[t]
}

// isPubKeyHash returns true if the script passed is a pay-to-pubkey-hash
// transaction, false otherwise.
func isPubKeyHash(pops []parsedOpcode) bool {
	return len(pops) == 5 &&
		pops[0].opcode == OP_DUP &&
		pops[1].opcode == OP_HASH160 &&
		pops[2].opcode == OP_DATA_20 &&
		pops[3].opcode == OP_EQUALVERIFY &&
		pops[4].opcode == OP_CHECKSIG
}

// isPubKey returns true if the script passed is a pay-to-pubkey transaction,
// false otherwise.
func isPubKey(pops []parsedOpcode) bool {
	return len(pops) == 2 &&
		pops[0].opcode == OP_DATA_32 &&
		pops[1].opcode == OP_CHECKSIG
}

// isTrue returns true if the script passed is the anyone-can-spend OP_TRUE
// script, false otherwise.
func isTrue(pops []parsedOpcode) bool {
	return len(pops) == 1 && pops[0].opcode == OP_TRUE
}

// isNullData returns true if the passed script is a null data transaction,
// false otherwise.
func isNullData(pops []parsedOpcode) bool {
	// A nulldata transaction is either a single OP_RETURN or an
	// OP_RETURN SMALLDATA (where SMALLDATA is a data push up to
	// MaxDataCarrierSize bytes).
	l := len(pops)
	if l == 1 && pops[0].opcode == OP_RETURN {
		return true
	}

	return l == 2 &&
		pops[0].opcode == OP_RETURN &&
		pops[1].isPush() &&
		len(pops[1].data) <= MaxDataCarrierSize
}

// typeOfScript returns the type of the script being inspected from the known
// standard types.
func typeOfScript(pops []parsedOpcode) ScriptClass {
	switch {
	case isPubKeyHash(pops):
		return PubKeyHashTy
	case isPubKey(pops):
		return PubKeyTy
	case isTrue(pops):
		return TrueTy
	case isNullData(pops):
		return NullDataTy
	}
	return NonStandardTy
}

// GetScriptClass returns the class of the script passed.
//
// NonStandardTy will be returned when the script does not parse.
func GetScriptClass(script []byte) ScriptClass {
	pops, err := parseScript(script)
	if err != nil {
		return NonStandardTy
	}
	return typeOfScript(pops)
}

// PayToPubKeyHashScript creates a new script to pay a transaction
// output to a 20-byte pubkey hash. It is expected that the input is a valid
// hash.
func PayToPubKeyHashScript(pubKeyHash []byte) ([]byte, error) {
	return NewScriptBuilder().AddOp(OP_DUP).AddOp(OP_HASH160).
		AddData(pubKeyHash).AddOp(OP_EQUALVERIFY).AddOp(OP_CHECKSIG).
		Script()
}

// PayToPubKeyScript creates a new script to pay a transaction output to a
// serialized x-only Schnorr public key.
func PayToPubKeyScript(serializedPubKey []byte) ([]byte, error) {
	if len(serializedPubKey) != SchnorrPubKeySize {
		return nil, scriptError(ErrPubKeyFormat, "public key must be 32 bytes")
	}
	return NewScriptBuilder().AddData(serializedPubKey).
		AddOp(OP_CHECKSIG).Script()
}

// PayToAddrScript creates a new script to pay a transaction output to the
// specified address.
func PayToAddrScript(addr util.Address) ([]byte, error) {
	const nilAddrErrStr = "unable to generate payment script for nil address"

	switch addr := addr.(type) {
	case *util.AddressPubKeyHash:
		if addr == nil {
			return nil, scriptError(ErrUnsupportedAddress,
				nilAddrErrStr)
		}
		return PayToPubKeyHashScript(addr.ScriptAddress())
	}

	str := errors.Errorf("unable to generate payment script for unsupported "+
		"address type %T", addr)
	return nil, scriptError(ErrUnsupportedAddress, str.Error())
}

// NullDataScript creates a provably-prunable script containing OP_RETURN
// followed by the passed data. An Error with the error code ErrElementTooBig
// will be returned if the length of the passed data exceeds MaxDataCarrierSize.
func NullDataScript(data []byte) ([]byte, error) {
	if len(data) > MaxDataCarrierSize {
		str := errors.Errorf("data size %d is larger than max "+
			"allowed size %d", len(data), MaxDataCarrierSize)
		return nil, scriptError(ErrElementTooBig, str.Error())
	}

	return NewScriptBuilder().AddOp(OP_RETURN).AddData(data).Script()
}

// ExtractScriptPubKeyAddress returns the type of script and its address.
// Pay-to-pubkey scripts report the pubkey hash address of their key. Scripts
// with no address, like OP_TRUE and nulldata scripts, return a nil address.
func ExtractScriptPubKeyAddress(script []byte, params *chaincfg.Params) (ScriptClass, util.Address, error) {
	// No valid address if the script doesn't parse.
	pops, err := parseScript(script)
	if err != nil {
		return NonStandardTy, nil, err
	}

	scriptClass := typeOfScript(pops)
	switch scriptClass {
	case PubKeyHashTy:
		// A pay-to-pubkey-hash script is of the form:
		//  OP_DUP OP_HASH160 <hash> OP_EQUALVERIFY OP_CHECKSIG
		// Therefore the pubkey hash is the 3rd item on the stack.
		addr, err := util.NewAddressPubKeyHash(pops[2].data, params.PubKeyHashAddrID)
		if err != nil {
			return scriptClass, nil, nil
		}
		return scriptClass, addr, nil

	case PubKeyTy:
		addr, err := util.NewAddressPubKeyHashFromPublicKey(pops[0].data, params.PubKeyHashAddrID)
		if err != nil {
			return scriptClass, nil, nil
		}
		return scriptClass, addr, nil
	}

	return scriptClass, nil, nil
}
