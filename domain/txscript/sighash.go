// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import (
	"encoding/binary"
	"fmt"

	"github.com/ledgerkit/ledgerd/app/appmessage"
	"github.com/ledgerkit/ledgerd/util/binaryserializer"
	"github.com/ledgerkit/ledgerd/util/chainhash"
)

// SigHashType represents hash type bits at the end of a signature.
type SigHashType uint32

// Hash type bits from the end of a signature.
const (
	SigHashAll SigHashType = 0x1
)

// IsStandardSigHashType returns whether the hash type is one this package
// signs and verifies.
func (hashType SigHashType) IsStandardSigHashType() bool {
	return hashType == SigHashAll
}

// CalcSignatureHash computes the signature hash for the input idx of tx
// spending an output locked by prevPkScript.
//
// The hash commits to a copy of the transaction where every signature script
// is empty except the one of input idx, which is replaced by prevPkScript,
// followed by the 4 byte little endian hash type.
func CalcSignatureHash(tx *appmessage.MsgTx, idx int, prevPkScript []byte,
	hashType SigHashType) (*chainhash.Hash, error) {

	if idx < 0 || idx >= len(tx.TxIn) {
		str := fmt.Sprintf("transaction input index %d is out of range "+
			"(max %d)", idx, len(tx.TxIn)-1)
		return nil, scriptError(ErrInvalidIndex, str)
	}
	if !hashType.IsStandardSigHashType() {
		str := fmt.Sprintf("unsupported signature hash type 0x%x", uint32(hashType))
		return nil, scriptError(ErrInvalidSigHashType, str)
	}

	txCopy := tx.Copy()
	for i := range txCopy.TxIn {
		if i == idx {
			txCopy.TxIn[i].SignatureScript = prevPkScript
		} else {
			txCopy.TxIn[i].SignatureScript = nil
		}
	}

	writer := chainhash.NewDoubleHashWriter()
	err := txCopy.Serialize(writer)
	if err != nil {
		return nil, err
	}
	err = binaryserializer.PutUint32(writer, binary.LittleEndian, uint32(hashType))
	if err != nil {
		return nil, err
	}
	hash := writer.Finalize()
	return &hash, nil
}
