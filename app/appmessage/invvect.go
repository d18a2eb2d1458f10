// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package appmessage

import (
	"fmt"
	"io"

	"github.com/ledgerkit/ledgerd/util/chainhash"
)

// InvType represents the allowed types of inventory vectors. See InvVect.
type InvType uint32

// These constants define the various supported inventory vector types.
const (
	InvTypeError InvType = 0
	InvTypeTx    InvType = 1
	InvTypeBlock InvType = 2
)

// Map of inventory types back to their constant names for pretty printing.
var ivStrings = map[InvType]string{
	InvTypeError: "ERROR",
	InvTypeTx:    "MSG_TX",
	InvTypeBlock: "MSG_BLOCK",
}

// String returns the InvType in human-readable form.
func (invtype InvType) String() string {
	if s, ok := ivStrings[invtype]; ok {
		return s
	}

	return fmt.Sprintf("Unknown InvType (%d)", uint32(invtype))
}

// InvVect defines an inventory vector which is used to describe data,
// as specified by the Type field, that a node has or should be told about.
type InvVect struct {
	Type InvType        // Type of data
	Hash chainhash.Hash // Hash of the data
}

// NewInvVect returns a new InvVect using the provided type and hash.
func NewInvVect(typ InvType, hash *chainhash.Hash) *InvVect {
	return &InvVect{
		Type: typ,
		Hash: *hash,
	}
}

// String returns the InvVect in the human-readable form "TYPE hash".
func (iv *InvVect) String() string {
	return fmt.Sprintf("%s %s", iv.Type, iv.Hash)
}

// ReadInvVect reads an encoded InvVect from r.
func ReadInvVect(r io.Reader, iv *InvVect) error {
	return ReadElements(r, &iv.Type, &iv.Hash)
}

// WriteInvVect serializes an InvVect to w.
func WriteInvVect(w io.Writer, iv *InvVect) error {
	return WriteElements(w, iv.Type, &iv.Hash)
}
