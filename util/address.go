// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package util

import (
	"github.com/btcsuite/btcutil/base58"
	"github.com/pkg/errors"
)

// ErrUnknownAddressType describes an error where an address can not
// decoded as a specific address type due to its payload length.
var ErrUnknownAddressType = errors.New("unknown address type")

// ErrChecksumMismatch describes an error where decoding failed due
// to a bad checksum.
var ErrChecksumMismatch = errors.New("checksum mismatch")

// Address is an interface type for any type of destination a transaction
// output may spend to.
type Address interface {
	// String returns the string encoding of the transaction output
	// destination.
	String() string

	// EncodeAddress returns the string encoding of the payment address
	// associated with the Address value.
	EncodeAddress() string

	// ScriptAddress returns the raw bytes of the address to be used
	// when inserting the address into a txout's script.
	ScriptAddress() []byte

	// IsForNet returns whether or not the address is associated with the
	// passed network address identifier.
	IsForNet(netID byte) bool
}

// DecodeAddress decodes the base58check encoding of an address and returns
// the Address if addr is a valid encoding for a known address type of the
// network identified by expectedNetID.
func DecodeAddress(addr string, expectedNetID byte) (Address, error) {
	decoded, netID, err := base58.CheckDecode(addr)
	if err != nil {
		if errors.Is(err, base58.ErrChecksum) {
			return nil, errors.WithStack(ErrChecksumMismatch)
		}
		return nil, errors.Wrapf(err, "decoded address is of unknown format")
	}
	if netID != expectedNetID {
		return nil, errors.Errorf("address %s is for network id 0x%02x, "+
			"expected 0x%02x", addr, netID, expectedNetID)
	}

	switch len(decoded) {
	case Hash160Size:
		return newAddressPubKeyHash(decoded, netID)
	default:
		return nil, errors.WithStack(ErrUnknownAddressType)
	}
}

// Hash160Size is the size of a RIPEMD160(SHA256(data)) digest.
const Hash160Size = 20

// AddressPubKeyHash is an Address for a pay-to-pubkey-hash (P2PKH)
// transaction.
type AddressPubKeyHash struct {
	hash  [Hash160Size]byte
	netID byte
}

// NewAddressPubKeyHash returns a new AddressPubKeyHash. pkHash must
// be 20 bytes.
func NewAddressPubKeyHash(pkHash []byte, netID byte) (*AddressPubKeyHash, error) {
	return newAddressPubKeyHash(pkHash, netID)
}

// NewAddressPubKeyHashFromPublicKey returns a new AddressPubKeyHash from the
// given serialized public key.
func NewAddressPubKeyHashFromPublicKey(publicKey []byte, netID byte) (*AddressPubKeyHash, error) {
	return newAddressPubKeyHash(Hash160(publicKey), netID)
}

// newAddressPubKeyHash is the internal API to create a pubkey hash address
// with a known leading identifier byte for a network, rather than looking
// it up through its parameters. This is useful when creating a new address
// structure from a string encoding where the identifer byte is already
// known.
func newAddressPubKeyHash(pkHash []byte, netID byte) (*AddressPubKeyHash, error) {
	// Check for a valid pubkey hash length.
	if len(pkHash) != Hash160Size {
		return nil, errors.New("pkHash must be 20 bytes")
	}

	addr := &AddressPubKeyHash{netID: netID}
	copy(addr.hash[:], pkHash)
	return addr, nil
}

// EncodeAddress returns the string encoding of a pay-to-pubkey-hash
// address. Part of the Address interface.
func (a *AddressPubKeyHash) EncodeAddress() string {
	return base58.CheckEncode(a.hash[:], a.netID)
}

// ScriptAddress returns the bytes to be included in a txout script to pay
// to a pubkey hash. Part of the Address interface.
func (a *AddressPubKeyHash) ScriptAddress() []byte {
	return a.hash[:]
}

// IsForNet returns whether or not the pay-to-pubkey-hash address is associated
// with the passed network identifier.
func (a *AddressPubKeyHash) IsForNet(netID byte) bool {
	return a.netID == netID
}

// String returns a human-readable string for the pay-to-pubkey-hash address.
// This is equivalent to calling EncodeAddress, but is provided so the type can
// be used as a fmt.Stringer.
func (a *AddressPubKeyHash) String() string {
	return a.EncodeAddress()
}

// Hash160 returns the underlying array of the pubkey hash. This can be useful
// when an array is more appropiate than a slice (for example, when used as map
// keys).
func (a *AddressPubKeyHash) Hash160() *[Hash160Size]byte {
	return &a.hash
}
