package blockchain

import (
	"bytes"
	"io"

	"github.com/ledgerkit/ledgerd/app/appmessage"
	"github.com/ledgerkit/ledgerd/database"
	"github.com/ledgerkit/ledgerd/util/chainhash"
	"github.com/pkg/errors"
)

// TxLocation locates a transaction inside the flat block store: the block
// that carries it, the store handle of that block, and the byte range of
// the transaction within the serialized block.
type TxLocation struct {
	BlockHash     chainhash.Hash
	BlockLocation database.StoreLocation
	TxOffset      uint32
	TxLength      uint32
}

// UxoOutput is one output of an indexed transaction. SpentBy is nil while
// the output is unspent.
type UxoOutput struct {
	Amount   uint64
	PkScript []byte
	SpentBy  *TxLocation
}

// IsSpent returns whether the output has been spent by a connected
// transaction.
func (output *UxoOutput) IsSpent() bool {
	return output.SpentBy != nil
}

// UxoEntry is the per-transaction record of the UXO index.
type UxoEntry struct {
	Location    TxLocation
	BlockHeight uint64
	IsCoinbase  bool
	Outputs     []*UxoOutput
}

// Clone returns a deep copy of the entry so a view can be modified without
// affecting the entry it was loaded from.
func (entry *UxoEntry) Clone() *UxoEntry {
	if entry == nil {
		return nil
	}

	clone := &UxoEntry{
		Location:    entry.Location,
		BlockHeight: entry.BlockHeight,
		IsCoinbase:  entry.IsCoinbase,
		Outputs:     make([]*UxoOutput, len(entry.Outputs)),
	}
	for i, output := range entry.Outputs {
		clonedOutput := *output
		if output.SpentBy != nil {
			spentBy := *output.SpentBy
			clonedOutput.SpentBy = &spentBy
		}
		clone.Outputs[i] = &clonedOutput
	}
	return clone
}

// IsFullySpent returns whether every output of the transaction is spent.
func (entry *UxoEntry) IsFullySpent() bool {
	for _, output := range entry.Outputs {
		if !output.IsSpent() {
			return false
		}
	}
	return true
}

// newUxoEntry builds the entry of a freshly connected transaction. Every
// output starts unspent.
func newUxoEntry(msgTx *appmessage.MsgTx, location TxLocation, blockHeight uint64,
	isCoinbase bool) *UxoEntry {

	entry := &UxoEntry{
		Location:    location,
		BlockHeight: blockHeight,
		IsCoinbase:  isCoinbase,
		Outputs:     make([]*UxoOutput, len(msgTx.TxOut)),
	}
	for i, txOut := range msgTx.TxOut {
		entry.Outputs[i] = &UxoOutput{
			Amount:   txOut.Value,
			PkScript: txOut.PkScript,
		}
	}
	return entry
}

func writeTxLocation(w io.Writer, location *TxLocation) error {
	err := appmessage.WriteElement(w, &location.BlockHash)
	if err != nil {
		return err
	}
	err = appmessage.WriteVarBytes(w, location.BlockLocation.Serialize())
	if err != nil {
		return err
	}
	return appmessage.WriteElements(w, location.TxOffset, location.TxLength)
}

func readTxLocation(r io.Reader, location *TxLocation) error {
	err := appmessage.ReadElement(r, &location.BlockHash)
	if err != nil {
		return err
	}
	serializedLocation, err := appmessage.ReadVarBytes(r, maxBlockLocationSize, "BlockLocation")
	if err != nil {
		return err
	}
	location.BlockLocation.Deserialize(serializedLocation)
	return appmessage.ReadElements(r, &location.TxOffset, &location.TxLength)
}

// serializeUxoEntry encodes an entry as: tx location, block height,
// coinbase flag, output count, then per output its amount, script, spent
// flag and, when spent, the spender's location.
func serializeUxoEntry(entry *UxoEntry) ([]byte, error) {
	w := &bytes.Buffer{}
	err := writeTxLocation(w, &entry.Location)
	if err != nil {
		return nil, err
	}
	err = appmessage.WriteElements(w, entry.BlockHeight, entry.IsCoinbase)
	if err != nil {
		return nil, err
	}
	err = appmessage.WriteVarInt(w, uint64(len(entry.Outputs)))
	if err != nil {
		return nil, err
	}
	for _, output := range entry.Outputs {
		err = appmessage.WriteElement(w, output.Amount)
		if err != nil {
			return nil, err
		}
		err = appmessage.WriteVarBytes(w, output.PkScript)
		if err != nil {
			return nil, err
		}
		err = appmessage.WriteElement(w, output.IsSpent())
		if err != nil {
			return nil, err
		}
		if output.IsSpent() {
			err = writeTxLocation(w, output.SpentBy)
			if err != nil {
				return nil, err
			}
		}
	}
	return w.Bytes(), nil
}

// deserializeUxoEntry decodes an entry encoded by serializeUxoEntry.
func deserializeUxoEntry(serialized []byte) (*UxoEntry, error) {
	r := bytes.NewReader(serialized)
	entry := &UxoEntry{}
	err := readTxLocation(r, &entry.Location)
	if err != nil {
		return nil, err
	}
	err = appmessage.ReadElements(r, &entry.BlockHeight, &entry.IsCoinbase)
	if err != nil {
		return nil, err
	}
	outputCount, err := appmessage.ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	if outputCount > uint64(r.Len()) {
		return nil, errors.Errorf("UXO entry declares %d outputs in %d bytes",
			outputCount, r.Len())
	}

	entry.Outputs = make([]*UxoOutput, outputCount)
	for i := range entry.Outputs {
		output := &UxoOutput{}
		err = appmessage.ReadElement(r, &output.Amount)
		if err != nil {
			return nil, err
		}
		output.PkScript, err = appmessage.ReadVarBytes(r, appmessage.MaxScriptSize, "PkScript")
		if err != nil {
			return nil, err
		}
		var isSpent bool
		err = appmessage.ReadElement(r, &isSpent)
		if err != nil {
			return nil, err
		}
		if isSpent {
			output.SpentBy = &TxLocation{}
			err = readTxLocation(r, output.SpentBy)
			if err != nil {
				return nil, err
			}
		}
		entry.Outputs[i] = output
	}
	if r.Len() != 0 {
		return nil, errors.Errorf("%d trailing bytes in UXO entry", r.Len())
	}
	return entry, nil
}
