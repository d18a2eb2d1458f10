package txscript

import (
	"testing"

	"github.com/ledgerkit/ledgerd/app/appmessage"
	"github.com/ledgerkit/ledgerd/util/chainhash"
)

// newSpendingTx returns a transaction with two inputs and a single
// anyone-can-spend output.
func newSpendingTx() *appmessage.MsgTx {
	prevTxID := chainhash.DoubleHashH([]byte("previous transaction"))
	tx := appmessage.NewMsgTx(appmessage.TxVersion)
	tx.AddTxIn(appmessage.NewTxIn(appmessage.NewOutpoint(&prevTxID, 0), nil))
	tx.AddTxIn(appmessage.NewTxIn(appmessage.NewOutpoint(&prevTxID, 1), nil))
	tx.AddTxOut(appmessage.NewTxOut(1000, []byte{OP_TRUE}))
	return tx
}

func TestCalcSignatureHash(t *testing.T) {
	tx := newSpendingTx()
	prevScript := hexToBytes(p2pkhScriptHex)

	hash0, err := CalcSignatureHash(tx, 0, prevScript, SigHashAll)
	if err != nil {
		t.Fatalf("CalcSignatureHash: %s", err)
	}
	hash1, err := CalcSignatureHash(tx, 1, prevScript, SigHashAll)
	if err != nil {
		t.Fatalf("CalcSignatureHash: %s", err)
	}
	if *hash0 == *hash1 {
		t.Fatalf("CalcSignatureHash: inputs 0 and 1 have the same signature hash")
	}

	// Signature scripts of any input are not committed to.
	tx.TxIn[1].SignatureScript = []byte{OP_DATA_1, 0x01}
	tx.TxIn[0].SignatureScript = []byte{OP_DATA_1, 0x02}
	hash0Again, err := CalcSignatureHash(tx, 0, prevScript, SigHashAll)
	if err != nil {
		t.Fatalf("CalcSignatureHash: %s", err)
	}
	if *hash0 != *hash0Again {
		t.Fatalf("CalcSignatureHash: signature hash changed with the signature scripts")
	}
	if len(tx.TxIn[0].SignatureScript) != 2 {
		t.Fatalf("CalcSignatureHash: the transaction was modified")
	}

	// Outputs are committed to.
	tx.TxOut[0].Value++
	hash0Changed, err := CalcSignatureHash(tx, 0, prevScript, SigHashAll)
	if err != nil {
		t.Fatalf("CalcSignatureHash: %s", err)
	}
	if *hash0 == *hash0Changed {
		t.Fatalf("CalcSignatureHash: signature hash did not commit to the outputs")
	}

	_, err = CalcSignatureHash(tx, 2, prevScript, SigHashAll)
	if !IsErrorCode(err, ErrInvalidIndex) {
		t.Fatalf("CalcSignatureHash: expected ErrInvalidIndex, got %v", err)
	}
	_, err = CalcSignatureHash(tx, 0, prevScript, SigHashType(0x2))
	if !IsErrorCode(err, ErrInvalidSigHashType) {
		t.Fatalf("CalcSignatureHash: expected ErrInvalidSigHashType, got %v", err)
	}
}
