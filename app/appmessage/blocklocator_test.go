package appmessage

import (
	"reflect"
	"testing"

	"github.com/ledgerkit/ledgerd/util/chainhash"
	"github.com/pkg/errors"
)

func TestBlockLocator(t *testing.T) {
	msg := NewMsgBlockLocator(nil)
	for i := 0; i < MaxBlockLocatorsPerMsg; i++ {
		hash := chainhash.DoubleHashH([]byte{byte(i), byte(i >> 8)})
		err := msg.AddBlockLocatorHash(&hash)
		if err != nil {
			t.Fatalf("AddBlockLocatorHash #%d: %v", i, err)
		}
	}
	err := msg.AddBlockLocatorHash(&chainhash.ZeroHash)
	var msgErr *MessageError
	if !errors.As(err, &msgErr) {
		t.Fatalf("AddBlockLocatorHash: expected MessageError past the limit, got %v", err)
	}

	serialized, err := msg.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	decoded, err := NewMsgBlockLocatorFromBytes(serialized)
	if err != nil {
		t.Fatalf("NewMsgBlockLocatorFromBytes: %v", err)
	}
	if !reflect.DeepEqual(decoded, msg) {
		t.Fatalf("NewMsgBlockLocatorFromBytes: decoded locator differs")
	}

	msg.BlockLocatorHashes = append(msg.BlockLocatorHashes, &chainhash.ZeroHash)
	_, err = msg.Bytes()
	if !errors.As(err, &msgErr) {
		t.Fatalf("Bytes: expected MessageError for an oversized locator, got %v", err)
	}
}
