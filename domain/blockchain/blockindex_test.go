package blockchain

import (
	"math/big"
	"reflect"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/ledgerkit/ledgerd/app/appmessage"
	"github.com/ledgerkit/ledgerd/database"
	"github.com/ledgerkit/ledgerd/domain/chaincfg"
	"github.com/ledgerkit/ledgerd/util/chainhash"
)

func testHeader(prevHash *chainhash.Hash, nonce uint32, timestamp time.Time) *appmessage.BlockHeader {
	return &appmessage.BlockHeader{
		Version:   1,
		PrevBlock: *prevHash,
		Timestamp: timestamp,
		Bits:      chaincfg.RegressionNetParams.PowLimitBits,
		Nonce:     nonce,
	}
}

// buildTestIndex returns an index holding the regtest genesis block and a
// chain of length blocks on top of it. The ids of the chain are returned
// genesis first.
func buildTestIndex(t *testing.T, length int) (*blockIndex, []nodeID) {
	index := newBlockIndex()
	genesisHeader := &chaincfg.RegressionNetParams.GenesisBlock.Header
	genesis, err := index.insertHeader(noNode, genesisHeader, nil)
	if err != nil {
		t.Fatalf("insertHeader: genesis: %s", err)
	}
	ids := []nodeID{genesis}
	for i := 0; i < length; i++ {
		parent := index.node(ids[len(ids)-1])
		header := testHeader(&parent.hash, 0, time.Unix(parent.timestamp, 0).Add(time.Minute))
		id, err := index.insertHeader(parent.id, header, nil)
		if err != nil {
			t.Fatalf("insertHeader: block %d: %s", i, err)
		}
		ids = append(ids, id)
	}
	return index, ids
}

func TestInsertHeader(t *testing.T) {
	index, ids := buildTestIndex(t, 3)
	genesisTime := chaincfg.RegressionNetParams.GenesisBlock.Header.Timestamp

	for i, id := range ids {
		node := index.node(id)
		if node.height != uint64(i) {
			t.Errorf("block %d: got height %d", i, node.height)
		}
		wantWork := new(big.Int).Mul(big.NewInt(int64(i+1)),
			index.node(ids[0]).workSum)
		if index.cumulativeWork(id).Cmp(wantWork) != 0 {
			t.Errorf("block %d: got cumulative work %s, want %s", i,
				index.cumulativeWork(id), wantWork)
		}
	}

	tests := []struct {
		name     string
		parentID nodeID
		header   *appmessage.BlockHeader
		wantCode ErrorCode
	}{
		{
			name:     "duplicate",
			parentID: ids[0],
			header:   index.node(ids[1]).Header(),
			wantCode: ErrDuplicateBlock,
		},
		{
			name:     "no parent for a non-genesis header",
			parentID: noNode,
			header:   testHeader(&chainhash.Hash{1}, 0, genesisTime),
			wantCode: ErrParentUnknown,
		},
		{
			name:     "parent id out of range",
			parentID: 100,
			header:   testHeader(&index.node(ids[3]).hash, 0, genesisTime),
			wantCode: ErrParentUnknown,
		},
		{
			name:     "parent id does not match the previous hash",
			parentID: ids[1],
			header:   testHeader(&index.node(ids[3]).hash, 0, genesisTime),
			wantCode: ErrParentUnknown,
		},
	}
	for _, test := range tests {
		_, err := index.insertHeader(test.parentID, test.header, nil)
		if !IsRuleErrorCode(err, test.wantCode) {
			t.Errorf("%s: got error %v, want %s", test.name, err, test.wantCode)
		}
	}
	if index.nodeCount() != len(ids) {
		t.Errorf("failed inserts changed the node count to %d", index.nodeCount())
	}
}

func TestPathToAncestorAndFindFork(t *testing.T) {
	index, main := buildTestIndex(t, 4)

	// Fork off the main chain at height 2.
	forkParent := index.node(main[2])
	side := []nodeID{}
	parent := forkParent
	for i := 0; i < 3; i++ {
		header := testHeader(&parent.hash, 1, time.Unix(parent.timestamp, 0).Add(time.Second))
		id, err := index.insertHeader(parent.id, header, nil)
		if err != nil {
			t.Fatalf("insertHeader: side block %d: %s", i, err)
		}
		side = append(side, id)
		parent = index.node(id)
	}

	path, err := index.pathToAncestor(main[4], main[1])
	if err != nil {
		t.Fatalf("pathToAncestor: %s", err)
	}
	wantPath := []nodeID{main[4], main[3], main[2]}
	if !reflect.DeepEqual(path, wantPath) {
		t.Errorf("pathToAncestor: got %v, want %v", path, wantPath)
	}

	path, err = index.pathToAncestor(main[2], main[2])
	if err != nil || len(path) != 0 {
		t.Errorf("pathToAncestor: path to itself: got %v, %v", path, err)
	}

	_, err = index.pathToAncestor(side[2], main[3])
	if err == nil {
		t.Errorf("pathToAncestor: expected an error for a block that is not an ancestor")
	}
	_, err = index.pathToAncestor(main[1], main[3])
	if err == nil {
		t.Errorf("pathToAncestor: expected an error for a higher ancestor")
	}

	tests := []struct {
		name string
		a, b nodeID
		want nodeID
	}{
		{"main tip and side tip", main[4], side[2], main[2]},
		{"side tip and main tip", side[2], main[4], main[2]},
		{"same block", main[3], main[3], main[3]},
		{"ancestor and descendant", main[1], side[0], main[1]},
		{"genesis", main[0], side[2], main[0]},
	}
	for _, test := range tests {
		got := index.findFork(test.a, test.b)
		if got != test.want {
			t.Errorf("%s: got fork %d, want %d", test.name, got, test.want)
		}
	}

	if got := index.ancestor(side[2], 1); got != main[1] {
		t.Errorf("ancestor: got %d, want %d", got, main[1])
	}
	if got := index.ancestor(main[1], 3); got != noNode {
		t.Errorf("ancestor: got %d for a height above the node", got)
	}
}

func TestMainChainSuccessor(t *testing.T) {
	index, ids := buildTestIndex(t, 2)
	for i := 0; i < len(ids)-1; i++ {
		index.setMainChainSuccessor(ids[i], ids[i+1])
	}
	if got := index.mainChainSuccessor(ids[0]); got != ids[1] {
		t.Errorf("mainChainSuccessor: got %d, want %d", got, ids[1])
	}
	index.setMainChainSuccessor(ids[1], noNode)
	if got := index.mainChainSuccessor(ids[1]); got != noNode {
		t.Errorf("mainChainSuccessor: got %d after clearing", got)
	}

	defer func() {
		if recover() == nil {
			t.Errorf("setMainChainSuccessor: expected a panic for a non-child")
		}
	}()
	index.setMainChainSuccessor(ids[0], ids[2])
}

func TestMarkInvalidDescendants(t *testing.T) {
	index, main := buildTestIndex(t, 3)
	parent := index.node(main[1])
	sideHeader := testHeader(&parent.hash, 7, time.Unix(parent.timestamp, 0).Add(time.Second))
	side, err := index.insertHeader(parent.id, sideHeader, nil)
	if err != nil {
		t.Fatalf("insertHeader: %s", err)
	}

	index.setStatusFlags(main[2], statusValidateFailed)
	marked := index.markInvalidDescendants(main[2])
	if !reflect.DeepEqual(marked, []nodeID{main[3]}) {
		t.Errorf("markInvalidDescendants: got %v, want %v", marked, []nodeID{main[3]})
	}
	if !index.status(main[3]).KnownInvalid() {
		t.Errorf("descendant is not known to be invalid")
	}
	if index.status(side).KnownInvalid() || index.status(main[1]).KnownInvalid() {
		t.Errorf("a block that is not a descendant was marked invalid")
	}
}

func TestPastMedianTime(t *testing.T) {
	index, ids := buildTestIndex(t, 20)
	tip := index.node(ids[20])

	// Every block is a minute after its parent, so the median of the last
	// 11 blocks is 5 minutes before the tip.
	want := time.Unix(tip.timestamp, 0).Add(-5 * time.Minute)
	if got := index.pastMedianTime(tip.id); !got.Equal(want) {
		t.Errorf("pastMedianTime: got %s, want %s", got, want)
	}

	genesis := index.node(ids[0])
	if got := index.pastMedianTime(genesis.id); got.Unix() != genesis.timestamp {
		t.Errorf("pastMedianTime of genesis: got %s", got)
	}
}

func TestBlockNodeSerialization(t *testing.T) {
	index, ids := buildTestIndex(t, 1)
	node := index.node(ids[1])
	node.location = database.StoreLocation{1, 2, 3, 4, 5}
	node.status = statusDataStored | statusValid

	serialized, err := serializeBlockNode(node)
	if err != nil {
		t.Fatalf("serializeBlockNode: %s", err)
	}
	deserialized, err := deserializeBlockNode(serialized)
	if err != nil {
		t.Fatalf("deserializeBlockNode: %s", err)
	}
	if !reflect.DeepEqual(deserialized.Header(), node.Header()) ||
		deserialized.status != node.status ||
		!reflect.DeepEqual(deserialized.location, node.location) {

		t.Errorf("deserializeBlockNode: got %s, want %s",
			spew.Sdump(deserialized), spew.Sdump(node))
	}

	_, err = deserializeBlockNode(append(serialized, 0))
	if err == nil {
		t.Errorf("deserializeBlockNode: expected an error for trailing bytes")
	}
	_, err = deserializeBlockNode(serialized[:appmessage.BlockHeaderLen])
	if err == nil {
		t.Errorf("deserializeBlockNode: expected an error for a truncated entry")
	}
}
