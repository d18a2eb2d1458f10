// Copyright (c) 2015-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/ledgerkit/ledgerd/app/appmessage"
	"github.com/ledgerkit/ledgerd/database"
	"github.com/ledgerkit/ledgerd/dbaccess"
	"github.com/ledgerkit/ledgerd/util/chainhash"
	"github.com/pkg/errors"
)

// medianTimeBlocks is the number of previous blocks which should be
// used to calculate the median time used to validate block timestamps.
const medianTimeBlocks = 11

// maxBlockLocationSize bounds the serialized flat-store location of a
// block-index entry.
const maxBlockLocationSize = 64

// blockIndex provides facilities for keeping track of an in-memory index of the
// block chain. Nodes live in an arena and are addressed by nodeID; parent and
// successor links are nodeIDs, never pointers. Nodes are never removed.
type blockIndex struct {
	sync.RWMutex
	nodes  []*blockNode
	byHash map[chainhash.Hash]nodeID
	dirty  map[nodeID]struct{}
}

// newBlockIndex returns a new empty instance of a block index. The index will
// be dynamically populated as block nodes are loaded from the database and
// manually added.
func newBlockIndex() *blockIndex {
	return &blockIndex{
		byHash: make(map[chainhash.Hash]nodeID),
		dirty:  make(map[nodeID]struct{}),
	}
}

// haveBlock returns whether or not the block index contains the provided hash.
//
// This function is safe for concurrent access.
func (bi *blockIndex) haveBlock(hash *chainhash.Hash) bool {
	bi.RLock()
	defer bi.RUnlock()
	_, ok := bi.byHash[*hash]
	return ok
}

// lookupNode returns the id of the block node identified by the provided
// hash.
//
// This function is safe for concurrent access.
func (bi *blockIndex) lookupNode(hash *chainhash.Hash) (nodeID, bool) {
	bi.RLock()
	defer bi.RUnlock()
	id, ok := bi.byHash[*hash]
	return id, ok
}

// node returns the node with the given id, or nil if id does not address a
// node in the arena.
//
// This function is safe for concurrent access.
func (bi *blockIndex) node(id nodeID) *blockNode {
	bi.RLock()
	defer bi.RUnlock()
	return bi.nodeNoLock(id)
}

func (bi *blockIndex) nodeNoLock(id nodeID) *blockNode {
	if id < 0 || int(id) >= len(bi.nodes) {
		return nil
	}
	return bi.nodes[id]
}

// mustNode is node for ids the caller obtained from the index itself.
func (bi *blockIndex) mustNode(id nodeID) *blockNode {
	node := bi.nodeNoLock(id)
	if node == nil {
		panic(AssertError(fmt.Sprintf("node %d is not in the block index", id)))
	}
	return node
}

// nodeCount returns the number of nodes in the arena.
func (bi *blockIndex) nodeCount() int {
	bi.RLock()
	defer bi.RUnlock()
	return len(bi.nodes)
}

// insertHeader adds a node for header as a child of parentID and marks it
// dirty. parentID must be noNode only for a genesis header. The height and
// cumulative work of the node are derived from its parent.
//
// This function is safe for concurrent access.
func (bi *blockIndex) insertHeader(parentID nodeID, header *appmessage.BlockHeader,
	location database.StoreLocation) (nodeID, error) {

	bi.Lock()
	defer bi.Unlock()

	node := newBlockNode(header, location)
	if _, exists := bi.byHash[node.hash]; exists {
		str := fmt.Sprintf("block %s is already in the block index", node.hash)
		return noNode, ruleError(ErrDuplicateBlock, str)
	}

	if parentID == noNode {
		if !header.IsGenesis() {
			str := fmt.Sprintf("block %s has no parent but is not a genesis block", node.hash)
			return noNode, ruleError(ErrParentUnknown, str)
		}
	} else {
		parent := bi.nodeNoLock(parentID)
		if parent == nil {
			str := fmt.Sprintf("parent %d of block %s is not in the block index",
				parentID, node.hash)
			return noNode, ruleError(ErrParentUnknown, str)
		}
		if parent.hash != header.PrevBlock {
			str := fmt.Sprintf("block %s references parent %s but was inserted under %s",
				node.hash, header.PrevBlock, parent.hash)
			return noNode, ruleError(ErrParentUnknown, str)
		}
		node.parent = parentID
		node.height = parent.height + 1
		node.workSum.Add(node.workSum, parent.workSum)
	}

	id := bi.addNodeNoLock(node)
	bi.dirty[id] = struct{}{}
	return id, nil
}

// addNodeNoLock appends a fully initialized node to the arena without
// marking it dirty. This is used while loading the index from the database.
//
// This function is NOT safe for concurrent access.
func (bi *blockIndex) addNodeNoLock(node *blockNode) nodeID {
	node.id = nodeID(len(bi.nodes))
	bi.nodes = append(bi.nodes, node)
	bi.byHash[node.hash] = node.id
	return node.id
}

// cumulativeWork returns a copy of the total work from genesis up to and
// including the given node.
//
// This function is safe for concurrent access.
func (bi *blockIndex) cumulativeWork(id nodeID) *big.Int {
	bi.RLock()
	defer bi.RUnlock()
	return new(big.Int).Set(bi.mustNode(id).workSum)
}

// pathToAncestor returns the nodes from id down to, but not including,
// ancestor, ordered tip to ancestor. It fails if ancestor is not an
// ancestor of id. The path from a node to itself is empty.
//
// This function is safe for concurrent access.
func (bi *blockIndex) pathToAncestor(id, ancestor nodeID) ([]nodeID, error) {
	bi.RLock()
	defer bi.RUnlock()

	target := bi.mustNode(ancestor)
	node := bi.mustNode(id)
	if node.height < target.height {
		return nil, errors.Errorf("block %s is higher than %s and cannot be its ancestor",
			target.hash, node.hash)
	}

	path := make([]nodeID, 0, node.height-target.height)
	for node.height > target.height {
		path = append(path, node.id)
		node = bi.mustNode(node.parent)
	}
	if node.id != ancestor {
		return nil, errors.Errorf("block %s is not an ancestor of %s",
			target.hash, bi.mustNode(id).hash)
	}
	return path, nil
}

// setMainChainSuccessor records child as the main chain successor of id.
// child may be noNode to clear the link.
//
// This function is safe for concurrent access.
func (bi *blockIndex) setMainChainSuccessor(id, child nodeID) {
	bi.Lock()
	defer bi.Unlock()

	node := bi.mustNode(id)
	if child != noNode && bi.mustNode(child).parent != id {
		panic(AssertError(fmt.Sprintf("block %s is not the parent of %s",
			node.hash, bi.mustNode(child).hash)))
	}
	node.mainChainSuccessor = child
}

// mainChainSuccessor returns the main chain successor of id, or noNode.
//
// This function is safe for concurrent access.
func (bi *blockIndex) mainChainSuccessor(id nodeID) nodeID {
	bi.RLock()
	defer bi.RUnlock()
	return bi.mustNode(id).mainChainSuccessor
}

// ancestor returns the ancestor of id at the provided height by following
// the chain backwards. It returns noNode when height is above the node.
//
// This function is safe for concurrent access.
func (bi *blockIndex) ancestor(id nodeID, height uint64) nodeID {
	bi.RLock()
	defer bi.RUnlock()
	return bi.ancestorNoLock(id, height)
}

func (bi *blockIndex) ancestorNoLock(id nodeID, height uint64) nodeID {
	node := bi.mustNode(id)
	if height > node.height {
		return noNode
	}
	for node.height > height {
		node = bi.mustNode(node.parent)
	}
	return node.id
}

// pastMedianTime returns the median time of the previous few blocks
// prior to, and including, the given node.
//
// This function is safe for concurrent access.
func (bi *blockIndex) pastMedianTime(id nodeID) time.Time {
	bi.RLock()
	defer bi.RUnlock()

	timestamps := make([]int64, 0, medianTimeBlocks)
	for iterID := id; iterID != noNode && len(timestamps) < medianTimeBlocks; {
		node := bi.mustNode(iterID)
		timestamps = append(timestamps, node.timestamp)
		iterID = node.parent
	}

	sort.Slice(timestamps, func(i, j int) bool {
		return timestamps[i] < timestamps[j]
	})

	// NOTE: The consensus rules incorrectly calculate the median for even
	// numbers of blocks. A true median averages the middle two elements
	// for a set with an even number of elements in it. Since the constant
	// for the previous number of blocks to be used is odd, this is only an
	// issue for a few blocks near the beginning of the chain.
	medianTimestamp := timestamps[len(timestamps)/2]
	return time.Unix(medianTimestamp, 0)
}

// findFork returns the most recent common ancestor of a and b. Both are
// walked back to equal height, then advanced together until they meet.
//
// This function is safe for concurrent access.
func (bi *blockIndex) findFork(a, b nodeID) nodeID {
	bi.RLock()
	defer bi.RUnlock()

	nodeA := bi.mustNode(a)
	nodeB := bi.mustNode(b)
	if nodeA.height > nodeB.height {
		nodeA = bi.mustNode(bi.ancestorNoLock(a, nodeB.height))
	} else if nodeB.height > nodeA.height {
		nodeB = bi.mustNode(bi.ancestorNoLock(b, nodeA.height))
	}
	for nodeA.id != nodeB.id {
		if nodeA.isGenesis() || nodeB.isGenesis() {
			return noNode
		}
		nodeA = bi.mustNode(nodeA.parent)
		nodeB = bi.mustNode(nodeB.parent)
	}
	return nodeA.id
}

// status returns the validation status of the given node.
//
// This function is safe for concurrent access.
func (bi *blockIndex) status(id nodeID) blockStatus {
	bi.RLock()
	defer bi.RUnlock()
	return bi.mustNode(id).status
}

// setStatusFlags flips the provided status flags on the block node to on,
// regardless of whether they were on or off previously. This does not unset
// any flags currently on.
//
// This function is safe for concurrent access.
func (bi *blockIndex) setStatusFlags(id nodeID, flags blockStatus) {
	bi.Lock()
	defer bi.Unlock()
	bi.mustNode(id).status |= flags
	bi.dirty[id] = struct{}{}
}

// unsetStatusFlags flips the provided status flags on the block node to off,
// regardless of whether they were on or off previously.
//
// This function is safe for concurrent access.
func (bi *blockIndex) unsetStatusFlags(id nodeID, flags blockStatus) {
	bi.Lock()
	defer bi.Unlock()
	bi.mustNode(id).status &^= flags
	bi.dirty[id] = struct{}{}
}

// setBlockData records where the body of the given node is stored and
// flags it statusDataStored.
//
// This function is safe for concurrent access.
func (bi *blockIndex) setBlockData(id nodeID, location database.StoreLocation) {
	bi.Lock()
	defer bi.Unlock()
	node := bi.mustNode(id)
	node.location = location
	node.status |= statusDataStored
	bi.dirty[id] = struct{}{}
}

// markInvalidDescendants flags every descendant of id with
// statusInvalidAncestor and returns them. A parent always precedes its
// children in the arena, so one forward pass reaches every descendant.
//
// This function is safe for concurrent access.
func (bi *blockIndex) markInvalidDescendants(id nodeID) []nodeID {
	bi.Lock()
	defer bi.Unlock()

	invalid := map[nodeID]struct{}{id: {}}
	var marked []nodeID
	for _, node := range bi.nodes[id+1:] {
		if _, ok := invalid[node.parent]; !ok {
			continue
		}
		invalid[node.id] = struct{}{}
		node.status |= statusInvalidAncestor
		bi.dirty[node.id] = struct{}{}
		marked = append(marked, node.id)
	}
	return marked
}

// flushToDB writes all dirty block nodes to the database.
func (bi *blockIndex) flushToDB(dbContext dbaccess.Context) error {
	bi.Lock()
	defer bi.Unlock()
	if len(bi.dirty) == 0 {
		return nil
	}

	for id := range bi.dirty {
		node := bi.mustNode(id)
		serializedBlockNode, err := serializeBlockNode(node)
		if err != nil {
			return err
		}
		key := blockIndexKey(&node.hash, node.height)
		err = dbaccess.StoreIndexBlock(dbContext, key, serializedBlockNode)
		if err != nil {
			return err
		}
	}
	return nil
}

// clearDirtyEntries clears all existing dirty entries. It is called once
// the transaction flushToDB wrote into has been committed.
func (bi *blockIndex) clearDirtyEntries() {
	bi.Lock()
	defer bi.Unlock()
	bi.dirty = make(map[nodeID]struct{})
}

// blockIndexKey generates the binary key for an entry in the block index
// bucket. The key is composed of the block height encoded as a big-endian
// 64-bit unsigned int followed by the 32 byte block hash, so a cursor pass
// visits parents before their children.
func blockIndexKey(blockHash *chainhash.Hash, height uint64) []byte {
	indexKey := make([]byte, chainhash.HashSize+8)
	binary.BigEndian.PutUint64(indexKey[0:8], height)
	copy(indexKey[8:], blockHash[:])
	return indexKey
}

// serializeBlockNode encodes a node as its header, status byte and
// flat-store location.
func serializeBlockNode(node *blockNode) ([]byte, error) {
	w := bytes.NewBuffer(make([]byte, 0, appmessage.BlockHeaderLen+1+len(node.location)+1))
	err := node.Header().Serialize(w)
	if err != nil {
		return nil, err
	}
	err = appmessage.WriteElement(w, uint8(node.status))
	if err != nil {
		return nil, err
	}
	err = appmessage.WriteVarBytes(w, node.location.Serialize())
	if err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// deserializeBlockNode parses a value in the block index bucket into a
// detached node. Its parent link, height and work are resolved by the
// caller.
func deserializeBlockNode(serialized []byte) (*blockNode, error) {
	r := bytes.NewReader(serialized)
	header := &appmessage.BlockHeader{}
	err := header.Deserialize(r)
	if err != nil {
		return nil, err
	}

	var status uint8
	err = appmessage.ReadElement(r, &status)
	if err != nil {
		return nil, err
	}

	serializedLocation, err := appmessage.ReadVarBytes(r, maxBlockLocationSize, "location")
	if err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, errors.Errorf("%d trailing bytes in block index entry", r.Len())
	}

	var location database.StoreLocation
	location.Deserialize(serializedLocation)

	node := newBlockNode(header, location)
	node.status = blockStatus(status)
	return node, nil
}
