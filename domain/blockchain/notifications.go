// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"fmt"

	"github.com/ledgerkit/ledgerd/app/appmessage"
	"github.com/ledgerkit/ledgerd/util/chainhash"
)

// NotificationType represents the type of a notification message.
type NotificationType int

// NotificationCallback is used for a caller to provide a callback for
// notifications about various chain events.
type NotificationCallback func(*Notification)

// Constants for the type of a notification message.
const (
	// NTBlockAdded indicates the associated block was added to the block
	// index, whether or not it became part of the main chain.
	NTBlockAdded NotificationType = iota

	// NTChainChanged indicates that blocks were connected to or
	// disconnected from the main chain.
	NTChainChanged
)

// notificationTypeStrings is a map of notification types back to their
// constant names for pretty printing.
var notificationTypeStrings = map[NotificationType]string{
	NTBlockAdded:   "NTBlockAdded",
	NTChainChanged: "NTChainChanged",
}

// String returns the NotificationType in human-readable form.
func (n NotificationType) String() string {
	if s, ok := notificationTypeStrings[n]; ok {
		return s
	}
	return fmt.Sprintf("Unknown Notification Type (%d)", int(n))
}

// Notification defines notification that is sent to the caller via the
// callback function provided during the call to Subscribe. The
// notification type indicates the type of Data:
//   - NTBlockAdded:   *BlockAddedNotificationData
//   - NTChainChanged: *ChainChangedNotificationData
type Notification struct {
	Type NotificationType
	Data interface{}
}

// Subscribe to block chain notifications. Registers a callback to be
// executed when various events take place. See the documentation on
// Notification and NotificationType for details on the types and contents
// of notifications.
func (bc *BlockChain) Subscribe(callback NotificationCallback) {
	bc.notificationsLock.Lock()
	defer bc.notificationsLock.Unlock()
	bc.notifications = append(bc.notifications, callback)
}

// sendNotification sends a notification with the passed type and data if
// the caller requested notifications by providing a callback function in
// the call to Subscribe. It must be called without the chain lock held.
func (bc *BlockChain) sendNotification(typ NotificationType, data interface{}) {
	// Generate and send the notification.
	n := Notification{Type: typ, Data: data}
	bc.notificationsLock.RLock()
	defer bc.notificationsLock.RUnlock()
	for _, callback := range bc.notifications {
		callback(&n)
	}
}

// BlockAddedNotificationData defines data to be sent along with a
// NTBlockAdded notification.
type BlockAddedNotificationData struct {
	Hash          *chainhash.Hash
	Height        uint64
	OnMainChain   bool
	WasUnorphaned bool
}

// OutputChangeKind tells whether an output became spendable or stopped
// being spendable.
type OutputChangeKind int

const (
	// NewlyUnspent marks an output that became spendable: it was created
	// by a connected transaction or its spender was disconnected.
	NewlyUnspent OutputChangeKind = iota

	// NewlySpent marks an output that stopped being spendable: it was
	// spent by a connected transaction or its creator was disconnected.
	NewlySpent
)

func (kind OutputChangeKind) String() string {
	if kind == NewlySpent {
		return "NewlySpent"
	}
	return "NewlyUnspent"
}

// OutputChange is one entry of a change set.
type OutputChange struct {
	Outpoint appmessage.Outpoint
	Kind     OutputChangeKind
}

// TxChangeKind tells whether a transaction entered or left the main chain.
type TxChangeKind int

const (
	// Confirmed marks a transaction that was connected.
	Confirmed TxChangeKind = iota

	// Unconfirmed marks a transaction that was disconnected.
	Unconfirmed
)

func (kind TxChangeKind) String() string {
	if kind == Unconfirmed {
		return "Unconfirmed"
	}
	return "Confirmed"
}

// TxChange is one entry of a change set.
type TxChange struct {
	TxID chainhash.Hash
	Kind TxChangeKind
}

// ChainChangedNotificationData defines data to be sent along with a
// NTChainChanged notification. Block hashes are ordered the way they were
// applied: disconnected tip first, connected ancestor first. The change
// lists are net over the whole switch, so an output spent and unspent
// again during one reorganization does not appear.
type ChainChangedNotificationData struct {
	DisconnectedBlockHashes []*chainhash.Hash
	ConnectedBlockHashes    []*chainhash.Hash

	// DisconnectedTransactions holds the non-coinbase transactions of the
	// disconnected blocks that are not part of any connected block. They
	// are candidates for re-admission to the mempool.
	DisconnectedTransactions []*appmessage.MsgTx

	// ConnectedTransactions holds every transaction of the connected
	// blocks, in block order.
	ConnectedTransactions []*appmessage.MsgTx

	OutputChanges []OutputChange
	TxChanges     []TxChange

	// InvVects announces the connected blocks and the confirmed
	// transactions.
	InvVects []*appmessage.InvVect
}

// changeSet accumulates the net effect of view mutations. Each key keeps a
// signed counter: positive means it became spendable (or confirmed),
// negative means the opposite, zero means the mutations cancelled out.
type changeSet struct {
	outputOrder []appmessage.Outpoint
	outputDelta map[appmessage.Outpoint]int
	txOrder     []chainhash.Hash
	txDelta     map[chainhash.Hash]int
}

func newChangeSet() *changeSet {
	return &changeSet{
		outputDelta: make(map[appmessage.Outpoint]int),
		txDelta:     make(map[chainhash.Hash]int),
	}
}

func (cs *changeSet) addOutput(outpoint appmessage.Outpoint, delta int) {
	if _, ok := cs.outputDelta[outpoint]; !ok {
		cs.outputOrder = append(cs.outputOrder, outpoint)
	}
	cs.outputDelta[outpoint] += delta
}

func (cs *changeSet) addTx(txID chainhash.Hash, delta int) {
	if _, ok := cs.txDelta[txID]; !ok {
		cs.txOrder = append(cs.txOrder, txID)
	}
	cs.txDelta[txID] += delta
}

// outputChanges returns the non-zero output changes in first-seen order.
func (cs *changeSet) outputChanges() []OutputChange {
	changes := make([]OutputChange, 0, len(cs.outputOrder))
	for _, outpoint := range cs.outputOrder {
		switch delta := cs.outputDelta[outpoint]; {
		case delta > 0:
			changes = append(changes, OutputChange{Outpoint: outpoint, Kind: NewlyUnspent})
		case delta < 0:
			changes = append(changes, OutputChange{Outpoint: outpoint, Kind: NewlySpent})
		}
	}
	return changes
}

// txChanges returns the non-zero transaction changes in first-seen order.
func (cs *changeSet) txChanges() []TxChange {
	changes := make([]TxChange, 0, len(cs.txOrder))
	for _, txID := range cs.txOrder {
		switch delta := cs.txDelta[txID]; {
		case delta > 0:
			changes = append(changes, TxChange{TxID: txID, Kind: Confirmed})
		case delta < 0:
			changes = append(changes, TxChange{TxID: txID, Kind: Unconfirmed})
		}
	}
	return changes
}
