package wallettx

import (
	"sort"
	"sync"
	"time"

	"github.com/ledgerkit/ledgerd/app/appmessage"
	"github.com/ledgerkit/ledgerd/domain/blockchain"
	"github.com/ledgerkit/ledgerd/util/chainhash"
)

// Record holds the wallet's annotations of a transaction. The transaction
// itself is referenced by id and never copied or extended.
type Record struct {
	TxID      chainhash.Hash
	Received  time.Time
	Label     string
	Confirmed bool

	// BlockHash is the main chain block containing the transaction, or
	// nil while it is unconfirmed.
	BlockHash *chainhash.Hash
}

// Subscriber is the part of the chain the tracker listens to.
type Subscriber interface {
	Subscribe(callback blockchain.NotificationCallback)
}

// Tracker keeps the records of the transactions a wallet is interested in
// and keeps their confirmation state in line with the main chain.
type Tracker struct {
	mtx     sync.RWMutex
	records map[chainhash.Hash]*Record
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		records: make(map[chainhash.Hash]*Record),
	}
}

// Attach subscribes the tracker to the chain notifications of chain.
func (t *Tracker) Attach(chain Subscriber) {
	chain.Subscribe(t.HandleNotification)
}

// Track starts tracking tx with the given label and returns a copy of its
// record. Tracking an already tracked transaction only updates the label.
func (t *Tracker) Track(tx *appmessage.MsgTx, label string) Record {
	t.mtx.Lock()
	defer t.mtx.Unlock()

	txID := tx.TxID()
	record, ok := t.records[*txID]
	if !ok {
		record = &Record{
			TxID:     *txID,
			Received: time.Now(),
		}
		t.records[*txID] = record
		log.Debugf("Tracking transaction %s", txID)
	}
	record.Label = label
	return *record
}

// Forget stops tracking the transaction with the given id.
func (t *Tracker) Forget(txID *chainhash.Hash) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	delete(t.records, *txID)
}

// Record returns a copy of the record of the given transaction.
func (t *Tracker) Record(txID *chainhash.Hash) (Record, bool) {
	t.mtx.RLock()
	defer t.mtx.RUnlock()

	record, ok := t.records[*txID]
	if !ok {
		return Record{}, false
	}
	return *record, true
}

// Records returns copies of all records, oldest first.
func (t *Tracker) Records() []Record {
	t.mtx.RLock()
	defer t.mtx.RUnlock()

	records := make([]Record, 0, len(t.records))
	for _, record := range t.records {
		records = append(records, *record)
	}
	sort.Slice(records, func(i, j int) bool {
		if !records[i].Received.Equal(records[j].Received) {
			return records[i].Received.Before(records[j].Received)
		}
		return records[i].TxID.String() < records[j].TxID.String()
	})
	return records
}

// HandleNotification updates the records after a main chain change. Other
// notifications are ignored.
func (t *Tracker) HandleNotification(notification *blockchain.Notification) {
	if notification.Type != blockchain.NTChainChanged {
		return
	}
	data, ok := notification.Data.(*blockchain.ChainChangedNotificationData)
	if !ok {
		return
	}

	t.mtx.Lock()
	defer t.mtx.Unlock()

	for _, change := range data.TxChanges {
		if change.Kind != blockchain.Unconfirmed {
			continue
		}
		if record, ok := t.records[change.TxID]; ok {
			record.Confirmed = false
			record.BlockHash = nil
			log.Debugf("Transaction %s is unconfirmed", change.TxID)
		}
	}

	// Every block starts with its coinbase, so coinbases delimit the
	// connected blocks within ConnectedTransactions.
	blockIndex := -1
	for _, tx := range data.ConnectedTransactions {
		if tx.IsCoinBase() {
			blockIndex++
		}
		if blockIndex < 0 || blockIndex >= len(data.ConnectedBlockHashes) {
			continue
		}
		record, ok := t.records[*tx.TxID()]
		if !ok {
			continue
		}
		blockHash := *data.ConnectedBlockHashes[blockIndex]
		record.Confirmed = true
		record.BlockHash = &blockHash
		log.Debugf("Transaction %s is confirmed in block %s", record.TxID, blockHash)
	}
}
